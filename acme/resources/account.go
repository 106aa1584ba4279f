// Package resources provides immutable types for representing ACME protocol
// resources parsed from server responses.
package resources

import (
	"encoding/json"
	"fmt"

	"github.com/cpu/acmeclient/acme"
)

// Account holds information related to a single ACME Account resource.
//
// The ID field holds the server assigned Account URL taken from the Location
// header of the account creation response. It is used as the JWS Key ID for
// authenticating subsequent ACME requests with the Account's registered
// keypair.
//
// For information about the Account resource see
// https://tools.ietf.org/html/rfc8555#section-7.1.2
type Account struct {
	// The server assigned Account URL. This is used for the JWS Key ID when
	// authenticating ACME requests using the Account's registered keypair.
	ID string
	// The Status of the Account.
	Status string
	// If not nil, a slice of contact URIs for the Account (e.g.
	// "mailto:admin@example.com").
	Contact []string
	// If not empty, a URL from which the Account's order list can be fetched.
	Orders string
}

// String returns the Account's server assigned URL.
func (a Account) String() string {
	return a.ID
}

// accountStatuses is the closed set of Account status values.
// See https://tools.ietf.org/html/rfc8555#section-7.1.6
var accountStatuses = []string{
	acme.StatusValid,
	acme.StatusDeactivated,
	acme.StatusRevoked,
}

type rawAccount struct {
	Status  *string  `json:"status"`
	Contact []string `json:"contact"`
	Orders  *string  `json:"orders"`
}

// AccountFromResponse constructs an Account from the Location header URL and
// JSON body of a server response. The URL must not be empty and the body
// must carry a valid status or an error is returned.
func AccountFromResponse(url string, body []byte) (*Account, error) {
	if url == "" {
		return nil, validationErr("account", "url", "is missing")
	}

	var raw rawAccount
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, acme.NewError(
			fmt.Sprintf("invalid account response: %s", err))
	}

	status, err := requireStatus("account", raw.Status, accountStatuses)
	if err != nil {
		return nil, err
	}

	return &Account{
		ID:      url,
		Status:  status,
		Contact: raw.Contact,
		Orders:  optionalString(raw.Orders),
	}, nil
}
