package resources

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/cpu/acmeclient/acme"
)

// The ACME Authorization resource represents an Account's authorization to
// issue for a specified identifier, based on interactions with associated
// Challenges.
//
// For information about the Authorization resource see
// https://tools.ietf.org/html/rfc8555#section-7.1.4
//
// To understand the Authorization Status changes specified by ACME see
// https://tools.ietf.org/html/rfc8555#section-7.1.6
type Authorization struct {
	// The server-assigned URL identifying the Authorization.
	ID string
	// The status of this authorization.
	Status string
	// The identifier that the account holding this Authorization is authorized
	// to represent.
	Identifier Identifier
	// The time at which the server considers the Authorization expired.
	Expires time.Time
	// For pending authorizations, the challenges that the client can fulfill
	// in order to prove possession of the identifier. For valid authorizations
	// the challenge that was validated. For invalid authorizations the
	// challenge that was attempted and failed.
	Challenges []Challenge
	// For authorizations created as a result of a newOrder request containing
	// a DNS identifier with a value that contained a wildcard prefix this field
	// MUST be present, and true.
	Wildcard bool
}

// String returns the Authorization's server-assigned URL.
func (a Authorization) String() string {
	return a.ID
}

// authorizationStatuses is the closed set of Authorization status values.
// See https://tools.ietf.org/html/rfc8555#section-7.1.6
var authorizationStatuses = []string{
	acme.StatusPending,
	acme.StatusValid,
	acme.StatusInvalid,
	acme.StatusDeactivated,
	acme.StatusExpired,
	acme.StatusRevoked,
}

type rawAuthorization struct {
	Status     *string        `json:"status"`
	Identifier *Identifier    `json:"identifier"`
	Expires    *string        `json:"expires"`
	Challenges []rawChallenge `json:"challenges"`
	Wildcard   bool           `json:"wildcard"`
}

// AuthorizationFromResponse constructs an Authorization from the
// authorization URL and JSON body of a server response. The URL, identifier,
// status and expires fields are all required.
func AuthorizationFromResponse(url string, body []byte) (*Authorization, error) {
	if url == "" {
		return nil, validationErr("authorization", "url", "is missing")
	}

	var raw rawAuthorization
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, acme.NewError(
			fmt.Sprintf("invalid authorization response: %s", err))
	}

	status, err := requireStatus("authorization", raw.Status, authorizationStatuses)
	if err != nil {
		return nil, err
	}

	if raw.Identifier == nil || raw.Identifier.Type == "" || raw.Identifier.Value == "" {
		return nil, validationErr("authorization", "identifier", "is missing")
	}

	expires, err := requireTime("authorization", "expires", raw.Expires)
	if err != nil {
		return nil, err
	}

	var challenges []Challenge
	for _, rawChall := range raw.Challenges {
		chall, err := challengeFromRaw(rawChall)
		if err != nil {
			return nil, err
		}
		challenges = append(challenges, *chall)
	}

	return &Authorization{
		ID:         url,
		Status:     status,
		Identifier: *raw.Identifier,
		Expires:    expires,
		Challenges: challenges,
		Wildcard:   raw.Wildcard,
	}, nil
}
