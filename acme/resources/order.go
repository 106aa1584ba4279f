package resources

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/cpu/acmeclient/acme"
)

// The Identifier resource represents a subject identifier that can be
// included in a certificate.
//
// See:
// https://tools.ietf.org/html/rfc8555#section-7.1.3
//
// In practice most ACME servers only support "dns" type identifiers where
// the value specifies a fully qualified domain name.
type Identifier struct {
	// The Type of the Identifier value.
	Type string `json:"type"`
	// The Identifier value.
	Value string `json:"value"`
}

// The Order resource represents a collection of identifiers that an account
// wishes to create a Certificate for.
//
// See https://tools.ietf.org/html/rfc8555#section-7.1.3
//
// To understand the Status changes specified by ACME for the Order resource
// see https://tools.ietf.org/html/rfc8555#section-7.1.6
type Order struct {
	// The server-assigned URL identifying the Order, taken from the Location
	// header of the order creation response.
	ID string
	// The Status of the Order.
	Status string
	// The time at which the server considers the Order expired. Required by the
	// protocol whenever the Status is "pending" or "valid".
	Expires time.Time
	// The Identifiers the Order wishes to finalize a Certificate for once the
	// Order is ready.
	Identifiers []Identifier
	// A list of URLs for Authorization resources the server specifies for the
	// Order Identifiers.
	Authorizations []string
	// A URL used to Finalize the Order with a CSR once the Order has a status
	// of "ready".
	Finalize string
	// A URL used to fetch the Certificate issued by the server for the Order
	// after being Finalized. Present and not-empty when the Order has a status
	// of "valid".
	Certificate string
	// Optional requested notBefore/notAfter values echoed by the server.
	NotBefore time.Time
	NotAfter  time.Time
}

// String returns the Order's ID URL.
func (o Order) String() string {
	return o.ID
}

// orderStatuses is the closed set of Order status values.
// See https://tools.ietf.org/html/rfc8555#section-7.1.6
var orderStatuses = []string{
	acme.StatusInvalid,
	acme.StatusPending,
	acme.StatusReady,
	acme.StatusProcessing,
	acme.StatusValid,
}

type rawOrder struct {
	Status         *string      `json:"status"`
	Expires        *string      `json:"expires"`
	Identifiers    []Identifier `json:"identifiers"`
	Authorizations []string     `json:"authorizations"`
	Finalize       *string      `json:"finalize"`
	Certificate    *string      `json:"certificate"`
	NotBefore      *string      `json:"notBefore"`
	NotAfter       *string      `json:"notAfter"`
}

// OrderFromResponse constructs an Order from the order URL and JSON body of
// a server response. The URL must not be empty, the status must be a member
// of the Order status set, and the expires field must be present whenever
// the status is "pending" or "valid".
func OrderFromResponse(url string, body []byte) (*Order, error) {
	if url == "" {
		return nil, validationErr("order", "url", "is missing")
	}

	var raw rawOrder
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, acme.NewError(fmt.Sprintf("invalid order response: %s", err))
	}

	status, err := requireStatus("order", raw.Status, orderStatuses)
	if err != nil {
		return nil, err
	}

	// RFC 8555 Section 7.1.3: expires is required for orders in the "pending"
	// and "valid" states and optional otherwise.
	var expires time.Time
	if status == acme.StatusPending || status == acme.StatusValid {
		expires, err = requireTime("order", "expires", raw.Expires)
	} else {
		expires, err = optionalTime("order", "expires", raw.Expires)
	}
	if err != nil {
		return nil, err
	}

	if len(raw.Identifiers) == 0 {
		return nil, validationErr("order", "identifiers", "is missing")
	}
	for _, ident := range raw.Identifiers {
		if ident.Type == "" || ident.Value == "" {
			return nil, validationErr("order", "identifiers", "contains an incomplete identifier")
		}
	}

	finalize, err := requireString("order", "finalize", raw.Finalize)
	if err != nil {
		return nil, err
	}

	notBefore, err := optionalTime("order", "notBefore", raw.NotBefore)
	if err != nil {
		return nil, err
	}
	notAfter, err := optionalTime("order", "notAfter", raw.NotAfter)
	if err != nil {
		return nil, err
	}

	return &Order{
		ID:             url,
		Status:         status,
		Expires:        expires,
		Identifiers:    raw.Identifiers,
		Authorizations: raw.Authorizations,
		Finalize:       finalize,
		Certificate:    optionalString(raw.Certificate),
		NotBefore:      notBefore,
		NotAfter:       notAfter,
	}, nil
}
