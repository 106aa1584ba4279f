// Package acme provides ACME protocol constants and the error type shared by
// the client and resource packages. See RFC 8555.
package acme

import "fmt"

const (
	// Directory constants
	// See https://tools.ietf.org/html/rfc8555#section-9.7.5

	// The ACME directory key for the newNonce endpoint.
	NEW_NONCE_ENDPOINT = "newNonce"
	// The ACME directory key for the newAccount endpoint.
	NEW_ACCOUNT_ENDPOINT = "newAccount"
	// The ACME directory key for the newOrder endpoint.
	NEW_ORDER_ENDPOINT = "newOrder"
	// The ACME directory key for the revokeCert endpoint.
	REVOKE_CERT_ENDPOINT = "revokeCert"
	// The ACME directory key for the keyChange endpoint.
	KEY_CHANGE_ENDPOINT = "keyChange"

	// The HTTP response header used by ACME to communicate a fresh nonce. See
	// https://tools.ietf.org/html/rfc8555#section-9.3
	REPLAY_NONCE_HEADER = "Replay-Nonce"
	// The HTTP response header used by ACME to communicate the URL of a newly
	// created resource.
	LOCATION_HEADER = "Location"
	// The HTTP response header used by ACME to communicate how long a client
	// should wait before retrying a request.
	RETRY_AFTER_HEADER = "Retry-After"

	// The error type the server uses to reject a stale or reused nonce. See
	// https://tools.ietf.org/html/rfc8555#section-6.5
	BAD_NONCE_ERROR = "acme:error:badNonce"
)

// Status values specified by RFC 8555 Section 7.1.6 for the Account, Order,
// Authorization and Challenge resources.
const (
	StatusPending     = "pending"
	StatusProcessing  = "processing"
	StatusReady       = "ready"
	StatusValid       = "valid"
	StatusInvalid     = "invalid"
	StatusDeactivated = "deactivated"
	StatusExpired     = "expired"
	StatusRevoked     = "revoked"
)

// Error is the one error kind produced by this module for protocol-level
// failures: transport failures, missing required headers, structured problem
// documents from the server, and resource validation failures.
//
// The Code field carries the server's problem "type" (e.g.
// "urn:ietf:params:acme:error:badNonce") when the failure came from
// a structured error response and is empty otherwise. The StatusCode field is
// the HTTP status of the failing response, or zero when no response was
// received. The URL field names the request URL the failure relates to.
type Error struct {
	// A machine readable error code. For structured server errors this is the
	// problem document's "type" field.
	Code string
	// The HTTP status code of the response that produced the error, if any.
	StatusCode int
	// The URL of the request that produced the error, if any.
	URL string
	// A human readable description of what went wrong.
	Detail string
}

// Error returns a human readable description of the Error including the
// machine readable Code and request URL when present.
func (e *Error) Error() string {
	msg := e.Detail
	if e.Code != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Code)
	}
	if e.URL != "" {
		msg = fmt.Sprintf("%s [url: %s]", msg, e.URL)
	}
	return msg
}

// NewError creates an Error with only a Detail message.
func NewError(detail string) *Error {
	return &Error{Detail: detail}
}

// NewTransportError wraps an underlying transport failure (connection, TLS,
// timeout) for the given URL. Transport failures are never retried.
func NewTransportError(url string, err error) *Error {
	return &Error{
		URL:    url,
		Detail: fmt.Sprintf("request to %q failed: %s", url, err),
	}
}
