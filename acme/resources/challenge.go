package resources

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/cpu/acmeclient/acme"
)

// The ACME Challenge resource represents an action that the client must take
// to authorize a given account for a specific identifier in order to issue
// a certificate containing that identifier.
//
// For information about the Challenge resource see
// https://tools.ietf.org/html/rfc8555#section-7.1.5
//
// To understand the Challenge types specified by RFC 8555 see
// https://tools.ietf.org/html/rfc8555#section-8
type Challenge struct {
	// The Type of the challenge (expected values include "http-01", "dns-01",
	// "tls-alpn-01").
	Type string
	// The URL of the challenge (provided by the server in the associated
	// Authorization).
	URL string
	// The Status of the challenge.
	Status string
	// The Token used for constructing the challenge response for this
	// challenge. Optional for challenge types that do not use a token.
	Token string
	// The time at which the server validated the challenge, if it has.
	Validated time.Time
	// The Error associated with an invalid challenge.
	Error *Problem
}

// String returns the URL of the Challenge.
func (c Challenge) String() string {
	return c.URL
}

// challengeStatuses is the closed set of Challenge status values.
// See https://tools.ietf.org/html/rfc8555#section-7.1.6
var challengeStatuses = []string{
	acme.StatusPending,
	acme.StatusProcessing,
	acme.StatusValid,
	acme.StatusInvalid,
}

type rawChallenge struct {
	Type      *string  `json:"type"`
	URL       *string  `json:"url"`
	Status    *string  `json:"status"`
	Token     *string  `json:"token"`
	Validated *string  `json:"validated"`
	Error     *Problem `json:"error"`
}

// ChallengeFromResponse constructs a Challenge from the JSON body of
// a server response. Unlike the other resources a Challenge's URL comes from
// the body rather than a response header.
func ChallengeFromResponse(body []byte) (*Challenge, error) {
	var raw rawChallenge
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, acme.NewError(
			fmt.Sprintf("invalid challenge response: %s", err))
	}
	return challengeFromRaw(raw)
}

func challengeFromRaw(raw rawChallenge) (*Challenge, error) {
	challType, err := requireString("challenge", "type", raw.Type)
	if err != nil {
		return nil, err
	}

	url, err := requireString("challenge", "url", raw.URL)
	if err != nil {
		return nil, err
	}

	status, err := requireStatus("challenge", raw.Status, challengeStatuses)
	if err != nil {
		return nil, err
	}

	validated, err := optionalTime("challenge", "validated", raw.Validated)
	if err != nil {
		return nil, err
	}

	return &Challenge{
		Type:      challType,
		URL:       url,
		Status:    status,
		Token:     optionalString(raw.Token),
		Validated: validated,
		Error:     raw.Error,
	}, nil
}
