package acme

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorFormatting(t *testing.T) {
	err := &Error{Detail: "something broke"}
	assert.Equal(t, "something broke", err.Error())

	err = &Error{
		Code:   "urn:ietf:params:acme:error:malformed",
		Detail: "something broke",
	}
	assert.Equal(t,
		"something broke (urn:ietf:params:acme:error:malformed)",
		err.Error())

	err = &Error{
		Code:   "urn:ietf:params:acme:error:malformed",
		URL:    "https://ca.example.com/acme/new-order",
		Detail: "something broke",
	}
	assert.Contains(t, err.Error(), "url: https://ca.example.com/acme/new-order")
}

func TestNewTransportError(t *testing.T) {
	err := NewTransportError("https://ca.example.com/dir", errors.New("connection refused"))
	assert.Equal(t, "https://ca.example.com/dir", err.URL)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Contains(t, err.Error(), "https://ca.example.com/dir")
	assert.Empty(t, err.Code)
}
