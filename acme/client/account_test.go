package client

import (
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAccount(t *testing.T) {
	ca := newTestCA(t)
	client := newTestClient(t, ca)

	acctURL := ca.url("/acct/1")
	ca.handle("/new-acct", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_, envelope := decodeJWS(t, body)

		payload, err := base64.RawURLEncoding.DecodeString(envelope.Payload)
		require.NoError(t, err)

		var req struct {
			Contact   []string `json:"contact"`
			ToSAgreed bool     `json:"termsOfServiceAgreed"`
		}
		require.NoError(t, json.Unmarshal(payload, &req))
		assert.Equal(t, []string{"mailto:admin@example.com"}, req.Contact)
		assert.True(t, req.ToSAgreed)

		ca.setNonce(w)
		w.Header().Set("Location", acctURL)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"status": "valid"}`))
	})

	acct, err := client.RegisterAccount("admin@example.com", true)
	require.NoError(t, err)
	assert.Equal(t, acctURL, acct.ID)
	assert.Equal(t, "valid", acct.Status)
	assert.Equal(t, acctURL, client.AccountURL)
}

func TestRegisterAccountExistingKey(t *testing.T) {
	ca := newTestCA(t)
	client := newTestClient(t, ca)

	// Servers answer 200 instead of 201 when the keypair is already
	// registered. That still counts as success.
	acctURL := ca.url("/acct/7")
	ca.handle("/new-acct", func(w http.ResponseWriter, r *http.Request) {
		ca.setNonce(w)
		w.Header().Set("Location", acctURL)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status": "valid"}`))
	})

	acct, err := client.RegisterAccount("", true)
	require.NoError(t, err)
	assert.Equal(t, acctURL, acct.ID)
}

func TestRegisterAccountTwice(t *testing.T) {
	ca := newTestCA(t)
	client := newTestClient(t, ca)
	client.AccountURL = ca.url("/acct/1")

	_, err := client.RegisterAccount("", true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "account already exists")
}

func TestRegisterAccountMissingLocation(t *testing.T) {
	ca := newTestCA(t)
	client := newTestClient(t, ca)

	ca.handle("/new-acct", func(w http.ResponseWriter, r *http.Request) {
		ca.setNonce(w)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"status": "valid"}`))
	})

	_, err := client.RegisterAccount("", true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no Location header")
	assert.Empty(t, client.AccountURL)
}

func TestRegisterAccountRejected(t *testing.T) {
	ca := newTestCA(t)
	client := newTestClient(t, ca)

	ca.handle("/new-acct", func(w http.ResponseWriter, r *http.Request) {
		ca.setNonce(w)
		problemJSON(w, http.StatusForbidden,
			"urn:ietf:params:acme:error:unauthorized", "no accounts for you")
	})

	_, err := client.RegisterAccount("", true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no accounts for you")
	assert.Empty(t, client.AccountURL)
}
