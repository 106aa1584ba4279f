package client

import (
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAuthzJSON(status string) string {
	return fmt.Sprintf(`{
		"status": %q,
		"expires": "2030-01-02T15:04:05Z",
		"identifier": {"type": "dns", "value": "example.com"},
		"challenges": [
			{
				"type": "http-01",
				"url": "https://ca.example.com/chall/1",
				"status": "pending",
				"token": "tok-1"
			}
		]
	}`, status)
}

func testChallengeJSON(status string) string {
	return fmt.Sprintf(`{
		"type": "http-01",
		"url": "https://ca.example.com/chall/1",
		"status": %q,
		"token": "tok-1"
	}`, status)
}

func TestGetAuthorization(t *testing.T) {
	ca := newTestCA(t)
	client := registeredTestClient(t, ca)

	ca.handle("/authz/1", func(w http.ResponseWriter, r *http.Request) {
		ca.setNonce(w)
		_, _ = w.Write([]byte(testAuthzJSON("pending")))
	})

	authz, err := client.GetAuthorization(ca.url("/authz/1"))
	require.NoError(t, err)
	assert.Equal(t, ca.url("/authz/1"), authz.ID)
	assert.Equal(t, "example.com", authz.Identifier.Value)
	require.Len(t, authz.Challenges, 1)
	assert.Equal(t, "tok-1", authz.Challenges[0].Token)
}

func TestGetChallenge(t *testing.T) {
	ca := newTestCA(t)
	client := registeredTestClient(t, ca)

	ca.handle("/chall/1", func(w http.ResponseWriter, r *http.Request) {
		ca.setNonce(w)
		_, _ = w.Write([]byte(testChallengeJSON("pending")))
	})

	chall, err := client.GetChallenge(ca.url("/chall/1"))
	require.NoError(t, err)
	assert.Equal(t, "http-01", chall.Type)
	assert.Equal(t, "tok-1", chall.Token)
}

func TestFinalizeChallenge(t *testing.T) {
	ca := newTestCA(t)
	client := registeredTestClient(t, ca)

	ca.handle("/chall/1", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_, envelope := decodeJWS(t, body)

		// Initiating a challenge POSTs the empty JSON object, not an empty
		// payload: an empty payload would be a POST-as-GET.
		payload, err := base64.RawURLEncoding.DecodeString(envelope.Payload)
		require.NoError(t, err)
		assert.Equal(t, "{}", string(payload))

		ca.setNonce(w)
		_, _ = w.Write([]byte(testChallengeJSON("processing")))
	})

	chall, err := client.FinalizeChallenge(ca.url("/chall/1"))
	require.NoError(t, err)
	assert.Equal(t, "processing", chall.Status)
}

func TestPollAuthorization(t *testing.T) {
	ca := newTestCA(t)
	client := registeredTestClient(t, ca)

	var fetches int
	ca.handle("/authz/1", func(w http.ResponseWriter, r *http.Request) {
		fetches++
		ca.setNonce(w)
		status := "pending"
		if fetches >= 2 {
			status = "valid"
		}
		_, _ = w.Write([]byte(testAuthzJSON(status)))
	})

	authz, err := client.PollAuthorization(ca.url("/authz/1"))
	require.NoError(t, err)
	assert.Equal(t, "valid", authz.Status)
	assert.Equal(t, 2, fetches)
}

func TestPollAuthorizationInvalidFailsFast(t *testing.T) {
	ca := newTestCA(t)
	client := registeredTestClient(t, ca)

	var fetches int
	ca.handle("/authz/1", func(w http.ResponseWriter, r *http.Request) {
		fetches++
		ca.setNonce(w)
		_, _ = w.Write([]byte(testAuthzJSON("invalid")))
	})

	_, err := client.PollAuthorization(ca.url("/authz/1"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "was marked as invalid")
	assert.Equal(t, 1, fetches)
}
