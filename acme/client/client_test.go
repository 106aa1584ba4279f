package client

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cpu/acmeclient/acme/keys"
)

// testCA is a minimal in-memory ACME server for exercising the client. It
// serves a directory and a nonce endpoint out of the box; tests register
// additional handlers for the resources they exercise.
type testCA struct {
	t      *testing.T
	mux    *http.ServeMux
	server *httptest.Server

	mu           sync.Mutex
	nonceCounter int
	headRequests int
}

func newTestCA(t *testing.T) *testCA {
	ca := &testCA{t: t, mux: http.NewServeMux()}
	ca.server = httptest.NewServer(ca.mux)
	t.Cleanup(ca.server.Close)

	ca.mux.HandleFunc("/dir", ca.directoryHandler)
	ca.mux.HandleFunc("/nonce", ca.nonceHandler)
	return ca
}

func (ca *testCA) url(path string) string {
	return ca.server.URL + path
}

// handle registers a handler for a path. Handlers are responsible for
// calling ca.setNonce themselves if they want to hand out a fresh nonce.
func (ca *testCA) handle(path string, handler http.HandlerFunc) {
	ca.mux.HandleFunc(path, handler)
}

func (ca *testCA) setNonce(w http.ResponseWriter) {
	ca.mu.Lock()
	ca.nonceCounter++
	nonce := fmt.Sprintf("nonce-%d", ca.nonceCounter)
	ca.mu.Unlock()
	w.Header().Set("Replay-Nonce", nonce)
}

func (ca *testCA) headRequestCount() int {
	ca.mu.Lock()
	defer ca.mu.Unlock()
	return ca.headRequests
}

// directoryHandler serves the directory without a Replay-Nonce header, like
// most real CAs: nonce counting tests rely on the pool only being fed by the
// endpoints under test.
func (ca *testCA) directoryHandler(w http.ResponseWriter, r *http.Request) {
	dir := map[string]string{
		"newNonce":   ca.url("/nonce"),
		"newAccount": ca.url("/new-acct"),
		"newOrder":   ca.url("/new-order"),
		"revokeCert": ca.url("/revoke-cert"),
		"keyChange":  ca.url("/key-change"),
	}
	_ = json.NewEncoder(w).Encode(dir)
}

func (ca *testCA) nonceHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodHead {
		ca.mu.Lock()
		ca.headRequests++
		ca.mu.Unlock()
	}
	ca.setNonce(w)
	w.WriteHeader(http.StatusOK)
}

// problemJSON writes an RFC 7807 problem document with the given status.
func problemJSON(w http.ResponseWriter, status int, probType, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	fmt.Fprintf(w, `{"type": %q, "detail": %q}`, probType, detail)
}

func newTestClient(t *testing.T, ca *testCA) *Client {
	client, err := NewClient(ClientConfig{DirectoryURL: ca.url("/dir")})
	require.NoError(t, err)
	// Tight timings so retry/poll tests run fast.
	client.Poll = PollConfig{Interval: time.Millisecond, MaxAttempts: 50}
	client.RateLimitWait = time.Millisecond
	return client
}

// seedNonce hands the client a pooled nonce so signing doesn't need the
// newNonce endpoint.
func seedNonce(client *Client, nonce string) {
	client.saveNonce(&http.Response{
		Header: http.Header{"Replay-Nonce": []string{nonce}},
	})
}

// jwsEnvelope is the serialized JWS shape POSTed by the client.
type jwsEnvelope struct {
	Protected string `json:"protected"`
	Payload   string `json:"payload"`
	Signature string `json:"signature"`
}

// decodeJWS splits a serialized JWS request body into its decoded protected
// header and the raw (still base64url encoded) payload segment.
func decodeJWS(t *testing.T, body []byte) (map[string]interface{}, jwsEnvelope) {
	t.Helper()

	var envelope jwsEnvelope
	require.NoError(t, json.Unmarshal(body, &envelope))
	require.NotEmpty(t, envelope.Protected)
	require.NotEmpty(t, envelope.Signature)

	protectedJSON, err := base64.RawURLEncoding.DecodeString(envelope.Protected)
	require.NoError(t, err)

	var protected map[string]interface{}
	require.NoError(t, json.Unmarshal(protectedJSON, &protected))
	return protected, envelope
}

func TestNewClientConfigValidation(t *testing.T) {
	_, err := NewClient(ClientConfig{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "DirectoryURL")

	_, err = NewClient(ClientConfig{
		DirectoryURL: "https://ca.example.com/dir",
		ContactEmail: "not an email @@",
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "ContactEmail")
}

func TestNewClientLoadsAccountKey(t *testing.T) {
	ca := newTestCA(t)

	first := newTestClient(t, ca)

	second, err := NewClient(ClientConfig{
		DirectoryURL:  ca.url("/dir"),
		AccountKeyPEM: []byte(keys.SignerToPEM(first.AccountKey)),
	})
	require.NoError(t, err)
	require.Equal(t, first.AccountKey.N, second.AccountKey.N)
}
