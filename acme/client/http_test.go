package client

import (
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cpu/acmeclient/acme"
)

func TestPostRetriesBadNonce(t *testing.T) {
	ca := newTestCA(t)
	client := newTestClient(t, ca)
	client.AccountURL = ca.url("/acct/1")

	var posts int
	ca.handle("/flaky", func(w http.ResponseWriter, r *http.Request) {
		posts++
		ca.setNonce(w)
		if posts == 1 {
			problemJSON(w, http.StatusBadRequest,
				"urn:ietf:params:acme:error:badNonce", "stale nonce")
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	seedNonce(client, "stale")
	resp, err := client.Post(ca.url("/flaky"), []byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Response.StatusCode)
	assert.Equal(t, 2, posts)

	// The badNonce rejection cleared the pool, so the retry fetched fresh.
	assert.Equal(t, 1, ca.headRequestCount())
}

func TestPostBadNonceBudgetExhausted(t *testing.T) {
	ca := newTestCA(t)
	client := newTestClient(t, ca)
	client.AccountURL = ca.url("/acct/1")

	var posts int
	ca.handle("/always-bad", func(w http.ResponseWriter, r *http.Request) {
		posts++
		ca.setNonce(w)
		problemJSON(w, http.StatusBadRequest,
			"urn:ietf:params:acme:error:badNonce", "stale nonce")
	})

	seedNonce(client, "stale")
	_, err := client.Post(ca.url("/always-bad"), []byte(`{}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too many errors (last code: 400)")
	assert.Equal(t, postAttempts, posts)
}

func TestPostRetriesRateLimit(t *testing.T) {
	ca := newTestCA(t)
	client := newTestClient(t, ca)
	client.AccountURL = ca.url("/acct/1")

	var posts int
	ca.handle("/limited", func(w http.ResponseWriter, r *http.Request) {
		posts++
		ca.setNonce(w)
		if posts < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	seedNonce(client, "n1")
	resp, err := client.Post(ca.url("/limited"), []byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Response.StatusCode)
	assert.Equal(t, 3, posts)
}

func TestPostRateLimitHonorsRetryAfter(t *testing.T) {
	ca := newTestCA(t)
	client := newTestClient(t, ca)
	client.AccountURL = ca.url("/acct/1")
	// A long fallback makes the test hang if the header were ignored.
	client.RateLimitWait = time.Minute

	var posts int
	ca.handle("/limited-once", func(w http.ResponseWriter, r *http.Request) {
		posts++
		ca.setNonce(w)
		if posts == 1 {
			w.Header().Set(acme.RETRY_AFTER_HEADER, "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	seedNonce(client, "n1")
	done := make(chan struct{})
	go func() {
		defer close(done)
		resp, err := client.Post(ca.url("/limited-once"), []byte(`{}`))
		assert.NoError(t, err)
		if err == nil {
			assert.Equal(t, http.StatusOK, resp.Response.StatusCode)
		}
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("Post did not honor the Retry-After header")
	}
	assert.Equal(t, 2, posts)
}

func TestPostRateLimitBudgetExhausted(t *testing.T) {
	ca := newTestCA(t)
	client := newTestClient(t, ca)
	client.AccountURL = ca.url("/acct/1")

	ca.handle("/always-limited", func(w http.ResponseWriter, r *http.Request) {
		ca.setNonce(w)
		w.WriteHeader(http.StatusTooManyRequests)
	})

	seedNonce(client, "n1")
	_, err := client.Post(ca.url("/always-limited"), []byte(`{}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too many errors (last code: 429)")
}

func TestPostOtherErrorsNotRetried(t *testing.T) {
	ca := newTestCA(t)
	client := newTestClient(t, ca)
	client.AccountURL = ca.url("/acct/1")

	var posts int
	ca.handle("/unauthorized", func(w http.ResponseWriter, r *http.Request) {
		posts++
		ca.setNonce(w)
		problemJSON(w, http.StatusForbidden,
			"urn:ietf:params:acme:error:unauthorized", "nope")
	})

	seedNonce(client, "n1")
	resp, err := client.Post(ca.url("/unauthorized"), []byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.Response.StatusCode)
	assert.Equal(t, 1, posts)
}

func TestPostNewAccountEmbedsJWK(t *testing.T) {
	ca := newTestCA(t)
	client := newTestClient(t, ca)

	ca.handle("/new-acct", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		protected, _ := decodeJWS(t, body)
		assert.Contains(t, protected, "jwk")
		assert.NotContains(t, protected, "kid")

		ca.setNonce(w)
		w.WriteHeader(http.StatusOK)
	})

	_, err := client.Post(acme.NEW_ACCOUNT_ENDPOINT, []byte(`{}`))
	require.NoError(t, err)
}

func TestPostOtherResourcesUseKeyID(t *testing.T) {
	ca := newTestCA(t)
	client := newTestClient(t, ca)
	client.AccountURL = ca.url("/acct/1")

	ca.handle("/new-order", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		protected, _ := decodeJWS(t, body)
		assert.Equal(t, ca.url("/acct/1"), protected["kid"])
		assert.NotContains(t, protected, "jwk")

		ca.setNonce(w)
		w.WriteHeader(http.StatusOK)
	})

	_, err := client.Post(acme.NEW_ORDER_ENDPOINT, []byte(`{}`))
	require.NoError(t, err)
}

func TestPostAsGetEmptyPayload(t *testing.T) {
	ca := newTestCA(t)
	client := newTestClient(t, ca)
	client.AccountURL = ca.url("/acct/1")

	ca.handle("/order/1", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_, envelope := decodeJWS(t, body)
		assert.Empty(t, envelope.Payload)

		ca.setNonce(w)
		w.WriteHeader(http.StatusOK)
	})

	seedNonce(client, "n1")
	_, err := client.PostAsGet(ca.url("/order/1"))
	require.NoError(t, err)
}

func TestGetSavesNonce(t *testing.T) {
	ca := newTestCA(t)
	client := newTestClient(t, ca)

	ca.handle("/plain", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(acme.REPLAY_NONCE_HEADER, "from-get")
		w.WriteHeader(http.StatusOK)
	})

	_, err := client.Get(ca.url("/plain"))
	require.NoError(t, err)

	nonce, err := client.Nonce()
	require.NoError(t, err)
	assert.Equal(t, "from-get", nonce)
}

func TestIsBadNonce(t *testing.T) {
	assert.True(t, isBadNonce(
		[]byte(`{"type": "urn:ietf:params:acme:error:badNonce"}`)))
	assert.True(t, isBadNonce(
		[]byte(`{"type": "acme:error:badNonce", "detail": "stale"}`)))
	assert.False(t, isBadNonce(
		[]byte(`{"type": "urn:ietf:params:acme:error:malformed"}`)))
	assert.False(t, isBadNonce([]byte(`not json`)))
	assert.False(t, isBadNonce(nil))
}

func TestGenerateError(t *testing.T) {
	ca := newTestCA(t)
	client := newTestClient(t, ca)
	client.AccountURL = ca.url("/acct/1")

	ca.handle("/problem", func(w http.ResponseWriter, r *http.Request) {
		ca.setNonce(w)
		problemJSON(w, http.StatusNotFound,
			"urn:ietf:params:acme:error:orderNotReady", "not yet")
	})
	ca.handle("/plain-error", func(w http.ResponseWriter, r *http.Request) {
		ca.setNonce(w)
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream sadness"))
	})

	resp, err := client.Post(ca.url("/problem"), []byte(`{}`))
	require.NoError(t, err)
	acmeErr := generateError(ca.url("/problem"), resp)
	assert.Equal(t, "urn:ietf:params:acme:error:orderNotReady", acmeErr.Code)
	assert.Equal(t, "not yet", acmeErr.Detail)
	assert.Equal(t, http.StatusNotFound, acmeErr.StatusCode)

	resp, err = client.Post(ca.url("/plain-error"), []byte(`{}`))
	require.NoError(t, err)
	acmeErr = generateError(ca.url("/plain-error"), resp)
	assert.Empty(t, acmeErr.Code)
	assert.Equal(t, "upstream sadness", acmeErr.Detail)
	assert.Equal(t, http.StatusBadGateway, acmeErr.StatusCode)
}
