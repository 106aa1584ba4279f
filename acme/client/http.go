package client

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/cpu/acmeclient/acme"
	"github.com/cpu/acmeclient/acme/resources"
	"github.com/cpu/acmeclient/net"
)

// postAttempts is the total POST attempt budget. Retries triggered by
// badNonce rejections and HTTP 429 rate limiting share this one budget; any
// other outcome is returned to the caller on the first attempt.
const postAttempts = 3

// Get resolves the given directory resource name (or absolute URL) and
// issues an unauthenticated GET request to it. The Replay-Nonce header of
// the response, if any, is saved to the nonce pool. Transport failures are
// wrapped into an *acme.Error naming the URL. No retries are performed.
func (c *Client) Get(resource string) (*net.NetResponse, error) {
	resolvedURL, err := c.ResolveURL(resource)
	if err != nil {
		return nil, err
	}

	resp, err := c.net.GetURL(resolvedURL)
	if err != nil {
		return nil, acme.NewTransportError(resolvedURL, err)
	}
	c.saveNonce(resp.Response)

	c.printExchange(resp)
	return resp, nil
}

// PostAsGet issues a POST-as-GET request (signed JWS with an empty payload)
// to the given resource. See https://tools.ietf.org/html/rfc8555#section-6.3
func (c *Client) PostAsGet(resource string) (*net.NetResponse, error) {
	return c.Post(resource, nil)
}

// Post resolves the given directory resource name (or absolute URL), signs
// the payload into a JWS and POSTs it. A nil payload produces a POST-as-GET
// body. The NewAccount endpoint is signed with an embedded JWK ("by-key"
// authentication); every other resource uses the registered account URL as
// the JWS Key ID.
//
// Two server responses are retried automatically, sharing a budget of three
// total attempts: a 400 whose problem type names badNonce (the nonce pool is
// cleared first) and a 429 rate limit (after the server's Retry-After wait,
// or a short default when the header is absent). When the budget
// is exhausted an error containing the last status code is returned. All
// other responses, including other 4xx/5xx, are returned as-is: error
// interpretation is the caller's responsibility.
func (c *Client) Post(resource string, payload []byte) (*net.NetResponse, error) {
	resolvedURL, err := c.ResolveURL(resource)
	if err != nil {
		return nil, err
	}

	opts := &SigningOptions{}
	if resourceRequiresEmbeddedJWK(resource) {
		opts.EmbedKey = true
	}

	var lastCode int
	for attempt := 0; attempt < postAttempts; attempt++ {
		signResult, err := c.Sign(resolvedURL, payload, opts)
		if err != nil {
			return nil, err
		}

		resp, err := c.net.PostURL(resolvedURL, signResult.SerializedJWS)
		if err != nil {
			return nil, acme.NewTransportError(resolvedURL, err)
		}
		c.saveNonce(resp.Response)
		c.printExchange(resp)

		lastCode = resp.Response.StatusCode
		switch {
		case lastCode == http.StatusBadRequest && isBadNonce(resp.RespBody):
			// Every pooled nonce is suspect. Start over with a fresh fetch.
			c.clearNonces()
			log.Printf("Server rejected our nonce. Retrying %q", resolvedURL)
			continue
		case lastCode == http.StatusTooManyRequests:
			wait := c.RateLimitWait
			if header := resp.Response.Header.Get(acme.RETRY_AFTER_HEADER); header != "" {
				if parsed, err := ParseRetryAfter(header); err == nil {
					wait = parsed
				}
			}
			log.Printf("Rate limited by %q. Waiting %s before retrying",
				resolvedURL, wait)
			time.Sleep(wait)
			continue
		}
		return resp, nil
	}

	return nil, &acme.Error{
		StatusCode: lastCode,
		URL:        resolvedURL,
		Detail:     fmt.Sprintf("too many errors (last code: %d)", lastCode),
	}
}

// resourceRequiresEmbeddedJWK is the fixed "by-key" predicate: the
// newAccount resource is the only one signed with an embedded JWK, since no
// account URL exists before it succeeds.
func resourceRequiresEmbeddedJWK(resource string) bool {
	return resource == acme.NEW_ACCOUNT_ENDPOINT
}

// isBadNonce reports whether an error response body names the badNonce
// problem type. Only the type field matters here; a server may omit detail.
func isBadNonce(body []byte) bool {
	var prob struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(body, &prob); err != nil {
		return false
	}
	return strings.Contains(prob.Type, acme.BAD_NONCE_ERROR)
}

// generateError turns a non-success server response into an *acme.Error.
// A problem document body with type and detail fields yields an error whose
// machine code is the server's error type; any other body is carried
// verbatim with the HTTP status code.
func generateError(url string, resp *net.NetResponse) *acme.Error {
	if prob := resources.ProblemFromBody(resp.RespBody); prob != nil {
		return &acme.Error{
			Code:       prob.Type,
			StatusCode: resp.Response.StatusCode,
			URL:        url,
			Detail:     prob.Detail,
		}
	}
	return &acme.Error{
		StatusCode: resp.Response.StatusCode,
		URL:        url,
		Detail:     string(resp.RespBody),
	}
}

func (c *Client) printExchange(resp *net.NetResponse) {
	if c.Output.PrintRequests {
		c.Printf("Request:\n%s\n", resp.ReqDump)
	}
	if c.Output.PrintResponses {
		c.Printf("Response:\n%s\n", resp.RespDump)
	}
}
