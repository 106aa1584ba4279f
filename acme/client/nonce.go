package client

import (
	"fmt"
	"log"
	"net/http"

	"github.com/cpu/acmeclient/acme"
)

// Nonce satisfies the JWS "NonceSource" interface. Nonces saved from earlier
// responses are consumed from the pool front-first (FIFO). When the pool is
// empty a fresh nonce is fetched from the server's newNonce endpoint with
// a HEAD request and returned directly.
//
// See https://tools.ietf.org/html/rfc8555#section-7.2
func (c *Client) Nonce() (string, error) {
	c.nonceMu.Lock()
	if len(c.nonces) > 0 {
		nonce := c.nonces[0]
		c.nonces = c.nonces[1:]
		c.nonceMu.Unlock()
		return nonce, nil
	}
	c.nonceMu.Unlock()

	return c.fetchNonce()
}

// fetchNonce requests a fresh nonce from the newNonce endpoint. The response
// must carry a Replay-Nonce header or an error is returned.
func (c *Client) fetchNonce() (string, error) {
	nonceURL, err := c.ResolveURL(acme.NEW_NONCE_ENDPOINT)
	if err != nil {
		return "", err
	}

	if c.Output.PrintNonceUpdates {
		log.Printf("Sending HTTP HEAD request to %q\n", nonceURL)
	}

	resp, err := c.net.HeadURL(nonceURL)
	if err != nil {
		return "", acme.NewTransportError(nonceURL, err)
	}

	nonce := resp.Header.Get(acme.REPLAY_NONCE_HEADER)
	if nonce == "" {
		return "", &acme.Error{
			StatusCode: resp.StatusCode,
			URL:        nonceURL,
			Detail: fmt.Sprintf("%q returned no %q header value",
				acme.NEW_NONCE_ENDPOINT, acme.REPLAY_NONCE_HEADER),
		}
	}

	if c.Output.PrintNonceUpdates {
		log.Printf("Fetched nonce %q", nonce)
	}
	return nonce, nil
}

// saveNonce pushes the Replay-Nonce header of a response (if any) onto the
// back of the nonce pool. It is called after every GET and POST, for
// successful and error responses alike.
func (c *Client) saveNonce(resp *http.Response) {
	if resp == nil {
		return
	}
	nonce := resp.Header.Get(acme.REPLAY_NONCE_HEADER)
	if nonce == "" {
		return
	}

	c.nonceMu.Lock()
	c.nonces = append(c.nonces, nonce)
	c.nonceMu.Unlock()

	if c.Output.PrintNonceUpdates {
		log.Printf("Saved nonce %q", nonce)
	}
}

// clearNonces empties the nonce pool. Used when the server rejects a request
// with badNonce: every pooled nonce is suspect at that point and the next
// signing operation must fetch a fresh one.
func (c *Client) clearNonces() {
	c.nonceMu.Lock()
	c.nonces = nil
	c.nonceMu.Unlock()

	if c.Output.PrintNonceUpdates {
		log.Printf("Cleared nonce pool")
	}
}
