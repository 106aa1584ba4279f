package client

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/cpu/acmeclient/acme"
	"github.com/cpu/acmeclient/acme/resources"
)

// NewOrder creates an Order for the given DNS names with the ACME server.
// The optional notBefore/notAfter arguments request a validity window for
// the eventual certificate.
//
// For more information on Order creation see "Applying for Certificate
// Issuance" in RFC 8555:
// https://tools.ietf.org/html/rfc8555#section-7.4
func (c *Client) NewOrder(domains []string, notBefore, notAfter *time.Time) (*resources.Order, error) {
	if len(domains) == 0 {
		return nil, fmt.Errorf("newOrder: no domains specified")
	}

	identifiers := make([]resources.Identifier, 0, len(domains))
	for _, domain := range domains {
		identifiers = append(identifiers, resources.Identifier{
			Type:  "dns",
			Value: domain,
		})
	}

	req := struct {
		Identifiers []resources.Identifier `json:"identifiers"`
		NotBefore   string                 `json:"notBefore,omitempty"`
		NotAfter    string                 `json:"notAfter,omitempty"`
	}{
		Identifiers: identifiers,
	}
	if notBefore != nil {
		req.NotBefore = notBefore.Format(time.RFC3339)
	}
	if notAfter != nil {
		req.NotAfter = notAfter.Format(time.RFC3339)
	}

	reqBody, err := json.Marshal(&req)
	if err != nil {
		return nil, err
	}

	resp, err := c.Post(acme.NEW_ORDER_ENDPOINT, reqBody)
	if err != nil {
		return nil, err
	}

	if resp.Response.StatusCode != http.StatusCreated {
		return nil, generateError(acme.NEW_ORDER_ENDPOINT, resp)
	}

	locHeader := resp.Response.Header.Get(acme.LOCATION_HEADER)
	if locHeader == "" {
		return nil, acme.NewError(
			"newOrder: server returned response with no Location header")
	}

	order, err := resources.OrderFromResponse(locHeader, resp.RespBody)
	if err != nil {
		return nil, generateError(acme.NEW_ORDER_ENDPOINT, resp)
	}

	log.Printf("Created new order with ID %q\n", order.ID)
	return order, nil
}

// GetOrder fetches the current state of the Order at the given URL using
// a POST-as-GET request.
func (c *Client) GetOrder(orderURL string) (*resources.Order, error) {
	resp, err := c.PostAsGet(orderURL)
	if err != nil {
		return nil, err
	}

	if resp.Response.StatusCode != http.StatusOK {
		return nil, generateError(orderURL, resp)
	}

	order, err := resources.OrderFromResponse(orderURL, resp.RespBody)
	if err != nil {
		return nil, generateError(orderURL, resp)
	}
	return order, nil
}

// FinalizeOrder submits the given PEM encoded CSR to an Order's finalize
// URL, asking the server to issue a certificate for the Order's
// identifiers. The Order must have status "ready".
//
// See https://tools.ietf.org/html/rfc8555#section-7.4
func (c *Client) FinalizeOrder(finalizeURL string, csrPEM string) (*resources.Order, error) {
	// The finalize request wants the raw DER bytes base64url encoded, not the
	// PEM armor.
	csrDER, err := derFromPEM(csrPEM, "CERTIFICATE REQUEST")
	if err != nil {
		return nil, fmt.Errorf("finalize: %s", err)
	}

	req := struct {
		CSR string `json:"csr"`
	}{
		CSR: base64URLEncode(csrDER),
	}
	reqBody, err := json.Marshal(&req)
	if err != nil {
		return nil, err
	}

	resp, err := c.Post(finalizeURL, reqBody)
	if err != nil {
		return nil, err
	}

	if resp.Response.StatusCode != http.StatusOK {
		return nil, generateError(finalizeURL, resp)
	}

	// Some servers return the order's URL in a Location header on finalize;
	// fall back to the finalize request URL when they don't.
	orderURL := resp.Response.Header.Get(acme.LOCATION_HEADER)
	if orderURL == "" {
		orderURL = finalizeURL
	}

	order, err := resources.OrderFromResponse(orderURL, resp.RespBody)
	if err != nil {
		return nil, generateError(finalizeURL, resp)
	}

	log.Printf("Finalized order %q\n", order.ID)
	return order, nil
}

// PollOrderReady polls the Order at the given URL until its status is
// "ready", i.e. every authorization has been satisfied and the order can be
// finalized. An Order that reaches "invalid" fails immediately.
func (c *Client) PollOrderReady(orderURL string) (*resources.Order, error) {
	return c.pollOrder(orderURL, acme.StatusReady)
}

// PollOrderValid polls the Order at the given URL until its status is
// "valid", i.e. a certificate has been issued and can be downloaded. An
// Order that reaches "invalid" fails immediately.
func (c *Client) PollOrderValid(orderURL string) (*resources.Order, error) {
	return c.pollOrder(orderURL, acme.StatusValid)
}

func (c *Client) pollOrder(orderURL string, target string) (*resources.Order, error) {
	for attempt := 0; ; attempt++ {
		order, err := c.GetOrder(orderURL)
		if err != nil {
			return nil, err
		}

		switch order.Status {
		case acme.StatusInvalid:
			return nil, acme.NewError(
				fmt.Sprintf("order %q was marked as invalid", orderURL))
		case target:
			return order, nil
		}

		if c.Poll.MaxAttempts > 0 && attempt+1 >= c.Poll.MaxAttempts {
			return nil, acme.NewError(fmt.Sprintf(
				"order %q still has status %q after %d poll attempts",
				orderURL, order.Status, c.Poll.MaxAttempts))
		}
		time.Sleep(c.Poll.Interval)
	}
}

// ParseRetryAfter interprets a Retry-After response header value. A value of
// pure digits is a number of seconds; anything else must be an HTTP-date, in
// which case the wait is the time remaining until that date (never
// negative). An unparseable value is a protocol error.
//
// See https://tools.ietf.org/html/rfc7231#section-7.1.3
func ParseRetryAfter(header string) (time.Duration, error) {
	if header == "" {
		return 0, acme.NewError("empty Retry-After header")
	}

	if seconds, err := strconv.Atoi(header); err == nil {
		if seconds < 0 {
			return 0, acme.NewError(
				fmt.Sprintf("invalid Retry-After header %q", header))
		}
		return time.Duration(seconds) * time.Second, nil
	}

	date, err := http.ParseTime(header)
	if err != nil {
		return 0, acme.NewError(
			fmt.Sprintf("invalid Retry-After header %q", header))
	}

	wait := time.Until(date)
	if wait < 0 {
		wait = 0
	}
	return wait, nil
}
