package client

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/cpu/acmeclient/acme"
	"github.com/cpu/acmeclient/acme/resources"
)

// GetAuthorization fetches the current state of the Authorization at the
// given URL using a POST-as-GET request.
func (c *Client) GetAuthorization(authzURL string) (*resources.Authorization, error) {
	resp, err := c.PostAsGet(authzURL)
	if err != nil {
		return nil, err
	}

	if resp.Response.StatusCode != http.StatusOK {
		return nil, generateError(authzURL, resp)
	}

	authz, err := resources.AuthorizationFromResponse(authzURL, resp.RespBody)
	if err != nil {
		return nil, generateError(authzURL, resp)
	}
	return authz, nil
}

// GetChallenge fetches the current state of the Challenge at the given URL
// using a POST-as-GET request.
func (c *Client) GetChallenge(challURL string) (*resources.Challenge, error) {
	resp, err := c.PostAsGet(challURL)
	if err != nil {
		return nil, err
	}

	if resp.Response.StatusCode != http.StatusOK {
		return nil, generateError(challURL, resp)
	}

	chall, err := resources.ChallengeFromResponse(resp.RespBody)
	if err != nil {
		return nil, generateError(challURL, resp)
	}
	return chall, nil
}

// FinalizeChallenge POSTs an empty JSON object to the Challenge at the given
// URL, signaling to the server that the challenge response is provisioned
// and validation may begin.
//
// See https://tools.ietf.org/html/rfc8555#section-7.5.1
func (c *Client) FinalizeChallenge(challURL string) (*resources.Challenge, error) {
	reqBody, err := json.Marshal(struct{}{})
	if err != nil {
		return nil, err
	}

	resp, err := c.Post(challURL, reqBody)
	if err != nil {
		return nil, err
	}

	if resp.Response.StatusCode != http.StatusOK {
		return nil, generateError(challURL, resp)
	}

	chall, err := resources.ChallengeFromResponse(resp.RespBody)
	if err != nil {
		return nil, generateError(challURL, resp)
	}

	log.Printf("Initiated validation of challenge %q\n", chall.URL)
	return chall, nil
}

// PollAuthorization polls the Authorization at the given URL until its
// status is "valid". An Authorization that reaches "invalid" fails
// immediately.
func (c *Client) PollAuthorization(authzURL string) (*resources.Authorization, error) {
	for attempt := 0; ; attempt++ {
		authz, err := c.GetAuthorization(authzURL)
		if err != nil {
			return nil, err
		}

		switch authz.Status {
		case acme.StatusInvalid:
			return nil, acme.NewError(
				fmt.Sprintf("authorization %q was marked as invalid", authzURL))
		case acme.StatusValid:
			return authz, nil
		}

		if c.Poll.MaxAttempts > 0 && attempt+1 >= c.Poll.MaxAttempts {
			return nil, acme.NewError(fmt.Sprintf(
				"authorization %q still has status %q after %d poll attempts",
				authzURL, authz.Status, c.Poll.MaxAttempts))
		}
		time.Sleep(c.Poll.Interval)
	}
}
