package client

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/cpu/acmeclient/acme"
	"github.com/cpu/acmeclient/acme/resources"
)

// RegisterAccount registers the Client's account keypair with the ACME
// server via the newAccount endpoint. The request is signed with an embedded
// JWK since no account URL exists yet. On success the server assigned
// account URL from the Location header becomes the Client's AccountURL and
// is used as the JWS Key ID for all subsequent requests.
//
// If email is not empty it is sent as a "mailto:" contact address.
// The tosAgreed argument is forwarded as the termsOfServiceAgreed field;
// most servers reject registration unless it is true.
//
// For more information on account creation see
// https://tools.ietf.org/html/rfc8555#section-7.3
func (c *Client) RegisterAccount(email string, tosAgreed bool) (*resources.Account, error) {
	if c.AccountURL != "" {
		return nil, fmt.Errorf(
			"register: account already exists under ID %q", c.AccountURL)
	}

	newAcctReq := struct {
		Contact   []string `json:"contact,omitempty"`
		ToSAgreed bool     `json:"termsOfServiceAgreed"`
	}{
		ToSAgreed: tosAgreed,
	}
	if email != "" {
		newAcctReq.Contact = []string{fmt.Sprintf("mailto:%s", email)}
	}

	reqBody, err := json.Marshal(&newAcctReq)
	if err != nil {
		return nil, err
	}

	resp, err := c.Post(acme.NEW_ACCOUNT_ENDPOINT, reqBody)
	if err != nil {
		return nil, err
	}

	respOb := resp.Response
	// 200 is returned instead of 201 when the keypair was already registered.
	if respOb.StatusCode != http.StatusCreated && respOb.StatusCode != http.StatusOK {
		return nil, generateError(acme.NEW_ACCOUNT_ENDPOINT, resp)
	}

	locHeader := respOb.Header.Get(acme.LOCATION_HEADER)
	if locHeader == "" {
		return nil, acme.NewError(
			"register: server returned response with no Location header")
	}

	acct, err := resources.AccountFromResponse(locHeader, resp.RespBody)
	if err != nil {
		// Surface the response-shaped error instead of the raw parse failure.
		return nil, generateError(acme.NEW_ACCOUNT_ENDPOINT, resp)
	}

	c.AccountURL = acct.ID
	log.Printf("Registered account with ID %q\n", acct.ID)
	return acct, nil
}
