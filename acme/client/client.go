// Package client provides a low-level ACME v2 client and the workflow
// operations (account registration, order creation, challenge finalization,
// polling, certificate download and revocation) built on top of it.
package client

import (
	"crypto/rsa"
	"fmt"
	"log"
	"net/mail"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cpu/acmeclient/acme/keys"
	acmenet "github.com/cpu/acmeclient/net"
)

// Client allows interaction with an ACME server. Each Client owns one
// account keypair used to authenticate requests with JSON Web Signatures
// (JWS), a cache of the server's directory resource and a FIFO pool of
// replay nonces. In addition a Client maintains a map of Keys containing
// private keys that can be used for signing CSRs when finalizing orders
// (certificate keys SHOULD NOT be the account keypair, see
// https://tools.ietf.org/html/rfc8555#section-11.1).
//
// The directory cache and nonce pool are private to one Client instance.
// Both are guarded by mutexes so a Client is safe for serialized concurrent
// use, but independently progressing issuance flows should prefer one Client
// each since nonce consumption order is only meaningful per flow.
type Client struct {
	// A parsed *url.URL pointer for the ACME server's directory URL.
	DirectoryURL *url.URL
	// The RSA account keypair used for signing JWS for ACME requests.
	AccountKey *rsa.PrivateKey
	// The server assigned account URL, used as the JWS Key ID once the account
	// has been registered. Empty until RegisterAccount succeeds.
	AccountURL string
	// A map of key identifiers to private keys. These keys are used for
	// signing operations that shouldn't use the account's keypair (e.g. CSRs).
	Keys map[string]*rsa.PrivateKey
	// Options controlling the Client's output.
	Output OutputOptions
	// Options controlling the polling loops.
	Poll PollConfig
	// How long to wait before retrying a rate limited (HTTP 429) POST.
	RateLimitWait time.Duration

	// the net object is used to make HTTP GET/POST/HEAD requests to the ACME
	// server.
	net *acmenet.ACMENet

	// directory is an in-memory representation of the ACME server's directory
	// object. It is fetched lazily on first use and never refreshed within
	// a session: if the server rotates an endpoint mid-session the stale entry
	// persists.
	dirMu     sync.Mutex
	directory map[string]string

	// nonces is a FIFO pool of replay nonces saved from server responses.
	nonceMu sync.Mutex
	nonces  []string
}

// OutputOptions holds runtime output settings for a client.
type OutputOptions struct {
	// Print all HTTP requests made to the ACME server.
	PrintRequests bool
	// Print all HTTP responses from the ACME server.
	PrintResponses bool
	// Print all the input to JWS produced.
	PrintSignedData bool
	// Print the JSON serialization of all JWS produced.
	PrintJWS bool
	// Print nonce pool updates.
	PrintNonceUpdates bool
}

// PollConfig controls the polling loops used to wait for orders,
// authorizations and challenges to reach a terminal status.
type PollConfig struct {
	// How long to sleep between poll attempts.
	Interval time.Duration
	// Maximum number of fetches before giving up. Zero means poll without
	// bound: termination then relies on the server eventually moving the
	// resource to a terminal status.
	MaxAttempts int
}

// ClientConfig contains configuration options provided to NewClient when
// creating a Client instance.
type ClientConfig struct {
	// A fully qualified URL for the ACME server's directory resource. Must
	// include an HTTP/HTTPS protocol prefix. Mandatory.
	DirectoryURL string
	// An optional file path to one or more PEM encoded CA certificates to be
	// used as trust roots for HTTPS requests to the ACME server. If empty the
	// system roots are used.
	CACert string
	// An optional email address used as the account's "mailto:" contact when
	// registering.
	ContactEmail string
	// An optional PEM encoded RSA private key to use as the account keypair.
	// If empty a fresh key is generated.
	AccountKeyPEM []byte
	// If AutoRegister is true NewClient will register an account with the ACME
	// server immediately. If ContactEmail is specified it will be used as the
	// new account's contact address.
	AutoRegister bool
	// Initial OutputOptions settings.
	InitialOutput OutputOptions
}

// normalize validates a ClientConfig.
func (conf *ClientConfig) normalize() error {
	// Clean up any junk whitespace that might have snuck in
	conf.DirectoryURL = strings.TrimSpace(conf.DirectoryURL)
	conf.ContactEmail = strings.TrimSpace(conf.ContactEmail)

	if conf.DirectoryURL == "" {
		return fmt.Errorf("DirectoryURL must not be empty")
	}

	if _, err := url.Parse(conf.DirectoryURL); err != nil {
		return fmt.Errorf("DirectoryURL invalid: %s", err.Error())
	}

	if conf.ContactEmail != "" {
		addr, err := mail.ParseAddress(conf.ContactEmail)
		if err != nil {
			return fmt.Errorf("ContactEmail is invalid: %s", err.Error())
		}
		conf.ContactEmail = addr.Address
	}

	return nil
}

// NewClient creates a Client instance from the given ClientConfig. If the
// config is not valid or if another error occurs it will be returned along
// with a nil Client.
func NewClient(config ClientConfig) (*Client, error) {
	// Validate the ClientConfig has no errors when normalized.
	if err := config.normalize(); err != nil {
		return nil, err
	}

	// Create the ACME net client
	net, err := acmenet.New(config.CACert)
	if err != nil {
		return nil, fmt.Errorf("unable to create ACME net client: %s", err)
	}

	// NOTE: Its safe to throw away the returned err here because we check
	// that `url.Parse` will succeed in `config.normalize()` above.
	dirURL, _ := url.Parse(config.DirectoryURL)

	var accountKey *rsa.PrivateKey
	if len(config.AccountKeyPEM) != 0 {
		accountKey, err = keys.LoadSigner(config.AccountKeyPEM)
		if err != nil {
			return nil, fmt.Errorf("unable to load account key: %s", err)
		}
	} else {
		accountKey, err = keys.NewSigner()
		if err != nil {
			return nil, err
		}
	}

	client := &Client{
		DirectoryURL:  dirURL,
		AccountKey:    accountKey,
		Keys:          map[string]*rsa.PrivateKey{},
		Output:        config.InitialOutput,
		Poll:          PollConfig{Interval: defaultPollInterval},
		RateLimitWait: defaultRateLimitWait,
		net:           net,
	}

	if config.AutoRegister {
		log.Printf("AutoRegister is enabled. Registering a new account\n")
		if _, err := client.RegisterAccount(config.ContactEmail, true); err != nil {
			return nil, err
		}
	}

	return client, nil
}

const (
	defaultPollInterval = 3 * time.Second
	// How long a rate limited POST waits before its next attempt.
	defaultRateLimitWait = 1 * time.Second
)

func (c *Client) Printf(format string, vals ...interface{}) {
	log.Printf(format, vals...)
}
