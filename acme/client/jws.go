package client

import (
	"crypto"
	"errors"
	"fmt"

	jose "github.com/go-jose/go-jose/v4"

	"github.com/cpu/acmeclient/acme/keys"
)

// SigningOptions allows specifying signature related options when calling
// the Client's Sign function.
type SigningOptions struct {
	// If true, embed the account's public key as a JWK in the signed JWS
	// instead of using a KeyID header. This is required for the NewAccount
	// endpoint where no account URL exists yet. Setting EmbedKey to true is
	// mutually exclusive with a non-empty KeyID.
	EmbedKey bool
	// If not-empty, a KeyID value to use for the JWS Key ID header to identify
	// the ACME account. If empty the Client's AccountURL will be used.
	// Providing a KeyID is mutually exclusive with setting EmbedKey to true.
	KeyID string
	// If not-nil, a key to sign the JWS with. Must be an RSA key: this module
	// only produces RS256 signatures. If nil the Client's AccountKey is used.
	Signer crypto.Signer

	// nonceSource carries the nonce drawn from the Client's pool for this one
	// signing operation. Populated by Sign.
	nonceSource jose.NonceSource
}

// validate checks that the SigningOptions are sensible. This enforces the
// mutually exclusive KeyID and EmbedKey options and ensures the Signer is
// not nil. Because it checks that the Signer field is not nil it must only
// be called after populating defaults (like the Client's account key).
func (opts *SigningOptions) validate() error {
	if opts.KeyID != "" && opts.EmbedKey {
		return fmt.Errorf("SigningOptions validate: cannot specify both KeyID and EmbedKey")
	}
	if opts.KeyID == "" && !opts.EmbedKey {
		return fmt.Errorf("SigningOptions validate: you must specify a KeyID or EmbedKey")
	}
	if opts.Signer == nil {
		return fmt.Errorf("SigningOptions validate: you must specify a private key")
	}
	return nil
}

// SignResult holds the input and output from a Sign operation.
type SignResult struct {
	// The url argument given to Sign.
	InputURL string
	// The data argument given to Sign.
	InputData []byte
	// The JWS produced by signing the given data.
	JWS *jose.JSONWebSignature
	// The JWS in serialized {protected, payload, signature} form.
	SerializedJWS []byte
}

// Sign produces a SignResult by signing the provided data (with a protected
// "url" header and a nonce drawn from the Client's nonce pool) according to
// the SigningOptions provided. If no Signer is specified in the options the
// Client's AccountKey is used. If the options specify neither an embedded
// JWK nor a KeyID the Client's AccountURL is used as the Key ID.
//
// An empty data slice produces a JWS with an empty payload segment, which is
// the POST-as-GET body shape from RFC 8555 Section 6.3.
func (c *Client) Sign(url string, data []byte, opts *SigningOptions) (*SignResult, error) {
	if opts == nil {
		opts = &SigningOptions{}
	}
	if opts.Signer == nil {
		opts.Signer = c.AccountKey
	}
	if opts.Signer == nil {
		return nil, errors.New("Sign: no AccountKey and no Signer was specified in SigningOptions")
	}

	if !opts.EmbedKey && opts.KeyID == "" {
		if c.AccountURL == "" {
			return nil, errors.New(
				"Sign: no KeyID was specified and the account has not been registered")
		}
		opts.KeyID = c.AccountURL
	}

	// Now that the defaults are populated check that the resulting options are
	// valid.
	if err := opts.validate(); err != nil {
		return nil, err
	}

	if c.Output.PrintSignedData {
		c.Printf("Signing:\n%s\n", data)
	}

	// Draw the nonce for this request from the pool (or the newNonce endpoint
	// when the pool is empty).
	nonce, err := c.Nonce()
	if err != nil {
		return nil, err
	}
	opts.nonceSource = nonceValue(nonce)

	var signResult *SignResult
	if opts.EmbedKey {
		signResult, err = signEmbedded(url, data, *opts)
	} else {
		signResult, err = signKeyID(url, data, *opts)
	}
	if err != nil {
		return nil, err
	}

	if c.Output.PrintJWS {
		c.Printf("JWS:\n%s\n", string(signResult.SerializedJWS))
	}
	return signResult, nil
}

// nonceValue adapts a single prefetched nonce to the jose.NonceSource
// interface so the nonce consumed from the Client's pool ends up in the
// protected header.
type nonceValue string

func (n nonceValue) Nonce() (string, error) {
	return string(n), nil
}

func signEmbedded(url string, data []byte, opts SigningOptions) (*SignResult, error) {
	key, err := keys.RSAKey(opts.Signer)
	if err != nil {
		return nil, err
	}

	signingKey := jose.SigningKey{
		Key:       key,
		Algorithm: keys.SigAlg,
	}

	joseOpts := &jose.SignerOptions{
		NonceSource: opts.nonceSource,
		EmbedJWK:    true,
		ExtraHeaders: map[jose.HeaderKey]interface{}{
			"url": url,
		},
	}

	signer, err := jose.NewSigner(signingKey, joseOpts)
	if err != nil {
		return nil, err
	}

	return sign(signer, url, data)
}

func signKeyID(url string, data []byte, opts SigningOptions) (*SignResult, error) {
	key, err := keys.RSAKey(opts.Signer)
	if err != nil {
		return nil, err
	}

	jwk := &jose.JSONWebKey{
		Key:       key,
		Algorithm: "RSA",
		KeyID:     opts.KeyID,
	}

	signerKey := jose.SigningKey{
		Key:       jwk,
		Algorithm: keys.SigAlg,
	}

	joseOpts := &jose.SignerOptions{
		NonceSource: opts.nonceSource,
		ExtraHeaders: map[jose.HeaderKey]interface{}{
			"url": url,
		},
	}

	signer, err := jose.NewSigner(signerKey, joseOpts)
	if err != nil {
		return nil, err
	}

	return sign(signer, url, data)
}

func sign(signer jose.Signer, url string, data []byte) (*SignResult, error) {
	signed, err := signer.Sign(data)
	if err != nil {
		return nil, err
	}

	serialized := []byte(signed.FullSerialize())

	// Reparse the serialized body to get a fully populated JWS object.
	parsedJWS, err := jose.ParseSigned(string(serialized),
		[]jose.SignatureAlgorithm{keys.SigAlg})
	if err != nil {
		return nil, err
	}

	return &SignResult{
		InputURL:      url,
		InputData:     data,
		JWS:           parsedJWS,
		SerializedJWS: serialized,
	}, nil
}
