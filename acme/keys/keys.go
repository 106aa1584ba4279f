// Package keys offers utility functions for working with the RSA account
// keys used for ACME request signing, JWKs and PEM serialization.
//
// Only RSA keys signed with RS256 are supported. Loading or signing with any
// other key type fails with an error rather than being silently accepted.
package keys

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"fmt"

	jose "github.com/go-jose/go-jose/v4"
)

// SigAlg is the one JWS signature algorithm this module produces.
const SigAlg = jose.RS256

// NewSigner generates a fresh 2048 bit RSA private key.
func NewSigner() (*rsa.PrivateKey, error) {
	return rsa.GenerateKey(rand.Reader, 2048)
}

// RSAKey asserts that the given signer is an RSA private key. Any other key
// type produces an error.
func RSAKey(signer crypto.Signer) (*rsa.PrivateKey, error) {
	key, ok := signer.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("key is a %T, only RSA keys are supported", signer)
	}
	return key, nil
}

// LoadSigner parses an RSA private key from PEM data in either PKCS#1 or
// PKCS#8 form. Unreadable or non-RSA key material produces an error.
func LoadSigner(pemBytes []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, fmt.Errorf("no PEM block found in key data")
	}

	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}

	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("unable to parse private key: %s", err)
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("key is a %T, only RSA keys are supported", parsed)
	}
	return key, nil
}

// SignerToPEM serializes an RSA private key to PKCS#1 PEM form.
func SignerToPEM(key *rsa.PrivateKey) string {
	pemBytes := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})
	return string(pemBytes)
}

// JWKForSigner returns the public JWK for the given RSA signer, e.g. for
// embedding in a newAccount JWS.
func JWKForSigner(signer crypto.Signer) (jose.JSONWebKey, error) {
	key, err := RSAKey(signer)
	if err != nil {
		return jose.JSONWebKey{}, err
	}
	return jose.JSONWebKey{
		Key:       key.Public(),
		Algorithm: "RSA",
	}, nil
}

// JWKJSON returns the JSON serialization of the public JWK for the given
// signer or an empty string if the key is unusable.
func JWKJSON(signer crypto.Signer) string {
	jwk, err := JWKForSigner(signer)
	if err != nil {
		return ""
	}
	jwkJSON, err := json.Marshal(&jwk)
	if err != nil {
		return ""
	}
	return string(jwkJSON)
}

// JWKThumbprint returns the base64url encoded SHA-256 thumbprint of the
// public JWK for the given signer.
// See https://tools.ietf.org/html/rfc7638
func JWKThumbprint(signer crypto.Signer) (string, error) {
	jwk, err := JWKForSigner(signer)
	if err != nil {
		return "", err
	}
	thumbBytes, err := jwk.Thumbprint(crypto.SHA256)
	if err != nil {
		return "", err
	}
	return Base64URLEncode(thumbBytes), nil
}

// KeyAuth constructs the key authorization for the given challenge token.
// See https://tools.ietf.org/html/rfc8555#section-8.1
func KeyAuth(signer crypto.Signer, token string) (string, error) {
	thumbprint, err := JWKThumbprint(signer)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s.%s", token, thumbprint), nil
}

// Base64URLEncode encodes data with the unpadded base64url alphabet used
// throughout ACME.
func Base64URLEncode(data []byte) string {
	return base64.RawURLEncoding.EncodeToString(data)
}

// Base64URLDecode decodes an unpadded base64url string.
func Base64URLDecode(s string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(s)
}
