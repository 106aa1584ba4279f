package client

import (
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"log"
	"net/http"

	"github.com/cpu/acmeclient/acme"
)

// DownloadCertificates fetches the PEM certificate chain for a finalized
// Order from the given certificate URL using a POST-as-GET request. The
// returned slice holds one PEM encoded certificate per element, preserving
// the server's ordering (leaf first for a compliant server). Each block is
// round-tripped through its DER form so the output is normalized PEM
// regardless of the server's whitespace or header quirks.
func (c *Client) DownloadCertificates(certURL string) ([]string, error) {
	resp, err := c.PostAsGet(certURL)
	if err != nil {
		return nil, err
	}

	if resp.Response.StatusCode != http.StatusOK {
		return nil, generateError(certURL, resp)
	}

	var chain []string
	rest := resp.RespBody
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		chain = append(chain, string(pem.EncodeToMemory(&pem.Block{
			Type:  "CERTIFICATE",
			Bytes: block.Bytes,
		})))
	}

	if len(chain) == 0 {
		return nil, acme.NewError(fmt.Sprintf(
			"certificate response from %q contained no PEM certificates", certURL))
	}

	log.Printf("Downloaded a %d certificate chain from %q\n", len(chain), certURL)
	return chain, nil
}

// RevokeCertificate asks the server to revoke the given PEM encoded
// certificate via the revokeCert endpoint. The request is signed with the
// account key, so the account must have issued the certificate (or hold an
// authorization for every name in it).
//
// See https://tools.ietf.org/html/rfc8555#section-7.6
func (c *Client) RevokeCertificate(certPEM string) error {
	certDER, err := derFromPEM(certPEM, "CERTIFICATE")
	if err != nil {
		return fmt.Errorf("revoke: %s", err)
	}

	req := struct {
		Certificate string `json:"certificate"`
	}{
		Certificate: base64URLEncode(certDER),
	}
	reqBody, err := json.Marshal(&req)
	if err != nil {
		return err
	}

	resp, err := c.Post(acme.REVOKE_CERT_ENDPOINT, reqBody)
	if err != nil {
		return err
	}

	if resp.Response.StatusCode != http.StatusOK {
		return generateError(acme.REVOKE_CERT_ENDPOINT, resp)
	}

	log.Printf("Revoked certificate\n")
	return nil
}

// derFromPEM extracts the DER bytes of the first PEM block of the expected
// type from the given PEM data.
func derFromPEM(pemData string, expectedType string) ([]byte, error) {
	block, _ := pem.Decode([]byte(pemData))
	if block == nil {
		return nil, fmt.Errorf("no PEM data found")
	}
	if block.Type != expectedType {
		return nil, fmt.Errorf("expected a %q PEM block, found %q",
			expectedType, block.Type)
	}
	return block.Bytes, nil
}

func base64URLEncode(data []byte) string {
	return base64.RawURLEncoding.EncodeToString(data)
}
