// Package verify provides optional local pre-flight checks for challenge
// responses. Running a check before asking the server to validate
// a challenge catches provisioning mistakes without burning a validation
// attempt with the CA.
package verify

import (
	"crypto/sha256"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/miekg/dns"

	"github.com/cpu/acmeclient/acme/keys"
)

// HTTPTimeout bounds how long a pre-flight HTTP-01 fetch will wait.
const HTTPTimeout = 10 * time.Second

// HTTP01 fetches the HTTP-01 challenge response for the given token from
// the host (a "host" or "host:port" value) and compares it against the
// expected key authorization. A mismatch, a non-200 status or a transport
// failure all produce an error.
//
// See https://tools.ietf.org/html/rfc8555#section-8.3
func HTTP01(host, token, keyAuth string) error {
	challengeURL := fmt.Sprintf("http://%s/.well-known/acme-challenge/%s", host, token)

	httpClient := &http.Client{Timeout: HTTPTimeout}
	resp, err := httpClient.Get(challengeURL)
	if err != nil {
		return fmt.Errorf("http-01 pre-flight: request to %q failed: %s",
			challengeURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("http-01 pre-flight: %q returned status %d",
			challengeURL, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("http-01 pre-flight: reading %q failed: %s",
			challengeURL, err)
	}

	if got := strings.TrimSpace(string(body)); got != keyAuth {
		return fmt.Errorf(
			"http-01 pre-flight: %q served %q, expected key authorization %q",
			challengeURL, got, keyAuth)
	}
	return nil
}

// DNS01Value computes the TXT record value for a DNS-01 challenge response:
// the base64url encoded SHA-256 digest of the key authorization.
//
// See https://tools.ietf.org/html/rfc8555#section-8.4
func DNS01Value(keyAuth string) string {
	digest := sha256.Sum256([]byte(keyAuth))
	return keys.Base64URLEncode(digest[:])
}

// DNS01 queries the given resolver (a "host:port" address) for the
// _acme-challenge TXT record of domain and checks that one of the returned
// records matches the digest of the expected key authorization.
func DNS01(resolver, domain, keyAuth string) error {
	challengeDomain := fmt.Sprintf("_acme-challenge.%s", domain)
	expected := DNS01Value(keyAuth)

	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(challengeDomain), dns.TypeTXT)

	dnsClient := new(dns.Client)
	reply, _, err := dnsClient.Exchange(msg, resolver)
	if err != nil {
		return fmt.Errorf("dns-01 pre-flight: TXT query for %q to %q failed: %s",
			challengeDomain, resolver, err)
	}

	var found []string
	for _, rr := range reply.Answer {
		txt, ok := rr.(*dns.TXT)
		if !ok {
			continue
		}
		for _, value := range txt.Txt {
			if value == expected {
				return nil
			}
			found = append(found, value)
		}
	}

	return fmt.Errorf(
		"dns-01 pre-flight: no TXT record for %q matched %q (saw %d records)",
		challengeDomain, expected, len(found))
}
