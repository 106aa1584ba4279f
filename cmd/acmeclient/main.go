// acmeclient provides a developer-oriented command-line shell interface for
// issuing certificates with an ACME server.
package main

import (
	"flag"
	"os"

	acmeclient "github.com/cpu/acmeclient/acme/client"
	acmecmd "github.com/cpu/acmeclient/cmd"
	acmeshell "github.com/cpu/acmeclient/shell"
)

const (
	DIRECTORY_DEFAULT    = "https://acme-staging-v02.api.letsencrypt.org/directory"
	CA_DEFAULT           = ""
	AUTOREGISTER_DEFAULT = true
	CONTACT_DEFAULT      = ""
	KEY_DEFAULT          = ""
	HTTP_PORT_DEFAULT    = 5002
	DNS_PORT_DEFAULT     = 5252
)

func main() {
	directory := flag.String(
		"directory",
		DIRECTORY_DEFAULT,
		"Directory URL for ACME server")

	caCert := flag.String(
		"ca",
		CA_DEFAULT,
		"CA certificate(s) for verifying ACME server HTTPS (empty: system roots)")

	autoRegister := flag.Bool(
		"autoregister",
		AUTOREGISTER_DEFAULT,
		"Register an ACME account automatically at startup")

	email := flag.String(
		"contact",
		CONTACT_DEFAULT,
		"Optional contact email address for the registered ACME account")

	keyPath := flag.String(
		"key",
		KEY_DEFAULT,
		"Optional PEM file with an RSA account key to use instead of generating one")

	httpPort := flag.Int(
		"httpPort",
		HTTP_PORT_DEFAULT,
		"HTTP-01 challenge response port")

	dnsPort := flag.Int(
		"dnsPort",
		DNS_PORT_DEFAULT,
		"DNS-01 challenge response port")

	pebble := flag.Bool(
		"pebble",
		false,
		"Use Pebble defaults")

	flag.Parse()

	if *pebble {
		pebbleDirectory := "https://localhost:14000/dir"
		directory = &pebbleDirectory
		pebbleBaseDir := os.Getenv("GOPATH")
		pebbleCA := pebbleBaseDir + "/src/github.com/letsencrypt/pebble/test/certs/pebble.minica.pem"
		caCert = &pebbleCA
	}

	var accountKeyPEM []byte
	if *keyPath != "" {
		pemBytes, err := os.ReadFile(*keyPath)
		acmecmd.FailOnError(err, "Unable to read account key file")
		accountKeyPEM = pemBytes
	}

	config := &acmeshell.ACMEShellOptions{
		ClientConfig: acmeclient.ClientConfig{
			DirectoryURL:  *directory,
			CACert:        *caCert,
			ContactEmail:  *email,
			AccountKeyPEM: accountKeyPEM,
			AutoRegister:  *autoRegister,
		},
		HTTPPort: *httpPort,
		DNSPort:  *dnsPort,
	}

	shell := acmeshell.NewACMEShell(config)
	shell.Run()
}
