package shell

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/abiosoft/ishell"

	"github.com/cpu/acmeclient/acme"
	"github.com/cpu/acmeclient/acme/keys"
	"github.com/cpu/acmeclient/acme/resources"
	"github.com/cpu/acmeclient/acme/verify"
)

func addCommands(shell *ishell.Shell) {
	shell.AddCmd(&ishell.Cmd{
		Name: "directory",
		Help: "Print the ACME server's directory",
		Func: directoryHandler,
	})
	shell.AddCmd(&ishell.Cmd{
		Name: "newAccount",
		Help: "Register an ACME account: newAccount [email]",
		Func: newAccountHandler,
	})
	shell.AddCmd(&ishell.Cmd{
		Name: "newOrder",
		Help: "Create a new order: newOrder <domain> [domain...]",
		Func: newOrderHandler,
	})
	shell.AddCmd(&ishell.Cmd{
		Name: "getOrder",
		Help: "Fetch an order by URL: getOrder <url>",
		Func: getOrderHandler,
	})
	shell.AddCmd(&ishell.Cmd{
		Name: "getAuthz",
		Help: "Fetch an authorization by URL: getAuthz <url>",
		Func: getAuthzHandler,
	})
	shell.AddCmd(&ishell.Cmd{
		Name: "poll",
		Help: "Poll an order until it is ready or valid: poll <order url> [ready|valid]",
		Func: pollHandler,
	})
	shell.AddCmd(&ishell.Cmd{
		Name: "solve",
		Help: "Solve a challenge for an authorization: solve <authz url> [http-01|dns-01]",
		Func: solveHandler,
	})
	shell.AddCmd(&ishell.Cmd{
		Name: "finalize",
		Help: "Finalize an order with a fresh CSR: finalize <order url>",
		Func: finalizeHandler,
	})
	shell.AddCmd(&ishell.Cmd{
		Name: "getCert",
		Help: "Download the certificate chain for a valid order: getCert <order url>",
		Func: getCertHandler,
	})
	shell.AddCmd(&ishell.Cmd{
		Name: "revoke",
		Help: "Revoke a certificate: revoke <pem file>",
		Func: revokeHandler,
	})
}

func directoryHandler(c *ishell.Context) {
	client := getClient(c)
	dir, err := client.Directory()
	if err != nil {
		c.Printf("directory: %v\n", err)
		return
	}
	dirJSON, _ := json.MarshalIndent(dir, "", "  ")
	c.Printf("%s\n", dirJSON)
}

func newAccountHandler(c *ishell.Context) {
	email := ""
	if len(c.Args) > 0 {
		email = c.Args[0]
	}

	client := getClient(c)
	acct, err := client.RegisterAccount(email, true)
	if err != nil {
		c.Printf("newAccount: %v\n", err)
		return
	}
	c.Printf("Registered account %q (status %q)\n", acct.ID, acct.Status)
}

func newOrderHandler(c *ishell.Context) {
	if len(c.Args) == 0 {
		c.Printf("newOrder: you must specify at least one domain\n")
		return
	}

	client := getClient(c)
	order, err := client.NewOrder(c.Args, nil, nil)
	if err != nil {
		c.Printf("newOrder: %v\n", err)
		return
	}

	c.Printf("Created order %q (status %q)\n", order.ID, order.Status)
	for _, authzURL := range order.Authorizations {
		c.Printf("  authz: %s\n", authzURL)
	}
}

func getOrderHandler(c *ishell.Context) {
	if len(c.Args) != 1 {
		c.Printf("getOrder: you must specify an order URL\n")
		return
	}

	client := getClient(c)
	order, err := client.GetOrder(c.Args[0])
	if err != nil {
		c.Printf("getOrder: %v\n", err)
		return
	}
	printResource(c, order)
}

func getAuthzHandler(c *ishell.Context) {
	if len(c.Args) != 1 {
		c.Printf("getAuthz: you must specify an authorization URL\n")
		return
	}

	client := getClient(c)
	authz, err := client.GetAuthorization(c.Args[0])
	if err != nil {
		c.Printf("getAuthz: %v\n", err)
		return
	}
	printResource(c, authz)
}

func pollHandler(c *ishell.Context) {
	if len(c.Args) < 1 {
		c.Printf("poll: you must specify an order URL\n")
		return
	}
	target := "ready"
	if len(c.Args) > 1 {
		target = c.Args[1]
	}

	client := getClient(c)
	var order *resources.Order
	var err error
	switch target {
	case "ready":
		order, err = client.PollOrderReady(c.Args[0])
	case "valid":
		order, err = client.PollOrderValid(c.Args[0])
	default:
		c.Printf("poll: target must be \"ready\" or \"valid\", not %q\n", target)
		return
	}
	if err != nil {
		c.Printf("poll: %v\n", err)
		return
	}
	c.Printf("Order %q is %q\n", order.ID, order.Status)
}

// solveHandler provisions a local challenge response for one of an
// authorization's challenges, pre-flights it, asks the server to validate
// it, and polls the authorization until it is valid.
func solveHandler(c *ishell.Context) {
	if len(c.Args) < 1 {
		c.Printf("solve: you must specify an authorization URL\n")
		return
	}
	challType := "http-01"
	if len(c.Args) > 1 {
		challType = c.Args[1]
	}

	client := getClient(c)
	challSrv := getChallSrv(c)

	authz, err := client.GetAuthorization(c.Args[0])
	if err != nil {
		c.Printf("solve: %v\n", err)
		return
	}

	var chall *resources.Challenge
	for _, ch := range authz.Challenges {
		if ch.Type == challType {
			chall = &ch
			break
		}
	}
	if chall == nil {
		c.Printf("solve: authorization has no %q challenge\n", challType)
		return
	}

	keyAuth, err := keys.KeyAuth(client.AccountKey, chall.Token)
	if err != nil {
		c.Printf("solve: %v\n", err)
		return
	}

	switch challType {
	case "http-01":
		challSrv.AddHTTPOneChallenge(chall.Token, keyAuth)
		defer challSrv.DeleteHTTPOneChallenge(chall.Token)
	case "dns-01":
		host := fmt.Sprintf("_acme-challenge.%s.", authz.Identifier.Value)
		challSrv.AddDNSOneChallenge(host, verify.DNS01Value(keyAuth))
		defer challSrv.DeleteDNSOneChallenge(host)
	default:
		c.Printf("solve: unsupported challenge type %q\n", challType)
		return
	}

	if _, err := client.FinalizeChallenge(chall.URL); err != nil {
		c.Printf("solve: %v\n", err)
		return
	}

	validAuthz, err := client.PollAuthorization(authz.ID)
	if err != nil {
		c.Printf("solve: %v\n", err)
		return
	}
	c.Printf("Authorization %q is %q\n", validAuthz.ID, validAuthz.Status)
}

// finalizeHandler waits for the order to be ready, submits a CSR built from
// a fresh certificate key, and waits for the order to become valid.
func finalizeHandler(c *ishell.Context) {
	if len(c.Args) != 1 {
		c.Printf("finalize: you must specify an order URL\n")
		return
	}

	client := getClient(c)
	order, err := client.PollOrderReady(c.Args[0])
	if err != nil {
		c.Printf("finalize: %v\n", err)
		return
	}

	names := make([]string, 0, len(order.Identifiers))
	for _, ident := range order.Identifiers {
		names = append(names, ident.Value)
	}

	_, csrPEM, err := client.CSR("", names, "")
	if err != nil {
		c.Printf("finalize: %v\n", err)
		return
	}

	if _, err := client.FinalizeOrder(order.Finalize, string(csrPEM)); err != nil {
		c.Printf("finalize: %v\n", err)
		return
	}

	validOrder, err := client.PollOrderValid(order.ID)
	if err != nil {
		c.Printf("finalize: %v\n", err)
		return
	}
	c.Printf("Order %q is %q (certificate: %s)\n",
		validOrder.ID, validOrder.Status, validOrder.Certificate)
}

func getCertHandler(c *ishell.Context) {
	if len(c.Args) != 1 {
		c.Printf("getCert: you must specify an order URL\n")
		return
	}

	client := getClient(c)
	order, err := client.GetOrder(c.Args[0])
	if err != nil {
		c.Printf("getCert: %v\n", err)
		return
	}
	if order.Status != acme.StatusValid || order.Certificate == "" {
		c.Printf("getCert: order %q has no certificate (status %q)\n",
			order.ID, order.Status)
		return
	}

	chain, err := client.DownloadCertificates(order.Certificate)
	if err != nil {
		c.Printf("getCert: %v\n", err)
		return
	}
	for _, certPEM := range chain {
		c.Printf("%s", certPEM)
	}
}

func revokeHandler(c *ishell.Context) {
	if len(c.Args) != 1 {
		c.Printf("revoke: you must specify a certificate PEM file\n")
		return
	}

	certPEM, err := os.ReadFile(c.Args[0])
	if err != nil {
		c.Printf("revoke: %v\n", err)
		return
	}

	client := getClient(c)
	if err := client.RevokeCertificate(string(certPEM)); err != nil {
		c.Printf("revoke: %v\n", err)
		return
	}
	c.Printf("Certificate revoked\n")
}

func printResource(c *ishell.Context, ob interface{}) {
	obJSON, err := json.MarshalIndent(ob, "", "  ")
	if err != nil {
		c.Printf("error marshaling: %v\n", err)
		return
	}
	c.Printf("%s\n", obJSON)
}
