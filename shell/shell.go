// Package shell provides an interactive command shell for driving the ACME
// client through an issuance workflow by hand.
package shell

import (
	"fmt"
	"log"
	"os"

	"github.com/abiosoft/ishell"
	"github.com/abiosoft/readline"
	"github.com/letsencrypt/challtestsrv"

	acmeclient "github.com/cpu/acmeclient/acme/client"
	acmecmd "github.com/cpu/acmeclient/cmd"
)

// BasePrompt is the prompt presented by the shell.
const BasePrompt = "[acme]> "

// Keys used to stash shared objects in the ishell context.
const (
	clientKey   = "client"
	challSrvKey = "challSrv"
)

// ACMEShellOptions allows specifying options for creating an ACME shell.
// This includes all of the acmeclient.ClientConfig options in addition to
// challenge server response ports for HTTP-01 and DNS-01 challenges.
type ACMEShellOptions struct {
	acmeclient.ClientConfig
	// Port number the ACME server validates HTTP-01 challenges over.
	HTTPPort int
	// Port number the ACME server validates DNS-01 challenges over.
	DNSPort int
}

// ACMEShell is an ishell.Shell instance tailored for ACME. At its core an
// ACMEShell is an acme/client.Client instance with an associated challenge
// response server for solving challenges locally.
type ACMEShell struct {
	*ishell.Shell
	challSrv *challtestsrv.ChallSrv
}

// NewACMEShell creates an ACMEShell by building an *ishell.Shell instance,
// a challenge response server, and an ACME client. The challenge server is
// not started until Run is called.
func NewACMEShell(opts *ACMEShellOptions) *ACMEShell {
	shell := ishell.NewWithConfig(&readline.Config{
		Prompt: BasePrompt,
	})

	challSrv, err := challtestsrv.New(challtestsrv.Config{
		HTTPOneAddrs: []string{fmt.Sprintf(":%d", opts.HTTPPort)},
		DNSOneAddrs:  []string{fmt.Sprintf(":%d", opts.DNSPort)},
		Log:          log.New(os.Stdout, "challRespSrv: ", log.Ldate|log.Ltime),
	})
	acmecmd.FailOnError(err, "Unable to create challenge response server")
	shell.Set(challSrvKey, challSrv)

	client, err := acmeclient.NewClient(opts.ClientConfig)
	acmecmd.FailOnError(err, "Unable to create ACME client")
	shell.Set(clientKey, client)

	addCommands(shell)

	return &ACMEShell{
		Shell:    shell,
		challSrv: challSrv,
	}
}

// Run starts the challenge response server and the interactive shell. It
// blocks until the shell is exited.
func (s *ACMEShell) Run() {
	go s.challSrv.Run()
	defer s.challSrv.Shutdown()

	// Shut the challenge server down cleanly if we're killed.
	go acmecmd.CatchSignals(s.challSrv.Shutdown)

	s.Println("Welcome to ACME Shell")
	s.Shell.Run()
	s.Println("Goodbye!")
}

func getClient(c *ishell.Context) *acmeclient.Client {
	return c.Get(clientKey).(*acmeclient.Client)
}

func getChallSrv(c *ishell.Context) *challtestsrv.ChallSrv {
	return c.Get(challSrvKey).(*challtestsrv.ChallSrv)
}
