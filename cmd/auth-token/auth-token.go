// auth-token signs a short-lived bearer token with a local private JWK and
// presents it to an authgate server. The token may also be exported to a
// command run afterwards.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/exec"
	"time"

	"github.com/m-lab/access/token"
	"github.com/m-lab/go/flagx"
	"github.com/m-lab/go/logx"
	"github.com/m-lab/go/pretty"
	"github.com/m-lab/go/rtx"
	"gopkg.in/square/go-jose.v2/jwt"

	"github.com/m-lab/authgate/api/authgate"
	"github.com/m-lab/authgate/static"
)

var (
	server    = flagx.MustNewURL("http://localhost:8080/v1/")
	privKey   flagx.FileBytes
	subject   string
	audience  string
	resource  string
	lifetime  time.Duration
	timeout   time.Duration
	envName   string
	logFatalf = log.Fatalf
)

func init() {
	setupFlags()
}

func setupFlags() {
	flag.Var(&server, "authgate-url", "URL prefix of the authgate v1 API")
	flag.Var(&privKey, "signer-key", "Private JWT key used for signing")
	flag.StringVar(&subject, "subject", "", "Subject of the signed token")
	flag.StringVar(&audience, "audience", static.AudienceAuthgate, "Audience of the signed token")
	flag.StringVar(&resource, "private", "", "Request this private resource instead of whoami")
	flag.DurationVar(&lifetime, "lifetime", time.Minute, "Lifetime of the signed token")
	flag.DurationVar(&timeout, "timeout", 60*time.Second, "Complete request and command execution within timeout")
	flag.StringVar(&envName, "env-name", "AUTHGATE_TOKEN", "Export the token to the named environment variable before executing given command")
}

func main() {
	flag.Parse()
	rtx.Must(flagx.ArgsFromEnvWithLog(flag.CommandLine, false), "Failed to read args from env")

	// NOTE: the authgate server MUST be configured with the corresponding
	// public key to verify these tokens.
	priv, err := token.NewSigner(privKey)
	rtx.Must(err, "Failed to allocate signer")

	now := time.Now()
	cl := jwt.Claims{
		Issuer:   static.IssuerAuthgate,
		Subject:  subject,
		Audience: jwt.Audience{audience},
		IssuedAt: jwt.NewNumericDate(now),
		Expiry:   jwt.NewNumericDate(now.Add(lifetime)),
	}
	logx.Debug.Println(cl)
	tok, err := priv.Sign(cl)
	rtx.Must(err, "Failed to sign claims")

	// Prepare a context with absolute timeout for the request and command.
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	c := authgate.NewClient("auth-token")
	c.BaseURL = server.URL
	c.Authorization = tok
	logx.Debug.Println("Issue request to:", server.URL)

	var result interface{}
	if resource != "" {
		result, err = c.Private(ctx, resource)
	} else {
		result, err = c.WhoAmI(ctx)
	}
	if err != nil {
		logFatalf("ERROR: %v", err)
		return
	}
	pretty.Print(result)

	args := flag.Args()
	if len(args) == 0 {
		return
	}
	os.Setenv(envName, tok)
	logx.Debug.Println("Exec:", args)
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	if logx.LogxDebug.Get() {
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
	}
	rtx.Must(cmd.Run(), "Failed to run %#v", args)
}
