package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"github.com/justinas/alice"
	log "github.com/sirupsen/logrus"

	"github.com/m-lab/go/flagx"
	"github.com/m-lab/go/httpx"
	"github.com/m-lab/go/prometheusx"
	"github.com/m-lab/go/rtx"

	"github.com/m-lab/authgate/auth"
	"github.com/m-lab/authgate/auth/jwtverifier"
	"github.com/m-lab/authgate/handler"
	"github.com/m-lab/authgate/interceptor"
	"github.com/m-lab/authgate/memorystore"
	"github.com/m-lab/authgate/secrets"
	"github.com/m-lab/authgate/static"
)

var (
	listenPort     string
	project        string
	verifierModes  flagx.StringArray
	jwksURL        = flagx.MustNewURL("http://localhost:8000/.well-known/jwks.json")
	issuer         string
	audience       string
	keyPattern     string
	keySecret      string
	redisAddress   string
	verifyTimeout  time.Duration
	enforceExpiry  bool
	expiryLeeway   time.Duration
	declarations   string
	realm          string
	allowedAlgs    flagx.StringArray
	cacheMaxTTL    time.Duration
	logLevel       string
	newSecretStore = func(ctx context.Context) (secrets.SecretClient, error) {
		return secretmanager.NewClient(ctx)
	}
)

func init() {
	setupFlags()
	log.SetFormatter(&log.JSONFormatter{})
}

func setupFlags() {
	// PORT and GOOGLE_CLOUD_PROJECT are part of the default App Engine environment.
	flag.StringVar(&listenPort, "port", "8080", "AppEngine port environment variable")
	flag.StringVar(&project, "google-cloud-project", "", "AppEngine project environment variable")
	flag.Var(&verifierModes, "verifier", "Verifier backend: jwks, oidc, keyfunc, access or insecure. Repeat to accept tokens from any of several backends (default jwks)")
	flag.Var(&jwksURL, "jwks-url", "URL of the JWKS used by the jwks and keyfunc verifiers")
	flag.StringVar(&issuer, "issuer", static.IssuerAuthgate, "Expected token issuer. For oidc, the provider URL")
	flag.StringVar(&audience, "audience", static.AudienceAuthgate, "Expected token audience. Empty disables the check")
	flag.StringVar(&keyPattern, "verify-keys", "", "Glob of local public JWK files for the access verifier")
	flag.StringVar(&keySecret, "verify-key-secret", "", "Secret Manager secret holding public JWKs for the access verifier")
	flag.StringVar(&redisAddress, "redis-address", "", "Memorystore address used to cache verified claims. Empty disables the cache")
	flag.DurationVar(&verifyTimeout, "verify-timeout", 0, "Maximum duration of one token verification. Zero means no limit")
	flag.BoolVar(&enforceExpiry, "enforce-expiry", false, "Reject expired claims regardless of the verifier backend")
	flag.DurationVar(&expiryLeeway, "expiry-leeway", 0, "Clock skew tolerated by -enforce-expiry")
	flag.StringVar(&declarations, "declarations", "", "YAML file of authenticated methods and injection targets")
	flag.StringVar(&realm, "realm", static.DefaultRealm, "Realm sent in WWW-Authenticate challenges")
	flag.Var(&allowedAlgs, "allowed-alg", "JWS algorithm accepted by the keyfunc verifier (default RS256, ES256, EdDSA)")
	flag.DurationVar(&cacheMaxTTL, "cache-max-ttl", static.ClaimsCacheMaxTTL, "Maximum lifetime of cached claims")
	flag.StringVar(&logLevel, "log-level", "info", "Logging level")
}

var mainCtx, mainCancel = context.WithCancel(context.Background())

// newVerifier creates the verifier backend named by mode.
func newVerifier(ctx context.Context, mode string) (auth.Verifier, error) {
	switch mode {
	case "jwks":
		return jwtverifier.NewDirect(jwksURL.URL, issuer, audience)
	case "oidc":
		return jwtverifier.NewOIDC(ctx, issuer, audience)
	case "keyfunc":
		cfg := jwtverifier.KeyfuncConfig{
			Issuer:      issuer,
			Audience:    audience,
			AllowedAlgs: allowedAlgs,
			Leeway:      expiryLeeway,
		}
		return jwtverifier.NewKeyfunc(ctx, cfg, jwksURL.URL.String())
	case "access":
		if keySecret != "" {
			client, err := newSecretStore(ctx)
			if err != nil {
				return nil, err
			}
			return secrets.NewConfig(project, keySecret).LoadVerifier(ctx, client, issuer, audience)
		}
		return secrets.NewLocalConfig().LoadVerifier(keyPattern, issuer, audience)
	case "insecure":
		return jwtverifier.NewInsecure()
	}
	return nil, fmt.Errorf("unknown verifier %q", mode)
}

// buildVerifier combines the configured backends and wraps them with the
// claims cache when a memorystore address is given.
func buildVerifier(ctx context.Context) (auth.Verifier, error) {
	modes := verifierModes
	if len(modes) == 0 {
		modes = flagx.StringArray{"jwks"}
	}
	var chain jwtverifier.Chain
	for _, mode := range modes {
		v, err := newVerifier(ctx, mode)
		if err != nil {
			return nil, fmt.Errorf("failed to create %s verifier: %w", mode, err)
		}
		chain = append(chain, v)
	}

	var v auth.Verifier = chain
	if len(chain) == 1 {
		v = chain[0]
	}

	if redisAddress != "" {
		store := memorystore.NewClient[auth.Claims](memorystore.NewPool(redisAddress))
		v = jwtverifier.NewCached(v, store, cacheMaxTTL)
	}
	return v, nil
}

// buildRegistry creates the registry with the gate options and declares the
// authenticated methods.
func buildRegistry(id *handler.Identity) (*interceptor.Registry, error) {
	opts := []interceptor.Option{interceptor.WithLogger(log.WithField("realm", realm))}
	if verifyTimeout > 0 {
		opts = append(opts, interceptor.WithVerifyTimeout(verifyTimeout))
	}
	if enforceExpiry {
		opts = append(opts, interceptor.WithExpiryEnforcement(expiryLeeway))
	}
	reg := interceptor.NewRegistry(opts...)

	if declarations == "" {
		return reg, id.Register(reg)
	}
	decls, err := interceptor.LoadDeclarations(declarations)
	if err != nil {
		return nil, err
	}
	return reg, reg.Declare(decls)
}

// newServeMux registers the authgate routes.
func newServeMux(g *handler.Gate, id *handler.Identity) *http.ServeMux {
	mux := http.NewServeMux()
	// Report the verified claims of the caller.
	mux.Handle("/v1/whoami", g.Handle("Identity", "WhoAmI", id.WhoAmI))
	// Every request under /v1/private/ requires a valid bearer token.
	mux.Handle("/v1/private/", alice.New(g.Limit).ThenFunc(handler.Private))
	mux.HandleFunc("/v1/live", handler.Live)
	return mux
}

func main() {
	flag.Parse()
	rtx.Must(flagx.ArgsFromEnv(flag.CommandLine), "Could not parse env args")
	level, err := log.ParseLevel(logLevel)
	rtx.Must(err, "Invalid log level %q", logLevel)
	log.SetLevel(level)

	v, err := buildVerifier(mainCtx)
	rtx.Must(err, "Failed to create verifier")
	id := &handler.Identity{}
	reg, err := buildRegistry(id)
	rtx.Must(err, "Failed to declare authenticated methods")
	g := handler.NewGate(reg, v, realm)

	promSrv := prometheusx.MustServeMetrics()
	defer promSrv.Close()

	srv := &http.Server{
		Addr:    ":" + listenPort,
		Handler: newServeMux(g, id),
	}
	log.WithFields(log.Fields{
		"port":     listenPort,
		"verifier": jwtverifier.ModeOf(v),
		"pid":      os.Getpid(),
	}).Info("Listening for authgate requests")
	rtx.Must(httpx.ListenAndServeAsync(srv), "Could not start server")
	defer srv.Close()
	<-mainCtx.Done()
}
