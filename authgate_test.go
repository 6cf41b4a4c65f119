package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/m-lab/go/flagx"
	"github.com/m-lab/go/testingx"

	"github.com/m-lab/authgate/auth"
	"github.com/m-lab/authgate/auth/jwtverifier"
	"github.com/m-lab/authgate/authgatetest"
	"github.com/m-lab/authgate/handler"
)

func Test_buildVerifier(t *testing.T) {
	tests := []struct {
		name     string
		modes    flagx.StringArray
		keys     string
		redis    string
		insecure bool
		wantMode string
		wantErr  bool
	}{
		{
			name:     "default-jwks",
			wantMode: "jwks",
		},
		{
			name:     "access-local-keys",
			modes:    flagx.StringArray{"access"},
			keys:     "secrets/testdata/jwk_sig_EdDSA_insecure.pub",
			wantMode: "access",
		},
		{
			name:     "chain",
			modes:    flagx.StringArray{"access", "jwks"},
			keys:     "secrets/testdata/jwk_sig_EdDSA_insecure.pub",
			wantMode: "chain",
		},
		{
			name:     "cached",
			modes:    flagx.StringArray{"jwks"},
			redis:    "localhost:6379",
			wantMode: "cached",
		},
		{
			name:     "insecure",
			modes:    flagx.StringArray{"insecure"},
			insecure: true,
			wantMode: "insecure",
		},
		{
			name:    "error-insecure-not-allowed",
			modes:   flagx.StringArray{"insecure"},
			wantErr: true,
		},
		{
			name:    "error-access-no-keys",
			modes:   flagx.StringArray{"access"},
			keys:    "secrets/testdata/does-not-exist-*",
			wantErr: true,
		},
		{
			name:    "error-unknown-mode",
			modes:   flagx.StringArray{"kerberos"},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verifierModes = tt.modes
			keyPattern = tt.keys
			redisAddress = tt.redis
			if tt.insecure {
				t.Setenv("ALLOW_INSECURE_JWT", "true")
			} else {
				t.Setenv("ALLOW_INSECURE_JWT", "")
			}
			defer func() {
				verifierModes = nil
				keyPattern = ""
				redisAddress = ""
			}()

			v, err := buildVerifier(context.Background())
			if (err != nil) != tt.wantErr {
				t.Fatalf("buildVerifier() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if got := jwtverifier.ModeOf(v); got != tt.wantMode {
				t.Errorf("buildVerifier() mode = %q, want %q", got, tt.wantMode)
			}
		})
	}
}

func Test_buildRegistry(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.yaml")
	testingx.Must(t, os.WriteFile(good, []byte(`
- owner: Identity
  method: WhoAmI
  inject:
    field: Claims
- owner: Reports
  method: List
`), 0o644), "failed to write declarations")
	bad := filepath.Join(dir, "bad.yaml")
	testingx.Must(t, os.WriteFile(bad, []byte("- owner: Identity\n  color: blue\n"), 0o644), "failed to write declarations")

	tests := []struct {
		name       string
		file       string
		wantMethod []string
		wantErr    bool
	}{
		{
			name:       "defaults",
			wantMethod: []string{"Identity", "WhoAmI"},
		},
		{
			name:       "declarations",
			file:       good,
			wantMethod: []string{"Reports", "List"},
		},
		{
			name:    "error-unknown-field",
			file:    bad,
			wantErr: true,
		},
		{
			name:    "error-missing-file",
			file:    filepath.Join(dir, "missing.yaml"),
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			declarations = tt.file
			defer func() { declarations = "" }()

			reg, err := buildRegistry(&handler.Identity{})
			if (err != nil) != tt.wantErr {
				t.Fatalf("buildRegistry() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if _, ok := reg.Lookup(tt.wantMethod[0], tt.wantMethod[1]); !ok {
				t.Errorf("buildRegistry() did not register %v", tt.wantMethod)
			}
		})
	}
}

func Test_newServeMux(t *testing.T) {
	v := &authgatetest.Verifier{Tokens: map[string]*auth.Claims{
		"abc123": {Subject: "u1"},
	}}
	id := &handler.Identity{}
	reg, err := buildRegistry(id)
	testingx.Must(t, err, "failed to build registry")
	mux := newServeMux(handler.NewGate(reg, v, realm), id)

	tests := []struct {
		name   string
		path   string
		token  string
		status int
	}{
		{name: "whoami", path: "/v1/whoami", token: "abc123", status: http.StatusOK},
		{name: "whoami-missing-token", path: "/v1/whoami", status: http.StatusUnauthorized},
		{name: "private", path: "/v1/private/x", token: "abc123", status: http.StatusOK},
		{name: "private-invalid-token", path: "/v1/private/x", token: "nope", status: http.StatusUnauthorized},
		{name: "live", path: "/v1/live", status: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			rw := httptest.NewRecorder()
			mux.ServeHTTP(rw, req)
			if rw.Code != tt.status {
				t.Errorf("GET %s status = %d, want %d", tt.path, rw.Code, tt.status)
			}
		})
	}
}
