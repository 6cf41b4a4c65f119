package secrets

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/m-lab/access/token"

	"github.com/m-lab/authgate/auth/jwtverifier"
)

// LocalConfig supports loading signer and verifier keys from local files
// rather than from secretmanager.
type LocalConfig struct{}

// NewLocalConfig creates a new instance for loading local signer and verifier keys.
func NewLocalConfig() *LocalConfig {
	return &LocalConfig{}
}

// LoadKeys reads every file matching the glob pattern.
func (c *LocalConfig) LoadKeys(pattern string) ([][]byte, error) {
	names, err := filepath.Glob(pattern)
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("no key files match %q", pattern)
	}
	keys := make([][]byte, 0, len(names))
	for _, name := range names {
		key, err := os.ReadFile(name)
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// LoadVerifier reads the public keys matching pattern and returns a verifier
// expecting the given issuer and audience.
func (c *LocalConfig) LoadVerifier(pattern, issuer, audience string) (*jwtverifier.Access, error) {
	keys, err := c.LoadKeys(pattern)
	if err != nil {
		return nil, err
	}
	return jwtverifier.NewAccess(issuer, audience, keys...)
}

// LoadSigner reads a private JWK from the named file.
func (c *LocalConfig) LoadSigner(name string) (*token.Signer, error) {
	key, err := os.ReadFile(name)
	if err != nil {
		return nil, err
	}
	return token.NewSigner(key)
}
