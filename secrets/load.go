// Package secrets loads verifier and signer keys from the Google Cloud Secret
// Manager or from local files.
package secrets

import (
	"context"
	"fmt"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"github.com/googleapis/gax-go"
	log "github.com/sirupsen/logrus"
	"google.golang.org/api/iterator"
	secretmanagerpb "google.golang.org/genproto/googleapis/cloud/secretmanager/v1"

	"github.com/m-lab/authgate/auth/jwtverifier"
)

// SecretClient wraps the AccessSecretVersion function provided by the
// secretmanager.Client.
type SecretClient interface {
	AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error)
	ListSecretVersions(ctx context.Context, req *secretmanagerpb.ListSecretVersionsRequest, opts ...gax.CallOption) *secretmanager.SecretVersionIterator
}

// iter warps the Next() method of a *secretmanager.SecretVersionIterator.
type iter interface {
	Next(it *secretmanager.SecretVersionIterator) (*secretmanagerpb.SecretVersion, error)
}

// stdIter implements the iter interfaces, and is used to invoke the
// iterator.Next() method.
type stdIter struct{}

// Next invokes the Next() method of a *secretmanager.SecretVersionIterator.
func (s *stdIter) Next(it *secretmanager.SecretVersionIterator) (*secretmanagerpb.SecretVersion, error) {
	return it.Next()
}

// Config names a secret holding public JWKs, one key per version.
type Config struct {
	iter    iter
	Name    string
	Project string
}

// NewConfig creates a new secret config.
func NewConfig(project, name string) *Config {
	return &Config{
		iter:    &stdIter{},
		Name:    name,
		Project: project,
	}
}

// getSecret fetches the version of a secret specified by 'path' from the Secret
// Manager API.
func (c *Config) getSecret(ctx context.Context, client SecretClient, path string) ([]byte, error) {
	req := &secretmanagerpb.AccessSecretVersionRequest{
		Name: path,
	}

	result, err := client.AccessSecretVersion(ctx, req)
	if err != nil {
		return nil, err
	}

	return result.Payload.Data, nil
}

// getSecretVersions returns a slice of all *enabled* versions for a secret. It
// will ignore disabled for destroyed versions of a secret.
func (c *Config) getSecretVersions(ctx context.Context, client SecretClient) ([]string, error) {
	req := &secretmanagerpb.ListSecretVersionsRequest{
		Parent:   c.path(),
		PageSize: 1000,
	}

	it := client.ListSecretVersions(ctx, req)
	versions := []string{}
	for {
		resp, err := c.iter.Next(it)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		if resp.State != secretmanagerpb.SecretVersion_ENABLED {
			continue
		}
		versions = append(versions, resp.Name)
	}

	if len(versions) < 1 {
		return nil, fmt.Errorf("no versions found for secret: %s", c.Name)
	}

	return versions, nil
}

// LoadKeys fetches all enabled versions of the secret. Keeping several
// versions enabled lets tokens signed by an old and a new key both verify
// during a rotation.
func (c *Config) LoadKeys(ctx context.Context, client SecretClient) ([][]byte, error) {
	versions, err := c.getSecretVersions(ctx, client)
	if err != nil {
		return nil, err
	}
	keys := [][]byte{}
	for _, version := range versions {
		key, err := c.getSecret(ctx, client, version)
		if err != nil {
			return nil, fmt.Errorf("failed to access %s: %w", version, err)
		}
		log.WithField("version", version).Info("loaded JWT verifier key")
		keys = append(keys, key)
	}
	return keys, nil
}

// LoadVerifier loads the keys and returns a verifier expecting the given
// issuer and audience.
func (c *Config) LoadVerifier(ctx context.Context, client SecretClient, issuer, audience string) (*jwtverifier.Access, error) {
	keys, err := c.LoadKeys(ctx, client)
	if err != nil {
		return nil, err
	}
	return jwtverifier.NewAccess(issuer, audience, keys...)
}

func (c *Config) path() string {
	return "projects/" + c.Project + "/secrets/" + c.Name
}
