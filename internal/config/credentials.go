package config

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"

	"golang.org/x/oauth2"
	"gopkg.in/yaml.v3"
)

const credentialsFile = "credentials.yaml"

// Credentials are written by login. The key pair signs ledger gateway
// invocations.
type Credentials struct {
	Profile    string        `yaml:"profile"`
	Tokens     *oauth2.Token `yaml:"tokens,omitempty"`
	PrivateKey []byte        `yaml:"privateKey,omitempty"`
	PublicKey  []byte        `yaml:"publicKey,omitempty"`
}

func CredentialsPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, credentialsFile), nil
}

// LoadCredentials reads the credentials at path. A missing file is not an
// error and yields nil.
func LoadCredentials(path string) (*Credentials, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var creds Credentials
	if err := yaml.Unmarshal(b, &creds); err != nil {
		return nil, errors.Join(errors.New("could not parse credentials"), err)
	}
	return &creds, nil
}

func SaveCredentials(path string, creds *Credentials) error {
	b, err := yaml.Marshal(creds)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o600)
}

// HTTPClient returns a client that sends the stored access token, or
// http.DefaultClient when there is none.
func (c *Credentials) HTTPClient(ctx context.Context) *http.Client {
	if c == nil || c.Tokens == nil {
		return http.DefaultClient
	}
	return oauth2.NewClient(ctx, oauth2.StaticTokenSource(c.Tokens))
}

// SigningKey returns the PEM private key, if any.
func (c *Credentials) SigningKey() []byte {
	if c == nil {
		return nil
	}
	return c.PrivateKey
}
