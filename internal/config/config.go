// Package config loads named profiles and builds the clients they describe.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/opentdf/ctivault/internal/blobstore"
	"github.com/opentdf/ctivault/internal/db"
	"github.com/opentdf/ctivault/internal/ledger"
	"github.com/opentdf/ctivault/internal/vault"
	"github.com/opentdf/ctivault/pkg/cti/client"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

const (
	DirName        = ".ctivault"
	EnvPrefix      = "CTIVAULT"
	DefaultProfile = "default"
)

type Config struct {
	Profiles map[string]Profile `yaml:"profiles" mapstructure:"profiles"`
}

type Profile struct {
	OidcIssuer   string       `yaml:"oidcissuer,omitempty" mapstructure:"oidcissuer"`
	ClientID     string       `yaml:"clientid,omitempty" mapstructure:"clientid"`
	ClientSecret string       `yaml:"clientsecret,omitempty" mapstructure:"clientsecret"`
	Blob         BlobConfig   `yaml:"blob" mapstructure:"blob"`
	Vault        VaultConfig  `yaml:"vault" mapstructure:"vault"`
	Ledger       LedgerConfig `yaml:"ledger" mapstructure:"ledger"`
	Server       ServerConfig `yaml:"server,omitempty" mapstructure:"server"`
}

type BlobConfig struct {
	// Backend is one of ipfs, local or memory.
	Backend string        `yaml:"backend" mapstructure:"backend"`
	Cluster string        `yaml:"cluster,omitempty" mapstructure:"cluster"`
	Gateway string        `yaml:"gateway,omitempty" mapstructure:"gateway"`
	Path    string        `yaml:"path,omitempty" mapstructure:"path"`
	Timeout time.Duration `yaml:"timeout,omitempty" mapstructure:"timeout"`
}

type VaultConfig struct {
	// Backend is one of kv2 or memory.
	Backend   string        `yaml:"backend" mapstructure:"backend"`
	Address   string        `yaml:"address,omitempty" mapstructure:"address"`
	Mount     string        `yaml:"mount,omitempty" mapstructure:"mount"`
	Token     string        `yaml:"token,omitempty" mapstructure:"token"`
	Namespace string        `yaml:"namespace,omitempty" mapstructure:"namespace"`
	Timeout   time.Duration `yaml:"timeout,omitempty" mapstructure:"timeout"`
}

type LedgerConfig struct {
	// Backend is one of gateway, memory, badger or postgres.
	Backend  string        `yaml:"backend" mapstructure:"backend"`
	Endpoint string        `yaml:"endpoint,omitempty" mapstructure:"endpoint"`
	Encoding string        `yaml:"encoding,omitempty" mapstructure:"encoding"`
	Path     string        `yaml:"path,omitempty" mapstructure:"path"`
	DBURL    string        `yaml:"dburl,omitempty" mapstructure:"dburl"`
	Sign     bool          `yaml:"sign,omitempty" mapstructure:"sign"`
	Timeout  time.Duration `yaml:"timeout,omitempty" mapstructure:"timeout"`
}

type ServerConfig struct {
	Addr           string   `yaml:"addr,omitempty" mapstructure:"addr"`
	AllowedOrigins []string `yaml:"allowedorigins,omitempty" mapstructure:"allowedorigins"`
	// VerifyKeyFile holds the PEM public key gateway invocations must be
	// signed with.
	VerifyKeyFile string `yaml:"verifykeyfile,omitempty" mapstructure:"verifykeyfile"`
	// OidcAuth guards the API with bearer tokens from OidcIssuer.
	OidcAuth      bool  `yaml:"oidcauth,omitempty" mapstructure:"oidcauth"`
	MaxUploadSize int64 `yaml:"maxuploadsize,omitempty" mapstructure:"maxuploadsize"`
}

// envBindings lets the environment override profile values, e.g.
// CTIVAULT_VAULT_TOKEN for vault.token.
var envBindings = []string{
	"oidcissuer", "clientid", "clientsecret",
	"blob.backend", "blob.cluster", "blob.gateway", "blob.path",
	"vault.backend", "vault.address", "vault.mount", "vault.token", "vault.namespace",
	"ledger.backend", "ledger.endpoint", "ledger.encoding", "ledger.path",
	"server.addr",
}

// Dir returns $HOME/.ctivault.
func Dir() (string, error) {
	homedir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homedir, DirName), nil
}

// LoadViperConfig points v at the config file (or $HOME/.ctivault/config
// and ./.ctivault/config) and reads it.
func LoadViperConfig(v *viper.Viper, file string) error {
	if file != "" {
		v.SetConfigFile(file)
		v.SetConfigType("yaml")
		return v.ReadInConfig()
	}
	dir, err := Dir()
	if err != nil {
		return err
	}
	v.AddConfigPath(dir)
	v.AddConfigPath(DirName)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	return v.ReadInConfig()
}

// LoadProfile reads a named profile from v, applies environment overrides
// and fills defaults. A missing profile yields an all-default profile.
func LoadProfile(v *viper.Viper, name string) (*Profile, error) {
	if name == "" {
		name = DefaultProfile
	}
	sub := v.Sub("profiles." + name)
	if sub == nil {
		sub = viper.New()
	}
	sub.SetEnvPrefix(EnvPrefix)
	sub.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, key := range envBindings {
		if err := sub.BindEnv(key); err != nil {
			return nil, err
		}
	}
	if err := sub.BindEnv("ledger.dburl", EnvPrefix+"_DB_URL"); err != nil {
		return nil, err
	}
	sub.SetDefault("blob.backend", "ipfs")
	sub.SetDefault("vault.backend", "kv2")
	sub.SetDefault("ledger.backend", "gateway")
	sub.SetDefault("server.addr", ":8080")

	var p Profile
	if err := sub.Unmarshal(&p); err != nil {
		return nil, errors.Join(fmt.Errorf("could not load profile %s", name), err)
	}
	return &p, nil
}

func parseURL(field, raw string) (*url.URL, error) {
	if raw == "" {
		return nil, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("invalid %s", field), err)
	}
	return u, nil
}

func (p *Profile) BlobStore(hc *http.Client) (blobstore.Store, error) {
	switch p.Blob.Backend {
	case "ipfs":
		cluster, err := parseURL("blob.cluster", p.Blob.Cluster)
		if err != nil {
			return nil, err
		}
		gateway, err := parseURL("blob.gateway", p.Blob.Gateway)
		if err != nil {
			return nil, err
		}
		return blobstore.NewIPFSClient(blobstore.IPFSClientOptions{
			HttpClient:      hc,
			ClusterEndpoint: cluster,
			GatewayEndpoint: gateway,
			Timeout:         p.Blob.Timeout,
		})
	case "local":
		return blobstore.NewLocalStore(p.Blob.Path)
	case "memory":
		return blobstore.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown blob backend %q", p.Blob.Backend)
	}
}

func (p *Profile) VaultStore(hc *http.Client) (vault.Store, error) {
	switch p.Vault.Backend {
	case "kv2":
		addr, err := parseURL("vault.address", p.Vault.Address)
		if err != nil {
			return nil, err
		}
		return vault.NewKV2Client(vault.KV2ClientOptions{
			HttpClient: hc,
			Address:    addr,
			Mount:      p.Vault.Mount,
			Token:      p.Vault.Token,
			Namespace:  p.Vault.Namespace,
			Timeout:    p.Vault.Timeout,
		})
	case "memory":
		return vault.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown vault backend %q", p.Vault.Backend)
	}
}

// LedgerBackend opens the world state for the local ledger backends.
func (p *Profile) LedgerBackend(ctx context.Context) (ledger.Backend, error) {
	switch p.Ledger.Backend {
	case "memory":
		return ledger.NewMemoryBackend(), nil
	case "badger":
		return ledger.NewBadgerBackend(ledger.BadgerConfig{Path: p.Ledger.Path, Logger: logrus.StandardLogger()})
	case "postgres":
		if p.Ledger.DBURL == "" {
			return nil, errors.New("ledger.dburl (or CTIVAULT_DB_URL) is required for the postgres ledger")
		}
		dbClient, err := db.NewClient(ctx, p.Ledger.DBURL)
		if err != nil {
			return nil, errors.Join(errors.New("could not establish database connection"), err)
		}
		return ledger.NewPostgresBackend(dbClient), nil
	default:
		return nil, fmt.Errorf("ledger backend %q has no local world state", p.Ledger.Backend)
	}
}

// Contract opens the local backend and wraps it in a contract.
func (p *Profile) Contract(ctx context.Context) (*ledger.Contract, ledger.Backend, error) {
	enc, err := ledger.ParseEncoding(p.Ledger.Encoding)
	if err != nil {
		return nil, nil, err
	}
	backend, err := p.LedgerBackend(ctx)
	if err != nil {
		return nil, nil, err
	}
	return ledger.NewContract(backend, ledger.ContractOptions{Encoding: enc, Logger: slog.Default()}), backend, nil
}

// LedgerClient returns the gateway client or an in-process contract. The
// returned close function releases any local backend.
func (p *Profile) LedgerClient(ctx context.Context, hc *http.Client, signingKey []byte) (ledger.Client, func() error, error) {
	if p.Ledger.Backend != "gateway" {
		contract, backend, err := p.Contract(ctx)
		if err != nil {
			return nil, nil, err
		}
		return contract, backend.Close, nil
	}
	endpoint, err := parseURL("ledger.endpoint", p.Ledger.Endpoint)
	if err != nil {
		return nil, nil, err
	}
	if !p.Ledger.Sign {
		signingKey = nil
	}
	gw, err := ledger.NewGatewayClient(ledger.GatewayClientOptions{
		HttpClient: hc,
		Endpoint:   endpoint,
		SigningKey: signingKey,
		Timeout:    p.Ledger.Timeout,
	})
	if err != nil {
		return nil, nil, err
	}
	return gw, func() error { return nil }, nil
}

// ArtifactClient wires the publish/retrieve client for this profile.
// hc carries gateway credentials and may be nil.
func (p *Profile) ArtifactClient(ctx context.Context, hc *http.Client, signingKey []byte) (*client.Client, func() error, error) {
	blob, err := p.BlobStore(nil)
	if err != nil {
		return nil, nil, err
	}
	secrets, err := p.VaultStore(nil)
	if err != nil {
		return nil, nil, err
	}
	l, closeLedger, err := p.LedgerClient(ctx, hc, signingKey)
	if err != nil {
		return nil, nil, err
	}
	c, err := client.NewClient(client.ClientOptions{Blob: blob, Vault: secrets, Ledger: l})
	if err != nil {
		closeLedger()
		return nil, nil, err
	}
	return c, closeLedger, nil
}
