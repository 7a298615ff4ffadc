package vault

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/vault/api"
	"github.com/opentdf/ctivault/pkg/cti"
)

const (
	defaultAddress = "http://127.0.0.1:8200"
	defaultMount   = "kv-v2"
	defaultTimeout = 30 * time.Second

	valueField = "value"
)

// KV2Client talks to a Vault KV version 2 secrets engine.
type KV2Client struct {
	*api.Client
	Mount          string
	RequestTimeout time.Duration
}

type KV2ClientOptions struct {
	HttpClient *http.Client
	Address    *url.URL
	Mount      string
	Token      string
	Namespace  string
	Timeout    time.Duration
}

func NewKV2Client(ops ...KV2ClientOptions) (*KV2Client, error) {
	var opts KV2ClientOptions
	if len(ops) > 0 {
		opts = ops[0]
	}
	clientDefaults(&opts)

	conf := api.DefaultConfig()
	if opts.HttpClient != nil {
		conf.HttpClient = opts.HttpClient
	}
	conf.Address = opts.Address.String()
	conf.Timeout = opts.Timeout
	// Pipelines never retry; a failed call surfaces as one typed error.
	conf.MaxRetries = 0

	vc, err := api.NewClient(conf)
	if err != nil {
		return nil, errors.Join(errors.New("unable to create vault client"), err)
	}
	if opts.Token != "" {
		vc.SetToken(opts.Token)
	}
	if opts.Namespace != "" {
		vc.SetNamespace(opts.Namespace)
	}
	return &KV2Client{
		Client:         vc,
		Mount:          strings.Trim(opts.Mount, "/"),
		RequestTimeout: opts.Timeout,
	}, nil
}

func clientDefaults(opts *KV2ClientOptions) {
	if opts.Address == nil || opts.Address.String() == "" {
		opts.Address, _ = url.Parse(defaultAddress)
	}
	if opts.Mount == "" {
		opts.Mount = defaultMount
	}
	if opts.Timeout == 0 {
		opts.Timeout = defaultTimeout
	}
}

// PutSecret writes with cas=0, so it only succeeds when no version of the
// secret exists yet.
func (c *KV2Client) PutSecret(ctx context.Context, name, value string) error {
	const op = "vault put secret"
	ctx, cancel := context.WithTimeout(ctx, c.RequestTimeout)
	defer cancel()

	_, err := c.KVv2(c.Mount).Put(ctx, name, map[string]interface{}{valueField: value}, api.WithCheckAndSet(0))
	if err == nil {
		return nil
	}
	var respErr *api.ResponseError
	if errors.As(err, &respErr) && respErr.StatusCode == http.StatusBadRequest {
		if strings.Contains(strings.Join(respErr.Errors, " "), "check-and-set") {
			return cti.Errorf(cti.KindAlreadyExists, op, "secret %s already exists", name)
		}
		return cti.E(cti.KindInvalidRecord, op, err)
	}
	return classify(op, err)
}

func (c *KV2Client) GetSecret(ctx context.Context, name string) (string, error) {
	const op = "vault get secret"
	ctx, cancel := context.WithTimeout(ctx, c.RequestTimeout)
	defer cancel()

	secret, err := c.KVv2(c.Mount).Get(ctx, name)
	if err != nil {
		return "", classify(op, err)
	}
	value, ok := secret.Data[valueField].(string)
	if !ok || value == "" {
		return "", cti.Errorf(cti.KindResponseFormat, op, "secret %s has no value field", name)
	}
	return value, nil
}

// classify maps Vault API failures onto error kinds by status code.
func classify(op string, err error) error {
	if errors.Is(err, api.ErrSecretNotFound) {
		return cti.E(cti.KindNotFound, op, err)
	}
	var respErr *api.ResponseError
	if errors.As(err, &respErr) {
		return cti.E(cti.StatusKind(respErr.StatusCode), op, err)
	}
	return cti.Classify(op, err, cti.KindTransient)
}
