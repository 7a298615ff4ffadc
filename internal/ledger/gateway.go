package ledger

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/goccy/go-json"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/opentdf/ctivault/internal/crypto"
	"github.com/opentdf/ctivault/pkg/cti"
)

const (
	submitEndpoint   = "submit"
	evaluateEndpoint = "evaluate"
)

// GatewayClient talks to a ledger gateway over HTTP.
type GatewayClient struct {
	*http.Client
	Endpoint       *url.URL
	RequestTimeout time.Duration
	signingKey     any
}

type GatewayClientOptions struct {
	HttpClient *http.Client
	Endpoint   *url.URL
	// SigningKey is a PEM encoded RSA private key. When set, request bodies
	// are sent as a signed token.
	SigningKey []byte
	Timeout    time.Duration
}

// Invocation is the request body of both gateway endpoints.
type Invocation struct {
	Function string   `json:"function"`
	Args     []string `json:"args"`
}

// SignedRequest wraps a signed Invocation.
type SignedRequest struct {
	SignedRequestToken string `json:"signedRequestToken"`
}

type EvaluateResponse struct {
	Result json.RawMessage `json:"result"`
}

// ErrorResponse is what the gateway writes on failure.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

func NewGatewayClient(ops ...GatewayClientOptions) (*GatewayClient, error) {
	client := &GatewayClient{}
	if len(ops) > 0 {
		client.Client = ops[0].HttpClient
		if ops[0].Endpoint != nil && ops[0].Endpoint.String() != "" {
			client.Endpoint = ops[0].Endpoint
		}
		client.RequestTimeout = ops[0].Timeout
		if len(ops[0].SigningKey) > 0 {
			key, err := crypto.ParsePrivateKey(ops[0].SigningKey)
			if err != nil {
				return nil, errors.Join(errors.New("unable to parse gateway signing key"), err)
			}
			client.signingKey = key
		}
	}
	gatewayClientDefaults(client)
	return client, nil
}

func gatewayClientDefaults(client *GatewayClient) {
	if client.Client == nil {
		client.Client = http.DefaultClient
	}
	if client.Endpoint == nil {
		client.Endpoint, _ = url.Parse("http://127.0.0.1:8080/api/ledger")
	}
	if client.RequestTimeout == 0 {
		client.RequestTimeout = 30 * time.Second
	}
}

func (c *GatewayClient) Submit(ctx context.Context, function string, args ...string) (*Receipt, error) {
	body, err := c.invoke(ctx, submitEndpoint, function, args)
	if err != nil {
		return nil, err
	}
	var receipt Receipt
	if err := json.Unmarshal(body, &receipt); err != nil {
		return nil, cti.E(cti.KindResponseFormat, function, err)
	}
	return &receipt, nil
}

func (c *GatewayClient) Evaluate(ctx context.Context, function string, args ...string) (*Result, error) {
	body, err := c.invoke(ctx, evaluateEndpoint, function, args)
	if err != nil {
		return nil, err
	}
	var resp EvaluateResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, cti.E(cti.KindResponseFormat, function, err)
	}
	return ParseResult(resp.Result)
}

func (c *GatewayClient) invoke(ctx context.Context, endpoint, function string, args []string) ([]byte, error) {
	if args == nil {
		args = []string{}
	}
	jsonBody, err := json.Marshal(Invocation{Function: function, Args: args})
	if err != nil {
		return nil, err
	}
	if c.signingKey != nil {
		signed, err := SignInvocation(jsonBody, c.signingKey)
		if err != nil {
			return nil, err
		}
		jsonBody, err = json.Marshal(SignedRequest{SignedRequestToken: string(signed)})
		if err != nil {
			return nil, err
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.RequestTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint.JoinPath(endpoint).String(), bytes.NewReader(jsonBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.Do(req)
	if err != nil {
		return nil, cti.Classify(function, err, cti.KindTransient)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, cti.Classify(function, err, cti.KindTransient)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, gatewayError(function, resp.StatusCode, body)
	}
	return body, nil
}

// gatewayError keeps the error kind reported by the gateway and falls back
// to the status code when the body carries none or an unknown one.
func gatewayError(function string, status int, body []byte) error {
	var e ErrorResponse
	if err := json.Unmarshal(body, &e); err == nil && cti.Kind(e.Kind).Known() {
		return &cti.Error{Kind: cti.Kind(e.Kind), Op: function, Message: e.Error}
	}
	return cti.E(cti.StatusKind(status), function,
		fmt.Errorf("ledger %s failed with status code: %d body: %s", function, status, string(body)))
}

// SignInvocation signs an invocation body as an RS256 token valid for five
// minutes.
func SignInvocation(body []byte, key any) ([]byte, error) {
	token := jwt.New()
	if err := token.Set(jwt.ExpirationKey, time.Now().Add(time.Minute*5).Unix()); err != nil {
		return nil, err
	}
	if err := token.Set("requestBody", string(body)); err != nil {
		return nil, err
	}
	return jwt.Sign(token, jwt.WithKey(jwa.RS256, key))
}

// VerifyInvocation checks a signed request token against the signer's public
// key and returns the invocation it carries.
func VerifyInvocation(signed string, key any) (*Invocation, error) {
	const op = "verify invocation"
	token, err := jwt.Parse([]byte(signed), jwt.WithKey(jwa.RS256, key), jwt.WithValidate(true))
	if err != nil {
		return nil, cti.E(cti.KindUnauthorized, op, err)
	}
	raw, ok := token.Get("requestBody")
	if !ok {
		return nil, cti.Errorf(cti.KindUnauthorized, op, "token carries no request body")
	}
	s, ok := raw.(string)
	if !ok {
		return nil, cti.Errorf(cti.KindUnauthorized, op, "request body is not a string")
	}
	var inv Invocation
	if err := json.Unmarshal([]byte(s), &inv); err != nil {
		return nil, cti.E(cti.KindInvalidRecord, op, err)
	}
	return &inv, nil
}
