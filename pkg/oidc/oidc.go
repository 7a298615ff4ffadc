package oidc

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/opentdf/ctivault/internal/auth"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const wellKnownSuffix = "/.well-known/openid-configuration"

var scopes = []string{oidc.ScopeOpenID, "profile", "email"}

type OidcConfig struct {
	ClientID     string
	ClientSecret string
	// Issuer may be given as the issuer URL or its discovery document URL.
	Issuer      string
	RedirectURL string
	Tokens      *oauth2.Token
}

type Client interface {
	Login(ctx context.Context) (*oauth2.Token, error)
	Client(ctx context.Context) (*http.Client, error)
}

type providerClaims struct {
	JWKSURI string `json:"jwks_uri"`
}

// NewOidcClient discovers the issuer's endpoints and returns a client
// credentials login when a secret is configured, and a browser PKCE login
// otherwise.
func NewOidcClient(ctx context.Context, conf OidcConfig) (Client, error) {
	provider, err := Discover(ctx, conf.Issuer)
	if err != nil {
		return nil, err
	}
	if conf.ClientSecret != "" {
		return &auth.ClientCredentials{
			Config: &clientcredentials.Config{
				ClientID:     conf.ClientID,
				ClientSecret: conf.ClientSecret,
				Scopes:       scopes,
				TokenURL:     provider.Endpoint().TokenURL,
			},
			Tokens: conf.Tokens,
		}, nil
	}
	redirect := conf.RedirectURL
	if redirect == "" {
		redirect = "http://localhost:3000/callback"
	}
	return &auth.AuthorizationCodePKCE{
		Oauth2Config: &oauth2.Config{
			ClientID:    conf.ClientID,
			Scopes:      scopes,
			RedirectURL: redirect,
			Endpoint:    provider.Endpoint(),
		},
		Tokens:       conf.Tokens,
		CallbackAddr: strings.TrimSuffix(strings.TrimPrefix(strings.TrimPrefix(redirect, "http://"), "https://"), "/callback"),
	}, nil
}

func Discover(ctx context.Context, issuer string) (*oidc.Provider, error) {
	if issuer == "" {
		return nil, errors.New("oidc issuer is not configured")
	}
	provider, err := oidc.NewProvider(ctx, strings.TrimSuffix(issuer, wellKnownSuffix))
	if err != nil {
		return nil, errors.Join(errors.New("could not discover oidc endpoints"), err)
	}
	return provider, nil
}

// JWKSURL returns the location of the issuer's signing keys.
func JWKSURL(ctx context.Context, issuer string) (string, error) {
	provider, err := Discover(ctx, issuer)
	if err != nil {
		return "", err
	}
	var claims providerClaims
	if err := provider.Claims(&claims); err != nil {
		return "", err
	}
	if claims.JWKSURI == "" {
		return "", errors.New("issuer does not publish a jwks_uri")
	}
	return claims.JWKSURI, nil
}
