package auth

import (
	"context"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// ClientCredentials logs a service account in with the OAuth2 client
// credentials grant.
type ClientCredentials struct {
	Config *clientcredentials.Config
	Tokens *oauth2.Token
}

func (cc *ClientCredentials) Login(ctx context.Context) (*oauth2.Token, error) {
	tokens, err := cc.Config.Token(ctx)
	if err != nil {
		return nil, err
	}
	cc.Tokens = tokens
	return tokens, nil
}

// Client returns an HTTP client that attaches and renews the access token.
func (cc *ClientCredentials) Client(ctx context.Context) (*http.Client, error) {
	if _, err := cc.Config.Token(ctx); err != nil {
		return nil, err
	}
	return cc.Config.Client(ctx), nil
}
