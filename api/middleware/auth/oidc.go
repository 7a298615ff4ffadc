package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

func startJWKCache(ctx context.Context, jwksURL string) (*jwk.Cache, error) {
	c := jwk.NewCache(ctx)
	if err := c.Register(jwksURL, jwk.WithMinRefreshInterval(15*time.Minute)); err != nil {
		return nil, err
	}
	if _, err := c.Refresh(ctx, jwksURL); err != nil {
		return nil, err
	}
	slog.Info("jwk cache started", slog.String("jwks", jwksURL))
	return c, nil
}

// OidcAuth rejects requests that do not carry a bearer token signed by a key
// from jwksURL. The key set is refreshed in the background until ctx ends.
func OidcAuth(ctx context.Context, jwksURL string) (func(next http.Handler) http.Handler, error) {
	c, err := startJWKCache(ctx, jwksURL)
	if err != nil {
		return nil, err
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			keyset, err := c.Get(r.Context(), jwksURL)
			if err != nil {
				slog.Error("could not retrieve keyset", slog.Any("error", err))
				http.Error(w, "internal server error validating authorization header", http.StatusInternalServerError)
				return
			}
			authHeader := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok || token == "" {
				http.Error(w, "missing authorization header", http.StatusUnauthorized)
				return
			}
			_, err = jwt.ParseString(token, jwt.WithKeySet(keyset), jwt.WithValidate(true))
			if err == nil {
				next.ServeHTTP(w, r)
				return
			}
			if jwt.IsValidationError(err) {
				slog.Info("jwt could not be validated", slog.Any("error", err))
				http.Error(w, err.Error(), http.StatusUnauthorized)
				return
			}
			slog.Info("jwt could not be parsed", slog.Any("error", err))
			http.Error(w, err.Error(), http.StatusUnauthorized)
		})
	}, nil
}
