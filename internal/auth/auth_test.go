package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"golang.org/x/oauth2/clientcredentials"
)

func TestGenerateCodeChallenge(t *testing.T) {
	got := generateCodeChallenge("dBjftJeZ4CVP-mJ92K9qzeC6LAc1UHPuz5rD3c7_SWA")
	want := "2CD5iEtpMrKxSrNY7fXzfooqtxG-cWE0pgzRLqo9Pek"
	if got != want {
		t.Fatalf("Got [%s]... wanted [%s]", got, want)
	}
}

func TestGenerateCodeVerifierIsRandom(t *testing.T) {
	a, err := generateCodeVerifier()
	if err != nil {
		t.Fatal(err)
	}
	b, err := generateCodeVerifier()
	if err != nil {
		t.Fatal(err)
	}
	if a == b || len(a) != 43 {
		t.Fatalf("Got [%s] and [%s]... wanted two distinct 43 character verifiers", a, b)
	}
}

func TestClientCredentialsLogin(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil || r.Form.Get("grant_type") != "client_credentials" {
			http.Error(w, "bad grant", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "service-token",
			"token_type":   "Bearer",
			"expires_in":   300,
		})
	}))
	defer srv.Close()

	cc := &ClientCredentials{Config: &clientcredentials.Config{
		ClientID:     "ctivault",
		ClientSecret: "secret",
		TokenURL:     srv.URL,
	}}
	tokens, err := cc.Login(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if tokens.AccessToken != "service-token" {
		t.Fatalf("Got [%s]... wanted [service-token]", tokens.AccessToken)
	}
}
