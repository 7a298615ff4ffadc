package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/exec"
	"runtime"
	"time"

	"golang.org/x/oauth2"
)

// AuthorizationCodePKCE logs an interactive user in through the browser.
// Oauth2Config.RedirectURL must point at CallbackAddr.
type AuthorizationCodePKCE struct {
	Oauth2Config *oauth2.Config
	Tokens       *oauth2.Token
	CallbackAddr string
}

type callbackResult struct {
	tokens *oauth2.Token
	err    error
}

func (acp *AuthorizationCodePKCE) Login(ctx context.Context) (*oauth2.Token, error) {
	conf := acp.Oauth2Config
	addr := acp.CallbackAddr
	if addr == "" {
		addr = "localhost:3000"
	}

	verifier, err := generateCodeVerifier()
	if err != nil {
		return nil, err
	}
	challenge := generateCodeChallenge(verifier)
	state, err := generateCodeVerifier()
	if err != nil {
		return nil, err
	}

	done := make(chan callbackResult, 1)
	mux := http.NewServeMux()
	mux.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("state") != state {
			http.Error(w, "state mismatch", http.StatusBadRequest)
			return
		}
		code := r.URL.Query().Get("code")
		if code == "" {
			http.Error(w, "missing authorization code", http.StatusBadRequest)
			return
		}
		tokens, err := conf.Exchange(r.Context(), code, oauth2.SetAuthURLParam("code_verifier", verifier))
		if err != nil {
			http.Error(w, "failed to exchange authorization code", http.StatusInternalServerError)
			done <- callbackResult{err: err}
			return
		}
		fmt.Fprintln(w, "Return to the CLI to continue.")
		done <- callbackResult{tokens: tokens}
	})

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, errors.Join(errors.New("could not start callback listener"), err)
	}
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			slog.Error("callback server failed", slog.Any("error", err))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	url := conf.AuthCodeURL(state, oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("code_challenge", challenge),
		oauth2.SetAuthURLParam("code_challenge_method", "S256"))
	fmt.Println(url)
	if err := openBrowser(url); err != nil {
		slog.Info("open the url above to continue", slog.Any("error", err))
	}

	select {
	case res := <-done:
		if res.err != nil {
			return nil, res.err
		}
		acp.Tokens = res.tokens
		return res.tokens, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (acp *AuthorizationCodePKCE) Client(ctx context.Context) (*http.Client, error) {
	tokens, err := acp.Oauth2Config.TokenSource(ctx, acp.Tokens).Token()
	if err != nil {
		return nil, err
	}
	return acp.Oauth2Config.Client(ctx, tokens), nil
}

func openBrowser(url string) error {
	var err error

	switch runtime.GOOS {
	case "linux":
		err = exec.Command("xdg-open", url).Start()
	case "darwin":
		err = exec.Command("open", url).Start()
	case "windows":
		err = exec.Command("rundll32", "url.dll,FileProtocolHandler", url).Start()
	default:
		err = fmt.Errorf("unsupported platform")
	}

	if err != nil {
		return fmt.Errorf("failed to open browser: %v", err)
	}

	return nil
}

func generateCodeVerifier() (string, error) {
	randomBytes := make([]byte, 32)
	_, err := rand.Read(randomBytes)
	if err != nil {
		return "", fmt.Errorf("failed to generate code verifier: %v", err)
	}
	return base64.RawURLEncoding.EncodeToString(randomBytes), nil
}

func generateCodeChallenge(verifier string) string {
	hash := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(hash[:])
}
