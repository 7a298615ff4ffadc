/*
Copyright © 2023 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/opentdf/ctivault/api"
	"github.com/opentdf/ctivault/api/middleware/auth"
	"github.com/opentdf/ctivault/internal/crypto"
	"github.com/opentdf/ctivault/internal/ledger"
	"github.com/opentdf/ctivault/pkg/cti/client"
	"github.com/opentdf/ctivault/pkg/oidc"
	"github.com/spf13/cobra"
)

// startCmd represents the start command
var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the ctivault API server",
	Long: `Serve the artifact API and, when the profile uses a local ledger
backend (memory, badger or postgres), the ledger gateway that remote
clients submit to.`,
	Run: start,
}

func init() {
	rootCmd.AddCommand(startCmd)

	startCmd.Flags().String("addr", "", "Listen address (overrides server.addr)")
}

func start(cmd *cobra.Command, args []string) {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	profile, creds := loadProfile(cmd)
	addr, err := cmd.Flags().GetString("addr")
	if err != nil {
		slog.Error("could not read addr flag", slog.Any("error", err))
		os.Exit(1)
	}
	if addr == "" {
		addr = profile.Server.Addr
	}

	opts := api.RouterOptions{
		MaxUploadSize:  profile.Server.MaxUploadSize,
		AllowedOrigins: profile.Server.AllowedOrigins,
	}

	var l ledger.Client
	if profile.Ledger.Backend == "gateway" {
		l, _, err = profile.LedgerClient(ctx, gatewayHTTPClient(ctx, profile, creds), creds.SigningKey())
		if err != nil {
			slog.Error("could not create ledger gateway client", slog.Any("error", err))
			os.Exit(1)
		}
	} else {
		contract, backend, err := profile.Contract(ctx)
		if err != nil {
			slog.Error("could not open ledger backend", slog.String("backend", profile.Ledger.Backend), slog.Any("error", err))
			os.Exit(1)
		}
		defer backend.Close()
		l = contract
		opts.Ledger = contract
	}

	if profile.Server.VerifyKeyFile != "" {
		pem, err := os.ReadFile(profile.Server.VerifyKeyFile)
		if err != nil {
			slog.Error("could not read ledger verify key", slog.Any("error", err))
			os.Exit(1)
		}
		if opts.LedgerVerifyKey, err = crypto.ParsePublicKey(pem); err != nil {
			slog.Error("could not parse ledger verify key", slog.Any("error", err))
			os.Exit(1)
		}
	}

	blob, err := profile.BlobStore(nil)
	if err != nil {
		slog.Error("could not create blob store client", slog.Any("error", err))
		os.Exit(1)
	}
	secrets, err := profile.VaultStore(nil)
	if err != nil {
		slog.Error("could not create vault client", slog.Any("error", err))
		os.Exit(1)
	}
	opts.Artifacts, err = client.NewClient(client.ClientOptions{Blob: blob, Vault: secrets, Ledger: l})
	if err != nil {
		slog.Error("could not create artifact client", slog.Any("error", err))
		os.Exit(1)
	}

	if profile.Server.OidcAuth {
		jwksURL, err := oidc.JWKSURL(ctx, profile.OidcIssuer)
		if err != nil {
			slog.Error("could not discover jwks", slog.Any("error", err))
			os.Exit(1)
		}
		if opts.Auth, err = auth.OidcAuth(ctx, jwksURL); err != nil {
			slog.Error("could not start jwk cache", slog.Any("error", err))
			os.Exit(1)
		}
	}

	r := api.NewRouter(opts)
	chi.Walk(r, func(method, route string, handler http.Handler, middlewares ...func(http.Handler) http.Handler) error {
		slog.Info("loaded route", slog.String("method", method), slog.String("route", route))
		return nil
	})

	server := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	stopChan := make(chan os.Signal, 1)

	signal.Notify(stopChan, os.Interrupt, syscall.SIGTERM)

	// Start the HTTP server in a goroutine
	go func() {
		slog.Info("starting server", slog.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", slog.Any("error", err))
			stopChan <- syscall.SIGTERM
		}
	}()

	<-stopChan
	slog.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	// If it doesn't complete in 15 seconds, it will be forcefully stopped
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown failed", slog.Any("error", err))
		os.Exit(1)
	}
	slog.Info("server stopped gracefully")
}
