/*
Copyright © 2023 OpenTDF opentdf@virtru.com
*/
package cmd

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/opentdf/ctivault/internal/config"
	"github.com/opentdf/ctivault/pkg/cti/client"
	"github.com/opentdf/ctivault/pkg/oidc"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// loadViperConfig reads the config file named by --config, or the default
// locations.
func loadViperConfig(cmd *cobra.Command) error {
	file, err := cmd.Flags().GetString("config")
	if err != nil {
		log.Fatal(err)
	}
	return config.LoadViperConfig(viper.GetViper(), file)
}

// loadProfile resolves the --profile profile and any stored credentials.
// Running without a config file is allowed; environment variables and
// defaults still apply.
func loadProfile(cmd *cobra.Command) (*config.Profile, *config.Credentials) {
	if err := loadViperConfig(cmd); err != nil {
		fmt.Println("No config file found, continuing with environment and defaults")
	}
	name, err := cmd.Flags().GetString("profile")
	if err != nil {
		log.Fatal(err)
	}
	profile, err := config.LoadProfile(viper.GetViper(), name)
	if err != nil {
		log.Fatal(err)
	}

	credsPath, err := config.CredentialsPath()
	if err != nil {
		log.Fatal(err)
	}
	creds, err := config.LoadCredentials(credsPath)
	if err != nil {
		log.Fatal(err)
	}
	if creds != nil && creds.Profile != name {
		creds = nil
	}
	return profile, creds
}

// gatewayHTTPClient prefers a self-renewing client credentials client and
// falls back to the token stored by login.
func gatewayHTTPClient(ctx context.Context, profile *config.Profile, creds *config.Credentials) *http.Client {
	if profile.ClientSecret == "" || profile.OidcIssuer == "" {
		return creds.HTTPClient(ctx)
	}
	oClient, err := oidc.NewOidcClient(ctx, oidc.OidcConfig{
		ClientID:     profile.ClientID,
		ClientSecret: profile.ClientSecret,
		Issuer:       profile.OidcIssuer,
	})
	if err != nil {
		log.Fatal(err)
	}
	hc, err := oClient.Client(ctx)
	if err != nil {
		log.Fatal(err)
	}
	return hc
}

func newArtifactClient(cmd *cobra.Command) (*client.Client, func() error) {
	profile, creds := loadProfile(cmd)
	ctx := cmd.Context()
	c, closeLedger, err := profile.ArtifactClient(ctx, gatewayHTTPClient(ctx, profile, creds), creds.SigningKey())
	if err != nil {
		log.Fatal(err)
	}
	return c, closeLedger
}
