/*
Copyright © 2023 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"log"

	"github.com/opentdf/ctivault/internal/config"
	"github.com/opentdf/ctivault/internal/crypto"
	"github.com/opentdf/ctivault/pkg/oidc"
	"github.com/spf13/cobra"
)

// loginCmd represents the login command
var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in to the identity provider of a profile",
	Long: `Obtain tokens for the profile's OIDC issuer and generate the RSA key pair
used to sign ledger gateway requests. Credentials are written to
$HOME/.ctivault/credentials.yaml.`,
	Run: login,
}

func init() {
	rootCmd.AddCommand(loginCmd)

	loginCmd.Flags().String("client-id", "", "Client ID (overrides the profile)")
	loginCmd.Flags().String("client-secret", "", "Client Secret (overrides the profile)")
	loginCmd.Flags().String("oidc-issuer", "", "OIDC issuer (overrides the profile)")
}

func login(cmd *cobra.Command, args []string) {
	profile, _ := loadProfile(cmd)
	name, err := cmd.Flags().GetString("profile")
	if err != nil {
		log.Fatal(err)
	}
	overrides := map[string]*string{
		"client-id":     &profile.ClientID,
		"client-secret": &profile.ClientSecret,
		"oidc-issuer":   &profile.OidcIssuer,
	}
	for flag, target := range overrides {
		v, err := cmd.Flags().GetString(flag)
		if err != nil {
			log.Fatal(err)
		}
		if v != "" {
			*target = v
		}
	}

	creds := &config.Credentials{Profile: name}
	creds.PrivateKey, creds.PublicKey, err = crypto.GenerateRSAKeysPem(2048)
	if err != nil {
		log.Fatalf("Error generating RSA keys: %v\n", err)
	}

	oClient, err := oidc.NewOidcClient(cmd.Context(), oidc.OidcConfig{
		ClientID:     profile.ClientID,
		ClientSecret: profile.ClientSecret,
		Issuer:       profile.OidcIssuer,
	})
	if err != nil {
		log.Fatal(err)
	}

	creds.Tokens, err = oClient.Login(cmd.Context())
	if err != nil {
		log.Fatal(err)
	}

	path, err := config.CredentialsPath()
	if err != nil {
		log.Fatal(err)
	}
	if err := config.SaveCredentials(path, creds); err != nil {
		log.Fatal(err)
	}
	fmt.Println("Writing credentials to: ", path)
}
