/*
Copyright © 2023 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"bytes"
	"fmt"
	"log"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/opentdf/ctivault/internal/config"
	"github.com/opentdf/ctivault/internal/tui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "configure",
	Short: "Create or update a ctivault profile",
	Run:   configure,
}

func init() {
	rootCmd.AddCommand(configCmd)
}

func configure(cmd *cobra.Command, args []string) {
	if err := loadViperConfig(cmd); err != nil {
		fmt.Println("No config file found, continuing without config file")
	}
	name, err := cmd.Flags().GetString("profile")
	if err != nil {
		log.Fatal(err)
	}
	existing, err := config.LoadProfile(viper.GetViper(), name)
	if err != nil {
		log.Fatal(err)
	}

	p := tea.NewProgram(tui.InitialModel(map[int]string{
		tui.ProfileName:    name,
		tui.OidcIssuer:     existing.OidcIssuer,
		tui.ClientID:       existing.ClientID,
		tui.BlobBackend:    existing.Blob.Backend,
		tui.BlobCluster:    existing.Blob.Cluster,
		tui.BlobGateway:    existing.Blob.Gateway,
		tui.VaultAddress:   existing.Vault.Address,
		tui.LedgerBackend:  existing.Ledger.Backend,
		tui.LedgerEndpoint: existing.Ledger.Endpoint,
	}))
	m, err := p.Run()
	if err != nil {
		fmt.Printf("the tea is rotten: %v", err)
		os.Exit(1)
	}
	// Assert the final tea.Model to our local model and print the choice.
	model, ok := m.(tui.Model)
	if !ok {
		fmt.Print("can't assert tui model")
		os.Exit(1)
	}

	if model.Quit {
		fmt.Println("Not saving configuration...")
		os.Exit(0)
	}

	profile := *existing
	profile.OidcIssuer = model.Value(tui.OidcIssuer)
	profile.ClientID = model.Value(tui.ClientID)
	if secret := model.Value(tui.ClientSecret); secret != "" {
		profile.ClientSecret = secret
	}
	profile.Blob.Backend = model.Value(tui.BlobBackend)
	profile.Blob.Cluster = model.Value(tui.BlobCluster)
	profile.Blob.Gateway = model.Value(tui.BlobGateway)
	profile.Vault.Address = model.Value(tui.VaultAddress)
	if token := model.Value(tui.VaultToken); token != "" {
		profile.Vault.Token = token
	}
	profile.Ledger.Backend = model.Value(tui.LedgerBackend)
	profile.Ledger.Endpoint = model.Value(tui.LedgerEndpoint)

	profileName := model.Value(tui.ProfileName)
	if profileName == "" {
		profileName = config.DefaultProfile
	}
	cfg := config.Config{
		Profiles: map[string]config.Profile{
			profileName: profile,
		},
	}
	yamlConfig, err := yaml.Marshal(&cfg)
	if err != nil {
		fmt.Printf("could not marshal configuration to []byte: %v", err)
		os.Exit(1)
	}
	if err := viper.MergeConfig(bytes.NewReader(yamlConfig)); err != nil {
		fmt.Printf("could not merge existing configuration: %v", err)
		os.Exit(1)
	}

	dir, err := config.Dir()
	if err != nil {
		log.Println(err)
		os.Exit(1)
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		log.Println(err)
		os.Exit(1)
	}
	path := filepath.Join(dir, "config")
	if err := viper.WriteConfigAs(path); err != nil {
		fmt.Printf("viper could not save configuration: %v", err)
		os.Exit(1)
	}
	fmt.Println("Config saved! ", path)
}
