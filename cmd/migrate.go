/*
Copyright © 2023 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"log"

	"github.com/opentdf/ctivault/internal/db"
	"github.com/spf13/cobra"
)

// migrateCmd represents the migrate command
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the postgres ledger schema migrations",
	Long: `Apply the embedded migrations to the database named by ledger.dburl or
CTIVAULT_DB_URL. Requires the atlas binary on PATH.`,
	Run: migrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func migrate(cmd *cobra.Command, args []string) {
	profile, _ := loadProfile(cmd)
	if profile.Ledger.DBURL == "" {
		log.Fatal("ledger.dburl (or CTIVAULT_DB_URL) is not set")
	}
	dbClient, err := db.NewClient(cmd.Context(), profile.Ledger.DBURL)
	if err != nil {
		log.Fatal("could not establish database connection: ", err)
	}
	defer dbClient.Close()

	applied, err := dbClient.RunMigrations(cmd.Context())
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("Applied %d migration(s)\n", applied)
}
