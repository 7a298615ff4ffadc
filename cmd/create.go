/*
Copyright © 2023 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/goccy/go-json"
	"github.com/opentdf/ctivault/pkg/cti/client"
	"github.com/spf13/cobra"
)

// createCmd represents the create command
var createCmd = &cobra.Command{
	Use:   "create <file> <sender> <description>",
	Short: "Encrypt and publish an artifact",
	Long: `Seal a file, store the envelope and its key, and commit the metadata
record. Use - as the file to read from stdin.`,
	Args: cobra.ExactArgs(3),
	Run:  create,
}

func init() {
	rootCmd.AddCommand(createCmd)

	createCmd.Flags().String("uuid", "", "Artifact UUID (default is a random UUID)")
	createCmd.Flags().StringSlice("access", []string{}, "Identities allowed to read the artifact")
}

func create(cmd *cobra.Command, args []string) {
	id, err := cmd.Flags().GetString("uuid")
	if err != nil {
		log.Fatal(err)
	}
	access, err := cmd.Flags().GetStringSlice("access")
	if err != nil {
		log.Fatal(err)
	}

	var plaintext []byte
	if args[0] == "-" {
		plaintext, err = io.ReadAll(os.Stdin)
	} else {
		plaintext, err = os.ReadFile(args[0])
	}
	if err != nil {
		log.Fatal(err)
	}

	c, closeLedger := newArtifactClient(cmd)
	defer closeLedger()

	start := time.Now()
	record, err := c.Publish(cmd.Context(), plaintext, client.PublishOptions{
		UUID:           id,
		SenderIdentity: args[1],
		Description:    args[2],
		AccessList:     access,
	})
	if err != nil {
		log.Fatal(err)
	}
	out, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(string(out))
	fmt.Fprintf(os.Stderr, "Artifact published in %s\n", time.Since(start))
}
