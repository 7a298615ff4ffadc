/*
Copyright © 2023 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"
)

// decryptCmd represents the decrypt command
var decryptCmd = &cobra.Command{
	Use:   "decrypt <uuid> [output]",
	Short: "Retrieve, decrypt and verify an artifact",
	Long: `Reconstruct an artifact from its metadata record. The plaintext is only
written once it has been authenticated and matched against the recorded
hash. Without an output file it is written to stdout.`,
	Args: cobra.RangeArgs(1, 2),
	Run:  decrypt,
}

func init() {
	rootCmd.AddCommand(decryptCmd)
}

func decrypt(cmd *cobra.Command, args []string) {
	c, closeLedger := newArtifactClient(cmd)
	defer closeLedger()

	res, err := c.Retrieve(cmd.Context(), args[0])
	if err != nil {
		log.Fatal(err)
	}

	if len(args) == 1 {
		if _, err := os.Stdout.Write(res.Plaintext); err != nil {
			log.Fatal(err)
		}
		return
	}
	if err := os.WriteFile(args[1], res.Plaintext, 0o600); err != nil {
		log.Fatal(err)
	}
	fmt.Fprintf(os.Stderr, "%s: %s (%d bytes) written to %s\n", res.Record.UUID, res.Status, len(res.Plaintext), args[1])
}
