/*
Copyright © 2023 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"log"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
)

// showCmd represents the show command
var showCmd = &cobra.Command{
	Use:   "show <uuid>",
	Short: "Show the metadata record of an artifact",
	Args:  cobra.ExactArgs(1),
	Run:   show,
}

func init() {
	rootCmd.AddCommand(showCmd)
}

func show(cmd *cobra.Command, args []string) {
	c, closeLedger := newArtifactClient(cmd)
	defer closeLedger()

	record, err := c.Show(cmd.Context(), args[0])
	if err != nil {
		log.Fatal(err)
	}
	out, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(string(out))
}
