/*
Copyright © 2023 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"log"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var headerStyle = lipgloss.NewStyle().Bold(true)

// listCmd represents the list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List published artifacts",
	Run:   list,
}

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().Int("page-size", 10, "Records per page")
	listCmd.Flags().String("bookmark", "", "Bookmark returned by the previous page")
}

func list(cmd *cobra.Command, args []string) {
	pageSize, err := cmd.Flags().GetInt("page-size")
	if err != nil {
		log.Fatal(err)
	}
	bookmark, err := cmd.Flags().GetString("bookmark")
	if err != nil {
		log.Fatal(err)
	}

	c, closeLedger := newArtifactClient(cmd)
	defer closeLedger()

	records, next, err := c.List(cmd.Context(), pageSize, bookmark)
	if err != nil {
		log.Fatal(err)
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	header := []string{"UUID", "TIMESTAMP", "SENDER", "ACCESS", "DESCRIPTION"}
	for i, h := range header {
		header[i] = headerStyle.Render(h)
	}
	fmt.Fprintln(tw, strings.Join(header, "\t"))
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.UUID, r.Timestamp, r.SenderIdentity, strings.Join(r.AccessList, ","), r.Description)
	}
	tw.Flush()
	if next != "" {
		fmt.Printf("\nMore records: --bookmark %s\n", next)
	}
}
