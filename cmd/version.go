/*
Copyright © 2023 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"

	"github.com/opentdf/ctivault/internal/version"
	"github.com/spf13/cobra"
)

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		v := version.GetVersion()
		fmt.Printf("ctivault %s (%s) built %s\n", v.Version, v.VersionLong, v.BuildTime)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
