package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gogpu/rthist"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "rthist version %s\n", rthist.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
