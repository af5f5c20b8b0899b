package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gogpu/rthist"
)

var devicesJSON bool

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List Vulkan adapters",
	RunE: func(cmd *cobra.Command, args []string) error {
		adapters, err := rthist.Adapters()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if devicesJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(adapters)
		}
		if len(adapters) == 0 {
			fmt.Fprintln(out, "no adapters found")
			return nil
		}
		for i, a := range adapters {
			fmt.Fprintf(out, "%d: %s (%s)\n", i, a.Name, a.Type)
		}
		return nil
	},
}

func init() {
	devicesCmd.Flags().BoolVar(&devicesJSON, "json", false, "Print JSON")
	rootCmd.AddCommand(devicesCmd)
}
