package cmd

import (
	"fmt"

	"github.com/msto63/mBOT/pkg/core/version"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Shows the version",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, version.String())
		for _, name := range []string{"dispatch", "command", "service", "apimgr", "gateway", "store"} {
			fmt.Fprintf(out, "  %-10s %s\n", name+":", version.ComponentVersion(name))
		}
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
