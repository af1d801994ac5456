package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hlsvod/hlsvod/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, _ []string) error {
		info := version.GetInfo()
		fmt.Fprintf(cmd.OutOrStdout(), "hlsvod %s (commit %s, built %s, %s)\n",
			info.Version, info.Commit, info.Date, info.GoVersion)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
