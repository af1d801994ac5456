// Package cmd implements the hlsvod CLI commands.
package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hlsvod/hlsvod/internal/apperr"
	"github.com/hlsvod/hlsvod/internal/version"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:     "hlsvod",
	Short:   "On-demand HLS VOD origin server",
	Version: version.String(),
	Long: `hlsvod serves local MP4/M4V/MKV/WebM files as on-demand HLS (fMP4/CMAF)
with WebVTT subtitles, entirely in memory and without invoking any external
media-tool process.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (TOML or YAML)")
}

// Execute runs the root command and returns the process exit code.
// serve.go calls os.Exit directly once the server is actually running;
// this return value only covers cobra-level failures that happen before
// serve.go takes over (bad flags, unknown subcommand), which map to the
// config-error exit code that main.go passes to os.Exit.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		return apperr.ExitConfigError
	}
	return apperr.ExitOK
}

func newViper() *viper.Viper {
	return viper.New()
}
