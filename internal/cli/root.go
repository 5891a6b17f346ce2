// Package cli contains the command line setup and the commands exposed to
// the user.
package cli

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	ConfigFile string
	LogLevel   string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "presence",
	Short: "Realtime presence and event fan-out hub for voice and text channels",
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		return setLogLevel(LogLevel)
	},
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and runs it.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&ConfigFile, "config", "", "config file (default config/config.$CONFIG_ENV.yaml)")
	rootCmd.PersistentFlags().StringVar(&LogLevel, "log-level", "", "override log level (debug, info, warn, error)")
}

func setLogLevel(level string) error {
	if level == "" {
		return nil
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return err
	}
	zerolog.SetGlobalLevel(lvl)
	return nil
}
