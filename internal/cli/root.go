// Package cli implements the seleniumhelpers command, which inspects and
// prepares the environment selenium fixtures run in.
package cli

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	seleniumhelpers "github.com/wanmail/seleniumhelpers"
)

func NewRootCmd() *cobra.Command {
	var debug bool
	rootCmd := &cobra.Command{
		Use:           "seleniumhelpers",
		Short:         "Selenium test environment helper",
		Long:          `Shows how selenium fixtures will resolve their configuration and fetches WebDriver binaries.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			level := zerolog.InfoLevel
			if debug {
				level = zerolog.DebugLevel
			}
			zerolog.SetGlobalLevel(level)
			log.Logger = log.Output(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr()})
		},
	}

	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringP("settings", "s", "", "YAML file with framework-level settings")
	rootCmd.PersistentFlags().String("env-file", "", "dotenv file loaded into the environment; variables already set win")
	// glog flags, used by fetch.
	rootCmd.PersistentFlags().AddGoFlagSet(flag.CommandLine)

	rootCmd.AddCommand(newBrowsersCmd())
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newFetchCmd())

	return rootCmd
}

func Execute() {
	// glog complains about logging before flag.Parse otherwise.
	flag.CommandLine.Parse([]string{})

	rootCmd := NewRootCmd()
	rootCmd.SetContext(context.Background())
	rootCmd.SetOut(os.Stdout)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// loadConfig resolves the configuration the way a fixture started from the
// current environment would.
func loadConfig(cmd *cobra.Command) (seleniumhelpers.Config, error) {
	envFile, _ := cmd.Flags().GetString("env-file")
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return seleniumhelpers.Config{}, fmt.Errorf("failed to load env file: %w", err)
		}
		log.Debug().Str("path", envFile).Msg("loaded env file")
	}

	var settings seleniumhelpers.Settings
	if path, _ := cmd.Flags().GetString("settings"); path != "" {
		s, err := seleniumhelpers.LoadSettings(path)
		if err != nil {
			return seleniumhelpers.Config{}, fmt.Errorf("failed to load settings: %w", err)
		}
		settings = s
	}
	return seleniumhelpers.LoadConfig(settings)
}
