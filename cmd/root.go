// Package cmd implements the command-line interface for leakscan.
// It provides the root command and subcommands for running the API server,
// queue workers, and one-shot scans.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/north-cloud/leakscan/cmd/jobs"
	"github.com/north-cloud/leakscan/cmd/scan"
	"github.com/north-cloud/leakscan/cmd/serve"
	"github.com/north-cloud/leakscan/cmd/worker"
	"github.com/north-cloud/leakscan/internal/config"
)

var (
	// cfgFile holds the path to the configuration file.
	cfgFile string

	// debug enables debug logging for all commands.
	debug bool

	rootCmd = &cobra.Command{
		Use:   "leakscan",
		Short: "Credential leak scanner",
		Long:  `Scans leak sources for exposed credentials and stores deduplicated findings.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
)

// Execute runs the root command.
func Execute() error {
	// Parse flags early so --config and --debug are visible to initConfig.
	_ = rootCmd.ParseFlags(os.Args[1:])

	if err := initConfig(); err != nil {
		return fmt.Errorf("failed to initialize configuration: %w", err)
	}
	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		"",
		"config file (default is ./config.yaml or ./config/config.yaml)",
	)
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("leakscan version %s\n", "1.0.0")
		},
	})

	rootCmd.AddCommand(serve.Command())
	rootCmd.AddCommand(worker.Command())
	rootCmd.AddCommand(scan.Command())
	rootCmd.AddCommand(jobs.Command())
}

// initConfig sets up Viper from flags, environment, and config files.
func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := config.InitializeViper(); err != nil {
		return err
	}

	if debug {
		viper.Set("server.debug", true)
		viper.Set("logging.level", "debug")
	}

	return nil
}
