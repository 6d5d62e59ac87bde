// Package cli implements ingestctl, the command-line client that runs the
// ingestion pipeline against local files and maintains the service's
// database and scratch directory.
package cli

import (
	"log/slog"

	"github.com/JonMunkholm/ingest/internal/config"
	"github.com/JonMunkholm/ingest/internal/logging"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	logLevel  string
	logFormat string
}

// NewRootCmd builds the ingestctl command tree.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "ingestctl",
		Short: "File ingestion tool",
		Long: "Command line interface to the ingestion pipeline: unpack and fingerprint " +
			"local files, classify them, and maintain the ingest service's storage.",
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn",
		"Log level: debug, info, warn, error")
	cmd.PersistentFlags().StringVar(&opts.logFormat, "log-format", "text",
		"Log format: text or json")

	cmd.AddCommand(newIngestCmd(opts))
	cmd.AddCommand(newClassifyCmd())
	cmd.AddCommand(newMigrateCmd())
	cmd.AddCommand(newSweepCmd(opts))
	cmd.AddCommand(newResetCmd())

	return cmd
}

// Execute runs ingestctl with the process arguments.
func Execute() error {
	return NewRootCmd().Execute()
}

// logger writes to stderr so stdout stays machine-readable.
func (o *rootOptions) logger(cmd *cobra.Command) *slog.Logger {
	return logging.New(cmd.ErrOrStderr(), o.logLevel, o.logFormat)
}

// loadConfig reads the service configuration the same way the server does.
func loadConfig() (*config.Config, error) {
	return config.Load()
}
