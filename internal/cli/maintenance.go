package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/JonMunkholm/ingest/internal/admin"
	"github.com/JonMunkholm/ingest/internal/ingest"
	"github.com/JonMunkholm/ingest/internal/store"
	"github.com/spf13/cobra"
)

var (
	errNoDatabase   = errors.New("no database configured: set DATABASE_URL or pass --database-url")
	errNotConfirmed = errors.New("refusing to reset without --yes")
)

func newMigrateCmd() *cobra.Command {
	var dsn string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if dsn == "" {
				cfg, err := loadConfig()
				if err != nil {
					return err
				}
				dsn = cfg.Database.URL
			}
			if dsn == "" {
				return errNoDatabase
			}
			if err := store.Migrate(cmd.Context(), dsn); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}

	cmd.Flags().StringVar(&dsn, "database-url", "", "PostgreSQL connection string (default: DATABASE_URL)")
	return cmd
}

func newSweepCmd(root *rootOptions) *cobra.Command {
	var (
		dir    string
		maxAge time.Duration
	)

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Remove leftover staging files from the scratch directory",
		Long: `Remove staged uploads and unpack directories older than --max-age.
Produced files are kept.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if dir == "" || !cmd.Flags().Changed("max-age") {
				cfg, err := loadConfig()
				if err != nil {
					return err
				}
				if dir == "" {
					dir = cfg.Ingest.TempDir
				}
				if !cmd.Flags().Changed("max-age") {
					maxAge = cfg.Ingest.SweepMaxAge
				}
			}
			if maxAge <= 0 {
				return fmt.Errorf("--max-age must be positive")
			}

			scratch, err := ingest.NewScratch(dir)
			if err != nil {
				return err
			}
			removed, err := scratch.Sweep(maxAge)
			if err != nil {
				root.logger(cmd).Warn("sweep incomplete", "dir", dir, "error", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d entries from %s\n", removed, dir)
			return err
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "Scratch directory (default: INGEST_TEMP_DIR)")
	cmd.Flags().DurationVar(&maxAge, "max-age", 0, "Minimum age of removed entries (default: INGEST_SWEEP_MAX_AGE)")
	return cmd
}

func newResetCmd() *cobra.Command {
	var (
		dsn     string
		confirm bool
	)

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete all ingestion records and quota usage",
		Long: `Delete all ingestion records and zero every owner's quota usage.
Produced files are not removed. Requires --yes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !confirm {
				return errNotConfirmed
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if dsn != "" {
				cfg.Database.URL = dsn
			}
			if cfg.Database.URL == "" {
				return errNoDatabase
			}

			pg, err := store.OpenPostgres(cmd.Context(), cfg.Database)
			if err != nil {
				return err
			}
			defer pg.Close()

			if err := admin.ResetAll(cmd.Context(), pg); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "store reset")
			return nil
		},
	}

	cmd.Flags().StringVar(&dsn, "database-url", "", "PostgreSQL connection string (default: DATABASE_URL)")
	cmd.Flags().BoolVar(&confirm, "yes", false, "Confirm the reset")
	return cmd
}
