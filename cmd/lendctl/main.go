package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"lendmark/internal/app"
	"lendmark/internal/config"
	"lendmark/internal/database/migration"
	"lendmark/internal/pkg/logger"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	timeout   time.Duration
	seedsOnly []string
)

var rootCmd = &cobra.Command{
	Use:           "lendctl",
	Short:         "Operational commands for the lendmark backend",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContainer(cmd, func(ctx context.Context, c *app.Container) error {
			return c.Migrate(ctx)
		})
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "List migrations and whether they are applied",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContainer(cmd, func(ctx context.Context, c *app.Container) error {
			statuses, err := c.MigrationStatus(ctx)
			if err != nil {
				return err
			}
			printMigrationStatus(cmd.OutOrStdout(), statuses)
			return nil
		})
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Insert demo users and offers",
	Long: `Insert the demo users and open offers used for local development.

Seeding is idempotent: existing demo rows are left untouched. All seeders
run in one transaction.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContainer(cmd, func(ctx context.Context, c *app.Container) error {
			return c.Seed(ctx, seedsOnly...)
		})
	},
}

var remindCmd = &cobra.Command{
	Use:   "remind",
	Short: "Run one overdue-payment reminder sweep",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContainer(cmd, func(ctx context.Context, c *app.Container) error {
			report, err := c.ReminderUC.RunOnce(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "overdue=%d notified=%d skipped=%d failed=%d\n",
				report.Overdue, report.Notified, report.Skipped, report.Failed)
			return nil
		})
	},
}

func init() {
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 2*time.Minute, "Operation timeout")
	seedCmd.Flags().StringSliceVar(&seedsOnly, "only", nil, "Run only the named seeders (demo_users, demo_offers)")
	migrateCmd.AddCommand(migrateStatusCmd)
	rootCmd.AddCommand(migrateCmd, seedCmd, remindCmd)
}

func printMigrationStatus(w io.Writer, statuses []migration.Status) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "VERSION\tNAME\tSTATE\tAPPLIED AT")
	for _, st := range statuses {
		state := "pending"
		switch {
		case st.Orphaned:
			state = "orphaned"
		case st.Modified:
			state = "modified"
		case st.Applied:
			state = "applied"
		}
		at := "-"
		if st.Applied {
			at = st.AppliedAt.UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", st.Version, st.Name, state, at)
	}
	_ = tw.Flush()
}

func withContainer(cmd *cobra.Command, fn func(ctx context.Context, c *app.Container) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.New(cfg)

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	c, err := app.NewContainer(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := c.Close(); err != nil {
			log.Warn().Err(err).Msg("close container failed")
		}
	}()

	if err := fn(ctx, c); err != nil {
		return err
	}
	log.Info().Str("command", cmd.Name()).Msg("done")
	return nil
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		logger := zerolog.New(os.Stderr)
		logger.Error().Err(err).Msg("lendctl failed")
		os.Exit(1)
	}
}
