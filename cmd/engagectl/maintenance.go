package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/trailsocial/engagement/internal/engagement"
	"github.com/trailsocial/engagement/internal/models"
	"github.com/trailsocial/engagement/internal/seed"
)

var withContent bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the engagement tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openContainer()
		if err != nil {
			return err
		}
		defer app.Cleanup(context.Background())

		if err := app.Migrate(withContent); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Migrations completed")
		return nil
	},
}

var rebuildCmd = &cobra.Command{
	Use:   "rebuild-counts",
	Short: "Recompute every view counter from the view event log",
	Long: `rebuild-counts replaces the cached view counters with COUNT(*) over
view_events. It takes the rebuild lock, so only one rebuild runs at a time
across all instances sharing Redis.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openContainer()
		if err != nil {
			return err
		}
		defer app.Cleanup(context.Background())

		rows, err := app.Counters().Rebuild(cmd.Context())
		if err != nil {
			return err
		}
		return printResult(cmd.OutOrStdout(), map[string]int64{"rows_written": rows}, func(w io.Writer) {
			fmt.Fprintf(w, "Rebuilt %d view counters\n", rows)
		})
	},
}

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Report view counters that disagree with the event log",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openContainer()
		if err != nil {
			return err
		}
		defer app.Cleanup(context.Background())

		drift, err := app.Counters().Drift(cmd.Context())
		if err != nil {
			return err
		}
		if err := printResult(cmd.OutOrStdout(), map[string]int64{"drifted_counters": drift}, func(w io.Writer) {
			if drift == 0 {
				fmt.Fprintln(w, "All view counters match the event log")
				return
			}
			fmt.Fprintf(w, "%d view counters drifted; run rebuild-counts\n", drift)
		}); err != nil {
			return err
		}
		if drift > 0 {
			return errDrift
		}
		return nil
	},
}

// errDrift makes verify exit non-zero so it can gate scripts.
var errDrift = errors.New("view counters drifted")

var (
	seedOpts  = seed.DevOptions()
	seedClean bool
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Fill a development database with synthetic users, content and engagement",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openContainer()
		if err != nil {
			return err
		}
		defer app.Cleanup(context.Background())

		if app.Config().IsProduction() {
			return fmt.Errorf("refusing to seed a production database")
		}
		if err := app.Migrate(true); err != nil {
			return err
		}

		seeder := seed.NewSeeder(app.DB(), app.Counters(), app.Claps(), seedOpts.Seed)
		if seedClean {
			if err := seeder.Clean(cmd.Context()); err != nil {
				return err
			}
		}

		summary, err := seeder.Run(cmd.Context(), seedOpts)
		if err != nil {
			return err
		}
		return printResult(cmd.OutOrStdout(), summary, func(w io.Writer) {
			tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
			fmt.Fprintf(tw, "users\t%d\n", summary.Users)
			fmt.Fprintf(tw, "entries\t%d\n", summary.Entries)
			fmt.Fprintf(tw, "comments\t%d\n", summary.Comments)
			fmt.Fprintf(tw, "view events\t%d\n", summary.ViewEvents)
			fmt.Fprintf(tw, "counter rows\t%d\n", summary.CounterRows)
			fmt.Fprintf(tw, "claps\t%d\n", summary.Claps)
			tw.Flush()
		})
	},
}

var countCmd = &cobra.Command{
	Use:   "count <entry|comment> <token>",
	Short: "Show the cached view count and clap total for a permalink token",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		targetType, ok := models.ParseTargetType(args[0])
		if !ok || !targetType.Clappable() {
			return fmt.Errorf("type must be entry or comment")
		}

		app, err := openContainer()
		if err != nil {
			return err
		}
		defer app.Cleanup(context.Background())

		id, ok := app.Obfuscator().Decode(args[1])
		if !ok {
			return fmt.Errorf("invalid %s token %q", targetType, args[1])
		}
		target := engagement.Target{Type: targetType, ID: id}

		views, err := app.Counters().Get(cmd.Context(), target)
		if err != nil {
			return err
		}
		claps, err := app.Claps().GetTotal(cmd.Context(), target)
		if err != nil {
			return err
		}

		result := map[string]int64{"id": id, "view_count": views, "total_claps": claps}
		return printResult(cmd.OutOrStdout(), result, func(w io.Writer) {
			fmt.Fprintf(w, "%s %d: %d views, %d claps\n", targetType, id, views, claps)
		})
	},
}

func init() {
	migrateCmd.Flags().BoolVar(&withContent, "content", false, "Also create the users/entries/comments tables (development only)")

	seedCmd.Flags().IntVar(&seedOpts.Users, "users", seedOpts.Users, "Number of users")
	seedCmd.Flags().IntVar(&seedOpts.Entries, "entries", seedOpts.Entries, "Number of entries")
	seedCmd.Flags().IntVar(&seedOpts.Comments, "comments", seedOpts.Comments, "Number of comments")
	seedCmd.Flags().IntVar(&seedOpts.Views, "views", seedOpts.Views, "Number of view events")
	seedCmd.Flags().IntVar(&seedOpts.Claps, "claps", seedOpts.Claps, "Number of clap submissions")
	seedCmd.Flags().Uint64Var(&seedOpts.Seed, "seed", 0, "Random seed for a reproducible run (0 = random)")
	seedCmd.Flags().BoolVar(&seedClean, "clean", false, "Delete existing rows first")
}
