package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/cochaviz/stackplan/internal/catalog"
	"github.com/cochaviz/stackplan/internal/logging"
	"github.com/cochaviz/stackplan/internal/pairs"
	"github.com/cochaviz/stackplan/internal/planner"
	"github.com/cochaviz/stackplan/internal/rewrite"
)

const (
	defaultLogLevel  = "info"
	defaultLogFormat = "text"
)

// app carries the logger configured by the root flags.
type app struct {
	level  slog.LevelVar
	logger *slog.Logger
}

func main() {
	a := &app{}
	a.level.Set(slog.LevelInfo)
	a.logger = logging.NewCLI(os.Stderr, &a.level)
	slog.SetDefault(a.logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCommand(a)
	if err := root.ExecuteContext(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			a.logger.Warn("command interrupted", "error", err)
			os.Exit(130)
		}
		a.logger.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

func newRootCommand(a *app) *cobra.Command {
	var (
		logLevel  = defaultLogLevel
		logFormat = defaultLogFormat
	)

	root := &cobra.Command{
		Use:           "stackplan",
		Short:         "Plan Sentinel-1 coregistered stack processing runs",
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	root.PersistentFlags().StringVar(&logLevel, "log-level", defaultLogLevel, "Set log verbosity (debug, info, warning, error)")
	root.PersistentFlags().StringVar(&logFormat, "log-format", defaultLogFormat, "Log output format (text, json)")
	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		level, err := logging.ParseLevel(logLevel)
		if err != nil {
			return err
		}
		mode, err := logging.ParseMode(logFormat)
		if err != nil {
			return err
		}
		a.level.Set(level)
		a.logger = logging.New(mode, os.Stderr, &a.level)
		slog.SetDefault(a.logger)
		return nil
	}

	root.AddCommand(
		newPlanCommand(a),
		newStatusCommand(a),
		newPairsCommand(a),
		newRewriteCommand(a),
	)
	return root
}

func newPlanCommand(a *app) *cobra.Command {
	var of optionFlags

	cmd := &cobra.Command{
		Use:   "plan",
		Args:  cobra.NoArgs,
		Short: "Write run files and descriptors for a new or updated stack",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := of.resolve(cmd.Flags())
			if err != nil {
				return err
			}
			cmdLogger := a.logger.With("command", "plan")
			cmdLogger.Info("planning stack",
				"slc_directory", opts.SLCDirectory,
				"working_directory", opts.WorkingDirectory,
				"workflow", opts.Workflow,
				"processing_method", opts.ProcessingMethod,
			)

			service := &planner.Service{Logger: cmdLogger}
			plan, err := service.Run(cmd.Context(), opts)
			if err != nil {
				return err
			}

			cmdLogger.Info("plan completed", "run_id", plan.RunID, "stages", len(plan.Stages), "pairs", len(plan.Pairs))
			return nil
		},
	}

	of.register(cmd.Flags())
	return cmd
}

func newStatusCommand(a *app) *cobra.Command {
	var of optionFlags

	cmd := &cobra.Command{
		Use:   "status",
		Args:  cobra.NoArgs,
		Short: "Show the dates and pairs a plan would use, without writing anything",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := of.resolve(cmd.Flags())
			if err != nil {
				return err
			}

			service := &planner.Service{Logger: a.logger.With("command", "status")}
			plan, err := service.Status(cmd.Context(), opts)
			if err != nil {
				return err
			}

			out, err := yaml.Marshal(plan)
			if err != nil {
				return fmt.Errorf("encode status: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}

	of.register(cmd.Flags())
	return cmd
}

func newPairsCommand(a *app) *cobra.Command {
	connections := widthValue(1)

	cmd := &cobra.Command{
		Use:   "pairs <date>[,<date>...]",
		Args:  cobra.MinimumNArgs(1),
		Short: "Print the interferometric pairs selected for a list of dates",
		RunE: func(cmd *cobra.Command, args []string) error {
			var dates []catalog.Date
			for _, arg := range args {
				parsed, err := catalog.ParseDateList(arg)
				if err != nil {
					return err
				}
				dates = append(dates, parsed...)
			}
			dates = catalog.SortDates(dates)

			selected := pairs.Select(dates, pairs.Width(connections))
			a.logger.Debug("pairs selected", "command", "pairs", "dates", len(dates), "pairs", len(selected))
			for _, p := range selected {
				fmt.Fprintln(cmd.OutOrStdout(), p.String())
			}
			return nil
		},
	}

	cmd.Flags().VarP(&connections, "num-connections", "c", "Number of later dates each date is paired with, or \"all\"")
	return cmd
}

func newRewriteCommand(a *app) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "rewrite <configs-dir>",
		Args:  cobra.ExactArgs(1),
		Short: "Relocate squeesar interferogram descriptors onto the merged SLCs",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := strings.TrimSpace(args[0])
			if dir == "" {
				return fmt.Errorf("configs directory is required")
			}

			rewriter := &rewrite.Rewriter{
				Logger: a.logger.With("command", "rewrite"),
				DryRun: dryRun,
			}
			results, err := rewriter.Rewrite(dir)
			if err != nil {
				return err
			}
			if dryRun {
				for _, r := range results {
					fmt.Fprint(cmd.OutOrStdout(), r.Diff)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the changes as unified diffs instead of applying them")
	return cmd
}
