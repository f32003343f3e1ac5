package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"txflow/internal/bootstrap"
	"txflow/internal/bootstrap/logging"
	"txflow/internal/errs"
	"txflow/internal/usecase/scenario"
)

var scenarioCmd = &cobra.Command{
	Use:   "scenario",
	Short: "Run transaction scenarios described in TOML or YAML",
}

func newScenarioRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a scenario file and print units, hook firings and persisted posts",
		RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc services) error {
			file, _ := cmd.Flags().GetString("file")
			sc, err := scenario.LoadFile(file)
			if err != nil {
				return errs.Wrap(err, "load scenario")
			}

			report, err := svc.scenarios.Run(cmd.Context(), sc)
			if err != nil {
				return errs.Wrap(err, "run scenario")
			}
			if _, err := fmt.Fprintln(cmd.OutOrStdout(), scenario.Render(report)); err != nil {
				return errs.Wrap(err, "write scenario output")
			}
			return nil
		}),
	}
	cmd.Flags().String("file", "", "Scenario file (.toml, .yaml or .yml)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newScenarioWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Run a scenario file again every time it changes",
		RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc services) error {
			file, _ := cmd.Flags().GetString("file")
			ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))
			logging.Info(ctx, "watching scenario file", slog.String("file", file))

			err := scenario.Watch(ctx, file, func(ctx context.Context, sc scenario.Scenario) error {
				report, err := svc.scenarios.Run(ctx, sc)
				if err != nil {
					return errs.Wrap(err, "run scenario")
				}
				if _, err := fmt.Fprintln(cmd.OutOrStdout(), scenario.Render(report)); err != nil {
					return errs.Wrap(err, "write scenario output")
				}
				return nil
			})
			return errs.Wrap(err, "watch scenario")
		}),
	}
	cmd.Flags().String("file", "", "Scenario file (.toml, .yaml or .yml)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func init() {
	rootCmd.AddCommand(scenarioCmd)
	scenarioCmd.AddCommand(newScenarioRunCmd(), newScenarioWatchCmd())
}
