/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"log/slog"

	"github.com/spf13/cobra"

	"txflow/internal/bootstrap/logging"
	"txflow/internal/errs"
)

var (
	cfgFile  string
	logLevel string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:          "txflow",
	Short:        "Declarative transaction propagation demo",
	Long:         "Runs post and scenario workloads through the txflow transaction manager (Cobra + Viper + GORM SQLite no-cgo).",
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}

	ctx = logging.WithLogger(ctx, logging.New(rootCmd.ErrOrStderr(), "info"))
	ctx = logging.WithAttrs(ctx, slog.String("app", "txflow"))

	rootCmd.SetContext(ctx)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logging.Error(ctx, "command execution failed", slog.Any("err", errs.Loggable(err)))
		return errs.Wrap(err, "execute root command")
	}

	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file path (default ./configs/config.yaml or ./config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides log.level)")
}
