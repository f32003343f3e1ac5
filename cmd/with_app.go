package cmd

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"txflow/internal/bootstrap"
	"txflow/internal/bootstrap/logging"
	"txflow/internal/errs"
	"txflow/internal/usecase/post"
	"txflow/internal/usecase/scenario"
)

type services struct {
	posts     *post.Service
	scenarios *scenario.Runner
}

func withApp(run func(cmd *cobra.Command, app *bootstrap.App, svc services) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := logging.WithAttrs(
			cmd.Context(),
			slog.String("command", cmd.CommandPath()),
			slog.String("config_file", cfgFile),
		)
		if level := strings.TrimSpace(logLevel); level != "" {
			ctx = logging.WithLogger(ctx, logging.New(cmd.ErrOrStderr(), level))
		}

		var app *bootstrap.App
		var svc services
		fxApp := fx.New(
			bootstrap.Module,
			fx.NopLogger,
			fx.Provide(func() context.Context { return ctx }),
			fx.Provide(
				fx.Annotate(
					func() string { return cfgFile },
					fx.ResultTags(`name:"configFile"`),
				),
			),
			fx.Populate(&app, &svc.posts, &svc.scenarios),
		)

		startCtx, cancelStart := context.WithTimeout(ctx, 10*time.Second)
		defer cancelStart()
		if err := fxApp.Start(startCtx); err != nil {
			logging.Error(ctx, "bootstrap application failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "start fx application")
		}

		defer func() {
			stopCtx, cancelStop := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancelStop()
			if err := fxApp.Stop(stopCtx); err != nil {
				logging.Error(ctx, "fx application stop failed", slog.Any("err", errs.Loggable(err)))
			}
		}()

		// The flag wins; otherwise the configured level applies from here on.
		if strings.TrimSpace(logLevel) == "" && app.Config.Log.Level != "" {
			ctx = logging.WithLogger(ctx, logging.New(cmd.ErrOrStderr(), app.Config.Log.Level))
		}
		cmd.SetContext(ctx)

		if err := run(cmd, app, svc); err != nil {
			return errs.Wrap(err, "run command")
		}
		return nil
	}
}
