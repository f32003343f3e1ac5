package bootstrap

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/fx"

	"txflow/internal/transactional"
	"txflow/internal/usecase/post"
)

func TestModuleWiresManagerAndServices(t *testing.T) {
	dir := t.TempDir()
	configFile := filepath.Join(dir, "config.yaml")
	body := "database:\n  dsn: " + filepath.Join(dir, "app.sqlite") + "\n" +
		"datasources:\n  reporting:\n    driver: sql\n    driver_name: sqlite\n    dsn: " + filepath.Join(dir, "reporting.sqlite") + "\n"
	if err := os.WriteFile(configFile, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	var app *App
	var svc *post.Service
	fxApp := fx.New(
		Module,
		fx.NopLogger,
		fx.Provide(func() context.Context { return context.Background() }),
		fx.Provide(
			fx.Annotate(
				func() string { return configFile },
				fx.ResultTags(`name:"configFile"`),
			),
		),
		fx.Populate(&app, &svc),
	)

	startCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := fxApp.Start(startCtx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer func() {
		_ = fxApp.Stop(context.Background())
	}()

	if transactional.Default() != app.Manager {
		t.Fatalf("module did not install the default manager")
	}
	names := app.Manager.DataSources()
	if len(names) != 2 || names[0] != transactional.DefaultDataSource || names[1] != "reporting" {
		t.Fatalf("DataSources() = %v", names)
	}

	if err := app.InitSchema(context.Background()); err != nil {
		t.Fatalf("InitSchema() error = %v", err)
	}
	if _, err := svc.CreatePost(context.Background(), post.CreatePostInput{Message: "wired"}); err != nil {
		t.Fatalf("CreatePost() error = %v", err)
	}
	if svc.LastOutcome() != post.OutcomeCommitted {
		t.Fatalf("LastOutcome() = %q", svc.LastOutcome())
	}
}
