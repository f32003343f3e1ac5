package scenario

import (
	"context"
	"errors"
	"log/slog"

	"txflow/internal/bootstrap/logging"
	"txflow/internal/errs"
	"txflow/internal/ports"
	"txflow/internal/transactional"
)

var ErrUnitFailed = errors.New("scenario unit failed on request")

type Runner struct {
	uow   ports.UnitOfWork
	posts ports.PostRepository
}

func NewRunner(uow ports.UnitOfWork, posts ports.PostRepository) *Runner {
	return &Runner{uow: uow, posts: posts}
}

type UnitResult struct {
	Path        string
	Depth       int
	Propagation string
	TxID        string
	Savepoint   bool
	Wrote       bool
	Recovered   bool
	Err         error
}

type HookEvent struct {
	Unit  string
	Event string
}

type Report struct {
	Name      string
	Units     []UnitResult
	Hooks     []HookEvent
	Persisted []string
}

// Run executes the top-level units one after another. A failing top-level unit is recorded in
// the report and does not stop the ones after it; the returned error is reserved for failures
// to read back the outcome.
func (r *Runner) Run(ctx context.Context, sc Scenario) (Report, error) {
	if ctx == nil {
		return Report{}, errors.New("context is required")
	}
	if r.uow == nil || r.posts == nil {
		return Report{}, errors.New("scenario runner is not wired")
	}

	ctx = logging.WithAttrs(ctx, slog.String("component", "usecase.scenario"), slog.String("scenario", sc.Name))
	rep := &Report{Name: sc.Name}
	for _, unit := range sc.Units {
		if err := r.runUnit(ctx, unit, "", 0, rep); err != nil {
			logging.Debug(ctx, "scenario unit failed", slog.String("unit", unit.Name), slog.Any("err", errs.Loggable(err)))
		}
	}

	posts, err := r.posts.List(ctx)
	if err != nil {
		return *rep, errs.Wrap(err, "list persisted posts")
	}
	for _, p := range posts {
		rep.Persisted = append(rep.Persisted, p.Message)
	}
	logging.Info(ctx, "scenario finished", slog.Int("units", len(rep.Units)), slog.Int("persisted", len(rep.Persisted)))
	return *rep, nil
}

func (r *Runner) runUnit(ctx context.Context, unit Unit, parent string, depth int, rep *Report) error {
	path := unit.Name
	if parent != "" {
		path = parent + "/" + unit.Name
	}
	idx := len(rep.Units)
	propagation := "default"
	if unit.Propagation != nil {
		propagation = unit.Propagation.String()
	}
	rep.Units = append(rep.Units, UnitResult{
		Path:        path,
		Depth:       depth,
		Propagation: propagation,
	})

	err := r.uow.WithTx(ctx, func(txCtx context.Context) error {
		if h := transactional.Current(txCtx); h != nil {
			rep.Units[idx].TxID = h.ID()
			rep.Units[idx].Savepoint = h.IsSavepoint()
			if err := registerHookEvents(txCtx, path, rep); err != nil {
				return err
			}
		}

		if unit.Message != "" {
			if _, err := r.posts.Create(txCtx, unit.Message); err != nil {
				return err
			}
			rep.Units[idx].Wrote = true
		}

		for _, child := range unit.Units {
			if err := r.runUnit(txCtx, child, path, depth+1, rep); err != nil && !child.Recover {
				return err
			}
		}

		if unit.Fail {
			return ErrUnitFailed
		}
		return nil
	}, unit.options()...)

	rep.Units[idx].Err = err
	rep.Units[idx].Recovered = err != nil && unit.Recover
	return err
}

func registerHookEvents(ctx context.Context, path string, rep *Report) error {
	record := func(event string) transactional.Hook {
		return func(context.Context) error {
			rep.Hooks = append(rep.Hooks, HookEvent{Unit: path, Event: event})
			return nil
		}
	}
	if err := transactional.OnCommit(ctx, record("commit")); err != nil {
		return err
	}
	if err := transactional.OnRollback(ctx, record("rollback")); err != nil {
		return err
	}
	return transactional.OnComplete(ctx, record("complete"))
}
