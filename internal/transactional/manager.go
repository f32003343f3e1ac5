package transactional

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"txflow/internal/bootstrap/logging"
	"txflow/internal/errs"
)

// Manager decides, per call, which transaction a unit of work observes and drives the
// data sources accordingly. The zero value is not initialized; use NewManager or Initialize.
type Manager struct {
	mu          sync.RWMutex
	dataSources map[string]DataSource
	defaults    Options
	initialized bool
}

type ManagerOption func(*Manager)

// WithDataSourceRegistered registers ds under name at construction time.
func WithDataSourceRegistered(name string, ds DataSource) ManagerOption {
	return func(m *Manager) {
		if ds != nil {
			m.dataSources[strings.TrimSpace(name)] = ds
		}
	}
}

// WithDefaults sets the options applied before per-call options.
func WithDefaults(opts ...Option) ManagerOption {
	return func(m *Manager) {
		m.defaults = m.defaults.apply(opts)
	}
}

func NewManager(opts ...ManagerOption) *Manager {
	m := &Manager{
		dataSources: make(map[string]DataSource),
		defaults:    defaultOptions(),
		initialized: true,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

// Register adds a named data source. Names are unique per manager.
func (m *Manager) Register(name string, ds DataSource) error {
	if m == nil || !m.ready() {
		return ErrNotInitialized
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("data source name is required")
	}
	if ds == nil {
		return errors.New("data source is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.dataSources[name]; exists {
		return errs.Wrapf(ErrDuplicateDataSource, "register %q", name)
	}
	m.dataSources[name] = ds
	return nil
}

// DataSources returns the registered names.
func (m *Manager) DataSources() []string {
	if m == nil {
		return nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.dataSources))
	for name := range m.dataSources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (m *Manager) ready() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.initialized
}

func (m *Manager) lookup(name string) (DataSource, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ds, ok := m.dataSources[name]
	if !ok {
		return nil, errs.Wrapf(ErrUnknownDataSource, "data source %q", name)
	}
	return ds, nil
}

// Run executes fn according to the propagation policy in opts. fn receives a context
// that exposes the transaction (or the lack of one) chosen for it.
//
// The error fn returns is returned as is. Commit and rollback failures are reported
// as *CompletionError and failing hooks as *HookError; both unwrap to the original error.
func (m *Manager) Run(ctx context.Context, fn func(ctx context.Context) error, opts ...Option) error {
	if ctx == nil {
		return errs.Wrap(ErrNotInitialized, "context is required")
	}
	if fn == nil {
		return errors.New("transactional function is required")
	}
	if m == nil || !m.ready() {
		return ErrNotInitialized
	}

	m.mu.RLock()
	o := m.defaults.apply(opts)
	m.mu.RUnlock()

	ds, err := m.lookup(o.DataSource)
	if err != nil {
		return err
	}

	stack := CurrentStack(ctx)
	current := stack.TopFor(o.DataSource)
	if current != nil && !current.Active() {
		switch o.Propagation {
		case Required, Nested, Supports, Mandatory:
			return errs.Wrapf(ErrTransactionDone, "%s on %q", o.Propagation, o.DataSource)
		}
	}

	switch o.Propagation {
	case Required:
		if current != nil {
			return fn(ctx)
		}
		return m.begin(ctx, ds, stack, o, fn)
	case RequiresNew:
		return m.begin(ctx, ds, stack, o, fn)
	case Nested:
		if current != nil {
			return m.savepoint(ctx, stack, current, o, fn)
		}
		return m.begin(ctx, ds, stack, o, fn)
	case Supports:
		return fn(ctx)
	case NotSupported:
		if current == nil {
			return fn(ctx)
		}
		return fn(WithStack(ctx, stack.suspend(o.DataSource)))
	case Never:
		if current != nil && current.Active() {
			return policyViolation(o.Propagation, o.DataSource, "a transaction is active")
		}
		return fn(ctx)
	case Mandatory:
		if current == nil {
			return policyViolation(o.Propagation, o.DataSource, "no transaction is active")
		}
		return fn(ctx)
	default:
		return fmt.Errorf("%w: propagation %s", ErrInvalidOption, o.Propagation)
	}
}

// Wrap returns fn bound to opts; every call goes through Run.
func (m *Manager) Wrap(fn func(ctx context.Context) error, opts ...Option) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		return m.Run(ctx, fn, opts...)
	}
}

func (m *Manager) begin(ctx context.Context, ds DataSource, stack *Stack, o Options, fn func(context.Context) error) error {
	session, err := ds.Acquire(ctx)
	if err != nil {
		return errs.Wrapf(err, "acquire session from %q", o.DataSource)
	}
	if session == nil {
		return fmt.Errorf("data source %q returned no session", o.DataSource)
	}
	if err := session.Begin(ctx, o.Isolation); err != nil {
		if closeErr := session.Close(); closeErr != nil {
			err = errors.Join(err, errs.Wrap(closeErr, "release session"))
		}
		return errs.Wrapf(err, "begin transaction on %q", o.DataSource)
	}

	h := newTransactionHandle(o.DataSource, session, stack.Depth()+1, o.Isolation)
	logging.Debug(ctx, "transaction begun", handleAttrs(h, o.Propagation)...)
	return m.execute(ctx, stack.push(o.DataSource, h), h, o, fn)
}

func (m *Manager) savepoint(ctx context.Context, stack *Stack, parent *Handle, o Options, fn func(context.Context) error) error {
	if !parent.Active() {
		return errs.Wrap(ErrTransactionDone, "create savepoint")
	}
	depth := stack.Depth() + 1
	name := fmt.Sprintf("txflow_sp_%d", depth)
	if err := parent.session.Savepoint(ctx, name); err != nil {
		return errs.Wrapf(err, "create savepoint %s", name)
	}

	h := newSavepointHandle(parent, depth, name)
	logging.Debug(ctx, "savepoint created", handleAttrs(h, o.Propagation)...)
	return m.execute(ctx, stack.push(o.DataSource, h), h, o, fn)
}

// execute runs fn with next bound and finishes h whether fn returns or panics.
func (m *Manager) execute(ctx context.Context, next *Stack, h *Handle, o Options, fn func(context.Context) error) error {
	panicked := true
	defer func() {
		if !panicked {
			return
		}
		p := recover()
		if p == nil {
			// runtime.Goexit: finish h and let the goroutine keep unwinding.
			_ = m.complete(ctx, h, o, errUnitAborted)
			return
		}
		_ = m.complete(ctx, h, o, fmt.Errorf("panic: %v", p))
		panic(p)
	}()

	err := fn(WithStack(ctx, next))
	panicked = false
	return m.complete(ctx, h, o, err)
}

// complete commits or rolls back h depending on cause, then drains hooks and releases the
// session of a real transaction.
func (m *Manager) complete(ctx context.Context, h *Handle, o Options, cause error) error {
	fctx := context.WithoutCancel(ctx)
	attrs := handleAttrs(h, o.Propagation)

	if h.IsSavepoint() {
		return m.completeSavepoint(fctx, h, cause, attrs)
	}

	outcome := cause
	if cause == nil {
		if err := h.session.Commit(fctx); err != nil {
			// The transaction did not commit; make sure the session is not left open.
			_ = h.session.Rollback(fctx)
			h.finish(StatusRolledBack)
			outcome = &CompletionError{Op: OpCommit, Err: err}
			logging.Debug(fctx, "transaction commit failed", attrs...)
		} else {
			h.finish(StatusCommitted)
			logging.Debug(fctx, "transaction committed", attrs...)
		}
	} else {
		if err := h.session.Rollback(fctx); err != nil {
			outcome = &CompletionError{Op: OpRollback, Err: err, Cause: cause}
		}
		h.finish(StatusRolledBack)
		logging.Debug(fctx, "transaction rolled back", attrs...)
	}

	if failed := h.hooks.drain(ctx, h.Status()); len(failed) > 0 {
		outcome = &HookError{Errs: failed, Cause: outcome}
	}

	if err := h.session.Close(); err != nil && outcome == nil {
		outcome = errs.Wrap(err, "release session")
	}
	return outcome
}

func (m *Manager) completeSavepoint(ctx context.Context, h *Handle, cause error, attrs []slog.Attr) error {
	if cause == nil {
		if err := h.session.ReleaseSavepoint(ctx, h.savepoint); err != nil {
			h.finish(StatusRolledBack)
			return &CompletionError{Op: OpReleaseSavepoint, Err: err}
		}
		h.finish(StatusCommitted)
		logging.Debug(ctx, "savepoint released", attrs...)
		return nil
	}

	h.finish(StatusRolledBack)
	if err := h.session.RollbackToSavepoint(ctx, h.savepoint); err != nil {
		return &CompletionError{Op: OpRollbackToSavepoint, Err: err, Cause: cause}
	}
	logging.Debug(ctx, "savepoint rolled back", attrs...)
	return cause
}

func handleAttrs(h *Handle, p Propagation) []slog.Attr {
	attrs := []slog.Attr{
		slog.String("tx_id", h.id),
		slog.String("data_source", h.dataSource),
		slog.Int("depth", h.depth),
		slog.String("propagation", p.String()),
		slog.String("isolation", h.isolation.String()),
	}
	if h.savepoint != "" {
		attrs = append(attrs, slog.String("savepoint", h.savepoint))
	}
	return attrs
}
