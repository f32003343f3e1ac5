package transactional

import (
	"database/sql"
	"fmt"
	"strings"
)

// Propagation decides how a unit of work relates to the transaction already visible to it.
type Propagation uint8

const (
	// Required joins the current transaction or begins one when there is none.
	Required Propagation = iota
	// RequiresNew always begins an independent transaction on a fresh session,
	// hiding the current one until it finishes.
	RequiresNew
	// Nested creates a savepoint inside the current transaction, or begins one when there is none.
	Nested
	// Supports joins the current transaction if any and otherwise runs without one.
	Supports
	// NotSupported hides the current transaction and runs without one.
	NotSupported
	// Never runs without a transaction and refuses to run when one is visible.
	Never
	// Mandatory joins the current transaction and refuses to run when there is none.
	Mandatory
)

var propagationNames = map[Propagation]string{
	Required:     "REQUIRED",
	RequiresNew:  "REQUIRES_NEW",
	Nested:       "NESTED",
	Supports:     "SUPPORTS",
	NotSupported: "NOT_SUPPORTED",
	Never:        "NEVER",
	Mandatory:    "MANDATORY",
}

func (p Propagation) String() string {
	if name, ok := propagationNames[p]; ok {
		return name
	}
	return fmt.Sprintf("Propagation(%d)", uint8(p))
}

// ParsePropagation accepts the upper snake case names and their lower/kebab case spellings.
// An empty string yields Required.
func ParsePropagation(s string) (Propagation, error) {
	name := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "-", "_"))
	if name == "" {
		return Required, nil
	}
	for p, candidate := range propagationNames {
		if candidate == name {
			return p, nil
		}
	}
	return Required, fmt.Errorf("%w: propagation %q", ErrInvalidOption, s)
}

// Isolation is requested when a new transaction begins. Joined work and savepoints keep the
// isolation chosen by the transaction that owns the session.
type Isolation uint8

const (
	IsolationDefault Isolation = iota
	IsolationReadUncommitted
	IsolationReadCommitted
	IsolationRepeatableRead
	IsolationSerializable
)

var isolationNames = map[Isolation]string{
	IsolationDefault:         "DEFAULT",
	IsolationReadUncommitted: "READ_UNCOMMITTED",
	IsolationReadCommitted:   "READ_COMMITTED",
	IsolationRepeatableRead:  "REPEATABLE_READ",
	IsolationSerializable:    "SERIALIZABLE",
}

func (i Isolation) String() string {
	if name, ok := isolationNames[i]; ok {
		return name
	}
	return fmt.Sprintf("Isolation(%d)", uint8(i))
}

// SQLLevel maps the isolation onto database/sql.
func (i Isolation) SQLLevel() sql.IsolationLevel {
	switch i {
	case IsolationReadUncommitted:
		return sql.LevelReadUncommitted
	case IsolationReadCommitted:
		return sql.LevelReadCommitted
	case IsolationRepeatableRead:
		return sql.LevelRepeatableRead
	case IsolationSerializable:
		return sql.LevelSerializable
	default:
		return sql.LevelDefault
	}
}

func ParseIsolation(s string) (Isolation, error) {
	name := strings.ToUpper(strings.NewReplacer("-", "_", " ", "_").Replace(strings.TrimSpace(s)))
	if name == "" {
		return IsolationDefault, nil
	}
	for i, candidate := range isolationNames {
		if candidate == name {
			return i, nil
		}
	}
	return IsolationDefault, fmt.Errorf("%w: isolation %q", ErrInvalidOption, s)
}

// DefaultDataSource is the name used when no data source option is given.
const DefaultDataSource = "default"

// Options configure one transactional call.
type Options struct {
	Propagation Propagation
	Isolation   Isolation
	DataSource  string
}

type Option func(*Options)

func WithPropagation(p Propagation) Option {
	return func(o *Options) { o.Propagation = p }
}

func WithIsolation(i Isolation) Option {
	return func(o *Options) { o.Isolation = i }
}

func WithDataSource(name string) Option {
	return func(o *Options) { o.DataSource = name }
}

func defaultOptions() Options {
	return Options{
		Propagation: Required,
		Isolation:   IsolationDefault,
		DataSource:  DefaultDataSource,
	}
}

func (o Options) apply(opts []Option) Options {
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if strings.TrimSpace(o.DataSource) == "" {
		o.DataSource = DefaultDataSource
	}
	return o
}
