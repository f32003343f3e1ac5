package sqlxtx

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"

	"github.com/jmoiron/sqlx"

	"txflow/internal/errs"
	"txflow/internal/transactional"
)

var savepointName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// DataSource pins one pooled connection per transaction and returns it on Close.
type DataSource struct {
	db *sqlx.DB
}

var _ transactional.DataSource = (*DataSource)(nil)

func NewDataSource(db *sqlx.DB) *DataSource {
	return &DataSource{db: db}
}

// DB is the non-transactional handle.
func (d *DataSource) DB() *sqlx.DB { return d.db }

func (d *DataSource) Acquire(ctx context.Context) (transactional.Session, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	if d.db == nil {
		return nil, errors.New("sqlx db is required")
	}
	conn, err := d.db.Connx(ctx)
	if err != nil {
		return nil, errs.Wrap(err, "acquire connection")
	}
	return &Session{conn: conn}, nil
}

type Session struct {
	conn *sqlx.Conn
	tx   *sqlx.Tx
}

var _ transactional.Session = (*Session)(nil)

// Tx returns the running transaction; nil before Begin.
func (s *Session) Tx() *sqlx.Tx { return s.tx }

func (s *Session) Begin(ctx context.Context, isolation transactional.Isolation) error {
	if s.tx != nil {
		return errors.New("sqlx session already began a transaction")
	}
	tx, err := s.conn.BeginTxx(ctx, &sql.TxOptions{Isolation: isolation.SQLLevel()})
	if err != nil {
		return errs.Wrap(err, "sqlx begin")
	}
	s.tx = tx
	return nil
}

func (s *Session) Commit(_ context.Context) error {
	if s.tx == nil {
		return errors.New("sqlx session has no transaction")
	}
	return errs.Wrap(s.tx.Commit(), "sqlx commit")
}

func (s *Session) Rollback(_ context.Context) error {
	if s.tx == nil {
		return errors.New("sqlx session has no transaction")
	}
	if err := s.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return errs.Wrap(err, "sqlx rollback")
	}
	return nil
}

func (s *Session) Savepoint(ctx context.Context, name string) error {
	return s.exec(ctx, "SAVEPOINT ", name)
}

func (s *Session) ReleaseSavepoint(ctx context.Context, name string) error {
	return s.exec(ctx, "RELEASE SAVEPOINT ", name)
}

func (s *Session) RollbackToSavepoint(ctx context.Context, name string) error {
	return s.exec(ctx, "ROLLBACK TO SAVEPOINT ", name)
}

func (s *Session) Close() error {
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	if errors.Is(err, sql.ErrConnDone) {
		return nil
	}
	return errs.Wrap(err, "release connection")
}

func (s *Session) exec(ctx context.Context, stmt string, name string) error {
	if s.tx == nil {
		return errors.New("sqlx session has no transaction")
	}
	if !savepointName.MatchString(name) {
		return fmt.Errorf("invalid savepoint name %q", name)
	}
	if _, err := s.tx.ExecContext(ctx, stmt+name); err != nil {
		return errs.Wrapf(err, "sqlx %s%s", stmt, name)
	}
	return nil
}

// TxFromSession extracts the sqlx transaction repositories should use.
func TxFromSession(session transactional.Session) (*sqlx.Tx, error) {
	s, ok := session.(*Session)
	if !ok || s == nil || s.tx == nil {
		return nil, fmt.Errorf("invalid tx in context: %T", session)
	}
	return s.tx, nil
}
