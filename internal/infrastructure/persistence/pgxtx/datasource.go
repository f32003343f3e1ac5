package pgxtx

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"txflow/internal/errs"
	"txflow/internal/transactional"
)

var savepointName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// DataSource hands out pooled postgres connections. Each session holds its
// connection until Close.
type DataSource struct {
	pool *pgxpool.Pool
}

var _ transactional.DataSource = (*DataSource)(nil)

func NewDataSource(pool *pgxpool.Pool) *DataSource {
	return &DataSource{pool: pool}
}

// Open parses dsn and builds a lazily connecting pool.
func Open(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, errs.Wrap(err, "parse postgres dsn")
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, errs.Wrap(err, "create postgres pool")
	}
	return pool, nil
}

func (d *DataSource) Pool() *pgxpool.Pool { return d.pool }

func (d *DataSource) Acquire(ctx context.Context) (transactional.Session, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	if d.pool == nil {
		return nil, errors.New("pgx pool is required")
	}
	conn, err := d.pool.Acquire(ctx)
	if err != nil {
		return nil, errs.Wrap(err, "acquire postgres connection")
	}
	return &Session{conn: conn}, nil
}

type Session struct {
	conn *pgxpool.Conn
	tx   pgx.Tx
}

var _ transactional.Session = (*Session)(nil)

func (s *Session) Tx() pgx.Tx { return s.tx }

func (s *Session) Begin(ctx context.Context, isolation transactional.Isolation) error {
	if s.conn == nil {
		return errors.New("pgx session is closed")
	}
	if s.tx != nil {
		return errors.New("pgx session already began a transaction")
	}
	tx, err := s.conn.BeginTx(ctx, pgx.TxOptions{IsoLevel: IsoLevel(isolation)})
	if err != nil {
		return errs.Wrap(err, "pgx begin")
	}
	s.tx = tx
	return nil
}

func (s *Session) Commit(ctx context.Context) error {
	if s.tx == nil {
		return errors.New("pgx session has no transaction")
	}
	return errs.Wrap(s.tx.Commit(ctx), "pgx commit")
}

func (s *Session) Rollback(ctx context.Context) error {
	if s.tx == nil {
		return errors.New("pgx session has no transaction")
	}
	if err := s.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return errs.Wrap(err, "pgx rollback")
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

// Close returns the connection to the pool.
func (s *Session) Close() error {
	if s.conn != nil {
		s.conn.Release()
		s.conn = nil
	}
	return nil
}

func (s *Session) exec(ctx context.Context, stmt string, name string) error {
	if s.tx == nil {
		return errors.New("pgx session has no transaction")
	}
	if !savepointName.MatchString(name) {
		return fmt.Errorf("invalid savepoint name %q", name)
	}
	if _, err := s.tx.Exec(ctx, stmt+name); err != nil {
		return errs.Wrapf(err, "pgx %s%s", stmt, name)
	}
	return nil
}

// IsoLevel maps an isolation level onto pgx's; the default leaves it to the server.
func IsoLevel(isolation transactional.Isolation) pgx.TxIsoLevel {
	switch isolation {
	case transactional.IsolationReadUncommitted:
		return pgx.ReadUncommitted
	case transactional.IsolationReadCommitted:
		return pgx.ReadCommitted
	case transactional.IsolationRepeatableRead:
		return pgx.RepeatableRead
	case transactional.IsolationSerializable:
		return pgx.Serializable
	default:
		return ""
	}
}

// TxFromSession extracts the pgx transaction repositories should use.
func TxFromSession(session transactional.Session) (pgx.Tx, error) {
	s, ok := session.(*Session)
	if !ok || s == nil || s.tx == nil {
		return nil, fmt.Errorf("invalid tx in context: %T", session)
	}
	return s.tx, nil
}
