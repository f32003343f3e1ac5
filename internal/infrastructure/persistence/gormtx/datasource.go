package gormtx

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"

	"gorm.io/gorm"

	"txflow/internal/errs"
	"txflow/internal/transactional"
)

var savepointName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// DataSource opens gorm transactions on db. The connection pool stays owned by gorm.
type DataSource struct {
	db *gorm.DB
}

var _ transactional.DataSource = (*DataSource)(nil)

func NewDataSource(db *gorm.DB) *DataSource {
	return &DataSource{db: db}
}

// DB is the non-transactional handle repositories fall back to.
func (d *DataSource) DB() *gorm.DB { return d.db }

func (d *DataSource) Acquire(ctx context.Context) (transactional.Session, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	if d.db == nil {
		return nil, errors.New("gorm db is required")
	}
	return &Session{db: d.db}, nil
}

// Session is a gorm transaction. The connection is held by database/sql from Begin until
// Commit or Rollback.
type Session struct {
	db *gorm.DB
	tx *gorm.DB
}

var _ transactional.Session = (*Session)(nil)

// Tx returns the transaction handle; nil before Begin.
func (s *Session) Tx() *gorm.DB { return s.tx }

func (s *Session) Begin(ctx context.Context, isolation transactional.Isolation) error {
	if s.tx != nil {
		return errors.New("gorm session already began a transaction")
	}

	var opts *sql.TxOptions
	if isolation != transactional.IsolationDefault {
		opts = &sql.TxOptions{Isolation: isolation.SQLLevel()}
	}
	tx := s.db.WithContext(ctx).Begin(opts)
	if tx.Error != nil {
		return errs.Wrap(tx.Error, "gorm begin")
	}
	s.tx = tx
	return nil
}

func (s *Session) Commit(_ context.Context) error {
	if s.tx == nil {
		return errors.New("gorm session has no transaction")
	}
	return errs.Wrap(s.tx.Commit().Error, "gorm commit")
}

func (s *Session) Rollback(_ context.Context) error {
	if s.tx == nil {
		return errors.New("gorm session has no transaction")
	}
	err := s.tx.Rollback().Error
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return errs.Wrap(err, "gorm rollback")
}

func (s *Session) Savepoint(ctx context.Context, name string) error {
	if err := s.checkSavepoint(name); err != nil {
		return err
	}
	return errs.Wrapf(s.tx.WithContext(ctx).SavePoint(name).Error, "gorm savepoint %s", name)
}

func (s *Session) ReleaseSavepoint(ctx context.Context, name string) error {
	if err := s.checkSavepoint(name); err != nil {
		return err
	}
	return errs.Wrapf(s.tx.WithContext(ctx).Exec("RELEASE SAVEPOINT " + name).Error, "gorm release savepoint %s", name)
}

func (s *Session) RollbackToSavepoint(ctx context.Context, name string) error {
	if err := s.checkSavepoint(name); err != nil {
		return err
	}
	return errs.Wrapf(s.tx.WithContext(ctx).RollbackTo(name).Error, "gorm rollback to savepoint %s", name)
}

// Close is a no-op: database/sql returns the connection when the transaction ends.
func (s *Session) Close() error { return nil }

func (s *Session) checkSavepoint(name string) error {
	if s.tx == nil {
		return errors.New("gorm session has no transaction")
	}
	if !savepointName.MatchString(name) {
		return fmt.Errorf("invalid savepoint name %q", name)
	}
	return nil
}

// TxFromSession extracts the gorm transaction repositories should use.
func TxFromSession(session transactional.Session) (*gorm.DB, error) {
	s, ok := session.(*Session)
	if !ok || s == nil || s.tx == nil {
		return nil, fmt.Errorf("invalid tx in context: %T", session)
	}
	return s.tx, nil
}
