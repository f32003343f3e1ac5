package gormtx

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"txflow/internal/transactional"
)

type binding struct {
	db *gorm.DB
}

func (b binding) Rebind(session transactional.Session) (binding, error) {
	tx, err := TxFromSession(session)
	if err != nil {
		return binding{}, err
	}
	return binding{db: tx}, nil
}

// Scope resolves the *gorm.DB a repository call should use: the transaction visible in ctx
// for the scope's data source, or the plain handle when there is none.
type Scope struct {
	bindings *transactional.Interceptor[binding]
}

func NewScope(db *gorm.DB, dataSource string) *Scope {
	return &Scope{bindings: transactional.NewInterceptor(dataSource, binding{db: db})}
}

func (s *Scope) DB(ctx context.Context) (*gorm.DB, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	b, err := s.bindings.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	if b.db == nil {
		return nil, errors.New("gorm db is required")
	}
	return b.db.WithContext(ctx), nil
}

func (s *Scope) DataSource() string { return s.bindings.DataSource() }
