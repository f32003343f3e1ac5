package transactional

import (
	"context"
	"strings"

	"txflow/internal/errs"
)

// Rebinder is implemented by data-access objects that can run against a transaction's session
// instead of their default connection.
type Rebinder[R any] interface {
	Rebind(session Session) (R, error)
}

// Interceptor hands out, per call, the data-access object matching the transaction visible to
// the caller's context. The same Interceptor serves transactional and plain calls alike.
type Interceptor[R Rebinder[R]] struct {
	dataSource string
	base       R
}

func NewInterceptor[R Rebinder[R]](dataSource string, base R) *Interceptor[R] {
	if strings.TrimSpace(dataSource) == "" {
		dataSource = DefaultDataSource
	}
	return &Interceptor[R]{dataSource: dataSource, base: base}
}

// Resolve returns the base object when no transaction is visible for the interceptor's data
// source, and the object rebound to the transaction's session otherwise.
func (i *Interceptor[R]) Resolve(ctx context.Context) (R, error) {
	h := CurrentStack(ctx).TopFor(i.dataSource)
	if h == nil {
		return i.base, nil
	}
	if !h.Active() {
		var zero R
		return zero, errs.Wrapf(ErrTransactionDone, "transaction %s on %q", h.ID(), i.dataSource)
	}
	return i.base.Rebind(h.Session())
}

func (i *Interceptor[R]) DataSource() string { return i.dataSource }
