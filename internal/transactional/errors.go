package transactional

import (
	"errors"
	"fmt"
	"strings"

	"txflow/internal/errs"
)

var (
	ErrNotInitialized      = errs.New(errs.KindConfiguration, "transactional context is not initialized")
	ErrUnknownDataSource   = errs.New(errs.KindConfiguration, "data source is not registered")
	ErrDuplicateDataSource = errs.New(errs.KindConfiguration, "data source is already registered")
	ErrInvalidOption       = errs.New(errs.KindConfiguration, "invalid transaction option")

	ErrPolicyViolation = errs.New(errs.KindPolicyViolation, "propagation policy violated")

	ErrNoTransaction   = errs.New(errs.KindUsage, "no active transaction")
	ErrTransactionDone = errs.New(errs.KindUsage, "transaction has already completed")

	errUnitAborted = errors.New("unit of work exited without returning")
)

// Completion operations reported by CompletionError.
const (
	OpCommit              = "commit"
	OpRollback            = "rollback"
	OpReleaseSavepoint    = "release savepoint"
	OpRollbackToSavepoint = "rollback to savepoint"
)

// CompletionError reports that the data source failed to commit or roll back.
// Cause holds the error that triggered a rollback, if any.
type CompletionError struct {
	Op    string
	Err   error
	Cause error
}

func (e *CompletionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s failed: %v (after: %v)", e.Op, e.Err, e.Cause)
	}
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *CompletionError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Cause}
}

func (e *CompletionError) Kind() errs.Kind { return errs.KindCompletion }

// HookError collects the hooks that failed while draining one transaction.
// The transaction outcome is final; Cause is whatever the wrapper would have returned otherwise.
type HookError struct {
	Errs  []error
	Cause error
}

func (e *HookError) Error() string {
	msgs := make([]string, 0, len(e.Errs))
	for _, err := range e.Errs {
		msgs = append(msgs, err.Error())
	}
	msg := fmt.Sprintf("%d transaction hook(s) failed: %s", len(e.Errs), strings.Join(msgs, "; "))
	if e.Cause != nil {
		msg += fmt.Sprintf(" (after: %v)", e.Cause)
	}
	return msg
}

func (e *HookError) Unwrap() []error {
	out := make([]error, 0, len(e.Errs)+1)
	out = append(out, e.Errs...)
	if e.Cause != nil {
		out = append(out, e.Cause)
	}
	return out
}

func (e *HookError) Kind() errs.Kind { return errs.KindHook }

func policyViolation(p Propagation, dataSource string, reason string) error {
	return fmt.Errorf("%w: %s on data source %q: %s", ErrPolicyViolation, p, dataSource, reason)
}
