package transactional

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// recorder is a DataSource whose sessions append every call to a shared log.
type recorder struct {
	mu       sync.Mutex
	calls    []string
	sessions int

	failBegin    error
	failCommit   error
	failRollback error
}

func newRecorder() *recorder { return &recorder{} }

func (r *recorder) Acquire(_ context.Context) (Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions++
	id := r.sessions
	r.calls = append(r.calls, fmt.Sprintf("acquire#%d", id))
	return &fakeSession{r: r, id: id}, nil
}

func (r *recorder) log(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, s)
}

func (r *recorder) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.calls))
	copy(out, r.calls)
	return out
}

func (r *recorder) count(prefix string) int {
	n := 0
	for _, c := range r.Calls() {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

type fakeSession struct {
	r         *recorder
	id        int
	isolation Isolation
}

func (s *fakeSession) Begin(_ context.Context, isolation Isolation) error {
	s.isolation = isolation
	s.r.log(fmt.Sprintf("begin#%d", s.id))
	return s.r.failBegin
}

func (s *fakeSession) Commit(_ context.Context) error {
	s.r.log(fmt.Sprintf("commit#%d", s.id))
	return s.r.failCommit
}

func (s *fakeSession) Rollback(_ context.Context) error {
	s.r.log(fmt.Sprintf("rollback#%d", s.id))
	return s.r.failRollback
}

func (s *fakeSession) Savepoint(_ context.Context, name string) error {
	s.r.log(fmt.Sprintf("savepoint#%d:%s", s.id, name))
	return nil
}

func (s *fakeSession) ReleaseSavepoint(_ context.Context, name string) error {
	s.r.log(fmt.Sprintf("release#%d:%s", s.id, name))
	return nil
}

func (s *fakeSession) RollbackToSavepoint(_ context.Context, name string) error {
	s.r.log(fmt.Sprintf("rollback-to#%d:%s", s.id, name))
	return nil
}

func (s *fakeSession) Close() error {
	s.r.log(fmt.Sprintf("close#%d", s.id))
	return nil
}

func newTestManager(ds DataSource) *Manager {
	return NewManager(WithDataSourceRegistered(DefaultDataSource, ds))
}

var errBusiness = errors.New("business failure")

func equalCalls(got []string, want ...string) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}
