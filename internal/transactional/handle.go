package transactional

import (
	"sync"

	"github.com/google/uuid"
)

type Status uint8

const (
	StatusActive Status = iota
	StatusCommitted
	StatusRolledBack
)

func (s Status) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusCommitted:
		return "committed"
	case StatusRolledBack:
		return "rolled-back"
	default:
		return "unknown"
	}
}

// Handle is one transaction, or one savepoint inside a transaction, in progress.
type Handle struct {
	id         string
	dataSource string
	session    Session
	depth      int
	isolation  Isolation
	savepoint  string
	parent     *Handle

	mu     sync.Mutex
	status Status
	hooks  *hookRegistry
}

func newTransactionHandle(dataSource string, session Session, depth int, isolation Isolation) *Handle {
	return &Handle{
		id:         uuid.NewString(),
		dataSource: dataSource,
		session:    session,
		depth:      depth,
		isolation:  isolation,
		hooks:      &hookRegistry{},
	}
}

func newSavepointHandle(parent *Handle, depth int, name string) *Handle {
	return &Handle{
		id:         uuid.NewString(),
		dataSource: parent.dataSource,
		session:    parent.session,
		depth:      depth,
		isolation:  parent.isolation,
		savepoint:  name,
		parent:     parent,
	}
}

func (h *Handle) ID() string           { return h.id }
func (h *Handle) DataSource() string   { return h.dataSource }
func (h *Handle) Session() Session     { return h.session }
func (h *Handle) Depth() int           { return h.depth }
func (h *Handle) Isolation() Isolation { return h.isolation }

// IsSavepoint reports whether the handle is a savepoint inside its parent's transaction.
func (h *Handle) IsSavepoint() bool { return h.parent != nil }

// SavepointName is empty for real transactions.
func (h *Handle) SavepointName() string { return h.savepoint }

// Root returns the real transaction owning this handle's session.
func (h *Handle) Root() *Handle {
	root := h
	for root.parent != nil {
		root = root.parent
	}
	return root
}

func (h *Handle) Status() Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.status
}

// Active is true until the handle reaches a terminal status. A savepoint whose
// transaction already finished is not active either.
func (h *Handle) Active() bool {
	for cur := h; cur != nil; cur = cur.parent {
		if cur.Status() != StatusActive {
			return false
		}
	}
	return true
}

// finish moves the handle to a terminal status. It reports false if the handle was already finished.
func (h *Handle) finish(to Status) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.status != StatusActive || to == StatusActive {
		return false
	}
	h.status = to
	return true
}
