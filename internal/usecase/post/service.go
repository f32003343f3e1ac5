package post

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"txflow/internal/ports"
	"txflow/internal/transactional"
)

var (
	// ErrRequestedFailure is returned when the caller asked the write to fail after it happened.
	ErrRequestedFailure = errors.New("post write failed on request")

	errMessageRequired = errors.New("message is required")
)

type Outcome string

const (
	OutcomeNone       Outcome = ""
	OutcomeCommitted  Outcome = "committed"
	OutcomeRolledBack Outcome = "rolled_back"
)

type Service struct {
	posts  ports.PostRepository
	audits ports.AuditRepository
	uow    ports.UnitOfWork
	cache  ports.Cache

	mu      sync.Mutex
	outcome Outcome
}

// NewService wires post usecases; audits and cache are optional.
func NewService(posts ports.PostRepository, audits ports.AuditRepository, uow ports.UnitOfWork, cache ports.Cache) *Service {
	return &Service{
		posts:  posts,
		audits: audits,
		uow:    uow,
		cache:  cache,
	}
}

// CreatePostInput describes one post write. A nil Propagation uses the manager default.
type CreatePostInput struct {
	Message     string
	Fail        bool
	Propagation *transactional.Propagation
}

func (in CreatePostInput) options() []transactional.Option {
	if in.Propagation == nil {
		return nil
	}
	return []transactional.Option{transactional.WithPropagation(*in.Propagation)}
}

type ImportResult struct {
	Imported []ports.Post
	Skipped  []SkippedPost
}

type SkippedPost struct {
	Message string
	Err     error
}

// LastOutcome reports how the most recent CreatePost transaction ended, as observed by its
// completion hooks.
func (s *Service) LastOutcome() Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outcome
}

func (s *Service) setOutcome(o Outcome) {
	s.mu.Lock()
	s.outcome = o
	s.mu.Unlock()
}

func (s *Service) setCacheBestEffort(ctx context.Context, key string, value string) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Set(ctx, key, value, 0)
}

func cachePostKey(message string) string {
	return "post:" + message
}

func formatPostID(id uint64) string {
	return strconv.FormatUint(id, 10)
}
