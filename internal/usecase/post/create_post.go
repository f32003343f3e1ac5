package post

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"txflow/internal/bootstrap/logging"
	"txflow/internal/errs"
	"txflow/internal/ports"
	"txflow/internal/transactional"
)

// CreatePost stores a post and records, through completion hooks, whether its transaction
// committed. With Fail set the post is written and the unit then fails.
func (s *Service) CreatePost(ctx context.Context, input CreatePostInput) (ports.Post, error) {
	if err := s.check(ctx); err != nil {
		return ports.Post{}, err
	}
	message := strings.TrimSpace(input.Message)
	if message == "" {
		return ports.Post{}, errMessageRequired
	}

	var created ports.Post
	err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		var err error
		created, err = s.posts.Create(txCtx, message)
		if err != nil {
			return err
		}

		onCommit := func(hookCtx context.Context) error {
			s.setOutcome(OutcomeCommitted)
			s.setCacheBestEffort(hookCtx, cachePostKey(message), formatPostID(created.PostID))
			return nil
		}
		onRollback := func(context.Context) error {
			s.setOutcome(OutcomeRolledBack)
			return nil
		}
		if err := registerOutcomeHooks(txCtx, onCommit, onRollback); err != nil {
			return err
		}

		if input.Fail {
			return ErrRequestedFailure
		}
		return nil
	}, input.options()...)
	if err != nil {
		logging.Warn(
			logging.WithAttrs(ctx, slog.String("component", "usecase.post")),
			"create post failed",
			slog.String("message", message),
			slog.Any("err", errs.Loggable(err)),
		)
		return ports.Post{}, err
	}
	return created, nil
}

// registerOutcomeHooks attaches the hooks to the visible transaction. Without one the write
// has already auto-committed, so onCommit runs immediately.
func registerOutcomeHooks(ctx context.Context, onCommit, onRollback transactional.Hook) error {
	err := transactional.OnCommit(ctx, onCommit)
	if errors.Is(err, transactional.ErrNoTransaction) {
		return onCommit(ctx)
	}
	if err != nil {
		return err
	}
	return transactional.OnRollback(ctx, onRollback)
}

func (s *Service) GetPostByMessage(ctx context.Context, message string) (ports.Post, error) {
	if err := s.check(ctx); err != nil {
		return ports.Post{}, err
	}
	message = strings.TrimSpace(message)
	if message == "" {
		return ports.Post{}, errMessageRequired
	}
	return s.posts.GetByMessage(ctx, message)
}

func (s *Service) ListPosts(ctx context.Context) ([]ports.Post, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	return s.posts.List(ctx)
}

func (s *Service) check(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}
	if s.posts == nil {
		return errors.New("post repository is required")
	}
	if s.uow == nil {
		return errors.New("post unit of work is required")
	}
	return nil
}
