package post

import (
	"context"
	"errors"
	"strings"

	"txflow/internal/ports"
	"txflow/internal/transactional"
)

const AuditActionPublish = "publish"

// PublishPost records an audit entry in an independent transaction, then writes the post in the
// caller's transaction. The audit entry survives even when the post write rolls back.
func (s *Service) PublishPost(ctx context.Context, message string, fail bool) (ports.Post, error) {
	if err := s.check(ctx); err != nil {
		return ports.Post{}, err
	}
	if s.audits == nil {
		return ports.Post{}, errors.New("audit repository is required")
	}
	message = strings.TrimSpace(message)
	if message == "" {
		return ports.Post{}, errMessageRequired
	}

	var created ports.Post
	err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		// The audit commits before the outer transaction writes anything.
		if err := s.uow.WithTx(txCtx, func(auditCtx context.Context) error {
			return s.audits.Append(auditCtx, ports.PostAudit{
				Action:  AuditActionPublish,
				Message: message,
				TxID:    transactional.Current(auditCtx).ID(),
			})
		}, transactional.WithPropagation(transactional.RequiresNew)); err != nil {
			return err
		}

		var err error
		created, err = s.posts.Create(txCtx, message)
		if err != nil {
			return err
		}
		if fail {
			return ErrRequestedFailure
		}
		return nil
	})
	if err != nil {
		return ports.Post{}, err
	}
	return created, nil
}

func (s *Service) ListAudits(ctx context.Context) ([]ports.PostAudit, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	if s.audits == nil {
		return nil, errors.New("audit repository is required")
	}
	return s.audits.List(ctx)
}
