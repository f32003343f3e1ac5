package post

import (
	"context"
	"log/slog"
	"strings"

	"txflow/internal/bootstrap/logging"
	"txflow/internal/errs"
	"txflow/internal/ports"
	"txflow/internal/transactional"
)

// ImportPosts writes messages in one transaction, each under its own savepoint. A message that
// fails is rolled back to its savepoint and reported as skipped; the rest still commit together.
func (s *Service) ImportPosts(ctx context.Context, messages []string) (ImportResult, error) {
	if err := s.check(ctx); err != nil {
		return ImportResult{}, err
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "usecase.post.import"))
	var result ImportResult
	err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		result = ImportResult{}
		for _, message := range messages {
			var created ports.Post
			itemErr := s.uow.WithTx(txCtx, func(itemCtx context.Context) error {
				trimmed := strings.TrimSpace(message)
				if trimmed == "" {
					return errMessageRequired
				}
				var err error
				created, err = s.posts.Create(itemCtx, trimmed)
				return err
			}, transactional.WithPropagation(transactional.Nested))

			if itemErr != nil {
				// A failed savepoint leaves the outer transaction unusable.
				if errs.KindOf(itemErr) == errs.KindCompletion {
					return itemErr
				}
				logging.Debug(logCtx, "import item skipped", slog.String("message", message), slog.Any("err", errs.Loggable(itemErr)))
				result.Skipped = append(result.Skipped, SkippedPost{Message: message, Err: itemErr})
				continue
			}
			result.Imported = append(result.Imported, created)
		}
		return nil
	})
	if err != nil {
		return ImportResult{}, err
	}

	for _, p := range result.Imported {
		s.setCacheBestEffort(ctx, cachePostKey(p.Message), formatPostID(p.PostID))
	}
	logging.Info(logCtx, "posts imported", slog.Int("imported", len(result.Imported)), slog.Int("skipped", len(result.Skipped)))
	return result, nil
}
