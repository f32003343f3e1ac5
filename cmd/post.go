package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"txflow/internal/bootstrap"
	"txflow/internal/bootstrap/logging"
	"txflow/internal/errs"
	"txflow/internal/transactional"
	"txflow/internal/usecase/post"
)

var postCmd = &cobra.Command{
	Use:   "post",
	Short: "Create and inspect posts through the transaction manager",
}

func newPostCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a post; --fail writes it and then fails the transaction",
		RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc services) error {
			ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

			message, _ := cmd.Flags().GetString("message")
			fail, _ := cmd.Flags().GetBool("fail")
			rawPropagation, _ := cmd.Flags().GetString("propagation")
			propagation, err := parsePropagationFlag(rawPropagation)
			if err != nil {
				return err
			}

			created, err := svc.posts.CreatePost(ctx, post.CreatePostInput{
				Message:     message,
				Fail:        fail,
				Propagation: propagation,
			})
			outcome := svc.posts.LastOutcome()
			if err != nil {
				if _, werr := fmt.Fprintf(cmd.OutOrStdout(), "post not created: outcome=%s\n", outcomeLabel(outcome)); werr != nil {
					return errs.Wrap(werr, "write create output")
				}
				return errs.Wrap(err, "create post")
			}

			if _, err := fmt.Fprintf(cmd.OutOrStdout(), "created post: id=%d outcome=%s\n", created.PostID, outcomeLabel(outcome)); err != nil {
				return errs.Wrap(err, "write create output")
			}
			return nil
		}),
	}
	cmd.Flags().String("message", "", "Post message")
	cmd.Flags().Bool("fail", false, "Fail the transaction after writing the post")
	cmd.Flags().String("propagation", "", "Propagation: required, requires_new, nested, supports, not_supported, never, mandatory (default transaction.propagation)")
	_ = cmd.MarkFlagRequired("message")
	return cmd
}

func newPostGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get",
		Short: "Look up a post by message",
		RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc services) error {
			message, _ := cmd.Flags().GetString("message")
			found, err := svc.posts.GetPostByMessage(cmd.Context(), message)
			if err != nil {
				return errs.Wrap(err, "get post")
			}
			if _, err := fmt.Fprintf(cmd.OutOrStdout(), "post %d: %s (%s)\n", found.PostID, found.Message, found.CreatedAt); err != nil {
				return errs.Wrap(err, "write get output")
			}
			return nil
		}),
	}
	cmd.Flags().String("message", "", "Post message")
	_ = cmd.MarkFlagRequired("message")
	return cmd
}

func newPostListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List posts and publish audits",
		RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc services) error {
			posts, err := svc.posts.ListPosts(cmd.Context())
			if err != nil {
				return errs.Wrap(err, "list posts")
			}
			audits, err := svc.posts.ListAudits(cmd.Context())
			if err != nil {
				return errs.Wrap(err, "list audits")
			}

			var builder strings.Builder
			builder.WriteString(fmt.Sprintf("posts (%d)\n", len(posts)))
			for _, p := range posts {
				builder.WriteString(fmt.Sprintf("- %d %s\n", p.PostID, p.Message))
			}
			builder.WriteString(fmt.Sprintf("audits (%d)\n", len(audits)))
			for _, a := range audits {
				builder.WriteString(fmt.Sprintf("- %d %s %s tx=%s\n", a.AuditID, a.Action, a.Message, a.TxID))
			}
			if _, err := fmt.Fprint(cmd.OutOrStdout(), builder.String()); err != nil {
				return errs.Wrap(err, "write list output")
			}
			return nil
		}),
	}
}

func newPostImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import messages in one transaction with a savepoint per message",
		RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc services) error {
			messages, _ := cmd.Flags().GetStringArray("message")
			if len(messages) == 0 {
				return errors.New("at least one --message is required")
			}

			result, err := svc.posts.ImportPosts(cmd.Context(), messages)
			if err != nil {
				return errs.Wrap(err, "import posts")
			}

			out := cmd.OutOrStdout()
			if _, err := fmt.Fprintf(out, "imported=%d skipped=%d\n", len(result.Imported), len(result.Skipped)); err != nil {
				return errs.Wrap(err, "write import output")
			}
			for _, skipped := range result.Skipped {
				if _, err := fmt.Fprintf(out, "- skipped %q: %v\n", skipped.Message, skipped.Err); err != nil {
					return errs.Wrap(err, "write import output")
				}
			}
			return nil
		}),
	}
	cmd.Flags().StringArray("message", nil, "Message to import (repeatable)")
	return cmd
}

func newPostPublishCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Publish a post with an audit entry kept in an independent transaction",
		RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc services) error {
			message, _ := cmd.Flags().GetString("message")
			fail, _ := cmd.Flags().GetBool("fail")

			published, err := svc.posts.PublishPost(cmd.Context(), message, fail)
			if err != nil {
				return errs.Wrap(err, "publish post")
			}
			if _, err := fmt.Fprintf(cmd.OutOrStdout(), "published post: id=%d\n", published.PostID); err != nil {
				return errs.Wrap(err, "write publish output")
			}
			return nil
		}),
	}
	cmd.Flags().String("message", "", "Post message")
	cmd.Flags().Bool("fail", false, "Fail the outer transaction after the audit entry is written")
	_ = cmd.MarkFlagRequired("message")
	return cmd
}

// parsePropagationFlag returns nil for an empty value so the configured default applies.
func parsePropagationFlag(raw string) (*transactional.Propagation, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	p, err := transactional.ParsePropagation(raw)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func outcomeLabel(o post.Outcome) string {
	if o == post.OutcomeNone {
		return "pending"
	}
	return string(o)
}

func init() {
	rootCmd.AddCommand(postCmd)
	postCmd.AddCommand(
		newPostCreateCmd(),
		newPostGetCmd(),
		newPostListCmd(),
		newPostImportCmd(),
		newPostPublishCmd(),
	)
}
