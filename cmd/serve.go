package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"txflow/internal/bootstrap"
	"txflow/internal/bootstrap/logging"
	"txflow/internal/errs"
	"txflow/internal/ports"
	"txflow/internal/transactional"
	"txflow/internal/usecase/post"
)

const maxPostBodyBytes = 1 << 20

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the post workloads over HTTP",
		RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc services) error {
			ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

			addr, _ := cmd.Flags().GetString("addr")
			addr = strings.TrimSpace(addr)
			if addr == "" {
				addr = ":8088"
			}

			server := &http.Server{
				Addr:              addr,
				Handler:           newPostHTTPHandler(ctx, svc.posts),
				ReadHeaderTimeout: 10 * time.Second,
			}

			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				_ = server.Shutdown(shutdownCtx)
			}()

			logging.Info(ctx, "post http server started", slog.String("addr", addr))

			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logging.Error(ctx, "post http server failed", slog.Any("err", errs.Loggable(err)))
				return errs.Wrap(err, "serve posts")
			}
			return nil
		}),
	}
	cmd.Flags().String("addr", ":8088", "HTTP listen address")
	return cmd
}

type postHTTPService interface {
	CreatePost(context.Context, post.CreatePostInput) (ports.Post, error)
	GetPostByMessage(context.Context, string) (ports.Post, error)
	ListPosts(context.Context) ([]ports.Post, error)
	ImportPosts(context.Context, []string) (post.ImportResult, error)
	PublishPost(context.Context, string, bool) (ports.Post, error)
	ListAudits(context.Context) ([]ports.PostAudit, error)
}

type postHTTPHandler struct {
	// base carries the command's logger into request contexts.
	base context.Context
	svc  postHTTPService
}

type createPostRequest struct {
	Message     string `json:"message"`
	Fail        bool   `json:"fail"`
	Propagation string `json:"propagation"`
}

type importPostsRequest struct {
	Messages []string `json:"messages"`
}

type postResponse struct {
	PostID    uint64 `json:"post_id"`
	Message   string `json:"message"`
	CreatedAt string `json:"created_at"`
}

type auditResponse struct {
	AuditID   uint64 `json:"audit_id"`
	Action    string `json:"action"`
	Message   string `json:"message"`
	TxID      string `json:"tx_id"`
	CreatedAt string `json:"created_at"`
}

type skippedResponse struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

type importPostsResponse struct {
	Imported []postResponse    `json:"imported"`
	Skipped  []skippedResponse `json:"skipped"`
}

type httpErrorResponse struct {
	Error string `json:"error"`
}

func newPostHTTPHandler(base context.Context, svc postHTTPService) http.Handler {
	if base == nil {
		base = context.Background()
	}
	h := &postHTTPHandler{base: base, svc: svc}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Route("/posts", func(r chi.Router) {
		r.Get("/", h.handleList)
		r.Post("/", h.handleCreate)
		r.Post("/import", h.handleImport)
		r.Post("/publish", h.handleCreate)
		r.Get("/{message}", h.handleGet)
	})
	r.Get("/audits", h.handleAudits)
	return r
}

func (h *postHTTPHandler) requestContext(r *http.Request) context.Context {
	ctx := logging.WithLogger(r.Context(), logging.Logger(h.base))
	return logging.WithAttrs(ctx, append(logging.Attrs(h.base),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)...)
}

func (h *postHTTPHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createPostRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeHTTPError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeHTTPError(w, http.StatusBadRequest, "message is required")
		return
	}

	ctx := h.requestContext(r)
	var (
		created ports.Post
		err     error
	)
	if strings.HasSuffix(r.URL.Path, "/publish") {
		created, err = h.svc.PublishPost(ctx, req.Message, req.Fail)
	} else {
		propagation, perr := parsePropagationFlag(req.Propagation)
		if perr != nil {
			writeHTTPError(w, http.StatusBadRequest, perr.Error())
			return
		}
		created, err = h.svc.CreatePost(ctx, post.CreatePostInput{
			Message:     req.Message,
			Fail:        req.Fail,
			Propagation: propagation,
		})
	}
	if err != nil {
		h.writeServiceError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPostResponse(created))
}

func (h *postHTTPHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := h.requestContext(r)
	found, err := h.svc.GetPostByMessage(ctx, chi.URLParam(r, "message"))
	if err != nil {
		h.writeServiceError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPostResponse(found))
}

func (h *postHTTPHandler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := h.requestContext(r)
	posts, err := h.svc.ListPosts(ctx)
	if err != nil {
		h.writeServiceError(ctx, w, err)
		return
	}
	out := make([]postResponse, 0, len(posts))
	for _, p := range posts {
		out = append(out, toPostResponse(p))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *postHTTPHandler) handleImport(w http.ResponseWriter, r *http.Request) {
	var req importPostsRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeHTTPError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.Messages) == 0 {
		writeHTTPError(w, http.StatusBadRequest, "messages are required")
		return
	}

	ctx := h.requestContext(r)
	result, err := h.svc.ImportPosts(ctx, req.Messages)
	if err != nil {
		h.writeServiceError(ctx, w, err)
		return
	}
	resp := importPostsResponse{
		Imported: make([]postResponse, 0, len(result.Imported)),
		Skipped:  make([]skippedResponse, 0, len(result.Skipped)),
	}
	for _, p := range result.Imported {
		resp.Imported = append(resp.Imported, toPostResponse(p))
	}
	for _, s := range result.Skipped {
		resp.Skipped = append(resp.Skipped, skippedResponse{Message: s.Message, Error: s.Err.Error()})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *postHTTPHandler) handleAudits(w http.ResponseWriter, r *http.Request) {
	ctx := h.requestContext(r)
	audits, err := h.svc.ListAudits(ctx)
	if err != nil {
		h.writeServiceError(ctx, w, err)
		return
	}
	out := make([]auditResponse, 0, len(audits))
	for _, a := range audits {
		out = append(out, auditResponse{
			AuditID:   a.AuditID,
			Action:    a.Action,
			Message:   a.Message,
			TxID:      a.TxID,
			CreatedAt: a.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *postHTTPHandler) writeServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ports.ErrPostNotFound):
		status = http.StatusNotFound
	case errors.Is(err, post.ErrRequestedFailure):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, transactional.ErrPolicyViolation):
		status = http.StatusConflict
	case errors.Is(err, transactional.ErrInvalidOption):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		logging.Error(ctx, "post request failed", slog.Any("err", errs.Loggable(err)))
	}
	writeHTTPError(w, status, err.Error())
}

func decodeJSONBody(r *http.Request, out any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxPostBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return errs.Wrap(err, "decode request body")
	}
	return nil
}

func toPostResponse(p ports.Post) postResponse {
	return postResponse{PostID: p.PostID, Message: p.Message, CreatedAt: p.CreatedAt}
}

func writeHTTPError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, httpErrorResponse{Error: message})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func init() {
	rootCmd.AddCommand(newServeCmd())
}
