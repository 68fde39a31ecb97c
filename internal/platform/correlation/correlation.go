// Package correlation threads a per-request ID through contexts and log
// records so one client interaction can be traced across the API layer,
// the app service and the cache boundary.
package correlation

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
)

// Header lets callers supply their own ID; responses echo it back.
const Header = "X-Correlation-ID"

// attrKey is the log attribute the Handler injects.
const attrKey = "correlation_id"

type idKey struct{}

// NewID returns a fresh correlation ID.
func NewID() string {
	return uuid.NewString()
}

// FromRequest returns the caller-supplied ID from the request header,
// or a fresh one when the header is absent.
func FromRequest(r *http.Request) string {
	if id := r.Header.Get(Header); id != "" {
		return id
	}
	return NewID()
}

// WithID returns a context carrying the given ID.
func WithID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, idKey{}, id)
}

// ID extracts the ID from ctx, reporting whether one is set.
func ID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(idKey{}).(string)
	return id, ok && id != ""
}

// Handler decorates a slog.Handler so records logged with a carrying
// context pick up the correlation_id attribute.
type Handler struct {
	next slog.Handler
}

func NewHandler(next slog.Handler) *Handler {
	return &Handler{next: next}
}

func (h *Handler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *Handler) Handle(ctx context.Context, rec slog.Record) error {
	if id, ok := ID(ctx); ok {
		rec.AddAttrs(slog.String(attrKey, id))
	}
	if err := h.next.Handle(ctx, rec); err != nil {
		return fmt.Errorf("log correlation: %w", err)
	}
	return nil
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &Handler{next: h.next.WithAttrs(attrs)}
}

func (h *Handler) WithGroup(name string) slog.Handler {
	return &Handler{next: h.next.WithGroup(name)}
}
