package audit

import (
	"context"
	"strings"
)

// Meta carries request attribution for audit entries.
type Meta struct {
	IPAddress string
	UserAgent string
	RequestID string
}

type metaContextKey struct{}

// ContextWithMeta attaches request metadata for downstream audit writes.
func ContextWithMeta(ctx context.Context, meta Meta) context.Context {
	meta.IPAddress = strings.TrimSpace(meta.IPAddress)
	meta.UserAgent = strings.TrimSpace(meta.UserAgent)
	return context.WithValue(ctx, metaContextKey{}, meta)
}

// MetaFromContext extracts request metadata if present.
func MetaFromContext(ctx context.Context) (Meta, bool) {
	if ctx == nil {
		return Meta{}, false
	}
	meta, ok := ctx.Value(metaContextKey{}).(Meta)
	return meta, ok
}
