package web

import (
	"context"
	"net/http"

	"github.com/JonMunkholm/giftapi/internal/core"
)

// WithRequestMetadata adds IP and User-Agent to context for mutation logging.
func WithRequestMetadata(ctx context.Context, r *http.Request) context.Context {
	ctx = core.ContextWithIPAddress(ctx, clientIP(r)) // Already rewritten by TrustedRealIP
	ctx = core.ContextWithUserAgent(ctx, r.UserAgent())
	return ctx
}
