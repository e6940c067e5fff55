package http

import (
	"context"
	"net/http"

	"github.com/parlourtech/whopdash/internal/dashboard/service"
	"github.com/parlourtech/whopdash/pkg/httpx"
	"github.com/parlourtech/whopdash/pkg/slogx"
)

// SessionMiddleware validates the request's session credential (bearer first,
// cookie second) and binds the session and tenant into the request context.
// Requests without a valid session get 401 login_required.
func SessionMiddleware(sessions *service.SessionService) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			sess := sessions.Validate(ctx, r)
			if sess == nil {
				writeLoginRequired(w)
				return
			}

			ctx = context.WithValue(ctx, httpx.CtxKeySession, sess)
			ctx = context.WithValue(ctx, httpx.CtxKeyTenantID, sess.TenantID)
			ctx = context.WithValue(ctx, httpx.CtxKeyUserID, sess.UserID)
			ctx = slogx.WithContext(ctx, slogx.FromContext(ctx).With("tenant_id", sess.TenantID))

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
