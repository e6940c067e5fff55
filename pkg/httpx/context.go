package httpx

type ctxKey string

const (
	CtxKeyTenantID ctxKey = "tenant_id"
	CtxKeyUserID   ctxKey = "user_id"
	CtxKeySession  ctxKey = "session" // full *domain.Session when authenticated
)
