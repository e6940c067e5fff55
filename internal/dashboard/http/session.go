package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/parlourtech/whopdash/internal/dashboard/domain"
	"github.com/parlourtech/whopdash/internal/dashboard/service"
	"github.com/parlourtech/whopdash/pkg/credx"
	"github.com/parlourtech/whopdash/pkg/httpx"
	"github.com/parlourtech/whopdash/pkg/slogx"
)

// SessionResponse is the JSON body returned whenever a session is issued.
// The token is echoed alongside the cookie so iframe clients that never
// receive cookies can fall back to bearer auth.
type SessionResponse struct {
	Success      bool   `json:"success"`
	SessionToken string `json:"sessionToken"`
	TenantID     string `json:"companyId"`
	ExpiresAt    int64  `json:"expiresAt"` // unix epoch milliseconds
}

// SessionIssueHandler serves POST /v1/session. The embedded app calls it with
// whatever identity the iframe host handed over; we resolve the tenant,
// confirm the installation, and mint a session.
type SessionIssueHandler struct {
	Resolver      *service.ResolverService
	Installations *service.InstallationService
	Sessions      *service.SessionService
}

type sessionIssueRequest struct {
	CompanyID    string `json:"companyId"`
	ExperienceID string `json:"experienceId"`
	UserID       string `json:"userId"`
	Username     string `json:"username"`

	// SessionToken switches the request into renewal mode: the decoded
	// token supplies the identity instead of the fields above.
	SessionToken string `json:"sessionToken"`
}

// ServeHTTP godoc
//
//	@Summary		Issue Session
//	@Description	Resolves the tenant from the request body, headers, Referer path, and query
//	@Description	parameters, verifies the company has a live installation, and issues a session
//	@Description	credential as both a JSON field and a whop_session cookie. A body carrying
//	@Description	sessionToken instead renews that token's session.
//	@Tags			Session
//	@Accept			json
//	@Produce		json
//	@Param			body	body		sessionIssueRequest	true	"Identity supplied by the iframe host"
//	@Success		200		{object}	SessionResponse		"sessionToken, companyId, expiresAt"
//	@Failure		400		{object}	ErrorResponse		"error, error_description"
//	@Failure		404		{object}	ErrorResponse		"error, error_description"
//	@Failure		503		{object}	ErrorResponse		"error, error_description"
//	@Router			/v1/session [post].
func (h *SessionIssueHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req sessionIssueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "request body must be JSON")
		return
	}

	if req.SessionToken != "" {
		h.renew(w, r, req.SessionToken)
		return
	}

	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "userId is required")
		return
	}

	tenantID, err := h.Resolver.Resolve(ctx, service.Signals{
		Candidate:      req.CompanyID,
		Headers:        r.Header,
		RefererURL:     r.Referer(),
		QueryCandidate: r.URL.Query().Get("companyId"),
		ExperienceHint: req.ExperienceID,
	})
	if err != nil {
		log.Error("tenant resolution failed", "error", err)
		writeError(w, http.StatusServiceUnavailable, "resolution_failed",
			"could not determine the company for this request")
		return
	}
	if tenantID == "" {
		writeError(w, http.StatusBadRequest, "unknown_tenant",
			"no company could be determined from the request")
		return
	}

	if _, err := h.Installations.Get(ctx, tenantID); err != nil {
		if errors.Is(err, service.ErrInstallationNotFound) {
			writeError(w, http.StatusNotFound, "installation_not_found",
				"this company has not installed the dashboard")
			return
		}
		log.Error("installation lookup failed", "error", err)
		writeError(w, http.StatusServiceUnavailable, "server_error", "storage unavailable")
		return
	}

	cred, err := h.Sessions.Issue(ctx, tenantID, req.UserID, req.Username)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	http.SetCookie(w, h.Sessions.Cookie(cred))
	httpx.WriteJSON(w, http.StatusOK, SessionResponse{
		Success:      true,
		SessionToken: cred.Token,
		TenantID:     tenantID,
		ExpiresAt:    cred.ExpiresAt.UnixMilli(),
	})
}

// renew handles the sessionToken form of the issue request. The token may be
// expired; the installation behind it must still exist.
func (h *SessionIssueHandler) renew(w http.ResponseWriter, r *http.Request, token string) {
	ctx := r.Context()

	cred, err := h.Sessions.Renew(ctx, token)
	switch {
	case errors.Is(err, credx.ErrMalformedCredential):
		writeError(w, http.StatusBadRequest, "invalid_token", "the session token is malformed")
		return
	case errors.Is(err, service.ErrInstallationNotFound):
		writeError(w, http.StatusNotFound, "installation_not_found",
			"this company no longer has the dashboard installed")
		return
	case err != nil:
		slogx.FromContext(ctx).Error("session renewal failed", "error", err)
		writeError(w, http.StatusServiceUnavailable, "server_error", "storage unavailable")
		return
	}

	decoded, err := h.Sessions.DecodeToken(cred.Token)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", "could not issue session")
		return
	}

	http.SetCookie(w, h.Sessions.Cookie(cred))
	httpx.WriteJSON(w, http.StatusOK, SessionResponse{
		Success:      true,
		SessionToken: cred.Token,
		TenantID:     decoded.TenantID,
		ExpiresAt:    cred.ExpiresAt.UnixMilli(),
	})
}

// SessionInfoHandler serves GET /v1/session for an authenticated request.
type SessionInfoHandler struct{}

type sessionInfoResponse struct {
	TenantID    string `json:"companyId"`
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName,omitempty"`
	ExpiresAt   int64  `json:"expiresAt"` // unix epoch milliseconds
}

// ServeHTTP godoc
//
//	@Summary		Current Session
//	@Description	Returns the authenticated session's tenant, user, and expiry.
//	@Tags			Session
//	@Produce		json
//	@Success		200	{object}	sessionInfoResponse	"companyId, userId, displayName, expiresAt"
//	@Failure		401	{object}	ErrorResponse		"error, error_description"
//	@Security		BearerAuth
//	@Router			/v1/session [get].
func (h *SessionInfoHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sess, ok := r.Context().Value(httpx.CtxKeySession).(*domain.Session)
	if !ok || sess == nil {
		writeLoginRequired(w)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, sessionInfoResponse{
		TenantID:    sess.TenantID,
		UserID:      sess.UserID,
		DisplayName: sess.DisplayName,
		ExpiresAt:   sess.ExpiresAt.UnixMilli(),
	})
}

// SessionRefreshHandler serves POST /v1/session/refresh. A companyId query
// parameter re-derives the session from the installation record for iframe
// contexts where the issued cookie never reached readable storage; otherwise
// an existing token (expired is fine) is renewed.
type SessionRefreshHandler struct {
	Sessions *service.SessionService
}

type sessionRefreshRequest struct {
	SessionToken string `json:"sessionToken"`
}

// ServeHTTP godoc
//
//	@Summary		Refresh Session
//	@Description	Re-issues a session. With a companyId query parameter the session is derived
//	@Description	from the installation record; otherwise an existing token from the JSON body,
//	@Description	a bearer header, or the whop_session cookie is renewed.
//	@Tags			Session
//	@Accept			json
//	@Produce		json
//	@Param			companyId	query	string					false	"Company to refresh from the installation record"
//	@Param			body		body	sessionRefreshRequest	false	"Existing session token"
//	@Success		200		{object}	SessionResponse	"success, sessionToken, companyId, expiresAt"
//	@Failure		401		{object}	ErrorResponse	"error, error_description"
//	@Failure		404		{object}	ErrorResponse	"error, error_description"
//	@Router			/v1/session/refresh [post].
func (h *SessionRefreshHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var (
		cred *domain.IssuedCredential
		err  error
	)

	if companyID := r.URL.Query().Get("companyId"); companyID != "" {
		cred, err = h.Sessions.Refresh(ctx, companyID)
	} else {
		token := refreshToken(r)
		if token == "" {
			writeLoginRequired(w)
			return
		}
		cred, err = h.Sessions.Renew(ctx, token)
	}

	switch {
	case errors.Is(err, credx.ErrMalformedCredential), errors.Is(err, service.ErrMissingTenant):
		writeLoginRequired(w)
		return
	case errors.Is(err, service.ErrInstallationNotFound):
		writeError(w, http.StatusNotFound, "installation_not_found",
			"this company no longer has the dashboard installed")
		return
	case err != nil:
		slogx.FromContext(ctx).Error("session refresh failed", "error", err)
		writeError(w, http.StatusServiceUnavailable, "server_error", "storage unavailable")
		return
	}

	decoded, err := h.Sessions.DecodeToken(cred.Token)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", "could not issue session")
		return
	}

	http.SetCookie(w, h.Sessions.Cookie(cred))
	httpx.WriteJSON(w, http.StatusOK, SessionResponse{
		Success:      true,
		SessionToken: cred.Token,
		TenantID:     decoded.TenantID,
		ExpiresAt:    cred.ExpiresAt.UnixMilli(),
	})
}

// refreshToken finds the token to renew: explicit body field first, then
// the usual bearer/cookie carriers.
func refreshToken(r *http.Request) string {
	var req sessionRefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err == nil && req.SessionToken != "" {
		return req.SessionToken
	}

	if auth := r.Header.Get("Authorization"); auth != "" {
		if token, ok := cutBearer(auth); ok {
			return token
		}
	}

	if c, err := r.Cookie(service.SessionCookieName); err == nil {
		return c.Value
	}

	return ""
}

func cutBearer(auth string) (string, bool) {
	const prefix = "Bearer "
	if len(auth) > len(prefix) && auth[:len(prefix)] == prefix {
		return auth[len(prefix):], true
	}
	return "", false
}
