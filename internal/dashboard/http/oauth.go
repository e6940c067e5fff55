package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/parlourtech/whopdash/internal/dashboard/service"
	"github.com/parlourtech/whopdash/pkg/credx"
	"github.com/parlourtech/whopdash/pkg/httpx"
	"github.com/parlourtech/whopdash/pkg/slogx"
)

// OAuthBeginHandler serves GET /v1/oauth/begin. The embedded app lands here
// when it has no session; we gather whatever tenant hints the request
// carries and bounce the browser to the platform's authorize page. Clients
// that ask for JSON get the URL and state back instead of a redirect, so the
// iframe can break out to a top-level navigation itself.
type OAuthBeginHandler struct {
	Handshake *service.HandshakeService
}

// BeginResponse is the JSON form of a handshake start.
type BeginResponse struct {
	URL       string `json:"url"`
	State     string `json:"state"`
	CompanyID string `json:"companyId,omitempty"`
}

// ServeHTTP godoc
//
//	@Summary		Begin Installation Handshake
//	@Description	Starts the OAuth handshake with the Whop platform. Collects tenant hints from
//	@Description	headers, the Referer path, and query parameters, then redirects the browser to
//	@Description	the platform authorization page with a signed state parameter.
//	@Tags			OAuth
//	@Param			companyId		query	string	false	"Company ID hint (biz_ prefixed)"
//	@Param			experienceId	query	string	false	"Experience ID hint (exp_ prefixed)"
//	@Success		200	{object}	BeginResponse	"url, state (when Accept: application/json)"
//	@Success		302	"Redirect to the platform authorize URL"
//	@Failure		500	{object}	ErrorResponse	"error, error_description"
//	@Router			/v1/oauth/begin [get].
func (h *OAuthBeginHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	result, err := h.Handshake.Begin(ctx, requestOrigin(r), service.Signals{
		Headers:        r.Header,
		RefererURL:     r.Referer(),
		QueryCandidate: r.URL.Query().Get("companyId"),
		ExperienceHint: r.URL.Query().Get("experienceId"),
	})
	if err != nil {
		slogx.FromContext(ctx).Error("handshake begin failed", "error", err)
		writeError(w, http.StatusInternalServerError, "server_error",
			"could not start the installation handshake")
		return
	}

	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		httpx.WriteJSON(w, http.StatusOK, BeginResponse{
			URL:       result.URL,
			State:     result.State,
			CompanyID: result.CandidateTenantID,
		})
		return
	}

	httpx.NoCache(w)
	http.Redirect(w, r, result.URL, http.StatusFound)
}

// OAuthCallbackHandler serves GET /v1/oauth/callback, the redirect target the
// platform sends the browser back to after authorization.
type OAuthCallbackHandler struct {
	Handshake *service.HandshakeService
	Sessions  *service.SessionService

	// DashboardURL is where the browser lands after a successful handshake.
	DashboardURL string
}

// ServeHTTP godoc
//
//	@Summary		Complete Installation Handshake
//	@Description	Verifies the signed state parameter, exchanges the authorization code with the
//	@Description	platform, links the installation, and issues a session cookie before redirecting
//	@Description	to the dashboard. Expired or replayed states restart the handshake.
//	@Tags			OAuth
//	@Param			state	query	string	true	"Signed state parameter"
//	@Param			code	query	string	true	"Platform authorization code"
//	@Success		302	"Redirect to the dashboard with a whop_session cookie"
//	@Failure		400	{object}	ErrorResponse	"error, error_description"
//	@Failure		502	{object}	ErrorResponse	"error, error_description"
//	@Router			/v1/oauth/callback [get].
func (h *OAuthCallbackHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	state := r.URL.Query().Get("state")
	code := r.URL.Query().Get("code")
	if state == "" || code == "" {
		writeError(w, http.StatusBadRequest, "invalid_request",
			"state and code query parameters are required")
		return
	}

	inst, ident, err := h.Handshake.Complete(ctx, state, code, requestOrigin(r))
	switch {
	case errors.Is(err, service.ErrExpiredState), errors.Is(err, service.ErrReplayedState):
		// The handshake is stale or has been used; start over.
		log.Warn("handshake restart", "reason", err)
		http.Redirect(w, r, "/v1/oauth/begin", http.StatusFound)
		return
	case errors.Is(err, credx.ErrMalformedState):
		writeError(w, http.StatusBadRequest, "invalid_state",
			"the state parameter is malformed")
		return
	case err != nil:
		log.Error("handshake completion failed", "error", err)
		writeError(w, http.StatusBadGateway, "handshake_failed",
			"could not complete the installation handshake")
		return
	}

	cred, err := h.Sessions.Issue(ctx, inst.TenantID, ident.UserID, ident.Username)
	if err != nil {
		log.Error("session issue after handshake failed", "error", err)
		writeError(w, http.StatusInternalServerError, "server_error",
			"could not establish a session")
		return
	}

	http.SetCookie(w, h.Sessions.Cookie(cred))
	httpx.NoCache(w)
	http.Redirect(w, r, h.DashboardURL, http.StatusFound)
}

// requestOrigin reconstructs the externally visible origin, trusting the
// proxy's X-Forwarded headers when present.
func requestOrigin(r *http.Request) string {
	scheme := r.Header.Get("X-Forwarded-Proto")
	if scheme == "" {
		if r.TLS != nil {
			scheme = "https"
		} else {
			scheme = "http"
		}
	}

	host := r.Header.Get("X-Forwarded-Host")
	if host == "" {
		host = r.Host
	}

	return scheme + "://" + host
}
