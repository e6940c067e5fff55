package service

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/parlourtech/whopdash/internal/dashboard/domain"
	"github.com/parlourtech/whopdash/internal/dashboard/store"
	"github.com/parlourtech/whopdash/pkg/credx"
	"github.com/parlourtech/whopdash/pkg/slogx"
)

// SessionCookieName is the cookie the browser carries between dashboard
// requests inside the iframe.
const SessionCookieName = "whop_session"

var (
	ErrMissingTenant = errors.New("missing_tenant")
	ErrMissingUser   = errors.New("missing_user")
)

// SessionService mints and validates dashboard session credentials.
type SessionService struct {
	Codec *credx.Codec
	Store store.Store
	TTL   time.Duration
}

// Issue mints a session credential for a tenant/user pair. The caller has
// already authenticated the pair via the handshake or an explicit request.
func (s *SessionService) Issue(ctx context.Context, tenantID, userID, displayName string) (*domain.IssuedCredential, error) {
	if !ValidTenantID(tenantID) {
		return nil, ErrMissingTenant
	}
	if userID == "" {
		return nil, ErrMissingUser
	}

	expiresAt := time.Now().Add(s.TTL).UTC()

	token, err := s.Codec.EncodeCredential(credx.Credential{
		TenantID:    tenantID,
		UserID:      userID,
		DisplayName: displayName,
		ExpiresAt:   expiresAt.UnixMilli(),
	})
	if err != nil {
		return nil, err
	}

	return &domain.IssuedCredential{
		Token:     token,
		ExpiresAt: expiresAt,
	}, nil
}

// Validate extracts a session from the request, preferring a bearer token
// over the session cookie. It returns nil (no error) for absent, malformed,
// or expired credentials; the caller decides what unauthenticated means.
func (s *SessionService) Validate(ctx context.Context, r *http.Request) *domain.Session {
	l := slogx.FromContext(ctx)

	for _, raw := range sessionTokenCandidates(r) {
		cred, err := s.Codec.DecodeCredential(raw)
		if err != nil {
			l.Debug("session credential rejected", "error", err)
			continue
		}
		if cred.Expired(time.Now()) {
			l.Debug("session credential expired", "tenant_id", cred.TenantID)
			continue
		}

		return &domain.Session{
			TenantID:    cred.TenantID,
			UserID:      cred.UserID,
			DisplayName: cred.DisplayName,
			ExpiresAt:   time.UnixMilli(cred.ExpiresAt).UTC(),
		}
	}

	return nil
}

// DecodeToken decodes a raw session token without expiry enforcement.
// Used by refresh, which accepts an expired token as proof of a prior session.
func (s *SessionService) DecodeToken(token string) (*credx.Credential, error) {
	cred, err := s.Codec.DecodeCredential(token)
	if err != nil {
		return nil, err
	}
	return &cred, nil
}

// Renew re-issues a session from an existing (possibly expired) token,
// provided the tenant still has a live installation. The tenant bound to the
// token never changes across a renewal.
func (s *SessionService) Renew(ctx context.Context, token string) (*domain.IssuedCredential, error) {
	cred, err := s.DecodeToken(token)
	if err != nil {
		return nil, err
	}

	if _, err := s.Store.Installations().GetByTenantID(ctx, cred.TenantID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInstallationNotFound
		}
		return nil, err
	}

	return s.Issue(ctx, cred.TenantID, cred.UserID, cred.DisplayName)
}

// Refresh re-derives a session directly from the installation record. Iframe
// contexts sometimes never deliver the issued cookie, so a client may claim a
// tenant id and recover a session without presenting a prior credential.
func (s *SessionService) Refresh(ctx context.Context, tenantID string) (*domain.IssuedCredential, error) {
	if !ValidTenantID(tenantID) {
		return nil, ErrMissingTenant
	}

	inst, err := s.Store.Installations().GetByTenantID(ctx, tenantID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInstallationNotFound
		}
		return nil, err
	}

	// A record may carry no user; the tenant itself becomes the subject so
	// refresh still recovers a session.
	subject := inst.UserID
	if subject == "" {
		subject = inst.TenantID
	}

	// A successful refresh confirms the installation is still live; the
	// empty upsert bumps updated_at without touching any other field.
	if _, err := s.Store.Installations().Upsert(ctx, tenantID, domain.InstallationFields{}); err != nil {
		return nil, err
	}

	return s.Issue(ctx, inst.TenantID, subject, "")
}

// Cookie builds the Set-Cookie value for an issued credential. SameSite=None
// is required because the dashboard always runs inside a cross-site iframe.
func (s *SessionService) Cookie(cred *domain.IssuedCredential) *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookieName,
		Value:    cred.Token,
		Path:     "/",
		MaxAge:   int(time.Until(cred.ExpiresAt).Seconds()),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteNoneMode,
	}
}

func sessionTokenCandidates(r *http.Request) []string {
	var out []string

	if auth := r.Header.Get("Authorization"); auth != "" {
		if token, ok := strings.CutPrefix(auth, "Bearer "); ok && token != "" {
			out = append(out, token)
		}
	}

	if c, err := r.Cookie(SessionCookieName); err == nil && c.Value != "" {
		out = append(out, c.Value)
	}

	return out
}
