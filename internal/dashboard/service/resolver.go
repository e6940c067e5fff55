package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"

	"github.com/parlourtech/whopdash/internal/dashboard/store"
	"github.com/parlourtech/whopdash/pkg/slogx"
)

// ErrResolutionFailed means a resolution source broke (store outage), as
// opposed to every source simply having nothing. Callers must not treat it
// as "no tenant".
var ErrResolutionFailed = errors.New("tenant_resolution_failed")

var (
	tenantIDPattern = regexp.MustCompile(`^biz_[A-Za-z0-9]+$`)
	referrerPattern = regexp.MustCompile(`/dashboard/(biz_[A-Za-z0-9]+)`)
)

// tenantHeaders are checked in order; the platform has shipped all three
// spellings at various points.
var tenantHeaders = []string{
	"X-Whop-Company-Id",
	"X-Whop-Business-Id",
	"X-Company-Id",
}

// ValidTenantID reports whether s is a well-formed tenant (company) ID.
func ValidTenantID(s string) bool {
	return tenantIDPattern.MatchString(s)
}

// Signals is everything a request can carry that hints at which tenant it
// belongs to. Zero values mean the signal is absent.
type Signals struct {
	// Candidate is an explicitly supplied company ID, e.g. from a request body.
	Candidate string
	// Headers are the inbound request headers.
	Headers http.Header
	// RefererURL is the raw Referer header value.
	RefererURL string
	// QueryCandidate is a companyId query parameter.
	QueryCandidate string
	// ExperienceHint is an "exp_"-prefixed experience ID for store lookup.
	ExperienceHint string
}

// ResolverService determines which tenant a request belongs to by trying a
// fixed ladder of signal sources. The first well-formed match wins.
type ResolverService struct {
	Store store.Store
}

// Resolve walks the signal ladder and returns the tenant ID, or "" when no
// source yields one. A store outage during the experience lookup returns
// ErrResolutionFailed so callers can distinguish it from a genuine miss.
func (s *ResolverService) Resolve(ctx context.Context, sig Signals) (string, error) {
	l := slogx.FromContext(ctx)

	type strategy struct {
		name string
		fn   func(context.Context, Signals) (string, error)
	}

	strategies := []strategy{
		{"candidate", s.fromCandidate},
		{"headers", s.fromHeaders},
		{"referrer", s.fromReferrer},
		{"query", s.fromQuery},
		{"experience", s.fromExperience},
	}

	for _, st := range strategies {
		tenantID, err := st.fn(ctx, sig)
		if err != nil {
			return "", fmt.Errorf("%w: %s: %w", ErrResolutionFailed, st.name, err)
		}
		if tenantID != "" {
			l.Debug("tenant resolved", "source", st.name, "tenant_id", tenantID)
			return tenantID, nil
		}
	}

	l.Debug("tenant resolution exhausted all sources")
	return "", nil
}

func (s *ResolverService) fromCandidate(_ context.Context, sig Signals) (string, error) {
	if ValidTenantID(sig.Candidate) {
		return sig.Candidate, nil
	}
	return "", nil
}

func (s *ResolverService) fromHeaders(_ context.Context, sig Signals) (string, error) {
	if sig.Headers == nil {
		return "", nil
	}
	for _, h := range tenantHeaders {
		if v := sig.Headers.Get(h); ValidTenantID(v) {
			return v, nil
		}
	}
	return "", nil
}

func (s *ResolverService) fromReferrer(_ context.Context, sig Signals) (string, error) {
	if sig.RefererURL == "" {
		return "", nil
	}
	u, err := url.Parse(sig.RefererURL)
	if err != nil {
		// A mangled Referer is noise, not an outage.
		return "", nil
	}
	if m := referrerPattern.FindStringSubmatch(u.Path); m != nil {
		return m[1], nil
	}
	return "", nil
}

func (s *ResolverService) fromQuery(_ context.Context, sig Signals) (string, error) {
	if ValidTenantID(sig.QueryCandidate) {
		return sig.QueryCandidate, nil
	}
	return "", nil
}

func (s *ResolverService) fromExperience(ctx context.Context, sig Signals) (string, error) {
	if sig.ExperienceHint == "" {
		return "", nil
	}

	inst, err := s.Store.Installations().GetByExperienceID(ctx, sig.ExperienceHint)
	if errors.Is(err, store.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return inst.TenantID, nil
}
