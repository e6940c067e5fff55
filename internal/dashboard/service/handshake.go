package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/parlourtech/whopdash/internal/dashboard/domain"
	"github.com/parlourtech/whopdash/internal/dashboard/store"
	"github.com/parlourtech/whopdash/pkg/credx"
	"github.com/parlourtech/whopdash/pkg/cryptox"
	"github.com/parlourtech/whopdash/pkg/slogx"
	"github.com/parlourtech/whopdash/pkg/whopapi"
)

var (
	ErrExpiredState  = errors.New("expired_state")
	ErrReplayedState = errors.New("replayed_state")
)

// PlatformClient is the slice of the Whop API the handshake needs.
type PlatformClient interface {
	AuthCodeURL(state, redirectURI string) string
	Identity(ctx context.Context, code, redirectURI string) (*whopapi.Identity, error)
}

// HandshakeService drives the OAuth installation handshake with the
// platform. State is carried entirely in a signed token; only fingerprints
// of consumed nonces are persisted, to reject replays.
type HandshakeService struct {
	Codec         *credx.Codec
	Resolver      *ResolverService
	Installations *InstallationService
	Platform      PlatformClient
	Store         store.Store

	// CallbackPath is appended to the request origin to form the redirect URI.
	CallbackPath string
	// StateMaxAge bounds how long a handshake may stay in flight.
	StateMaxAge time.Duration
}

// BeginResult is everything the begin handler needs to redirect the browser.
type BeginResult struct {
	URL               string
	State             string
	CandidateTenantID string
}

// Begin starts a handshake: resolve whatever tenant hints the request
// carries, mint a signed state token, and build the authorization URL.
// Resolution yielding nothing is fine; the callback resolves the tenant
// authoritatively from the platform's identity response.
func (s *HandshakeService) Begin(ctx context.Context, origin string, sig Signals) (*BeginResult, error) {
	l := slogx.FromContext(ctx)

	candidate, err := s.Resolver.Resolve(ctx, sig)
	if err != nil {
		// An outage in a hint source must not block installs.
		l.Warn("tenant resolution failed during handshake begin", "error", err)
		candidate = ""
	}

	nonce, err := cryptox.GenerateToken(cryptox.TokenSize128)
	if err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	state, err := s.Codec.EncodeState(credx.State{
		Nonce:             nonce,
		TenantIDHint:      sig.ExperienceHint,
		CandidateTenantID: candidate,
		IssuedAt:          time.Now().UTC().UnixMilli(),
	})
	if err != nil {
		return nil, err
	}

	return &BeginResult{
		URL:               s.Platform.AuthCodeURL(state, origin+s.CallbackPath),
		State:             state,
		CandidateTenantID: candidate,
	}, nil
}

// Complete finishes a handshake: verify the state token, burn its nonce,
// exchange the code with the platform, and link the installation.
func (s *HandshakeService) Complete(ctx context.Context, stateToken, code, origin string) (domain.Installation, *whopapi.Identity, error) {
	l := slogx.FromContext(ctx)

	state, err := s.Codec.DecodeState(stateToken)
	if err != nil {
		return domain.Installation{}, nil, err
	}

	if state.Age(time.Now()) > s.StateMaxAge {
		return domain.Installation{}, nil, ErrExpiredState
	}

	err = s.Store.HandshakeNonces().Consume(ctx, cryptox.FingerprintToken(state.Nonce), time.UnixMilli(state.IssuedAt))
	if errors.Is(err, store.ErrAlreadyExists) {
		l.Warn("handshake state replayed", "candidate", state.CandidateTenantID)
		return domain.Installation{}, nil, ErrReplayedState
	}
	if err != nil {
		return domain.Installation{}, nil, fmt.Errorf("consume nonce: %w", err)
	}

	ident, err := s.Platform.Identity(ctx, code, origin+s.CallbackPath)
	if err != nil {
		return domain.Installation{}, nil, fmt.Errorf("platform identity: %w", err)
	}

	if !ValidTenantID(ident.CompanyID) {
		return domain.Installation{}, nil, fmt.Errorf("platform returned malformed company id %q", ident.CompanyID)
	}
	if ident.UserID == "" {
		return domain.Installation{}, nil, fmt.Errorf("platform returned identity without a user id for %s", ident.CompanyID)
	}

	inst, err := s.Installations.Link(ctx, ident)
	if err != nil {
		return domain.Installation{}, nil, fmt.Errorf("link installation: %w", err)
	}

	l.Info("handshake completed",
		"tenant_id", inst.TenantID,
		"experience_id", inst.ExperienceID,
	)

	return inst, ident, nil
}
