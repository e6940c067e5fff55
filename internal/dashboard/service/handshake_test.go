package service

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/parlourtech/whopdash/internal/dashboard/store"
	"github.com/parlourtech/whopdash/pkg/credx"
	"github.com/parlourtech/whopdash/pkg/cryptox"
	"github.com/parlourtech/whopdash/pkg/whopapi"
	"github.com/stretchr/testify/require"
)

// fakePlatform answers handshake calls without touching the network.
type fakePlatform struct {
	identity *whopapi.Identity
	err      error

	lastState       string
	lastRedirectURI string
}

func (f *fakePlatform) AuthCodeURL(state, redirectURI string) string {
	f.lastState = state
	f.lastRedirectURI = redirectURI
	return "https://whop.example.com/oauth?state=" + url.QueryEscape(state)
}

func (f *fakePlatform) Identity(_ context.Context, code, redirectURI string) (*whopapi.Identity, error) {
	f.lastRedirectURI = redirectURI
	if f.err != nil {
		return nil, f.err
	}
	return f.identity, nil
}

func newHandshake(t *testing.T, platform *fakePlatform) *HandshakeService {
	t.Helper()

	st := newTestStore(t)
	codec, err := credx.NewCodec([]byte("test-signing-key-material"))
	require.NoError(t, err)

	return &HandshakeService{
		Codec:    codec,
		Resolver: &ResolverService{Store: st},
		Installations: &InstallationService{
			Store:   st,
			SealKey: cryptox.DeriveKey("sealing", []byte("test material")),
		},
		Platform:     platform,
		Store:        st,
		CallbackPath: "/v1/oauth/callback",
		StateMaxAge:  10 * time.Minute,
	}
}

func installedIdentity() *whopapi.Identity {
	return &whopapi.Identity{
		UserID:       "user_1",
		Username:     "alice",
		CompanyID:    "biz_abc123",
		ExperienceID: "exp_xyz",
		PlanTier:     "pro",
		AccessToken:  "platform-token",
	}
}

func TestHandshakeBegin(t *testing.T) {
	ctx := context.Background()
	platform := &fakePlatform{identity: installedIdentity()}
	hs := newHandshake(t, platform)

	t.Run("builds authorize url with signed state", func(t *testing.T) {
		res, err := hs.Begin(ctx, "https://app.example.com", Signals{
			Candidate: "biz_abc123",
		})
		require.NoError(t, err)
		require.Contains(t, res.URL, "https://whop.example.com/oauth")
		require.Equal(t, "biz_abc123", res.CandidateTenantID)
		require.Equal(t, "https://app.example.com/v1/oauth/callback", platform.lastRedirectURI)

		state, err := hs.Codec.DecodeState(res.State)
		require.NoError(t, err)
		require.Equal(t, "biz_abc123", state.CandidateTenantID)
		require.NotEmpty(t, state.Nonce)
	})

	t.Run("proceeds without a candidate when resolution misses", func(t *testing.T) {
		res, err := hs.Begin(ctx, "https://app.example.com", Signals{})
		require.NoError(t, err)
		require.Empty(t, res.CandidateTenantID)
		require.NotEmpty(t, res.State)
	})

	t.Run("each begin mints a distinct nonce", func(t *testing.T) {
		a, err := hs.Begin(ctx, "https://app.example.com", Signals{})
		require.NoError(t, err)
		b, err := hs.Begin(ctx, "https://app.example.com", Signals{})
		require.NoError(t, err)

		sa, _ := hs.Codec.DecodeState(a.State)
		sb, _ := hs.Codec.DecodeState(b.State)
		require.NotEqual(t, sa.Nonce, sb.Nonce)
	})
}

func TestHandshakeComplete(t *testing.T) {
	ctx := context.Background()
	platform := &fakePlatform{identity: installedIdentity()}
	hs := newHandshake(t, platform)

	begin, err := hs.Begin(ctx, "https://app.example.com", Signals{})
	require.NoError(t, err)

	t.Run("links the installation", func(t *testing.T) {
		inst, ident, err := hs.Complete(ctx, begin.State, "auth-code", "https://app.example.com")
		require.NoError(t, err)
		require.Equal(t, "biz_abc123", inst.TenantID)
		require.Equal(t, "exp_xyz", inst.ExperienceID)
		require.Equal(t, "alice", ident.Username)

		// Credential is sealed, not stored raw.
		require.NotEqual(t, "platform-token", inst.AccessCredential)
		token, err := hs.Installations.CredentialFor(ctx, "biz_abc123")
		require.NoError(t, err)
		require.Equal(t, "platform-token", token)
	})

	t.Run("replayed state is rejected", func(t *testing.T) {
		_, _, err := hs.Complete(ctx, begin.State, "auth-code", "https://app.example.com")
		require.ErrorIs(t, err, ErrReplayedState)
	})

	t.Run("tampered state is rejected", func(t *testing.T) {
		_, _, err := hs.Complete(ctx, begin.State+"x", "auth-code", "https://app.example.com")
		require.ErrorIs(t, err, credx.ErrMalformedState)
	})

	t.Run("persists the nonce fingerprint, not the raw nonce", func(t *testing.T) {
		state, err := hs.Codec.DecodeState(begin.State)
		require.NoError(t, err)

		err = hs.Store.HandshakeNonces().Consume(ctx, cryptox.FingerprintToken(state.Nonce), time.Now())
		require.ErrorIs(t, err, store.ErrAlreadyExists)
	})

	t.Run("stale state is rejected", func(t *testing.T) {
		stale, err := hs.Codec.EncodeState(credx.State{
			Nonce:    "stale-nonce",
			IssuedAt: time.Now().Add(-time.Hour).UnixMilli(),
		})
		require.NoError(t, err)

		_, _, err = hs.Complete(ctx, stale, "auth-code", "https://app.example.com")
		require.ErrorIs(t, err, ErrExpiredState)
	})

	t.Run("repeated handshake updates rather than duplicates", func(t *testing.T) {
		platform.identity = &whopapi.Identity{
			UserID:      "user_2",
			Username:    "bob",
			CompanyID:   "biz_abc123",
			PlanTier:    "enterprise",
			AccessToken: "newer-token",
		}

		again, err := hs.Begin(ctx, "https://app.example.com", Signals{})
		require.NoError(t, err)

		inst, _, err := hs.Complete(ctx, again.State, "auth-code-2", "https://app.example.com")
		require.NoError(t, err)
		require.Equal(t, "user_2", inst.UserID)
		require.Equal(t, "enterprise", inst.PlanTier)
		// The experience binding from the first handshake survives.
		require.Equal(t, "exp_xyz", inst.ExperienceID)
	})

	t.Run("experience moving to another company rebinds it", func(t *testing.T) {
		platform.identity = &whopapi.Identity{
			UserID:       "user_4",
			CompanyID:    "biz_second",
			ExperienceID: "exp_xyz",
			AccessToken:  "tok",
		}

		begin, err := hs.Begin(ctx, "https://app.example.com", Signals{})
		require.NoError(t, err)

		inst, _, err := hs.Complete(ctx, begin.State, "code", "https://app.example.com")
		require.NoError(t, err)
		require.Equal(t, "biz_second", inst.TenantID)
		require.Equal(t, "exp_xyz", inst.ExperienceID)

		// The hint now resolves to the new owner only.
		prev, err := hs.Store.Installations().GetByTenantID(ctx, "biz_abc123")
		require.NoError(t, err)
		require.Empty(t, prev.ExperienceID)
	})

	t.Run("malformed company id from platform is rejected", func(t *testing.T) {
		platform.identity = &whopapi.Identity{
			UserID:      "user_3",
			CompanyID:   "not-a-company",
			AccessToken: "tok",
		}

		begin, err := hs.Begin(ctx, "https://app.example.com", Signals{})
		require.NoError(t, err)

		_, _, err = hs.Complete(ctx, begin.State, "code", "https://app.example.com")
		require.Error(t, err)
	})

	t.Run("identity without a user id is rejected", func(t *testing.T) {
		platform.identity = &whopapi.Identity{
			CompanyID:   "biz_nouser",
			AccessToken: "tok",
		}

		begin, err := hs.Begin(ctx, "https://app.example.com", Signals{})
		require.NoError(t, err)

		_, _, err = hs.Complete(ctx, begin.State, "code", "https://app.example.com")
		require.Error(t, err)

		// Nothing was linked for the company.
		_, err = hs.Store.Installations().GetByTenantID(ctx, "biz_nouser")
		require.Error(t, err)
	})
}
