package dashboard_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	httpapi "github.com/parlourtech/whopdash/internal/dashboard/http"
	"github.com/parlourtech/whopdash/internal/dashboard/service"
	"github.com/parlourtech/whopdash/internal/dashboard/store/drivers/sqlite"
	"github.com/parlourtech/whopdash/pkg/credx"
	"github.com/parlourtech/whopdash/pkg/cryptox"
	"github.com/parlourtech/whopdash/pkg/slogx"
	"github.com/parlourtech/whopdash/pkg/whopapi"
	"github.com/stretchr/testify/require"
)

// fakeWhop is an in-process stand-in for the platform API: token exchange,
// identity, and company metrics.
type fakeWhop struct {
	srv *httptest.Server

	identity map[string]any // response for /v5/me
	metrics  map[string]any // response for company metrics
}

func newFakeWhop(t *testing.T) *fakeWhop {
	t.Helper()

	f := &fakeWhop{
		identity: map[string]any{
			"id":            "user_123",
			"username":      "alice",
			"company_id":    "biz_abc123",
			"experience_id": "exp_xyz",
			"plan_tier":     "pro",
		},
		metrics: map[string]any{
			"active_members": 42,
			"revenue_cents":  129900,
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v5/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if r.FormValue("code") == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "platform-token",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	})
	mux.HandleFunc("GET /v5/me", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(f.identity)
	})
	mux.HandleFunc("GET /v5/companies/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(f.metrics)
	})

	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

// testEnv is the whole dashboard service wired up in process: in-memory
// store, fake platform, real router.
type testEnv struct {
	server   *httptest.Server
	whop     *fakeWhop
	sessions *service.SessionService
}

func setupDashboard(t *testing.T) *testEnv {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	whop := newFakeWhop(t)
	platform := whopapi.NewClient(whop.srv.URL, whop.srv.URL+"/oauth", "client-id", "client-secret")

	secret := []byte("e2e-session-secret-material")
	codec, err := credx.NewCodec(cryptox.DeriveKey("signing", secret))
	require.NoError(t, err)

	resolver := &service.ResolverService{Store: st}
	installations := &service.InstallationService{
		Store:   st,
		SealKey: cryptox.DeriveKey("sealing", secret),
	}
	sessions := &service.SessionService{Codec: codec, Store: st, TTL: time.Hour}

	router := httpapi.NewRouter("test", "/dash", st, slogx.Discard())
	router.ResolverService = resolver
	router.InstallationService = installations
	router.SessionService = sessions
	router.HandshakeService = &service.HandshakeService{
		Codec:         codec,
		Resolver:      resolver,
		Installations: installations,
		Platform:      platform,
		Store:         st,
		CallbackPath:  "/v1/oauth/callback",
		StateMaxAge:   10 * time.Minute,
	}
	router.MetricsService = &service.MetricsService{
		Store:         st,
		Installations: installations,
		Platform:      platform,
	}
	router.ApplyRoutes()

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &testEnv{server: srv, whop: whop, sessions: sessions}
}

// noRedirectClient returns redirects to the caller instead of following them.
func noRedirectClient() *http.Client {
	return &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func decodeJSON(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}
