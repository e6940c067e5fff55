package whopapi_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/parlourtech/whopdash/pkg/whopapi"
	"github.com/stretchr/testify/require"
)

func newFakePlatform(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v5/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if r.FormValue("code") != "good-code" {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"error":             "invalid_grant",
				"error_description": "authorization code is invalid",
			})
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
		if r.Header.Get("Authorization") != "Bearer platform-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":            "user_123",
			"username":      "alice",
			"company_id":    "biz_abc123",
			"experience_id": "exp_xyz",
			"plan_tier":     "pro",
		})
	})
	mux.HandleFunc("GET /v5/companies/biz_abc123/metrics", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer platform-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"active_members": 42,
			"revenue_cents":  129900,
		})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestAuthCodeURL(t *testing.T) {
	client := whopapi.NewClient("https://api.example.com", "https://whop.example.com/oauth", "client-id", "secret")

	u := client.AuthCodeURL("state-token", "https://app.example.com/v1/oauth/callback")
	require.Contains(t, u, "https://whop.example.com/oauth")
	require.Contains(t, u, "state=state-token")
	require.Contains(t, u, "client_id=client-id")
	require.Contains(t, u, "redirect_uri=")
}

func TestIdentity(t *testing.T) {
	srv := newFakePlatform(t)
	client := whopapi.NewClient(srv.URL, srv.URL+"/oauth", "client-id", "secret")

	t.Run("successful exchange", func(t *testing.T) {
		ident, err := client.Identity(context.Background(), "good-code", "https://app.example.com/cb")
		require.NoError(t, err)
		require.Equal(t, "user_123", ident.UserID)
		require.Equal(t, "alice", ident.Username)
		require.Equal(t, "biz_abc123", ident.CompanyID)
		require.Equal(t, "exp_xyz", ident.ExperienceID)
		require.Equal(t, "pro", ident.PlanTier)
		require.Equal(t, "platform-token", ident.AccessToken)
	})

	t.Run("bad code fails", func(t *testing.T) {
		_, err := client.Identity(context.Background(), "bad-code", "https://app.example.com/cb")
		require.Error(t, err)
	})
}

func TestCompanyMetrics(t *testing.T) {
	srv := newFakePlatform(t)
	client := whopapi.NewClient(srv.URL, srv.URL+"/oauth", "client-id", "secret")

	t.Run("returns snapshot", func(t *testing.T) {
		metrics, err := client.CompanyMetrics(context.Background(), "platform-token", "biz_abc123")
		require.NoError(t, err)
		require.Equal(t, 42, metrics.ActiveMembers)
		require.Equal(t, int64(129900), metrics.RevenueCents)
	})

	t.Run("unknown company surfaces APIError", func(t *testing.T) {
		_, err := client.CompanyMetrics(context.Background(), "platform-token", "biz_missing")
		require.Error(t, err)

		var apiErr *whopapi.APIError
		require.ErrorAs(t, err, &apiErr)
		require.True(t, apiErr.IsNotFound())
	})

	t.Run("bad token rejected", func(t *testing.T) {
		_, err := client.CompanyMetrics(context.Background(), "wrong-token", "biz_abc123")

		var apiErr *whopapi.APIError
		require.ErrorAs(t, err, &apiErr)
		require.Equal(t, 401, apiErr.StatusCode)
	})
}
