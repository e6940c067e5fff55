package dashboard_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
)

// completeHandshake walks the full begin/callback dance and returns the
// issued session cookie.
func completeHandshake(t *testing.T, env *testEnv) *http.Cookie {
	t.Helper()
	client := noRedirectClient()

	// Begin: the service should bounce us to the platform authorize URL
	// with a signed state parameter.
	resp, err := client.Get(env.server.URL + "/v1/oauth/begin?experienceId=exp_xyz")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusFound, resp.StatusCode)

	authorizeURL, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	state := authorizeURL.Query().Get("state")
	require.NotEmpty(t, state)

	// Callback: the platform redirects the browser back with state + code.
	cb := env.server.URL + "/v1/oauth/callback?state=" + url.QueryEscape(state) + "&code=auth-code"
	resp, err = client.Get(cb)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusFound, resp.StatusCode)
	require.Equal(t, "/dash", resp.Header.Get("Location"))

	var sessionCookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == "whop_session" {
			sessionCookie = c
		}
	}
	require.NotNil(t, sessionCookie, "callback must set the session cookie")
	require.True(t, sessionCookie.HttpOnly)
	require.Equal(t, http.SameSiteNoneMode, sessionCookie.SameSite)

	return sessionCookie
}

func TestInstallHandshakeFlow(t *testing.T) {
	env := setupDashboard(t)
	cookie := completeHandshake(t, env)

	t.Run("cookie authenticates dashboard reads", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodGet, env.server.URL+"/v1/session", nil)
		require.NoError(t, err)
		req.AddCookie(cookie)

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var info struct {
			CompanyID   string `json:"companyId"`
			UserID      string `json:"userId"`
			DisplayName string `json:"displayName"`
		}
		decodeJSON(t, resp, &info)
		require.Equal(t, "biz_abc123", info.CompanyID)
		require.Equal(t, "user_123", info.UserID)
		require.Equal(t, "alice", info.DisplayName)
	})

	t.Run("metrics sync and list", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodPost, env.server.URL+"/v1/metrics/sync", nil)
		require.NoError(t, err)
		req.AddCookie(cookie)

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var synced struct {
			ActiveMembers int   `json:"activeMembers"`
			RevenueCents  int64 `json:"revenueCents"`
		}
		decodeJSON(t, resp, &synced)
		require.Equal(t, 42, synced.ActiveMembers)

		req, err = http.NewRequest(http.MethodGet, env.server.URL+"/v1/metrics", nil)
		require.NoError(t, err)
		req.AddCookie(cookie)

		resp, err = http.DefaultClient.Do(req)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var list struct {
			CompanyID string `json:"companyId"`
			Metrics   []struct {
				Day           string `json:"day"`
				ActiveMembers int    `json:"activeMembers"`
			} `json:"metrics"`
		}
		decodeJSON(t, resp, &list)
		require.Equal(t, "biz_abc123", list.CompanyID)
		require.Len(t, list.Metrics, 1)
		require.Equal(t, 42, list.Metrics[0].ActiveMembers)
	})

	t.Run("replayed callback restarts the handshake", func(t *testing.T) {
		client := noRedirectClient()

		resp, err := client.Get(env.server.URL + "/v1/oauth/begin")
		require.NoError(t, err)
		resp.Body.Close()
		loc, err := url.Parse(resp.Header.Get("Location"))
		require.NoError(t, err)
		state := loc.Query().Get("state")

		cb := env.server.URL + "/v1/oauth/callback?state=" + url.QueryEscape(state) + "&code=c1"
		resp, err = client.Get(cb)
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusFound, resp.StatusCode)

		// Same state again: bounced back to begin, no session issued.
		resp, err = client.Get(cb)
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusFound, resp.StatusCode)
		require.Equal(t, "/v1/oauth/begin", resp.Header.Get("Location"))
		require.Empty(t, resp.Cookies())
	})

	t.Run("begin returns JSON when asked", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodGet, env.server.URL+"/v1/oauth/begin?companyId=biz_abc123", nil)
		require.NoError(t, err)
		req.Header.Set("Accept", "application/json")

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var out struct {
			URL       string `json:"url"`
			State     string `json:"state"`
			CompanyID string `json:"companyId"`
		}
		decodeJSON(t, resp, &out)
		require.NotEmpty(t, out.URL)
		require.NotEmpty(t, out.State)
		require.Equal(t, "biz_abc123", out.CompanyID)
		require.Contains(t, out.URL, "state=")
	})

	t.Run("tampered state is rejected", func(t *testing.T) {
		resp, err := http.Get(env.server.URL + "/v1/oauth/callback?state=garbage&code=c2")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestSessionEndpoints(t *testing.T) {
	env := setupDashboard(t)
	completeHandshake(t, env) // installs biz_abc123

	postJSON := func(t *testing.T, path string, body any) *http.Response {
		t.Helper()
		payload, err := json.Marshal(body)
		require.NoError(t, err)

		resp, err := http.Post(env.server.URL+path, "application/json", bytes.NewReader(payload))
		require.NoError(t, err)
		return resp
	}

	var issuedToken string

	t.Run("issue for an installed company", func(t *testing.T) {
		resp := postJSON(t, "/v1/session", map[string]string{
			"companyId": "biz_abc123",
			"userId":    "user_456",
			"username":  "bob",
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var out struct {
			Success      bool   `json:"success"`
			SessionToken string `json:"sessionToken"`
			CompanyID    string `json:"companyId"`
			ExpiresAt    int64  `json:"expiresAt"`
		}
		decodeJSON(t, resp, &out)
		require.True(t, out.Success)
		require.NotEmpty(t, out.SessionToken)
		require.Equal(t, "biz_abc123", out.CompanyID)
		require.Positive(t, out.ExpiresAt)

		issuedToken = out.SessionToken
	})

	t.Run("issue resolves tenant from experience hint", func(t *testing.T) {
		resp := postJSON(t, "/v1/session", map[string]string{
			"experienceId": "exp_xyz",
			"userId":       "user_456",
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var out struct {
			CompanyID string `json:"companyId"`
		}
		decodeJSON(t, resp, &out)
		require.Equal(t, "biz_abc123", out.CompanyID)
	})

	t.Run("issue without any tenant signal", func(t *testing.T) {
		resp := postJSON(t, "/v1/session", map[string]string{"userId": "user_456"})
		defer resp.Body.Close()
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("issue for a company that never installed", func(t *testing.T) {
		resp := postJSON(t, "/v1/session", map[string]string{
			"companyId": "biz_stranger",
			"userId":    "user_456",
		})
		defer resp.Body.Close()
		require.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("issue without a user", func(t *testing.T) {
		resp := postJSON(t, "/v1/session", map[string]string{"companyId": "biz_abc123"})
		defer resp.Body.Close()
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("bearer token authenticates", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodGet, env.server.URL+"/v1/session", nil)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+issuedToken)

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("refresh re-issues", func(t *testing.T) {
		resp := postJSON(t, "/v1/session/refresh", map[string]string{
			"sessionToken": issuedToken,
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var out struct {
			SessionToken string `json:"sessionToken"`
			CompanyID    string `json:"companyId"`
		}
		decodeJSON(t, resp, &out)
		require.NotEmpty(t, out.SessionToken)
		require.Equal(t, "biz_abc123", out.CompanyID)
	})

	t.Run("refresh with garbage", func(t *testing.T) {
		resp := postJSON(t, "/v1/session/refresh", map[string]string{
			"sessionToken": "garbage",
		})
		defer resp.Body.Close()
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("refresh from the installation record", func(t *testing.T) {
		resp := postJSON(t, "/v1/session/refresh?companyId=biz_abc123", map[string]string{})
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var out struct {
			Success      bool   `json:"success"`
			SessionToken string `json:"sessionToken"`
			CompanyID    string `json:"companyId"`
		}
		decodeJSON(t, resp, &out)
		require.True(t, out.Success)
		require.NotEmpty(t, out.SessionToken)
		require.Equal(t, "biz_abc123", out.CompanyID)
	})

	t.Run("refresh for an uninstalled company", func(t *testing.T) {
		resp := postJSON(t, "/v1/session/refresh?companyId=biz_stranger", map[string]string{})
		defer resp.Body.Close()
		require.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("issue with a session token renews it", func(t *testing.T) {
		resp := postJSON(t, "/v1/session", map[string]string{
			"sessionToken": issuedToken,
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var out struct {
			Success   bool   `json:"success"`
			CompanyID string `json:"companyId"`
		}
		decodeJSON(t, resp, &out)
		require.True(t, out.Success)
		require.Equal(t, "biz_abc123", out.CompanyID)
	})

	t.Run("issue with a malformed session token", func(t *testing.T) {
		resp := postJSON(t, "/v1/session", map[string]string{
			"sessionToken": "not-base64-json",
		})
		defer resp.Body.Close()
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("unauthenticated metrics read", func(t *testing.T) {
		resp, err := http.Get(env.server.URL + "/v1/metrics")
		require.NoError(t, err)
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

		var out struct {
			Error string `json:"error"`
		}
		decodeJSON(t, resp, &out)
		require.Equal(t, "login_required", out.Error)
	})
}

func TestHealthEndpoints(t *testing.T) {
	env := setupDashboard(t)

	t.Run("livez", func(t *testing.T) {
		resp, err := http.Get(env.server.URL + "/livez")
		require.NoError(t, err)

		var out struct {
			Status string `json:"status"`
		}
		decodeJSON(t, resp, &out)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Equal(t, "ok", out.Status)
	})

	t.Run("readyz reports database health", func(t *testing.T) {
		resp, err := http.Get(env.server.URL + "/readyz")
		require.NoError(t, err)

		var out struct {
			Status string `json:"status"`
			Checks struct {
				Database string `json:"database"`
			} `json:"checks"`
		}
		decodeJSON(t, resp, &out)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Equal(t, "ok", out.Status)
		require.Equal(t, "ok", out.Checks.Database)
	})
}
