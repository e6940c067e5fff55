// Package whopapi is a small client for the Whop platform API. It covers the
// OAuth code exchange used during installation handshakes and the read
// endpoints the dashboard syncs from.
package whopapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// Client talks to the Whop platform API.
type Client struct {
	// BaseURL is the API root, e.g. "https://api.whop.com".
	BaseURL string
	// AuthorizeURL is the browser-facing authorization endpoint.
	AuthorizeURL string

	ClientID     string
	ClientSecret string

	HTTPClient *http.Client
}

// NewClient creates a platform client with a sane default timeout.
func NewClient(baseURL, authorizeURL, clientID, clientSecret string) *Client {
	return &Client{
		BaseURL:      strings.TrimSuffix(baseURL, "/"),
		AuthorizeURL: authorizeURL,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Identity is the platform's view of the installing user and their company.
type Identity struct {
	UserID       string `json:"id"`
	Username     string `json:"username"`
	CompanyID    string `json:"company_id"`
	ExperienceID string `json:"experience_id"`
	PlanTier     string `json:"plan_tier"`

	// AccessToken is the platform token obtained from the code exchange,
	// needed for subsequent reads on behalf of this installation.
	AccessToken string `json:"-"`
}

// CompanyMetrics is a point-in-time snapshot of a company's activity.
type CompanyMetrics struct {
	ActiveMembers int   `json:"active_members"`
	RevenueCents  int64 `json:"revenue_cents"`
}

func (c *Client) oauthConfig(redirectURI string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		RedirectURL:  redirectURI,
		Endpoint: oauth2.Endpoint{
			AuthURL:  c.AuthorizeURL,
			TokenURL: c.BaseURL + "/v5/oauth/token",
		},
	}
}

// AuthCodeURL builds the authorization URL the embedded app redirects the
// browser to when it has no valid session.
func (c *Client) AuthCodeURL(state, redirectURI string) string {
	return c.oauthConfig(redirectURI).AuthCodeURL(state)
}

// Identity exchanges an authorization code and fetches the authenticated
// user's identity, including the company the app is installed into.
func (c *Client) Identity(ctx context.Context, code, redirectURI string) (*Identity, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.HTTPClient)

	token, err := c.oauthConfig(redirectURI).Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}

	var ident Identity
	if err := c.getJSON(ctx, "/v5/me", token.AccessToken, &ident); err != nil {
		return nil, err
	}
	ident.AccessToken = token.AccessToken

	return &ident, nil
}

// CompanyMetrics fetches the current activity snapshot for a company using an
// installation's access token.
func (c *Client) CompanyMetrics(ctx context.Context, accessToken, companyID string) (*CompanyMetrics, error) {
	var metrics CompanyMetrics
	path := "/v5/companies/" + companyID + "/metrics"
	if err := c.getJSON(ctx, path, accessToken, &metrics); err != nil {
		return nil, err
	}
	return &metrics, nil
}

func (c *Client) getJSON(ctx context.Context, path, accessToken string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return parseAPIError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
