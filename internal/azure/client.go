// Package azure implements the enterprise SSO code flow: building the
// authorization URL, exchanging the returned code for an access token and
// fetching the signed-in profile from the Graph API. Every outbound call is
// bounded by the request context and a client timeout; a hanging provider
// must never stall the login request indefinitely.
package azure

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"cloudos.jermis.io/internal/identity"
)

const (
	defaultGraphURL    = "https://graph.microsoft.com/v1.0"
	defaultHTTPTimeout = 10 * time.Second
)

var scopes = []string{"user.read", "profile", "openid", "email"}

// Config carries the app registration settings.
type Config struct {
	ClientID     string
	ClientSecret string
	// Authority is the tenant endpoint, e.g. https://login.microsoftonline.com/<tenant>.
	Authority   string
	RedirectURI string
}

// Client talks to the identity provider.
type Client struct {
	cfg      Config
	graphURL string
	http     *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client (useful for tests).
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.http = c
		}
	}
}

// WithGraphURL overrides the profile endpoint base (useful for tests).
func WithGraphURL(u string) Option {
	return func(cl *Client) {
		if u != "" {
			cl.graphURL = strings.TrimSuffix(u, "/")
		}
	}
}

// WithAuthority overrides the token endpoint base (useful for tests).
func WithAuthority(u string) Option {
	return func(cl *Client) {
		if u != "" {
			cl.cfg.Authority = strings.TrimSuffix(u, "/")
		}
	}
}

// New validates the configuration and constructs a Client.
func New(cfg Config, opts ...Option) (*Client, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" || cfg.Authority == "" || cfg.RedirectURI == "" {
		return nil, errors.New("azure: client id, secret, authority and redirect uri are required")
	}
	cl := &Client{
		cfg:      cfg,
		graphURL: defaultGraphURL,
		http:     &http.Client{Timeout: defaultHTTPTimeout},
	}
	for _, opt := range opts {
		opt(cl)
	}
	cl.cfg.Authority = strings.TrimSuffix(cl.cfg.Authority, "/")
	return cl, nil
}

// AuthCodeURL returns the provider authorization URL together with the
// anti-forgery state embedded in it.
func (c *Client) AuthCodeURL() (authURL, state string) {
	state = uuid.NewString()
	q := url.Values{}
	q.Set("client_id", c.cfg.ClientID)
	q.Set("response_type", "code")
	q.Set("redirect_uri", c.cfg.RedirectURI)
	q.Set("response_mode", "query")
	q.Set("scope", strings.Join(scopes, " "))
	q.Set("state", state)
	return c.cfg.Authority + "/oauth2/v2.0/authorize?" + q.Encode(), state
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// Exchange trades an authorization code for a provider access token.
func (c *Client) Exchange(ctx context.Context, code string) (string, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return "", errors.New("azure: authorization code is required")
	}
	form := url.Values{}
	form.Set("client_id", c.cfg.ClientID)
	form.Set("client_secret", c.cfg.ClientSecret)
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", c.cfg.RedirectURI)
	form.Set("scope", strings.Join(scopes, " "))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.Authority+"/oauth2/v2.0/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("token exchange: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<10))
		return "", fmt.Errorf("token exchange: provider returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var tok tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", fmt.Errorf("token exchange: decode response: %w", err)
	}
	if tok.AccessToken == "" {
		return "", errors.New("token exchange: empty access token")
	}
	return tok.AccessToken, nil
}

// Profile fetches the signed-in user's profile from the Graph API.
func (c *Client) Profile(ctx context.Context, accessToken string) (identity.AzureProfile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.graphURL+"/me", nil)
	if err != nil {
		return identity.AzureProfile{}, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return identity.AzureProfile{}, fmt.Errorf("fetch profile: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return identity.AzureProfile{}, fmt.Errorf("fetch profile: provider returned %d", resp.StatusCode)
	}
	var profile identity.AzureProfile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return identity.AzureProfile{}, fmt.Errorf("fetch profile: decode response: %w", err)
	}
	if profile.ID == "" {
		return identity.AzureProfile{}, errors.New("fetch profile: response has no id")
	}
	return profile, nil
}
