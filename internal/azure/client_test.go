package azure

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

func testConfig() Config {
	return Config{
		ClientID:     "client-1",
		ClientSecret: "shhh",
		Authority:    "https://login.microsoftonline.com/tenant-1",
		RedirectURI:  "http://localhost:3001/api/v1/auth/azure/callback",
	}
}

func TestAuthCodeURLCarriesState(t *testing.T) {
	cl, err := New(testConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	authURL, state := cl.AuthCodeURL()
	if state == "" {
		t.Fatal("expected a non-empty state")
	}
	parsed, err := url.Parse(authURL)
	if err != nil {
		t.Fatalf("parse auth url: %v", err)
	}
	q := parsed.Query()
	if q.Get("state") != state {
		t.Fatalf("state mismatch: url=%q returned=%q", q.Get("state"), state)
	}
	if q.Get("client_id") != "client-1" || q.Get("response_type") != "code" {
		t.Fatalf("unexpected query: %v", q)
	}
	if !strings.Contains(q.Get("scope"), "user.read") {
		t.Fatalf("scope missing user.read: %q", q.Get("scope"))
	}

	_, second := cl.AuthCodeURL()
	if second == state {
		t.Fatal("state must differ between calls")
	}
}

func TestExchangeAndProfile(t *testing.T) {
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/oauth2/v2.0/token":
			if err := r.ParseForm(); err != nil {
				t.Fatalf("parse form: %v", err)
			}
			if r.PostForm.Get("code") != "code-123" || r.PostForm.Get("grant_type") != "authorization_code" {
				t.Fatalf("unexpected token request: %v", r.PostForm)
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"access_token": "provider-token",
				"token_type":   "Bearer",
				"expires_in":   3600,
			})
		case "/me":
			if got := r.Header.Get("Authorization"); got != "Bearer provider-token" {
				t.Fatalf("unexpected authorization header: %q", got)
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"id":                "azure-1",
				"displayName":       "Max Muster",
				"givenName":         "Max",
				"surname":           "Muster",
				"userPrincipalName": "max@jermis.example",
			})
		default:
			http.NotFound(w, r)
		}
	}))
	defer provider.Close()

	cl, err := New(testConfig(), WithAuthority(provider.URL), WithGraphURL(provider.URL))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	token, err := cl.Exchange(context.Background(), "code-123")
	if err != nil {
		t.Fatalf("Exchange: %v", err)
	}
	if token != "provider-token" {
		t.Fatalf("unexpected token: %q", token)
	}

	profile, err := cl.Profile(context.Background(), token)
	if err != nil {
		t.Fatalf("Profile: %v", err)
	}
	if profile.ID != "azure-1" || profile.Address() != "max@jermis.example" {
		t.Fatalf("unexpected profile: %+v", profile)
	}
	// jobTitle/department were absent and must stay empty.
	if profile.JobTitle != "" || profile.Department != "" {
		t.Fatalf("optional fields must stay empty: %+v", profile)
	}
}

func TestExchangeRejectsProviderError(t *testing.T) {
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
	}))
	defer provider.Close()

	cl, err := New(testConfig(), WithAuthority(provider.URL))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := cl.Exchange(context.Background(), "bad-code"); err == nil {
		t.Fatal("expected an error for a rejected code")
	}
	if _, err := cl.Exchange(context.Background(), ""); err == nil {
		t.Fatal("expected an error for an empty code")
	}
}
