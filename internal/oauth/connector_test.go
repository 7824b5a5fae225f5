package oauth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/lucalabs/luca-backend/pkg/config"
	"github.com/lucalabs/luca-backend/pkg/enums"
	pkgerrors "github.com/lucalabs/luca-backend/pkg/errors"
)

func testConnector(t *testing.T) *Connector {
	t.Helper()
	connector, err := NewConnector(ConnectorParams{
		HTTPClient: http.DefaultClient,
		BaseURL:    "https://api.luca.test/",
		OAuth: config.OAuthConfig{
			SallaClientID:        "salla-id",
			SallaClientSecret:    "salla-secret",
			ShopifyClientID:      "shopify-id",
			ShopifyClientSecret:  "shopify-secret",
			MetaClientID:         "meta-id",
			MetaClientSecret:     "meta-secret",
			GoogleClientID:       "google-id",
			GoogleClientSecret:   "google-secret",
			TikTokClientID:       "tiktok-id",
			TikTokClientSecret:   "tiktok-secret",
			SnapchatClientID:     "snap-id",
			SnapchatClientSecret: "snap-secret",
		},
	})
	if err != nil {
		t.Fatalf("setup connector: %v", err)
	}
	return connector
}

func TestConnector_BuildAuthorizationURL(t *testing.T) {
	connector := testConnector(t)

	raw, err := connector.BuildAuthorizationURL(enums.PlatformSalla, "state-1", "")
	if err != nil {
		t.Fatalf("build url: %v", err)
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	if parsed.Host != "accounts.salla.sa" {
		t.Fatalf("unexpected host %q", parsed.Host)
	}
	query := parsed.Query()
	if query.Get("state") != "state-1" {
		t.Fatalf("state missing from authorize url")
	}
	if query.Get("redirect_uri") != "https://api.luca.test/auth/salla/callback" {
		t.Fatalf("unexpected redirect uri %q", query.Get("redirect_uri"))
	}
	if query.Get("response_type") != "code" {
		t.Fatalf("unexpected response_type %q", query.Get("response_type"))
	}
}

func TestConnector_BuildAuthorizationURLShopifyTemplatesShop(t *testing.T) {
	connector := testConnector(t)

	raw, err := connector.BuildAuthorizationURL(enums.PlatformShopify, "s", "acme.myshopify.com")
	if err != nil {
		t.Fatalf("build url: %v", err)
	}
	if !strings.HasPrefix(raw, "https://acme.myshopify.com/admin/oauth/authorize") {
		t.Fatalf("shop not templated into url: %q", raw)
	}

	if _, err := connector.BuildAuthorizationURL(enums.PlatformShopify, "s", ""); err == nil {
		t.Fatalf("expected error without shop domain")
	}
}

func TestConnector_MissingCredentialsIsConfigError(t *testing.T) {
	connector, err := NewConnector(ConnectorParams{
		HTTPClient: http.DefaultClient,
		BaseURL:    "https://api.luca.test",
		OAuth:      config.OAuthConfig{},
	})
	if err != nil {
		t.Fatalf("setup connector: %v", err)
	}

	_, err = connector.BuildAuthorizationURL(enums.PlatformMeta, "s", "")
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeConfig {
		t.Fatalf("expected CONFIG_ERROR, got %v", err)
	}
}

func TestConnector_ExchangeCodeSendsFormCredentials(t *testing.T) {
	var seen url.Values
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		seen = r.PostForm
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok","refresh_token":"ref","expires_in":3600}`))
	}))
	defer server.Close()

	connector := testConnector(t)
	withTokenURL(t, enums.PlatformSalla, server.URL)

	tokens, err := connector.ExchangeCode(context.Background(), enums.PlatformSalla, "code-1", "")
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}
	if tokens.AccessToken != "tok" || tokens.RefreshToken != "ref" || tokens.ExpiresIn != 3600 {
		t.Fatalf("unexpected token response %+v", tokens)
	}
	if seen.Get("client_id") != "salla-id" || seen.Get("client_secret") != "salla-secret" {
		t.Fatalf("client credentials not in form body: %v", seen)
	}
	if seen.Get("grant_type") != "authorization_code" {
		t.Fatalf("unexpected grant_type %q", seen.Get("grant_type"))
	}
}

func TestConnector_RefreshUsesBasicAuthForSnapchat(t *testing.T) {
	var user, pass string
	var hadBasic bool
	var seen url.Values
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, hadBasic = r.BasicAuth()
		_ = r.ParseForm()
		seen = r.PostForm
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"fresh","expires_in":1800}`))
	}))
	defer server.Close()

	connector := testConnector(t)
	withTokenURL(t, enums.PlatformSnapchat, server.URL)

	tokens, err := connector.Refresh(context.Background(), enums.PlatformSnapchat, "old-refresh")
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if tokens.AccessToken != "fresh" {
		t.Fatalf("unexpected access token %q", tokens.AccessToken)
	}
	if !hadBasic || user != "snap-id" || pass != "snap-secret" {
		t.Fatalf("expected basic auth credentials, got %q/%q", user, pass)
	}
	if seen.Get("client_secret") != "" {
		t.Fatalf("client secret must not travel in the form body for basic auth platforms")
	}
	if seen.Get("grant_type") != "refresh_token" {
		t.Fatalf("unexpected grant_type %q", seen.Get("grant_type"))
	}
}

func TestConnector_TokenEndpointFailureIsProviderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
	}))
	defer server.Close()

	connector := testConnector(t)
	withTokenURL(t, enums.PlatformGoogle, server.URL)

	_, err := connector.ExchangeCode(context.Background(), enums.PlatformGoogle, "bad-code", "")
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeProvider {
		t.Fatalf("expected PROVIDER_ERROR, got %v", err)
	}
}

func TestConnector_MissingAccessTokenIsProviderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"token_type":"bearer"}`))
	}))
	defer server.Close()

	connector := testConnector(t)
	withTokenURL(t, enums.PlatformTikTok, server.URL)

	_, err := connector.ExchangeCode(context.Background(), enums.PlatformTikTok, "code", "")
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeProvider {
		t.Fatalf("expected PROVIDER_ERROR, got %v", err)
	}
}

// withTokenURL rewrites a platform's token endpoint so tests can intercept the
// request with httptest. The original endpoint is restored on cleanup.
func withTokenURL(t *testing.T, platform enums.Platform, tokenURL string) {
	t.Helper()
	original := platformEndpoints[platform]
	rewritten := original
	rewritten.TokenURL = tokenURL
	platformEndpoints[platform] = rewritten
	t.Cleanup(func() {
		platformEndpoints[platform] = original
	})
}
