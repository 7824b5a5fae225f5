package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/lucalabs/luca-backend/pkg/config"
	"github.com/lucalabs/luca-backend/pkg/enums"
	pkgerrors "github.com/lucalabs/luca-backend/pkg/errors"
)

const maxProviderBody = 1 << 20

type clientCredentials struct {
	ID     string
	Secret string
}

// TokenResponse is the normalized result of an exchange or refresh. Raw keeps
// the full provider payload for account discovery.
type TokenResponse struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64
	Raw          map[string]any
}

// ExpiresAt converts ExpiresIn into an absolute deadline, nil when the
// provider issues non-expiring tokens.
func (t TokenResponse) ExpiresAt(now time.Time) *time.Time {
	if t.ExpiresIn <= 0 {
		return nil
	}
	at := now.Add(time.Duration(t.ExpiresIn) * time.Second)
	return &at
}

// Connector speaks the authorization-code and refresh grants against each
// platform's token endpoint. It never retries: retry budgets belong to callers.
type Connector struct {
	httpClient  *http.Client
	creds       map[enums.Platform]clientCredentials
	redirectURI func(platform enums.Platform) string
}

// ConnectorParams wires the connector dependencies.
type ConnectorParams struct {
	HTTPClient *http.Client
	OAuth      config.OAuthConfig
	BaseURL    string
}

// NewConnector builds the connector. Platforms with missing credentials stay
// registered but fail at use with CONFIG_ERROR.
func NewConnector(params ConnectorParams) (*Connector, error) {
	if params.HTTPClient == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "http client required")
	}
	if params.BaseURL == "" {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "base url required")
	}

	base := strings.TrimRight(params.BaseURL, "/")
	return &Connector{
		httpClient: params.HTTPClient,
		creds: map[enums.Platform]clientCredentials{
			enums.PlatformSalla:    {ID: params.OAuth.SallaClientID, Secret: params.OAuth.SallaClientSecret},
			enums.PlatformShopify:  {ID: params.OAuth.ShopifyClientID, Secret: params.OAuth.ShopifyClientSecret},
			enums.PlatformMeta:     {ID: params.OAuth.MetaClientID, Secret: params.OAuth.MetaClientSecret},
			enums.PlatformGoogle:   {ID: params.OAuth.GoogleClientID, Secret: params.OAuth.GoogleClientSecret},
			enums.PlatformTikTok:   {ID: params.OAuth.TikTokClientID, Secret: params.OAuth.TikTokClientSecret},
			enums.PlatformSnapchat: {ID: params.OAuth.SnapchatClientID, Secret: params.OAuth.SnapchatClientSecret},
		},
		redirectURI: func(platform enums.Platform) string {
			return fmt.Sprintf("%s/auth/%s/callback", base, platform)
		},
	}, nil
}

// RedirectURI returns the callback URL registered with the provider.
func (c *Connector) RedirectURI(platform enums.Platform) string {
	return c.redirectURI(platform)
}

func (c *Connector) credentialsFor(platform enums.Platform) (clientCredentials, error) {
	cred, ok := c.creds[platform]
	if !ok || cred.ID == "" || cred.Secret == "" {
		return clientCredentials{}, pkgerrors.New(pkgerrors.CodeConfig, fmt.Sprintf("platform %q has no client credentials", platform))
	}
	return cred, nil
}

// BuildAuthorizationURL assembles the provider authorize URL carrying the
// CSRF state. shopDomain is only consulted for shop-templated platforms.
func (c *Connector) BuildAuthorizationURL(platform enums.Platform, state, shopDomain string) (string, error) {
	ep, err := EndpointsFor(platform)
	if err != nil {
		return "", err
	}
	cred, err := c.credentialsFor(platform)
	if err != nil {
		return "", err
	}
	if ep.RequiresShop && NormalizeShopDomain(shopDomain) == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "shop domain is required")
	}

	authorizeURL := resolveShopURL(ep.AuthorizeURL, shopDomain)
	params := url.Values{}
	params.Set("client_id", cred.ID)
	params.Set("redirect_uri", c.redirectURI(platform))
	params.Set("response_type", "code")
	params.Set("scope", strings.Join(ep.Scopes, " "))
	params.Set("state", state)

	return authorizeURL + "?" + params.Encode(), nil
}

// ExchangeCode trades an authorization code for tokens.
func (c *Connector) ExchangeCode(ctx context.Context, platform enums.Platform, code, shopDomain string) (*TokenResponse, error) {
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "authorization code is required")
	}

	form := url.Values{}
	form.Set("code", code)
	form.Set("redirect_uri", c.redirectURI(platform))
	form.Set("grant_type", "authorization_code")

	return c.tokenRequest(ctx, platform, shopDomain, form)
}

// Refresh trades a refresh token for a fresh token set.
func (c *Connector) Refresh(ctx context.Context, platform enums.Platform, refreshToken string) (*TokenResponse, error) {
	if refreshToken == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refresh token is required")
	}

	form := url.Values{}
	form.Set("refresh_token", refreshToken)
	form.Set("grant_type", "refresh_token")

	return c.tokenRequest(ctx, platform, "", form)
}

// AccountIdentity applies the platform's named account rule to the token
// payload. "No account found" surfaces as a PROVIDER_ERROR.
func (c *Connector) AccountIdentity(platform enums.Platform, tokens *TokenResponse, shopDomain string) (Account, error) {
	ep, err := EndpointsFor(platform)
	if err != nil {
		return Account{}, err
	}
	if tokens == nil {
		return Account{}, pkgerrors.New(pkgerrors.CodeValidation, "token response is required")
	}
	return ep.AccountRule.Extract(tokens.Raw, shopDomain)
}

func (c *Connector) tokenRequest(ctx context.Context, platform enums.Platform, shopDomain string, form url.Values) (*TokenResponse, error) {
	ep, err := EndpointsFor(platform)
	if err != nil {
		return nil, err
	}
	cred, err := c.credentialsFor(platform)
	if err != nil {
		return nil, err
	}
	if ep.RequiresShop && NormalizeShopDomain(shopDomain) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shop domain is required")
	}

	tokenURL := resolveShopURL(ep.TokenURL, shopDomain)

	switch ep.AuthStyle {
	case AuthStyleBasic:
		// credentials travel in the Authorization header only
	default:
		form.Set("client_id", cred.ID)
		form.Set("client_secret", cred.Secret)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build token request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if ep.AuthStyle == AuthStyleBasic {
		req.SetBasicAuth(cred.ID, cred.Secret)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeProvider, err, "token request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxProviderBody))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeProvider, err, "read token response")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, pkgerrors.New(pkgerrors.CodeProvider, fmt.Sprintf("token endpoint returned %d", resp.StatusCode)).
			WithDetails(map[string]any{"platform": platform.String(), "status": resp.StatusCode, "body": string(body)})
	}

	raw := map[string]any{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeProvider, err, "decode token response")
	}

	out := &TokenResponse{Raw: raw}
	if v, ok := raw["access_token"].(string); ok {
		out.AccessToken = v
	}
	if v, ok := raw["refresh_token"].(string); ok {
		out.RefreshToken = v
	}
	if v, ok := raw["expires_in"].(float64); ok {
		out.ExpiresIn = int64(v)
	}
	if out.AccessToken == "" {
		return nil, pkgerrors.New(pkgerrors.CodeProvider, "token response missing access_token").
			WithDetails(map[string]any{"platform": platform.String(), "body": string(body)})
	}
	return out, nil
}
