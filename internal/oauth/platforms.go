package oauth

import (
	"fmt"
	"strings"

	"github.com/lucalabs/luca-backend/pkg/enums"
	pkgerrors "github.com/lucalabs/luca-backend/pkg/errors"
)

// AuthStyle is how a provider wants client credentials on the token endpoint.
type AuthStyle int

const (
	// AuthStyleForm sends client_id/client_secret in the form body.
	AuthStyleForm AuthStyle = iota
	// AuthStyleBasic sends them as an HTTP Basic authorization header.
	AuthStyleBasic
)

// Account is the provider-side identity selected for an integration.
type Account struct {
	ID   string
	Name string
}

// AccountRule is the named, deterministic "first usable result" policy that
// picks an account out of a provider's token payload. An empty result is a
// PROVIDER_ERROR, never a silent success.
type AccountRule struct {
	Name    string
	Extract func(payload map[string]any, shopDomain string) (Account, error)
}

// Endpoints describes one platform's OAuth surface. Shopify URLs carry a
// {shop} placeholder resolved against the normalized shop domain.
type Endpoints struct {
	AuthorizeURL string
	TokenURL     string
	Scopes       []string
	AuthStyle    AuthStyle
	AccountRule  AccountRule
	RequiresShop bool
}

var platformEndpoints = map[enums.Platform]Endpoints{
	enums.PlatformSalla: {
		AuthorizeURL: "https://accounts.salla.sa/oauth2/auth",
		TokenURL:     "https://accounts.salla.sa/oauth2/token",
		Scopes:       []string{"offline_access"},
		AccountRule: AccountRule{
			Name:    "merchant-from-token",
			Extract: sallaMerchant,
		},
	},
	enums.PlatformShopify: {
		AuthorizeURL: "https://{shop}.myshopify.com/admin/oauth/authorize",
		TokenURL:     "https://{shop}.myshopify.com/admin/oauth/access_token",
		Scopes:       []string{"read_orders", "read_products", "read_customers"},
		RequiresShop: true,
		AccountRule: AccountRule{
			Name:    "shop-domain",
			Extract: shopifyShop,
		},
	},
	enums.PlatformMeta: {
		AuthorizeURL: "https://www.facebook.com/v18.0/dialog/oauth",
		TokenURL:     "https://graph.facebook.com/v18.0/oauth/access_token",
		Scopes:       []string{"ads_read", "business_management"},
		AccountRule: AccountRule{
			Name:    "first-ad-account",
			Extract: metaFirstAdAccount,
		},
	},
	enums.PlatformGoogle: {
		AuthorizeURL: "https://accounts.google.com/o/oauth2/v2/auth",
		TokenURL:     "https://oauth2.googleapis.com/token",
		Scopes:       []string{"https://www.googleapis.com/auth/adwords"},
		AccountRule: AccountRule{
			Name:    "customer-id",
			Extract: googleCustomer,
		},
	},
	enums.PlatformTikTok: {
		AuthorizeURL: "https://business-api.tiktok.com/open_api/v1.3/oauth/authorize/",
		TokenURL:     "https://business-api.tiktok.com/open_api/v1.3/oauth/access_token/",
		Scopes:       []string{"advertiser.basic.read", "advertiser.report.read"},
		AccountRule: AccountRule{
			Name:    "first-advertiser-id",
			Extract: tiktokFirstAdvertiser,
		},
	},
	enums.PlatformSnapchat: {
		AuthorizeURL: "https://accounts.snapchat.com/login/oauth2/authorize",
		TokenURL:     "https://accounts.snapchat.com/login/oauth2/access_token",
		Scopes:       []string{"snapchat-marketing-api"},
		AuthStyle:    AuthStyleBasic,
		AccountRule: AccountRule{
			Name:    "organization-id",
			Extract: snapchatOrganization,
		},
	},
}

// EndpointsFor returns the OAuth surface for a platform.
func EndpointsFor(platform enums.Platform) (Endpoints, error) {
	ep, ok := platformEndpoints[platform]
	if !ok {
		return Endpoints{}, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unsupported platform %q", platform))
	}
	return ep, nil
}

// NormalizeShopDomain strips the .myshopify.com suffix and whitespace so the
// same shop always resolves to the same identity.
func NormalizeShopDomain(shop string) string {
	shop = strings.TrimSpace(shop)
	shop = strings.TrimSuffix(shop, ".myshopify.com")
	return strings.TrimSpace(shop)
}

func resolveShopURL(templated, shopDomain string) string {
	return strings.ReplaceAll(templated, "{shop}", NormalizeShopDomain(shopDomain))
}

func noAccountFound(rule string) error {
	return pkgerrors.New(pkgerrors.CodeProvider, fmt.Sprintf("no account found by rule %q", rule))
}

func sallaMerchant(payload map[string]any, _ string) (Account, error) {
	user, _ := payload["user"].(map[string]any)
	merchant, _ := user["merchant"].(map[string]any)
	id := stringify(merchant["id"])
	if id == "" {
		return Account{}, noAccountFound("merchant-from-token")
	}
	name := stringify(merchant["name"])
	if name == "" {
		name = "Salla Store"
	}
	return Account{ID: id, Name: name}, nil
}

func shopifyShop(payload map[string]any, shopDomain string) (Account, error) {
	id := NormalizeShopDomain(stringify(payload["shop"]))
	if id == "" {
		id = NormalizeShopDomain(shopDomain)
	}
	if id == "" {
		return Account{}, noAccountFound("shop-domain")
	}
	return Account{ID: id, Name: id}, nil
}

func metaFirstAdAccount(payload map[string]any, _ string) (Account, error) {
	accounts, _ := payload["ad_accounts"].([]any)
	if len(accounts) == 0 {
		return Account{}, noAccountFound("first-ad-account")
	}
	first, _ := accounts[0].(map[string]any)
	id := stringify(first["id"])
	if id == "" {
		return Account{}, noAccountFound("first-ad-account")
	}
	name := stringify(first["name"])
	if name == "" {
		name = "Meta Ads Account"
	}
	return Account{ID: id, Name: name}, nil
}

func googleCustomer(payload map[string]any, _ string) (Account, error) {
	id := stringify(payload["customer_id"])
	if id == "" {
		return Account{}, noAccountFound("customer-id")
	}
	name := stringify(payload["descriptive_name"])
	if name == "" {
		name = "Google Ads Account"
	}
	return Account{ID: id, Name: name}, nil
}

func tiktokFirstAdvertiser(payload map[string]any, _ string) (Account, error) {
	ids, _ := payload["advertiser_ids"].([]any)
	if len(ids) == 0 {
		return Account{}, noAccountFound("first-advertiser-id")
	}
	id := stringify(ids[0])
	if id == "" {
		return Account{}, noAccountFound("first-advertiser-id")
	}
	name := stringify(payload["advertiser_name"])
	if name == "" {
		name = "TikTok Ads Account"
	}
	return Account{ID: id, Name: name}, nil
}

func snapchatOrganization(payload map[string]any, _ string) (Account, error) {
	id := stringify(payload["organization_id"])
	if id == "" {
		return Account{}, noAccountFound("organization-id")
	}
	name := stringify(payload["organization_name"])
	if name == "" {
		name = "Snapchat Ads Account"
	}
	return Account{ID: id, Name: name}, nil
}

// stringify renders scalar payload values the way providers mix them:
// numbers for ids on some platforms, strings on others.
func stringify(v any) string {
	switch typed := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(typed)
	case float64:
		if typed == float64(int64(typed)) {
			return fmt.Sprintf("%d", int64(typed))
		}
		return fmt.Sprintf("%v", typed)
	default:
		return strings.TrimSpace(fmt.Sprintf("%v", typed))
	}
}
