package oauth

import (
	"testing"

	"github.com/lucalabs/luca-backend/pkg/enums"
	pkgerrors "github.com/lucalabs/luca-backend/pkg/errors"
)

func TestNormalizeShopDomain(t *testing.T) {
	cases := map[string]string{
		"acme.myshopify.com":   "acme",
		"acme":                 "acme",
		"  acme.myshopify.com": "acme",
		"":                     "",
	}
	for input, want := range cases {
		if got := NormalizeShopDomain(input); got != want {
			t.Errorf("NormalizeShopDomain(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestEndpointsForUnknownPlatform(t *testing.T) {
	if _, err := EndpointsFor(enums.Platform("myspace")); err == nil {
		t.Fatalf("expected error for unknown platform")
	}
}

func TestSallaMerchantRule(t *testing.T) {
	ep, err := EndpointsFor(enums.PlatformSalla)
	if err != nil {
		t.Fatalf("endpoints: %v", err)
	}

	account, err := ep.AccountRule.Extract(map[string]any{
		"user": map[string]any{
			"merchant": map[string]any{"id": float64(184392), "name": "Desert Goods"},
		},
	}, "")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if account.ID != "184392" {
		t.Fatalf("expected numeric id stringified, got %q", account.ID)
	}
	if account.Name != "Desert Goods" {
		t.Fatalf("unexpected name %q", account.Name)
	}
}

func TestSallaMerchantRuleMissingMerchant(t *testing.T) {
	ep, _ := EndpointsFor(enums.PlatformSalla)
	_, err := ep.AccountRule.Extract(map[string]any{"user": map[string]any{}}, "")
	assertProviderError(t, err)
}

func TestShopifyShopRuleFallsBackToShopDomain(t *testing.T) {
	ep, _ := EndpointsFor(enums.PlatformShopify)

	account, err := ep.AccountRule.Extract(map[string]any{}, "acme.myshopify.com")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if account.ID != "acme" {
		t.Fatalf("expected normalized shop id, got %q", account.ID)
	}
}

func TestMetaFirstAdAccountRule(t *testing.T) {
	ep, _ := EndpointsFor(enums.PlatformMeta)

	account, err := ep.AccountRule.Extract(map[string]any{
		"ad_accounts": []any{
			map[string]any{"id": "act_101", "name": "Primary"},
			map[string]any{"id": "act_102", "name": "Secondary"},
		},
	}, "")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if account.ID != "act_101" {
		t.Fatalf("expected first ad account, got %q", account.ID)
	}

	_, err = ep.AccountRule.Extract(map[string]any{"ad_accounts": []any{}}, "")
	assertProviderError(t, err)
}

func TestTikTokFirstAdvertiserRule(t *testing.T) {
	ep, _ := EndpointsFor(enums.PlatformTikTok)

	account, err := ep.AccountRule.Extract(map[string]any{
		"advertiser_ids":  []any{"7001", "7002"},
		"advertiser_name": "TT Shop",
	}, "")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if account.ID != "7001" || account.Name != "TT Shop" {
		t.Fatalf("unexpected account %+v", account)
	}
}

func TestSnapchatOrganizationRule(t *testing.T) {
	ep, _ := EndpointsFor(enums.PlatformSnapchat)

	account, err := ep.AccountRule.Extract(map[string]any{"organization_id": "org-9"}, "")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if account.ID != "org-9" {
		t.Fatalf("unexpected account id %q", account.ID)
	}

	_, err = ep.AccountRule.Extract(map[string]any{}, "")
	assertProviderError(t, err)
}

func TestGoogleCustomerRule(t *testing.T) {
	ep, _ := EndpointsFor(enums.PlatformGoogle)

	account, err := ep.AccountRule.Extract(map[string]any{
		"customer_id":      "123-456-7890",
		"descriptive_name": "Brand Account",
	}, "")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if account.Name != "Brand Account" {
		t.Fatalf("unexpected name %q", account.Name)
	}
}

func assertProviderError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected provider error, got nil")
	}
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeProvider {
		t.Fatalf("expected PROVIDER_ERROR, got %v", err)
	}
}
