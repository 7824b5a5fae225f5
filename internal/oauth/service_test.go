package oauth

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/lucalabs/luca-backend/internal/integrations"
	"github.com/lucalabs/luca-backend/pkg/db/models"
	"github.com/lucalabs/luca-backend/pkg/enums"
	pkgerrors "github.com/lucalabs/luca-backend/pkg/errors"
)

func newTestService(t *testing.T, connector *stubConnector, manager *stubIntegrationManager, states *stubStateIssuer) *Service {
	t.Helper()
	service, err := NewService(ServiceParams{
		Connector:    connector,
		Integrations: manager,
		States:       states,
		Now:          func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("setup service: %v", err)
	}
	return service
}

func TestService_StartConnectMintsStateAndURL(t *testing.T) {
	connector := &stubConnector{authorizeURL: "https://provider.test/authorize?state=abc"}
	states := &stubStateIssuer{created: "abc"}
	service := newTestService(t, connector, &stubIntegrationManager{}, states)

	url, err := service.StartConnect(context.Background(), uuid.New(), uuid.New(), enums.PlatformMeta, "")
	if err != nil {
		t.Fatalf("start connect: %v", err)
	}
	if url != "https://provider.test/authorize?state=abc" {
		t.Fatalf("unexpected url %q", url)
	}
	if connector.authState != "abc" {
		t.Fatalf("minted state not passed to connector, got %q", connector.authState)
	}
}

func TestService_StartConnectShopifyRequiresShop(t *testing.T) {
	service := newTestService(t, &stubConnector{}, &stubIntegrationManager{}, &stubStateIssuer{created: "s"})

	_, err := service.StartConnect(context.Background(), uuid.New(), uuid.New(), enums.PlatformShopify, "")
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected VALIDATION_ERROR, got %v", err)
	}
}

func TestService_CompleteCallbackPersistsIntegration(t *testing.T) {
	tenantID := uuid.New()
	connector := &stubConnector{
		tokens:  &TokenResponse{AccessToken: "tok", RefreshToken: "ref", ExpiresIn: 3600},
		account: Account{ID: "acct_1", Name: "Ads Account"},
	}
	manager := &stubIntegrationManager{
		connected: &models.Integration{ID: uuid.New(), TenantID: tenantID, Platform: enums.PlatformSnapchat},
	}
	states := &stubStateIssuer{
		row: &models.OAuthState{
			State:    "state-1",
			TenantID: tenantID,
			UserID:   uuid.New(),
			Platform: enums.PlatformSnapchat,
		},
	}
	service := newTestService(t, connector, manager, states)

	integration, err := service.CompleteCallback(context.Background(), enums.PlatformSnapchat, "code-1", "state-1", "")
	if err != nil {
		t.Fatalf("complete callback: %v", err)
	}
	if integration.TenantID != tenantID {
		t.Fatalf("integration bound to wrong tenant")
	}
	if states.consumed != "state-1" {
		t.Fatalf("state not consumed")
	}
	if connector.exchangedCode != "code-1" {
		t.Fatalf("code not exchanged")
	}

	input := manager.connectInput
	if input.TenantID != tenantID {
		t.Fatalf("connect input carries wrong tenant")
	}
	if input.AccountID != "acct_1" {
		t.Fatalf("connect input carries wrong account, got %q", input.AccountID)
	}
	if input.Tokens.AccessToken != "tok" {
		t.Fatalf("access token not forwarded")
	}
	if input.Tokens.RefreshToken == nil || *input.Tokens.RefreshToken != "ref" {
		t.Fatalf("refresh token not forwarded")
	}
	if input.Tokens.ExpiresAt == nil {
		t.Fatalf("expiry not derived from expires_in")
	}
}

func TestService_CompleteCallbackRejectsPlatformMismatch(t *testing.T) {
	connector := &stubConnector{tokens: &TokenResponse{AccessToken: "tok"}}
	states := &stubStateIssuer{
		row: &models.OAuthState{State: "s", TenantID: uuid.New(), Platform: enums.PlatformMeta},
	}
	service := newTestService(t, connector, &stubIntegrationManager{}, states)

	_, err := service.CompleteCallback(context.Background(), enums.PlatformTikTok, "code", "s", "")
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected VALIDATION_ERROR, got %v", err)
	}
	if connector.exchangedCode != "" {
		t.Fatalf("code must not be exchanged after a mismatched state")
	}
}

func TestService_CompleteCallbackUnknownState(t *testing.T) {
	connector := &stubConnector{}
	states := &stubStateIssuer{consumeErr: pkgerrors.New(pkgerrors.CodeNotFound, "oauth state not found")}
	service := newTestService(t, connector, &stubIntegrationManager{}, states)

	_, err := service.CompleteCallback(context.Background(), enums.PlatformMeta, "code", "missing", "")
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
	if connector.exchangedCode != "" {
		t.Fatalf("code must not be exchanged for an unknown state")
	}
}

func TestService_RefreshTokensRotatesAndKeepsOldRefresh(t *testing.T) {
	oldRefresh := "old-refresh"
	connector := &stubConnector{
		refreshed: &TokenResponse{AccessToken: "fresh", ExpiresIn: 1800},
	}
	manager := &stubIntegrationManager{
		credentials: integrations.TokenSet{AccessToken: "stale", RefreshToken: &oldRefresh},
	}
	service := newTestService(t, connector, manager, &stubStateIssuer{})

	integration := &models.Integration{ID: uuid.New(), Platform: enums.PlatformGoogle}
	rotated, err := service.RefreshTokens(context.Background(), integration)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if rotated.AccessToken != "fresh" {
		t.Fatalf("unexpected access token %q", rotated.AccessToken)
	}
	if rotated.RefreshToken == nil || *rotated.RefreshToken != "old-refresh" {
		t.Fatalf("expected previous refresh token to be kept")
	}
	if manager.rotatedWith == nil || manager.rotatedWith.AccessToken != "fresh" {
		t.Fatalf("rotation not persisted")
	}
}

func TestService_RefreshTokensFailureMarksNeedsReauth(t *testing.T) {
	oldRefresh := "old-refresh"
	connector := &stubConnector{
		refreshErr: pkgerrors.New(pkgerrors.CodeProvider, "refresh rejected"),
	}
	manager := &stubIntegrationManager{
		credentials: integrations.TokenSet{AccessToken: "stale", RefreshToken: &oldRefresh},
	}
	service := newTestService(t, connector, manager, &stubStateIssuer{})

	integration := &models.Integration{ID: uuid.New(), Platform: enums.PlatformMeta}
	_, err := service.RefreshTokens(context.Background(), integration)
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeProvider {
		t.Fatalf("expected PROVIDER_ERROR, got %v", err)
	}
	if manager.needsReauth != integration.ID {
		t.Fatalf("integration not flagged for reauth")
	}
}

func TestService_RefreshTokensWithoutRefreshTokenMarksNeedsReauth(t *testing.T) {
	manager := &stubIntegrationManager{
		credentials: integrations.TokenSet{AccessToken: "stale"},
	}
	service := newTestService(t, &stubConnector{}, manager, &stubStateIssuer{})

	integration := &models.Integration{ID: uuid.New(), Platform: enums.PlatformSalla}
	_, err := service.RefreshTokens(context.Background(), integration)
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeUnauthorized {
		t.Fatalf("expected UNAUTHORIZED, got %v", err)
	}
	if manager.needsReauth != integration.ID {
		t.Fatalf("integration not flagged for reauth")
	}
}

func TestService_RefreshTokensCollapsesConcurrentCallers(t *testing.T) {
	oldRefresh := "old-refresh"
	connector := &stubConnector{
		refreshed:    &TokenResponse{AccessToken: "fresh", ExpiresIn: 1800},
		refreshDelay: 30 * time.Millisecond,
	}
	manager := &stubIntegrationManager{
		credentials: integrations.TokenSet{AccessToken: "stale", RefreshToken: &oldRefresh},
	}
	service := newTestService(t, connector, manager, &stubStateIssuer{})

	integration := &models.Integration{ID: uuid.New(), Platform: enums.PlatformTikTok}

	const callers = 6
	var wg sync.WaitGroup
	results := make([]integrations.TokenSet, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			results[idx], errs[idx] = service.RefreshTokens(context.Background(), integration)
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d failed: %v", i, errs[i])
		}
		if results[i].AccessToken != "fresh" {
			t.Fatalf("caller %d got stale token %q", i, results[i].AccessToken)
		}
	}
	if got := connector.refreshCalls.Load(); got != 1 {
		t.Fatalf("expected a single provider refresh, got %d", got)
	}
}

type stubConnector struct {
	authorizeURL string
	authState    string

	tokens        *TokenResponse
	exchangedCode string

	refreshed    *TokenResponse
	refreshErr   error
	refreshDelay time.Duration
	refreshCalls atomic.Int64

	account Account
}

func (s *stubConnector) BuildAuthorizationURL(platform enums.Platform, state, shopDomain string) (string, error) {
	s.authState = state
	return s.authorizeURL, nil
}

func (s *stubConnector) ExchangeCode(ctx context.Context, platform enums.Platform, code, shopDomain string) (*TokenResponse, error) {
	s.exchangedCode = code
	return s.tokens, nil
}

func (s *stubConnector) Refresh(ctx context.Context, platform enums.Platform, refreshToken string) (*TokenResponse, error) {
	s.refreshCalls.Add(1)
	if s.refreshDelay > 0 {
		time.Sleep(s.refreshDelay)
	}
	if s.refreshErr != nil {
		return nil, s.refreshErr
	}
	return s.refreshed, nil
}

func (s *stubConnector) AccountIdentity(platform enums.Platform, tokens *TokenResponse, shopDomain string) (Account, error) {
	return s.account, nil
}

type stubIntegrationManager struct {
	connected    *models.Integration
	connectInput integrations.ConnectInput

	credentials integrations.TokenSet
	rotatedWith *integrations.TokenSet
	needsReauth uuid.UUID
}

func (s *stubIntegrationManager) Connect(ctx context.Context, input integrations.ConnectInput) (*models.Integration, error) {
	s.connectInput = input
	return s.connected, nil
}

func (s *stubIntegrationManager) Credentials(ctx context.Context, integration *models.Integration) (integrations.TokenSet, error) {
	return s.credentials, nil
}

func (s *stubIntegrationManager) RotateTokens(ctx context.Context, integration *models.Integration, tokens integrations.TokenSet) error {
	s.rotatedWith = &tokens
	return nil
}

func (s *stubIntegrationManager) MarkNeedsReauth(ctx context.Context, id uuid.UUID) error {
	s.needsReauth = id
	return nil
}

type stubStateIssuer struct {
	created    string
	row        *models.OAuthState
	consumed   string
	consumeErr error
}

func (s *stubStateIssuer) Create(ctx context.Context, tenantID, userID uuid.UUID, platform enums.Platform, shopDomain *string) (string, error) {
	return s.created, nil
}

func (s *stubStateIssuer) Consume(ctx context.Context, state string) (*models.OAuthState, error) {
	if s.consumeErr != nil {
		return nil, s.consumeErr
	}
	s.consumed = state
	return s.row, nil
}
