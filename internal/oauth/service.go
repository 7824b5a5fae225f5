package oauth

import (
	"context"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/lucalabs/luca-backend/internal/integrations"
	"github.com/lucalabs/luca-backend/pkg/db/models"
	"github.com/lucalabs/luca-backend/pkg/enums"
	pkgerrors "github.com/lucalabs/luca-backend/pkg/errors"
	"github.com/lucalabs/luca-backend/pkg/logger"
)

type connectorClient interface {
	BuildAuthorizationURL(platform enums.Platform, state, shopDomain string) (string, error)
	ExchangeCode(ctx context.Context, platform enums.Platform, code, shopDomain string) (*TokenResponse, error)
	Refresh(ctx context.Context, platform enums.Platform, refreshToken string) (*TokenResponse, error)
	AccountIdentity(platform enums.Platform, tokens *TokenResponse, shopDomain string) (Account, error)
}

type integrationManager interface {
	Connect(ctx context.Context, input integrations.ConnectInput) (*models.Integration, error)
	Credentials(ctx context.Context, integration *models.Integration) (integrations.TokenSet, error)
	RotateTokens(ctx context.Context, integration *models.Integration, tokens integrations.TokenSet) error
	MarkNeedsReauth(ctx context.Context, id uuid.UUID) error
}

type stateIssuer interface {
	Create(ctx context.Context, tenantID, userID uuid.UUID, platform enums.Platform, shopDomain *string) (string, error)
	Consume(ctx context.Context, state string) (*models.OAuthState, error)
}

// ServiceParams wires the OAuth orchestration dependencies.
type ServiceParams struct {
	Connector    connectorClient
	Integrations integrationManager
	States       stateIssuer
	Logger       *logger.Logger
	Now          func() time.Time
}

// Service drives the connect flow end to end and serializes token refreshes
// per integration.
type Service struct {
	connector    connectorClient
	integrations integrationManager
	states       stateIssuer
	logg         *logger.Logger
	now          func() time.Time
	refreshGroup singleflight.Group
}

// NewService validates dependencies and builds the OAuth service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Connector == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "connector required")
	}
	if params.Integrations == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "integrations service required")
	}
	if params.States == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "state store required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		connector:    params.Connector,
		integrations: params.Integrations,
		states:       params.States,
		logg:         params.Logger,
		now:          now,
	}, nil
}

// StartConnect mints a state and returns the provider authorization URL the
// frontend should redirect the user to.
func (s *Service) StartConnect(ctx context.Context, tenantID, userID uuid.UUID, platform enums.Platform, shopDomain string) (string, error) {
	if !platform.IsValid() {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "invalid platform")
	}

	var shopPtr *string
	if platform == enums.PlatformShopify {
		normalized := NormalizeShopDomain(shopDomain)
		if normalized == "" {
			return "", pkgerrors.New(pkgerrors.CodeValidation, "shop domain is required")
		}
		shopPtr = &normalized
		shopDomain = normalized
	}

	state, err := s.states.Create(ctx, tenantID, userID, platform, shopPtr)
	if err != nil {
		return "", err
	}
	return s.connector.BuildAuthorizationURL(platform, state, shopDomain)
}

// CompleteCallback redeems the state, exchanges the code, discovers the
// provider account, and persists the integration. Token material never leaves
// this call except encrypted inside the integration row.
func (s *Service) CompleteCallback(ctx context.Context, platform enums.Platform, code, state, shopDomain string) (*models.Integration, error) {
	if !platform.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid platform")
	}

	stateRow, err := s.states.Consume(ctx, state)
	if err != nil {
		return nil, err
	}
	if stateRow.Platform != platform {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "state was issued for a different platform")
	}
	if shopDomain == "" && stateRow.ShopDomain != nil {
		shopDomain = *stateRow.ShopDomain
	}

	tokens, err := s.connector.ExchangeCode(ctx, platform, code, shopDomain)
	if err != nil {
		return nil, err
	}

	account, err := s.connector.AccountIdentity(platform, tokens, shopDomain)
	if err != nil {
		return nil, err
	}

	var refreshPtr *string
	if tokens.RefreshToken != "" {
		refreshPtr = &tokens.RefreshToken
	}
	var shopPtr *string
	if platform == enums.PlatformShopify {
		normalized := NormalizeShopDomain(shopDomain)
		shopPtr = &normalized
	}
	accountName := account.Name

	integration, err := s.integrations.Connect(ctx, integrations.ConnectInput{
		TenantID:    stateRow.TenantID,
		Platform:    platform,
		AccountID:   account.ID,
		AccountName: &accountName,
		ShopDomain:  shopPtr,
		Tokens: integrations.TokenSet{
			AccessToken:  tokens.AccessToken,
			RefreshToken: refreshPtr,
			ExpiresAt:    tokens.ExpiresAt(s.now()),
		},
	})
	if err != nil {
		return nil, err
	}

	if s.logg != nil {
		lctx := s.logg.WithFields(ctx, map[string]any{
			"tenant_id": stateRow.TenantID.String(),
			"platform":  platform.String(),
			"account":   account.ID,
			"rule":      accountRuleName(platform),
		})
		s.logg.Info(lctx, "oauth.connected")
	}
	return integration, nil
}

// RefreshTokens refreshes an integration's credentials. Concurrent callers
// for the same integration collapse into one provider request; everyone gets
// the winner's result. A rejected refresh flags the integration for reauth.
func (s *Service) RefreshTokens(ctx context.Context, integration *models.Integration) (integrations.TokenSet, error) {
	if integration == nil {
		return integrations.TokenSet{}, pkgerrors.New(pkgerrors.CodeValidation, "integration is required")
	}

	result, err, _ := s.refreshGroup.Do(integration.ID.String(), func() (any, error) {
		current, err := s.integrations.Credentials(ctx, integration)
		if err != nil {
			return nil, err
		}
		if current.RefreshToken == nil || *current.RefreshToken == "" {
			_ = s.integrations.MarkNeedsReauth(ctx, integration.ID)
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "integration has no refresh token")
		}

		fresh, err := s.connector.Refresh(ctx, integration.Platform, *current.RefreshToken)
		if err != nil {
			_ = s.integrations.MarkNeedsReauth(ctx, integration.ID)
			return nil, err
		}

		rotated := integrations.TokenSet{
			AccessToken: fresh.AccessToken,
			ExpiresAt:   fresh.ExpiresAt(s.now()),
		}
		if fresh.RefreshToken != "" {
			rotated.RefreshToken = &fresh.RefreshToken
		} else {
			rotated.RefreshToken = current.RefreshToken
		}

		if err := s.integrations.RotateTokens(ctx, integration, rotated); err != nil {
			return nil, err
		}
		return rotated, nil
	})
	if err != nil {
		return integrations.TokenSet{}, err
	}
	return result.(integrations.TokenSet), nil
}

func accountRuleName(platform enums.Platform) string {
	ep, err := EndpointsFor(platform)
	if err != nil {
		return ""
	}
	return ep.AccountRule.Name
}
