package integrations

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lucalabs/luca-backend/pkg/db/models"
	"github.com/lucalabs/luca-backend/pkg/enums"
	pkgerrors "github.com/lucalabs/luca-backend/pkg/errors"
)

type integrationsRepository interface {
	Create(ctx context.Context, integration *models.Integration) (*models.Integration, error)
	Update(ctx context.Context, integration *models.Integration) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Integration, error)
	FindByTenantAndPlatform(ctx context.Context, tenantID uuid.UUID, platform enums.Platform) (*models.Integration, error)
	FindConnectedByAccount(ctx context.Context, platform enums.Platform, accountID string) (*models.Integration, error)
	ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]models.Integration, error)
	UpdateTokens(ctx context.Context, id uuid.UUID, accessToken string, refreshToken *string, expiresAt *time.Time) error
	SetStatus(ctx context.Context, id uuid.UUID, status enums.IntegrationStatus, at time.Time) error
}

type credentialVault interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// TokenSet is the plaintext credential material produced by an OAuth exchange.
type TokenSet struct {
	AccessToken  string
	RefreshToken *string
	ExpiresAt    *time.Time
}

// ConnectInput captures everything needed to persist a successful callback.
type ConnectInput struct {
	TenantID    uuid.UUID
	Platform    enums.Platform
	AccountID   string
	AccountName *string
	ShopDomain  *string
	Scopes      *string
	Tokens      TokenSet
}

// ServiceParams wires the integration service dependencies.
type ServiceParams struct {
	Repo  integrationsRepository
	Vault credentialVault
	Now   func() time.Time
}

// Service owns the Integration lifecycle: connect, token rotation, tenant
// resolution, and soft disconnect.
type Service struct {
	repo  integrationsRepository
	vault credentialVault
	now   func() time.Time
}

// NewService validates dependencies and builds the integration service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "integrations repo required")
	}
	if params.Vault == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "credential vault required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Service{repo: params.Repo, vault: params.Vault, now: now}, nil
}

// Connect persists a successful OAuth callback. Tokens are encrypted before
// they touch the repository. Reconnecting an existing (tenant, platform) pair
// reuses the row so audit history survives.
func (s *Service) Connect(ctx context.Context, input ConnectInput) (*models.Integration, error) {
	if input.TenantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant identity missing")
	}
	if !input.Platform.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid platform")
	}
	if input.AccountID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "account id is required")
	}
	if input.Tokens.AccessToken == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "access token is required")
	}

	sealedAccess, err := s.vault.Encrypt(input.Tokens.AccessToken)
	if err != nil {
		return nil, err
	}
	var sealedRefresh *string
	if input.Tokens.RefreshToken != nil && *input.Tokens.RefreshToken != "" {
		sealed, err := s.vault.Encrypt(*input.Tokens.RefreshToken)
		if err != nil {
			return nil, err
		}
		sealedRefresh = &sealed
	}

	existing, err := s.repo.FindByTenantAndPlatform(ctx, input.TenantID, input.Platform)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup integration")
	}

	if existing != nil {
		existing.AccountID = input.AccountID
		existing.AccountName = input.AccountName
		existing.ShopDomain = input.ShopDomain
		existing.Scopes = input.Scopes
		existing.AccessToken = sealedAccess
		existing.RefreshToken = sealedRefresh
		existing.TokenExpires = input.Tokens.ExpiresAt
		existing.Status = enums.IntegrationStatusActive
		existing.ConnectedAt = s.now()
		existing.DisconnectedAt = nil
		if err := s.repo.Update(ctx, existing); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update integration")
		}
		return existing, nil
	}

	row := &models.Integration{
		TenantID:     input.TenantID,
		Platform:     input.Platform,
		AccountID:    input.AccountID,
		AccountName:  input.AccountName,
		ShopDomain:   input.ShopDomain,
		Scopes:       input.Scopes,
		AccessToken:  sealedAccess,
		RefreshToken: sealedRefresh,
		TokenExpires: input.Tokens.ExpiresAt,
		Status:       enums.IntegrationStatusActive,
		ConnectedAt:  s.now(),
	}
	created, err := s.repo.Create(ctx, row)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create integration")
	}
	return created, nil
}

// Disconnect soft-disconnects the tenant's platform connection. The row and
// its history stay behind.
func (s *Service) Disconnect(ctx context.Context, tenantID uuid.UUID, platform enums.Platform) error {
	if tenantID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "tenant identity missing")
	}
	if !platform.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid platform")
	}

	row, err := s.repo.FindByTenantAndPlatform(ctx, tenantID, platform)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "integration not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup integration")
	}
	if row.Status == enums.IntegrationStatusDisconnected {
		return nil
	}
	if err := s.repo.SetStatus(ctx, row.ID, enums.IntegrationStatusDisconnected, s.now()); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "disconnect integration")
	}
	return nil
}

// List returns the tenant's integrations.
func (s *Service) List(ctx context.Context, tenantID uuid.UUID) ([]models.Integration, error) {
	if tenantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant identity missing")
	}
	rows, err := s.repo.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list integrations")
	}
	return rows, nil
}

// ResolveTenant maps (platform, provider account id) to the owning
// integration. Webhook ingestion uses this as the tenant boundary check.
func (s *Service) ResolveTenant(ctx context.Context, platform enums.Platform, accountID string) (*models.Integration, error) {
	if accountID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "account id is required")
	}
	row, err := s.repo.FindConnectedByAccount(ctx, platform, accountID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeUnknownTenant, "no integration owns this account")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve tenant")
	}
	return row, nil
}

// Credentials decrypts the integration's token material. A decryption failure
// marks the integration as needing reconnection and surfaces CRYPTO_ERROR.
func (s *Service) Credentials(ctx context.Context, integration *models.Integration) (TokenSet, error) {
	if integration == nil {
		return TokenSet{}, pkgerrors.New(pkgerrors.CodeValidation, "integration is required")
	}

	access, err := s.vault.Decrypt(integration.AccessToken)
	if err != nil {
		_ = s.repo.SetStatus(ctx, integration.ID, enums.IntegrationStatusNeedsReauth, s.now())
		return TokenSet{}, err
	}

	out := TokenSet{AccessToken: access, ExpiresAt: integration.TokenExpires}
	if integration.RefreshToken != nil {
		refresh, err := s.vault.Decrypt(*integration.RefreshToken)
		if err != nil {
			_ = s.repo.SetStatus(ctx, integration.ID, enums.IntegrationStatusNeedsReauth, s.now())
			return TokenSet{}, err
		}
		out.RefreshToken = &refresh
	}
	return out, nil
}

// RotateTokens encrypts and stores a freshly refreshed token set. When the
// provider omits a new refresh token the previous one is kept.
func (s *Service) RotateTokens(ctx context.Context, integration *models.Integration, tokens TokenSet) error {
	if integration == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "integration is required")
	}
	if tokens.AccessToken == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "access token is required")
	}

	sealedAccess, err := s.vault.Encrypt(tokens.AccessToken)
	if err != nil {
		return err
	}
	sealedRefresh := integration.RefreshToken
	if tokens.RefreshToken != nil && *tokens.RefreshToken != "" {
		sealed, err := s.vault.Encrypt(*tokens.RefreshToken)
		if err != nil {
			return err
		}
		sealedRefresh = &sealed
	}

	if err := s.repo.UpdateTokens(ctx, integration.ID, sealedAccess, sealedRefresh, tokens.ExpiresAt); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rotate tokens")
	}
	integration.AccessToken = sealedAccess
	integration.RefreshToken = sealedRefresh
	integration.TokenExpires = tokens.ExpiresAt
	integration.Status = enums.IntegrationStatusActive
	return nil
}

// MarkNeedsReauth flags an integration whose refresh was rejected upstream.
func (s *Service) MarkNeedsReauth(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "integration id is required")
	}
	if err := s.repo.SetStatus(ctx, id, enums.IntegrationStatusNeedsReauth, s.now()); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark needs reauth")
	}
	return nil
}
