package pixel

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/lucalabs/luca-backend/pkg/db"
	"github.com/lucalabs/luca-backend/pkg/db/models"
	"github.com/lucalabs/luca-backend/pkg/enums"
	pkgerrors "github.com/lucalabs/luca-backend/pkg/errors"
)

const keyPrefix = "luca_pk_"

type pixelRepository interface {
	CreateClick(ctx context.Context, click *models.ClickRecord) (*models.ClickRecord, error)
	FindClickByPlatformClickID(ctx context.Context, tenantID uuid.UUID, platform string, clickID string) (*models.ClickRecord, error)
	CreateEvent(ctx context.Context, event *models.PixelEvent) (*models.PixelEvent, error)
	ListEvents(ctx context.Context, tenantID uuid.UUID, from, to time.Time, limit int) ([]models.PixelEvent, error)
	CreateKey(ctx context.Context, key *models.PixelKey) (*models.PixelKey, error)
	FindActiveKeyByHash(ctx context.Context, keyHash string) (*models.PixelKey, error)
	TouchKey(ctx context.Context, id uuid.UUID, at time.Time) error
	RevokeKey(ctx context.Context, tenantID, id uuid.UUID, at time.Time) error
}

// ClickInput is one touchpoint reported by the tracking pixel.
type ClickInput struct {
	TenantID    uuid.UUID
	SessionID   string
	LandingPage string
	ReferrerURL string
	OccurredAt  *time.Time
}

// EventInput is one pixel event. Purchases must carry an order id.
type EventInput struct {
	TenantID    uuid.UUID
	EventType   enums.PixelEventType
	SessionID   *string
	OrderID     *string
	OrderValue  *decimal.Decimal
	LandingPage string
	ReferrerURL string
	OccurredAt  *time.Time
}

// ServiceParams wires the pixel service dependencies.
type ServiceParams struct {
	Repo pixelRepository
	Now  func() time.Time
}

// Service captures first-party clicks and pixel events and manages the API
// keys the pixel authenticates with.
type Service struct {
	repo pixelRepository
	now  func() time.Time
}

// NewService validates dependencies and builds the pixel service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "pixel repo required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Service{repo: params.Repo, now: now}, nil
}

// IssueKey mints a pixel API key for the tenant. The plaintext is returned
// exactly once; only its SHA-256 is stored.
func (s *Service) IssueKey(ctx context.Context, tenantID uuid.UUID, name *string) (string, *models.PixelKey, error) {
	if tenantID == uuid.Nil {
		return "", nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant identity missing")
	}

	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate pixel key")
	}
	plaintext := keyPrefix + base64.RawURLEncoding.EncodeToString(buf)

	row := &models.PixelKey{
		TenantID: tenantID,
		KeyHash:  hashKey(plaintext),
		Name:     name,
	}
	created, err := s.repo.CreateKey(ctx, row)
	if err != nil {
		return "", nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist pixel key")
	}
	return plaintext, created, nil
}

// Authenticate resolves a raw pixel key to its tenant and stamps last use.
// Unknown and revoked keys are indistinguishable to the caller.
func (s *Service) Authenticate(ctx context.Context, rawKey string) (*models.PixelKey, error) {
	if rawKey == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "pixel key required")
	}
	row, err := s.repo.FindActiveKeyByHash(ctx, hashKey(rawKey))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid pixel key")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup pixel key")
	}
	// best effort, a failed stamp never blocks ingestion
	_ = s.repo.TouchKey(ctx, row.ID, s.now())
	return row, nil
}

// RevokeKey deactivates a pixel key. Already-revoked keys are left untouched.
func (s *Service) RevokeKey(ctx context.Context, tenantID, id uuid.UUID) error {
	if tenantID == uuid.Nil || id == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "tenant and key id are required")
	}
	if err := s.repo.RevokeKey(ctx, tenantID, id, s.now()); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "revoke pixel key")
	}
	return nil
}

// CaptureClick records an ad touchpoint. UTM fields and the platform click id
// are parsed off the landing page. Re-firing the pixel for the same
// (platform, click id) converges to the original record.
func (s *Service) CaptureClick(ctx context.Context, input ClickInput) (*models.ClickRecord, error) {
	if input.TenantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant identity missing")
	}
	if input.SessionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}

	params := ParseTrackingParams(input.LandingPage)
	occurredAt := s.now()
	if input.OccurredAt != nil {
		occurredAt = *input.OccurredAt
	}

	row := &models.ClickRecord{
		TenantID:       input.TenantID,
		Platform:       params.Platform,
		ClickID:        params.ClickID,
		ClickIDParam:   params.ClickIDParam,
		SessionID:      input.SessionID,
		LandingPage:    optional(input.LandingPage),
		ReferrerURL:    optional(input.ReferrerURL),
		ReferrerDomain: ReferrerDomain(input.ReferrerURL),
		UTMSource:      params.UTMSource,
		UTMMedium:      params.UTMMedium,
		UTMCampaign:    params.UTMCampaign,
		UTMTerm:        params.UTMTerm,
		UTMContent:     params.UTMContent,
		OccurredAt:     occurredAt,
	}

	created, err := s.repo.CreateClick(ctx, row)
	if err != nil {
		if db.IsUniqueViolation(err, "") && params.Platform != nil && params.ClickID != nil {
			existing, findErr := s.repo.FindClickByPlatformClickID(ctx, input.TenantID, params.Platform.String(), *params.ClickID)
			if findErr == nil {
				return existing, nil
			}
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist click")
	}
	return created, nil
}

// CaptureEvent records a pixel event. Purchases enter the attribution pipeline
// at pending; every other event type stays at none.
func (s *Service) CaptureEvent(ctx context.Context, input EventInput) (*models.PixelEvent, error) {
	if input.TenantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant identity missing")
	}
	if !input.EventType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid event type")
	}

	status := enums.AttributionStatusNone
	if input.EventType == enums.PixelEventTypePurchase {
		if input.OrderID == nil || *input.OrderID == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "purchase events require an order id")
		}
		status = enums.AttributionStatusPending
	}

	params := ParseTrackingParams(input.LandingPage)
	occurredAt := s.now()
	if input.OccurredAt != nil {
		occurredAt = *input.OccurredAt
	}

	row := &models.PixelEvent{
		TenantID:          input.TenantID,
		EventType:         input.EventType,
		SessionID:         input.SessionID,
		ClickID:           params.ClickID,
		OrderID:           input.OrderID,
		OrderValue:        input.OrderValue,
		UTMSource:         params.UTMSource,
		UTMMedium:         params.UTMMedium,
		UTMCampaign:       params.UTMCampaign,
		ReferrerURL:       optional(input.ReferrerURL),
		ReferrerDomain:    ReferrerDomain(input.ReferrerURL),
		LandingPage:       optional(input.LandingPage),
		Platform:          params.Platform,
		AttributionStatus: status,
		OccurredAt:        occurredAt,
	}

	created, err := s.repo.CreateEvent(ctx, row)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist pixel event")
	}
	return created, nil
}

// ListEvents returns the tenant's pixel events inside [from, to).
func (s *Service) ListEvents(ctx context.Context, tenantID uuid.UUID, from, to time.Time, limit int) ([]models.PixelEvent, error) {
	if tenantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant identity missing")
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := s.repo.ListEvents(ctx, tenantID, from, to, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list pixel events")
	}
	return rows, nil
}

func hashKey(rawKey string) string {
	sum := sha256.Sum256([]byte(rawKey))
	return hex.EncodeToString(sum[:])
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
