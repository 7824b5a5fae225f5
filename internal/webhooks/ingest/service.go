package ingest

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lucalabs/luca-backend/internal/pixel"
	"github.com/lucalabs/luca-backend/pkg/db"
	"github.com/lucalabs/luca-backend/pkg/db/models"
	"github.com/lucalabs/luca-backend/pkg/enums"
	pkgerrors "github.com/lucalabs/luca-backend/pkg/errors"
	"github.com/lucalabs/luca-backend/pkg/logger"
	"github.com/lucalabs/luca-backend/pkg/metrics"
)

type tenantResolver interface {
	ResolveTenant(ctx context.Context, platform enums.Platform, accountID string) (*models.Integration, error)
}

type transactionRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type idempotencyGuard interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	Delete(ctx context.Context, eventID string) error
}

// Result reports what happened to one delivery. Accepted maps to HTTP 200:
// everything past signature verification is accepted, even when dropped.
type Result struct {
	Accepted      bool
	Stored        bool
	Duplicate     bool
	Ignored       bool
	UnknownTenant bool
	EventID       string
}

// ServiceParams wires the ingestor dependencies.
type ServiceParams struct {
	Repo    Repository
	Tenants tenantResolver
	Tx      transactionRunner
	Guard   idempotencyGuard
	Metrics *metrics.WebhookMetrics
	Logger  *logger.Logger
	Now     func() time.Time
}

// Service runs the ingestion pipeline: verify, resolve tenant, dedupe,
// normalize, persist. One delivery is one idempotent transaction.
type Service struct {
	repo    Repository
	tenants tenantResolver
	tx      transactionRunner
	guard   idempotencyGuard
	metrics *metrics.WebhookMetrics
	logg    *logger.Logger
	now     func() time.Time
}

// NewService validates dependencies and builds the ingestor.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "event repo required")
	}
	if params.Tenants == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "tenant resolver required")
	}
	if params.Tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		repo:    params.Repo,
		tenants: params.Tenants,
		tx:      params.Tx,
		guard:   params.Guard,
		metrics: params.Metrics,
		logg:    params.Logger,
		now:     now,
	}, nil
}

// Ingest processes one raw delivery through the provider's normalizer.
// A SIGNATURE_INVALID error is the only path that should produce a non-200
// response; every other outcome is an accepted Result.
func (s *Service) Ingest(ctx context.Context, normalizer Normalizer, body []byte, headers http.Header) (*Result, error) {
	provider := normalizer.Platform()
	ctx = s.withPlatform(ctx, provider)

	verified, err := normalizer.VerifySignature(body, headers)
	if err != nil {
		s.metrics.IncRejected(provider.String())
		s.warn(ctx, "webhook.signature_rejected")
		return nil, err
	}
	if !verified {
		s.warn(ctx, "webhook.signature_unverified_no_secret")
	}
	s.metrics.IncReceived(provider.String())

	event, err := normalizer.Normalize(body, headers)
	if err != nil {
		// malformed payloads are logged and dropped; the provider must not retry
		s.error(ctx, "webhook.normalize_failed", err)
		return &Result{Accepted: true, Ignored: true}, nil
	}
	if event == nil {
		return &Result{Accepted: true, Ignored: true}, nil
	}

	integration, err := s.tenants.ResolveTenant(ctx, provider, event.AccountID)
	if err != nil {
		if appErr := pkgerrors.As(err); appErr != nil && appErr.Code() == pkgerrors.CodeUnknownTenant {
			s.metrics.IncUnknownTenant(provider.String())
			s.warn(s.withField(ctx, "account_id", event.AccountID), "webhook.unknown_tenant")
			return &Result{Accepted: true, UnknownTenant: true}, nil
		}
		return nil, err
	}

	eventID := event.EventID(s.now())
	result := &Result{Accepted: true, EventID: eventID}
	ctx = s.withField(ctx, "event_id", eventID)

	if s.guard != nil {
		duplicate, guardErr := s.guard.CheckAndMark(ctx, integration.TenantID.String()+":"+eventID)
		if guardErr != nil {
			// the unique index still protects correctness without the fast path
			s.warn(ctx, "webhook.idempotency_guard_unavailable")
		} else if duplicate && event.IsOrderKind() && !s.orderUpdateNeeded(ctx, integration.TenantID, eventID, event) {
			s.metrics.IncDuplicate(provider.String())
			result.Duplicate = true
			return result, nil
		}
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		existing, err := repo.FindByTenantEvent(ctx, integration.TenantID, eventID)
		if err != nil {
			return err
		}
		if existing != nil {
			if event.IsOrderKind() && kindRank(event.Kind) > kindRank(existing.Kind) {
				applyOrderUpdate(existing, event)
				return repo.UpdateFinancialEvent(ctx, existing)
			}
			result.Duplicate = true
			return nil
		}

		row := buildFinancialEvent(integration, event, eventID)
		if err := repo.CreateFinancialEvent(ctx, row); err != nil {
			return err
		}
		result.Stored = true

		// first sighting of a purchase spawns the attribution intent
		if event.IsOrderKind() {
			return repo.CreatePixelEvent(ctx, buildAttributionIntent(integration.TenantID, event))
		}
		return nil
	})
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			// a concurrent delivery won the insert race
			s.metrics.IncDuplicate(provider.String())
			result.Duplicate = true
			return result, nil
		}
		if s.guard != nil {
			// free the marker so the provider's retry can land
			_ = s.guard.Delete(ctx, integration.TenantID.String()+":"+eventID)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist webhook event")
	}
	if result.Duplicate {
		s.metrics.IncDuplicate(provider.String())
	}
	return result, nil
}

// orderUpdateNeeded peeks at the stored row to decide whether a
// guard-deduplicated order delivery still carries a lifecycle upgrade.
func (s *Service) orderUpdateNeeded(ctx context.Context, tenantID uuid.UUID, eventID string, event *CanonicalEvent) bool {
	existing, err := s.repo.FindByTenantEvent(ctx, tenantID, eventID)
	if err != nil || existing == nil {
		return true
	}
	return kindRank(event.Kind) > kindRank(existing.Kind)
}

func buildFinancialEvent(integration *models.Integration, event *CanonicalEvent, eventID string) *models.FinancialEvent {
	integrationID := integration.ID
	row := &models.FinancialEvent{
		TenantID:       integration.TenantID,
		IntegrationID:  &integrationID,
		Platform:       event.Platform,
		EventID:        eventID,
		Kind:           event.Kind,
		OrderID:        event.OrderID,
		Currency:       event.Currency,
		ShippingAmount: event.ShippingAmount,
		TaxAmount:      event.TaxAmount,
		DiscountAmount: event.DiscountAmount,
		CustomerID:     event.CustomerID,
		CustomerEmail:  event.CustomerEmail,
		IsNewCustomer:  event.IsNewCustomer,
		LandingPage:    event.LandingPage,
		OccurredAt:     event.OccurredAt,
		Raw:            event.Raw,
	}
	if event.Kind == enums.EventKindRefundCreated && event.Refund != nil {
		refundID := event.Refund.RefundID
		row.Type = enums.FinancialEventTypeRefund
		row.Amount = event.Refund.Amount.Neg()
		row.OccurredAt = event.Refund.OccurredAt
		if refundID != "" {
			row.RefundID = &refundID
		}
		return row
	}
	row.Type = enums.FinancialEventTypeOrder
	row.Amount = event.Amount
	return row
}

func applyOrderUpdate(existing *models.FinancialEvent, event *CanonicalEvent) {
	existing.Kind = event.Kind
	existing.Amount = event.Amount
	existing.ShippingAmount = event.ShippingAmount
	existing.TaxAmount = event.TaxAmount
	existing.DiscountAmount = event.DiscountAmount
	if event.Raw != nil {
		existing.Raw = event.Raw
	}
}

func buildAttributionIntent(tenantID uuid.UUID, event *CanonicalEvent) *models.PixelEvent {
	orderID := event.OrderID
	amount := event.Amount
	row := &models.PixelEvent{
		TenantID:          tenantID,
		EventType:         enums.PixelEventTypePurchase,
		OrderID:           &orderID,
		OrderValue:        &amount,
		AttributionStatus: enums.AttributionStatusPending,
		OccurredAt:        event.OccurredAt,
	}
	if event.LandingPage != nil {
		params := pixel.ParseTrackingParams(*event.LandingPage)
		row.ClickID = params.ClickID
		row.UTMSource = params.UTMSource
		row.UTMMedium = params.UTMMedium
		row.UTMCampaign = params.UTMCampaign
		row.Platform = params.Platform
		row.LandingPage = event.LandingPage
	}
	return row
}

func (s *Service) withPlatform(ctx context.Context, platform enums.Platform) context.Context {
	if s.logg == nil {
		return ctx
	}
	return s.logg.WithPlatform(ctx, platform.String())
}

func (s *Service) withField(ctx context.Context, key string, value any) context.Context {
	if s.logg == nil {
		return ctx
	}
	return s.logg.WithField(ctx, key, value)
}

func (s *Service) warn(ctx context.Context, msg string) {
	if s.logg == nil {
		return
	}
	s.logg.Warn(ctx, msg)
}

func (s *Service) error(ctx context.Context, msg string, err error) {
	if s.logg == nil {
		return
	}
	s.logg.Error(ctx, msg, err)
}
