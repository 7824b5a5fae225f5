package ingest

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/lucalabs/luca-backend/pkg/db/models"
	"github.com/lucalabs/luca-backend/pkg/enums"
	pkgerrors "github.com/lucalabs/luca-backend/pkg/errors"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestIngestor(t *testing.T, repo *stubEventRepo, tenants *stubTenantResolver, guard *stubGuard) *Service {
	t.Helper()
	var guardDep idempotencyGuard
	if guard != nil {
		guardDep = guard
	}
	service, err := NewService(ServiceParams{
		Repo:    repo,
		Tenants: tenants,
		Tx:      &stubTxRunner{},
		Guard:   guardDep,
		Now:     func() time.Time { return fixedNow },
	})
	if err != nil {
		t.Fatalf("setup service: %v", err)
	}
	return service
}

func purchaseEvent(accountID string) *CanonicalEvent {
	landing := "https://shop.test/?sccid=abc123&utm_campaign=summer"
	return &CanonicalEvent{
		Platform:        enums.PlatformSnapchat,
		Kind:            enums.EventKindOrderCreated,
		ProviderEventID: "ORD-9",
		AccountID:       accountID,
		OrderID:         "ORD-9",
		Currency:        "USD",
		Amount:          decimal.NewFromInt(500),
		LandingPage:     &landing,
		OccurredAt:      fixedNow.Add(-time.Hour),
	}
}

func TestService_IngestStoresEventAndAttributionIntent(t *testing.T) {
	tenantID := uuid.New()
	repo := &stubEventRepo{}
	tenants := &stubTenantResolver{
		integration: &models.Integration{ID: uuid.New(), TenantID: tenantID, Platform: enums.PlatformSnapchat},
	}
	service := newTestIngestor(t, repo, tenants, nil)

	result, err := service.Ingest(context.Background(), &stubNormalizer{event: purchaseEvent("acct_1")}, []byte(`{}`), http.Header{})
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if !result.Accepted || !result.Stored {
		t.Fatalf("expected stored acceptance, got %+v", result)
	}
	if result.EventID != "snapchat_ORD-9" {
		t.Fatalf("unexpected event id %q", result.EventID)
	}
	if len(repo.financialEvents) != 1 {
		t.Fatalf("expected one financial event")
	}

	stored := repo.financialEvents[0]
	if stored.TenantID != tenantID {
		t.Fatalf("event bound to wrong tenant")
	}
	if stored.Type != enums.FinancialEventTypeOrder || !stored.Amount.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("order amount must be stored positive, got %s", stored.Amount)
	}

	if len(repo.pixelEvents) != 1 {
		t.Fatalf("first order sighting must spawn an attribution intent")
	}
	intent := repo.pixelEvents[0]
	if intent.AttributionStatus != enums.AttributionStatusPending {
		t.Fatalf("intent must start pending, got %s", intent.AttributionStatus)
	}
	if intent.ClickID == nil || *intent.ClickID != "abc123" {
		t.Fatalf("click id must be parsed off the landing page")
	}
	if intent.OrderID == nil || *intent.OrderID != "ORD-9" {
		t.Fatalf("intent must reference the order")
	}
}

func TestService_IngestIdenticalDeliveryIsDuplicateSuccess(t *testing.T) {
	tenantID := uuid.New()
	repo := &stubEventRepo{}
	tenants := &stubTenantResolver{
		integration: &models.Integration{ID: uuid.New(), TenantID: tenantID, Platform: enums.PlatformSnapchat},
	}
	service := newTestIngestor(t, repo, tenants, nil)

	normalizer := &stubNormalizer{event: purchaseEvent("acct_1")}
	if _, err := service.Ingest(context.Background(), normalizer, []byte(`{}`), http.Header{}); err != nil {
		t.Fatalf("first delivery: %v", err)
	}

	result, err := service.Ingest(context.Background(), normalizer, []byte(`{}`), http.Header{})
	if err != nil {
		t.Fatalf("second delivery must succeed: %v", err)
	}
	if !result.Duplicate {
		t.Fatalf("second delivery must be a duplicate, got %+v", result)
	}
	if len(repo.financialEvents) != 1 {
		t.Fatalf("duplicates must converge to one stored event, got %d", len(repo.financialEvents))
	}
	if len(repo.pixelEvents) != 1 {
		t.Fatalf("duplicates must not spawn extra attribution intents")
	}
}

func TestService_IngestLifecycleUpgradeUpdatesInPlace(t *testing.T) {
	tenantID := uuid.New()
	repo := &stubEventRepo{}
	tenants := &stubTenantResolver{
		integration: &models.Integration{ID: uuid.New(), TenantID: tenantID, Platform: enums.PlatformSnapchat},
	}
	service := newTestIngestor(t, repo, tenants, nil)

	created := purchaseEvent("acct_1")
	if _, err := service.Ingest(context.Background(), &stubNormalizer{event: created}, []byte(`{}`), http.Header{}); err != nil {
		t.Fatalf("created delivery: %v", err)
	}

	paid := purchaseEvent("acct_1")
	paid.Kind = enums.EventKindOrderPaid
	if _, err := service.Ingest(context.Background(), &stubNormalizer{event: paid}, []byte(`{}`), http.Header{}); err != nil {
		t.Fatalf("paid delivery: %v", err)
	}

	if len(repo.financialEvents) != 1 {
		t.Fatalf("lifecycle updates must not create rows")
	}
	if repo.financialEvents[0].Kind != enums.EventKindOrderPaid {
		t.Fatalf("paid delivery must upgrade the stored kind")
	}
	if len(repo.pixelEvents) != 1 {
		t.Fatalf("lifecycle updates must not spawn extra intents")
	}
}

func TestService_IngestOutOfOrderCreatedNeverDowngrades(t *testing.T) {
	tenantID := uuid.New()
	repo := &stubEventRepo{}
	tenants := &stubTenantResolver{
		integration: &models.Integration{ID: uuid.New(), TenantID: tenantID, Platform: enums.PlatformSnapchat},
	}
	service := newTestIngestor(t, repo, tenants, nil)

	paid := purchaseEvent("acct_1")
	paid.Kind = enums.EventKindOrderPaid
	if _, err := service.Ingest(context.Background(), &stubNormalizer{event: paid}, []byte(`{}`), http.Header{}); err != nil {
		t.Fatalf("paid delivery: %v", err)
	}

	created := purchaseEvent("acct_1")
	result, err := service.Ingest(context.Background(), &stubNormalizer{event: created}, []byte(`{}`), http.Header{})
	if err != nil {
		t.Fatalf("late created delivery: %v", err)
	}
	if !result.Duplicate {
		t.Fatalf("late created delivery is a duplicate, got %+v", result)
	}
	if repo.financialEvents[0].Kind != enums.EventKindOrderPaid {
		t.Fatalf("late created delivery must not downgrade the stored kind")
	}
}

func TestService_IngestRefundStoresNegativeAmountOnRefundDate(t *testing.T) {
	tenantID := uuid.New()
	repo := &stubEventRepo{}
	tenants := &stubTenantResolver{
		integration: &models.Integration{ID: uuid.New(), TenantID: tenantID, Platform: enums.PlatformShopify},
	}
	service := newTestIngestor(t, repo, tenants, nil)

	refundDate := fixedNow.Add(-2 * time.Hour)
	event := &CanonicalEvent{
		Platform:        enums.PlatformShopify,
		Kind:            enums.EventKindRefundCreated,
		ProviderEventID: "R-1",
		AccountID:       "acme",
		OrderID:         "ORD-1",
		Currency:        "USD",
		Refund: &Refund{
			RefundID:   "R-1",
			Amount:     decimal.NewFromInt(120),
			OccurredAt: refundDate,
		},
		OccurredAt: fixedNow.Add(-30 * 24 * time.Hour),
	}

	result, err := service.Ingest(context.Background(), &stubNormalizer{event: event, platform: enums.PlatformShopify}, []byte(`{}`), http.Header{})
	if err != nil {
		t.Fatalf("ingest refund: %v", err)
	}
	if result.EventID != "shopify_refund_R-1" {
		t.Fatalf("unexpected refund event id %q", result.EventID)
	}

	stored := repo.financialEvents[0]
	if stored.Type != enums.FinancialEventTypeRefund {
		t.Fatalf("expected refund type")
	}
	if !stored.Amount.Equal(decimal.NewFromInt(-120)) {
		t.Fatalf("refund amount must be negative, got %s", stored.Amount)
	}
	if !stored.OccurredAt.Equal(refundDate) {
		t.Fatalf("refund must bucket by refund date, got %s", stored.OccurredAt)
	}
	if len(repo.pixelEvents) != 0 {
		t.Fatalf("refunds must not spawn attribution intents")
	}
}

func TestService_IngestUnknownTenantIsAcceptedAndDropped(t *testing.T) {
	repo := &stubEventRepo{}
	tenants := &stubTenantResolver{}
	service := newTestIngestor(t, repo, tenants, nil)

	result, err := service.Ingest(context.Background(), &stubNormalizer{event: purchaseEvent("nobody")}, []byte(`{}`), http.Header{})
	if err != nil {
		t.Fatalf("unknown tenant must not error: %v", err)
	}
	if !result.Accepted || !result.UnknownTenant {
		t.Fatalf("expected accepted unknown-tenant result, got %+v", result)
	}
	if len(repo.financialEvents) != 0 {
		t.Fatalf("unknown-tenant deliveries must not be processed")
	}
}

func TestService_IngestSignatureFailureRejects(t *testing.T) {
	service := newTestIngestor(t, &stubEventRepo{}, &stubTenantResolver{}, nil)

	normalizer := &stubNormalizer{
		verifyErr: pkgerrors.New(pkgerrors.CodeSignature, "signature mismatch"),
	}
	_, err := service.Ingest(context.Background(), normalizer, []byte(`{}`), http.Header{})
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeSignature {
		t.Fatalf("expected SIGNATURE_INVALID, got %v", err)
	}
}

func TestService_IngestIgnoredTopic(t *testing.T) {
	repo := &stubEventRepo{}
	service := newTestIngestor(t, repo, &stubTenantResolver{}, nil)

	result, err := service.Ingest(context.Background(), &stubNormalizer{}, []byte(`{}`), http.Header{})
	if err != nil {
		t.Fatalf("ignored topic: %v", err)
	}
	if !result.Ignored {
		t.Fatalf("expected ignored result, got %+v", result)
	}
}

func TestService_IngestGuardFastPathSkipsTransaction(t *testing.T) {
	tenantID := uuid.New()
	existing := &models.FinancialEvent{TenantID: tenantID, EventID: "snapchat_ORD-9", Kind: enums.EventKindOrderPaid}
	repo := &stubEventRepo{financialEvents: []*models.FinancialEvent{existing}}
	tenants := &stubTenantResolver{
		integration: &models.Integration{ID: uuid.New(), TenantID: tenantID, Platform: enums.PlatformSnapchat},
	}
	guard := &stubGuard{duplicate: true}
	service := newTestIngestor(t, repo, tenants, guard)

	result, err := service.Ingest(context.Background(), &stubNormalizer{event: purchaseEvent("acct_1")}, []byte(`{}`), http.Header{})
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if !result.Duplicate {
		t.Fatalf("guard hit must short-circuit as duplicate")
	}
	if len(repo.financialEvents) != 1 {
		t.Fatalf("guard hit must not write")
	}
}

type stubNormalizer struct {
	platform  enums.Platform
	event     *CanonicalEvent
	verifyErr error
}

func (s *stubNormalizer) Platform() enums.Platform {
	if s.platform != "" {
		return s.platform
	}
	return enums.PlatformSnapchat
}

func (s *stubNormalizer) VerifySignature(body []byte, headers http.Header) (bool, error) {
	if s.verifyErr != nil {
		return false, s.verifyErr
	}
	return true, nil
}

func (s *stubNormalizer) Normalize(body []byte, headers http.Header) (*CanonicalEvent, error) {
	return s.event, nil
}

type stubTenantResolver struct {
	integration *models.Integration
}

func (s *stubTenantResolver) ResolveTenant(ctx context.Context, platform enums.Platform, accountID string) (*models.Integration, error) {
	if s.integration == nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnknownTenant, "no integration owns this account")
	}
	return s.integration, nil
}

type stubTxRunner struct{}

func (s *stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type stubGuard struct {
	duplicate bool
	deleted   []string
}

func (s *stubGuard) CheckAndMark(ctx context.Context, eventID string) (bool, error) {
	return s.duplicate, nil
}

func (s *stubGuard) Delete(ctx context.Context, eventID string) error {
	s.deleted = append(s.deleted, eventID)
	return nil
}

type stubEventRepo struct {
	financialEvents []*models.FinancialEvent
	pixelEvents     []*models.PixelEvent
}

func (s *stubEventRepo) WithTx(tx *gorm.DB) Repository {
	return s
}

func (s *stubEventRepo) FindByTenantEvent(ctx context.Context, tenantID uuid.UUID, eventID string) (*models.FinancialEvent, error) {
	for _, event := range s.financialEvents {
		if event.TenantID == tenantID && event.EventID == eventID {
			return event, nil
		}
	}
	return nil, nil
}

func (s *stubEventRepo) CreateFinancialEvent(ctx context.Context, event *models.FinancialEvent) error {
	s.financialEvents = append(s.financialEvents, event)
	return nil
}

func (s *stubEventRepo) UpdateFinancialEvent(ctx context.Context, event *models.FinancialEvent) error {
	for i, existing := range s.financialEvents {
		if existing.TenantID == event.TenantID && existing.EventID == event.EventID {
			s.financialEvents[i] = event
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (s *stubEventRepo) CreatePixelEvent(ctx context.Context, event *models.PixelEvent) error {
	s.pixelEvents = append(s.pixelEvents, event)
	return nil
}
