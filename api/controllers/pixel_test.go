package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lucalabs/luca-backend/api/middleware"
	"github.com/lucalabs/luca-backend/internal/pixel"
	"github.com/lucalabs/luca-backend/pkg/db/models"
	"github.com/lucalabs/luca-backend/pkg/enums"
	pkgerrors "github.com/lucalabs/luca-backend/pkg/errors"
)

type stubPixelService struct {
	key       *models.PixelKey
	authErr   error
	click     *models.ClickRecord
	event     *models.PixelEvent
	plaintext string
	issued    *models.PixelKey
	err       error

	events []models.PixelEvent

	gotRawKey string
	gotClick  pixel.ClickInput
	gotEvent  pixel.EventInput
	revokedID uuid.UUID
	gotFrom   time.Time
	gotTo     time.Time
	gotLimit  int
}

func (s *stubPixelService) Authenticate(_ context.Context, rawKey string) (*models.PixelKey, error) {
	s.gotRawKey = rawKey
	return s.key, s.authErr
}

func (s *stubPixelService) CaptureClick(_ context.Context, input pixel.ClickInput) (*models.ClickRecord, error) {
	s.gotClick = input
	return s.click, s.err
}

func (s *stubPixelService) CaptureEvent(_ context.Context, input pixel.EventInput) (*models.PixelEvent, error) {
	s.gotEvent = input
	return s.event, s.err
}

func (s *stubPixelService) IssueKey(_ context.Context, _ uuid.UUID, _ *string) (string, *models.PixelKey, error) {
	return s.plaintext, s.issued, s.err
}

func (s *stubPixelService) RevokeKey(_ context.Context, _, id uuid.UUID) error {
	s.revokedID = id
	return s.err
}

func (s *stubPixelService) ListEvents(_ context.Context, _ uuid.UUID, from, to time.Time, limit int) ([]models.PixelEvent, error) {
	s.gotFrom = from
	s.gotTo = to
	s.gotLimit = limit
	return s.events, s.err
}

func TestPixelCaptureStoresClick(t *testing.T) {
	tenantID := uuid.New()
	service := &stubPixelService{
		key:   &models.PixelKey{ID: uuid.New(), TenantID: tenantID},
		click: &models.ClickRecord{ID: uuid.New()},
	}
	handler := PixelCapture(service, nil)

	body := `{"session_id":"sess-1","landing_page":"https://shop.example.com/?utm_source=meta","referrer_url":"https://facebook.com"}`
	req := httptest.NewRequest(http.MethodPost, "/pixel/click", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(pixelKeyHeader, "pk_live_abc")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d", rec.Code)
	}
	if service.gotRawKey != "pk_live_abc" {
		t.Fatalf("raw key = %q", service.gotRawKey)
	}
	if service.gotClick.TenantID != tenantID {
		t.Fatalf("tenant = %s want %s", service.gotClick.TenantID, tenantID)
	}
	if service.gotClick.SessionID != "sess-1" {
		t.Fatalf("session = %q", service.gotClick.SessionID)
	}
}

func TestPixelCaptureRejectsBadKey(t *testing.T) {
	service := &stubPixelService{authErr: pkgerrors.New(pkgerrors.CodeUnauthorized, "unknown pixel key")}
	handler := PixelCapture(service, nil)

	req := httptest.NewRequest(http.MethodPost, "/pixel/click", strings.NewReader(`{}`))
	req.Header.Set(pixelKeyHeader, "bogus")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}
}

func TestPixelEventParsesOrderValue(t *testing.T) {
	tenantID := uuid.New()
	service := &stubPixelService{
		key: &models.PixelKey{TenantID: tenantID},
		event: &models.PixelEvent{
			ID:                uuid.New(),
			AttributionStatus: enums.AttributionStatusPending,
		},
	}
	handler := PixelEvent(service, nil)

	body := `{"event_type":"purchase","session_id":"sess-1","order_id":"1001","order_value":"149.99"}`
	req := httptest.NewRequest(http.MethodPost, "/pixel/event", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(pixelKeyHeader, "pk_live_abc")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", rec.Code, rec.Body.String())
	}
	if service.gotEvent.EventType != enums.PixelEventTypePurchase {
		t.Fatalf("event type = %s", service.gotEvent.EventType)
	}
	if service.gotEvent.OrderValue == nil || service.gotEvent.OrderValue.String() != "149.99" {
		t.Fatalf("order value = %v", service.gotEvent.OrderValue)
	}

	var envelope struct {
		Data map[string]any `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data["attribution_status"] != "pending" {
		t.Fatalf("data = %v", envelope.Data)
	}
}

func TestPixelEventRejectsUnknownType(t *testing.T) {
	service := &stubPixelService{key: &models.PixelKey{TenantID: uuid.New()}}
	handler := PixelEvent(service, nil)

	body := `{"event_type":"uninstall"}`
	req := httptest.NewRequest(http.MethodPost, "/pixel/event", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(pixelKeyHeader, "pk_live_abc")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}

func TestPixelKeyIssueReturnsPlaintextOnce(t *testing.T) {
	name := "storefront"
	service := &stubPixelService{
		plaintext: "pk_live_plaintext",
		issued: &models.PixelKey{
			ID:        uuid.New(),
			Name:      &name,
			CreatedAt: time.Now(),
		},
	}
	handler := PixelKeyIssue(service, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/pixel-keys", strings.NewReader(`{"name":"storefront"}`))
	req.Header.Set("Content-Type", "application/json")
	req = req.WithContext(middleware.WithIdentity(req.Context(), uuid.New(), uuid.New(), "owner"))
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d", rec.Code)
	}

	var envelope struct {
		Data map[string]any `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data["key"] != "pk_live_plaintext" {
		t.Fatalf("data = %v", envelope.Data)
	}
}

func TestPixelEventsListExclusiveEnd(t *testing.T) {
	method := enums.AttributionMethodClickID
	confidence := decimal.NewFromFloat(0.95)
	service := &stubPixelService{
		events: []models.PixelEvent{{
			ID:                uuid.New(),
			EventType:         enums.PixelEventTypePurchase,
			AttributionStatus: enums.AttributionStatusMatched,
			AttributionMethod: &method,
			Confidence:        &confidence,
			OccurredAt:        time.Date(2026, 3, 5, 14, 30, 0, 0, time.UTC),
		}},
	}
	handler := PixelEventsList(service, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/pixel-events?start=2026-03-01&end=2026-03-05&limit=50", nil)
	req = req.WithContext(middleware.WithIdentity(req.Context(), uuid.New(), uuid.New(), "viewer"))
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	// the end date is inclusive for callers, so the service gets the next day
	wantTo := time.Date(2026, 3, 6, 0, 0, 0, 0, time.UTC)
	if !service.gotTo.Equal(wantTo) {
		t.Fatalf("to = %s want %s", service.gotTo, wantTo)
	}
	if service.gotLimit != 50 {
		t.Fatalf("limit = %d", service.gotLimit)
	}

	var envelope struct {
		Data []struct {
			EventType         string  `json:"event_type"`
			AttributionStatus string  `json:"attribution_status"`
			AttributionMethod *string `json:"attribution_method"`
		} `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(envelope.Data) != 1 {
		t.Fatalf("rows = %d", len(envelope.Data))
	}
	if envelope.Data[0].AttributionStatus != "matched" {
		t.Fatalf("status = %q", envelope.Data[0].AttributionStatus)
	}
	if envelope.Data[0].AttributionMethod == nil || *envelope.Data[0].AttributionMethod != method.String() {
		t.Fatalf("method = %v", envelope.Data[0].AttributionMethod)
	}
}

func TestPixelEventsListRejectsBadLimit(t *testing.T) {
	service := &stubPixelService{}
	handler := PixelEventsList(service, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/pixel-events?start=2026-03-01&end=2026-03-05&limit=plenty", nil)
	req = req.WithContext(middleware.WithIdentity(req.Context(), uuid.New(), uuid.New(), "viewer"))
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}

func TestPixelKeyRevokeParsesID(t *testing.T) {
	service := &stubPixelService{}
	handler := PixelKeyRevoke(service, nil)

	keyID := uuid.New()
	req := httptest.NewRequest(http.MethodDelete, "/api/v1/pixel-keys/"+keyID.String(), nil)
	rc := newRouteContext("keyId", keyID.String())
	req = req.WithContext(middleware.WithIdentity(rc(req.Context()), uuid.New(), uuid.New(), "owner"))
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if service.revokedID != keyID {
		t.Fatalf("revoked = %s want %s", service.revokedID, keyID)
	}
}
