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

	"github.com/lucalabs/luca-backend/api/middleware"
	"github.com/lucalabs/luca-backend/pkg/db/models"
	"github.com/lucalabs/luca-backend/pkg/enums"
)

type stubIntegrationsService struct {
	rows []models.Integration
	err  error

	gotTenant   uuid.UUID
	gotPlatform enums.Platform
}

func (s *stubIntegrationsService) List(_ context.Context, tenantID uuid.UUID) ([]models.Integration, error) {
	s.gotTenant = tenantID
	return s.rows, s.err
}

func (s *stubIntegrationsService) Disconnect(_ context.Context, tenantID uuid.UUID, platform enums.Platform) error {
	s.gotTenant = tenantID
	s.gotPlatform = platform
	return s.err
}

func TestIntegrationsListNeverExposesTokens(t *testing.T) {
	tenantID := uuid.New()
	shop := "demo.myshopify.com"
	service := &stubIntegrationsService{rows: []models.Integration{{
		ID:          uuid.New(),
		TenantID:    tenantID,
		Platform:    enums.PlatformShopify,
		AccountID:   "demo.myshopify.com",
		ShopDomain:  &shop,
		AccessToken: "ciphertext-v1:should-never-appear",
		Status:      enums.IntegrationStatusActive,
		ConnectedAt: time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC),
	}}}
	handler := IntegrationsList(service, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/integrations", nil)
	req = req.WithContext(middleware.WithIdentity(req.Context(), tenantID, uuid.New(), "viewer"))
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if service.gotTenant != tenantID {
		t.Fatalf("tenant = %s want %s", service.gotTenant, tenantID)
	}
	raw := rec.Body.String()
	if strings.Contains(raw, "should-never-appear") || strings.Contains(strings.ToLower(raw), "token") {
		t.Fatalf("token material in response: %s", raw)
	}

	var envelope struct {
		Data []struct {
			Platform   string  `json:"platform"`
			ShopDomain *string `json:"shop_domain"`
			Status     string  `json:"status"`
		} `json:"data"`
	}
	if err := json.Unmarshal([]byte(raw), &envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(envelope.Data) != 1 || envelope.Data[0].Platform != "shopify" {
		t.Fatalf("data = %+v", envelope.Data)
	}
	if envelope.Data[0].Status != "active" {
		t.Fatalf("status = %q", envelope.Data[0].Status)
	}
}

func TestIntegrationsDisconnect(t *testing.T) {
	tenantID := uuid.New()
	service := &stubIntegrationsService{}
	handler := IntegrationsDisconnect(service, nil)

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/integrations/meta", nil)
	seed := newRouteContext("platform", "meta")
	req = req.WithContext(middleware.WithIdentity(seed(req.Context()), tenantID, uuid.New(), "owner"))
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if service.gotPlatform != enums.PlatformMeta {
		t.Fatalf("platform = %s", service.gotPlatform)
	}
}

func TestIntegrationsDisconnectUnknownPlatform(t *testing.T) {
	handler := IntegrationsDisconnect(&stubIntegrationsService{}, nil)

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/integrations/friendster", nil)
	seed := newRouteContext("platform", "friendster")
	req = req.WithContext(middleware.WithIdentity(seed(req.Context()), uuid.New(), uuid.New(), "owner"))
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}
