package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/lucalabs/luca-backend/internal/webhooks/ingest"
	"github.com/lucalabs/luca-backend/pkg/enums"
	pkgerrors "github.com/lucalabs/luca-backend/pkg/errors"
)

type stubIngestor struct {
	result *ingest.Result
	err    error

	gotBody []byte
}

func (s *stubIngestor) Ingest(_ context.Context, _ ingest.Normalizer, body []byte, _ http.Header) (*ingest.Result, error) {
	s.gotBody = body
	return s.result, s.err
}

type stubNormalizer struct{}

func (stubNormalizer) Platform() enums.Platform { return enums.PlatformShopify }
func (stubNormalizer) VerifySignature([]byte, http.Header) (bool, error) {
	return true, nil
}
func (stubNormalizer) Normalize([]byte, http.Header) (*ingest.CanonicalEvent, error) {
	return nil, nil
}

func TestWebhookStoredEvent(t *testing.T) {
	service := &stubIngestor{result: &ingest.Result{Accepted: true, Stored: true}}
	handler := Webhook(service, stubNormalizer{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/shopify", strings.NewReader(`{"id":1}`))
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if string(service.gotBody) != `{"id":1}` {
		t.Fatalf("body = %q", service.gotBody)
	}

	var envelope struct {
		Data map[string]bool `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !envelope.Data["stored"] {
		t.Fatalf("data = %v", envelope.Data)
	}
}

func TestWebhookBadSignatureIsTheOnlyNon200(t *testing.T) {
	service := &stubIngestor{err: pkgerrors.New(pkgerrors.CodeSignature, "hmac mismatch")}
	handler := Webhook(service, stubNormalizer{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/shopify", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}
}

func TestWebhookStorageFailureStillAcknowledged(t *testing.T) {
	service := &stubIngestor{err: pkgerrors.New(pkgerrors.CodeDependency, "insert financial event")}
	handler := Webhook(service, stubNormalizer{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/salla", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}

	var envelope struct {
		Data map[string]bool `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !envelope.Data["accepted"] {
		t.Fatalf("data = %v", envelope.Data)
	}
}

func TestWebhookDuplicateAcknowledged(t *testing.T) {
	service := &stubIngestor{result: &ingest.Result{Accepted: true, Duplicate: true}}
	handler := Webhook(service, stubNormalizer{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/shopify", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}

	var envelope struct {
		Data map[string]bool `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !envelope.Data["duplicate"] || envelope.Data["stored"] {
		t.Fatalf("data = %v", envelope.Data)
	}
}
