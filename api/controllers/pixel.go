package controllers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lucalabs/luca-backend/api/middleware"
	"github.com/lucalabs/luca-backend/api/responses"
	"github.com/lucalabs/luca-backend/api/validators"
	"github.com/lucalabs/luca-backend/internal/pixel"
	"github.com/lucalabs/luca-backend/pkg/db/models"
	"github.com/lucalabs/luca-backend/pkg/enums"
	pkgerrors "github.com/lucalabs/luca-backend/pkg/errors"
	"github.com/lucalabs/luca-backend/pkg/logger"
)

const pixelKeyHeader = "X-API-Key"

type PixelService interface {
	Authenticate(ctx context.Context, rawKey string) (*models.PixelKey, error)
	CaptureClick(ctx context.Context, input pixel.ClickInput) (*models.ClickRecord, error)
	CaptureEvent(ctx context.Context, input pixel.EventInput) (*models.PixelEvent, error)
	IssueKey(ctx context.Context, tenantID uuid.UUID, name *string) (string, *models.PixelKey, error)
	RevokeKey(ctx context.Context, tenantID, id uuid.UUID) error
	ListEvents(ctx context.Context, tenantID uuid.UUID, from, to time.Time, limit int) ([]models.PixelEvent, error)
}

type pixelClickRequest struct {
	SessionID   string  `json:"session_id" validate:"required,max=128"`
	LandingPage string  `json:"landing_page" validate:"required,max=2048"`
	ReferrerURL string  `json:"referrer_url" validate:"max=2048"`
	OccurredAt  *string `json:"occurred_at"`
}

type pixelEventRequest struct {
	EventType   string  `json:"event_type" validate:"required"`
	SessionID   *string `json:"session_id" validate:"omitempty,max=128"`
	OrderID     *string `json:"order_id" validate:"omitempty,max=128"`
	OrderValue  *string `json:"order_value"`
	LandingPage string  `json:"landing_page" validate:"max=2048"`
	ReferrerURL string  `json:"referrer_url" validate:"max=2048"`
	OccurredAt  *string `json:"occurred_at"`
}

type pixelKeyRequest struct {
	Name *string `json:"name" validate:"omitempty,max=128"`
}

// PixelCapture authenticates the tracking pixel by API key and records a
// click touchpoint.
func PixelCapture(service PixelService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key, err := service.Authenticate(r.Context(), r.Header.Get(pixelKeyHeader))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req pixelClickRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		occurred, err := parseOptionalTime(req.OccurredAt)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		click, err := service.CaptureClick(r.Context(), pixel.ClickInput{
			TenantID:    key.TenantID,
			SessionID:   req.SessionID,
			LandingPage: req.LandingPage,
			ReferrerURL: req.ReferrerURL,
			OccurredAt:  occurred,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, map[string]any{"id": click.ID})
	}
}

// PixelEvent records a pixel event. Purchases enter the attribution queue.
func PixelEvent(service PixelService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key, err := service.Authenticate(r.Context(), r.Header.Get(pixelKeyHeader))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req pixelEventRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		eventType, err := enums.ParsePixelEventType(req.EventType)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unknown event type"))
			return
		}
		occurred, err := parseOptionalTime(req.OccurredAt)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var orderValue *decimal.Decimal
		if req.OrderValue != nil {
			parsed, err := decimal.NewFromString(*req.OrderValue)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order value"))
				return
			}
			orderValue = &parsed
		}

		event, err := service.CaptureEvent(r.Context(), pixel.EventInput{
			TenantID:    key.TenantID,
			EventType:   eventType,
			SessionID:   req.SessionID,
			OrderID:     req.OrderID,
			OrderValue:  orderValue,
			LandingPage: req.LandingPage,
			ReferrerURL: req.ReferrerURL,
			OccurredAt:  occurred,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, map[string]any{
			"id":                 event.ID,
			"attribution_status": event.AttributionStatus,
		})
	}
}

// PixelKeyIssue mints a pixel API key. The plaintext appears in this response
// and nowhere else.
func PixelKeyIssue(service PixelService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req pixelKeyRequest
		if r.ContentLength > 0 {
			if err := validators.DecodeJSONBody(r, &req); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		tenantID := middleware.TenantIDFromContext(r.Context())
		plaintext, key, err := service.IssueKey(r.Context(), tenantID, req.Name)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, map[string]any{
			"id":         key.ID,
			"key":        plaintext,
			"name":       key.Name,
			"created_at": key.CreatedAt,
		})
	}
}

type pixelEventResponse struct {
	ID                uuid.UUID        `json:"id"`
	EventType         string           `json:"event_type"`
	SessionID         *string          `json:"session_id,omitempty"`
	OrderID           *string          `json:"order_id,omitempty"`
	OrderValue        *decimal.Decimal `json:"order_value,omitempty"`
	UTMSource         *string          `json:"utm_source,omitempty"`
	UTMMedium         *string          `json:"utm_medium,omitempty"`
	UTMCampaign       *string          `json:"utm_campaign,omitempty"`
	AttributionStatus string           `json:"attribution_status"`
	AttributionMethod *string          `json:"attribution_method,omitempty"`
	Confidence        *decimal.Decimal `json:"confidence,omitempty"`
	OccurredAt        time.Time        `json:"occurred_at"`
}

// PixelEventsList returns the tenant's pixel events for a date range, newest
// first, with their attribution outcome.
func PixelEventsList(service PixelService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		from, to, err := parseDateRange(r, "start", "end")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit := 0
		if raw := r.URL.Query().Get("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "limit must be an integer"))
				return
			}
			limit = parsed
		}

		tenantID := middleware.TenantIDFromContext(r.Context())
		rows, err := service.ListEvents(r.Context(), tenantID, from, to.AddDate(0, 0, 1), limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]pixelEventResponse, 0, len(rows))
		for _, row := range rows {
			resp := pixelEventResponse{
				ID:                row.ID,
				EventType:         row.EventType.String(),
				SessionID:         row.SessionID,
				OrderID:           row.OrderID,
				OrderValue:        row.OrderValue,
				UTMSource:         row.UTMSource,
				UTMMedium:         row.UTMMedium,
				UTMCampaign:       row.UTMCampaign,
				AttributionStatus: row.AttributionStatus.String(),
				Confidence:        row.Confidence,
				OccurredAt:        row.OccurredAt,
			}
			if row.AttributionMethod != nil {
				method := row.AttributionMethod.String()
				resp.AttributionMethod = &method
			}
			out = append(out, resp)
		}
		responses.WriteSuccess(w, out)
	}
}

// PixelKeyRevoke revokes a pixel API key.
func PixelKeyRevoke(service PixelService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "keyId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid key id"))
			return
		}
		tenantID := middleware.TenantIDFromContext(r.Context())
		if err := service.RevokeKey(r.Context(), tenantID, id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"revoked": true})
	}
}

func parseOptionalTime(raw *string) (*time.Time, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	parsed, err := time.Parse(time.RFC3339, *raw)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "timestamps must be RFC 3339")
	}
	return &parsed, nil
}
