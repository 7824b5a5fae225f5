package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/lucalabs/luca-backend/api/middleware"
	"github.com/lucalabs/luca-backend/api/responses"
	"github.com/lucalabs/luca-backend/pkg/db/models"
	"github.com/lucalabs/luca-backend/pkg/enums"
	pkgerrors "github.com/lucalabs/luca-backend/pkg/errors"
	"github.com/lucalabs/luca-backend/pkg/logger"
)

type IntegrationsService interface {
	List(ctx context.Context, tenantID uuid.UUID) ([]models.Integration, error)
	Disconnect(ctx context.Context, tenantID uuid.UUID, platform enums.Platform) error
}

// integrationResponse is the tenant-facing view of a connection. Token
// columns never appear here.
type integrationResponse struct {
	ID          uuid.UUID  `json:"id"`
	Platform    string     `json:"platform"`
	AccountID   string     `json:"account_id"`
	AccountName *string    `json:"account_name,omitempty"`
	ShopDomain  *string    `json:"shop_domain,omitempty"`
	Status      string     `json:"status"`
	LastSyncAt  *time.Time `json:"last_sync_at,omitempty"`
	ConnectedAt time.Time  `json:"connected_at"`
}

// IntegrationsList returns the tenant's platform connections.
func IntegrationsList(service IntegrationsService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID := middleware.TenantIDFromContext(r.Context())
		rows, err := service.List(r.Context(), tenantID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]integrationResponse, 0, len(rows))
		for _, row := range rows {
			out = append(out, integrationResponse{
				ID:          row.ID,
				Platform:    row.Platform.String(),
				AccountID:   row.AccountID,
				AccountName: row.AccountName,
				ShopDomain:  row.ShopDomain,
				Status:      string(row.Status),
				LastSyncAt:  row.LastSyncAt,
				ConnectedAt: row.ConnectedAt,
			})
		}
		responses.WriteSuccess(w, out)
	}
}

// IntegrationsDisconnect soft-disconnects a platform. The row and its history
// survive; only the credentials become unusable.
func IntegrationsDisconnect(service IntegrationsService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		platform, err := enums.ParsePlatform(chi.URLParam(r, "platform"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unknown platform"))
			return
		}
		tenantID := middleware.TenantIDFromContext(r.Context())
		if err := service.Disconnect(r.Context(), tenantID, platform); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"disconnected": platform.String()})
	}
}
