package controllers

import (
	"context"
	"io"
	"net/http"

	"github.com/lucalabs/luca-backend/api/responses"
	"github.com/lucalabs/luca-backend/internal/webhooks/ingest"
	pkgerrors "github.com/lucalabs/luca-backend/pkg/errors"
	"github.com/lucalabs/luca-backend/pkg/logger"
)

const maxWebhookBody = 1 << 20

type WebhookIngestor interface {
	Ingest(ctx context.Context, normalizer ingest.Normalizer, body []byte, headers http.Header) (*ingest.Result, error)
}

// Webhook handles one provider's delivery endpoint. Only a signature failure
// produces a non-200 response; every other outcome returns 200 so providers
// never build retry storms against us.
func Webhook(service WebhookIngestor, normalizer ingest.Normalizer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read webhook body"))
			return
		}

		result, err := service.Ingest(r.Context(), normalizer, body, r.Header)
		if err != nil {
			typed := pkgerrors.As(err)
			if typed != nil && typed.Code() == pkgerrors.CodeSignature {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			// storage failures are logged and acknowledged; the dedupe mark
			// was already released so a provider redelivery can succeed
			if logg != nil {
				logg.Error(r.Context(), "webhook.ingest_failed", err)
			}
			responses.WriteSuccess(w, map[string]any{"accepted": true})
			return
		}

		responses.WriteSuccess(w, map[string]any{
			"accepted":  result.Accepted,
			"stored":    result.Stored,
			"duplicate": result.Duplicate,
		})
	}
}
