package controllers

import (
	"context"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/lucalabs/luca-backend/api/middleware"
	"github.com/lucalabs/luca-backend/api/responses"
	"github.com/lucalabs/luca-backend/api/validators"
	"github.com/lucalabs/luca-backend/pkg/db/models"
	"github.com/lucalabs/luca-backend/pkg/enums"
	pkgerrors "github.com/lucalabs/luca-backend/pkg/errors"
	"github.com/lucalabs/luca-backend/pkg/logger"
)

type OAuthService interface {
	StartConnect(ctx context.Context, tenantID, userID uuid.UUID, platform enums.Platform, shopDomain string) (string, error)
	CompleteCallback(ctx context.Context, platform enums.Platform, code, state, shopDomain string) (*models.Integration, error)
}

type connectRequest struct {
	ShopDomain string `json:"shop_domain" validate:"max=255"`
}

// OAuthConnect mints a handshake state and returns the provider authorization
// URL for the frontend to redirect to.
func OAuthConnect(service OAuthService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		platform, err := enums.ParsePlatform(chi.URLParam(r, "platform"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unknown platform"))
			return
		}

		var req connectRequest
		if r.ContentLength > 0 {
			if err := validators.DecodeJSONBody(r, &req); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		tenantID := middleware.TenantIDFromContext(r.Context())
		userID := middleware.UserIDFromContext(r.Context())
		authorizeURL, err := service.StartConnect(r.Context(), tenantID, userID, platform, req.ShopDomain)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"authorize_url": authorizeURL})
	}
}

// OAuthCallback completes the provider redirect leg. The browser always gets
// a redirect back to the dashboard: ?connected={platform} on success,
// ?error={public message} on failure. Token material never reaches the URL.
func OAuthCallback(service OAuthService, frontendURL string, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		platform, err := enums.ParsePlatform(chi.URLParam(r, "platform"))
		if err != nil {
			redirectWithError(w, r, frontendURL, "unknown platform")
			return
		}

		query := r.URL.Query()
		if providerErr := query.Get("error"); providerErr != "" {
			logCallbackFailure(r.Context(), logg, platform, pkgerrors.New(pkgerrors.CodeProvider, providerErr))
			redirectWithError(w, r, frontendURL, "the platform denied the connection")
			return
		}

		code := query.Get("code")
		state := query.Get("state")
		if code == "" || state == "" {
			redirectWithError(w, r, frontendURL, "missing code or state")
			return
		}

		_, err = service.CompleteCallback(r.Context(), platform, code, state, query.Get("shop"))
		if err != nil {
			logCallbackFailure(r.Context(), logg, platform, err)
			redirectWithError(w, r, frontendURL, publicMessage(err))
			return
		}

		target := frontendURL + "/integrations?" + url.Values{"connected": {platform.String()}}.Encode()
		http.Redirect(w, r, target, http.StatusFound)
	}
}

func redirectWithError(w http.ResponseWriter, r *http.Request, frontendURL, message string) {
	target := frontendURL + "/integrations?" + url.Values{"error": {message}}.Encode()
	http.Redirect(w, r, target, http.StatusFound)
}

// publicMessage maps an error to its code's public text so provider payloads
// and internals never leak into the redirect URL.
func publicMessage(err error) string {
	typed := pkgerrors.As(err)
	if typed == nil {
		return pkgerrors.MetadataFor(pkgerrors.CodeInternal).PublicMessage
	}
	switch typed.Code() {
	case pkgerrors.CodeValidation, pkgerrors.CodeNotFound:
		if m := typed.Message(); m != "" {
			return m
		}
	}
	return pkgerrors.MetadataFor(typed.Code()).PublicMessage
}

func logCallbackFailure(ctx context.Context, logg *logger.Logger, platform enums.Platform, err error) {
	if logg == nil {
		return
	}
	ctx = logg.WithPlatform(ctx, platform.String())
	logg.Error(ctx, "oauth.callback_failed", err)
}
