package controllers

import (
	"context"

	"github.com/go-chi/chi/v5"
)

// newRouteContext returns a wrapper seeding one chi URL parameter.
func newRouteContext(key, value string) func(context.Context) context.Context {
	return func(ctx context.Context) context.Context {
		rc := chi.NewRouteContext()
		rc.URLParams.Add(key, value)
		return context.WithValue(ctx, chi.RouteCtxKey, rc)
	}
}
