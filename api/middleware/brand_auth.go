package middleware

import (
	"context"
	"net/http"

	"github.com/keyward/licensing-backend/api/responses"
	"github.com/keyward/licensing-backend/pkg/db/models"
	pkgerrors "github.com/keyward/licensing-backend/pkg/errors"
	"github.com/keyward/licensing-backend/pkg/logger"
)

// HeaderBrandAPIKey carries the brand credential on management calls.
const HeaderBrandAPIKey = "X-Brand-Api-Key"

type brandResolver interface {
	Resolve(ctx context.Context, rawKey string) (*models.Brand, error)
}

type brandContextKey struct{}

// BrandAuth authenticates the brand API surface. The resolved brand is placed
// on the request context for controllers to read via BrandFromContext.
func BrandAuth(resolver brandResolver, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if resolver == nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "brand auth unavailable"))
				return
			}

			brand, err := resolver.Resolve(r.Context(), r.Header.Get(HeaderBrandAPIKey))
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}

			ctx := context.WithValue(r.Context(), brandContextKey{}, brand)
			if logg != nil {
				ctx = logg.WithBrandID(ctx, brand.ID.String())
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// BrandFromContext returns the authenticated brand, or nil outside BrandAuth.
func BrandFromContext(ctx context.Context) *models.Brand {
	brand, _ := ctx.Value(brandContextKey{}).(*models.Brand)
	return brand
}
