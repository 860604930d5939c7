package brands

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/keyward/licensing-backend/pkg/db/models"
	pkgerrors "github.com/keyward/licensing-backend/pkg/errors"
)

type apiKeysRepository interface {
	FindAPIKeyByCiphertext(ctx context.Context, ciphertext string) (*models.BrandAPIKey, error)
}

type codec interface {
	Encrypt(plaintext string) string
}

// Resolver authenticates brand API calls by matching the presented key
// against stored ciphertext. Auth failures deliberately carry no detail about
// whether the key is unknown or expired.
type Resolver struct {
	repo  apiKeysRepository
	codec codec
	now   func() time.Time
}

// NewResolver builds a brand resolver from the API key repository and the
// brand key codec.
func NewResolver(repo apiKeysRepository, c codec) (*Resolver, error) {
	if repo == nil {
		return nil, fmt.Errorf("api key repository required")
	}
	if c == nil {
		return nil, fmt.Errorf("brand key codec required")
	}
	return &Resolver{repo: repo, codec: c, now: time.Now}, nil
}

// Resolve returns the brand owning the presented API key.
func (r *Resolver) Resolve(ctx context.Context, rawKey string) (*models.Brand, error) {
	raw := strings.TrimSpace(rawKey)
	if raw == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "api key required")
	}

	row, err := r.repo.FindAPIKeyByCiphertext(ctx, r.codec.Encrypt(raw))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "unknown api key")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup api key")
	}

	if row.ExpiresAt != nil && !row.ExpiresAt.After(r.now()) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "api key expired")
	}
	if row.Brand == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "api key has no brand")
	}
	return row.Brand, nil
}
