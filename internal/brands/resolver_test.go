package brands

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/keyward/licensing-backend/pkg/db/models"
	pkgerrors "github.com/keyward/licensing-backend/pkg/errors"
	"github.com/keyward/licensing-backend/pkg/keycrypt"
)

type stubAPIKeysRepo struct {
	rows map[string]*models.BrandAPIKey
}

func (s *stubAPIKeysRepo) FindAPIKeyByCiphertext(_ context.Context, ciphertext string) (*models.BrandAPIKey, error) {
	if row, ok := s.rows[ciphertext]; ok {
		return row, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func newBrandTestCodec(t *testing.T) *keycrypt.Codec {
	t.Helper()
	codec, err := keycrypt.New("brand-key-test-secret", "0123456789abcdef", 256, "CBC")
	require.NoError(t, err)
	return codec
}

func TestResolveKnownKey(t *testing.T) {
	codec := newBrandTestCodec(t)
	brand := &models.Brand{ID: uuid.New(), Name: "Keyward", Slug: "keyward"}
	repo := &stubAPIKeysRepo{rows: map[string]*models.BrandAPIKey{
		codec.Encrypt("raw-api-key"): {ID: uuid.New(), BrandID: brand.ID, Brand: brand},
	}}

	resolver, err := NewResolver(repo, codec)
	require.NoError(t, err)

	got, err := resolver.Resolve(context.Background(), "raw-api-key")
	require.NoError(t, err)
	assert.Equal(t, brand.ID, got.ID)
}

func TestResolveUnknownKeyIsUnauthorized(t *testing.T) {
	codec := newBrandTestCodec(t)
	resolver, err := NewResolver(&stubAPIKeysRepo{rows: map[string]*models.BrandAPIKey{}}, codec)
	require.NoError(t, err)

	_, err = resolver.Resolve(context.Background(), "nope")
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeUnauthorized, typed.Code())

	_, err = resolver.Resolve(context.Background(), "   ")
	typed = pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeUnauthorized, typed.Code())
}

func TestResolveExpiredKeyIsForbidden(t *testing.T) {
	codec := newBrandTestCodec(t)
	brand := &models.Brand{ID: uuid.New(), Name: "Keyward", Slug: "keyward"}
	expired := time.Now().Add(-time.Hour)
	repo := &stubAPIKeysRepo{rows: map[string]*models.BrandAPIKey{
		codec.Encrypt("stale-key"): {ID: uuid.New(), BrandID: brand.ID, Brand: brand, ExpiresAt: &expired},
	}}

	resolver, err := NewResolver(repo, codec)
	require.NoError(t, err)

	_, err = resolver.Resolve(context.Background(), "stale-key")
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeForbidden, typed.Code())
}

func TestResolveFutureExpiryStillValid(t *testing.T) {
	codec := newBrandTestCodec(t)
	brand := &models.Brand{ID: uuid.New(), Name: "Keyward", Slug: "keyward"}
	future := time.Now().Add(time.Hour)
	repo := &stubAPIKeysRepo{rows: map[string]*models.BrandAPIKey{
		codec.Encrypt("fresh-key"): {ID: uuid.New(), BrandID: brand.ID, Brand: brand, ExpiresAt: &future},
	}}

	resolver, err := NewResolver(repo, codec)
	require.NoError(t, err)

	got, err := resolver.Resolve(context.Background(), "fresh-key")
	require.NoError(t, err)
	assert.Equal(t, brand.ID, got.ID)
}
