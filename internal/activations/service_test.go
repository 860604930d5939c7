package activations

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/keyward/licensing-backend/internal/licensekeys"
	"github.com/keyward/licensing-backend/pkg/db/models"
	"github.com/keyward/licensing-backend/pkg/enums"
	pkgerrors "github.com/keyward/licensing-backend/pkg/errors"
	"github.com/keyward/licensing-backend/pkg/keycrypt"
	"github.com/keyward/licensing-backend/pkg/keygen"
)

func setupActivationsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	schema := []string{
		`CREATE TABLE IF NOT EXISTS license_keys (
  id TEXT PRIMARY KEY,
  brand_id TEXT NOT NULL,
  customer_email TEXT NOT NULL,
  key TEXT NOT NULL UNIQUE,
  created_at DATETIME,
  updated_at DATETIME,
  UNIQUE (brand_id, customer_email)
);`,
		`CREATE TABLE IF NOT EXISTS products (
  id TEXT PRIMARY KEY,
  brand_id TEXT NOT NULL,
  name TEXT NOT NULL,
  slug TEXT NOT NULL,
  created_at DATETIME,
  updated_at DATETIME,
  UNIQUE (brand_id, slug)
);`,
		`CREATE TABLE IF NOT EXISTS licenses (
  id TEXT PRIMARY KEY,
  license_key_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'active',
  max_seats INTEGER NOT NULL DEFAULT 1,
  expires_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME,
  UNIQUE (license_key_id, product_id)
);`,
		`CREATE TABLE IF NOT EXISTS activations (
  id TEXT PRIMARY KEY,
  license_id TEXT NOT NULL,
  fingerprint TEXT NOT NULL,
  platform_info TEXT,
  deactivated_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`,
	}
	for _, stmt := range schema {
		require.NoError(t, db.Exec(stmt).Error)
	}
	return db
}

type gormTxRunner struct {
	db *gorm.DB
}

func (r gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

type fixture struct {
	db    *gorm.DB
	cache *fakeCacheClient
	svc   Service

	plainKey string
	license  models.License
}

// newFixture seeds one brand/product/key and a license with the given seat
// cap and status, returning a ready service.
func newFixture(t *testing.T, maxSeats int, status enums.LicenseStatus, expiresAt *time.Time) *fixture {
	t.Helper()

	db := setupActivationsTestDB(t)
	codec, err := keycrypt.New("activation-test-secret", "fedcba9876543210", 256, "CBC")
	require.NoError(t, err)
	keysRepo, err := licensekeys.NewRepository(db, codec)
	require.NoError(t, err)

	brandID := uuid.New()
	product := models.Product{ID: uuid.New(), BrandID: brandID, Name: "Editor Pro", Slug: "editor-pro"}
	require.NoError(t, db.Create(&product).Error)

	plain, err := keygen.Generate()
	require.NoError(t, err)
	key := models.LicenseKey{
		ID:            uuid.New(),
		BrandID:       brandID,
		CustomerEmail: "buyer@example.com",
		Key:           codec.Encrypt(plain),
	}
	require.NoError(t, db.Create(&key).Error)

	license := models.License{
		ID:           uuid.New(),
		LicenseKeyID: key.ID,
		ProductID:    product.ID,
		Status:       status,
		MaxSeats:     maxSeats,
		ExpiresAt:    expiresAt,
	}
	require.NoError(t, db.Create(&license).Error)

	fake := newFakeCacheClient()
	cache := NewStatusCache(fake, codec, time.Minute, nil, nil)
	svc, err := NewService(gormTxRunner{db: db}, keysRepo, NewRepository(db), cache, nil, nil, nil)
	require.NoError(t, err)

	return &fixture{db: db, cache: fake, svc: svc, plainKey: plain, license: license}
}

func (f *fixture) liveCount(t *testing.T) int64 {
	t.Helper()
	var count int64
	require.NoError(t, f.db.Model(&models.Activation{}).
		Where("license_id = ? AND deactivated_at IS NULL", f.license.ID).
		Count(&count).Error)
	return count
}

func TestActivateSeatLifecycleScenario(t *testing.T) {
	f := newFixture(t, 2, enums.LicenseStatusActive, nil)
	ctx := context.Background()

	activate := func(fingerprint string) error {
		_, err := f.svc.Activate(ctx, ActivateInput{
			LicenseKey:  keygen.Format(f.plainKey),
			ProductSlug: "editor-pro",
			Fingerprint: fingerprint,
		})
		return err
	}

	require.NoError(t, activate("machine-a"))
	require.NoError(t, activate("machine-b"))

	// Third device loses to the seat cap.
	err := activate("machine-c")
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeSeatLimit, typed.Code())
	assert.Equal(t, int64(2), f.liveCount(t))

	// Same device twice is a conflict, not a second seat.
	err = activate("machine-a")
	typed = pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeConflict, typed.Code())
	assert.Equal(t, int64(2), f.liveCount(t))

	// Releasing a seat lets the blocked device in.
	require.NoError(t, f.svc.Deactivate(ctx, DeactivateInput{
		LicenseKey:  f.plainKey,
		ProductSlug: "editor-pro",
		Fingerprint: "machine-b",
	}))
	require.NoError(t, activate("machine-c"))
	assert.Equal(t, int64(2), f.liveCount(t))

	// The tombstone survives as history.
	var total int64
	require.NoError(t, f.db.Model(&models.Activation{}).
		Where("license_id = ?", f.license.ID).Count(&total).Error)
	assert.Equal(t, int64(3), total)
}

func TestActivateReactivatesAfterTombstone(t *testing.T) {
	f := newFixture(t, 1, enums.LicenseStatusActive, nil)
	ctx := context.Background()

	_, err := f.svc.Activate(ctx, ActivateInput{LicenseKey: f.plainKey, ProductSlug: "editor-pro", Fingerprint: "machine-a"})
	require.NoError(t, err)
	require.NoError(t, f.svc.Deactivate(ctx, DeactivateInput{LicenseKey: f.plainKey, ProductSlug: "editor-pro", Fingerprint: "machine-a"}))

	_, err = f.svc.Activate(ctx, ActivateInput{LicenseKey: f.plainKey, ProductSlug: "editor-pro", Fingerprint: "machine-a"})
	require.NoError(t, err, "a deactivated fingerprint must be able to come back")
	assert.Equal(t, int64(1), f.liveCount(t))
}

func TestActivateSuspendedLicense(t *testing.T) {
	f := newFixture(t, 2, enums.LicenseStatusSuspended, nil)

	_, err := f.svc.Activate(context.Background(), ActivateInput{
		LicenseKey:  f.plainKey,
		ProductSlug: "editor-pro",
		Fingerprint: "machine-a",
	})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeStateConflict, typed.Code())
	assert.Contains(t, typed.Message(), "suspended")
}

func TestActivateExpiredLicenseReportsExpired(t *testing.T) {
	past := time.Now().Add(-time.Hour)
	f := newFixture(t, 2, enums.LicenseStatusActive, &past)

	_, err := f.svc.Activate(context.Background(), ActivateInput{
		LicenseKey:  f.plainKey,
		ProductSlug: "editor-pro",
		Fingerprint: "machine-a",
	})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeStateConflict, typed.Code())
	assert.Contains(t, typed.Message(), "expired", "derived expiry must be reported even while the column reads active")
}

func TestActivateConcurrentRacersNeverExceedSeatCap(t *testing.T) {
	f := newFixture(t, 2, enums.LicenseStatusActive, nil)

	// One connection serializes sqlite writers the way the row lock does on
	// postgres, while the goroutines still race through the service.
	sqlDB, err := f.db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	const racers = 6
	results := make([]error, racers)
	var wg sync.WaitGroup
	wg.Add(racers)
	for i := 0; i < racers; i++ {
		go func(i int) {
			defer wg.Done()
			_, err := f.svc.Activate(context.Background(), ActivateInput{
				LicenseKey:  f.plainKey,
				ProductSlug: "editor-pro",
				Fingerprint: fmt.Sprintf("machine-%d", i),
			})
			results[i] = err
		}(i)
	}
	wg.Wait()

	var won, blocked int
	for _, err := range results {
		if err == nil {
			won++
			continue
		}
		typed := pkgerrors.As(err)
		require.NotNil(t, typed, "unexpected error: %v", err)
		assert.Equal(t, pkgerrors.CodeSeatLimit, typed.Code())
		blocked++
	}
	assert.Equal(t, 2, won)
	assert.Equal(t, 4, blocked)
	assert.Equal(t, int64(2), f.liveCount(t))
}

func TestActivateAtExpiryBoundary(t *testing.T) {
	expiry := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	f := newFixture(t, 2, enums.LicenseStatusActive, &expiry)
	svc := f.svc.(*service)
	ctx := context.Background()

	// An instant before expiry the license still activates.
	svc.now = func() time.Time { return expiry.Add(-time.Millisecond) }
	_, err := svc.Activate(ctx, ActivateInput{
		LicenseKey:  f.plainKey,
		ProductSlug: "editor-pro",
		Fingerprint: "machine-before",
	})
	require.NoError(t, err)

	// The expiry instant itself is already expired.
	svc.now = func() time.Time { return expiry }
	_, err = svc.Activate(ctx, ActivateInput{
		LicenseKey:  f.plainKey,
		ProductSlug: "editor-pro",
		Fingerprint: "machine-at",
	})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeStateConflict, typed.Code())
	assert.Contains(t, typed.Message(), "expired")
	assert.Equal(t, int64(1), f.liveCount(t))
}

func TestActivateUnknownKeyAndSlug(t *testing.T) {
	f := newFixture(t, 1, enums.LicenseStatusActive, nil)
	ctx := context.Background()

	_, err := f.svc.Activate(ctx, ActivateInput{LicenseKey: "AAAABBBBCCCCDDDDEEEEFFFFGG", ProductSlug: "editor-pro", Fingerprint: "m"})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())

	_, err = f.svc.Activate(ctx, ActivateInput{LicenseKey: f.plainKey, ProductSlug: "unknown-product", Fingerprint: "m"})
	typed = pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())
}

func TestDeactivateWithoutLiveSeat(t *testing.T) {
	f := newFixture(t, 1, enums.LicenseStatusActive, nil)

	err := f.svc.Deactivate(context.Background(), DeactivateInput{
		LicenseKey:  f.plainKey,
		ProductSlug: "editor-pro",
		Fingerprint: "never-activated",
	})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())
}

func TestCheckStatusProjectionAndReadThrough(t *testing.T) {
	f := newFixture(t, 3, enums.LicenseStatusActive, nil)
	ctx := context.Background()

	_, err := f.svc.Activate(ctx, ActivateInput{LicenseKey: f.plainKey, ProductSlug: "editor-pro", Fingerprint: "machine-a"})
	require.NoError(t, err)

	projection, err := f.svc.CheckStatus(ctx, keygen.Format(f.plainKey), "")
	require.NoError(t, err)
	assert.Equal(t, "buyer@example.com", projection.Customer)
	require.Len(t, projection.Activations, 1)
	entry := projection.Activations[0]
	assert.True(t, entry.IsValid)
	assert.Equal(t, enums.LicenseStatusActive, entry.Status)
	assert.Equal(t, 3, entry.MaxSeats)
	assert.Equal(t, 1, entry.SeatsUsed)
	assert.Equal(t, 2, entry.SeatsLeft)

	// Second read is served from cache: a direct DB write is not visible.
	require.NoError(t, f.db.Model(&models.License{}).
		Where("id = ?", f.license.ID).
		Update("status", enums.LicenseStatusSuspended).Error)
	cached, err := f.svc.CheckStatus(ctx, f.plainKey, "")
	require.NoError(t, err)
	assert.Equal(t, enums.LicenseStatusActive, cached.Activations[0].Status)

	// A ledger mutation invalidates, so the next read recomputes.
	require.NoError(t, f.svc.Deactivate(ctx, DeactivateInput{LicenseKey: f.plainKey, ProductSlug: "editor-pro", Fingerprint: "machine-a"}))
	fresh, err := f.svc.CheckStatus(ctx, f.plainKey, "")
	require.NoError(t, err)
	assert.Equal(t, enums.LicenseStatusSuspended, fresh.Activations[0].Status)
	assert.Equal(t, 0, fresh.Activations[0].SeatsUsed)
}

func TestCheckStatusUnknownKey(t *testing.T) {
	f := newFixture(t, 1, enums.LicenseStatusActive, nil)

	_, err := f.svc.CheckStatus(context.Background(), "AAAABBBBCCCCDDDDEEEEFFFFGG", "")
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())
}
