package licensekeys

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/keyward/licensing-backend/pkg/db"
	"github.com/keyward/licensing-backend/pkg/db/models"
	"github.com/keyward/licensing-backend/pkg/keygen"
)

// Codec is the deterministic cipher used for key storage. Decrypt recovers
// the plaintext key from stored ciphertext for cache-key derivation.
type Codec interface {
	Encrypt(plaintext string) string
	Decrypt(ciphertext string) (string, error)
}

// Repository stores license keys as ciphertext and resolves raw key input by
// encrypting it and matching on the stored value. The plaintext for an
// existing row is never read back outside Decrypt.
type Repository struct {
	db    *gorm.DB
	codec Codec
}

// NewRepository constructs a license key repository.
func NewRepository(conn *gorm.DB, codec Codec) (*Repository, error) {
	if conn == nil {
		return nil, fmt.Errorf("db connection required")
	}
	if codec == nil {
		return nil, fmt.Errorf("license key codec required")
	}
	return &Repository{db: conn, codec: codec}, nil
}

// Resolve finds the key record matching rawKey. When productSlug is set, the
// key must own a license for a product with that slug.
func (r *Repository) Resolve(ctx context.Context, rawKey, productSlug string) (*models.LicenseKey, error) {
	ciphertext, err := r.ciphertextFor(rawKey)
	if err != nil {
		return nil, err
	}

	query := r.db.WithContext(ctx).Model(&models.LicenseKey{}).
		Where("license_keys.key = ?", ciphertext)
	if productSlug != "" {
		query = query.
			Joins("JOIN licenses ON licenses.license_key_id = license_keys.id").
			Joins("JOIN products ON products.id = licenses.product_id").
			Where("products.slug = ?", productSlug)
	}

	var row models.LicenseKey
	if err := query.First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// ResolveWithLicenses resolves rawKey and loads its licenses (optionally
// scoped to productSlug) with products and live activation counts attached.
func (r *Repository) ResolveWithLicenses(ctx context.Context, rawKey, productSlug string) (*models.LicenseKey, error) {
	key, err := r.Resolve(ctx, rawKey, productSlug)
	if err != nil {
		return nil, err
	}

	query := r.db.WithContext(ctx).Model(&models.License{}).
		Where("licenses.license_key_id = ?", key.ID)
	if productSlug != "" {
		query = query.
			Joins("JOIN products ON products.id = licenses.product_id").
			Where("products.slug = ?", productSlug)
	}

	var licenses []models.License
	if err := query.Preload("Product").Find(&licenses).Error; err != nil {
		return nil, err
	}
	if err := r.attachLiveCounts(ctx, licenses); err != nil {
		return nil, err
	}
	key.Licenses = licenses
	return key, nil
}

// attachLiveCounts fills ActivationsCount from a grouped count over live
// ledger rows. ActivationsCount is not a table column, so it never appears in
// license selects.
func (r *Repository) attachLiveCounts(ctx context.Context, licenses []models.License) error {
	if len(licenses) == 0 {
		return nil
	}

	ids := make([]uuid.UUID, len(licenses))
	for i, license := range licenses {
		ids[i] = license.ID
	}

	var rows []struct {
		LicenseID uuid.UUID
		Live      int64
	}
	if err := r.db.WithContext(ctx).Model(&models.Activation{}).
		Select("license_id, COUNT(*) AS live").
		Where("license_id IN ? AND deactivated_at IS NULL", ids).
		Group("license_id").
		Find(&rows).Error; err != nil {
		return err
	}

	counts := make(map[uuid.UUID]int64, len(rows))
	for _, row := range rows {
		counts[row.LicenseID] = row.Live
	}
	for i := range licenses {
		licenses[i].ActivationsCount = counts[licenses[i].ID]
	}
	return nil
}

// FirstOrCreate returns the key for (brandID, customerEmail), generating a
// fresh one when none exists. The plaintext key is returned only when a new
// row was created; existing ciphertext is not decrypted here.
func (r *Repository) FirstOrCreate(ctx context.Context, tx *gorm.DB, brandID uuid.UUID, customerEmail string) (*models.LicenseKey, string, bool, error) {
	conn := tx
	if conn == nil {
		conn = r.db.WithContext(ctx)
	}

	email := strings.ToLower(strings.TrimSpace(customerEmail))

	var existing models.LicenseKey
	err := conn.Where("brand_id = ? AND customer_email = ?", brandID, email).First(&existing).Error
	if err == nil {
		return &existing, "", false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, "", false, err
	}

	plain, err := keygen.Generate()
	if err != nil {
		return nil, "", false, err
	}

	row := models.LicenseKey{
		ID:            uuid.New(),
		BrandID:       brandID,
		CustomerEmail: email,
		Key:           r.codec.Encrypt(plain),
	}
	if err := conn.Create(&row).Error; err != nil {
		// Lost a concurrent create race; the winner's row is the key.
		if db.IsUniqueViolation(err, "ux_license_keys_brand_customer") {
			if ferr := conn.Where("brand_id = ? AND customer_email = ?", brandID, email).First(&existing).Error; ferr == nil {
				return &existing, "", false, nil
			}
		}
		return nil, "", false, err
	}
	return &row, plain, true, nil
}

// DecryptKey recovers the plaintext key for a stored ciphertext.
func (r *Repository) DecryptKey(ciphertext string) (string, error) {
	return r.codec.Decrypt(ciphertext)
}

func (r *Repository) ciphertextFor(rawKey string) (string, error) {
	normalized := keygen.Normalize(rawKey)
	if normalized == "" {
		return "", gorm.ErrRecordNotFound
	}
	return r.codec.Encrypt(normalized), nil
}
