package activations

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/keyward/licensing-backend/internal/audit"
	"github.com/keyward/licensing-backend/pkg/db"
	"github.com/keyward/licensing-backend/pkg/db/models"
	"github.com/keyward/licensing-backend/pkg/enums"
	pkgerrors "github.com/keyward/licensing-backend/pkg/errors"
	"github.com/keyward/licensing-backend/pkg/keygen"
	"github.com/keyward/licensing-backend/pkg/logger"
	"github.com/keyward/licensing-backend/pkg/metrics"
)

type keysRepository interface {
	Resolve(ctx context.Context, rawKey, productSlug string) (*models.LicenseKey, error)
	ResolveWithLicenses(ctx context.Context, rawKey, productSlug string) (*models.LicenseKey, error)
}

type ledgerRepository interface {
	LiveByLicenseTx(tx *gorm.DB, licenseID uuid.UUID) ([]models.Activation, error)
	CreateTx(tx *gorm.DB, activation *models.Activation) error
	TombstoneTx(tx *gorm.DB, id uuid.UUID, at time.Time) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service exposes seat activation, deactivation, and status checks keyed by
// the raw license key that installed software presents.
type Service interface {
	Activate(ctx context.Context, input ActivateInput) (*models.Activation, error)
	Deactivate(ctx context.Context, input DeactivateInput) error
	CheckStatus(ctx context.Context, rawKey, productSlug string) (*StatusProjection, error)
}

// ActivateInput identifies the seat being claimed.
type ActivateInput struct {
	LicenseKey   string
	ProductSlug  string
	Fingerprint  string
	PlatformInfo *string
}

// DeactivateInput identifies the seat being released.
type DeactivateInput struct {
	LicenseKey  string
	ProductSlug string
	Fingerprint string
}

type service struct {
	tx      txRunner
	keys    keysRepository
	repo    ledgerRepository
	cache   *StatusCache
	audit   audit.Emitter
	metrics *metrics.LicensingMetrics
	logg    *logger.Logger
	now     func() time.Time
}

// NewService builds the activation service.
func NewService(tx txRunner, keys keysRepository, repo ledgerRepository, cache *StatusCache, auditor audit.Emitter, m *metrics.LicensingMetrics, logg *logger.Logger) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if keys == nil {
		return nil, fmt.Errorf("license key repository required")
	}
	if repo == nil {
		return nil, fmt.Errorf("activation repository required")
	}
	if cache == nil {
		return nil, fmt.Errorf("status cache required")
	}
	if auditor == nil {
		auditor = audit.NoopEmitter{}
	}
	return &service{
		tx:      tx,
		keys:    keys,
		repo:    repo,
		cache:   cache,
		audit:   auditor,
		metrics: m,
		logg:    logg,
		now:     time.Now,
	}, nil
}

func (s *service) Activate(ctx context.Context, input ActivateInput) (*models.Activation, error) {
	normalized := keygen.Normalize(input.LicenseKey)
	slug := strings.TrimSpace(input.ProductSlug)
	fingerprint := strings.TrimSpace(input.Fingerprint)
	if normalized == "" || slug == "" || fingerprint == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "license_key, product_slug and fingerprint are required")
	}

	key, err := s.resolveKey(ctx, normalized, slug)
	if err != nil {
		s.metrics.IncActivation("key_not_found")
		return nil, err
	}

	var activation *models.Activation
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		license, err := findLicenseForUpdate(tx, key.ID, slug)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "no license for this product")
			}
			return err
		}

		if !license.IsValid(s.now()) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("license is %s", effectiveStatus(license, s.now()))).
				WithDetails(map[string]any{"status": string(effectiveStatus(license, s.now()))})
		}

		live, err := s.repo.LiveByLicenseTx(tx, license.ID)
		if err != nil {
			return err
		}
		for _, row := range live {
			if row.Fingerprint == fingerprint {
				return pkgerrors.New(pkgerrors.CodeConflict, "fingerprint already activated")
			}
		}
		if len(live) >= license.MaxSeats {
			return pkgerrors.New(pkgerrors.CodeSeatLimit, "all seats are in use").
				WithDetails(map[string]any{"max_seats": license.MaxSeats})
		}

		activation = &models.Activation{
			ID:           uuid.New(),
			LicenseID:    license.ID,
			Fingerprint:  fingerprint,
			PlatformInfo: input.PlatformInfo,
		}
		return s.repo.CreateTx(tx, activation)
	})
	if err != nil {
		return nil, s.mapLedgerError(err, "activate")
	}

	s.metrics.IncActivation("ok")
	s.cache.Invalidate(ctx, normalized)
	s.audit.Emit(ctx, audit.Entry{
		Event:      enums.AuditEventCreated,
		Action:     "activate",
		ActorType:  enums.ActorTypeCustomer,
		ObjectType: "activation",
		ObjectID:   activation.ID.String(),
		Metadata: map[string]any{
			"license_id":  activation.LicenseID.String(),
			"fingerprint": fingerprint,
		},
	})
	return activation, nil
}

func (s *service) Deactivate(ctx context.Context, input DeactivateInput) error {
	normalized := keygen.Normalize(input.LicenseKey)
	slug := strings.TrimSpace(input.ProductSlug)
	fingerprint := strings.TrimSpace(input.Fingerprint)
	if normalized == "" || slug == "" || fingerprint == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "license_key, product_slug and fingerprint are required")
	}

	key, err := s.resolveKey(ctx, normalized, slug)
	if err != nil {
		s.metrics.IncDeactivation("key_not_found")
		return err
	}

	var released uuid.UUID
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		license, err := findLicenseForUpdate(tx, key.ID, slug)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "no license for this product")
			}
			return err
		}

		live, err := s.repo.LiveByLicenseTx(tx, license.ID)
		if err != nil {
			return err
		}
		for _, row := range live {
			if row.Fingerprint == fingerprint {
				released = row.ID
				return s.repo.TombstoneTx(tx, row.ID, s.now())
			}
		}
		return pkgerrors.New(pkgerrors.CodeNotFound, "no active seat for this fingerprint")
	})
	if err != nil {
		return s.mapLedgerError(err, "deactivate")
	}

	s.metrics.IncDeactivation("ok")
	s.cache.Invalidate(ctx, normalized)
	s.audit.Emit(ctx, audit.Entry{
		Event:      enums.AuditEventDeleted,
		Action:     "deactivate",
		ActorType:  enums.ActorTypeCustomer,
		ObjectType: "activation",
		ObjectID:   released.String(),
		Metadata: map[string]any{
			"fingerprint": fingerprint,
		},
	})
	return nil
}

func (s *service) CheckStatus(ctx context.Context, rawKey, productSlug string) (*StatusProjection, error) {
	started := s.now()
	defer func() {
		s.metrics.ObserveCheckDuration(time.Since(started))
	}()

	normalized := keygen.Normalize(rawKey)
	if normalized == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "license_key is required")
	}
	slug := strings.TrimSpace(productSlug)

	if payload, ok := s.cache.Get(ctx, normalized); ok {
		var cached StatusProjection
		if err := json.Unmarshal([]byte(payload), &cached); err == nil {
			return &cached, nil
		}
		// Unreadable payload; fall through and recompute.
		s.cache.Invalidate(ctx, normalized)
	}

	key, err := s.keys.ResolveWithLicenses(ctx, normalized, slug)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "license key not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve license key")
	}

	projection := buildProjection(key, s.now())
	if payload, err := json.Marshal(projection); err == nil {
		s.cache.Put(ctx, normalized, string(payload))
	}
	return projection, nil
}

func (s *service) resolveKey(ctx context.Context, normalized, slug string) (*models.LicenseKey, error) {
	key, err := s.keys.Resolve(ctx, normalized, slug)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "license key not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve license key")
	}
	return key, nil
}

func (s *service) mapLedgerError(err error, action string) error {
	if typed := pkgerrors.As(err); typed != nil {
		switch typed.Code() {
		case pkgerrors.CodeSeatLimit:
			s.metrics.IncSeatLimitRejection()
			s.metrics.IncActivation("seat_limit")
		case pkgerrors.CodeConflict:
			s.metrics.IncActivation("conflict")
		case pkgerrors.CodeStateConflict:
			s.metrics.IncActivation("invalid_state")
		}
		return typed
	}
	if db.IsLockTimeout(err) {
		s.metrics.IncActivation("busy")
		return pkgerrors.Wrap(pkgerrors.CodeBusy, err, "license row is locked")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, action)
}

// findLicenseForUpdate loads the license for (key, product slug) holding a
// row lock for the rest of the transaction. Postgres takes FOR UPDATE OF
// licenses; sqlite (tests) serializes writers on its own.
func findLicenseForUpdate(tx *gorm.DB, keyID uuid.UUID, slug string) (*models.License, error) {
	query := tx.Model(&models.License{}).
		Joins("JOIN products ON products.id = licenses.product_id").
		Where("licenses.license_key_id = ? AND products.slug = ?", keyID, slug)
	if tx.Dialector.Name() == "postgres" {
		query = query.Clauses(clause.Locking{
			Strength: "UPDATE",
			Table:    clause.Table{Name: "licenses"},
		})
	}

	var row models.License
	if err := query.First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// effectiveStatus folds derived expiry into the reported status so rejection
// messages say "expired" even while the column still reads "active".
func effectiveStatus(license *models.License, now time.Time) enums.LicenseStatus {
	if license.Status == enums.LicenseStatusActive &&
		license.ExpiresAt != nil && !license.ExpiresAt.After(now) {
		return enums.LicenseStatusExpired
	}
	return license.Status
}
