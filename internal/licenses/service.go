package licenses

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/keyward/licensing-backend/internal/audit"
	"github.com/keyward/licensing-backend/internal/notify"
	"github.com/keyward/licensing-backend/pkg/db/models"
	"github.com/keyward/licensing-backend/pkg/enums"
	pkgerrors "github.com/keyward/licensing-backend/pkg/errors"
	"github.com/keyward/licensing-backend/pkg/keygen"
	"github.com/keyward/licensing-backend/pkg/logger"
	pkgpagination "github.com/keyward/licensing-backend/pkg/pagination"
)

// MaxProvisionBatch caps how many products one provisioning call may grant.
const MaxProvisionBatch = 10

type licenseKeysRepository interface {
	FirstOrCreate(ctx context.Context, tx *gorm.DB, brandID uuid.UUID, customerEmail string) (*models.LicenseKey, string, bool, error)
	DecryptKey(ciphertext string) (string, error)
}

type productsRepository interface {
	FindBySlugTx(tx *gorm.DB, brandID uuid.UUID, slug string) (*models.Product, error)
}

type licensesRepository interface {
	FindForBrand(ctx context.Context, brandID, licenseID uuid.UUID) (*models.License, error)
	Save(ctx context.Context, license *models.License) error
	UpsertTx(tx *gorm.DB, license *models.License) error
	List(ctx context.Context, opts listQuery) ([]models.License, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type statusCacheInvalidator interface {
	InvalidateCiphertext(ctx context.Context, keyCiphertext string)
}

// Service exposes provisioning, lifecycle, and listing semantics for brand
// license management.
type Service interface {
	Provision(ctx context.Context, brand *models.Brand, input ProvisionInput) (*ProvisionResult, error)
	UpdateStatus(ctx context.Context, brandID, licenseID uuid.UUID, action enums.LicenseAction, expiresAt *time.Time) (*models.License, error)
	Fetch(ctx context.Context, params ListParams) (*ListResult, error)
}

type service struct {
	tx       txRunner
	keys     licenseKeysRepository
	products productsRepository
	repo     licensesRepository
	cache    statusCacheInvalidator
	audit    audit.Emitter
	notify   notify.Sink
	logg     *logger.Logger
}

// ProductGrant describes one product entitlement within a provisioning call.
type ProductGrant struct {
	Slug      string
	MaxSeats  int
	ExpiresAt *time.Time
}

// ProvisionInput holds the inputs of one provisioning call.
type ProvisionInput struct {
	CustomerEmail string
	Grants        []ProductGrant
}

// ProvisionResult reports the outcome of a provisioning call. LicenseKey
// always carries the formatted plaintext; existing keys are recovered from
// stored ciphertext through the deterministic codec.
type ProvisionResult struct {
	LicenseKey    string   `json:"license_key"`
	KeyCreated    bool     `json:"key_created"`
	CustomerEmail string   `json:"customer_email"`
	Products      []string `json:"products"`
}

// NewService builds the license service backed by the provided dependencies.
func NewService(tx txRunner, keys licenseKeysRepository, productsRepo productsRepository, repo licensesRepository, cache statusCacheInvalidator, auditor audit.Emitter, sink notify.Sink, logg *logger.Logger) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if keys == nil {
		return nil, fmt.Errorf("license key repository required")
	}
	if productsRepo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if repo == nil {
		return nil, fmt.Errorf("license repository required")
	}
	if cache == nil {
		return nil, fmt.Errorf("status cache required")
	}
	if auditor == nil {
		auditor = audit.NoopEmitter{}
	}
	if sink == nil {
		sink = notify.NewLogSink(logg)
	}
	return &service{
		tx:       tx,
		keys:     keys,
		products: productsRepo,
		repo:     repo,
		cache:    cache,
		audit:    auditor,
		notify:   sink,
		logg:     logg,
	}, nil
}

func (s *service) Provision(ctx context.Context, brand *models.Brand, input ProvisionInput) (*ProvisionResult, error) {
	if brand == nil || brand.ID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "brand identity missing")
	}
	email := strings.ToLower(strings.TrimSpace(input.CustomerEmail))
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer_email is required")
	}
	if len(input.Grants) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one product is required")
	}
	if len(input.Grants) > MaxProvisionBatch {
		return nil, pkgerrors.New(pkgerrors.CodeBatchLimit, "too many products in one call").
			WithDetails(map[string]any{"max": MaxProvisionBatch, "got": len(input.Grants)})
	}

	var (
		key          *models.LicenseKey
		plainKey     string
		keyCreated   bool
		productNames []string
	)

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		key, plainKey, keyCreated, err = s.keys.FirstOrCreate(ctx, tx, brand.ID, email)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve license key")
		}
		if !keyCreated {
			if plainKey, err = s.keys.DecryptKey(key.Key); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "recover license key")
			}
		}

		for _, grant := range input.Grants {
			slug := strings.TrimSpace(grant.Slug)
			if slug == "" {
				return pkgerrors.New(pkgerrors.CodeValidation, "product slug is required")
			}

			product, err := s.products.FindBySlugTx(tx, brand.ID, slug)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("product %q not found", slug)).
						WithDetails(map[string]any{"product_slug": slug})
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup product")
			}

			seats := grant.MaxSeats
			if seats <= 0 {
				seats = 1
			}
			license := models.License{
				LicenseKeyID: key.ID,
				ProductID:    product.ID,
				Status:       enums.LicenseStatusActive,
				MaxSeats:     seats,
				ExpiresAt:    grant.ExpiresAt,
			}
			if err := s.repo.UpsertTx(tx, &license); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "upsert license")
			}
			productNames = append(productNames, product.Name)
		}
		return nil
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			return nil, typed
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "provision licenses")
	}

	s.afterProvision(ctx, brand, key, plainKey, keyCreated, email, productNames)

	return &ProvisionResult{
		LicenseKey:    keygen.Format(plainKey),
		KeyCreated:    keyCreated,
		CustomerEmail: email,
		Products:      productNames,
	}, nil
}

// afterProvision runs the post-commit side effects: cache invalidation, audit
// trail, and customer notification. None of them can fail the call.
func (s *service) afterProvision(ctx context.Context, brand *models.Brand, key *models.LicenseKey, plainKey string, keyCreated bool, email string, productNames []string) {
	s.cache.InvalidateCiphertext(ctx, key.Key)

	s.audit.Emit(ctx, audit.Entry{
		Event:      enums.AuditEventCreated,
		Action:     "provision",
		ActorType:  enums.ActorTypeBrand,
		ActorID:    actorID(brand.ID),
		ObjectType: "license_key",
		ObjectID:   key.ID.String(),
		Metadata: map[string]any{
			"customer_email": email,
			"products":       productNames,
			"key_created":    keyCreated,
		},
	})

	msg := notify.Message{
		CustomerEmail: email,
		LicenseKey:    keygen.Format(plainKey),
		BrandName:     brand.Name,
		ProductNames:  productNames,
	}
	go func() {
		dispatchCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.notify.NotifyNewLicenseKey(dispatchCtx, msg); err != nil && s.logg != nil {
			s.logg.Error(dispatchCtx, "dispatch license key notification", err)
		}
	}()
}

func (s *service) UpdateStatus(ctx context.Context, brandID, licenseID uuid.UUID, action enums.LicenseAction, expiresAt *time.Time) (*models.License, error) {
	if brandID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "brand identity missing")
	}
	if licenseID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "license id is required")
	}

	license, err := s.repo.FindForBrand(ctx, brandID, licenseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "license not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup license")
	}

	if err := ApplyAction(license, action, expiresAt); err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, license); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save license")
	}

	if license.LicenseKey != nil {
		s.cache.InvalidateCiphertext(ctx, license.LicenseKey.Key)
	}
	s.audit.Emit(ctx, audit.Entry{
		Event:      enums.AuditEventUpdated,
		Action:     string(action),
		ActorType:  enums.ActorTypeBrand,
		ActorID:    actorID(brandID),
		ObjectType: "license",
		ObjectID:   license.ID.String(),
		Metadata: map[string]any{
			"status": string(license.Status),
		},
	})
	return license, nil
}

func (s *service) Fetch(ctx context.Context, params ListParams) (*ListResult, error) {
	if params.BrandID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "brand identity missing")
	}

	limit := pkgpagination.NormalizeLimit(params.Limit)
	query := listQuery{
		brandID:       params.BrandID,
		customerEmail: strings.ToLower(strings.TrimSpace(params.CustomerEmail)),
		limit:         pkgpagination.LimitWithBuffer(params.Limit),
	}
	if params.Cursor != "" {
		cursor, err := pkgpagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.cursor = cursor
	}

	rows, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list licenses")
	}

	nextCursor := ""
	if len(rows) > limit {
		nextCursor = pkgpagination.EncodeCursor(pkgpagination.Cursor{
			CreatedAt: rows[limit].CreatedAt,
			ID:        rows[limit].ID,
		})
		rows = rows[:limit]
	}

	items := make([]ListItem, len(rows))
	for i, row := range rows {
		items[i] = toListItem(row)
	}
	return &ListResult{Items: items, Cursor: nextCursor}, nil
}

func actorID(id uuid.UUID) *string {
	s := id.String()
	return &s
}
