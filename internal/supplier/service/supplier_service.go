package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/stockline/supplier-core/internal/supplier/entity"
	"github.com/stockline/supplier-core/internal/supplier/export"
	"github.com/stockline/supplier-core/internal/supplier/repository"
)

// Store is the persistence contract the service depends on. The service never
// touches SQL; everything relational lives behind this interface.
type Store interface {
	FindByID(ctx context.Context, id string) (*entity.Supplier, error)
	FindByCode(ctx context.Context, code string) (*entity.Supplier, error)
	CountByName(ctx context.Context, name, excludeID string) (int64, error)
	FindMany(ctx context.Context, filter entity.ListFilter) (*entity.SupplierPage, error)
	Search(ctx context.Context, text string, filter entity.ListFilter) (*entity.SupplierPage, error)
	Create(ctx context.Context, input *entity.CreateSupplierInput) (*entity.Supplier, error)
	CreateMany(ctx context.Context, inputs []entity.CreateSupplierInput) ([]entity.Supplier, error)
	Update(ctx context.Context, id string, input *entity.UpdateSupplierInput) (*entity.Supplier, error)
	Delete(ctx context.Context, id string) error
	GetPerformance(ctx context.Context, id string) (*entity.Performance, error)
	UpdateScores(ctx context.Context, id string, quality, delivery, price, service, overall float64) error
	GetMetrics(ctx context.Context) (*entity.Metrics, error)
	FindSimilar(ctx context.Context, id string) ([]entity.Supplier, error)
}

// Score weights for the overall rating recomputation.
const (
	qualityWeight  = 0.30
	deliveryWeight = 0.25
	priceWeight    = 0.25
	serviceWeight  = 0.20
)

// SupplierService enforces the business rules the store cannot express and
// orchestrates multi-step operations.
type SupplierService struct {
	store    Store
	exporter *export.Exporter
	logger   *zap.Logger
}

func NewSupplierService(store Store, exporter *export.Exporter, logger *zap.Logger) *SupplierService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SupplierService{store: store, exporter: exporter, logger: logger}
}

// GetSuppliers returns one page of suppliers matching the filter.
func (s *SupplierService) GetSuppliers(ctx context.Context, filter entity.ListFilter) (*entity.SupplierPage, error) {
	return s.store.FindMany(ctx, filter)
}

// GetSupplier loads a single supplier aggregate.
func (s *SupplierService) GetSupplier(ctx context.Context, id string) (*entity.Supplier, error) {
	return s.store.FindByID(ctx, id)
}

// CreateSupplier validates the payload, pre-checks uniqueness, repairs the
// primary flags and delegates to the store. All rule violations are reported
// together.
func (s *SupplierService) CreateSupplier(ctx context.Context, input *entity.CreateSupplierInput) (*entity.Supplier, error) {
	if input.Status == "" {
		input.Status = entity.StatusActive
	}

	result := validateSupplierData(input)
	nameCheck, err := s.checkNameUnique(ctx, input.Name, "")
	if err != nil {
		return nil, err
	}
	result.merge(nameCheck)
	if err := result.Err(); err != nil {
		return nil, err
	}

	if _, err := s.store.FindByCode(ctx, input.Code); err == nil {
		return nil, &ConflictError{Field: "code", Message: fmt.Sprintf("supplier code %s already exists", input.Code)}
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	normalizePrimaryFlags(input)
	created, err := s.store.Create(ctx, input)
	if err != nil {
		return nil, mapDuplicateCode(err, input.Code)
	}
	return created, nil
}

// mapDuplicateCode translates a unique-index violation that slipped past the
// pre-insert check into the same conflict the pre-check would have raised.
func mapDuplicateCode(err error, code string) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		msg := "supplier code already exists"
		if code != "" {
			msg = fmt.Sprintf("supplier code %s already exists", code)
		}
		return &ConflictError{Field: "code", Message: msg}
	}
	return err
}

// UpdateSupplier applies a partial update. Name uniqueness is only checked
// when the name actually changes; primary-flag rules only when the contact or
// address arrays are supplied.
func (s *SupplierService) UpdateSupplier(ctx context.Context, id string, input *entity.UpdateSupplierInput) (*entity.Supplier, error) {
	existing, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	result := validateUpdate(input)
	if input.Name != nil && *input.Name != existing.Name {
		nameCheck, err := s.checkNameUnique(ctx, *input.Name, id)
		if err != nil {
			return nil, err
		}
		result.merge(nameCheck)
	}
	if err := result.Err(); err != nil {
		return nil, err
	}

	return s.store.Update(ctx, id, input)
}

func validateUpdate(input *entity.UpdateSupplierInput) ValidationResult {
	result := ValidationResult{Valid: true}

	if input.Status != nil {
		r := ValidationResult{Valid: true}
		if !validStatus(*input.Status) {
			r.add("status", CodeInvalidStatus, fmt.Sprintf("unknown status %q", *input.Status))
		}
		result.merge(r)
	}
	if input.Tier != nil {
		r := ValidationResult{Valid: true}
		if !validTier(*input.Tier) {
			r.add("tier", CodeInvalidTier, fmt.Sprintf("unknown tier %q", *input.Tier))
		}
		result.merge(r)
	}
	if input.Contacts != nil {
		result.merge(validateContacts(*input.Contacts))
	}
	if input.Addresses != nil {
		result.merge(validateAddresses(*input.Addresses))
	}
	if input.FoundedYear != nil || input.TaxID != nil {
		b := entity.BusinessInfo{FoundedYear: input.FoundedYear}
		if input.TaxID != nil {
			b.TaxID = *input.TaxID
		}
		result.merge(validateBusinessInfo(&b))
	}
	return result
}

func validStatus(status string) bool {
	for _, s := range entity.ValidStatuses {
		if s == status {
			return true
		}
	}
	return false
}

func validTier(tier string) bool {
	for _, t := range entity.ValidTiers {
		if t == tier {
			return true
		}
	}
	return false
}

// checkNameUnique enforces the global name-uniqueness rule. There is no unique
// index on name backing this up, so a failing count must fail the operation
// rather than let a duplicate through.
func (s *SupplierService) checkNameUnique(ctx context.Context, name, excludeID string) (ValidationResult, error) {
	result := ValidationResult{Valid: true}
	if name == "" {
		return result, nil
	}
	count, err := s.store.CountByName(ctx, name, excludeID)
	if err != nil {
		return result, fmt.Errorf("checking name uniqueness: %w", err)
	}
	if count > 0 {
		result.add("name", CodeDuplicateName, fmt.Sprintf("supplier name %q is already taken", name))
	}
	return result, nil
}

// DeleteSupplier removes a supplier after the eligibility policy passes:
// strategic suppliers are never deletable and neither is a supplier with
// recorded order history. A failing performance lookup does not block the
// delete (fail open).
func (s *SupplierService) DeleteSupplier(ctx context.Context, id string) error {
	existing, err := s.store.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.canDeleteSupplier(ctx, existing); err != nil {
		return err
	}
	return s.store.Delete(ctx, id)
}

func (s *SupplierService) canDeleteSupplier(ctx context.Context, supplier *entity.Supplier) error {
	if supplier.Tier == entity.TierStrategic {
		return &PolicyError{Reason: "strategic suppliers cannot be deleted"}
	}

	perf, err := s.store.GetPerformance(ctx, supplier.ID)
	if err != nil {
		// Fail open: an unavailable performance record must not make the
		// supplier undeletable.
		s.logger.Warn("performance lookup failed during delete eligibility check, allowing delete",
			zap.String("supplier_id", supplier.ID), zap.Error(err))
		return nil
	}
	if perf.TotalOrders > 0 {
		return &PolicyError{Reason: fmt.Sprintf("supplier has %d recorded orders", perf.TotalOrders)}
	}
	return nil
}

// CreateManySuppliers validates the whole batch up front, including duplicate
// codes within the batch itself, and only then delegates. Validation failures
// abort before any write; once writing starts each item commits on its own,
// so a later item's failure leaves earlier items in place.
func (s *SupplierService) CreateManySuppliers(ctx context.Context, inputs []entity.CreateSupplierInput) ([]entity.Supplier, error) {
	seen := make(map[string]bool, len(inputs))
	for i := range inputs {
		if inputs[i].Status == "" {
			inputs[i].Status = entity.StatusActive
		}
		result := validateSupplierData(&inputs[i])
		nameCheck, err := s.checkNameUnique(ctx, inputs[i].Name, "")
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		result.merge(nameCheck)
		if err := result.Err(); err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}

		if seen[inputs[i].Code] {
			return nil, &ConflictError{Field: "code",
				Message: fmt.Sprintf("duplicate code %s within batch", inputs[i].Code)}
		}
		seen[inputs[i].Code] = true

		if _, err := s.store.FindByCode(ctx, inputs[i].Code); err == nil {
			return nil, &ConflictError{Field: "code",
				Message: fmt.Sprintf("supplier code %s already exists", inputs[i].Code)}
		} else if !errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}

		normalizePrimaryFlags(&inputs[i])
	}
	created, err := s.store.CreateMany(ctx, inputs)
	if err != nil {
		return created, mapDuplicateCode(err, "")
	}
	return created, nil
}

// UpdateItem pairs a supplier id with its partial update payload.
type UpdateItem struct {
	ID   string                     `json:"id" binding:"required"`
	Data entity.UpdateSupplierInput `json:"data"`
}

// UpdateManySuppliers validates every item before applying any of them. The
// apply phase is per-item: earlier committed updates survive a later failure.
func (s *SupplierService) UpdateManySuppliers(ctx context.Context, items []UpdateItem) ([]entity.Supplier, error) {
	for i := range items {
		existing, err := s.store.FindByID(ctx, items[i].ID)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		result := validateUpdate(&items[i].Data)
		if items[i].Data.Name != nil && *items[i].Data.Name != existing.Name {
			nameCheck, err := s.checkNameUnique(ctx, *items[i].Data.Name, items[i].ID)
			if err != nil {
				return nil, fmt.Errorf("item %d: %w", i, err)
			}
			result.merge(nameCheck)
		}
		if err := result.Err(); err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
	}

	updated := make([]entity.Supplier, 0, len(items))
	for i := range items {
		u, err := s.store.Update(ctx, items[i].ID, &items[i].Data)
		if err != nil {
			return updated, fmt.Errorf("item %d: %w", i, err)
		}
		updated = append(updated, *u)
	}
	return updated, nil
}

// DeleteManySuppliers checks every supplier's deletion eligibility before
// deleting any of them.
func (s *SupplierService) DeleteManySuppliers(ctx context.Context, ids []string) error {
	for _, id := range ids {
		existing, err := s.store.FindByID(ctx, id)
		if err != nil {
			return fmt.Errorf("supplier %s: %w", id, err)
		}
		if err := s.canDeleteSupplier(ctx, existing); err != nil {
			return fmt.Errorf("supplier %s: %w", id, err)
		}
	}
	for _, id := range ids {
		if err := s.store.Delete(ctx, id); err != nil {
			return fmt.Errorf("supplier %s: %w", id, err)
		}
	}
	return nil
}

// GetSupplierMetrics returns the platform rollup.
func (s *SupplierService) GetSupplierMetrics(ctx context.Context) (*entity.Metrics, error) {
	return s.store.GetMetrics(ctx)
}

// GetSupplierPerformance returns the scorecard for one supplier.
func (s *SupplierService) GetSupplierPerformance(ctx context.Context, id string) (*entity.Performance, error) {
	return s.store.GetPerformance(ctx, id)
}

// UpdateSupplierScores validates the individual ratings, recomputes the
// weighted overall rating and persists the set.
func (s *SupplierService) UpdateSupplierScores(ctx context.Context, id string, quality, delivery, price, service float64) error {
	result := ValidationResult{Valid: true}
	for field, v := range map[string]float64{
		"quality_rating":  quality,
		"delivery_rating": delivery,
		"price_rating":    price,
		"service_rating":  service,
	} {
		if v < 0 || v > 5 {
			result.add(field, CodeInvalidRating, fmt.Sprintf("%s must be between 0 and 5", field))
		}
	}
	if err := result.Err(); err != nil {
		return err
	}

	overall := quality*qualityWeight + delivery*deliveryWeight + price*priceWeight + service*serviceWeight
	return s.store.UpdateScores(ctx, id, quality, delivery, price, service, overall)
}

// SearchSuppliers is a free-text search over name, code and legal name.
func (s *SupplierService) SearchSuppliers(ctx context.Context, text string, filter entity.ListFilter) (*entity.SupplierPage, error) {
	return s.store.Search(ctx, text, filter)
}

// FindSimilarSuppliers returns suppliers sharing tier and category.
func (s *SupplierService) FindSimilarSuppliers(ctx context.Context, id string) ([]entity.Supplier, error) {
	return s.store.FindSimilar(ctx, id)
}

// ExportSuppliers renders all suppliers matching the request's filter into the
// requested format. An unsupported format fails before any row is fetched.
func (s *SupplierService) ExportSuppliers(ctx context.Context, req *export.Request) (*export.Result, error) {
	if err := export.CheckFormat(req.Format); err != nil {
		return nil, err
	}

	filter := req.Filter
	if filter.Limit < 1 || filter.Limit > export.MaxRecords {
		filter.Limit = export.MaxRecords
	}
	page, err := s.store.FindMany(ctx, filter)
	if err != nil {
		return nil, err
	}
	return s.exporter.Export(page.Suppliers, req)
}
