package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/stockline/supplier-core/internal/supplier/entity"
)

var (
	ErrNotFound = errors.New("record not found")
)

const defaultPageSize = 20

// SupplierRepository owns all SQL for the supplier aggregate: the suppliers
// row, the overflow profile and the contact/address/performance relations.
// The schema descriptor is fixed at construction; methods branch on it
// instead of probing the database per call.
type SupplierRepository struct {
	db     *gorm.DB
	schema Schema
	logger *zap.Logger
}

func NewSupplierRepository(db *gorm.DB, schema Schema, logger *zap.Logger) *SupplierRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SupplierRepository{db: db, schema: schema, logger: logger}
}

// Schema returns the descriptor the repository was constructed with.
func (r *SupplierRepository) Schema() Schema {
	return r.schema
}

// FindByID loads and reconciles one supplier aggregate.
func (r *SupplierRepository) FindByID(ctx context.Context, id string) (*entity.Supplier, error) {
	var row SupplierRow
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	suppliers := r.assemble(ctx, []SupplierRow{row})
	return &suppliers[0], nil
}

// FindByCode loads a supplier by its unique code.
func (r *SupplierRepository) FindByCode(ctx context.Context, code string) (*entity.Supplier, error) {
	var row SupplierRow
	err := r.db.WithContext(ctx).Where("code = ?", code).Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	suppliers := r.assemble(ctx, []SupplierRow{row})
	return &suppliers[0], nil
}

// CountByName counts suppliers with the given name, case-insensitively,
// optionally excluding one id. Used by the service for uniqueness checks.
func (r *SupplierRepository) CountByName(ctx context.Context, name, excludeID string) (int64, error) {
	q := r.db.WithContext(ctx).Model(&SupplierRow{}).Where("LOWER(name) = LOWER(?)", name)
	if excludeID != "" {
		q = q.Where("id <> ?", excludeID)
	}
	var count int64
	err := q.Count(&count).Error
	return count, err
}

// FindMany returns one page of reconciled aggregates. The total is computed
// with a separate count over the same predicates but without the relation
// loads, so contact/address fanout can never skew it.
func (r *SupplierRepository) FindMany(ctx context.Context, filter entity.ListFilter) (*entity.SupplierPage, error) {
	page := filter.Page
	if page < 1 {
		page = 1
	}
	limit := filter.Limit
	if limit < 1 {
		limit = defaultPageSize
	}

	var total int64
	if err := r.filtered(r.db.WithContext(ctx).Model(&SupplierRow{}), filter).Count(&total).Error; err != nil {
		return nil, err
	}

	var rows []SupplierRow
	err := r.filtered(r.db.WithContext(ctx).Model(&SupplierRow{}), filter).
		Order("name ASC").
		Limit(limit).
		Offset((page - 1) * limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	totalPages := int(total) / limit
	if int(total)%limit > 0 {
		totalPages++
	}

	return &entity.SupplierPage{
		Suppliers:  r.assemble(ctx, rows),
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: totalPages,
	}, nil
}

// Search is FindMany with the free-text predicate set.
func (r *SupplierRepository) Search(ctx context.Context, text string, filter entity.ListFilter) (*entity.SupplierPage, error) {
	filter.Search = text
	return r.FindMany(ctx, filter)
}

func (r *SupplierRepository) filtered(q *gorm.DB, f entity.ListFilter) *gorm.DB {
	if f.Search != "" {
		pattern := "%" + f.Search + "%"
		legal := "suppliers.profile->>'legal_name'"
		if r.schema.HasColumn("legal_name") {
			legal = "COALESCE(NULLIF(suppliers.legal_name, ''), suppliers.profile->>'legal_name')"
		}
		q = q.Where("suppliers.name ILIKE ? OR suppliers.code ILIKE ? OR "+legal+" ILIKE ?",
			pattern, pattern, pattern)
	}

	statuses := f.Statuses
	if len(statuses) == 0 {
		statuses = []string{entity.StatusActive}
	}
	q = q.Where("suppliers.status IN ?", statuses)

	if len(f.Tiers) > 0 {
		q = q.Where(r.schema.TierExpr()+" IN ?", f.Tiers)
	}
	if len(f.Categories) > 0 {
		q = q.Where("suppliers.category IN ?", f.Categories)
	}
	return q
}

// Create persists the aggregate in one transaction: core row, contacts and
// addresses as single multi-row inserts, a zeroed performance row, and the
// default processing profile (a conflicting existing profile is a no-op). The
// returned aggregate is reloaded from the store, not echoed from memory.
func (r *SupplierRepository) Create(ctx context.Context, input *entity.CreateSupplierInput) (*entity.Supplier, error) {
	id := uuid.New().String()[:32]
	now := time.Now()

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		overflow := buildOverflow(input, r.schema)
		row, err := newSupplierRow(id, input, overflow, r.schema, now)
		if err != nil {
			return err
		}
		if err := r.insertCore(tx, row); err != nil {
			return err
		}

		if !r.schema.HasRelations {
			return nil
		}

		if contacts := contactRows(id, input.Contacts, now); len(contacts) > 0 {
			if err := tx.Create(&contacts).Error; err != nil {
				return err
			}
		}
		if addresses := addressRows(id, input.Addresses, now); len(addresses) > 0 {
			if err := tx.Create(&addresses).Error; err != nil {
				return err
			}
		}

		perf := entity.Performance{SupplierID: id, UpdatedAt: now}
		if err := tx.Create(&perf).Error; err != nil {
			return err
		}

		profile := entity.ProcessingProfile{
			SupplierID:           id,
			AutoApproveThreshold: 0.85,
			MatchingMode:         "fuzzy",
			CreatedAt:            now,
		}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&profile).Error
	})
	if err != nil {
		return nil, err
	}
	return r.FindByID(ctx, id)
}

// CreateMany runs the single-item create path sequentially so each item sees
// the side effects of the ones before it. Each item is its own transaction:
// a later failure does not roll back earlier committed items.
func (r *SupplierRepository) CreateMany(ctx context.Context, inputs []entity.CreateSupplierInput) ([]entity.Supplier, error) {
	created := make([]entity.Supplier, 0, len(inputs))
	for i := range inputs {
		s, err := r.Create(ctx, &inputs[i])
		if err != nil {
			return created, fmt.Errorf("creating supplier %q: %w", inputs[i].Code, err)
		}
		created = append(created, *s)
	}
	return created, nil
}

// Update applies a partial update. Fields with a real column in this
// deployment are written there; the rest are merged into the overflow profile
// without disturbing untouched keys. Supplied contact/address sets replace the
// stored ones wholesale.
func (r *SupplierRepository) Update(ctx context.Context, id string, input *entity.UpdateSupplierInput) (*entity.Supplier, error) {
	var row SupplierRow
	if err := r.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	colUpdates := map[string]interface{}{}
	overflowUpdates := entity.JSONB{}
	route := func(col, key string, v interface{}) {
		if r.schema.HasColumn(col) {
			colUpdates[col] = v
		} else {
			overflowUpdates[key] = v
		}
	}

	if input.Name != nil {
		colUpdates["name"] = *input.Name
	}
	if input.Status != nil {
		colUpdates["status"] = *input.Status
	}
	if input.Category != nil {
		colUpdates["category"] = *input.Category
	}
	if input.Subcategory != nil {
		route("subcategory", "subcategory", *input.Subcategory)
	}
	if input.Tier != nil {
		route("tier", "tier", *input.Tier)
	}
	if input.LegalName != nil {
		route("legal_name", "legal_name", *input.LegalName)
	}
	if input.TradingName != nil {
		route("trading_name", "trading_name", *input.TradingName)
	}
	if input.TaxID != nil {
		route("tax_id", "tax_id", *input.TaxID)
	}
	if input.RegistrationNumber != nil {
		route("registration_number", "registration_number", *input.RegistrationNumber)
	}
	if input.Website != nil {
		route("website", "website", *input.Website)
	}
	if input.FoundedYear != nil {
		route("founded_year", "founded_year", *input.FoundedYear)
	}
	if input.EmployeeCount != nil {
		route("employee_count", "employee_count", *input.EmployeeCount)
	}
	if input.AnnualRevenue != nil {
		route("annual_revenue", "annual_revenue", *input.AnnualRevenue)
	}
	if input.Currency != nil {
		route("currency", "currency", *input.Currency)
	}
	if input.Notes != nil {
		route("notes", "notes", *input.Notes)
	}
	if input.Tags != nil {
		if r.schema.HasColumn("tags") {
			colUpdates["tags"] = tagsArray(*input.Tags)
		} else {
			overflowUpdates["tags"] = *input.Tags
		}
	}

	// Deployments without relation tables keep the primary contact and
	// address in the overflow profile, so a replacement has to land there
	// too instead of being dropped.
	if !r.schema.HasRelations {
		var contacts []entity.Contact
		var addresses []entity.Address
		if input.Contacts != nil {
			contacts = *input.Contacts
		}
		if input.Addresses != nil {
			addresses = *input.Addresses
		}
		foldRelations(overflowUpdates, contacts, addresses)
	}

	if len(overflowUpdates) > 0 {
		merged := mergeOverflow(parseOverflow(row.Profile), overflowUpdates)
		colUpdates["profile"] = merged
	}
	colUpdates["updated_at"] = time.Now()

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&SupplierRow{}).Where("id = ?", id).Updates(colUpdates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}

		if !r.schema.HasRelations {
			return nil
		}
		now := time.Now()
		if input.Contacts != nil {
			if err := tx.Where("supplier_id = ?", id).Delete(&entity.Contact{}).Error; err != nil {
				return err
			}
			if rows := contactRows(id, *input.Contacts, now); len(rows) > 0 {
				if err := tx.Create(&rows).Error; err != nil {
					return err
				}
			}
		}
		if input.Addresses != nil {
			if err := tx.Where("supplier_id = ?", id).Delete(&entity.Address{}).Error; err != nil {
				return err
			}
			if rows := addressRows(id, *input.Addresses, now); len(rows) > 0 {
				if err := tx.Create(&rows).Error; err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r.FindByID(ctx, id)
}

// Delete removes the aggregate in one transaction: performance, then
// contacts, then addresses, then the core row. A missing core row is
// ErrNotFound.
func (r *SupplierRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if r.schema.HasRelations {
			if err := tx.Where("supplier_id = ?", id).Delete(&entity.Performance{}).Error; err != nil {
				return err
			}
			if err := tx.Where("supplier_id = ?", id).Delete(&entity.Contact{}).Error; err != nil {
				return err
			}
			if err := tx.Where("supplier_id = ?", id).Delete(&entity.Address{}).Error; err != nil {
				return err
			}
			if err := tx.Where("supplier_id = ?", id).Delete(&entity.ProcessingProfile{}).Error; err != nil {
				return err
			}
		}
		res := tx.Where("id = ?", id).Delete(&SupplierRow{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// GetPerformance returns the performance row for one supplier.
func (r *SupplierRepository) GetPerformance(ctx context.Context, id string) (*entity.Performance, error) {
	if !r.schema.HasRelations {
		return nil, fmt.Errorf("performance data not available in %s schema", r.schema.Variant)
	}
	var perf entity.Performance
	err := r.db.WithContext(ctx).Where("supplier_id = ?", id).Take(&perf).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &perf, nil
}

// UpdateScores writes a new set of ratings onto the performance row.
func (r *SupplierRepository) UpdateScores(ctx context.Context, id string, quality, delivery, price, service, overall float64) error {
	if !r.schema.HasRelations {
		return fmt.Errorf("performance data not available in %s schema", r.schema.Variant)
	}
	res := r.db.WithContext(ctx).
		Model(&entity.Performance{}).
		Where("supplier_id = ?", id).
		Updates(map[string]interface{}{
			"quality_rating":  quality,
			"delivery_rating": delivery,
			"price_rating":    price,
			"service_rating":  service,
			"overall_rating":  overall,
			"updated_at":      time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// GetMetrics computes the platform rollup in one aggregate query. Suppliers
// without a performance row contribute zero via coalescing rather than being
// excluded.
func (r *SupplierRepository) GetMetrics(ctx context.Context) (*entity.Metrics, error) {
	tier := r.schema.TierExpr()
	var m entity.Metrics
	var query string
	if r.schema.HasRelations {
		query = fmt.Sprintf(`SELECT
	COUNT(*) AS total_suppliers,
	COUNT(*) FILTER (WHERE suppliers.status = 'active') AS active_suppliers,
	COUNT(*) FILTER (WHERE suppliers.status = 'pending') AS pending_suppliers,
	COUNT(*) FILTER (WHERE %s = 'strategic') AS strategic_suppliers,
	COALESCE(AVG(COALESCE(p.overall_rating, 0)), 0) AS average_rating,
	COALESCE(AVG(COALESCE(p.on_time_delivery_rate, 0)), 0) AS average_delivery_rate
FROM suppliers
LEFT JOIN supplier_performance p ON p.supplier_id = suppliers.id`, tier)
	} else {
		query = fmt.Sprintf(`SELECT
	COUNT(*) AS total_suppliers,
	COUNT(*) FILTER (WHERE suppliers.status = 'active') AS active_suppliers,
	COUNT(*) FILTER (WHERE suppliers.status = 'pending') AS pending_suppliers,
	COUNT(*) FILTER (WHERE %s = 'strategic') AS strategic_suppliers,
	0 AS average_rating,
	0 AS average_delivery_rate
FROM suppliers`, tier)
	}
	if err := r.db.WithContext(ctx).Raw(query).Scan(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// FindSimilar returns up to five suppliers sharing the subject's tier and
// category, excluding the subject itself.
func (r *SupplierRepository) FindSimilar(ctx context.Context, id string) ([]entity.Supplier, error) {
	subject, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	var rows []SupplierRow
	err = r.db.WithContext(ctx).
		Where("id <> ?", id).
		Where("category = ?", subject.Category).
		Where(r.schema.TierExpr()+" = ?", subject.Tier).
		Order("name ASC").
		Limit(5).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return r.assemble(ctx, rows), nil
}

// assemble reconciles rows into aggregates and attaches relations with three
// batched lookups. A failed relation lookup is recovered by synthesizing from
// the overflow profile; persisted rows always win over synthesized ones.
func (r *SupplierRepository) assemble(ctx context.Context, rows []SupplierRow) []entity.Supplier {
	suppliers := make([]entity.Supplier, len(rows))
	if len(rows) == 0 {
		return suppliers
	}

	ids := make([]string, len(rows))
	for i := range rows {
		suppliers[i] = *reconcile(&rows[i])
		ids[i] = rows[i].ID
	}

	contactsByID := map[string][]entity.Contact{}
	addressesByID := map[string][]entity.Address{}
	perfByID := map[string]*entity.Performance{}

	if r.schema.HasRelations {
		var contacts []entity.Contact
		if err := r.db.WithContext(ctx).
			Where("supplier_id IN ?", ids).
			Order("is_primary DESC, created_at ASC").
			Find(&contacts).Error; err != nil {
			r.logger.Warn("contact lookup failed, falling back to profile fields", zap.Error(err))
		} else {
			for _, c := range contacts {
				contactsByID[c.SupplierID] = append(contactsByID[c.SupplierID], c)
			}
		}

		var addresses []entity.Address
		if err := r.db.WithContext(ctx).
			Where("supplier_id IN ?", ids).
			Order("is_primary DESC, created_at ASC").
			Find(&addresses).Error; err != nil {
			r.logger.Warn("address lookup failed, falling back to profile fields", zap.Error(err))
		} else {
			for _, a := range addresses {
				addressesByID[a.SupplierID] = append(addressesByID[a.SupplierID], a)
			}
		}

		var perfs []entity.Performance
		if err := r.db.WithContext(ctx).
			Where("supplier_id IN ?", ids).
			Find(&perfs).Error; err != nil {
			r.logger.Warn("performance lookup failed", zap.Error(err))
		} else {
			for i := range perfs {
				perfByID[perfs[i].SupplierID] = &perfs[i]
			}
		}
	}

	for i := range suppliers {
		id := suppliers[i].ID
		suppliers[i].Contacts = contactsByID[id]
		suppliers[i].Addresses = addressesByID[id]
		suppliers[i].Performance = perfByID[id]
		if len(suppliers[i].Contacts) == 0 {
			suppliers[i].Contacts = synthesizeContacts(id, parseOverflow(rows[i].Profile))
		}
		if len(suppliers[i].Addresses) == 0 {
			suppliers[i].Addresses = synthesizeAddresses(id, parseOverflow(rows[i].Profile))
		}
	}
	return suppliers
}

// newSupplierRow materializes the insertable row: promoted fields go to their
// columns, the rest ride in the overflow profile.
func newSupplierRow(id string, input *entity.CreateSupplierInput, overflow entity.JSONB, sch Schema, now time.Time) (*SupplierRow, error) {
	profile, err := json.Marshal(overflow)
	if err != nil {
		return nil, err
	}

	row := &SupplierRow{
		ID:        id,
		Name:      input.Name,
		Code:      input.Code,
		Status:    input.Status,
		Category:  input.Category,
		Profile:   profile,
		CreatedAt: now,
		UpdatedAt: now,
	}

	setStr := func(col string, dst **string, v string) {
		if sch.HasColumn(col) && v != "" {
			s := v
			*dst = &s
		}
	}
	setStr("subcategory", &row.Subcategory, input.Subcategory)
	setStr("tier", &row.Tier, input.Tier)
	setStr("legal_name", &row.LegalName, input.Business.LegalName)
	setStr("trading_name", &row.TradingName, input.Business.TradingName)
	setStr("tax_id", &row.TaxID, input.Business.TaxID)
	setStr("registration_number", &row.RegistrationNumber, input.Business.RegistrationNumber)
	setStr("website", &row.Website, input.Business.Website)
	setStr("currency", &row.Currency, input.Business.Currency)
	setStr("notes", &row.Notes, input.Notes)

	if sch.HasColumn("founded_year") && input.Business.FoundedYear != nil {
		row.FoundedYear = input.Business.FoundedYear
	}
	if sch.HasColumn("employee_count") && input.Business.EmployeeCount != nil {
		row.EmployeeCount = input.Business.EmployeeCount
	}
	if sch.HasColumn("annual_revenue") && input.Business.AnnualRevenue != nil {
		row.AnnualRevenue = input.Business.AnnualRevenue
	}
	if sch.HasColumn("tags") && len(input.Tags) > 0 {
		row.Tags = tagsArray(input.Tags)
	}
	return row, nil
}

// insertCore writes the suppliers row. Compact deployments insert only the
// columns they actually have.
func (r *SupplierRepository) insertCore(tx *gorm.DB, row *SupplierRow) error {
	if r.schema.Variant == VariantFull {
		return tx.Create(row).Error
	}

	values := map[string]interface{}{
		"id":         row.ID,
		"name":       row.Name,
		"code":       row.Code,
		"status":     row.Status,
		"category":   row.Category,
		"profile":    row.Profile,
		"created_at": row.CreatedAt,
		"updated_at": row.UpdatedAt,
	}
	for col, v := range map[string]interface{}{
		"subcategory":         row.Subcategory,
		"tier":                row.Tier,
		"legal_name":          row.LegalName,
		"trading_name":        row.TradingName,
		"tax_id":              row.TaxID,
		"registration_number": row.RegistrationNumber,
		"website":             row.Website,
		"founded_year":        row.FoundedYear,
		"employee_count":      row.EmployeeCount,
		"annual_revenue":      row.AnnualRevenue,
		"currency":            row.Currency,
		"notes":               row.Notes,
	} {
		if r.schema.HasColumn(col) {
			values[col] = v
		}
	}
	if r.schema.HasColumn("tags") {
		values["tags"] = row.Tags
	}
	return tx.Table("suppliers").Create(&values).Error
}

func contactRows(supplierID string, contacts []entity.Contact, now time.Time) []entity.Contact {
	rows := make([]entity.Contact, len(contacts))
	for i, c := range contacts {
		c.ID = uuid.New().String()[:32]
		c.SupplierID = supplierID
		if c.Type == "" {
			c.Type = entity.ContactTypePrimary
		}
		c.CreatedAt = now
		rows[i] = c
	}
	return rows
}

func addressRows(supplierID string, addresses []entity.Address, now time.Time) []entity.Address {
	rows := make([]entity.Address, len(addresses))
	for i, a := range addresses {
		a.ID = uuid.New().String()[:32]
		a.SupplierID = supplierID
		if a.Type == "" {
			a.Type = entity.AddressTypeHeadquarters
		}
		a.CreatedAt = now
		rows[i] = a
	}
	return rows
}
