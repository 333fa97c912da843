package repository

import (
	"fmt"

	"gorm.io/gorm"
)

// Schema variants
const (
	VariantFull    = "full"
	VariantCompact = "compact"
)

// Schema describes which optional supplier columns and which relation tables a
// deployment actually has. It is resolved once, at repository construction;
// repository methods branch on the descriptor instead of probing the database
// per call.
type Schema struct {
	Variant      string
	HasRelations bool
	columns      map[string]bool
}

// optionalColumns are the supplier columns that newer deployments promoted out
// of the overflow profile. Legacy deployments keep these fields in profile.
var optionalColumns = []string{
	"subcategory",
	"tier",
	"legal_name",
	"trading_name",
	"tax_id",
	"registration_number",
	"website",
	"founded_year",
	"employee_count",
	"annual_revenue",
	"currency",
	"notes",
	"tags",
}

// FullSchema describes a current deployment: every optional column plus the
// contact/address/performance relation tables.
func FullSchema() Schema {
	cols := make(map[string]bool, len(optionalColumns))
	for _, c := range optionalColumns {
		cols[c] = true
	}
	return Schema{Variant: VariantFull, HasRelations: true, columns: cols}
}

// CompactSchema describes a legacy deployment: core columns and the overflow
// profile only, no relation tables.
func CompactSchema() Schema {
	return Schema{Variant: VariantCompact, HasRelations: false, columns: map[string]bool{}}
}

// HasColumn reports whether the suppliers table carries the given optional
// column in this deployment.
func (s Schema) HasColumn(name string) bool {
	return s.columns[name]
}

// TierExpr returns the SQL expression resolving a supplier's tier, preferring
// the real column over the overflow profile when the column exists.
func (s Schema) TierExpr() string {
	if s.HasColumn("tier") {
		return "COALESCE(NULLIF(suppliers.tier, ''), suppliers.profile->>'tier')"
	}
	return "suppliers.profile->>'tier'"
}

// DetectSchema probes the live database once and returns the matching
// descriptor. Intended to be called a single time at startup.
func DetectSchema(db *gorm.DB) (Schema, error) {
	m := db.Migrator()
	if !m.HasTable("suppliers") {
		return Schema{}, fmt.Errorf("suppliers table does not exist")
	}

	cols := make(map[string]bool)
	for _, c := range optionalColumns {
		if m.HasColumn(&SupplierRow{}, c) {
			cols[c] = true
		}
	}

	hasRelations := m.HasTable("supplier_contacts") && m.HasTable("supplier_addresses")

	variant := VariantCompact
	if hasRelations && len(cols) == len(optionalColumns) {
		variant = VariantFull
	}
	return Schema{Variant: variant, HasRelations: hasRelations, columns: cols}, nil
}
