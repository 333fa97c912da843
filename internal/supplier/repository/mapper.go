package repository

import (
	"encoding/json"
	"time"

	"github.com/stockline/supplier-core/internal/supplier/entity"
)

// SupplierRow is the relational shape of the suppliers table. Optional columns
// are pointers so a deployment that never added them scans to nil and the
// overflow profile takes over. Profile is kept as raw bytes so a corrupt blob
// degrades gracefully instead of failing the scan.
type SupplierRow struct {
	ID          string  `gorm:"primaryKey;size:32"`
	Name        string  `gorm:"size:200;not null"`
	Code        string  `gorm:"size:32;uniqueIndex;not null"`
	Status      string  `gorm:"size:20;default:pending"`
	Category    string  `gorm:"size:50"`
	Subcategory *string `gorm:"size:50"`
	Tier        *string `gorm:"size:20"`

	LegalName          *string  `gorm:"size:200"`
	TradingName        *string  `gorm:"size:200"`
	TaxID              *string  `gorm:"size:50"`
	RegistrationNumber *string  `gorm:"size:50"`
	Website            *string  `gorm:"size:200"`
	FoundedYear        *int
	EmployeeCount      *int
	AnnualRevenue      *float64 `gorm:"type:decimal(15,2)"`
	Currency           *string  `gorm:"size:10"`

	Notes   *string           `gorm:"type:text"`
	Tags    entity.JSONBArray `gorm:"type:jsonb"`
	Profile []byte            `gorm:"type:jsonb"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (SupplierRow) TableName() string {
	return "suppliers"
}

// parseOverflow decodes the overflow profile blob. Malformed or absent JSON is
// treated as an empty object so a single bad row never breaks reads.
func parseOverflow(raw []byte) entity.JSONB {
	if len(raw) == 0 {
		return entity.JSONB{}
	}
	var o entity.JSONB
	if err := json.Unmarshal(raw, &o); err != nil || o == nil {
		return entity.JSONB{}
	}
	return o
}

// The resolve* helpers are the single precedence rule between a real column
// and its overflow counterpart: a non-null, non-empty column value always
// wins.

func resolveString(col *string, overflow entity.JSONB, key string) string {
	if col != nil && *col != "" {
		return *col
	}
	if v, ok := overflow[key].(string); ok {
		return v
	}
	return ""
}

func resolveInt(col *int, overflow entity.JSONB, key string) *int {
	if col != nil {
		return col
	}
	switch v := overflow[key].(type) {
	case float64:
		n := int(v)
		return &n
	case string:
		var n int
		if err := json.Unmarshal([]byte(v), &n); err == nil {
			return &n
		}
	}
	return nil
}

func resolveFloat(col *float64, overflow entity.JSONB, key string) *float64 {
	if col != nil {
		return col
	}
	if v, ok := overflow[key].(float64); ok {
		return &v
	}
	return nil
}

// normalizeTags accepts the representations tags have accumulated over time: a
// JSON array, a JSON-encoded string, or an object wrapper with a values/items
// key. Anything unparseable degrades to an empty set. Order is preserved,
// duplicates dropped.
func normalizeTags(v interface{}) []string {
	switch t := v.(type) {
	case nil:
		return []string{}
	case []string:
		return dedupeTags(t)
	case []interface{}:
		out := make([]string, 0, len(t))
		for _, e := range t {
			if s, ok := e.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return dedupeTags(out)
	case string:
		var arr []string
		if err := json.Unmarshal([]byte(t), &arr); err == nil {
			return dedupeTags(arr)
		}
		var any []interface{}
		if err := json.Unmarshal([]byte(t), &any); err == nil {
			return normalizeTags(any)
		}
		return []string{}
	case map[string]interface{}:
		for _, key := range []string{"values", "items", "tags"} {
			if inner, ok := t[key]; ok {
				return normalizeTags(inner)
			}
		}
		return []string{}
	default:
		return []string{}
	}
}

// tagsArray converts the canonical tag set into the jsonb column value.
func tagsArray(tags []string) entity.JSONBArray {
	arr := make(entity.JSONBArray, len(tags))
	for i, t := range tags {
		arr[i] = t
	}
	return arr
}

func dedupeTags(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// reconcile builds the canonical aggregate from a suppliers row and its
// overflow profile. Contacts, addresses and performance are attached by the
// repository afterwards.
func reconcile(row *SupplierRow) *entity.Supplier {
	overflow := parseOverflow(row.Profile)

	tags := normalizeTags([]interface{}(row.Tags))
	if len(tags) == 0 {
		tags = normalizeTags(overflow["tags"])
	}

	sub := resolveString(row.Subcategory, overflow, "subcategory")

	s := &entity.Supplier{
		ID:          row.ID,
		Name:        row.Name,
		Code:        row.Code,
		Status:      row.Status,
		Tier:        resolveString(row.Tier, overflow, "tier"),
		Category:    row.Category,
		Subcategory: sub,
		Tags:        tags,
		Notes:       resolveString(row.Notes, overflow, "notes"),
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
		Business: entity.BusinessInfo{
			LegalName:          resolveString(row.LegalName, overflow, "legal_name"),
			TradingName:        resolveString(row.TradingName, overflow, "trading_name"),
			TaxID:              resolveString(row.TaxID, overflow, "tax_id"),
			RegistrationNumber: resolveString(row.RegistrationNumber, overflow, "registration_number"),
			Website:            resolveString(row.Website, overflow, "website"),
			FoundedYear:        resolveInt(row.FoundedYear, overflow, "founded_year"),
			EmployeeCount:      resolveInt(row.EmployeeCount, overflow, "employee_count"),
			AnnualRevenue:      resolveFloat(row.AnnualRevenue, overflow, "annual_revenue"),
			Currency:           resolveString(row.Currency, overflow, "currency"),
		},
	}
	if s.Category == "" {
		if v, ok := overflow["category"].(string); ok {
			s.Category = v
		}
	}
	return s
}

// synthesizeContacts builds a single contact from overflow fields for
// suppliers persisted before the contact table existed. Real relation rows
// always take precedence over this.
func synthesizeContacts(supplierID string, overflow entity.JSONB) []entity.Contact {
	email, _ := overflow["email"].(string)
	phone, _ := overflow["phone"].(string)
	if email == "" && phone == "" {
		return nil
	}
	name, _ := overflow["contact_name"].(string)
	if name == "" {
		name = "Primary Contact"
	}
	return []entity.Contact{{
		SupplierID: supplierID,
		Type:       entity.ContactTypePrimary,
		Name:       name,
		Email:      email,
		Phone:      phone,
		IsPrimary:  true,
		IsActive:   true,
	}}
}

// synthesizeAddresses builds a single address from the overflow "address"
// object when no relation rows exist.
func synthesizeAddresses(supplierID string, overflow entity.JSONB) []entity.Address {
	addr, ok := overflow["address"].(map[string]interface{})
	if !ok {
		return nil
	}
	str := func(key string) string {
		s, _ := addr[key].(string)
		return s
	}
	a := entity.Address{
		SupplierID: supplierID,
		Type:       entity.AddressTypeHeadquarters,
		Line1:      str("line1"),
		Line2:      str("line2"),
		City:       str("city"),
		State:      str("state"),
		PostalCode: str("postal_code"),
		Country:    str("country"),
		IsPrimary:  true,
		IsActive:   true,
	}
	if a.Line1 == "" && a.City == "" && a.Country == "" {
		return nil
	}
	return []entity.Address{a}
}

// buildOverflow captures every create field that has no dedicated column in
// this deployment. Under a compact schema the primary contact and address are
// folded in as well, so the aggregate stays reconstructible without relation
// tables.
func buildOverflow(input *entity.CreateSupplierInput, sch Schema) entity.JSONB {
	o := entity.JSONB{}
	put := func(col, key string, v interface{}) {
		if sch.HasColumn(col) {
			return
		}
		o[key] = v
	}

	if input.Tier != "" {
		put("tier", "tier", input.Tier)
	}
	if input.Subcategory != "" {
		put("subcategory", "subcategory", input.Subcategory)
	}
	if len(input.Tags) > 0 {
		put("tags", "tags", input.Tags)
	}
	if input.Notes != "" {
		put("notes", "notes", input.Notes)
	}

	b := input.Business
	if b.LegalName != "" {
		put("legal_name", "legal_name", b.LegalName)
	}
	if b.TradingName != "" {
		put("trading_name", "trading_name", b.TradingName)
	}
	if b.TaxID != "" {
		put("tax_id", "tax_id", b.TaxID)
	}
	if b.RegistrationNumber != "" {
		put("registration_number", "registration_number", b.RegistrationNumber)
	}
	if b.Website != "" {
		put("website", "website", b.Website)
	}
	if b.FoundedYear != nil {
		put("founded_year", "founded_year", *b.FoundedYear)
	}
	if b.EmployeeCount != nil {
		put("employee_count", "employee_count", *b.EmployeeCount)
	}
	if b.AnnualRevenue != nil {
		put("annual_revenue", "annual_revenue", *b.AnnualRevenue)
	}
	if b.Currency != "" {
		put("currency", "currency", b.Currency)
	}

	if !sch.HasRelations {
		foldRelations(o, input.Contacts, input.Addresses)
	}
	return o
}

// foldRelations writes the primary contact and address into the overflow
// object. Used for deployments without relation tables, on create and on
// update alike.
func foldRelations(o entity.JSONB, contacts []entity.Contact, addresses []entity.Address) {
	if c := primaryOf(contacts); c != nil {
		o["contact_name"] = c.Name
		if c.Email != "" {
			o["email"] = c.Email
		}
		if c.Phone != "" {
			o["phone"] = c.Phone
		}
	}
	if a := primaryAddressOf(addresses); a != nil {
		o["address"] = map[string]interface{}{
			"line1":       a.Line1,
			"line2":       a.Line2,
			"city":        a.City,
			"state":       a.State,
			"postal_code": a.PostalCode,
			"country":     a.Country,
		}
	}
}

func primaryOf(contacts []entity.Contact) *entity.Contact {
	for i := range contacts {
		if contacts[i].IsPrimary {
			return &contacts[i]
		}
	}
	if len(contacts) > 0 {
		return &contacts[0]
	}
	return nil
}

func primaryAddressOf(addresses []entity.Address) *entity.Address {
	for i := range addresses {
		if addresses[i].IsPrimary {
			return &addresses[i]
		}
	}
	if len(addresses) > 0 {
		return &addresses[0]
	}
	return nil
}

// mergeOverflow overlays updates onto the existing overflow object key by
// key. Keys absent from updates are preserved; a full-object replace would
// silently erase sibling data written by earlier updates.
func mergeOverflow(existing, updates entity.JSONB) entity.JSONB {
	merged := make(entity.JSONB, len(existing)+len(updates))
	for k, v := range existing {
		merged[k] = v
	}
	for k, v := range updates {
		merged[k] = v
	}
	return merged
}
