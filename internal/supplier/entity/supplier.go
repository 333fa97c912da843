package entity

import (
	"time"
)

// Supplier is the canonical aggregate assembled by the repository from the
// suppliers row, its overflow profile and the related contact/address/
// performance rows. It is what the service layer and exporters work with.
type Supplier struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Code        string       `json:"code"`
	Status      string       `json:"status"`
	Tier        string       `json:"tier"`
	Category    string       `json:"category"`
	Subcategory string       `json:"subcategory,omitempty"`
	Tags        []string     `json:"tags"`
	Business    BusinessInfo `json:"business_info"`
	Contacts    []Contact    `json:"contacts"`
	Addresses   []Address    `json:"addresses"`
	Performance *Performance `json:"performance,omitempty"`
	Notes       string       `json:"notes,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// BusinessInfo holds the registration and financial metadata of a supplier.
// Depending on the deployment these live in dedicated columns or in the
// overflow profile; the repository reconciles the two.
type BusinessInfo struct {
	LegalName          string   `json:"legal_name"`
	TradingName        string   `json:"trading_name,omitempty"`
	TaxID              string   `json:"tax_id"`
	RegistrationNumber string   `json:"registration_number"`
	Website            string   `json:"website,omitempty"`
	FoundedYear        *int     `json:"founded_year,omitempty"`
	EmployeeCount      *int     `json:"employee_count,omitempty"`
	AnnualRevenue      *float64 `json:"annual_revenue,omitempty"`
	Currency           string   `json:"currency,omitempty"`
}

// PrimaryContact returns the contact flagged primary, or nil.
func (s *Supplier) PrimaryContact() *Contact {
	for i := range s.Contacts {
		if s.Contacts[i].IsPrimary {
			return &s.Contacts[i]
		}
	}
	return nil
}

// PrimaryAddress returns the address flagged primary, or nil.
func (s *Supplier) PrimaryAddress() *Address {
	for i := range s.Addresses {
		if s.Addresses[i].IsPrimary {
			return &s.Addresses[i]
		}
	}
	return nil
}

// Supplier status
const (
	StatusActive    = "active"
	StatusInactive  = "inactive"
	StatusPending   = "pending"
	StatusSuspended = "suspended"
)

// Supplier tier
const (
	TierStrategic   = "strategic"
	TierPreferred   = "preferred"
	TierApproved    = "approved"
	TierConditional = "conditional"
)

// ValidStatuses lists the accepted supplier statuses.
var ValidStatuses = []string{StatusActive, StatusInactive, StatusPending, StatusSuspended}

// ValidTiers lists the accepted supplier tiers.
var ValidTiers = []string{TierStrategic, TierPreferred, TierApproved, TierConditional}

// Contact is a supplier contact person. Exactly one contact per supplier
// carries IsPrimary; contact emails are unique within a supplier.
type Contact struct {
	ID         string    `json:"id" gorm:"primaryKey;size:32"`
	SupplierID string    `json:"supplier_id" gorm:"size:32;not null;index"`
	Type       string    `json:"type" gorm:"size:20;default:primary"` // primary/billing/technical/sales/support
	Name       string    `json:"name" gorm:"size:100;not null"`
	Title      string    `json:"title" gorm:"size:100"`
	Email      string    `json:"email" gorm:"size:200"`
	Phone      string    `json:"phone" gorm:"size:50"`
	Mobile     string    `json:"mobile,omitempty" gorm:"size:50"`
	Department string    `json:"department,omitempty" gorm:"size:100"`
	IsPrimary  bool      `json:"is_primary" gorm:"default:false"`
	IsActive   bool      `json:"is_active" gorm:"default:true"`
	CreatedAt  time.Time `json:"created_at"`
}

func (Contact) TableName() string {
	return "supplier_contacts"
}

// Contact types
const (
	ContactTypePrimary   = "primary"
	ContactTypeBilling   = "billing"
	ContactTypeTechnical = "technical"
	ContactTypeSales     = "sales"
	ContactTypeSupport   = "support"
)

// Address is a supplier site. Exactly one address per supplier carries
// IsPrimary.
type Address struct {
	ID         string    `json:"id" gorm:"primaryKey;size:32"`
	SupplierID string    `json:"supplier_id" gorm:"size:32;not null;index"`
	Type       string    `json:"type" gorm:"size:20;default:headquarters"` // headquarters/billing/shipping/warehouse/manufacturing
	Name       string    `json:"name,omitempty" gorm:"size:100"`
	Line1      string    `json:"address_line1" gorm:"size:200"`
	Line2      string    `json:"address_line2,omitempty" gorm:"size:200"`
	City       string    `json:"city" gorm:"size:100"`
	State      string    `json:"state" gorm:"size:100"`
	PostalCode string    `json:"postal_code" gorm:"size:20"`
	Country    string    `json:"country" gorm:"size:100"`
	IsPrimary  bool      `json:"is_primary" gorm:"default:false"`
	IsActive   bool      `json:"is_active" gorm:"default:true"`
	CreatedAt  time.Time `json:"created_at"`
}

func (Address) TableName() string {
	return "supplier_addresses"
}

// Address types
const (
	AddressTypeHeadquarters  = "headquarters"
	AddressTypeBilling       = "billing"
	AddressTypeShipping      = "shipping"
	AddressTypeWarehouse     = "warehouse"
	AddressTypeManufacturing = "manufacturing"
)

// Performance is the per-supplier scorecard. A zeroed row is inserted when the
// supplier is created; ratings are maintained afterwards by the evaluation
// flow.
type Performance struct {
	SupplierID            string    `json:"supplier_id" gorm:"primaryKey;size:32"`
	OverallRating         float64   `json:"overall_rating" gorm:"type:decimal(5,2);default:0"`
	QualityRating         float64   `json:"quality_rating" gorm:"type:decimal(5,2);default:0"`
	DeliveryRating        float64   `json:"delivery_rating" gorm:"type:decimal(5,2);default:0"`
	ServiceRating         float64   `json:"service_rating" gorm:"type:decimal(5,2);default:0"`
	PriceRating           float64   `json:"price_rating" gorm:"type:decimal(5,2);default:0"`
	OnTimeDeliveryRate    float64   `json:"on_time_delivery_rate" gorm:"type:decimal(5,2);default:0"`
	QualityAcceptanceRate float64   `json:"quality_acceptance_rate" gorm:"type:decimal(5,2);default:0"`
	ResponseTimeHours     float64   `json:"response_time_hours" gorm:"type:decimal(8,2);default:0"`
	DefectRate            float64   `json:"defect_rate" gorm:"type:decimal(5,2);default:0"`
	LeadTimeVariance      float64   `json:"lead_time_variance" gorm:"type:decimal(5,2);default:0"`
	TotalOrders           int       `json:"total_orders" gorm:"default:0"`
	TotalSpend            float64   `json:"total_spend" gorm:"type:decimal(15,2);default:0"`
	UpdatedAt             time.Time `json:"updated_at"`
}

func (Performance) TableName() string {
	return "supplier_performance"
}

// ProcessingProfile carries the per-supplier document processing defaults. One
// row is inserted alongside the supplier; re-inserting for the same supplier
// is a no-op.
type ProcessingProfile struct {
	SupplierID           string    `json:"supplier_id" gorm:"primaryKey;size:32"`
	AutoApproveThreshold float64   `json:"auto_approve_threshold" gorm:"type:decimal(5,2);default:0.85"`
	MatchingMode         string    `json:"matching_mode" gorm:"size:20;default:fuzzy"`
	CreatedAt            time.Time `json:"created_at"`
}

func (ProcessingProfile) TableName() string {
	return "supplier_profiles"
}

// Metrics is the platform-wide supplier rollup.
type Metrics struct {
	TotalSuppliers      int64   `json:"total_suppliers"`
	ActiveSuppliers     int64   `json:"active_suppliers"`
	PendingSuppliers    int64   `json:"pending_suppliers"`
	StrategicSuppliers  int64   `json:"strategic_suppliers"`
	AverageRating       float64 `json:"average_rating"`
	AverageDeliveryRate float64 `json:"average_delivery_rate"`
}
