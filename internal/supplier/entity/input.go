package entity

// CreateSupplierInput is the payload for creating a supplier. Contact and
// address IDs are assigned by the repository.
type CreateSupplierInput struct {
	Name        string       `json:"name" binding:"required"`
	Code        string       `json:"code" binding:"required"`
	Status      string       `json:"status"`
	Tier        string       `json:"tier"`
	Category    string       `json:"category" binding:"required"`
	Subcategory string       `json:"subcategory"`
	Tags        []string     `json:"tags"`
	Business    BusinessInfo `json:"business_info"`
	Contacts    []Contact    `json:"contacts"`
	Addresses   []Address    `json:"addresses"`
	Notes       string       `json:"notes"`
}

// UpdateSupplierInput is a partial update: nil fields are left untouched.
// Contacts and Addresses, when supplied, replace the stored sets wholesale
// rather than being merged.
type UpdateSupplierInput struct {
	Name        *string   `json:"name"`
	Status      *string   `json:"status"`
	Tier        *string   `json:"tier"`
	Category    *string   `json:"category"`
	Subcategory *string   `json:"subcategory"`
	Tags        *[]string `json:"tags"`

	LegalName          *string  `json:"legal_name"`
	TradingName        *string  `json:"trading_name"`
	TaxID              *string  `json:"tax_id"`
	RegistrationNumber *string  `json:"registration_number"`
	Website            *string  `json:"website"`
	FoundedYear        *int     `json:"founded_year"`
	EmployeeCount      *int     `json:"employee_count"`
	AnnualRevenue      *float64 `json:"annual_revenue"`
	Currency           *string  `json:"currency"`

	Notes     *string    `json:"notes"`
	Contacts  *[]Contact `json:"contacts"`
	Addresses *[]Address `json:"addresses"`
}

// ListFilter drives FindMany. A nil/empty Statuses defaults to active only.
type ListFilter struct {
	Search     string   `json:"search,omitempty"`
	Statuses   []string `json:"statuses,omitempty"`
	Tiers      []string `json:"tiers,omitempty"`
	Categories []string `json:"categories,omitempty"`
	Page       int      `json:"page,omitempty"`
	Limit      int      `json:"limit,omitempty"`
}

// SupplierPage is a paginated FindMany result.
type SupplierPage struct {
	Suppliers  []Supplier `json:"suppliers"`
	Total      int64      `json:"total"`
	Page       int        `json:"page"`
	Limit      int        `json:"limit"`
	TotalPages int        `json:"total_pages"`
}
