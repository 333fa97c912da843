package service

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/stockline/supplier-core/internal/supplier/entity"
)

// Validation rule codes
const (
	CodeNameRequired             = "NAME_REQUIRED"
	CodeCodeRequired             = "CODE_REQUIRED"
	CodeCategoryRequired         = "CATEGORY_REQUIRED"
	CodeInvalidCode              = "INVALID_CODE"
	CodeInvalidStatus            = "INVALID_STATUS"
	CodeInvalidTier              = "INVALID_TIER"
	CodeDuplicateName            = "DUPLICATE_NAME"
	CodeDuplicateCode            = "DUPLICATE_CODE"
	CodeNoPrimaryContact         = "NO_PRIMARY_CONTACT"
	CodeMultiplePrimaryContacts  = "MULTIPLE_PRIMARY_CONTACTS"
	CodeNoPrimaryAddress         = "NO_PRIMARY_ADDRESS"
	CodeMultiplePrimaryAddresses = "MULTIPLE_PRIMARY_ADDRESSES"
	CodeDuplicateContactEmail    = "DUPLICATE_CONTACT_EMAIL"
	CodeFutureFoundedYear        = "FUTURE_FOUNDED_YEAR"
	CodeInvalidTaxID             = "INVALID_TAX_ID"
	CodeInvalidRating            = "INVALID_RATING"
)

var (
	codeFormat = regexp.MustCompile(`^[A-Z0-9]{3,10}$`)
	// Alphanumeric with common separators, at least five characters total.
	taxIDFormat = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9 ./\-]{4,}$`)
)

// validateSupplierData runs every create-time rule and aggregates all
// violations. Uniqueness against the store is checked separately by the
// service, which owns the repository handle.
func validateSupplierData(input *entity.CreateSupplierInput) ValidationResult {
	result := ValidationResult{Valid: true}

	if strings.TrimSpace(input.Name) == "" {
		result.add("name", CodeNameRequired, "supplier name is required")
	}
	if input.Code == "" {
		result.add("code", CodeCodeRequired, "supplier code is required")
	} else if !codeFormat.MatchString(input.Code) {
		result.add("code", CodeInvalidCode, "code must be 3-10 uppercase alphanumeric characters")
	}
	if strings.TrimSpace(input.Category) == "" {
		result.add("category", CodeCategoryRequired, "category is required")
	}
	if input.Status != "" && !slices.Contains(entity.ValidStatuses, input.Status) {
		result.add("status", CodeInvalidStatus, fmt.Sprintf("unknown status %q", input.Status))
	}
	if input.Tier != "" && !slices.Contains(entity.ValidTiers, input.Tier) {
		result.add("tier", CodeInvalidTier, fmt.Sprintf("unknown tier %q", input.Tier))
	}

	result.merge(validateContacts(input.Contacts))
	result.merge(validateAddresses(input.Addresses))
	result.merge(validateBusinessInfo(&input.Business))

	return result
}

// validateContacts enforces the exactly-one-primary invariant and email
// uniqueness within the list.
func validateContacts(contacts []entity.Contact) ValidationResult {
	result := ValidationResult{Valid: true}

	primaries := 0
	seen := map[string]bool{}
	for _, c := range contacts {
		if c.IsPrimary {
			primaries++
		}
		email := strings.ToLower(strings.TrimSpace(c.Email))
		if email == "" {
			continue
		}
		if seen[email] {
			result.add("contacts", CodeDuplicateContactEmail,
				fmt.Sprintf("contact email %s appears more than once", email))
		}
		seen[email] = true
	}

	switch {
	case primaries == 0:
		result.add("contacts", CodeNoPrimaryContact, "exactly one contact must be marked primary")
	case primaries > 1:
		result.add("contacts", CodeMultiplePrimaryContacts, "only one contact may be marked primary")
	}
	return result
}

// validateAddresses enforces the exactly-one-primary invariant.
func validateAddresses(addresses []entity.Address) ValidationResult {
	result := ValidationResult{Valid: true}

	primaries := 0
	for _, a := range addresses {
		if a.IsPrimary {
			primaries++
		}
	}
	switch {
	case primaries == 0:
		result.add("addresses", CodeNoPrimaryAddress, "exactly one address must be marked primary")
	case primaries > 1:
		result.add("addresses", CodeMultiplePrimaryAddresses, "only one address may be marked primary")
	}
	return result
}

func validateBusinessInfo(b *entity.BusinessInfo) ValidationResult {
	result := ValidationResult{Valid: true}

	if b.FoundedYear != nil && *b.FoundedYear > time.Now().Year() {
		result.add("business_info.founded_year", CodeFutureFoundedYear, "founded year cannot be in the future")
	}
	if b.TaxID != "" && !taxIDFormat.MatchString(b.TaxID) {
		result.add("business_info.tax_id", CodeInvalidTaxID, "tax id must be at least 5 alphanumeric characters")
	}
	return result
}

// normalizePrimaryFlags force-corrects the exactly-one-primary invariants on
// an input that a caller chose to persist anyway: with no primary flagged the
// first entry is promoted, with several flagged only the first keeps the flag.
// This is a last-resort repair, not a substitute for validation.
func normalizePrimaryFlags(input *entity.CreateSupplierInput) {
	fixContacts(input.Contacts)
	fixAddresses(input.Addresses)
}

func fixContacts(contacts []entity.Contact) {
	if len(contacts) == 0 {
		return
	}
	first := -1
	for i := range contacts {
		if contacts[i].IsPrimary {
			if first == -1 {
				first = i
			} else {
				contacts[i].IsPrimary = false
			}
		}
	}
	if first == -1 {
		contacts[0].IsPrimary = true
	}
}

func fixAddresses(addresses []entity.Address) {
	if len(addresses) == 0 {
		return
	}
	first := -1
	for i := range addresses {
		if addresses[i].IsPrimary {
			if first == -1 {
				first = i
			} else {
				addresses[i].IsPrimary = false
			}
		}
	}
	if first == -1 {
		addresses[0].IsPrimary = true
	}
}
