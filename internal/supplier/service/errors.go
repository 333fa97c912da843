package service

import (
	"fmt"
	"strings"
)

// ValidationError is a single violated rule.
type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidationResult aggregates every violated rule for one payload; callers get
// the full list, not just the first failure.
type ValidationResult struct {
	Valid  bool              `json:"is_valid"`
	Errors []ValidationError `json:"errors"`
}

func (r *ValidationResult) add(field, code, message string) {
	r.Valid = false
	r.Errors = append(r.Errors, ValidationError{Field: field, Code: code, Message: message})
}

func (r *ValidationResult) merge(other ValidationResult) {
	if !other.Valid {
		r.Valid = false
		r.Errors = append(r.Errors, other.Errors...)
	}
}

// Err returns the result as a *ValidationFailed error, or nil when valid.
func (r *ValidationResult) Err() error {
	if r.Valid {
		return nil
	}
	return &ValidationFailed{Errors: r.Errors}
}

// ValidationFailed is raised before any write when a payload violates one or
// more rules.
type ValidationFailed struct {
	Errors []ValidationError
}

func (e *ValidationFailed) Error() string {
	codes := make([]string, len(e.Errors))
	for i, v := range e.Errors {
		codes[i] = v.Code
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(codes, ", "))
}

// ConflictError is a duplicate code or name.
type ConflictError struct {
	Field   string
	Message string
}

func (e *ConflictError) Error() string {
	return e.Message
}

// PolicyError means the payload is well-formed but the action is disallowed
// by a business rule, e.g. deleting a strategic supplier.
type PolicyError struct {
	Reason string
}

func (e *PolicyError) Error() string {
	return e.Reason
}
