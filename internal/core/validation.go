package core

// validation.go checks commands before they reach the store.
//
// Every rule runs and all violations are returned together as
// ValidationErrors, so a client can fix a request in one round trip.

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// namePattern matches a capitalised single word of 2-20 letters.
var namePattern = regexp.MustCompile(`^[A-Z][a-z]{1,19}$`)

// ValidationError represents a single validation error for a field.
type ValidationError struct {
	Field   string // Field name as seen by the client
	Value   string // The invalid value
	Message string // Human-readable error message
}

func (e ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

// now is replaced in tests.
var now = time.Now

func validateName(errs ValidationErrors, field, value string) ValidationErrors {
	if !namePattern.MatchString(value) {
		errs = append(errs, ValidationError{
			Field:   field,
			Value:   value,
			Message: "must start with an upper-case letter followed by 1-19 lower-case letters",
		})
	}
	return errs
}

func validateBirthDate(errs ValidationErrors, value time.Time) ValidationErrors {
	y, m, d := now().Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	if value.IsZero() || !value.Before(today) {
		errs = append(errs, ValidationError{
			Field:   "birthDate",
			Value:   value.Format(DateLayout),
			Message: "must be a date in the past",
		})
	}
	return errs
}

func validateGiftName(errs ValidationErrors, value string) ValidationErrors {
	if strings.TrimSpace(value) == "" {
		errs = append(errs, ValidationError{Field: "name", Value: value, Message: "must not be blank"})
	}
	return errs
}

func validatePrice(errs ValidationErrors, value float64) ValidationErrors {
	if !(value > 0) {
		errs = append(errs, ValidationError{
			Field:   "price",
			Value:   fmt.Sprintf("%g", value),
			Message: "must be positive",
		})
	}
	return errs
}

// ValidateNewKid checks the fields shared by every kid type.
func ValidateNewKid(k NewKid) error {
	var errs ValidationErrors
	errs = validateName(errs, "firstName", k.FirstName)
	errs = validateName(errs, "lastName", k.LastName)
	errs = validateBirthDate(errs, k.BirthDate)
	return errs.orNil()
}

// ValidateKidPatch checks only the fields present in the patch.
func ValidateKidPatch(p KidPatch) error {
	var errs ValidationErrors
	if p.FirstName != nil {
		errs = validateName(errs, "firstName", *p.FirstName)
	}
	if p.LastName != nil {
		errs = validateName(errs, "lastName", *p.LastName)
	}
	if p.BirthDate != nil {
		errs = validateBirthDate(errs, *p.BirthDate)
	}
	return errs.orNil()
}

// ValidateNewGift checks a gift creation command.
func ValidateNewGift(g NewGift) error {
	var errs ValidationErrors
	errs = validateGiftName(errs, g.Name)
	errs = validatePrice(errs, g.Price)
	return errs.orNil()
}

// ValidateGiftPatch checks only the fields present in the patch.
func ValidateGiftPatch(p GiftPatch) error {
	var errs ValidationErrors
	if p.Name != nil {
		errs = validateGiftName(errs, *p.Name)
	}
	if p.Price != nil {
		errs = validatePrice(errs, *p.Price)
	}
	return errs.orNil()
}
