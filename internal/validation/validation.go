package validation

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"
	"unicode"

	"card-optimiser/internal/models"
)

var (
	uuidRegex = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-4[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`)
	slugRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}

// ValidateContext checks a transaction context at the service boundary. The
// engine itself never validates amounts, so degenerate input must be
// rejected before it reaches a computation.
func ValidateContext(ctx models.TransactionContext) error {
	if err := ValidateMerchantSlug(ctx.MerchantSlug); err != nil {
		return err
	}

	if math.IsNaN(ctx.Amount) || math.IsInf(ctx.Amount, 0) {
		return &ValidationError{
			Field:   "amount",
			Message: "must be a finite number",
		}
	}

	if ctx.Amount <= 0 {
		return &ValidationError{
			Field:   "amount",
			Message: "must be positive",
		}
	}

	maxAmount := float64(10_000_000)
	if ctx.Amount > maxAmount {
		return &ValidationError{
			Field:   "amount",
			Message: "exceeds maximum allowed amount",
		}
	}

	return nil
}

// ValidateMerchantSlug checks that a merchant slug is a short, normalized
// identifier. Slugs are matched by exact equality in the catalogs, so
// anything outside the lowercase slug alphabet can never match.
func ValidateMerchantSlug(slug string) error {
	if slug == "" {
		return &ValidationError{
			Field:   "merchant_slug",
			Message: "is required",
		}
	}

	if len(slug) > 64 {
		return &ValidationError{
			Field:   "merchant_slug",
			Message: "cannot exceed 64 characters",
		}
	}

	if !slugRegex.MatchString(slug) {
		return &ValidationError{
			Field:   "merchant_slug",
			Message: "must contain only lowercase letters, digits, '-' and '_'",
		}
	}

	return nil
}

// ValidateHeldCards checks the shape of a held-card set. Card ids are not
// checked against the catalog: unknown ids are legal and simply contribute
// nothing to a recommendation.
func ValidateHeldCards(cardIDs []string) error {
	if len(cardIDs) > 100 {
		return &ValidationError{
			Field:   "card_ids",
			Message: "cannot contain more than 100 cards",
		}
	}

	seen := make(map[string]bool)
	for i, id := range cardIDs {
		if id == "" {
			return &ValidationError{
				Field:   fmt.Sprintf("card_ids[%d]", i),
				Message: "is required",
			}
		}

		if len(id) > 64 {
			return &ValidationError{
				Field:   fmt.Sprintf("card_ids[%d]", i),
				Message: "cannot exceed 64 characters",
			}
		}

		if seen[id] {
			return &ValidationError{
				Field:   "card_ids",
				Message: fmt.Sprintf("duplicate card id: %s", id),
			}
		}
		seen[id] = true
	}

	return nil
}

// SanitizeString strips control characters and trims whitespace.
func SanitizeString(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && r != '\n' && r != '\r' && r != '\t' {
			return -1
		}
		return r
	}, s)

	return strings.TrimSpace(s)
}

// ValidateUUID checks that id is a valid UUID v4.
func ValidateUUID(id, fieldName string) error {
	if id == "" {
		return &ValidationError{
			Field:   fieldName,
			Message: "is required",
		}
	}

	id = SanitizeString(id)

	if !uuidRegex.MatchString(strings.ToLower(id)) {
		return &ValidationError{
			Field:   fieldName,
			Message: "must be a valid UUID v4",
		}
	}

	return nil
}

// ValidateTimeString parses an RFC3339 timestamp.
func ValidateTimeString(timeStr string) (time.Time, error) {
	if timeStr == "" {
		return time.Time{}, &ValidationError{
			Field:   "time",
			Message: "is required",
		}
	}

	t, err := time.Parse(time.RFC3339, timeStr)
	if err != nil {
		return time.Time{}, &ValidationError{
			Field:   "time",
			Message: "must be a valid RFC3339 timestamp",
		}
	}

	return t, nil
}
