package validation

import (
	"math"
	"strings"
	"testing"

	"github.com/google/uuid"

	"card-optimiser/internal/models"
)

func TestValidateContext(t *testing.T) {
	valid := models.TransactionContext{MerchantSlug: "amazon", Amount: 1000}
	if err := ValidateContext(valid); err != nil {
		t.Errorf("Expected valid context to pass, got %v", err)
	}

	tests := []struct {
		name string
		ctx  models.TransactionContext
	}{
		{"missing slug", models.TransactionContext{Amount: 1000}},
		{"uppercase slug", models.TransactionContext{MerchantSlug: "Amazon", Amount: 1000}},
		{"zero amount", models.TransactionContext{MerchantSlug: "amazon", Amount: 0}},
		{"negative amount", models.TransactionContext{MerchantSlug: "amazon", Amount: -5}},
		{"nan amount", models.TransactionContext{MerchantSlug: "amazon", Amount: math.NaN()}},
		{"infinite amount", models.TransactionContext{MerchantSlug: "amazon", Amount: math.Inf(1)}},
		{"huge amount", models.TransactionContext{MerchantSlug: "amazon", Amount: 1e12}},
	}

	for _, tt := range tests {
		if err := ValidateContext(tt.ctx); err == nil {
			t.Errorf("%s: expected validation error", tt.name)
		}
	}
}

func TestValidateMerchantSlug(t *testing.T) {
	for _, slug := range []string{"amazon", "big-bazaar", "shop_24", "a1"} {
		if err := ValidateMerchantSlug(slug); err != nil {
			t.Errorf("Expected slug %q to pass, got %v", slug, err)
		}
	}

	for _, slug := range []string{"", "Amazon", "amazon.in", "-leading", "with space", strings.Repeat("a", 65)} {
		if err := ValidateMerchantSlug(slug); err == nil {
			t.Errorf("Expected slug %q to fail", slug)
		}
	}
}

func TestValidateHeldCards(t *testing.T) {
	if err := ValidateHeldCards([]string{"card-a", "card-b"}); err != nil {
		t.Errorf("Expected valid set to pass, got %v", err)
	}
	if err := ValidateHeldCards(nil); err != nil {
		t.Errorf("Expected empty set to pass, got %v", err)
	}

	if err := ValidateHeldCards([]string{"card-a", "card-a"}); err == nil {
		t.Error("Expected duplicate card ids to fail")
	}
	if err := ValidateHeldCards([]string{""}); err == nil {
		t.Error("Expected empty card id to fail")
	}

	big := make([]string, 101)
	for i := range big {
		big[i] = uuid.New().String()
	}
	if err := ValidateHeldCards(big); err == nil {
		t.Error("Expected oversized set to fail")
	}
}

func TestValidateUUID(t *testing.T) {
	if err := ValidateUUID(uuid.New().String(), "user_id"); err != nil {
		t.Errorf("Expected generated UUID to pass, got %v", err)
	}

	for _, id := range []string{"", "not-a-uuid", "12345678-1234-1234-1234-123456789012"} {
		if err := ValidateUUID(id, "user_id"); err == nil {
			t.Errorf("Expected %q to fail", id)
		}
	}
}

func TestSanitizeString(t *testing.T) {
	if got := SanitizeString("  hello\x00world  "); got != "helloworld" {
		t.Errorf("Expected control characters stripped and trimmed, got %q", got)
	}
}

func TestValidateTimeString(t *testing.T) {
	if _, err := ValidateTimeString("2026-09-01T12:00:00Z"); err != nil {
		t.Errorf("Expected RFC3339 timestamp to pass, got %v", err)
	}
	if _, err := ValidateTimeString("2026-09-01"); err == nil {
		t.Error("Expected bare date to fail")
	}
	if _, err := ValidateTimeString(""); err == nil {
		t.Error("Expected empty string to fail")
	}
}
