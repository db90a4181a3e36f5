package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"card-optimiser/internal/cache"
	"card-optimiser/internal/catalog"
	"card-optimiser/internal/events"
	"card-optimiser/internal/features"
	"card-optimiser/internal/models"
	"card-optimiser/internal/profile"
	"card-optimiser/internal/validation"
)

var testNow = time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

func writeCatalogData(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	files := map[string]string{
		"cards.json": `[
			{"id": "card-a", "name": "Card A", "issuer": "HDFC", "color": "#1a472a"},
			{"id": "card-b", "name": "Card B", "issuer": "SBI"}
		]`,
		"reward_rules.json": `[
			{"cardId": "card-a", "baseRate": 0.02, "defaultExplanation": "2% on all spends"},
			{"cardId": "card-b", "baseRate": 0.05, "defaultExplanation": "5% on all spends"}
		]`,
		"offers.json": `[
			{"merchant": "amazon", "cardIssuer": "HDFC",
			 "startDate": "2026-08-01T00:00:00Z", "endDate": "2026-09-30T23:59:59Z",
			 "minTxn": 500, "value": 0.1, "maxValue": 50, "explanation": "10% off up to 50"}
		]`,
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("Failed to write catalog file %s: %v", name, err)
		}
	}
	return dir
}

func setupTestService(t *testing.T) *Service {
	t.Helper()

	loader := catalog.NewLoader(catalog.LoaderOptions{BundledDir: writeCatalogData(t)})
	catalogs, _, err := catalog.NewStore(context.Background(), loader)
	if err != nil {
		t.Fatalf("Failed to load catalogs: %v", err)
	}

	profiles, err := profile.NewStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create profile store: %v", err)
	}
	t.Cleanup(func() { profiles.Close() })

	flags := features.NewManager()
	flags.Register(features.FeatureManualCalculation, true, "")
	flags.Register(features.FeatureScrapedContext, true, "")

	return NewService(catalogs, profiles, cache.NewInMemoryCache(),
		events.NewManager(false), flags, time.Minute)
}

func TestGetRecommendations_FromStoredContext(t *testing.T) {
	svc := setupTestService(t)
	ctx := context.Background()
	userID := uuid.New().String()

	if _, err := svc.ReplaceHeldCards(ctx, userID, []string{"card-a", "card-b"}); err != nil {
		t.Fatalf("Failed to store held cards: %v", err)
	}

	if _, err := svc.StoreContext(ctx, userID, models.ContextRequest{
		MerchantSlug: "amazon",
		Amount:       1000,
	}); err != nil {
		t.Fatalf("Failed to store context: %v", err)
	}

	response, err := svc.GetRecommendations(ctx, userID, testNow)
	if err != nil {
		t.Fatalf("GetRecommendations failed: %v", err)
	}

	if response.Context == nil {
		t.Fatal("Expected stored context in response")
	}
	if response.Context.Category != DefaultCategory {
		t.Errorf("Expected default category, got %q", response.Context.Category)
	}
	if response.HeldCards != 2 {
		t.Errorf("Expected 2 held cards, got %d", response.HeldCards)
	}
	if len(response.Results) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(response.Results))
	}
	// card-a: 20 reward + 50 offer = 70; card-b: 50 reward
	if response.Results[0].CardID != "card-a" || response.Results[0].TotalValue != 70.00 {
		t.Errorf("Expected card-a at 70.00 first, got %s at %v",
			response.Results[0].CardID, response.Results[0].TotalValue)
	}
	if response.Results[1].CardID != "card-b" || response.Results[1].TotalValue != 50.00 {
		t.Errorf("Expected card-b at 50.00 second, got %s at %v",
			response.Results[1].CardID, response.Results[1].TotalValue)
	}
}

func TestGetRecommendations_NoStoredContext(t *testing.T) {
	svc := setupTestService(t)
	ctx := context.Background()
	userID := uuid.New().String()

	if _, err := svc.ReplaceHeldCards(ctx, userID, []string{"card-a"}); err != nil {
		t.Fatalf("Failed to store held cards: %v", err)
	}

	response, err := svc.GetRecommendations(ctx, userID, testNow)
	if err != nil {
		t.Fatalf("GetRecommendations failed: %v", err)
	}

	if response.Context != nil {
		t.Errorf("Expected nil context, got %+v", response.Context)
	}
	if response.HeldCards != 1 {
		t.Errorf("Expected held card count 1, got %d", response.HeldCards)
	}
	if len(response.Results) != 0 {
		t.Errorf("Expected no results without a context, got %d", len(response.Results))
	}
}

func TestStoreContext_ResolvesRawPageFields(t *testing.T) {
	svc := setupTestService(t)
	ctx := context.Background()
	userID := uuid.New().String()

	txnCtx, err := svc.StoreContext(ctx, userID, models.ContextRequest{
		Host:       "www.amazon.in",
		AmountText: "₹1,234.50",
	})
	if err != nil {
		t.Fatalf("StoreContext failed: %v", err)
	}

	if txnCtx.MerchantSlug != "amazon" {
		t.Errorf("Expected slug amazon, got %q", txnCtx.MerchantSlug)
	}
	if txnCtx.Amount != 1234.50 {
		t.Errorf("Expected amount 1234.50, got %v", txnCtx.Amount)
	}
}

func TestStoreContext_UnsupportedHost(t *testing.T) {
	svc := setupTestService(t)

	_, err := svc.StoreContext(context.Background(), uuid.New().String(), models.ContextRequest{
		Host:       "example.com",
		AmountText: "100",
	})

	var vErr *validation.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("Expected validation error for unsupported host, got %v", err)
	}
}

func TestStoreContext_RejectsBadAmount(t *testing.T) {
	svc := setupTestService(t)

	_, err := svc.StoreContext(context.Background(), uuid.New().String(), models.ContextRequest{
		MerchantSlug: "amazon",
		Amount:       -100,
	})

	var vErr *validation.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("Expected validation error for negative amount, got %v", err)
	}
}

func TestCalculateManual(t *testing.T) {
	svc := setupTestService(t)
	ctx := context.Background()
	userID := uuid.New().String()

	if _, err := svc.ReplaceHeldCards(ctx, userID, []string{"card-b"}); err != nil {
		t.Fatalf("Failed to store held cards: %v", err)
	}

	response, err := svc.CalculateManual(ctx, userID, models.TransactionContext{
		MerchantSlug: "flipkart",
		Amount:       2000,
	}, testNow)
	if err != nil {
		t.Fatalf("CalculateManual failed: %v", err)
	}

	if response.Context == nil || !response.Context.Manual {
		t.Error("Expected manual flag set on context")
	}
	if len(response.Results) != 1 {
		t.Fatalf("Expected 1 result, got %d", len(response.Results))
	}
	if response.Results[0].TotalValue != 100.00 {
		t.Errorf("Expected card-b total 100.00, got %v", response.Results[0].TotalValue)
	}
}

func TestCalculateManual_FeatureDisabled(t *testing.T) {
	svc := setupTestService(t)
	svc.features.Disable(features.FeatureManualCalculation)

	_, err := svc.CalculateManual(context.Background(), uuid.New().String(), models.TransactionContext{
		MerchantSlug: "amazon",
		Amount:       1000,
	}, testNow)

	if !errors.Is(err, ErrFeatureDisabled) {
		t.Fatalf("Expected ErrFeatureDisabled, got %v", err)
	}
}

func TestHeldCards_Roundtrip(t *testing.T) {
	svc := setupTestService(t)
	ctx := context.Background()
	userID := uuid.New().String()

	replaced, err := svc.ReplaceHeldCards(ctx, userID, []string{"card-b", "card-a"})
	if err != nil {
		t.Fatalf("ReplaceHeldCards failed: %v", err)
	}
	if len(replaced.CardIDs) != 2 {
		t.Fatalf("Expected 2 card ids, got %v", replaced.CardIDs)
	}

	got, err := svc.HeldCards(userID)
	if err != nil {
		t.Fatalf("HeldCards failed: %v", err)
	}
	if len(got.CardIDs) != 2 || got.CardIDs[0] != "card-b" {
		t.Errorf("Expected [card-b card-a], got %v", got.CardIDs)
	}
}

func TestHeldCards_InvalidUserID(t *testing.T) {
	svc := setupTestService(t)

	_, err := svc.HeldCards("not-a-uuid")

	var vErr *validation.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("Expected validation error, got %v", err)
	}
}

func TestCards_ListsCatalog(t *testing.T) {
	svc := setupTestService(t)

	cards := svc.Cards()
	if len(cards) != 2 {
		t.Fatalf("Expected 2 catalog cards, got %d", len(cards))
	}
	if cards[0].ID != "card-a" {
		t.Errorf("Expected card-a first, got %s", cards[0].ID)
	}
}

func TestRefreshCatalog(t *testing.T) {
	svc := setupTestService(t)

	response, err := svc.RefreshCatalog(context.Background())
	if err != nil {
		t.Fatalf("RefreshCatalog failed: %v", err)
	}
	if response.Cards != string(catalog.SourceBundled) {
		t.Errorf("Expected bundled source, got %s", response.Cards)
	}
}
