package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"card-optimiser/internal/cache"
	"card-optimiser/internal/models"
)

func TestSnapshot_Lookups(t *testing.T) {
	snap := NewSnapshot(
		[]models.Card{
			{ID: "card-a", Name: "Card A", Issuer: "HDFC"},
			{ID: "card-b", Name: "Card B", Issuer: "SBI"},
		},
		[]models.RewardRule{
			{CardID: "card-a", BaseRate: 0.02},
			{CardID: "card-a", BaseRate: 0.99}, // duplicate, must be ignored
		},
		[]models.Offer{
			{Merchant: "amazon", CardIssuer: "HDFC"},
			{Merchant: "flipkart", CardIssuer: "Axis"},
		},
	)

	card, ok := snap.Card("card-b")
	if !ok || card.Name != "Card B" {
		t.Errorf("Expected card-b lookup to succeed, got %+v ok=%v", card, ok)
	}

	if _, ok := snap.Card("CARD-B"); ok {
		t.Error("Expected card lookup to be case-sensitive")
	}

	rule, ok := snap.RewardRule("card-a")
	if !ok || rule.BaseRate != 0.02 {
		t.Errorf("Expected first duplicate rule to win, got %+v ok=%v", rule, ok)
	}

	offers := snap.Offers()
	if len(offers) != 2 || offers[0].Merchant != "amazon" {
		t.Errorf("Expected offers in document order, got %+v", offers)
	}
}

func writeBundledData(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	files := map[string]string{
		"cards.json":        `[{"id": "bundled-card", "name": "Bundled Card", "issuer": "HDFC"}]`,
		"reward_rules.json": `[{"cardId": "bundled-card", "baseRate": 0.02, "defaultExplanation": "2%"}]`,
		"offers.json":       `[]`,
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("Failed to write bundled file %s: %v", name, err)
		}
	}
	return dir
}

func TestLoader_RemoteSource(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/cards.json":
			w.Write([]byte(`[{"id": "remote-card", "name": "Remote Card", "issuer": "Axis"}]`))
		case "/reward_rules.json":
			w.Write([]byte(`[{"cardId": "remote-card", "baseRate": 0.05}]`))
		case "/offers.json":
			w.Write([]byte(`[]`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	loader := NewLoader(LoaderOptions{
		CardsURL:   server.URL + "/cards.json",
		RulesURL:   server.URL + "/reward_rules.json",
		OffersURL:  server.URL + "/offers.json",
		BundledDir: writeBundledData(t),
	})

	snap, result, err := loader.Load(context.Background())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if result.Cards != SourceRemote || result.Rules != SourceRemote || result.Offers != SourceRemote {
		t.Errorf("Expected all datasets from remote, got %+v", result)
	}
	if _, ok := snap.Card("remote-card"); !ok {
		t.Error("Expected remote card in snapshot")
	}
	if loader.State(DatasetCards) != StateLoaded {
		t.Errorf("Expected cards dataset loaded, got %s", loader.State(DatasetCards))
	}
}

func TestLoader_FallsBackToBundled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	loader := NewLoader(LoaderOptions{
		CardsURL:   server.URL + "/cards.json",
		RulesURL:   server.URL + "/reward_rules.json",
		OffersURL:  server.URL + "/offers.json",
		BundledDir: writeBundledData(t),
	})

	snap, result, err := loader.Load(context.Background())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if result.Cards != SourceBundled {
		t.Errorf("Expected bundled fallback, got %s", result.Cards)
	}
	if _, ok := snap.Card("bundled-card"); !ok {
		t.Error("Expected bundled card in snapshot")
	}
}

func TestLoader_NoRemoteConfigured(t *testing.T) {
	loader := NewLoader(LoaderOptions{BundledDir: writeBundledData(t)})

	_, result, err := loader.Load(context.Background())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if result.Cards != SourceBundled || result.Rules != SourceBundled || result.Offers != SourceBundled {
		t.Errorf("Expected bundled for all datasets, got %+v", result)
	}
}

func TestLoader_PrefersCacheOverBundled(t *testing.T) {
	c := cache.NewInMemoryCache()
	if err := c.Set(context.Background(), "catalog:cards",
		[]byte(`[{"id": "cached-card", "name": "Cached Card", "issuer": "SBI"}]`), time.Minute); err != nil {
		t.Fatalf("Failed to seed cache: %v", err)
	}

	loader := NewLoader(LoaderOptions{
		BundledDir: writeBundledData(t),
		Cache:      c,
		CacheTTL:   time.Minute,
	})

	snap, result, err := loader.Load(context.Background())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if result.Cards != SourceCache {
		t.Errorf("Expected cards from cache, got %s", result.Cards)
	}
	if _, ok := snap.Card("cached-card"); !ok {
		t.Error("Expected cached card in snapshot")
	}
	// Rules dataset was not cached so it falls through to bundled
	if result.Rules != SourceBundled {
		t.Errorf("Expected rules from bundled, got %s", result.Rules)
	}
}

func TestLoader_CachesRemotePayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	c := cache.NewInMemoryCache()
	loader := NewLoader(LoaderOptions{
		CardsURL:   server.URL + "/cards.json",
		BundledDir: writeBundledData(t),
		Cache:      c,
		CacheTTL:   time.Minute,
	})

	if _, _, err := loader.Load(context.Background()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if _, err := c.Get(context.Background(), "catalog:cards"); err != nil {
		t.Errorf("Expected remote payload written to cache: %v", err)
	}
}

func TestLoader_ExhaustedChainFails(t *testing.T) {
	loader := NewLoader(LoaderOptions{BundledDir: t.TempDir()})

	_, _, err := loader.Load(context.Background())
	if err == nil {
		t.Fatal("Expected error when no source can serve a dataset")
	}
	if loader.State(DatasetCards) != StateFailed {
		t.Errorf("Expected cards dataset failed, got %s", loader.State(DatasetCards))
	}
}

func TestStore_RefreshSwapsSnapshot(t *testing.T) {
	dir := writeBundledData(t)
	loader := NewLoader(LoaderOptions{BundledDir: dir})

	store, _, err := NewStore(context.Background(), loader)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	before := store.Snapshot()
	if _, ok := before.Card("bundled-card"); !ok {
		t.Fatal("Expected bundled card in initial snapshot")
	}

	// Change the bundled data and refresh; the snapshot must be replaced
	if err := os.WriteFile(filepath.Join(dir, "cards.json"),
		[]byte(`[{"id": "updated-card", "name": "Updated Card", "issuer": "HDFC"}]`), 0o644); err != nil {
		t.Fatalf("Failed to rewrite bundled cards: %v", err)
	}

	if _, err := store.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	after := store.Snapshot()
	if _, ok := after.Card("updated-card"); !ok {
		t.Error("Expected updated card after refresh")
	}
	// The old snapshot an in-flight computation holds stays intact
	if _, ok := before.Card("bundled-card"); !ok {
		t.Error("Expected previous snapshot to remain readable")
	}
}

func TestStore_FailedRefreshKeepsSnapshot(t *testing.T) {
	dir := writeBundledData(t)
	loader := NewLoader(LoaderOptions{BundledDir: dir})

	store, _, err := NewStore(context.Background(), loader)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	if err := os.Remove(filepath.Join(dir, "cards.json")); err != nil {
		t.Fatalf("Failed to remove bundled cards: %v", err)
	}

	if _, err := store.Refresh(context.Background()); err == nil {
		t.Fatal("Expected refresh to fail with missing bundled data")
	}

	if _, ok := store.Snapshot().Card("bundled-card"); !ok {
		t.Error("Expected previous snapshot to survive a failed refresh")
	}
}
