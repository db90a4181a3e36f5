package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"card-optimiser/internal/cache"
	"card-optimiser/internal/catalog"
	"card-optimiser/internal/engine"
	"card-optimiser/internal/events"
	"card-optimiser/internal/features"
	"card-optimiser/internal/merchant"
	"card-optimiser/internal/models"
	"card-optimiser/internal/profile"
	"card-optimiser/internal/validation"
)

// ErrFeatureDisabled is returned when a request hits a disabled feature.
var ErrFeatureDisabled = errors.New("feature is disabled")

// DefaultCategory tags contexts that do not carry one. Online shopping is
// the only category the scraping side produces today.
const DefaultCategory = "online_shopping"

// Service provides the business logic behind the API: capturing transaction
// contexts, maintaining held-card sets, and invoking the recommendation
// engine against the current catalog snapshot.
type Service struct {
	catalogs   *catalog.Store
	profiles   *profile.Store
	cache      cache.Cache
	events     *events.Manager
	features   *features.Manager
	contextTTL time.Duration
}

// NewService creates a new service instance.
func NewService(catalogs *catalog.Store, profiles *profile.Store, c cache.Cache, ev *events.Manager, ff *features.Manager, contextTTL time.Duration) *Service {
	return &Service{
		catalogs:   catalogs,
		profiles:   profiles,
		cache:      c,
		events:     ev,
		features:   ff,
		contextTTL: contextTTL,
	}
}

func contextKey(userID string) string {
	return "context:" + userID
}

// StoreContext captures a scraped transaction context for a user. Raw page
// fields (host, amount text) are normalized first; already-normalized
// fields pass through untouched.
func (s *Service) StoreContext(ctx context.Context, userID string, req models.ContextRequest) (models.TransactionContext, error) {
	if !s.features.IsEnabled(features.FeatureScrapedContext) {
		return models.TransactionContext{}, ErrFeatureDisabled
	}

	if err := validation.ValidateUUID(userID, "user_id"); err != nil {
		return models.TransactionContext{}, err
	}

	txnCtx := models.TransactionContext{
		MerchantSlug: req.MerchantSlug,
		Amount:       req.Amount,
		Category:     req.Category,
	}

	if txnCtx.MerchantSlug == "" && req.Host != "" {
		slug, ok := merchant.SlugFromHost(req.Host)
		if !ok {
			return models.TransactionContext{}, &validation.ValidationError{
				Field:   "host",
				Message: fmt.Sprintf("unsupported merchant host: %s", req.Host),
			}
		}
		txnCtx.MerchantSlug = slug
	}

	if txnCtx.Amount == 0 && req.AmountText != "" {
		amount, ok := merchant.ParseAmount(req.AmountText)
		if !ok {
			return models.TransactionContext{}, &validation.ValidationError{
				Field:   "amount_text",
				Message: "does not contain a parseable amount",
			}
		}
		txnCtx.Amount = amount
	}

	if txnCtx.Category == "" {
		txnCtx.Category = DefaultCategory
	}

	if err := validation.ValidateContext(txnCtx); err != nil {
		return models.TransactionContext{}, err
	}

	if err := cache.SetJSON(ctx, s.cache, contextKey(userID), txnCtx, s.contextTTL); err != nil {
		return models.TransactionContext{}, fmt.Errorf("failed to store context: %w", err)
	}

	s.events.PublishContextReceived(ctx, userID, txnCtx)

	return txnCtx, nil
}

// GetRecommendations computes recommendations from the user's stored
// context. A missing context is not an error: the response carries a nil
// context and no results so the caller can tell the empty states apart.
func (s *Service) GetRecommendations(ctx context.Context, userID string, now time.Time) (models.RecommendationsResponse, error) {
	if err := validation.ValidateUUID(userID, "user_id"); err != nil {
		return models.RecommendationsResponse{}, err
	}

	heldCards, err := s.profiles.HeldCards(userID)
	if err != nil {
		return models.RecommendationsResponse{}, fmt.Errorf("failed to load held cards: %w", err)
	}

	var txnCtx models.TransactionContext
	if err := cache.GetJSON(ctx, s.cache, contextKey(userID), &txnCtx); err != nil {
		if errors.Is(err, cache.ErrNotFound) {
			return models.RecommendationsResponse{
				Context:   nil,
				HeldCards: len(heldCards),
				Results:   []models.Recommendation{},
			}, nil
		}
		return models.RecommendationsResponse{}, fmt.Errorf("failed to load context: %w", err)
	}

	results := engine.Compute(txnCtx, heldCards, s.catalogs.Snapshot(), now)

	s.events.PublishRecommendationComputed(ctx, userID, txnCtx, results)

	return models.RecommendationsResponse{
		Context:   &txnCtx,
		HeldCards: len(heldCards),
		Results:   results,
	}, nil
}

// CalculateManual computes recommendations for a directly supplied context,
// bypassing any stored one. The context is marked as manually entered.
func (s *Service) CalculateManual(ctx context.Context, userID string, txnCtx models.TransactionContext, now time.Time) (models.RecommendationsResponse, error) {
	if !s.features.IsEnabled(features.FeatureManualCalculation) {
		return models.RecommendationsResponse{}, ErrFeatureDisabled
	}

	if err := validation.ValidateUUID(userID, "user_id"); err != nil {
		return models.RecommendationsResponse{}, err
	}

	if txnCtx.Category == "" {
		txnCtx.Category = DefaultCategory
	}
	txnCtx.Manual = true

	if err := validation.ValidateContext(txnCtx); err != nil {
		return models.RecommendationsResponse{}, err
	}

	heldCards, err := s.profiles.HeldCards(userID)
	if err != nil {
		return models.RecommendationsResponse{}, fmt.Errorf("failed to load held cards: %w", err)
	}

	results := engine.Compute(txnCtx, heldCards, s.catalogs.Snapshot(), now)

	s.events.PublishRecommendationComputed(ctx, userID, txnCtx, results)

	return models.RecommendationsResponse{
		Context:   &txnCtx,
		HeldCards: len(heldCards),
		Results:   results,
	}, nil
}

// HeldCards returns the user's held card set.
func (s *Service) HeldCards(userID string) (models.HeldCardsResponse, error) {
	if err := validation.ValidateUUID(userID, "user_id"); err != nil {
		return models.HeldCardsResponse{}, err
	}

	cardIDs, err := s.profiles.HeldCards(userID)
	if err != nil {
		return models.HeldCardsResponse{}, fmt.Errorf("failed to load held cards: %w", err)
	}
	if cardIDs == nil {
		cardIDs = []string{}
	}

	return models.HeldCardsResponse{UserID: userID, CardIDs: cardIDs}, nil
}

// ReplaceHeldCards replaces the user's held card set. Ids are not checked
// against the catalog: a card the catalog no longer lists simply stops
// contributing to recommendations.
func (s *Service) ReplaceHeldCards(ctx context.Context, userID string, cardIDs []string) (models.HeldCardsResponse, error) {
	if err := validation.ValidateUUID(userID, "user_id"); err != nil {
		return models.HeldCardsResponse{}, err
	}

	if err := validation.ValidateHeldCards(cardIDs); err != nil {
		return models.HeldCardsResponse{}, err
	}

	if err := s.profiles.ReplaceHeldCards(userID, cardIDs); err != nil {
		return models.HeldCardsResponse{}, fmt.Errorf("failed to replace held cards: %w", err)
	}

	s.events.PublishCardsUpdated(ctx, userID, cardIDs)

	if cardIDs == nil {
		cardIDs = []string{}
	}
	return models.HeldCardsResponse{UserID: userID, CardIDs: cardIDs}, nil
}

// Cards lists the catalog's cards for the card picker.
func (s *Service) Cards() []models.Card {
	return s.catalogs.Snapshot().Cards()
}

// RefreshCatalog forces a catalog reload through the fallback chain.
func (s *Service) RefreshCatalog(ctx context.Context) (models.RefreshResponse, error) {
	result, err := s.catalogs.Refresh(ctx)
	if err != nil {
		return models.RefreshResponse{}, fmt.Errorf("failed to refresh catalog: %w", err)
	}

	s.events.PublishCatalogRefreshed(ctx, string(result.Cards), string(result.Rules), string(result.Offers))

	return models.RefreshResponse{
		Cards:  string(result.Cards),
		Rules:  string(result.Rules),
		Offers: string(result.Offers),
	}, nil
}
