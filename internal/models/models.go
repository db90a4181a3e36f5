package models

import "time"

// Card identifies a card product a user can hold.
type Card struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Issuer string `json:"issuer"`
	Color  string `json:"color,omitempty"` // cosmetic, passed through to the UI
}

// RewardRule describes how a card earns value on spend. At most one rule
// exists per card id.
type RewardRule struct {
	CardID             string         `json:"cardId"`
	BaseRate           float64        `json:"baseRate"` // fraction of amount
	DefaultExplanation string         `json:"defaultExplanation"`
	Type               string         `json:"type,omitempty"`          // "points" flags point-based programs
	ValuePerPoint      float64        `json:"valuePerPoint,omitempty"` // applied only when Type == "points"
	Merchants          []MerchantRule `json:"merchants,omitempty"`
}

// RewardTypePoints marks a points-based program whose earn rate is
// converted to money through ValuePerPoint.
const RewardTypePoints = "points"

// MerchantRule overrides the base rate for a set of merchant slugs.
type MerchantRule struct {
	Slugs       []string `json:"slugs"`
	Rate        float64  `json:"rate"`
	Cap         float64  `json:"cap,omitempty"` // maximum absolute value, 0 = uncapped
	Explanation string   `json:"explanation"`
}

// Offer is a time-boxed promotional discount tied to a card issuer.
type Offer struct {
	Merchant    string    `json:"merchant"`
	CardIssuer  string    `json:"cardIssuer"`
	StartDate   time.Time `json:"startDate"`
	EndDate     time.Time `json:"endDate"` // window is inclusive on both ends
	MinTxn      float64   `json:"minTxn"`
	Value       float64   `json:"value"`              // fraction of amount
	MaxValue    float64   `json:"maxValue,omitempty"` // cap, 0 = uncapped
	Explanation string    `json:"explanation"`
}

// TransactionContext is the input to a recommendation computation.
type TransactionContext struct {
	MerchantSlug string  `json:"merchant_slug"`
	Amount       float64 `json:"amount"`
	Category     string  `json:"category,omitempty"`
	Manual       bool    `json:"manual,omitempty"` // provenance marker, not used in scoring
}

// Recommendation is the per-card savings estimate. Value fields are rounded
// to two decimals for display; TotalValue is rounded from the raw sum, so it
// may differ from the sum of the rounded parts by a cent.
type Recommendation struct {
	CardID             string  `json:"card_id"`
	CardName           string  `json:"card_name"`
	TotalValue         float64 `json:"total_value"`
	RewardProgramValue float64 `json:"reward_program_value"`
	OfferValue         float64 `json:"offer_value"`
	Explanation        string  `json:"explanation"`
	Color              string  `json:"color,omitempty"`
}

// ContextRequest is the body for pushing a scraped context. Either the
// normalized fields (merchant_slug, amount) or the raw page fields
// (host, amount_text) must be supplied; raw fields are resolved server-side.
type ContextRequest struct {
	MerchantSlug string  `json:"merchant_slug,omitempty"`
	Amount       float64 `json:"amount,omitempty"`
	Category     string  `json:"category,omitempty"`
	Host         string  `json:"host,omitempty"`
	AmountText   string  `json:"amount_text,omitempty"`
}

// RecommendationsResponse answers a recommendation request. Context is null
// when no context has been captured for the user; callers distinguish the
// empty states (no cards vs no value vs no context) from HeldCards and the
// result length.
type RecommendationsResponse struct {
	Context   *TransactionContext `json:"context"`
	HeldCards int                 `json:"held_cards"`
	Results   []Recommendation    `json:"results"`
}

// HeldCardsRequest replaces a user's held card set.
type HeldCardsRequest struct {
	CardIDs []string `json:"card_ids"`
}

// HeldCardsResponse returns a user's held card set.
type HeldCardsResponse struct {
	UserID  string   `json:"user_id"`
	CardIDs []string `json:"card_ids"`
}

// RefreshResponse reports the source each catalog dataset was loaded from.
type RefreshResponse struct {
	Cards  string `json:"cards"`
	Rules  string `json:"rules"`
	Offers string `json:"offers"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
}
