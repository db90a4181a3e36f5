// Package engine ranks a user's held cards by the monetary benefit they
// yield on a single transaction, combining each card's standing reward
// program with any currently-active promotional offer.
package engine

import (
	"math"
	"sort"
	"time"

	"card-optimiser/internal/catalog"
	"card-optimiser/internal/models"
)

// Compute returns per-card savings estimates for the given transaction,
// sorted by total value descending (stable, so ties keep held-card order).
//
// The function is pure: it only reads the snapshot and allocates fresh
// output. Missing data never fails the computation: an unknown card id is
// skipped, a missing reward rule or offer contributes zero, and cards whose
// total is not positive are omitted. Degenerate amounts (NaN, non-positive)
// therefore fall out of the result rather than raising an error.
func Compute(txn models.TransactionContext, heldCardIDs []string, snap *catalog.Snapshot, now time.Time) []models.Recommendation {
	results := make([]models.Recommendation, 0, len(heldCardIDs))

	for _, cardID := range heldCardIDs {
		card, ok := snap.Card(cardID)
		if !ok {
			continue
		}

		rewardValue, rewardExplanation := rewardProgramValue(txn, cardID, snap)
		discount, offerExplanation := offerValue(txn, card, snap, now)

		total := rewardValue + discount
		if !(total > 0) {
			continue
		}

		results = append(results, models.Recommendation{
			CardID:             cardID,
			CardName:           card.Name,
			TotalValue:         round2(total),
			RewardProgramValue: round2(rewardValue),
			OfferValue:         round2(discount),
			Explanation:        joinExplanations(offerExplanation, rewardExplanation),
			Color:              card.Color,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].TotalValue > results[j].TotalValue
	})
	return results
}

// rewardProgramValue values the card's standing reward program. The first
// merchant rule (in catalog order) whose slug set contains the transaction's
// merchant wins over the base rate; the points multiplier applies only on
// the base-rate path.
func rewardProgramValue(txn models.TransactionContext, cardID string, snap *catalog.Snapshot) (float64, string) {
	rule, ok := snap.RewardRule(cardID)
	if !ok {
		return 0, ""
	}

	for _, m := range rule.Merchants {
		if containsSlug(m.Slugs, txn.MerchantSlug) {
			value := txn.Amount * m.Rate
			if m.Cap > 0 {
				value = math.Min(value, m.Cap)
			}
			return value, m.Explanation
		}
	}

	value := txn.Amount * rule.BaseRate
	if rule.Type == models.RewardTypePoints {
		perPoint := rule.ValuePerPoint
		if perPoint == 0 {
			perPoint = 1
		}
		value *= perPoint
	}
	return value, rule.DefaultExplanation
}

// offerValue finds the first offer (in catalog order) eligible for the
// transaction and card. Eligibility requires an exact merchant match, the
// current time within the offer window inclusive on both ends, the amount
// at or above the minimum, and an exact issuer match.
func offerValue(txn models.TransactionContext, card models.Card, snap *catalog.Snapshot, now time.Time) (float64, string) {
	for _, o := range snap.Offers() {
		if o.Merchant != txn.MerchantSlug {
			continue
		}
		if now.Before(o.StartDate) || now.After(o.EndDate) {
			continue
		}
		if txn.Amount < o.MinTxn {
			continue
		}
		if o.CardIssuer != card.Issuer {
			continue
		}

		discount := txn.Amount * o.Value
		if o.MaxValue > 0 {
			discount = math.Min(discount, o.MaxValue)
		}
		return discount, o.Explanation
	}
	return 0, ""
}

func containsSlug(slugs []string, slug string) bool {
	for _, s := range slugs {
		if s == slug {
			return true
		}
	}
	return false
}

// joinExplanations concatenates the offer and reward explanations with
// " + " when both are present.
func joinExplanations(offer, reward string) string {
	switch {
	case offer != "" && reward != "":
		return offer + " + " + reward
	case offer != "":
		return offer
	default:
		return reward
	}
}

// round2 rounds to two decimal places for display.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
