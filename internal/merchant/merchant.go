// Package merchant normalizes raw checkout-page data into the fields a
// transaction context needs: a merchant slug derived from the page host and
// an amount parsed out of scraped price text.
package merchant

import (
	"strconv"
	"strings"
)

// hostSlugs maps a host fragment to its merchant slug. Matching is a
// substring check on the lowercased host so subdomains resolve too.
var hostSlugs = []struct {
	host string
	slug string
}{
	{"amazon.in", "amazon"},
	{"flipkart.com", "flipkart"},
	{"swiggy.com", "swiggy"},
	{"zomato.com", "zomato"},
	{"myntra.com", "myntra"},
	{"ajio.com", "ajio"},
	{"tatacliq.com", "tatacliq"},
}

// SlugFromHost resolves a page hostname to a merchant slug. The second
// return is false for hosts of unsupported merchants.
func SlugFromHost(host string) (string, bool) {
	host = strings.ToLower(strings.TrimSpace(host))
	if host == "" {
		return "", false
	}
	for _, m := range hostSlugs {
		if strings.Contains(host, m.host) {
			return m.slug, true
		}
	}
	return "", false
}

// ParseAmount extracts a monetary amount from scraped price text by
// stripping everything but digits and the decimal point. Currency symbols
// and thousands separators are discarded, e.g. "₹1,29,999.00" -> 129999.
// Returns false when no parseable number remains.
func ParseAmount(text string) (float64, bool) {
	var b strings.Builder
	for _, r := range text {
		if (r >= '0' && r <= '9') || r == '.' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return 0, false
	}
	amount, err := strconv.ParseFloat(b.String(), 64)
	if err != nil {
		return 0, false
	}
	return amount, true
}
