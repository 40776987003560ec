package services

import (
	"testing"
	"time"

	"github.com/coursesignal/coursesignal-go/internal/domain/commerce"
	"github.com/coursesignal/coursesignal-go/internal/domain/visitor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func matchedPurchase(email, source string, amountCents int64, purchasedAt time.Time) *commerce.Purchase {
	p := &commerce.Purchase{
		Email:       email,
		AmountCents: amountCents,
		Status:      commerce.StatusMatched,
		PurchasedAt: purchasedAt,
	}
	if source != "" {
		p.LastTouch.Source = strPtr(source)
	}
	return p
}

func unmatchedPurchase(email string, amountCents int64, purchasedAt time.Time) *commerce.Purchase {
	return &commerce.Purchase{
		Email:       email,
		AmountCents: amountCents,
		Status:      commerce.StatusUnmatched,
		PurchasedAt: purchasedAt,
	}
}

func TestWindowPrior(t *testing.T) {
	window := Window{Since: at("2024-11-01T00:00:00Z"), Until: at("2024-11-08T00:00:00Z")}
	prior := window.Prior()

	assert.Equal(t, at("2024-10-25T00:00:00Z"), prior.Since)
	assert.Equal(t, at("2024-11-01T00:00:00Z"), prior.Until)
}

func TestSummarizeTotalsIncludeUnmatched(t *testing.T) {
	now := at("2024-11-04T00:00:00Z")
	current := []*commerce.Purchase{
		matchedPurchase("a@example.com", "youtube", 10000, now),
		matchedPurchase("a@example.com", "newsletter", 5000, now), // same buyer
		unmatchedPurchase("b@example.com", 20000, now),
	}

	summary := summarize(current, nil)

	assert.Equal(t, int64(35000), summary.TotalRevenueCents, "revenue reconciles across matched and unmatched")
	assert.Equal(t, 2, summary.TotalBuyers)
	assert.Equal(t, 3, summary.TotalPurchases)
	assert.Equal(t, int64(11666), summary.AvgOrderValueCents)
}

func TestSummarizeBuyersAreCaseInsensitive(t *testing.T) {
	now := at("2024-11-04T00:00:00Z")
	current := []*commerce.Purchase{
		matchedPurchase("Jane@Example.com", "youtube", 1000, now),
		matchedPurchase("jane@example.com", "youtube", 1000, now),
	}

	summary := summarize(current, nil)
	assert.Equal(t, 1, summary.TotalBuyers)
}

func TestSummarizeTrends(t *testing.T) {
	now := at("2024-11-04T00:00:00Z")
	current := []*commerce.Purchase{
		matchedPurchase("a@example.com", "youtube", 15000, now),
	}
	prior := []*commerce.Purchase{
		matchedPurchase("b@example.com", "youtube", 10000, now.AddDate(0, 0, -7)),
	}

	summary := summarize(current, prior)
	assert.InDelta(t, 50.0, summary.Trends.Revenue, 0.001)
	assert.InDelta(t, 0.0, summary.Trends.Buyers, 0.001)
	assert.InDelta(t, 0.0, summary.Trends.Purchases, 0.001)
}

func TestTrendZeroPriorIsZero(t *testing.T) {
	assert.Equal(t, 0.0, trend(5000, 0))
	assert.Equal(t, 0.0, trend(0, 0))
	assert.InDelta(t, -50.0, trend(50, 100), 0.001)
}

func TestSummarizeEmptyWindow(t *testing.T) {
	summary := summarize(nil, nil)

	assert.Equal(t, int64(0), summary.TotalRevenueCents)
	assert.Equal(t, 0, summary.TotalBuyers)
	assert.Equal(t, int64(0), summary.AvgOrderValueCents)
	assert.Equal(t, 0.0, summary.Trends.Revenue)
}

func TestGroupBySourceBucketsAndOrdering(t *testing.T) {
	now := at("2024-11-04T00:00:00Z")
	purchases := []*commerce.Purchase{
		matchedPurchase("a@example.com", "youtube", 10000, now),
		matchedPurchase("b@example.com", "youtube", 20000, now),
		matchedPurchase("c@example.com", "newsletter", 5000, now),
		matchedPurchase("d@example.com", "", 7000, now),   // direct
		unmatchedPurchase("e@example.com", 100000, now),   // excluded from breakdown
	}

	sources := groupBySource(purchases, nil)

	require.Len(t, sources, 3)
	assert.Equal(t, "youtube", sources[0].Source)
	assert.Equal(t, int64(30000), sources[0].RevenueCents)
	assert.Equal(t, 2, sources[0].Buyers)
	assert.Equal(t, int64(15000), sources[0].AvgOrderValueCents)
	assert.Equal(t, "direct", sources[1].Source)
	assert.Equal(t, "newsletter", sources[2].Source)

	var breakdownTotal int64
	for _, row := range sources {
		breakdownTotal += row.RevenueCents
	}
	assert.Equal(t, int64(42000), breakdownTotal, "unmatched revenue stays out of the per-source rows")
}

func TestGroupBySourceVisitorDenominator(t *testing.T) {
	now := at("2024-11-04T00:00:00Z")
	// v1 and v2 both end the window on youtube; v3 ends on newsletter even
	// though it touched youtube earlier.
	touches := []*visitor.Touch{
		touchAt("v1", "youtube", at("2024-11-01T00:00:00Z")),
		touchAt("v2", "youtube", at("2024-11-02T00:00:00Z")),
		touchAt("v3", "youtube", at("2024-11-01T00:00:00Z")),
		touchAt("v3", "newsletter", at("2024-11-03T00:00:00Z")),
	}
	purchases := []*commerce.Purchase{
		matchedPurchase("a@example.com", "youtube", 10000, now),
	}

	sources := groupBySource(purchases, touches)

	require.Len(t, sources, 1)
	assert.Equal(t, "youtube", sources[0].Source)
	assert.Equal(t, 2, sources[0].Visitors)
	assert.InDelta(t, 50.0, sources[0].ConversionRate, 0.001)
	assert.Equal(t, int64(5000), sources[0].RevenuePerVisitorCents)
}

func TestGroupBySourceZeroVisitorsYieldsZeroRates(t *testing.T) {
	now := at("2024-11-04T00:00:00Z")
	purchases := []*commerce.Purchase{
		matchedPurchase("a@example.com", "podcast", 10000, now),
	}

	sources := groupBySource(purchases, nil)

	require.Len(t, sources, 1)
	assert.Equal(t, 0, sources[0].Visitors)
	assert.Equal(t, 0.0, sources[0].ConversionRate)
	assert.Equal(t, int64(0), sources[0].RevenuePerVisitorCents)
}

func TestComputeMatchRate(t *testing.T) {
	now := at("2024-11-04T00:00:00Z")

	assert.Equal(t, 0.0, computeMatchRate(nil))

	purchases := []*commerce.Purchase{
		matchedPurchase("a@example.com", "youtube", 1000, now),
		matchedPurchase("b@example.com", "youtube", 1000, now),
		unmatchedPurchase("c@example.com", 1000, now),
		unmatchedPurchase("d@example.com", 1000, now),
	}
	assert.InDelta(t, 50.0, computeMatchRate(purchases), 0.001)
}

func TestValidateWindow(t *testing.T) {
	since := at("2024-11-01T00:00:00Z")

	assert.NoError(t, validateWindow(Window{Since: since, Until: since.AddDate(0, 0, 7)}))
	assert.ErrorIs(t, validateWindow(Window{}), ErrInvalidWindow)
	assert.ErrorIs(t, validateWindow(Window{Since: since, Until: since}), ErrInvalidWindow)
	assert.ErrorIs(t, validateWindow(Window{Since: since, Until: since.AddDate(0, 0, -1)}), ErrInvalidWindow)
}
