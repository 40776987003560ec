package services

import (
	"testing"
	"time"

	"github.com/coursesignal/coursesignal-go/internal/domain/commerce"
	"github.com/coursesignal/coursesignal-go/internal/domain/visitor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func purchaseInput(overrides ...func(*PurchaseInput)) PurchaseInput {
	input := PurchaseInput{
		Platform:           "kajabi",
		PlatformPurchaseID: "order-1",
		Email:              "jane@example.com",
		AmountCents:        49700,
		Currency:           "usd",
		ProductName:        "Course A",
		PurchasedAt:        at("2024-11-04T12:00:00Z"),
	}
	for _, override := range overrides {
		override(&input)
	}
	return input
}

func TestIngestPurchaseMatchedWithAttribution(t *testing.T) {
	identities := &fakeIdentityRepo{identities: []*visitor.Identity{{
		ID:         "v1",
		Email:      strPtr("jane@example.com"),
		FirstTouch: visitor.TouchSnapshot{Source: strPtr("youtube")},
	}}}
	touches := &fakeTouchRepo{touches: []*visitor.Touch{
		touchAt("v1", "youtube", at("2024-11-01T00:00:00Z")),
		touchAt("v1", "newsletter", at("2024-11-04T00:00:00Z")),
	}}
	purchases := &fakePurchaseRepo{}

	purchase, created, err := newTestIngestionService(t).ingest("acme", identities, touches, purchases, &fakeLaunchRepo{}, purchaseInput(), at("2024-11-04T12:01:00Z"), 90)

	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, commerce.StatusMatched, purchase.Status)
	require.NotNil(t, purchase.VisitorID)
	assert.Equal(t, "v1", *purchase.VisitorID)
	require.NotNil(t, purchase.FirstTouch.Source)
	assert.Equal(t, "youtube", *purchase.FirstTouch.Source)
	require.NotNil(t, purchase.LastTouch.Source)
	assert.Equal(t, "newsletter", *purchase.LastTouch.Source)
	assert.Equal(t, "USD", purchase.Currency)
}

func TestIngestPurchaseUnmatchedStillStored(t *testing.T) {
	purchases := &fakePurchaseRepo{}

	purchase, created, err := newTestIngestionService(t).ingest("acme", &fakeIdentityRepo{}, &fakeTouchRepo{}, purchases, &fakeLaunchRepo{}, purchaseInput(), at("2024-11-04T12:01:00Z"), 90)

	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, commerce.StatusUnmatched, purchase.Status)
	assert.Nil(t, purchase.VisitorID)
	assert.Len(t, purchases.purchases, 1)
}

func TestIngestPurchaseIdempotentRedelivery(t *testing.T) {
	purchases := &fakePurchaseRepo{}

	first, created, err := newTestIngestionService(t).ingest("acme", &fakeIdentityRepo{}, &fakeTouchRepo{}, purchases, &fakeLaunchRepo{}, purchaseInput(), at("2024-11-04T12:01:00Z"), 90)
	require.NoError(t, err)
	require.True(t, created)

	second, created, err := newTestIngestionService(t).ingest("acme", &fakeIdentityRepo{}, &fakeTouchRepo{}, purchases, &fakeLaunchRepo{}, purchaseInput(), at("2024-11-04T13:00:00Z"), 90)
	require.NoError(t, err)

	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, purchases.purchases, 1)
}

// racingPurchaseRepo simulates a concurrent delivery winning the insert race
// after the pre-check saw no existing row.
type racingPurchaseRepo struct {
	fakePurchaseRepo
	winner    *commerce.Purchase
	prechecks int
}

func (r *racingPurchaseRepo) FindByPlatformID(platform, platformPurchaseID string) (*commerce.Purchase, error) {
	r.prechecks++
	if r.prechecks == 1 {
		return nil, nil
	}
	return r.winner, nil
}

func (r *racingPurchaseRepo) Create(purchase *commerce.Purchase) error {
	return commerce.ErrDuplicatePurchase
}

func TestIngestPurchaseConcurrentInsertRace(t *testing.T) {
	winner := &commerce.Purchase{ID: "existing", Platform: "kajabi", PlatformPurchaseID: "order-1"}
	purchases := &racingPurchaseRepo{winner: winner}

	purchase, created, err := newTestIngestionService(t).ingest("acme", &fakeIdentityRepo{}, &fakeTouchRepo{}, purchases, &fakeLaunchRepo{}, purchaseInput(), at("2024-11-04T12:01:00Z"), 90)

	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "existing", purchase.ID)
}

func TestIngestPurchaseLaunchAssociation(t *testing.T) {
	launches := &fakeLaunchRepo{launches: []*commerce.Launch{{
		ID:        "launch-1",
		Name:      "November Launch",
		StartDate: at("2024-11-01T00:00:00Z"),
		EndDate:   at("2024-11-07T23:59:59Z"),
		CreatedAt: at("2024-10-01T00:00:00Z"),
	}}}
	purchases := &fakePurchaseRepo{}

	purchase, _, err := newTestIngestionService(t).ingest("acme", &fakeIdentityRepo{}, &fakeTouchRepo{}, purchases, launches, purchaseInput(), at("2024-11-04T12:01:00Z"), 90)

	require.NoError(t, err)
	require.NotNil(t, purchase.LaunchID)
	assert.Equal(t, "launch-1", *purchase.LaunchID)
}

func TestIngestPurchaseOutsideLaunchWindow(t *testing.T) {
	launches := &fakeLaunchRepo{launches: []*commerce.Launch{{
		ID:        "launch-1",
		StartDate: at("2024-12-01T00:00:00Z"),
		EndDate:   at("2024-12-07T23:59:59Z"),
	}}}

	purchase, _, err := newTestIngestionService(t).ingest("acme", &fakeIdentityRepo{}, &fakeTouchRepo{}, &fakePurchaseRepo{}, launches, purchaseInput(), at("2024-11-04T12:01:00Z"), 90)

	require.NoError(t, err)
	assert.Nil(t, purchase.LaunchID)
}

func TestIngestPurchaseLaunchHint(t *testing.T) {
	launches := &fakeLaunchRepo{launches: []*commerce.Launch{{
		ID:        "launch-1",
		StartDate: at("2024-12-01T00:00:00Z"),
		EndDate:   at("2024-12-07T23:59:59Z"),
	}}}

	// An explicit hint wins even when the purchase falls outside the window.
	input := purchaseInput(func(i *PurchaseInput) { i.LaunchID = strPtr("launch-1") })
	purchase, _, err := newTestIngestionService(t).ingest("acme", &fakeIdentityRepo{}, &fakeTouchRepo{}, &fakePurchaseRepo{}, launches, input, at("2024-11-04T12:01:00Z"), 90)
	require.NoError(t, err)
	require.NotNil(t, purchase.LaunchID)
	assert.Equal(t, "launch-1", *purchase.LaunchID)

	// An unknown hint is an error, not a silent nil.
	input = purchaseInput(func(i *PurchaseInput) {
		i.PlatformPurchaseID = "order-2"
		i.LaunchID = strPtr("missing")
	})
	_, _, err = newTestIngestionService(t).ingest("acme", &fakeIdentityRepo{}, &fakeTouchRepo{}, &fakePurchaseRepo{}, launches, input, at("2024-11-04T12:01:00Z"), 90)
	assert.ErrorIs(t, err, ErrLaunchNotFound)
}

func TestIngestPurchaseValidation(t *testing.T) {
	tests := []struct {
		name     string
		override func(*PurchaseInput)
	}{
		{name: "missing platform", override: func(i *PurchaseInput) { i.Platform = "" }},
		{name: "missing platform purchase id", override: func(i *PurchaseInput) { i.PlatformPurchaseID = " " }},
		{name: "missing email", override: func(i *PurchaseInput) { i.Email = "" }},
		{name: "negative amount", override: func(i *PurchaseInput) { i.AmountCents = -1 }},
		{name: "missing currency", override: func(i *PurchaseInput) { i.Currency = "" }},
		{name: "zero timestamp", override: func(i *PurchaseInput) { i.PurchasedAt = time.Time{} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := newTestIngestionService(t).ingest("acme", &fakeIdentityRepo{}, &fakeTouchRepo{}, &fakePurchaseRepo{}, &fakeLaunchRepo{}, purchaseInput(tt.override), at("2024-11-04T12:01:00Z"), 90)
			assert.ErrorIs(t, err, ErrInvalidPurchase)
		})
	}
}

func TestIngestPurchaseZeroAmountAllowed(t *testing.T) {
	input := purchaseInput(func(i *PurchaseInput) { i.AmountCents = 0 })

	purchase, created, err := newTestIngestionService(t).ingest("acme", &fakeIdentityRepo{}, &fakeTouchRepo{}, &fakePurchaseRepo{}, &fakeLaunchRepo{}, input, at("2024-11-04T12:01:00Z"), 90)

	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, int64(0), purchase.AmountCents)
}
