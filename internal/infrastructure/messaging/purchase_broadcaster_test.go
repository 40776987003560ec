package messaging

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/coursesignal/coursesignal-go/internal/domain/commerce"
	"github.com/coursesignal/coursesignal-go/internal/infrastructure/observability/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBroadcaster(t *testing.T) *PurchaseBroadcaster {
	t.Helper()
	logger, err := logging.NewChanneledLogger(&logging.LoggerConfig{OutputToConsole: true})
	require.NoError(t, err)
	return NewPurchaseBroadcaster(logger)
}

func testPurchase() *commerce.Purchase {
	return &commerce.Purchase{
		ID:          "p1",
		Email:       "jane@example.com",
		AmountCents: 49700,
		Currency:    "USD",
		ProductName: "Course A",
		Status:      commerce.StatusMatched,
		PurchasedAt: time.Date(2024, 11, 4, 12, 0, 0, 0, time.UTC),
	}
}

func TestBroadcastPurchaseOmitsEmail(t *testing.T) {
	b := newTestBroadcaster(t)
	purchase := testPurchase()
	purchase.LastTouch.Source = strPtr("youtube")

	b.BroadcastPurchase("acme", purchase)

	select {
	case event := <-b.events:
		assert.Equal(t, "acme", event.tenantID)
		assert.NotContains(t, string(event.payload), "jane@example.com")

		var decoded PurchaseEvent
		require.NoError(t, json.Unmarshal(event.payload, &decoded))
		assert.Equal(t, "purchase", decoded.Type)
		assert.Equal(t, "p1", decoded.PurchaseID)
		assert.Equal(t, int64(49700), decoded.AmountCents)
		require.NotNil(t, decoded.Source)
		assert.Equal(t, "youtube", *decoded.Source)
		assert.Equal(t, "2024-11-04T12:00:00Z", decoded.PurchasedAt)
	default:
		t.Fatal("no event queued")
	}
}

func TestBroadcastPurchaseNeverBlocksWhenQueueFull(t *testing.T) {
	b := newTestBroadcaster(t)
	purchase := testPurchase()

	// Fill the queue past capacity; the overflow must be dropped, not block.
	for i := 0; i < cap(b.events)+10; i++ {
		b.BroadcastPurchase("acme", purchase)
	}
	assert.Len(t, b.events, cap(b.events))
}

func TestDeliverIsScopedToTenant(t *testing.T) {
	b := newTestBroadcaster(t)
	acme := &StreamClient{TenantID: "acme", Send: make(chan []byte, 4)}
	other := &StreamClient{TenantID: "other", Send: make(chan []byte, 4)}
	b.tenantClients["acme"] = map[*StreamClient]bool{acme: true}
	b.tenantClients["other"] = map[*StreamClient]bool{other: true}

	b.deliver("acme", []byte(`{"type":"purchase"}`))

	assert.Len(t, acme.Send, 1)
	assert.Len(t, other.Send, 0)
	assert.Equal(t, 2, b.TotalClientCount())
	assert.Equal(t, 1, b.ClientCount("acme"))
}

func TestDeliverDropsForSlowClient(t *testing.T) {
	b := newTestBroadcaster(t)
	slow := &StreamClient{TenantID: "acme", Send: make(chan []byte)} // no buffer, no reader
	b.tenantClients["acme"] = map[*StreamClient]bool{slow: true}

	done := make(chan struct{})
	go func() {
		b.deliver("acme", []byte(`{}`))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("deliver blocked on slow client")
	}
}

func strPtr(s string) *string { return &s }
