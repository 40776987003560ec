// Package messaging provides the live purchase feed over websockets.
package messaging

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/coursesignal/coursesignal-go/internal/domain/commerce"
	"github.com/coursesignal/coursesignal-go/internal/infrastructure/observability/logging"
	"github.com/coursesignal/coursesignal-go/pkg/config"
	"github.com/gorilla/websocket"
)

// StreamClient represents a single connected dashboard client.
type StreamClient struct {
	Conn     *websocket.Conn
	TenantID string
	Send     chan []byte
}

// PurchaseEvent is the payload pushed to dashboard clients when a purchase
// is ingested. Email is omitted deliberately; the live feed is often shown
// on shared screens.
type PurchaseEvent struct {
	Type        string  `json:"type"`
	PurchaseID  string  `json:"purchaseId"`
	ProductName string  `json:"productName"`
	AmountCents int64   `json:"amountCents"`
	Currency    string  `json:"currency"`
	Source      *string `json:"source"`
	Status      string  `json:"status"`
	LaunchID    *string `json:"launchId,omitempty"`
	PurchasedAt string  `json:"purchasedAt"`
}

// PurchaseBroadcaster fans purchase events out to every dashboard client of
// the purchase's tenant. Cross-tenant delivery is impossible by construction;
// clients are bucketed by tenant ID at registration.
type PurchaseBroadcaster struct {
	tenantClients map[string]map[*StreamClient]bool
	register      chan *StreamClient
	unregister    chan *StreamClient
	events        chan queuedEvent
	logger        *logging.ChanneledLogger
	mu            sync.RWMutex
}

type queuedEvent struct {
	tenantID string
	payload  []byte
}

// NewPurchaseBroadcaster creates a new broadcaster instance.
func NewPurchaseBroadcaster(logger *logging.ChanneledLogger) *PurchaseBroadcaster {
	return &PurchaseBroadcaster{
		tenantClients: make(map[string]map[*StreamClient]bool),
		register:      make(chan *StreamClient),
		unregister:    make(chan *StreamClient),
		events:        make(chan queuedEvent, 256),
		logger:        logger,
	}
}

// Run starts the broadcaster's main loop. This should be run as a goroutine.
func (b *PurchaseBroadcaster) Run() {
	heartbeat := time.NewTicker(config.StreamHeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case client := <-b.register:
			b.mu.Lock()
			if _, ok := b.tenantClients[client.TenantID]; !ok {
				b.tenantClients[client.TenantID] = make(map[*StreamClient]bool)
			}
			b.tenantClients[client.TenantID][client] = true
			b.mu.Unlock()
			b.logger.Stream().Info("Stream client registered", "tenantId", client.TenantID, "clients", b.ClientCount(client.TenantID))

		case client := <-b.unregister:
			b.mu.Lock()
			if clients, ok := b.tenantClients[client.TenantID]; ok {
				if _, ok := clients[client]; ok {
					delete(clients, client)
					close(client.Send)
					if len(clients) == 0 {
						delete(b.tenantClients, client.TenantID)
					}
				}
			}
			b.mu.Unlock()
			b.logger.Stream().Info("Stream client unregistered", "tenantId", client.TenantID)

		case event := <-b.events:
			b.deliver(event.tenantID, event.payload)

		case <-heartbeat.C:
			b.broadcastHeartbeat()
		}
	}
}

// Register queues a client for registration.
func (b *PurchaseBroadcaster) Register(client *StreamClient) {
	b.register <- client
}

// Unregister queues a client for unregistration.
func (b *PurchaseBroadcaster) Unregister(client *StreamClient) {
	b.unregister <- client
}

// ClientCount returns the number of connected clients for a tenant.
func (b *PurchaseBroadcaster) ClientCount(tenantID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.tenantClients[tenantID])
}

// TotalClientCount returns the number of connected clients across all tenants.
func (b *PurchaseBroadcaster) TotalClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	total := 0
	for _, clients := range b.tenantClients {
		total += len(clients)
	}
	return total
}

// BroadcastPurchase pushes an ingested purchase to the tenant's dashboard
// clients. Delivery is best-effort; ingestion never blocks on slow clients.
func (b *PurchaseBroadcaster) BroadcastPurchase(tenantID string, purchase *commerce.Purchase) {
	event := PurchaseEvent{
		Type:        "purchase",
		PurchaseID:  purchase.ID,
		ProductName: purchase.ProductName,
		AmountCents: purchase.AmountCents,
		Currency:    purchase.Currency,
		Source:      purchase.LastTouch.Source,
		Status:      string(purchase.Status),
		LaunchID:    purchase.LaunchID,
		PurchasedAt: purchase.PurchasedAt.UTC().Format(time.RFC3339),
	}

	payload, err := json.Marshal(event)
	if err != nil {
		b.logger.Stream().Error("Failed to marshal purchase event", "error", err.Error(), "tenantId", tenantID)
		return
	}

	select {
	case b.events <- queuedEvent{tenantID: tenantID, payload: payload}:
	default:
		b.logger.Stream().Warn("Purchase event dropped, broadcaster queue full", "tenantId", tenantID)
	}
}

func (b *PurchaseBroadcaster) deliver(tenantID string, payload []byte) {
	b.mu.RLock()
	clients := make([]*StreamClient, 0, len(b.tenantClients[tenantID]))
	for client := range b.tenantClients[tenantID] {
		clients = append(clients, client)
	}
	b.mu.RUnlock()

	for _, client := range clients {
		select {
		case client.Send <- payload:
		default:
			// Slow consumer; drop the event rather than stall the loop.
			b.logger.Stream().Warn("Dropped event for slow stream client", "tenantId", tenantID)
		}
	}
}

func (b *PurchaseBroadcaster) broadcastHeartbeat() {
	payload, _ := json.Marshal(map[string]string{"type": "heartbeat"})

	b.mu.RLock()
	defer b.mu.RUnlock()
	for tenantID, clients := range b.tenantClients {
		for client := range clients {
			select {
			case client.Send <- payload:
			default:
				b.logger.Stream().Debug("Skipped heartbeat for slow stream client", "tenantId", tenantID)
			}
		}
	}
}

// WritePump pumps queued messages to a client's websocket connection. It
// runs in its own goroutine per connection and exits when the send channel
// closes.
func (c *StreamClient) WritePump() {
	defer c.Conn.Close()
	for message := range c.Send {
		c.Conn.SetWriteDeadline(time.Now().Add(config.StreamWriteTimeout))
		if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
	c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// ReadPump drains client messages to keep the connection alive and triggers
// unregistration on disconnect.
func (c *StreamClient) ReadPump(b *PurchaseBroadcaster) {
	defer func() {
		b.Unregister(c)
		c.Conn.Close()
	}()
	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			return
		}
	}
}
