package handlers

import (
	"net/http"
	"sync/atomic"

	"github.com/coursesignal/coursesignal-go/internal/infrastructure/messaging"
	"github.com/coursesignal/coursesignal-go/internal/infrastructure/observability/logging"
	"github.com/coursesignal/coursesignal-go/internal/presentation/http/middleware"
	"github.com/coursesignal/coursesignal-go/pkg/config"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// StreamHandlers contains the live purchase feed HTTP handlers
type StreamHandlers struct {
	broadcaster *messaging.PurchaseBroadcaster
	logger      *logging.ChanneledLogger
	upgrader    websocket.Upgrader
}

var activeStreamConnections int64

// NewStreamHandlers creates stream handlers with injected dependencies
func NewStreamHandlers(broadcaster *messaging.PurchaseBroadcaster, logger *logging.ChanneledLogger) *StreamHandlers {
	return &StreamHandlers{
		broadcaster: broadcaster,
		logger:      logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Origin checks are enforced by the CORS layer; the handshake
			// itself accepts any origin so dashboards on seller domains work.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// GetPurchaseStream handles GET /api/v1/purchases/stream, upgrading to a
// websocket that receives the tenant's live purchase events.
func (h *StreamHandlers) GetPurchaseStream(c *gin.Context) {
	tenantCtx, exists := middleware.GetTenantContext(c)
	if !exists {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "tenant context not found"})
		return
	}

	if atomic.LoadInt64(&activeStreamConnections) >= int64(config.MaxStreamConnections) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "stream capacity reached"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Stream().Error("Websocket upgrade failed", "error", err.Error(), "tenantId", tenantCtx.TenantID)
		return
	}

	atomic.AddInt64(&activeStreamConnections, 1)
	client := &messaging.StreamClient{
		Conn:     conn,
		TenantID: tenantCtx.TenantID,
		Send:     make(chan []byte, 64),
	}
	h.broadcaster.Register(client)

	go client.WritePump()
	go func() {
		client.ReadPump(h.broadcaster)
		atomic.AddInt64(&activeStreamConnections, -1)
	}()
}
