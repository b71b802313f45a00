package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"donation-platform/internal/models"
	"donation-platform/internal/service"
	ws "donation-platform/internal/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	sendBufferSize = 16
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type WebSocketHandler struct {
	Transactions service.TransactionService
	Hub          *ws.Hub
	log          *zap.Logger
}

func NewWebSocketHandler(transactions service.TransactionService, hub *ws.Hub, log *zap.Logger) *WebSocketHandler {
	return &WebSocketHandler{Transactions: transactions, Hub: hub, log: log}
}

// ServeWs streams status changes of one transaction, starting with its
// current status. The client registers before that status is read so no
// change can fall between the two.
func (h *WebSocketHandler) ServeWs(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "transaction id must be a positive integer"})
		return
	}

	sessionID := c.Query(CheckoutSessionParam)
	if _, err := h.Transactions.Lookup(c.Request.Context(), id, sessionID); err != nil {
		respondError(c, h.log, err)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("failed to upgrade to websocket", zap.Error(err))
		return
	}

	client := &ws.Client{
		Hub:           h.Hub,
		Conn:          conn,
		Send:          make(chan []byte, sendBufferSize),
		TransactionID: id,
	}
	if !h.Hub.Register(client) {
		conn.Close()
		return
	}

	go h.writePump(client)
	go h.readPump(client)

	current, err := h.Transactions.Lookup(context.WithoutCancel(c.Request.Context()), id, sessionID)
	if err != nil {
		h.log.Error("failed to read transaction status for stream", zap.Int64("transaction_id", id), zap.Error(err))
		h.Hub.Unregister(client)
		return
	}
	h.Hub.Snapshot(client, models.TransactionStatus(current.Status))
}

func (h *WebSocketHandler) writePump(client *ws.Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		client.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-client.Send:
			client.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				client.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			client.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *WebSocketHandler) readPump(client *ws.Client) {
	defer func() {
		client.Hub.Unregister(client)
		client.Conn.Close()
	}()

	client.Conn.SetReadDeadline(time.Now().Add(pongWait))
	client.Conn.SetPongHandler(func(string) error {
		return client.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := client.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.log.Debug("websocket read error", zap.Error(err))
			}
			break
		}
	}
}
