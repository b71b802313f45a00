package websocket

import (
	"context"
	"encoding/json"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"donation-platform/internal/dto"
	"donation-platform/internal/models"
)

const broadcastBuffer = 64

type Client struct {
	Hub           *Hub
	Conn          *websocket.Conn
	Send          chan []byte
	TransactionID int64

	// last is the status most recently queued on Send. Owned by Run.
	last models.TransactionStatus
}

type snapshot struct {
	client *Client
	status models.TransactionStatus
}

// Hub fans status updates out to the clients watching each transaction. All
// subscription state is owned by the Run goroutine.
type Hub struct {
	clients    map[int64]map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan dto.StatusUpdate
	snapshots  chan snapshot
	done       chan struct{}
	log        *zap.Logger
}

func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[int64]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan dto.StatusUpdate, broadcastBuffer),
		snapshots:  make(chan snapshot),
		done:       make(chan struct{}),
		log:        log,
	}
}

// Run serves the hub until ctx is cancelled, then closes every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			for id, set := range h.clients {
				for client := range set {
					close(client.Send)
				}
				delete(h.clients, id)
			}
			return

		case client := <-h.register:
			set, ok := h.clients[client.TransactionID]
			if !ok {
				set = make(map[*Client]bool)
				h.clients[client.TransactionID] = set
			}
			set[client] = true
			h.log.Debug("websocket client registered", zap.Int64("transaction_id", client.TransactionID))

		case client := <-h.unregister:
			h.remove(client)

		case s := <-h.snapshots:
			if h.clients[s.client.TransactionID][s.client] {
				h.deliver(s.client, s.status)
			}

		case update := <-h.broadcast:
			for client := range h.clients[update.TransactionID] {
				h.deliver(client, models.TransactionStatus(update.Status))
			}
		}
	}
}

// deliver queues status for client unless it repeats the last status or
// would walk a terminal status back.
func (h *Hub) deliver(client *Client, status models.TransactionStatus) {
	if status == client.last || (client.last.Terminal() && !status.Terminal()) {
		return
	}

	data, err := json.Marshal(dto.StatusUpdate{TransactionID: client.TransactionID, Status: string(status)})
	if err != nil {
		h.log.Error("failed to marshal status update", zap.Error(err))
		return
	}

	select {
	case client.Send <- data:
		client.last = status
	default:
		h.log.Warn("dropping slow websocket client", zap.Int64("transaction_id", client.TransactionID))
		h.remove(client)
	}
}

func (h *Hub) remove(client *Client) {
	set, ok := h.clients[client.TransactionID]
	if !ok || !set[client] {
		return
	}
	delete(set, client)
	close(client.Send)
	if len(set) == 0 {
		delete(h.clients, client.TransactionID)
	}
	h.log.Debug("websocket client unregistered", zap.Int64("transaction_id", client.TransactionID))
}

// Register returns false once the hub has stopped.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// Snapshot queues the status read after client registered. It is skipped
// when a newer update already reached the client.
func (h *Hub) Snapshot(client *Client, status models.TransactionStatus) {
	select {
	case h.snapshots <- snapshot{client: client, status: status}:
	case <-h.done:
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// PublishStatus queues an update without blocking the caller. Updates are
// dropped when the queue is full.
func (h *Hub) PublishStatus(transactionID int64, status models.TransactionStatus) {
	select {
	case h.broadcast <- dto.StatusUpdate{TransactionID: transactionID, Status: string(status)}:
	default:
		h.log.Warn("status update queue full, dropping update", zap.Int64("transaction_id", transactionID))
	}
}
