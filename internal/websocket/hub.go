package websocket

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"
)

// BalanceUpdate is pushed to an owner's sockets after a recalculation commits.
type BalanceUpdate struct {
	AccountID      string `json:"account_id"`
	Balance        string `json:"balance"`
	Currency       string `json:"currency"`
	BelowThreshold bool   `json:"below_threshold"`
}

type Hub struct {
	logger  zerolog.Logger
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
}

func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		logger:  logger,
		clients: make(map[string]map[*Client]struct{}),
	}
}

func (h *Hub) Register(ownerID string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[ownerID] == nil {
		h.clients[ownerID] = make(map[*Client]struct{})
	}
	h.clients[ownerID][client] = struct{}{}
}

func (h *Hub) Unregister(ownerID string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[ownerID] == nil {
		return
	}
	delete(h.clients[ownerID], client)
	if len(h.clients[ownerID]) == 0 {
		delete(h.clients, ownerID)
	}
}

func (h *Hub) Subscribers(ownerID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[ownerID])
}

// BroadcastBalance never blocks: a client whose buffer is full misses the update.
func (h *Hub) BroadcastBalance(ownerID string, update BalanceUpdate) {
	payload, err := json.Marshal(update)
	if err != nil {
		h.logger.Error().Err(err).Msg("encode balance update")
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients[ownerID] {
		select {
		case client.send <- payload:
		default:
			h.logger.Debug().Str("owner_id", ownerID).Str("account_id", update.AccountID).Msg("balance update dropped")
		}
	}
}
