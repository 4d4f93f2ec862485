package ws

import (
	"context"
	"encoding/json"
	"sync"

	"lendmark/internal/delivery/http/dto"
	"lendmark/internal/domain/notification"
	"lendmark/internal/metrics"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type delivery struct {
	userID  uuid.UUID
	payload []byte
}

// Hub tracks live websocket clients per user. A user may hold several
// connections; each receives every frame addressed to that user.
//
// A client's send channel is only closed under the write lock and only
// written to under the read lock, so Register and Unregister never have to
// wait for Run and keep working after it returns.
type Hub struct {
	clients map[uuid.UUID]map[*Client]struct{}
	deliver chan delivery
	stopped bool
	mutex   sync.RWMutex
	logger  zerolog.Logger
}

func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		clients: make(map[uuid.UUID]map[*Client]struct{}),
		deliver: make(chan delivery, 1024),
		logger:  logger,
	}
}

// Run fans queued frames out to clients until ctx is done, then closes every
// connection. Clients registering afterwards are closed immediately.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return

		case d := <-h.deliver:
			var slow []*Client
			h.mutex.RLock()
			for client := range h.clients[d.userID] {
				select {
				case client.send <- d.payload:
					metrics.NotificationPushed()
				default:
					slow = append(slow, client)
				}
			}
			h.mutex.RUnlock()

			for _, client := range slow {
				h.remove(client)
			}
		}
	}
}

func (h *Hub) Register(client *Client) {
	if h == nil || client == nil {
		return
	}
	h.mutex.Lock()
	if h.stopped {
		h.mutex.Unlock()
		close(client.send)
		return
	}
	set, ok := h.clients[client.userID]
	if !ok {
		set = make(map[*Client]struct{})
		h.clients[client.userID] = set
	}
	set[client] = struct{}{}
	total := h.countLocked()
	h.mutex.Unlock()

	metrics.SetWSClients(total)
	h.logger.Debug().Str("user_id", client.userID.String()).Int("total_clients", total).Msg("ws connected")
}

func (h *Hub) Unregister(client *Client) {
	if h == nil || client == nil {
		return
	}
	h.remove(client)
}

func (h *Hub) remove(client *Client) {
	h.mutex.Lock()
	set, ok := h.clients[client.userID]
	if !ok {
		h.mutex.Unlock()
		return
	}
	if _, present := set[client]; present {
		delete(set, client)
		close(client.send)
	}
	if len(set) == 0 {
		delete(h.clients, client.userID)
	}
	total := h.countLocked()
	h.mutex.Unlock()

	metrics.SetWSClients(total)
	h.logger.Debug().Str("user_id", client.userID.String()).Int("total_clients", total).Msg("ws disconnected")
}

func (h *Hub) closeAll() {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.stopped = true
	for uid, set := range h.clients {
		for c := range set {
			close(c.send)
		}
		delete(h.clients, uid)
	}
	metrics.SetWSClients(0)
}

func (h *Hub) countLocked() int {
	n := 0
	for _, set := range h.clients {
		n += len(set)
	}
	return n
}

// Send queues a raw frame for every connection of userID. It never blocks;
// frames are dropped when the hub is saturated.
func (h *Hub) Send(userID uuid.UUID, payload []byte) {
	if h == nil {
		return
	}
	select {
	case h.deliver <- delivery{userID: userID, payload: payload}:
	default:
		h.logger.Warn().Str("user_id", userID.String()).Msg("ws frame dropped, buffer full")
	}
}

// Publish pushes a persisted notification to its recipient.
func (h *Hub) Publish(n notification.Notification) {
	if h == nil {
		return
	}
	b, err := json.Marshal(dto.NewNotificationEvent(n))
	if err != nil {
		h.logger.Error().Err(err).Msg("encode notification event failed")
		return
	}
	h.Send(n.UserID, b)
}

func (h *Hub) ClientCount() int {
	if h == nil {
		return 0
	}
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return h.countLocked()
}
