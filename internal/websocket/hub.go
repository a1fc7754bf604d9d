package websocket

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"readtrack-backend/internal/middleware"
)

const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Hub relays reading events from Redis pub/sub to connected admin dashboards.
// One subscription is held while at least one dashboard is connected.
type Hub struct {
	mu          sync.RWMutex
	connections map[*websocket.Conn]string
	redisClient *redis.Client
	channel     string
	auth        *middleware.JWTAuth
	cancel      context.CancelFunc
}

func NewHub(redisClient *redis.Client, auth *middleware.JWTAuth, channel string) *Hub {
	return &Hub{
		connections: make(map[*websocket.Conn]string),
		redisClient: redisClient,
		channel:     channel,
		auth:        auth,
	}
}

func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	claims, err := h.auth.ParseToken(r.URL.Query().Get("token"))
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	if claims.Role != middleware.RoleAdmin {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	h.registerConnection(claims.UserID, conn)

	go func() {
		defer h.unregisterConnection(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (h *Hub) registerConnection(userID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.connections[conn] = userID

	if len(h.connections) == 1 {
		ctx, cancel := context.WithCancel(context.Background())
		h.cancel = cancel
		go h.subscribe(ctx)
	}

	log.Info().Str("user_id", userID).Int("total", len(h.connections)).Msg("dashboard connected")
}

func (h *Hub) unregisterConnection(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conn.Close()
	userID, ok := h.connections[conn]
	if !ok {
		return
	}
	delete(h.connections, conn)

	if len(h.connections) == 0 && h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}

	log.Info().Str("user_id", userID).Int("total", len(h.connections)).Msg("dashboard disconnected")
}

func (h *Hub) subscribe(ctx context.Context) {
	pubsub := h.redisClient.Subscribe(ctx, h.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		if !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Str("channel", h.channel).Msg("failed to subscribe to reading events")
		}
		return
	}

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			h.broadcast([]byte(msg.Payload))
		}
	}
}

func (h *Hub) broadcast(data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for conn := range h.connections {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Debug().Err(err).Msg("dashboard write failed")
		}
	}
}

// Len reports connected dashboards.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

// Close drops every connection and the subscription.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for conn := range h.connections {
		conn.Close()
		delete(h.connections, conn)
	}
	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
}
