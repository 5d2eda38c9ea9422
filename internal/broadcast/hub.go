// Package broadcast pushes match list and live score updates to viewer
// screens over websockets. Viewers join the lobby room or the room of one
// match and only ever receive; anything they send is discarded.
package broadcast

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"
	"sync"
	"time"

	"badminton-scoreboard/internal/config"
	"badminton-scoreboard/internal/domain"
	"badminton-scoreboard/internal/rpc"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	MessageMatches   = "MATCHES_UPDATED"
	MessageLiveState = "LIVE_STATE_UPDATED"
)

// LobbyRoom receives match list updates.
const LobbyRoom = ""

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 16
)

type Message struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
	Room    string `json:"room,omitempty"`
}

type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	room string
}

type Hub struct {
	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	mu    sync.RWMutex
	rooms map[string]map[*Client]bool
	// last message per room, replayed to viewers that join later
	last map[string][]byte

	upgrader websocket.Upgrader
	logger   zerolog.Logger
}

func NewHub(cfg *config.Config, logger zerolog.Logger) *Hub {
	h := &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		rooms:      make(map[string]map[*Client]bool),
		last:       make(map[string][]byte),
		logger:     logger.With().Str("component", "hub").Logger(),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     allowOrigins(cfg.AllowedOrigins),
	}
	return h
}

func allowOrigins(origins []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || slices.Contains(origins, "*") || slices.Contains(origins, origin)
	}
}

// Run serves register and unregister requests and forwards every match list
// from updates to the lobby. It returns when ctx is done, closing all viewers.
func (h *Hub) Run(ctx context.Context, updates <-chan []domain.Match) error {
	defer close(h.done)
	defer h.closeAll()

	for {
		select {
		case <-ctx.Done():
			return nil

		case client := <-h.register:
			h.mu.Lock()
			if _, ok := h.rooms[client.room]; !ok {
				h.rooms[client.room] = make(map[*Client]bool)
			}
			h.rooms[client.room][client] = true
			if msg, ok := h.last[client.room]; ok {
				client.send <- msg
			}
			size := len(h.rooms[client.room])
			h.mu.Unlock()
			h.logger.Debug().Str("room", client.room).Int("clients", size).Msg("viewer joined")

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.rooms[client.room]; ok && clients[client] {
				close(client.send)
				delete(clients, client)
				if len(clients) == 0 {
					delete(h.rooms, client.room)
				}
			}
			h.mu.Unlock()
			h.logger.Debug().Str("room", client.room).Msg("viewer left")

		case matches, ok := <-updates:
			if !ok {
				updates = nil
				continue
			}
			h.BroadcastToRoom(LobbyRoom, Message{Type: MessageMatches, Payload: rpc.MatchesOf(matches)})
		}
	}
}

// NotifyLive sends a live state update to the viewers of its match.
func (h *Hub) NotifyLive(state domain.LiveState) {
	h.BroadcastToRoom(state.MatchID, Message{
		Type:    MessageLiveState,
		Payload: rpc.LiveStateOf(state),
		Room:    state.MatchID,
	})
}

// BroadcastToRoom sends message to every client in room. Clients whose
// buffer is full miss the message.
func (h *Hub) BroadcastToRoom(room string, message Message) {
	payload, err := json.Marshal(message)
	if err != nil {
		h.logger.Error().Err(err).Str("room", room).Msg("failed to marshal message")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.last[room] = payload
	for client := range h.rooms[room] {
		select {
		case client.send <- payload:
		default:
			h.logger.Warn().Str("room", room).Msg("viewer send buffer full, skipping")
		}
	}
}

func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for room, clients := range h.rooms {
		for client := range clients {
			close(client.send)
		}
		delete(h.rooms, room)
	}
}

// ServeWS upgrades the request and joins the room named by the match query
// parameter, or the lobby when it is absent.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := &Client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, sendBuffer),
		room: r.URL.Query().Get("match"),
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump()
}

func (c *Client) ReadPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Debug().Err(err).Str("room", c.room).Msg("viewer disconnected")
			}
			return
		}
	}
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.hub.logger.Debug().Err(err).Str("room", c.room).Msg("write to viewer failed")
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
