package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rzzdr/option-greeks-engine/pkg/utils/logger"
)

// Feeds a client can subscribe to
const (
	FeedPrice      = "price"
	FeedGreeks     = "greeks"
	FeedComparison = "comparison"
)

var knownFeeds = map[string]bool{FeedPrice: true, FeedGreeks: true, FeedComparison: true}

// Hub maintains the set of active clients and broadcasts results to them
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan envelope
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	pumps      sync.WaitGroup
	onClients  func(int)
	log        *logger.Logger
}

type envelope struct {
	feed string
	data []byte
}

// Client is a middleman between the websocket connection and the hub
type Client struct {
	hub   *Hub
	conn  *websocket.Conn
	send  chan []byte
	id    string
	feeds map[string]bool
	// closed is set once the hub closes send; guarded by mu
	closed bool
	mu     sync.RWMutex
}

// Message represents a WebSocket message
type Message struct {
	Type  string      `json:"type"`
	Feed  string      `json:"feed,omitempty"`
	Data  interface{} `json:"data,omitempty"`
	Error string      `json:"error,omitempty"`
	ID    string      `json:"id,omitempty"`
}

// SubscriptionMessage is sent by clients to choose feeds
type SubscriptionMessage struct {
	Type  string   `json:"type"`
	Feeds []string `json:"feeds"`
	ID    string   `json:"id,omitempty"`
}

// WebSocket upgrader
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 512
)

var clientSeq atomic.Uint64

// NewHub creates a new WebSocket hub
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan envelope, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		onClients:  func(int) {},
		log:        logger.GetLogger("websocket.hub"),
	}
}

// OnClientCountChange sets a callback invoked with the client count after every change
func (h *Hub) OnClientCountChange(fn func(int)) {
	if fn != nil {
		h.onClients = fn
	}
}

// Run starts the WebSocket hub. When ctx ends every client is disconnected
// and new connections are refused.
func (h *Hub) Run(ctx context.Context) {
	h.log.Info("Starting WebSocket hub")
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.log.Info("WebSocket hub shutting down")
			for client := range h.clients {
				h.drop(client)
			}
			return

		case client := <-h.register:
			h.clients[client] = true
			h.onClients(len(h.clients))
			h.log.Infof("Client %s registered", client.id)

			h.pumps.Add(2)
			go client.writePump()
			go client.readPump()

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				h.drop(client)
				h.log.Infof("Client %s unregistered", client.id)
			}

		case msg := <-h.broadcast:
			for client := range h.clients {
				if !client.subscribed(msg.feed) {
					continue
				}
				select {
				case client.send <- msg.data:
				default:
					h.log.Warnf("Client %s is too slow, disconnecting", client.id)
					h.drop(client)
				}
			}
		}
	}
}

// drop removes a client; only called from Run
func (h *Hub) drop(client *Client) {
	delete(h.clients, client)
	client.mu.Lock()
	client.closed = true
	close(client.send)
	client.mu.Unlock()
	h.onClients(len(h.clients))
}

// Wait blocks until the pumps of every client have exited. Call it after Run returned.
func (h *Hub) Wait() {
	h.pumps.Wait()
}

// Publish queues payload for every client subscribed to feed. It never blocks:
// when the broadcast queue is full the update is dropped.
func (h *Hub) Publish(feed string, payload interface{}) {
	data, err := json.Marshal(Message{Type: "update", Feed: feed, Data: payload})
	if err != nil {
		h.log.Errorf("Failed to marshal %s update: %v", feed, err)
		return
	}

	select {
	case h.broadcast <- envelope{feed: feed, data: data}:
	default:
		h.log.Warnf("Broadcast queue full, dropping %s update", feed)
	}
}

// HandleWebSocket handles WebSocket upgrade and client management
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Errorf("WebSocket upgrade failed: %v", err)
		return
	}

	client := &Client{
		hub:   h,
		conn:  conn,
		send:  make(chan []byte, 256),
		id:    fmt.Sprintf("client_%d", clientSeq.Add(1)),
		feeds: make(map[string]bool),
	}

	select {
	case h.register <- client:
	case <-h.done:
		h.log.Warnf("Hub stopped, refusing client %s", client.id)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(writeWait))
		conn.Close()
	}
}

func (c *Client) subscribed(feed string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.feeds[feed]
}

// readPump pumps messages from the websocket connection to the hub
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
		c.hub.pumps.Done()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, messageData, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Errorf("WebSocket error: %v", err)
			}
			break
		}

		c.handleMessage(messageData)
	}
}

// writePump pumps messages from the hub to the websocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		c.hub.pumps.Done()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage handles incoming messages from the client
func (c *Client) handleMessage(messageData []byte) {
	var msg SubscriptionMessage
	if err := json.Unmarshal(messageData, &msg); err != nil {
		c.reply(Message{Type: "error", Error: "Invalid message format"})
		return
	}

	switch msg.Type {
	case "subscribe":
		c.setFeeds(msg, true)
	case "unsubscribe":
		c.setFeeds(msg, false)
	case "ping":
		c.reply(Message{Type: "pong", ID: msg.ID})
	default:
		c.reply(Message{Type: "error", Error: "Unknown message type", ID: msg.ID})
	}
}

func (c *Client) setFeeds(msg SubscriptionMessage, on bool) {
	for _, feed := range msg.Feeds {
		if !knownFeeds[feed] {
			c.reply(Message{Type: "error", Error: "Unknown feed " + feed, ID: msg.ID})
			return
		}
	}

	c.mu.Lock()
	for _, feed := range msg.Feeds {
		if on {
			c.feeds[feed] = true
		} else {
			delete(c.feeds, feed)
		}
	}
	c.mu.Unlock()

	kind := "subscription_confirmed"
	if !on {
		kind = "unsubscription_confirmed"
	}
	c.reply(Message{Type: kind, Data: map[string]interface{}{"feeds": msg.Feeds}, ID: msg.ID})
}

// reply sends a direct response to this client without going through the hub.
// A full buffer drops the reply; the hub disconnects clients that stay slow.
func (c *Client) reply(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		c.hub.log.Errorf("Failed to marshal message: %v", err)
		return
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}
