package monitoring

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// pingPeriod must stay below pongWait so a live peer always answers in time.
const (
	pingPeriod           = 30 * time.Second
	pongWait             = 60 * time.Second
	writeWait            = 10 * time.Second
	maxClientMessageSize = 1024
)

type MessageType string

const (
	PredictionMade MessageType = "prediction"
	Heartbeat      MessageType = "heartbeat"
)

// Message is the envelope pushed to feed subscribers.
type Message struct {
	Type      MessageType     `json:"type"`
	Topic     string          `json:"topic,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
	ID        string          `json:"id"`
}

// PredictionEvent describes one served prediction.
type PredictionEvent struct {
	ID            string  `json:"id"`
	Mode          string  `json:"mode"`
	Prediction    string  `json:"prediction"`
	RawPrediction int     `json:"raw_prediction"`
	Confidence    float64 `json:"confidence"`
	Malignant     float64 `json:"malignant"`
	Benign        float64 `json:"benign"`
}

// ClientMessage lets a client narrow the feed to one prediction mode.
type ClientMessage struct {
	Type  string `json:"type"` // subscribe, unsubscribe, ping
	Topic string `json:"topic"`
}

type client struct {
	conn     *websocket.Conn
	send     chan []byte
	clientID string

	mu            sync.RWMutex
	subscriptions map[string]bool
}

type outbound struct {
	topic   string
	payload []byte
}

// PredictionFeed fans prediction events out to websocket clients.
type PredictionFeed struct {
	clients    map[*client]bool
	broadcast  chan outbound
	register   chan *client
	unregister chan *client
	mu         sync.RWMutex
	upgrader   websocket.Upgrader
	logger     *zap.Logger
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}
}

func NewPredictionFeed(logger *zap.Logger) *PredictionFeed {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &PredictionFeed{
		clients:    make(map[*client]bool),
		broadcast:  make(chan outbound, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// Run owns the client set until Stop is called.
func (f *PredictionFeed) Run() {
	defer close(f.done)
	heartbeat := time.NewTicker(30 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case c := <-f.register:
			f.mu.Lock()
			f.clients[c] = true
			total := len(f.clients)
			f.mu.Unlock()
			f.logger.Info("feed client connected", zap.String("client", c.clientID), zap.Int("total", total))

		case c := <-f.unregister:
			f.mu.Lock()
			if _, ok := f.clients[c]; ok {
				delete(f.clients, c)
				close(c.send)
			}
			total := len(f.clients)
			f.mu.Unlock()
			f.logger.Info("feed client disconnected", zap.String("client", c.clientID), zap.Int("total", total))

		case msg := <-f.broadcast:
			f.deliver(msg)

		case <-heartbeat.C:
			if payload, err := encodeMessage(Heartbeat, "", map[string]string{"status": "ok"}); err == nil {
				f.deliver(outbound{payload: payload})
			}

		case <-f.ctx.Done():
			f.mu.Lock()
			for c := range f.clients {
				close(c.send)
				delete(f.clients, c)
			}
			f.mu.Unlock()
			return
		}
	}
}

func (f *PredictionFeed) deliver(msg outbound) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for c := range f.clients {
		if msg.topic != "" && !c.wants(msg.topic) {
			continue
		}
		select {
		case c.send <- msg.payload:
		default:
			// slow consumer
			close(c.send)
			delete(f.clients, c)
		}
	}
}

// Stop disconnects every client and waits for Run to return.
func (f *PredictionFeed) Stop() {
	f.cancel()
	<-f.done
}

func (f *PredictionFeed) ClientCount() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.clients)
}

func (f *PredictionFeed) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		f.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	c := &client{
		conn:          conn,
		send:          make(chan []byte, 64),
		clientID:      uuid.NewString(),
		subscriptions: make(map[string]bool),
	}
	select {
	case f.register <- c:
	case <-f.ctx.Done():
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump(f)
}

// Publish queues event for every client subscribed to its mode. It never
// blocks; events are dropped when the queue is full.
func (f *PredictionFeed) Publish(event PredictionEvent) error {
	payload, err := encodeMessage(PredictionMade, event.Mode, event)
	if err != nil {
		return err
	}
	select {
	case f.broadcast <- outbound{topic: event.Mode, payload: payload}:
		return nil
	default:
		return fmt.Errorf("feed queue full, dropped prediction %s", event.ID)
	}
}

func encodeMessage(kind MessageType, topic string, data interface{}) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Message{
		Type:      kind,
		Topic:     topic,
		Timestamp: time.Now().UTC(),
		Data:      raw,
		ID:        uuid.NewString(),
	})
}

func (c *client) wants(topic string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	// no subscriptions means everything
	return len(c.subscriptions) == 0 || c.subscriptions[topic]
}

func (c *client) writePump() {
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

func (c *client) readPump(f *PredictionFeed) {
	defer func() {
		select {
		case f.unregister <- c:
		case <-f.ctx.Done():
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxClientMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				f.logger.Warn("websocket read error", zap.String("client", c.clientID), zap.Error(err))
			}
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			f.logger.Debug("invalid client message", zap.String("client", c.clientID), zap.Error(err))
			continue
		}
		c.handleClientMessage(msg)
	}
}

func (c *client) handleClientMessage(msg ClientMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch msg.Type {
	case "subscribe":
		if msg.Topic != "" {
			c.subscriptions[msg.Topic] = true
		}
	case "unsubscribe":
		delete(c.subscriptions, msg.Topic)
	}
}
