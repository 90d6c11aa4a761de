// Package liveview serves the most recent camera frames over HTTP: a
// WebSocket feed of frame statistics and images, the latest palette image
// as PNG, and a JSON status endpoint, optionally behind bcrypt basic auth.
package liveview

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"go_irimager/capture"
	"go_irimager/irimager"
)

var _ capture.Publisher = (*Broadcaster)(nil)

// BroadcasterConfig holds configuration for the Broadcaster.
type BroadcasterConfig struct {
	PingInterval time.Duration
	PongWait     time.Duration
	WriteWait    time.Duration
	// MaxMessageSize limits what clients may send; they only send pongs.
	MaxMessageSize       int64
	BroadcastBufferSize  int
	ClientSendBufferSize int
	// ImageScale upscales the palette image sent to clients.
	ImageScale int
}

// DefaultBroadcasterConfig returns the default configuration.
func DefaultBroadcasterConfig() BroadcasterConfig {
	return BroadcasterConfig{
		PingInterval:         30 * time.Second,
		PongWait:             60 * time.Second,
		WriteWait:            10 * time.Second,
		MaxMessageSize:       512,
		BroadcastBufferSize:  16,
		ClientSendBufferSize: 16,
		ImageScale:           1,
	}
}

type client struct {
	conn        *websocket.Conn
	send        chan []byte
	remoteAddr  string
	connectedAt time.Time
	closeOnce   sync.Once
}

func (c *client) close() {
	c.closeOnce.Do(func() { close(c.send) })
}

// Broadcaster fans captured frames out to WebSocket clients and keeps the
// latest frame for the snapshot endpoint. Publish never blocks the capture
// loop: when the queue is full the frame is dropped for live view only.
type Broadcaster struct {
	config   BroadcasterConfig
	logger   *zap.Logger
	upgrader websocket.Upgrader

	frames chan *capture.Capture

	clientsMu sync.RWMutex
	clients   map[*client]struct{}
	closed    bool

	latestMu    sync.RWMutex
	latest      *capture.Capture
	latestFrame *FrameData
}

// NewBroadcaster creates a Broadcaster. Call Start to begin delivering.
func NewBroadcaster(config BroadcasterConfig, logger *zap.Logger) *Broadcaster {
	if logger == nil {
		logger = zap.NewNop()
	}
	def := DefaultBroadcasterConfig()
	if config.BroadcastBufferSize <= 0 {
		config.BroadcastBufferSize = def.BroadcastBufferSize
	}
	if config.ClientSendBufferSize <= 0 {
		config.ClientSendBufferSize = def.ClientSendBufferSize
	}
	if config.PingInterval <= 0 {
		config.PingInterval = def.PingInterval
	}
	if config.PongWait <= 0 {
		config.PongWait = def.PongWait
	}
	if config.WriteWait <= 0 {
		config.WriteWait = def.WriteWait
	}
	if config.MaxMessageSize <= 0 {
		config.MaxMessageSize = def.MaxMessageSize
	}

	return &Broadcaster{
		config:  config,
		logger:  logger.Named("liveview"),
		frames:  make(chan *capture.Capture, config.BroadcastBufferSize),
		clients: make(map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 64 * 1024,
			// Same-origin deployment on a trusted network.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Publish implements capture.Publisher.
func (b *Broadcaster) Publish(c *capture.Capture) {
	b.latestMu.Lock()
	b.latest = c
	b.latestMu.Unlock()

	select {
	case b.frames <- c:
	default:
		b.logger.Debug("live view queue full, dropping frame", zap.Int64("seq", c.Seq))
	}
}

// Latest returns the most recently published capture, or nil.
func (b *Broadcaster) Latest() *capture.Capture {
	b.latestMu.RLock()
	defer b.latestMu.RUnlock()
	return b.latest
}

// Start delivers published frames until ctx is done, then disconnects all
// clients.
func (b *Broadcaster) Start(ctx context.Context) {
	b.logger.Debug("broadcaster started")
	for {
		select {
		case <-ctx.Done():
			b.Close()
			return
		case c := <-b.frames:
			b.broadcastFrame(c)
		}
	}
}

func (b *Broadcaster) broadcastFrame(c *capture.Capture) {
	var image []byte
	if c.Palette != nil {
		img := irimager.Scale(c.Palette.RGBA(), b.config.ImageScale)
		data, err := capture.PNGBytes(img)
		if err != nil {
			b.logger.Warn("failed to encode live view frame", zap.Error(err))
		} else {
			image = data
		}
	}

	frame := NewFrameData(c, image)
	b.latestMu.Lock()
	b.latestFrame = &frame
	b.latestMu.Unlock()

	b.Broadcast(NewFrameMessage(frame))
}

// BroadcastError reports a capture failure to every client.
func (b *Broadcaster) BroadcastError(code, message string) {
	b.Broadcast(NewErrorMessage(code, message))
}

// Broadcast sends msg to every client. Clients whose send buffer is full
// are disconnected.
func (b *Broadcaster) Broadcast(msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		b.logger.Error("failed to marshal broadcast message", zap.Error(err))
		return
	}

	var slow []*client
	b.clientsMu.RLock()
	for c := range b.clients {
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	b.clientsMu.RUnlock()

	for _, c := range slow {
		b.logger.Warn("client send buffer full, disconnecting", zap.String("remote", c.remoteAddr))
		b.removeClient(c)
	}
}

// HandleConnection upgrades the request and registers the client.
func (b *Broadcaster) HandleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.logger.Warn("websocket upgrade failed", zap.String("remote", r.RemoteAddr), zap.Error(err))
		return
	}

	conn.SetReadLimit(b.config.MaxMessageSize)
	conn.SetReadDeadline(time.Now().Add(b.config.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(b.config.PongWait))
	})

	c := &client{
		conn:        conn,
		send:        make(chan []byte, b.config.ClientSendBufferSize),
		remoteAddr:  r.RemoteAddr,
		connectedAt: time.Now(),
	}

	// Queued before registering so no broadcast can fill or close c.send
	// first.
	b.latestMu.RLock()
	greeting := InitialData{Latest: b.latestFrame, Clients: b.ClientCount() + 1}
	b.latestMu.RUnlock()
	if data, err := json.Marshal(NewInitialMessage(greeting)); err == nil {
		c.send <- data
	}

	if !b.addClient(c) {
		conn.Close()
		return
	}

	go b.writePump(c)
	go b.readPump(c)
}

// ClientCount returns the number of connected clients.
func (b *Broadcaster) ClientCount() int {
	b.clientsMu.RLock()
	defer b.clientsMu.RUnlock()
	return len(b.clients)
}

// Close disconnects every client and rejects new ones.
func (b *Broadcaster) Close() {
	b.clientsMu.Lock()
	b.closed = true
	clients := make([]*client, 0, len(b.clients))
	for c := range b.clients {
		clients = append(clients, c)
		delete(b.clients, c)
	}
	b.clientsMu.Unlock()

	for _, c := range clients {
		c.close()
	}
	if len(clients) > 0 {
		b.logger.Info("all live view clients disconnected", zap.Int("count", len(clients)))
	}
}

func (b *Broadcaster) addClient(c *client) bool {
	b.clientsMu.Lock()
	defer b.clientsMu.Unlock()

	if b.closed {
		return false
	}
	b.clients[c] = struct{}{}
	b.logger.Info("client connected", zap.String("remote", c.remoteAddr), zap.Int("total", len(b.clients)))
	return true
}

// removeClient unregisters c and stops its write pump. Safe to call more
// than once.
func (b *Broadcaster) removeClient(c *client) {
	b.clientsMu.Lock()
	_, ok := b.clients[c]
	delete(b.clients, c)
	total := len(b.clients)
	b.clientsMu.Unlock()

	c.close()
	if ok {
		b.logger.Info("client disconnected",
			zap.String("remote", c.remoteAddr),
			zap.Duration("connected", time.Since(c.connectedAt)),
			zap.Int("total", total),
		)
	}
}

// readPump drains client messages so pong handlers run, and unregisters
// the client when the connection fails.
func (b *Broadcaster) readPump(c *client) {
	defer b.removeClient(c)

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				b.logger.Debug("unexpected websocket close", zap.String("remote", c.remoteAddr), zap.Error(err))
			}
			return
		}
	}
}

// writePump is the only writer on c.conn. It sends queued messages and
// pings, and closes the connection when c.send is closed.
func (b *Broadcaster) writePump(c *client) {
	ticker := time.NewTicker(b.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(b.config.WriteWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				b.logger.Debug("websocket write failed", zap.String("remote", c.remoteAddr), zap.Error(err))
				b.removeClient(c)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(b.config.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				b.removeClient(c)
				return
			}
		}
	}
}
