// SPDX-License-Identifier: MIT
package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"mixdeck/internal/log"

	"github.com/gorilla/websocket"
)

// FeedPath is the websocket endpoint.
const FeedPath = "/feed"

const (
	writeWait      = time.Second
	broadcastQueue = 16
)

// wsClient serialises writes to one connection: gorilla connections allow a
// single concurrent writer, and the broadcast loop and command replies both
// write.
type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsClient) write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// WebSocketTransport broadcasts JSON messages to every client connected on
// FeedPath and hands messages received from clients to a MessageHandler.
//
// Thread Safety:
// - Uses mutex for client map access
// - Send marshals once and queues; a slow client never blocks the caller
// - A full queue drops the message
type WebSocketTransport struct {
	addr      string
	logger    *log.Logger
	upgrader  websocket.Upgrader
	onMessage MessageHandler

	clients   map[*wsClient]bool
	clientsMu sync.Mutex

	broadcast chan []byte
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup

	server   *http.Server
	listener net.Listener
	dropped  uint64 // guarded by clientsMu
}

// NewWebSocketTransport creates a transport for addr. The broadcast loop
// starts immediately; Start begins listening. onMessage may be nil.
func NewWebSocketTransport(addr string, onMessage MessageHandler) *WebSocketTransport {
	wst := &WebSocketTransport{
		addr:   addr,
		logger: log.Named("websocket"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return true // feed clients are local visualisers
			},
		},
		onMessage: onMessage,
		clients:   make(map[*wsClient]bool),
		broadcast: make(chan []byte, broadcastQueue),
		done:      make(chan struct{}),
	}
	wst.wg.Add(1)
	go wst.handleBroadcasts()
	return wst
}

// Handler returns the HTTP handler serving FeedPath.
func (wst *WebSocketTransport) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(FeedPath, wst.handleWebSocket)
	return mux
}

// Start listens on the configured address and serves in the background.
func (wst *WebSocketTransport) Start() error {
	ln, err := net.Listen("tcp", wst.addr)
	if err != nil {
		return fmt.Errorf("websocket listen on %s: %w", wst.addr, err)
	}
	wst.listener = ln
	wst.server = &http.Server{
		Handler:           wst.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	wst.wg.Add(1)
	go func() {
		defer wst.wg.Done()
		wst.logger.Infof("serving feed on ws://%s%s", ln.Addr(), FeedPath)
		if err := wst.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			wst.logger.Errorf("server error: %v", err)
		}
	}()
	return nil
}

// Addr returns the listening address once started, else the configured one.
func (wst *WebSocketTransport) Addr() string {
	if wst.listener != nil {
		return wst.listener.Addr().String()
	}
	return wst.addr
}

// ClientCount returns the number of connected clients.
func (wst *WebSocketTransport) ClientCount() int {
	wst.clientsMu.Lock()
	defer wst.clientsMu.Unlock()
	return len(wst.clients)
}

// handleWebSocket upgrades HTTP connections to WebSocket and runs the read
// loop of the client until it disconnects.
func (wst *WebSocketTransport) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := wst.upgrader.Upgrade(w, r, nil)
	if err != nil {
		wst.logger.Warnf("upgrade error: %v", err)
		return
	}
	c := &wsClient{conn: conn}

	wst.clientsMu.Lock()
	select {
	case <-wst.done:
		wst.clientsMu.Unlock()
		conn.Close()
		return
	default:
	}
	wst.clients[c] = true
	total := len(wst.clients)
	wst.clientsMu.Unlock()
	wst.logger.Infof("client %s connected, total: %d", conn.RemoteAddr(), total)

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			wst.remove(c)
			return
		}
		if wst.onMessage == nil {
			continue
		}
		reply := wst.onMessage(msg)
		if reply == nil {
			continue
		}
		b, err := json.Marshal(reply)
		if err != nil {
			wst.logger.Errorf("marshalling reply: %v", err)
			continue
		}
		if err := c.write(b); err != nil {
			wst.remove(c)
			return
		}
	}
}

func (wst *WebSocketTransport) remove(c *wsClient) {
	wst.clientsMu.Lock()
	_, ok := wst.clients[c]
	delete(wst.clients, c)
	total := len(wst.clients)
	wst.clientsMu.Unlock()
	c.conn.Close()
	if ok {
		wst.logger.Infof("client %s disconnected, total: %d", c.conn.RemoteAddr(), total)
	}
}

// handleBroadcasts sends queued messages to all connected clients.
func (wst *WebSocketTransport) handleBroadcasts() {
	defer wst.wg.Done()
	var targets []*wsClient
	for {
		select {
		case <-wst.done:
			return
		case data := <-wst.broadcast:
			wst.clientsMu.Lock()
			targets = targets[:0]
			for c := range wst.clients {
				targets = append(targets, c)
			}
			wst.clientsMu.Unlock()

			for _, c := range targets {
				if err := c.write(data); err != nil {
					wst.logger.Debugf("error sending to client: %v", err)
					wst.remove(c)
				}
			}
		}
	}
}

// Send marshals data to JSON and queues it for every client. When the queue
// is full the message is dropped.
func (wst *WebSocketTransport) Send(data any) error {
	select {
	case <-wst.done:
		return ErrClosed
	default:
	}
	b, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("websocket marshal: %w", err)
	}
	select {
	case wst.broadcast <- b:
	default:
		wst.clientsMu.Lock()
		wst.dropped++
		wst.clientsMu.Unlock()
	}
	return nil
}

// Dropped returns the number of messages dropped on a full queue.
func (wst *WebSocketTransport) Dropped() uint64 {
	wst.clientsMu.Lock()
	defer wst.clientsMu.Unlock()
	return wst.dropped
}

// Close disconnects every client and shuts down the server. It is safe to
// call more than once.
func (wst *WebSocketTransport) Close() error {
	var err error
	wst.closeOnce.Do(func() {
		wst.logger.Infof("closing server")
		wst.clientsMu.Lock()
		close(wst.done)
		for c := range wst.clients {
			c.conn.Close()
		}
		clear(wst.clients)
		wst.clientsMu.Unlock()

		if wst.server != nil {
			err = wst.server.Close()
		}
		wst.wg.Wait()
	})
	return err
}

// Ensure WebSocketTransport satisfies the interface
var _ Transport = (*WebSocketTransport)(nil)
