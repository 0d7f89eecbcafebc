package feed

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/zhouzirui/moodchat/internal/model/chat"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	writeWait  = 10 * time.Second
	sendBuffer = 8
)

// Message is the push payload, identical in shape to /current-emotion.
type Message struct {
	Emotion   string  `json:"emotion"`
	Intensity float64 `json:"intensity"`
	Timestamp string  `json:"timestamp,omitempty"`
}

// MessageFrom converts a stored record into the wire payload.
func MessageFrom(rec chat.EmotionRecord) Message {
	msg := Message{Emotion: rec.Emotion, Intensity: rec.Intensity}
	if !rec.CreatedAt.IsZero() {
		msg.Timestamp = rec.CreatedAt.UTC().Format(time.RFC3339)
	}
	return msg
}

type peer struct {
	ws   *websocket.Conn
	send chan []byte
}

// Hub fans emotion changes out to every connected WebSocket listener.
// Slow listeners miss updates rather than block the broadcaster.
type Hub struct {
	upgrader websocket.Upgrader
	current  func(ctx context.Context) chat.EmotionRecord
	logger   *zap.Logger

	mu    sync.RWMutex
	peers map[*peer]struct{}
}

// NewHub creates a hub. current, when set, supplies the state sent to a
// listener as soon as it connects.
func NewHub(current func(ctx context.Context) chat.EmotionRecord, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		current: current,
		logger:  logger,
		peers:   make(map[*peer]struct{}),
	}
}

// Len reports the number of connected listeners.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.peers)
}

// Broadcast queues rec for every listener.
func (h *Hub) Broadcast(rec chat.EmotionRecord) {
	data, err := json.Marshal(MessageFrom(rec))
	if err != nil {
		h.logger.Error("[ws] encode failed", zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for p := range h.peers {
		select {
		case p.send <- data:
		default:
			h.logger.Warn("[ws] listener too slow, dropping update")
		}
	}
}

// Close disconnects every listener.
func (h *Hub) Close() {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for p := range h.peers {
		p.ws.Close()
	}
}

// ServeHTTP upgrades the request and streams updates until the listener leaves.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("[ws] upgrade failed", zap.Error(err))
		return
	}
	defer ws.Close()

	p := &peer{ws: ws, send: make(chan []byte, sendBuffer)}
	h.add(p)
	defer h.remove(p)

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		h.writeLoop(ctx, p)
	}()
	defer func() {
		cancel()
		wg.Wait()
	}()

	if h.current != nil {
		if data, err := json.Marshal(MessageFrom(h.current(r.Context()))); err == nil {
			select {
			case p.send <- data:
			default:
			}
		}
	}

	ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	// listeners never send anything meaningful; reading detects disconnects
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				h.logger.Debug("[ws] read error", zap.Error(err))
			}
			return
		}
	}
}

func (h *Hub) add(p *peer) {
	h.mu.Lock()
	h.peers[p] = struct{}{}
	n := len(h.peers)
	h.mu.Unlock()
	h.logger.Info("[ws] listener connected", zap.Int("listeners", n))
}

func (h *Hub) remove(p *peer) {
	h.mu.Lock()
	delete(h.peers, p)
	n := len(h.peers)
	h.mu.Unlock()
	h.logger.Info("[ws] listener disconnected", zap.Int("listeners", n))
}

func (h *Hub) writeLoop(ctx context.Context, p *peer) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case data := <-p.send:
			p.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				p.ws.Close()
				return
			}
		case <-ticker.C:
			if err := p.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				p.ws.Close()
				return
			}
		}
	}
}
