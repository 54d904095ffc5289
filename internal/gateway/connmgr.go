package gateway

import (
	"encoding/json"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/lhdbsbz/inboxagent/internal/reply"
)

const writeWait = 10 * time.Second

// Conn represents a single WebSocket connection.
type Conn struct {
	ID          string
	Role        string           // "bridge" | "client"
	Channel     string           // bridge only: channel name
	Platforms   []reply.Platform // bridge only: empty means any
	WS          *websocket.Conn
	writeMu     sync.Mutex
	ConnectedAt time.Time
}

// Send writes a frame to the WebSocket connection (thread-safe).
func (c *Conn) Send(frame Frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.WS.SetWriteDeadline(time.Now().Add(writeWait))
	return c.WS.WriteJSON(frame)
}

// Ping sends a WebSocket ping control frame.
func (c *Conn) Ping() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.WS.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

func (c *Conn) serves(platform reply.Platform) bool {
	return len(c.Platforms) == 0 || slices.Contains(c.Platforms, platform)
}

// BridgeInfo describes a connected bridge for health output.
type BridgeInfo struct {
	ID          string           `json:"id"`
	Channel     string           `json:"channel"`
	Platforms   []reply.Platform `json:"platforms,omitempty"`
	ConnectedAt time.Time        `json:"connectedAt"`
}

// ConnManager tracks all active WebSocket connections.
type ConnManager struct {
	mu    sync.RWMutex
	conns map[string]*Conn // connID → conn
	seq   int
}

func NewConnManager() *ConnManager {
	return &ConnManager{conns: make(map[string]*Conn)}
}

// Add registers a new connection.
func (m *ConnManager) Add(conn *Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conns[conn.ID] = conn
}

// Remove unregisters a connection.
func (m *ConnManager) Remove(connID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.conns, connID)
}

func (m *ConnManager) nextFrame(event string, payload any) Frame {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	return EventFrame(event, m.seq, payload)
}

func (m *ConnManager) matching(keep func(*Conn) bool) []*Conn {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Conn
	for _, conn := range m.conns {
		if keep(conn) {
			out = append(out, conn)
		}
	}
	return out
}

// BroadcastToRole sends an event only to connections with a specific role.
func (m *ConnManager) BroadcastToRole(role, event string, payload any) {
	frame := m.nextFrame(event, payload)
	for _, conn := range m.matching(func(c *Conn) bool { return c.Role == role }) {
		if err := conn.Send(frame); err != nil {
			slog.Warn("broadcast failed", "conn", conn.ID, "error", err)
		}
	}
}

// SendToChannel pushes an event to the bridges of channel that serve
// platform and returns how many accepted it.
func (m *ConnManager) SendToChannel(channel string, platform reply.Platform, event string, payload any) int {
	frame := m.nextFrame(event, payload)
	delivered := 0
	for _, conn := range m.matching(func(c *Conn) bool {
		return c.Role == RoleBridge && c.Channel == channel && c.serves(platform)
	}) {
		if err := conn.Send(frame); err != nil {
			slog.Warn("send to channel failed", "channel", channel, "conn", conn.ID, "error", err)
			continue
		}
		delivered++
	}
	return delivered
}

// ListBridges returns all connected bridge info.
func (m *ConnManager) ListBridges() []BridgeInfo {
	bridges := []BridgeInfo{}
	for _, conn := range m.matching(func(c *Conn) bool { return c.Role == RoleBridge }) {
		bridges = append(bridges, BridgeInfo{
			ID:          conn.ID,
			Channel:     conn.Channel,
			Platforms:   conn.Platforms,
			ConnectedAt: conn.ConnectedAt,
		})
	}
	slices.SortFunc(bridges, func(a, b BridgeInfo) int { return a.ConnectedAt.Compare(b.ConnectedAt) })
	return bridges
}

// ClientCount returns the number of connected clients.
func (m *ConnManager) ClientCount() int {
	return len(m.matching(func(c *Conn) bool { return c.Role == RoleClient }))
}

// ReadFrame reads and parses a WebSocket message into a Frame.
func ReadFrame(ws *websocket.Conn) (Frame, error) {
	var frame Frame
	_, msg, err := ws.ReadMessage()
	if err != nil {
		return frame, err
	}
	err = json.Unmarshal(msg, &frame)
	return frame, err
}
