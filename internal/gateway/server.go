package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/gorilla/websocket"
	"github.com/lhdbsbz/inboxagent/internal/agent"
	"github.com/lhdbsbz/inboxagent/internal/config"
	"github.com/lhdbsbz/inboxagent/internal/message"
	"github.com/lhdbsbz/inboxagent/internal/poller"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  16 * 1024,
	WriteBufferSize: 16 * 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// PollRunner runs a poll on demand.
type PollRunner interface {
	RunOnce(ctx context.Context) (poller.Summary, error)
}

// Server is the inboxagent gateway server.
type Server struct {
	Responder *agent.Responder
	Graph     poller.Graph   // nil disables /api/meta
	Poller    PollRunner     // nil disables /api/poller/run
	Dedup     *message.Dedup // drops bridge redeliveries; nil disables
	Conns     *ConnManager
	httpSrv   *http.Server
	startAt   time.Time
}

func NewServer(responder *agent.Responder, graph poller.Graph, pollRunner PollRunner, dedup *message.Dedup) *Server {
	s := &Server{
		Responder: responder,
		Graph:     graph,
		Poller:    pollRunner,
		Dedup:     dedup,
		Conns:     NewConnManager(),
		startAt:   time.Now(),
	}
	responder.SetEventSink(func(evt agent.Event) {
		s.Conns.BroadcastToRole(RoleClient, EventReply, evt)
	})
	useJSONFieldNames()
	return s
}

// Handler builds the gin engine with every route registered.
func (s *Server) Handler() http.Handler {
	engine := gin.New()
	engine.Use(gin.Recovery())

	engine.GET("/health", s.ginHealth)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	engine.GET("/ws", s.ginWebSocket)
	s.registerAPIRoutes(engine)
	return engine
}

// Start begins listening for connections and shuts down when ctx is done.
func (s *Server) Start(ctx context.Context) error {
	gin.SetMode(gin.ReleaseMode)
	port := config.Get().Gateway.Port

	s.httpSrv = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	slog.Info("inboxagent gateway starting", "port", port)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.httpSrv.Shutdown(shutdownCtx)
	}()

	if err := s.httpSrv.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) ginHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"uptime":  time.Since(s.startAt).String(),
		"bridges": len(s.Conns.ListBridges()),
		"clients": s.Conns.ClientCount(),
	})
}

const (
	maxFrameSize = 256 << 10
	pongWait     = 60 * time.Second
	pingPeriod   = pongWait * 9 / 10
)

// ginWebSocket upgrades, runs the connect handshake, then serves
// inbound.message requests until the peer goes away.
func (s *Server) ginWebSocket(c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", "error", err)
		return
	}
	defer ws.Close()
	ws.SetReadLimit(maxFrameSize)

	conn, connectID, err := s.handshake(ws)
	if err != nil {
		slog.Warn("websocket handshake failed", "remote", c.Request.RemoteAddr, "error", err)
		return
	}
	// registered before the ack so the peer never misses an event it could expect
	s.Conns.Add(conn)
	defer s.Conns.Remove(conn.ID)
	if err := conn.Send(ResOK(connectID, map[string]any{"connId": conn.ID, "protocol": 1})); err != nil {
		return
	}
	slog.Info("connection established", "id", conn.ID, "role", conn.Role, "channel", conn.Channel)

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	go s.keepAlive(ctx, conn)

	ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		frame, err := ReadFrame(ws)
		if err != nil {
			slog.Debug("connection closed", "id", conn.ID, "error", err)
			return
		}
		ws.SetReadDeadline(time.Now().Add(pongWait))
		switch {
		case frame.Type != "req":
			continue
		case frame.Method != MethodInboundMessage:
			conn.Send(ResErr(frame.ID, "UNKNOWN_METHOD", "use HTTP /api for management; only inbound.message is supported over WebSocket"))
		default:
			go func(f Frame) {
				conn.Send(s.handleInboundMessage(ctx, conn, f))
			}(frame)
		}
	}
}

// handshake reads the connect frame and validates and authenticates it. It
// returns the connect frame id for the caller to acknowledge; failures are
// answered here.
func (s *Server) handshake(ws *websocket.Conn) (*Conn, string, error) {
	conn := &Conn{
		ID:          fmt.Sprintf("conn_%d", time.Now().UnixNano()),
		WS:          ws,
		ConnectedAt: time.Now(),
	}
	ws.SetReadDeadline(time.Now().Add(pongWait))
	frame, err := ReadFrame(ws)
	if err != nil {
		return nil, "", fmt.Errorf("read connect frame: %w", err)
	}
	if frame.Method != MethodConnect {
		conn.Send(ResErr(frame.ID, "HANDSHAKE_REQUIRED", "first message must be a connect request"))
		return nil, "", fmt.Errorf("first frame was %q", frame.Method)
	}

	var params ConnectParams
	err = json.Unmarshal(frame.Params, &params)
	if err == nil {
		err = binding.Validator.ValidateStruct(&params)
	}
	if err != nil {
		conn.Send(ResInvalid(frame.ID, validationDetails(err)))
		return nil, "", fmt.Errorf("connect params: %w", err)
	}
	if !authenticate(params.Token) {
		conn.Send(ResErr(frame.ID, "AUTH_FAILED", "invalid token"))
		return nil, "", fmt.Errorf("invalid token for role %s", params.Role)
	}

	conn.Role = params.Role
	conn.Channel = params.Channel
	conn.Platforms = params.Platforms
	return conn, frame.ID, nil
}

func (s *Server) keepAlive(ctx context.Context, conn *Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.Ping(); err != nil {
				slog.Debug("ping failed", "id", conn.ID, "error", err)
				return
			}
		}
	}
}

// authenticate checks token against the current gateway token.
func authenticate(token string) bool {
	expected := config.Get().Gateway.Auth.Token
	if expected == "" {
		return true // no auth configured
	}
	return token == expected
}
