package handler

import (
	"context"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/collab-room-api/internal/middleware"
	"github.com/noah-isme/collab-room-api/internal/realtime"
)

const (
	socketSendBufferSize = 256
	socketReadLimit      = 2 << 20
	socketWriteWait      = 10 * time.Second
)

// SocketConfig tunes the websocket heartbeat.
type SocketConfig struct {
	PingInterval time.Duration
	PingTimeout  time.Duration
}

// SocketHandler upgrades /socket requests and pumps frames between the connection and the
// session engine.
type SocketHandler struct {
	engine *realtime.Engine
	cfg    SocketConfig
	logger zerolog.Logger
}

// NewSocketHandler constructs a SocketHandler.
func NewSocketHandler(engine *realtime.Engine, cfg SocketConfig, logger zerolog.Logger) *SocketHandler {
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 25 * time.Second
	}
	if cfg.PingTimeout <= cfg.PingInterval {
		cfg.PingTimeout = cfg.PingInterval * 2
	}
	return &SocketHandler{
		engine: engine,
		cfg:    cfg,
		logger: logger.With().Str("component", "socket_handler").Logger(),
	}
}

// Register binds the websocket endpoint.
func (h *SocketHandler) Register(router fiber.Router) {
	router.Use("/socket", func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		c.Locals("request_ctx", requestContext(c))
		return c.Next()
	})
	router.Get("/socket", websocket.New(h.handleConnection, websocket.Config{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
	}))
}

func (h *SocketHandler) handleConnection(conn *websocket.Conn) {
	baseCtx, _ := conn.Locals("request_ctx").(context.Context)
	if baseCtx == nil {
		baseCtx = context.Background()
	}

	client := &socketClient{
		id:     uuid.NewString(),
		conn:   conn,
		send:   make(chan realtime.Envelope, socketSendBufferSize),
		closed: make(chan struct{}),
		cfg:    h.cfg,
		logger: h.logger,
	}
	logger := h.logger.With().
		Str("session_id", client.id).
		Str("request_id", middleware.RequestIDFromContext(baseCtx)).
		Logger()
	client.logger = logger

	session := h.engine.Connect(client)
	logger.Info().Msg("socket connected")

	done := make(chan struct{})
	go func() {
		defer close(done)
		client.writer()
	}()
	client.reader(baseCtx, h.engine, session)

	h.engine.Disconnect(baseCtx, session)
	client.close()
	<-done
	logger.Info().Msg("socket disconnected")
}

// socketClient is the transport side of one session.
type socketClient struct {
	id     string
	conn   *websocket.Conn
	send   chan realtime.Envelope
	closed chan struct{}
	once   sync.Once
	cfg    SocketConfig
	logger zerolog.Logger
}

func (c *socketClient) SessionID() string {
	return c.id
}

// Deliver queues an envelope without blocking; a full queue drops it.
func (c *socketClient) Deliver(env realtime.Envelope) bool {
	select {
	case <-c.closed:
		return false
	default:
	}

	select {
	case c.send <- env:
		return true
	default:
		return false
	}
}

// Drain waits until the queue is flushed or ctx expires, then closes the connection.
func (c *socketClient) Drain(ctx context.Context) {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for len(c.send) > 0 {
		select {
		case <-ctx.Done():
			c.close()
			return
		case <-c.closed:
			return
		case <-ticker.C:
		}
	}
	c.close()
}

func (c *socketClient) reader(ctx context.Context, engine *realtime.Engine, session *realtime.Session) {
	c.conn.SetReadLimit(socketReadLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.cfg.PingTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.cfg.PingTimeout))
	})

	for {
		messageType, raw, err := c.conn.ReadMessage()
		if err != nil {
			c.logger.Debug().Err(err).Msg("socket read loop ended")
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(c.cfg.PingTimeout))
		if messageType != websocket.TextMessage && messageType != websocket.BinaryMessage {
			continue
		}

		engine.Handle(ctx, session, raw)

		select {
		case <-c.closed:
			return
		default:
		}
	}
}

func (c *socketClient) writer() {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()
	defer c.close()

	for {
		select {
		case env := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(socketWriteWait))
			if err := c.conn.WriteJSON(env); err != nil {
				c.logger.Debug().Err(err).Msg("socket write loop terminated")
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(socketWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Debug().Err(err).Msg("socket ping failed")
				return
			}
		case <-c.closed:
			return
		}
	}
}

func (c *socketClient) close() {
	c.once.Do(func() {
		close(c.closed)
		_ = c.conn.Close()
	})
}
