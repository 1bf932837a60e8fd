package ws

import (
	"boardsync/internal/auth"
	"boardsync/internal/services/board"
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10 // must be < pongWait

	inboxSize = 32
)

type Options struct {
	ReadLimit  int64
	SendBuffer int
}

type WsServer struct {
	registry *Registry
	router   *Router
	verifier auth.Verifier
	boardSvc board.IBoardService
	upgrader websocket.Upgrader
	opts     Options
	wg       sync.WaitGroup
}

func NewWsServer(registry *Registry, verifier auth.Verifier, boardSvc board.IBoardService, opts Options) *WsServer {
	if opts.ReadLimit <= 0 {
		opts.ReadLimit = 64 << 10
	}
	srv := &WsServer{
		registry: registry,
		router:   NewRouter(),
		verifier: verifier,
		boardSvc: boardSvc,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true }, // browsers connect from the web app origin
		},
		opts: opts,
	}
	srv.registerHandlers() // ← all WS message types configured here
	return srv
}

// ---------------------------------------------------------------------------
//  Public: Gin entry-point
// ---------------------------------------------------------------------------

// Handle upgrades the request, verifies the "token" query parameter and
// starts the connection's goroutines. A missing or rejected credential closes
// the socket without registering it.
func (s *WsServer) Handle(ginCtx *gin.Context) {
	rawConn, err := s.upgrader.Upgrade(ginCtx.Writer, ginCtx.Request, nil)
	if err != nil {
		zap.L().Warn("ws.accept", zap.Error(err))
		return
	}

	userID, err := s.verifier.Verify(ginCtx.Query("token"))
	if err != nil {
		zap.L().Info("ws.auth_rejected", zap.String("remote", ginCtx.ClientIP()), zap.Error(err))
		_ = rawConn.Close()
		return
	}

	conn := s.registry.Register(userID, rawConn)
	zap.L().Debug("ws.registered", zap.Uint64("conn", conn.ID()), zap.String("user", userID))

	inbox := make(chan Message, inboxSize)
	s.wg.Add(3)
	go func() { defer s.wg.Done(); conn.writePump() }()
	go func() { defer s.wg.Done(); s.dispatcher(conn, inbox) }()
	go func() { defer s.wg.Done(); s.reader(conn, inbox) }()
}

// Shutdown closes every connection and waits for their goroutines.
func (s *WsServer) Shutdown(ctx context.Context) error {
	s.registry.CloseAll()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ---------------------------------------------------------------------------
//  Private helpers
// ---------------------------------------------------------------------------

func (s *WsServer) registerHandlers() {
	// 🔹 join ---------------------------------------------------------------
	Register(s.router, func(_ context.Context, cc *ConnContext, req Join) (*Envelope, error) {
		s.registry.Join(cc.Conn, req.RoomID)
		ack := ackFor(req)
		return &ack, nil
	})

	// 🔹 leave --------------------------------------------------------------
	Register(s.router, func(_ context.Context, cc *ConnContext, req Leave) (*Envelope, error) {
		s.registry.Leave(cc.Conn, req.RoomID)
		ack := ackFor(req)
		return &ack, nil
	})

	// 🔹 shape_update -------------------------------------------------------
	Register(s.router, func(ctx context.Context, cc *ConnContext, req ShapeUpdate) (*Envelope, error) {
		return nil, s.boardSvc.HandleShapeUpdate(ctx, cc.UserID, req.RoomID, req.Payload)
	})

	// 🔹 chat ---------------------------------------------------------------
	Register(s.router, func(ctx context.Context, cc *ConnContext, req Chat) (*Envelope, error) {
		return nil, s.boardSvc.HandleChat(ctx, cc.UserID, req.RoomID, req.Text)
	})
}

// reader decodes frames and hands them to the dispatcher. When the socket
// closes it unregisters at once; messages already handed over still run.
func (s *WsServer) reader(conn *Conn, inbox chan<- Message) {
	defer func() {
		close(inbox)
		s.registry.Unregister(conn)
		conn.Close()
	}()

	raw := conn.rawConn
	raw.SetReadLimit(s.opts.ReadLimit)
	_ = raw.SetReadDeadline(time.Now().Add(pongWait))
	raw.SetPongHandler(func(string) error {
		return raw.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := raw.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				zap.L().Debug("ws.read", zap.Uint64("conn", conn.ID()), zap.Error(err))
			}
			return // client closed or errored
		}

		msg, err := DecodeMessage(data)
		switch {
		case errors.Is(err, ErrAuth):
			zap.L().Info("ws.join_rejected", zap.Uint64("conn", conn.ID()), zap.Error(err))
			return
		case errors.Is(err, ErrIgnored):
			zap.L().Debug("ws.ignored", zap.Uint64("conn", conn.ID()), zap.Error(err))
			continue
		case err != nil:
			zap.L().Warn("ws.protocol", zap.Uint64("conn", conn.ID()), zap.Error(err))
			continue
		}

		select {
		case inbox <- msg:
		case <-conn.Done():
			return
		}
	}
}

// dispatcher handles one connection's messages in arrival order.
func (s *WsServer) dispatcher(conn *Conn, inbox <-chan Message) {
	cc := &ConnContext{Conn: conn, UserID: conn.UserID()}

	for msg := range inbox {
		reply, err := s.router.dispatch(context.Background(), cc, msg)
		if err != nil {
			zap.L().Debug("ws.dispatch",
				zap.Uint64("conn", conn.ID()),
				zap.String("type", string(msg.Type())),
				zap.Int64("room", msg.Room()),
				zap.Error(err))
			continue
		}
		if reply == nil {
			continue
		}
		frame, err := encodeEnvelope(*reply)
		if err != nil {
			zap.L().Error("ws.encode", zap.Error(err))
			continue
		}
		_ = conn.Send(frame)
	}
}
