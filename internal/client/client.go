package client

import (
	"boardsync/internal/canvas"
	"boardsync/internal/ws"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait    = 10 * time.Second
	joinAckWait  = 10 * time.Second
	defaultLimit = 100
)

var (
	ErrJoinRejected = errors.New("join rejected")
	ErrHistory      = errors.New("history fetch failed")
)

type Config struct {
	// ServerURL is the http(s) base of the board server.
	ServerURL    string
	Token        string
	RoomID       int64
	HistoryLimit int
	HTTPClient   *http.Client
}

// Handler receives live room frames.
type Handler interface {
	OnShape(userID, payload string)
	OnChat(userID, text string)
}

// Session is one authenticated socket bound to one room.
type Session struct {
	cfg  Config
	conn *websocket.Conn

	writeMu sync.Mutex
	// early holds room frames read while waiting for the join ack; Listen
	// hands them out first.
	early []ws.Envelope
}

func wsURL(base, token string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	u.RawQuery = url.Values{"token": {token}}.Encode()
	return u.String(), nil
}

// Dial opens the socket. The server closes it straight away if the token is
// rejected; that surfaces on the first read.
func Dial(ctx context.Context, cfg Config) (*Session, error) {
	if cfg.RoomID <= 0 {
		return nil, fmt.Errorf("invalid room id %d", cfg.RoomID)
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = defaultLimit
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 15 * time.Second}
	}

	target, err := wsURL(cfg.ServerURL, cfg.Token)
	if err != nil {
		return nil, err
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, target, nil)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	zap.L().Debug("client.connected", zap.Int64("room", cfg.RoomID))
	return &Session{cfg: cfg, conn: conn}, nil
}

func (s *Session) RoomID() int64 { return s.cfg.RoomID }

func (s *Session) write(ctx context.Context, env ws.Envelope) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	deadline := time.Now().Add(writeWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = s.conn.SetWriteDeadline(deadline)
	return s.conn.WriteJSON(env)
}

// Join sends join and waits for its acknowledgement. Room frames that beat
// the ack are kept for Listen.
func (s *Session) Join(ctx context.Context) error {
	if err := s.write(ctx, ws.Envelope{Type: ws.TypeJoin, RoomID: s.cfg.RoomID}); err != nil {
		return fmt.Errorf("%w: send join: %w", ErrJoinRejected, err)
	}

	deadline := time.Now().Add(joinAckWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = s.conn.SetReadDeadline(deadline)
	defer s.conn.SetReadDeadline(time.Time{})

	for {
		var env ws.Envelope
		if err := s.conn.ReadJSON(&env); err != nil {
			return fmt.Errorf("%w: %w", ErrJoinRejected, err)
		}
		if env.RoomID != s.cfg.RoomID {
			continue
		}
		switch env.Type {
		case ws.TypeJoin:
			return nil
		case ws.TypeShapeUpdate, ws.TypeChat:
			s.early = append(s.early, env)
		}
	}
}

type historyResponse struct {
	RoomID int64    `json:"roomId"`
	Shapes []string `json:"shapes"`
}

// History fetches the room's most recent shape payloads, oldest first.
func (s *Session) History(ctx context.Context) ([]string, error) {
	return FetchHistory(ctx, s.cfg)
}

// FetchHistory reads a room's history over HTTP without opening a socket.
func FetchHistory(ctx context.Context, cfg Config) ([]string, error) {
	limit := cfg.HistoryLimit
	if limit <= 0 {
		limit = defaultLimit
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}

	endpoint := fmt.Sprintf("%s/rooms/%d/shapes?limit=%s",
		strings.TrimSuffix(cfg.ServerURL, "/"), cfg.RoomID, strconv.Itoa(limit))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+cfg.Token)

	resp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrHistory, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrHistory, resp.StatusCode)
	}
	var body historyResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrHistory, err)
	}
	return body.Shapes, nil
}

// SendShape publishes a serialized shape to the room.
func (s *Session) SendShape(ctx context.Context, payload string) error {
	return s.write(ctx, ws.Envelope{Type: ws.TypeShapeUpdate, RoomID: s.cfg.RoomID, Message: payload})
}

func (s *Session) SendChat(ctx context.Context, text string) error {
	return s.write(ctx, ws.Envelope{Type: ws.TypeChat, RoomID: s.cfg.RoomID, Message: text})
}

// Listen reads live frames until ctx ends or the socket closes. Frames for
// other rooms are dropped.
func (s *Session) Listen(ctx context.Context, h Handler) error {
	stop := context.AfterFunc(ctx, func() { _ = s.conn.Close() })
	defer stop()

	early := s.early
	s.early = nil
	for _, env := range early {
		dispatch(h, env)
	}

	for {
		var env ws.Envelope
		if err := s.conn.ReadJSON(&env); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}
		if env.RoomID != s.cfg.RoomID {
			continue
		}
		dispatch(h, env)
	}
}

func dispatch(h Handler, env ws.Envelope) {
	switch env.Type {
	case ws.TypeShapeUpdate:
		h.OnShape(env.UserID, env.Message)
	case ws.TypeChat:
		h.OnChat(env.UserID, env.Message)
	}
}

func (s *Session) Close() error {
	s.writeMu.Lock()
	_ = s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	s.writeMu.Unlock()
	return s.conn.Close()
}

type boardHandler struct {
	board  *canvas.Board
	onChat func(userID, text string)
}

func (h boardHandler) OnShape(_ string, payload string) {
	if err := h.board.Deliver(payload); err != nil {
		zap.L().Debug("client.deliver", zap.Error(err))
	}
}

func (h boardHandler) OnChat(userID, text string) {
	if h.onChat != nil {
		h.onChat(userID, text)
		return
	}
	zap.L().Info("client.chat", zap.String("user", userID), zap.String("text", text))
}

// Attach joins the room, replays its history into board and then feeds it
// live frames until ctx ends. Live frames that arrive before the join ack or
// while history loads are delivered afterwards and reconciled. onChat may be nil.
func (s *Session) Attach(ctx context.Context, board *canvas.Board, onChat func(userID, text string)) error {
	if err := s.Join(ctx); err != nil {
		return err
	}
	history, err := s.History(ctx)
	if err != nil {
		return err
	}
	if err := board.LoadHistory(history); err != nil {
		return err
	}
	zap.L().Info("client.ready", zap.Int64("room", s.cfg.RoomID), zap.Int("history", len(history)))
	return s.Listen(ctx, boardHandler{board: board, onChat: onChat})
}
