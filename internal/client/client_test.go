package client

import (
	"boardsync/internal/auth"
	"boardsync/internal/canvas"
	"boardsync/internal/http/roomhandler"
	"boardsync/internal/services/board"
	"boardsync/internal/shape"
	"boardsync/internal/store/chatlog"
	"boardsync/internal/ws"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "client-test-secret-0123"

type server struct {
	ts    *httptest.Server
	wsSrv *ws.WsServer
	svc   board.IBoardService
}

func startServer(t *testing.T) *server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	reg := ws.NewRegistry(64)
	svc := board.NewBoardService(chatlog.NewMemoryLog(), nil, ws.NewHub(reg), board.Options{})
	verifier := auth.NewJwtVerifier(secret)
	wsSrv := ws.NewWsServer(reg, verifier, svc, ws.Options{})

	r := gin.New()
	r.GET("/ws", wsSrv.Handle)
	roomhandler.New(svc, reg, verifier, 100, 500).Register(r)

	s := &server{ts: httptest.NewServer(r), wsSrv: wsSrv, svc: svc}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = wsSrv.Shutdown(ctx)
		s.ts.Close()
	})
	return s
}

func token(t *testing.T, user string) string {
	t.Helper()
	tok, err := auth.Issue(secret, user, time.Minute)
	require.NoError(t, err)
	return tok
}

type nopRenderer struct{}

func (nopRenderer) Render(canvas.Frame) {}

type lateSender struct {
	mu sync.Mutex
	s  *Session
}

func (l *lateSender) SendShape(ctx context.Context, payload string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.s.SendShape(ctx, payload)
}

func TestAttachReplaysHistoryThenGoesLive(t *testing.T) {
	srv := startServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for i := 0; i < 3; i++ {
		payload := fmt.Sprintf(`{"type":"rect","x":%d,"y":0,"width":1,"height":1,"source":"old-%d"}`, i, i)
		require.NoError(t, srv.svc.HandleShapeUpdate(ctx, "bob", 7, payload))
	}

	sess, err := Dial(ctx, Config{ServerURL: srv.ts.URL, Token: token(t, "alice"), RoomID: 7})
	require.NoError(t, err)
	defer sess.Close()

	b := canvas.New(nopRenderer{}, &lateSender{s: sess})
	boardDone := make(chan struct{})
	go func() { defer close(boardDone); _ = b.Run(ctx) }()
	attachDone := make(chan error, 1)
	go func() { attachDone <- sess.Attach(ctx, b, nil) }()

	count := func() int {
		got, err := b.Shapes()
		if err != nil {
			return -1
		}
		return len(got)
	}
	require.Eventually(t, func() bool { return count() == 3 }, 3*time.Second, 10*time.Millisecond)

	peer, err := Dial(ctx, Config{ServerURL: srv.ts.URL, Token: token(t, "bob"), RoomID: 7})
	require.NoError(t, err)
	defer peer.Close()
	require.NoError(t, peer.Join(ctx))
	require.NoError(t, peer.SendShape(ctx, `{"type":"line","startX":0,"startY":0,"endX":1,"endY":1,"source":"peer"}`))
	require.Eventually(t, func() bool { return count() == 4 }, 3*time.Second, 10*time.Millisecond)

	// local draw: optimistic append, then the echo is suppressed
	require.NoError(t, b.DrawLocal(shape.Shape{Geometry: shape.Circle{CenterX: 1, CenterY: 1, Radius: 1}}))
	require.Eventually(t, func() bool { return count() == 5 }, 3*time.Second, 10*time.Millisecond)
	assert.Never(t, func() bool { return count() > 5 }, 300*time.Millisecond, 20*time.Millisecond)

	history, err := sess.History(ctx)
	require.NoError(t, err)
	assert.Len(t, history, 5)

	cancel()
	assert.ErrorIs(t, <-attachDone, context.Canceled)
	<-boardDone
}

type chatCollector struct {
	mu    sync.Mutex
	chats []string
}

func (c *chatCollector) OnShape(string, string) {}
func (c *chatCollector) OnChat(userID, text string) {
	c.mu.Lock()
	c.chats = append(c.chats, userID+": "+text)
	c.mu.Unlock()
}

type frameCollector struct {
	mu     sync.Mutex
	frames []string
}

func (c *frameCollector) OnShape(userID, payload string) {
	c.mu.Lock()
	c.frames = append(c.frames, "shape "+userID+" "+payload)
	c.mu.Unlock()
}

func (c *frameCollector) OnChat(userID, text string) {
	c.mu.Lock()
	c.frames = append(c.frames, "chat "+userID+" "+text)
	c.mu.Unlock()
}

func TestFramesBeforeJoinAckReachListen(t *testing.T) {
	upgrader := websocket.Upgrader{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var join ws.Envelope
		if err := conn.ReadJSON(&join); err != nil {
			return
		}
		// a broadcast fanned out between registration and the ack
		_ = conn.WriteJSON(ws.Envelope{Type: ws.TypeShapeUpdate, RoomID: join.RoomID, UserID: "bob", Message: "s1"})
		_ = conn.WriteJSON(ws.Envelope{Type: ws.TypeShapeUpdate, RoomID: join.RoomID + 1, UserID: "bob", Message: "other"})
		_ = conn.WriteJSON(ws.Envelope{Type: ws.TypeChat, RoomID: join.RoomID, UserID: "bob", Message: "hi"})
		_ = conn.WriteJSON(ws.Envelope{Type: ws.TypeJoin, RoomID: join.RoomID})
		_ = conn.WriteJSON(ws.Envelope{Type: ws.TypeShapeUpdate, RoomID: join.RoomID, UserID: "bob", Message: "s2"})
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		_, _, _ = conn.ReadMessage()
	}))
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sess, err := Dial(ctx, Config{ServerURL: ts.URL, Token: "t", RoomID: 7})
	require.NoError(t, err)
	defer sess.Close()
	require.NoError(t, sess.Join(ctx))

	h := &frameCollector{}
	require.NoError(t, sess.Listen(ctx, h))
	assert.Equal(t, []string{"shape bob s1", "chat bob hi", "shape bob s2"}, h.frames)
}

func TestChatRoundTrip(t *testing.T) {
	srv := startServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sess, err := Dial(ctx, Config{ServerURL: srv.ts.URL, Token: token(t, "alice"), RoomID: 3})
	require.NoError(t, err)
	defer sess.Close()
	require.NoError(t, sess.Join(ctx))

	col := &chatCollector{}
	go func() { _ = sess.Listen(ctx, col) }()
	require.NoError(t, sess.SendChat(ctx, "hello"))

	require.Eventually(t, func() bool {
		col.mu.Lock()
		defer col.mu.Unlock()
		return len(col.chats) == 1 && col.chats[0] == "alice: hello"
	}, 3*time.Second, 10*time.Millisecond)
}

func TestBadTokenFailsJoin(t *testing.T) {
	srv := startServer(t)
	ctx := context.Background()

	sess, err := Dial(ctx, Config{ServerURL: srv.ts.URL, Token: "bogus", RoomID: 1})
	require.NoError(t, err)
	defer sess.Close()

	assert.ErrorIs(t, sess.Join(ctx), ErrJoinRejected)
	_, err = sess.History(ctx)
	assert.ErrorIs(t, err, ErrHistory)
}

func TestFetchHistoryWithoutSocket(t *testing.T) {
	srv := startServer(t)
	ctx := context.Background()
	require.NoError(t, srv.svc.HandleShapeUpdate(ctx, "bob", 2, `{"type":"rect","x":0,"y":0,"width":1,"height":1}`))
	require.NoError(t, srv.svc.HandleShapeUpdate(ctx, "bob", 2, `{"type":"rect","x":1,"y":0,"width":1,"height":1}`))

	got, err := FetchHistory(ctx, Config{ServerURL: srv.ts.URL + "/", Token: token(t, "alice"), RoomID: 2, HistoryLimit: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{`{"type":"rect","x":1,"y":0,"width":1,"height":1}`}, got)
}

func TestDialValidation(t *testing.T) {
	_, err := Dial(context.Background(), Config{ServerURL: "http://localhost", RoomID: 0})
	assert.Error(t, err)

	_, err = Dial(context.Background(), Config{ServerURL: "ftp://localhost", RoomID: 1})
	assert.Error(t, err)
}

func TestWsURL(t *testing.T) {
	cases := map[string]string{
		"http://localhost:8080":     "ws://localhost:8080/ws?token=t",
		"https://board.example/":    "wss://board.example/ws?token=t",
		"http://host/api":           "ws://host/api/ws?token=t",
		"ws://already.example:9000": "ws://already.example:9000/ws?token=t",
	}
	for in, want := range cases {
		got, err := wsURL(in, "t")
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}
