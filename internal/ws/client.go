package ws

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

var (
	ErrConnClosed   = errors.New("connection closed")
	ErrSlowConsumer = errors.New("send queue full")
)

var connSeq atomic.Uint64

// Conn is one live socket bound to a verified identity. Frames are queued
// and written by a single writer goroutine.
type Conn struct {
	id     uint64
	userID string

	rawConn *websocket.Conn
	send    chan []byte

	done      chan struct{}
	closeOnce sync.Once

	// guarded by Registry.mu
	rooms map[int64]struct{}
}

func newConn(userID string, rawConn *websocket.Conn, buffer int) *Conn {
	if buffer <= 0 {
		buffer = 1
	}
	return &Conn{
		id:      connSeq.Add(1),
		userID:  userID,
		rawConn: rawConn,
		send:    make(chan []byte, buffer),
		done:    make(chan struct{}),
		rooms:   make(map[int64]struct{}),
	}
}

func (c *Conn) ID() uint64     { return c.id }
func (c *Conn) UserID() string { return c.userID }

// Send queues a frame without blocking. A full queue closes the connection:
// one slow peer must not hold up a room.
func (c *Conn) Send(frame []byte) error {
	select {
	case <-c.done:
		return ErrConnClosed
	default:
	}

	select {
	case c.send <- frame:
		return nil
	case <-c.done:
		return ErrConnClosed
	default:
		c.Close()
		return fmt.Errorf("conn %d: %w", c.id, ErrSlowConsumer)
	}
}

// Close is idempotent. The writer goroutine closes the socket.
func (c *Conn) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

func (c *Conn) Done() <-chan struct{} { return c.done }

// writePump is the only goroutine writing to rawConn.
func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.rawConn.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.rawConn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return

		case frame := <-c.send:
			_ = c.rawConn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.rawConn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.Close()
				return
			}

		case <-ticker.C:
			if err := c.rawConn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				c.Close()
				return
			}
		}
	}
}
