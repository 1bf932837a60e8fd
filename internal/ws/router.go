package ws

import (
	"context"
	"fmt"
	"sync"
)

// ConnContext is what a handler knows about the calling connection.
type ConnContext struct {
	Conn   *Conn
	UserID string
}

// internal (untyped) handler signature.
type rawHandler func(ctx context.Context, c *ConnContext, msg Message) (*Envelope, error)

// Router keeps a map[type]handler, à-la gin.Engine.
type Router struct {
	mu       sync.RWMutex
	handlers map[MessageType]rawHandler
}

func NewRouter() *Router { return &Router{handlers: make(map[MessageType]rawHandler)} }

// Register binds a message variant to a strongly-typed handler. A non-nil
// reply is sent back to the calling connection only.
func Register[Req Message](
	r *Router,
	h func(ctx context.Context, c *ConnContext, req Req) (*Envelope, error),
) {
	var zero Req
	typ := zero.Type()

	r.mu.Lock()
	defer r.mu.Unlock()

	r.handlers[typ] = func(ctx context.Context, c *ConnContext, msg Message) (*Envelope, error) {
		req, ok := msg.(Req)
		if !ok {
			return nil, fmt.Errorf("%w: %T routed as %s", ErrProtocol, msg, typ)
		}
		return h(ctx, c, req)
	}
}

// dispatch is called by the connection's dispatcher goroutine.
func (r *Router) dispatch(ctx context.Context, c *ConnContext, msg Message) (*Envelope, error) {
	r.mu.RLock()
	h, ok := r.handlers[msg.Type()]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: no handler for %s", ErrIgnored, msg.Type())
	}
	return h(ctx, c, msg)
}
