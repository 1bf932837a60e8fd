package canvas

import (
	"boardsync/internal/shape"
	"boardsync/internal/viewport"
	"bytes"
	"context"
	"errors"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const eventQueueSize = 256

var ErrStopped = errors.New("canvas stopped")

// Frame is one full repaint. Shapes is only valid for the duration of the
// Render call.
type Frame struct {
	Shapes  []shape.Shape
	Preview *shape.Shape
	Matrix  [6]float64
}

// Renderer paints frames. It is only ever called from the board's loop, so
// a render never overlaps another.
type Renderer interface {
	Render(Frame)
}

// Sender ships a locally drawn shape payload to the room.
type Sender interface {
	SendShape(ctx context.Context, payload string) error
}

type entry struct {
	shape shape.Shape
	key   []byte
}

// state is owned by the loop goroutine. Nothing else touches it.
type state struct {
	entries []entry
	seen    map[string]struct{}
	byKey   map[uint64][]int

	view    viewport.Transform
	tool    Tool
	gesture gesture

	dirty bool
}

// Board reconciles local drawing, replayed history and live network shapes
// into one ordered collection. Local input and the network reader both post
// events; a single loop goroutine applies them and repaints once per drained
// batch.
type Board struct {
	renderer Renderer
	sender   Sender
	onScale  func(float64)

	events  chan func(context.Context, *state)
	stopped chan struct{}
	out     *outbox

	st state
}

type Option func(*Board)

// WithScaleListener is called from the loop whenever the zoom level changes.
func WithScaleListener(fn func(float64)) Option {
	return func(b *Board) { b.onScale = fn }
}

func New(renderer Renderer, sender Sender, opts ...Option) *Board {
	b := &Board{
		renderer: renderer,
		sender:   sender,
		events:   make(chan func(context.Context, *state), eventQueueSize),
		stopped:  make(chan struct{}),
		out:      newOutbox(),
		st: state{
			seen:  make(map[string]struct{}),
			byKey: make(map[uint64][]int),
			view:  viewport.Identity(),
			tool:  ToolRect,
		},
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Run applies events until ctx is cancelled. Local shapes are sent from a
// second goroutine that Run owns.
func (b *Board) Run(ctx context.Context) error {
	sendDone := make(chan struct{})
	go func() {
		defer close(sendDone)
		b.sendLoop(ctx)
	}()
	defer func() {
		close(b.stopped)
		<-sendDone
	}()

	b.st.dirty = true
	for {
		if b.st.dirty {
			b.paint()
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn := <-b.events:
			fn(ctx, &b.st)
			b.drain(ctx)
		}
	}
}

// drain applies whatever is already queued so a burst costs one repaint.
func (b *Board) drain(ctx context.Context) {
	for {
		select {
		case fn := <-b.events:
			fn(ctx, &b.st)
		default:
			return
		}
	}
}

func (b *Board) paint() {
	shapes := make([]shape.Shape, len(b.st.entries))
	for i, e := range b.st.entries {
		shapes[i] = e.shape
	}
	b.renderer.Render(Frame{
		Shapes:  shapes,
		Preview: b.st.gesture.preview(b.st.tool),
		Matrix:  b.st.view.Matrix(),
	})
	b.st.dirty = false
}

func (b *Board) post(fn func(context.Context, *state)) error {
	select {
	case <-b.stopped:
		return ErrStopped
	default:
	}
	select {
	case b.events <- fn:
		return nil
	case <-b.stopped:
		return ErrStopped
	}
}

// query runs fn on the loop and waits for it.
func query[T any](b *Board, fn func(*state) T) (T, error) {
	out := make(chan T, 1)
	if err := b.post(func(_ context.Context, st *state) { out <- fn(st) }); err != nil {
		var zero T
		return zero, err
	}
	select {
	case v := <-out:
		return v, nil
	case <-b.stopped:
		var zero T
		return zero, ErrStopped
	}
}

// DrawLocal tags s with a fresh source token, shows it at once and sends it.
func (b *Board) DrawLocal(s shape.Shape) error {
	return b.post(func(_ context.Context, st *state) { b.commitLocal(st, s) })
}

// Deliver reconciles one shape_update payload received from the room.
func (b *Board) Deliver(payload string) error {
	return b.post(func(_ context.Context, st *state) {
		s, err := shape.Decode(payload)
		if err != nil {
			zap.L().Debug("canvas.decode", zap.Error(err))
			return
		}
		if st.accept(s) {
			st.dirty = true
		}
	})
}

// LoadHistory reconciles replayed payloads, oldest first, with one repaint.
func (b *Board) LoadHistory(payloads []string) error {
	return b.post(func(_ context.Context, st *state) {
		for _, p := range payloads {
			s, err := shape.Decode(p)
			if err != nil {
				zap.L().Debug("canvas.history_decode", zap.Error(err))
				continue
			}
			if st.accept(s) {
				st.dirty = true
			}
		}
	})
}

// ClearAIShapes drops generated shapes from this view only.
func (b *Board) ClearAIShapes() error {
	return b.post(func(_ context.Context, st *state) {
		kept := st.entries[:0]
		for _, e := range st.entries {
			if !e.shape.IsAI {
				kept = append(kept, e)
			}
		}
		st.entries = kept
		st.reindex()
		st.dirty = true
	})
}

func (b *Board) Shapes() ([]shape.Shape, error) {
	return query(b, func(st *state) []shape.Shape {
		out := make([]shape.Shape, len(st.entries))
		for i, e := range st.entries {
			out[i] = e.shape
		}
		return out
	})
}

func (b *Board) View() (viewport.Transform, error) {
	return query(b, func(st *state) viewport.Transform { return st.view })
}

func (b *Board) commitLocal(st *state, s shape.Shape) {
	s.Source = uuid.NewString()
	payload, err := shape.Encode(s)
	if err != nil {
		zap.L().Warn("canvas.encode", zap.Error(err))
		return
	}
	st.accept(s)
	st.dirty = true
	b.out.put(payload)
}

// outbox hands local payloads to the send goroutine in draw order.
type outbox struct {
	mu      sync.Mutex
	pending []string
	wake    chan struct{}
}

func newOutbox() *outbox { return &outbox{wake: make(chan struct{}, 1)} }

func (o *outbox) put(payload string) {
	o.mu.Lock()
	o.pending = append(o.pending, payload)
	o.mu.Unlock()
	select {
	case o.wake <- struct{}{}:
	default:
	}
}

func (o *outbox) take() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := o.pending
	o.pending = nil
	return out
}

// sendLoop ships queued payloads. A failed send is logged; the optimistic
// copy stays on the board.
func (b *Board) sendLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-b.out.wake:
		}
		for _, payload := range b.out.take() {
			if err := b.sender.SendShape(ctx, payload); err != nil {
				zap.L().Warn("canvas.send", zap.Error(err))
			}
		}
	}
}

// accept appends s unless it is already present. A source token is matched
// exactly; shapes without one fall back to structural equality.
func (st *state) accept(s shape.Shape) bool {
	key, err := shape.ContentKey(s)
	if err != nil {
		return false
	}

	if s.Source != "" {
		if _, dup := st.seen[s.Source]; dup {
			return false
		}
		st.seen[s.Source] = struct{}{}
	} else if st.hasContent(key) {
		return false
	}

	st.entries = append(st.entries, entry{shape: s, key: key})
	h := xxhash.Sum64(key)
	st.byKey[h] = append(st.byKey[h], len(st.entries)-1)
	return true
}

func (st *state) hasContent(key []byte) bool {
	for _, i := range st.byKey[xxhash.Sum64(key)] {
		if bytes.Equal(st.entries[i].key, key) {
			return true
		}
	}
	return false
}

func (st *state) reindex() {
	st.byKey = make(map[uint64][]int, len(st.entries))
	for i, e := range st.entries {
		h := xxhash.Sum64(e.key)
		st.byKey[h] = append(st.byKey[h], i)
	}
}
