package canvas

import (
	"boardsync/internal/shape"
	"boardsync/internal/viewport"
	"context"
	"fmt"
	"math"
)

type Tool string

const (
	ToolRect   Tool = "rect"
	ToolCircle Tool = "circle"
	ToolLine   Tool = "line"
	ToolPencil Tool = "pencil"
	ToolPan    Tool = "pan"
)

func ParseTool(s string) (Tool, error) {
	switch t := Tool(s); t {
	case ToolRect, ToolCircle, ToolLine, ToolPencil, ToolPan:
		return t, nil
	}
	return "", fmt.Errorf("unknown tool %q", s)
}

type Button int

const (
	ButtonLeft  Button = 0
	ButtonRight Button = 2
)

// gesture tracks one pointer drag. Draw coordinates are canvas space, pan
// coordinates are screen space.
type gesture struct {
	drawing bool
	startX  float64
	startY  float64
	curX    float64
	curY    float64
	points  []shape.Point

	panning  bool
	lastPanX float64
	lastPanY float64
}

// geometry builds the shape a drag from start to (x, y) produces.
func (g *gesture) geometry(tool Tool, x, y float64) shape.Geometry {
	w, h := x-g.startX, y-g.startY
	switch tool {
	case ToolRect:
		return shape.Rect{X: g.startX, Y: g.startY, Width: w, Height: h}
	case ToolCircle:
		r := math.Max(w, h) / 2
		return shape.Circle{CenterX: g.startX + r, CenterY: g.startY + r, Radius: r}
	case ToolLine:
		return shape.Line{StartX: g.startX, StartY: g.startY, EndX: x, EndY: y}
	case ToolPencil:
		pts := make([]shape.Point, len(g.points))
		copy(pts, g.points)
		return shape.Pencil{Points: pts}
	}
	return nil
}

func (g *gesture) preview(tool Tool) *shape.Shape {
	if !g.drawing {
		return nil
	}
	geo := g.geometry(tool, g.curX, g.curY)
	if geo == nil {
		return nil
	}
	return &shape.Shape{Geometry: geo}
}

func (b *Board) SetTool(t Tool) error {
	return b.post(func(_ context.Context, st *state) {
		st.tool = t
		if st.gesture.drawing {
			st.gesture = gesture{}
			st.dirty = true
		}
	})
}

// PointerDown starts a drag at screen point (x, y). The right button pans
// with any tool.
func (b *Board) PointerDown(x, y float64, button Button) error {
	return b.post(func(_ context.Context, st *state) {
		if st.tool == ToolPan || button == ButtonRight {
			st.gesture = gesture{panning: true, lastPanX: x, lastPanY: y}
			return
		}
		cx, cy := st.view.ScreenToCanvas(x, y)
		st.gesture = gesture{drawing: true, startX: cx, startY: cy, curX: cx, curY: cy}
		if st.tool == ToolPencil {
			st.gesture.points = []shape.Point{{X: cx, Y: cy}}
		}
	})
}

func (b *Board) PointerMove(x, y float64) error {
	return b.post(func(_ context.Context, st *state) {
		g := &st.gesture
		switch {
		case g.panning:
			st.view.Pan(x-g.lastPanX, y-g.lastPanY)
			g.lastPanX, g.lastPanY = x, y
			st.dirty = true
		case g.drawing:
			g.curX, g.curY = st.view.ScreenToCanvas(x, y)
			if st.tool == ToolPencil {
				g.points = append(g.points, shape.Point{X: g.curX, Y: g.curY})
			}
			st.dirty = true
		}
	})
}

// PointerUp ends the drag. A drawing drag commits its shape as a local draw.
func (b *Board) PointerUp(x, y float64) error {
	return b.post(func(_ context.Context, st *state) {
		g := st.gesture
		st.gesture = gesture{}
		if g.panning || !g.drawing {
			return
		}
		cx, cy := st.view.ScreenToCanvas(x, y)
		geo := g.geometry(st.tool, cx, cy)
		if geo == nil {
			return
		}
		b.commitLocal(st, shape.Shape{Geometry: geo})
	})
}

// Wheel zooms one step anchored at the cursor.
func (b *Board) Wheel(x, y, deltaY float64) error {
	return b.post(func(_ context.Context, st *state) {
		scale := st.view.ZoomAt(x, y, deltaY)
		st.dirty = true
		if b.onScale != nil {
			b.onScale(scale)
		}
	})
}

func (b *Board) ResetView() error {
	return b.post(func(_ context.Context, st *state) {
		st.view.Reset()
		st.dirty = true
		if b.onScale != nil {
			b.onScale(st.view.Scale)
		}
	})
}

// SetView replaces the transform, e.g. to restore a saved viewport.
func (b *Board) SetView(t viewport.Transform) error {
	t.Scale = viewport.Clamp(t.Scale)
	return b.post(func(_ context.Context, st *state) {
		st.view = t
		st.dirty = true
	})
}
