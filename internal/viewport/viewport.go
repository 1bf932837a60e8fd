package viewport

import "math"

const (
	MinScale = 0.1
	MaxScale = 10.0

	zoomIn  = 1.1
	zoomOut = 0.9
)

// Transform maps canvas space to screen space:
//
//	screen = canvas*Scale + Offset
//
// It only changes in response to pan and zoom gestures. Shape geometry is
// never rewritten with it.
type Transform struct {
	OffsetX float64
	OffsetY float64
	Scale   float64
}

func Identity() Transform { return Transform{Scale: 1} }

func (t Transform) ScreenToCanvas(sx, sy float64) (float64, float64) {
	return (sx - t.OffsetX) / t.Scale, (sy - t.OffsetY) / t.Scale
}

func (t Transform) CanvasToScreen(cx, cy float64) (float64, float64) {
	return cx*t.Scale + t.OffsetX, cy*t.Scale + t.OffsetY
}

// Pan shifts the view by a screen-space drag delta.
func (t *Transform) Pan(dx, dy float64) {
	t.OffsetX += dx
	t.OffsetY += dy
}

// ZoomAt applies one wheel step anchored at the cursor (cx, cy): the canvas
// point under the cursor stays under the cursor. A positive deltaY zooms
// out. Returns the new scale.
func (t *Transform) ZoomAt(cx, cy, deltaY float64) float64 {
	factor := zoomIn
	if deltaY > 0 {
		factor = zoomOut
	}
	return t.ZoomTo(cx, cy, t.Scale*factor)
}

// ZoomTo sets the scale (clamped to [MinScale, MaxScale]) keeping the
// canvas point under (cx, cy) fixed.
func (t *Transform) ZoomTo(cx, cy, scale float64) float64 {
	px, py := t.ScreenToCanvas(cx, cy)
	t.Scale = Clamp(scale)
	t.OffsetX = cx - px*t.Scale
	t.OffsetY = cy - py*t.Scale
	return t.Scale
}

func (t *Transform) Reset() { *t = Identity() }

// Matrix returns the affine paint transform [a b c d e f] as used by 2D
// drawing contexts and PDF "cm" operators.
func (t Transform) Matrix() [6]float64 {
	return [6]float64{t.Scale, 0, 0, t.Scale, t.OffsetX, t.OffsetY}
}

func Clamp(scale float64) float64 {
	if math.IsNaN(scale) {
		return 1
	}
	return math.Min(math.Max(MinScale, scale), MaxScale)
}
