package shape

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/go-playground/validator/v10"
)

type Kind string

const (
	KindRect   Kind = "rect"
	KindCircle Kind = "circle"
	KindLine   Kind = "line"
	KindPencil Kind = "pencil"
)

var (
	ErrUnknownKind = errors.New("unknown shape type")
	ErrInvalid     = errors.New("invalid shape")
)

// Geometry is implemented by the four drawable variants. All coordinates are
// canvas space.
type Geometry interface {
	Kind() Kind
	Bounds() Rect
}

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Rect width/height keep the sign of the drag direction.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type Circle struct {
	CenterX float64 `json:"centerX"`
	CenterY float64 `json:"centerY"`
	Radius  float64 `json:"radius"`
}

type Line struct {
	StartX float64 `json:"startX"`
	StartY float64 `json:"startY"`
	EndX   float64 `json:"endX"`
	EndY   float64 `json:"endY"`
}

type Pencil struct {
	Points []Point `json:"points" validate:"required,min=1"`
}

func (Rect) Kind() Kind   { return KindRect }
func (Circle) Kind() Kind { return KindCircle }
func (Line) Kind() Kind   { return KindLine }
func (Pencil) Kind() Kind { return KindPencil }

// Bounds returns the rectangle normalised to non-negative size.
func (r Rect) Bounds() Rect {
	x, y, w, h := r.X, r.Y, r.Width, r.Height
	if w < 0 {
		x, w = x+w, -w
	}
	if h < 0 {
		y, h = y+h, -h
	}
	return Rect{X: x, Y: y, Width: w, Height: h}
}

func (c Circle) Bounds() Rect {
	r := math.Abs(c.Radius)
	return Rect{X: c.CenterX - r, Y: c.CenterY - r, Width: 2 * r, Height: 2 * r}
}

func (l Line) Bounds() Rect {
	return Rect{X: l.StartX, Y: l.StartY, Width: l.EndX - l.StartX, Height: l.EndY - l.StartY}.Bounds()
}

func (p Pencil) Bounds() Rect {
	if len(p.Points) == 0 {
		return Rect{}
	}
	minX, minY := p.Points[0].X, p.Points[0].Y
	maxX, maxY := minX, minY
	for _, pt := range p.Points[1:] {
		minX, maxX = math.Min(minX, pt.X), math.Max(maxX, pt.X)
		minY, maxY = math.Min(minY, pt.Y), math.Max(maxY, pt.Y)
	}
	return Rect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}

// Shape is an immutable drawing primitive. Edits are new shapes.
type Shape struct {
	Geometry
	IsAI bool
	// Source identifies the authoring client session. Used for duplicate
	// suppression only.
	Source string
}

type meta struct {
	IsAI   bool   `json:"isAI,omitempty"`
	Source string `json:"source,omitempty"`
}

var validate = validator.New()

// Validate checks the variant is known, its fields satisfy their tags and
// every coordinate is finite.
func (s Shape) Validate() error {
	if s.Geometry == nil {
		return fmt.Errorf("%w: missing geometry", ErrInvalid)
	}
	if err := validate.Struct(s.Geometry); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	for _, v := range coords(s.Geometry) {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite coordinate", ErrInvalid)
		}
	}
	return nil
}

func coords(g Geometry) []float64 {
	switch v := g.(type) {
	case Rect:
		return []float64{v.X, v.Y, v.Width, v.Height}
	case Circle:
		return []float64{v.CenterX, v.CenterY, v.Radius}
	case Line:
		return []float64{v.StartX, v.StartY, v.EndX, v.EndY}
	case Pencil:
		out := make([]float64, 0, 2*len(v.Points))
		for _, p := range v.Points {
			out = append(out, p.X, p.Y)
		}
		return out
	}
	return nil
}

// MarshalJSON writes the flat wire form: {"type":"rect","x":..,"source":..}.
func (s Shape) MarshalJSON() ([]byte, error) {
	m := meta{IsAI: s.IsAI, Source: s.Source}
	switch g := s.Geometry.(type) {
	case Rect:
		return json.Marshal(struct {
			Type Kind `json:"type"`
			Rect
			meta
		}{KindRect, g, m})
	case Circle:
		return json.Marshal(struct {
			Type Kind `json:"type"`
			Circle
			meta
		}{KindCircle, g, m})
	case Line:
		return json.Marshal(struct {
			Type Kind `json:"type"`
			Line
			meta
		}{KindLine, g, m})
	case Pencil:
		return json.Marshal(struct {
			Type Kind `json:"type"`
			Pencil
			meta
		}{KindPencil, g, m})
	}
	return nil, ErrUnknownKind
}

func (s *Shape) UnmarshalJSON(data []byte) error {
	var head struct {
		Type Kind `json:"type"`
		meta
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return err
	}

	var g Geometry
	switch head.Type {
	case KindRect:
		var v Rect
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		g = v
	case KindCircle:
		var v Circle
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		g = v
	case KindLine:
		var v Line
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		g = v
	case KindPencil:
		var v Pencil
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		g = v
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKind, head.Type)
	}

	*s = Shape{Geometry: g, IsAI: head.IsAI, Source: head.Source}
	return nil
}

// Decode parses and validates a serialized shape payload.
func Decode(payload string) (Shape, error) {
	var s Shape
	if err := json.Unmarshal([]byte(payload), &s); err != nil {
		return Shape{}, err
	}
	if err := s.Validate(); err != nil {
		return Shape{}, err
	}
	return s, nil
}

// Encode serializes a shape into the payload string carried by a
// shape_update envelope.
func Encode(s Shape) (string, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ContentKey is the canonical encoding of the shape without its source
// token. Two shapes with equal keys are structurally identical.
func ContentKey(s Shape) ([]byte, error) {
	s.Source = ""
	return json.Marshal(s)
}
