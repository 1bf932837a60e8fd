package main

import (
	"boardsync/internal/shape"
	"fmt"
	"strconv"
)

// parseShape builds a shape from a kind and its numeric arguments:
//
//	rect   x y width height
//	circle cx cy radius
//	line   x1 y1 x2 y2
//	pencil x1 y1 [x2 y2 ...]
func parseShape(kind string, args []string, isAI bool) (shape.Shape, error) {
	nums := make([]float64, len(args))
	for i, a := range args {
		v, err := strconv.ParseFloat(a, 64)
		if err != nil {
			return shape.Shape{}, fmt.Errorf("argument %d: %w", i+1, err)
		}
		nums[i] = v
	}

	want := func(n int) error {
		if len(nums) != n {
			return fmt.Errorf("%s takes %d numbers, got %d", kind, n, len(nums))
		}
		return nil
	}

	var g shape.Geometry
	switch shape.Kind(kind) {
	case shape.KindRect:
		if err := want(4); err != nil {
			return shape.Shape{}, err
		}
		g = shape.Rect{X: nums[0], Y: nums[1], Width: nums[2], Height: nums[3]}
	case shape.KindCircle:
		if err := want(3); err != nil {
			return shape.Shape{}, err
		}
		g = shape.Circle{CenterX: nums[0], CenterY: nums[1], Radius: nums[2]}
	case shape.KindLine:
		if err := want(4); err != nil {
			return shape.Shape{}, err
		}
		g = shape.Line{StartX: nums[0], StartY: nums[1], EndX: nums[2], EndY: nums[3]}
	case shape.KindPencil:
		if len(nums) < 2 || len(nums)%2 != 0 {
			return shape.Shape{}, fmt.Errorf("pencil takes coordinate pairs, got %d numbers", len(nums))
		}
		pts := make([]shape.Point, 0, len(nums)/2)
		for i := 0; i < len(nums); i += 2 {
			pts = append(pts, shape.Point{X: nums[i], Y: nums[i+1]})
		}
		g = shape.Pencil{Points: pts}
	default:
		return shape.Shape{}, fmt.Errorf("%w: %q", shape.ErrUnknownKind, kind)
	}

	s := shape.Shape{Geometry: g, IsAI: isAI}
	if err := s.Validate(); err != nil {
		return shape.Shape{}, err
	}
	return s, nil
}
