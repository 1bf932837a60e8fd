package shape

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeFlatWireForm(t *testing.T) {
	s, err := Decode(`{"type":"rect","x":10,"y":20,"width":-5,"height":8,"isAI":true,"source":"abc"}`)
	require.NoError(t, err)

	assert.Equal(t, KindRect, s.Kind())
	assert.Equal(t, Rect{X: 10, Y: 20, Width: -5, Height: 8}, s.Geometry)
	assert.True(t, s.IsAI)
	assert.Equal(t, "abc", s.Source)
}

func TestEncodeKeepsTypeTagAndOmitsEmptyMeta(t *testing.T) {
	payload, err := Encode(Shape{Geometry: Line{StartX: 1, StartY: 2, EndX: 3, EndY: 4}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"line","startX":1,"startY":2,"endX":3,"endY":4}`, payload)

	payload, err = Encode(Shape{Geometry: Pencil{Points: []Point{{1, 1}, {2, 3}}}, Source: "s1"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"pencil","points":[{"x":1,"y":1},{"x":2,"y":3}],"source":"s1"}`, payload)
}

func TestDecodeRejectsUnknownAndInvalid(t *testing.T) {
	cases := map[string]string{
		"unknown type":  `{"type":"triangle","x":1}`,
		"missing type":  `{"x":1}`,
		"empty pencil":  `{"type":"pencil","points":[]}`,
		"no points":     `{"type":"pencil"}`,
		"not an object": `"rect"`,
		"garbage":       `{"type":`,
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(payload)
			assert.Error(t, err)
		})
	}

	_, err := Decode(`{"type":"triangle"}`)
	assert.ErrorIs(t, err, ErrUnknownKind)
	_, err = Decode(`{"type":"pencil","points":[]}`)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestContentKeyIgnoresSource(t *testing.T) {
	a := Shape{Geometry: Circle{CenterX: 5, CenterY: 5, Radius: 2}, Source: "one"}
	b := Shape{Geometry: Circle{CenterX: 5, CenterY: 5, Radius: 2}, Source: "two"}
	c := Shape{Geometry: Circle{CenterX: 5, CenterY: 5, Radius: 3}, Source: "one"}

	ka, err := ContentKey(a)
	require.NoError(t, err)
	kb, _ := ContentKey(b)
	kc, _ := ContentKey(c)

	assert.Equal(t, ka, kb)
	assert.NotEqual(t, ka, kc)
	assert.Equal(t, "one", a.Source, "ContentKey must not mutate the shape")
}

func TestBounds(t *testing.T) {
	assert.Equal(t, Rect{X: 5, Y: 0, Width: 5, Height: 10}, Rect{X: 10, Y: 10, Width: -5, Height: -10}.Bounds())
	assert.Equal(t, Rect{X: -2, Y: -2, Width: 4, Height: 4}, Circle{Radius: -2}.Bounds())
	assert.Equal(t, Rect{X: 0, Y: 1, Width: 3, Height: 4}, Pencil{Points: []Point{{0, 5}, {3, 1}, {1, 2}}}.Bounds())
	assert.Equal(t, Rect{X: 1, Y: 1, Width: 2, Height: 2}, Line{StartX: 3, StartY: 1, EndX: 1, EndY: 3}.Bounds())
}

func TestRoundTripThroughEnvelopeString(t *testing.T) {
	orig := Shape{Geometry: Rect{X: 1.5, Y: 2.5, Width: 3, Height: 4}, IsAI: true, Source: "tok"}
	payload, err := Encode(orig)
	require.NoError(t, err)

	// payloads travel as a JSON string inside the envelope
	wrapped, err := json.Marshal(map[string]string{"message": payload})
	require.NoError(t, err)
	var env map[string]string
	require.NoError(t, json.Unmarshal(wrapped, &env))

	got, err := Decode(env["message"])
	require.NoError(t, err)
	assert.Equal(t, orig, got)
}
