package main

import (
	"boardsync/internal/auth"
	"boardsync/internal/canvas"
	"boardsync/internal/shape"
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseShape(t *testing.T) {
	s, err := parseShape("rect", []string{"1", "2", "30", "40"}, false)
	require.NoError(t, err)
	assert.Equal(t, shape.Rect{X: 1, Y: 2, Width: 30, Height: 40}, s.Geometry)

	s, err = parseShape("circle", []string{"5", "6", "7"}, true)
	require.NoError(t, err)
	assert.Equal(t, shape.Circle{CenterX: 5, CenterY: 6, Radius: 7}, s.Geometry)
	assert.True(t, s.IsAI)

	s, err = parseShape("line", []string{"0", "0", "-1", "2.5"}, false)
	require.NoError(t, err)
	assert.Equal(t, shape.Line{StartX: 0, StartY: 0, EndX: -1, EndY: 2.5}, s.Geometry)

	s, err = parseShape("pencil", []string{"0", "0", "3", "4"}, false)
	require.NoError(t, err)
	assert.Equal(t, shape.Pencil{Points: []shape.Point{{X: 0, Y: 0}, {X: 3, Y: 4}}}, s.Geometry)
}

func TestParseShapeRejects(t *testing.T) {
	cases := map[string][]string{
		"rect":    {"1", "2", "3"},
		"circle":  {"1", "2", "x"},
		"pencil":  {"1", "2", "3"},
		"hexagon": {"1"},
	}
	for kind, args := range cases {
		_, err := parseShape(kind, args, false)
		assert.Error(t, err, kind)
	}

	_, err := parseShape("line", []string{"0", "0", "NaN", "1"}, false)
	assert.ErrorIs(t, err, shape.ErrInvalid)
}

func TestExportFormatFor(t *testing.T) {
	got, err := exportFormatFor("", "board.PDF")
	require.NoError(t, err)
	assert.Equal(t, "pdf", got)

	got, err = exportFormatFor("", "-")
	require.NoError(t, err)
	assert.Equal(t, "yaml", got)

	got, err = exportFormatFor("yml", "out.pdf")
	require.NoError(t, err)
	assert.Equal(t, "yaml", got)

	_, err = exportFormatFor("svg", "-")
	assert.Error(t, err)
}

func TestExportWritesRoomHistory(t *testing.T) {
	var gotAuth, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.RequestURI()
		_ = json.NewEncoder(w).Encode(map[string]any{
			"roomId": 4,
			"shapes": []string{
				`{"type":"line","startX":0,"startY":0,"endX":5,"endY":5}`,
				`{"type":"circle","centerX":1,"centerY":1,"radius":1,"isAI":true}`,
				`not json`,
			},
		})
	}))
	defer srv.Close()

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"export", "--server", srv.URL, "--token", "tok", "--room", "4", "--limit", "20", "--no-ai"})
	require.NoError(t, rootCmd.Execute())

	assert.Equal(t, "Bearer tok", gotAuth)
	assert.Equal(t, "/rooms/4/shapes?limit=20", gotPath)
	assert.Equal(t, `- endX: 5
  endY: 5
  startX: 0
  startY: 0
  type: line
`, out.String())
}

func TestTokenCommandIssuesVerifiableToken(t *testing.T) {
	const secret = "boardctl-test-secret"
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"token", "--secret", secret, "--user", "carol"})
	require.NoError(t, rootCmd.Execute())

	user, err := auth.NewJwtVerifier(secret).Verify(strings.TrimSpace(out.String()))
	require.NoError(t, err)
	assert.Equal(t, "carol", user)
}

func TestTermRendererPrintsOnlyNewShapes(t *testing.T) {
	var out bytes.Buffer
	r := &termRenderer{out: &out}
	a := shape.Shape{Geometry: shape.Rect{X: 1, Y: 1, Width: 2, Height: 2}}
	b := shape.Shape{Geometry: shape.Line{EndX: 1, EndY: 1}}

	r.Render(canvas.Frame{})
	assert.Empty(t, out.String())

	r.Render(canvas.Frame{Shapes: []shape.Shape{a}})
	r.Render(canvas.Frame{Shapes: []shape.Shape{a}})
	r.Render(canvas.Frame{Shapes: []shape.Shape{a, b}})

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[0], "(1,1) 2x2")
	assert.Contains(t, lines[1], "1 shapes")
	assert.Contains(t, lines[2], "(0,0) -> (1,1)")
	assert.Contains(t, lines[3], "2 shapes")
}
