package main

import (
	"boardsync/internal/shape"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	accent = lipgloss.Color("#8BC34A")
	info   = lipgloss.Color("#2196F3")
	warn   = lipgloss.Color("#FFC107")
	danger = lipgloss.Color("#e53935")
	muted  = lipgloss.Color("#6b7280")

	userStyle   = lipgloss.NewStyle().Bold(true).Foreground(info)
	aiStyle     = lipgloss.NewStyle().Bold(true).Foreground(warn)
	kindStyle   = lipgloss.NewStyle().Foreground(accent)
	mutedStyle  = lipgloss.NewStyle().Foreground(muted)
	errorStyle  = lipgloss.NewStyle().Bold(true).Foreground(danger)
	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#f2f2f2")).
			Background(lipgloss.Color("#1e2a3d")).
			Padding(0, 1)
)

// describe renders one line for a shape: kind, geometry, origin marker.
func describe(s shape.Shape) string {
	var geo string
	switch g := s.Geometry.(type) {
	case shape.Rect:
		geo = fmt.Sprintf("at (%g,%g) %gx%g", g.X, g.Y, g.Width, g.Height)
	case shape.Circle:
		geo = fmt.Sprintf("center (%g,%g) r=%g", g.CenterX, g.CenterY, g.Radius)
	case shape.Line:
		geo = fmt.Sprintf("(%g,%g) -> (%g,%g)", g.StartX, g.StartY, g.EndX, g.EndY)
	case shape.Pencil:
		geo = fmt.Sprintf("%d points", len(g.Points))
	}

	parts := []string{kindStyle.Render(string(s.Kind())), geo}
	if s.IsAI {
		parts = append(parts, aiStyle.Render("ai"))
	}
	return strings.Join(parts, " ")
}

func shapeLine(userID string, s shape.Shape) string {
	return userStyle.Render(userID) + " " + describe(s)
}

func chatLine(userID, text string) string {
	return userStyle.Render(userID) + mutedStyle.Render(" says ") + text
}
