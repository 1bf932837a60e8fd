package main

import (
	"boardsync/internal/client"
	"boardsync/internal/export"
	"boardsync/internal/shape"
	"boardsync/internal/viewport"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	exportFormat string
	exportOut    string
	exportLimit  int
	exportFit    bool
	exportAIOnly bool
	exportNoAI   bool
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the room's recent shapes to a PDF or YAML file",
	Long: `Fetch the room's history over HTTP and write it out.

PDF pages render white strokes on black like the live board. Without --fit the
page shows canvas coordinates at scale 1 from the origin.`,
	Args: cobra.NoArgs,
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "", "pdf or yaml (default from --out extension, else yaml)")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "-", "output file, - for stdout")
	exportCmd.Flags().IntVar(&exportLimit, "limit", 500, "history entries to fetch")
	exportCmd.Flags().BoolVar(&exportFit, "fit", true, "frame every shape on the PDF page")
	exportCmd.Flags().BoolVar(&exportAIOnly, "ai-only", false, "keep only AI generated shapes")
	exportCmd.Flags().BoolVar(&exportNoAI, "no-ai", false, "drop AI generated shapes")
	exportCmd.MarkFlagsMutuallyExclusive("ai-only", "no-ai")
}

func exportFormatFor(format, out string) (string, error) {
	if format == "" {
		if strings.HasSuffix(strings.ToLower(out), ".pdf") {
			return "pdf", nil
		}
		return "yaml", nil
	}
	switch f := strings.ToLower(format); f {
	case "pdf", "yaml":
		return f, nil
	case "yml":
		return "yaml", nil
	default:
		return "", fmt.Errorf("unknown format %q", format)
	}
}

// decodeHistory drops payloads that no longer decode; the server only stores
// validated shapes, so this only matters for data written by older builds.
func decodeHistory(payloads []string, keep func(shape.Shape) bool) []shape.Shape {
	out := make([]shape.Shape, 0, len(payloads))
	for _, p := range payloads {
		s, err := shape.Decode(p)
		if err != nil {
			zap.L().Warn("export.skip", zap.Error(err))
			continue
		}
		if keep != nil && !keep(s) {
			continue
		}
		out = append(out, s)
	}
	return out
}

func runExport(cmd *cobra.Command, args []string) error {
	format, err := exportFormatFor(exportFormat, exportOut)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()
	payloads, err := client.FetchHistory(ctx, client.Config{
		ServerURL:    serverURL,
		Token:        token,
		RoomID:       roomID,
		HistoryLimit: exportLimit,
	})
	if err != nil {
		return err
	}

	var keep func(shape.Shape) bool
	switch {
	case exportAIOnly:
		keep = func(s shape.Shape) bool { return s.IsAI }
	case exportNoAI:
		keep = func(s shape.Shape) bool { return !s.IsAI }
	}
	shapes := decodeHistory(payloads, keep)

	var w io.Writer = cmd.OutOrStdout()
	if exportOut != "-" {
		f, err := os.Create(exportOut)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}

	switch format {
	case "pdf":
		err = export.PDF(w, shapes, viewport.Identity(), export.Options{Fit: exportFit})
	default:
		err = export.YAML(w, shapes)
	}
	if err != nil {
		return err
	}
	if exportOut != "-" {
		fmt.Fprintln(cmd.ErrOrStderr(), mutedStyle.Render(fmt.Sprintf("wrote %d shapes to %s", len(shapes), exportOut)))
	}
	return nil
}
