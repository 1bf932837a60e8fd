package export

import (
	"boardsync/internal/shape"
	"boardsync/internal/viewport"
	"io"
	"math"

	"github.com/jung-kurt/gofpdf"
)

type Options struct {
	// Page size in points. Zero means A4 landscape.
	PageWidth  float64
	PageHeight float64
	LineWidth  float64
	// Fit ignores the given view and frames every shape on the page.
	Fit    bool
	Margin float64
}

func (o *Options) defaults() {
	if o.PageWidth <= 0 || o.PageHeight <= 0 {
		o.PageWidth, o.PageHeight = 842, 595
	}
	if o.LineWidth <= 0 {
		o.LineWidth = 2
	}
	if o.Margin <= 0 {
		o.Margin = 24
	}
}

// PDF draws shapes on a single page, mapping canvas space to the page with
// the view's paint matrix. White strokes on black, like the live canvas.
func PDF(w io.Writer, shapes []shape.Shape, view viewport.Transform, opts Options) error {
	opts.defaults()
	if opts.Fit {
		view = FitTransform(shapes, opts.PageWidth, opts.PageHeight, opts.Margin)
	}
	m := view.Matrix()

	p := gofpdf.NewCustom(&gofpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		Size:           gofpdf.SizeType{Wd: opts.PageWidth, Ht: opts.PageHeight},
	})
	p.SetCompression(false)
	p.AddPage()
	p.SetFillColor(0, 0, 0)
	p.Rect(0, 0, opts.PageWidth, opts.PageHeight, "F")
	p.SetDrawColor(255, 255, 255)
	p.SetFillColor(255, 255, 255)
	p.SetLineWidth(opts.LineWidth)
	p.SetLineCapStyle("round")

	for _, s := range shapes {
		drawShape(p, m, s)
	}
	if err := p.Error(); err != nil {
		return err
	}
	return p.Output(w)
}

func apply(m [6]float64, x, y float64) (float64, float64) {
	return m[0]*x + m[2]*y + m[4], m[1]*x + m[3]*y + m[5]
}

func drawShape(p *gofpdf.Fpdf, m [6]float64, s shape.Shape) {
	switch g := s.Geometry.(type) {
	case shape.Rect:
		b := g.Bounds()
		x, y := apply(m, b.X, b.Y)
		p.Rect(x, y, b.Width*m[0], b.Height*m[3], "D")
	case shape.Circle:
		x, y := apply(m, g.CenterX, g.CenterY)
		p.Circle(x, y, math.Abs(g.Radius)*m[0], "D")
	case shape.Line:
		x1, y1 := apply(m, g.StartX, g.StartY)
		x2, y2 := apply(m, g.EndX, g.EndY)
		p.Line(x1, y1, x2, y2)
	case shape.Pencil:
		if len(g.Points) == 0 {
			return
		}
		x, y := apply(m, g.Points[0].X, g.Points[0].Y)
		if len(g.Points) == 1 {
			p.Circle(x, y, p.GetLineWidth()/2, "F")
			return
		}
		p.MoveTo(x, y)
		for _, pt := range g.Points[1:] {
			p.LineTo(apply(m, pt.X, pt.Y))
		}
		p.DrawPath("D")
	}
}

// FitTransform returns the view that centres every shape inside a
// width x height page with the given margin.
func FitTransform(shapes []shape.Shape, width, height, margin float64) viewport.Transform {
	if len(shapes) == 0 {
		return viewport.Identity()
	}
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, s := range shapes {
		b := s.Bounds()
		minX, minY = math.Min(minX, b.X), math.Min(minY, b.Y)
		maxX, maxY = math.Max(maxX, b.X+b.Width), math.Max(maxY, b.Y+b.Height)
	}

	availW, availH := width-2*margin, height-2*margin
	scale := 1.0
	if bw, bh := maxX-minX, maxY-minY; bw > 0 || bh > 0 {
		scale = math.Inf(1)
		if bw > 0 {
			scale = availW / bw
		}
		if bh > 0 {
			scale = math.Min(scale, availH/bh)
		}
	}
	scale = viewport.Clamp(scale)

	cx, cy := (minX+maxX)/2, (minY+maxY)/2
	return viewport.Transform{
		OffsetX: width/2 - cx*scale,
		OffsetY: height/2 - cy*scale,
		Scale:   scale,
	}
}
