package reticle

import (
	"fmt"
	"image/color"
	"image/png"
	"io"

	"github.com/paulmach/orb"
	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/rasterizer"
	"github.com/tdewolff/canvas/renderers/svg"
)

// nrgbaToRGBA converts color.NRGBA to color.RGBA by premultiplying alpha
// This is needed for the canvas library which expects premultiplied RGBA
func nrgbaToRGBA(c color.NRGBA) color.RGBA {
	if c.A == 0 {
		return color.RGBA{0, 0, 0, 0}
	}
	if c.A == 255 {
		return color.RGBA{c.R, c.G, c.B, 255}
	}
	alpha32 := uint32(c.A)
	return color.RGBA{
		R: uint8((uint32(c.R) * alpha32) / 255),
		G: uint8((uint32(c.G) * alpha32) / 255),
		B: uint8((uint32(c.B) * alpha32) / 255),
		A: c.A,
	}
}

// VectorRenderer draws a snapshot's segments in square-local coordinates as
// SVG or PNG. Hidden snapshots render only the background.
type VectorRenderer struct {
	Primary    color.NRGBA
	Fill       color.NRGBA
	Background color.NRGBA
	UnitSize   float64           // canvas millimeters per square-local unit
	Padding    float64           // canvas millimeters around the outline
	Resolution canvas.Resolution // Resolution for PNG output
}

// NewVectorRenderer creates a renderer using the indicator's colors
func NewVectorRenderer(cfg IndicatorConfig) (*VectorRenderer, error) {
	cfg = cfg.WithDefaults()
	primary, err := ParseHexColor(cfg.PrimaryColor)
	if err != nil {
		return nil, fmt.Errorf("primary color: %w", err)
	}
	fill, err := ParseHexColor(cfg.FillColor)
	if err != nil {
		return nil, fmt.Errorf("fill color: %w", err)
	}
	return &VectorRenderer{
		Primary:    primary,
		Fill:       fill,
		Background: color.NRGBA{R: 40, G: 40, B: 40, A: 255},
		UnitSize:   100,
		Padding:    10,
		Resolution: canvas.DPI(96),
	}, nil
}

// canvasRenderer is an interface that both svg and rasterizer renderers implement
type canvasRenderer interface {
	RenderPath(path *canvas.Path, style canvas.Style, m canvas.Matrix)
}

// canvasSize returns the canvas extent and the square-local bound it covers
func (r *VectorRenderer) canvasSize(s Snapshot) (float64, float64, orb.Bound) {
	// Always cover the closed unit square so open and closed frames line up.
	b := orb.Bound{Min: orb.Point{-0.5, -0.5}, Max: orb.Point{0.5, 0.5}}
	if len(s.Segments) > 0 {
		b = b.Union(outlineBound(s.Segments))
	}
	width := (b.Max[0]-b.Min[0])*r.UnitSize + 2*r.Padding
	height := (b.Max[1]-b.Min[1])*r.UnitSize + 2*r.Padding
	return width, height, b
}

// RenderToSVG writes the snapshot as an SVG to the provided writer
func (r *VectorRenderer) RenderToSVG(w io.Writer, s Snapshot) error {
	width, height, b := r.canvasSize(s)
	svgRenderer := svg.New(w, width, height, nil)
	r.renderToCanvas(svgRenderer, s, width, height, b)
	return svgRenderer.Close()
}

// RenderToPNG writes the snapshot as a PNG to the provided writer
func (r *VectorRenderer) RenderToPNG(w io.Writer, s Snapshot) error {
	width, height, b := r.canvasSize(s)
	rast := rasterizer.New(width, height, r.Resolution, canvas.DefaultColorSpace)
	r.renderToCanvas(rast, s, width, height, b)
	return png.Encode(w, rast)
}

func (r *VectorRenderer) renderToCanvas(renderer canvasRenderer, s Snapshot, width, height float64, b orb.Bound) {
	bgStyle := canvas.DefaultStyle
	bgStyle.Fill = canvas.Paint{Color: nrgbaToRGBA(r.Background)}
	renderer.RenderPath(canvas.Rectangle(width, height), bgStyle, canvas.Identity)

	if !s.Visible {
		return
	}

	toCanvas := func(p orb.Point) (float64, float64) {
		return (p[0]-b.Min[0])*r.UnitSize + r.Padding, (p[1]-b.Min[1])*r.UnitSize + r.Padding
	}

	if s.FillOpacity > 0 {
		fill := r.Fill
		fill.A = uint8(clamp01(s.FillOpacity) * 255)
		fillStyle := canvas.DefaultStyle
		fillStyle.Fill = canvas.Paint{Color: nrgbaToRGBA(fill)}
		x, y := toCanvas(orb.Point{-0.5, -0.5})
		renderer.RenderPath(canvas.Rectangle(r.UnitSize, r.UnitSize), fillStyle, canvas.Identity.Translate(x, y))
	}

	segStyle := canvas.DefaultStyle
	segStyle.Fill = canvas.Paint{Color: nrgbaToRGBA(r.Primary)}
	segStyle.Stroke = canvas.Paint{Color: canvas.Transparent}
	for _, g := range s.Segments {
		bound := g.Bound()
		x, y := toCanvas(bound.Min)
		path := canvas.Rectangle(g.Width*r.UnitSize, g.Height*r.UnitSize)
		renderer.RenderPath(path, segStyle, canvas.Identity.Translate(x, y))
	}
}
