package reticle

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// labelHeight is the strip below the square reserved for the status line
const labelHeight = 20

// RasterPreview draws a labelled pixel preview of a snapshot: the segments
// in square-local coordinates and a status line underneath
type RasterPreview struct {
	Primary    color.NRGBA
	Fill       color.NRGBA
	Background color.NRGBA
	Size       int // pixels per square-local unit
}

// NewRasterPreview creates a preview renderer using the indicator's colors
func NewRasterPreview(cfg IndicatorConfig) (*RasterPreview, error) {
	cfg = cfg.WithDefaults()
	primary, err := ParseHexColor(cfg.PrimaryColor)
	if err != nil {
		return nil, fmt.Errorf("primary color: %w", err)
	}
	fill, err := ParseHexColor(cfg.FillColor)
	if err != nil {
		return nil, fmt.Errorf("fill color: %w", err)
	}
	return &RasterPreview{
		Primary:    primary,
		Fill:       fill,
		Background: color.NRGBA{R: 40, G: 40, B: 40, A: 255},
		Size:       200,
	}, nil
}

// Render draws the snapshot. The image covers square-local [-0.6, 0.6] on
// both axes plus the label strip.
func (r *RasterPreview) Render(s Snapshot) *image.RGBA {
	side := int(1.2 * float64(r.Size))
	img := image.NewRGBA(image.Rect(0, 0, side, side+labelHeight))
	draw.Draw(img, img.Bounds(), image.NewUniform(r.Background), image.Point{}, draw.Src)

	// square-local (x, y) to pixel, y flipped
	toPixel := func(x, y float64) (int, int) {
		return int((x + 0.6) * float64(r.Size)), int((0.6 - y) * float64(r.Size))
	}

	if s.Visible {
		if s.FillOpacity > 0 {
			fill := r.Fill
			fill.A = uint8(clamp01(s.FillOpacity) * 255)
			x0, y0 := toPixel(-0.5, 0.5)
			x1, y1 := toPixel(0.5, -0.5)
			draw.Draw(img, image.Rect(x0, y0, x1, y1), image.NewUniform(fill), image.Point{}, draw.Over)
		}
		for _, g := range s.Segments {
			b := g.Bound()
			x0, y0 := toPixel(b.Min[0], b.Max[1])
			x1, y1 := toPixel(b.Max[0], b.Min[1])
			draw.Draw(img, image.Rect(x0, y0, x1, y1), image.NewUniform(r.Primary), image.Point{}, draw.Over)
		}
	}

	label := s.Status.StateName
	if label == "" {
		label = "no frame"
	}
	if s.Status.PlaneAnchor != "" {
		label += " " + string(s.Status.PlaneAnchor)
	}
	if s.Status.Alignment != nil {
		label += " " + s.Status.Alignment.String()
	}
	drawLabel(img, 4, side+labelHeight-6, label, color.White)
	return img
}

// drawLabel draws text using basicfont
func drawLabel(img *image.RGBA, x, y int, text string, c color.Color) {
	face := basicfont.Face7x13
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)},
	}
	d.DrawString(text)
}
