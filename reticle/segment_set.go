package reticle

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// segmentLayout is the fixed construction order of the eight segments
var segmentLayout = [8]struct {
	corner    Corner
	alignment SegmentAlignment
}{
	{TopLeft, SegmentHorizontal},
	{TopRight, SegmentHorizontal},
	{TopLeft, SegmentVertical},
	{TopRight, SegmentVertical},
	{BottomLeft, SegmentVertical},
	{BottomRight, SegmentVertical},
	{BottomLeft, SegmentHorizontal},
	{BottomRight, SegmentHorizontal},
}

// SegmentSet owns the eight segments of the square. Membership is fixed at
// construction; only open/closed state, positions and scale change.
type SegmentSet struct {
	segments  [8]*Segment
	scale     float64
	fromScale float64
}

// NewSegmentSet creates all eight segments in the closed state at scale 1
func NewSegmentSet(cfg IndicatorConfig) *SegmentSet {
	ss := &SegmentSet{scale: 1, fromScale: 1}
	for i, l := range segmentLayout {
		ss.segments[i] = NewSegment(l.corner, l.alignment, cfg)
	}
	return ss
}

// Segments returns the segments in construction order
func (ss *SegmentSet) Segments() []*Segment {
	out := make([]*Segment, len(ss.segments))
	copy(out, ss.segments[:])
	return out
}

// OpenAll opens every segment (searching look)
func (ss *SegmentSet) OpenAll() {
	for _, s := range ss.segments {
		s.Open()
	}
}

// CloseAll closes every segment (settled look)
func (ss *SegmentSet) CloseAll() {
	for _, s := range ss.segments {
		s.Close()
	}
}

// IsOpen reports the shared open state of the segments
func (ss *SegmentSet) IsOpen() bool {
	return ss.segments[0].IsOpen()
}

// SetScale sets the scale of the whole square relative to its open size
func (ss *SegmentSet) SetScale(factor float64) {
	ss.fromScale = ss.scale
	ss.scale = factor
}

// Scale returns the settled scale
func (ss *SegmentSet) Scale() float64 {
	return ss.scale
}

// ScaleAt returns the scale t of the way through the last scale change
func (ss *SegmentSet) ScaleAt(t float64) float64 {
	return lerp(ss.fromScale, ss.scale, clamp01(t))
}

// Geometries returns every segment's rectangle t of the way through the last
// open/close
func (ss *SegmentSet) Geometries(t float64) []SegmentGeometry {
	out := make([]SegmentGeometry, len(ss.segments))
	for i, s := range ss.segments {
		out[i] = s.Interpolated(t)
	}
	return out
}

// retarget applies change while making the interpolation start from where an
// in-flight animation currently is, so that a cancelled animation does not
// jump back to its settled start.
func (ss *SegmentSet) retarget(progress float64, change func()) {
	froms := ss.Geometries(progress)
	fromScale := ss.ScaleAt(progress)
	change()
	for i, s := range ss.segments {
		s.from = froms[i]
	}
	ss.fromScale = fromScale
}

// FeatureCollection exports the settled segment outlines as GeoJSON polygons
// in square-local units
func (ss *SegmentSet) FeatureCollection() *geojson.FeatureCollection {
	return segmentFeatures(ss.Segments(), ss.Geometries(1))
}

func segmentFeatures(segments []*Segment, geoms []SegmentGeometry) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for i, g := range geoms {
		f := geojson.NewFeature(g.Bound().ToPolygon())
		f.Properties["name"] = g.Name
		if i < len(segments) {
			s := segments[i]
			f.Properties["corner"] = s.Corner().String()
			f.Properties["alignment"] = s.Alignment().String()
			f.Properties["open"] = s.IsOpen()
		}
		fc.Append(f)
	}
	return fc
}

// outlineBound returns the union of the rectangles
func outlineBound(geoms []SegmentGeometry) orb.Bound {
	if len(geoms) == 0 {
		return orb.Bound{}
	}
	b := geoms[0].Bound()
	for _, g := range geoms[1:] {
		b = b.Union(g.Bound())
	}
	return b
}
