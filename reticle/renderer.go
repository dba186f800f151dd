package reticle

// NodeRenderer is what the indicator needs from the scene graph. It is
// called once per frame with the full output of that frame.
type NodeRenderer interface {
	SetTransform(t Transform)
	SetGeometryExtent(g SegmentGeometry)
	SetVisible(visible bool)
}

// FillRenderer is implemented by renderers that draw the square's fill,
// which only shows during the discovery flash
type FillRenderer interface {
	SetFillOpacity(opacity float64)
}

// StatusRenderer is implemented by renderers that want the indicator's
// logical state alongside its geometry
type StatusRenderer interface {
	SetStatus(s Status)
}

// FrameCommitter is implemented by renderers that batch a frame's calls;
// CommitFrame is called after the last call of each frame
type FrameCommitter interface {
	CommitFrame()
}

// Status is the logical state of the indicator after a frame
type Status struct {
	State             StateKind          `json:"-"`
	StateName         string             `json:"state"`
	PlaneAnchor       SurfaceID          `json:"planeAnchor,omitempty"`
	Alignment         *SurfaceAlignment  `json:"alignment,omitempty"`
	Open              bool               `json:"open"`
	Animating         bool               `json:"animating"`
	ChangingAlignment bool               `json:"changingAlignment"`
	Flashing          bool               `json:"flashing"`
	RecentAlignments  []SurfaceAlignment `json:"recentAlignments"`
	VisitedSurfaces   int                `json:"visitedSurfaces"`
}

// MultiRenderer fans every call out to each of its renderers, including the
// optional capabilities they implement
type MultiRenderer []NodeRenderer

func (m MultiRenderer) SetTransform(t Transform) {
	for _, r := range m {
		r.SetTransform(t)
	}
}

func (m MultiRenderer) SetGeometryExtent(g SegmentGeometry) {
	for _, r := range m {
		r.SetGeometryExtent(g)
	}
}

func (m MultiRenderer) SetVisible(visible bool) {
	for _, r := range m {
		r.SetVisible(visible)
	}
}

func (m MultiRenderer) SetFillOpacity(opacity float64) {
	for _, r := range m {
		if fr, ok := r.(FillRenderer); ok {
			fr.SetFillOpacity(opacity)
		}
	}
}

func (m MultiRenderer) SetStatus(s Status) {
	for _, r := range m {
		if sr, ok := r.(StatusRenderer); ok {
			sr.SetStatus(s)
		}
	}
}

func (m MultiRenderer) CommitFrame() {
	for _, r := range m {
		if fc, ok := r.(FrameCommitter); ok {
			fc.CommitFrame()
		}
	}
}

// NopRenderer discards everything
type NopRenderer struct{}

func (NopRenderer) SetTransform(Transform)             {}
func (NopRenderer) SetGeometryExtent(SegmentGeometry) {}
func (NopRenderer) SetVisible(bool)                    {}
