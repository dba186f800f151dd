package reticle

import (
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"gonum.org/v1/gonum/num/quat"
)

// TransitionResult describes what a state change did
type TransitionResult struct {
	Changed          bool  // false when the target equaled the current state
	Previous         State // state before the call
	Current          State // state after the call
	AnimationStarted bool  // an open/close animation was (re)started
	Cancelled        bool  // an in-flight open/close animation was superseded
	Discovery        bool  // the discovery flash was triggered
}

// VisualChange reports whether the transition changed what the indicator
// looks like. Detecting-to-Detecting transitions that only move the
// stabilized position are not visual changes.
func (r TransitionResult) VisualChange() bool {
	return r.Previous.Kind != r.Current.Kind || r.AnimationStarted || r.Discovery
}

// Option configures an Indicator
type Option func(*Indicator)

// WithClock sets the clock animations are timed against
func WithClock(c clock.Clock) Option {
	return func(i *Indicator) {
		i.clock = c
	}
}

// Indicator is the focus reticle state machine. It consumes one sample (or
// none) per frame, decides the visual state, drives the segments, and pushes
// the resulting transform and geometry to its renderer.
//
// An Indicator is not safe for concurrent use; it is meant to be driven from
// a single update loop.
type Indicator struct {
	cfg      IndicatorConfig
	clock    clock.Clock
	renderer NodeRenderer

	smoother *PoseSmoother
	anchors  *AnchorVisitTracker
	segments *SegmentSet

	state            State
	planeAnchor      SurfaceID
	currentAlignment *SurfaceAlignment
	visible          bool
	camera           *CameraPose

	openClose  animation
	alignment  animation
	flash      animation
	alignStart quat.Number

	transform Transform
}

// New creates an indicator in the Initializing state, displayed as an open
// billboard. A nil renderer discards output. Zero fields of cfg take their
// defaults; New panics if the completed config fails Validate.
func New(cfg IndicatorConfig, renderer NodeRenderer, opts ...Option) *Indicator {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("reticle: invalid indicator config: %v", err))
	}
	if renderer == nil {
		renderer = NopRenderer{}
	}
	i := &Indicator{
		cfg:       cfg,
		clock:     clock.New(),
		renderer:  renderer,
		smoother:  NewPoseSmoother(cfg.PositionWindow, cfg.AlignmentWindow),
		anchors:   NewAnchorVisitTracker(),
		segments:  NewSegmentSet(cfg),
		state:     Initializing(),
		visible:   true,
		transform: IdentityTransform(),
	}
	for _, opt := range opts {
		opt(i)
	}

	// Start open without animating: there is nothing on screen to animate from.
	i.segments.OpenAll()
	i.updateTransform(i.clock.Now())
	return i
}

// Update runs one frame. sample is nil when tracking has no hit this frame;
// camera is nil when no camera pose is available.
func (i *Indicator) Update(sample *Sample, camera *CameraPose) TransitionResult {
	now := i.clock.Now()
	i.advance(now)

	if camera != nil {
		c := *camera
		i.camera = &c
	}

	target := Initializing()
	if sample != nil {
		i.smoother.AddSample(sample.Position, sample.Alignment)
		stabilized := *sample
		stabilized.Position = i.smoother.StabilizedPosition()
		stabilized.Alignment = nil
		if i.smoother.HasAlignment() {
			stabilized.Alignment = Alignment(i.smoother.StabilizedAlignment())
		}
		target = Detecting(stabilized)
	}

	result := i.SetState(target)
	if !result.Changed && target.Kind == StateDetecting {
		// Equal ignores the normal; keep following the latest one.
		i.state.Sample.Normal = target.Sample.Normal
	}
	i.updateTransform(now)
	i.push(now)
	return result
}

// SetState moves the indicator to target. Equal states are a no-op;
// otherwise the side effects of target are applied synchronously.
func (i *Indicator) SetState(target State) TransitionResult {
	result := TransitionResult{Previous: i.state, Current: i.state}
	if i.state.Equal(target) {
		return result
	}

	now := i.clock.Now()
	if i.state.Kind == StateInitializing && target.Kind == StateDetecting {
		// Coming off the billboard always animates into the surface orientation.
		i.currentAlignment = nil
	}
	i.state = target
	result.Changed = true
	result.Current = target

	switch {
	case target.Kind == StateInitializing:
		i.displayAsBillboard(now, &result)
	case target.Sample.OnPlane():
		i.displayAsClosed(now, target.Sample.SurfaceID, &result)
	default:
		i.displayAsOpen(now, &result)
	}
	return result
}

func (i *Indicator) displayAsBillboard(now time.Time, result *TransitionResult) {
	i.planeAnchor = ""
	i.visible = true
	i.alignment.stop()
	i.setOpen(now, true, result)
}

func (i *Indicator) displayAsOpen(now time.Time, result *TransitionResult) {
	i.planeAnchor = ""
	i.setOpen(now, true, result)
}

func (i *Indicator) displayAsClosed(now time.Time, id SurfaceID, result *TransitionResult) {
	i.setOpen(now, false, result)
	i.planeAnchor = id
	if !i.anchors.IsKnown(id) {
		i.flash.begin(now, i.cfg.AnimationDuration)
		i.anchors.MarkVisited(id)
		result.Discovery = true
	}
}

// setOpen starts the open or close animation. A request matching the current
// (or in-flight) target does nothing; an opposite request cancels the
// in-flight animation and continues from where it was.
func (i *Indicator) setOpen(now time.Time, open bool, result *TransitionResult) {
	if i.segments.IsOpen() == open {
		return
	}
	result.Cancelled = i.openClose.active
	progress := easeOut(i.openClose.progress(now))
	i.segments.retarget(progress, func() {
		if open {
			i.segments.OpenAll()
			i.segments.SetScale(1)
		} else {
			i.segments.CloseAll()
			i.segments.SetScale(i.cfg.ClosedScale)
		}
	})
	i.openClose.begin(now, i.cfg.AnimationDuration)
	result.AnimationStarted = true
}

func (i *Indicator) advance(now time.Time) {
	i.openClose.advance(now)
	i.alignment.advance(now)
	i.flash.advance(now)
}

// cameraOrIdentity returns the last camera pose, or the origin looking down -Z
func (i *Indicator) cameraOrIdentity() CameraPose {
	if i.camera != nil {
		return *i.camera
	}
	return CameraPose{Orientation: identityRotation}
}

func (i *Indicator) updateTransform(now time.Time) {
	cam := i.cameraOrIdentity()

	if i.state.Kind == StateInitializing {
		i.transform.Position = billboardPosition(cam, i.cfg.BillboardDistance)
		i.transform.Rotation = billboardRotation(cam)
	} else {
		sample := i.state.Sample
		i.transform.Position = sample.Position

		alignment := AlignmentHorizontal
		switch {
		case sample.Alignment != nil:
			alignment = *sample.Alignment
		case i.currentAlignment != nil:
			alignment = *i.currentAlignment
		}
		if i.currentAlignment == nil || *i.currentAlignment != alignment {
			i.alignStart = i.transform.Rotation
			i.alignment.begin(now, i.cfg.AnimationDuration/2)
			i.currentAlignment = Alignment(alignment)
		}

		target := surfaceRotation(alignment, sample.Normal, i.camera)
		if i.alignment.active {
			i.transform.Rotation = slerp(i.alignStart, target, easeOut(i.alignment.progress(now)))
		} else {
			i.transform.Rotation = target
		}
	}

	scale := i.cfg.Size * i.segments.ScaleAt(easeOut(i.openClose.progress(now)))
	if i.cfg.ScalesWithDistance() && i.camera != nil {
		scale *= distanceScale(i.transform.Position.Distance(i.camera.Position))
	}
	i.transform.Scale = scale
}

func (i *Indicator) push(now time.Time) {
	i.renderer.SetVisible(i.visible)
	i.renderer.SetTransform(i.transform)
	for _, g := range i.segments.Geometries(easeOut(i.openClose.progress(now))) {
		i.renderer.SetGeometryExtent(g)
	}
	if fr, ok := i.renderer.(FillRenderer); ok {
		fr.SetFillOpacity(i.fillOpacity(now))
	}
	if sr, ok := i.renderer.(StatusRenderer); ok {
		sr.SetStatus(i.Status())
	}
	if fc, ok := i.renderer.(FrameCommitter); ok {
		fc.CommitFrame()
	}
}

func (i *Indicator) fillOpacity(now time.Time) float64 {
	if !i.flash.active {
		return 0
	}
	return i.cfg.FlashOpacity * pulse(i.flash.progress(now))
}

// Hide stops the indicator from being drawn from the next frame on
func (i *Indicator) Hide() {
	i.visible = false
}

// Unhide makes the indicator visible again from the next frame on
func (i *Indicator) Unhide() {
	i.visible = true
}

// State returns the current state
func (i *Indicator) State() State {
	return i.state
}

// PlaneAnchor returns the surface the indicator is settled on, if any
func (i *Indicator) PlaneAnchor() (SurfaceID, bool) {
	return i.planeAnchor, i.planeAnchor != ""
}

// RecentAlignments returns the alignment history, oldest first
func (i *Indicator) RecentAlignments() []SurfaceAlignment {
	return i.smoother.RecentAlignments()
}

// IsAnimating reports whether an open/close animation is in flight
func (i *Indicator) IsAnimating() bool {
	return i.openClose.active
}

// IsChangingAlignment reports whether an alignment animation is in flight
func (i *Indicator) IsChangingAlignment() bool {
	return i.alignment.active
}

// IsFlashing reports whether the discovery flash is in flight
func (i *Indicator) IsFlashing() bool {
	return i.flash.active
}

// IsOpen reports whether the segments are open
func (i *Indicator) IsOpen() bool {
	return i.segments.IsOpen()
}

// IsVisible reports whether the indicator is drawn
func (i *Indicator) IsVisible() bool {
	return i.visible
}

// Transform returns the transform pushed on the last frame
func (i *Indicator) Transform() Transform {
	return i.transform
}

// Segments exposes the segment set for inspection
func (i *Indicator) Segments() *SegmentSet {
	return i.segments
}

// Config returns the effective configuration
func (i *Indicator) Config() IndicatorConfig {
	return i.cfg
}

// Status returns the logical state of the indicator
func (i *Indicator) Status() Status {
	s := Status{
		State:             i.state.Kind,
		StateName:         i.state.Kind.String(),
		PlaneAnchor:       i.planeAnchor,
		Open:              i.segments.IsOpen(),
		Animating:         i.openClose.active,
		ChangingAlignment: i.alignment.active,
		Flashing:          i.flash.active,
		RecentAlignments:  i.smoother.RecentAlignments(),
		VisitedSurfaces:   i.anchors.Count(),
	}
	if i.state.Kind == StateDetecting && i.currentAlignment != nil {
		s.Alignment = Alignment(*i.currentAlignment)
	}
	return s
}
