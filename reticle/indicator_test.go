package reticle

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang/geo/r3"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// eyeLevel is a camera 1.5m up looking along -Z
var eyeLevel = &CameraPose{Position: r3.Vector{Y: 1.5}, Orientation: identityRotation}

func newTestIndicator(t *testing.T, cfg IndicatorConfig) (*Indicator, *clock.Mock, *Recorder) {
	t.Helper()
	mock := clock.NewMock()
	rec := NewRecorder()
	return New(cfg, rec, WithClock(mock)), mock, rec
}

func planeHit(id SurfaceID, align SurfaceAlignment, pos r3.Vector) *Sample {
	s := &Sample{
		Position:  pos,
		Alignment: Alignment(align),
		SurfaceID: id,
		HasPlane:  true,
	}
	if align == AlignmentHorizontal {
		s.Normal = unitY
	} else {
		s.Normal = unitZ
	}
	return s
}

func lastFrame(t *testing.T, rec *Recorder) Snapshot {
	t.Helper()
	snap, ok := rec.Snapshot()
	require.True(t, ok, "no frame committed")
	return snap
}

func TestIndicator_InitialState(t *testing.T) {
	ind, _, rec := newTestIndicator(t, DefaultIndicatorConfig())

	assert.Equal(t, StateInitializing, ind.State().Kind)
	assert.True(t, ind.IsOpen())
	assert.True(t, ind.IsVisible())
	assert.False(t, ind.IsAnimating())
	_, ok := ind.PlaneAnchor()
	assert.False(t, ok)
	assert.Empty(t, ind.RecentAlignments())

	_, ok = rec.Snapshot()
	assert.False(t, ok, "nothing is pushed before the first Update")
}

func TestIndicator_DiscoveryScenario(t *testing.T) {
	ind, mock, _ := newTestIndicator(t, DefaultIndicatorConfig())
	a := planeHit("A", AlignmentHorizontal, r3.Vector{Z: -1})

	frames := []*Sample{nil, nil, a, a}
	discoveries := 0
	var results []TransitionResult
	for _, s := range frames {
		r := ind.Update(s, eyeLevel)
		if r.Discovery {
			discoveries++
		}
		results = append(results, r)
		mock.Add(16 * time.Millisecond)
	}

	assert.Equal(t, 1, discoveries)
	assert.False(t, results[0].Changed)
	assert.False(t, results[1].Changed)
	assert.True(t, results[2].Changed)
	assert.True(t, results[2].AnimationStarted)
	assert.Equal(t, StateInitializing, results[2].Previous.Kind)
	assert.Equal(t, StateDetecting, results[2].Current.Kind)
	assert.False(t, results[3].Changed, "an identical stabilized sample is a no-op")

	anchor, ok := ind.PlaneAnchor()
	require.True(t, ok)
	assert.Equal(t, SurfaceID("A"), anchor)
	assert.False(t, ind.IsOpen())
	assert.True(t, ind.IsFlashing())
}

func TestIndicator_NoOpTransitionKeepsAnimation(t *testing.T) {
	ind, mock, _ := newTestIndicator(t, DefaultIndicatorConfig())
	a := planeHit("A", AlignmentHorizontal, r3.Vector{Z: -1})

	require.True(t, ind.Update(a, eyeLevel).AnimationStarted)
	require.True(t, ind.IsAnimating())

	mock.Add(400 * time.Millisecond)
	r := ind.SetState(ind.State())
	assert.False(t, r.Changed)
	assert.False(t, r.AnimationStarted)
	assert.True(t, ind.IsAnimating())

	// the animation was not restarted by the no-op: it ends 700ms after it began
	mock.Add(350 * time.Millisecond)
	ind.Update(a, eyeLevel)
	assert.False(t, ind.IsAnimating())
}

func TestIndicator_AnimationEndsAfterDuration(t *testing.T) {
	ind, mock, rec := newTestIndicator(t, DefaultIndicatorConfig())
	a := planeHit("A", AlignmentHorizontal, r3.Vector{Z: -1})

	ind.Update(a, eyeLevel)
	mock.Add(DefaultAnimationDuration - time.Millisecond)
	ind.Update(a, eyeLevel)
	assert.True(t, ind.IsAnimating())

	mock.Add(time.Millisecond)
	ind.Update(a, eyeLevel)
	assert.False(t, ind.IsAnimating())

	closed := NewSegmentSet(DefaultIndicatorConfig())
	if diff := cmp.Diff(closed.Geometries(1), lastFrame(t, rec).Segments, approx); diff != "" {
		t.Errorf("settled frame should show the closed square:\n%s", diff)
	}
}

func TestIndicator_MidAnimationCancel(t *testing.T) {
	ind, mock, rec := newTestIndicator(t, DefaultIndicatorConfig())
	a := planeHit("A", AlignmentHorizontal, r3.Vector{Z: -1})

	ind.Update(a, eyeLevel)
	mock.Add(DefaultAnimationDuration / 2)
	ind.Update(a, eyeLevel)
	midway := lastFrame(t, rec)

	// losing the hit halfway through closing reopens from where it was
	r := ind.Update(nil, eyeLevel)
	require.True(t, r.Changed)
	assert.True(t, r.Cancelled)
	assert.True(t, r.AnimationStarted)
	assert.True(t, ind.IsOpen())
	_, ok := ind.PlaneAnchor()
	assert.False(t, ok)

	restarted := lastFrame(t, rec)
	if diff := cmp.Diff(midway.Segments, restarted.Segments, approx); diff != "" {
		t.Errorf("cancelled animation jumped (-before +after):\n%s", diff)
	}

	// and ends at the open layout after a full duration
	mock.Add(DefaultAnimationDuration)
	ind.Update(nil, eyeLevel)
	assert.False(t, ind.IsAnimating())
	open := NewSegmentSet(DefaultIndicatorConfig())
	open.OpenAll()
	if diff := cmp.Diff(open.Geometries(1), lastFrame(t, rec).Segments, approx); diff != "" {
		t.Errorf("final frame should show the open square:\n%s", diff)
	}
}

func TestIndicator_SurfaceWithoutPlaneStaysOpen(t *testing.T) {
	ind, _, _ := newTestIndicator(t, DefaultIndicatorConfig())
	s := &Sample{Position: r3.Vector{Z: -1}, Alignment: Alignment(AlignmentHorizontal)}

	r := ind.Update(s, eyeLevel)
	assert.True(t, r.Changed)
	assert.False(t, r.AnimationStarted, "already open")
	assert.True(t, ind.IsOpen())
	assert.Equal(t, StateDetecting, ind.State().Kind)
}

func TestIndicator_PlaneLostReopens(t *testing.T) {
	ind, mock, _ := newTestIndicator(t, DefaultIndicatorConfig())
	pos := r3.Vector{Z: -1}

	ind.Update(planeHit("A", AlignmentHorizontal, pos), eyeLevel)
	mock.Add(time.Second)
	require.False(t, ind.IsOpen())

	r := ind.Update(&Sample{Position: pos, Alignment: Alignment(AlignmentHorizontal)}, eyeLevel)
	assert.True(t, r.Changed)
	assert.True(t, r.AnimationStarted)
	assert.False(t, r.Cancelled)
	assert.True(t, ind.IsOpen())
	_, ok := ind.PlaneAnchor()
	assert.False(t, ok)
}

func TestIndicator_AnchorMemory(t *testing.T) {
	ind, mock, _ := newTestIndicator(t, DefaultIndicatorConfig())
	pos := r3.Vector{Z: -1}

	visit := func(id SurfaceID) TransitionResult {
		r := ind.SetState(Detecting(*planeHit(id, AlignmentHorizontal, pos)))
		mock.Add(time.Second)
		return r
	}

	assert.True(t, visit("A").Discovery)
	assert.True(t, visit("B").Discovery)
	assert.False(t, visit("A").Discovery, "A was already visited")

	anchor, _ := ind.PlaneAnchor()
	assert.Equal(t, SurfaceID("A"), anchor)
	assert.Equal(t, 2, ind.Status().VisitedSurfaces)
}

func TestIndicator_DiscoveryFlash(t *testing.T) {
	ind, mock, rec := newTestIndicator(t, DefaultIndicatorConfig())
	a := planeHit("A", AlignmentHorizontal, r3.Vector{Z: -1})

	ind.Update(a, eyeLevel)
	assert.InDelta(t, 0, lastFrame(t, rec).FillOpacity, 1e-9)

	mock.Add(DefaultAnimationDuration / 2)
	ind.Update(a, eyeLevel)
	assert.InDelta(t, DefaultFlashOpacity, lastFrame(t, rec).FillOpacity, 1e-9)

	mock.Add(DefaultAnimationDuration / 2)
	ind.Update(a, eyeLevel)
	assert.False(t, ind.IsFlashing())
	assert.Equal(t, 0.0, lastFrame(t, rec).FillOpacity)
}

func TestIndicator_AlignmentChangeAnimates(t *testing.T) {
	ind, mock, rec := newTestIndicator(t, DefaultIndicatorConfig())
	pos := r3.Vector{Z: -1}

	ind.Update(planeHit("A", AlignmentHorizontal, pos), eyeLevel)
	assert.True(t, ind.IsChangingAlignment(), "leaving the billboard animates into the surface")
	mock.Add(DefaultAnimationDuration)
	ind.Update(planeHit("A", AlignmentHorizontal, pos), eyeLevel)
	require.False(t, ind.IsChangingAlignment())
	flat := ind.Transform().Rotation
	assert.True(t, sameRotation(flat, identityRotation, 1e-9))

	// one vertical vote of four is not enough
	ind.Update(planeHit("A", AlignmentVertical, pos), eyeLevel)
	assert.False(t, ind.IsChangingAlignment())

	// ... a second ties 2:2 and keeps horizontal, a third flips it
	ind.Update(planeHit("A", AlignmentVertical, pos), eyeLevel)
	assert.False(t, ind.IsChangingAlignment())
	ind.Update(planeHit("A", AlignmentVertical, pos), eyeLevel)
	require.True(t, ind.IsChangingAlignment())

	// the rotation starts from the flat orientation
	assert.True(t, sameRotation(flat, lastFrame(t, rec).Transform.Rotation, 1e-9))

	mock.Add(DefaultAnimationDuration / 4)
	ind.Update(planeHit("A", AlignmentVertical, pos), eyeLevel)
	assert.True(t, ind.IsChangingAlignment())
	mid := ind.Transform().Rotation
	assert.False(t, sameRotation(flat, mid, 1e-6))

	mock.Add(DefaultAnimationDuration / 4)
	ind.Update(planeHit("A", AlignmentVertical, pos), eyeLevel)
	assert.False(t, ind.IsChangingAlignment())

	// standing against a wall facing +Z, the square's normal is the wall's
	n := rotateVector(ind.Transform().Rotation, unitY)
	assert.InDelta(t, 0, n.X, 1e-9)
	assert.InDelta(t, 0, n.Y, 1e-9)
	assert.InDelta(t, 1, n.Z, 1e-9)
}

func TestIndicator_Billboard(t *testing.T) {
	ind, _, rec := newTestIndicator(t, DefaultIndicatorConfig())
	ind.Update(nil, eyeLevel)

	tr := lastFrame(t, rec).Transform
	assert.InDelta(t, 0, tr.Position.X, 1e-9)
	assert.InDelta(t, 1.5, tr.Position.Y, 1e-9)
	assert.InDelta(t, -DefaultBillboardDistance, tr.Position.Z, 1e-9)

	// the square faces the camera
	n := rotateVector(tr.Rotation, unitY)
	assert.InDelta(t, 1, n.Z, 1e-9)
}

func TestIndicator_BillboardFollowsCamera(t *testing.T) {
	ind, _, _ := newTestIndicator(t, DefaultIndicatorConfig())
	turned := &CameraPose{Position: r3.Vector{X: 2}, Orientation: axisAngle(unitY, math.Pi/2)}
	ind.Update(nil, turned)

	// yawed 90° left the camera looks along -X
	p := ind.Transform().Position
	assert.InDelta(t, 2-DefaultBillboardDistance, p.X, 1e-9)
	assert.InDelta(t, 0, p.Z, 1e-9)
}

func TestIndicator_DistanceScale(t *testing.T) {
	tests := []struct {
		name     string
		scale    bool
		distance float64
		factor   float64
	}{
		{"near", true, 0.35, 0.5},
		{"threshold", true, 0.7, 1.0},
		{"far", true, 2, 1.325},
		{"disabled", false, 2, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultIndicatorConfig()
			cfg.ScaleWithDistance = &tt.scale
			ind, mock, _ := newTestIndicator(t, cfg)

			camera := &CameraPose{Orientation: identityRotation}
			hit := planeHit("A", AlignmentHorizontal, r3.Vector{Z: -tt.distance})
			ind.Update(hit, camera)
			mock.Add(time.Second)
			ind.Update(hit, camera)

			want := DefaultSize * DefaultClosedScale * tt.factor
			assert.InDelta(t, want, ind.Transform().Scale, 1e-9)
		})
	}
}

func TestIndicator_HideUnhide(t *testing.T) {
	ind, _, rec := newTestIndicator(t, DefaultIndicatorConfig())
	ind.Hide()
	ind.Update(planeHit("A", AlignmentHorizontal, r3.Vector{Z: -1}), eyeLevel)
	assert.False(t, lastFrame(t, rec).Visible)

	ind.Unhide()
	ind.Update(planeHit("A", AlignmentHorizontal, r3.Vector{Z: -1}), eyeLevel)
	assert.True(t, lastFrame(t, rec).Visible)

	// returning to the billboard always shows the indicator
	ind.Hide()
	ind.Update(nil, eyeLevel)
	assert.True(t, ind.IsVisible())
}

func TestIndicator_WithoutCamera(t *testing.T) {
	ind, _, rec := newTestIndicator(t, DefaultIndicatorConfig())
	ind.Update(planeHit("A", AlignmentHorizontal, r3.Vector{X: 1, Z: -1}), nil)

	snap := lastFrame(t, rec)
	assert.InDelta(t, 1, snap.Transform.Position.X, 1e-9)
	// first frame of the close animation, no distance scaling without a camera
	assert.InDelta(t, DefaultSize, snap.Transform.Scale, 1e-9)
	assert.Len(t, snap.Segments, 8)
}

func TestIndicator_StatusPushed(t *testing.T) {
	ind, _, rec := newTestIndicator(t, DefaultIndicatorConfig())
	ind.Update(planeHit("A", AlignmentVertical, r3.Vector{Z: -1}), eyeLevel)

	status := lastFrame(t, rec).Status
	assert.Equal(t, "detecting", status.StateName)
	assert.Equal(t, SurfaceID("A"), status.PlaneAnchor)
	require.NotNil(t, status.Alignment)
	assert.Equal(t, AlignmentVertical, *status.Alignment)
	assert.Equal(t, []SurfaceAlignment{AlignmentVertical}, status.RecentAlignments)
	assert.True(t, status.Animating)
	assert.True(t, status.Flashing)
	assert.False(t, status.Open)
}

func TestIndicator_NilRenderer(t *testing.T) {
	ind := New(DefaultIndicatorConfig(), nil, WithClock(clock.NewMock()))
	assert.NotPanics(t, func() {
		ind.Update(planeHit("A", AlignmentHorizontal, r3.Vector{Z: -1}), eyeLevel)
		ind.Update(nil, nil)
	})
}

func TestState_Equal(t *testing.T) {
	a := *planeHit("A", AlignmentHorizontal, r3.Vector{X: 1})

	assert.True(t, Initializing().Equal(Initializing()))
	assert.False(t, Initializing().Equal(Detecting(a)))
	assert.True(t, Detecting(a).Equal(Detecting(a)))

	near := a
	near.Position = a.Position.Add(r3.Vector{X: 1e-8})
	assert.True(t, Detecting(a).Equal(Detecting(near)))

	far := a
	far.Position = a.Position.Add(r3.Vector{X: 1e-3})
	assert.False(t, Detecting(a).Equal(Detecting(far)))

	other := a
	other.SurfaceID = "B"
	assert.False(t, Detecting(a).Equal(Detecting(other)))

	noAlign := a
	noAlign.Alignment = nil
	assert.False(t, Detecting(a).Equal(Detecting(noAlign)))

	flipped := a
	flipped.Alignment = Alignment(AlignmentVertical)
	assert.False(t, Detecting(a).Equal(Detecting(flipped)))
}

func TestIndicator_JitterIsNotAVisualChange(t *testing.T) {
	ind, mock, _ := newTestIndicator(t, DefaultIndicatorConfig())
	rng := rand.New(rand.NewSource(1))

	var started, discoveries, visual, changed int
	for i := 0; i < 100; i++ {
		pos := r3.Vector{
			X: 0.002 * rng.NormFloat64(),
			Y: 0.002 * rng.NormFloat64(),
			Z: -1 + 0.002*rng.NormFloat64(),
		}
		r := ind.Update(planeHit("A", AlignmentHorizontal, pos), eyeLevel)
		if r.AnimationStarted {
			started++
		}
		if r.Discovery {
			discoveries++
		}
		if r.VisualChange() {
			visual++
		}
		if r.Changed {
			changed++
		}
		mock.Add(16 * time.Millisecond)
	}

	assert.Equal(t, 1, started, "the close animation runs once")
	assert.Equal(t, 1, discoveries)
	assert.Equal(t, 1, visual, "only the settle onto plane A is a visual change")
	assert.Greater(t, changed, 50, "the stabilized position keeps moving under jitter")
	assert.False(t, ind.IsOpen())
}

func TestTransitionResult_VisualChange(t *testing.T) {
	a := Detecting(Sample{SurfaceID: "A", HasPlane: true})
	tests := []struct {
		name string
		r    TransitionResult
		want bool
	}{
		{"no-op", TransitionResult{Previous: a, Current: a}, false},
		{"position only", TransitionResult{Changed: true, Previous: a, Current: a}, false},
		{"kind", TransitionResult{Changed: true, Previous: Initializing(), Current: a}, true},
		{"animation", TransitionResult{Changed: true, Previous: a, Current: a, AnimationStarted: true}, true},
		{"discovery", TransitionResult{Changed: true, Previous: a, Current: a, Discovery: true}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.r.VisualChange())
		})
	}
}

func TestIndicator_FollowsLatestNormal(t *testing.T) {
	ind, mock, _ := newTestIndicator(t, DefaultIndicatorConfig())
	wall := planeHit("W", AlignmentVertical, r3.Vector{Z: -1})

	ind.Update(wall, eyeLevel)
	mock.Add(time.Second)
	ind.Update(wall, eyeLevel)
	assertVec(t, unitZ, rotateVector(ind.Transform().Rotation, unitY))

	// same position, surface and alignment: an equal state with a new normal
	turned := *wall
	turned.Normal = unitX
	r := ind.Update(&turned, eyeLevel)
	assert.False(t, r.Changed)
	assertVec(t, unitX, rotateVector(ind.Transform().Rotation, unitY))
}

func TestNew_InvalidConfigPanics(t *testing.T) {
	cfg := DefaultIndicatorConfig()
	cfg.OpenSegmentLength = cfg.SegmentLength
	assert.Panics(t, func() { New(cfg, nil) })

	assert.NotPanics(t, func() { New(IndicatorConfig{}, nil) }, "zero fields take their defaults")
}
