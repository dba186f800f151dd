package reticle

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/paulmach/orb/geojson"
)

// Snapshot is one complete frame of indicator output
type Snapshot struct {
	Frame       uint64            `json:"frame"`
	UpdatedAt   time.Time         `json:"updatedAt"`
	Status      Status            `json:"status"`
	Transform   Transform         `json:"transform"`
	Visible     bool              `json:"visible"`
	FillOpacity float64           `json:"fillOpacity"`
	Segments    []SegmentGeometry `json:"segments"`
}

// Recorder is a NodeRenderer that keeps the last committed frame for readers
// on other goroutines (HTTP handlers). Calls made during a frame are staged
// and only become visible on CommitFrame, so readers never see half a frame.
type Recorder struct {
	mu        sync.RWMutex
	pending   Snapshot
	committed *Snapshot
	frames    uint64
	now       func() time.Time
}

// NewRecorder creates an empty recorder
func NewRecorder() *Recorder {
	return &Recorder{now: time.Now}
}

func (r *Recorder) SetTransform(t Transform) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending.Transform = t
}

func (r *Recorder) SetGeometryExtent(g SegmentGeometry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.pending.Segments {
		if r.pending.Segments[i].Name == g.Name {
			r.pending.Segments[i] = g
			return
		}
	}
	r.pending.Segments = append(r.pending.Segments, g)
}

func (r *Recorder) SetVisible(visible bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending.Visible = visible
}

func (r *Recorder) SetFillOpacity(opacity float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending.FillOpacity = opacity
}

func (r *Recorder) SetStatus(s Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending.Status = s
}

// CommitFrame publishes the staged frame to readers
func (r *Recorder) CommitFrame() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames++
	snap := r.pending
	snap.Frame = r.frames
	snap.UpdatedAt = r.now()
	snap.Segments = append([]SegmentGeometry(nil), r.pending.Segments...)
	snap.Status.RecentAlignments = append([]SurfaceAlignment(nil), r.pending.Status.RecentAlignments...)
	r.committed = &snap
}

// Snapshot returns a copy of the last committed frame
func (r *Recorder) Snapshot() (Snapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.committed == nil {
		return Snapshot{}, false
	}
	snap := *r.committed
	snap.Segments = append([]SegmentGeometry(nil), r.committed.Segments...)
	snap.Status.RecentAlignments = append([]SurfaceAlignment(nil), r.committed.Status.RecentAlignments...)
	return snap, true
}

// Frames returns the number of committed frames
func (r *Recorder) Frames() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.frames
}

// SaveSnapshot writes a Snapshot to disk as JSON.
func SaveSnapshot(s Snapshot, path string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot reads a Snapshot from a JSON file on disk.
func LoadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return &s, nil
}

// FeatureCollection exports the snapshot's segment rectangles as GeoJSON
// polygons in square-local units
func (s Snapshot) FeatureCollection() *geojson.FeatureCollection {
	fc := segmentFeatures(nil, s.Segments)
	for _, f := range fc.Features {
		f.Properties["open"] = s.Status.Open
	}
	return fc
}
