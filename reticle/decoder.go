package reticle

import (
	"bytes"
	"compress/zlib"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

// FrameMessage is the wire form of one frame from the detection subsystem
type FrameMessage struct {
	Timestamp int64          `json:"timestamp"` // unix milliseconds
	Hit       *HitMessage    `json:"hit"`       // null when tracking has no hit
	Camera    *CameraMessage `json:"camera,omitempty"`
}

// HitMessage is a surface hit
type HitMessage struct {
	Position  [3]float64        `json:"position"`
	Alignment *SurfaceAlignment `json:"alignment,omitempty"`
	SurfaceID SurfaceID         `json:"surfaceId,omitempty"`
	HasPlane  bool              `json:"hasPlane"`
	Normal    *[3]float64       `json:"normal,omitempty"`
}

// CameraMessage is a camera pose; orientation is [w,x,y,z]
type CameraMessage struct {
	Position    [3]float64 `json:"position"`
	Orientation [4]float64 `json:"orientation"`
}

// DecodeFrame decodes a frame message from either:
// - Raw JSON
// - Zlib-compressed JSON
func DecodeFrame(data []byte) (*FrameMessage, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("empty data")
	}

	jsonBytes := data
	if data[0] != '{' {
		inflated, err := inflateZlib(data)
		if errors.Is(err, errFrameTooLarge) {
			return nil, err
		}
		if err != nil {
			return nil, fmt.Errorf("unknown format: not JSON or zlib-compressed")
		}
		jsonBytes = inflated
	}

	var m FrameMessage
	if err := json.Unmarshal(jsonBytes, &m); err != nil {
		return nil, fmt.Errorf("parsing frame JSON: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// EncodeFrame encodes a frame message as JSON
func EncodeFrame(m *FrameMessage) ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshaling frame: %w", err)
	}
	return data, nil
}

// maxFrameSize bounds a decompressed frame
const maxFrameSize = maxRecordingLine

var errFrameTooLarge = errors.New("decompressed frame exceeds size limit")

func inflateZlib(data []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	out, err := io.ReadAll(io.LimitReader(r, maxFrameSize+1))
	if err != nil {
		return nil, err
	}
	if len(out) > maxFrameSize {
		return nil, errFrameTooLarge
	}
	return out, nil
}

// Validate rejects non-finite coordinates and degenerate camera orientations
func (m *FrameMessage) Validate() error {
	if m.Hit != nil {
		if !finite(m.Hit.Position[:]...) {
			return fmt.Errorf("hit position is not finite: %v", m.Hit.Position)
		}
		if m.Hit.Normal != nil && !finite(m.Hit.Normal[:]...) {
			return fmt.Errorf("hit normal is not finite: %v", *m.Hit.Normal)
		}
	}
	if m.Camera != nil {
		if !finite(m.Camera.Position[:]...) || !finite(m.Camera.Orientation[:]...) {
			return fmt.Errorf("camera pose is not finite")
		}
		o := m.Camera.Orientation
		if o[0] == 0 && o[1] == 0 && o[2] == 0 && o[3] == 0 {
			return fmt.Errorf("camera orientation is a zero quaternion")
		}
	}
	return nil
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Time returns the frame timestamp
func (m *FrameMessage) Time() time.Time {
	return time.UnixMilli(m.Timestamp)
}

// ToSample converts the hit, or returns nil when there is none
func (m *FrameMessage) ToSample() *Sample {
	if m.Hit == nil {
		return nil
	}
	s := &Sample{
		Position:  arrayVec(m.Hit.Position),
		SurfaceID: m.Hit.SurfaceID,
		HasPlane:  m.Hit.HasPlane,
	}
	if m.Hit.Alignment != nil {
		s.Alignment = Alignment(*m.Hit.Alignment)
	}
	if m.Hit.Normal != nil {
		s.Normal = arrayVec(*m.Hit.Normal)
	}
	return s
}

// ToCamera converts the camera pose, or returns nil when there is none
func (m *FrameMessage) ToCamera() *CameraPose {
	if m.Camera == nil {
		return nil
	}
	o := m.Camera.Orientation
	return &CameraPose{
		Position:    arrayVec(m.Camera.Position),
		Orientation: normalizeQuat(quat.Number{Real: o[0], Imag: o[1], Jmag: o[2], Kmag: o[3]}),
	}
}

// NewFrameMessage builds the wire form of a sample and camera pose
func NewFrameMessage(at time.Time, sample *Sample, camera *CameraPose) *FrameMessage {
	m := &FrameMessage{Timestamp: at.UnixMilli()}
	if sample != nil {
		m.Hit = &HitMessage{
			Position:  vecArray(sample.Position),
			SurfaceID: sample.SurfaceID,
			HasPlane:  sample.HasPlane,
		}
		if sample.Alignment != nil {
			m.Hit.Alignment = Alignment(*sample.Alignment)
		}
		if sample.Normal != (r3.Vector{}) {
			n := vecArray(sample.Normal)
			m.Hit.Normal = &n
		}
	}
	if camera != nil {
		o := camera.Orientation
		m.Camera = &CameraMessage{
			Position:    vecArray(camera.Position),
			Orientation: [4]float64{o.Real, o.Imag, o.Jmag, o.Kmag},
		}
	}
	return m
}
