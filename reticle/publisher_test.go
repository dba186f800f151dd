package reticle

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang/geo/r3"
)

func TestNewPublisher(t *testing.T) {
	t.Setenv("MQTT_PUBLISH_PREFIX", "")
	publisher := NewPublisher(nil, "")
	if publisher == nil {
		t.Fatal("NewPublisher() returned nil")
	}
	if publisher.publishPrefix != defaultPublishPrefix {
		t.Errorf("Default prefix = %s, want %s", publisher.publishPrefix, defaultPublishPrefix)
	}
	if publisher.qos != 0 {
		t.Errorf("Default QoS = %d, want 0", publisher.qos)
	}
	if publisher.InstanceID() == "" {
		t.Error("InstanceID should be set")
	}
	if NewPublisher(nil, "").InstanceID() == publisher.InstanceID() {
		t.Error("InstanceID should differ between publishers")
	}
}

func TestNewPublisher_PrefixOverride(t *testing.T) {
	t.Setenv("MQTT_PUBLISH_PREFIX", "")
	if p := NewPublisher(nil, "ar/reticle"); p.publishPrefix != "ar/reticle" {
		t.Errorf("prefix = %s, want ar/reticle", p.publishPrefix)
	}

	t.Setenv("MQTT_PUBLISH_PREFIX", "from-env")
	if p := NewPublisher(nil, "ar/reticle"); p.publishPrefix != "from-env" {
		t.Errorf("prefix = %s, want from-env", p.publishPrefix)
	}
}

func TestPublisher_SetQoS(t *testing.T) {
	publisher := NewPublisher(nil, "test")
	publisher.SetQoS(1)
	if publisher.qos != 1 {
		t.Errorf("QoS = %d, want 1", publisher.qos)
	}
	publisher.SetQoS(3)
	if publisher.qos != 1 {
		t.Errorf("invalid QoS should be ignored, got %d", publisher.qos)
	}
}

func TestPublisher_FlushNotConnected(t *testing.T) {
	if err := NewPublisher(nil, "test").Flush(); err == nil {
		t.Error("Flush() with nil client should fail")
	}

	mock := NewMockClient()
	publisher := NewPublisher(mock, "test")
	if err := publisher.Flush(); err == nil {
		t.Error("Flush() with disconnected client should fail")
	}

	publisher.CommitFrame()
	if publisher.LastError() == nil {
		t.Error("CommitFrame() should record the error")
	}
	if len(mock.Published()) != 0 {
		t.Errorf("nothing should be published, got %d", len(mock.Published()))
	}
}

func newConnectedPublisher(t *testing.T) (*Publisher, *MockClient) {
	t.Helper()
	t.Setenv("MQTT_PUBLISH_PREFIX", "")
	mock := NewMockClient()
	mock.SetConnected(true)
	publisher := NewPublisher(mock, "test")
	publisher.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return publisher, mock
}

func TestPublisher_CommitFrame(t *testing.T) {
	publisher, mock := newConnectedPublisher(t)

	geometry := SegmentGeometry{Name: "topLeft-horizontal", Width: 0.5, Height: 0.018}
	publisher.SetVisible(true)
	publisher.SetTransform(IdentityTransform())
	publisher.SetGeometryExtent(geometry)
	publisher.SetGeometryExtent(geometry) // same segment replaces, never duplicates
	publisher.SetFillOpacity(0.25)
	publisher.SetStatus(Status{StateName: "detecting", PlaneAnchor: "A", Open: false})
	publisher.CommitFrame()

	if err := publisher.LastError(); err != nil {
		t.Fatalf("LastError() = %v", err)
	}

	published := mock.Published()
	if len(published) != 2 {
		t.Fatalf("published %d messages, want frame and status", len(published))
	}

	frame := published[0]
	if frame.Topic != "test/frame" {
		t.Errorf("frame topic = %s, want test/frame", frame.Topic)
	}
	if frame.Retain {
		t.Error("frames should not be retained")
	}

	var out FrameOutput
	if err := json.Unmarshal(frame.Payload, &out); err != nil {
		t.Fatalf("frame payload is not JSON: %v", err)
	}
	if out.InstanceID != publisher.InstanceID() {
		t.Errorf("InstanceID = %s", out.InstanceID)
	}
	if out.Frame != 1 {
		t.Errorf("Frame = %d, want 1", out.Frame)
	}
	if out.Timestamp != 1700000000000 {
		t.Errorf("Timestamp = %d", out.Timestamp)
	}
	if out.State != "detecting" || out.PlaneAnchor != "A" {
		t.Errorf("State = %s, PlaneAnchor = %s", out.State, out.PlaneAnchor)
	}
	if !out.Visible || out.FillOpacity != 0.25 {
		t.Errorf("Visible = %t, FillOpacity = %v", out.Visible, out.FillOpacity)
	}
	if len(out.Segments) != 1 {
		t.Errorf("Segments = %d, want 1", len(out.Segments))
	}

	status := published[1]
	if status.Topic != "test/status" {
		t.Errorf("status topic = %s, want test/status", status.Topic)
	}
	if !status.Retain {
		t.Error("status should be retained")
	}
	var statusMsg struct {
		InstanceID string `json:"instanceId"`
		Status     Status `json:"status"`
	}
	if err := json.Unmarshal(status.Payload, &statusMsg); err != nil {
		t.Fatalf("status payload is not JSON: %v", err)
	}
	if statusMsg.Status.StateName != "detecting" || statusMsg.Status.Open {
		t.Errorf("status = %+v", statusMsg.Status)
	}
}

func TestPublisher_StatusOnlyOnChange(t *testing.T) {
	publisher, mock := newConnectedPublisher(t)

	countStatus := func() int {
		n := 0
		for _, m := range mock.Published() {
			if m.Topic == "test/status" {
				n++
			}
		}
		return n
	}

	publisher.SetStatus(Status{StateName: "initializing", Open: true, Animating: true})
	publisher.CommitFrame()
	publisher.SetStatus(Status{StateName: "initializing", Open: true, Animating: false})
	publisher.CommitFrame()
	if got := countStatus(); got != 1 {
		t.Errorf("status published %d times, want 1 while the settled look is unchanged", got)
	}

	publisher.SetStatus(Status{StateName: "detecting", PlaneAnchor: "A", Alignment: Alignment(AlignmentHorizontal)})
	publisher.CommitFrame()
	if got := countStatus(); got != 2 {
		t.Errorf("status published %d times, want 2 after a change", got)
	}

	if got := len(mock.Published()) - countStatus(); got != 3 {
		t.Errorf("frames published = %d, want 3", got)
	}
}

func TestPublisher_PublishError(t *testing.T) {
	publisher, mock := newConnectedPublisher(t)
	mock.SetPublishError(errors.New("broker full"))

	publisher.CommitFrame()
	if publisher.LastError() == nil {
		t.Fatal("LastError() should be set after a failed publish")
	}

	mock.SetPublishError(nil)
	publisher.CommitFrame()
	if err := publisher.LastError(); err != nil {
		t.Errorf("LastError() should clear after a successful publish, got %v", err)
	}
}

func TestPublisher_DrivenByIndicator(t *testing.T) {
	publisher, mock := newConnectedPublisher(t)
	ind := New(DefaultIndicatorConfig(), publisher, WithClock(clock.NewMock()))

	ind.Update(nil, nil)
	ind.Update(planeHit("A", AlignmentHorizontal, r3.Vector{Z: -1}), eyeLevel)

	var frames, statuses int
	for _, m := range mock.Published() {
		switch m.Topic {
		case "test/frame":
			frames++
		case "test/status":
			statuses++
		}
	}
	if frames != 2 {
		t.Errorf("frames = %d, want one per Update", frames)
	}
	if statuses != 2 {
		t.Errorf("statuses = %d, want initializing then detecting", statuses)
	}
}
