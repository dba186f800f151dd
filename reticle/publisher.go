package reticle

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

// FrameOutput is the published form of one indicator frame
type FrameOutput struct {
	InstanceID  string            `json:"instanceId"`
	Frame       uint64            `json:"frame"`
	Timestamp   int64             `json:"timestamp"` // unix milliseconds
	State       string            `json:"state"`
	PlaneAnchor SurfaceID         `json:"planeAnchor,omitempty"`
	Transform   Transform         `json:"transform"`
	Visible     bool              `json:"visible"`
	FillOpacity float64           `json:"fillOpacity"`
	Segments    []SegmentGeometry `json:"segments"`
}

// Publisher is a NodeRenderer that publishes each committed frame to MQTT.
// The frame goes to {prefix}/frame; the logical status goes to
// {prefix}/status, retained, only when it changes.
type Publisher struct {
	client        mqtt.Client
	publishPrefix string
	instanceID    string
	qos           byte
	now           func() time.Time

	mu         sync.Mutex
	pending    FrameOutput
	status     Status
	lastStatus string
	frames     uint64
	lastErr    error
}

// NewPublisher creates a new frame publisher.
// If client is nil, publishing is disabled (for testing).
func NewPublisher(client mqtt.Client, prefix string) *Publisher {
	if env := os.Getenv("MQTT_PUBLISH_PREFIX"); env != "" {
		prefix = env
	}
	if prefix == "" {
		prefix = defaultPublishPrefix
	}
	return &Publisher{
		client:        client,
		publishPrefix: prefix,
		instanceID:    uuid.NewString(),
		qos:           0, // frames are superseded 60 times a second
		now:           time.Now,
	}
}

// InstanceID identifies this indicator in published messages
func (p *Publisher) InstanceID() string {
	return p.instanceID
}

func (p *Publisher) SetTransform(t Transform) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending.Transform = t
}

func (p *Publisher) SetGeometryExtent(g SegmentGeometry) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.pending.Segments {
		if p.pending.Segments[i].Name == g.Name {
			p.pending.Segments[i] = g
			return
		}
	}
	p.pending.Segments = append(p.pending.Segments, g)
}

func (p *Publisher) SetVisible(visible bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending.Visible = visible
}

func (p *Publisher) SetFillOpacity(opacity float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending.FillOpacity = opacity
}

func (p *Publisher) SetStatus(s Status) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status = s
	p.pending.State = s.StateName
	p.pending.PlaneAnchor = s.PlaneAnchor
}

// CommitFrame publishes the staged frame. Errors are logged when they first
// occur and kept for LastError.
func (p *Publisher) CommitFrame() {
	err := p.Flush()

	p.mu.Lock()
	defer p.mu.Unlock()
	if err != nil && (p.lastErr == nil || p.lastErr.Error() != err.Error()) {
		log.Printf("Error publishing indicator frame: %v", err)
	}
	p.lastErr = err
}

// LastError returns the error of the most recent CommitFrame
func (p *Publisher) LastError() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErr
}

// Flush publishes the staged frame, and the status if it changed
func (p *Publisher) Flush() error {
	if p.client == nil || !p.client.IsConnected() {
		return fmt.Errorf("MQTT client not connected")
	}

	p.mu.Lock()
	p.frames++
	out := p.pending
	out.InstanceID = p.instanceID
	out.Frame = p.frames
	out.Timestamp = p.now().UnixMilli()
	out.Segments = append([]SegmentGeometry(nil), p.pending.Segments...)
	status := p.status
	p.mu.Unlock()

	payload, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("marshaling frame: %w", err)
	}
	if err := p.publish(p.publishPrefix+"/frame", false, payload); err != nil {
		return err
	}

	return p.publishStatus(status)
}

// publishStatus publishes the retained status message when it differs from
// the last one published
func (p *Publisher) publishStatus(s Status) error {
	message := map[string]interface{}{
		"instanceId": p.instanceID,
		"status":     s,
	}
	payload, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("marshaling status: %w", err)
	}

	// Animation flags flip every few frames; compare on the fields that
	// describe the settled look.
	align := "none"
	if s.Alignment != nil {
		align = s.Alignment.String()
	}
	key := fmt.Sprintf("%s|%s|%t|%s", s.StateName, s.PlaneAnchor, s.Open, align)

	p.mu.Lock()
	unchanged := key == p.lastStatus
	p.mu.Unlock()
	if unchanged {
		return nil
	}

	if err := p.publish(p.publishPrefix+"/status", true, payload); err != nil {
		return err
	}

	p.mu.Lock()
	p.lastStatus = key
	p.mu.Unlock()
	log.Printf("Published indicator status: %s plane=%q open=%t", s.StateName, s.PlaneAnchor, s.Open)
	return nil
}

func (p *Publisher) publish(topic string, retain bool, payload []byte) error {
	token := p.client.Publish(topic, p.qos, retain, payload)
	if token.WaitTimeout(2*time.Second) && token.Error() != nil {
		return fmt.Errorf("publishing to %s: %w", topic, token.Error())
	}
	return nil
}

// SetQoS sets the Quality of Service level for publishing (0, 1, or 2)
func (p *Publisher) SetQoS(qos byte) {
	if qos <= 2 {
		p.qos = qos
	}
}
