package reticle

import (
	"fmt"
	"image/color"
	"time"
)

// Defaults for IndicatorConfig
const (
	DefaultSize              = 0.17 // meters
	DefaultThickness         = 0.018
	DefaultClosedScale       = 0.97
	DefaultOpenSegmentLength = 0.2 // w.r.t. a 1x1 square
	DefaultSegmentLength     = 0.5
	DefaultAnimationDuration = 700 * time.Millisecond
	DefaultPrimaryColor      = "#F7C758"
	DefaultFillColor         = "#F9D98C"
	DefaultPositionWindow    = 10
	DefaultAlignmentWindow   = 4
	DefaultBillboardDistance = 0.8
	DefaultFlashOpacity      = 0.25
)

// IndicatorConfig holds the construction-time constants of one indicator
type IndicatorConfig struct {
	Size              float64       `yaml:"size" json:"size"`                           // Side length of the open square in meters
	Thickness         float64       `yaml:"thickness" json:"thickness"`                 // Line thickness w.r.t. the unit square
	ClosedScale       float64       `yaml:"closedScale" json:"closedScale"`             // Scale of the closed square relative to open
	OpenSegmentLength float64       `yaml:"openSegmentLength" json:"openSegmentLength"` // Segment length when open (unit square)
	SegmentLength     float64       `yaml:"segmentLength" json:"segmentLength"`         // Segment length when closed (unit square)
	AnimationDuration time.Duration `yaml:"animationDuration" json:"animationDuration"`
	PrimaryColor      string        `yaml:"primaryColor" json:"primaryColor"`
	FillColor         string        `yaml:"fillColor" json:"fillColor"`
	PositionWindow    int           `yaml:"positionWindow" json:"positionWindow"`       // K
	AlignmentWindow   int           `yaml:"alignmentWindow" json:"alignmentWindow"`     // M
	BillboardDistance float64       `yaml:"billboardDistance" json:"billboardDistance"` // Meters in front of the camera while initializing
	FlashOpacity      float64       `yaml:"flashOpacity" json:"flashOpacity"`
	ScaleWithDistance *bool         `yaml:"scaleWithDistance,omitempty" json:"scaleWithDistance,omitempty"`
}

// DefaultIndicatorConfig returns the stock indicator configuration
func DefaultIndicatorConfig() IndicatorConfig {
	scale := true
	return IndicatorConfig{
		Size:              DefaultSize,
		Thickness:         DefaultThickness,
		ClosedScale:       DefaultClosedScale,
		OpenSegmentLength: DefaultOpenSegmentLength,
		SegmentLength:     DefaultSegmentLength,
		AnimationDuration: DefaultAnimationDuration,
		PrimaryColor:      DefaultPrimaryColor,
		FillColor:         DefaultFillColor,
		PositionWindow:    DefaultPositionWindow,
		AlignmentWindow:   DefaultAlignmentWindow,
		BillboardDistance: DefaultBillboardDistance,
		FlashOpacity:      DefaultFlashOpacity,
		ScaleWithDistance: &scale,
	}
}

// WithDefaults fills zero-valued fields from DefaultIndicatorConfig
func (c IndicatorConfig) WithDefaults() IndicatorConfig {
	d := DefaultIndicatorConfig()
	if c.Size == 0 {
		c.Size = d.Size
	}
	if c.Thickness == 0 {
		c.Thickness = d.Thickness
	}
	if c.ClosedScale == 0 {
		c.ClosedScale = d.ClosedScale
	}
	if c.OpenSegmentLength == 0 {
		c.OpenSegmentLength = d.OpenSegmentLength
	}
	if c.SegmentLength == 0 {
		c.SegmentLength = d.SegmentLength
	}
	if c.AnimationDuration == 0 {
		c.AnimationDuration = d.AnimationDuration
	}
	if c.PrimaryColor == "" {
		c.PrimaryColor = d.PrimaryColor
	}
	if c.FillColor == "" {
		c.FillColor = d.FillColor
	}
	if c.PositionWindow == 0 {
		c.PositionWindow = d.PositionWindow
	}
	if c.AlignmentWindow == 0 {
		c.AlignmentWindow = d.AlignmentWindow
	}
	if c.BillboardDistance == 0 {
		c.BillboardDistance = d.BillboardDistance
	}
	if c.FlashOpacity == 0 {
		c.FlashOpacity = d.FlashOpacity
	}
	if c.ScaleWithDistance == nil {
		c.ScaleWithDistance = d.ScaleWithDistance
	}
	return c
}

// ScalesWithDistance reports whether the indicator grows with camera distance
func (c IndicatorConfig) ScalesWithDistance() bool {
	return c.ScaleWithDistance == nil || *c.ScaleWithDistance
}

// Validate checks the configuration for values the indicator cannot work with
func (c IndicatorConfig) Validate() error {
	if c.Size <= 0 {
		return fmt.Errorf("indicator.size must be positive, got %v", c.Size)
	}
	if c.Thickness <= 0 {
		return fmt.Errorf("indicator.thickness must be positive, got %v", c.Thickness)
	}
	if c.ClosedScale <= 0 || c.ClosedScale > 1 {
		return fmt.Errorf("indicator.closedScale must be in (0, 1], got %v", c.ClosedScale)
	}
	if c.SegmentLength <= 0 {
		return fmt.Errorf("indicator.segmentLength must be positive, got %v", c.SegmentLength)
	}
	if c.OpenSegmentLength <= 0 || c.OpenSegmentLength >= c.SegmentLength {
		return fmt.Errorf("indicator.openSegmentLength must be in (0, %v), got %v", c.SegmentLength, c.OpenSegmentLength)
	}
	if c.AnimationDuration <= 0 {
		return fmt.Errorf("indicator.animationDuration must be positive, got %v", c.AnimationDuration)
	}
	if c.PositionWindow < 1 {
		return fmt.Errorf("indicator.positionWindow must be at least 1, got %d", c.PositionWindow)
	}
	if c.AlignmentWindow < 1 {
		return fmt.Errorf("indicator.alignmentWindow must be at least 1, got %d", c.AlignmentWindow)
	}
	if _, err := ParseHexColor(c.PrimaryColor); err != nil {
		return fmt.Errorf("indicator.primaryColor: %w", err)
	}
	if _, err := ParseHexColor(c.FillColor); err != nil {
		return fmt.Errorf("indicator.fillColor: %w", err)
	}
	return nil
}

// Config represents the full configuration file
type Config struct {
	Indicator IndicatorConfig `yaml:"indicator" json:"indicator"`
	MQTT      MQTTConfig      `yaml:"mqtt" json:"mqtt"`
	HTTP      HTTPConfig      `yaml:"http" json:"http"`
}

// MQTTConfig holds MQTT connection settings
type MQTTConfig struct {
	Broker        string `yaml:"broker" json:"broker"`
	FrameTopic    string `yaml:"frameTopic" json:"frameTopic"`
	PublishPrefix string `yaml:"publishPrefix" json:"publishPrefix"`
	ClientID      string `yaml:"clientId" json:"clientId"`
	Username      string `yaml:"username,omitempty" json:"username,omitempty"`
	Password      string `yaml:"password,omitempty" json:"password,omitempty"`
}

// HTTPConfig holds diagnostics server settings
type HTTPConfig struct {
	Port int `yaml:"port" json:"port"`
}

// ParseHexColor parses "#RRGGBB" or "#RRGGBBAA"
func ParseHexColor(s string) (color.NRGBA, error) {
	c := color.NRGBA{A: 255}
	var err error
	switch len(s) {
	case 7:
		_, err = fmt.Sscanf(s, "#%02x%02x%02x", &c.R, &c.G, &c.B)
	case 9:
		_, err = fmt.Sscanf(s, "#%02x%02x%02x%02x", &c.R, &c.G, &c.B, &c.A)
	default:
		return c, fmt.Errorf("invalid hex color %q", s)
	}
	if err != nil {
		return c, fmt.Errorf("invalid hex color %q: %w", s, err)
	}
	return c, nil
}
