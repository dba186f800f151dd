package reticle

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	defaultFrameTopic    = "focusreticle/frames"
	defaultPublishPrefix = "focusreticle"
	defaultHTTPPort      = 8080
)

// DefaultConfig returns a configuration that runs without a broker
func DefaultConfig() *Config {
	return &Config{
		Indicator: DefaultIndicatorConfig(),
		MQTT: MQTTConfig{
			FrameTopic:    defaultFrameTopic,
			PublishPrefix: defaultPublishPrefix,
		},
		HTTP: HTTPConfig{Port: defaultHTTPPort},
	}
}

// LoadConfig loads the configuration from a YAML file. Missing indicator
// fields fall back to their defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig parses YAML configuration bytes
func ParseConfig(data []byte) (*Config, error) {
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}

	config.Indicator = config.Indicator.WithDefaults()
	if config.MQTT.FrameTopic == "" {
		config.MQTT.FrameTopic = defaultFrameTopic
	}
	if config.MQTT.PublishPrefix == "" {
		config.MQTT.PublishPrefix = defaultPublishPrefix
	}
	if config.HTTP.Port == 0 {
		config.HTTP.Port = defaultHTTPPort
	}

	if err := config.Indicator.Validate(); err != nil {
		return nil, err
	}
	if config.HTTP.Port < 0 || config.HTTP.Port > 65535 {
		return nil, fmt.Errorf("http.port out of range: %d", config.HTTP.Port)
	}

	return &config, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(path string, config *Config) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("marshaling config YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}
