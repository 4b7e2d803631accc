// ABOUTME: YAML configuration parsing and validation
// ABOUTME: Defines structure for multi-channel sample buffer configuration
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/harper/sample-ring/internal/infrastructure/ring"
)

// ErrInvalid wraps every validation failure returned by Load.
var ErrInvalid = errors.New("invalid config")

const (
	// DefaultQuantum is the Web Audio render quantum the buffer was built around.
	DefaultQuantum       = 128
	DefaultSampleRate    = 48000
	DefaultChunkSamples  = 512
	DefaultBacklogChunks = 16
	DefaultHost          = "0.0.0.0"
	DefaultPort          = 8000
)

type Config struct {
	Listen   ListenConfig    `yaml:"listen"`
	Channels []ChannelConfig `yaml:"channels"`
	Logging  LoggingConfig   `yaml:"logging"`
}

type ListenConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type ChannelConfig struct {
	ID        string          `yaml:"id"`
	Source    SourceConfig    `yaml:"source"`
	Render    RenderConfig    `yaml:"render"`
	Buffering BufferingConfig `yaml:"buffering"`
}

type SourceConfig struct {
	Kind string `yaml:"kind"` // sine | http

	FrequencyHz float64 `yaml:"frequency_hz"`
	Amplitude   float64 `yaml:"amplitude"`

	URL              string            `yaml:"url"`
	RequestHeaders   map[string]string `yaml:"request_headers"`
	ConnectTimeoutMs int               `yaml:"connect_timeout_ms"`
	ReadTimeoutMs    int               `yaml:"read_timeout_ms"`
}

type RenderConfig struct {
	SampleRate int `yaml:"sample_rate"`
	Quantum    int `yaml:"quantum"`
}

type BufferingConfig struct {
	Capacity      int    `yaml:"capacity"`
	Policy        string `yaml:"policy"`
	Overwrite     bool   `yaml:"overwrite"`
	ChunkSamples  int    `yaml:"chunk_samples"`
	BacklogChunks int    `yaml:"backlog_chunks"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) ApplyDefaults() {
	if c.Listen.Host == "" {
		c.Listen.Host = DefaultHost
	}
	if c.Listen.Port == 0 {
		c.Listen.Port = DefaultPort
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}

	for i := range c.Channels {
		ch := &c.Channels[i]
		if ch.Source.Kind == "" {
			ch.Source.Kind = "sine"
		}
		if ch.Source.Kind == "sine" {
			if ch.Source.FrequencyHz == 0 {
				ch.Source.FrequencyHz = 440
			}
			if ch.Source.Amplitude == 0 {
				ch.Source.Amplitude = 0.25
			}
		}
		if ch.Render.SampleRate == 0 {
			ch.Render.SampleRate = DefaultSampleRate
		}
		if ch.Render.Quantum == 0 {
			ch.Render.Quantum = DefaultQuantum
		}
		if ch.Buffering.Policy == "" {
			ch.Buffering.Policy = ring.PowerOfTwo.String()
		}
		if ch.Buffering.ChunkSamples == 0 {
			ch.Buffering.ChunkSamples = DefaultChunkSamples
		}
		if ch.Buffering.BacklogChunks == 0 {
			ch.Buffering.BacklogChunks = DefaultBacklogChunks
		}
	}
}

func (c *Config) Validate() error {
	seen := make(map[string]bool, len(c.Channels))

	for _, ch := range c.Channels {
		if ch.ID == "" {
			return fmt.Errorf("%w: channel without id", ErrInvalid)
		}
		if seen[ch.ID] {
			return fmt.Errorf("%w: duplicate channel id %q", ErrInvalid, ch.ID)
		}
		seen[ch.ID] = true

		switch ch.Source.Kind {
		case "sine":
		case "http":
			if ch.Source.URL == "" {
				return fmt.Errorf("%w: channel %q: http source needs a url", ErrInvalid, ch.ID)
			}
		default:
			return fmt.Errorf("%w: channel %q: unknown source kind %q", ErrInvalid, ch.ID, ch.Source.Kind)
		}

		policy, err := ring.ParsePolicy(ch.Buffering.Policy)
		if err != nil {
			return fmt.Errorf("%w: channel %q: %v", ErrInvalid, ch.ID, err)
		}
		if ch.Buffering.Capacity <= 0 {
			return fmt.Errorf("%w: channel %q: capacity must be positive", ErrInvalid, ch.ID)
		}
		if ch.Render.SampleRate <= 0 || ch.Render.Quantum <= 0 {
			return fmt.Errorf("%w: channel %q: sample rate and quantum must be positive", ErrInvalid, ch.ID)
		}
		// Overwrite mode retains at most one sample less than the storage
		// holds, and it can be switched on at runtime, so a whole quantum
		// must always fit below that.
		if size := ring.StorageSize(ch.Buffering.Capacity, policy); ch.Render.Quantum >= size {
			return fmt.Errorf("%w: channel %q: quantum %d must be smaller than capacity %d",
				ErrInvalid, ch.ID, ch.Render.Quantum, size)
		}
		if ch.Buffering.ChunkSamples <= 0 || ch.Buffering.BacklogChunks <= 0 {
			return fmt.Errorf("%w: channel %q: chunk and backlog sizes must be positive", ErrInvalid, ch.ID)
		}
	}

	return nil
}
