// ABOUTME: Channel manager for lifecycle and lookup
// ABOUTME: Creates channels and their buffers from config and manages their goroutines
package manager

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/harper/sample-ring/internal/application/config"
	"github.com/harper/sample-ring/internal/domain"
	"github.com/harper/sample-ring/internal/domain/channel"
	"github.com/harper/sample-ring/internal/infrastructure/ring"
	"github.com/harper/sample-ring/internal/infrastructure/source"
)

type Manager struct {
	channels map[string]*channel.Channel
	mu       sync.RWMutex
}

func NewFromConfig(cfg *config.Config) (*Manager, error) {
	mgr := &Manager{
		channels: make(map[string]*channel.Channel),
	}

	debug := cfg.Logging.Level == "debug"

	for _, chCfg := range cfg.Channels {
		policy, err := ring.ParsePolicy(chCfg.Buffering.Policy)
		if err != nil {
			return nil, fmt.Errorf("channel %s: %w", chCfg.ID, err)
		}

		buffer, err := ring.New(chCfg.Buffering.Capacity, policy)
		if err != nil {
			return nil, fmt.Errorf("channel %s: %w", chCfg.ID, err)
		}
		buffer.SetOverwrite(chCfg.Buffering.Overwrite)

		src, err := newSource(chCfg)
		if err != nil {
			return nil, fmt.Errorf("channel %s: %w", chCfg.ID, err)
		}

		channelCfg := channel.Config{
			ID:            chCfg.ID,
			SampleRate:    chCfg.Render.SampleRate,
			Quantum:       chCfg.Render.Quantum,
			ChunkSamples:  chCfg.Buffering.ChunkSamples,
			BacklogChunks: chCfg.Buffering.BacklogChunks,
			ChunkBusCap:   32,
			Debug:         debug,
		}

		mgr.channels[chCfg.ID] = channel.New(channelCfg, src, buffer)
	}

	return mgr, nil
}

func newSource(chCfg config.ChannelConfig) (domain.SampleSource, error) {
	switch chCfg.Source.Kind {
	case "sine":
		if chCfg.Render.SampleRate <= 0 {
			return nil, fmt.Errorf("sine source needs a sample rate")
		}
		return source.NewSine(source.SineConfig{
			Frequency:  chCfg.Source.FrequencyHz,
			Amplitude:  chCfg.Source.Amplitude,
			SampleRate: chCfg.Render.SampleRate,
			// Stay one chunk ahead so the renderer never starves.
			Lead: time.Duration(chCfg.Buffering.ChunkSamples) * time.Second / time.Duration(chCfg.Render.SampleRate),
		}), nil
	case "http":
		return source.NewHTTP(source.HTTPConfig{
			URL:            chCfg.Source.URL,
			ConnectTimeout: time.Duration(chCfg.Source.ConnectTimeoutMs) * time.Millisecond,
			ReadTimeout:    time.Duration(chCfg.Source.ReadTimeoutMs) * time.Millisecond,
			Headers:        chCfg.Source.RequestHeaders,
		}), nil
	}
	return nil, fmt.Errorf("unknown source kind %q", chCfg.Source.Kind)
}

func (m *Manager) Get(id string) *channel.Channel {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.channels[id]
}

// List returns channels ordered by id.
func (m *Manager) List() []*channel.Channel {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*channel.Channel, 0, len(m.channels))
	for _, ch := range m.channels {
		result = append(result, ch)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID() < result[j].ID() })
	return result
}

func (m *Manager) Start() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, ch := range m.channels {
		if err := ch.Start(); err != nil {
			return err
		}
	}

	return nil
}

func (m *Manager) Shutdown() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, ch := range m.channels {
		if err := ch.Shutdown(); err != nil {
			return err
		}
	}

	return nil
}
