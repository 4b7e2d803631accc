// ABOUTME: Sine wave generator used as a local sample source
// ABOUTME: Paces output to wall-clock time like a real capture device
package source

import (
	"context"
	"math"
	"time"

	"github.com/harper/sample-ring/internal/domain"
)

type SineConfig struct {
	Frequency  float64
	Amplitude  float64
	SampleRate int
	// Lead is how far ahead of the wall clock the generator may run.
	Lead time.Duration
}

type Sine struct {
	cfg SineConfig
	now func() time.Time
}

func NewSine(cfg SineConfig) *Sine {
	return &Sine{cfg: cfg, now: time.Now}
}

func (s *Sine) Open(ctx context.Context) (domain.SampleStream, error) {
	return &sineStream{
		ctx:   ctx,
		cfg:   s.cfg,
		now:   s.now,
		start: s.now(),
		step:  2 * math.Pi * s.cfg.Frequency / float64(s.cfg.SampleRate),
	}, nil
}

type sineStream struct {
	ctx   context.Context
	cfg   SineConfig
	now   func() time.Time
	start time.Time

	phase   float64
	step    float64
	emitted int64
}

func (g *sineStream) ReadSamples(dst []float32) (int, error) {
	if err := g.wait(len(dst)); err != nil {
		return 0, err
	}

	for i := range dst {
		dst[i] = float32(g.cfg.Amplitude * math.Sin(g.phase))
		g.phase += g.step
		if g.phase >= 2*math.Pi {
			g.phase -= 2 * math.Pi
		}
	}
	g.emitted += int64(len(dst))

	return len(dst), nil
}

// wait blocks until emitting n more samples keeps the stream within Lead of
// real time.
func (g *sineStream) wait(n int) error {
	if g.cfg.SampleRate <= 0 {
		return g.ctx.Err()
	}

	due := g.start.Add(time.Duration(g.emitted+int64(n)) * time.Second / time.Duration(g.cfg.SampleRate))
	ahead := due.Sub(g.now()) - g.cfg.Lead
	if ahead <= 0 {
		return g.ctx.Err()
	}

	timer := time.NewTimer(ahead)
	defer timer.Stop()

	select {
	case <-g.ctx.Done():
		return g.ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (g *sineStream) Close() error {
	return nil
}
