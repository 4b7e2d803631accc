// ABOUTME: Channel domain model hosting one sample buffer between a source and listeners
// ABOUTME: Runs the producer, the quantum renderer, and listener fan-out goroutines
package channel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eapache/queue"

	"github.com/harper/sample-ring/internal/domain"
	"github.com/harper/sample-ring/internal/infrastructure/pcm"
	"github.com/harper/sample-ring/internal/infrastructure/ring"
)

type Config struct {
	ID            string
	SampleRate    int
	Quantum       int
	ChunkSamples  int
	BacklogChunks int
	ChunkBusCap   int
	Debug         bool
	Logger        *log.Logger
}

type Channel struct {
	id           string
	sampleRate   int
	quantum      int
	chunkSamples int
	backlogMax   int
	period       time.Duration

	source domain.SampleSource

	// mu makes cursor updates from the producer visible to the renderer and
	// back. The buffer itself does no locking.
	mu      sync.Mutex
	buffer  *ring.Buffer
	backlog *queue.Queue // of *pending, oldest first

	block []float32 // renderer scratch, one quantum

	stats         counters
	sourceHealthy atomic.Bool

	clients   map[*Client]struct{}
	clientsMu sync.Mutex

	chunkBus chan []byte

	logger *log.Logger
	debug  bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// pending is a chunk the buffer rejected, starting at off.
type pending struct {
	samples []float32
	off     int
}

type Client struct {
	ID string
	ch chan []byte
}

func New(cfg Config, source domain.SampleSource, buffer *ring.Buffer) *Channel {
	ctx, cancel := context.WithCancel(context.Background())

	logger := cfg.Logger
	if logger == nil {
		logger = log.New(os.Stderr, fmt.Sprintf("[%s] ", cfg.ID), log.LstdFlags)
	}

	var period time.Duration
	if cfg.SampleRate > 0 {
		period = time.Duration(cfg.Quantum) * time.Second / time.Duration(cfg.SampleRate)
	}

	return &Channel{
		id:           cfg.ID,
		sampleRate:   cfg.SampleRate,
		quantum:      cfg.Quantum,
		chunkSamples: cfg.ChunkSamples,
		backlogMax:   cfg.BacklogChunks,
		period:       period,
		source:       source,
		buffer:       buffer,
		backlog:      queue.New(),
		block:        make([]float32, cfg.Quantum),
		clients:      make(map[*Client]struct{}),
		chunkBus:     make(chan []byte, cfg.ChunkBusCap),
		logger:       logger,
		debug:        cfg.Debug,
		ctx:          ctx,
		cancel:       cancel,
	}
}

func (c *Channel) ID() string {
	return c.id
}

func (c *Channel) SampleRate() int {
	return c.sampleRate
}

func (c *Channel) Quantum() int {
	return c.quantum
}

func (c *Channel) SourceHealthy() bool {
	return c.sourceHealthy.Load()
}

func (c *Channel) SetSourceHealthy(healthy bool) {
	c.sourceHealthy.Store(healthy)
}

// SetOverwrite switches the buffer between rejecting and overwriting when full.
func (c *Channel) SetOverwrite(on bool) {
	c.mu.Lock()
	c.buffer.SetOverwrite(on)
	c.mu.Unlock()
}

func (c *Channel) Snapshot() Stats {
	c.mu.Lock()
	st := Stats{
		Capacity:          c.buffer.Capacity(),
		RequestedCapacity: c.buffer.RequestedCapacity(),
		Policy:            c.buffer.Policy().String(),
		ReadPos:           c.buffer.ReadPos(),
		WritePos:          c.buffer.WritePos(),
		Buffered:          c.buffer.Len(),
		Free:              c.buffer.Free(),
		State:             c.buffer.State().String(),
		Overwrite:         c.buffer.Overwrite(),
	}
	c.mu.Unlock()

	st.ID = c.id
	st.SampleRate = c.sampleRate
	st.Quantum = c.quantum
	st.SourceHealthy = c.SourceHealthy()
	st.Listeners = c.ClientCount()
	st.Produced = c.stats.produced.Load()
	st.Committed = c.stats.committed.Load()
	st.Dropped = c.stats.dropped.Load()
	st.BacklogSamples = c.stats.backlog.Load()
	st.Rendered = c.stats.rendered.Load()
	st.Underruns = c.stats.underruns.Load()

	return st
}

func (c *Channel) debugf(format string, args ...any) {
	if c.debug {
		c.logger.Printf(format, args...)
	}
}

// Produce hands samples to the buffer. Whatever the buffer rejects waits in
// the backlog and is retried, oldest first, on the next call. When the
// backlog grows past its limit the oldest chunk is dropped.
func (c *Channel) Produce(samples []float32) {
	c.stats.produced.Add(uint64(len(samples)))

	c.mu.Lock()
	defer c.mu.Unlock()

	c.flushBacklogLocked()

	off := 0
	if c.backlog.Length() == 0 {
		off = c.pushLocked(samples)
		if off == len(samples) {
			return
		}
	}

	c.backlog.Add(&pending{samples: samples, off: off})
	c.stats.backlog.Add(int64(len(samples) - off))

	for c.backlog.Length() > c.backlogMax {
		p := c.backlog.Remove().(*pending)
		lost := len(p.samples) - p.off
		c.stats.backlog.Add(-int64(lost))
		c.stats.dropped.Add(uint64(lost))
		c.debugf("backlog full, dropped %d samples", lost)
	}
}

// FlushBacklog retries queued samples without producing new ones and
// reports whether the backlog is now empty.
func (c *Channel) FlushBacklog() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.flushBacklogLocked()
	return c.backlog.Length() == 0
}

func (c *Channel) flushBacklogLocked() {
	for c.backlog.Length() > 0 {
		p := c.backlog.Peek().(*pending)
		n := c.pushLocked(p.samples[p.off:])
		p.off += n
		c.stats.backlog.Add(-int64(n))

		if p.off < len(p.samples) {
			return
		}
		c.backlog.Remove()
	}
}

// pushLocked returns how many leading samples the buffer took.
func (c *Channel) pushLocked(samples []float32) int {
	before := c.buffer.Len()
	if c.buffer.PushBlock(samples) {
		c.stats.committed.Add(uint64(len(samples)))
		return len(samples)
	}

	// PushBlock only stops early once the buffer reports full, which never
	// happens mid-block with overwrite on, so nothing was discarded and the
	// growth is exactly what got written.
	n := c.buffer.Len() - before
	c.stats.committed.Add(uint64(n))
	return n
}

// RenderQuantum pulls one quantum from the buffer and encodes it as f32le.
// A quantum the buffer cannot supply whole is rendered as silence.
func (c *Channel) RenderQuantum() []byte {
	c.mu.Lock()
	ok := c.buffer.NextBlockInto(c.block)
	c.mu.Unlock()

	if ok {
		c.stats.rendered.Add(1)
	} else {
		clear(c.block)
		c.stats.underruns.Add(1)
		c.debugf("underrun")
	}

	return pcm.Encode(make([]byte, 0, len(c.block)*pcm.BytesPerSample), c.block)
}

func (c *Channel) ClientCount() int {
	c.clientsMu.Lock()
	defer c.clientsMu.Unlock()
	return len(c.clients)
}

func (c *Channel) Subscribe(cl *Client) <-chan []byte {
	ch := make(chan []byte, 64)

	c.clientsMu.Lock()
	cl.ch = ch
	c.clients[cl] = struct{}{}
	c.clientsMu.Unlock()

	return ch
}

func (c *Channel) Unsubscribe(cl *Client) {
	c.clientsMu.Lock()
	defer c.clientsMu.Unlock()

	delete(c.clients, cl)
	if cl.ch != nil {
		close(cl.ch)
		cl.ch = nil
	}
}

func (c *Channel) Start() error {
	if c.source == nil {
		return fmt.Errorf("channel %s: no source", c.id)
	}
	if c.period <= 0 {
		return fmt.Errorf("channel %s: invalid render period", c.id)
	}

	c.wg.Add(3)
	go c.runProducer()
	go c.runRenderer()
	go c.runFanOut()

	c.logger.Printf("started: capacity %d (%s), quantum %d @ %d Hz",
		c.buffer.Capacity(), c.buffer.Policy(), c.quantum, c.sampleRate)

	return nil
}

// Shutdown stops the goroutines and closes every listener's chunk channel,
// so streaming handlers return. It is safe to call more than once.
func (c *Channel) Shutdown() error {
	c.cancel()
	c.wg.Wait()

	c.clientsMu.Lock()
	for cl := range c.clients {
		if cl.ch != nil {
			close(cl.ch)
			cl.ch = nil
		}
		delete(c.clients, cl)
	}
	c.clientsMu.Unlock()

	return nil
}

func (c *Channel) runProducer() {
	defer c.wg.Done()

	stream, err := c.source.Open(c.ctx)
	if err != nil {
		c.SetSourceHealthy(false)
		c.logger.Printf("open source: %v", err)
		return
	}
	defer stream.Close()

	c.SetSourceHealthy(true)

	buf := make([]float32, c.chunkSamples)
	for {
		n, err := stream.ReadSamples(buf)
		if n > 0 {
			chunk := make([]float32, n)
			copy(chunk, buf[:n])
			c.Produce(chunk)
		}

		if err != nil {
			if errors.Is(err, io.EOF) {
				c.logger.Printf("source ended")
				c.drainBacklog()
			} else if c.ctx.Err() == nil {
				c.SetSourceHealthy(false)
				c.logger.Printf("read source: %v", err)
			}
			return
		}
	}
}

// drainBacklog keeps retrying the backlog once the source has ended.
func (c *Channel) drainBacklog() {
	ticker := time.NewTicker(c.period)
	defer ticker.Stop()

	for !c.FlushBacklog() {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (c *Channel) runRenderer() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.period)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			chunk := c.RenderQuantum()

			// The render clock never waits on listeners.
			select {
			case c.chunkBus <- chunk:
			default:
			}
		}
	}
}

func (c *Channel) runFanOut() {
	defer c.wg.Done()

	for {
		select {
		case <-c.ctx.Done():
			return
		case chunk := <-c.chunkBus:
			// Distribute chunk to all subscribed clients
			c.clientsMu.Lock()
			for client := range c.clients {
				if client.ch != nil {
					select {
					case client.ch <- chunk:
					default:
						// Client buffer full, skip this chunk
					}
				}
			}
			c.clientsMu.Unlock()
		}
	}
}
