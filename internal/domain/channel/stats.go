// ABOUTME: Producer and consumer counters for a channel
// ABOUTME: Each side writes its own cache line; readers take a Stats snapshot
package channel

import (
	"sync/atomic"

	"golang.org/x/sys/cpu"
)

type counters struct {
	// producer side
	produced  atomic.Uint64 // samples read from the source
	committed atomic.Uint64 // samples accepted by the buffer
	dropped   atomic.Uint64 // samples discarded from a full backlog
	backlog   atomic.Int64  // samples waiting in the backlog

	_ cpu.CacheLinePad

	// consumer side
	rendered  atomic.Uint64 // quanta delivered from the buffer
	underruns atomic.Uint64 // quanta rendered as silence

	_ cpu.CacheLinePad
}

// Stats is a point-in-time view of a channel and its buffer.
type Stats struct {
	ID                string `json:"id"`
	SampleRate        int    `json:"sample_rate"`
	Quantum           int    `json:"quantum"`
	Capacity          int    `json:"capacity"`
	RequestedCapacity int    `json:"requested_capacity"`
	Policy            string `json:"policy"`
	ReadPos           int    `json:"read_pos"`
	WritePos          int    `json:"write_pos"`
	Buffered          int    `json:"buffered"`
	Free              int    `json:"free"`
	State             string `json:"state"`
	Overwrite         bool   `json:"overwrite"`
	SourceHealthy     bool   `json:"source_healthy"`
	Listeners         int    `json:"listeners"`

	Produced       uint64 `json:"produced"`
	Committed      uint64 `json:"committed"`
	Dropped        uint64 `json:"dropped"`
	BacklogSamples int64  `json:"backlog_samples"`
	Rendered       uint64 `json:"rendered"`
	Underruns      uint64 `json:"underruns"`
}
