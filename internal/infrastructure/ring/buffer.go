// ABOUTME: Fixed-capacity circular buffer of float32 audio samples
// ABOUTME: Single producer, single consumer; never blocks, never resizes
package ring

import "errors"

// ErrInvalidCapacity is returned by New for a zero or negative capacity.
var ErrInvalidCapacity = errors.New("ring: capacity must be positive")

// Policy selects how storage is sized and how cursors wrap.
type Policy int

const (
	// PowerOfTwo rounds storage up to the next power of two and wraps with a bitmask.
	PowerOfTwo Policy = iota
	// Exact sizes storage to the request and wraps with modulo.
	Exact
)

func (p Policy) String() string {
	switch p {
	case PowerOfTwo:
		return "pow2"
	case Exact:
		return "exact"
	}
	return "unknown"
}

// ParsePolicy accepts the names produced by Policy.String.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "pow2", "":
		return PowerOfTwo, nil
	case "exact":
		return Exact, nil
	}
	return 0, errors.New("ring: unknown policy " + s)
}

// State is the occupancy derived from the cursors and the full bit.
type State int

const (
	Empty State = iota
	Partial
	Full
)

func (s State) String() string {
	switch s {
	case Empty:
		return "empty"
	case Partial:
		return "partial"
	case Full:
		return "full"
	}
	return "unknown"
}

// Buffer holds samples between one producer and one consumer.
// It does no locking; the owner serialises access when the two sides run
// on different goroutines.
type Buffer struct {
	buf       []float32
	requested int
	policy    Policy
	mask      int // len(buf)-1 under PowerOfTwo

	r    int // next slot to read
	w    int // next slot to write
	full bool

	overwrite bool
}

// StorageSize is the number of slots New allocates for capacity under policy.
func StorageSize(capacity int, policy Policy) int {
	if policy != PowerOfTwo {
		return capacity
	}
	size := 1
	for size < capacity {
		size <<= 1
	}
	return size
}

func New(capacity int, policy Policy) (*Buffer, error) {
	if capacity <= 0 {
		return nil, ErrInvalidCapacity
	}

	size := StorageSize(capacity, policy)

	return &Buffer{
		buf:       make([]float32, size),
		requested: capacity,
		policy:    policy,
		mask:      size - 1,
	}, nil
}

func (b *Buffer) wrap(i int) int {
	if b.policy == PowerOfTwo {
		return i & b.mask
	}
	return i % len(b.buf)
}

// SetOverwrite switches between rejecting writes when full and discarding
// the oldest unread sample. It applies from the next write on.
func (b *Buffer) SetOverwrite(on bool) {
	b.overwrite = on
}

func (b *Buffer) Overwrite() bool {
	return b.overwrite
}

// Push appends one sample. It returns false, changing nothing, when the
// buffer is full.
//
// In overwrite mode the write that catches up with the read cursor pushes
// the read cursor forward instead of marking the buffer full, so at most
// Capacity()-1 samples are ever retained.
func (b *Buffer) Push(s float32) bool {
	if b.full {
		return false
	}

	b.buf[b.w] = s
	b.w = b.wrap(b.w + 1)

	if b.w == b.r {
		if b.overwrite {
			b.r = b.wrap(b.r + 1)
		} else {
			b.full = true
		}
	}

	return true
}

// PushBlock pushes samples in order and stops at the first rejected one.
// Samples written before the rejection stay in the buffer.
func (b *Buffer) PushBlock(samples []float32) bool {
	for _, s := range samples {
		if !b.Push(s) {
			return false
		}
	}
	return true
}

// Next pops the oldest sample.
func (b *Buffer) Next() (float32, bool) {
	if b.Empty() {
		return 0, false
	}

	s := b.buf[b.r]
	b.r = b.wrap(b.r + 1)
	b.full = false

	return s, true
}

// Get returns the sample stored at raw slot i, regardless of the cursors.
func (b *Buffer) Get(i int) (float32, bool) {
	if i < 0 || i >= len(b.buf) {
		return 0, false
	}
	return b.buf[i], true
}

// NextBlock pops exactly n samples or nothing at all.
func (b *Buffer) NextBlock(n int) ([]float32, bool) {
	if !b.blockReady(n) {
		return nil, false
	}

	out := make([]float32, n)
	b.readBlock(out)
	return out, true
}

// NextBlockInto is NextBlock(len(dst)) without the allocation.
func (b *Buffer) NextBlockInto(dst []float32) bool {
	if !b.blockReady(len(dst)) {
		return false
	}

	b.readBlock(dst)
	return true
}

// blockReady reports whether [r, r+n) stays clear of the write cursor.
func (b *Buffer) blockReady(n int) bool {
	if n <= 0 || n > len(b.buf) {
		return false
	}
	return n <= b.Len()
}

func (b *Buffer) readBlock(dst []float32) {
	n := len(dst)
	end := b.r + n

	if end <= len(b.buf) {
		copy(dst, b.buf[b.r:end])
	} else {
		// Tail first, then the head segment after the physical wrap.
		k := copy(dst, b.buf[b.r:])
		copy(dst[k:], b.buf[:n-k])
	}

	b.r = b.wrap(end)
	b.full = false
}

// Len returns the number of unread samples.
func (b *Buffer) Len() int {
	if b.full {
		return len(b.buf)
	}
	if b.w >= b.r {
		return b.w - b.r
	}
	return len(b.buf) - b.r + b.w
}

// Free returns how many pushes succeed before the buffer reports full.
func (b *Buffer) Free() int {
	return len(b.buf) - b.Len()
}

func (b *Buffer) Empty() bool {
	return b.r == b.w && !b.full
}

func (b *Buffer) Full() bool {
	return b.full
}

func (b *Buffer) State() State {
	switch {
	case b.full:
		return Full
	case b.r == b.w:
		return Empty
	}
	return Partial
}

// Capacity is the number of usable slots, after any rounding.
func (b *Buffer) Capacity() int {
	return len(b.buf)
}

// RequestedCapacity is the size passed to New.
func (b *Buffer) RequestedCapacity() int {
	return b.requested
}

func (b *Buffer) Policy() Policy {
	return b.policy
}

// ReadPos and WritePos are for introspection only.
func (b *Buffer) ReadPos() int {
	return b.r
}

func (b *Buffer) WritePos() int {
	return b.w
}
