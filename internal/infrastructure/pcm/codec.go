// ABOUTME: Raw little-endian float32 PCM encoding and decoding
// ABOUTME: Used on the wire between upstream sources, the buffer, and listeners
package pcm

import (
	"encoding/binary"
	"io"
	"math"
)

// BytesPerSample is the width of one mono f32le sample.
const BytesPerSample = 4

// Encode appends samples to dst as f32le and returns the extended slice.
func Encode(dst []byte, samples []float32) []byte {
	for _, s := range samples {
		dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(s))
	}
	return dst
}

// Reader decodes samples from an f32le byte stream. A sample split across
// two underlying reads is held back until its remaining bytes arrive.
type Reader struct {
	r       io.Reader
	raw     []byte
	pending int // undecoded bytes at the front of raw
}

func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

// ReadSamples fills dst with up to len(dst) samples.
func (d *Reader) ReadSamples(dst []float32) (int, error) {
	if len(dst) == 0 {
		return 0, nil
	}

	need := len(dst) * BytesPerSample
	if cap(d.raw) < need {
		grown := make([]byte, need)
		copy(grown, d.raw[:d.pending])
		d.raw = grown
	}
	d.raw = d.raw[:need]

	n, err := d.r.Read(d.raw[d.pending:])
	total := d.pending + n
	whole := total / BytesPerSample

	for i := 0; i < whole; i++ {
		dst[i] = math.Float32frombits(binary.LittleEndian.Uint32(d.raw[i*BytesPerSample:]))
	}

	d.pending = copy(d.raw, d.raw[whole*BytesPerSample:total])

	if err == io.EOF && d.pending > 0 {
		err = io.ErrUnexpectedEOF
	}
	return whole, err
}
