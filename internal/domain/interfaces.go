// ABOUTME: Domain interfaces for dependency inversion
// ABOUTME: Lets channels depend on sample producers, not concrete implementations
package domain

import "context"

// SampleSource produces mono float32 samples.
type SampleSource interface {
	Open(ctx context.Context) (SampleStream, error)
}

// SampleStream is an open producer. ReadSamples may return fewer samples
// than requested; io.EOF ends the stream.
type SampleStream interface {
	ReadSamples(dst []float32) (int, error)
	Close() error
}
