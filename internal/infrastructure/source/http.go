// ABOUTME: HTTP sample source reading raw f32le PCM from an upstream URL
// ABOUTME: Handles upstream connection with timeouts and proper headers
package source

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/harper/sample-ring/internal/domain"
	"github.com/harper/sample-ring/internal/infrastructure/pcm"
)

type HTTPConfig struct {
	URL            string
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	Headers        map[string]string
}

type HTTPSource struct {
	cfg    HTTPConfig
	client *http.Client
}

func NewHTTP(cfg HTTPConfig) *HTTPSource {
	transport := &http.Transport{
		DisableCompression:    true,
		ExpectContinueTimeout: 1 * time.Second,
		ResponseHeaderTimeout: cfg.ReadTimeout,
		DialContext: (&net.Dialer{
			Timeout: cfg.ConnectTimeout,
		}).DialContext,
	}

	client := &http.Client{
		Transport: transport,
		Timeout:   0, // No total timeout for streaming
	}

	return &HTTPSource{
		cfg:    cfg,
		client: client,
	}
}

func (h *HTTPSource) Open(ctx context.Context) (domain.SampleStream, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", h.cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/octet-stream")

	// Set custom headers
	for k, v := range h.cfg.Headers {
		req.Header.Set(k, v)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	return &httpStream{Reader: pcm.NewReader(resp.Body), body: resp.Body}, nil
}

type httpStream struct {
	*pcm.Reader
	body io.Closer
}

func (s *httpStream) Close() error {
	return s.body.Close()
}
