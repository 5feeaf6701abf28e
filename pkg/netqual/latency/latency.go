// Package latency implements the single-probe latency measurer used by the
// HTTP response and bufferbloat tests.
package latency

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"time"

	"github.com/robertodauria/netqual/pkg/netqual"
	"github.com/robertodauria/netqual/pkg/netqual/config"
)

// Measurer issues lightweight HEAD probes against the configured latency
// endpoints. It is stateless between calls and safe to reuse or discard.
type Measurer struct {
	client *http.Client
	urls   []string
	rnd    *rand.Rand
}

// New creates a Measurer for the configuration's latency endpoints.
func New(cfg *config.TestConfiguration) *Measurer {
	return &Measurer{
		client: &http.Client{Timeout: cfg.LatencyTimeout},
		urls:   cfg.LatencyURLs,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Measure issues one probe to a pseudo-randomly chosen endpoint and returns
// the elapsed wall-clock time in milliseconds. Individual failures are
// expected: callers tolerate and discard them.
func (m *Measurer) Measure(ctx context.Context) (float64, error) {
	if len(m.urls) == 0 {
		return 0, netqual.ErrNoEndpoints
	}
	return m.MeasureEndpoint(ctx, m.urls[m.rnd.Intn(len(m.urls))])
}

// MeasureEndpoint issues one timed HEAD request to the given URL.
func (m *Measurer) MeasureEndpoint(ctx context.Context, url string) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return 0, err
	}
	start := time.Now()
	resp, err := m.client.Do(req)
	if err != nil {
		return 0, err
	}
	elapsed := time.Since(start)
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode >= 400 {
		return 0, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
	}
	return float64(elapsed.Microseconds()) / 1000.0, nil
}
