package dnsprobe

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/robertodauria/netqual/pkg/netqual"
	"github.com/robertodauria/netqual/pkg/netqual/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeResolver struct {
	delay time.Duration
	fail  map[string]bool
}

func (r *fakeResolver) LookupHost(ctx context.Context, host string) ([]string, error) {
	if r.delay > 0 {
		time.Sleep(r.delay)
	}
	if r.fail[host] {
		return nil, errors.New("no such host")
	}
	return []string{"192.0.2.1"}, nil
}

func testConfig(domains ...string) *config.TestConfiguration {
	cfg := config.NewDefault()
	cfg.DNSDomains = domains
	cfg.DNSTimeout = time.Second
	cfg.SampleDelay = time.Millisecond
	return cfg
}

func TestRunNoDomains(t *testing.T) {
	_, err := NewWithResolver(testConfig(), &fakeResolver{}).Run(context.Background())
	assert.ErrorIs(t, err, netqual.ErrNoEndpoints)
}

func TestRunAllSucceed(t *testing.T) {
	cfg := testConfig("a.example", "b.example", "c.example")
	r, err := NewWithResolver(cfg, &fakeResolver{delay: 2 * time.Millisecond}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0.0, r.FailureRate)
	assert.Greater(t, r.MedianResolutionTime, 0.0)
}

func TestRunPartialFailures(t *testing.T) {
	cfg := testConfig("a.example", "b.example", "c.example", "d.example")
	resolver := &fakeResolver{fail: map[string]bool{"b.example": true, "d.example": true}}
	r, err := NewWithResolver(cfg, resolver).Run(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 0.5, r.FailureRate, 1e-9)
}

func TestRunAllFailed(t *testing.T) {
	cfg := testConfig("a.example", "b.example")
	resolver := &fakeResolver{fail: map[string]bool{"a.example": true, "b.example": true}}
	_, err := NewWithResolver(cfg, resolver).Run(context.Background())
	assert.ErrorIs(t, err, netqual.ErrAllTestsFailed)
}
