// Package dnsprobe implements the name-resolution timing test.
package dnsprobe

import (
	"context"
	"net"
	"time"

	"github.com/robertodauria/netqual/pkg/netqual"
	"github.com/robertodauria/netqual/pkg/netqual/config"
	"github.com/robertodauria/netqual/pkg/netqual/results"
	"github.com/robertodauria/netqual/pkg/netqual/stats"
	"go.uber.org/zap"
)

// Resolver resolves host names. *net.Resolver implements it.
type Resolver interface {
	LookupHost(ctx context.Context, host string) ([]string, error)
}

// Tester resolves the configured domain list and reports median resolution
// time and failure rate.
type Tester struct {
	resolver Resolver
	cfg      *config.TestConfiguration
}

// New creates a Tester using the system resolver.
func New(cfg *config.TestConfiguration) *Tester {
	return NewWithResolver(cfg, net.DefaultResolver)
}

// NewWithResolver creates a Tester with a custom resolver.
func NewWithResolver(cfg *config.TestConfiguration, resolver Resolver) *Tester {
	return &Tester{
		resolver: resolver,
		cfg:      cfg,
	}
}

// Run resolves every configured domain sequentially, separated by a short
// delay. It returns ErrAllTestsFailed when no domain resolves.
func (t *Tester) Run(ctx context.Context) (*results.DNSResult, error) {
	if len(t.cfg.DNSDomains) == 0 {
		return nil, netqual.ErrNoEndpoints
	}

	var times []float64
	failures := 0
	for _, domain := range t.cfg.DNSDomains {
		ms, err := t.resolve(ctx, domain)
		if err != nil {
			zap.L().Sugar().Debugw("Resolution failed", "domain", domain, "error", err)
			failures++
		} else {
			times = append(times, ms)
		}
		netqual.Sleep(ctx, t.cfg.SampleDelay)
	}
	if len(times) == 0 {
		return nil, netqual.ErrAllTestsFailed
	}

	return &results.DNSResult{
		MedianResolutionTime: stats.Median(times),
		FailureRate:          float64(failures) / float64(len(t.cfg.DNSDomains)),
	}, nil
}

func (t *Tester) resolve(ctx context.Context, domain string) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, t.cfg.DNSTimeout)
	defer cancel()
	start := time.Now()
	if _, err := t.resolver.LookupHost(ctx, domain); err != nil {
		return 0, err
	}
	return float64(time.Since(start).Microseconds()) / 1000.0, nil
}
