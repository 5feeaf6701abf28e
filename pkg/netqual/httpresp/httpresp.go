// Package httpresp implements the HTTP response tester: a statistically
// robust estimate of typical request latency across a heterogeneous set of
// endpoints, plus a measure of consistency.
package httpresp

import (
	"context"
	"math/rand"
	"time"

	"github.com/robertodauria/netqual/pkg/netqual"
	"github.com/robertodauria/netqual/pkg/netqual/config"
	"github.com/robertodauria/netqual/pkg/netqual/latency"
	"github.com/robertodauria/netqual/pkg/netqual/results"
	"github.com/robertodauria/netqual/pkg/netqual/stats"
	"go.uber.org/zap"
)

// Tester runs the warm-up and interleaved measurement phases.
type Tester struct {
	measurer *latency.Measurer
	cfg      *config.TestConfiguration
	rnd      *rand.Rand
}

// New creates a Tester for the given configuration.
func New(cfg *config.TestConfiguration) *Tester {
	return &Tester{
		measurer: latency.New(cfg),
		cfg:      cfg,
		rnd:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Run measures every configured endpoint over SamplesPerEndpoint interleaved
// rounds and aggregates the outcome. It returns ErrAllTestsFailed when no
// endpoint yields a single successful measurement.
func (t *Tester) Run(ctx context.Context) (*results.HTTPResponseResult, error) {
	urls := t.cfg.LatencyURLs
	if len(urls) == 0 {
		return nil, netqual.ErrNoEndpoints
	}

	t.warmup(ctx, urls)

	// One measurement round issues a single timed request per endpoint, in a
	// freshly shuffled order. Interleaving avoids bursts to a single endpoint
	// and approximates independent random sampling across time and geography.
	perEndpoint := make(map[string][]float64, len(urls))
	order := make([]string, len(urls))
	copy(order, urls)
	for round := 0; round < t.cfg.SamplesPerEndpoint; round++ {
		t.rnd.Shuffle(len(order), func(i, j int) {
			order[i], order[j] = order[j], order[i]
		})
		for _, u := range order {
			ms, err := t.measurer.MeasureEndpoint(ctx, u)
			if err != nil {
				zap.L().Sugar().Debugw("Measurement failed",
					"url", u,
					"round", round,
					"error", err)
			} else {
				perEndpoint[u] = append(perEndpoint[u], ms)
			}
			netqual.Sleep(ctx, t.cfg.SampleDelay)
		}
	}

	return aggregate(perEndpoint, len(urls)*t.cfg.SamplesPerEndpoint)
}

// warmup issues one discarded request per endpoint to prime DNS caches,
// TCP/TLS session reuse and CDN edge caches.
func (t *Tester) warmup(ctx context.Context, urls []string) {
	for _, u := range urls {
		if _, err := t.measurer.MeasureEndpoint(ctx, u); err != nil {
			zap.L().Sugar().Debugw("Warm-up request failed", "url", u, "error", err)
		}
		netqual.Sleep(ctx, t.cfg.WarmupDelay)
	}
}

func aggregate(perEndpoint map[string][]float64, expected int) (*results.HTTPResponseResult, error) {
	var medians, stdevs, pooled []float64
	succeeded := 0
	for _, samples := range perEndpoint {
		if len(samples) == 0 {
			continue
		}
		medians = append(medians, stats.Median(samples))
		stdevs = append(stdevs, stats.StdDev(samples))
		pooled = append(pooled, samples...)
		succeeded += len(samples)
	}
	if succeeded == 0 {
		return nil, netqual.ErrAllTestsFailed
	}

	// Median of per-endpoint medians: endpoint medians represent meaningfully
	// different geographic distances, so a global mean would let one very
	// fast or very slow endpoint skew the result. Same reasoning for the
	// median of per-endpoint standard deviations: it reports typical
	// within-endpoint jitter, not cross-endpoint spread.
	return &results.HTTPResponseResult{
		AverageResponseTime: stats.Median(medians),
		Variance:            stats.Median(stdevs),
		FailureRate:         float64(expected-succeeded) / float64(expected),
		SampleCount:         succeeded,
		P50:                 stats.Percentile(pooled, 0.50),
		P95:                 stats.Percentile(pooled, 0.95),
	}, nil
}
