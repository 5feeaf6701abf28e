// Package bufferbloat implements the latency-under-load test: it compares
// idle latency against latency measured while a background download
// saturates the connection, and grades the difference.
package bufferbloat

import (
	"context"
	"io"
	"net/http"

	"github.com/robertodauria/netqual/pkg/netqual"
	"github.com/robertodauria/netqual/pkg/netqual/config"
	"github.com/robertodauria/netqual/pkg/netqual/latency"
	"github.com/robertodauria/netqual/pkg/netqual/results"
	"github.com/robertodauria/netqual/pkg/netqual/spec"
	"github.com/robertodauria/netqual/pkg/netqual/stats"
	"go.uber.org/zap"
)

// Tester measures baseline and loaded latency.
type Tester struct {
	measurer *latency.Measurer
	// The saturation client deliberately has no timeout: the download runs
	// until the loaded measurement phase cancels its context.
	client *http.Client
	cfg    *config.TestConfiguration
}

// New creates a Tester for the given configuration.
func New(cfg *config.TestConfiguration) *Tester {
	return &Tester{
		measurer: latency.New(cfg),
		client:   &http.Client{},
		cfg:      cfg,
	}
}

// Run measures baseline latency, starts the saturation download, measures
// loaded latency while it runs, then cancels the download and grades the
// latency increase. It returns ErrInsufficientData when either phase
// collects zero successful samples.
func (t *Tester) Run(ctx context.Context) (*results.BufferBloatResult, error) {
	baseline := t.sample(ctx, spec.BaselineSamples)
	if len(baseline) == 0 {
		return nil, netqual.ErrInsufficientData
	}

	loadCtx, cancelLoad := context.WithCancel(ctx)
	defer cancelLoad()
	done := make(chan struct{})
	go func() {
		defer close(done)
		t.saturate(loadCtx)
	}()

	// Let the download ramp up before sampling under load.
	netqual.Sleep(ctx, t.cfg.RampUpDelay)
	loaded := t.sample(ctx, spec.LoadedSamples)
	cancelLoad()
	<-done

	if len(loaded) == 0 {
		return nil, netqual.ErrInsufficientData
	}

	baselineMs := stats.Median(baseline)
	loadedMs := stats.Median(loaded)
	increase := loadedMs - baselineMs
	return &results.BufferBloatResult{
		BaselineLatency: baselineMs,
		LoadedLatency:   loadedMs,
		Increase:        increase,
		Grade:           gradeFor(increase),
	}, nil
}

// sample takes count latency measurements against randomly chosen endpoints,
// separated by a short delay. Failed measurements are discarded.
func (t *Tester) sample(ctx context.Context, count int) []float64 {
	var samples []float64
	for i := 0; i < count; i++ {
		ms, err := t.measurer.Measure(ctx)
		if err != nil {
			zap.L().Sugar().Debugw("Latency sample failed", "error", err)
		} else {
			samples = append(samples, ms)
		}
		netqual.Sleep(ctx, t.cfg.SampleDelay)
	}
	return samples
}

// saturate downloads from the first configured bandwidth server until the
// context is canceled. Cancellation is cooperative: the in-flight request
// aborts with the context and the loop exits.
func (t *Tester) saturate(ctx context.Context) {
	if len(t.cfg.DownloadURLs) == 0 {
		zap.L().Sugar().Warn("No download URL for saturation, skipping load")
		return
	}
	url := t.cfg.DownloadURLs[0]
	for ctx.Err() == nil {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return
		}
		resp, err := t.client.Do(req)
		if err != nil {
			zap.L().Sugar().Debugw("Saturation download ended", "error", err)
			// Do not spin on a persistently failing server.
			netqual.Sleep(ctx, t.cfg.SampleDelay)
			continue
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}
}

// gradeFor maps a latency increase in milliseconds to a letter grade.
func gradeFor(increase float64) results.Grade {
	switch {
	case increase < 50:
		return results.GradeA
	case increase < 100:
		return results.GradeB
	case increase < 200:
		return results.GradeC
	case increase < 400:
		return results.GradeD
	default:
		return results.GradeF
	}
}
