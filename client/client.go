// Package client orchestrates a full measurement run: the four testers
// execute sequentially against one TestConfiguration and their results are
// fused into a NetworkScore.
package client

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/m-lab/go/prometheusx"
	"github.com/robertodauria/netqual/client/emitter"
	"github.com/robertodauria/netqual/internal/persistence"
	"github.com/robertodauria/netqual/pkg/netqual/bandwidth"
	"github.com/robertodauria/netqual/pkg/netqual/bufferbloat"
	"github.com/robertodauria/netqual/pkg/netqual/config"
	"github.com/robertodauria/netqual/pkg/netqual/dnsprobe"
	"github.com/robertodauria/netqual/pkg/netqual/httpresp"
	"github.com/robertodauria/netqual/pkg/netqual/results"
	"github.com/robertodauria/netqual/pkg/netqual/score"
	"github.com/robertodauria/netqual/pkg/netqual/spec"
	"go.uber.org/zap"
)

// PartialResultsError reports categories that produced no result. The run
// still carries every result that did succeed, but no overall score:
// substituting worst-case sub-scores would misreport a measurement failure
// as a bad network.
type PartialResultsError struct {
	Failed []spec.TestKind
}

func (e *PartialResultsError) Error() string {
	kinds := make([]string, len(e.Failed))
	for i, k := range e.Failed {
		kinds[i] = string(k)
	}
	return fmt.Sprintf("no result for categories: %s", strings.Join(kinds, ", "))
}

// Client runs the measurement suite. It is stateless across runs.
type Client struct {
	config   *config.TestConfiguration
	emitter  emitter.Emitter
	resolver dnsprobe.Resolver
	dataDir  string
}

// New creates a Client with the standard configuration.
func New() *Client {
	return NewWithConfig(config.NewDefault())
}

// NewWithConfig creates a Client for the given configuration.
func NewWithConfig(cfg *config.TestConfiguration) *Client {
	return &Client{
		config:  cfg,
		emitter: &emitter.LogEmitter{},
	}
}

// SetEmitter replaces the default log emitter.
func (c *Client) SetEmitter(e emitter.Emitter) {
	c.emitter = e
}

// SetResolver replaces the system DNS resolver.
func (c *Client) SetResolver(r dnsprobe.Resolver) {
	c.resolver = r
}

// SetDataDir enables archival of run results as JSON under dir.
func (c *Client) SetDataDir(dir string) {
	c.dataDir = dir
}

// Run executes the four testers in sequence and computes the overall score.
// When one or more categories fail entirely, the partial run is returned
// together with a *PartialResultsError and Score is left nil.
func (c *Client) Run(ctx context.Context) (*results.RunResult, error) {
	run := &results.RunResult{
		GitShortCommit: prometheusx.GitShortCommit,
		MeasurementID:  uuid.NewString(),
		StartTime:      time.Now().UTC(),
	}
	var failed []spec.TestKind

	c.emitter.OnStart(spec.TestHTTPResponse)
	if r, err := httpresp.New(c.config).Run(ctx); err != nil {
		c.emitter.OnError(spec.TestHTTPResponse, err)
		failed = append(failed, spec.TestHTTPResponse)
	} else {
		run.HTTPResponse = r
		c.emitter.OnResult(spec.TestHTTPResponse, r)
	}

	c.emitter.OnStart(spec.TestBandwidth)
	if r, err := bandwidth.New(c.config).Run(ctx); err != nil {
		c.emitter.OnError(spec.TestBandwidth, err)
		failed = append(failed, spec.TestBandwidth)
	} else {
		run.Bandwidth = r
		c.emitter.OnResult(spec.TestBandwidth, r)
	}

	c.emitter.OnStart(spec.TestDNS)
	if r, err := c.newDNSTester().Run(ctx); err != nil {
		c.emitter.OnError(spec.TestDNS, err)
		failed = append(failed, spec.TestDNS)
	} else {
		run.DNS = r
		c.emitter.OnResult(spec.TestDNS, r)
	}

	c.emitter.OnStart(spec.TestBufferBloat)
	if r, err := bufferbloat.New(c.config).Run(ctx); err != nil {
		c.emitter.OnError(spec.TestBufferBloat, err)
		failed = append(failed, spec.TestBufferBloat)
	} else {
		run.BufferBloat = r
		c.emitter.OnResult(spec.TestBufferBloat, r)
	}

	run.EndTime = time.Now().UTC()

	if len(failed) == 0 {
		s := score.Calculate(*run.HTTPResponse, *run.Bandwidth, *run.DNS, *run.BufferBloat)
		run.Score = &s
		run.Quality = s.Quality()
	}
	c.emitter.OnComplete(run)
	c.archive(run)

	if len(failed) > 0 {
		return run, &PartialResultsError{Failed: failed}
	}
	return run, nil
}

func (c *Client) newDNSTester() *dnsprobe.Tester {
	if c.resolver != nil {
		return dnsprobe.NewWithResolver(c.config, c.resolver)
	}
	return dnsprobe.New(c.config)
}

func (c *Client) archive(run *results.RunResult) {
	if c.dataDir == "" {
		return
	}
	fp, err := persistence.New(c.dataDir, run.MeasurementID)
	if err != nil {
		zap.L().Sugar().Error("Cannot create result file: ", err)
		return
	}
	defer fp.Close()
	if err := fp.Write(run); err != nil {
		zap.L().Sugar().Error("Failed to write result: ", err)
	}
}
