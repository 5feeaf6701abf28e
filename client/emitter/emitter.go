// Package emitter defines how measurement progress is surfaced to the
// consumer during a run.
package emitter

import (
	"github.com/robertodauria/netqual/pkg/netqual/results"
	"github.com/robertodauria/netqual/pkg/netqual/spec"
	"go.uber.org/zap"
)

// Emitter receives progress callbacks while a run executes.
type Emitter interface {
	OnStart(spec.TestKind)
	OnResult(spec.TestKind, interface{})
	OnError(spec.TestKind, error)
	OnComplete(*results.RunResult)
}

// LogEmitter logs progress via the global zap logger.
type LogEmitter struct{}

func (e *LogEmitter) OnStart(kind spec.TestKind) {
	zap.L().Sugar().Infof("%s: starting", kind)
}

func (e *LogEmitter) OnResult(kind spec.TestKind, result interface{}) {
	switch r := result.(type) {
	case *results.HTTPResponseResult:
		zap.L().Sugar().Infof("%s: %.1f ms typical (p50 %.1f, p95 %.1f), %.0f%% failed",
			kind, r.AverageResponseTime, r.P50, r.P95, r.FailureRate*100)
	case *results.BandwidthResult:
		zap.L().Sugar().Infof("%s: %.1f Mb/s down, %.1f Mb/s up",
			kind, r.DownloadMbps, r.UploadMbps)
	case *results.DNSResult:
		zap.L().Sugar().Infof("%s: %.1f ms median, %.0f%% failed",
			kind, r.MedianResolutionTime, r.FailureRate*100)
	case *results.BufferBloatResult:
		zap.L().Sugar().Infof("%s: +%.1f ms under load, grade %s",
			kind, r.Increase, r.Grade)
	default:
		zap.L().Sugar().Infof("%s: done", kind)
	}
}

func (e *LogEmitter) OnError(kind spec.TestKind, err error) {
	zap.L().Sugar().Errorf("%s: error (%v)", kind, err)
}

func (e *LogEmitter) OnComplete(run *results.RunResult) {
	if run.Score != nil {
		zap.L().Sugar().Infof("overall score: %.1f (%s)", run.Score.Overall, run.Quality)
	}
}
