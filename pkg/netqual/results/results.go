// Package results contains the immutable result types produced by the
// netqual testers. Every struct here is a point-in-time snapshot: produced
// once per test run and never mutated after construction.
package results

import "time"

// HTTPResponseResult summarizes the interleaved multi-endpoint latency test.
type HTTPResponseResult struct {
	// AverageResponseTime is the median of per-endpoint medians, in
	// milliseconds. A median-of-medians keeps one very fast or very slow
	// endpoint from skewing the estimate.
	AverageResponseTime float64

	// Variance is the median of per-endpoint standard deviations, in
	// milliseconds: typical within-endpoint jitter rather than cross-endpoint
	// geographic spread.
	Variance float64

	// FailureRate is (expected attempts - successful measurements) divided
	// by expected attempts.
	FailureRate float64

	// SampleCount is the number of successful measurements.
	SampleCount int

	// P50 and P95 are percentiles of the pooled sample list across all
	// endpoints, in milliseconds.
	P50 float64
	P95 float64
}

// BandwidthResult holds the best observed throughput in each direction.
type BandwidthResult struct {
	DownloadMbps float64
	UploadMbps   float64
}

// DNSResult summarizes the name-resolution test.
type DNSResult struct {
	// MedianResolutionTime is the median time to resolve a domain, in
	// milliseconds, across successful resolutions.
	MedianResolutionTime float64

	// FailureRate is the fraction of domains that failed to resolve.
	FailureRate float64
}

// Grade is a bufferbloat letter grade.
type Grade string

const (
	GradeA = Grade("A")
	GradeB = Grade("B")
	GradeC = Grade("C")
	GradeD = Grade("D")
	GradeF = Grade("F")
)

// BufferBloatResult summarizes the latency-under-load test.
type BufferBloatResult struct {
	// BaselineLatency and LoadedLatency are median latencies in milliseconds,
	// measured idle and under a saturating download respectively.
	BaselineLatency float64
	LoadedLatency   float64

	// Increase is LoadedLatency - BaselineLatency.
	Increase float64

	Grade Grade
}

// NetworkScore is the weighted fusion of the four component results. All
// values are in [0, 100].
type NetworkScore struct {
	Overall      float64
	HTTPResponse float64
	Bandwidth    float64
	DNS          float64
	BufferBloat  float64
}

// NetworkQuality is a coarse classification of the overall score.
type NetworkQuality string

const (
	QualityExcellent = NetworkQuality("excellent")
	QualityGood      = NetworkQuality("good")
	QualityFair      = NetworkQuality("fair")
	QualityPoor      = NetworkQuality("poor")
)

// Quality classifies the overall score via fixed thresholds.
func (s NetworkScore) Quality() NetworkQuality {
	switch {
	case s.Overall >= 80:
		return QualityExcellent
	case s.Overall >= 60:
		return QualityGood
	case s.Overall >= 40:
		return QualityFair
	default:
		return QualityPoor
	}
}

// RunResult is the struct that is serialized as JSON to disk as the archival
// record of a full measurement run. Component results that failed to produce
// data are nil.
type RunResult struct {
	// GitShortCommit is the Git commit (short form) of the running code.
	GitShortCommit string
	// MeasurementID identifies this run across all archived records.
	MeasurementID string

	StartTime time.Time
	EndTime   time.Time

	HTTPResponse *HTTPResponseResult `json:",omitempty"`
	Bandwidth    *BandwidthResult    `json:",omitempty"`
	DNS          *DNSResult          `json:",omitempty"`
	BufferBloat  *BufferBloatResult  `json:",omitempty"`

	Score   *NetworkScore  `json:",omitempty"`
	Quality NetworkQuality `json:",omitempty"`
}
