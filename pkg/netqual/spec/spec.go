// Package spec contains the constants shared by the netqual testers and the
// test endpoint server.
package spec

const (
	LatencyPath  = "/netqual/v1/latency"
	DownloadPath = "/netqual/v1/download"
	UploadPath   = "/netqual/v1/upload"
)

const (
	// SlowConnectionMbps is the download speed below which a full multi-run
	// test costs more time than the extra accuracy is worth. The quick-probe
	// result is accepted as final for that server.
	SlowConnectionMbps = 10.0

	// CompetitiveRatio is the fraction of the best speed seen so far that a
	// quick probe must reach before a server earns a full test.
	CompetitiveRatio = 0.8

	// SlowUploadMbps is the upload speed below which remaining upload servers
	// are skipped: on a clearly slow link they are unlikely to do better.
	SlowUploadMbps = 2.0

	// QuickProbeBytes bounds the quick-probe download via a Range header.
	QuickProbeBytes = 10 * 1024 * 1024
)

const (
	// BaselineSamples and LoadedSamples are the sample counts for the two
	// bufferbloat measurement phases.
	BaselineSamples = 10
	LoadedSamples   = 15
)

// TestKind indicates the measurement category.
type TestKind string

const (
	// TestHTTPResponse is the interleaved multi-endpoint latency test.
	TestHTTPResponse = TestKind("http_response")

	// TestBandwidth is the adaptive download/upload throughput test.
	TestBandwidth = TestKind("bandwidth")

	// TestDNS is the name-resolution timing test.
	TestDNS = TestKind("dns")

	// TestBufferBloat is the latency-under-load test.
	TestBufferBloat = TestKind("bufferbloat")
)
