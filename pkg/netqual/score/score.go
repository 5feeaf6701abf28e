// Package score fuses the four measurement results into a single weighted
// network quality score.
//
// Calculate is a pure function: identical inputs always yield identical
// output, and every valid input value, including zero and negative edge
// cases, maps through the threshold tables without error.
package score

import "github.com/robertodauria/netqual/pkg/netqual/results"

// Category weights. Latency dominates perceived browsing quality while
// bandwidth has diminishing returns above a modest threshold.
const (
	weightHTTPResponse = 0.60
	weightBandwidth    = 0.25
	weightDNS          = 0.10
	weightBufferBloat  = 0.05
)

// Direction weights within the bandwidth sub-score.
const (
	weightDownload = 0.85
	weightUpload   = 0.15
)

// Calculate derives the four weighted sub-scores and the overall 0-100
// composite score.
func Calculate(httpResp results.HTTPResponseResult, bandwidth results.BandwidthResult,
	dns results.DNSResult, bufferBloat results.BufferBloatResult) results.NetworkScore {
	httpScore := httpResponseScore(httpResp)
	bandwidthScore := weightDownload*downloadScore(bandwidth.DownloadMbps) +
		weightUpload*uploadScore(bandwidth.UploadMbps)
	dnsScore := resolutionScore(dns.MedianResolutionTime)
	bloatScore := bufferBloatScore(bufferBloat.Grade)

	return results.NetworkScore{
		Overall: weightHTTPResponse*httpScore +
			weightBandwidth*bandwidthScore +
			weightDNS*dnsScore +
			weightBufferBloat*bloatScore,
		HTTPResponse: httpScore,
		Bandwidth:    bandwidthScore,
		DNS:          dnsScore,
		BufferBloat:  bloatScore,
	}
}

// httpResponseScore starts from the response-time base score, then subtracts
// penalties for inconsistency (coefficient of variation), tail spread
// (p95-p50) and failures. The result is clamped at zero.
func httpResponseScore(r results.HTTPResponseResult) float64 {
	score := responseTimeScore(r.AverageResponseTime)
	score -= consistencyPenalty(coefficientOfVariation(r))
	score -= spreadPenalty(r.P95 - r.P50)
	score -= r.FailureRate * 50
	if score < 0 {
		return 0
	}
	return score
}

// coefficientOfVariation normalizes the jitter measure by the typical
// response time, so consistency compares fairly across endpoints with
// different baseline latencies.
func coefficientOfVariation(r results.HTTPResponseResult) float64 {
	if r.AverageResponseTime <= 0 {
		return 0
	}
	return r.Variance / r.AverageResponseTime
}

func responseTimeScore(ms float64) float64 {
	switch {
	case ms < 50:
		return 100 // excellent
	case ms < 100:
		return 85
	case ms < 150:
		return 70
	case ms < 200:
		return 55
	case ms < 300:
		return 30
	default:
		return 10 // very poor
	}
}

func consistencyPenalty(cv float64) float64 {
	switch {
	case cv < 0.1:
		return 0
	case cv < 0.2:
		return 10
	case cv < 0.3:
		return 20
	case cv < 0.45:
		return 35
	case cv < 0.75:
		return 50
	default:
		return 70
	}
}

func spreadPenalty(spread float64) float64 {
	if spread <= 0 {
		return 0
	}
	switch {
	case spread < 50:
		return 0
	case spread < 100:
		return 5
	case spread < 200:
		return 10
	case spread < 400:
		return 15
	default:
		return 20
	}
}

func downloadScore(mbps float64) float64 {
	switch {
	case mbps >= 100:
		return 100
	case mbps >= 50:
		return 85
	case mbps >= 25:
		return 70
	case mbps >= 10:
		return 55
	case mbps >= 5:
		return 40
	case mbps >= 2:
		return 25
	default:
		return 10
	}
}

func uploadScore(mbps float64) float64 {
	switch {
	case mbps >= 25:
		return 100
	case mbps >= 15:
		return 85
	case mbps >= 10:
		return 70
	case mbps >= 5:
		return 55
	case mbps >= 2.5:
		return 40
	case mbps >= 1:
		return 25
	default:
		return 10
	}
}

func resolutionScore(ms float64) float64 {
	switch {
	case ms < 20:
		return 100
	case ms < 50:
		return 85
	case ms < 100:
		return 70
	case ms < 150:
		return 55
	case ms < 200:
		return 40
	case ms < 300:
		return 25
	default:
		return 10
	}
}

func bufferBloatScore(grade results.Grade) float64 {
	switch grade {
	case results.GradeA:
		return 90
	case results.GradeB:
		return 70
	case results.GradeC:
		return 50
	case results.GradeD:
		return 30
	default:
		return 10
	}
}
