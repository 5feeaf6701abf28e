// Package netqual contains the shared pieces of the network quality
// measurement engine: the error taxonomy and small helpers used by the
// individual testers.
package netqual

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNoEndpoints is returned when a tester has no endpoints to probe.
	ErrNoEndpoints = errors.New("no endpoints configured")

	// ErrAllTestsFailed is returned when every candidate endpoint, server or
	// domain for a measurement category failed or timed out.
	ErrAllTestsFailed = errors.New("all tests failed")

	// ErrInsufficientData is returned when a measurement phase completed
	// without collecting a single usable sample.
	ErrInsufficientData = errors.New("insufficient data")
)

// Sleep waits for d or until ctx is canceled, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
