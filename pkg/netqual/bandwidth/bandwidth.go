// Package bandwidth implements the adaptive download/upload throughput
// tester. A cheap quick probe decides whether a server earns a full
// multi-run test, so no time is wasted on a connection already known to be
// slow.
package bandwidth

import (
	"bytes"
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/m-lab/go/memoryless"
	"github.com/robertodauria/netqual/pkg/netqual"
	"github.com/robertodauria/netqual/pkg/netqual/config"
	"github.com/robertodauria/netqual/pkg/netqual/results"
	"github.com/robertodauria/netqual/pkg/netqual/spec"
	"go.uber.org/zap"
)

// Tester runs the download and upload throughput tests.
type Tester struct {
	client *http.Client
	cfg    *config.TestConfiguration
}

// New creates a Tester for the given configuration. Timeouts are applied
// per-request via contexts, since quick probes and full runs use different
// deadlines.
func New(cfg *config.TestConfiguration) *Tester {
	return &Tester{
		client: &http.Client{},
		cfg:    cfg,
	}
}

// Run measures download then upload throughput and returns both in Mbps.
func (t *Tester) Run(ctx context.Context) (*results.BandwidthResult, error) {
	download, err := t.download(ctx)
	if err != nil {
		return nil, fmt.Errorf("download: %w", err)
	}
	upload, err := t.upload(ctx)
	if err != nil {
		return nil, fmt.Errorf("upload: %w", err)
	}
	return &results.BandwidthResult{
		DownloadMbps: download,
		UploadMbps:   upload,
	}, nil
}

// download tries each candidate server in order. Per server: a bounded quick
// probe measures a provisional speed; below SlowConnectionMbps the probe is
// accepted as final (a full test is disproportionately time-costly on a slow
// link); otherwise, if the probe is within CompetitiveRatio of the best
// speed seen so far, a full multi-run test decides the server's speed. The
// best-so-far tracking makes the branch order-dependent on purpose: fewer
// full tests run on clearly slow connections.
func (t *Tester) download(ctx context.Context) (float64, error) {
	best := 0.0
	for _, u := range t.cfg.DownloadURLs {
		quick, err := t.timedDownload(ctx, u, spec.QuickProbeBytes, t.cfg.QuickProbeTimeout)
		if err != nil {
			zap.L().Sugar().Debugw("Quick probe failed", "url", u, "error", err)
			continue
		}
		zap.L().Sugar().Debugw("Quick probe", "url", u, "mbps", quick)

		serverSpeed := quick
		if quick >= spec.SlowConnectionMbps && quick >= spec.CompetitiveRatio*best {
			if full := t.fullDownload(ctx, u); full > 0 {
				serverSpeed = full
			}
		}
		if serverSpeed > best {
			best = serverSpeed
		}
	}
	if best <= 0 {
		return 0, netqual.ErrAllTestsFailed
	}
	return best, nil
}

// fullDownload runs BandwidthRunsPerServer unbounded downloads and returns
// the maximum observed speed, or 0 if every run failed.
func (t *Tester) fullDownload(ctx context.Context, url string) float64 {
	max := 0.0
	for run := 0; run < t.cfg.BandwidthRunsPerServer; run++ {
		speed, err := t.timedDownload(ctx, url, 0, t.cfg.BandwidthTimeout)
		if err != nil {
			zap.L().Sugar().Debugw("Full download run failed",
				"url", url,
				"run", run,
				"error", err)
			continue
		}
		if speed > max {
			max = speed
		}
	}
	return max
}

// timedDownload fetches the URL (bounded via a Range header when rangeBytes
// is positive) and returns the measured speed in Mbps.
func (t *Tester) timedDownload(ctx context.Context, url string, rangeBytes int64, timeout time.Duration) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	if rangeBytes > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=0-%d", rangeBytes-1))
	}

	start := time.Now()
	resp, err := t.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		return 0, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
	}

	var numBytes int64
	go t.reportProgress(ctx, start, &numBytes)
	n, err := copyCounted(resp.Body, &numBytes)
	if err != nil {
		return 0, err
	}
	return mbps(n, time.Since(start)), nil
}

// reportProgress logs instantaneous throughput at semi-random intervals
// while a transfer is in flight.
func (t *Tester) reportProgress(ctx context.Context, start time.Time, numBytes *int64) {
	ticker, err := memoryless.NewTicker(ctx, memoryless.Config{
		Min:      100 * time.Millisecond,
		Expected: 250 * time.Millisecond,
		Max:      400 * time.Millisecond,
	})
	if err != nil {
		return
	}
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-ticker.C:
			if !ok {
				return
			}
			n := atomic.LoadInt64(numBytes)
			zap.L().Sugar().Debugw("Transfer progress",
				"bytes", n,
				"mbps", mbps(n, time.Since(start)))
		}
	}
}

// upload generates one fixed-size payload and tries each candidate endpoint
// in order, tracking the best observed speed. Once the best speed is
// positive but below SlowUploadMbps the remaining servers are skipped:
// they are unlikely to help and not worth the time cost on a clearly slow
// connection.
func (t *Tester) upload(ctx context.Context) (float64, error) {
	payload := make([]byte, t.cfg.UploadChunkBytes)
	if _, err := rand.Read(payload); err != nil {
		return 0, err
	}

	best := 0.0
	for _, u := range t.cfg.UploadURLs {
		speed, err := t.timedUpload(ctx, u, payload)
		if err != nil {
			zap.L().Sugar().Debugw("Upload failed", "url", u, "error", err)
			continue
		}
		if speed > best {
			best = speed
		}
		if best > 0 && best < spec.SlowUploadMbps {
			zap.L().Sugar().Debugw("Slow upload, skipping remaining servers", "mbps", best)
			break
		}
	}
	if best <= 0 {
		return 0, netqual.ErrAllTestsFailed
	}
	return best, nil
}

func (t *Tester) timedUpload(ctx context.Context, url string, payload []byte) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, t.cfg.BandwidthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	start := time.Now()
	resp, err := t.client.Do(req)
	if err != nil {
		return 0, err
	}
	elapsed := time.Since(start)
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode >= 400 {
		return 0, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
	}
	return mbps(int64(len(payload)), elapsed), nil
}

// copyCounted discards the reader's content while keeping a byte count the
// progress reporter can read concurrently.
func copyCounted(r io.Reader, numBytes *int64) (int64, error) {
	buf := make([]byte, 32*1024)
	var total int64
	for {
		n, err := r.Read(buf)
		if n > 0 {
			total += int64(n)
			atomic.StoreInt64(numBytes, total)
		}
		if err == io.EOF {
			return total, nil
		}
		if err != nil {
			return total, err
		}
	}
}

func mbps(numBytes int64, elapsed time.Duration) float64 {
	secs := elapsed.Seconds()
	if secs <= 0 {
		return 0
	}
	return float64(numBytes) * 8 / 1e6 / secs
}
