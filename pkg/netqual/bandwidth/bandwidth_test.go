package bandwidth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/robertodauria/netqual/pkg/netqual"
	"github.com/robertodauria/netqual/pkg/netqual/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.TestConfiguration {
	cfg := config.NewDefault()
	cfg.BandwidthRunsPerServer = 1
	cfg.UploadChunkBytes = 64 * 1024
	cfg.QuickProbeTimeout = 5 * time.Second
	cfg.BandwidthTimeout = 5 * time.Second
	return cfg
}

// downloadServer serves quickBytes on Range requests and fullBytes
// otherwise, sleeping delay first so the measured speed is predictable.
func downloadServer(rangeCount, fullCount *int32, delay time.Duration, quickBytes, fullBytes int) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		time.Sleep(delay)
		if req.Header.Get("Range") != "" {
			atomic.AddInt32(rangeCount, 1)
			rw.WriteHeader(http.StatusPartialContent)
			rw.Write(make([]byte, quickBytes))
			return
		}
		atomic.AddInt32(fullCount, 1)
		rw.Write(make([]byte, fullBytes))
	}))
}

func TestDownloadSlowConnectionSkipsFullTest(t *testing.T) {
	var rangeCount, fullCount int32
	// ~100KB over 300ms is below the slow-connection threshold.
	srv := downloadServer(&rangeCount, &fullCount, 300*time.Millisecond, 100*1024, 1<<21)
	defer srv.Close()

	cfg := testConfig()
	cfg.DownloadURLs = []string{srv.URL}
	speed, err := New(cfg).download(context.Background())
	require.NoError(t, err)

	// The quick-probe result is final: no full test was triggered.
	assert.Equal(t, int32(1), atomic.LoadInt32(&rangeCount))
	assert.Equal(t, int32(0), atomic.LoadInt32(&fullCount))
	assert.Less(t, speed, 10.0)
	assert.Greater(t, speed, 0.0)
}

func TestDownloadFastConnectionRunsFullTest(t *testing.T) {
	var rangeCount, fullCount int32
	srv := downloadServer(&rangeCount, &fullCount, 0, 512*1024, 1<<21)
	defer srv.Close()

	cfg := testConfig()
	cfg.DownloadURLs = []string{srv.URL}
	speed, err := New(cfg).download(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int32(1), atomic.LoadInt32(&rangeCount))
	// BandwidthRunsPerServer = 1: exactly one full run decides the speed.
	assert.Equal(t, int32(1), atomic.LoadInt32(&fullCount))
	assert.Greater(t, speed, 0.0)
}

func TestDownloadUncompetitiveServerSkipsFullTest(t *testing.T) {
	var range1, full1, range2, full2 int32
	fast := downloadServer(&range1, &full1, 0, 512*1024, 1<<21)
	defer fast.Close()
	// The second server's probe lands around the slow threshold, far below
	// the best speed seen on the first server: either branch skips its full
	// test.
	slow := downloadServer(&range2, &full2, 200*time.Millisecond, 256*1024, 1<<21)
	defer slow.Close()

	cfg := testConfig()
	cfg.DownloadURLs = []string{fast.URL, slow.URL}
	_, err := New(cfg).download(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int32(1), atomic.LoadInt32(&full1))
	assert.Equal(t, int32(0), atomic.LoadInt32(&full2))
}

func TestDownloadAllFailed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		rw.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.DownloadURLs = []string{srv.URL, "http://127.0.0.1:1"}
	_, err := New(cfg).download(context.Background())
	assert.ErrorIs(t, err, netqual.ErrAllTestsFailed)
}

func TestUploadEarlyExitOnSlowLink(t *testing.T) {
	var first, second int32
	slowSrv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		atomic.AddInt32(&first, 1)
		time.Sleep(300 * time.Millisecond)
	}))
	defer slowSrv.Close()
	otherSrv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		atomic.AddInt32(&second, 1)
	}))
	defer otherSrv.Close()

	cfg := testConfig()
	cfg.UploadURLs = []string{slowSrv.URL, otherSrv.URL}
	speed, err := New(cfg).upload(context.Background())
	require.NoError(t, err)

	// 64 KB over 300+ ms is under 2 Mbps: the remaining server is skipped.
	assert.Less(t, speed, 2.0)
	assert.Greater(t, speed, 0.0)
	assert.Equal(t, int32(1), atomic.LoadInt32(&first))
	assert.Equal(t, int32(0), atomic.LoadInt32(&second))
}

func TestUploadTracksBest(t *testing.T) {
	seen := int32(0)
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		atomic.AddInt32(&seen, 1)
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.UploadURLs = []string{srv.URL, srv.URL}
	speed, err := New(cfg).upload(context.Background())
	require.NoError(t, err)
	assert.Greater(t, speed, 0.0)
	// Fast uploads do not early-exit: both candidates are tried.
	assert.Equal(t, int32(2), atomic.LoadInt32(&seen))
}

func TestUploadAllFailed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		rw.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.UploadURLs = []string{srv.URL}
	_, err := New(cfg).upload(context.Background())
	assert.ErrorIs(t, err, netqual.ErrAllTestsFailed)
}

func TestRunCombines(t *testing.T) {
	var rangeCount, fullCount int32
	dl := downloadServer(&rangeCount, &fullCount, 0, 512*1024, 1<<21)
	defer dl.Close()
	ul := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {}))
	defer ul.Close()

	cfg := testConfig()
	cfg.DownloadURLs = []string{dl.URL}
	cfg.UploadURLs = []string{ul.URL}
	r, err := New(cfg).Run(context.Background())
	require.NoError(t, err)
	assert.Greater(t, r.DownloadMbps, 0.0)
	assert.Greater(t, r.UploadMbps, 0.0)
}

func TestMbps(t *testing.T) {
	assert.InDelta(t, 8.0, mbps(1_000_000, time.Second), 1e-9)
	assert.Equal(t, 0.0, mbps(1_000_000, 0))
}
