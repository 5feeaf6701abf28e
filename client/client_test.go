package client

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/robertodauria/netqual/internal/handler"
	"github.com/robertodauria/netqual/pkg/netqual/config"
	"github.com/robertodauria/netqual/pkg/netqual/results"
	"github.com/robertodauria/netqual/pkg/netqual/spec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeResolver struct {
	fail bool
}

func (r *fakeResolver) LookupHost(ctx context.Context, host string) ([]string, error) {
	if r.fail {
		return nil, errors.New("no such host")
	}
	return []string{"192.0.2.1"}, nil
}

type recordingEmitter struct {
	started  []spec.TestKind
	errored  []spec.TestKind
	complete bool
}

func (e *recordingEmitter) OnStart(kind spec.TestKind)                { e.started = append(e.started, kind) }
func (e *recordingEmitter) OnResult(kind spec.TestKind, r interface{}) {}
func (e *recordingEmitter) OnError(kind spec.TestKind, err error)     { e.errored = append(e.errored, kind) }
func (e *recordingEmitter) OnComplete(run *results.RunResult)         { e.complete = true }

// testServer hosts all three test endpoints via the netqual handler.
func testServer(t *testing.T) *httptest.Server {
	t.Helper()
	h := handler.New(1 << 20)
	mux := http.NewServeMux()
	mux.HandleFunc(spec.LatencyPath, h.Latency)
	mux.HandleFunc(spec.DownloadPath, h.Download)
	mux.HandleFunc(spec.UploadPath, h.Upload)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(srv *httptest.Server) *config.TestConfiguration {
	cfg := config.NewDefault()
	cfg.LatencyURLs = []string{srv.URL + spec.LatencyPath}
	cfg.DownloadURLs = []string{srv.URL + spec.DownloadPath}
	cfg.UploadURLs = []string{srv.URL + spec.UploadPath}
	cfg.DNSDomains = []string{"a.example", "b.example", "c.example"}
	cfg.SamplesPerEndpoint = 2
	cfg.BandwidthRunsPerServer = 1
	cfg.UploadChunkBytes = 64 * 1024
	cfg.SampleDelay = time.Millisecond
	cfg.WarmupDelay = time.Millisecond
	cfg.RampUpDelay = 20 * time.Millisecond
	return cfg
}

func TestRunFullSuite(t *testing.T) {
	srv := testServer(t)
	c := NewWithConfig(testConfig(srv))
	c.SetResolver(&fakeResolver{})
	em := &recordingEmitter{}
	c.SetEmitter(em)

	run, err := c.Run(context.Background())
	require.NoError(t, err)

	require.NotNil(t, run.HTTPResponse)
	require.NotNil(t, run.Bandwidth)
	require.NotNil(t, run.DNS)
	require.NotNil(t, run.BufferBloat)
	require.NotNil(t, run.Score)

	assert.NotEmpty(t, run.MeasurementID)
	assert.False(t, run.EndTime.Before(run.StartTime))
	assert.GreaterOrEqual(t, run.Score.Overall, 0.0)
	assert.LessOrEqual(t, run.Score.Overall, 100.0)
	assert.Equal(t, run.Score.Quality(), run.Quality)

	assert.Equal(t, []spec.TestKind{
		spec.TestHTTPResponse, spec.TestBandwidth, spec.TestDNS, spec.TestBufferBloat,
	}, em.started)
	assert.Empty(t, em.errored)
	assert.True(t, em.complete)
}

func TestRunPartialFailure(t *testing.T) {
	srv := testServer(t)
	c := NewWithConfig(testConfig(srv))
	c.SetResolver(&fakeResolver{fail: true})

	run, err := c.Run(context.Background())
	require.Error(t, err)

	var partial *PartialResultsError
	require.True(t, errors.As(err, &partial))
	assert.Equal(t, []spec.TestKind{spec.TestDNS}, partial.Failed)

	// The run still carries every result that succeeded, but no score.
	assert.NotNil(t, run.HTTPResponse)
	assert.NotNil(t, run.Bandwidth)
	assert.Nil(t, run.DNS)
	assert.NotNil(t, run.BufferBloat)
	assert.Nil(t, run.Score)
	assert.Empty(t, run.Quality)
}

func TestRunArchivesResult(t *testing.T) {
	srv := testServer(t)
	dataDir := t.TempDir()
	c := NewWithConfig(testConfig(srv))
	c.SetResolver(&fakeResolver{})
	c.SetDataDir(dataDir)

	run, err := c.Run(context.Background())
	require.NoError(t, err)

	var archived []string
	err = filepath.WalkDir(dataDir, func(path string, d fs.DirEntry, err error) error {
		if err == nil && !d.IsDir() && strings.HasSuffix(path, ".json") {
			archived = append(archived, path)
		}
		return err
	})
	require.NoError(t, err)
	require.Len(t, archived, 1)
	assert.Contains(t, archived[0], run.MeasurementID)
}

func TestPartialResultsErrorMessage(t *testing.T) {
	err := &PartialResultsError{Failed: []spec.TestKind{spec.TestDNS, spec.TestBandwidth}}
	assert.Equal(t, "no result for categories: dns, bandwidth", err.Error())
}
