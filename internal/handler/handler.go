// Package handler implements the self-hostable test endpoint server: a
// latency probe target, a Range-aware download source and an upload sink,
// matching the wire surface the netqual testers expect.
package handler

import (
	"crypto/rand"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "netqual_server_requests_total",
		Help: "Requests received, by handler.",
	}, []string{"handler"})
	requestErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "netqual_server_request_errors_total",
		Help: "Requests rejected or failed, by handler and reason.",
	}, []string{"handler", "reason"})
)

const chunkSize = 1 << 20

// Handler serves the netqual test endpoints.
type Handler struct {
	// maxDownloadBytes bounds a single download response when the client
	// sends no Range header.
	maxDownloadBytes int64
	chunk            []byte
}

// New creates a Handler. Download responses are generated from a single
// random chunk so large transfers do not cost entropy per request.
func New(maxDownloadBytes int64) *Handler {
	chunk := make([]byte, chunkSize)
	if _, err := rand.Read(chunk); err != nil {
		// rand.Read from crypto/rand does not fail on supported platforms.
		panic(err)
	}
	return &Handler{
		maxDownloadBytes: maxDownloadBytes,
		chunk:            chunk,
	}
}

// Latency responds immediately with no body. HEAD and GET are both accepted
// so any lightweight prober works against it.
func (h *Handler) Latency(rw http.ResponseWriter, req *http.Request) {
	requestsTotal.WithLabelValues("latency").Inc()
	if req.Method != http.MethodHead && req.Method != http.MethodGet {
		requestErrorsTotal.WithLabelValues("latency", "method").Inc()
		rw.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	rw.Header().Set("Cache-Control", "no-store")
	rw.WriteHeader(http.StatusOK)
}

// Download streams random bytes. A "bytes=0-N" Range header bounds the
// response and switches the status to 206, mirroring how CDN download
// targets behave for quick probes.
func (h *Handler) Download(rw http.ResponseWriter, req *http.Request) {
	requestsTotal.WithLabelValues("download").Inc()
	if req.Method != http.MethodGet {
		requestErrorsTotal.WithLabelValues("download", "method").Inc()
		rw.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	size := h.maxDownloadBytes
	status := http.StatusOK
	if rangeHeader := req.Header.Get("Range"); rangeHeader != "" {
		n, err := parseRange(rangeHeader)
		if err != nil {
			requestErrorsTotal.WithLabelValues("download", "range").Inc()
			rw.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
			return
		}
		if n < size {
			size = n
		}
		status = http.StatusPartialContent
		rw.Header().Set("Content-Range",
			fmt.Sprintf("bytes 0-%d/%d", size-1, h.maxDownloadBytes))
	}
	rw.Header().Set("Content-Type", "application/octet-stream")
	rw.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	rw.WriteHeader(status)

	written := int64(0)
	for written < size {
		n := int64(len(h.chunk))
		if size-written < n {
			n = size - written
		}
		if _, err := rw.Write(h.chunk[:n]); err != nil {
			// Client gone: saturation downloads are canceled mid-transfer.
			zap.L().Sugar().Debugw("Download aborted", "written", written, "error", err)
			return
		}
		written += n
		if req.Context().Err() != nil {
			return
		}
	}
}

// Upload counts and discards the request body.
func (h *Handler) Upload(rw http.ResponseWriter, req *http.Request) {
	requestsTotal.WithLabelValues("upload").Inc()
	if req.Method != http.MethodPost {
		requestErrorsTotal.WithLabelValues("upload", "method").Inc()
		rw.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	n, err := io.Copy(io.Discard, req.Body)
	if err != nil {
		requestErrorsTotal.WithLabelValues("upload", "read").Inc()
		zap.L().Sugar().Debugw("Upload aborted", "read", n, "error", err)
		rw.WriteHeader(http.StatusBadRequest)
		return
	}
	rw.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(rw, `{"bytes":%d}`, n)
}

// parseRange handles the single form the testers send: "bytes=0-N".
func parseRange(header string) (int64, error) {
	val := strings.TrimPrefix(header, "bytes=")
	if val == header {
		return 0, fmt.Errorf("unsupported range %q", header)
	}
	parts := strings.SplitN(val, "-", 2)
	if len(parts) != 2 || parts[0] != "0" {
		return 0, fmt.Errorf("unsupported range %q", header)
	}
	end, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || end < 0 {
		return 0, fmt.Errorf("unsupported range %q", header)
	}
	return end + 1, nil
}
