// The netqual-server command serves the test endpoints the netqual client
// probes: a latency target, a Range-aware download source and an upload
// sink. It is meant for self-hosted deployments and integration testing.
package main

import (
	"flag"
	"net/http"

	"github.com/m-lab/go/prometheusx"
	"github.com/m-lab/go/rtx"
	"github.com/robertodauria/netqual/internal/handler"
	"github.com/robertodauria/netqual/pkg/netqual/spec"
	"go.uber.org/zap"
)

var (
	flagListen           = flag.String("listen", ":8080", "Listen address/port for test endpoints")
	flagMaxDownloadBytes = flag.Int64("max-download-bytes", 1<<30, "Maximum bytes served per download request")
	flagDebug            = flag.Bool("debug", false, "Enable debug logging")
)

func main() {
	flag.Parse()

	logger, err := newLogger(*flagDebug)
	rtx.Must(err, "Could not create logger")
	zap.ReplaceGlobals(logger)
	defer logger.Sync()

	promSrv := prometheusx.MustServeMetrics()
	defer promSrv.Close()

	h := handler.New(*flagMaxDownloadBytes)
	mux := http.NewServeMux()
	mux.HandleFunc(spec.LatencyPath, h.Latency)
	mux.HandleFunc(spec.DownloadPath, h.Download)
	mux.HandleFunc(spec.UploadPath, h.Upload)

	zap.L().Sugar().Infof("About to listen for netqual tests on %s", *flagListen)
	rtx.Must(http.ListenAndServe(*flagListen, mux), "Could not start netqual server")
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
