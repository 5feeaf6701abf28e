// The netqual-client command runs the full measurement suite and prints the
// resulting score. It stands in for the application shell that normally
// drives the engine.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/m-lab/go/flagx"
	"github.com/m-lab/go/rtx"
	"github.com/robertodauria/netqual/client"
	"github.com/robertodauria/netqual/pkg/netqual/config"
	"go.uber.org/zap"
)

var (
	flagConfig  = flag.String("config", "", "Path to a yaml configuration file")
	flagDataDir = flag.String("datadir", "", "Directory for archival JSON results (disabled when empty)")
	flagSamples = flag.Int("samples", 0, "Override samples per endpoint")
	flagDebug   = flag.Bool("debug", false, "Enable debug logging")

	flagLatencyURLs  = flagx.StringArray{}
	flagDownloadURLs = flagx.StringArray{}
	flagUploadURLs   = flagx.StringArray{}
	flagDNSDomains   = flagx.StringArray{}
)

func init() {
	flag.Var(&flagLatencyURLs, "latency-url", "Override latency endpoint (repeatable)")
	flag.Var(&flagDownloadURLs, "download-url", "Override download server (repeatable)")
	flag.Var(&flagUploadURLs, "upload-url", "Override upload server (repeatable)")
	flag.Var(&flagDNSDomains, "dns-domain", "Override DNS test domain (repeatable)")
}

func makeConfig() (*config.TestConfiguration, error) {
	cfg := config.NewDefault()
	if *flagConfig != "" {
		var err error
		if cfg, err = config.LoadFile(*flagConfig); err != nil {
			return nil, err
		}
	}
	if len(flagLatencyURLs) > 0 {
		cfg.LatencyURLs = flagLatencyURLs
	}
	if len(flagDownloadURLs) > 0 {
		cfg.DownloadURLs = flagDownloadURLs
	}
	if len(flagUploadURLs) > 0 {
		cfg.UploadURLs = flagUploadURLs
	}
	if len(flagDNSDomains) > 0 {
		cfg.DNSDomains = flagDNSDomains
	}
	if *flagSamples > 0 {
		cfg.SamplesPerEndpoint = *flagSamples
	}
	return cfg, cfg.Validate()
}

func main() {
	flag.Parse()
	rtx.Must(flagx.ArgsFromEnv(flag.CommandLine), "Could not parse env args")

	logger, err := newLogger(*flagDebug)
	rtx.Must(err, "Could not create logger")
	zap.ReplaceGlobals(logger)
	defer logger.Sync()

	cfg, err := makeConfig()
	rtx.Must(err, "Invalid configuration")

	c := client.NewWithConfig(cfg)
	if *flagDataDir != "" {
		c.SetDataDir(*flagDataDir)
	}

	run, err := c.Run(context.Background())
	var partial *client.PartialResultsError
	if errors.As(err, &partial) {
		fmt.Fprintf(os.Stderr, "incomplete run %s: %v\n", run.MeasurementID, partial)
		os.Exit(1)
	}
	rtx.Must(err, "Measurement run failed")

	fmt.Printf("measurement %s\n", run.MeasurementID)
	fmt.Printf("  http response: %6.1f\n", run.Score.HTTPResponse)
	fmt.Printf("  bandwidth:     %6.1f\n", run.Score.Bandwidth)
	fmt.Printf("  dns:           %6.1f\n", run.Score.DNS)
	fmt.Printf("  bufferbloat:   %6.1f\n", run.Score.BufferBloat)
	fmt.Printf("  overall:       %6.1f (%s)\n", run.Score.Overall, run.Quality)
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
