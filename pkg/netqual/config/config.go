// Package config defines the TestConfiguration value handed to every tester.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultSamplesPerEndpoint     = 3
	DefaultBandwidthRunsPerServer = 2
	DefaultUploadChunkBytes       = 5 * 1024 * 1024

	DefaultLatencyTimeout    = 5 * time.Second
	DefaultQuickProbeTimeout = 10 * time.Second
	DefaultBandwidthTimeout  = 30 * time.Second
	DefaultDNSTimeout        = 5 * time.Second

	DefaultSampleDelay = 100 * time.Millisecond
	DefaultWarmupDelay = 200 * time.Millisecond
	DefaultRampUpDelay = 2 * time.Second
)

// TestConfiguration describes one measurement run: endpoint lists, sample
// counts, timeouts and pacing. It is created once per run by the caller and
// read-only afterward.
type TestConfiguration struct {
	// LatencyURLs are probed with lightweight HEAD requests. The list mixes
	// CDN and regional targets so the aggregate is not dominated by a single
	// geography.
	LatencyURLs []string

	// DownloadURLs and UploadURLs are ordered candidate server lists for the
	// bandwidth test.
	DownloadURLs []string
	UploadURLs   []string

	// DNSDomains are resolved by the DNS test.
	DNSDomains []string

	// SamplesPerEndpoint is the number of interleaved measurement rounds in
	// the HTTP response test.
	SamplesPerEndpoint int

	// BandwidthRunsPerServer is the number of full download runs per
	// competitive server.
	BandwidthRunsPerServer int

	// UploadChunkBytes is the size of the generated upload payload.
	UploadChunkBytes int

	LatencyTimeout    time.Duration
	QuickProbeTimeout time.Duration
	BandwidthTimeout  time.Duration
	DNSTimeout        time.Duration

	// SampleDelay separates consecutive requests within a tester.
	SampleDelay time.Duration
	// WarmupDelay separates the warm-up requests.
	WarmupDelay time.Duration
	// RampUpDelay is how long the bufferbloat saturation download runs before
	// loaded sampling starts.
	RampUpDelay time.Duration
}

// NewDefault returns the standard configuration: a curated mix of CDN and
// regional endpoints with tuned sample counts and timeouts.
func NewDefault() *TestConfiguration {
	return &TestConfiguration{
		LatencyURLs: []string{
			"https://www.gstatic.com/generate_204",
			"https://cp.cloudflare.com",
			"https://www.msftconnecttest.com/connecttest.txt",
			"https://www.apple.com/library/test/success.html",
		},
		DownloadURLs: []string{
			"https://speed.cloudflare.com/__down?bytes=104857600",
			"https://proof.ovh.net/files/100Mb.dat",
			"https://speedtest.tele2.net/100MB.zip",
		},
		UploadURLs: []string{
			"https://speed.cloudflare.com/__up",
			"https://httpbin.org/post",
		},
		DNSDomains: []string{
			"example.com",
			"wikipedia.org",
			"cloudflare.com",
			"github.com",
			"amazon.com",
			"bbc.co.uk",
		},
		SamplesPerEndpoint:     DefaultSamplesPerEndpoint,
		BandwidthRunsPerServer: DefaultBandwidthRunsPerServer,
		UploadChunkBytes:       DefaultUploadChunkBytes,
		LatencyTimeout:         DefaultLatencyTimeout,
		QuickProbeTimeout:      DefaultQuickProbeTimeout,
		BandwidthTimeout:       DefaultBandwidthTimeout,
		DNSTimeout:             DefaultDNSTimeout,
		SampleDelay:            DefaultSampleDelay,
		WarmupDelay:            DefaultWarmupDelay,
		RampUpDelay:            DefaultRampUpDelay,
	}
}

// fileConfig mirrors TestConfiguration for yaml files. Durations are
// "5s"-style strings rather than raw nanosecond counts.
type fileConfig struct {
	LatencyURLs  []string `yaml:"latency_urls"`
	DownloadURLs []string `yaml:"download_urls"`
	UploadURLs   []string `yaml:"upload_urls"`
	DNSDomains   []string `yaml:"dns_domains"`

	SamplesPerEndpoint     *int `yaml:"samples_per_endpoint"`
	BandwidthRunsPerServer *int `yaml:"bandwidth_runs_per_server"`
	UploadChunkBytes       *int `yaml:"upload_chunk_bytes"`

	LatencyTimeout    string `yaml:"latency_timeout"`
	QuickProbeTimeout string `yaml:"quick_probe_timeout"`
	BandwidthTimeout  string `yaml:"bandwidth_timeout"`
	DNSTimeout        string `yaml:"dns_timeout"`

	SampleDelay string `yaml:"sample_delay"`
	WarmupDelay string `yaml:"warmup_delay"`
	RampUpDelay string `yaml:"ramp_up_delay"`
}

// LoadFile reads a yaml configuration file. Fields not present in the file
// keep their default values.
func LoadFile(path string) (*TestConfiguration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var file fileConfig
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, err
	}

	cfg := NewDefault()
	if file.LatencyURLs != nil {
		cfg.LatencyURLs = file.LatencyURLs
	}
	if file.DownloadURLs != nil {
		cfg.DownloadURLs = file.DownloadURLs
	}
	if file.UploadURLs != nil {
		cfg.UploadURLs = file.UploadURLs
	}
	if file.DNSDomains != nil {
		cfg.DNSDomains = file.DNSDomains
	}
	if file.SamplesPerEndpoint != nil {
		cfg.SamplesPerEndpoint = *file.SamplesPerEndpoint
	}
	if file.BandwidthRunsPerServer != nil {
		cfg.BandwidthRunsPerServer = *file.BandwidthRunsPerServer
	}
	if file.UploadChunkBytes != nil {
		cfg.UploadChunkBytes = *file.UploadChunkBytes
	}

	durations := []struct {
		raw  string
		name string
		dst  *time.Duration
	}{
		{file.LatencyTimeout, "latency_timeout", &cfg.LatencyTimeout},
		{file.QuickProbeTimeout, "quick_probe_timeout", &cfg.QuickProbeTimeout},
		{file.BandwidthTimeout, "bandwidth_timeout", &cfg.BandwidthTimeout},
		{file.DNSTimeout, "dns_timeout", &cfg.DNSTimeout},
		{file.SampleDelay, "sample_delay", &cfg.SampleDelay},
		{file.WarmupDelay, "warmup_delay", &cfg.WarmupDelay},
		{file.RampUpDelay, "ramp_up_delay", &cfg.RampUpDelay},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.raw)
		if err != nil {
			return nil, fmt.Errorf("%s: invalid duration %q: %w", d.name, d.raw, err)
		}
		*d.dst = parsed
	}

	return cfg, cfg.Validate()
}

// Validate checks that the configuration can drive a measurement run.
func (c *TestConfiguration) Validate() error {
	if c.SamplesPerEndpoint <= 0 {
		return errors.New("samples_per_endpoint must be positive")
	}
	if c.BandwidthRunsPerServer <= 0 {
		return errors.New("bandwidth_runs_per_server must be positive")
	}
	if c.UploadChunkBytes <= 0 {
		return errors.New("upload_chunk_bytes must be positive")
	}
	return nil
}
