// Package persistence writes archival run records to disk as JSON, one
// timestamped file per measurement run.
package persistence

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/robertodauria/netqual/pkg/netqual/results"
)

// FileWriter writes one RunResult to a file under the data directory.
type FileWriter struct {
	fp *os.File
}

// New creates the dated directory hierarchy and the result file for the
// given measurement ID.
func New(dataDir, measurementID string) (*FileWriter, error) {
	now := time.Now().UTC()
	dir := filepath.Join(dataDir, "netqual", now.Format("2006/01/02"))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	name := filepath.Join(dir, fmt.Sprintf("netqual-%s-%s.json",
		now.Format("20060102T150405.000000000Z"), measurementID))
	fp, err := os.Create(name)
	if err != nil {
		return nil, err
	}
	return &FileWriter{fp: fp}, nil
}

// Write serializes the run record to the file.
func (w *FileWriter) Write(run *results.RunResult) error {
	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return err
	}
	_, err = w.fp.Write(data)
	return err
}

// Name returns the underlying file path.
func (w *FileWriter) Name() string {
	return w.fp.Name()
}

// Close closes the underlying file.
func (w *FileWriter) Close() error {
	return w.fp.Close()
}
