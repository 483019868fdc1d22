// Package snapshot persists harvesting runs as timestamped JSON documents
// and recovers them in capture order for ingestion.
package snapshot

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aluiziolira/go-catalog-harvest/models"
)

const (
	filePrefix = "crawl_results_"
	timeLayout = "20060102_150405"
)

// Write serializes snap into dir under a name embedding the capture
// timestamp in a sortable form, e.g. crawl_results_20251121_022421.json.
// Returns the file path.
func Write(dir string, snap *models.Snapshot) (string, error) {
	if snap.StartTime.IsZero() {
		return "", fmt.Errorf("snapshot has no start time")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create snapshot directory %q: %w", dir, err)
	}

	name := filePrefix + snap.StartTime.Format(timeLayout) + ".json"
	path := filepath.Join(dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create snapshot file: %w", err)
	}

	buffer := bufio.NewWriter(f)
	encoder := json.NewEncoder(buffer)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(snap); err != nil {
		f.Close()
		return "", fmt.Errorf("encode snapshot: %w", err)
	}
	if err := buffer.Flush(); err != nil {
		f.Close()
		return "", fmt.Errorf("flush snapshot: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close snapshot file: %w", err)
	}
	return path, nil
}

// Load reads one snapshot document from path.
func Load(path string) (*models.Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot %q: %w", path, err)
	}

	var snap models.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("parse snapshot %q: %w", path, err)
	}
	if snap.StartTime.IsZero() {
		return nil, fmt.Errorf("snapshot %q has no start time", path)
	}
	return &snap, nil
}
