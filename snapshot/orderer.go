package snapshot

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"
)

var timestampRe = regexp.MustCompile(`(\d{8}_\d{6})`)

// File is one persisted snapshot together with its recovered capture time.
type File struct {
	Path       string
	CapturedAt time.Time
}

// ListOrdered returns the snapshot files in dir sorted oldest-first by
// capture time. The timestamp embedded in the filename is authoritative;
// a file whose name carries no parseable timestamp falls back to its
// modification time. Filesystem listing order and plain string order of
// the names are both irrelevant to the result.
func ListOrdered(dir string) ([]File, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read snapshot directory %q: %w", dir, err)
	}

	var files []File
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		files = append(files, File{
			Path:       path,
			CapturedAt: capturedAt(entry.Name(), path),
		})
	}

	sort.SliceStable(files, func(i, j int) bool {
		return files[i].CapturedAt.Before(files[j].CapturedAt)
	})
	return files, nil
}

func capturedAt(name, path string) time.Time {
	if match := timestampRe.FindString(name); match != "" {
		if t, err := time.ParseInLocation(timeLayout, match, time.Local); err == nil {
			return t
		}
	}
	if info, err := os.Stat(path); err == nil {
		return info.ModTime()
	}
	return time.Time{}
}
