package snapshot

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aluiziolira/go-catalog-harvest/models"
)

func sampleSnapshot(start time.Time) *models.Snapshot {
	return &models.Snapshot{
		StartTime: start,
		EndTime:   start.Add(time.Minute),
		AllProducts: []models.ProductObservation{
			{
				ProductID:    "1001",
				CategoryID:   8322,
				CategoryName: "Books",
				Success:      true,
				Details:      &models.ProductDetail{ID: 1001, Name: "Widget", Price: 99000},
			},
		},
		Stats: models.SnapshotStats{
			TotalCategories:    1,
			TotalProducts:      1,
			SuccessfulProducts: 1,
		},
	}
}

func TestWriteLoadRoundtrip(t *testing.T) {
	dir := t.TempDir()
	start := time.Date(2025, 11, 21, 2, 24, 21, 0, time.Local)

	path, err := Write(dir, sampleSnapshot(start))
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if want := "crawl_results_20251121_022421.json"; filepath.Base(path) != want {
		t.Fatalf("filename = %q, want %q", filepath.Base(path), want)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !loaded.StartTime.Equal(start) {
		t.Fatalf("start time = %v, want %v", loaded.StartTime, start)
	}
	if len(loaded.AllProducts) != 1 {
		t.Fatalf("products = %d, want 1", len(loaded.AllProducts))
	}
	obs := loaded.AllProducts[0]
	if !obs.Success || obs.Details == nil || obs.Details.ID != 1001 {
		t.Fatalf("observation = %+v", obs)
	}
}

func TestWriteRejectsZeroStartTime(t *testing.T) {
	if _, err := Write(t.TempDir(), &models.Snapshot{}); err == nil {
		t.Fatalf("expected error for snapshot without start time")
	}
}

func TestLoadCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crawl_results_20250101_000000.json")
	if err := os.WriteFile(path, []byte("{ truncated"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestLoadMissingStartTime(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crawl_results_20250101_000000.json")
	if err := os.WriteFile(path, []byte(`{"all_products": []}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for snapshot without start time")
	}
}

func TestListOrderedByEmbeddedTimestamp(t *testing.T) {
	dir := t.TempDir()

	// Created newest-first so modification times oppose capture order.
	names := []string{
		"crawl_results_20251103_090000.json",
		"crawl_results_20251102_120000.json",
		"crawl_results_20251101_150000.json",
	}
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("{}"), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}

	files, err := ListOrdered(dir)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(files) != 3 {
		t.Fatalf("files = %d, want 3", len(files))
	}

	want := []string{
		"crawl_results_20251101_150000.json",
		"crawl_results_20251102_120000.json",
		"crawl_results_20251103_090000.json",
	}
	for i, file := range files {
		if filepath.Base(file.Path) != want[i] {
			t.Fatalf("order[%d] = %q, want %q", i, filepath.Base(file.Path), want[i])
		}
	}
	for i := 1; i < len(files); i++ {
		if files[i].CapturedAt.Before(files[i-1].CapturedAt) {
			t.Fatalf("capture times out of order: %v before %v", files[i].CapturedAt, files[i-1].CapturedAt)
		}
	}
}

func TestListOrderedModTimeFallback(t *testing.T) {
	dir := t.TempDir()

	old := filepath.Join(dir, "unnamed_export.json")
	if err := os.WriteFile(old, []byte("{}"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	past := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(old, past, past); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	recent := "crawl_results_" + time.Now().Format("20060102_150405") + ".json"
	if err := os.WriteFile(filepath.Join(dir, recent), []byte("{}"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	files, err := ListOrdered(dir)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("files = %d, want 2", len(files))
	}
	if filepath.Base(files[0].Path) != "unnamed_export.json" {
		t.Fatalf("first = %q, want the older mtime-dated file", filepath.Base(files[0].Path))
	}
}

func TestListOrderedIgnoresNonJSON(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"notes.txt", "crawl_results_20250101_000000.json.bak"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "nested.json"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	files, err := ListOrdered(dir)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(files) != 0 {
		t.Fatalf("files = %v, want none", files)
	}
}

func TestListOrderedMissingDir(t *testing.T) {
	if _, err := ListOrdered(filepath.Join(t.TempDir(), "absent")); err == nil {
		t.Fatalf("expected error for missing directory")
	}
}

func TestWriteOutputIsIndented(t *testing.T) {
	dir := t.TempDir()
	path, err := Write(dir, sampleSnapshot(time.Now()))
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if !strings.Contains(string(data), "\n  ") {
		t.Fatalf("snapshot should be written indented for inspection")
	}
}
