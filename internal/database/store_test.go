package database

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nao1215/scantpaper/internal/model"
)

// setupTestStore creates a temporary store for testing.
func setupTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(t.TempDir(), DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpen(t *testing.T) {
	t.Parallel()

	t.Run("creates database in new directory", func(t *testing.T) {
		t.Parallel()

		dir := filepath.Join(t.TempDir(), "newdir", "subdir")
		s, err := Open(dir, DefaultOptions())
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		defer s.Close()

		if _, err := os.Stat(filepath.Join(dir, FileName)); os.IsNotExist(err) {
			t.Error("database file was not created")
		}
		if s.Path() != filepath.Join(dir, FileName) {
			t.Errorf("unexpected path %s", s.Path())
		}
	})

	t.Run("CreateIfNotExists=false returns error when database does not exist", func(t *testing.T) {
		t.Parallel()

		_, err := Open(t.TempDir(), Options{CreateIfNotExists: false})
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("CreateIfNotExists=false opens existing database", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		s, err := Open(dir, DefaultOptions())
		if err != nil {
			t.Fatalf("failed to create database: %v", err)
		}
		page := model.NewPage("/s/a.png", 10, 10, 300, 300)
		if err := s.SavePages(context.Background(), []model.Page{page}); err != nil {
			t.Fatal(err)
		}
		_ = s.Close()

		reopened, err := Open(dir, Options{CreateIfNotExists: false, EnableWAL: true})
		if err != nil {
			t.Fatalf("failed to reopen database: %v", err)
		}
		defer reopened.Close()
		pages, err := reopened.LoadPages(context.Background())
		if err != nil || len(pages) != 1 || pages[0].UUID != page.UUID {
			t.Errorf("expected the saved page back, got %v, %v", pages, err)
		}
	})
}

func TestDefaultOptions(t *testing.T) {
	t.Parallel()

	opts := DefaultOptions()
	if !opts.CreateIfNotExists || !opts.EnableWAL {
		t.Errorf("unexpected defaults %+v", opts)
	}
}

func TestPages(t *testing.T) {
	t.Parallel()

	t.Run("round trip keeps order and content", func(t *testing.T) {
		t.Parallel()

		s := setupTestStore(t)
		ctx := context.Background()

		first := model.NewPage("/s/1.png", 100, 200, 300, 300)
		second := model.NewPage("/s/2.png", 200, 100, 150, 150).
			WithText([]model.TextFragment{{Text: "Total", BBox: model.BoundingBox{X1: 1, Y1: 2, X2: 30, Y2: 12}, Confidence: 88}})
		third := model.NewPage("/s/3.png", 50, 50, 600, 600).MarkSaved()

		if err := s.SavePages(ctx, []model.Page{second, first, third}); err != nil {
			t.Fatalf("failed to save pages: %v", err)
		}
		got, err := s.LoadPages(ctx)
		if err != nil {
			t.Fatalf("failed to load pages: %v", err)
		}
		if len(got) != 3 {
			t.Fatalf("expected 3 pages, got %d", len(got))
		}
		if got[0].UUID != second.UUID || got[1].UUID != first.UUID || got[2].UUID != third.UUID {
			t.Error("expected the saved order")
		}
		if got[0].PlainText() != "Total" || got[0].OCRVersion != second.OCRVersion {
			t.Errorf("expected the text layer back, got %+v", got[0])
		}
		if got[2].Dirty() {
			t.Error("expected the saved flag back")
		}
	})

	t.Run("saving again replaces the list", func(t *testing.T) {
		t.Parallel()

		s := setupTestStore(t)
		ctx := context.Background()

		a := model.NewPage("/s/a.png", 10, 10, 300, 300)
		b := model.NewPage("/s/b.png", 10, 10, 300, 300)
		if err := s.SavePages(ctx, []model.Page{a, b}); err != nil {
			t.Fatal(err)
		}
		if err := s.SavePages(ctx, []model.Page{b}); err != nil {
			t.Fatal(err)
		}
		got, err := s.LoadPages(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 1 || got[0].UUID != b.UUID {
			t.Errorf("expected only page b, got %v", got)
		}
	})

	t.Run("empty store", func(t *testing.T) {
		t.Parallel()

		got, err := setupTestStore(t).LoadPages(context.Background())
		if err != nil || len(got) != 0 {
			t.Errorf("expected no pages, got %v, %v", got, err)
		}
	})
}

func TestJobs(t *testing.T) {
	t.Parallel()

	s := setupTestStore(t)
	ctx := context.Background()
	start := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	records := []*JobRecord{
		{ID: "j1", Op: "rotate", State: "queued", Pages: 2, Submitted: start},
		{ID: "j2", Op: "ocr", State: "queued", Pages: 1, Submitted: start.Add(time.Second)},
	}
	for _, r := range records {
		if err := s.RecordJob(ctx, r); err != nil {
			t.Fatalf("failed to record job: %v", err)
		}
	}

	records[0].State = "finished"
	records[0].Finished = start.Add(1500 * time.Millisecond)
	if err := s.RecordJob(ctx, records[0]); err != nil {
		t.Fatal(err)
	}
	records[1].State = "error"
	records[1].Error = "SubprocessFailure: tesseract exited with status 1"
	records[1].Finished = start.Add(2 * time.Second)
	if err := s.RecordJob(ctx, records[1]); err != nil {
		t.Fatal(err)
	}

	got, err := s.Jobs(ctx)
	if err != nil {
		t.Fatalf("failed to list jobs: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(got))
	}
	if got[0].ID != "j1" || got[0].State != "finished" || got[0].Pages != 2 {
		t.Errorf("unexpected first job %+v", got[0])
	}
	if got[0].Duration() != 1500*time.Millisecond {
		t.Errorf("expected 1.5s, got %s", got[0].Duration())
	}
	if got[1].Error != records[1].Error {
		t.Errorf("expected the error text, got %q", got[1].Error)
	}

	summary, err := s.JobSummary(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if summary["finished"] != 1 || summary["error"] != 1 || summary["queued"] != 0 {
		t.Errorf("unexpected summary %v", summary)
	}
}

func TestParseTimestamp(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  time.Time
	}{
		{"RFC3339Nano", "2025-01-02T03:04:05.5Z", time.Date(2025, 1, 2, 3, 4, 5, 500000000, time.UTC)},
		{"SQLite default", "2025-01-02 03:04:05", time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)},
		{"garbage", "yesterday", time.Time{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := parseTimestamp(tt.input); !got.Equal(tt.want) {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}
