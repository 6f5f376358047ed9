package session

import (
	"bytes"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewAndClose(t *testing.T) {
	t.Parallel()

	root := filepath.Join(t.TempDir(), "sessions")

	t.Run("close removes the directory", func(t *testing.T) {
		t.Parallel()
		s, err := New(root)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := os.Stat(s.Dir()); err != nil {
			t.Fatalf("expected session dir to exist: %v", err)
		}
		if err := s.Close(false); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := os.Stat(s.Dir()); !os.IsNotExist(err) {
			t.Errorf("expected session dir to be removed, got %v", err)
		}
	})

	t.Run("keep leaves the directory", func(t *testing.T) {
		t.Parallel()
		s, err := New(root)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := s.Close(true); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := os.Stat(s.Dir()); err != nil {
			t.Errorf("expected session dir to be kept: %v", err)
		}
	})
}

func TestNewFile(t *testing.T) {
	t.Parallel()

	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	a, err := s.NewFile(".png")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, _ := s.NewFile(".png")
	if a == b {
		t.Error("expected unique file names")
	}
	if !strings.HasSuffix(a, ".png") {
		t.Errorf("expected .png suffix, got %s", a)
	}
	if !s.Owns(a) {
		t.Errorf("expected session to own %s", a)
	}
	if s.Owns(filepath.Join(s.Dir(), "..", "elsewhere.png")) || s.Owns(s.Dir()) {
		t.Error("expected paths outside the session not to be owned")
	}
}

func TestCheckLowWater(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		free     uint64
		err      error
		warnMB   int
		wantLow  bool
		wantWarn bool
	}{
		{"plenty of space", 500 * mb, nil, 300, false, false},
		{"below threshold", 12 * mb, nil, 300, true, true},
		{"probe failure", 0, errors.New("statfs"), 300, false, false},
		{"disabled", 0, nil, 0, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var buf bytes.Buffer
			logger := slog.New(slog.NewTextHandler(&buf, nil))
			s, err := New(t.TempDir(),
				WithLogger(logger),
				WithLowWater(tt.warnMB),
				WithFreeSpaceFunc(func(string) (uint64, error) { return tt.free, tt.err }),
			)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := s.CheckLowWater(); got != tt.wantLow {
				t.Errorf("expected %v, got %v", tt.wantLow, got)
			}
			if warned := strings.Contains(buf.String(), "running out of space"); warned != tt.wantWarn {
				t.Errorf("expected warning %v, log: %s", tt.wantWarn, buf.String())
			}
		})
	}
}

func TestFreeSpace(t *testing.T) {
	t.Parallel()

	free, err := FreeSpace(t.TempDir())
	if err != nil {
		t.Skipf("free space probe unavailable: %v", err)
	}
	if free == 0 {
		t.Error("expected some free space in the test temp dir")
	}
}

func TestOpenAndList(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	kept, err := New(root)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := New(root); err != nil { // no store, not listed
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := Open(kept.Dir()); !errors.Is(err, ErrNotSession) {
		t.Errorf("expected ErrNotSession before the store exists, got %v", err)
	}
	if err := os.WriteFile(filepath.Join(kept.Dir(), StoreFile), nil, 0o600); err != nil {
		t.Fatal(err)
	}

	reopened, err := Open(kept.Dir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reopened.Dir() != kept.Dir() {
		t.Errorf("expected %s, got %s", kept.Dir(), reopened.Dir())
	}

	list, err := List(root)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(list) != 1 || list[0].Dir != kept.Dir() {
		t.Errorf("expected only the kept session, got %+v", list)
	}
}
