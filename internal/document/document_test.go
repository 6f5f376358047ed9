package document

import (
	"errors"
	"math/rand/v2"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/nao1215/scantpaper/internal/model"
)

func newPage(name string) model.Page {
	return model.NewPage("/session/"+name+".png", 100, 200, 300, 300)
}

// newDocument returns a document holding n fresh pages.
func newDocument(t *testing.T, n int) (*Document, []model.Page) {
	t.Helper()
	d := New()
	pages := make([]model.Page, n)
	for i := range pages {
		pages[i] = newPage(string(rune('a' + i)))
	}
	if err := d.Append(pages...); err != nil {
		t.Fatalf("failed to append: %v", err)
	}
	return d, pages
}

func order(d *Document) []uuid.UUID {
	var out []uuid.UUID
	for _, p := range d.Snapshot().Pages() {
		out = append(out, p.UUID)
	}
	return out
}

func TestInsertRemoveMove(t *testing.T) {
	t.Parallel()

	t.Run("insert shifts later pages", func(t *testing.T) {
		t.Parallel()
		d, pages := newDocument(t, 2)
		p := newPage("x")
		if err := d.Insert(p, 1); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		got := order(d)
		want := []uuid.UUID{pages[0].UUID, p.UUID, pages[1].UUID}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("unexpected order at %d", i)
			}
		}
	})

	t.Run("insert rejects a duplicate uuid", func(t *testing.T) {
		t.Parallel()
		d, pages := newDocument(t, 2)
		if err := d.Insert(pages[0], 2); !errors.Is(err, model.ErrInvalidParameter) {
			t.Errorf("expected ErrInvalidParameter, got %v", err)
		}
		if d.Len() != 2 {
			t.Errorf("expected the document to be untouched, got %d pages", d.Len())
		}
	})

	t.Run("out of range indices", func(t *testing.T) {
		t.Parallel()
		d, _ := newDocument(t, 2)
		if err := d.Insert(newPage("x"), 3); !errors.Is(err, model.ErrIndex) {
			t.Errorf("insert: expected ErrIndex, got %v", err)
		}
		if _, err := d.Remove(2); !errors.Is(err, model.ErrIndex) {
			t.Errorf("remove: expected ErrIndex, got %v", err)
		}
		if err := d.Move(0, 5); !errors.Is(err, model.ErrIndex) {
			t.Errorf("move: expected ErrIndex, got %v", err)
		}
		if _, err := d.ReplaceAt(-1, newPage("y")); !errors.Is(err, model.ErrIndex) {
			t.Errorf("replace: expected ErrIndex, got %v", err)
		}
	})

	t.Run("move", func(t *testing.T) {
		t.Parallel()
		d, pages := newDocument(t, 3)
		if err := d.Move(0, 2); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		got := order(d)
		if got[0] != pages[1].UUID || got[1] != pages[2].UUID || got[2] != pages[0].UUID {
			t.Errorf("unexpected order after move")
		}
	})

	t.Run("remove keeps numbering gapless", func(t *testing.T) {
		t.Parallel()
		d, _ := newDocument(t, 4)
		if _, err := d.Remove(1); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		snap := d.Snapshot()
		for i := 0; i < snap.Len(); i++ {
			if snap.Number(i) != i+1 {
				t.Errorf("expected page %d to be numbered %d, got %d", i, i+1, snap.Number(i))
			}
		}
	})

	t.Run("insert after anchor", func(t *testing.T) {
		t.Parallel()
		d, pages := newDocument(t, 2)
		p := newPage("x")
		if err := d.InsertAfter(pages[0].UUID, p); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if i, _ := d.FindByUUID(p.UUID); i != 1 {
			t.Errorf("expected index 1, got %d", i)
		}
		if err := d.InsertAfter(uuid.New(), newPage("y")); !errors.Is(err, model.ErrPageNotFound) {
			t.Errorf("expected ErrPageNotFound for unknown anchor, got %v", err)
		}
	})
}

// TestRandomEditsKeepInvariants drives random insert/remove/move/select
// sequences and checks that UUIDs stay unique and the selection never
// points past the end.
func TestRandomEditsKeepInvariants(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewPCG(1, 2))
	d := New()
	for step := 0; step < 2000; step++ {
		n := d.Len()
		switch rng.IntN(5) {
		case 0, 1:
			_ = d.Insert(newPage("r"), rng.IntN(n+1))
		case 2:
			if n > 0 {
				_, _ = d.Remove(rng.IntN(n))
			}
		case 3:
			if n > 0 {
				_ = d.Move(rng.IntN(n), rng.IntN(n))
			}
		case 4:
			if n > 0 {
				_ = d.Select(rng.IntN(n), rng.IntN(n))
			}
		}

		snap := d.Snapshot()
		seen := map[uuid.UUID]bool{}
		for _, p := range snap.Pages() {
			if seen[p.UUID] {
				t.Fatalf("step %d: duplicate uuid %s", step, p.UUID)
			}
			seen[p.UUID] = true
		}
		for _, i := range snap.Selected() {
			if i < 0 || i >= snap.Len() {
				t.Fatalf("step %d: selected index %d out of range (len %d)", step, i, snap.Len())
			}
		}
	}
}

func TestReplaceAtNotifies(t *testing.T) {
	t.Parallel()

	d, pages := newDocument(t, 3)
	var events []Event
	unsubscribe := d.Subscribe(func(ev Event) { events = append(events, ev) })

	next := pages[1].WithGeometry("/session/b2.png", "", 200, 100)
	old, err := d.ReplaceAt(1, next)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if old.Version != pages[1].Version {
		t.Error("expected the previous state to be returned")
	}
	if len(events) != 1 || events[0].Kind != PageReplaced {
		t.Fatalf("expected one replaced event, got %+v", events)
	}
	if events[0].Old.ImagePath != "/session/b.png" || events[0].New.ImagePath != "/session/b2.png" {
		t.Errorf("unexpected event pages %+v", events[0])
	}

	unsubscribe()
	if _, err := d.ReplaceAt(1, next.WithoutText()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 1 {
		t.Errorf("expected no events after unsubscribe, got %d", len(events))
	}

	t.Run("different uuid must be new", func(t *testing.T) {
		if _, err := d.ReplaceAt(0, pages[2]); !errors.Is(err, model.ErrInvalidParameter) {
			t.Errorf("expected ErrInvalidParameter, got %v", err)
		}
	})
}

func TestRenumber(t *testing.T) {
	t.Parallel()

	d, _ := newDocument(t, 3)
	var count int
	d.Subscribe(func(ev Event) {
		if ev.Kind == Renumbered {
			count++
		}
	})

	changed, err := d.Renumber(1, 1)
	if err != nil || changed {
		t.Errorf("expected renumbering a correct list to be a no-op, got %v, %v", changed, err)
	}

	changed, err = d.Renumber(10, 2)
	if err != nil || !changed {
		t.Fatalf("expected a change, got %v, %v", changed, err)
	}
	snap := d.Snapshot()
	if snap.Number(0) != 10 || snap.Number(2) != 14 {
		t.Errorf("unexpected numbers %d..%d", snap.Number(0), snap.Number(2))
	}

	changed, _ = d.Renumber(10, 2)
	if changed || count != 1 {
		t.Errorf("expected repeated renumber to be idempotent, changed=%v events=%d", changed, count)
	}

	if _, err := d.Renumber(1, 0); !errors.Is(err, model.ErrInvalidParameter) {
		t.Errorf("expected ErrInvalidParameter for step 0, got %v", err)
	}
	if _, err := d.Renumber(2, -1); !errors.Is(err, model.ErrInvalidParameter) {
		t.Errorf("expected ErrInvalidParameter for numbers below 1, got %v", err)
	}
}

func TestSnapshotIsolation(t *testing.T) {
	t.Parallel()

	d, _ := newDocument(t, 10)
	var wg sync.WaitGroup
	stop := make(chan struct{})

	// readers must always see a consistent list
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				snap := d.Snapshot()
				for i, p := range snap.Pages() {
					if j, ok := snap.FindByUUID(p.UUID); !ok || j != i {
						t.Errorf("torn snapshot: page %d indexed at %d", i, j)
						return
					}
				}
			}
		}()
	}

	for i := 0; i < 200; i++ {
		_ = d.Move(i%10, (i*7)%10)
		_ = d.Insert(newPage("n"), 0)
		_, _ = d.Remove(0)
	}
	close(stop)
	wg.Wait()
}
