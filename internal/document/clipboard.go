package document

import (
	"slices"

	"github.com/google/uuid"

	"github.com/nao1215/scantpaper/internal/model"
)

// Copy puts snapshots of the pages at indices on the clipboard, replacing
// its content. The clipboard is independent of later edits to those pages.
func (d *Document) Copy(indices ...int) error {
	snap := d.Snapshot()
	pages := make([]model.Page, 0, len(indices))
	for _, i := range sortedUnique(indices) {
		p, err := snap.Page(i)
		if err != nil {
			return err
		}
		pages = append(pages, p.Clone())
	}
	d.mu.Lock()
	d.clipboard = pages
	d.mu.Unlock()
	return nil
}

// Cut moves the pages at indices to the clipboard in one update.
func (d *Document) Cut(indices ...int) error {
	return d.update(func(s *Snapshot) ([]Event, error) {
		pages := make([]model.Page, 0, len(indices))
		ids := make([]uuid.UUID, 0, len(indices))
		for _, i := range sortedUnique(indices) {
			if err := checkIndex(i, len(s.pages)); err != nil {
				return nil, err
			}
			pages = append(pages, s.pages[i].Clone())
			ids = append(ids, s.pages[i].UUID)
		}
		var removed []model.Page
		events := removeIDs(s, ids, &removed)
		// update holds d.mu
		d.clipboard = pages
		return events, nil
	})
}

// Clipboard returns the number of pages on the clipboard.
func (d *Document) Clipboard() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.clipboard)
}

// Paste inserts the clipboard content at index. Each pasted page gets a
// fresh UUID, so the same content can be pasted any number of times.
// The UUIDs of the inserted pages are returned.
func (d *Document) Paste(index int) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := d.update(func(s *Snapshot) ([]Event, error) {
		pages := make([]model.Page, len(d.clipboard))
		ids = make([]uuid.UUID, len(d.clipboard))
		for i, p := range d.clipboard {
			c := p.Clone()
			c.UUID = uuid.New()
			pages[i] = c
			ids[i] = c.UUID
		}
		return insertAt(s, index, pages...)
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func sortedUnique(in []int) []int {
	out := slices.Clone(in)
	slices.Sort(out)
	return slices.Compact(out)
}
