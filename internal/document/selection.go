package document

import (
	"slices"

	"github.com/google/uuid"

	"github.com/nao1215/scantpaper/internal/model"
)

// Selected returns the selected indices in ascending order.
func (d *Document) Selected() []int { return d.Snapshot().Selected() }

// Select replaces the selection. The first index becomes the focus.
// Duplicates are ignored. An empty call clears the selection.
func (d *Document) Select(indices ...int) error {
	return d.update(func(s *Snapshot) ([]Event, error) {
		ids := make([]uuid.UUID, 0, len(indices))
		for _, i := range indices {
			if err := checkIndex(i, len(s.pages)); err != nil {
				return nil, err
			}
			id := s.pages[i].UUID
			if !slices.Contains(ids, id) {
				ids = append(ids, id)
			}
		}
		return setSelection(s, ids), nil
	})
}

func setSelection(s *Snapshot, ids []uuid.UUID) []Event {
	if slices.Equal(s.selected, ids) {
		return nil
	}
	s.selected = ids
	return []Event{{Kind: SelectionChanged, Index: -1}}
}

// selectWhere selects every page matching keep, in document order.
func (d *Document) selectWhere(keep func(s *Snapshot, i int, p model.Page) bool) error {
	return d.update(func(s *Snapshot) ([]Event, error) {
		var ids []uuid.UUID
		for i, p := range s.pages {
			if keep(s, i, p) {
				ids = append(ids, p.UUID)
			}
		}
		return setSelection(s, ids), nil
	})
}

// SelectAll selects every page.
func (d *Document) SelectAll() error {
	return d.selectWhere(func(*Snapshot, int, model.Page) bool { return true })
}

// SelectNone clears the selection.
func (d *Document) SelectNone() error {
	return d.selectWhere(func(*Snapshot, int, model.Page) bool { return false })
}

// SelectOdd selects pages with an odd display number.
func (d *Document) SelectOdd() error {
	return d.selectWhere(func(s *Snapshot, i int, _ model.Page) bool { return s.Number(i)%2 != 0 })
}

// SelectEven selects pages with an even display number.
func (d *Document) SelectEven() error {
	return d.selectWhere(func(s *Snapshot, i int, _ model.Page) bool { return s.Number(i)%2 == 0 })
}

// SelectInvert selects exactly the pages that are not selected.
func (d *Document) SelectInvert() error {
	return d.selectWhere(func(s *Snapshot, _ int, p model.Page) bool { return !slices.Contains(s.selected, p.UUID) })
}

// SelectModified selects pages changed since their OCR ran.
func (d *Document) SelectModified() error {
	return d.selectWhere(func(_ *Snapshot, _ int, p model.Page) bool { return p.ModifiedSinceOCR() })
}

// SelectNoOCR selects pages without a text layer.
func (d *Document) SelectNoOCR() error {
	return d.selectWhere(func(_ *Snapshot, _ int, p model.Page) bool { return !p.HasText() })
}
