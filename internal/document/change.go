package document

import (
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/nao1215/scantpaper/internal/model"
)

// Change is one page-level effect of an operation.
//
//   - Before and After set: the page Before.UUID is replaced by After.
//   - Only After set: After is inserted right after Anchor (uuid.Nil means
//     at the start). With Append, After goes after the last page instead.
//   - Only Before set: the page Before.UUID is removed.
type Change struct {
	Before *model.Page
	After  *model.Page
	Anchor uuid.UUID
	Append bool
}

// Invert returns the changes that undo cs, in reverse order.
func Invert(cs []Change) []Change {
	out := make([]Change, len(cs))
	for i, c := range cs {
		out[len(cs)-1-i] = Change{Before: c.After, After: c.Before, Anchor: c.Anchor}
	}
	return out
}

// UUIDs returns the pages touched by cs, without duplicates.
func UUIDs(cs []Change) []uuid.UUID {
	var out []uuid.UUID
	for _, c := range cs {
		for _, p := range []*model.Page{c.Before, c.After} {
			if p != nil && !slices.Contains(out, p.UUID) {
				out = append(out, p.UUID)
			}
		}
	}
	return out
}

// Apply performs all changes as one atomic update: either every change is
// applied and observers see the resulting events, or none is and the
// error names the first page that was missing or clashing.
//
// Append changes are rewritten in place to the anchor they were inserted
// after, so that cs can be inverted and replayed later.
func (d *Document) Apply(cs []Change) error {
	resolved := slices.Clone(cs)
	err := d.update(func(s *Snapshot) ([]Event, error) {
		var events []Event
		for i := range resolved {
			c := &resolved[i]
			if c.Append && c.Before == nil && c.After != nil {
				c.Anchor = uuid.Nil
				if n := len(s.pages); n > 0 {
					c.Anchor = s.pages[n-1].UUID
				}
				c.Append = false
			}
			ev, err := applyChange(s, *c)
			if err != nil {
				return nil, err
			}
			events = append(events, ev...)
		}
		return events, nil
	})
	if err != nil {
		return err
	}
	copy(cs, resolved)
	return nil
}

func applyChange(s *Snapshot, c Change) ([]Event, error) {
	switch {
	case c.Before != nil && c.After != nil:
		i, ok := s.index[c.Before.UUID]
		if !ok {
			return nil, fmt.Errorf("page %s: %w", c.Before.UUID, model.ErrPageNotFound)
		}
		if c.After.UUID != c.Before.UUID {
			if _, clash := s.index[c.After.UUID]; clash {
				return nil, duplicate(c.After.UUID)
			}
		}
		old := s.pages[i]
		s.pages[i] = *c.After
		s.index = indexOf(s.pages)
		n := *c.After
		return []Event{{Kind: PageReplaced, Index: i, Old: &old, New: &n}}, nil

	case c.After != nil:
		at, err := afterAnchor(s, c.Anchor)
		if err != nil {
			return nil, err
		}
		return insertAt(s, at, *c.After)

	case c.Before != nil:
		i, ok := s.index[c.Before.UUID]
		if !ok {
			return nil, fmt.Errorf("page %s: %w", c.Before.UUID, model.ErrPageNotFound)
		}
		old := s.pages[i]
		s.pages = slices.Delete(s.pages, i, i+1)
		s.index = indexOf(s.pages)
		return []Event{{Kind: PageRemoved, Index: i, Old: &old}}, nil
	}
	return nil, nil
}
