package document

import (
	"github.com/nao1215/scantpaper/internal/model"
)

// Page ranges accepted by Resolve.
const (
	RangeAll      = "all"
	RangeSelected = "selected"
	RangeCurrent  = "1"
)

// Resolve turns a page-range mode into ascending indices of the given
// snapshot. An empty result is not an error; it means there is nothing to
// do. RangeCurrent is the focused page.
func (s *Snapshot) Resolve(mode string) ([]int, error) {
	switch mode {
	case RangeAll:
		out := make([]int, len(s.pages))
		for i := range out {
			out[i] = i
		}
		return out, nil
	case RangeSelected:
		return s.Selected(), nil
	case RangeCurrent:
		if f := s.Focus(); f >= 0 {
			return []int{f}, nil
		}
		return nil, nil
	}
	return nil, &model.ParameterError{Name: "page range", Value: mode, Reason: "must be all, selected or 1"}
}

// Resolve resolves mode against the current snapshot.
func (d *Document) Resolve(mode string) ([]int, error) {
	return d.Snapshot().Resolve(mode)
}
