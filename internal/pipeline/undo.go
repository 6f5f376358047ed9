package pipeline

import (
	"context"
	"errors"

	"github.com/nao1215/scantpaper/internal/history"
)

var errNoHistory = errors.New("undo history is disabled")

// undoHandler reverts or reapplies one history entry. The entry is taken
// off its stack when the job runs and moved to the other stack only once
// the changes are applied. A job that is cancelled or cannot apply its
// changes puts it back.
type undoHandler struct {
	history *history.History
	redo    bool
}

func (u *undoHandler) Name() string {
	if u.redo {
		return "redo"
	}
	return "undo"
}

func (u *undoHandler) Requires() []string { return nil }

func (u *undoHandler) Do(_ context.Context, req *Request) (*Outcome, error) {
	if u.history == nil {
		return nil, errNoHistory
	}
	h := u.history

	if u.redo {
		entry, ok := h.TakeRedo()
		if !ok {
			return nil, ErrNothingToRedo
		}
		req.Report(1, "redo %s", entry.Op)
		return &Outcome{
			Changes:   entry.Forward,
			applied:   func() { h.Redone(entry) },
			discarded: func() { h.Undone(entry) },
		}, nil
	}

	entry, ok := h.TakeUndo()
	if !ok {
		return nil, ErrNothingToUndo
	}
	req.Report(1, "undo %s", entry.Op)
	return &Outcome{
		Changes:   entry.Inverse(),
		applied:   func() { h.Undone(entry) },
		discarded: func() { h.Redone(entry) },
	}, nil
}
