// Package history keeps the undo and redo stacks of a document.
//
// An Entry records the page-level changes a finished job applied, with the
// full prior page state in each change. Undo applies the inverse changes,
// which puts back the exact previous page values; page images are never
// overwritten, so the old image files are still there.
package history
