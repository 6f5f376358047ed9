// Package document is the ordered, selectable list of pages behind an open
// document. It is the single source of truth for page order, selection,
// display numbering and the clipboard.
//
// All mutations go through one writer lock and publish a new immutable
// Snapshot; readers call Snapshot and never block or see a half-applied
// change. Observers are notified synchronously, in mutation order, while
// the writer lock is held, so they must not mutate the Document themselves.
package document
