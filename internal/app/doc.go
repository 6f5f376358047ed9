// Package app composes a scantpaper session.
//
// The Coordinator owns one open document and everything around it: the
// session directory, the session database, the undo history, the job
// engine and the operation handlers. Callers talk to it by operation name
// and page range; it turns those into engine jobs, records every job in
// the database, mirrors the page list after each job so the session can
// be restored, and warns when the session's filesystem runs low.
//
// Job callbacks and engine events are delivered on one goroutine, in
// order, through a pipeline.QueueDispatcher.
package app
