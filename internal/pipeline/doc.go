// Package pipeline is the job engine of scantpaper.
//
// A Job names an operation, the UUIDs of the pages it targets, its
// parameters and a set of stage callbacks. Submit fires the queued callback
// synchronously and hands the job to a coordinator goroutine, which starts
// jobs on a bounded pool of workers (golang.org/x/sync/errgroup) in
// submission order, holding back any job whose pages are still in use by
// an earlier job. Jobs on the same page therefore run and finish in the
// order they were submitted; jobs on different pages run concurrently.
//
// Targets are resolved against the document when the job starts, not when
// it is submitted. A Handler computes the page-level changes of the job
// without touching the document; the engine applies them in one atomic
// document update and records them in the undo history. A handler failure,
// a timeout, a missing dependency or a vanished page all end in the error
// callback with the document left as it was before the job.
//
// Callbacks other than queued run through a Dispatcher, which lets a caller
// marshal them onto a single goroutine of its choosing.
package pipeline
