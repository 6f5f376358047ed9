// Package database provides the SQLite store of a scantpaper session.
//
// Each session directory holds one session.db with two tables:
//   - pages mirrors the document list, one row per page in display order,
//     so that a kept session can be restored after the program exits
//   - jobs logs every submitted job with its final state, which the
//     processing report is built from
//
// The store uses modernc.org/sqlite, a CGO-free driver, so the binary
// cross-compiles without a C toolchain.
package database
