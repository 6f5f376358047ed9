// Package tool runs the external programs the handlers delegate to
// (ImageMagick convert, unpaper, tesseract, the DjVu tools) and reports
// which of them are installed.
//
// Every run uses a fixed argument vector (no shell), a working directory,
// a bounded wait and captured stderr. A non-zero exit or a signal becomes a
// *model.SubprocessError, an expired timeout becomes model.ErrTimeout and a
// missing executable becomes a *model.DependencyError.
package tool
