// Package handler implements the operations the pipeline engine runs on
// pages: in-process transforms (rotate, crop, split, negate, threshold),
// wrappers around external tools (convert, unpaper, tesseract, c44, djvm,
// djvused and user-defined commands), image import and document export.
//
// Handlers never modify the document. Each one reads its target pages,
// writes any new image files into the session workspace and describes the
// result as document changes, which the engine applies atomically once the
// handler succeeds. Image files of existing page states are never written
// to, so an abandoned job leaves only unreferenced files behind.
package handler
