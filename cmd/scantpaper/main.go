// Package main provides the entry point for the scantpaper CLI.
//
// scantpaper turns scanned page images into finished documents. It imports
// images into a session, runs page operations on them (rotate, crop,
// split, threshold, unpaper, OCR, ...) in parallel, and saves the result as
// PDF or DjVu.
//
// Usage:
//
//	scantpaper process page1.png page2.png --step rotate:90 --step ocr --step save-pdf:out.pdf
//	scantpaper deps
//	scantpaper session list
//
// See --help for all available options.
package main

// main is the entry point for scantpaper.
func main() {
	Execute()
}
