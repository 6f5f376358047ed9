// Package imageops holds the in-process image work of the page pipeline:
// loading and saving page images (PNG, JPEG and binary PNM), probing their
// resolution, hashing them, and the pixel-exact geometric transforms
// (rotate, crop, split) plus negate and threshold.
//
// Filters that need real image processing (brightness-contrast, unsharp,
// unpaper) are not here; the handler package runs external tools for them
// and uses this package only to convert between formats.
package imageops
