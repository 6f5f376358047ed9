// Package hocr reads the hOCR files written by tesseract into the text
// layer of a page: one model.TextFragment per recognised word, in reading
// order, with its pixel bounding box and confidence.
package hocr
