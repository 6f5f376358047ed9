// Package model defines the data shared by every layer of scantpaper.
//
// This package contains:
//   - Page: one page's image, text layer and annotations, identified by UUID
//   - Metadata and ExportOptions: what gets written into a saved document
//   - The error kinds reported through the job engine
//   - Report: the summary of a processing run
//
// Pages are values. The document list, the undo history and running jobs can
// all hold the same Page without coordination because nobody mutates one in
// place; derived states are built with the With* methods.
package model
