// Package config provides configuration structures and utilities for scantpaper.
// It defines the run options (worker count, tool timeout, session directory,
// page range), the settings read from the .scantpaper YAML file (OCR,
// unpaper, user-defined tools, export defaults) and the XDG directories the
// application uses.
package config
