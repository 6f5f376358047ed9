package tool

import "sort"

// Known tools and what they are needed for.
var Known = map[string]string{
	"convert":   "brightness-contrast, unsharp and user-defined tools (ImageMagick)",
	"unpaper":   "unpaper cleanup",
	"tesseract": "OCR",
	"c44":       "DjVu page encoding",
	"djvm":      "DjVu bundling",
	"djvused":   "DjVu metadata and text layer",
}

// Dependency is the probe result for one tool.
type Dependency struct {
	Name    string
	Purpose string
	Path    string
	Found   bool
}

// Check probes the given tools, or all Known tools when names is empty.
// The result is sorted by name.
func (e *Exec) Check(names ...string) []Dependency {
	names = append([]string(nil), names...)
	if len(names) == 0 {
		for n := range Known {
			names = append(names, n)
		}
	}
	sort.Strings(names)

	deps := make([]Dependency, 0, len(names))
	for _, n := range names {
		d := Dependency{Name: n, Purpose: Known[n]}
		if p, err := e.Executable(n); err == nil {
			d.Path = p
			d.Found = true
		}
		deps = append(deps, d)
	}
	return deps
}

// Missing returns the tools in names that are not installed.
func (e *Exec) Missing(names ...string) []string {
	var missing []string
	for _, n := range names {
		if _, err := e.Executable(n); err != nil {
			missing = append(missing, n)
		}
	}
	return missing
}
