package report

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"sort"
)

// ExternalsDiff is how one package's externals changed between builds.
type ExternalsDiff struct {
	Package string   `json:"package"`
	Added   []string `json:"added,omitempty"`
	Removed []string `json:"removed,omitempty"`
}

// DiffExternals compares the externals of two builds, package by
// package. Packages present in only one build are skipped.
func DiffExternals(prev, next BuildReport) []ExternalsDiff {
	before := prev.Externals()
	var out []ExternalsDiff
	for name, now := range next.Externals() {
		was, ok := before[name]
		if !ok {
			continue
		}
		d := ExternalsDiff{Package: name}
		for _, e := range now {
			if !slices.Contains(was, e) {
				d.Added = append(d.Added, e)
			}
		}
		for _, e := range was {
			if !slices.Contains(now, e) {
				d.Removed = append(d.Removed, e)
			}
		}
		if len(d.Added)+len(d.Removed) > 0 {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Package < out[j].Package })
	return out
}

func WriteExternalsDiff(w io.Writer, diffs []ExternalsDiff) {
	fmt.Fprintf(w, "%s%s=== Externals Diff ===%s\n", colorBold, colorCyan, colorReset)
	if len(diffs) == 0 {
		fmt.Fprintf(w, "%sNo externals changes.%s\n", colorGreen, colorReset)
		return
	}
	for _, d := range diffs {
		fmt.Fprintf(w, "  %s%s%s\n", colorBold, d.Package, colorReset)
		for _, a := range d.Added {
			fmt.Fprintf(w, "    %s+ %s%s\n", colorYellow, a, colorReset)
		}
		for _, rm := range d.Removed {
			fmt.Fprintf(w, "    %s- %s%s\n", colorGreen, rm, colorReset)
		}
	}
}

func WriteExternalsDiffJSON(w io.Writer, diffs []ExternalsDiff) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(diffs)
}
