// Package diag collects non-fatal build diagnostics.
//
// A diagnostic never stops a build. It marks output that is likely
// incomplete or wrong so that the user can look at it.
package diag

import (
	"fmt"
	"sort"
	"sync"

	"github.com/embroider-build/embroider-sub001/internal/logger"
)

// Kind classifies a diagnostic.
type Kind string

const (
	Unsupported        Kind = "unsupported-customization"
	NamespaceViolation Kind = "namespace-violation"
	DuplicateBuild     Kind = "duplicate-build"
	UnknownImport      Kind = "unknown-import-category"
	SelfReference      Kind = "self-reference"
)

// Diagnostic is one reported problem.
type Diagnostic struct {
	Kind    Kind   `json:"kind"`
	Package string `json:"package"`
	Message string `json:"message"`
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s: %s: %s", d.Kind, d.Package, d.Message)
}

// Reporter is anything that accepts diagnostics.
type Reporter interface {
	Report(kind Kind, pkg, format string, args ...any)
}

// Collector records diagnostics. Safe for concurrent use.
type Collector struct {
	mu    sync.Mutex
	items []Diagnostic
	seen  map[Diagnostic]bool
}

func NewCollector() *Collector {
	return &Collector{seen: make(map[Diagnostic]bool)}
}

// Report records a diagnostic and logs it at warn level. Identical
// diagnostics are kept once, so rebuilds do not repeat them.
func (c *Collector) Report(kind Kind, pkg, format string, args ...any) {
	d := Diagnostic{Kind: kind, Package: pkg, Message: fmt.Sprintf(format, args...)}
	c.mu.Lock()
	if c.seen[d] {
		c.mu.Unlock()
		return
	}
	c.seen[d] = true
	c.items = append(c.items, d)
	c.mu.Unlock()

	if kind == Unsupported {
		logger.Todof("%s", d)
		return
	}
	logger.Warnf("%s", d)
}

// All returns the diagnostics sorted by package then kind.
func (c *Collector) All() []Diagnostic {
	c.mu.Lock()
	out := make([]Diagnostic, len(c.items))
	copy(out, c.items)
	c.mu.Unlock()
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Package != out[j].Package {
			return out[i].Package < out[j].Package
		}
		return out[i].Kind < out[j].Kind
	})
	return out
}

// Count returns how many diagnostics of kind were recorded.
func (c *Collector) Count(kind Kind) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, d := range c.items {
		if d.Kind == kind {
			n++
		}
	}
	return n
}

// Discard drops every diagnostic.
var Discard Reporter = discard{}

type discard struct{}

func (discard) Report(Kind, string, string, ...any) {}
