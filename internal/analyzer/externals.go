package analyzer

import (
	"iter"

	"github.com/embroider-build/embroider-sub001/internal/importscan"
	"github.com/embroider-build/embroider-sub001/internal/packages"
)

// Result is the outcome of one externals computation.
type Result struct {
	// Externals lists package names that the package's declared
	// dependencies do not cover, in first-seen order.
	Externals []string
	// SelfReference is set when the package imports itself by name. The
	// name stays in Externals.
	SelfReference bool
}

// Declared is the slice of a manifest the computation needs.
type Declared struct {
	Name             string
	Dependencies     map[string]string
	DevDependencies  map[string]string
	PeerDependencies map[string]string
}

// DeclaredFrom extracts the dependency sets of p.
func DeclaredFrom(p *packages.Package) Declared {
	return Declared{
		Name:             p.Name,
		Dependencies:     p.Dependencies,
		DevDependencies:  p.DevDependencies,
		PeerDependencies: p.PeerDependencies,
	}
}

func (d Declared) satisfies(name string, topLevelApp bool) bool {
	if _, ok := d.Dependencies[name]; ok {
		return true
	}
	if _, ok := d.PeerDependencies[name]; ok {
		return true
	}
	if topLevelApp {
		_, ok := d.DevDependencies[name]
		return ok
	}
	return false
}

// Externals computes which packages imported through specs must be
// resolved at runtime. Relative specifiers are never external. Only the
// top-level app counts devDependencies as satisfying an import.
func Externals(specs iter.Seq[string], declared Declared, topLevelApp bool) Result {
	var res Result
	seen := make(map[string]bool)
	for spec := range specs {
		name, ok := packages.AbsoluteName(spec)
		if !ok || seen[name] {
			continue
		}
		seen[name] = true
		if declared.satisfies(name, topLevelApp) {
			continue
		}
		res.Externals = append(res.Externals, name)
		if name == declared.Name {
			res.SelfReference = true
		}
	}
	if res.Externals == nil {
		res.Externals = []string{}
	}
	return res
}

// Specifiers adapts a list of import sequences to a single specifier
// sequence, preserving order.
func Specifiers(seqs ...iter.Seq[importscan.Import]) iter.Seq[string] {
	return func(yield func(string) bool) {
		for _, seq := range seqs {
			for imp := range seq {
				if !yield(imp.Specifier) {
					return
				}
			}
		}
	}
}
