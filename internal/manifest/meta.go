package manifest

// Meta is the ember-addon metadata a package contributes beyond the
// version marker and externals. Zero fields are omitted.
type Meta struct {
	Type                string            `json:"type,omitempty"`
	Main                string            `json:"main,omitempty"`
	AppJS               string            `json:"app-js,omitempty"`
	ImplicitModules     []string          `json:"implicit-modules,omitempty"`
	ImplicitTestModules []string          `json:"implicit-test-modules,omitempty"`
	ImplicitImports     []string          `json:"implicit-imports,omitempty"`
	ImplicitTestImports []string          `json:"implicit-test-imports,omitempty"`
	ImplicitStyles      []string          `json:"implicit-styles,omitempty"`
	ImplicitTestStyles  []string          `json:"implicit-test-styles,omitempty"`
	RenamedPackages     map[string]string `json:"renamed-packages,omitempty"`
	PublicAssets        map[string]string `json:"public-assets,omitempty"`
	Entrypoints         []string          `json:"entrypoints,omitempty"`
	TemplateCompiler    *Filename         `json:"template-compiler,omitempty"`
	Babel               *Filename         `json:"babel,omitempty"`
	RootURL             string            `json:"root-url,omitempty"`
}

// Filename points at a generated file relative to the package root.
type Filename struct {
	Filename string `json:"filename"`
}

// Merge overlays other onto m. Lists append, maps merge with other
// winning, scalars are replaced when set.
func (m Meta) Merge(other Meta) Meta {
	set := func(dst *string, src string) {
		if src != "" {
			*dst = src
		}
	}
	set(&m.Type, other.Type)
	set(&m.Main, other.Main)
	set(&m.AppJS, other.AppJS)
	set(&m.RootURL, other.RootURL)
	m.ImplicitModules = appendUnique(m.ImplicitModules, other.ImplicitModules)
	m.ImplicitTestModules = appendUnique(m.ImplicitTestModules, other.ImplicitTestModules)
	m.ImplicitImports = appendUnique(m.ImplicitImports, other.ImplicitImports)
	m.ImplicitTestImports = appendUnique(m.ImplicitTestImports, other.ImplicitTestImports)
	m.ImplicitStyles = appendUnique(m.ImplicitStyles, other.ImplicitStyles)
	m.ImplicitTestStyles = appendUnique(m.ImplicitTestStyles, other.ImplicitTestStyles)
	m.Entrypoints = appendUnique(m.Entrypoints, other.Entrypoints)
	m.RenamedPackages = mergeMap(m.RenamedPackages, other.RenamedPackages)
	m.PublicAssets = mergeMap(m.PublicAssets, other.PublicAssets)
	if other.TemplateCompiler != nil {
		m.TemplateCompiler = other.TemplateCompiler
	}
	if other.Babel != nil {
		m.Babel = other.Babel
	}
	return m
}

func appendUnique(dst, src []string) []string {
	if len(src) == 0 {
		return dst
	}
	out := append([]string(nil), dst...)
	for _, s := range src {
		dup := false
		for _, d := range out {
			if d == s {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, s)
		}
	}
	return out
}

func mergeMap(dst, src map[string]string) map[string]string {
	if len(src) == 0 {
		return dst
	}
	out := make(map[string]string, len(dst)+len(src))
	for k, v := range dst {
		out[k] = v
	}
	for k, v := range src {
		out[k] = v
	}
	return out
}
