// Package importscan extracts module specifiers from JavaScript and
// TypeScript sources.
package importscan

import (
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/embroider-build/embroider-sub001/internal/logger"
)

// Import is one specifier found in a source file.
type Import struct {
	// Specifier is the module path as written (after the templates rule).
	Specifier string `json:"specifier"`
	// Path is the file the import appears in, relative to the scanned tree.
	Path string `json:"path"`
	// Kind is the esbuild import kind: import-statement, require-call,
	// dynamic-import or require-resolve.
	Kind string `json:"kind"`
}

var loaders = map[string]api.Loader{
	".js":  api.LoaderJS,
	".mjs": api.LoaderJS,
	".cjs": api.LoaderJS,
	".jsx": api.LoaderJSX,
	".ts":  api.LoaderTS,
	".mts": api.LoaderTS,
	".cts": api.LoaderTS,
	".tsx": api.LoaderTSX,
}

// IsModule reports whether rel names a file the scanner parses.
func IsModule(rel string) bool {
	_, ok := loaders[strings.ToLower(path.Ext(rel))]
	return ok
}

var templatesSegment = regexp.MustCompile(`(^|/)templates/`)

// normalize applies the template colocation convention: a specifier that
// reaches into a templates directory without an extension is a template.
func normalize(spec string) string {
	if templatesSegment.MatchString(spec) && path.Ext(spec) == "" {
		return spec + ".hbs"
	}
	return spec
}

type metafile struct {
	Inputs map[string]struct {
		Imports []struct {
			Path     string `json:"path"`
			Kind     string `json:"kind"`
			External bool   `json:"external"`
			Original string `json:"original,omitempty"`
		} `json:"imports"`
	} `json:"inputs"`
}

var externalizeAll = api.Plugin{
	Name: "externalize-all",
	Setup: func(build api.PluginBuild) {
		build.OnResolve(api.OnResolveOptions{Filter: ".*"}, func(args api.OnResolveArgs) (api.OnResolveResult, error) {
			return api.OnResolveResult{Path: args.Path, External: true}, nil
		})
	},
}

var scanCache, _ = lru.New[[sha256.Size]byte, []Import](4096)

// ScanSource returns the imports of one source file, in source order.
// rel selects the parser by extension and is recorded on each Import.
func ScanSource(rel string, src []byte) ([]Import, error) {
	loader, ok := loaders[strings.ToLower(path.Ext(rel))]
	if !ok {
		return nil, fmt.Errorf("%s: not a module file", rel)
	}
	key := sha256.Sum256(append([]byte(path.Ext(rel)+"\x00"), src...))
	if cached, ok := scanCache.Get(key); ok {
		return withPath(cached, rel), nil
	}

	result := api.Build(api.BuildOptions{
		Stdin: &api.StdinOptions{
			Contents:   string(src),
			Sourcefile: rel,
			Loader:     loader,
		},
		Bundle:   true,
		Write:    false,
		Metafile: true,
		Format:   api.FormatESModule,
		Platform: api.PlatformNeutral,
		LogLevel: api.LogLevelSilent,
		Plugins:  []api.Plugin{externalizeAll},
	})
	if len(result.Errors) > 0 {
		msg := result.Errors[0]
		if msg.Location != nil {
			return nil, fmt.Errorf("%s:%d:%d: %s", rel, msg.Location.Line, msg.Location.Column, msg.Text)
		}
		return nil, fmt.Errorf("%s: %s", rel, msg.Text)
	}

	var meta metafile
	if err := json.Unmarshal([]byte(result.Metafile), &meta); err != nil {
		return nil, fmt.Errorf("%s: decode metafile: %w", rel, err)
	}
	var out []Import
	for _, in := range meta.Inputs {
		for _, imp := range in.Imports {
			spec := imp.Original
			if spec == "" {
				spec = imp.Path
			}
			out = append(out, Import{Specifier: normalize(spec), Kind: imp.Kind})
		}
	}
	scanCache.Add(key, out)
	return withPath(out, rel), nil
}

func withPath(imports []Import, rel string) []Import {
	out := make([]Import, len(imports))
	for i, imp := range imports {
		imp.Path = rel
		out[i] = imp
	}
	return out
}

// ScanDir parses every module file under dir. Files that fail to parse
// are skipped. node_modules directories are not entered.
func ScanDir(dir string) ([]Import, error) {
	var out []Import
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && p == dir {
				return filepath.SkipAll
			}
			return err
		}
		if d.IsDir() {
			if d.Name() == "node_modules" && p != dir {
				return filepath.SkipDir
			}
			return nil
		}
		rel, _ := filepath.Rel(dir, p)
		rel = filepath.ToSlash(rel)
		if !IsModule(rel) {
			return nil
		}
		src, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		imports, err := ScanSource(rel, src)
		if err != nil {
			logger.Debugf("skipping unparseable file %s: %v", rel, err)
			return nil
		}
		out = append(out, imports...)
		return nil
	})
	return out, err
}
