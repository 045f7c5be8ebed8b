package buildgraph

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"slices"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/embroider-build/embroider-sub001/internal/logger"
)

// ErrCycle is returned when the graph is not acyclic.
var ErrCycle = errors.New("build graph contains a cycle")

// Options tune a Builder.
type Options struct {
	// Concurrency bounds how many nodes of one wave build at once.
	// Zero means GOMAXPROCS.
	Concurrency int
}

// Result describes one build.
type Result struct {
	OutputPath string
	Rebuilt    []string
	Duration   time.Duration
}

type state struct {
	node      Node
	label     string
	inputs    []*state
	output    string
	depth     int
	revision  int
	inputRevs []int
	built     bool
	print     string
}

// Builder owns the output directories of a graph and rebuilds it
// incrementally.
type Builder struct {
	root   *state
	tmpDir string
	opts   Options
	states map[Node]*state
	waves  [][]*state
}

var unsafeLabel = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// NewBuilder walks the graph reachable from root and assigns every
// non-source node an output directory under tmpDir.
func NewBuilder(root Node, tmpDir string, opts Options) (*Builder, error) {
	if opts.Concurrency <= 0 {
		opts.Concurrency = runtime.GOMAXPROCS(0)
	}
	b := &Builder{tmpDir: tmpDir, opts: opts, states: make(map[Node]*state)}

	const (
		visiting = 1
		done     = 2
	)
	marks := make(map[Node]int)
	var order []*state

	var visit func(n Node) (*state, error)
	visit = func(n Node) (*state, error) {
		switch marks[n] {
		case visiting:
			return nil, fmt.Errorf("%w at %s", ErrCycle, Label(n))
		case done:
			return b.states[n], nil
		}
		marks[n] = visiting
		st := &state{node: n, label: Label(n)}
		for _, in := range n.Inputs() {
			child, err := visit(in)
			if err != nil {
				return nil, err
			}
			st.inputs = append(st.inputs, child)
			st.depth = max(st.depth, child.depth+1)
		}
		marks[n] = done
		b.states[n] = st
		order = append(order, st)
		return st, nil
	}

	root0, err := visit(root)
	if err != nil {
		return nil, err
	}
	b.root = root0

	for i, st := range order {
		switch n := st.node.(type) {
		case Source:
			st.output = n.SourceDir()
		case OutputOwner:
			st.output = n.OutputDir()
		default:
			st.output = filepath.Join(tmpDir, fmt.Sprintf("%04d-%s", i, unsafeLabel.ReplaceAllString(st.label, "_")))
		}
		for len(b.waves) <= st.depth {
			b.waves = append(b.waves, nil)
		}
		b.waves[st.depth] = append(b.waves[st.depth], st)
	}
	return b, nil
}

// OutputPath returns where n's output lives.
func (b *Builder) OutputPath(n Node) (string, bool) {
	st, ok := b.states[n]
	if !ok {
		return "", false
	}
	return st.output, true
}

// Build brings every node up to date. Nodes of the same depth build
// concurrently. The first failure cancels the rest of the build.
func (b *Builder) Build(ctx context.Context) (Result, error) {
	start := time.Now()
	var (
		mu      sync.Mutex
		rebuilt []string
	)
	for depth, wave := range b.waves {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(b.opts.Concurrency)
		for _, st := range wave {
			g.Go(func() error {
				changed, err := b.buildNode(gctx, st)
				if err != nil {
					return err
				}
				if changed {
					mu.Lock()
					rebuilt = append(rebuilt, st.label)
					mu.Unlock()
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return Result{}, err
		}
		logger.Debugf("build wave %d: %d nodes", depth, len(wave))
	}
	sort.Strings(rebuilt)
	return Result{OutputPath: b.root.output, Rebuilt: rebuilt, Duration: time.Since(start)}, nil
}

func (b *Builder) buildNode(ctx context.Context, st *state) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if src, ok := st.node.(Source); ok {
		fp, err := Fingerprint(src.SourceDir(), src.SourceFiles())
		if err != nil {
			return false, fmt.Errorf("fingerprint %s: %w", st.label, err)
		}
		if st.built && fp == st.print {
			return false, nil
		}
		st.print = fp
		st.built = true
		st.revision++
		return true, nil
	}

	revs := make([]int, len(st.inputs))
	paths := make([]string, len(st.inputs))
	for i, in := range st.inputs {
		revs[i] = in.revision
		paths[i] = in.output
	}
	volatile := false
	if v, ok := st.node.(Volatile); ok {
		volatile = v.Volatile()
	}
	if st.built && !volatile && slices.Equal(revs, st.inputRevs) {
		return false, nil
	}

	if _, owner := st.node.(OutputOwner); !owner {
		if err := os.RemoveAll(st.output); err != nil {
			return false, err
		}
	}
	if err := os.MkdirAll(st.output, 0o755); err != nil {
		return false, err
	}

	st.built = false
	if err := st.node.Build(ctx, BuildInput{InputPaths: paths, OutputPath: st.output}); err != nil {
		return false, fmt.Errorf("%s: %w", st.label, err)
	}
	st.built = true
	st.inputRevs = revs
	st.revision++
	return true, nil
}

// Cleanup removes every builder-owned output directory.
func (b *Builder) Cleanup() error {
	return os.RemoveAll(b.tmpDir)
}
