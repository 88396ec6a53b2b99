package pipeline

import (
	"context"
	"fmt"
	"io/fs"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tildeio/routerbuild/internal/builderr"
	"github.com/tildeio/routerbuild/internal/logging"
	"github.com/tildeio/routerbuild/internal/metrics"
	"github.com/tildeio/routerbuild/internal/progress"
	"github.com/tildeio/routerbuild/internal/tree"
)

// NodeFunc computes a node's tree from the trees of its dependencies, given
// in the order the dependencies were declared.
type NodeFunc func(ctx context.Context, in []fs.FS) (fs.FS, error)

// Graph is a static DAG of tree-producing nodes. Every node runs exactly
// once per Run, after all of its dependencies.
type Graph struct {
	nodes   map[string]*node
	names   []string
	err     error
	workers int
	log     *logging.Logger
	bar     *progress.Bar
	trace   bool
}

type node struct {
	name string
	deps []string
	fn   NodeFunc
}

func NewGraph() *Graph {
	return &Graph{nodes: make(map[string]*node), workers: 1}
}

func (g *Graph) WithWorkers(n int) *Graph {
	g.workers = max(n, 1)
	return g
}

func (g *Graph) WithLogger(log *logging.Logger) *Graph {
	g.log = log
	return g
}

func (g *Graph) WithProgress(bar *progress.Bar) *Graph {
	g.bar = bar
	return g
}

// WithTrace makes every node output log the reads of its dependents at
// debug level.
func (g *Graph) WithTrace(trace bool) *Graph {
	g.trace = trace
	return g
}

// Add declares a node. Declaration errors are reported by Order and Run.
func (g *Graph) Add(name string, deps []string, fn NodeFunc) {
	if g.err != nil {
		return
	}
	if _, ok := g.nodes[name]; ok {
		g.err = fmt.Errorf("duplicate node %q", name)
		return
	}
	g.nodes[name] = &node{name: name, deps: slices.Clone(deps), fn: fn}
	g.names = append(g.names, name)
}

// Deps returns the declared dependencies of the named node.
func (g *Graph) Deps(name string) []string {
	if n, ok := g.nodes[name]; ok {
		return slices.Clone(n.deps)
	}
	return nil
}

// Order returns the nodes in a topological order. Ties are broken by
// declaration order, so the result is stable across runs.
func (g *Graph) Order() ([]string, error) {
	if g.err != nil {
		return nil, g.err
	}

	indegree := make(map[string]int, len(g.nodes))
	dependents := make(map[string][]string, len(g.nodes))
	for _, name := range g.names {
		n := g.nodes[name]
		for _, d := range n.deps {
			if _, ok := g.nodes[d]; !ok {
				return nil, fmt.Errorf("node %q depends on unknown node %q", name, d)
			}
			indegree[name]++
			dependents[d] = append(dependents[d], name)
		}
	}

	order := make([]string, 0, len(g.names))
	done := make(map[string]bool, len(g.names))
	for len(order) < len(g.names) {
		progressed := false
		for _, name := range g.names {
			if done[name] || indegree[name] > 0 {
				continue
			}
			done[name] = true
			order = append(order, name)
			for _, d := range dependents[name] {
				indegree[d]--
			}
			progressed = true
		}
		if !progressed {
			var cycle []string
			for _, name := range g.names {
				if !done[name] {
					cycle = append(cycle, name)
				}
			}
			return nil, fmt.Errorf("dependency cycle among nodes %v", cycle)
		}
	}
	return order, nil
}

type result struct {
	done chan struct{}
	out  fs.FS
	err  error
}

// Run executes the graph with at most the configured number of nodes in
// flight. The first failure cancels everything else and is returned as a
// *builderr.NodeError; no results are returned in that case.
func (g *Graph) Run(ctx context.Context) (map[string]fs.FS, error) {
	order, err := g.Order()
	if err != nil {
		return nil, err
	}

	results := make(map[string]*result, len(order))
	for _, name := range order {
		results[name] = &result{done: make(chan struct{})}
	}
	g.bar.AddMax(len(order))

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(g.workers)

	// Launching in topological order guarantees that a node occupying a
	// slot only ever waits for nodes that already hold one or have finished.
	for _, name := range order {
		n, res := g.nodes[name], results[name]
		eg.Go(func() error {
			defer close(res.done)

			in := make([]fs.FS, len(n.deps))
			for i, d := range n.deps {
				dep := results[d]
				select {
				case <-dep.done:
				case <-ctx.Done():
					res.err = ctx.Err()
					return ctx.Err()
				}
				if dep.err != nil {
					// The failing dependency reports the error.
					res.err = dep.err
					return nil
				}
				in[i] = dep.out
			}
			if err := ctx.Err(); err != nil {
				res.err = err
				return err
			}

			res.out, res.err = g.exec(ctx, n, in)
			return res.err
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}

	out := make(map[string]fs.FS, len(results))
	for name, res := range results {
		out[name] = res.out
	}
	return out, nil
}

func (g *Graph) exec(ctx context.Context, n *node, in []fs.FS) (fs.FS, error) {
	log := g.log.With("node", n.name)
	log.Debugf("started")
	t0 := time.Now()

	out, err := n.fn(ctx, in)

	metrics.NodeDuration.WithLabelValues(n.name).Observe(time.Since(t0).Seconds())
	g.bar.Add(1)
	if err != nil {
		metrics.NodeFailed.WithLabelValues(n.name, builderr.Kind(err)).Inc()
		log.Warnf("failed: %v", err)
		return nil, &builderr.NodeError{Node: n.name, Err: err}
	}
	if out == nil {
		return nil, &builderr.NodeError{Node: n.name, Err: fmt.Errorf("no output tree")}
	}
	log.Debugf("finished in %v", time.Since(t0))
	if g.trace {
		out = tree.Trace(out, log.Debugf)
	}
	return out, nil
}
