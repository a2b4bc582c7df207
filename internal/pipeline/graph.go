package pipeline

import (
	"container/heap"
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ErrInvalidGraph is returned when steps cannot form a valid dependency graph.
var ErrInvalidGraph = errors.New("invalid step graph")

type (
	// Graph is a validated, immutable set of steps. Steps are indexed in name order,
	// which also breaks ties in the topological order.
	Graph struct {
		steps    []Step
		byName   map[string]int
		byTag    map[string]int
		outgoing [][]int
		incoming [][]int
		indeg    []int
		depth    []int
		external [][]string
		order    []int
	}

	// PlanEntry describes what a run would do with one step.
	PlanEntry struct {
		Step       string   `yaml:"step"`
		Depth      int      `yaml:"depth"`
		Applicable bool     `yaml:"applicable"`
		DependsOn  []string `yaml:"depends-on,omitempty"`
		External   []string `yaml:"external,omitempty"`
	}
)

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidGraph, fmt.Sprintf(format, args...))
}

// NewGraph indexes steps by name and tag and rejects empty or duplicate names,
// tags provided by more than one step, self dependencies and cycles.
func NewGraph(steps ...Step) (*Graph, error) {
	if len(steps) == 0 {
		return nil, invalidf("no steps")
	}

	sorted := slices.Clone(steps)
	slices.SortFunc(sorted, func(a, b Step) int { return strings.Compare(a.Name, b.Name) })

	g := &Graph{
		steps:    sorted,
		byName:   make(map[string]int, len(sorted)),
		byTag:    make(map[string]int, len(sorted)),
		outgoing: make([][]int, len(sorted)),
		incoming: make([][]int, len(sorted)),
		indeg:    make([]int, len(sorted)),
		external: make([][]string, len(sorted)),
	}

	for i, step := range sorted {
		if step.Name == "" {
			return nil, invalidf("step name is required")
		}
		if step.Run == nil {
			return nil, invalidf("step %q has no body", step.Name)
		}
		if _, exists := g.byName[step.Name]; exists {
			return nil, invalidf("duplicate step name %q", step.Name)
		}
		g.byName[step.Name] = i
	}

	for i, step := range sorted {
		for _, tag := range step.provides() {
			if owner, exists := g.byTag[tag]; exists && owner != i {
				return nil, invalidf("tag %q is provided by both %q and %q", tag, sorted[owner].Name, step.Name)
			}
			g.byTag[tag] = i
		}
	}

	for i, step := range sorted {
		seen := make(map[int]struct{})
		for _, dep := range step.Dependencies {
			from, internal := g.byTag[dep]
			if !internal {
				g.external[i] = append(g.external[i], dep)
				continue
			}
			if from == i {
				return nil, invalidf("step %q depends on itself", step.Name)
			}
			if _, dup := seen[from]; dup {
				continue
			}
			seen[from] = struct{}{}
			g.outgoing[from] = append(g.outgoing[from], i)
			g.incoming[i] = append(g.incoming[i], from)
			g.indeg[i]++
		}
	}
	for i := range sorted {
		slices.Sort(g.outgoing[i])
		slices.Sort(g.incoming[i])
	}

	g.order = g.topoOrder()
	if len(g.order) != len(sorted) {
		return nil, invalidf("dependency cycle: %s", strings.Join(g.findCycle(), " -> "))
	}
	g.depth = g.computeDepth()

	return g, nil
}

type intMinHeap []int

func (h intMinHeap) Len() int           { return len(h) }
func (h intMinHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h intMinHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *intMinHeap) Push(x any)        { *h = append(*h, x.(int)) }
func (h *intMinHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// topoOrder is Kahn's algorithm with a min-heap ready queue, so ties resolve by name.
func (g *Graph) topoOrder() []int {
	indeg := slices.Clone(g.indeg)

	ready := &intMinHeap{}
	for i, d := range indeg {
		if d == 0 {
			heap.Push(ready, i)
		}
	}

	out := make([]int, 0, len(indeg))
	for ready.Len() > 0 {
		n := heap.Pop(ready).(int)
		out = append(out, n)
		for _, m := range g.outgoing[n] {
			indeg[m]--
			if indeg[m] == 0 {
				heap.Push(ready, m)
			}
		}
	}
	return out
}

// findCycle returns one cycle as step names, found by DFS in index order.
func (g *Graph) findCycle() []string {
	const (
		white = iota
		gray
		black
	)

	color := make([]int, len(g.steps))
	var stack []int
	var cycle []int

	var visit func(int) bool
	visit = func(u int) bool {
		color[u] = gray
		stack = append(stack, u)
		for _, v := range g.outgoing[u] {
			switch color[v] {
			case gray:
				start := slices.Index(stack, v)
				cycle = append(slices.Clone(stack[start:]), v)
				return true
			case white:
				if visit(v) {
					return true
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[u] = black
		return false
	}

	for i := range g.steps {
		if color[i] == white && visit(i) {
			break
		}
	}

	names := make([]string, 0, len(cycle))
	for _, i := range cycle {
		names = append(names, g.steps[i].Name)
	}
	return names
}

// computeDepth is the longest path from any root.
func (g *Graph) computeDepth() []int {
	depth := make([]int, len(g.steps))
	for _, u := range g.order {
		for _, p := range g.incoming[u] {
			depth[u] = max(depth[u], depth[p]+1)
		}
	}
	return depth
}

// Order returns step names in execution order.
func (g *Graph) Order() []string {
	names := make([]string, 0, len(g.order))
	for _, i := range g.order {
		names = append(names, g.steps[i].Name)
	}
	return names
}

// External returns the dependencies of step that no step in the graph provides.
func (g *Graph) External(step string) []string {
	i, ok := g.byName[step]
	if !ok {
		return nil
	}
	return slices.Clone(g.external[i])
}

// closure returns the steps needed to satisfy targets, every step when none are given.
func (g *Graph) closure(targets []string) (map[int]struct{}, error) {
	selected := make(map[int]struct{}, len(g.steps))
	if len(targets) == 0 {
		for i := range g.steps {
			selected[i] = struct{}{}
		}
		return selected, nil
	}

	var queue []int
	for _, target := range targets {
		i, ok := g.byTag[target]
		if !ok {
			return nil, fmt.Errorf("unknown step or tag %q", target)
		}
		queue = append(queue, i)
	}

	for len(queue) > 0 {
		i := queue[0]
		queue = queue[1:]
		if _, done := selected[i]; done {
			continue
		}
		selected[i] = struct{}{}
		queue = append(queue, g.incoming[i]...)
	}

	return selected, nil
}

// Plan lists, in execution order, the steps a run on network would visit and
// whether each would act or be skipped. Nothing is executed.
func (g *Graph) Plan(network Network, targets ...string) ([]PlanEntry, error) {
	selected, err := g.closure(targets)
	if err != nil {
		return nil, err
	}

	entries := make([]PlanEntry, 0, len(selected))
	for _, i := range g.order {
		if _, ok := selected[i]; !ok {
			continue
		}

		step := g.steps[i]
		entry := PlanEntry{
			Step:       step.Name,
			Depth:      g.depth[i],
			Applicable: IsApplicable(network, step.Networks),
			External:   g.External(step.Name),
		}
		for _, p := range g.incoming[i] {
			entry.DependsOn = append(entry.DependsOn, g.steps[p].Name)
		}
		entries = append(entries, entry)
	}

	return entries, nil
}
