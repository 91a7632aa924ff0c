// Package graph resolves a flat slice of node.Declaration values into a
// wired DAG: it matches every declared input query and predicate to the
// one producer that satisfies it, builds the producer/consumer edge
// set, and computes a deterministic topological order via Kahn's
// algorithm over a sorted queue; nodes still unordered when the queue
// empties are reported as a cycle.
package graph

import (
	"fmt"
	"sort"

	"github.com/greenc-FNAL/phlex/dflerrors"
	"github.com/greenc-FNAL/phlex/node"
	"github.com/greenc-FNAL/phlex/specification"
)

// Edge is a directed producer -> consumer wire, annotated with which
// specification satisfied it so the executor can label the inbound
// message slot it corresponds to.
type Edge struct {
	Producer string
	Consumer string
	Spec     specification.Spec
}

// Wired is one node's resolved wiring: its Declaration plus the
// distinct upstream producers it must join on, in the order its
// Inputs/Predicates were declared. The executor sizes a node's join
// buffer from len(Wired.Producers).
type Wired struct {
	Decl      *node.Declaration
	Producers []string // distinct upstream node names, deduplicated, order of first use

	// InputProducers[i] names the producer that resolved Decl.Inputs[i];
	// PredicateProducers[i] names the producer that resolved
	// Decl.Predicates[i]. Both are parallel to their Decl slice, letting
	// the executor extract each declared argument from the specific
	// producer's delivered continuation rather than a merged view.
	InputProducers     []string
	PredicateProducers []string

	// Children lists the distinct downstream node names this node
	// feeds, in order of first use, the broadcast side of the join the
	// Producers field describes for the consumer side.
	Children []string
}

// Graph is the fully resolved, immutable build-time DAG.
type Graph struct {
	nodes map[string]*Wired
	edges []Edge
	order []string // topological order, deterministic
}

// Node returns the wiring for the named declaration, if present.
func (g *Graph) Node(name string) (*Wired, bool) {
	w, ok := g.nodes[name]
	return w, ok
}

// Order returns the graph's deterministic topological order.
func (g *Graph) Order() []string {
	out := make([]string, len(g.order))
	copy(out, g.order)
	return out
}

// Edges returns the graph's resolved producer/consumer edges.
func (g *Graph) Edges() []Edge {
	out := make([]Edge, len(g.edges))
	copy(out, g.edges)
	return out
}

// Sources returns the names of every node.Source declaration in the
// graph, in topological order.
func (g *Graph) Sources() []string {
	var out []string
	for _, name := range g.order {
		if g.nodes[name].Decl.Kind == node.Source {
			out = append(out, name)
		}
	}
	return out
}

// Build resolves decls into a Graph, or returns a *dflerrors.Error of
// kind DuplicateSpecification, UnresolvedInput, AmbiguousInput, or
// CycleDetected on the first structural problem found.
func Build(decls []*node.Declaration) (*Graph, error) {
	producersBySpec, err := indexProducers(decls)
	if err != nil {
		return nil, err
	}
	producersByLabel := indexProducersByLabel(decls)

	nodes := make(map[string]*Wired, len(decls))
	for _, d := range decls {
		nodes[d.Name] = &Wired{Decl: d}
	}

	var edges []Edge
	childSeen := map[string]map[string]bool{}
	for _, d := range decls {
		seen := map[string]bool{}
		addProducer := func(producer string, spec specification.Spec) {
			edges = append(edges, Edge{Producer: producer, Consumer: d.Name, Spec: spec})
			if !seen[producer] {
				seen[producer] = true
				nodes[d.Name].Producers = append(nodes[d.Name].Producers, producer)
			}
			if childSeen[producer] == nil {
				childSeen[producer] = map[string]bool{}
			}
			if !childSeen[producer][d.Name] {
				childSeen[producer][d.Name] = true
				nodes[producer].Children = append(nodes[producer].Children, d.Name)
			}
		}

		for _, q := range d.Inputs {
			producer, err := resolveOne(producersBySpec, q.Label, q.Layer, d.Name)
			if err != nil {
				return nil, err
			}
			addProducer(producer, q)
			nodes[d.Name].InputProducers = append(nodes[d.Name].InputProducers, producer)
		}
		for _, label := range d.Predicates {
			producer, err := resolveOneByLabel(producersByLabel, label, d.Name)
			if err != nil {
				return nil, err
			}
			addProducer(producer, specification.New(label, ""))
			nodes[d.Name].PredicateProducers = append(nodes[d.Name].PredicateProducers, producer)
		}
	}

	order, err := topologicalSort(nodes, edges)
	if err != nil {
		return nil, err
	}

	return &Graph{nodes: nodes, edges: edges, order: order}, nil
}

// indexProducers maps every declared output specification to the one
// node that declares it, failing with DuplicateSpecification if two
// nodes declare the same (label, layer).
func indexProducers(decls []*node.Declaration) (map[specification.Spec]string, error) {
	index := map[specification.Spec]string{}
	for _, d := range decls {
		for _, out := range d.Outputs {
			spec := specification.New(out.Label, out.Layer)
			if existing, exists := index[spec]; exists {
				return nil, dflerrors.E(dflerrors.DuplicateSpecification, []string{spec.String()}, fmt.Errorf("both %q and %q produce %s", existing, d.Name, spec)).
					WithCandidates(existing, d.Name)
			}
			index[spec] = d.Name
		}
	}
	return index, nil
}

// indexProducersByLabel maps an output label to the set of nodes that
// produce any specification with that label, for predicate resolution.
func indexProducersByLabel(decls []*node.Declaration) map[string][]string {
	index := map[string][]string{}
	for _, d := range decls {
		added := map[string]bool{}
		for _, out := range d.Outputs {
			if !added[out.Label] {
				index[out.Label] = append(index[out.Label], d.Name)
				added[out.Label] = true
			}
		}
	}
	return index
}

func resolveOne(index map[specification.Spec]string, label, layer, consumer string) (string, error) {
	spec := specification.New(label, layer)
	producer, ok := index[spec]
	if !ok {
		return "", dflerrors.E(dflerrors.UnresolvedInput, []string{consumer, spec.String()}, fmt.Errorf("no producer declares %s", spec))
	}
	return producer, nil
}

func resolveOneByLabel(index map[string][]string, label, consumer string) (string, error) {
	producers := index[label]
	switch len(producers) {
	case 0:
		return "", dflerrors.E(dflerrors.UnresolvedInput, []string{consumer, label}, fmt.Errorf("no producer declares output %q", label))
	case 1:
		return producers[0], nil
	default:
		sorted := append([]string(nil), producers...)
		sort.Strings(sorted)
		return "", dflerrors.E(dflerrors.AmbiguousInput, []string{consumer, label}, fmt.Errorf("multiple producers declare output %q", label)).
			WithCandidates(sorted[0], sorted[1])
	}
}

// topologicalSort runs Kahn's algorithm over a sorted queue, so that
// among several nodes simultaneously ready, the lexicographically
// smallest name is always emitted first — the graph's topological
// order is a pure function of its declarations, not of map iteration.
func topologicalSort(nodes map[string]*Wired, edges []Edge) ([]string, error) {
	children := map[string][]string{}
	inDegree := map[string]int{}
	for name := range nodes {
		inDegree[name] = 0
	}
	for _, e := range edges {
		children[e.Producer] = append(children[e.Producer], e.Consumer)
		inDegree[e.Consumer]++
	}

	var queue []string
	for name, deg := range inDegree {
		if deg == 0 {
			queue = append(queue, name)
		}
	}
	sort.Strings(queue)

	var result []string
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		result = append(result, name)

		next := append([]string(nil), children[name]...)
		sort.Strings(next)
		for _, child := range next {
			inDegree[child]--
			if inDegree[child] == 0 {
				idx := sort.SearchStrings(queue, child)
				queue = append(queue[:idx], append([]string{child}, queue[idx:]...)...)
			}
		}
	}

	if len(result) != len(nodes) {
		var stuck []string
		for name, deg := range inDegree {
			if deg > 0 {
				stuck = append(stuck, name)
			}
		}
		sort.Strings(stuck)
		return nil, dflerrors.E(dflerrors.CycleDetected, stuck, fmt.Errorf("producer/consumer graph is not acyclic"))
	}
	return result, nil
}
