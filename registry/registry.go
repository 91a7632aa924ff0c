// Package registry implements the fluent Module/Declarer DSL user code
// uses to describe algorithms: a builder collects named declarations
// into maps, rejecting duplicates eagerly, and defers graph wiring to a
// later Build() step the graph package performs.
package registry

import (
	"fmt"

	"github.com/greenc-FNAL/phlex/dflerrors"
	"github.com/greenc-FNAL/phlex/node"
	"github.com/greenc-FNAL/phlex/specification"
)

// Module collects the Declarations contributed by one unit of user
// code. Declare panics on a duplicate name: a colliding algorithm name
// is a programming error caught at startup, not a runtime condition to
// recover from.
type Module struct {
	name  string
	decls map[string]*node.Declaration
	order []string
}

// NewModule creates an empty, named Module.
func NewModule(name string) *Module {
	return &Module{
		name:  name,
		decls: map[string]*node.Declaration{},
	}
}

// Name returns the module's name.
func (m *Module) Name() string { return m.name }

// Declare begins the fluent declaration of a new algorithm of the
// given kind, built from fn (already erased via one of node's arity
// adapters) and concurrency. It returns a *Declarer for chaining
// Input/Output/Predicate/etc. calls. The Declaration is stored in the
// module as soon as Declare is called and the Declarer mutates it in
// place; Module.Build validates the stored declarations and returns
// them.
func (m *Module) Declare(name string, kind node.Kind, fn node.Callable, concurrency node.Concurrency) *Declarer {
	if _, exists := m.decls[name]; exists {
		panic(fmt.Sprintf("phlex: duplicate algorithm name %q in module %q", name, m.name))
	}
	d := &node.Declaration{
		Kind:        kind,
		Name:        name,
		Concurrency: concurrency,
		Fn:          fn,
	}
	m.decls[name] = d
	m.order = append(m.order, name)
	return &Declarer{module: m, decl: d}
}

// Declarer is the fluent, mutating builder handed back by Declare.
// Every method returns the receiver so calls can be chained; all
// mutate the Declaration already stored in the owning Module, so a
// Declarer is a cursor, not an independent value.
type Declarer struct {
	module *Module
	decl   *node.Declaration
}

// Input declares one input query, matched against producers by
// (label, layer) during graph construction.
func (d *Declarer) Input(label, layer string) *Declarer {
	d.decl.Inputs = append(d.decl.Inputs, specification.New(label, layer))
	return d
}

// Output declares one output specification this algorithm produces.
func (d *Declarer) Output(label, layer string) *Declarer {
	d.decl.Outputs = append(d.decl.Outputs, specification.New(label, layer))
	return d
}

// Predicate declares a bare product-name predicate input, resolved by
// label alone (any layer) to the single producer that declares it. The
// algorithm fires on a record only when that product is found on it and
// holds the boolean true; an absent or false product drops the record,
// and a non-boolean one is reported as a TypeMismatch.
func (d *Declarer) Predicate(name string) *Declarer {
	d.decl.Predicates = append(d.decl.Predicates, name)
	return d
}

// AggregationLevel names the level at which a reduction's accumulator
// lives; only meaningful for Kind == node.Reduction.
func (d *Declarer) AggregationLevel(levelName string) *Declarer {
	d.decl.AggregationLevel = levelName
	return d
}

// Initializer supplies a reduction's zero-accumulator constructor.
func (d *Declarer) Initializer(fn func() any) *Declarer {
	d.decl.Init = fn
	return d
}

// Finalizer supplies a reduction's accumulator-to-product(s) function,
// invoked exactly once when the reduction's level flushes.
func (d *Declarer) Finalizer(fn func(acc any) (any, error)) *Declarer {
	d.decl.Finalize = fn
	return d
}

// ChildLevel names the level a splitter mints for each emitted child;
// only meaningful for Kind == node.Splitter.
func (d *Declarer) ChildLevel(levelName string) *Declarer {
	d.decl.ChildLevelName = levelName
	return d
}

// Source installs the pull function driving a Kind == node.Source
// declaration.
func (d *Declarer) Source(pull node.SourceFunc) *Declarer {
	d.decl.Pull = pull
	return d
}

// Split installs the split function driving a Kind == node.Splitter
// declaration.
func (d *Declarer) Split(fn node.SplitFunc) *Declarer {
	d.decl.Split = fn
	return d
}

// Writer installs the persistence sink an Output declaration writes
// through.
func (d *Declarer) Writer(w node.Persister) *Declarer {
	d.decl.Writer = w
	return d
}

// Declaration returns the Declaration under construction. Callers
// assembling a graph directly (bypassing Module.Build) can use this to
// read back the fully-chained value.
func (d *Declarer) Declaration() *node.Declaration { return d.decl }

// Build validates the module's declarations for structural
// completeness — that every Kind carries the fields it requires — and
// returns them in declaration order. It does not resolve inputs to
// producers or check for cycles; that is graph.Build's job once all
// contributing modules have been merged.
func (m *Module) Build() ([]*node.Declaration, error) {
	out := make([]*node.Declaration, 0, len(m.order))
	for _, name := range m.order {
		d := m.decls[name]
		if err := validateKindFields(d); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// MustBuild is like Build but panics on error, for use in package-init
// wiring where a malformed declaration is a programming error.
func (m *Module) MustBuild() []*node.Declaration {
	decls, err := m.Build()
	if err != nil {
		panic(err)
	}
	return decls
}

// Merge builds every module and concatenates their declarations,
// rejecting a name declared in more than one module. Multiple modules
// are how independent units of user code compose into one graph.
func Merge(modules ...*Module) ([]*node.Declaration, error) {
	seen := map[string]string{} // name -> owning module
	var all []*node.Declaration
	for _, m := range modules {
		decls, err := m.Build()
		if err != nil {
			return nil, err
		}
		for _, d := range decls {
			if owner, exists := seen[d.Name]; exists {
				return nil, dflerrors.E(dflerrors.DuplicateName, []string{d.Name}, fmt.Errorf("declared in modules %q and %q", owner, m.name))
			}
			seen[d.Name] = m.name
			all = append(all, d)
		}
	}
	return all, nil
}

func validateKindFields(d *node.Declaration) error {
	switch d.Kind {
	case node.Source:
		if d.Pull == nil {
			return dflerrors.E(dflerrors.InternalInvariant, []string{d.Name}, fmt.Errorf("source declaration missing Source(pull)"))
		}
	case node.Splitter:
		if d.Split == nil {
			return dflerrors.E(dflerrors.InternalInvariant, []string{d.Name}, fmt.Errorf("splitter declaration missing Split(fn)"))
		}
		if d.ChildLevelName == "" {
			return dflerrors.E(dflerrors.InternalInvariant, []string{d.Name}, fmt.Errorf("splitter declaration missing ChildLevel(name)"))
		}
	case node.Reduction:
		if d.Init == nil {
			return dflerrors.E(dflerrors.InternalInvariant, []string{d.Name}, fmt.Errorf("reduction declaration missing Initializer(fn)"))
		}
		if d.Finalize == nil {
			return dflerrors.E(dflerrors.InternalInvariant, []string{d.Name}, fmt.Errorf("reduction declaration missing Finalizer(fn)"))
		}
		if d.AggregationLevel == "" {
			return dflerrors.E(dflerrors.InternalInvariant, []string{d.Name}, fmt.Errorf("reduction declaration missing AggregationLevel(name)"))
		}
	case node.Output:
		if d.Writer == nil {
			return dflerrors.E(dflerrors.InternalInvariant, []string{d.Name}, fmt.Errorf("output declaration missing Writer(w)"))
		}
	case node.Transform, node.Observer:
		if d.Fn == nil {
			return dflerrors.E(dflerrors.InternalInvariant, []string{d.Name}, fmt.Errorf("%s declaration missing callable", d.Kind))
		}
	}
	return nil
}
