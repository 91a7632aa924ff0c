// Package node implements the typed wrappers for every kind of
// declarable algorithm — sources, transforms, observers, outputs,
// reductions, and splitters — over a common capability set: inputs,
// outputs, predicates, concurrency, name, and invoke. Kinds are modeled
// as a sum variant over one Declaration struct rather than a type
// hierarchy.
package node

import (
	"context"

	"github.com/greenc-FNAL/phlex/specification"
	"github.com/greenc-FNAL/phlex/store"
)

// Kind is the sum-variant discriminator for a Declaration.
type Kind int

const (
	Source Kind = iota
	Transform
	Observer
	Output
	Reduction
	Splitter
)

func (k Kind) String() string {
	switch k {
	case Source:
		return "source"
	case Transform:
		return "transform"
	case Observer:
		return "observer"
	case Output:
		return "output"
	case Reduction:
		return "reduction"
	case Splitter:
		return "splitter"
	default:
		return "unknown"
	}
}

// PolicyKind enumerates the three concurrency policies a node may
// declare.
type PolicyKind int

const (
	PolicySerial PolicyKind = iota
	PolicyUnlimited
	PolicyBounded
)

// Concurrency is a node's declared concurrency bound.
type Concurrency struct {
	Policy PolicyKind
	N      int // meaningful only when Policy == PolicyBounded
}

// SerialPolicy permits at most one invocation of a node in flight at a
// time.
func SerialPolicy() Concurrency { return Concurrency{Policy: PolicySerial} }

// UnlimitedPolicy permits any number of concurrent invocations.
func UnlimitedPolicy() Concurrency { return Concurrency{Policy: PolicyUnlimited} }

// BoundedPolicy permits at most n concurrent invocations, n > 0.
func BoundedPolicy(n int) Concurrency {
	if n < 1 {
		n = 1
	}
	return Concurrency{Policy: PolicyBounded, N: n}
}

// Callable is the erased shape of every user algorithm once the
// registrar's arity-specialized adapters (see arity.go) have bound it.
// args are supplied in the order Declaration.Inputs declares them;
// results are returned in the order Declaration.Outputs declares them.
// Observers return a nil result slice; an Output's results are the
// values it writes through its Persister, in Outputs order.
type Callable func(ctx context.Context, args []any) ([]any, error)

// SourceFunc pulls the next record from a source. It returns ok=false
// when the source is exhausted (having already issued any closing
// flush it owes the scheduler).
type SourceFunc func(ctx context.Context) (rec *store.Store, ok bool, err error)

// SplitFunc consumes one inbound record and produces zero or more child
// records plus phlex's mandatory terminating flush at the new level; the
// splitter itself mints the flush, so SplitFunc returns only the
// children. Children must be minted via in.MakeChild(number, ...) with
// number running contiguously 0..len(children)-1: the splitter reuses
// len(children) as the number of its own synthetic terminating flush,
// and a gap or duplicate in the children's numbering would let that
// flush collide with a real child's Level ID.
type SplitFunc func(ctx context.Context, in *store.Store) (children []*store.Store, err error)

// Persister is the opaque, engine-external persistence interface an
// Output node's side effect writes through; it describes a shape, not
// a concrete backend.
type Persister interface {
	ConfigureTech(settings map[string]string) error
	ConfigureOutputItems(items []string) error
	CreateContainers(creator string, types map[string]string) error
	RegisterWrite(creator, label string, data any, typeTag string) error
	CommitOutput(creator, recordID string) error
}

// Declaration is the build-time record of one user algorithm, collecting
// the fields relevant to its Kind. The graph builder and registrar
// operate purely on Declarations; only the executor ever calls Fn.
type Declaration struct {
	Kind        Kind
	Name        string
	Concurrency Concurrency

	Inputs     []specification.Query
	Outputs    []specification.Spec
	Predicates []string

	Fn Callable

	// Reduction-only fields.
	AggregationLevel string
	Init             func() any
	Finalize         func(acc any) (any, error)

	// Splitter-only fields.
	ChildLevelName string
	Split          SplitFunc

	// Source-only fields.
	Pull SourceFunc

	// Output-only fields.
	Writer Persister
}

// QualifiedName returns the declaration's algorithm name, unique within
// its module.
func (d *Declaration) QualifiedName() string { return d.Name }
