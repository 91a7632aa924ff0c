// Package store implements the hierarchical record node — the "product
// store" — that carries a product bag, a stage, and a parent link.
package store

import (
	"github.com/greenc-FNAL/phlex/level"
	"github.com/greenc-FNAL/phlex/product"
)

// Stage distinguishes a normal record from a flush marker.
type Stage int

const (
	// Process is the stage of an ordinary record carrying products.
	Process Stage = iota
	// Flush is the stage of a marker that closes a subtree; flush stores
	// carry no products.
	Flush
)

func (s Stage) String() string {
	if s == Flush {
		return "flush"
	}
	return "process"
}

// Store is one node of the hierarchical record tree. Stores are
// immutable after construction: every mutator returns a new Store and
// never modifies the receiver or its ancestors. Multiple goroutines may
// read a published Store concurrently without locking.
type Store struct {
	parent   *Store
	id       *level.ID
	source   string
	stage    Stage
	products *product.Container
}

// Root returns the root of a fresh record tree: no parent, depth 0, no
// products.
func Root() *Store {
	return &Store{id: level.Root(), products: product.Empty}
}

// MakeChild mints a child store one level below s, descending the
// hierarchy. number/name extend s's Level ID; source names the producer
// that minted the child; products is the child's initial bag (possibly
// empty).
func (s *Store) MakeChild(number int, name, source string, products *product.Container) *Store {
	if products == nil {
		products = product.Empty
	}
	return &Store{
		parent:   s,
		id:       s.id.MakeChild(number, name),
		source:   source,
		stage:    Process,
		products: products,
	}
}

// MakeChildFlush mints a flush marker for a new child level, used by a
// splitter to terminate the children it has just emitted.
func (s *Store) MakeChildFlush(number int, name, source string) *Store {
	return &Store{
		parent: s,
		id:     s.id.MakeChild(number, name),
		source: source,
		stage:  Flush,
	}
}

// MakeContinuation mints a new store at the same level as s (same id,
// same parent) carrying different products. Used by transforms and
// reductions that emit an output record without changing level.
func (s *Store) MakeContinuation(source string, products *product.Container) *Store {
	if products == nil {
		products = product.Empty
	}
	return &Store{
		parent:   s.parent,
		id:       s.id,
		source:   source,
		stage:    Process,
		products: products,
	}
}

// MakeFlush mints a flush marker at the same level as s: same id, no
// products.
func (s *Store) MakeFlush() *Store {
	return &Store{
		parent: s.parent,
		id:     s.id,
		source: "[inserted]",
		stage:  Flush,
	}
}

// Parent walks strictly upward from s and returns the nearest ancestor
// whose level name matches levelName, or nil if none matches. s itself is
// not considered.
func (s *Store) Parent(levelName string) *Store {
	for p := s.parent; p != nil; p = p.parent {
		if p.LevelName() == levelName {
			return p
		}
	}
	return nil
}

// DirectParent returns s's immediate parent, or nil for the root.
func (s *Store) DirectParent() *Store {
	return s.parent
}

// StoreForProduct walks from s upward to the root and returns the
// nearest store (s itself or an ancestor) that contains a product named
// name. Sibling continuations at the same level are never visited: the
// search only ever follows parent links.
func (s *Store) StoreForProduct(name string) *Store {
	for cur := s; cur != nil; cur = cur.parent {
		if cur.ContainsProduct(name) {
			return cur
		}
	}
	return nil
}

// ContainsProduct reports whether s's own product bag (not ancestors)
// holds name.
func (s *Store) ContainsProduct(name string) bool {
	return s.products.Contains(name)
}

// Products returns s's own product container.
func (s *Store) Products() *product.Container {
	return s.products
}

// IsFlush reports whether s is a flush marker.
func (s *Store) IsFlush() bool {
	return s.stage == Flush
}

// Stage returns s's stage.
func (s *Store) Stage() Stage {
	return s.stage
}

// ID returns s's Level ID.
func (s *Store) ID() *level.ID {
	return s.id
}

// LevelName returns the level name of s's Level ID.
func (s *Store) LevelName() string {
	return s.id.LevelName()
}

// Source returns the short free-form label of the producer that minted
// s.
func (s *Store) Source() string {
	return s.source
}

// MoreDerived returns whichever of a and b sits deeper in the
// hierarchy, for picking a canonical record identity among ancestor
// candidates.
func MoreDerived(a, b *Store) *Store {
	if b.ID().Depth() > a.ID().Depth() {
		return b
	}
	return a
}
