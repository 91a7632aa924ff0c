// Package product implements the typed, name-keyed product bag carried
// by every product store.
package product

import "fmt"

// Product is a single named value plus its declared type tag. The type
// tag is opaque to the engine; it is whatever string producers and
// consumers agree identifies the Go type stored in Value.
type Product struct {
	Name  string
	Type  string
	Value any
}

// Container is an immutable, name-keyed bag of Products. Within one
// Container, names are unique. Containers are safe for concurrent reads
// by multiple goroutines once published.
type Container struct {
	byName map[string]Product
}

// Empty is the canonical empty container that store constructors
// substitute for a nil product bag. Flush stores carry a nil container,
// which reads as empty.
var Empty = &Container{}

// New builds a Container from products, rejecting duplicate names.
func New(products ...Product) (*Container, error) {
	byName := make(map[string]Product, len(products))
	for _, p := range products {
		if _, exists := byName[p.Name]; exists {
			return nil, fmt.Errorf("product: duplicate product name %q", p.Name)
		}
		byName[p.Name] = p
	}
	return &Container{byName: byName}, nil
}

// MustNew is like New but panics on error; intended for static call sites
// such as tests and demo sources.
func MustNew(products ...Product) *Container {
	c, err := New(products...)
	if err != nil {
		panic(err)
	}
	return c
}

// Contains reports whether the container holds a product with the given
// name.
func (c *Container) Contains(name string) bool {
	if c == nil {
		return false
	}
	_, ok := c.byName[name]
	return ok
}

// Get returns the named product and whether it was found.
func (c *Container) Get(name string) (Product, bool) {
	if c == nil {
		return Product{}, false
	}
	p, ok := c.byName[name]
	return p, ok
}

// TypedGet returns the value of the named product, checking that its
// stored type tag matches wantType. A mismatch is a recoverable error per
// the engine's error model (see dflerrors.TypeMismatch).
func (c *Container) TypedGet(name, wantType string) (any, error) {
	p, ok := c.Get(name)
	if !ok {
		return nil, fmt.Errorf("product: no product named %q", name)
	}
	if p.Type != wantType {
		return nil, fmt.Errorf(
			"product: cannot get %q with type %q -- must specify type %q",
			name, wantType, p.Type,
		)
	}
	return p.Value, nil
}

// Names returns the product names held by c, in no particular order.
func (c *Container) Names() []string {
	if c == nil {
		return nil
	}
	names := make([]string, 0, len(c.byName))
	for name := range c.byName {
		names = append(names, name)
	}
	return names
}

// Len returns the number of products in c.
func (c *Container) Len() int {
	if c == nil {
		return 0
	}
	return len(c.byName)
}
