// Package level implements the hierarchical record identifier used
// throughout phlex: an immutable, ordered path of (number, name)
// components rooted at an empty path.
package level

import (
	"fmt"
	"strconv"
	"strings"
)

// Component is one step of a Level ID's path: a numeric index paired
// with the name of the level it addresses.
type Component struct {
	Number int
	Name   string
}

// ID is an immutable, ordered path of Components. The zero value is not
// valid; use Root to obtain the root ID. IDs are safe to share across
// goroutines: MakeChild never mutates the receiver's path.
type ID struct {
	path []Component
}

// Root returns the Level ID for the root of the hierarchy. The root has
// depth 0 and no components.
func Root() *ID {
	return &ID{}
}

// Depth returns the number of components in the path. The root is at
// depth 0.
func (id *ID) Depth() int {
	if id == nil {
		return 0
	}
	return len(id.path)
}

// Number returns the numeric index of the last path component, or 0 for
// the root.
func (id *ID) Number() int {
	if id == nil || len(id.path) == 0 {
		return 0
	}
	return id.path[len(id.path)-1].Number
}

// LevelName returns the name of the last path component, or "" for the
// root.
func (id *ID) LevelName() string {
	if id == nil || len(id.path) == 0 {
		return ""
	}
	return id.path[len(id.path)-1].Name
}

// MakeChild returns a new ID that extends id with one more component.
// The receiver is never modified; the returned ID shares no backing
// array with it beyond the common prefix being safely read-only.
func (id *ID) MakeChild(number int, name string) *ID {
	base := id
	if base == nil {
		base = Root()
	}
	path := make([]Component, len(base.path)+1)
	copy(path, base.path)
	path[len(base.path)] = Component{Number: number, Name: name}
	return &ID{path: path}
}

// Parent returns the ID's immediate parent, or nil if id is the root.
func (id *ID) Parent() *ID {
	if id == nil || len(id.path) == 0 {
		return nil
	}
	return &ID{path: id.path[:len(id.path)-1]}
}

// Equal reports whether id and other denote the same path.
func (id *ID) Equal(other *ID) bool {
	if id == other {
		return true
	}
	if id == nil || other == nil {
		return id.Depth() == 0 && other.Depth() == 0
	}
	if len(id.path) != len(other.path) {
		return false
	}
	for i := range id.path {
		if id.path[i] != other.path[i] {
			return false
		}
	}
	return true
}

// IsAncestorOf reports whether id is a strict ancestor of other, i.e. id's
// path is a proper prefix of other's.
func (id *ID) IsAncestorOf(other *ID) bool {
	if id.Depth() >= other.Depth() {
		return false
	}
	for i := 0; i < id.Depth(); i++ {
		if id.path[i] != other.path[i] {
			return false
		}
	}
	return true
}

// Key returns a hashable, comparable string uniquely identifying id; it is
// suitable for use as a map key and is equivalent to String.
func (id *ID) Key() string {
	return id.String()
}

// String renders id using the wire encoding "/name0:n0/name1:n1/...".
func (id *ID) String() string {
	if id == nil || len(id.path) == 0 {
		return "/"
	}
	var b strings.Builder
	for _, c := range id.path {
		b.WriteByte('/')
		b.WriteString(c.Name)
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(c.Number))
	}
	return b.String()
}

// Parse decodes the wire encoding produced by String back into an ID.
func Parse(s string) (*ID, error) {
	if s == "/" || s == "" {
		return Root(), nil
	}
	if !strings.HasPrefix(s, "/") {
		return nil, fmt.Errorf("level: invalid encoding %q: must start with '/'", s)
	}
	parts := strings.Split(s[1:], "/")
	path := make([]Component, 0, len(parts))
	for _, part := range parts {
		idx := strings.LastIndex(part, ":")
		if idx < 0 {
			return nil, fmt.Errorf("level: invalid component %q: missing ':'", part)
		}
		name, numStr := part[:idx], part[idx+1:]
		if name == "" {
			return nil, fmt.Errorf("level: invalid component %q: empty name", part)
		}
		n, err := strconv.Atoi(numStr)
		if err != nil {
			return nil, fmt.Errorf("level: invalid component %q: %w", part, err)
		}
		path = append(path, Component{Number: n, Name: name})
	}
	return &ID{path: path}, nil
}

// DeeperOf returns whichever of a and b has the greater depth,
// preferring a on a tie; it is the Level ID counterpart of
// store.MoreDerived.
func DeeperOf(a, b *ID) *ID {
	if b.Depth() > a.Depth() {
		return b
	}
	return a
}
