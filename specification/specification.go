// Package specification implements the product specification: a
// (label, layer) pair that identifies exactly one produced stream, and
// the query a consumer declares to resolve against it.
package specification

import "fmt"

// Spec identifies a produced stream by a product label namespaced by a
// layer. Layer is treated as a pure namespace folded into the equality
// key, not as an independent scheduling dimension.
type Spec struct {
	Label string
	Layer string
}

// Query is the specification a consumer declares; it is matched by
// equality against exactly one producer's output Spec.
type Query = Spec

// New builds a Spec, defaulting an empty layer to "job", the engine's
// implicit global layer.
func New(label string, layer string) Spec {
	if layer == "" {
		layer = DefaultLayer
	}
	return Spec{Label: label, Layer: layer}
}

// DefaultLayer is the implicit layer used when none is specified.
const DefaultLayer = "job"

// String renders spec as "label@layer" for diagnostics.
func (s Spec) String() string {
	return fmt.Sprintf("%s@%s", s.Label, s.Layer)
}
