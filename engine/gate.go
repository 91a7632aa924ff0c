package engine

import "github.com/greenc-FNAL/phlex/node"

// gate enforces a node's concurrency policy. It is the buffered-channel
// token bucket idiom Go code reaches for in place of a dedicated
// semaphore package: a full bucket blocks acquire, a receive on release
// frees a slot.
type gate struct {
	tokens chan struct{}
}

// newGate builds a gate for the given policy. Unlimited gates have a
// nil token channel and never block.
func newGate(c node.Concurrency) *gate {
	switch c.Policy {
	case node.PolicySerial:
		return &gate{tokens: make(chan struct{}, 1)}
	case node.PolicyBounded:
		return &gate{tokens: make(chan struct{}, c.N)}
	default: // node.PolicyUnlimited
		return &gate{}
	}
}

func (g *gate) acquire() {
	if g.tokens != nil {
		g.tokens <- struct{}{}
	}
}

func (g *gate) release() {
	if g.tokens != nil {
		<-g.tokens
	}
}
