// Package engine implements the concurrent scheduler/executor: it
// takes a resolved graph.Graph and runs it to completion as a
// message-passing flow graph, one goroutine per node joined by
// record identity, governed by an errgroup.Group.
package engine

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/greenc-FNAL/phlex/graph"
	"github.com/greenc-FNAL/phlex/node"
	"github.com/greenc-FNAL/phlex/phlexlog"
	"github.com/rs/zerolog"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

// Engine runs one resolved graph to completion. Construct with New and
// call Execute. Each Execute builds fresh node runtimes and join state,
// but drives the same Declaration.Pull functions, so a later run starts
// from whatever state those sources were left in.
type Engine struct {
	graph *graph.Graph
	log   zerolog.Logger

	pendingHighWaterMark int
}

// New builds an Engine over g, applying opts in order.
func New(g *graph.Graph, opts ...Option) *Engine {
	e := &Engine{graph: g, log: phlexlog.Nop}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs every node in the graph to completion: sources drive
// records downstream, nodes join, fire, and forward until every
// subtree's flush has propagated to the graph's sinks. It blocks until
// the run finishes or ctx is cancelled, and returns the aggregate of
// every UserCallableFailed fault recorded along the way, combined with
// the InternalInvariant error that aborted the run early and, when ctx
// was cancelled, ctx's error.
func (e *Engine) Execute(ctx context.Context) error {
	runID := uuid.New().String()
	log := e.log.With().Str("run_id", runID).Logger()
	log.Info().Msg("execute: starting")

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	group, gctx := errgroup.WithContext(runCtx)
	faults := newFaultCollector(cancel)

	chans := newEdgeChans()
	order := e.graph.Order()

	for _, name := range order {
		w, _ := e.graph.Node(name)
		inboxes := chans.inboxesFor(name, w.Producers)
		inbox := fanIn(inboxes)
		outboxes := chans.outboxesFor(name, w.Children)

		switch w.Decl.Kind {
		case node.Source:
			rt := &sourceRuntime{name: name, pull: w.Decl.Pull, outboxes: outboxes}
			group.Go(func() error { return rt.run(gctx) })
		case node.Reduction:
			rt := newReductionRuntime(name, w, inbox, outboxes, faults, log, e.pendingHighWaterMark)
			group.Go(func() error { return rt.run(gctx) })
		case node.Splitter:
			rt := newSplitterRuntime(name, w, inbox, outboxes, faults, log, e.pendingHighWaterMark)
			group.Go(func() error { return rt.run(gctx) })
		default: // Transform, Observer, Output
			rt := newNodeRuntime(name, w, inbox, outboxes, faults, log, e.pendingHighWaterMark)
			group.Go(func() error { return rt.run(gctx) })
		}
	}

	groupErr := group.Wait()
	runErr := multierr.Append(groupErr, faults.result())
	if ctxErr := ctx.Err(); ctxErr != nil {
		runErr = multierr.Append(runErr, ctxErr)
	}
	if runErr != nil {
		log.Error().Err(runErr).Msg("execute: finished with faults")
	} else {
		log.Info().Msg("execute: finished")
	}
	return runErr
}

// String describes e by the number of nodes in its graph, for
// diagnostics.
func (e *Engine) String() string {
	return fmt.Sprintf("engine(%d nodes)", len(e.graph.Order()))
}
