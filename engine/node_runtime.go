package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/greenc-FNAL/phlex/dflerrors"
	"github.com/greenc-FNAL/phlex/graph"
	"github.com/greenc-FNAL/phlex/node"
	"github.com/greenc-FNAL/phlex/phlexlog"
	"github.com/greenc-FNAL/phlex/product"
	"github.com/greenc-FNAL/phlex/store"
	"github.com/rs/zerolog"
)

// pendingJoin accumulates the per-producer stores delivered for one
// record identity, waiting until every distinct producer this node
// consumes from has delivered its message.
type pendingJoin struct {
	byProducer map[string]*store.Store
}

// nodeRuntime drives a Transform, Observer, or Output declaration: it
// joins inbound envelopes by record identity, fires the user callable
// once a record's join is complete, and broadcasts the resulting
// continuation downstream. Reductions and Splitters have their own
// runtimes (reduction_runtime.go, splitter_runtime.go) because their
// firing and emission rules differ.
type nodeRuntime struct {
	name      string
	wired     *graph.Wired
	inbox     chan envelope
	outboxes  []chan envelope
	gate      *gate
	faults    *faultCollector
	log       zerolog.Logger
	watermark int

	pending      map[string]*pendingJoin
	flushSeen    map[string]map[string]bool
	outputOnce   sync.Once
	outputCreate error
}

func newNodeRuntime(name string, wired *graph.Wired, inbox chan envelope, outboxes []chan envelope, faults *faultCollector, log zerolog.Logger, watermark int) *nodeRuntime {
	return &nodeRuntime{
		name:      name,
		wired:     wired,
		inbox:     inbox,
		outboxes:  outboxes,
		gate:      newGate(wired.Decl.Concurrency),
		faults:    faults,
		log:       phlexlog.WithComponent(log, name),
		watermark: watermark,
		pending:   map[string]*pendingJoin{},
		flushSeen: map[string]map[string]bool{},
	}
}

// run consumes the inbox until it closes (every producer has closed
// its edge to this node), waits for any in-flight invocations to
// drain, then closes this node's own outboxes so its children can,
// in turn, terminate.
func (r *nodeRuntime) run(ctx context.Context) error {
	var wg sync.WaitGroup
	defer func() {
		wg.Wait()
		closeAll(r.outboxes)
	}()

	for {
		select {
		case env, ok := <-r.inbox:
			if !ok {
				return nil
			}
			if err := r.handle(ctx, env, &wg); err != nil {
				return err
			}
		case <-ctx.Done():
			return nil
		}
	}
}

func (r *nodeRuntime) handle(ctx context.Context, env envelope, wg *sync.WaitGroup) error {
	key := joinKey(env)
	producers := r.wired.Producers

	if env.flush() {
		seen := r.flushSeen[key]
		if seen == nil {
			seen = map[string]bool{}
			r.flushSeen[key] = seen
		}
		seen[env.producer] = true
		if len(seen) < len(producers) {
			return nil
		}
		delete(r.flushSeen, key)
		delete(r.pending, key)
		broadcast(r.outboxes, env)
		return nil
	}

	pj := r.pending[key]
	if pj == nil {
		pj = &pendingJoin{byProducer: map[string]*store.Store{}}
		r.pending[key] = pj
	}
	pj.byProducer[env.producer] = env.store
	if len(pj.byProducer) < len(producers) {
		if r.watermark > 0 && len(r.pending) > r.watermark {
			r.log.Warn().Int("pending", len(r.pending)).Int("watermark", r.watermark).Msg("join buffer over high-water mark")
		}
		return nil
	}
	delete(r.pending, key)

	wg.Add(1)
	r.gate.acquire()
	if r.wired.Decl.Concurrency.Policy == node.PolicySerial {
		defer wg.Done()
		defer r.gate.release()
		return r.fire(ctx, pj)
	}
	go func() {
		defer wg.Done()
		defer r.gate.release()
		if err := r.fire(ctx, pj); err != nil {
			r.faults.recordFatal(err)
		}
	}()
	return nil
}

// fire evaluates predicates, extracts declared inputs, invokes the
// user callable, and emits (or writes) its result. Recoverable errors
// are reported through faultCollector and swallowed here so that one
// poisoned record never stops the node's loop; only an InternalInvariant
// mismatch returns an error that aborts the run.
func (r *nodeRuntime) fire(ctx context.Context, pj *pendingJoin) error {
	decl := r.wired.Decl

	for i, label := range decl.Predicates {
		producer := r.wired.PredicateProducers[i]
		src := pj.byProducer[producer]
		if src == nil {
			return dflerrors.E(dflerrors.InternalInvariant, []string{r.name, label}, fmt.Errorf("predicate producer missing from completed join"))
		}
		carrier := src.StoreForProduct(label)
		if carrier == nil {
			return nil // predicate absent: record does not match, drop silently
		}
		val, ok := carrier.Products().Get(label)
		if !ok {
			return nil
		}
		b, isBool := val.Value.(bool)
		if !isBool {
			r.faults.recordRecoverable(dflerrors.E(dflerrors.TypeMismatch, []string{r.name, label}, fmt.Errorf("predicate %q is not boolean", label)))
			return nil
		}
		if !b {
			return nil
		}
	}

	args := make([]any, len(decl.Inputs))
	for i, q := range decl.Inputs {
		producer := r.wired.InputProducers[i]
		src := pj.byProducer[producer]
		if src == nil {
			return dflerrors.E(dflerrors.InternalInvariant, []string{r.name, q.Label}, fmt.Errorf("input producer missing from completed join"))
		}
		carrier := src.StoreForProduct(q.Label)
		if carrier == nil {
			r.faults.recordRecoverable(dflerrors.E(dflerrors.TypeMismatch, []string{r.name, q.Label}, fmt.Errorf("declared input %q not found on delivered record", q.Label)))
			return nil
		}
		val, _ := carrier.Products().Get(q.Label)
		args[i] = val.Value
	}

	results, err := invokeSafely(ctx, decl.Fn, args)
	if err != nil {
		r.faults.recordRecoverable(dflerrors.E(dflerrors.UserCallableFailed, []string{r.name}, err))
		return nil
	}

	base := anyStore(pj.byProducer)

	if decl.Kind == node.Output {
		return r.write(decl, base, results)
	}

	if len(decl.Outputs) == 0 {
		return nil // Observer: side effect already happened inside Fn.
	}

	products := make([]product.Product, 0, len(decl.Outputs))
	for i, out := range decl.Outputs {
		var v any
		if i < len(results) {
			v = results[i]
		}
		products = append(products, product.Product{Name: out.Label, Type: fmt.Sprintf("%T", v), Value: v})
	}
	container, err := product.New(products...)
	if err != nil {
		return dflerrors.E(dflerrors.InternalInvariant, []string{r.name}, err)
	}
	out := base.MakeContinuation(r.name, container)
	broadcast(r.outboxes, envelope{store: out, producer: r.name})
	return nil
}

func (r *nodeRuntime) write(decl *node.Declaration, base *store.Store, results []any) error {
	if decl.Writer == nil {
		return dflerrors.E(dflerrors.InternalInvariant, []string{r.name}, fmt.Errorf("output node has no writer"))
	}
	r.outputOnce.Do(func() {
		types := map[string]string{}
		for i, out := range decl.Outputs {
			var v any
			if i < len(results) {
				v = results[i]
			}
			types[out.Label] = fmt.Sprintf("%T", v)
		}
		r.outputCreate = decl.Writer.CreateContainers(r.name, types)
	})
	if r.outputCreate != nil {
		r.faults.recordRecoverable(dflerrors.E(dflerrors.UserCallableFailed, []string{r.name}, r.outputCreate))
		return nil
	}
	for i, out := range decl.Outputs {
		var v any
		if i < len(results) {
			v = results[i]
		}
		if err := decl.Writer.RegisterWrite(r.name, out.Label, v, fmt.Sprintf("%T", v)); err != nil {
			r.faults.recordRecoverable(dflerrors.E(dflerrors.UserCallableFailed, []string{r.name}, err))
			return nil
		}
	}
	if err := decl.Writer.CommitOutput(r.name, base.ID().Key()); err != nil {
		r.faults.recordRecoverable(dflerrors.E(dflerrors.UserCallableFailed, []string{r.name}, err))
	}
	return nil
}

// anyStore picks the store a completed join continues from. joinKey
// matches envelopes on the exact Level ID, so every entry of one join
// carries the same record identity; stores at different levels are
// never joined with each other. MoreDerived keeps the deeper store,
// and among equal depths the entry the map yields first.
func anyStore(byProducer map[string]*store.Store) *store.Store {
	var best *store.Store
	for _, s := range byProducer {
		if best == nil {
			best = s
			continue
		}
		best = store.MoreDerived(best, s)
	}
	return best
}

// invokeSafely recovers a panicking user callable into a plain error so
// one misbehaving algorithm cannot crash the run.
func invokeSafely(ctx context.Context, fn node.Callable, args []any) (results []any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("callable panicked: %v", rec)
		}
	}()
	return fn(ctx, args)
}
