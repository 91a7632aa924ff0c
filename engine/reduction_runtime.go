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

// accumulator is one aggregation ancestor's running fold state: the
// value and the ancestor store it will be finalized against.
type accumulator struct {
	value    any
	ancestor *store.Store
}

// reductionRuntime drives a Reduction declaration. It joins inbound
// envelopes by descendant record identity exactly like nodeRuntime, but
// instead of emitting per descendant it folds into a per-ancestor
// accumulator (keyed by the declared AggregationLevel) and only emits
// once, when the flush marking that ancestor's subtree closed arrives.
type reductionRuntime struct {
	name      string
	wired     *graph.Wired
	inbox     chan envelope
	outboxes  []chan envelope
	gate      *gate
	faults    *faultCollector
	log       zerolog.Logger
	watermark int

	mu           sync.Mutex
	pending      map[string]*pendingJoin
	passthrough  map[string]map[string]bool // flushes not at AggregationLevel
	accumulators map[string]*accumulator
}

func newReductionRuntime(name string, wired *graph.Wired, inbox chan envelope, outboxes []chan envelope, faults *faultCollector, log zerolog.Logger, watermark int) *reductionRuntime {
	return &reductionRuntime{
		name:         name,
		wired:        wired,
		inbox:        inbox,
		outboxes:     outboxes,
		gate:         newGate(wired.Decl.Concurrency),
		faults:       faults,
		log:          phlexlog.WithComponent(log, name),
		watermark:    watermark,
		pending:      map[string]*pendingJoin{},
		passthrough:  map[string]map[string]bool{},
		accumulators: map[string]*accumulator{},
	}
}

func (r *reductionRuntime) run(ctx context.Context) error {
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

func (r *reductionRuntime) handle(ctx context.Context, env envelope, wg *sync.WaitGroup) error {
	decl := r.wired.Decl
	producers := r.wired.Producers

	if env.flush() {
		if env.store.LevelName() == decl.AggregationLevel {
			return r.handleAncestorFlush(ctx, env, producers, wg)
		}
		key := joinKey(env)
		seen := r.passthrough[key]
		if seen == nil {
			seen = map[string]bool{}
			r.passthrough[key] = seen
		}
		seen[env.producer] = true
		if len(seen) < len(producers) {
			return nil
		}
		delete(r.passthrough, key)
		broadcast(r.outboxes, env)
		return nil
	}

	key := joinKey(env)
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
	if decl.Concurrency.Policy == node.PolicySerial {
		defer wg.Done()
		defer r.gate.release()
		return r.fold(ctx, pj)
	}
	go func() {
		defer wg.Done()
		defer r.gate.release()
		if err := r.fold(ctx, pj); err != nil {
			r.faults.recordFatal(err)
		}
	}()
	return nil
}

// fold extracts the descendant's declared inputs, locates its
// aggregation ancestor, and invokes the user callable as a fold step:
// Fn(ctx, [acc, inputs...]) -> [newAcc].
func (r *reductionRuntime) fold(ctx context.Context, pj *pendingJoin) error {
	decl := r.wired.Decl

	args := make([]any, 0, len(decl.Inputs)+1)
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
		args = append(args, val.Value)
	}

	descendant := anyStore(pj.byProducer)
	ancestor := descendant.Parent(decl.AggregationLevel)
	if ancestor == nil {
		return dflerrors.E(dflerrors.InternalInvariant, []string{r.name}, fmt.Errorf("descendant has no ancestor at level %q", decl.AggregationLevel))
	}
	ancestorKey := ancestor.ID().Key()

	r.mu.Lock()
	defer r.mu.Unlock()
	acc, ok := r.accumulators[ancestorKey]
	if !ok {
		acc = &accumulator{value: decl.Init(), ancestor: ancestor}
		r.accumulators[ancestorKey] = acc
	}

	results, err := invokeSafely(ctx, decl.Fn, append([]any{acc.value}, args...))
	if err != nil {
		r.faults.recordRecoverable(dflerrors.E(dflerrors.UserCallableFailed, []string{r.name}, err))
		return nil
	}
	if len(results) == 0 {
		return dflerrors.E(dflerrors.InternalInvariant, []string{r.name}, fmt.Errorf("reduction fold produced no accumulator"))
	}

	acc.value = results[0]
	return nil
}

// handleAncestorFlush waits for every producer to confirm the
// aggregation ancestor's subtree closed and for every fold already
// started to finish, finalizes the accumulator
// (default-initializing one if no descendant was ever seen), emits the
// finalized product on the ancestor's own record, then forwards the
// flush downstream.
func (r *reductionRuntime) handleAncestorFlush(ctx context.Context, env envelope, producers []string, wg *sync.WaitGroup) error {
	key := joinKey(env)
	r.mu.Lock()
	seen := r.passthrough[key]
	if seen == nil {
		seen = map[string]bool{}
		r.passthrough[key] = seen
	}
	seen[env.producer] = true
	ready := len(seen) >= len(producers)
	if ready {
		delete(r.passthrough, key)
	}
	r.mu.Unlock()
	if !ready {
		return nil
	}
	wg.Wait()

	decl := r.wired.Decl
	r.mu.Lock()
	acc, ok := r.accumulators[key]
	if ok {
		delete(r.accumulators, key)
	}
	r.mu.Unlock()

	var value any
	ancestor := env.store
	if ok {
		value = acc.value
		ancestor = acc.ancestor
	} else {
		value = decl.Init()
	}

	result, err := decl.Finalize(value)
	if err != nil {
		r.faults.recordRecoverable(dflerrors.E(dflerrors.UserCallableFailed, []string{r.name}, err))
		broadcast(r.outboxes, env)
		return nil
	}

	if len(decl.Outputs) > 0 {
		container, err := product.New(product.Product{
			Name:  decl.Outputs[0].Label,
			Type:  fmt.Sprintf("%T", result),
			Value: result,
		})
		if err != nil {
			return dflerrors.E(dflerrors.InternalInvariant, []string{r.name}, err)
		}
		out := ancestor.MakeContinuation(r.name, container)
		broadcast(r.outboxes, envelope{store: out, producer: r.name})
	}
	broadcast(r.outboxes, env)
	return nil
}
