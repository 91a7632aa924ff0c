package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/greenc-FNAL/phlex/dflerrors"
	"github.com/greenc-FNAL/phlex/graph"
	"github.com/greenc-FNAL/phlex/node"
	"github.com/greenc-FNAL/phlex/phlexlog"
	"github.com/greenc-FNAL/phlex/store"
	"github.com/rs/zerolog"
)

// splitterRuntime drives a Splitter declaration: it joins inbound
// envelopes exactly like nodeRuntime, then for each completed join
// calls Split once on the joined record, broadcasts every returned
// child, and mints the terminating flush for the new child level that
// closes this specific parent's subtree.
type splitterRuntime struct {
	name      string
	wired     *graph.Wired
	inbox     chan envelope
	outboxes  []chan envelope
	gate      *gate
	faults    *faultCollector
	log       zerolog.Logger
	watermark int

	pending   map[string]*pendingJoin
	flushSeen map[string]map[string]bool
}

func newSplitterRuntime(name string, wired *graph.Wired, inbox chan envelope, outboxes []chan envelope, faults *faultCollector, log zerolog.Logger, watermark int) *splitterRuntime {
	return &splitterRuntime{
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

func (r *splitterRuntime) run(ctx context.Context) error {
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

func (r *splitterRuntime) handle(ctx context.Context, env envelope, wg *sync.WaitGroup) error {
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

func (r *splitterRuntime) fire(ctx context.Context, pj *pendingJoin) error {
	decl := r.wired.Decl
	in := anyStore(pj.byProducer)

	children, err := decl.Split(ctx, in)
	if err != nil {
		r.faults.recordRecoverable(dflerrors.E(dflerrors.UserCallableFailed, []string{r.name}, err))
		return nil
	}
	if !contiguouslyNumbered(children) {
		r.faults.recordRecoverable(dflerrors.E(dflerrors.UserCallableFailed, []string{r.name}, fmt.Errorf("split returned %d children not numbered contiguously 0..%d", len(children), len(children)-1)))
		return nil
	}

	for _, child := range children {
		broadcast(r.outboxes, envelope{store: child, producer: r.name})
	}
	flush := in.MakeChildFlush(len(children), decl.ChildLevelName, r.name)
	broadcast(r.outboxes, envelope{store: flush, producer: r.name})
	return nil
}

// contiguouslyNumbered reports whether children carry Level ID numbers
// exactly 0..len(children)-1, the numbering SplitFunc's contract
// requires so the splitter's own synthetic flush number (len(children))
// never collides with a real child.
func contiguouslyNumbered(children []*store.Store) bool {
	seen := make([]bool, len(children))
	for _, c := range children {
		n := c.ID().Number()
		if n < 0 || n >= len(children) || seen[n] {
			return false
		}
		seen[n] = true
	}
	return true
}
