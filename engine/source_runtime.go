package engine

import (
	"context"
	"fmt"

	"github.com/greenc-FNAL/phlex/dflerrors"
	"github.com/greenc-FNAL/phlex/node"
)

// sourceRuntime drives a Source declaration's pull loop. Sources have
// no inputs and are always serial: a single goroutine calling Pull
// repeatedly, producing the root stream for the rest of the graph. The
// pull function owes its own closing flush before returning ok=false;
// the runtime only has to stop asking and close its outboxes once that
// happens.
type sourceRuntime struct {
	name     string
	pull     node.SourceFunc
	outboxes []chan envelope
}

func (r *sourceRuntime) run(ctx context.Context) error {
	defer closeAll(r.outboxes)
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		rec, ok, err := r.pull(ctx)
		if err != nil {
			return dflerrors.E(dflerrors.SourceExhaustedPrematurely, []string{r.name}, fmt.Errorf("pull failed: %w", err))
		}
		if !ok {
			return nil
		}
		broadcast(r.outboxes, envelope{store: rec, producer: r.name})
	}
}
