package engine

import "github.com/greenc-FNAL/phlex/store"

// envelope is a message-passing flow graph edge value: an immutable
// handle to a product store plus the producer's short source name.
// Flush envelopes carry a flush store (store.IsFlush()) and are never
// handed to a user callable.
type envelope struct {
	store    *store.Store
	producer string
}

func (e envelope) flush() bool { return e.store.IsFlush() }

// joinKey is the record identity messages are joined on: the level id
// of the store the envelope carries. Continuations preserve their
// originating record's id, so two envelopes sharing a joinKey describe
// the same record as seen by two different producers.
func joinKey(e envelope) string { return e.store.ID().Key() }
