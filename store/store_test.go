package store_test

import (
	"testing"

	"github.com/greenc-FNAL/phlex/product"
	"github.com/greenc-FNAL/phlex/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMakeChildDescends(t *testing.T) {
	root := store.Root()
	run := root.MakeChild(0, "run", "source", product.MustNew(
		product.Product{Name: "runid", Type: "int", Value: 1},
	))

	assert.Equal(t, 1, run.ID().Depth())
	assert.Equal(t, "run", run.LevelName())
	assert.True(t, run.ContainsProduct("runid"))
	assert.False(t, run.IsFlush())
}

func TestMakeContinuationPreservesIdentity(t *testing.T) {
	root := store.Root()
	run := root.MakeChild(0, "run", "source", nil)
	cont := run.MakeContinuation("plus_one", product.MustNew(
		product.Product{Name: "b", Type: "int", Value: 2},
	))

	assert.True(t, cont.ID().Equal(run.ID()))
	assert.True(t, cont.ContainsProduct("b"))
	assert.False(t, run.ContainsProduct("b"), "continuation must not mutate the original")
}

func TestMakeFlushCarriesNoProducts(t *testing.T) {
	root := store.Root()
	run := root.MakeChild(0, "run", "source", product.MustNew(
		product.Product{Name: "runid", Type: "int", Value: 1},
	))
	flush := run.MakeFlush()

	assert.True(t, flush.IsFlush())
	assert.True(t, flush.ID().Equal(run.ID()))
	assert.Equal(t, 0, flush.Products().Len())
}

func TestStoreForProductWalksAncestorsOnly(t *testing.T) {
	root := store.Root()
	run := root.MakeChild(0, "run", "source", product.MustNew(
		product.Product{Name: "runid", Type: "int", Value: 1},
	))
	event := run.MakeChild(0, "event", "source", product.MustNew(
		product.Product{Name: "n", Type: "int", Value: 3},
	))
	sibling := event.MakeContinuation("plus_one", product.MustNew(
		product.Product{Name: "b", Type: "int", Value: 4},
	))

	found := event.StoreForProduct("runid")
	require.NotNil(t, found)
	assert.Same(t, run, found)

	// A continuation at the same level must not be visible from its
	// sibling: only the parent chain is searched.
	assert.Nil(t, sibling.StoreForProduct("n"))
	assert.NotNil(t, event.StoreForProduct("n"))
}

func TestParentByLevelName(t *testing.T) {
	root := store.Root()
	run := root.MakeChild(0, "run", "source", nil)
	event := run.MakeChild(0, "event", "source", nil)

	found := event.Parent("run")
	require.NotNil(t, found)
	assert.Same(t, run, found)
	assert.Nil(t, event.Parent("nonexistent"))
}

func TestMoreDerived(t *testing.T) {
	root := store.Root()
	run := root.MakeChild(0, "run", "source", nil)
	event := run.MakeChild(0, "event", "source", nil)

	assert.Same(t, event, store.MoreDerived(run, event))
	assert.Same(t, event, store.MoreDerived(event, run))
}
