package graph_test

import (
	"testing"

	"github.com/greenc-FNAL/phlex/dflerrors"
	"github.com/greenc-FNAL/phlex/graph"
	"github.com/greenc-FNAL/phlex/node"
	"github.com/greenc-FNAL/phlex/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func idFn() node.Callable {
	return node.Fn1(func(i int) int { return i })
}

func TestBuildResolvesLinearChainAndOrdersTopologically(t *testing.T) {
	m := registry.NewModule("m")
	m.Declare("plus_one", node.Transform, idFn(), node.UnlimitedPolicy()).
		Input("i", "").Output("j", "")
	m.Declare("plus_two", node.Transform, idFn(), node.UnlimitedPolicy()).
		Input("j", "").Output("k", "")
	m.Declare("feed", node.Transform, idFn(), node.UnlimitedPolicy()).
		Output("i", "")

	decls, err := m.Build()
	require.NoError(t, err)

	g, err := graph.Build(decls)
	require.NoError(t, err)

	order := g.Order()
	pos := map[string]int{}
	for i, n := range order {
		pos[n] = i
	}
	assert.Less(t, pos["feed"], pos["plus_one"])
	assert.Less(t, pos["plus_one"], pos["plus_two"])

	w, ok := g.Node("plus_two")
	require.True(t, ok)
	assert.Equal(t, []string{"plus_one"}, w.Producers)
	assert.Equal(t, []string{"plus_one"}, w.InputProducers)

	feed, ok := g.Node("feed")
	require.True(t, ok)
	assert.Equal(t, []string{"plus_one"}, feed.Children)
}

func TestBuildDetectsDuplicateSpecification(t *testing.T) {
	m := registry.NewModule("m")
	m.Declare("a", node.Transform, idFn(), node.UnlimitedPolicy()).Output("x", "")
	m.Declare("b", node.Transform, idFn(), node.UnlimitedPolicy()).Output("x", "")

	decls, err := m.Build()
	require.NoError(t, err)

	_, err = graph.Build(decls)
	require.Error(t, err)
	assert.ErrorIs(t, err, dflerrors.E(dflerrors.DuplicateSpecification, nil, nil))
}

func TestBuildDetectsUnresolvedInput(t *testing.T) {
	m := registry.NewModule("m")
	m.Declare("consumer", node.Transform, idFn(), node.UnlimitedPolicy()).Input("missing", "")

	decls, err := m.Build()
	require.NoError(t, err)

	_, err = graph.Build(decls)
	require.Error(t, err)
	assert.ErrorIs(t, err, dflerrors.E(dflerrors.UnresolvedInput, nil, nil))
}

func TestBuildDetectsAmbiguousPredicate(t *testing.T) {
	m := registry.NewModule("m")
	m.Declare("a", node.Transform, idFn(), node.UnlimitedPolicy()).Output("x", "layer1")
	m.Declare("b", node.Transform, idFn(), node.UnlimitedPolicy()).Output("x", "layer2")
	m.Declare("consumer", node.Observer, node.Obs1(func(int) error { return nil }), node.SerialPolicy()).
		Predicate("x")

	decls, err := m.Build()
	require.NoError(t, err)

	_, err = graph.Build(decls)
	require.Error(t, err)
	assert.ErrorIs(t, err, dflerrors.E(dflerrors.AmbiguousInput, nil, nil))
}

func TestBuildDetectsCycle(t *testing.T) {
	m := registry.NewModule("m")
	m.Declare("a", node.Transform, idFn(), node.UnlimitedPolicy()).
		Input("c", "").Output("a_out", "")
	m.Declare("b", node.Transform, idFn(), node.UnlimitedPolicy()).
		Input("a_out", "").Output("b_out", "")
	m.Declare("c", node.Transform, idFn(), node.UnlimitedPolicy()).
		Input("b_out", "").Output("c", "")

	decls, err := m.Build()
	require.NoError(t, err)

	_, err = graph.Build(decls)
	require.Error(t, err)
	assert.ErrorIs(t, err, dflerrors.E(dflerrors.CycleDetected, nil, nil))
}

func TestBuildMultiProducerJoinCountsDistinctProducers(t *testing.T) {
	m := registry.NewModule("m")
	m.Declare("plus_one", node.Transform, idFn(), node.UnlimitedPolicy()).
		Input("i", "").Output("j", "")
	m.Declare("plus_101", node.Transform, idFn(), node.UnlimitedPolicy()).
		Input("i", "").Output("jj", "")
	m.Declare("feed", node.Transform, idFn(), node.UnlimitedPolicy()).
		Output("i", "")
	m.Declare("sink", node.Observer, node.Obs2(func(int, int) error { return nil }), node.SerialPolicy()).
		Input("j", "").Input("jj", "")

	decls, err := m.Build()
	require.NoError(t, err)

	g, err := graph.Build(decls)
	require.NoError(t, err)

	w, ok := g.Node("sink")
	require.True(t, ok)
	assert.ElementsMatch(t, []string{"plus_one", "plus_101"}, w.Producers)
}

func TestBuildSameProducerMultiFieldNeedsNoJoin(t *testing.T) {
	m := registry.NewModule("m")
	m.Declare("feed", node.Transform, idFn(), node.UnlimitedPolicy()).
		Output("i", "").Output("j", "")
	m.Declare("sum", node.Transform, node.Fn2(func(a, b int) int { return a + b }), node.UnlimitedPolicy()).
		Input("i", "").Input("j", "").Output("total", "")

	decls, err := m.Build()
	require.NoError(t, err)

	g, err := graph.Build(decls)
	require.NoError(t, err)

	w, ok := g.Node("sum")
	require.True(t, ok)
	assert.Equal(t, []string{"feed"}, w.Producers)
}
