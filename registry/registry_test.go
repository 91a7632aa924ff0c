package registry_test

import (
	"context"
	"testing"

	"github.com/greenc-FNAL/phlex/node"
	"github.com/greenc-FNAL/phlex/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeclareAndBuild(t *testing.T) {
	m := registry.NewModule("arith")
	m.Declare("plus_one", node.Transform, node.Fn1(func(i int) int { return i + 1 }), node.UnlimitedPolicy()).
		Input("i", "").
		Output("j", "")

	decls, err := m.Build()
	require.NoError(t, err)
	require.Len(t, decls, 1)
	assert.Equal(t, "plus_one", decls[0].Name)
	assert.Equal(t, node.Transform, decls[0].Kind)
	assert.Len(t, decls[0].Inputs, 1)
	assert.Len(t, decls[0].Outputs, 1)
}

func TestDeclareDuplicateNamePanics(t *testing.T) {
	m := registry.NewModule("arith")
	m.Declare("dup", node.Observer, node.Obs1(func(int) error { return nil }), node.SerialPolicy())
	assert.Panics(t, func() {
		m.Declare("dup", node.Observer, node.Obs1(func(int) error { return nil }), node.SerialPolicy())
	})
}

func TestBuildRejectsIncompleteSource(t *testing.T) {
	m := registry.NewModule("bad")
	m.Declare("src", node.Source, nil, node.SerialPolicy())
	_, err := m.Build()
	assert.Error(t, err)
}

func TestBuildRejectsIncompleteReduction(t *testing.T) {
	m := registry.NewModule("bad")
	m.Declare("sum", node.Reduction, nil, node.SerialPolicy()).AggregationLevel("job")
	_, err := m.Build()
	assert.Error(t, err)
}

func TestMergeRejectsCrossModuleDuplicate(t *testing.T) {
	a := registry.NewModule("a")
	a.Declare("shared", node.Observer, node.Obs1(func(int) error { return nil }), node.SerialPolicy())
	b := registry.NewModule("b")
	b.Declare("shared", node.Observer, node.Obs1(func(int) error { return nil }), node.SerialPolicy())

	_, err := registry.Merge(a, b)
	assert.Error(t, err)
}

func TestMergeConcatenates(t *testing.T) {
	a := registry.NewModule("a")
	a.Declare("one", node.Transform, node.Fn1(func(i int) int { return i }), node.UnlimitedPolicy()).
		Input("x", "").Output("y", "")
	b := registry.NewModule("b")
	b.Declare("two", node.Transform, node.Fn1(func(i int) int { return i }), node.UnlimitedPolicy()).
		Input("y", "").Output("z", "")

	decls, err := registry.Merge(a, b)
	require.NoError(t, err)
	assert.Len(t, decls, 2)
}

func TestDeclarationReturnsBoundDeclaration(t *testing.T) {
	m := registry.NewModule("arith")
	d := m.Declare("plus_one", node.Transform, node.Fn1(func(i int) int { return i + 1 }), node.UnlimitedPolicy()).
		Input("i", "").
		Declaration()
	assert.Equal(t, "plus_one", d.Name)

	_, err := d.Fn(context.Background(), []any{41})
	require.NoError(t, err)
}
