package level_test

import (
	"testing"

	"github.com/greenc-FNAL/phlex/level"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootDepth(t *testing.T) {
	root := level.Root()
	assert.Equal(t, 0, root.Depth())
	assert.Equal(t, "", root.LevelName())
	assert.Equal(t, "/", root.String())
}

func TestMakeChildDoesNotMutateParent(t *testing.T) {
	root := level.Root()
	run := root.MakeChild(0, "run")
	event := run.MakeChild(3, "event")

	assert.Equal(t, 0, root.Depth())
	assert.Equal(t, 1, run.Depth())
	assert.Equal(t, 2, event.Depth())
	assert.Equal(t, "event", event.LevelName())
	assert.Equal(t, 3, event.Number())

	// Minting a sibling from run must not perturb event's path.
	_ = run.MakeChild(1, "other")
	assert.Equal(t, 3, event.Number())
	assert.Equal(t, "event", event.LevelName())
}

func TestEqual(t *testing.T) {
	root := level.Root()
	a := root.MakeChild(0, "run").MakeChild(1, "event")
	b := root.MakeChild(0, "run").MakeChild(1, "event")
	c := root.MakeChild(0, "run").MakeChild(2, "event")

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
	assert.True(t, level.Root().Equal(level.Root()))
}

func TestIsAncestorOf(t *testing.T) {
	root := level.Root()
	run := root.MakeChild(0, "run")
	event := run.MakeChild(1, "event")

	assert.True(t, run.IsAncestorOf(event))
	assert.True(t, root.IsAncestorOf(event))
	assert.False(t, event.IsAncestorOf(run))
	assert.False(t, event.IsAncestorOf(event))
}

func TestRoundTrip(t *testing.T) {
	id := level.Root().MakeChild(0, "run").MakeChild(4, "event")
	encoded := id.String()
	decoded, err := level.Parse(encoded)
	require.NoError(t, err)
	assert.True(t, id.Equal(decoded))
	assert.Equal(t, encoded, decoded.String())
}

func TestParseRejectsBadEncoding(t *testing.T) {
	_, err := level.Parse("run:0/event:1")
	assert.Error(t, err)

	_, err = level.Parse("/run/event:1")
	assert.Error(t, err)
}

func TestDeeperOf(t *testing.T) {
	root := level.Root()
	run := root.MakeChild(0, "run")
	event := run.MakeChild(1, "event")

	assert.True(t, level.DeeperOf(run, event).Equal(event))
	assert.True(t, level.DeeperOf(event, run).Equal(event))
	assert.True(t, level.DeeperOf(run, run).Equal(run))
}
