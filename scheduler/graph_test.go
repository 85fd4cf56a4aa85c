package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BradleyMatera/ShellCompany-sub002/directive"
)

func task(id string, deps ...string) *directive.Task {
	return &directive.Task{ID: id, Status: directive.TaskStatusPending, DependsOn: deps}
}

func TestNewGraphRejectsCycle(t *testing.T) {
	_, err := NewGraph([]*directive.Task{
		task("a", "c"),
		task("b", "a"),
		task("c", "b"),
	})
	require.Error(t, err)
	assert.True(t, directive.IsKind(err, directive.KindDependencyCycle))
}

func TestNewGraphRejectsSelfDependency(t *testing.T) {
	_, err := NewGraph([]*directive.Task{task("a", "a")})
	require.Error(t, err)
	assert.True(t, directive.IsKind(err, directive.KindDependencyCycle))
}

func TestNewGraphRejectsUnknownDependency(t *testing.T) {
	_, err := NewGraph([]*directive.Task{task("a", "ghost")})
	require.Error(t, err)
	assert.True(t, directive.IsKind(err, directive.KindDependencyCycle))
}

func TestNewGraphRejectsDuplicateID(t *testing.T) {
	_, err := NewGraph([]*directive.Task{task("a"), task("a")})
	require.Error(t, err)
	assert.True(t, directive.IsKind(err, directive.KindInvalidInput))
}

func TestReadyOrder(t *testing.T) {
	g, err := NewGraph([]*directive.Task{
		task("root"),
		task("left", "root"),
		task("right", "root"),
	})
	require.NoError(t, err)

	ready := g.Ready()
	require.Len(t, ready, 1)
	assert.Equal(t, "root", ready[0].ID)

	newlyReady := g.MarkCompleted("root")
	require.Len(t, newlyReady, 2)
	assert.Equal(t, "left", newlyReady[0].ID)
	assert.Equal(t, "right", newlyReady[1].ID)
}

func TestMarkCompletedUnblocksOnlyWhenAllDepsDone(t *testing.T) {
	g, err := NewGraph([]*directive.Task{
		task("a"),
		task("b"),
		task("join", "a", "b"),
	})
	require.NoError(t, err)

	assert.Empty(t, g.MarkCompleted("a"))
	unblocked := g.MarkCompleted("b")
	require.Len(t, unblocked, 1)
	assert.Equal(t, "join", unblocked[0].ID)
}

func TestMarkFailedCascades(t *testing.T) {
	g, err := NewGraph([]*directive.Task{
		task("a"),
		task("b", "a"),
		task("c", "b"),
		task("d"),
	})
	require.NoError(t, err)

	cancelled := g.MarkFailed("a")
	require.Len(t, cancelled, 2)
	assert.Equal(t, "b", cancelled[0].ID)
	assert.Equal(t, "c", cancelled[1].ID)

	// The independent branch is untouched.
	ready := g.Ready()
	require.Len(t, ready, 1)
	assert.Equal(t, "d", ready[0].ID)
}

func TestMarkFailedSkipsFinishedDependents(t *testing.T) {
	done := task("b", "a")
	done.Status = directive.TaskStatusCompleted
	g, err := NewGraph([]*directive.Task{task("a"), done})
	require.NoError(t, err)

	assert.Empty(t, g.MarkFailed("a"))
}

func TestRemaining(t *testing.T) {
	g, err := NewGraph([]*directive.Task{task("a"), task("b", "a")})
	require.NoError(t, err)

	assert.Equal(t, 2, g.Remaining())
	g.MarkCompleted("a")
	assert.Equal(t, 1, g.Remaining())
	g.MarkCompleted("b")
	assert.Equal(t, 0, g.Remaining())
}
