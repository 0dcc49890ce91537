package container

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildShufflePlanPicksFromCandidates(t *testing.T) {
	tracks := []Track{
		{IDs: []uint32{1, 2, 3}},
		{IDs: []uint32{10}},
	}
	plan := BuildShufflePlan(tracks, rand.New(rand.NewSource(1)))
	require.Len(t, plan.Initial, 2)
	require.Contains(t, []uint32{1, 2, 3}, plan.Initial[0].TrackID)
	require.Equal(t, uint32(10), plan.Initial[1].TrackID)
	require.Empty(t, plan.Events)
}

func TestBuildShufflePlanIsDeterministicForASeed(t *testing.T) {
	tracks := []Track{{IDs: []uint32{1, 2, 3, 4, 5}}}
	a := BuildShufflePlan(tracks, rand.New(rand.NewSource(42)))
	b := BuildShufflePlan(tracks, rand.New(rand.NewSource(42)))
	require.Equal(t, a, b)
}

func TestBuildShufflePlanSkipsEmptySlot(t *testing.T) {
	tracks := []Track{{IDs: nil}}
	plan := BuildShufflePlan(tracks, rand.New(rand.NewSource(1)))
	require.Equal(t, SlotSource{}, plan.Initial[0])
}
