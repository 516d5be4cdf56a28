package engine

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func team(id int, eliminated ...bool) *Player {
	p := &Player{TeamID: id, Materials: []Token{{ID: "x"}, {ID: "y"}}}
	if len(eliminated) > 0 && eliminated[0] {
		p.IsEliminated = true
	}
	return p
}

func TestActiveTeams(t *testing.T) {
	players := []*Player{team(3), team(1), team(3), team(5, true), team(2, true)}
	assert.Equal(t, []int{1, 3}, ActiveTeams(players))
	assert.Empty(t, ActiveTeams(nil))
}

func TestNextActiveTeam(t *testing.T) {
	cases := []struct {
		name    string
		current int
		players []*Player
		want    int
		ok      bool
	}{
		{"advances to next higher", 1, []*Player{team(1), team(2), team(4)}, 2, true},
		{"skips eliminated team", 1, []*Player{team(1), team(2, true), team(4)}, 4, true},
		{"wraps from last", 4, []*Player{team(1), team(2), team(4)}, 1, true},
		{"current team not in cycle", 3, []*Player{team(1), team(5)}, 5, true},
		{"single team returns itself", 2, []*Player{team(2), team(2)}, 2, true},
		{"no active teams", 1, []*Player{team(1, true), team(2, true)}, 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := NextActiveTeam(tc.current, tc.players)
			require.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestPenaltyVictim_Deterministic(t *testing.T) {
	a := team(1)
	b := team(1)
	c := team(2)
	eliminated := team(1, true)
	players := []*Player{a, b, c, eliminated}

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 20; i++ {
		victim := PenaltyVictim(rng, players, 1)
		require.NotNil(t, victim)
		assert.Equal(t, 1, victim.TeamID)
		assert.False(t, victim.IsEliminated)
	}

	assert.Nil(t, PenaltyVictim(rng, players, 4))
	assert.Nil(t, PenaltyVictim(rng, []*Player{eliminated}, 1))
}

func TestRemoveRandomTokens(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	p := &Player{Materials: StartingMaterials()}
	removed := RemoveRandomTokens(rng, p, 2)
	require.Len(t, removed, 2)
	assert.Len(t, p.Materials, 8)

	// Fewer than requested when the bag runs dry.
	short := &Player{Materials: []Token{{Kind: MaterialRed, ID: "only"}}}
	removed = RemoveRandomTokens(rng, short, 2)
	require.Len(t, removed, 1)
	assert.Empty(t, short.Materials)

	assert.Empty(t, RemoveRandomTokens(rng, &Player{}, 2))
}

func TestSweepEliminations(t *testing.T) {
	empty := &Player{TeamID: 1}
	full := team(1)
	already := &Player{TeamID: 2, IsEliminated: true}

	newly := SweepEliminations([]*Player{empty, full, already})
	require.Len(t, newly, 1)
	assert.Same(t, empty, newly[0])
	assert.True(t, empty.IsEliminated)
	assert.False(t, full.IsEliminated)
}

func TestAssignTurnOrder(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	slot, ok := AssignTurnOrder(rng, []int{1, 2, 3, 4, 5, 6, 7, 8, 9})
	require.True(t, ok)
	assert.Equal(t, 10, slot)

	_, ok = AssignTurnOrder(rng, []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10})
	assert.False(t, ok)

	used := []int{}
	for i := 0; i < MaxPlayers; i++ {
		slot, ok := AssignTurnOrder(rng, used)
		require.True(t, ok)
		for _, u := range used {
			require.NotEqual(t, u, slot)
		}
		used = append(used, slot)
	}
}
