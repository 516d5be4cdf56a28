package engine

import (
	"math/rand"
	"sort"
)

// ActiveTeams returns the sorted distinct team ids that still have at least
// one non-eliminated player.
func ActiveTeams(players []*Player) []int {
	seen := map[int]bool{}
	for _, p := range players {
		if !p.IsEliminated {
			seen[p.TeamID] = true
		}
	}
	teams := make([]int, 0, len(seen))
	for id := range seen {
		teams = append(teams, id)
	}
	sort.Ints(teams)
	return teams
}

// NextActiveTeam picks the smallest active team id strictly greater than
// current, wrapping to the smallest active team. Returns false when no team
// has a non-eliminated player left.
func NextActiveTeam(current int, players []*Player) (int, bool) {
	teams := ActiveTeams(players)
	if len(teams) == 0 {
		return 0, false
	}
	for _, id := range teams {
		if id > current {
			return id, true
		}
	}
	return teams[0], true
}

// TeamCounts tallies players per team, eliminated or not. Used for join and
// team-change capacity checks.
func TeamCounts(players []*Player) map[int]int {
	counts := map[int]int{}
	for _, p := range players {
		counts[p.TeamID]++
	}
	return counts
}

// PenaltyVictim picks a uniformly random non-eliminated player from the team,
// or nil if the team has none.
func PenaltyVictim(rng *rand.Rand, players []*Player, team int) *Player {
	var candidates []*Player
	for _, p := range players {
		if p.TeamID == team && !p.IsEliminated {
			candidates = append(candidates, p)
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	return candidates[rng.Intn(len(candidates))]
}

// RemoveRandomTokens strips up to n uniformly random tokens from the player's
// bag and returns what was removed.
func RemoveRandomTokens(rng *rand.Rand, p *Player, n int) []Token {
	var removed []Token
	for i := 0; i < n && len(p.Materials) > 0; i++ {
		idx := rng.Intn(len(p.Materials))
		removed = append(removed, p.Materials[idx])
		p.Materials = append(p.Materials[:idx], p.Materials[idx+1:]...)
	}
	return removed
}

// SweepEliminations marks every player with an empty bag as eliminated and
// returns the players newly eliminated by this sweep.
func SweepEliminations(players []*Player) []*Player {
	var eliminated []*Player
	for _, p := range players {
		if !p.IsEliminated && len(p.Materials) == 0 {
			p.IsEliminated = true
			eliminated = append(eliminated, p)
		}
	}
	return eliminated
}

// AssignTurnOrder picks a random free slot in 1..MaxPlayers. Turn order is a
// display/tie-break attribute only; turn progression is team-based.
func AssignTurnOrder(rng *rand.Rand, used []int) (int, bool) {
	taken := map[int]bool{}
	for _, o := range used {
		taken[o] = true
	}
	var free []int
	for slot := 1; slot <= MaxPlayers; slot++ {
		if !taken[slot] {
			free = append(free, slot)
		}
	}
	if len(free) == 0 {
		return 0, false
	}
	return free[rng.Intn(len(free))], true
}
