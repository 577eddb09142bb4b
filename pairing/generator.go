package pairing

import (
	"errors"
	"sort"
)

var (
	// ErrNotEnoughTeams is returned when fewer than two teams are available.
	ErrNotEnoughTeams = errors.New("not enough teams to generate a round (minimum 2 required)")
	// ErrInvalidRoundCount is returned when a round-robin schedule is requested
	// with more rounds than unique pairings allow.
	ErrInvalidRoundCount = errors.New("requested round count exceeds the number of unique pairings")
)

// Entry is one team's standing snapshot used for pairing decisions.
// Entries are pure values: generators never touch persistence.
type Entry struct {
	TournamentTeamID int
	TeamID           int
	Points           int
	Buchholz         float64
	// Seeding position; 0 means unseeded and sorts after seeded entries.
	Seeding     int
	ReceivedBye bool
	// Opponents maps opponent team id to the number of times they have met.
	Opponents map[int]int
}

func (e Entry) hasPlayed(teamID int) bool {
	return e.Opponents[teamID] > 0
}

// Pairing is a single generated contest.
type Pairing struct {
	Team1ID int
	Team2ID int
}

// RoundPlan is the output of a generator for one round.
type RoundPlan struct {
	Number    int
	Pairings  []Pairing
	ByeTeamID *int
}

// SortEntries orders entries by (-points, -buchholz, seeding, tournament-team id).
// This is the canonical standings order for display and for next-round seeding;
// the id tail makes the sort fully deterministic.
func SortEntries(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Points != b.Points {
			return a.Points > b.Points
		}
		if a.Buchholz != b.Buchholz {
			return a.Buchholz > b.Buchholz
		}
		if a.Seeding != b.Seeding {
			// Unseeded (0) sorts last.
			if a.Seeding == 0 {
				return false
			}
			if b.Seeding == 0 {
				return true
			}
			return a.Seeding < b.Seeding
		}
		return a.TournamentTeamID < b.TournamentTeamID
	})
}

// ComputeBuchholz recomputes every entry's Buchholz tiebreak as the sum of its
// opponents' current points, weighted by the number of meetings. The policy is
// applied uniformly at round-generation time: points are accrued first, then
// Buchholz is derived from those fresh points, never from stale snapshots.
func ComputeBuchholz(entries []Entry) []Entry {
	pointsByTeam := make(map[int]int, len(entries))
	for _, e := range entries {
		pointsByTeam[e.TeamID] = e.Points
	}
	out := make([]Entry, len(entries))
	for i, e := range entries {
		sum := 0.0
		for opponentID, meetings := range e.Opponents {
			sum += float64(pointsByTeam[opponentID] * meetings)
		}
		e.Buchholz = sum
		out[i] = e
	}
	return out
}
