package pairing

// NextSwissRound builds the pairings for the next Swiss round.
//
// The procedure mirrors the classic accelerated flow:
//  1. recompute Buchholz and sort by (-points, -buchholz, seeding, id);
//  2. with an odd field, hand the bye to the lowest-ranked team that
//     has not received one yet (falling back to the very bottom when
//     everyone already had theirs);
//  3. pair neighbors greedily, skipping rematches, with backtracking;
//  4. if no rematch-free arrangement exists, allow rematches rather
//     than leave the round ungenerated.
func NextSwissRound(entries []Entry, roundNumber int) (RoundPlan, error) {
	if len(entries) < 2 {
		return RoundPlan{}, ErrNotEnoughTeams
	}

	ranked := ComputeBuchholz(entries)
	SortEntries(ranked)

	plan := RoundPlan{Number: roundNumber}

	if len(ranked)%2 == 1 {
		byeIdx := pickByeIndex(ranked)
		teamID := ranked[byeIdx].TeamID
		plan.ByeTeamID = &teamID
		ranked = append(ranked[:byeIdx:byeIdx], ranked[byeIdx+1:]...)
	}

	pairings, ok := pairWithoutRematches(ranked)
	if !ok {
		// Небольшое поле к концу турнира может не иметь идеального
		// расклада; повторная встреча лучше сорванного тура.
		pairings = pairAllowingRematches(ranked)
	}
	plan.Pairings = pairings
	return plan, nil
}

// pickByeIndex walks the standings bottom-up looking for a team that has not
// had a bye yet. The lowest-ranked such team gets it; with none left the bye
// cycles back to the bottom of the table.
func pickByeIndex(ranked []Entry) int {
	for i := len(ranked) - 1; i >= 0; i-- {
		if !ranked[i].ReceivedBye {
			return i
		}
	}
	return len(ranked) - 1
}

// pairWithoutRematches tries to pair the ranked list top-down so that no
// pairing repeats a previous meeting. It recurses with backtracking: the
// leader takes the nearest admissible opponent, and on a dead end the choice
// is undone and the next candidate tried.
func pairWithoutRematches(ranked []Entry) ([]Pairing, bool) {
	used := make([]bool, len(ranked))
	var result []Pairing
	if !pairStep(ranked, used, &result) {
		return nil, false
	}
	return result, true
}

func pairStep(ranked []Entry, used []bool, acc *[]Pairing) bool {
	first := -1
	for i := range ranked {
		if !used[i] {
			first = i
			break
		}
	}
	if first == -1 {
		return true
	}
	used[first] = true
	for j := first + 1; j < len(ranked); j++ {
		if used[j] || ranked[first].hasPlayed(ranked[j].TeamID) {
			continue
		}
		used[j] = true
		*acc = append(*acc, Pairing{Team1ID: ranked[first].TeamID, Team2ID: ranked[j].TeamID})
		if pairStep(ranked, used, acc) {
			return true
		}
		*acc = (*acc)[:len(*acc)-1]
		used[j] = false
	}
	used[first] = false
	return false
}

// pairAllowingRematches pairs strictly by adjacency in the standings,
// ignoring history. Only used once the rematch-free search has failed.
func pairAllowingRematches(ranked []Entry) []Pairing {
	pairings := make([]Pairing, 0, len(ranked)/2)
	for i := 0; i+1 < len(ranked); i += 2 {
		pairings = append(pairings, Pairing{Team1ID: ranked[i].TeamID, Team2ID: ranked[i+1].TeamID})
	}
	return pairings
}
