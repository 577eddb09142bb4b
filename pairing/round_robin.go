package pairing

// RoundRobinSchedule produces a full or truncated circle-method schedule.
// numRounds bounds the output; passing n-1 rounds (or n for an odd field)
// yields the complete all-play-all. More rounds than unique pairings exist
// is rejected with ErrInvalidRoundCount.
func RoundRobinSchedule(entries []Entry, numRounds int) ([]RoundPlan, error) {
	if len(entries) < 2 {
		return nil, ErrNotEnoughTeams
	}

	ids := make([]int, 0, len(entries)+1)
	for _, e := range entries {
		ids = append(ids, e.TeamID)
	}

	// Circle method: with an odd field a phantom slot marks the bye.
	const phantom = 0
	odd := len(ids)%2 == 1
	if odd {
		ids = append(ids, phantom)
	}

	n := len(ids)
	fullRounds := n - 1
	if numRounds <= 0 {
		numRounds = fullRounds
	}
	if numRounds > fullRounds {
		return nil, ErrInvalidRoundCount
	}

	plans := make([]RoundPlan, 0, numRounds)
	for round := 0; round < numRounds; round++ {
		plan := RoundPlan{Number: round + 1}
		for i := 0; i < n/2; i++ {
			a := ids[i]
			b := ids[n-1-i]
			if a == phantom || b == phantom {
				real := a
				if a == phantom {
					real = b
				}
				bye := real
				plan.ByeTeamID = &bye
				continue
			}
			plan.Pairings = append(plan.Pairings, Pairing{Team1ID: a, Team2ID: b})
		}
		plans = append(plans, plan)
		// Rotate everything but the first slot.
		last := ids[n-1]
		copy(ids[2:], ids[1:n-1])
		ids[1] = last
	}
	return plans, nil
}

// PartialRoundRobin schedules a limited league where each team plays at most
// matchesPerTeam contests. Pairings are picked greedily from the teams with
// the fewest assigned matches, never repeating a meeting, and sliced into
// rounds where no team appears twice.
func PartialRoundRobin(entries []Entry, matchesPerTeam int) ([]RoundPlan, error) {
	if len(entries) < 2 {
		return nil, ErrNotEnoughTeams
	}
	if matchesPerTeam <= 0 || matchesPerTeam > len(entries)-1 {
		return nil, ErrInvalidRoundCount
	}

	ids := make([]int, len(entries))
	for i, e := range entries {
		ids[i] = e.TeamID
	}

	assigned := make(map[int]int, len(ids))
	met := make(map[[2]int]bool)
	key := func(a, b int) [2]int {
		if a > b {
			a, b = b, a
		}
		return [2]int{a, b}
	}

	var pairings []Pairing
	for {
		progressed := false
		// Каждый проход стартует с наименее загруженной команды,
		// чтобы нагрузка росла равномерно.
		for _, a := range sortByLoad(ids, assigned) {
			if assigned[a] >= matchesPerTeam {
				continue
			}
			for _, b := range sortByLoad(ids, assigned) {
				if a == b || assigned[b] >= matchesPerTeam || met[key(a, b)] {
					continue
				}
				met[key(a, b)] = true
				assigned[a]++
				assigned[b]++
				pairings = append(pairings, Pairing{Team1ID: a, Team2ID: b})
				progressed = true
				break
			}
		}
		if !progressed {
			break
		}
	}

	return sliceIntoRounds(pairings), nil
}

func sortByLoad(ids []int, assigned map[int]int) []int {
	out := make([]int, len(ids))
	copy(out, ids)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0; j-- {
			a, b := out[j-1], out[j]
			if assigned[a] > assigned[b] || (assigned[a] == assigned[b] && a > b) {
				out[j-1], out[j] = b, a
			} else {
				break
			}
		}
	}
	return out
}

// sliceIntoRounds packs pairings into consecutive rounds so that no team
// plays twice in the same round, preserving the generation order otherwise.
func sliceIntoRounds(pairings []Pairing) []RoundPlan {
	var plans []RoundPlan
	remaining := append([]Pairing(nil), pairings...)
	for len(remaining) > 0 {
		plan := RoundPlan{Number: len(plans) + 1}
		busy := make(map[int]bool)
		var next []Pairing
		for _, p := range remaining {
			if busy[p.Team1ID] || busy[p.Team2ID] {
				next = append(next, p)
				continue
			}
			busy[p.Team1ID] = true
			busy[p.Team2ID] = true
			plan.Pairings = append(plan.Pairings, p)
		}
		plans = append(plans, plan)
		remaining = next
	}
	return plans
}
