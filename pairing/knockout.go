package pairing

// FirstKnockoutRound seeds the opening round of a single-elimination stage.
// The field is ranked by the usual standings order, padded up to the next
// power of two with structural byes, and matched top-vs-bottom (1 vs N,
// 2 vs N-1, ...). Teams drawn against a structural slot advance without
// playing and are reported through ByeTeamIDs.
func FirstKnockoutRound(entries []Entry, roundNumber int) (RoundPlan, []int, error) {
	if len(entries) < 2 {
		return RoundPlan{}, nil, ErrNotEnoughTeams
	}

	ranked := ComputeBuchholz(entries)
	SortEntries(ranked)

	size := bracketSize(len(ranked))
	slots := make([]int, size) // 0 marks a structural bye slot
	for i, e := range ranked {
		slots[i] = e.TeamID
	}

	plan := RoundPlan{Number: roundNumber}
	var advancing []int
	for i := 0; i < size/2; i++ {
		a := slots[i]
		b := slots[size-1-i]
		switch {
		case a != 0 && b != 0:
			plan.Pairings = append(plan.Pairings, Pairing{Team1ID: a, Team2ID: b})
		case a != 0:
			advancing = append(advancing, a)
		case b != 0:
			advancing = append(advancing, b)
		}
	}
	return plan, advancing, nil
}

// NextKnockoutRound pairs the winners of the previous round in bracket order.
func NextKnockoutRound(winners []int, roundNumber int) (RoundPlan, error) {
	if len(winners) < 2 {
		return RoundPlan{}, ErrNotEnoughTeams
	}
	plan := RoundPlan{Number: roundNumber}
	for i := 0; i+1 < len(winners); i += 2 {
		plan.Pairings = append(plan.Pairings, Pairing{Team1ID: winners[i], Team2ID: winners[i+1]})
	}
	if len(winners)%2 == 1 {
		last := winners[len(winners)-1]
		plan.ByeTeamID = &last
	}
	return plan, nil
}

func bracketSize(n int) int {
	size := 1
	for size < n {
		size *= 2
	}
	return size
}
