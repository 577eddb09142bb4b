package pairing

import "sort"

// DraftPlayer is a player snapshot fed to the mêlée drafting algorithms.
type DraftPlayer struct {
	PlayerID int
	Rating   float64
}

// SplitPool cuts the pool down to exactly numTeams*teamSize players for a
// draft with fixed team size. The strongest players stay in the draftable
// part; the len(players) % teamSize weakest are returned as leftover so the
// caller can report them instead of silently dropping anyone.
func SplitPool(players []DraftPlayer, teamSize int) (pool, leftover []DraftPlayer, numTeams int) {
	if teamSize < 1 {
		return nil, nil, 0
	}
	sorted := sortByRatingDesc(players)
	numTeams = len(sorted) / teamSize
	cut := numTeams * teamSize
	return sorted[:cut], sorted[cut:], numTeams
}

// BalanceDraft deals players to numTeams buckets so total rating stays even:
// players are sorted by rating descending and dealt round-robin, the current
// strongest always going to the bucket with the lowest running total.
func BalanceDraft(players []DraftPlayer, numTeams int) ([][]int, error) {
	if err := checkDraft(players, numTeams); err != nil {
		return nil, err
	}
	pool := sortByRatingDesc(players)

	buckets := make([][]int, numTeams)
	totals := make([]float64, numTeams)
	for _, p := range pool {
		target := 0
		for i := 1; i < numTeams; i++ {
			// Размер держим ровным: переполненная корзина ждёт остальных.
			if len(buckets[i]) < len(buckets[target]) ||
				(len(buckets[i]) == len(buckets[target]) && totals[i] < totals[target]) {
				target = i
			}
		}
		buckets[target] = append(buckets[target], p.PlayerID)
		totals[target] += p.Rating
	}
	return buckets, nil
}

// SnakeDraft deals players serpentine-style: 1..n, then n..1, repeating.
func SnakeDraft(players []DraftPlayer, numTeams int) ([][]int, error) {
	if err := checkDraft(players, numTeams); err != nil {
		return nil, err
	}
	pool := sortByRatingDesc(players)

	buckets := make([][]int, numTeams)
	for i, p := range pool {
		lap := i / numTeams
		pos := i % numTeams
		if lap%2 == 1 {
			pos = numTeams - 1 - pos
		}
		buckets[pos] = append(buckets[pos], p.PlayerID)
	}
	return buckets, nil
}

func checkDraft(players []DraftPlayer, numTeams int) error {
	if numTeams < 2 || len(players) < numTeams {
		return ErrNotEnoughTeams
	}
	return nil
}

func sortByRatingDesc(players []DraftPlayer) []DraftPlayer {
	pool := make([]DraftPlayer, len(players))
	copy(pool, players)
	sort.SliceStable(pool, func(i, j int) bool {
		if pool[i].Rating != pool[j].Rating {
			return pool[i].Rating > pool[j].Rating
		}
		return pool[i].PlayerID < pool[j].PlayerID
	})
	return pool
}
