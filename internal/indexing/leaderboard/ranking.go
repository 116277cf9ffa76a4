package leaderboard

import (
	"cmp"
	"math"
	"slices"
	"strconv"

	"github.com/vietddude/votewatch/internal/core/domain"
)

type scored struct {
	id    string
	votes int64
}

// compareContestantIDs orders ids numerically when both parse as integers.
func compareContestantIDs(a, b string) int {
	na, errA := strconv.ParseUint(a, 10, 64)
	nb, errB := strconv.ParseUint(b, 10, 64)
	if errA == nil && errB == nil {
		return cmp.Compare(na, nb)
	}
	return cmp.Compare(a, b)
}

// rank sorts contestants with votes by descending score, then ascending id.
func rank(scores map[string]int64) []scored {
	ranked := make([]scored, 0, len(scores))
	for id, v := range scores {
		if v > 0 {
			ranked = append(ranked, scored{id: id, votes: v})
		}
	}
	slices.SortFunc(ranked, func(a, b scored) int {
		return cmp.Or(cmp.Compare(b.votes, a.votes), compareContestantIDs(a.id, b.id))
	})
	return ranked
}

func percentage(votes, total int64) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(votes)/float64(total)*100*100) / 100
}

// build assembles one leaderboard page. Unranked roster contestants follow
// the ranked entries of the last ranked page, which therefore may hold more
// than limit entries, for example when the ranked count is a multiple of limit.
func build(contestID string, roster *Roster, scores map[string]int64, page, limit int) domain.Leaderboard {
	var total int64
	for _, v := range scores {
		total += max(v, 0)
	}

	ranked := rank(scores)

	contestants := roster.Len()
	for id := range scores {
		if _, ok := roster.Get(id); !ok {
			contestants++
		}
	}

	start := min((page-1)*limit, len(ranked))
	end := min(start+limit, len(ranked))

	entries := make([]domain.LeaderboardEntry, 0, end-start)
	for i, s := range ranked[start:end] {
		r := start + i + 1
		c, _ := roster.Get(s.id)
		entries = append(entries, domain.LeaderboardEntry{
			Rank:              &r,
			ContestantID:      s.id,
			Votes:             s.votes,
			PercentageOfTotal: percentage(s.votes, total),
			Contestant:        c,
		})
	}

	lastRankedPage := max(1, (len(ranked)+limit-1)/limit)
	if page == lastRankedPage {
		for _, id := range roster.IDs() {
			if scores[id] > 0 {
				continue
			}
			c, _ := roster.Get(id)
			entries = append(entries, domain.LeaderboardEntry{
				ContestantID: id,
				Contestant:   c,
			})
		}
	}

	return domain.Leaderboard{
		ContestID:        contestID,
		Entries:          entries,
		TotalVotes:       total,
		TotalContestants: contestants,
	}
}

// statsFor returns the rank and votes of one contestant under the same ordering.
func statsFor(scores map[string]int64, contestantID string) domain.ContestantStats {
	votes := scores[contestantID]
	if votes <= 0 {
		return domain.ContestantStats{Votes: max(votes, 0)}
	}
	for i, s := range rank(scores) {
		if s.id == contestantID {
			r := i + 1
			return domain.ContestantStats{Rank: &r, Votes: votes}
		}
	}
	return domain.ContestantStats{Votes: votes}
}
