package qrhunt

import (
	"sort"
	"time"
)

// Standings derives the ordered scoreboard for a game. Points and nodes
// modes rank purely on their metric; time mode ranks finished teams by
// finish time ascending, then unfinished teams by nodes found. The final
// tiebreak is always team ID so repeated calls return the same order.
// Winner is a "first to complete" marker and never reorders standings.
func Standings(mode RankingMode, teams []Team) []Standing {
	out := make([]Standing, 0, len(teams))
	for _, t := range teams {
		out = append(out, Standing{
			TeamID:     t.ID,
			TeamName:   t.Name,
			Points:     t.TotalPoints,
			NodesFound: len(t.Visited),
			HintsUsed:  len(t.HintsUsed),
			FinishedAt: t.FinishedAt,
			Winner:     t.Winner,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		switch mode {
		case RankTime:
			if (a.FinishedAt != nil) != (b.FinishedAt != nil) {
				return a.FinishedAt != nil
			}
			if a.FinishedAt != nil {
				if !a.FinishedAt.Equal(*b.FinishedAt) {
					return a.FinishedAt.Before(*b.FinishedAt)
				}
				return a.TeamID < b.TeamID
			}
			if a.NodesFound != b.NodesFound {
				return a.NodesFound > b.NodesFound
			}
		case RankNodes:
			if a.NodesFound != b.NodesFound {
				return a.NodesFound > b.NodesFound
			}
			if a.Points != b.Points {
				return a.Points > b.Points
			}
		default: // points
			if a.Points != b.Points {
				return a.Points > b.Points
			}
			if a.HintsUsed != b.HintsUsed {
				return a.HintsUsed < b.HintsUsed
			}
			if c := compareFinished(a.FinishedAt, b.FinishedAt); c != 0 {
				return c < 0
			}
		}
		return a.TeamID < b.TeamID
	})

	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}

// compareFinished orders earlier finishes first; unfinished sorts last.
func compareFinished(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	case a.Before(*b):
		return -1
	case b.Before(*a):
		return 1
	}
	return 0
}
