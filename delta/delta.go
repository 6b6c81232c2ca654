// Package delta computes which commits of a branch are new relative to the
// stored cursor. Inputs arrive newest-first, the way the source API lists
// them; results are returned oldest-first so notifications read
// chronologically.
package delta

import "commitwatch/models"

// Compute determines the new commits in fetched given the branch's cursor.
// fetched must be ordered newest-first. lastID is the stored cursor id and
// seen reports whether the branch had a cursor entry at all.
//
// A branch without a cursor entry yields the entire fetched list and
// initialized=true. When the cursor id is absent from fetched (history was
// force-pushed or rewritten) the entire fetched list is treated as new.
func Compute(fetched []models.Commit, lastID string, seen bool) (newCommits []models.Commit, initialized bool) {
	if !seen {
		return reverse(fetched), true
	}
	for i, c := range fetched {
		if c.ID == lastID {
			return reverse(fetched[:i]), false
		}
	}
	return reverse(fetched), false
}

// NextCursor returns the cursor value to store after a fetch: the id of the
// newest fetched commit, regardless of how many commits were new.
func NextCursor(fetched []models.Commit) string {
	if len(fetched) == 0 {
		return ""
	}
	return fetched[0].ID
}

func reverse(commits []models.Commit) []models.Commit {
	out := make([]models.Commit, len(commits))
	for i, c := range commits {
		out[len(commits)-1-i] = c
	}
	return out
}
