package domain

// Position counters start at different values: exercise slots are 0-based,
// set numbers are 1-based. Keep them separate.
const (
	FirstExerciseOrder = 0
	FirstSetNumber     = 1
)

// NextPosition returns max(existing)+1, or start when there are no siblings.
// Gaps left by deletions are not reused unless they are above the maximum.
func NextPosition(existing []int, start int) int {
	if len(existing) == 0 {
		return start
	}
	highest := existing[0]
	for _, p := range existing[1:] {
		if p > highest {
			highest = p
		}
	}
	return highest + 1
}
