// Package progress derives milestone and project completion percentages.
package progress

import (
	"math"

	"workledger/internal/model"
)

// Milestone returns the share of completed tasks as a 0-100 percentage.
func Milestone(tasks []model.Task) int {
	if len(tasks) == 0 {
		return 0
	}
	completed := 0
	for i := range tasks {
		if tasks[i].IsCompleted() {
			completed++
		}
	}
	return Round(100 * float64(completed) / float64(len(tasks)))
}

// Project returns the plain mean of the milestones' progress. Milestones
// are not weighted by how many tasks they hold.
func Project(milestones []model.Milestone) int {
	if len(milestones) == 0 {
		return 0
	}
	sum := 0
	for i := range milestones {
		sum += clamp(milestones[i].Progress)
	}
	return Round(float64(sum) / float64(len(milestones)))
}

// Round rounds half up (2.5 -> 3, -2.5 -> -2).
func Round(x float64) int {
	return int(math.Floor(x + 0.5))
}

func clamp(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
