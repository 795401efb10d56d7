package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNextPosition(t *testing.T) {
	tests := []struct {
		name     string
		existing []int
		start    int
		want     int
	}{
		{"first exercise", nil, FirstExerciseOrder, 0},
		{"first set", nil, FirstSetNumber, 1},
		{"after exercises", []int{0, 1}, FirstExerciseOrder, 2},
		{"after sets", []int{1, 2, 3}, FirstSetNumber, 4},
		{"unsorted siblings", []int{2, 0, 1}, FirstExerciseOrder, 3},
		{"gap below max is not reused", []int{1, 3}, FirstSetNumber, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NextPosition(tt.existing, tt.start))
		})
	}
}

func TestPositionCountersStartDifferently(t *testing.T) {
	assert.NotEqual(t, FirstExerciseOrder, FirstSetNumber)
}
