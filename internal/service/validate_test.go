package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"2024-03-10T07:30:15Z", time.Date(2024, 3, 10, 7, 30, 15, 0, time.UTC)},
		{"2024-03-10T07:30:15.5+02:00", time.Date(2024, 3, 10, 5, 30, 15, 500000000, time.UTC)},
		{"2024-03-10T07:30:15", time.Date(2024, 3, 10, 7, 30, 15, 0, time.UTC)},
		{"2024-03-10T07:30", time.Date(2024, 3, 10, 7, 30, 0, 0, time.UTC)},
		{" 2024-03-10 ", time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseTimestamp(tt.in)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s", got)
		})
	}

	_, err := parseTimestamp("March 10")
	assert.Error(t, err)
}

func TestWeightPattern(t *testing.T) {
	for _, ok := range []string{"0", "5", "62.5", "102.25", "99999999.99"} {
		assert.True(t, weightPattern.MatchString(ok), ok)
	}
	for _, bad := range []string{"", "-1", "1.234", ".5", "5.", "1e3", "123456789"} {
		assert.False(t, weightPattern.MatchString(bad), bad)
	}
}

func TestValidateInputReportsFirstField(t *testing.T) {
	reps := 0
	rest := 9999
	err := validateInput(AddSetInput{Reps: &reps, RestTime: &rest})
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "reps", vErr.Field)
	assert.Equal(t, fieldMessages["reps"], vErr.Message)
}
