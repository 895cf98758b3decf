package sm2

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNext(t *testing.T) {
	testCases := []struct {
		name     string
		grade    Grade
		prior    State
		expected State
	}{
		{
			name:     "second successful repetition",
			grade:    Easy,
			prior:    State{RepetitionNumber: 1, EasinessFactor: 2.6, Interval: 1},
			expected: State{RepetitionNumber: 2, EasinessFactor: 2.6, Interval: 6},
		},
		{
			name:     "first repetition",
			grade:    Easy,
			prior:    State{RepetitionNumber: 0, EasinessFactor: 2.5, Interval: 0},
			expected: State{RepetitionNumber: 1, EasinessFactor: 2.5, Interval: 1},
		},
		{
			// 6 * 2.5 = 15; EF: 2.5 + (0.1 - 2*(0.08+2*0.02)) = 2.36
			name:     "later repetition multiplies by prior easiness",
			grade:    Good,
			prior:    State{RepetitionNumber: 2, EasinessFactor: 2.5, Interval: 6},
			expected: State{RepetitionNumber: 3, EasinessFactor: 2.36, Interval: 15},
		},
		{
			name:     "interval is rounded",
			grade:    Easy,
			prior:    State{RepetitionNumber: 3, EasinessFactor: 2.5, Interval: 7},
			expected: State{RepetitionNumber: 4, EasinessFactor: 2.5, Interval: 18},
		},
		{
			// EF: 2.5 + (0.1 - 4*(0.08+4*0.02)) = 1.96
			name:     "forgotten resets repetitions",
			grade:    Vague,
			prior:    State{RepetitionNumber: 5, EasinessFactor: 2.5, Interval: 40},
			expected: State{RepetitionNumber: 0, EasinessFactor: 1.96, Interval: 1},
		},
		{
			name:     "easiness factor is floored",
			grade:    Forgot,
			prior:    State{RepetitionNumber: 2, EasinessFactor: 1.4, Interval: 6},
			expected: State{RepetitionNumber: 0, EasinessFactor: MinEasinessFactor, Interval: 1},
		},
		{
			// EF: 2.5 + (0.1 - 3*(0.08+3*0.02)) = 2.18
			name:     "hard still counts as remembered",
			grade:    Hard,
			prior:    State{RepetitionNumber: 0, EasinessFactor: 2.5, Interval: 0},
			expected: State{RepetitionNumber: 1, EasinessFactor: 2.18, Interval: 1},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := Next(tc.grade, tc.prior)
			assert.Equal(t, tc.expected.RepetitionNumber, got.RepetitionNumber)
			assert.Equal(t, tc.expected.Interval, got.Interval)
			assert.InDelta(t, tc.expected.EasinessFactor, got.EasinessFactor, 1e-9)
		})
	}
}

func TestNextIsDeterministic(t *testing.T) {
	prior := State{RepetitionNumber: 3, EasinessFactor: 2.1, Interval: 12}
	for g := Forgot; g <= Easy; g++ {
		assert.Equal(t, Next(g, prior), Next(g, prior))
	}
}

func TestDueAt(t *testing.T) {
	last := time.UnixMilli(1649413042925)
	assert.Equal(t, time.UnixMilli(1649499442925), DueAt(last, 1))
	assert.Equal(t, last, DueAt(last, 0))
}
