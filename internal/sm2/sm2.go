// Package sm2 implements the SuperMemo-2 memory model.
// https://en.wikipedia.org/wiki/SuperMemo
package sm2

import (
	"math"
	"time"
)

// Grade is the user's recall rating of a card, from 0 (blackout) to 4 (perfect).
type Grade int

const (
	Forgot Grade = 0
	Vague  Grade = 1
	Hard   Grade = 2
	Good   Grade = 3
	Easy   Grade = 4
)

const (
	// MinEasinessFactor is the floor of the easiness factor.
	MinEasinessFactor = 1.3
	// PassingGrade is the lowest grade that counts as remembered.
	PassingGrade Grade = 2
)

// State holds the memory state of a card.
type State struct {
	RepetitionNumber int
	EasinessFactor   float64
	Interval         int // days
}

// Remembered reports whether g counts as a successful recall.
func (g Grade) Remembered() bool {
	return g >= PassingGrade
}

// Next calculates the state that follows a review graded g.
func Next(g Grade, prior State) State {
	next := prior
	if g.Remembered() {
		switch prior.RepetitionNumber {
		case 0:
			next.Interval = 1
		case 1:
			next.Interval = 6
		default:
			next.Interval = int(math.Round(float64(prior.Interval) * prior.EasinessFactor))
		}
		next.RepetitionNumber = prior.RepetitionNumber + 1
	} else {
		next.RepetitionNumber = 0
		next.Interval = 1
	}

	q := float64(5 - g)
	next.EasinessFactor = math.Max(MinEasinessFactor, prior.EasinessFactor+(0.1-q*(0.08+q*0.02)))
	return next
}

// DueAt returns when a card reviewed at lastReview with the given interval
// becomes due again.
func DueAt(lastReview time.Time, interval int) time.Time {
	return lastReview.Add(time.Duration(interval) * 24 * time.Hour)
}
