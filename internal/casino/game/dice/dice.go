// Package dice implements the casino dice duel: one roll for the
// player, one for the house, higher value wins the stakes.
package dice

import "math/rand"

// Sides is the number of faces on a casino die.
const Sides = 12

// Roller produces one uniform roll in [1, Sides]. Tests inject fixed
// rollers to force specific outcomes.
type Roller func() int

// NewRoller returns a Roller backed by the given source.
func NewRoller(rng *rand.Rand) Roller {
	return func() int {
		return rng.Intn(Sides) + 1
	}
}

// Outcome is the result of one turn.
type Outcome int

const (
	OutcomePush Outcome = iota
	OutcomeWin
	OutcomeLoss
)

// Turn holds the two rolls of one turn and their outcome.
type Turn struct {
	Player  int
	House   int
	Outcome Outcome
}

// Play draws one roll pair and resolves it. Equal rolls are a push.
func Play(roll Roller) Turn {
	t := Turn{Player: roll(), House: roll()}
	switch {
	case t.Player > t.House:
		t.Outcome = OutcomeWin
	case t.Player < t.House:
		t.Outcome = OutcomeLoss
	default:
		t.Outcome = OutcomePush
	}
	return t
}

// Delta returns the balance change for the turn at the given stakes:
// +stakes on a win, -stakes on a loss, 0 on a push.
func (t Turn) Delta(stakes int64) int64 {
	switch t.Outcome {
	case OutcomeWin:
		return stakes
	case OutcomeLoss:
		return -stakes
	default:
		return 0
	}
}

// Stats accumulates the running session statistics shown after every
// turn.
type Stats struct {
	Turns  int
	Wins   int
	Losses int
	Pushes int
	Net    int64
}

// Apply records a resolved turn.
func (s *Stats) Apply(t Turn, stakes int64) {
	s.Turns++
	s.Net += t.Delta(stakes)
	switch t.Outcome {
	case OutcomeWin:
		s.Wins++
	case OutcomeLoss:
		s.Losses++
	default:
		s.Pushes++
	}
}
