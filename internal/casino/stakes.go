package casino

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Stakes validation errors, reported privately to the user without
// closing the session.
var (
	ErrStakesNotANumber   = errors.New("stakes must be a whole number")
	ErrStakesOutOfBounds  = errors.New("stakes out of bounds")
	ErrStakesUnaffordable = errors.New("stakes exceed current balance")
)

// allInWords are the case-insensitive spellings of the all-in sentinel.
var allInWords = map[string]bool{
	"max":        true,
	"all":        true,
	"everything": true,
	"*":          true,
}

// Stakes is either a fixed positive amount or the all-in sentinel,
// which resolves to the current balance at use-time, clamped to the
// maximum.
type Stakes struct {
	Amount int64
	AllIn  bool
}

// ParseStakes parses the raw text field of a stakes form submission.
func ParseStakes(raw string) (Stakes, error) {
	trimmed := strings.TrimSpace(raw)
	if allInWords[strings.ToLower(trimmed)] {
		return Stakes{AllIn: true}, nil
	}

	amount, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil {
		return Stakes{}, fmt.Errorf("%w: %q", ErrStakesNotANumber, raw)
	}
	return Stakes{Amount: amount}, nil
}

// Validate checks bounds and affordability for a fixed amount. The
// all-in sentinel always validates; it is clamped when resolved.
func (s Stakes) Validate(balance, minStakes, maxStakes int64) error {
	if s.AllIn {
		return nil
	}
	if s.Amount < minStakes || s.Amount > maxStakes {
		return fmt.Errorf("%w: %d not in [%d, %d]", ErrStakesOutOfBounds, s.Amount, minStakes, maxStakes)
	}
	if s.Amount > balance {
		return fmt.Errorf("%w: %d > %d", ErrStakesUnaffordable, s.Amount, balance)
	}
	return nil
}

// Resolve returns the effective amount for a turn: the fixed amount, or
// for all-in the current balance clamped to the maximum.
func (s Stakes) Resolve(balance, maxStakes int64) int64 {
	if !s.AllIn {
		return s.Amount
	}
	if balance > maxStakes {
		return maxStakes
	}
	return balance
}

func (s Stakes) String() string {
	if s.AllIn {
		return "ALL IN"
	}
	return strconv.FormatInt(s.Amount, 10)
}
