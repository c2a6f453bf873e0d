package casino

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestParseStakes(t *testing.T) {
	tests := []struct {
		raw     string
		want    Stakes
		wantErr bool
	}{
		{"100", Stakes{Amount: 100}, false},
		{" 250 ", Stakes{Amount: 250}, false},
		{"max", Stakes{AllIn: true}, false},
		{"MAX", Stakes{AllIn: true}, false},
		{"All", Stakes{AllIn: true}, false},
		{"EVERYTHING", Stakes{AllIn: true}, false},
		{"*", Stakes{AllIn: true}, false},
		{"", Stakes{}, true},
		{"abc", Stakes{}, true},
		{"12.5", Stakes{}, true},
		{"10x", Stakes{}, true},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%q", tt.raw), func(t *testing.T) {
			got, err := ParseStakes(tt.raw)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrStakesNotANumber)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidateBounds(t *testing.T) {
	const (
		balance = 500
		min     = 10
		max     = 1000
	)

	assert.NoError(t, Stakes{Amount: 10}.Validate(balance, min, max))
	assert.NoError(t, Stakes{Amount: 500}.Validate(balance, min, max))
	assert.NoError(t, Stakes{AllIn: true}.Validate(balance, min, max))

	assert.ErrorIs(t, Stakes{Amount: 9}.Validate(balance, min, max), ErrStakesOutOfBounds)
	assert.ErrorIs(t, Stakes{Amount: 0}.Validate(balance, min, max), ErrStakesOutOfBounds)
	assert.ErrorIs(t, Stakes{Amount: -5}.Validate(balance, min, max), ErrStakesOutOfBounds)
	assert.ErrorIs(t, Stakes{Amount: 1001}.Validate(balance, min, max), ErrStakesOutOfBounds)
	assert.ErrorIs(t, Stakes{Amount: 501}.Validate(balance, min, max), ErrStakesUnaffordable)
}

func TestResolveAllInClampsToMax(t *testing.T) {
	assert.Equal(t, int64(500), Stakes{AllIn: true}.Resolve(500, 1000))
	assert.Equal(t, int64(1000), Stakes{AllIn: true}.Resolve(5000, 1000))
	assert.Equal(t, int64(0), Stakes{AllIn: true}.Resolve(0, 1000))
	assert.Equal(t, int64(250), Stakes{Amount: 250}.Resolve(5000, 1000))
}

// TestStakesValidationProperty checks that exactly the amounts in
// [min, max] that the balance affords validate, and nothing else.
func TestStakesValidationProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		min := rapid.Int64Range(1, 100).Draw(t, "min")
		max := rapid.Int64Range(min, 100000).Draw(t, "max")
		balance := rapid.Int64Range(0, 200000).Draw(t, "balance")
		amount := rapid.Int64Range(-1000, 200000).Draw(t, "amount")

		err := Stakes{Amount: amount}.Validate(balance, min, max)
		valid := amount >= min && amount <= max && amount <= balance
		if valid && err != nil {
			t.Fatalf("valid stakes %d rejected: %v", amount, err)
		}
		if !valid && err == nil {
			t.Fatalf("invalid stakes %d accepted (balance=%d, bounds=[%d,%d])", amount, balance, min, max)
		}
	})
}

// TestResolveProperty checks the all-in sentinel is always clamped to
// min(balance, max).
func TestResolveProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		balance := rapid.Int64Range(0, 1000000).Draw(t, "balance")
		max := rapid.Int64Range(1, 100000).Draw(t, "max")

		got := Stakes{AllIn: true}.Resolve(balance, max)
		want := balance
		if want > max {
			want = max
		}
		if got != want {
			t.Fatalf("resolve mismatch: got %d, want %d", got, want)
		}
	})
}
