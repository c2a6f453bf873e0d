// Package blackjack implements the single-player blackjack table played
// inside a casino session: standard deal, hit/stand, dealer draws to 17.
package blackjack

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"
)

// DealerStand is the dealer's fixed drawing threshold: the dealer draws
// while its total is below this value.
const DealerStand = 17

// Blackjack is the best possible hand total.
const Blackjack = 21

var (
	// ErrHandResolved is returned when a player action arrives after
	// the hand has already been resolved.
	ErrHandResolved = errors.New("hand already resolved")
)

var suits = []string{"♠", "♥", "♦", "♣"}
var rankNames = []string{"A", "2", "3", "4", "5", "6", "7", "8", "9", "10", "J", "Q", "K"}

// Card is one playing card, identified by rank (0 = ace .. 12 = king)
// and suit.
type Card struct {
	Rank int
	Suit int
}

// Value returns the card's base value: aces count 11 here and are
// demoted to 1 by hand evaluation, face cards count 10.
func (c Card) Value() int {
	switch {
	case c.Rank == 0:
		return 11
	case c.Rank >= 9:
		return 10
	default:
		return c.Rank + 1
	}
}

// IsAce reports whether the card is an ace.
func (c Card) IsAce() bool {
	return c.Rank == 0
}

func (c Card) String() string {
	return suits[c.Suit] + rankNames[c.Rank]
}

// Hand is an ordered set of dealt cards.
type Hand struct {
	Cards []Card
}

// Add appends a card to the hand.
func (h *Hand) Add(c Card) {
	h.Cards = append(h.Cards, c)
}

// Value evaluates the hand. Aces count 11 and are demoted to 1 one at a
// time while the total exceeds 21. Soft is true while an ace still
// counts as 11 and the total is below 21; an exact 21 is reported hard
// since no further draw can use the flexibility.
func (h *Hand) Value() (total int, soft bool) {
	aces := 0
	for _, c := range h.Cards {
		total += c.Value()
		if c.IsAce() {
			aces++
		}
	}
	for total > Blackjack && aces > 0 {
		total -= 10
		aces--
	}
	return total, aces > 0 && total < Blackjack
}

// Bust reports whether the hand total exceeds 21.
func (h *Hand) Bust() bool {
	total, _ := h.Value()
	return total > Blackjack
}

func (h *Hand) String() string {
	names := make([]string, len(h.Cards))
	for i, c := range h.Cards {
		names[i] = c.String()
	}
	return strings.Join(names, " ")
}

// Shoe is the card source a table draws from.
type Shoe interface {
	Draw() Card
}

// randomShoe deals from a single shuffled 52-card deck, reshuffling
// when it runs out.
type randomShoe struct {
	rng   *rand.Rand
	cards []Card
}

// NewShoe returns a shuffled single-deck shoe.
func NewShoe(rng *rand.Rand) Shoe {
	return &randomShoe{rng: rng}
}

func (s *randomShoe) Draw() Card {
	if len(s.cards) == 0 {
		s.cards = make([]Card, 0, 52)
		for rank := 0; rank < 13; rank++ {
			for suit := 0; suit < 4; suit++ {
				s.cards = append(s.cards, Card{Rank: rank, Suit: suit})
			}
		}
		s.rng.Shuffle(len(s.cards), func(i, j int) {
			s.cards[i], s.cards[j] = s.cards[j], s.cards[i]
		})
	}
	c := s.cards[len(s.cards)-1]
	s.cards = s.cards[:len(s.cards)-1]
	return c
}

// FixedShoe deals the given cards in order. Test helper.
type FixedShoe struct {
	Cards []Card
	next  int
}

func (s *FixedShoe) Draw() Card {
	if s.next >= len(s.Cards) {
		panic(fmt.Sprintf("fixed shoe exhausted after %d cards", len(s.Cards)))
	}
	c := s.Cards[s.next]
	s.next++
	return c
}

// Result is the resolution of one hand.
type Result int

const (
	ResultNone Result = iota // hand still in play
	ResultWin
	ResultLoss
	ResultPush
)

// Table is one blackjack hand in progress: the player's hand versus the
// simulated dealer. The dealer's second card stays hidden until reveal.
type Table struct {
	shoe     Shoe
	Player   Hand
	Dealer   Hand
	revealed bool
	result   Result
}

// Deal opens a fresh hand with the standard two-card opening deal.
func Deal(shoe Shoe) *Table {
	t := &Table{shoe: shoe}
	t.Player.Add(shoe.Draw())
	t.Dealer.Add(shoe.Draw())
	t.Player.Add(shoe.Draw())
	t.Dealer.Add(shoe.Draw())
	return t
}

// Hit draws one card for the player. A total over 21 busts the hand and
// resolves it as an immediate loss.
func (t *Table) Hit() error {
	if t.result != ResultNone {
		return ErrHandResolved
	}
	t.Player.Add(t.shoe.Draw())
	if t.Player.Bust() {
		t.revealed = true
		t.result = ResultLoss
	}
	return nil
}

// Stand locks the player total, reveals the dealer's hidden card and
// plays out the dealer: draw while below 17, bust over 21, then compare
// totals.
func (t *Table) Stand() error {
	if t.result != ResultNone {
		return ErrHandResolved
	}
	t.revealed = true

	for {
		total, _ := t.Dealer.Value()
		if total >= DealerStand {
			break
		}
		t.Dealer.Add(t.shoe.Draw())
	}

	dealerTotal, _ := t.Dealer.Value()
	playerTotal, _ := t.Player.Value()
	switch {
	case dealerTotal > Blackjack:
		t.result = ResultWin
	case playerTotal > dealerTotal:
		t.result = ResultWin
	case playerTotal < dealerTotal:
		t.result = ResultLoss
	default:
		t.result = ResultPush
	}
	return nil
}

// Result returns the hand's resolution, ResultNone while still in play.
func (t *Table) Result() Result {
	return t.result
}

// Resolved reports whether the hand has been resolved.
func (t *Table) Resolved() bool {
	return t.result != ResultNone
}

// Revealed reports whether the dealer's hidden card has been revealed.
func (t *Table) Revealed() bool {
	return t.revealed
}

// DealerUpcard returns the dealer's visible first card.
func (t *Table) DealerUpcard() Card {
	return t.Dealer.Cards[0]
}

// Delta returns the balance change for a resolved hand at the given
// stakes: +stakes on a win, -stakes on a loss, 0 on a push or while the
// hand is still in play.
func (t *Table) Delta(stakes int64) int64 {
	switch t.result {
	case ResultWin:
		return stakes
	case ResultLoss:
		return -stakes
	default:
		return 0
	}
}
