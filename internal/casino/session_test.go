package casino

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telegram-casino-bot/internal/casino/game/blackjack"
)

func TestSessionOpensInMenu(t *testing.T) {
	h := startSession(t, harnessOptions{balance: 500})

	v := h.renderer.awaitState(t, StateMenu)
	assert.Equal(t, h.sess.ID(), v.SessionID)
	assert.Equal(t, int64(500), v.Balance)
	assert.Equal(t, Stakes{Amount: 100}, v.Stakes)
	assert.Equal(t, []Action{ActionOpenDice, ActionOpenBlackjack, ActionAdjustStakes, ActionLeave}, v.Actions)

	h.press(t, ActionLeave)
	assert.Equal(t, CloseLeave, h.awaitClose(t))
}

func TestDiceWinCreditsStakes(t *testing.T) {
	// Forced roll pair (10, 2): player wins, balance 500 -> 600.
	h := startSession(t, harnessOptions{
		balance: 500,
		roller:  fixedRoller(10, 2),
	})

	h.renderer.awaitState(t, StateMenu)
	h.press(t, ActionOpenDice)

	v := h.renderer.awaitState(t, StatePlayingDice)
	require.NotNil(t, v.Dice)
	assert.Equal(t, 10, v.Dice.Turn.Player)
	assert.Equal(t, 2, v.Dice.Turn.House)
	assert.Equal(t, int64(600), v.Balance)
	assert.Equal(t, []Action{ActionReroll, ActionReturnToMenu}, v.Actions)

	h.press(t, ActionReturnToMenu)
	h.renderer.awaitState(t, StateMenu)
	h.press(t, ActionLeave)
	h.awaitClose(t)

	// Final balance persisted on release.
	assert.Equal(t, int64(600), h.store.balance(testUserID))
}

func TestDiceLossAndPush(t *testing.T) {
	// (3, 9) loses 100, (7, 7) pushes.
	h := startSession(t, harnessOptions{
		balance: 500,
		roller:  fixedRoller(3, 9, 7, 7),
	})

	h.renderer.awaitState(t, StateMenu)
	h.press(t, ActionOpenDice)

	v := h.renderer.awaitState(t, StatePlayingDice)
	assert.Equal(t, int64(400), v.Balance)

	h.press(t, ActionReroll)
	v = h.renderer.awaitState(t, StatePlayingDice)
	assert.Equal(t, int64(400), v.Balance)
	require.NotNil(t, v.Dice)
	assert.Equal(t, 2, v.Dice.Stats.Turns)
	assert.Equal(t, 1, v.Dice.Stats.Losses)
	assert.Equal(t, 1, v.Dice.Stats.Pushes)
	assert.Equal(t, int64(-100), v.Dice.Stats.Net)

	h.press(t, ActionReturnToMenu)
	h.renderer.awaitState(t, StateMenu)
	h.press(t, ActionLeave)
	h.awaitClose(t)
}

func TestDiceRerollDisabledWhenUnaffordable(t *testing.T) {
	// Balance 100, stakes 100: losing the only roll leaves nothing to
	// bet, so the reroll control must not be offered.
	h := startSession(t, harnessOptions{
		balance: 100,
		roller:  fixedRoller(3, 9),
	})

	h.renderer.awaitState(t, StateMenu)
	h.press(t, ActionOpenDice)

	v := h.renderer.awaitState(t, StatePlayingDice)
	assert.Equal(t, int64(0), v.Balance)
	assert.Equal(t, []Action{ActionReturnToMenu}, v.Actions)

	h.press(t, ActionReturnToMenu)
	h.renderer.awaitState(t, StateMenu)
	h.press(t, ActionLeave)
	h.awaitClose(t)
}

func TestMenuTimeoutClosesAndReleasesLease(t *testing.T) {
	h := startSession(t, harnessOptions{
		balance: 500,
		cfg:     Config{WaitTimeout: 50 * time.Millisecond},
	})

	h.renderer.awaitState(t, StateMenu)
	assert.Equal(t, CloseTimeout, h.awaitClose(t))

	// No leaked lease, no registry entry, balance persisted.
	assert.Equal(t, 0, h.reg.Len())
	assert.False(t, h.store.isLocked(testUserID))
	assert.Equal(t, int64(500), h.store.balance(testUserID))
	_, _, busy := h.mgr.Busy(testUserID)
	assert.False(t, busy)
}

func TestIllegalActionClosesSession(t *testing.T) {
	h := startSession(t, harnessOptions{balance: 500})

	h.renderer.awaitState(t, StateMenu)
	// HIT is never rendered in MENU; a stale render or protocol
	// violation closes the session defensively.
	h.press(t, ActionHit)

	assert.Equal(t, CloseInvalidAction, h.awaitClose(t))
	assert.Equal(t, 0, h.reg.Len())
	assert.False(t, h.store.isLocked(testUserID))
}

func TestExternalLeaveClosesCleanly(t *testing.T) {
	h := startSession(t, harnessOptions{balance: 500})

	h.renderer.awaitState(t, StateMenu)
	h.awaitWaiter(t)
	h.sess.RequestClose(CloseRequest{Reason: CloseExternalLeave})

	assert.Equal(t, CloseExternalLeave, h.awaitClose(t))
	assert.Equal(t, 0, h.reg.Len())
	assert.Equal(t, int64(500), h.store.balance(testUserID))
}

func TestStakesAdjustmentSuccess(t *testing.T) {
	h := startSession(t, harnessOptions{balance: 500})

	h.renderer.awaitState(t, StateMenu)
	h.press(t, ActionAdjustStakes)

	v := h.renderer.awaitState(t, StateAdjustingStakes)
	assert.Equal(t, Stakes{Amount: 100}, v.Stakes)

	h.submit(t, "250")
	v = h.renderer.awaitState(t, StateMenu)
	assert.Equal(t, Stakes{Amount: 250}, v.Stakes)

	h.press(t, ActionLeave)
	h.awaitClose(t)
}

func TestStakesAdjustmentAllInSentinel(t *testing.T) {
	h := startSession(t, harnessOptions{balance: 500})

	h.renderer.awaitState(t, StateMenu)
	h.press(t, ActionAdjustStakes)
	h.renderer.awaitState(t, StateAdjustingStakes)
	h.submit(t, "EVERYTHING")

	v := h.renderer.awaitState(t, StateMenu)
	assert.True(t, v.Stakes.AllIn)

	h.press(t, ActionLeave)
	h.awaitClose(t)
}

func TestStakesAdjustmentFailureRevertsToMenu(t *testing.T) {
	h := startSession(t, harnessOptions{balance: 500})

	h.renderer.awaitState(t, StateMenu)
	h.press(t, ActionAdjustStakes)
	h.renderer.awaitState(t, StateAdjustingStakes)

	// Unaffordable: 600 > balance 500. Reported privately, stakes
	// untouched, session stays open.
	h.submit(t, "600")
	v := h.renderer.awaitState(t, StateMenu)
	assert.Equal(t, Stakes{Amount: 100}, v.Stakes)
	assert.Equal(t, 1, h.renderer.noticeCount())

	h.press(t, ActionLeave)
	h.awaitClose(t)
}

func TestBlackjackDealerBustIsWin(t *testing.T) {
	// Deal order: player, dealer, player, dealer.
	// Player: 10+8 (18). Dealer: 10+6 (16), draws K -> 26 bust.
	shoe := &blackjack.FixedShoe{Cards: []blackjack.Card{
		card(9), card(9), card(7), card(5),
		card(12),
	}}
	h := startSession(t, harnessOptions{balance: 500, shoe: shoe})

	h.renderer.awaitState(t, StateMenu)
	h.press(t, ActionOpenBlackjack)

	v := h.renderer.awaitState(t, StatePlayingBlackjack)
	require.NotNil(t, v.Blackjack)
	assert.Equal(t, []Action{ActionHit, ActionStand}, v.Actions)
	assert.False(t, v.Blackjack.Table.Revealed())

	h.press(t, ActionStand)
	v = h.renderer.awaitState(t, StatePlayingBlackjack)
	assert.Equal(t, blackjack.ResultWin, v.Blackjack.Table.Result())
	assert.Equal(t, int64(600), v.Balance)
	assert.Equal(t, []Action{ActionPlayAgain, ActionReturnToMenu}, v.Actions)

	h.press(t, ActionReturnToMenu)
	h.renderer.awaitState(t, StateMenu)
	h.press(t, ActionLeave)
	h.awaitClose(t)

	assert.Equal(t, int64(600), h.store.balance(testUserID))
}

func TestBlackjackPlayerBustThenPlayAgain(t *testing.T) {
	// Hand 1: player 10+9, hits K -> bust, loses 100.
	// Hand 2: player 10+10 (20) vs dealer 10+8 (18) -> win.
	shoe := &blackjack.FixedShoe{Cards: []blackjack.Card{
		card(9), card(3), card(8), card(4), card(12),
		card(9), card(9), card(9), card(7),
	}}
	h := startSession(t, harnessOptions{balance: 500, shoe: shoe})

	h.renderer.awaitState(t, StateMenu)
	h.press(t, ActionOpenBlackjack)
	h.renderer.awaitState(t, StatePlayingBlackjack)

	h.press(t, ActionHit)
	v := h.renderer.awaitState(t, StatePlayingBlackjack)
	assert.Equal(t, blackjack.ResultLoss, v.Blackjack.Table.Result())
	assert.Equal(t, int64(400), v.Balance)

	h.press(t, ActionPlayAgain)
	v = h.renderer.awaitState(t, StatePlayingBlackjack)
	assert.Equal(t, []Action{ActionHit, ActionStand}, v.Actions)

	h.press(t, ActionStand)
	v = h.renderer.awaitState(t, StatePlayingBlackjack)
	assert.Equal(t, blackjack.ResultWin, v.Blackjack.Table.Result())
	assert.Equal(t, int64(500), v.Balance)

	h.press(t, ActionReturnToMenu)
	h.renderer.awaitState(t, StateMenu)
	h.press(t, ActionLeave)
	h.awaitClose(t)
}

func TestBlackjackTimeoutMidHandForfeitsStakes(t *testing.T) {
	shoe := &blackjack.FixedShoe{Cards: []blackjack.Card{
		card(9), card(3), card(8), card(4),
	}}
	h := startSession(t, harnessOptions{
		balance: 500,
		shoe:    shoe,
		cfg:     Config{WaitTimeout: 150 * time.Millisecond},
	})

	h.renderer.awaitState(t, StateMenu)
	h.press(t, ActionOpenBlackjack)
	h.renderer.awaitState(t, StatePlayingBlackjack)

	// Let the hand wait time out before resolution.
	assert.Equal(t, CloseTimeout, h.awaitClose(t))
	assert.Equal(t, int64(400), h.store.balance(testUserID))
	assert.False(t, h.store.isLocked(testUserID))
}

func TestCloseRendersTerminalMessage(t *testing.T) {
	h := startSession(t, harnessOptions{
		balance: 500,
		roller:  fixedRoller(10, 2),
	})

	h.renderer.awaitState(t, StateMenu)
	h.press(t, ActionOpenDice)
	h.renderer.awaitState(t, StatePlayingDice)
	h.press(t, ActionReturnToMenu)
	h.renderer.awaitState(t, StateMenu)
	h.press(t, ActionLeave)
	h.awaitClose(t)

	select {
	case closed := <-h.renderer.closedCh:
		assert.Equal(t, CloseLeave, closed.Reason)
		assert.Equal(t, int64(600), closed.Balance)
		assert.Equal(t, int64(100), closed.Net)
		assert.Empty(t, closed.Ref)
	case <-time.After(5 * time.Second):
		t.Fatal("no terminal render")
	}
}

func TestLateEventAfterCloseIsDropped(t *testing.T) {
	h := startSession(t, harnessOptions{
		balance: 500,
		cfg:     Config{WaitTimeout: 50 * time.Millisecond},
	})

	h.renderer.awaitState(t, StateMenu)
	h.awaitClose(t)

	// A late button press after teardown must be a no-op.
	h.sess.Deliver(Event{Kind: EventComponent, UserID: testUserID, Action: ActionOpenDice})
	assert.Equal(t, 0, h.reg.Len())
}

func TestDuplicateRegistrationFails(t *testing.T) {
	ctx := context.Background()
	h := startSession(t, harnessOptions{balance: 500})
	h.renderer.awaitState(t, StateMenu)

	store := newStubStore()
	mgr := newTestLease(t, store, testUserID)
	dup := New(Params{
		UserID:   testUserID,
		Lease:    mgr,
		Registry: h.reg,
		Renderer: newRecordingRenderer(),
	})
	assert.ErrorIs(t, h.reg.Register(dup), ErrDuplicateSession)
	require.NoError(t, dup.lease.Release(ctx))

	h.press(t, ActionLeave)
	h.awaitClose(t)
}
