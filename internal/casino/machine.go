package casino

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"telegram-casino-bot/internal/casino/game/blackjack"
	"telegram-casino-bot/internal/casino/game/dice"
)

// Run drives the session's state machine until it closes, then runs the
// close protocol. It blocks for the whole session lifetime and is
// called by the command handler that opened the session; inbound events
// and the idle sweep make progress by feeding the waits inside.
func Run(ctx context.Context, s *Session) CloseReason {
	req := s.menuLoop(ctx)
	s.finish(ctx, req)
	return req.Reason
}

// wait blocks until the next inbound event addressed to this session,
// a close request, or the wait timeout. An event outside the legal set
// is an unrecoverable session error: legal controls are the only ones
// ever rendered, so an illegal action implies a stale render or a
// protocol violation. Exactly one wait is outstanding per session at
// any moment.
func (s *Session) wait(ctx context.Context, legal ...Action) (Event, *CloseRequest) {
	ch := make(chan Event, 1)
	s.mu.Lock()
	s.waiter = ch
	s.mu.Unlock()
	s.touch()

	defer func() {
		s.mu.Lock()
		s.waiter = nil
		s.mu.Unlock()
	}()

	timer := time.NewTimer(s.cfg.WaitTimeout)
	defer timer.Stop()

	select {
	case ev := <-ch:
		s.beginResolve()
		for _, a := range legal {
			if ev.Action == a {
				return ev, nil
			}
		}
		return ev, &CloseRequest{
			Reason: CloseInvalidAction,
			Event:  &ev,
			Err:    fmt.Errorf("%w: %s in state %s", ErrInvalidAction, ev.Action, s.State()),
		}
	case req := <-s.closeCh:
		return Event{}, &req
	case <-timer.C:
		return Event{}, &CloseRequest{Reason: CloseTimeout}
	case <-ctx.Done():
		return Event{}, &CloseRequest{Reason: CloseFailure, Err: ctx.Err()}
	}
}

// menuLoop is the top-level MENU state. It always returns a close
// request; sub-flows return nil to come back to the menu.
func (s *Session) menuLoop(ctx context.Context) CloseRequest {
	notice := ""
	for {
		s.setState(StateMenu)
		if err := s.renderer.Render(ctx, s.menuView(notice)); err != nil {
			return CloseRequest{Reason: CloseFailure, Err: fmt.Errorf("failed to render menu: %w", err)}
		}
		notice = ""

		ev, req := s.wait(ctx, ActionOpenDice, ActionOpenBlackjack, ActionAdjustStakes, ActionLeave)
		if req != nil {
			return *req
		}

		switch ev.Action {
		case ActionLeave:
			return CloseRequest{Reason: CloseLeave, Event: &ev}
		case ActionAdjustStakes:
			if req := s.adjustStakes(ctx); req != nil {
				return *req
			}
		case ActionOpenDice:
			if req := s.playDice(ctx, &notice); req != nil {
				return *req
			}
		case ActionOpenBlackjack:
			if req := s.playBlackjack(ctx, &notice); req != nil {
				return *req
			}
		}
	}
}

// menuView builds the MENU render.
func (s *Session) menuView(notice string) View {
	return View{
		SessionID: s.id,
		State:     StateMenu,
		Stakes:    s.stakes,
		Balance:   s.lease.Balance(),
		Actions:   []Action{ActionOpenDice, ActionOpenBlackjack, ActionAdjustStakes, ActionLeave},
		Notice:    notice,
	}
}

// adjustStakes runs the ADJUSTING_STAKES sub-flow: render the form
// prompt, wait for the submission, validate. Validation failures are
// reported privately and leave the stakes untouched; only the usual
// wait outcomes close the session.
func (s *Session) adjustStakes(ctx context.Context) *CloseRequest {
	s.setState(StateAdjustingStakes)
	view := View{
		SessionID: s.id,
		State:     StateAdjustingStakes,
		Stakes:    s.stakes,
		Balance:   s.lease.Balance(),
	}
	if err := s.renderer.Render(ctx, view); err != nil {
		return &CloseRequest{Reason: CloseFailure, Err: fmt.Errorf("failed to render stakes prompt: %w", err)}
	}

	ev, req := s.wait(ctx, ActionSubmitStakes)
	if req != nil {
		return req
	}

	stakes, err := ParseStakes(ev.Value)
	if err == nil {
		err = stakes.Validate(s.lease.Balance(), s.cfg.MinStakes, s.cfg.MaxStakes)
	}
	if err != nil {
		log.Debug().Err(err).Str("session_id", s.id).Str("raw", ev.Value).Msg("Stakes validation failed")
		text := fmt.Sprintf("❌ 无效的下注金额：请输入 %d-%d 之间的整数，或 ALL", s.cfg.MinStakes, s.cfg.MaxStakes)
		if notifyErr := s.renderer.NotifyValidation(ctx, s.userID, text); notifyErr != nil {
			log.Debug().Err(notifyErr).Str("session_id", s.id).Msg("Failed to deliver validation notice")
		}
		return nil
	}

	s.stakes = stakes
	return nil
}

// playDice runs PLAYING(DICE): one roll pair per turn, rerolling until
// the player returns to the menu, runs out of affordable stakes, or the
// session closes. Returns nil on a clean return to MENU.
func (s *Session) playDice(ctx context.Context, notice *string) *CloseRequest {
	s.setState(StatePlayingDice)

	for {
		stakes := s.stakes.Resolve(s.lease.Balance(), s.cfg.MaxStakes)
		if stakes <= 0 || stakes > s.lease.Balance() {
			*notice = "💸 余额不足，无法继续下注"
			return nil
		}

		turn := dice.Play(s.roll)
		s.lease.Add(turn.Delta(stakes))
		s.diceStats.Apply(turn, stakes)

		// Affordability is evaluated fresh on every render, never cached.
		next := s.stakes.Resolve(s.lease.Balance(), s.cfg.MaxStakes)
		affordable := next > 0 && next <= s.lease.Balance()

		actions := []Action{ActionReturnToMenu}
		if affordable {
			actions = []Action{ActionReroll, ActionReturnToMenu}
		}

		view := View{
			SessionID: s.id,
			State:     StatePlayingDice,
			Stakes:    s.stakes,
			Balance:   s.lease.Balance(),
			Actions:   actions,
			Dice:      &DiceView{Turn: turn, Stakes: stakes, Stats: s.diceStats},
		}
		if err := s.renderer.Render(ctx, view); err != nil {
			return &CloseRequest{Reason: CloseFailure, Err: fmt.Errorf("failed to render dice turn: %w", err)}
		}

		ev, req := s.wait(ctx, actions...)
		if req != nil {
			return req
		}
		if ev.Action == ActionReturnToMenu {
			return nil
		}
	}
}

// playBlackjack runs PLAYING(BLACKJACK): deal, hit/stand until the hand
// resolves, settle, then offer a fresh hand. A timeout or illegal
// action before resolution forfeits the stakes before closing. Returns
// nil on a clean return to MENU.
func (s *Session) playBlackjack(ctx context.Context, notice *string) *CloseRequest {
	s.setState(StatePlayingBlackjack)
	defer func() { s.table = nil }()

	for {
		stakes := s.stakes.Resolve(s.lease.Balance(), s.cfg.MaxStakes)
		if stakes <= 0 || stakes > s.lease.Balance() {
			*notice = "💸 余额不足，无法继续下注"
			return nil
		}

		s.table = blackjack.Deal(s.shoe)

		for !s.table.Resolved() {
			view := View{
				SessionID: s.id,
				State:     StatePlayingBlackjack,
				Stakes:    s.stakes,
				Balance:   s.lease.Balance(),
				Actions:   []Action{ActionHit, ActionStand},
				Blackjack: &BlackjackView{Table: s.table, Stakes: stakes},
			}
			if err := s.renderer.Render(ctx, view); err != nil {
				return &CloseRequest{Reason: CloseFailure, Err: fmt.Errorf("failed to render blackjack hand: %w", err)}
			}

			ev, req := s.wait(ctx, ActionHit, ActionStand)
			if req != nil {
				if forfeits(req.Reason) {
					s.lease.Add(-stakes)
				}
				return req
			}

			var actErr error
			if ev.Action == ActionHit {
				actErr = s.table.Hit()
			} else {
				actErr = s.table.Stand()
			}
			if actErr != nil {
				return &CloseRequest{Reason: CloseFailure, Err: fmt.Errorf("blackjack action failed: %w", actErr)}
			}
		}

		s.lease.Add(s.table.Delta(stakes))

		view := View{
			SessionID: s.id,
			State:     StatePlayingBlackjack,
			Stakes:    s.stakes,
			Balance:   s.lease.Balance(),
			Actions:   []Action{ActionPlayAgain, ActionReturnToMenu},
			Blackjack: &BlackjackView{Table: s.table, Stakes: stakes},
		}
		if err := s.renderer.Render(ctx, view); err != nil {
			return &CloseRequest{Reason: CloseFailure, Err: fmt.Errorf("failed to render blackjack result: %w", err)}
		}

		ev, req := s.wait(ctx, ActionPlayAgain, ActionReturnToMenu)
		if req != nil {
			return req
		}
		if ev.Action == ActionReturnToMenu {
			return nil
		}
	}
}

// forfeits reports whether a mid-turn close reason forfeits the stakes.
func forfeits(r CloseReason) bool {
	return r == CloseTimeout || r == CloseIdle || r == CloseInvalidAction
}

// finish is the close protocol, the sole owner of session teardown. It
// unregisters the session before anything else so re-entrant lookups
// never observe a closing session, releases the lease (persisting the
// final balance), and renders the terminal message. Every code path
// that ends a session funnels through here, so a lease can never leak.
func (s *Session) finish(ctx context.Context, req CloseRequest) {
	s.reg.Unregister(s.userID)

	finalBalance := s.lease.Balance()
	if err := s.lease.Release(ctx); err != nil {
		log.Error().Err(err).Str("session_id", s.id).Int64("user_id", s.userID).Msg("Failed to release balance lease")
	}

	logEvent := log.Info()
	if req.Reason == CloseInvalidAction || req.Reason == CloseFailure {
		// The UI never offers an illegal action; reaching here means a
		// stale render or a protocol violation.
		logEvent = log.Error().Err(req.Err)
	}
	logEvent.
		Str("session_id", s.id).
		Int64("user_id", s.userID).
		Str("reason", req.Reason.String()).
		Int64("net", finalBalance-s.openingBalance).
		Msg("Casino session closed")

	view := ClosedView{
		SessionID: s.id,
		Reason:    req.Reason,
		Balance:   finalBalance,
		Net:       finalBalance - s.openingBalance,
	}
	if req.Reason == CloseFailure {
		view.Ref = s.id[:8]
	}
	if err := s.renderer.RenderClosed(ctx, view); err != nil {
		log.Debug().Err(err).Str("session_id", s.id).Msg("Failed to render terminal message")
	}

	close(s.done)
}
