package casino

import (
	"context"

	"telegram-casino-bot/internal/casino/game/blackjack"
	"telegram-casino-bot/internal/casino/game/dice"
)

// View is everything a renderer needs to draw the session's single
// message for its current state: the state itself, the session data and
// the set of legal actions to offer as controls. The core never builds
// markup; the renderer owns presentation.
type View struct {
	SessionID string
	State     State
	Stakes    Stakes
	Balance   int64
	Actions   []Action

	// Notice is a short result or status line for the current render.
	Notice string

	// Dice is set while in PLAYING(DICE).
	Dice *DiceView

	// Blackjack is set while in PLAYING(BLACKJACK).
	Blackjack *BlackjackView
}

// DiceView is the dice game's render data.
type DiceView struct {
	Turn   dice.Turn
	Stakes int64
	Stats  dice.Stats
}

// BlackjackView is the blackjack game's render data. The dealer's
// hidden card must stay hidden until Table.Revealed reports true.
type BlackjackView struct {
	Table  *blackjack.Table
	Stakes int64
}

// ClosedView is the terminal render of a session.
type ClosedView struct {
	SessionID string
	Reason    CloseReason
	Balance   int64
	Net       int64

	// Ref is an opaque reference shown to the user for unexpected
	// failures, matching what operators find in the logs.
	Ref string
}

// Renderer turns session state into displayable chat messages. The
// production implementation edits one Telegram message in place and
// attaches action tokens to every control it renders.
type Renderer interface {
	// Render draws the view, editing the session's message in place.
	Render(ctx context.Context, v View) error

	// RenderClosed draws the terminal message for a closed session.
	RenderClosed(ctx context.Context, v ClosedView) error

	// NotifyValidation reports a stakes validation failure privately
	// to the user without touching the session's message.
	NotifyValidation(ctx context.Context, userID int64, text string) error
}
