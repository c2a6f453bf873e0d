package casino

// Action enumerates every control a casino session can render. Inbound
// callback data is decoded into this enumeration at the boundary;
// anything that does not parse is dropped there, so the state machine
// never branches on raw strings.
type Action int

const (
	ActionOpenDice Action = iota
	ActionOpenBlackjack
	ActionAdjustStakes
	ActionLeave
	ActionExternalLeave
	ActionReroll
	ActionReturnToMenu
	ActionHit
	ActionStand
	ActionPlayAgain
	ActionSubmitStakes
)

// actionNames are the wire names embedded in action tokens.
var actionNames = map[Action]string{
	ActionOpenDice:      "dice",
	ActionOpenBlackjack: "blackjack",
	ActionAdjustStakes:  "stakes",
	ActionLeave:         "leave",
	ActionExternalLeave: "extleave",
	ActionReroll:        "reroll",
	ActionReturnToMenu:  "menu",
	ActionHit:           "hit",
	ActionStand:         "stand",
	ActionPlayAgain:     "again",
	ActionSubmitStakes:  "setstakes",
}

var actionsByName = func() map[string]Action {
	m := make(map[string]Action, len(actionNames))
	for a, name := range actionNames {
		m[name] = a
	}
	return m
}()

// String returns the action's wire name.
func (a Action) String() string {
	if name, ok := actionNames[a]; ok {
		return name
	}
	return "unknown"
}

// ParseAction maps a wire name back to an Action.
func ParseAction(name string) (Action, bool) {
	a, ok := actionsByName[name]
	return a, ok
}

// State is the session's current position in the state machine.
// "Closed" is not a state: a closed session is simply absent from the
// registry.
type State int

const (
	StateMenu State = iota
	StateAdjustingStakes
	StatePlayingDice
	StatePlayingBlackjack
)

func (s State) String() string {
	switch s {
	case StateMenu:
		return "menu"
	case StateAdjustingStakes:
		return "adjusting_stakes"
	case StatePlayingDice:
		return "playing_dice"
	case StatePlayingBlackjack:
		return "playing_blackjack"
	default:
		return "unknown"
	}
}

// EventKind distinguishes the two inbound event kinds the chat platform
// delivers.
type EventKind int

const (
	// EventComponent is a button or select activation.
	EventComponent EventKind = iota
	// EventForm is a submitted form with a raw text field.
	EventForm
)

// Event is one inbound interactive event addressed to a session. The
// core consumes only the decoded action, the originating user and (for
// form submissions) the submitted value.
type Event struct {
	Kind   EventKind
	UserID int64
	Action Action
	Value  string
}
