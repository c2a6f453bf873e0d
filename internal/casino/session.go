// Package casino implements the interactive casino session engine: a
// per-user state machine driven by inbound chat events, holding an
// exclusive lease on the user's balance for its whole lifetime, watched
// by an idle sweep that force-closes abandoned sessions.
package casino

import (
	"math/rand"
	"sync"
	"time"

	"telegram-casino-bot/internal/casino/game/blackjack"
	"telegram-casino-bot/internal/casino/game/dice"
	"telegram-casino-bot/internal/casino/lease"
	"telegram-casino-bot/internal/casino/token"
)

// Config holds the tunables of the session engine.
type Config struct {
	MinStakes     int64
	MaxStakes     int64
	DefaultStakes int64

	// WaitTimeout bounds every single wait for an inbound event.
	WaitTimeout time.Duration

	// IdleTimeout is the sweep's wall-clock inactivity threshold.
	IdleTimeout time.Duration

	// SweepInterval is the sweep's period.
	SweepInterval time.Duration
}

// withDefaults fills unset fields with the production defaults.
func (c Config) withDefaults() Config {
	if c.MinStakes <= 0 {
		c.MinStakes = 10
	}
	if c.MaxStakes <= 0 {
		c.MaxStakes = 1000
	}
	if c.DefaultStakes <= 0 {
		c.DefaultStakes = 100
	}
	if c.WaitTimeout <= 0 {
		c.WaitTimeout = 30 * time.Second
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = 30 * time.Second
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = time.Second
	}
	return c
}

// Params are the dependencies of one session.
type Params struct {
	// ID is the session id; generated when empty.
	ID string

	UserID   int64
	Username string

	Lease    *lease.Lease
	Registry *Registry
	Renderer Renderer
	Config   Config

	// Roller draws dice rolls; defaults to a time-seeded source.
	// Tests inject fixed rollers.
	Roller dice.Roller

	// Shoe deals blackjack cards; defaults to a shuffled deck.
	Shoe blackjack.Shoe
}

// Session is one active casino conversation, bound to one user. All
// state fields are mutated only by the goroutine running the state
// machine; the mutex guards the handful of fields the callback
// handlers and the sweep read from outside.
type Session struct {
	id       string
	userID   int64
	username string

	cfg      Config
	reg      *Registry
	lease    *lease.Lease
	renderer Renderer
	roll     dice.Roller
	shoe     blackjack.Shoe

	stakes         Stakes
	openingBalance int64
	diceStats      dice.Stats
	table          *blackjack.Table

	mu           sync.Mutex
	state        State
	waiter       chan Event
	lastActivity *time.Time // nil while a turn outcome is being computed

	closeCh chan CloseRequest
	done    chan struct{}
}

// New creates a session around an already-acquired lease. The caller
// registers it and then drives it with Run.
func New(p Params) *Session {
	cfg := p.Config.withDefaults()

	id := p.ID
	if id == "" {
		id = token.NewSessionID()
	}
	roll := p.Roller
	if roll == nil {
		roll = dice.NewRoller(rand.New(rand.NewSource(time.Now().UnixNano())))
	}
	shoe := p.Shoe
	if shoe == nil {
		shoe = blackjack.NewShoe(rand.New(rand.NewSource(time.Now().UnixNano())))
	}

	now := time.Now()
	return &Session{
		id:             id,
		userID:         p.UserID,
		username:       p.Username,
		cfg:            cfg,
		reg:            p.Registry,
		lease:          p.Lease,
		renderer:       p.Renderer,
		roll:           roll,
		shoe:           shoe,
		stakes:         Stakes{Amount: cfg.DefaultStakes},
		openingBalance: p.Lease.Balance(),
		state:          StateMenu,
		lastActivity:   &now,
		closeCh:        make(chan CloseRequest, 1),
		done:           make(chan struct{}),
	}
}

// ID returns the session id used as the routing namespace for all of
// the session's controls.
func (s *Session) ID() string {
	return s.id
}

// UserID returns the owning user.
func (s *Session) UserID() int64 {
	return s.userID
}

// State returns the session's current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Done is closed once the close protocol has fully run.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Deliver routes an inbound event to the outstanding wait, if any.
// With no wait outstanding (a race between a sweep close and a late
// button press) the event is dropped: the session is either tearing
// down or busy resolving a turn, and stale presses are routine.
func (s *Session) Deliver(ev Event) {
	s.mu.Lock()
	ch := s.waiter
	s.mu.Unlock()

	if ch == nil {
		return
	}
	select {
	case ch <- ev:
	default:
	}
}

// RequestClose asks the session to close. Used by the idle sweep and
// the external-leave entry point; the request is consumed by the
// session's own wait, so the requester never mutates session state.
// Duplicate requests while one is pending are dropped.
func (s *Session) RequestClose(req CloseRequest) {
	select {
	case s.closeCh <- req:
	default:
	}
}

// IdleFor reports how long the session has been inactive. ok=false
// while a turn outcome is being computed; such a session is not
// idle-collectible.
func (s *Session) IdleFor(now time.Time) (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastActivity == nil {
		return 0, false
	}
	return now.Sub(*s.lastActivity), true
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// touch marks the session active.
func (s *Session) touch() {
	now := time.Now()
	s.mu.Lock()
	s.lastActivity = &now
	s.mu.Unlock()
}

// beginResolve marks the session as computing a turn outcome, which
// excludes it from idle collection until the next wait.
func (s *Session) beginResolve() {
	s.mu.Lock()
	s.lastActivity = nil
	s.mu.Unlock()
}
