package casino

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"telegram-casino-bot/internal/casino/game/blackjack"
	"telegram-casino-bot/internal/casino/game/dice"
	"telegram-casino-bot/internal/casino/lease"
)

// stubStore is an in-memory lease.BalanceStore.
type stubStore struct {
	mu       sync.Mutex
	balances map[int64]int64
	locked   map[int64]bool
}

func newStubStore() *stubStore {
	return &stubStore{
		balances: make(map[int64]int64),
		locked:   make(map[int64]bool),
	}
}

func (s *stubStore) FetchForUpdate(ctx context.Context, userID int64) (lease.BalanceHold, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.locked[userID] {
		return nil, lease.ErrLockUnavailable
	}
	s.locked[userID] = true
	return &stubHold{store: s, userID: userID, balance: s.balances[userID]}, nil
}

func (s *stubStore) balance(userID int64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balances[userID]
}

func (s *stubStore) isLocked(userID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.locked[userID]
}

type stubHold struct {
	store   *stubStore
	userID  int64
	balance int64
}

func (h *stubHold) Balance() int64          { return h.balance }
func (h *stubHold) SetBalance(amount int64) { h.balance = amount }

func (h *stubHold) Persist(ctx context.Context) error {
	h.store.mu.Lock()
	defer h.store.mu.Unlock()
	h.store.balances[h.userID] = h.balance
	h.store.locked[h.userID] = false
	return nil
}

func (h *stubHold) Abort(ctx context.Context) error {
	h.store.mu.Lock()
	defer h.store.mu.Unlock()
	h.store.locked[h.userID] = false
	return nil
}

// recordingRenderer captures every render and signals it to the test.
type recordingRenderer struct {
	mu      sync.Mutex
	views   []View
	closed  []ClosedView
	notices []string

	renderCh chan View
	closedCh chan ClosedView
}

func newRecordingRenderer() *recordingRenderer {
	return &recordingRenderer{
		renderCh: make(chan View, 64),
		closedCh: make(chan ClosedView, 8),
	}
}

func (r *recordingRenderer) Render(ctx context.Context, v View) error {
	r.mu.Lock()
	r.views = append(r.views, v)
	r.mu.Unlock()
	r.renderCh <- v
	return nil
}

func (r *recordingRenderer) RenderClosed(ctx context.Context, v ClosedView) error {
	r.mu.Lock()
	r.closed = append(r.closed, v)
	r.mu.Unlock()
	r.closedCh <- v
	return nil
}

func (r *recordingRenderer) NotifyValidation(ctx context.Context, userID int64, text string) error {
	r.mu.Lock()
	r.notices = append(r.notices, text)
	r.mu.Unlock()
	return nil
}

func (r *recordingRenderer) noticeCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.notices)
}

// awaitRender waits for the next render and returns its view.
func (r *recordingRenderer) awaitRender(t *testing.T) View {
	t.Helper()
	select {
	case v := <-r.renderCh:
		return v
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a render")
		return View{}
	}
}

// awaitState waits for a render of the given state.
func (r *recordingRenderer) awaitState(t *testing.T, state State) View {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case v := <-r.renderCh:
			if v.State == state {
				return v
			}
		case <-deadline:
			t.Fatalf("timed out waiting for a %s render", state)
		}
	}
}

const testUserID int64 = 42

// harness wires a running session against in-memory collaborators.
type harness struct {
	store    *stubStore
	mgr      *lease.Manager
	reg      *Registry
	renderer *recordingRenderer
	sess     *Session
	reason   chan CloseReason
}

type harnessOptions struct {
	balance int64
	cfg     Config
	roller  dice.Roller
	shoe    blackjack.Shoe
}

// startSession opens a session the way the command handler does:
// acquire the lease, create, register, run.
func startSession(t *testing.T, opts harnessOptions) *harness {
	t.Helper()
	ctx := context.Background()

	store := newStubStore()
	store.balances[testUserID] = opts.balance
	mgr := lease.NewManager(store)
	reg := NewRegistry()
	renderer := newRecordingRenderer()

	ls, err := mgr.Acquire(ctx, testUserID, "正在赌场中", "")
	require.NoError(t, err)

	sess := New(Params{
		UserID:   testUserID,
		Username: "tester",
		Lease:    ls,
		Registry: reg,
		Renderer: renderer,
		Config:   opts.cfg,
		Roller:   opts.roller,
		Shoe:     opts.shoe,
	})
	require.NoError(t, reg.Register(sess))

	h := &harness{
		store:    store,
		mgr:      mgr,
		reg:      reg,
		renderer: renderer,
		sess:     sess,
		reason:   make(chan CloseReason, 1),
	}
	go func() {
		h.reason <- Run(ctx, sess)
	}()
	return h
}

// awaitWaiter blocks until the session has a wait outstanding, so a
// delivered event cannot be dropped as late.
func (h *harness) awaitWaiter(t *testing.T) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		h.sess.mu.Lock()
		waiting := h.sess.waiter != nil
		h.sess.mu.Unlock()
		if waiting {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("timed out waiting for the session to wait for events")
}

// press delivers a component event from the owning user.
func (h *harness) press(t *testing.T, action Action) {
	t.Helper()
	h.awaitWaiter(t)
	h.sess.Deliver(Event{Kind: EventComponent, UserID: testUserID, Action: action})
}

// submit delivers a form submission from the owning user.
func (h *harness) submit(t *testing.T, value string) {
	t.Helper()
	h.awaitWaiter(t)
	h.sess.Deliver(Event{Kind: EventForm, UserID: testUserID, Action: ActionSubmitStakes, Value: value})
}

// awaitClose waits for the session to finish and returns the reason.
func (h *harness) awaitClose(t *testing.T) CloseReason {
	t.Helper()
	select {
	case r := <-h.reason:
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for session close")
		return 0
	}
}

// newTestLease acquires a lease for a user on a fresh manager.
func newTestLease(t *testing.T, store *stubStore, userID int64) *lease.Lease {
	t.Helper()
	mgr := lease.NewManager(store)
	ls, err := mgr.Acquire(context.Background(), userID, "test", "")
	require.NoError(t, err)
	return ls
}

// fixedRoller returns the given values in order, then panics.
func fixedRoller(values ...int) dice.Roller {
	i := 0
	return func() int {
		v := values[i]
		i++
		return v
	}
}

// card builds a blackjack card from rank index (0 = ace), suit 0.
func card(rank int) blackjack.Card {
	return blackjack.Card{Rank: rank}
}
