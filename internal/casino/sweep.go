package casino

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Sweep is the background watchdog that force-closes sessions inactive
// beyond the idle threshold. It layers over the per-wait timeout,
// catching sessions whose wait never fired. It only ever requests a
// close; the session's own goroutine performs the teardown, so the
// sweep cannot race with an in-flight turn.
type Sweep struct {
	reg      *Registry
	interval time.Duration
	idle     time.Duration
}

// NewSweep creates a sweep over the given registry.
func NewSweep(reg *Registry, cfg Config) *Sweep {
	cfg = cfg.withDefaults()
	return &Sweep{
		reg:      reg,
		interval: cfg.SweepInterval,
		idle:     cfg.IdleTimeout,
	}
}

// Run sweeps periodically until the context is cancelled. Call it in
// its own goroutine.
func (sw *Sweep) Run(ctx context.Context) {
	ticker := time.NewTicker(sw.interval)
	defer ticker.Stop()

	log.Info().
		Dur("interval", sw.interval).
		Dur("idle_timeout", sw.idle).
		Msg("Idle sweep started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Idle sweep stopped")
			return
		case now := <-ticker.C:
			sw.Collect(now)
		}
	}
}

// Collect runs one sweep pass. It iterates a snapshot of the registry
// keys; sessions that vanish between snapshot and lookup are skipped.
// A session whose last activity is unset is resolving a turn and is
// not eligible.
func (sw *Sweep) Collect(now time.Time) {
	for _, id := range sw.reg.SnapshotIDs() {
		s, ok := sw.reg.Get(id)
		if !ok {
			continue
		}
		idle, ok := s.IdleFor(now)
		if !ok || idle < sw.idle {
			continue
		}

		log.Warn().
			Str("session_id", s.ID()).
			Int64("user_id", s.UserID()).
			Dur("idle", idle).
			Msg("Force-closing idle casino session")
		s.RequestClose(CloseRequest{Reason: CloseIdle})
	}
}
