package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"telegram-casino-bot/internal/casino"
	"telegram-casino-bot/internal/casino/lease"
	"telegram-casino-bot/internal/casino/token"
	"telegram-casino-bot/internal/config"
	"telegram-casino-bot/internal/service"
)

// casinoBusyReason is published on the user's balance lease for the
// whole session lifetime. Other commands touching the balance surface
// this text when they fail fast.
const casinoBusyReason = "正在赌场中"

// CasinoHandler opens casino sessions and routes their inbound events.
type CasinoHandler struct {
	cfg            *config.Config
	accountService *service.AccountService
	leases         *lease.Manager
	registry       *casino.Registry
}

// NewCasinoHandler creates a new CasinoHandler.
func NewCasinoHandler(
	cfg *config.Config,
	accountService *service.AccountService,
	leases *lease.Manager,
	registry *casino.Registry,
) *CasinoHandler {
	return &CasinoHandler{
		cfg:            cfg,
		accountService: accountService,
		leases:         leases,
		registry:       registry,
	}
}

// sessionConfig maps the loaded configuration onto the session engine.
func (h *CasinoHandler) sessionConfig() casino.Config {
	return casino.Config{
		MinStakes:     h.cfg.Casino.MinStakes,
		MaxStakes:     h.cfg.Casino.MaxStakes,
		DefaultStakes: h.cfg.Casino.DefaultStakes,
		WaitTimeout:   h.cfg.Casino.WaitTimeout,
		IdleTimeout:   h.cfg.Casino.IdleTimeout,
		SweepInterval: h.cfg.Casino.SweepInterval,
	}
}

// HandleCasino handles the /casino command: acquire the balance lease,
// register a session and start its state machine. A busy user gets the
// published reason back, plus a force-leave button when the blocker is
// another casino session.
func (h *CasinoHandler) HandleCasino(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	username := sender.Username
	if username == "" {
		username = sender.FirstName
	}

	if _, _, err := h.accountService.EnsureUser(ctx, sender.ID, username); err != nil {
		return c.Reply("❌ 操作失败，请稍后重试")
	}

	sessionID := token.NewSessionID()
	l, err := h.leases.Acquire(ctx, sender.ID, casinoBusyReason, sessionID)
	if err != nil {
		var busyErr *lease.BusyError
		if errors.As(err, &busyErr) {
			return h.replyBusy(c, busyErr)
		}
		log.Error().Err(err).Int64("user_id", sender.ID).Msg("Failed to acquire balance lease")
		return c.Reply("❌ 进入赌场失败，请稍后重试")
	}

	msg, err := c.Bot().Send(c.Chat(), "🎰 正在进入赌场...")
	if err != nil {
		if releaseErr := l.Abort(ctx); releaseErr != nil {
			log.Error().Err(releaseErr).Int64("user_id", sender.ID).Msg("Failed to abort lease after send failure")
		}
		return fmt.Errorf("failed to send session message: %w", err)
	}

	sess := casino.New(casino.Params{
		ID:       sessionID,
		UserID:   sender.ID,
		Username: username,
		Lease:    l,
		Registry: h.registry,
		Renderer: NewSessionRenderer(c.Bot(), msg),
		Config:   h.sessionConfig(),
	})

	if err := h.registry.Register(sess); err != nil {
		// The lease blocks a second session for the same user, so this
		// is an invariant breach rather than a user-facing race.
		log.Error().Err(err).Int64("user_id", sender.ID).Msg("Failed to register casino session")
		if releaseErr := l.Abort(ctx); releaseErr != nil {
			log.Error().Err(releaseErr).Int64("user_id", sender.ID).Msg("Failed to abort lease after registration failure")
		}
		return c.Reply("❌ 进入赌场失败，请稍后重试")
	}

	log.Info().
		Str("session_id", sess.ID()).
		Int64("user_id", sender.ID).
		Int64("balance", l.Balance()).
		Msg("Casino session opened")

	go casino.Run(context.Background(), sess)
	return nil
}

// replyBusy reports the busy reason. When the blocker is a casino
// session, the notice carries a force-leave button wired to that
// session.
func (h *CasinoHandler) replyBusy(c tele.Context, busyErr *lease.BusyError) error {
	text := fmt.Sprintf("❌ 当前无法进入赌场：%s", busyErr.Reason)
	if busyErr.SessionID == "" {
		return c.Reply(text)
	}

	markup := &tele.ReplyMarkup{
		InlineKeyboard: [][]tele.InlineButton{{
			{
				Text: "🚪 强制离开",
				Data: token.Encode(busyErr.SessionID, casino.ActionExternalLeave.String()),
			},
		}},
	}
	return c.Reply(text, markup)
}

// HandleCallback routes inline button callbacks to the owning session.
// Tokens that do not resolve are stale controls in old messages and are
// acknowledged silently.
func (h *CasinoHandler) HandleCallback(c tele.Context) error {
	callback := c.Callback()
	sender := c.Sender()
	if callback == nil || sender == nil {
		return nil
	}

	// telebot prefixes callback data with \f for unique buttons.
	data := strings.TrimPrefix(callback.Data, "\f")

	sess, action, ok := h.registry.FindByToken(data)
	if !ok {
		return c.Respond(&tele.CallbackResponse{})
	}

	if sender.ID != sess.UserID() {
		return c.Respond(&tele.CallbackResponse{
			Text: "❌ 这不是您的会话",
		})
	}

	if action == casino.ActionExternalLeave {
		// The button lives on a busy notice outside the session's own
		// message; drop the notice and ask the session to close.
		if err := c.Delete(); err != nil {
			log.Debug().Err(err).Str("session_id", sess.ID()).Msg("Failed to delete busy notice")
		}
		sess.RequestClose(casino.CloseRequest{Reason: casino.CloseExternalLeave})
		return c.Respond(&tele.CallbackResponse{Text: "🚪 已请求离开赌场"})
	}

	sess.Deliver(casino.Event{
		Kind:   casino.EventComponent,
		UserID: sender.ID,
		Action: action,
	})
	return c.Respond(&tele.CallbackResponse{})
}

// HandleText routes plain text messages. Only a session waiting on a
// stakes submission consumes text; everything else passes through.
func (h *CasinoHandler) HandleText(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	sess, ok := h.registry.ByUser(sender.ID)
	if !ok || sess.State() != casino.StateAdjustingStakes {
		return nil
	}

	sess.Deliver(casino.Event{
		Kind:   casino.EventForm,
		UserID: sender.ID,
		Action: casino.ActionSubmitStakes,
		Value:  c.Text(),
	})
	return nil
}
