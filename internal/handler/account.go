// Package handler provides Telegram bot command handlers.
package handler

import (
	"context"
	"errors"
	"fmt"

	tele "gopkg.in/telebot.v3"

	"telegram-casino-bot/internal/casino/lease"
	"telegram-casino-bot/internal/service"
)

// AccountHandler handles account-related commands.
type AccountHandler struct {
	accountService *service.AccountService
	leases         *lease.Manager
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(accountService *service.AccountService, leases *lease.Manager) *AccountHandler {
	return &AccountHandler{
		accountService: accountService,
		leases:         leases,
	}
}

// HandleStart handles the /start command.
// Creates a new account with 1000 initial coins if user doesn't exist.
func (h *AccountHandler) HandleStart(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	username := sender.Username
	if username == "" {
		username = sender.FirstName
	}

	user, created, err := h.accountService.EnsureUser(ctx, sender.ID, username)
	if err != nil {
		return c.Reply("❌ 创建账户失败，请稍后重试")
	}

	if created {
		return c.Reply(fmt.Sprintf(
			"🎉 欢迎 @%s！\n\n"+
				"您的账户已创建，初始金币: %d\n\n"+
				"可用命令:\n"+
				"/balance - 查看余额\n"+
				"/daily - 每日签到\n"+
				"/top - 富豪榜\n"+
				"/casino - 进入赌场\n"+
				"/pay @用户 <金额> - 转账",
			username, user.Balance,
		))
	}

	return c.Reply(fmt.Sprintf(
		"👋 欢迎回来 @%s！\n\n"+
			"当前余额: %d 金币",
		username, user.Balance,
	))
}

// HandleBalance handles the /balance command.
// Displays the user's current balance.
func (h *AccountHandler) HandleBalance(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	balance, err := h.accountService.GetBalance(ctx, sender.ID)
	if err != nil {
		// User might not exist, try to create
		username := sender.Username
		if username == "" {
			username = sender.FirstName
		}
		user, _, err := h.accountService.EnsureUser(ctx, sender.ID, username)
		if err != nil {
			return c.Reply("❌ 获取余额失败，请稍后重试")
		}
		balance = user.Balance
	}

	return c.Reply(fmt.Sprintf("💰 当前余额: %d 金币", balance))
}

// HandleDaily handles the /daily command.
// Grants the daily reward if the cooldown has passed. The claim runs
// under a published busy reason so an open casino session blocks it.
func (h *AccountHandler) HandleDaily(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	username := sender.Username
	if username == "" {
		username = sender.FirstName
	}

	var success bool
	var msg string
	err := h.leases.WithReason(sender.ID, "正在签到", func() error {
		if _, _, err := h.accountService.EnsureUser(ctx, sender.ID, username); err != nil {
			return err
		}
		var err error
		success, msg, err = h.accountService.ClaimDaily(ctx, sender.ID)
		return err
	})
	if err != nil {
		var busyErr *lease.BusyError
		if errors.As(err, &busyErr) {
			return c.Reply(fmt.Sprintf("❌ 当前无法签到：%s", busyErr.Reason))
		}
		return c.Reply("❌ 签到失败，请稍后重试")
	}

	if success {
		return c.Reply(fmt.Sprintf("✅ %s", msg))
	}

	return c.Reply(fmt.Sprintf("⏰ %s", msg))
}

// HandleTop handles the /top command.
// Displays the top 10 users by balance.
func (h *AccountHandler) HandleTop(c tele.Context) error {
	ctx := context.Background()

	users, err := h.accountService.GetTopUsers(ctx, 10)
	if err != nil {
		return c.Reply("❌ 获取排行榜失败，请稍后重试")
	}

	if len(users) == 0 {
		return c.Reply("📊 暂无排行数据")
	}

	msg := "🏆 富豪榜 TOP 10\n"
	msg += "━━━━━━━━━━━━━━━\n"

	medals := []string{"🥇", "🥈", "🥉"}
	for i, user := range users {
		rank := fmt.Sprintf("%d.", i+1)
		if i < 3 {
			rank = medals[i]
		}

		displayName := user.Username
		if displayName == "" {
			displayName = fmt.Sprintf("User%d", user.TelegramID)
		}

		msg += fmt.Sprintf("%s @%s: %d\n", rank, displayName, user.Balance)
	}

	msg += "━━━━━━━━━━━━━━━"

	return c.Reply(msg)
}
