package handler

import (
	"context"
	"fmt"
	"strings"
	"sync"

	tele "gopkg.in/telebot.v3"

	"telegram-casino-bot/internal/casino"
	"telegram-casino-bot/internal/casino/game/blackjack"
	"telegram-casino-bot/internal/casino/game/dice"
	"telegram-casino-bot/internal/casino/token"
)

// actionLabels are the button captions for every session control.
var actionLabels = map[casino.Action]string{
	casino.ActionOpenDice:      "🎲 骰子",
	casino.ActionOpenBlackjack: "🃏 21点",
	casino.ActionAdjustStakes:  "💵 调整下注",
	casino.ActionLeave:         "🚪 离开",
	casino.ActionReroll:        "🎲 再掷一次",
	casino.ActionReturnToMenu:  "↩️ 返回菜单",
	casino.ActionHit:           "🎯 要牌",
	casino.ActionStand:         "✋ 停牌",
	casino.ActionPlayAgain:     "🔄 再来一局",
}

// SessionRenderer draws a casino session into one Telegram message,
// editing it in place on every state change. Validation notices go to
// the user's private chat so the session message stays clean.
type SessionRenderer struct {
	bot *tele.Bot

	mu  sync.Mutex
	msg *tele.Message
}

// NewSessionRenderer wraps the message that was sent when the session
// opened.
func NewSessionRenderer(bot *tele.Bot, msg *tele.Message) *SessionRenderer {
	return &SessionRenderer{bot: bot, msg: msg}
}

// Render edits the session message to show the view.
func (r *SessionRenderer) Render(ctx context.Context, v casino.View) error {
	text := formatView(v)
	markup := buildKeyboard(v.SessionID, v.Actions)

	r.mu.Lock()
	defer r.mu.Unlock()

	edited, err := r.bot.Edit(r.msg, text, markup)
	if err != nil {
		return fmt.Errorf("failed to edit session message: %w", err)
	}
	if edited != nil {
		r.msg = edited
	}
	return nil
}

// RenderClosed edits the session message into its terminal form. No
// keyboard: a closed session has no controls.
func (r *SessionRenderer) RenderClosed(ctx context.Context, v casino.ClosedView) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.bot.Edit(r.msg, formatClosed(v), &tele.ReplyMarkup{})
	if err != nil {
		return fmt.Errorf("failed to edit terminal message: %w", err)
	}
	return nil
}

// NotifyValidation sends a private message to the user.
func (r *SessionRenderer) NotifyValidation(ctx context.Context, userID int64, text string) error {
	_, err := r.bot.Send(&tele.User{ID: userID}, text)
	if err != nil {
		return fmt.Errorf("failed to send validation notice: %w", err)
	}
	return nil
}

// buildKeyboard lays the actions out as inline buttons, two per row,
// each carrying the session's action token as callback data.
func buildKeyboard(sessionID string, actions []casino.Action) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}
	if len(actions) == 0 {
		return markup
	}

	var rows [][]tele.InlineButton
	var row []tele.InlineButton
	for _, a := range actions {
		row = append(row, tele.InlineButton{
			Text: actionLabels[a],
			Data: token.Encode(sessionID, a.String()),
		})
		if len(row) == 2 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}

	markup.InlineKeyboard = rows
	return markup
}

// formatView builds the message text for a session view.
func formatView(v casino.View) string {
	var b strings.Builder

	switch v.State {
	case casino.StateMenu:
		b.WriteString("🎰 赌场\n")
		b.WriteString("━━━━━━━━━━━━━━━\n")
		fmt.Fprintf(&b, "💰 余额: %d 金币\n", v.Balance)
		fmt.Fprintf(&b, "💵 当前下注: %s\n", v.Stakes)
		if v.Notice != "" {
			b.WriteString("━━━━━━━━━━━━━━━\n")
			b.WriteString(v.Notice)
			b.WriteString("\n")
		}
		b.WriteString("━━━━━━━━━━━━━━━\n")
		b.WriteString("请选择游戏")

	case casino.StateAdjustingStakes:
		b.WriteString("💵 调整下注\n")
		b.WriteString("━━━━━━━━━━━━━━━\n")
		fmt.Fprintf(&b, "💰 余额: %d 金币\n", v.Balance)
		fmt.Fprintf(&b, "当前下注: %s\n", v.Stakes)
		b.WriteString("━━━━━━━━━━━━━━━\n")
		b.WriteString("请直接发送新的下注金额，或发送 ALL 全押")

	case casino.StatePlayingDice:
		b.WriteString(formatDice(v.Dice))
		fmt.Fprintf(&b, "💰 余额: %d 金币", v.Balance)

	case casino.StatePlayingBlackjack:
		b.WriteString(formatBlackjack(v.Blackjack))
		fmt.Fprintf(&b, "💰 余额: %d 金币", v.Balance)
	}

	return b.String()
}

// formatDice renders one dice turn with the session's running stats.
func formatDice(d *casino.DiceView) string {
	var b strings.Builder
	b.WriteString("🎲 骰子对决\n")
	b.WriteString("━━━━━━━━━━━━━━━\n")
	fmt.Fprintf(&b, "你: %d 🆚 庄家: %d\n", d.Turn.Player, d.Turn.House)

	switch d.Turn.Outcome {
	case dice.OutcomeWin:
		fmt.Fprintf(&b, "🎉 赢得 %d 金币！\n", d.Stakes)
	case dice.OutcomeLoss:
		fmt.Fprintf(&b, "😢 输了 %d 金币\n", d.Stakes)
	default:
		b.WriteString("😐 平局，下注返还\n")
	}

	fmt.Fprintf(&b, "📊 本场战绩: %d胜 %d负 %d平\n", d.Stats.Wins, d.Stats.Losses, d.Stats.Pushes)
	b.WriteString("━━━━━━━━━━━━━━━\n")
	return b.String()
}

// formatBlackjack renders the table. The dealer's hole card stays
// hidden until the table reveals it.
func formatBlackjack(v *casino.BlackjackView) string {
	t := v.Table

	var b strings.Builder
	b.WriteString("🃏 21点\n")
	b.WriteString("━━━━━━━━━━━━━━━\n")

	playerTotal, soft := t.Player.Value()
	totalStr := fmt.Sprintf("%d", playerTotal)
	if soft {
		totalStr = "软" + totalStr
	}
	fmt.Fprintf(&b, "你的手牌: %s (%s)\n", t.Player.String(), totalStr)

	if t.Revealed() {
		dealerTotal, _ := t.Dealer.Value()
		fmt.Fprintf(&b, "庄家手牌: %s (%d)\n", t.Dealer.String(), dealerTotal)
	} else {
		fmt.Fprintf(&b, "庄家手牌: %s 🂠\n", t.DealerUpcard())
	}

	switch t.Result() {
	case blackjack.ResultWin:
		fmt.Fprintf(&b, "🎉 你赢了！+%d 金币\n", v.Stakes)
	case blackjack.ResultLoss:
		if t.Player.Bust() {
			fmt.Fprintf(&b, "💥 爆牌！-%d 金币\n", v.Stakes)
		} else {
			fmt.Fprintf(&b, "😢 你输了 -%d 金币\n", v.Stakes)
		}
	case blackjack.ResultPush:
		b.WriteString("😐 平局，下注返还\n")
	}

	b.WriteString("━━━━━━━━━━━━━━━\n")
	return b.String()
}

// closeNotices map close reasons to the line shown in the terminal
// message.
var closeNotices = map[casino.CloseReason]string{
	casino.CloseLeave:         "👋 您已离开赌场",
	casino.CloseExternalLeave: "🚪 会话已被强制结束",
	casino.CloseTimeout:       "⏰ 操作超时，会话已关闭",
	casino.CloseIdle:          "⏰ 长时间无操作，会话已关闭",
	casino.CloseInvalidAction: "❌ 无效操作，会话已关闭",
	casino.CloseFailure:       "❌ 发生错误，会话已关闭",
}

// formatClosed builds the terminal message for a closed session.
func formatClosed(v casino.ClosedView) string {
	var b strings.Builder
	b.WriteString("🎰 赌场会话已结束\n")
	b.WriteString("━━━━━━━━━━━━━━━\n")
	b.WriteString(closeNotices[v.Reason])
	b.WriteString("\n")

	switch {
	case v.Net > 0:
		fmt.Fprintf(&b, "📈 本场盈亏: +%d\n", v.Net)
	case v.Net < 0:
		fmt.Fprintf(&b, "📉 本场盈亏: %d\n", v.Net)
	default:
		b.WriteString("📊 本场盈亏: ±0\n")
	}
	fmt.Fprintf(&b, "💰 最终余额: %d 金币", v.Balance)

	if v.Ref != "" {
		fmt.Fprintf(&b, "\n🔖 参考编号: %s", v.Ref)
	}
	return b.String()
}
