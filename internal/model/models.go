// Package model defines the data models for the Telegram casino bot.
package model

import "time"

// User represents a Telegram user account in the economy.
type User struct {
	TelegramID     int64     `db:"telegram_id"`
	Username       string    `db:"username"`
	Balance        int64     `db:"balance"`
	LastDailyClaim int64     `db:"last_daily_claim"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

// Transaction represents a balance change record.
type Transaction struct {
	ID          int64     `db:"id"`
	UserID      int64     `db:"user_id"`
	Amount      int64     `db:"amount"`
	Type        string    `db:"type"`
	Description *string   `db:"description"`
	CreatedAt   time.Time `db:"created_at"`
}

// Transaction types for categorizing balance changes.
const (
	TxTypeInitial  = "initial"  // Initial balance on account creation
	TxTypeDaily    = "daily"    // Daily reward claim
	TxTypeTransfer = "transfer" // User-to-user transfer
	TxTypeCasino   = "casino"   // Net result of one casino session
)
