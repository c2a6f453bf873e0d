package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"telegram-casino-bot/internal/casino/lease"
	"telegram-casino-bot/internal/model"
)

// pgLockNotAvailable is the SQLSTATE raised by FOR UPDATE NOWAIT when
// another transaction already holds the row lock.
const pgLockNotAvailable = "55P03"

// CasinoStore locks and loads user balances for casino sessions. The
// row lock is taken inside a transaction that stays open for the whole
// session, so concurrent writers from other processes fail fast
// instead of queuing behind it.
type CasinoStore struct {
	pool *pgxpool.Pool
}

// NewCasinoStore creates a CasinoStore backed by the given pool.
func NewCasinoStore(pool *pgxpool.Pool) *CasinoStore {
	return &CasinoStore{pool: pool}
}

// FetchForUpdate opens a transaction and locks the user's balance row
// with FOR UPDATE NOWAIT. Returns lease.ErrLockUnavailable when the
// row is locked elsewhere and ErrUserNotFound when the user does not
// exist.
func (s *CasinoStore) FetchForUpdate(ctx context.Context, userID int64) (lease.BalanceHold, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin balance transaction: %w", err)
	}

	const query = `
		SELECT balance FROM users
		WHERE telegram_id = $1
		FOR UPDATE NOWAIT
	`

	var balance int64
	if err := tx.QueryRow(ctx, query, userID).Scan(&balance); err != nil {
		_ = tx.Rollback(ctx)

		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgLockNotAvailable {
			return nil, lease.ErrLockUnavailable
		}
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to lock balance row: %w", err)
	}

	return &balanceHold{
		tx:      tx,
		userID:  userID,
		initial: balance,
		balance: balance,
	}, nil
}

// balanceHold is a locked balance row inside an open transaction.
type balanceHold struct {
	tx      pgx.Tx
	userID  int64
	initial int64
	balance int64
}

func (h *balanceHold) Balance() int64 {
	return h.balance
}

func (h *balanceHold) SetBalance(amount int64) {
	h.balance = amount
}

// Persist writes the final balance, records the session's net result as
// a transaction row, and commits. The row lock is released either way.
func (h *balanceHold) Persist(ctx context.Context) error {
	const update = `
		UPDATE users
		SET balance = $2, updated_at = NOW()
		WHERE telegram_id = $1
	`
	if _, err := h.tx.Exec(ctx, update, h.userID, h.balance); err != nil {
		_ = h.tx.Rollback(ctx)
		return fmt.Errorf("failed to write balance: %w", err)
	}

	if delta := h.balance - h.initial; delta != 0 {
		const insert = `
			INSERT INTO transactions (user_id, amount, type, description, created_at)
			VALUES ($1, $2, $3, $4, NOW())
		`
		desc := "赌场结算"
		if _, err := h.tx.Exec(ctx, insert, h.userID, delta, model.TxTypeCasino, &desc); err != nil {
			_ = h.tx.Rollback(ctx)
			return fmt.Errorf("failed to record casino transaction: %w", err)
		}
	}

	if err := h.tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit balance transaction: %w", err)
	}
	return nil
}

// Abort rolls the transaction back, releasing the row lock without
// writing.
func (h *balanceHold) Abort(ctx context.Context) error {
	if err := h.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("failed to roll back balance transaction: %w", err)
	}
	return nil
}
