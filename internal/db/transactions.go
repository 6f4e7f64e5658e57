package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Fantasim/nanas/internal/models"
)

const transactionColumns = `id, account_id, type, amount, description, timestamp,
	related_video_id, ledger_entry_id, cash_out_request_id`

func insertTransaction(ctx context.Context, tx *sql.Tx, t models.Transaction) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO transactions (`+transactionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.AccountID, string(t.Type), t.Amount, t.Description, formatTime(t.Timestamp),
		t.RelatedVideoID, t.LedgerEntryID, t.CashOutRequestID,
	)
	if err != nil {
		return fmt.Errorf("failed to insert transaction %s: %w", t.ID, err)
	}
	return nil
}

// SaveCredit stores a credited balance and its nana transaction atomically.
func (d *DB) SaveCredit(ctx context.Context, accountID string, bal models.WalletBalance, txn models.Transaction) error {
	return d.withTx(ctx, func(tx *sql.Tx) error {
		if err := saveBalance(ctx, tx, accountID, bal); err != nil {
			return err
		}
		return insertTransaction(ctx, tx, txn)
	})
}

// ListTransactions returns up to limit transactions of an account, newest first.
// A limit <= 0 returns all of them.
func (d *DB) ListTransactions(ctx context.Context, accountID string, limit int) ([]models.Transaction, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	rows, err := d.conn.QueryContext(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions WHERE account_id = ?
		ORDER BY seq DESC LIMIT ?`, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions of %s: %w", accountID, err)
	}
	defer rows.Close()
	return scanTransactions(rows)
}

// TransactionsSince returns transactions with timestamp >= since, oldest first.
func (d *DB) TransactionsSince(ctx context.Context, accountID string, since time.Time) ([]models.Transaction, error) {
	rows, err := d.conn.QueryContext(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions WHERE account_id = ? AND timestamp >= ?
		ORDER BY seq ASC`, accountID, formatTime(since))
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions of %s since %s: %w", accountID, since, err)
	}
	defer rows.Close()
	return scanTransactions(rows)
}

func scanTransactions(rows *sql.Rows) ([]models.Transaction, error) {
	txns := []models.Transaction{}
	for rows.Next() {
		var (
			t     models.Transaction
			typ   string
			stamp string
		)
		if err := rows.Scan(&t.ID, &t.AccountID, &typ, &t.Amount, &t.Description, &stamp,
			&t.RelatedVideoID, &t.LedgerEntryID, &t.CashOutRequestID); err != nil {
			return nil, fmt.Errorf("failed to scan transaction row: %w", err)
		}
		t.Type = models.TransactionType(typ)
		ts, err := parseTime(stamp)
		if err != nil {
			return nil, err
		}
		t.Timestamp = ts
		txns = append(txns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transaction rows: %w", err)
	}
	return txns, nil
}
