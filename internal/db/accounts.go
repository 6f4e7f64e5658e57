package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Fantasim/nanas/internal/models"
	"github.com/Fantasim/nanas/internal/wallet"
)

var _ wallet.Store = (*DB)(nil)

// withTx runs fn in one SQL transaction, rolling back on error.
func (d *DB) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// LoadAccount returns the balance and KYC state of an account.
func (d *DB) LoadAccount(ctx context.Context, accountID string) (wallet.AccountState, error) {
	var (
		state       wallet.AccountState
		lastUpdated string
		verified    int
		level       string
		docsJSON    string
		kycUpdated  string
		nextReview  sql.NullString
	)

	err := d.conn.QueryRowContext(ctx, `
		SELECT nanas, pending_nanas, total_earned, last_updated,
		       kyc_verified, kyc_level, kyc_documents, kyc_updated_at, kyc_next_review
		FROM accounts WHERE id = ?`, accountID,
	).Scan(
		&state.Balance.Nanas, &state.Balance.PendingNanas, &state.Balance.TotalEarned, &lastUpdated,
		&verified, &level, &docsJSON, &kycUpdated, &nextReview,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return wallet.NewAccountState(), nil
	}
	if err != nil {
		return wallet.AccountState{}, fmt.Errorf("failed to load account %s: %w", accountID, err)
	}

	if state.Balance.LastUpdated, err = parseTime(lastUpdated); err != nil {
		return wallet.AccountState{}, err
	}
	if state.KYC.LastUpdated, err = parseTime(kycUpdated); err != nil {
		return wallet.AccountState{}, err
	}
	if state.KYC.NextReviewDate, err = parseNullableTime(nextReview); err != nil {
		return wallet.AccountState{}, err
	}
	state.KYC.IsVerified = verified == 1
	state.KYC.VerificationLevel = models.VerificationLevel(level)
	state.KYC.DocumentsSubmitted = []string{}
	if err := json.Unmarshal([]byte(docsJSON), &state.KYC.DocumentsSubmitted); err != nil {
		return wallet.AccountState{}, fmt.Errorf("failed to decode KYC documents of %s: %w", accountID, err)
	}

	return state, nil
}

func saveBalance(ctx context.Context, tx *sql.Tx, accountID string, bal models.WalletBalance) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO accounts (id, nanas, pending_nanas, total_earned, last_updated)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			nanas = excluded.nanas,
			pending_nanas = excluded.pending_nanas,
			total_earned = excluded.total_earned,
			last_updated = excluded.last_updated`,
		accountID, bal.Nanas, bal.PendingNanas, bal.TotalEarned, formatTime(bal.LastUpdated),
	)
	if err != nil {
		return fmt.Errorf("failed to save balance of %s: %w", accountID, err)
	}
	return nil
}

// SaveKYC upserts the KYC columns of an account.
func (d *DB) SaveKYC(ctx context.Context, accountID string, kyc models.KYCStatus) error {
	docs := kyc.DocumentsSubmitted
	if docs == nil {
		docs = []string{}
	}
	docsJSON, err := json.Marshal(docs)
	if err != nil {
		return fmt.Errorf("failed to encode KYC documents: %w", err)
	}

	verified := 0
	if kyc.IsVerified {
		verified = 1
	}

	_, err = d.conn.ExecContext(ctx, `
		INSERT INTO accounts (id, kyc_verified, kyc_level, kyc_documents, kyc_updated_at, kyc_next_review)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			kyc_verified = excluded.kyc_verified,
			kyc_level = excluded.kyc_level,
			kyc_documents = excluded.kyc_documents,
			kyc_updated_at = excluded.kyc_updated_at,
			kyc_next_review = excluded.kyc_next_review`,
		accountID, verified, string(kyc.VerificationLevel), string(docsJSON),
		formatTime(kyc.LastUpdated), formatNullableTime(kyc.NextReviewDate),
	)
	if err != nil {
		return fmt.Errorf("failed to save KYC of %s: %w", accountID, err)
	}

	slog.Debug("KYC saved", "accountID", accountID, "level", kyc.VerificationLevel)
	return nil
}

// DeleteAccount removes an account and everything recorded for it.
func (d *DB) DeleteAccount(ctx context.Context, accountID string) error {
	err := d.withTx(ctx, func(tx *sql.Tx) error {
		for _, table := range []string{"transactions", "cashout_requests", "ledger_entries"} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE account_id = ?", accountID); err != nil {
				return fmt.Errorf("failed to delete %s of %s: %w", table, accountID, err)
			}
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM accounts WHERE id = ?", accountID); err != nil {
			return fmt.Errorf("failed to delete account %s: %w", accountID, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	slog.Info("account rows deleted", "accountID", accountID)
	return nil
}
