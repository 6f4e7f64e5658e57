package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Fantasim/nanas/internal/config"
	"github.com/Fantasim/nanas/internal/models"
)

const cashOutColumns = `id, account_id, amount, status, requested_at, processed_at,
	reason, payment_method, payment_details`

// SaveCashOut stores the debited balance, the new pending request and its
// cash_out transaction atomically.
func (d *DB) SaveCashOut(ctx context.Context, accountID string, bal models.WalletBalance, req models.CashOutRequest, txn models.Transaction) error {
	details, err := json.Marshal(req.PaymentDetails)
	if err != nil {
		return fmt.Errorf("failed to encode payment details: %w", err)
	}

	return d.withTx(ctx, func(tx *sql.Tx) error {
		if err := saveBalance(ctx, tx, accountID, bal); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO cashout_requests (`+cashOutColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			req.ID, accountID, req.Amount, string(req.Status), formatTime(req.RequestedAt),
			formatNullableTime(req.ProcessedAt), req.Reason, string(req.PaymentMethod), string(details),
		)
		if err != nil {
			return fmt.Errorf("failed to insert cash-out request %s: %w", req.ID, err)
		}
		return insertTransaction(ctx, tx, txn)
	})
}

// SaveSettlement stores a request status change with its balance change and transaction.
func (d *DB) SaveSettlement(ctx context.Context, accountID string, bal models.WalletBalance, req models.CashOutRequest, txn models.Transaction) error {
	return d.withTx(ctx, func(tx *sql.Tx) error {
		if err := updateCashOutStatus(ctx, tx, accountID, req); err != nil {
			return err
		}
		if err := saveBalance(ctx, tx, accountID, bal); err != nil {
			return err
		}
		return insertTransaction(ctx, tx, txn)
	})
}

// UpdateCashOutRequest stores a status change that moves no funds.
func (d *DB) UpdateCashOutRequest(ctx context.Context, accountID string, req models.CashOutRequest) error {
	return d.withTx(ctx, func(tx *sql.Tx) error {
		return updateCashOutStatus(ctx, tx, accountID, req)
	})
}

func updateCashOutStatus(ctx context.Context, tx *sql.Tx, accountID string, req models.CashOutRequest) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE cashout_requests SET status = ?, processed_at = ?, reason = ?
		WHERE id = ? AND account_id = ?`,
		string(req.Status), formatNullableTime(req.ProcessedAt), req.Reason, req.ID, accountID,
	)
	if err != nil {
		return fmt.Errorf("failed to update cash-out request %s: %w", req.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("cash-out request %s: %w", req.ID, config.ErrNotFound)
	}
	return nil
}

// GetCashOutRequest returns one request of an account or config.ErrNotFound.
func (d *DB) GetCashOutRequest(ctx context.Context, accountID, requestID string) (models.CashOutRequest, error) {
	row := d.conn.QueryRowContext(ctx, `
		SELECT `+cashOutColumns+`
		FROM cashout_requests WHERE id = ? AND account_id = ?`, requestID, accountID)

	req, err := scanCashOut(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.CashOutRequest{}, fmt.Errorf("cash-out request %s: %w", requestID, config.ErrNotFound)
	}
	if err != nil {
		return models.CashOutRequest{}, err
	}
	return req, nil
}

// ListCashOutRequests returns every request of an account, newest first.
func (d *DB) ListCashOutRequests(ctx context.Context, accountID string) ([]models.CashOutRequest, error) {
	rows, err := d.conn.QueryContext(ctx, `
		SELECT `+cashOutColumns+`
		FROM cashout_requests WHERE account_id = ?
		ORDER BY seq DESC`, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list cash-out requests of %s: %w", accountID, err)
	}
	defer rows.Close()

	reqs := []models.CashOutRequest{}
	for rows.Next() {
		req, err := scanCashOut(rows)
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate cash-out rows: %w", err)
	}
	return reqs, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCashOut(s rowScanner) (models.CashOutRequest, error) {
	var (
		req         models.CashOutRequest
		status      string
		requestedAt string
		processedAt sql.NullString
		method      string
		details     string
	)
	if err := s.Scan(&req.ID, &req.AccountID, &req.Amount, &status, &requestedAt, &processedAt,
		&req.Reason, &method, &details); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.CashOutRequest{}, err
		}
		return models.CashOutRequest{}, fmt.Errorf("failed to scan cash-out row: %w", err)
	}

	req.Status = models.CashOutStatus(status)
	req.PaymentMethod = models.PaymentMethod(method)

	var err error
	if req.RequestedAt, err = parseTime(requestedAt); err != nil {
		return models.CashOutRequest{}, err
	}
	if req.ProcessedAt, err = parseNullableTime(processedAt); err != nil {
		return models.CashOutRequest{}, err
	}
	if err := json.Unmarshal([]byte(details), &req.PaymentDetails); err != nil {
		return models.CashOutRequest{}, fmt.Errorf("failed to decode payment details of %s: %w", req.ID, err)
	}
	return req, nil
}
