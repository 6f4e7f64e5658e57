package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Fantasim/nanas/internal/config"
	"github.com/Fantasim/nanas/internal/models"
	"github.com/Fantasim/nanas/internal/wallet"
)

var _ wallet.AnalyticsSource = (*DB)(nil)

const ledgerEntryColumns = `id, account_id, video_id, creator_id, url, title, timestamp,
	impact_score, quality_score, fairness_multiplier, total_score, qse_score, nanas,
	category, creator_tier, view_count, like_count, comment_count, share_count`

// CreateLedgerEntry records the audit trail of one scoring run.
func (d *DB) CreateLedgerEntry(ctx context.Context, e models.LedgerEntry) error {
	b := e.Breakdown
	_, err := d.conn.ExecContext(ctx, `
		INSERT INTO ledger_entries (`+ledgerEntryColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.AccountID, e.VideoID, e.CreatorID, e.URL, e.Title, formatTime(e.Timestamp),
		b.ImpactScore, b.QualityScore, b.FairnessMultiplier, b.TotalScore, b.QSEScore, b.Nanas,
		e.Category, string(e.CreatorTier),
		e.Metrics.Views, e.Metrics.Likes, e.Metrics.Comments, e.Metrics.Shares,
	)
	if err != nil {
		return fmt.Errorf("failed to insert ledger entry %s: %w", e.ID, err)
	}

	slog.Info("ledger entry recorded",
		"ledgerEntryID", e.ID,
		"accountID", e.AccountID,
		"videoID", e.VideoID,
		"qse", b.QSEScore,
		"nanas", b.Nanas.String(),
	)
	return nil
}

// DeleteLedgerEntry removes an entry whose credit could not be applied.
func (d *DB) DeleteLedgerEntry(ctx context.Context, id string) error {
	if _, err := d.conn.ExecContext(ctx, "DELETE FROM ledger_entries WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete ledger entry %s: %w", id, err)
	}
	slog.Warn("ledger entry removed", "ledgerEntryID", id)
	return nil
}

// GetLedgerEntry returns one ledger entry or config.ErrNotFound.
func (d *DB) GetLedgerEntry(ctx context.Context, id string) (models.LedgerEntry, error) {
	row := d.conn.QueryRowContext(ctx, `SELECT `+ledgerEntryColumns+` FROM ledger_entries WHERE id = ?`, id)
	e, err := scanLedgerEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.LedgerEntry{}, fmt.Errorf("ledger entry %s: %w", id, config.ErrNotFound)
	}
	return e, err
}

// ListLedgerEntries returns up to limit entries of an account, newest first.
func (d *DB) ListLedgerEntries(ctx context.Context, accountID string, limit int) ([]models.LedgerEntry, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := d.conn.QueryContext(ctx, `
		SELECT `+ledgerEntryColumns+`
		FROM ledger_entries WHERE account_id = ?
		ORDER BY timestamp DESC, rowid DESC LIMIT ?`, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger entries of %s: %w", accountID, err)
	}
	defer rows.Close()

	entries := []models.LedgerEntry{}
	for rows.Next() {
		e, err := scanLedgerEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate ledger entry rows: %w", err)
	}
	return entries, nil
}

// AccountStats implements wallet.AnalyticsSource: total views and mean QSE
// score over every scoring run credited to the account.
func (d *DB) AccountStats(ctx context.Context, accountID string) (int64, float64, error) {
	var (
		views int64
		avg   float64
	)
	err := d.conn.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(view_count), 0), COALESCE(AVG(qse_score), 0)
		FROM ledger_entries WHERE account_id = ?`, accountID,
	).Scan(&views, &avg)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to aggregate ledger entries of %s: %w", accountID, err)
	}
	return views, avg, nil
}

func scanLedgerEntry(s rowScanner) (models.LedgerEntry, error) {
	var (
		e     models.LedgerEntry
		stamp string
		tier  string
	)
	err := s.Scan(&e.ID, &e.AccountID, &e.VideoID, &e.CreatorID, &e.URL, &e.Title, &stamp,
		&e.Breakdown.ImpactScore, &e.Breakdown.QualityScore, &e.Breakdown.FairnessMultiplier,
		&e.Breakdown.TotalScore, &e.Breakdown.QSEScore, &e.Breakdown.Nanas,
		&e.Category, &tier,
		&e.Metrics.Views, &e.Metrics.Likes, &e.Metrics.Comments, &e.Metrics.Shares)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.LedgerEntry{}, err
		}
		return models.LedgerEntry{}, fmt.Errorf("failed to scan ledger entry row: %w", err)
	}

	e.CreatorTier = models.CreatorTier(tier)
	e.Breakdown.LedgerEntryID = e.ID
	if e.Timestamp, err = parseTime(stamp); err != nil {
		return models.LedgerEntry{}, err
	}
	return e, nil
}
