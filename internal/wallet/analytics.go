package wallet

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Fantasim/nanas/internal/config"
	"github.com/Fantasim/nanas/internal/models"
)

// GetEarningsAnalytics sums nana credits over trailing day, week and month
// windows relative to now. A credit counts when now - timestamp < window.
func (l *Ledger) GetEarningsAnalytics(ctx context.Context) (models.EarningsAnalytics, error) {
	if err := l.latency.Wait(ctx); err != nil {
		return models.EarningsAnalytics{}, err
	}

	now := l.now()
	txns, err := l.store.TransactionsSince(ctx, l.accountID, now.Add(-config.EarningsMonthWindow))
	if err != nil {
		return models.EarningsAnalytics{}, fmt.Errorf("load transactions: %w", err)
	}

	out := models.EarningsAnalytics{
		TodayEarnings: decimal.Zero,
		WeekEarnings:  decimal.Zero,
		MonthEarnings: decimal.Zero,
	}
	for _, t := range txns {
		if t.Type != models.TransactionTypeNana {
			continue
		}
		age := now.Sub(t.Timestamp)
		if age < config.EarningsDayWindow {
			out.TodayEarnings = out.TodayEarnings.Add(t.Amount)
		}
		if age < config.EarningsWeekWindow {
			out.WeekEarnings = out.WeekEarnings.Add(t.Amount)
		}
		if age < config.EarningsMonthWindow {
			out.MonthEarnings = out.MonthEarnings.Add(t.Amount)
		}
	}

	if l.analytics != nil {
		views, avg, err := l.analytics.AccountStats(ctx, l.accountID)
		if err != nil {
			return models.EarningsAnalytics{}, fmt.Errorf("load account stats: %w", err)
		}
		out.TotalViews = views
		out.AvgQSEScore = avg
	}
	return out, nil
}

// GetBalanceHistory replays the transaction log of the last days days.
// The fold starts at totalEarned - nanas - pendingNanas, adds every
// transaction with timestamp >= now - days in insertion order, and ends with
// one point at the live balance.
func (l *Ledger) GetBalanceHistory(ctx context.Context, days int) ([]models.BalanceHistoryPoint, error) {
	if days <= 0 || days > config.MaxBalanceHistDays {
		return nil, fmt.Errorf("%w: days must be within [1,%d], got %d", config.ErrInvalidArgument, config.MaxBalanceHistDays, days)
	}
	if err := l.latency.Wait(ctx); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	state, err := l.store.LoadAccount(ctx, l.accountID)
	if err != nil {
		return nil, fmt.Errorf("load account: %w", err)
	}

	now := l.now()
	txns, err := l.store.TransactionsSince(ctx, l.accountID, now.Add(-time.Duration(days)*config.EarningsDayWindow))
	if err != nil {
		return nil, fmt.Errorf("load transactions: %w", err)
	}

	bal := state.Balance
	running := bal.TotalEarned.Sub(bal.Nanas).Sub(bal.PendingNanas)

	points := make([]models.BalanceHistoryPoint, 0, len(txns)+1)
	for _, t := range txns {
		running = running.Add(t.Amount)
		points = append(points, models.BalanceHistoryPoint{Nanas: running, Timestamp: t.Timestamp})
	}
	points = append(points, models.BalanceHistoryPoint{Nanas: bal.Nanas, Timestamp: now})
	return points, nil
}
