package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CreatorTier is the audience-size bracket of a creator.
type CreatorTier string

const (
	CreatorTierSmall CreatorTier = "small"
	CreatorTierMid   CreatorTier = "mid"
	CreatorTierLarge CreatorTier = "large"
)

// TransactionType classifies a wallet transaction.
type TransactionType string

const (
	TransactionTypeNana    TransactionType = "nana"
	TransactionTypeDebit   TransactionType = "debit"
	TransactionTypeCashOut TransactionType = "cash_out"
	TransactionTypeRefund  TransactionType = "refund"
)

// CashOutStatus is the lifecycle state of a cash-out request.
type CashOutStatus string

const (
	CashOutStatusPending   CashOutStatus = "pending"
	CashOutStatusApproved  CashOutStatus = "approved"
	CashOutStatusRejected  CashOutStatus = "rejected"
	CashOutStatusCompleted CashOutStatus = "completed"
)

// PaymentMethod is how a cash-out is paid out.
type PaymentMethod string

const (
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
	PaymentMethodPayPal       PaymentMethod = "paypal"
	PaymentMethodGiftCard     PaymentMethod = "gift_card"
)

// Valid reports whether m is a supported payment method.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodBankTransfer, PaymentMethodPayPal, PaymentMethodGiftCard:
		return true
	}
	return false
}

// VerificationLevel is the KYC verification depth.
type VerificationLevel string

const (
	VerificationNone  VerificationLevel = "none"
	VerificationBasic VerificationLevel = "basic"
	VerificationFull  VerificationLevel = "full"
)

// EngagementMetrics are the raw engagement counts of one content item.
type EngagementMetrics struct {
	Views    int64 `json:"view_count"`
	Likes    int64 `json:"like_count"`
	Comments int64 `json:"comment_count"`
	Shares   int64 `json:"share_count"`
}

// ContentRef identifies a content item handed to the quality classifier.
type ContentRef struct {
	VideoID string `json:"video_id"`
	URL     string `json:"url"`
	Title   string `json:"title,omitempty"`
}

// ScoreBreakdown is the output of one scoring run.
// TotalScore is the weighted impact/quality score before fairness;
// QSEScore is TotalScore after the fairness multiplier and clamping.
type ScoreBreakdown struct {
	ImpactScore        float64         `json:"impact_score"`
	QualityScore       float64         `json:"quality_score"`
	FairnessMultiplier float64         `json:"fairness_multiplier"`
	TotalScore         float64         `json:"total_score"`
	QSEScore           float64         `json:"qse_score"`
	Nanas              decimal.Decimal `json:"nanas"`
	LedgerEntryID      string          `json:"ledger_entry_id,omitempty"`
}

// WalletBalance is the balance aggregate of one account.
type WalletBalance struct {
	Nanas        decimal.Decimal `json:"nanas"`
	PendingNanas decimal.Decimal `json:"pending_nanas"`
	TotalEarned  decimal.Decimal `json:"total_earned"`
	LastUpdated  time.Time       `json:"last_updated"`
}

// Transaction is an append-only wallet log entry.
type Transaction struct {
	ID               string          `json:"id"`
	AccountID        string          `json:"account_id"`
	Type             TransactionType `json:"type"`
	Amount           decimal.Decimal `json:"amount"` // signed
	Description      string          `json:"description"`
	Timestamp        time.Time       `json:"timestamp"`
	RelatedVideoID   string          `json:"related_video_id,omitempty"`
	LedgerEntryID    string          `json:"ledger_entry_id,omitempty"`
	CashOutRequestID string          `json:"cash_out_request_id,omitempty"`
}

// PaymentDetails carries the method-specific payout destination.
type PaymentDetails struct {
	AccountName   string `json:"account_name,omitempty"`
	AccountNumber string `json:"account_number,omitempty"`
	PaypalEmail   string `json:"paypal_email,omitempty"`
	GiftCardType  string `json:"gift_card_type,omitempty"`
}

// CashOutRequest is a request to move nanas out of the platform.
type CashOutRequest struct {
	ID             string          `json:"id"`
	AccountID      string          `json:"account_id"`
	Amount         decimal.Decimal `json:"amount"`
	Status         CashOutStatus   `json:"status"`
	RequestedAt    time.Time       `json:"requested_at"`
	ProcessedAt    *time.Time      `json:"processed_at,omitempty"`
	Reason         string          `json:"reason,omitempty"`
	PaymentMethod  PaymentMethod   `json:"payment_method"`
	PaymentDetails PaymentDetails  `json:"payment_details"`
}

// KYCStatus is the identity verification state of an account.
type KYCStatus struct {
	IsVerified         bool              `json:"is_verified"`
	VerificationLevel  VerificationLevel `json:"verification_level"`
	DocumentsSubmitted []string          `json:"documents_submitted"`
	LastUpdated        time.Time         `json:"last_updated"`
	NextReviewDate     *time.Time        `json:"next_review_date,omitempty"`
}

// BalanceHistoryPoint is one point of the derived balance-over-time series.
type BalanceHistoryPoint struct {
	Nanas     decimal.Decimal `json:"nanas"`
	Timestamp time.Time       `json:"timestamp"`
}

// CashOutEligibility is the read-side pre-check for a cash-out amount.
type CashOutEligibility struct {
	Eligible    bool            `json:"eligible"`
	Reason      string          `json:"reason,omitempty"`
	KYCRequired bool            `json:"kyc_required"`
	MinAmount   decimal.Decimal `json:"min_amount"`
	MaxAmount   decimal.Decimal `json:"max_amount"`
}

// EarningsAnalytics summarizes recent earnings of an account.
type EarningsAnalytics struct {
	TodayEarnings decimal.Decimal `json:"today_earnings"`
	WeekEarnings  decimal.Decimal `json:"week_earnings"`
	MonthEarnings decimal.Decimal `json:"month_earnings"`
	TotalViews    int64           `json:"total_views"`
	AvgQSEScore   float64         `json:"avg_qse_score"`
}

// VideoMetadata is what the metadata collaborator returns for a content URL.
type VideoMetadata struct {
	VideoID      string            `json:"video_id"`
	Title        string            `json:"title"`
	ThumbnailURL string            `json:"thumbnail_url"`
	AuthorName   string            `json:"author_name,omitempty"`
	ProviderName string            `json:"provider_name,omitempty"`
	Metrics      EngagementMetrics `json:"metrics"`
}

// LedgerEntry is the audit record linking a scoring run to the credit it produced.
type LedgerEntry struct {
	ID          string            `json:"id"`
	AccountID   string            `json:"account_id"`
	VideoID     string            `json:"video_id"`
	CreatorID   string            `json:"creator_id"`
	URL         string            `json:"url"`
	Title       string            `json:"title"`
	Timestamp   time.Time         `json:"timestamp"`
	Breakdown   ScoreBreakdown    `json:"score_breakdown"`
	Category    string            `json:"category"`
	CreatorTier CreatorTier       `json:"creator_tier"`
	Metrics     EngagementMetrics `json:"metrics"`
}
