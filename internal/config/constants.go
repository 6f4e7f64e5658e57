package config

import "time"

// Scoring
const (
	// Impact = 60% view reach, 40% weighted engagement. The same split is
	// reused to combine impact and quality into the total score.
	ImpactViewWeight       = 0.6
	ImpactEngagementWeight = 0.4
	TotalImpactWeight      = 0.6
	TotalQualityWeight     = 0.4

	CommentWeight = 2.0
	ShareWeight   = 3.0

	ViewScoreScale       = 20.0   // viewScore = 20 * log10(views+1)
	EngagementScoreScale = 1000.0 // engagementScore = 1000 * engagementRate
	MaxScore             = 100.0
	MinScore             = 0.0

	DefaultCategory = "general"
)

// Payout
const (
	NanasViewDivisor = 10_000.0
	NanasRate        = 0.1
	NanasFloor       = 0.001
	NanasPrecision   = 3 // decimal places kept on computed payouts

	DemoVariationSpread = 0.10 // ±10%
)

// Creator tiers by follower count
const (
	SmallCreatorMaxFollowers = 10_000
	MidCreatorMaxFollowers   = 100_000
)

// Wallet
const (
	DefaultKYCThreshold    = 50.0
	DefaultMinCashOut      = 5.0
	KYCNextReviewInterval  = 7 * 24 * time.Hour
	DefaultKYCReviewDelay  = 5 * time.Second
	DefaultHistoryLimit    = 50
	MaxHistoryLimit        = 500
	DefaultBalanceHistDays = 30
	MaxBalanceHistDays     = 365

	EarningsDayWindow   = 24 * time.Hour
	EarningsWeekWindow  = 7 * EarningsDayWindow
	EarningsMonthWindow = 30 * EarningsDayWindow
)

// Demo latency (simulated backend round-trip)
const (
	DemoLatencyMin = 200 * time.Millisecond
	DemoLatencyMax = 500 * time.Millisecond
)

// Quality rubric (weights sum to 1.0)
const (
	RubricHookWeight       = 0.15
	RubricRetentionWeight  = 0.20
	RubricClarityWeight    = 0.10
	RubricUsefulnessWeight = 0.35
	RubricAudienceWeight   = 0.10
	RubricEngagementWeight = 0.10

	RubricRiskPenaltyFactor = 0.60
	RubricNicheThreshold    = 0.7
	RubricNicheScale        = 20.0
	RubricNicheMaxBonus     = 10.0
	RubricAIGCBonus         = 5.0
	RubricAIGCMinScore      = 0.8

	QualityBandLow    = 40.0
	QualityBandMedium = 60.0
	QualityBandHigh   = 80.0
)

// Collaborators
const (
	RateLimitMetadata = 5 // requests per second
	RateLimitQuality  = 2

	CircuitBreakerThreshold = 3
	CircuitBreakerCooldown  = 30 * time.Second

	// One retry for 429/5xx; a Retry-After longer than the cap is not waited out.
	UpstreamRetryDelay   = 500 * time.Millisecond
	UpstreamMaxRetryWait = 5 * time.Second

	CircuitClosed   = "closed"
	CircuitOpen     = "open"
	CircuitHalfOpen = "half_open"

	CollaboratorTimeout = 15 * time.Second
)

// Policy
const (
	PolicyConfigFile = "./policy.json"
)

// Server
const (
	ServerPort         = 8080
	ServerReadTimeout  = 30 * time.Second
	ServerWriteTimeout = 60 * time.Second
	ShutdownTimeout    = 10 * time.Second
)

// Database
const (
	DBBusyTimeout = 5000 // milliseconds
)

// Session
const (
	SessionCookieName  = "nanas_session"
	SessionTimeout     = 1 * time.Hour
	SessionTokenLength = 32 // bytes, hex-encoded = 64 chars
)

// Logging
const (
	LogFilePattern = "nanas-%s.log" // date (YYYY-MM-DD)
	LogFilePrefix  = "nanas-"
	LogMaxAgeDays  = 30
)

// Metrics
const (
	MetricsNamespace = "nanas"
)
