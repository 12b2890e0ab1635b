package usecase

import "time"

const (
	// DefaultTransactionTimeout is the maximum duration for a database transaction
	// This prevents long-running transactions from blocking tables
	DefaultTransactionTimeout = 10 * time.Second

	// MaxSnapshotWriteAttempts bounds the duplicate-key cleanup-and-retry loop.
	MaxSnapshotWriteAttempts = 3

	// DefaultWorkers is the per-entity parallelism when none is configured.
	DefaultWorkers = 4

	// CycleLockKey serialises job execution across processes.
	CycleLockKey = "eod:cycle"
)

// Settings carries the EOD configuration the jobs need.
type Settings struct {
	LocalCurrency      string
	DealGLPrefixes     []string
	UnrealizedGainGL   string
	UnrealizedLossGL   string
	RealizedGainGL     string
	RealizedLossGL     string
	PositionGL         string
	PositionLCYGL      string
	Workers            int
	StrictBalanceCheck bool
}

func (s Settings) workers() int {
	if s.Workers <= 0 {
		return DefaultWorkers
	}
	return s.Workers
}
