package election

import (
	"context"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
)

// BidFunc computes a replica's current bid: a small non-negative integer,
// lower is stronger (spec §1 "CPU-load formula... out of scope" and §3
// "Election message"). Load and CPU utilization are combined additively so
// a busier replica (more in-flight requests, or hotter CPU) bids higher and
// is less likely to win.
type BidFunc func(ctx context.Context, load int) (int, error)

// DefaultBidFunc samples per-CPU utilization over a short window via
// gopsutil, averages it, and scales it onto load.
func DefaultBidFunc(ctx context.Context, load int) (int, error) {
	percents, err := cpu.PercentWithContext(ctx, 50*time.Millisecond, true)
	if err != nil {
		// A CPU-sampling failure should never block an election: fall back
		// to pure load so this replica can still participate.
		return load, nil
	}

	var sum float64
	for _, p := range percents {
		sum += p
	}
	avg := 0.0
	if len(percents) > 0 {
		avg = sum / float64(len(percents))
	}

	return load + int(avg), nil
}
