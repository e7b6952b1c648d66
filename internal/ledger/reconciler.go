package ledger

import (
	"context"
	"log"
	"time"
)

// Reconciler periodically cross-checks every account balance against the sum
// of its ledger entries and logs any drift. Drift should never occur; a hit
// means an operator needs to look at the ledger before trusting balances.
type Reconciler struct {
	auditor  Auditor
	interval time.Duration
}

func NewReconciler(auditor Auditor, interval time.Duration) *Reconciler {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Reconciler{auditor: auditor, interval: interval}
}

// Run blocks until ctx is cancelled, auditing once per interval.
func (r *Reconciler) Run(ctx context.Context) {
	log.Printf("[RECONCILER] Started, interval %s", r.interval)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[RECONCILER] Stopped")
			return
		case <-ticker.C:
			r.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single audit pass and returns the drift count.
func (r *Reconciler) RunOnce(ctx context.Context) int {
	drifts, err := r.auditor.VerifyBalances(ctx)
	if err != nil {
		log.Printf("[RECONCILER] Audit failed: %v", err)
		return 0
	}
	for _, d := range drifts {
		log.Printf("[RECONCILER] DRIFT account=%s balance=%d ledger_sum=%d", d.AccountID, d.Balance, d.LedgerSum)
	}
	if len(drifts) == 0 {
		log.Println("[RECONCILER] Audit clean")
	}
	return len(drifts)
}
