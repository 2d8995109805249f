// services/scheduler.go
package services

import (
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// StartLifecycleScheduler runs the periodic lifecycle jobs: finalizing full
// rounds whose completion window has elapsed, and expiring overdue discount
// actions. Both jobs are idempotent, so overlapping runs are harmless.
func StartLifecycleScheduler(winners *WinnerService, discounts *DiscountService) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		log.Printf("❌ [Scheduler] failed to start: %v", err)
		return
	}
	sched.Start()

	// Every minute: commit winners for rounds that are ready
	if _, err := sched.NewJob(
		gocron.DurationJob(1*time.Minute),
		gocron.NewTask(func() {
			winners.SweepDueRounds()
		}),
	); err != nil {
		log.Printf("❌ [Scheduler] failed to register finalize sweep: %v", err)
	}

	// Every 10 minutes: ledger bookkeeping
	if _, err := sched.NewJob(
		gocron.DurationJob(10*time.Minute),
		gocron.NewTask(func() {
			discounts.ExpireSweep()
		}),
	); err != nil {
		log.Printf("❌ [Scheduler] failed to register discount expiry sweep: %v", err)
	}

	log.Println("[Scheduler] lifecycle jobs registered")
}
