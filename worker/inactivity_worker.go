package worker

import (
	"context"
	"log"
	"time"

	"leadnest/automation"

	"github.com/getsentry/sentry-go"
)

// InactivityWorker periodically enrolls stale leads into inactivity
// sequences. Inactivity is the one trigger evaluated by cutoff query rather
// than by lead events.
type InactivityWorker struct {
	triggers *automation.TriggerEvaluator
	logger   *log.Logger
}

func NewInactivityWorker(triggers *automation.TriggerEvaluator, logger *log.Logger) *InactivityWorker {
	return &InactivityWorker{
		triggers: triggers,
		logger:   logger,
	}
}

// Run executes one inactivity scan.
func (iw *InactivityWorker) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	created, err := iw.triggers.RunInactivityScan(ctx, time.Now())
	if err != nil {
		iw.logger.Printf("Inactivity scan failed: %v", err)
		sentry.CaptureException(err)
		return
	}
	if created > 0 {
		iw.logger.Printf("Inactivity scan enrolled %d leads", created)
	}
}
