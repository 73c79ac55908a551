package worker

import (
	"context"
	"log"
	"time"

	"leadnest/automation"
	controller "leadnest/controllers"

	"github.com/getsentry/sentry-go"
)

// AutomationWorker drives the automation engine on the in-process schedule.
// The same engine also serves the HTTP run endpoint; both paths go through
// Engine.RunDue and its claim logic, so they can coexist safely.
type AutomationWorker struct {
	engine *automation.Engine
	logger *log.Logger
}

func NewAutomationWorker(engine *automation.Engine, logger *log.Logger) *AutomationWorker {
	return &AutomationWorker{
		engine: engine,
		logger: logger,
	}
}

// Run executes one scheduler pass.
func (aw *AutomationWorker) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	summary, err := aw.engine.RunDue(ctx, time.Now())
	if err != nil {
		aw.logger.Printf("Automation pass failed: %v", err)
		sentry.CaptureException(err)
		return
	}

	if summary.Processed > 0 {
		aw.logger.Printf("Automation pass processed %d enrollments", summary.Processed)
		controller.PublishRunSummary(*summary)
	}
}
