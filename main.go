package main

import (
	"log"
	"os"
	"time"

	"leadnest/automation"
	"leadnest/config"
	"leadnest/middleware"
	"leadnest/routes"
	"leadnest/utils"
	"leadnest/worker"

	"github.com/getsentry/sentry-go"
	"github.com/gofiber/fiber/v2"
	"github.com/robfig/cron/v3"
)

func main() {
	logger := log.New(os.Stdout, "LEADNEST: ", log.Ldate|log.Ltime|log.Lshortfile)

	// Load configuration
	if err := config.LoadConfig(); err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	// Error reporting
	if config.AppConfig.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         config.AppConfig.SentryDSN,
			Environment: config.AppConfig.Environment,
		}); err != nil {
			logger.Printf("Sentry init failed: %v", err)
		}
		defer sentry.Flush(2 * time.Second)
	}

	// Initialize database connection
	if err := config.ConnectDB(); err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}

	// Build the automation engine with explicit, injected collaborators
	store := automation.NewGormStore(config.DB)

	mailer, err := utils.NewMailer(
		config.AppConfig.SMTPHost,
		config.AppConfig.SMTPPort,
		config.AppConfig.SMTPUsername,
		config.AppConfig.SMTPPassword,
		config.AppConfig.FromEmail,
		config.AppConfig.FromName,
	)
	if err != nil {
		logger.Fatalf("Failed to configure mailer: %v", err)
	}

	executor := automation.NewStepExecutor(store, store, mailer, utils.NewWhatsAppSender())
	engine := automation.NewEngine(store, store, store, executor,
		config.AppConfig.AutomationBatchSize, config.AppConfig.StepTimeout)
	triggers := automation.NewTriggerEvaluator(store, store, store)

	// Periodic workers
	automationWorker := worker.NewAutomationWorker(engine, log.New(os.Stdout, "AUTOMATION: ", log.LstdFlags))
	inactivityWorker := worker.NewInactivityWorker(triggers, log.New(os.Stdout, "INACTIVITY: ", log.LstdFlags))

	scheduler := cron.New()
	scheduler.Schedule(cron.Every(config.AppConfig.AutomationInterval), cron.FuncJob(automationWorker.Run))
	scheduler.Schedule(cron.Every(config.AppConfig.InactivityInterval), cron.FuncJob(inactivityWorker.Run))

	if config.AppConfig.Inbox.Enabled {
		inboxWorker := worker.NewInboxWorker(config.DB, config.AppConfig.Inbox, triggers,
			log.New(os.Stdout, "INBOX: ", log.LstdFlags))
		scheduler.Schedule(cron.Every(config.AppConfig.InboxInterval), cron.FuncJob(inboxWorker.Run))
	}

	scheduler.Start()
	defer scheduler.Stop()

	// Create Fiber app
	app := fiber.New()
	app.Use(middleware.CORS())

	routes.SetupRoutes(app, routes.Deps{
		DB:       config.DB,
		Engine:   engine,
		Triggers: triggers,
	})

	// Health check endpoint
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "running",
			"version": "1.0.0",
		})
	})

	// Start server
	logger.Printf("Server starting on port %s", config.AppConfig.ServerPort)
	if err := app.Listen(":" + config.AppConfig.ServerPort); err != nil {
		logger.Fatalf("Failed to start server: %v", err)
	}
}
