package routes

import (
	"log"
	"os"

	"leadnest/automation"
	controller "leadnest/controllers"
	"leadnest/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/websocket/v2"
	"gorm.io/gorm"
)

// Deps carries the shared automation components into route setup so route
// handlers and workers use the same engine and trigger evaluator.
type Deps struct {
	DB       *gorm.DB
	Engine   *automation.Engine
	Triggers *automation.TriggerEvaluator
}

func SetupRoutes(app *fiber.App, deps Deps) {
	requestLog := logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	})

	// Auth routes (public)
	auth := app.Group("/auth", requestLog)
	auth.Post("/register", controller.Register)
	auth.Post("/login", controller.Login)
	auth.Get("/me", middleware.Protected(), controller.GetCurrentUser)

	// Lead routes (protected)
	leadController := controller.NewLeadController(deps.DB, log.New(os.Stdout, "LEAD: ", log.LstdFlags), deps.Triggers)
	leads := app.Group("/leads", requestLog, middleware.Protected())
	leads.Post("/", leadController.CreateLead)
	leads.Get("/", leadController.GetLeads)
	leads.Get("/:id", leadController.GetLead)
	leads.Patch("/:id", leadController.UpdateLead)
	leads.Delete("/:id", leadController.DeleteLead)
	leads.Post("/:id/notes", leadController.AddNote)

	// Template routes (protected)
	templateController := controller.NewTemplateController(deps.DB, log.New(os.Stdout, "TEMPLATE: ", log.LstdFlags))
	templates := app.Group("/templates", requestLog, middleware.Protected())
	templates.Post("/", templateController.CreateTemplate)
	templates.Get("/", templateController.GetTemplates)
	templates.Put("/:id", templateController.UpdateTemplate)
	templates.Delete("/:id", templateController.DeleteTemplate)

	// Sequence routes (protected)
	sequenceController := controller.NewSequenceController(deps.DB, log.New(os.Stdout, "SEQUENCE: ", log.LstdFlags), deps.Triggers)
	sequences := app.Group("/sequences", requestLog, middleware.Protected())
	sequences.Post("/", sequenceController.CreateSequence)
	sequences.Get("/", sequenceController.GetSequences)
	sequences.Get("/:id", sequenceController.GetSequence)
	sequences.Put("/:id", sequenceController.UpdateSequence)
	sequences.Patch("/:id/active", sequenceController.SetSequenceActive)
	sequences.Post("/:id/enroll", sequenceController.EnrollLead)
	sequences.Get("/:id/enrollments", sequenceController.GetEnrollments)

	// Automation routes
	automationController := controller.NewAutomationController(deps.DB, log.New(os.Stdout, "AUTOMATION: ", log.LstdFlags), deps.Engine)
	auto := app.Group("/automation", requestLog)
	// Cron entry point: shared secret, not JWT
	auto.Post("/run", middleware.AutomationRateLimiter(), middleware.CronSecret(), automationController.RunAutomation)
	auto.Get("/logs", middleware.Protected(), automationController.GetAutomationLogs)
	auto.Get("/ws", websocket.New(controller.HandleAutomationWS))

	// Dashboard routes (protected)
	dashboardController := controller.NewDashboardController(deps.DB, log.New(os.Stdout, "DASHBOARD: ", log.LstdFlags))
	dashboard := app.Group("/dashboard", requestLog, middleware.Protected())
	dashboard.Get("/stats", dashboardController.GetDashboardStats)
	dashboard.Get("/activity", dashboardController.GetRecentActivity)
}
