package controller

import (
	"log"
	"strconv"
	"time"

	"leadnest/automation"
	"leadnest/models"
	"leadnest/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type AutomationController struct {
	DB     *gorm.DB
	Logger *log.Logger
	Engine *automation.Engine
}

func NewAutomationController(db *gorm.DB, logger *log.Logger, engine *automation.Engine) *AutomationController {
	return &AutomationController{
		DB:     db,
		Logger: logger,
		Engine: engine,
	}
}

// RunAutomation is the entry point for the external periodic invoker. It is
// guarded by the cron-secret middleware and returns the structured run
// summary. Per-enrollment failures are reported inside the summary; only a
// failed due fetch is a hard error.
func (ac *AutomationController) RunAutomation(c *fiber.Ctx) error {
	summary, err := ac.Engine.RunDue(c.Context(), time.Now())
	if err != nil {
		ac.Logger.Printf("Automation run failed: %v", err)
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Automation run failed", err)
	}

	PublishRunSummary(*summary)

	return c.JSON(utils.SuccessResponse(summary))
}

// GetAutomationLogs returns recent automation log entries, optionally for a
// single enrollment.
func (ac *AutomationController) GetAutomationLogs(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", "50"))
	if limit > 200 {
		limit = 200
	}

	// Scope logs to the user's leads.
	query := ac.DB.Model(&models.AutomationLog{}).
		Joins("JOIN leads ON leads.id = automation_logs.lead_id").
		Where("leads.user_id = ?", user.ID)

	if enrollmentID := c.Query("enrollment_id"); enrollmentID != "" {
		query = query.Where("automation_logs.enrollment_id = ?", enrollmentID)
	}
	if failedOnly := c.Query("failed"); failedOnly == "true" {
		query = query.Where("automation_logs.success = ?", false)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to count logs", err)
	}

	var logs []models.AutomationLog
	if err := query.Order("automation_logs.executed_at DESC").
		Limit(limit).Offset((page - 1) * limit).
		Find(&logs).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch logs", err)
	}

	return c.JSON(utils.PaginatedResponse{
		Data:  logs,
		Total: total,
		Page:  page,
		Limit: limit,
	})
}
