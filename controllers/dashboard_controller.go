package controller

import (
	"log"
	"time"

	"leadnest/models"
	"leadnest/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type DashboardController struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewDashboardController(db *gorm.DB, logger *log.Logger) *DashboardController {
	return &DashboardController{
		DB:     db,
		Logger: logger,
	}
}

type DashboardStats struct {
	TotalLeads      int64            `json:"total_leads"`
	LeadsByStatus   map[string]int64 `json:"leads_by_status"`
	LeadsByQuality  map[string]int64 `json:"leads_by_quality"`
	FollowUpsDue    int64            `json:"follow_ups_due"`
	OpenTasks       int64            `json:"open_tasks"`
	ActiveSequences int64            `json:"active_sequences"`

	Enrollments struct {
		Active    int64 `json:"active"`
		Completed int64 `json:"completed"`
		Failed    int64 `json:"failed"`
	} `json:"enrollments"`
}

type statusCount struct {
	Key   string
	Count int64
}

// GetDashboardStats returns the summary counters for the dashboard cards.
func (dc *DashboardController) GetDashboardStats(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	stats := DashboardStats{
		LeadsByStatus:  make(map[string]int64),
		LeadsByQuality: make(map[string]int64),
	}

	if err := dc.DB.Model(&models.Lead{}).Where("user_id = ?", user.ID).Count(&stats.TotalLeads).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to count leads", err)
	}

	var byStatus []statusCount
	if err := dc.DB.Model(&models.Lead{}).
		Select("status as key, count(*) as count").
		Where("user_id = ?", user.ID).
		Group("status").
		Scan(&byStatus).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to group leads by status", err)
	}
	for _, row := range byStatus {
		stats.LeadsByStatus[row.Key] = row.Count
	}

	var byQuality []statusCount
	if err := dc.DB.Model(&models.Lead{}).
		Select("quality as key, count(*) as count").
		Where("user_id = ?", user.ID).
		Group("quality").
		Scan(&byQuality).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to group leads by quality", err)
	}
	for _, row := range byQuality {
		stats.LeadsByQuality[row.Key] = row.Count
	}

	endOfDay := time.Now().Truncate(24 * time.Hour).Add(24 * time.Hour)
	dc.DB.Model(&models.Lead{}).
		Where("user_id = ? AND next_follow_up_at IS NOT NULL AND next_follow_up_at <= ?", user.ID, endOfDay).
		Count(&stats.FollowUpsDue)

	dc.DB.Model(&models.LeadTask{}).
		Joins("JOIN leads ON leads.id = lead_tasks.lead_id").
		Where("leads.user_id = ? AND lead_tasks.done = ?", user.ID, false).
		Count(&stats.OpenTasks)

	dc.DB.Model(&models.Sequence{}).
		Where("user_id = ? AND active = ?", user.ID, true).
		Count(&stats.ActiveSequences)

	enrollmentQuery := func(status string) int64 {
		var count int64
		dc.DB.Model(&models.SequenceEnrollment{}).
			Joins("JOIN leads ON leads.id = sequence_enrollments.lead_id").
			Where("leads.user_id = ? AND sequence_enrollments.status = ?", user.ID, status).
			Count(&count)
		return count
	}
	stats.Enrollments.Active = enrollmentQuery(models.EnrollmentActive)
	stats.Enrollments.Completed = enrollmentQuery(models.EnrollmentCompleted)
	stats.Enrollments.Failed = enrollmentQuery(models.EnrollmentFailed)

	return c.JSON(utils.SuccessResponse(stats))
}

// GetRecentActivity returns the latest activity entries across all of the
// user's leads for the dashboard feed.
func (dc *DashboardController) GetRecentActivity(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var activities []models.LeadActivity
	err := dc.DB.
		Joins("JOIN leads ON leads.id = lead_activities.lead_id").
		Where("leads.user_id = ?", user.ID).
		Order("lead_activities.occurred_at DESC").
		Limit(30).
		Find(&activities).Error
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch activity", err)
	}

	return c.JSON(utils.SuccessResponse(activities))
}
