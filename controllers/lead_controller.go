package controller

import (
	"log"
	"strconv"
	"strings"
	"time"

	"leadnest/automation"
	"leadnest/models"
	"leadnest/utils"

	"github.com/badoux/checkmail"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type LeadController struct {
	DB       *gorm.DB
	Logger   *log.Logger
	Triggers *automation.TriggerEvaluator
}

func NewLeadController(db *gorm.DB, logger *log.Logger, triggers *automation.TriggerEvaluator) *LeadController {
	return &LeadController{
		DB:       db,
		Logger:   logger,
		Triggers: triggers,
	}
}

// CreateLead creates a new lead and fires the new_lead trigger.
func (lc *LeadController) CreateLead(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var input struct {
		Name    string `json:"name" validate:"required,max=200"`
		Email   string `json:"email" validate:"omitempty,email"`
		Phone   string `json:"phone" validate:"omitempty,max=30"`
		Quality string `json:"quality" validate:"omitempty,oneof=HOT WARM COLD"`
		Score   int    `json:"score" validate:"omitempty,gte=0"`
		Source  string `json:"source" validate:"omitempty,max=50"`
	}

	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	if input.Email != "" {
		if err := checkmail.ValidateFormat(input.Email); err != nil {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid email address", err)
		}
	}

	quality := input.Quality
	if quality == "" {
		quality = models.LeadQualityWarm
	}
	source := input.Source
	if source == "" {
		source = "manual"
	}

	lead := models.Lead{
		UserID:  user.ID,
		Name:    input.Name,
		Email:   strings.ToLower(input.Email),
		Phone:   input.Phone,
		Status:  models.LeadStatusNew,
		Quality: quality,
		Score:   input.Score,
		Source:  source,
	}

	if err := lc.DB.Create(&lead).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create lead", err)
	}

	if _, err := lc.Triggers.HandleEvent(c.Context(), &lead, models.TriggerNewLead); err != nil {
		lc.Logger.Printf("new_lead trigger failed for lead %d: %v", lead.ID, err)
	}

	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(lead))
}

// GetLeads returns a paginated list of leads with filters.
func (lc *LeadController) GetLeads(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", "20"))
	if limit > 100 {
		limit = 100
	}
	offset := (page - 1) * limit

	query := lc.DB.Where("user_id = ?", user.ID)

	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if quality := c.Query("quality"); quality != "" {
		query = query.Where("quality = ?", quality)
	}
	if search := c.Query("search"); search != "" {
		query = query.Where("name ILIKE ? OR email ILIKE ?", "%"+search+"%", "%"+search+"%")
	}

	var total int64
	if err := query.Model(&models.Lead{}).Count(&total).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to count leads", err)
	}

	var leads []models.Lead
	if err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&leads).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch leads", err)
	}

	return c.JSON(utils.PaginatedResponse{
		Data:  leads,
		Total: total,
		Page:  page,
		Limit: limit,
	})
}

// GetLead returns one lead with its activity feed, tasks and enrollments.
func (lc *LeadController) GetLead(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var lead models.Lead
	err := lc.DB.
		Preload("Activities", func(db *gorm.DB) *gorm.DB {
			return db.Order("occurred_at DESC").Limit(50)
		}).
		Preload("Tasks").
		Preload("Enrollments").
		Where("id = ? AND user_id = ?", c.Params("id"), user.ID).
		First(&lead).Error
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Lead not found", nil)
	}

	return c.JSON(utils.SuccessResponse(lead))
}

// UpdateLead patches lead fields. Status and quality changes fire their
// automation triggers after the row is saved.
func (lc *LeadController) UpdateLead(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var lead models.Lead
	if err := lc.DB.Where("id = ? AND user_id = ?", c.Params("id"), user.ID).First(&lead).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Lead not found", nil)
	}

	var input struct {
		Name           *string    `json:"name" validate:"omitempty,max=200"`
		Email          *string    `json:"email" validate:"omitempty,email"`
		Phone          *string    `json:"phone" validate:"omitempty,max=30"`
		Status         *string    `json:"status"`
		Quality        *string    `json:"quality"`
		Score          *int       `json:"score" validate:"omitempty,gte=0"`
		NextFollowUpAt *time.Time `json:"next_follow_up_at"`
	}

	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	statusChanged := false
	qualityChanged := false
	updates := map[string]interface{}{}

	if input.Name != nil {
		updates["name"] = *input.Name
	}
	if input.Email != nil {
		updates["email"] = strings.ToLower(*input.Email)
	}
	if input.Phone != nil {
		updates["phone"] = *input.Phone
	}
	if input.Status != nil {
		if !models.ValidStatus(*input.Status) {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, "Unknown lead status", nil)
		}
		statusChanged = *input.Status != lead.Status
		updates["status"] = *input.Status
	}
	if input.Quality != nil {
		if !models.ValidQuality(*input.Quality) {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, "Unknown lead quality", nil)
		}
		qualityChanged = *input.Quality != lead.Quality
		updates["quality"] = *input.Quality
	}
	if input.Score != nil {
		updates["score"] = *input.Score
	}
	if input.NextFollowUpAt != nil {
		updates["next_follow_up_at"] = *input.NextFollowUpAt
	}

	if len(updates) == 0 {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "No fields to update", nil)
	}

	if err := lc.DB.Model(&lead).Updates(updates).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update lead", err)
	}

	if input.Status != nil {
		lead.Status = *input.Status
	}
	if input.Quality != nil {
		lead.Quality = *input.Quality
	}

	if statusChanged {
		lc.recordChange(&lead, "status_change", lead.Status)
		if _, err := lc.Triggers.HandleEvent(c.Context(), &lead, models.TriggerStatusChange); err != nil {
			lc.Logger.Printf("status_change trigger failed for lead %d: %v", lead.ID, err)
		}
	}
	if qualityChanged {
		lc.recordChange(&lead, "quality_change", lead.Quality)
		if _, err := lc.Triggers.HandleEvent(c.Context(), &lead, models.TriggerQualityChange); err != nil {
			lc.Logger.Printf("quality_change trigger failed for lead %d: %v", lead.ID, err)
		}
	}

	return c.JSON(utils.SuccessResponse(lead))
}

// DeleteLead soft-deletes a lead. GORM's soft delete keeps the row out of
// all automation selection and listings from this point on.
func (lc *LeadController) DeleteLead(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	res := lc.DB.Where("id = ? AND user_id = ?", c.Params("id"), user.ID).Delete(&models.Lead{})
	if res.Error != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete lead", res.Error)
	}
	if res.RowsAffected == 0 {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Lead not found", nil)
	}

	return c.JSON(utils.SuccessResponse(fiber.Map{"deleted": true}))
}

// AddNote appends a note activity to the lead's feed.
func (lc *LeadController) AddNote(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var lead models.Lead
	if err := lc.DB.Where("id = ? AND user_id = ?", c.Params("id"), user.ID).First(&lead).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Lead not found", nil)
	}

	var input struct {
		Content string `json:"content" validate:"required"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	activity := models.LeadActivity{
		LeadID:       lead.ID,
		ActivityType: "note",
		Content:      input.Content,
		OccurredAt:   time.Now(),
	}
	if err := lc.DB.Create(&activity).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create note", err)
	}

	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(activity))
}

func (lc *LeadController) recordChange(lead *models.Lead, changeType, newValue string) {
	activity := models.LeadActivity{
		LeadID:       lead.ID,
		ActivityType: changeType,
		Content:      "Changed to " + newValue,
		OccurredAt:   time.Now(),
	}
	if err := lc.DB.Create(&activity).Error; err != nil {
		lc.Logger.Printf("Failed to record %s activity for lead %d: %v", changeType, lead.ID, err)
	}
}
