package controller

import (
	"log"
	"strconv"

	"leadnest/automation"
	"leadnest/models"
	"leadnest/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type SequenceController struct {
	DB       *gorm.DB
	Logger   *log.Logger
	Triggers *automation.TriggerEvaluator
}

func NewSequenceController(db *gorm.DB, logger *log.Logger, triggers *automation.TriggerEvaluator) *SequenceController {
	return &SequenceController{
		DB:       db,
		Logger:   logger,
		Triggers: triggers,
	}
}

type stepInput struct {
	Type            string `json:"type" validate:"required,oneof=delay email whatsapp task"`
	DelayHours      int    `json:"delay_hours" validate:"omitempty,gte=0"`
	TemplateID      *uint  `json:"template_id"`
	TaskTitle       string `json:"task_title" validate:"omitempty,max=200"`
	TaskDescription string `json:"task_description"`
}

type sequenceInput struct {
	Name           string      `json:"name" validate:"required,max=200"`
	Description    string      `json:"description"`
	TriggerType    string      `json:"trigger_type" validate:"required,oneof=new_lead status_change inactivity_days quality_change manual"`
	MatchStatus    *string     `json:"match_status"`
	MatchQuality   *string     `json:"match_quality"`
	MatchSource    *string     `json:"match_source"`
	InactivityDays int         `json:"inactivity_days" validate:"omitempty,gte=0"`
	Steps          []stepInput `json:"steps" validate:"required,min=1,dive"`
}

func (si *sequenceInput) validateConditions() string {
	if si.MatchStatus != nil && !models.ValidStatus(*si.MatchStatus) {
		return "Unknown status in trigger conditions"
	}
	if si.MatchQuality != nil && !models.ValidQuality(*si.MatchQuality) {
		return "Unknown quality in trigger conditions"
	}
	if si.TriggerType == models.TriggerInactivityDays && si.InactivityDays <= 0 {
		return "inactivity_days trigger requires inactivity_days > 0"
	}
	for _, step := range si.Steps {
		switch step.Type {
		case models.StepDelay:
			if step.DelayHours <= 0 {
				return "delay steps require delay_hours > 0"
			}
		case models.StepEmail, models.StepWhatsApp:
			if step.TemplateID == nil {
				return step.Type + " steps require a template_id"
			}
		}
	}
	return ""
}

// CreateSequence creates a sequence with its ordered steps. Step order is
// the order given in the request and is fixed until the next edit.
func (sc *SequenceController) CreateSequence(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var input sequenceInput
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}
	if msg := input.validateConditions(); msg != "" {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, msg, nil)
	}

	sequence := models.Sequence{
		UserID:         user.ID,
		Name:           input.Name,
		Description:    input.Description,
		TriggerType:    input.TriggerType,
		MatchStatus:    input.MatchStatus,
		MatchQuality:   input.MatchQuality,
		MatchSource:    input.MatchSource,
		InactivityDays: input.InactivityDays,
	}
	for i, step := range input.Steps {
		sequence.Steps = append(sequence.Steps, models.SequenceStep{
			Position:        i,
			Type:            step.Type,
			DelayHours:      step.DelayHours,
			TemplateID:      step.TemplateID,
			TaskTitle:       step.TaskTitle,
			TaskDescription: step.TaskDescription,
		})
	}

	if err := sc.DB.Create(&sequence).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create sequence", err)
	}

	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(sequence))
}

// GetSequences lists the user's sequences with steps.
func (sc *SequenceController) GetSequences(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var sequences []models.Sequence
	err := sc.DB.
		Preload("Steps", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Where("user_id = ?", user.ID).
		Order("created_at DESC").
		Find(&sequences).Error
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch sequences", err)
	}

	return c.JSON(utils.SuccessResponse(sequences))
}

// GetSequence returns one sequence with steps.
func (sc *SequenceController) GetSequence(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var sequence models.Sequence
	err := sc.DB.
		Preload("Steps", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Where("id = ? AND user_id = ?", c.Params("id"), user.ID).
		First(&sequence).Error
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Sequence not found", nil)
	}

	return c.JSON(utils.SuccessResponse(sequence))
}

// UpdateSequence replaces the sequence definition and its steps. Existing
// enrollments keep their cursor; they will read the new step list on their
// next pass.
func (sc *SequenceController) UpdateSequence(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var sequence models.Sequence
	if err := sc.DB.Where("id = ? AND user_id = ?", c.Params("id"), user.ID).First(&sequence).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Sequence not found", nil)
	}

	var input sequenceInput
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}
	if msg := input.validateConditions(); msg != "" {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, msg, nil)
	}

	err := sc.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&sequence).Updates(map[string]interface{}{
			"name":            input.Name,
			"description":     input.Description,
			"trigger_type":    input.TriggerType,
			"match_status":    input.MatchStatus,
			"match_quality":   input.MatchQuality,
			"match_source":    input.MatchSource,
			"inactivity_days": input.InactivityDays,
		}).Error; err != nil {
			return err
		}

		if err := tx.Where("sequence_id = ?", sequence.ID).Delete(&models.SequenceStep{}).Error; err != nil {
			return err
		}
		for i, step := range input.Steps {
			newStep := models.SequenceStep{
				SequenceID:      sequence.ID,
				Position:        i,
				Type:            step.Type,
				DelayHours:      step.DelayHours,
				TemplateID:      step.TemplateID,
				TaskTitle:       step.TaskTitle,
				TaskDescription: step.TaskDescription,
			}
			if err := tx.Create(&newStep).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update sequence", err)
	}

	return sc.GetSequence(c)
}

// SetSequenceActive toggles whether the sequence accepts new enrollments and
// is considered by the trigger evaluator.
func (sc *SequenceController) SetSequenceActive(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var input struct {
		Active bool `json:"active"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}

	res := sc.DB.Model(&models.Sequence{}).
		Where("id = ? AND user_id = ?", c.Params("id"), user.ID).
		Update("active", input.Active)
	if res.Error != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update sequence", res.Error)
	}
	if res.RowsAffected == 0 {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Sequence not found", nil)
	}

	return c.JSON(utils.SuccessResponse(fiber.Map{"active": input.Active}))
}

// EnrollLead manually enrolls a lead into a sequence (manual trigger path).
// An existing enrollment for the pair is reported as a conflict.
func (sc *SequenceController) EnrollLead(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	sequenceID := utils.ParseUint(c.Params("id"))

	var input struct {
		LeadID uint `json:"lead_id" validate:"required"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	var sequence models.Sequence
	if err := sc.DB.Where("id = ? AND user_id = ? AND active = ?", sequenceID, user.ID, true).First(&sequence).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Active sequence not found", nil)
	}

	var lead models.Lead
	if err := sc.DB.Where("id = ? AND user_id = ?", input.LeadID, user.ID).First(&lead).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Lead not found", nil)
	}

	enrollment, err := sc.Triggers.Enroll(c.Context(), &lead, &sequence)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to enroll lead", err)
	}
	if enrollment == nil {
		return utils.ErrorResponse(c, fiber.StatusConflict, "Lead is already enrolled in this sequence", nil)
	}

	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(enrollment))
}

// GetEnrollments lists a sequence's enrollments, optionally by status.
func (sc *SequenceController) GetEnrollments(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var sequence models.Sequence
	if err := sc.DB.Where("id = ? AND user_id = ?", c.Params("id"), user.ID).First(&sequence).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Sequence not found", nil)
	}

	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", "50"))
	if limit > 200 {
		limit = 200
	}

	query := sc.DB.Where("sequence_id = ?", sequence.ID)
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Model(&models.SequenceEnrollment{}).Count(&total).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to count enrollments", err)
	}

	var enrollments []models.SequenceEnrollment
	if err := query.Order("next_action_at ASC").Limit(limit).Offset((page - 1) * limit).Find(&enrollments).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch enrollments", err)
	}

	return c.JSON(utils.PaginatedResponse{
		Data:  enrollments,
		Total: total,
		Page:  page,
		Limit: limit,
	})
}
