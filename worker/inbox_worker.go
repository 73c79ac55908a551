package worker

import (
	"context"
	"log"
	"strings"
	"time"

	"leadnest/automation"
	"leadnest/config"
	"leadnest/models"
	"leadnest/utils"

	"github.com/getsentry/sentry-go"
	"gorm.io/gorm"
)

// InboxWorker polls the shared lead inbox and turns unseen messages into
// leads. Extraction is purely structural: envelope headers plus labeled
// "Phone:" lines in the body, the format portal notification emails use.
type InboxWorker struct {
	db       *gorm.DB
	cfg      config.InboxConfig
	triggers *automation.TriggerEvaluator
	logger   *log.Logger
}

func NewInboxWorker(db *gorm.DB, cfg config.InboxConfig, triggers *automation.TriggerEvaluator, logger *log.Logger) *InboxWorker {
	return &InboxWorker{
		db:       db,
		cfg:      cfg,
		triggers: triggers,
		logger:   logger,
	}
}

// Run fetches unseen inbox messages and ingests the new ones.
func (iw *InboxWorker) Run() {
	messages, err := utils.FetchUnseenMessages(utils.InboxConfig{
		Host:     iw.cfg.Host,
		Port:     iw.cfg.Port,
		Username: iw.cfg.Username,
		Password: iw.cfg.Password,
		Mailbox:  iw.cfg.Mailbox,
		UseTLS:   iw.cfg.UseTLS,
	})
	if err != nil {
		iw.logger.Printf("Inbox fetch failed: %v", err)
		sentry.CaptureException(err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	ingested := 0
	for _, msg := range messages {
		created, err := iw.ingestMessage(ctx, msg)
		if err != nil {
			iw.logger.Printf("Failed to ingest message %s: %v", msg.MessageID, err)
			continue
		}
		if created {
			ingested++
		}
	}

	if ingested > 0 {
		iw.logger.Printf("Inbox poll created %d leads", ingested)
	}
}

// ingestMessage creates a lead for one inbox message unless the message was
// already processed. Returns true when a lead was created.
func (iw *InboxWorker) ingestMessage(ctx context.Context, msg utils.InboundMessage) (bool, error) {
	if msg.MessageID == "" || msg.FromEmail == "" {
		return false, nil
	}

	var count int64
	if err := iw.db.WithContext(ctx).Model(&models.InboundEmail{}).
		Where("message_id = ?", msg.MessageID).Count(&count).Error; err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}

	name := msg.FromName
	if name == "" {
		// Fall back to the mailbox part of the address.
		if at := strings.Index(msg.FromEmail, "@"); at > 0 {
			name = msg.FromEmail[:at]
		} else {
			name = msg.FromEmail
		}
	}

	lead := models.Lead{
		Name:    name,
		Email:   strings.ToLower(msg.FromEmail),
		Phone:   utils.ExtractLabeledField(msg.Body, "Phone", "Tel", "Telefon"),
		Status:  models.LeadStatusNew,
		Quality: models.LeadQualityWarm,
		Source:  "email",
	}
	if err := iw.db.WithContext(ctx).Create(&lead).Error; err != nil {
		return false, err
	}

	record := models.InboundEmail{
		MessageID:  msg.MessageID,
		FromName:   msg.FromName,
		FromEmail:  msg.FromEmail,
		Subject:    msg.Subject,
		LeadID:     &lead.ID,
		ReceivedAt: msg.ReceivedAt,
	}
	if err := iw.db.WithContext(ctx).Create(&record).Error; err != nil {
		iw.logger.Printf("Failed to record inbound email %s: %v", msg.MessageID, err)
	}

	activity := models.LeadActivity{
		LeadID:       lead.ID,
		ActivityType: "note",
		Content:      "Lead created from inbound email: " + msg.Subject,
		OccurredAt:   msg.ReceivedAt,
	}
	if err := iw.db.WithContext(ctx).Create(&activity).Error; err != nil {
		iw.logger.Printf("Failed to record ingestion activity for lead %d: %v", lead.ID, err)
	}

	if _, err := iw.triggers.HandleEvent(ctx, &lead, models.TriggerNewLead); err != nil {
		iw.logger.Printf("new_lead trigger failed for ingested lead %d: %v", lead.ID, err)
	}

	return true, nil
}
