package tasks

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"schoolpay_echo/internal/models"
	"schoolpay_echo/internal/services"
)

// FeeReminderTaskDef is the periodic sweep over outstanding obligations. It is
// read-only with respect to the ledger: it sends one reminder per obligation
// and never mutates amounts or status.
type FeeReminderTaskDef struct{}

// TaskID returns the unique identifier for this task
func (t *FeeReminderTaskDef) TaskID() string {
	return "fee_reminder_sweep"
}

// defaultReminderRule runs the sweep every morning
const defaultReminderRule = "FREQ=DAILY;BYHOUR=8;BYMINUTE=0"

// EnsureScheduled seeds the recurring sweep task if none exists yet. Called by
// the worker on startup so a fresh deployment reminds without manual setup.
func (t *FeeReminderTaskDef) EnsureScheduled(db *gorm.DB) error {
	var existing models.ScheduledTask
	err := db.Where("task_name = ? AND status IN ?", t.TaskID(),
		[]models.ScheduledTaskStatus{models.ScheduledTaskStatusActive}).
		First(&existing).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	rule := defaultReminderRule
	task, err := BuildScheduledTask(t.TaskID(), map[string]interface{}{}, time.Now(),
		&rule, models.ScheduledTaskTypeRecurring, 1)
	if err != nil {
		return err
	}
	return db.Create(task).Error
}

// HandleExecution runs one sweep: every obligation still owing gets one
// reminder through the guardian's preferred channel. Per-item failures are
// counted, not retried; the next scheduled sweep picks them up.
func (t *FeeReminderTaskDef) HandleExecution(ctx context.Context, db *gorm.DB, args map[string]interface{}) (map[string]interface{}, error) {
	var obligations []models.Obligation
	err := db.Preload("Student").Preload("FeeType").
		Where("status IN ?", []models.ObligationStatus{
			models.ObligationStatusPending,
			models.ObligationStatusPartial,
		}).
		Find(&obligations).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch outstanding obligations: %w", err)
	}

	emailService := services.NewEmailService()
	wahaService := services.NewWahaService()

	total := len(obligations)
	sentCount := 0
	skippedCount := 0
	failureCount := 0
	var failures []string

	for _, ob := range obligations {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		// Amounts can drift from status only through a bug; skip rather
		// than nag someone who owes nothing
		if !ob.Balance().GreaterThan(decimal.Zero) {
			skippedCount++
			continue
		}

		var pref models.NotifPreference
		channel := models.NotificationChannelEmail
		if err := db.Where("student_id = ?", ob.StudentID).First(&pref).Error; err == nil {
			channel = pref.Channel
		}

		var sendErr error
		switch channel {
		case models.NotificationChannelNone:
			log.Printf("Reminder disabled for student %d, skipping obligation %d", ob.StudentID, ob.ID)
			skippedCount++
			continue
		case models.NotificationChannelWhatsapp:
			sendErr = sendWhatsappReminder(wahaService, ob, pref)
		default:
			sendErr = sendEmailReminder(emailService, ob)
		}

		if sendErr != nil {
			log.Printf("Failed to send reminder for obligation %d via %s: %v", ob.ID, channel, sendErr)
			failureCount++
			failures = append(failures, fmt.Sprintf("obligation %d: %v", ob.ID, sendErr))
			continue
		}
		sentCount++
	}

	result := map[string]interface{}{
		"total":   total,
		"sent":    sentCount,
		"skipped": skippedCount,
		"failure": failureCount,
	}
	if failureCount > 0 {
		result["errors"] = failures
	}

	return result, nil
}

func sendEmailReminder(emailService *services.EmailService, ob models.Obligation) error {
	to := ob.Student.ContactEmail()
	if to == "" {
		return fmt.Errorf("no contact email for student %d", ob.StudentID)
	}

	guardianName := ob.Student.GuardianName
	if guardianName == "" {
		guardianName = "Parent/Guardian"
	}

	return emailService.SendReminder(to, services.ReminderEmailData{
		GuardianName: guardianName,
		StudentName:  ob.Student.Name,
		FeeTypeName:  ob.FeeType.Name,
		Session:      ob.Session,
		Term:         ob.Term,
		TotalAmount:  ob.TotalAmount.StringFixed(2),
		Balance:      ob.Balance().StringFixed(2),
	})
}

func sendWhatsappReminder(wahaService *services.WahaService, ob models.Obligation, pref models.NotifPreference) error {
	var chatID string
	if pref.WhatsappTargetType == models.WhatsappTargetTypeGroup {
		chatID = pref.WhatsappGroupID
		if chatID == "" {
			return fmt.Errorf("whatsapp group ID is empty for student %d", ob.StudentID)
		}
	} else {
		chatID = ob.Student.GuardianPhone
		if chatID == "" {
			return fmt.Errorf("no guardian phone for student %d", ob.StudentID)
		}
	}

	msg := fmt.Sprintf("Fee reminder for %s: %s (%s, %s) has an outstanding balance of %s out of %s. Kindly complete the payment.",
		ob.Student.Name, ob.FeeType.Name, ob.Session, ob.Term,
		ob.Balance().StringFixed(2), ob.TotalAmount.StringFixed(2))

	return wahaService.SendMessage(chatID, msg)
}

// FeeReminderTask is the singleton instance of FeeReminderTaskDef
var FeeReminderTask = &FeeReminderTaskDef{}
