package worker

import (
	"context"
	"time"

	"collabforcause/models"
	"collabforcause/utils"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	notificationBatchSize   = 50
	maxNotificationAttempts = 3
)

// NotificationWorker delivers pending notification rows by e-mail.
type NotificationWorker struct {
	DB       *gorm.DB
	Mailer   utils.Mailer
	Logger   *logrus.Logger
	Interval time.Duration
	now      func() time.Time
}

func NewNotificationWorker(db *gorm.DB, mailer utils.Mailer, logger *logrus.Logger, interval time.Duration) *NotificationWorker {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &NotificationWorker{
		DB:       db,
		Mailer:   mailer,
		Logger:   logger,
		Interval: interval,
		now:      time.Now,
	}
}

func (nw *NotificationWorker) Start(ctx context.Context) {
	log := nw.Logger.WithField("operation", "worker.Notifications")
	log.WithField("interval", nw.Interval.String()).Info("notification worker started")

	ticker := time.NewTicker(nw.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("notification worker shutting down")
			return
		case <-ticker.C:
			if _, err := nw.ProcessPending(ctx); err != nil {
				log.WithError(err).Error("failed to process notifications")
			}
		}
	}
}

// ProcessPending sends one batch and returns how many were delivered.
func (nw *NotificationWorker) ProcessPending(ctx context.Context) (int, error) {
	var pending []models.Notification
	err := nw.DB.WithContext(ctx).
		Where("status = ?", models.NotificationPending).
		Preload("User").
		Order("id ASC").
		Limit(notificationBatchSize).
		Find(&pending).Error
	if err != nil {
		return 0, err
	}

	sent := 0
	for i := range pending {
		n := &pending[i]
		if ctx.Err() != nil {
			return sent, ctx.Err()
		}
		if n.User == nil || n.User.Email == "" {
			nw.markFailed(ctx, n, "recipient not found", maxNotificationAttempts)
			continue
		}
		if err := nw.Mailer.Send(n.User.Email, n.Subject, n.Body); err != nil {
			nw.markFailed(ctx, n, err.Error(), n.Attempts+1)
			continue
		}

		now := nw.now()
		if err := nw.DB.WithContext(ctx).Model(&models.Notification{}).Where("id = ?", n.ID).Updates(map[string]interface{}{
			"status":   models.NotificationSent,
			"attempts": n.Attempts + 1,
			"sent_at":  now,
		}).Error; err != nil {
			return sent, err
		}
		sent++
	}

	if len(pending) > 0 {
		utils.LogEvent("notifications_processed", map[string]interface{}{
			"batch": len(pending),
			"sent":  sent,
		})
	}
	return sent, nil
}

// markFailed records a failed attempt. The row stays pending until it has
// used up its attempts.
func (nw *NotificationWorker) markFailed(ctx context.Context, n *models.Notification, reason string, attempts int) {
	status := models.NotificationPending
	if attempts >= maxNotificationAttempts {
		status = models.NotificationFailed
	}
	err := nw.DB.WithContext(ctx).Model(&models.Notification{}).Where("id = ?", n.ID).Updates(map[string]interface{}{
		"status":     status,
		"attempts":   attempts,
		"last_error": reason,
	}).Error
	if err != nil {
		nw.Logger.WithError(err).WithField("notification_id", n.ID).Error("failed to record notification failure")
		return
	}
	nw.Logger.WithFields(logrus.Fields{
		"notification_id": n.ID,
		"attempts":        attempts,
		"status":          status,
	}).Warn("notification delivery failed")
}
