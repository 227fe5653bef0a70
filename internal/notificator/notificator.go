package notificator

import (
	"context"
	"runtime/debug"

	"github.com/core-coin/vaultminter/internal/models"
	"github.com/core-coin/vaultminter/pkg/logger"
)

// Notificator fans alerts out to every configured channel. Either channel may be nil.
type Notificator struct {
	logger *logger.Logger

	TelegramNotificator *TelegramNotificator
	EmailNotificator    *EmailNotificator
}

var _ models.AlertService = (*Notificator)(nil)

func NewNotificator(logger *logger.Logger, telNotif *TelegramNotificator, emailNotif *EmailNotificator) *Notificator {
	return &Notificator{logger: logger, TelegramNotificator: telNotif, EmailNotificator: emailNotif}
}

// safeCall runs a function with panic recovery (synchronous, no goroutine spawning)
func (n *Notificator) safeCall(fn func(), context string) {
	defer func() {
		if r := recover(); r != nil {
			n.logger.Errorw("Function panicked",
				"context", context,
				"panic", r,
				"stack", string(debug.Stack()))
		}
	}()
	fn()
}

// SendAlert logs the alert and delivers it to the configured channels.
// Delivery failures are logged, never returned.
func (n *Notificator) SendAlert(ctx context.Context, alert *models.Alert) {
	if alert == nil {
		return
	}
	message := alert.String()
	n.logger.Warnw("Operator alert", "title", alert.Title, "job", alert.JobID, "subject", alert.Subject,
		"mint_address", alert.MintAddress, "error", alert.Error)

	if n.TelegramNotificator != nil {
		n.safeCall(func() {
			if err := n.TelegramNotificator.SendNotification(ctx, message); err != nil {
				n.logger.Errorw("Failed to send telegram alert", "error", err)
			}
		}, "telegramAlert")
	}
	if n.EmailNotificator != nil {
		n.safeCall(func() {
			if err := n.EmailNotificator.SendNotification(ctx, "[vaultminter] "+alert.Title, message); err != nil {
				n.logger.Errorw("Failed to send email alert", "error", err)
			}
		}, "emailAlert")
	}
}
