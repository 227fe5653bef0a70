package notificator

import (
	"context"
	"fmt"
	"html"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/core-coin/vaultminter/pkg/logger"
)

const sendPath = "/v3/mail/send"

type EmailNotificator struct {
	logger *logger.Logger

	apiKey string
	from   string
	to     string
	// host overrides the SendGrid API host, empty for the default.
	host string
}

func NewEmailNotificator(logger *logger.Logger, apiKey, from, to string) (*EmailNotificator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("sendgrid api key is empty")
	}
	if from == "" || to == "" {
		return nil, fmt.Errorf("alert email sender and recipient are required")
	}
	return &EmailNotificator{logger: logger, apiKey: apiKey, from: from, to: to}, nil
}

// withHost points the notificator at another SendGrid-compatible host.
func (e *EmailNotificator) withHost(host string) *EmailNotificator {
	e.host = host
	return e
}

func (e *EmailNotificator) SendNotification(ctx context.Context, subject, message string) error {
	email := mail.NewSingleEmail(
		mail.NewEmail("Vault Minter", e.from),
		subject,
		mail.NewEmail("", e.to),
		message,
		fmt.Sprintf("<pre>%s</pre>", html.EscapeString(message)),
	)

	client := sendgrid.NewSendClient(e.apiKey)
	if e.host != "" {
		client.BaseURL = e.host + sendPath
	}

	response, err := client.SendWithContext(ctx, email)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	if response.StatusCode >= 400 {
		return fmt.Errorf("sendgrid send failed: status=%d, body=%s", response.StatusCode, response.Body)
	}

	e.logger.Debugw("Alert email sent", "status", response.StatusCode, "to", e.to)
	return nil
}
