// internal/notify/notifier.go

// Package notify delivers completion notifications for finished blueprints.
// Delivery is best-effort: a failed notification never fails the build that
// triggered it.
package notify

import (
	"context"
	"fmt"

	"blueprint-engine/internal/common/config"
	"blueprint-engine/internal/common/logger"
	"blueprint-engine/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	sestypes "github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

type EmailSender interface {
	SendEmail(ctx context.Context, input *ses.SendEmailInput) (*ses.SendEmailOutput, error)
}

type SMSSender interface {
	Publish(ctx context.Context, input *sns.PublishInput) (*sns.PublishOutput, error)
}

type Notifier struct {
	email  EmailSender
	sms    SMSSender
	cfg    config.NotificationConfig
	logger logger.Logger
}

func New(email EmailSender, sms SMSSender, cfg config.NotificationConfig, log logger.Logger) *Notifier {
	return &Notifier{
		email:  email,
		sms:    sms,
		cfg:    cfg,
		logger: log.WithFields(map[string]interface{}{"component": "notifier"}),
	}
}

// BlueprintReady notifies the targets named in the build options that their
// blueprint finished.
func (n *Notifier) BlueprintReady(ctx context.Context, bp *models.Blueprint, opts models.BuildOptions) {
	if opts.NotifyEmail != "" {
		n.sendEmail(ctx, bp, opts.NotifyEmail)
	}
	if opts.NotifyPhone != "" {
		n.sendSMS(ctx, bp, opts.NotifyPhone)
	}
}

func (n *Notifier) sendEmail(ctx context.Context, bp *models.Blueprint, to string) {
	if !n.cfg.Email.Enabled || n.email == nil {
		n.logger.Debug("email notifications disabled, skipping", map[string]interface{}{"blueprintId": bp.ID})
		return
	}

	subject := fmt.Sprintf("Content blueprint ready: %s", bp.Keyword)
	body := fmt.Sprintf(
		"Your content blueprint for %q is ready.\n\nState: %s\nDifficulty: %.0f/100\nOpportunity: %.0f/100\nBlueprint ID: %s\n",
		bp.Keyword, bp.State, bp.KeywordScore.Difficulty, bp.KeywordScore.Opportunity, bp.ID,
	)
	if bp.State == models.BuildStateDegradedComplete {
		body += "\nNote: some data sources were unavailable during this build; results are partial.\n"
	}

	_, err := n.email.SendEmail(ctx, &ses.SendEmailInput{
		Source: aws.String(n.cfg.Email.FromEmail),
		Destination: &sestypes.Destination{
			ToAddresses: []string{to},
		},
		Message: &sestypes.Message{
			Subject: &sestypes.Content{Data: aws.String(subject)},
			Body: &sestypes.Body{
				Text: &sestypes.Content{Data: aws.String(body)},
			},
		},
	})
	if err != nil {
		n.logger.Warn("email notification failed", map[string]interface{}{
			"blueprintId": bp.ID,
			"error":       err.Error(),
		})
		return
	}
	n.logger.Info("email notification sent", map[string]interface{}{"blueprintId": bp.ID})
}

func (n *Notifier) sendSMS(ctx context.Context, bp *models.Blueprint, phone string) {
	if !n.cfg.SMS.Enabled || n.sms == nil {
		n.logger.Debug("sms notifications disabled, skipping", map[string]interface{}{"blueprintId": bp.ID})
		return
	}

	message := fmt.Sprintf("Blueprint for %q is ready (%s). ID: %s", bp.Keyword, bp.State, bp.ID)
	_, err := n.sms.Publish(ctx, &sns.PublishInput{
		Message:     aws.String(message),
		PhoneNumber: aws.String(phone),
	})
	if err != nil {
		n.logger.Warn("sms notification failed", map[string]interface{}{
			"blueprintId": bp.ID,
			"error":       err.Error(),
		})
		return
	}
	n.logger.Info("sms notification sent", map[string]interface{}{"blueprintId": bp.ID})
}
