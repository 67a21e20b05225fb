package bootstrap

import (
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"

	appconfig "github.com/chatrdv/platform/internal/config"
	"github.com/chatrdv/platform/internal/notify"
	"github.com/chatrdv/platform/pkg/logging"
)

// BuildEmailSender picks the outbound email transport: SendGrid when an API
// key is present, SES when a verified sender address is configured, and a
// logging stub otherwise.
func BuildEmailSender(awsCfg aws.Config, cfg *appconfig.Config, logger *logging.Logger) notify.EmailSender {
	if logger == nil {
		logger = logging.Default()
	}

	if cfg != nil && cfg.SendGridAPIKey != "" {
		logger.Info("email transport: sendgrid", "from", cfg.SendGridFromEmail)
		return notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.SendGridFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger)
	}

	if cfg != nil && cfg.SESFromEmail != "" {
		logger.Info("email transport: ses", "from", cfg.SESFromEmail)
		return notify.NewSESSender(sesv2.NewFromConfig(awsCfg), notify.SESConfig{
			FromEmail: cfg.SESFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger)
	}

	logger.Warn("no email transport configured; confirmations are logged only")
	return notify.NewStubEmailSender(logger)
}
