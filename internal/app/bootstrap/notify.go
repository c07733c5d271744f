package bootstrap

import (
	"context"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/sesv2"

	"github.com/wolfman30/dental-scheduling-agent/internal/bookings"
	appconfig "github.com/wolfman30/dental-scheduling-agent/internal/config"
	"github.com/wolfman30/dental-scheduling-agent/internal/notify"
	"github.com/wolfman30/dental-scheduling-agent/pkg/logging"
)

// BuildEmailSender picks SendGrid, then SES, then a logging stub.
func BuildEmailSender(ctx context.Context, cfg *appconfig.Config, loadAWS AWSConfigLoader, logger *logging.Logger) notify.EmailSender {
	if logger == nil {
		logger = logging.Default()
	}
	if sender := notify.NewSendGridSender(cfg.SendGridAPIKey, cfg.SendGridFromEmail, cfg.SendGridFromName, logger); sender != nil {
		logger.Info("email sender ready", "provider", "sendgrid")
		return sender
	}
	if strings.TrimSpace(cfg.SESFromEmail) != "" && loadAWS != nil {
		awsCfg, err := loadAWS(ctx)
		if err != nil {
			logger.Warn("ses unavailable; falling back to stub sender", "error", err)
		} else if sender := notify.NewSESSender(sesv2.NewFromConfig(awsCfg), cfg.SESFromEmail, cfg.SendGridFromName, logger); sender != nil {
			logger.Info("email sender ready", "provider", "ses")
			return sender
		}
	}
	logger.Info("email sender ready", "provider", "stub")
	return notify.NewStubSender(logger)
}

// BuildNotifier returns the staff booking notifier, or nil when no staff
// address is configured.
func BuildNotifier(ctx context.Context, cfg *appconfig.Config, loadAWS AWSConfigLoader, logger *logging.Logger) bookings.Notifier {
	if cfg == nil || strings.TrimSpace(cfg.StaffNotifyEmail) == "" {
		return nil
	}
	n := notify.NewBookingNotifier(BuildEmailSender(ctx, cfg, loadAWS, logger), cfg.StaffNotifyEmail, cfg.ClinicName)
	if n == nil {
		return nil
	}
	return n
}
