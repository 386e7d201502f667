package notify

import (
	"context"
	"fmt"
	"time"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"astroconsole-backend/pkg/logger"
)

// FCMSinkConfig configures the Firebase-backed sink
type FCMSinkConfig struct {
	CredentialsPath string
	ProjectID       string
	// DeviceTokens are the operator's registered console devices
	DeviceTokens []string
}

// FCMSink delivers the desktop-notification effect through Firebase Cloud
// Messaging for hosted consoles. Sound travels inside the push payload;
// toasts have no remote equivalent and are a no-op.
type FCMSink struct {
	app    *firebase.App
	tokens []string
}

// NewFCMSink initializes the Firebase app from a service account file
func NewFCMSink(cfg *FCMSinkConfig) (*FCMSink, error) {
	if cfg == nil || cfg.CredentialsPath == "" {
		return nil, fmt.Errorf("FCM credentials path is required")
	}

	app, err := firebase.NewApp(context.Background(),
		&firebase.Config{ProjectID: cfg.ProjectID},
		option.WithCredentialsFile(cfg.CredentialsPath))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Firebase app: %w", err)
	}

	logger.Info("FCM sink initialized", zap.String("project_id", cfg.ProjectID))
	return &FCMSink{app: app, tokens: cfg.DeviceTokens}, nil
}

// Notify sends one push per registered device token
func (s *FCMSink) Notify(title, body string, meta map[string]string) error {
	if len(s.tokens) == 0 {
		return nil
	}

	client, err := s.app.Messaging(context.Background())
	if err != nil {
		return fmt.Errorf("failed to get messaging client: %w", err)
	}

	res, err := client.SendEachForMulticast(context.Background(), &messaging.MulticastMessage{
		Tokens: s.tokens,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Data: meta,
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				Sound: "default",
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to send push: %w", err)
	}
	if res.FailureCount > 0 {
		logger.Warn("some push deliveries failed",
			zap.Int("success", res.SuccessCount),
			zap.Int("failure", res.FailureCount))
	}
	return nil
}

// PlayAlertSound is carried by the push payload's sound field
func (s *FCMSink) PlayAlertSound() error { return nil }

// ShowToast has no remote equivalent
func (s *FCMSink) ShowToast(text string, duration time.Duration) error { return nil }
