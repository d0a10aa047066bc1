package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/freshfold/support-chat/pkg/logger"
	"github.com/freshfold/support-chat/pkg/metrics"
)

// MaxMulticastTokens is the FCM limit on tokens per multicast request.
const MaxMulticastTokens = 500

const androidChannelID = "high_importance_channel"

// FirebaseConfig selects the service account used for FCM.
type FirebaseConfig struct {
	ProjectID       string
	CredentialsFile string
	ClientEmail     string
	PrivateKey      string
}

// Enabled reports whether enough is configured to talk to FCM.
func (c FirebaseConfig) Enabled() bool {
	return c.ProjectID != "" && (c.CredentialsFile != "" || (c.ClientEmail != "" && c.PrivateKey != ""))
}

func (c FirebaseConfig) clientOption() (option.ClientOption, error) {
	if c.CredentialsFile != "" {
		return option.WithCredentialsFile(c.CredentialsFile), nil
	}
	creds, err := json.Marshal(map[string]string{
		"type":         "service_account",
		"project_id":   c.ProjectID,
		"client_email": c.ClientEmail,
		// Keys passed through env vars usually carry escaped newlines.
		"private_key": strings.ReplaceAll(c.PrivateKey, `\n`, "\n"),
		"token_uri":   "https://oauth2.googleapis.com/token",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode firebase credentials: %w", err)
	}
	return option.WithCredentialsJSON(creds), nil
}

// Sender is the part of the FCM client the gateway uses.
type Sender interface {
	SendEachForMulticast(ctx context.Context, message *messaging.MulticastMessage) (*messaging.BatchResponse, error)
}

// FCM delivers notifications with Firebase Cloud Messaging.
type FCM struct {
	sender Sender
	logger *logger.Logger
}

// NewFCM initialises the Firebase app and its messaging client.
func NewFCM(ctx context.Context, cfg FirebaseConfig, log *logger.Logger) (*FCM, error) {
	if !cfg.Enabled() {
		return nil, errors.New("firebase is not configured")
	}
	opt, err := cfg.clientOption()
	if err != nil {
		return nil, err
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.ProjectID}, opt)
	if err != nil {
		return nil, fmt.Errorf("failed to initialise firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create messaging client: %w", err)
	}
	return NewFCMWithSender(client, log), nil
}

// NewFCMWithSender builds the gateway around an existing sender.
func NewFCMWithSender(sender Sender, log *logger.Logger) *FCM {
	return &FCM{sender: sender, logger: log}
}

// Deliver sends n in multicast batches of at most MaxMulticastTokens.
func (f *FCM) Deliver(ctx context.Context, n Notification) error {
	tokens := Dedupe(n.Tokens)
	var errs []error
	for start := 0; start < len(tokens); start += MaxMulticastTokens {
		end := min(start+MaxMulticastTokens, len(tokens))
		if err := f.sendBatch(ctx, tokens[start:end], n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f *FCM) sendBatch(ctx context.Context, tokens []string, n Notification) error {
	start := time.Now()
	resp, err := f.sender.SendEachForMulticast(ctx, multicast(tokens, n))
	if err != nil {
		metrics.RecordPush(0, len(tokens), time.Since(start).Seconds())
		return fmt.Errorf("failed to send multicast: %w", err)
	}
	metrics.RecordPush(resp.SuccessCount, resp.FailureCount, time.Since(start).Seconds())

	for i, r := range resp.Responses {
		if r == nil || r.Success || i >= len(tokens) {
			continue
		}
		f.logger.Debug("push token rejected",
			zap.String("token_suffix", suffix(tokens[i])),
			zap.Bool("unregistered", messaging.IsRegistrationTokenNotRegistered(r.Error)),
			zap.Error(r.Error),
		)
	}
	if resp.FailureCount > 0 {
		f.logger.Info("push batch partially delivered",
			zap.Int("success", resp.SuccessCount),
			zap.Int("failure", resp.FailureCount),
		)
	}
	return nil
}

func multicast(tokens []string, n Notification) *messaging.MulticastMessage {
	return &messaging.MulticastMessage{
		Tokens: tokens,
		Data:   n.Data,
		Notification: &messaging.Notification{
			Title: n.Title,
			Body:  n.Body,
		},
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				ChannelID:             androidChannelID,
				DefaultSound:          true,
				DefaultVibrateTimings: true,
				Visibility:            messaging.VisibilityPublic,
			},
		},
		APNS: &messaging.APNSConfig{
			Headers: map[string]string{"apns-priority": "10"},
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{
					ContentAvailable: true,
					Sound:            "default",
				},
			},
		},
	}
}

func suffix(token string) string {
	if len(token) <= 8 {
		return token
	}
	return token[len(token)-8:]
}
