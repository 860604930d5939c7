package notify

import (
	"context"
	"encoding/json"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"

	"github.com/keyward/licensing-backend/pkg/logger"
)

// Message carries everything a downstream mailer needs to greet a customer
// with their new license key. LicenseKey holds the formatted plaintext; this
// is the only place outside the provisioning response where it appears.
type Message struct {
	CustomerEmail string   `json:"customer_email"`
	LicenseKey    string   `json:"license_key"`
	BrandName     string   `json:"brand_name"`
	ProductNames  []string `json:"product_names"`
}

// Sink dispatches customer notifications. Callers treat dispatch as
// fire-and-forget; a failed notification never fails the provisioning call.
type Sink interface {
	NotifyNewLicenseKey(ctx context.Context, msg Message) error
}

type publisher interface {
	Publish(ctx context.Context, msg *pubsub.Message) *pubsub.PublishResult
}

// PubSubSink publishes notification messages to the configured topic.
type PubSubSink struct {
	pub  publisher
	logg *logger.Logger
}

// NewPubSubSink builds a sink around a notification topic publisher.
func NewPubSubSink(pub publisher, logg *logger.Logger) (*PubSubSink, error) {
	if pub == nil {
		return nil, fmt.Errorf("publisher required")
	}
	return &PubSubSink{pub: pub, logg: logg}, nil
}

// NotifyNewLicenseKey publishes the message as JSON and waits for the server
// ack so the caller's goroutine can log the outcome.
func (s *PubSubSink) NotifyNewLicenseKey(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	result := s.pub.Publish(ctx, &pubsub.Message{
		Data: payload,
		Attributes: map[string]string{
			"type": "license_key.created",
		},
	})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}

// LogSink records the notification instead of delivering it; used in dev and
// whenever Pub/Sub is not configured.
type LogSink struct {
	logg *logger.Logger
}

// NewLogSink builds the logging sink.
func NewLogSink(logg *logger.Logger) *LogSink {
	return &LogSink{logg: logg}
}

// NotifyNewLicenseKey implements Sink.
func (s *LogSink) NotifyNewLicenseKey(ctx context.Context, msg Message) error {
	if s.logg == nil {
		return nil
	}
	ctx = s.logg.WithFields(ctx, map[string]any{
		"customer_email": msg.CustomerEmail,
		"brand_name":     msg.BrandName,
	})
	s.logg.Info(ctx, "license key notification (log sink)")
	return nil
}
