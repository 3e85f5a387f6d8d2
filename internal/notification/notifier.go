// Package notification delivers gated notification intents to external
// channels (Telegram, webhooks). Implementations satisfy model.Notifier;
// a delivery error means the orchestrator must not record the alert.
package notification

import (
	"context"
	"fmt"
	"log"

	"stock-scannerv1/internal/model"
)

// LogNotifier logs intents instead of delivering them (useful for
// development and the one-shot scan command).
type LogNotifier struct{}

// NewLogNotifier creates a log-based notifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) Notify(ctx context.Context, intent model.NotificationIntent) error {
	log.Printf("[notify] [%s] %s: %s | %s", intent.Kind, intent.Symbol, intent.SignalDetails, intent.SampleDetails)
	return nil
}

// Title renders the intent headline shared by all backends.
func Title(intent model.NotificationIntent) string {
	switch intent.Kind {
	case model.KindCross:
		return fmt.Sprintf("MACD cross: %s", intent.Symbol)
	case model.KindMomentum:
		return fmt.Sprintf("Momentum: %s", intent.Symbol)
	default:
		return fmt.Sprintf("Signal: %s", intent.Symbol)
	}
}
