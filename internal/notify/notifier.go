package notify

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
)

// ErrNotAddressable reports that a channel has no usable address for the
// message. The dispatcher treats it as a skip, not a delivery failure.
var ErrNotAddressable = errors.New("message carries no address for this channel")

// Message is a single outbound notification. Recipient is the target email
// (push); Phone, when set, additionally addresses phone-based channels.
type Message struct {
	Recipient string `json:"recipient"`
	Phone     string `json:"phone,omitempty"`
	Title     string `json:"title"`
	Body      string `json:"body"`
	URL       string `json:"url,omitempty"`
}

// AdminContact names where admin-side alerts go.
type AdminContact struct {
	Email string
	Phone string
}

// Notifier delivers a message over one channel. Implementations must treat
// delivery as best-effort; the caller never retries.
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

// Report aggregates the outcome of a fan-out dispatch.
type Report struct {
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
}

// Dispatcher fans a message out to every configured channel. Failures are
// counted and logged but never propagated: notification delivery must not
// affect the state transition that triggered it.
type Dispatcher struct {
	notifiers []Notifier
	logger    zerolog.Logger
}

// NewDispatcher creates a dispatcher over the given channels.
func NewDispatcher(logger zerolog.Logger, notifiers ...Notifier) *Dispatcher {
	return &Dispatcher{
		notifiers: notifiers,
		logger:    logger.With().Str("component", "notify-dispatcher").Logger(),
	}
}

// Dispatch sends msg on every channel and reports aggregate counts.
func (d *Dispatcher) Dispatch(ctx context.Context, msg Message) Report {
	var report Report
	for _, n := range d.notifiers {
		if err := n.Notify(ctx, msg); err != nil {
			if errors.Is(err, ErrNotAddressable) {
				d.logger.Debug().
					Str("recipient", msg.Recipient).
					Msg("channel skipped, message not addressable")
				continue
			}
			report.Failed++
			d.logger.Warn().
				Err(err).
				Str("recipient", msg.Recipient).
				Str("title", msg.Title).
				Msg("notification delivery failed")
			continue
		}
		report.Sent++
	}

	d.logger.Debug().
		Int("sent", report.Sent).
		Int("failed", report.Failed).
		Str("recipient", msg.Recipient).
		Msg("notification dispatched")

	return report
}
