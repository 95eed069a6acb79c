// Package dispatch fires transient alerts for push-delivered events. It
// sits at the push-delivery boundary on purpose: baseline loads and bulk
// store operations must never produce alerts, so the dispatcher is invoked
// per delivered event rather than hooked to generic store changes.
package dispatch

import (
	"log/slog"

	"golang.org/x/time/rate"

	"github.com/socialmesh/notifyhub-go/pkg/alert"
	"github.com/socialmesh/notifyhub-go/pkg/notification"
)

// Config tunes the dispatcher.
type Config struct {
	// AlertsPerSecond bounds how fast alerts reach the sink. A burst of
	// pushes beyond the budget is delivered to the store but not alerted.
	AlertsPerSecond float64

	// AlertBurst is the token bucket size.
	AlertBurst int
}

// SetDefaults sets reasonable default values for the config.
func (c *Config) SetDefaults() {
	if c.AlertsPerSecond == 0 {
		c.AlertsPerSecond = 5
	}
	if c.AlertBurst == 0 {
		c.AlertBurst = 10
	}
}

// Dispatcher forwards one alert per genuinely new push event.
type Dispatcher struct {
	sink    alert.Sink
	limiter *rate.Limiter
	logger  *slog.Logger
}

// New creates a Dispatcher writing to the given sink.
func New(sink alert.Sink, config Config, logger *slog.Logger) *Dispatcher {
	config.SetDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		sink:    sink,
		limiter: rate.NewLimiter(rate.Limit(config.AlertsPerSecond), config.AlertBurst),
		logger:  logger,
	}
}

// EventArrived surfaces a transient alert for a pushed event. Callers must
// invoke it only for events the store accepted as new.
func (d *Dispatcher) EventArrived(evt notification.Event) {
	if !d.limiter.Allow() {
		d.logger.Debug("alert throttled", "event_id", evt.ID, "kind", evt.Kind)
		return
	}
	d.sink.Show(evt.Content, alert.Info)
}

// Failure surfaces a recoverable engine failure.
func (d *Dispatcher) Failure(message string, severity alert.Severity) {
	d.sink.Show(message, severity)
}
