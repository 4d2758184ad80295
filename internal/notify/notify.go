// Package notify publishes run progress to an external monitor. Notification
// is best effort: failures are logged and never stop processing.
package notify

import (
	"context"
	"time"
)

// Event names.
const (
	TripleStarted  = "triple_started"
	TripleFinished = "triple_finished"
	RunFinished    = "run_finished"
)

// Event is one progress message.
type Event struct {
	Name    string
	RunID   string
	Target  string
	Product string
	Config  string
	// Status is "ok", "failed" or "planned" on finish events.
	Status   string
	Error    string
	Outputs  int
	Duration time.Duration
}

// Payload is the JSON-friendly form sent over the wire.
func (e Event) Payload() map[string]any {
	p := map[string]any{"name": e.Name}
	put := func(k, v string) {
		if v != "" {
			p[k] = v
		}
	}
	put("run_id", e.RunID)
	put("target", e.Target)
	put("product", e.Product)
	put("config", e.Config)
	put("status", e.Status)
	put("error", e.Error)
	if e.Outputs > 0 {
		p["outputs"] = e.Outputs
	}
	if e.Duration > 0 {
		p["duration_ms"] = e.Duration.Milliseconds()
	}
	return p
}

// Notifier delivers progress events.
type Notifier interface {
	Notify(ctx context.Context, e Event)
	Close() error
}

// Noop discards every event.
type Noop struct{}

func (Noop) Notify(context.Context, Event) {}

func (Noop) Close() error { return nil }
