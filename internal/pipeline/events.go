package pipeline

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

// Terminal outcomes. Every queued artifact resolves to exactly one.
const (
	OutcomeIngested             = "ingested"
	OutcomeIngestedUnanalyzable = "ingested_unanalyzable"
	OutcomeSkippedKnown         = "skipped_known"
	OutcomeSkippedUnrecognized  = "skipped_unrecognized"
	OutcomeFailed               = "failed"
)

// Event is the structured record emitted once per terminal outcome.
type Event struct {
	EventID  uuid.UUID `json:"event_id"`
	Source   string    `json:"source"` // "crawler" or "watcher"
	Path     string    `json:"path"`
	Outcome  string    `json:"outcome"`
	Location string    `json:"location,omitempty"`
	Device   string    `json:"device,omitempty"`
	Kind     string    `json:"kind,omitempty"`

	DetectionID int64    `json:"detection_id,omitempty"`
	Alerts      []string `json:"alerts,omitempty"`
	Error       string   `json:"error,omitempty"`

	EmittedAt time.Time `json:"emitted_at"`
}

// Emitter delivers terminal events. The log emitter is always active; the
// NATS emitter is layered on when a broker is configured.
type Emitter interface {
	Emit(ev *Event)
}

// LogEmitter writes terminal events to the process log.
type LogEmitter struct{}

func (LogEmitter) Emit(ev *Event) {
	switch ev.Outcome {
	case OutcomeFailed:
		log.Printf("[Pipeline] [ERROR] %s %s: %s", ev.Outcome, ev.Path, ev.Error)
	case OutcomeIngested, OutcomeIngestedUnanalyzable:
		log.Printf("[Pipeline] %s %s (detection %d, alerts %v)", ev.Outcome, ev.Path, ev.DetectionID, ev.Alerts)
	default:
		log.Printf("[Pipeline] %s %s", ev.Outcome, ev.Path)
	}
}

// NATSEmitter publishes terminal events to a subject with bounded retry.
type NATSEmitter struct {
	conn       *nats.Conn
	subject    string
	maxRetries int
}

func NewNATSEmitter(conn *nats.Conn, subject string, maxRetries int) *NATSEmitter {
	return &NATSEmitter{
		conn:       conn,
		subject:    subject,
		maxRetries: maxRetries,
	}
}

func (p *NATSEmitter) Emit(ev *Event) {
	if err := p.publish(ev); err != nil {
		log.Printf("[Pipeline] Warning: event publish failed: %v", err)
	}
}

func (p *NATSEmitter) publish(ev *Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal error: %w", err)
	}

	for i := 0; i <= p.maxRetries; i++ {
		err = p.conn.Publish(p.subject, data)
		if err == nil {
			return nil
		}

		// Backoff
		time.Sleep(time.Duration(i*100) * time.Millisecond)
	}

	return fmt.Errorf("publish failed after %d retries: %w", p.maxRetries, err)
}

// MultiEmitter fans out to every configured emitter.
type MultiEmitter []Emitter

func (m MultiEmitter) Emit(ev *Event) {
	for _, e := range m {
		e.Emit(ev)
	}
}

func newEvent(source, path, outcome string) *Event {
	return &Event{
		EventID:   uuid.New(),
		Source:    source,
		Path:      path,
		Outcome:   outcome,
		EmittedAt: time.Now().UTC(),
	}
}
