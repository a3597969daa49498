package notification

import "context"

type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Message is a human-readable notification addressed to one user.
type Message struct {
	Severity Severity
	UserID   string
	Email    string
	Subject  string
	Lines    []string
}

// Sink delivers messages. Delivery is fire-and-forget: the event stream never
// stalls on a broken sink.
type Sink interface {
	Deliver(ctx context.Context, msg Message) error
}
