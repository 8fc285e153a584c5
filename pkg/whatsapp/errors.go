package whatsapp

import "fmt"

// Kind classifies a send failure.
type Kind string

const (
	KindNotConfigured Kind = "not_configured"
	KindNetwork       Kind = "network"
	KindAPIRejected   Kind = "api_rejected"
)

// Error is returned by every failed send.
type Error struct {
	Kind   Kind
	Status int
	// Body is an excerpt of the Graph API response for api_rejected.
	Body string
	Err  error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindAPIRejected:
		return fmt.Sprintf("whatsapp %s: status %d: %s", e.Kind, e.Status, e.Body)
	case KindNetwork:
		return fmt.Sprintf("whatsapp %s: %v", e.Kind, e.Err)
	default:
		return fmt.Sprintf("whatsapp %s", e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Err }
