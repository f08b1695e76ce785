package fetcher

import "time"

const (
	EventRunStarted    = "run_started"
	EventItemSucceeded = "item_succeeded"
	EventItemFailed    = "item_failed"
	EventRunFinished   = "run_finished"
)

// Event is a progress notification emitted while a run executes.
type Event struct {
	Type      string    `json:"type"`
	RunID     string    `json:"run_id"`
	Timestamp time.Time `json:"timestamp"`
	Index     int       `json:"index,omitempty"`
	Total     int       `json:"total,omitempty"`
	Name      string    `json:"name,omitempty"`
	Style     string    `json:"style,omitempty"`
	Version   Version   `json:"version,omitempty"`
	Path      string    `json:"path,omitempty"`
	Code      string    `json:"code,omitempty"`
	Error     string    `json:"error,omitempty"`
	Succeeded int       `json:"succeeded,omitempty"`
	Failed    int       `json:"failed,omitempty"`
}

// Observer receives run events. Implementations must not block.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) Observe(ev Event) { f(ev) }
