package harness

import "github.com/roach88/recipesync/internal/store"

// Trace event types.
const (
	EventStep       = "step"
	EventTransition = "transition"
	EventCall       = "call"
	EventConfirm    = "confirm"
	EventNotify     = "notify"
	EventResult     = "result"
)

// TraceEvent is one line of the trace.
type TraceEvent struct {
	Type string `json:"type"`
	// Seq is the engine sequence number of a transition, else 0.
	Seq  int64  `json:"seq,omitempty"`
	Text string `json:"text"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every expect clause and assertion held.
	Pass bool `json:"pass"`

	// Trace contains every event in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	Errors []string `json:"errors,omitempty"`

	// Store is the final local store, ordered by key.
	Store []store.Record `json:"store"`

	// ServerLiked is the sorted list of codes liked on the server.
	ServerLiked []int64 `json:"server_liked"`

	// Calls lists every request the API received, as "METHOD /path?query".
	Calls []string `json:"calls"`

	// Notified counts failure notices.
	Notified int `json:"notified"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

func (r *Result) add(typ string, seq int64, text string) {
	r.Trace = append(r.Trace, TraceEvent{Type: typ, Seq: seq, Text: text})
}
