package app

import "time"

// Operation identifies one CLI invocation. Its ID tags every log line the
// invocation writes so interleaved server and CLI logs can be told apart.
type Operation struct {
	ID      string
	Name    string
	Started time.Time
	Status  string // "success" or "error"
}

// NewOperation creates an operation started at now.
func NewOperation(name string, now time.Time) *Operation {
	now = now.UTC()
	return &Operation{
		ID:      now.Format("20060102T150405Z") + "-" + name,
		Name:    name,
		Started: now,
		Status:  "success",
	}
}

// Fail marks the operation as failed.
func (op *Operation) Fail() {
	op.Status = "error"
}

// Elapsed returns the time since the operation started.
func (op *Operation) Elapsed(now time.Time) time.Duration {
	return now.Sub(op.Started)
}
