package ports

import "time"

// Recorder mirrors activity events to a durable audit sink. Write-only:
// nothing is ever read back at runtime, so process state stays in-memory.
type Recorder interface {
	RecordEvent(at time.Time, kind, message, detail string) error
	Close() error
}
