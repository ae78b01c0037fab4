package recorder

import "time"

// NoopRecorder is used when no audit database is configured.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) RecordEvent(_ time.Time, _, _, _ string) error { return nil }
func (n *NoopRecorder) Close() error                                  { return nil }
