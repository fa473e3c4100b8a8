package api

import (
	"context"
	"net/http"
	"time"

	"github.com/arm-control/acc/internal/executor"
	"github.com/arm-control/acc/internal/perception"
)

// Jobs is the executor surface the API needs.
type Jobs interface {
	Submit(ctx context.Context, instruction string, opts executor.Options) (string, error)
	Status(id string) (executor.Record, bool)
	Active() (string, bool)
	EmergencyStop(ctx context.Context) error
}

// Frames is the pipeline surface the API needs.
type Frames interface {
	Offer(f *perception.Frame) bool
	Stats() perception.Stats
}

// SideChannels are the arm operations that bypass the job lock.
type SideChannels interface {
	Dispense(ctx context.Context, d time.Duration) error
	Speak(ctx context.Context, text string) error
}

// EventStream serves the SSE endpoint. *telemetry.Hub satisfies it.
type EventStream interface {
	ServeSSE(w http.ResponseWriter, r *http.Request)
}

// AuditSink records API actions. *audit.Logger satisfies it.
type AuditSink interface {
	Record(user, jobID, action, outcome, code string, start time.Time) error
}
