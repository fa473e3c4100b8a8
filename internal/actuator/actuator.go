package actuator

import (
	"context"
	"time"
)

// JointSource identifies where an observation's joint values came from.
type JointSource string

const (
	// SourceMeasured means the values were read back from hardware feedback.
	SourceMeasured JointSource = "measured"

	// SourceCommanded means the driver echoed the last commanded targets.
	// Consumers must treat this as degraded, uncertain input.
	SourceCommanded JointSource = "commanded"

	// SourceUnknown means the driver exposes no feedback channel at all.
	SourceUnknown JointSource = "unknown"
)

// Observation is a snapshot of arm state as seen at a point in time.
//
// Joints is nil when no values are available. A non-nil Joints with
// SourceCommanded is a stand-in, not real feedback; safety and policy code
// branch on Source explicitly instead of trusting the values.
type Observation struct {
	Joints     []float64   `json:"joints,omitempty"`
	Source     JointSource `json:"source"`
	ObservedAt time.Time   `json:"observedAt"`
}

// Measured reports whether the observation carries real hardware feedback.
func (o Observation) Measured() bool {
	return o.Source == SourceMeasured && o.Joints != nil
}

// Chunk is a short batch of joint targets produced for one control-loop tick.
// Targets dimensionality must equal the port's DOF.
type Chunk struct {
	Targets []float64 `json:"targets"`

	// Confidence is attached only when the producing model supplies one.
	// It is telemetry, never fabricated when absent.
	Confidence *float64 `json:"confidence,omitempty"`

	// RateHintHz optionally suggests the cadence the producer planned for.
	RateHintHz float64 `json:"rateHintHz,omitempty"`
}

// Port is the stable southbound contract to the physical arm.
//
// Transport faults are caught by implementations and surfaced as normalized
// errors (ErrHardware, ErrBusy, ErrUnavailable, ...) so callers never see an
// unhandled driver crash. Callback-style driver SDKs are wrapped behind this
// synchronous, blocking facade.
type Port interface {
	// Connect establishes the driver session. Fails with ErrHardware when the
	// arm is unreachable.
	Connect(ctx context.Context) error

	// Apply streams one target set to the arm.
	Apply(ctx context.Context, chunk Chunk) error

	// Home moves the arm to its named safe pose. Idempotent: repeat calls
	// leave the reported pose identical and return no error.
	Home(ctx context.Context) error

	// EmergencyStop halts motion immediately.
	EmergencyStop(ctx context.Context) error

	// Observe returns the last-read hardware state, distinct from the
	// last-commanded state. Drivers without a feedback channel return an
	// Observation with SourceUnknown rather than substituting commanded
	// values.
	Observe(ctx context.Context) (Observation, error)

	// DOF returns the arm's degrees of freedom.
	DOF() int

	// Dispense runs the treat dispenser for the given duration. Side channel,
	// independent of the single-active-job lock.
	Dispense(ctx context.Context, d time.Duration) error

	// Speak plays text through the onboard speaker. Side channel.
	Speak(ctx context.Context, text string) error
}
