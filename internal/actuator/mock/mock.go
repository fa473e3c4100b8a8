// Package mock provides a simulated arm implementation of actuator.Port for
// testing and bring-up without hardware.
package mock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/arm-control/acc/internal/actuator"
)

// DefaultHomePose is the named safe pose the simulated arm homes to.
var DefaultHomePose = []float64{0, -0.8, 0.6, 0, 0.4, 0}

// Arm implements actuator.Port with an in-memory joint model. It tracks
// commanded and measured pose separately so tests can exercise the degraded
// observability paths.
type Arm struct {
	mu sync.Mutex

	dof       int
	homePose  []float64
	connected bool
	stopped   bool

	commanded []float64
	measured  []float64

	// feedback toggles the simulated feedback channel. When false, Observe
	// returns SourceUnknown like a driver without joint readback.
	feedback bool

	// Error simulation
	failOp    string // operation name to fail ("apply", "home", "connect", "dispense", "speak")
	failToken string // token-style driver message to fail with

	applies   []actuator.Chunk
	homeCalls int
	dispensed []time.Duration
	spoken    []string
}

// NewArm creates a simulated arm with the given degrees of freedom.
func NewArm(dof int) *Arm {
	home := make([]float64, dof)
	copy(home, DefaultHomePose)
	return &Arm{
		dof:      dof,
		homePose: home,
		feedback: true,
		measured: append([]float64(nil), home...),
	}
}

// Connect establishes the simulated session.
func (a *Arm) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.simulatedError("connect"); err != nil {
		return err
	}
	a.connected = true
	a.stopped = false
	return nil
}

// Apply streams one target set to the simulated joints.
func (a *Arm) Apply(ctx context.Context, chunk actuator.Chunk) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.simulatedError("apply"); err != nil {
		return err
	}
	if !a.connected {
		return actuator.NormalizeDriverError(fmt.Errorf("DISCONNECTED: apply before connect"), nil)
	}
	if a.stopped {
		return actuator.NormalizeDriverError(fmt.Errorf("NOT_READY: emergency stop active"), nil)
	}
	if len(chunk.Targets) != a.dof {
		return actuator.NormalizeDriverError(
			fmt.Errorf("DIMENSION_MISMATCH: got %d targets, arm has %d joints", len(chunk.Targets), a.dof), nil)
	}

	a.applies = append(a.applies, chunk)
	a.commanded = append([]float64(nil), chunk.Targets...)
	if a.feedback {
		// Instant convergence model: measured follows commanded.
		a.measured = append([]float64(nil), chunk.Targets...)
	}
	return nil
}

// Home moves the simulated arm to its safe pose. Idempotent.
func (a *Arm) Home(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.simulatedError("home"); err != nil {
		return err
	}
	a.homeCalls++
	a.commanded = append([]float64(nil), a.homePose...)
	if a.feedback {
		a.measured = append([]float64(nil), a.homePose...)
	}
	return nil
}

// EmergencyStop halts the simulated arm until the next Connect.
func (a *Arm) EmergencyStop(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stopped = true
	return nil
}

// Observe returns the measured joint state, or an explicit unknown
// observation when the feedback channel is disabled.
func (a *Arm) Observe(ctx context.Context) (actuator.Observation, error) {
	if err := ctx.Err(); err != nil {
		return actuator.Observation{Source: actuator.SourceUnknown}, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.feedback {
		return actuator.Observation{
			Source:     actuator.SourceUnknown,
			ObservedAt: time.Now(),
		}, nil
	}
	return actuator.Observation{
		Joints:     append([]float64(nil), a.measured...),
		Source:     actuator.SourceMeasured,
		ObservedAt: time.Now(),
	}, nil
}

// DOF returns the simulated arm's degrees of freedom.
func (a *Arm) DOF() int { return a.dof }

// Dispense records a dispenser run.
func (a *Arm) Dispense(ctx context.Context, d time.Duration) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.simulatedError("dispense"); err != nil {
		return err
	}
	a.dispensed = append(a.dispensed, d)
	return nil
}

// Speak records a speech request.
func (a *Arm) Speak(ctx context.Context, text string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.simulatedError("speak"); err != nil {
		return err
	}
	a.spoken = append(a.spoken, text)
	return nil
}

// Test helpers

// SetFeedback toggles the simulated feedback channel.
func (a *Arm) SetFeedback(enabled bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.feedback = enabled
}

// FailWith makes the named operation fail with a token-style driver message
// until cleared with ClearFailure.
func (a *Arm) FailWith(op, token string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.failOp = op
	a.failToken = token
}

// ClearFailure disables error simulation.
func (a *Arm) ClearFailure() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.failOp = ""
	a.failToken = ""
}

// Applies returns a copy of all chunks applied so far.
func (a *Arm) Applies() []actuator.Chunk {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]actuator.Chunk(nil), a.applies...)
}

// HomeCalls returns the number of Home invocations.
func (a *Arm) HomeCalls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.homeCalls
}

// Commanded returns the last commanded joint targets.
func (a *Arm) Commanded() []float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]float64(nil), a.commanded...)
}

// Measured returns the simulated measured joint state.
func (a *Arm) Measured() []float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]float64(nil), a.measured...)
}

// SetMeasured overrides the measured joint state, for pose-readiness tests.
func (a *Arm) SetMeasured(joints []float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.measured = append([]float64(nil), joints...)
}

// Dispensed returns recorded dispenser runs.
func (a *Arm) Dispensed() []time.Duration {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]time.Duration(nil), a.dispensed...)
}

// Spoken returns recorded speech requests.
func (a *Arm) Spoken() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.spoken...)
}

// simulatedError must be called with a.mu held.
func (a *Arm) simulatedError(op string) error {
	if a.failOp != op || a.failToken == "" {
		return nil
	}
	return actuator.NormalizeDriverError(fmt.Errorf("%s: simulated %s failure", a.failToken, op), nil)
}

var _ actuator.Port = (*Arm)(nil)
