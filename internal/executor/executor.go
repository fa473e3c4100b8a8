package executor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/arm-control/acc/internal/actuator"
	"github.com/arm-control/acc/internal/config"
	"github.com/arm-control/acc/internal/policy"
	"github.com/arm-control/acc/internal/safety"
	"github.com/arm-control/acc/internal/telemetry"
)

// Cancellation reasons. Timeout is a cancellation with a distinguished reason
// and lands in Failed; every other reason lands in Aborted.
const (
	ReasonTimeout   = "timeout"
	ReasonPreempted = "preempted by home"
	ReasonShutdown  = "shutdown"
	ReasonEStop     = "emergency stop"
)

// Options tune a single submission.
type Options struct {
	// Timeout overrides the configured job budget when positive.
	Timeout time.Duration

	// ConfidenceMin, when set, fails the job if an applied chunk carries a
	// model confidence below it. Chunks without a confidence are unaffected.
	ConfidenceMin *float64

	// User is recorded in the audit trail. Defaults to "system".
	User string
}

// EventPublisher receives job lifecycle events. *telemetry.Hub satisfies it.
type EventPublisher interface {
	Publish(evtType, job string, data interface{})
}

// AuditSink records control actions. *audit.Logger satisfies it.
type AuditSink interface {
	Record(user, jobID, action, outcome, code string, start time.Time) error
}

// FrameProvider exposes the freshest camera frame, if any. The perception
// latest-frame mailbox satisfies it.
type FrameProvider interface {
	Latest() ([]byte, bool)
}

// Params wires an Executor. Events, Audit and Frames are optional.
type Params struct {
	Port     actuator.Port
	Gate     *safety.Gate
	Scripted policy.Source
	Learned  policy.Source
	Control  config.ControlConfig

	// ReadyPose is the reference pose the handoff macro launches from.
	ReadyPose []float64

	Registry *Registry
	Events   EventPublisher
	Audit    AuditSink
	Frames   FrameProvider
}

// Executor runs at most one job at a time against the actuator port.
type Executor struct {
	port     actuator.Port
	gate     *safety.Gate
	scripted policy.Source
	learned  policy.Source
	cfg      config.ControlConfig
	macro    []actuator.Chunk
	registry *Registry
	events   EventPublisher
	audit    AuditSink
	frames   FrameProvider

	mu     sync.Mutex
	active *handle
	closed bool
	wg     sync.WaitGroup
}

// handle is the cooperative control surface of one worker. The first cancel
// reason wins; the worker reads the flag once per tick.
type handle struct {
	id   string
	done chan struct{}

	mu        sync.Mutex
	cancelled bool
	reason    string
}

func (h *handle) cancel(reason string) {
	h.mu.Lock()
	if !h.cancelled {
		h.cancelled = true
		h.reason = reason
	}
	h.mu.Unlock()
}

func (h *handle) cancelState() (bool, string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cancelled, h.reason
}

func (h *handle) finished() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// New builds an Executor from params.
func New(p Params) *Executor {
	e := &Executor{
		port:     p.Port,
		gate:     p.Gate,
		scripted: p.Scripted,
		learned:  p.Learned,
		cfg:      p.Control,
		registry: p.Registry,
		events:   p.Events,
		audit:    p.Audit,
		frames:   p.Frames,
	}
	if len(p.ReadyPose) > 0 {
		e.macro = policy.ThrowMacro(p.ReadyPose)
	}
	if e.registry == nil {
		e.registry = NewRegistry(0)
	}
	return e
}

// Registry returns the job record registry.
func (e *Executor) Registry() *Registry { return e.registry }

// Status returns the record for a job ID.
func (e *Executor) Status(id string) (Record, bool) {
	return e.registry.Get(id)
}

// Active returns the current non-terminal job ID, if one exists.
func (e *Executor) Active() (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active != nil && !e.active.finished() {
		return e.active.id, true
	}
	return "", false
}

// Submit parses the instruction and starts a worker for it.
//
// While a job is non-terminal every submission returns ErrBusy, with one
// exception: the home instruction trips the running job's cancel flag and
// starts once that worker has exited. The previous worker never overlaps the
// new one on the hardware.
func (e *Executor) Submit(ctx context.Context, raw string, opts Options) (string, error) {
	if opts.User == "" {
		opts.User = "system"
	}
	start := time.Now()

	instr, err := policy.Parse(raw)
	if err != nil {
		e.logAudit(opts.User, "", "submit", "rejected", actuator.CodeOf(err), start)
		return "", err
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return "", fmt.Errorf("%w: executor stopped", actuator.ErrUnavailable)
	}
	var prev *handle
	if e.active != nil && !e.active.finished() {
		if !instr.IsHome() {
			e.mu.Unlock()
			e.logAudit(opts.User, "", "submit", "rejected", actuator.CodeOf(actuator.ErrBusy), start)
			return "", fmt.Errorf("%w: job %s is active", actuator.ErrBusy, e.active.id)
		}
		prev = e.active
		prev.cancel(ReasonPreempted)
	}
	h := &handle{id: uuid.NewString(), done: make(chan struct{})}
	e.active = h
	e.wg.Add(1)
	e.mu.Unlock()

	e.registry.Create(Record{
		ID:          h.id,
		Instruction: instr.String(),
		State:       StatePlanning,
		Phase:       policy.PhasePlanning,
		CreatedAt:   start.UTC(),
	})
	e.publishState(h.id, StatePlanning, policy.PhasePlanning, "")
	e.logAudit(opts.User, h.id, "submit", "accepted", "", start)

	go e.run(h, instr, opts, prev, start)
	return h.id, nil
}

// Stop cancels any active job and waits for workers to exit or ctx to expire.
func (e *Executor) Stop(ctx context.Context) error {
	e.mu.Lock()
	e.closed = true
	h := e.active
	e.mu.Unlock()
	if h != nil {
		h.cancel(ReasonShutdown)
	}

	doneCh := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(doneCh)
	}()
	select {
	case <-doneCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// EmergencyStop halts the arm immediately and aborts the active job.
func (e *Executor) EmergencyStop(ctx context.Context) error {
	e.mu.Lock()
	h := e.active
	e.mu.Unlock()
	if h != nil {
		h.cancel(ReasonEStop)
	}
	return e.port.EmergencyStop(ctx)
}

func (e *Executor) run(h *handle, instr policy.Instruction, opts Options, prev *handle, submitted time.Time) {
	defer e.wg.Done()
	defer close(h.done)

	// Preemption hands the hardware over only after the preempted worker has
	// fully exited.
	if prev != nil {
		<-prev.done
	}

	budget := opts.Timeout
	if budget <= 0 {
		budget = e.cfg.JobTimeout
	}
	deadline := submitted.Add(budget)
	jobCtx, cancel := context.WithDeadline(context.Background(), deadline)
	defer cancel()

	obs := e.observe(jobCtx)
	src := e.scripted
	if instr.Kind == policy.KindLearned {
		src = e.learned
	}
	seq, err := src.Plan(jobCtx, instr, obs)
	if err != nil {
		e.finish(h, opts, submitted, StateFailed, "", actuator.CodeOf(err), err.Error())
		return
	}

	started := time.Now().UTC()
	e.registry.Update(h.id, func(r *Record) {
		r.State = StateExecuting
		r.StartedAt = &started
	})
	e.publishState(h.id, StateExecuting, policy.PhasePlanning, "")

	ticker := time.NewTicker(e.cfg.Period())
	defer ticker.Stop()

	for {
		if time.Now().After(deadline) {
			h.cancel(ReasonTimeout)
		}
		if cancelled, reason := h.cancelState(); cancelled {
			if reason == ReasonTimeout {
				e.recoverHome()
				e.finish(h, opts, submitted, StateFailed, "", "TIMEOUT", "job exceeded its time budget")
			} else {
				e.finish(h, opts, submitted, StateAborted, "", "", reason)
			}
			return
		}

		obs = e.observe(jobCtx)
		chunk, phase, err := seq.Next(jobCtx, obs, e.latestFrame())
		if errors.Is(err, policy.Done) {
			if phase == policy.PhaseReadyToThrow {
				e.runMacro(h, opts, submitted, obs)
				return
			}
			e.finish(h, opts, submitted, StateSucceeded, phase, "", "")
			return
		}
		if err != nil {
			e.recoverHome()
			e.finish(h, opts, submitted, StateFailed, phase, actuator.CodeOf(err), err.Error())
			return
		}

		if opts.ConfidenceMin != nil && chunk.Confidence != nil && *chunk.Confidence < *opts.ConfidenceMin {
			e.recoverHome()
			e.finish(h, opts, submitted, StateFailed, phase, "LOW_CONFIDENCE",
				fmt.Sprintf("chunk confidence %.3f below floor %.3f", *chunk.Confidence, *opts.ConfidenceMin))
			return
		}

		if verdict := e.gate.ValidateTargets(chunk); !verdict.Allowed {
			e.recoverHome()
			e.finish(h, opts, submitted, StateFailed, phase, "SAFETY_VIOLATION", verdict.Reason)
			return
		}

		if err := e.apply(jobCtx, chunk); err != nil {
			e.recoverHome()
			e.finish(h, opts, submitted, StateFailed, phase, actuator.CodeOf(err), err.Error())
			return
		}
		e.recordChunk(h.id, phase, chunk)

		<-ticker.C
	}
}

// runMacro executes the fixed throw handoff. It launches only from a measured
// ready pose with a clear workspace and is bounded by its own timeout.
func (e *Executor) runMacro(h *handle, opts Options, submitted time.Time, obs actuator.Observation) {
	e.registry.Update(h.id, func(r *Record) {
		r.State = StateHandoffMacro
		r.Phase = policy.PhaseReadyToThrow
	})
	e.publishState(h.id, StateHandoffMacro, policy.PhaseReadyToThrow, "")

	switch {
	case len(e.macro) == 0:
		e.recoverHome()
		e.finish(h, opts, submitted, StateFailed, policy.PhaseReadyToThrow, "INTERNAL", "no handoff macro configured")
		return
	case !e.gate.ReadyToThrow(obs):
		e.recoverHome()
		e.finish(h, opts, submitted, StateFailed, policy.PhaseReadyToThrow, "SAFETY_VIOLATION",
			"measured pose is not at the ready reference")
		return
	case !e.gate.WorkspaceClear():
		e.recoverHome()
		e.finish(h, opts, submitted, StateFailed, policy.PhaseReadyToThrow, "SAFETY_VIOLATION",
			"workspace occluded")
		return
	}

	macroCtx, cancel := context.WithTimeout(context.Background(), e.cfg.MacroTimeout)
	defer cancel()

	for i, chunk := range e.macro {
		if cancelled, reason := h.cancelState(); cancelled && reason != ReasonTimeout {
			e.finish(h, opts, submitted, StateAborted, policy.PhaseReadyToThrow, "", reason)
			return
		}
		if verdict := e.gate.ValidateTargets(chunk); !verdict.Allowed {
			e.recoverHome()
			e.finish(h, opts, submitted, StateFailed, policy.PhaseReadyToThrow, "SAFETY_VIOLATION", verdict.Reason)
			return
		}
		if err := e.apply(macroCtx, chunk); err != nil {
			e.recoverHome()
			e.finish(h, opts, submitted, StateFailed, policy.PhaseReadyToThrow, actuator.CodeOf(err), err.Error())
			return
		}
		e.recordChunk(h.id, policy.PhaseReadyToThrow, chunk)

		if i < len(e.macro)-1 {
			select {
			case <-time.After(e.cfg.MacroStepInterval):
			case <-macroCtx.Done():
				e.recoverHome()
				e.finish(h, opts, submitted, StateFailed, policy.PhaseReadyToThrow, "TIMEOUT", "handoff macro exceeded its time budget")
				return
			}
		}
	}
	e.finish(h, opts, submitted, StateSucceeded, policy.PhaseDone, "", "")
}

func (e *Executor) apply(ctx context.Context, chunk actuator.Chunk) error {
	applyCtx, cancel := context.WithTimeout(ctx, e.cfg.ApplyTimeout)
	defer cancel()
	return e.port.Apply(applyCtx, chunk)
}

func (e *Executor) observe(ctx context.Context) actuator.Observation {
	obs, err := e.port.Observe(ctx)
	if err != nil {
		return actuator.Observation{Source: actuator.SourceUnknown, ObservedAt: time.Now().UTC()}
	}
	return obs
}

func (e *Executor) latestFrame() []byte {
	if e.frames == nil {
		return nil
	}
	frame, ok := e.frames.Latest()
	if !ok {
		return nil
	}
	return frame
}

// recoverHome is the shared best-effort recovery on every failure path. Its
// error is intentionally swallowed: the job is already failing and the home
// attempt must not mask the original fault.
func (e *Executor) recoverHome() {
	ctx, cancel := context.WithTimeout(context.Background(), e.cfg.HomeTimeout)
	defer cancel()
	if err := e.port.Home(ctx); err != nil && e.events != nil {
		e.events.Publish(telemetry.EventFault, "", map[string]string{
			"fault": "home recovery failed",
			"error": err.Error(),
		})
	}
}

func (e *Executor) finish(h *handle, opts Options, submitted time.Time, st State, phase policy.Phase, code, msg string) {
	now := time.Now().UTC()
	e.registry.Update(h.id, func(r *Record) {
		r.State = st
		if phase != "" {
			r.Phase = phase
		}
		r.Code = code
		r.Message = msg
		r.FinishedAt = &now
	})
	e.publishState(h.id, st, phase, msg)
	e.logAudit(opts.User, h.id, "job", string(st), code, submitted)
}

func (e *Executor) recordChunk(id string, phase policy.Phase, chunk actuator.Chunk) {
	e.registry.Update(id, func(r *Record) {
		r.ChunksApplied++
		r.Phase = phase
		r.Confidence = chunk.Confidence
	})
	if e.events != nil {
		e.events.Publish(telemetry.EventChunk, id, map[string]interface{}{
			"phase":      phase,
			"targets":    chunk.Targets,
			"confidence": chunk.Confidence,
		})
	}
}

func (e *Executor) publishState(id string, st State, phase policy.Phase, msg string) {
	if e.events == nil {
		return
	}
	data := map[string]interface{}{"state": st, "phase": phase}
	if msg != "" {
		data["message"] = msg
	}
	e.events.Publish(telemetry.EventState, id, data)
}

func (e *Executor) logAudit(user, jobID, action, outcome, code string, start time.Time) {
	if e.audit == nil {
		return
	}
	_ = e.audit.Record(user, jobID, action, outcome, code, start)
}
