// Package policy provides the action sources that turn an instruction and the
// current observation into a lazy, finite sequence of actuator chunks.
//
// Two variants exist: scripted fixed sequences and a learned-policy inference
// client. Both produce the same Sequence contract, so the executor and the
// safety gate treat them identically.
package policy

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/arm-control/acc/internal/actuator"
)

// Phase names the stage an action source reports for the current chunk.
type Phase string

const (
	PhasePlanning     Phase = "planning"
	PhaseMoving       Phase = "moving"
	PhaseHome         Phase = "home"
	PhaseReadyToThrow Phase = "ready_to_throw"
	PhaseDone         Phase = "done"
)

// Done is returned by Sequence.Next when the sequence is exhausted. The phase
// returned alongside it is the sequence's terminal phase.
var Done = errors.New("sequence complete")

// ErrDegradedObservation is returned when a source requires measured joint
// feedback and the observation carries none. Silently substituting a constant
// state is the defect class this error exists to prevent.
var ErrDegradedObservation = errors.New("observation lacks measured joint state")

// Kind tags the instruction variant.
type Kind string

const (
	KindScripted Kind = "scripted"
	KindLearned  Kind = "learned"
)

// Instruction is the tagged command variant: a named scripted sequence or
// free text for the learned policy. Downstream behavior (macro eligibility
// in particular) is driven by the source-reported phase, never by matching
// the raw text again.
type Instruction struct {
	Kind Kind   `json:"kind"`
	Name string `json:"name,omitempty"` // scripted sequences
	Text string `json:"text,omitempty"` // learned policy
}

// Scripted builds an instruction for a named scripted sequence.
func Scripted(name string) Instruction {
	return Instruction{Kind: KindScripted, Name: name}
}

// Learned builds an instruction for the learned policy.
func Learned(text string) Instruction {
	return Instruction{Kind: KindLearned, Text: text}
}

// Parse maps a raw instruction string to its tagged variant. The home
// aliases resolve to the privileged scripted home sequence; everything else
// goes to the learned policy.
func Parse(raw string) (Instruction, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return Instruction{}, fmt.Errorf("%w: empty instruction", actuator.ErrInvalidInput)
	}
	switch strings.ToLower(text) {
	case "home", "go home":
		return Scripted("home"), nil
	}
	return Learned(text), nil
}

// IsHome reports whether this is the privileged home instruction.
func (in Instruction) IsHome() bool {
	return in.Kind == KindScripted && in.Name == "home"
}

// String returns the human-readable form used in job records.
func (in Instruction) String() string {
	if in.Kind == KindScripted {
		return in.Name
	}
	return in.Text
}

// Sequence is a lazy stream of action chunks. Next returns Done (with the
// terminal phase) once exhausted; every sequence is finite per invocation.
// frame carries the freshest camera frame bytes and may be nil.
type Sequence interface {
	Next(ctx context.Context, obs actuator.Observation, frame []byte) (actuator.Chunk, Phase, error)
}

// Source plans a fresh sequence for an instruction. A new Sequence is
// produced on every call, so a resubmitted instruction restarts cleanly.
type Source interface {
	Plan(ctx context.Context, instr Instruction, obs actuator.Observation) (Sequence, error)
}
