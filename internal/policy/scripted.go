package policy

import (
	"context"
	"fmt"

	"github.com/arm-control/acc/internal/actuator"
)

// ScriptStep is one target set within a scripted sequence.
type ScriptStep struct {
	Targets []float64
	Phase   Phase
}

// Script is a named fixed sequence of poses with a terminal phase.
type Script struct {
	Name          string
	Steps         []ScriptStep
	TerminalPhase Phase
}

// ScriptedSource serves fixed pose sequences by name.
type ScriptedSource struct {
	scripts map[string]Script
}

// NewScriptedSource builds a source over the given scripts.
func NewScriptedSource(scripts map[string]Script) *ScriptedSource {
	copied := make(map[string]Script, len(scripts))
	for name, s := range scripts {
		copied[name] = s
	}
	return &ScriptedSource{scripts: copied}
}

// DefaultScripts derives the built-in scripts from the configured reference
// poses. The home script is always present; a ready script exists when a
// "ready_to_throw" pose is configured.
func DefaultScripts(refPoses map[string][]float64) map[string]Script {
	scripts := make(map[string]Script)
	if home, ok := refPoses["home"]; ok {
		scripts["home"] = Script{
			Name: "home",
			Steps: []ScriptStep{
				{Targets: append([]float64(nil), home...), Phase: PhaseHome},
			},
			TerminalPhase: PhaseHome,
		}
	}
	if ready, ok := refPoses["ready_to_throw"]; ok {
		scripts["ready"] = Script{
			Name: "ready",
			Steps: []ScriptStep{
				{Targets: append([]float64(nil), ready...), Phase: PhaseMoving},
			},
			TerminalPhase: PhaseReadyToThrow,
		}
	}
	return scripts
}

// Plan returns a fresh iterator over the named script.
func (s *ScriptedSource) Plan(ctx context.Context, instr Instruction, obs actuator.Observation) (Sequence, error) {
	if instr.Kind != KindScripted {
		return nil, fmt.Errorf("%w: scripted source cannot serve %q instructions", actuator.ErrInvalidInput, instr.Kind)
	}
	script, ok := s.scripts[instr.Name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown script %q", actuator.ErrInvalidInput, instr.Name)
	}
	return &scriptSequence{script: script}, nil
}

type scriptSequence struct {
	script Script
	next   int
}

func (s *scriptSequence) Next(ctx context.Context, obs actuator.Observation, frame []byte) (actuator.Chunk, Phase, error) {
	if err := ctx.Err(); err != nil {
		return actuator.Chunk{}, "", err
	}
	if s.next >= len(s.script.Steps) {
		return actuator.Chunk{}, s.script.TerminalPhase, Done
	}
	step := s.script.Steps[s.next]
	s.next++
	// Scripted poses carry no model confidence; none is fabricated.
	return actuator.Chunk{Targets: append([]float64(nil), step.Targets...)}, step.Phase, nil
}

// ThrowMacro is the fixed, time-bounded handoff sequence executed after the
// ready-to-throw and workspace-clear checks pass. Derived from the ready pose
// with fixed joint offsets: wind-up, release, recover.
func ThrowMacro(ready []float64) []actuator.Chunk {
	windup := append([]float64(nil), ready...)
	release := append([]float64(nil), ready...)
	recover := append([]float64(nil), ready...)
	if len(ready) >= 5 {
		windup[1] -= 0.4
		windup[2] += 0.3

		release[1] += 0.4
		release[2] -= 0.9
		release[4] -= 0.5
	}
	return []actuator.Chunk{
		{Targets: windup},
		{Targets: release},
		{Targets: recover},
	}
}
