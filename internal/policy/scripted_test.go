package policy

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/arm-control/acc/internal/actuator"
	"github.com/arm-control/acc/internal/config"
)

func TestParse(t *testing.T) {
	cases := []struct {
		raw      string
		wantKind Kind
		wantHome bool
	}{
		{"go home", KindScripted, true},
		{"HOME", KindScripted, true},
		{"  Go Home  ", KindScripted, true},
		{"pick up the ball", KindLearned, false},
	}
	for _, tc := range cases {
		instr, err := Parse(tc.raw)
		if err != nil {
			t.Fatalf("Parse(%q): %v", tc.raw, err)
		}
		if instr.Kind != tc.wantKind {
			t.Errorf("Parse(%q).Kind = %q, want %q", tc.raw, instr.Kind, tc.wantKind)
		}
		if instr.IsHome() != tc.wantHome {
			t.Errorf("Parse(%q).IsHome = %v, want %v", tc.raw, instr.IsHome(), tc.wantHome)
		}
	}
}

func TestParse_Empty(t *testing.T) {
	if _, err := Parse("   "); !errors.Is(err, actuator.ErrInvalidInput) {
		t.Fatalf("want INVALID_INPUT for blank instruction, got %v", err)
	}
}

func TestScriptedSource_HomeSequence(t *testing.T) {
	poses := config.Default().Safety.ReferencePoses
	source := NewScriptedSource(DefaultScripts(poses))

	seq, err := source.Plan(context.Background(), Scripted("home"), actuator.Observation{})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}

	chunk, phase, err := seq.Next(context.Background(), actuator.Observation{}, nil)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if phase != PhaseHome {
		t.Errorf("phase = %q, want %q", phase, PhaseHome)
	}
	if !reflect.DeepEqual(chunk.Targets, poses["home"]) {
		t.Errorf("targets = %v, want home pose %v", chunk.Targets, poses["home"])
	}
	if chunk.Confidence != nil {
		t.Errorf("scripted chunks must not fabricate confidence")
	}

	_, phase, err = seq.Next(context.Background(), actuator.Observation{}, nil)
	if !errors.Is(err, Done) {
		t.Fatalf("want Done after last step, got %v", err)
	}
	if phase != PhaseHome {
		t.Errorf("terminal phase = %q, want %q", phase, PhaseHome)
	}
}

func TestScriptedSource_Restartable(t *testing.T) {
	source := NewScriptedSource(DefaultScripts(config.Default().Safety.ReferencePoses))

	for i := 0; i < 2; i++ {
		seq, err := source.Plan(context.Background(), Scripted("home"), actuator.Observation{})
		if err != nil {
			t.Fatalf("Plan %d: %v", i, err)
		}
		if _, _, err := seq.Next(context.Background(), actuator.Observation{}, nil); err != nil {
			t.Fatalf("fresh sequence %d must yield its first chunk: %v", i, err)
		}
	}
}

func TestScriptedSource_UnknownScript(t *testing.T) {
	source := NewScriptedSource(DefaultScripts(config.Default().Safety.ReferencePoses))
	_, err := source.Plan(context.Background(), Scripted("backflip"), actuator.Observation{})
	if !errors.Is(err, actuator.ErrInvalidInput) {
		t.Fatalf("want INVALID_INPUT for unknown script, got %v", err)
	}
}

func TestThrowMacro_WithinLimits(t *testing.T) {
	cfg := config.Default()
	ready := cfg.Safety.ReferencePoses["ready_to_throw"]
	macro := ThrowMacro(ready)

	if len(macro) != 3 {
		t.Fatalf("macro has %d steps, want 3", len(macro))
	}
	for i, chunk := range macro {
		if len(chunk.Targets) != len(ready) {
			t.Fatalf("step %d has %d targets, want %d", i, len(chunk.Targets), len(ready))
		}
		for j, target := range chunk.Targets {
			limit := cfg.Safety.JointLimits[j]
			if target < limit.Min || target > limit.Max {
				t.Errorf("step %d joint %d target %v outside [%v, %v]", i, j, target, limit.Min, limit.Max)
			}
		}
	}
	// Macro ends at the ready pose, not somewhere mid-swing.
	if !reflect.DeepEqual(macro[len(macro)-1].Targets, ready) {
		t.Errorf("macro must recover to the ready pose")
	}
}
