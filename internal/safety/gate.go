// Package safety implements the validation gate between any action source and
// the arm hardware.
//
// Every candidate chunk passes through the gate regardless of origin, so
// unsafe targets produced by a scripted sequence and by a learned policy are
// caught identically at this single enforcement point.
package safety

import (
	"fmt"
	"math"
	"sync/atomic"

	"github.com/arm-control/acc/internal/actuator"
	"github.com/arm-control/acc/internal/config"
)

// Verdict is the outcome of a gate check.
type Verdict struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// Gate validates candidate actions before dispatch and verifies the
// preconditions of privileged macros.
type Gate struct {
	limits    []config.JointLimit
	refPoses  map[string][]float64
	tolerance float64

	// occluded is set by the perception pipeline when the workspace shows an
	// occlusion or obstruction signal. Conservative: clear only when no flag
	// is raised.
	occluded atomic.Bool
}

// NewGate builds a gate from the validated safety configuration.
func NewGate(cfg config.SafetyConfig) *Gate {
	poses := make(map[string][]float64, len(cfg.ReferencePoses))
	for name, pose := range cfg.ReferencePoses {
		poses[name] = append([]float64(nil), pose...)
	}
	return &Gate{
		limits:    append([]config.JointLimit(nil), cfg.JointLimits...),
		refPoses:  poses,
		tolerance: cfg.PoseTolerance,
	}
}

// ValidateTargets checks every degree of freedom of a chunk against the
// configured [min,max] limits.
func (g *Gate) ValidateTargets(chunk actuator.Chunk) Verdict {
	if len(chunk.Targets) != len(g.limits) {
		return Verdict{
			Reason: fmt.Sprintf("chunk has %d targets, limits cover %d joints", len(chunk.Targets), len(g.limits)),
		}
	}
	for i, target := range chunk.Targets {
		if math.IsNaN(target) || math.IsInf(target, 0) {
			return Verdict{Reason: fmt.Sprintf("joint %d target is not a finite number", i)}
		}
		limit := g.limits[i]
		if target < limit.Min || target > limit.Max {
			return Verdict{
				Reason: fmt.Sprintf("joint %d target %.3f outside [%.3f, %.3f]", i, target, limit.Min, limit.Max),
			}
		}
	}
	return Verdict{Allowed: true}
}

// ReadyToThrow verifies the actually observed pose matches the
// "ready_to_throw" reference pose within tolerance. The check fails closed
// when the observation carries no measured feedback: a commanded echo or an
// unknown state is not evidence the arm is where the macro needs it.
func (g *Gate) ReadyToThrow(obs actuator.Observation) bool {
	return g.AtReferencePose(obs, "ready_to_throw")
}

// AtReferencePose reports whether the observed pose matches the named
// reference pose within the configured per-joint tolerance.
func (g *Gate) AtReferencePose(obs actuator.Observation, name string) bool {
	ref, ok := g.refPoses[name]
	if !ok {
		return false
	}
	if !obs.Measured() {
		return false
	}
	if len(obs.Joints) != len(ref) {
		return false
	}
	for i, joint := range obs.Joints {
		if math.Abs(joint-ref[i]) > g.tolerance {
			return false
		}
	}
	return true
}

// WorkspaceClear reports whether the workspace shows no occlusion signal.
func (g *Gate) WorkspaceClear() bool {
	return !g.occluded.Load()
}

// SetOccluded raises or clears the workspace occlusion flag.
func (g *Gate) SetOccluded(occluded bool) {
	g.occluded.Store(occluded)
}
