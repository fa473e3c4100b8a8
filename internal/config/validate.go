package config

import "fmt"

// Validate enforces the container's configuration rules.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config cannot be nil")
	}

	if err := validateControl(&cfg.Control); err != nil {
		return fmt.Errorf("control validation failed: %w", err)
	}
	if err := validateSafety(&cfg.Safety, cfg.Arm.DOF); err != nil {
		return fmt.Errorf("safety validation failed: %w", err)
	}
	if err := validatePerception(&cfg.Perception); err != nil {
		return fmt.Errorf("perception validation failed: %w", err)
	}
	if err := validateTelemetry(&cfg.Telemetry); err != nil {
		return fmt.Errorf("telemetry validation failed: %w", err)
	}
	if err := validateAuth(&cfg.Auth); err != nil {
		return fmt.Errorf("auth validation failed: %w", err)
	}
	return nil
}

// validateControl checks the loop cadence and budgets. The control loop is
// soft real-time at 10-20 Hz.
func validateControl(c *ControlConfig) error {
	if c.RateHz < 10 || c.RateHz > 20 {
		return fmt.Errorf("control rate must be within [10, 20] Hz, got %v", c.RateHz)
	}
	if c.JobTimeout <= 0 {
		return fmt.Errorf("job timeout must be positive, got %v", c.JobTimeout)
	}
	if c.ApplyTimeout <= 0 {
		return fmt.Errorf("apply timeout must be positive, got %v", c.ApplyTimeout)
	}
	if c.ApplyTimeout > c.Period() {
		return fmt.Errorf("apply timeout %v exceeds loop period %v", c.ApplyTimeout, c.Period())
	}
	if c.HomeTimeout <= 0 {
		return fmt.Errorf("home timeout must be positive, got %v", c.HomeTimeout)
	}
	if c.MacroTimeout <= 0 || c.MacroStepInterval <= 0 {
		return fmt.Errorf("macro timing must be positive, got step %v timeout %v", c.MacroStepInterval, c.MacroTimeout)
	}
	return nil
}

func validateSafety(s *SafetyConfig, dof int) error {
	if dof <= 0 {
		return fmt.Errorf("arm dof must be positive, got %d", dof)
	}
	if len(s.JointLimits) != dof {
		return fmt.Errorf("joint limits cover %d joints, arm has %d", len(s.JointLimits), dof)
	}
	for i, l := range s.JointLimits {
		if l.Min >= l.Max {
			return fmt.Errorf("joint %d limit [%v, %v] is empty", i, l.Min, l.Max)
		}
	}
	if s.PoseTolerance <= 0 {
		return fmt.Errorf("pose tolerance must be positive, got %v", s.PoseTolerance)
	}
	for name, pose := range s.ReferencePoses {
		if len(pose) != dof {
			return fmt.Errorf("reference pose %q has %d joints, arm has %d", name, len(pose), dof)
		}
	}
	return nil
}

func validatePerception(p *PerceptionConfig) error {
	if p.QueueCapacity <= 0 {
		return fmt.Errorf("queue capacity must be positive, got %d", p.QueueCapacity)
	}
	if p.Workers <= 0 {
		return fmt.Errorf("worker count must be positive, got %d", p.Workers)
	}
	if p.Timeout <= 0 {
		return fmt.Errorf("perception timeout must be positive, got %v", p.Timeout)
	}
	if p.ConfidenceThreshold < 0 || p.ConfidenceThreshold > 1 {
		return fmt.Errorf("confidence threshold must be within [0, 1], got %v", p.ConfidenceThreshold)
	}
	return nil
}

func validateTelemetry(t *TelemetryConfig) error {
	if t.EventBufferSize <= 0 {
		return fmt.Errorf("event buffer size must be positive, got %d", t.EventBufferSize)
	}
	if t.HeartbeatInterval <= 0 {
		return fmt.Errorf("heartbeat interval must be positive, got %v", t.HeartbeatInterval)
	}
	if t.HeartbeatJitter < 0 || t.HeartbeatJitter > t.HeartbeatInterval/2 {
		return fmt.Errorf("heartbeat jitter %v exceeds 50%% of interval %v", t.HeartbeatJitter, t.HeartbeatInterval)
	}
	return nil
}

func validateAuth(a *AuthConfig) error {
	if !a.Enabled {
		return nil
	}
	switch a.Algorithm {
	case "HS256":
		if a.SecretKey == "" {
			return fmt.Errorf("HS256 requires a secret key")
		}
	case "RS256":
		if a.PublicKeyPEM == "" {
			return fmt.Errorf("RS256 requires a public key PEM")
		}
	default:
		return fmt.Errorf("unsupported auth algorithm %q", a.Algorithm)
	}
	return nil
}
