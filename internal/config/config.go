package config

import "time"

// Config is the complete container configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Arm        ArmConfig        `yaml:"arm"`
	Control    ControlConfig    `yaml:"control"`
	Safety     SafetyConfig     `yaml:"safety"`
	Policy     PolicyConfig     `yaml:"policy"`
	Perception PerceptionConfig `yaml:"perception"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
	Audit      AuditConfig      `yaml:"audit"`
	Auth       AuthConfig       `yaml:"auth"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	IdleTimeout  time.Duration `yaml:"idleTimeout"`
}

// ArmConfig selects and parameterizes the actuator driver.
type ArmConfig struct {
	Driver string `yaml:"driver"` // "mock" until a hardware driver lands
	DOF    int    `yaml:"dof"`
}

// ControlConfig holds the command execution loop cadence and budgets.
type ControlConfig struct {
	// RateHz is the control loop cadence. Soft real-time: 10-20 Hz.
	RateHz float64 `yaml:"rateHz"`

	// JobTimeout is the wall-clock budget for one job before the timeout
	// cancellation path fires.
	JobTimeout time.Duration `yaml:"jobTimeout"`

	// ApplyTimeout bounds a single actuator command.
	ApplyTimeout time.Duration `yaml:"applyTimeout"`

	// HomeTimeout bounds the best-effort recovery Home call.
	HomeTimeout time.Duration `yaml:"homeTimeout"`

	// MacroStepInterval is the pacing between fixed handoff-macro steps, and
	// MacroTimeout bounds the whole macro.
	MacroStepInterval time.Duration `yaml:"macroStepInterval"`
	MacroTimeout      time.Duration `yaml:"macroTimeout"`
}

// Period returns the control loop period derived from RateHz.
func (c ControlConfig) Period() time.Duration {
	if c.RateHz <= 0 {
		return 100 * time.Millisecond
	}
	return time.Duration(float64(time.Second) / c.RateHz)
}

// JointLimit is the allowed [Min,Max] range for one degree of freedom, in
// radians.
type JointLimit struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

// SafetyConfig holds the gate's hardware limits and pose references.
type SafetyConfig struct {
	JointLimits []JointLimit `yaml:"jointLimits"`

	// ReferencePoses are named joint poses used for pose-readiness checks.
	ReferencePoses map[string][]float64 `yaml:"referencePoses"`

	// PoseTolerance is the per-joint tolerance (radians) when matching an
	// observed pose against a reference pose.
	PoseTolerance float64 `yaml:"poseTolerance"`
}

// PolicyConfig holds learned-policy inference settings.
type PolicyConfig struct {
	InferenceURL     string        `yaml:"inferenceUrl"`
	InferenceTimeout time.Duration `yaml:"inferenceTimeout"`

	// MaxChunksPerPlan bounds one planning invocation so every sequence is
	// finite even if the model never reports done.
	MaxChunksPerPlan int `yaml:"maxChunksPerPlan"`
}

// PerceptionConfig holds frame pipeline settings.
type PerceptionConfig struct {
	URL                 string        `yaml:"url"`
	Timeout             time.Duration `yaml:"timeout"`
	QueueCapacity       int           `yaml:"queueCapacity"`
	Workers             int           `yaml:"workers"`
	ConfidenceThreshold float64       `yaml:"confidenceThreshold"`
	EnabledModels       []string      `yaml:"enabledModels"`
	EventSinkURL        string        `yaml:"eventSinkUrl"`
}

// TelemetryConfig holds SSE hub settings.
type TelemetryConfig struct {
	EventBufferSize   int           `yaml:"eventBufferSize"`
	HeartbeatInterval time.Duration `yaml:"heartbeatInterval"`
	HeartbeatJitter   time.Duration `yaml:"heartbeatJitter"`
}

// AuditConfig holds audit log settings.
type AuditConfig struct {
	Dir        string `yaml:"dir"`
	MaxSizeMB  int    `yaml:"maxSizeMb"`
	MaxBackups int    `yaml:"maxBackups"`
}

// AuthConfig holds API auth settings. Disabled by default for lab use.
type AuthConfig struct {
	Enabled      bool   `yaml:"enabled"`
	Algorithm    string `yaml:"algorithm"` // "HS256" or "RS256"
	SecretKey    string `yaml:"secretKey"`
	PublicKeyPEM string `yaml:"publicKeyPem"`
}

// Default returns the baseline configuration for a 6-DOF arm.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:         ":8000",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		Arm: ArmConfig{
			Driver: "mock",
			DOF:    6,
		},
		Control: ControlConfig{
			RateHz:            10,
			JobTimeout:        20 * time.Second,
			ApplyTimeout:      50 * time.Millisecond,
			HomeTimeout:       5 * time.Second,
			MacroStepInterval: 150 * time.Millisecond,
			MacroTimeout:      3 * time.Second,
		},
		Safety: SafetyConfig{
			JointLimits: []JointLimit{
				{Min: -3.1, Max: 3.1},
				{Min: -2.0, Max: 2.0},
				{Min: -2.4, Max: 2.4},
				{Min: -3.1, Max: 3.1},
				{Min: -1.8, Max: 1.8},
				{Min: -3.1, Max: 3.1},
			},
			ReferencePoses: map[string][]float64{
				"home":           {0, -0.8, 0.6, 0, 0.4, 0},
				"ready_to_throw": {0.2, -1.1, 1.3, 0, 0.9, 0},
			},
			PoseTolerance: 0.15,
		},
		Policy: PolicyConfig{
			InferenceURL:     "http://localhost:9090",
			InferenceTimeout: 2 * time.Second,
			MaxChunksPerPlan: 200,
		},
		Perception: PerceptionConfig{
			URL:                 "http://localhost:9091",
			Timeout:             5 * time.Second,
			QueueCapacity:       5,
			Workers:             1,
			ConfidenceThreshold: 0.7,
			EnabledModels:       []string{"detector"},
		},
		Telemetry: TelemetryConfig{
			EventBufferSize:   50,
			HeartbeatInterval: 15 * time.Second,
			HeartbeatJitter:   2 * time.Second,
		},
		Audit: AuditConfig{
			Dir:        "logs",
			MaxSizeMB:  20,
			MaxBackups: 5,
		},
		Auth: AuthConfig{
			Enabled:   false,
			Algorithm: "HS256",
		},
	}
}
