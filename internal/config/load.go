package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"
)

// DefaultFile is the config file looked up when no explicit path is given.
const DefaultFile = "acc.yaml"

// Load merges Default() + optional yaml file + ACC_* env overrides, then
// validates the result. An empty path falls back to DefaultFile when present.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		if _, err := os.Stat(DefaultFile); err == nil {
			path = DefaultFile
		}
	}
	if path != "" {
		if err := loadFile(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// loadFile unmarshals yaml over the current config, so absent keys keep their
// defaults.
func loadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

func applyEnvOverrides(cfg *Config) {
	cfg.Server.Addr = GetEnvVar("ACC_ADDR", cfg.Server.Addr)

	cfg.Arm.Driver = GetEnvVar("ACC_ARM_DRIVER", cfg.Arm.Driver)
	cfg.Arm.DOF = GetEnvInt("ACC_ARM_DOF", cfg.Arm.DOF)

	cfg.Control.RateHz = GetEnvFloat("ACC_CONTROL_RATE_HZ", cfg.Control.RateHz)
	cfg.Control.JobTimeout = GetEnvDuration("ACC_CONTROL_JOB_TIMEOUT", cfg.Control.JobTimeout)
	cfg.Control.ApplyTimeout = GetEnvDuration("ACC_CONTROL_APPLY_TIMEOUT", cfg.Control.ApplyTimeout)
	cfg.Control.HomeTimeout = GetEnvDuration("ACC_CONTROL_HOME_TIMEOUT", cfg.Control.HomeTimeout)

	cfg.Policy.InferenceURL = GetEnvVar("ACC_POLICY_URL", cfg.Policy.InferenceURL)
	cfg.Policy.InferenceTimeout = GetEnvDuration("ACC_POLICY_TIMEOUT", cfg.Policy.InferenceTimeout)
	cfg.Policy.MaxChunksPerPlan = GetEnvInt("ACC_POLICY_MAX_CHUNKS", cfg.Policy.MaxChunksPerPlan)

	cfg.Perception.URL = GetEnvVar("ACC_PERCEPTION_URL", cfg.Perception.URL)
	cfg.Perception.Timeout = GetEnvDuration("ACC_PERCEPTION_TIMEOUT", cfg.Perception.Timeout)
	cfg.Perception.QueueCapacity = GetEnvInt("ACC_PERCEPTION_QUEUE_CAPACITY", cfg.Perception.QueueCapacity)
	cfg.Perception.Workers = GetEnvInt("ACC_PERCEPTION_WORKERS", cfg.Perception.Workers)
	cfg.Perception.ConfidenceThreshold = GetEnvFloat("ACC_PERCEPTION_CONFIDENCE_THRESHOLD", cfg.Perception.ConfidenceThreshold)
	cfg.Perception.EventSinkURL = GetEnvVar("ACC_PERCEPTION_EVENT_SINK_URL", cfg.Perception.EventSinkURL)

	cfg.Telemetry.EventBufferSize = GetEnvInt("ACC_TELEMETRY_EVENT_BUFFER_SIZE", cfg.Telemetry.EventBufferSize)
	cfg.Telemetry.HeartbeatInterval = GetEnvDuration("ACC_TELEMETRY_HEARTBEAT_INTERVAL", cfg.Telemetry.HeartbeatInterval)

	cfg.Audit.Dir = GetEnvVar("ACC_AUDIT_DIR", cfg.Audit.Dir)

	if val := os.Getenv("ACC_AUTH_ENABLED"); val != "" {
		if enabled, err := strconv.ParseBool(val); err == nil {
			cfg.Auth.Enabled = enabled
		}
	}
	cfg.Auth.Algorithm = GetEnvVar("ACC_AUTH_ALGORITHM", cfg.Auth.Algorithm)
	cfg.Auth.SecretKey = GetEnvVar("ACC_AUTH_SECRET", cfg.Auth.SecretKey)
	cfg.Auth.PublicKeyPEM = GetEnvVar("ACC_AUTH_PUBLIC_KEY_PEM", cfg.Auth.PublicKeyPEM)
}

// GetEnvVar returns the value of an environment variable with a default.
func GetEnvVar(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetEnvDuration returns an environment variable as a duration with a default.
func GetEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// GetEnvFloat returns an environment variable as a float64 with a default.
func GetEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

// GetEnvInt returns an environment variable as an int with a default.
func GetEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
