// Table-driven driver error mapping. Vendor-specific error messages are
// normalized to container error codes without heuristics: each driver gets a
// token table, unknown tokens map to INTERNAL.
package actuator

import (
	"errors"
	"fmt"
	"strings"
)

// Normalized container errors.
var (
	ErrInvalidInput = errors.New("INVALID_INPUT")
	ErrBusy         = errors.New("BUSY")
	ErrUnavailable  = errors.New("UNAVAILABLE")
	ErrHardware     = errors.New("HARDWARE_ERROR")
	ErrInternal     = errors.New("INTERNAL")
)

// DriverMap defines the error token mapping for a specific driver vendor.
type DriverMap struct {
	Invalid     []string // Tokens that map to INVALID_INPUT
	Busy        []string // Tokens that map to BUSY
	Unavailable []string // Tokens that map to UNAVAILABLE
	Hardware    []string // Tokens that map to HARDWARE_ERROR
}

// DriverErrorMappings contains the deterministic error mapping tables for all
// supported drivers. Extending: add a vendor entry with its token arrays and
// use NormalizeDriverErrorWithDriver(err, payload, "vendorID"). Unknown
// vendors fall back to "generic"; unknown tokens map to INTERNAL.
var DriverErrorMappings = map[string]DriverMap{
	"xarm": {
		Invalid: []string{
			"JOINT_OUT_OF_RANGE",
			"INVALID_JOINT_COUNT",
			"INVALID_ANGLE",
			"PARAMETER_OUT_OF_RANGE",
			"SPEED_LIMIT_EXCEEDED",
		},
		Busy: []string{
			"ARM_BUSY",
			"MOTION_IN_PROGRESS",
			"COMMAND_QUEUE_FULL",
			"RATE_LIMITED",
		},
		Unavailable: []string{
			"NOT_CONNECTED",
			"SERVO_OFF",
			"EMERGENCY_STOP_ACTIVE",
			"SYSTEM_INITIALIZING",
			"NOT_READY",
		},
		Hardware: []string{
			"SERVO_ERROR",
			"JOINT_OVERCURRENT",
			"COMMUNICATION_TIMEOUT",
			"ENCODER_FAULT",
			"COLLISION_DETECTED",
		},
	},
	"generic": {
		Invalid: []string{
			"OUT_OF_RANGE",
			"INVALID_PARAMETER",
			"BAD_VALUE",
			"DIMENSION_MISMATCH",
		},
		Busy: []string{
			"BUSY",
			"RETRY",
			"RATE_LIMIT",
			"BACKOFF",
		},
		Unavailable: []string{
			"UNAVAILABLE",
			"OFFLINE",
			"NOT_READY",
			"DISCONNECTED",
		},
		Hardware: []string{
			"HARDWARE",
			"TRANSPORT",
			"IO_ERROR",
			"TIMEOUT",
		},
	},
}

// DriverError wraps a driver fault with its normalized code and the original
// diagnostic payload.
type DriverError struct {
	Code     error       // Normalized container code
	Original error       // Driver error
	Details  interface{} // Driver payload (opaque)
}

func (e *DriverError) Error() string {
	return fmt.Sprintf("%v (driver: %v)", e.Code, e.Original)
}

func (e *DriverError) Unwrap() error {
	return e.Code
}

// NormalizeDriverError maps driver errors to container codes using the
// generic token table.
func NormalizeDriverError(driverErr error, payload interface{}) error {
	return NormalizeDriverErrorWithDriver(driverErr, payload, "generic")
}

// NormalizeDriverErrorWithDriver maps driver errors using a specific vendor
// token table.
func NormalizeDriverErrorWithDriver(driverErr error, payload interface{}, driverID string) error {
	if driverErr == nil {
		return nil
	}

	// Already normalized errors pass through untouched.
	var de *DriverError
	if errors.As(driverErr, &de) {
		return driverErr
	}

	return &DriverError{
		Code:     mapDriverErrorToCode(driverErr.Error(), driverID),
		Original: driverErr,
		Details:  payload,
	}
}

// CodeOf returns the normalized code string for an error, or "INTERNAL" when
// the error maps to no known sentinel. Nil returns the empty string.
func CodeOf(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidInput):
		return ErrInvalidInput.Error()
	case errors.Is(err, ErrBusy):
		return ErrBusy.Error()
	case errors.Is(err, ErrUnavailable):
		return ErrUnavailable.Error()
	case errors.Is(err, ErrHardware):
		return ErrHardware.Error()
	default:
		return ErrInternal.Error()
	}
}

func mapDriverErrorToCode(msg string, driverID string) error {
	driverMap, exists := DriverErrorMappings[driverID]
	if !exists {
		driverMap = DriverErrorMappings["generic"]
	}

	upperMsg := strings.ToUpper(msg)

	for _, token := range driverMap.Invalid {
		if strings.Contains(upperMsg, token) {
			return ErrInvalidInput
		}
	}
	for _, token := range driverMap.Busy {
		if strings.Contains(upperMsg, token) {
			return ErrBusy
		}
	}
	for _, token := range driverMap.Unavailable {
		if strings.Contains(upperMsg, token) {
			return ErrUnavailable
		}
	}
	for _, token := range driverMap.Hardware {
		if strings.Contains(upperMsg, token) {
			return ErrHardware
		}
	}

	// Unknown token maps to INTERNAL
	return ErrInternal
}
