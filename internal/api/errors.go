package api

import (
	"errors"
	"net/http"

	"github.com/arm-control/acc/internal/actuator"
)

// toAPIError maps normalized container errors to HTTP status and code.
// A busy executor is a client-resolvable conflict, not a server fault.
func toAPIError(err error) (status int, code, message string) {
	switch {
	case errors.Is(err, actuator.ErrInvalidInput):
		return http.StatusBadRequest, "INVALID_INPUT", err.Error()
	case errors.Is(err, actuator.ErrBusy):
		return http.StatusConflict, "BUSY", err.Error()
	case errors.Is(err, actuator.ErrUnavailable):
		return http.StatusServiceUnavailable, "UNAVAILABLE", err.Error()
	case errors.Is(err, actuator.ErrHardware):
		return http.StatusInternalServerError, "HARDWARE_ERROR", err.Error()
	default:
		return http.StatusInternalServerError, "INTERNAL", err.Error()
	}
}

func writeAPIError(w http.ResponseWriter, err error) {
	status, code, message := toAPIError(err)
	writeError(w, status, code, message, nil)
}
