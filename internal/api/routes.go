package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/arm-control/acc/internal/auth"
	"github.com/arm-control/acc/internal/executor"
	"github.com/arm-control/acc/internal/perception"
)

const maxFrameBytes = 8 << 20

type submitRequest struct {
	Instruction string `json:"instruction"`
	Options     struct {
		TimeoutMS     int64    `json:"timeoutMs"`
		ConfidenceMin *float64 `json:"confidenceMin"`
	} `json:"options"`
}

func (s *Server) handleSubmitJob(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_INPUT", "malformed request body", nil)
		return
	}

	opts := executor.Options{
		ConfidenceMin: req.Options.ConfidenceMin,
		User:          auth.Subject(r.Context()),
	}
	if req.Options.TimeoutMS > 0 {
		opts.Timeout = time.Duration(req.Options.TimeoutMS) * time.Millisecond
	}

	id, err := s.jobs.Submit(r.Context(), req.Instruction, opts)
	if err != nil {
		writeAPIError(w, err)
		return
	}
	writeData(w, http.StatusAccepted, map[string]string{"jobId": id})
}

// handleJobStatus always answers 200. An unknown ID gets a failed-shaped
// record so pollers of evicted or mistyped jobs terminate instead of
// retrying forever.
func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rec, ok := s.jobs.Status(id)
	if !ok {
		rec = executor.Record{
			ID:      id,
			State:   executor.StateFailed,
			Message: "unknown id",
		}
	}
	writeData(w, http.StatusOK, rec)
}

type dispenseRequest struct {
	DurationMS int64 `json:"durationMs"`
}

func (s *Server) handleDispense(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	user := auth.Subject(r.Context())

	var req dispenseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.DurationMS <= 0 {
		writeError(w, http.StatusBadRequest, "INVALID_INPUT", "durationMs must be positive", nil)
		return
	}

	err := s.arm.Dispense(r.Context(), time.Duration(req.DurationMS)*time.Millisecond)
	s.logAudit(user, "", "dispense", outcomeOf(err), err, start)
	if err != nil {
		writeAPIError(w, err)
		return
	}
	writeData(w, http.StatusOK, map[string]bool{"dispensed": true})
}

type speakRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleSpeak(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	user := auth.Subject(r.Context())

	var req speakRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "INVALID_INPUT", "text must not be empty", nil)
		return
	}

	err := s.arm.Speak(r.Context(), req.Text)
	s.logAudit(user, "", "speak", outcomeOf(err), err, start)
	if err != nil {
		writeAPIError(w, err)
		return
	}
	writeData(w, http.StatusOK, map[string]bool{"spoken": true})
}

func (s *Server) handleEmergencyStop(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	user := auth.Subject(r.Context())

	err := s.jobs.EmergencyStop(r.Context())
	s.logAudit(user, "", "emergency_stop", outcomeOf(err), err, start)
	if err != nil {
		writeAPIError(w, err)
		return
	}
	writeData(w, http.StatusOK, map[string]bool{"stopped": true})
}

// handleFrameIngest accepts raw frame bytes from HTTP push sources. The
// response reports whether the frame entered the analysis queue; a drop is
// not an error, the sender should keep sending.
func (s *Server) handleFrameIngest(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxFrameBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_INPUT", "unreadable body", nil)
		return
	}
	if len(data) == 0 {
		writeError(w, http.StatusBadRequest, "INVALID_INPUT", "empty frame", nil)
		return
	}
	if len(data) > maxFrameBytes {
		writeError(w, http.StatusBadRequest, "INVALID_INPUT", "frame exceeds size limit", nil)
		return
	}

	frame := &perception.Frame{Data: data, CapturedAt: time.Now().UTC()}
	queued := s.frames.Offer(frame)
	writeData(w, http.StatusAccepted, map[string]interface{}{
		"queued": queued,
		"seq":    frame.Seq,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	activeID, active := s.jobs.Active()
	exec := map[string]interface{}{"active": active}
	if active {
		if rec, ok := s.jobs.Status(activeID); ok {
			exec["jobId"] = rec.ID
			exec["state"] = rec.State
			exec["phase"] = rec.Phase
		}
	}
	writeData(w, http.StatusOK, map[string]interface{}{
		"status":   "ok",
		"executor": exec,
		"pipeline": s.frames.Stats(),
	})
}

func outcomeOf(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
