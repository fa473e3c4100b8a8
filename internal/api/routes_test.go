package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/arm-control/acc/internal/actuator"
	"github.com/arm-control/acc/internal/config"
	"github.com/arm-control/acc/internal/executor"
	"github.com/arm-control/acc/internal/perception"
)

type fakeJobs struct {
	submitErr error
	records   map[string]executor.Record
	lastInstr string
	lastOpts  executor.Options
	stopped   bool
}

func (f *fakeJobs) Submit(ctx context.Context, instruction string, opts executor.Options) (string, error) {
	if f.submitErr != nil {
		return "", f.submitErr
	}
	f.lastInstr = instruction
	f.lastOpts = opts
	return "job-123", nil
}

func (f *fakeJobs) Status(id string) (executor.Record, bool) {
	rec, ok := f.records[id]
	return rec, ok
}

func (f *fakeJobs) Active() (string, bool) { return "", false }

func (f *fakeJobs) EmergencyStop(ctx context.Context) error {
	f.stopped = true
	return nil
}

type fakeFrames struct {
	queued bool
	offers int
	last   *perception.Frame
}

func (f *fakeFrames) Offer(frame *perception.Frame) bool {
	f.offers++
	f.last = frame
	frame.Seq = uint64(f.offers)
	return f.queued
}

func (f *fakeFrames) Stats() perception.Stats {
	return perception.Stats{Running: true, Processed: 12, Dropped: 3, QueueDepth: 1}
}

type fakeArm struct {
	dispensed   []time.Duration
	spoken      []string
	dispenseErr error
}

func (f *fakeArm) Dispense(ctx context.Context, d time.Duration) error {
	if f.dispenseErr != nil {
		return f.dispenseErr
	}
	f.dispensed = append(f.dispensed, d)
	return nil
}

func (f *fakeArm) Speak(ctx context.Context, text string) error {
	f.spoken = append(f.spoken, text)
	return nil
}

func newTestServer(jobs *fakeJobs, frames *fakeFrames, arm *fakeArm) *Server {
	return New(config.Default().Server, Deps{Jobs: jobs, Frames: frames, Arm: arm})
}

func doJSON(t *testing.T, h http.Handler, method, path string, body interface{}) (*httptest.ResponseRecorder, Envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var env Envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope from %q: %v", rec.Body.String(), err)
	}
	if env.CorrelationID == "" {
		t.Error("missing correlation ID")
	}
	return rec, env
}

func TestSubmitJob_Accepted(t *testing.T) {
	jobs := &fakeJobs{}
	srv := newTestServer(jobs, &fakeFrames{}, &fakeArm{})

	rec, env := doJSON(t, srv.Handler(), http.MethodPost, "/api/v1/jobs", map[string]interface{}{
		"instruction": "pick up the red ball",
		"options":     map[string]interface{}{"timeoutMs": 5000},
	})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status %d, want 202", rec.Code)
	}
	data := env.Data.(map[string]interface{})
	if data["jobId"] != "job-123" {
		t.Fatalf("data %v", env.Data)
	}
	if jobs.lastInstr != "pick up the red ball" {
		t.Fatalf("instruction %q", jobs.lastInstr)
	}
	if jobs.lastOpts.Timeout != 5*time.Second {
		t.Fatalf("timeout %v", jobs.lastOpts.Timeout)
	}
}

func TestSubmitJob_Busy(t *testing.T) {
	jobs := &fakeJobs{submitErr: fmt.Errorf("%w: job active", actuator.ErrBusy)}
	srv := newTestServer(jobs, &fakeFrames{}, &fakeArm{})

	rec, env := doJSON(t, srv.Handler(), http.MethodPost, "/api/v1/jobs", map[string]string{"instruction": "wave"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("status %d, want 409", rec.Code)
	}
	if env.Code != "BUSY" {
		t.Fatalf("code %q", env.Code)
	}
}

func TestSubmitJob_Invalid(t *testing.T) {
	jobs := &fakeJobs{submitErr: fmt.Errorf("%w: empty instruction", actuator.ErrInvalidInput)}
	srv := newTestServer(jobs, &fakeFrames{}, &fakeArm{})

	rec, env := doJSON(t, srv.Handler(), http.MethodPost, "/api/v1/jobs", map[string]string{"instruction": ""})
	if rec.Code != http.StatusBadRequest || env.Code != "INVALID_INPUT" {
		t.Fatalf("status %d code %s", rec.Code, env.Code)
	}
}

func TestJobStatus_Known(t *testing.T) {
	now := time.Now().UTC()
	jobs := &fakeJobs{records: map[string]executor.Record{
		"abc": {ID: "abc", State: executor.StateSucceeded, Phase: "done", CreatedAt: now},
	}}
	srv := newTestServer(jobs, &fakeFrames{}, &fakeArm{})

	rec, env := doJSON(t, srv.Handler(), http.MethodGet, "/api/v1/jobs/abc", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	data := env.Data.(map[string]interface{})
	if data["state"] != "succeeded" {
		t.Fatalf("state %v", data["state"])
	}
}

func TestJobStatus_UnknownIDTerminates(t *testing.T) {
	srv := newTestServer(&fakeJobs{records: map[string]executor.Record{}}, &fakeFrames{}, &fakeArm{})

	rec, env := doJSON(t, srv.Handler(), http.MethodGet, "/api/v1/jobs/nope", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d, want 200 even for unknown id", rec.Code)
	}
	data := env.Data.(map[string]interface{})
	if data["state"] != "failed" || data["message"] != "unknown id" {
		t.Fatalf("unknown id body %v", data)
	}
}

func TestDispense(t *testing.T) {
	arm := &fakeArm{}
	srv := newTestServer(&fakeJobs{}, &fakeFrames{}, arm)

	rec, _ := doJSON(t, srv.Handler(), http.MethodPost, "/api/v1/arm/dispense", map[string]int{"durationMs": 300})
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	if len(arm.dispensed) != 1 || arm.dispensed[0] != 300*time.Millisecond {
		t.Fatalf("dispensed %v", arm.dispensed)
	}

	rec, env := doJSON(t, srv.Handler(), http.MethodPost, "/api/v1/arm/dispense", map[string]int{"durationMs": 0})
	if rec.Code != http.StatusBadRequest || env.Code != "INVALID_INPUT" {
		t.Fatalf("zero duration: status %d code %s", rec.Code, env.Code)
	}
}

func TestSpeak(t *testing.T) {
	arm := &fakeArm{}
	srv := newTestServer(&fakeJobs{}, &fakeFrames{}, arm)

	rec, _ := doJSON(t, srv.Handler(), http.MethodPost, "/api/v1/arm/speak", map[string]string{"text": "good dog"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	if len(arm.spoken) != 1 || arm.spoken[0] != "good dog" {
		t.Fatalf("spoken %v", arm.spoken)
	}

	rec, _ = doJSON(t, srv.Handler(), http.MethodPost, "/api/v1/arm/speak", map[string]string{"text": "  "})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("blank text: status %d", rec.Code)
	}
}

func TestEmergencyStop(t *testing.T) {
	jobs := &fakeJobs{}
	srv := newTestServer(jobs, &fakeFrames{}, &fakeArm{})

	rec, _ := doJSON(t, srv.Handler(), http.MethodPost, "/api/v1/arm/stop", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	if !jobs.stopped {
		t.Fatal("emergency stop not forwarded")
	}
}

func TestFrameIngest(t *testing.T) {
	frames := &fakeFrames{queued: true}
	srv := newTestServer(&fakeJobs{}, frames, &fakeArm{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/frames", bytes.NewReader([]byte("jpegbytes")))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status %d", rec.Code)
	}
	var env Envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	data := env.Data.(map[string]interface{})
	if data["queued"] != true {
		t.Fatalf("data %v", data)
	}
	if string(frames.last.Data) != "jpegbytes" {
		t.Fatalf("frame data %q", frames.last.Data)
	}

	// a drop is still a 202, the sender just keeps sending
	frames.queued = false
	req = httptest.NewRequest(http.MethodPost, "/api/v1/frames", bytes.NewReader([]byte("more")))
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("dropped frame status %d, want 202", rec.Code)
	}

	// empty body rejected
	req = httptest.NewRequest(http.MethodPost, "/api/v1/frames", bytes.NewReader(nil))
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("empty frame status %d", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	srv := newTestServer(&fakeJobs{}, &fakeFrames{}, &fakeArm{})

	rec, env := doJSON(t, srv.Handler(), http.MethodGet, "/api/v1/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	data := env.Data.(map[string]interface{})
	if data["status"] != "ok" {
		t.Fatalf("health %v", data)
	}
	pipeline := data["pipeline"].(map[string]interface{})
	if pipeline["framesProcessed"].(float64) != 12 {
		t.Fatalf("pipeline stats %v", pipeline)
	}
}
