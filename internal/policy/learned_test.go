package policy

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/arm-control/acc/internal/actuator"
)

func measuredObs(joints ...float64) actuator.Observation {
	return actuator.Observation{
		Joints:     joints,
		Source:     actuator.SourceMeasured,
		ObservedAt: time.Now(),
	}
}

func TestLearnedSequence_YieldsServerChunks(t *testing.T) {
	conf := 0.82
	var gotJoints []float64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Instruction string    `json:"instruction"`
			Joints      []float64 `json:"joints"`
			Frame       string    `json:"frame"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		gotJoints = req.Joints
		if req.Frame == "" {
			t.Errorf("frame bytes not forwarded")
		}
		json.NewEncoder(w).Encode(InferResponse{
			Chunks: []InferredChunk{
				{Targets: []float64{0.1, 0, 0, 0, 0, 0}, Confidence: &conf},
				{Targets: []float64{0.2, 0, 0, 0, 0, 0}},
			},
			Phase: string(PhaseMoving),
			Done:  true,
		})
	}))
	defer server.Close()

	source := NewLearnedSource(NewInferenceClient(server.URL, time.Second), 10)
	seq, err := source.Plan(context.Background(), Learned("pick up the ball"), actuator.Observation{})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}

	obs := measuredObs(0.5, 0, 0, 0, 0, 0)
	chunk, phase, err := seq.Next(context.Background(), obs, []byte("jpeg"))
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if phase != PhaseMoving {
		t.Errorf("phase = %q, want %q", phase, PhaseMoving)
	}
	if chunk.Confidence == nil || *chunk.Confidence != conf {
		t.Errorf("confidence not passed through: %v", chunk.Confidence)
	}
	if len(gotJoints) != 6 || gotJoints[0] != 0.5 {
		t.Errorf("true joint state not forwarded: %v", gotJoints)
	}

	chunk, _, err = seq.Next(context.Background(), obs, nil)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if chunk.Confidence != nil {
		t.Errorf("confidence fabricated for a chunk the model left bare")
	}

	if _, _, err := seq.Next(context.Background(), obs, nil); !errors.Is(err, Done) {
		t.Fatalf("want Done after server-reported done, got %v", err)
	}
}

func TestLearnedSequence_RejectsDegradedObservation(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		json.NewEncoder(w).Encode(InferResponse{Done: true})
	}))
	defer server.Close()

	source := NewLearnedSource(NewInferenceClient(server.URL, time.Second), 10)
	seq, err := source.Plan(context.Background(), Learned("wave"), actuator.Observation{})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}

	// Commanded echo must not reach the model as if it were real state.
	obs := actuator.Observation{Joints: make([]float64, 6), Source: actuator.SourceCommanded}
	if _, _, err := seq.Next(context.Background(), obs, nil); !errors.Is(err, ErrDegradedObservation) {
		t.Fatalf("want ErrDegradedObservation, got %v", err)
	}
	if calls.Load() != 0 {
		t.Errorf("inference server must not be called with degraded observation")
	}
}

func TestLearnedSequence_MaxChunksBound(t *testing.T) {
	// A model that never reports done must still terminate.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(InferResponse{
			Chunks: []InferredChunk{{Targets: make([]float64, 6)}},
			Phase:  string(PhaseMoving),
		})
	}))
	defer server.Close()

	const bound = 4
	source := NewLearnedSource(NewInferenceClient(server.URL, time.Second), bound)
	seq, err := source.Plan(context.Background(), Learned("never stop"), actuator.Observation{})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}

	obs := measuredObs(0, 0, 0, 0, 0, 0)
	yielded := 0
	for {
		_, _, err := seq.Next(context.Background(), obs, nil)
		if errors.Is(err, Done) {
			break
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		yielded++
		if yielded > bound {
			t.Fatalf("sequence exceeded its %d-chunk bound", bound)
		}
	}
	if yielded != bound {
		t.Errorf("yielded %d chunks, want bound %d", yielded, bound)
	}
}

func TestInferenceClient_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewInferenceClient(server.URL, time.Second)
	if _, err := client.Infer(context.Background(), "wave", make([]float64, 6), nil); err == nil {
		t.Fatal("expected error for 503 from policy server")
	}
}
