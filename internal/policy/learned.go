package policy

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/arm-control/acc/internal/actuator"
)

// InferenceClient calls the learned-policy inference service over HTTP JSON.
type InferenceClient struct {
	BaseURL string
	HTTP    *http.Client
}

// NewInferenceClient creates a client with a per-call timeout.
func NewInferenceClient(baseURL string, timeout time.Duration) *InferenceClient {
	return &InferenceClient{
		BaseURL: baseURL,
		HTTP:    &http.Client{Timeout: timeout},
	}
}

type inferRequest struct {
	Instruction string    `json:"instruction"`
	Joints      []float64 `json:"joints"`
	Frame       string    `json:"frame,omitempty"` // base64 jpeg
}

// InferredChunk is one predicted target set from the policy server.
type InferredChunk struct {
	Targets    []float64 `json:"targets"`
	Confidence *float64  `json:"confidence,omitempty"`
}

// InferResponse is one inference step: a short horizon of chunks plus the
// phase the policy reports for them.
type InferResponse struct {
	Chunks []InferredChunk `json:"chunks"`
	Phase  string          `json:"phase"`
	Done   bool            `json:"done"`
}

// Infer requests the next action horizon for an instruction and observation.
func (c *InferenceClient) Infer(ctx context.Context, instruction string, joints []float64, frame []byte) (*InferResponse, error) {
	reqBody := inferRequest{
		Instruction: instruction,
		Joints:      joints,
	}
	if len(frame) > 0 {
		reqBody.Frame = base64.StdEncoding.EncodeToString(frame)
	}
	data, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v1/infer", bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("policy inference call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("policy inference error (status %d): %s", resp.StatusCode, string(body))
	}

	var out InferResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("policy inference returned malformed response: %w", err)
	}
	return &out, nil
}

// LearnedSource produces sequences by querying the inference service each
// time its local chunk horizon runs out.
type LearnedSource struct {
	client    *InferenceClient
	maxChunks int
}

// NewLearnedSource wraps an inference client. maxChunks bounds every planned
// sequence so it stays finite even if the model never reports done.
func NewLearnedSource(client *InferenceClient, maxChunks int) *LearnedSource {
	if maxChunks <= 0 {
		maxChunks = 200
	}
	return &LearnedSource{client: client, maxChunks: maxChunks}
}

// Plan starts a fresh learned sequence for the instruction.
func (s *LearnedSource) Plan(ctx context.Context, instr Instruction, obs actuator.Observation) (Sequence, error) {
	if instr.Kind != KindLearned {
		return nil, fmt.Errorf("%w: learned source cannot serve %q instructions", actuator.ErrInvalidInput, instr.Kind)
	}
	return &learnedSequence{
		client:      s.client,
		instruction: instr.Text,
		remaining:   s.maxChunks,
	}, nil
}

type learnedSequence struct {
	client      *InferenceClient
	instruction string
	remaining   int

	buffer []InferredChunk
	phase  Phase
	done   bool
}

// Next requires a measured joint observation: the policy's correctness
// depends on the true current state, so a commanded echo or unknown state is
// an error rather than a silent zero substitute.
func (s *learnedSequence) Next(ctx context.Context, obs actuator.Observation, frame []byte) (actuator.Chunk, Phase, error) {
	if s.remaining <= 0 {
		return actuator.Chunk{}, s.phase, Done
	}
	if len(s.buffer) == 0 {
		if s.done {
			return actuator.Chunk{}, s.phase, Done
		}
		if !obs.Measured() {
			return actuator.Chunk{}, s.phase, ErrDegradedObservation
		}
		resp, err := s.client.Infer(ctx, s.instruction, obs.Joints, frame)
		if err != nil {
			return actuator.Chunk{}, s.phase, err
		}
		s.buffer = resp.Chunks
		s.done = resp.Done
		if resp.Phase != "" {
			s.phase = Phase(resp.Phase)
		}
		if len(s.buffer) == 0 {
			return actuator.Chunk{}, s.phase, Done
		}
	}

	next := s.buffer[0]
	s.buffer = s.buffer[1:]
	s.remaining--

	chunk := actuator.Chunk{Targets: next.Targets}
	if next.Confidence != nil {
		conf := *next.Confidence
		chunk.Confidence = &conf
	}
	return chunk, s.phase, nil
}
