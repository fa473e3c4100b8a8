package perception

import "time"

// Frame is one captured camera image. The capture loop owns it until Offer;
// after a successful Offer the pipeline consumes it exactly once.
type Frame struct {
	Data       []byte    `json:"-"`
	CapturedAt time.Time `json:"capturedAt"`
	Seq        uint64    `json:"seq"`
}

// Detection is one recognized object in a frame.
type Detection struct {
	Label      string    `json:"label"`
	Confidence float64   `json:"confidence"`
	Box        []float64 `json:"box,omitempty"` // [x, y, w, h] normalized
}

// SuggestedEvent is an event the perception service proposes for downstream
// consumers, forwarded only above the confidence threshold.
type SuggestedEvent struct {
	Type       string  `json:"type"`
	Confidence float64 `json:"confidence"`
	Detail     string  `json:"detail,omitempty"`
}

// Result is the perception service's response for one frame.
type Result struct {
	FrameSeq   uint64           `json:"frameSeq"`
	Detections []Detection      `json:"detections"`
	Events     []SuggestedEvent `json:"events"`
	LatencyMS  int64            `json:"latencyMs"`
}

// Stats is a point-in-time snapshot of pipeline counters.
type Stats struct {
	Running    bool   `json:"running"`
	Processed  uint64 `json:"framesProcessed"`
	Dropped    uint64 `json:"framesDropped"`
	Failures   uint64 `json:"analyzeFailures"`
	QueueDepth int    `json:"queueDepth"`
}
