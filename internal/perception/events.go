package perception

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// EventSink receives high-confidence suggested events.
type EventSink interface {
	Send(ctx context.Context, evt SuggestedEvent) error
}

// HTTPEventSink posts suggested events to a downstream collector.
type HTTPEventSink struct {
	URL  string
	HTTP *http.Client
}

// NewHTTPEventSink returns a sink posting to url.
func NewHTTPEventSink(url string, timeout time.Duration) *HTTPEventSink {
	return &HTTPEventSink{URL: url, HTTP: &http.Client{Timeout: timeout}}
}

// Send delivers one event. Delivery is best effort; the pipeline logs and
// drops on failure rather than retrying.
func (s *HTTPEventSink) Send(ctx context.Context, evt SuggestedEvent) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build event request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("event sink: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("event sink returned %d", resp.StatusCode)
	}
	return nil
}

var _ EventSink = (*HTTPEventSink)(nil)
