package perception

import (
	"context"
	"time"
)

// FrameSource produces raw frame bytes, typically from a camera device.
type FrameSource interface {
	Capture(ctx context.Context) ([]byte, error)
}

// CaptureLoop pulls frames from src at the given interval and offers each to
// the pipeline until ctx is cancelled. Capture errors skip the tick; a full
// pipeline queue drops the frame. The loop itself never blocks on analysis.
func CaptureLoop(ctx context.Context, src FrameSource, interval time.Duration, p *Pipeline) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			data, err := src.Capture(ctx)
			if err != nil || len(data) == 0 {
				continue
			}
			p.Offer(&Frame{Data: data, CapturedAt: time.Now().UTC()})
		}
	}
}
