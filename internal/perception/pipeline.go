package perception

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arm-control/acc/internal/telemetry"
)

// Analyzer is the perception call the workers make. *Client satisfies it.
type Analyzer interface {
	Analyze(ctx context.Context, frame *Frame) (*Result, error)
}

// EventPublisher receives perception results for telemetry subscribers.
// *telemetry.Hub satisfies it.
type EventPublisher interface {
	Publish(evtType, job string, data interface{})
}

// OcclusionSetter is the safety-gate hook updated from detection labels.
type OcclusionSetter interface {
	SetOccluded(occluded bool)
}

// Params wires a Pipeline. Sink, Events and Gate are optional.
type Params struct {
	Analyzer  Analyzer
	Sink      EventSink
	Events    EventPublisher
	Gate      OcclusionSetter
	Capacity  int
	Workers   int
	Timeout   time.Duration
	Threshold float64
}

// Pipeline is the bounded-concurrency frame pipeline.
type Pipeline struct {
	analyzer  Analyzer
	sink      EventSink
	events    EventPublisher
	gate      OcclusionSetter
	timeout   time.Duration
	threshold float64
	workers   int

	queue   chan *Frame
	mailbox Mailbox

	seq       atomic.Uint64
	processed atomic.Uint64
	dropped   atomic.Uint64
	failures  atomic.Uint64

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	wg      sync.WaitGroup
}

// New builds a stopped pipeline.
func New(p Params) *Pipeline {
	if p.Capacity <= 0 {
		p.Capacity = 5
	}
	if p.Workers <= 0 {
		p.Workers = 1
	}
	if p.Timeout <= 0 {
		p.Timeout = 5 * time.Second
	}
	return &Pipeline{
		analyzer:  p.Analyzer,
		sink:      p.Sink,
		events:    p.Events,
		gate:      p.Gate,
		timeout:   p.Timeout,
		threshold: p.Threshold,
		workers:   p.Workers,
		queue:     make(chan *Frame, p.Capacity),
	}
}

// Start launches the worker pool. Idempotent.
func (p *Pipeline) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return
	}
	p.running = true
	p.stop = make(chan struct{})
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.work(p.stop)
	}
}

// Stop halts the workers. Queued frames are discarded. Idempotent.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	close(p.stop)
	p.mu.Unlock()
	p.wg.Wait()
}

// Offer hands a frame to the pipeline without blocking. The frame gets its
// sequence number and lands in the latest-frame mailbox even when the queue
// is full; a full queue drops it from analysis and returns false.
func (p *Pipeline) Offer(f *Frame) bool {
	f.Seq = p.seq.Add(1)
	if f.CapturedAt.IsZero() {
		f.CapturedAt = time.Now().UTC()
	}
	p.mailbox.Put(f)

	select {
	case p.queue <- f:
		return true
	default:
		p.dropped.Add(1)
		return false
	}
}

// Latest exposes the freshest frame bytes for consumers outside the queue.
func (p *Pipeline) Latest() ([]byte, bool) {
	return p.mailbox.Latest()
}

// Stats returns a counter snapshot. QueueDepth is the instantaneous backlog.
func (p *Pipeline) Stats() Stats {
	p.mu.Lock()
	running := p.running
	p.mu.Unlock()
	return Stats{
		Running:    running,
		Processed:  p.processed.Load(),
		Dropped:    p.dropped.Load(),
		Failures:   p.failures.Load(),
		QueueDepth: len(p.queue),
	}
}

func (p *Pipeline) work(stop <-chan struct{}) {
	defer p.wg.Done()
	for {
		select {
		case <-stop:
			return
		case frame := <-p.queue:
			p.process(stop, frame)
		}
	}
}

// process analyzes one frame. Failures are counted and dropped, never
// retried: a fresher frame is always on the way.
func (p *Pipeline) process(stop <-chan struct{}, frame *Frame) {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	go func() {
		select {
		case <-stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	result, err := p.analyzer.Analyze(ctx, frame)
	if err != nil {
		p.failures.Add(1)
		return
	}
	p.processed.Add(1)
	p.publish(ctx, result)
}

func (p *Pipeline) publish(ctx context.Context, result *Result) {
	if p.gate != nil {
		p.gate.SetOccluded(hasOcclusion(result.Detections))
	}
	if p.events != nil {
		p.events.Publish(telemetry.EventDetection, "", result)
	}
	if p.sink != nil {
		for _, evt := range result.Events {
			if evt.Confidence > p.threshold {
				_ = p.sink.Send(ctx, evt)
			}
		}
	}
}

func hasOcclusion(detections []Detection) bool {
	for _, d := range detections {
		label := strings.ToLower(d.Label)
		if strings.Contains(label, "occlusion") || strings.Contains(label, "obstruction") {
			return true
		}
	}
	return false
}
