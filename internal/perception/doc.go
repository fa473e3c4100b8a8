// Package perception feeds camera frames to an external perception service
// without ever blocking the capture path.
//
// Frames enter through Offer, a non-blocking handoff into a bounded queue;
// when the queue is full the frame is dropped and counted. A fixed worker
// pool drains the queue and calls the service under a per-call timeout.
// Results fan out to the telemetry hub, to an event sink (high-confidence
// suggested events only) and to the safety gate's occlusion flag. Perception
// being down degrades to dropped frames and counters, never to a stalled arm.
package perception
