package audio

import (
	"sync/atomic"
	"time"
)

// FrameQueue is a bounded FIFO buffer between the realtime capture callback
// and the recognition feeder. Push never blocks: when the queue is full the
// frame is dropped and counted, since stalling the device callback causes
// glitches in the capture stream. Pop blocks with a deadline so the consumer
// can re-check cancellation while the room is quiet.
type FrameQueue struct {
	ch      chan Frame
	dropped atomic.Int64
}

// NewFrameQueue creates a queue holding at most capacity frames. At 100 ms
// per frame a capacity of 100 buffers ten seconds of audio.
func NewFrameQueue(capacity int) *FrameQueue {
	if capacity <= 0 {
		capacity = 1
	}
	return &FrameQueue{ch: make(chan Frame, capacity)}
}

// Push enqueues frame without blocking. It returns false when the queue was
// full and the frame was dropped.
func (q *FrameQueue) Push(frame Frame) bool {
	select {
	case q.ch <- frame:
		return true
	default:
		q.dropped.Add(1)
		return false
	}
}

// Pop dequeues the next frame, waiting at most timeout. The second return
// value is false when the deadline expired with no frame available.
func (q *FrameQueue) Pop(timeout time.Duration) (Frame, bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case frame := <-q.ch:
		return frame, true
	case <-timer.C:
		return Frame{}, false
	}
}

// Drain discards all buffered frames and returns how many were dropped.
// Called on session start so stale audio from a previous direction never
// reaches a fresh recognition stream.
func (q *FrameQueue) Drain() int {
	n := 0
	for {
		select {
		case <-q.ch:
			n++
		default:
			return n
		}
	}
}

// Len returns the number of frames currently buffered.
func (q *FrameQueue) Len() int { return len(q.ch) }

// Dropped returns the total number of frames discarded by Push since the
// queue was created.
func (q *FrameQueue) Dropped() int64 { return q.dropped.Load() }
