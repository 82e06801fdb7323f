package render

import (
	"time"

	"github.com/loov/hrtime"
)

// FrameStats counts what the scheduler did. It is a snapshot; the scheduler
// keeps its own copy.
type FrameStats struct {
	Frames      uint64
	Submissions uint64
	Presents    uint64
	Rebuilds    uint64
	Skipped     uint64

	// LastFrameTime is the wall time of the most recent presented frame.
	LastFrameTime time.Duration
	// AverageFrameTime covers the frames since the previous report.
	AverageFrameTime time.Duration
}

func (s FrameStats) FPS() float64 {
	if s.AverageFrameTime <= 0 {
		return 0
	}
	return float64(time.Second) / float64(s.AverageFrameTime)
}

// frameTimer measures frame-to-frame time with the high resolution clock and
// reports the average every interval frames.
type frameTimer struct {
	interval   uint64
	last       time.Duration
	windowSum  time.Duration
	windowSize uint64
}

func newFrameTimer(interval uint64) *frameTimer {
	return &frameTimer{interval: interval}
}

// tick records the end of a frame. It returns true when a report is due.
func (t *frameTimer) tick(stats *FrameStats) bool {
	now := hrtime.Now()
	if t.last == 0 {
		t.last = now
		return false
	}

	elapsed := now - t.last
	t.last = now

	stats.LastFrameTime = elapsed
	t.windowSum += elapsed
	t.windowSize++

	if t.interval == 0 || t.windowSize < t.interval {
		return false
	}

	stats.AverageFrameTime = t.windowSum / time.Duration(t.windowSize)
	t.windowSum = 0
	t.windowSize = 0
	return true
}
