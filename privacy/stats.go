package privacy

import (
	"fmt"
	"log/slog"
	"time"
)

// Stats accumulates per-run counters.
type Stats struct {
	Frames  int
	Faces   int
	Elapsed time.Duration

	start time.Time
	now   func() time.Time
}

// NewStats starts the clock.
func NewStats() *Stats {
	s := &Stats{now: time.Now}
	s.start = s.now()
	return s
}

// Add records one processed frame.
func (s *Stats) Add(faces int) {
	s.Frames++
	s.Faces += faces
	s.Elapsed = s.now().Sub(s.start)
}

// FPS is the average processing rate.
func (s *Stats) FPS() float64 {
	if s.Elapsed <= 0 {
		return 0
	}
	return float64(s.Frames) / s.Elapsed.Seconds()
}

// AvgFaces is the mean number of faces per frame.
func (s *Stats) AvgFaces() float64 {
	if s.Frames == 0 {
		return 0
	}
	return float64(s.Faces) / float64(s.Frames)
}

// LogValue implements slog.LogValuer.
func (s *Stats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("frames", s.Frames),
		slog.Int("faces", s.Faces),
		slog.Duration("elapsed", s.Elapsed.Round(time.Millisecond)),
		slog.String("avg_fps", fmt.Sprintf("%.1f", s.FPS())),
		slog.String("avg_faces", fmt.Sprintf("%.2f", s.AvgFaces())),
	)
}

// Progress is a snapshot of a file being processed.
type Progress struct {
	Frame   int
	Total   int
	Percent float64
	FPS     float64
	ETA     time.Duration
}

// ProgressOf computes progress after frame frames out of total, given the
// time spent so far. Total <= 0 means unknown length.
func ProgressOf(frame, total int, elapsed time.Duration) Progress {
	p := Progress{Frame: frame, Total: total}
	if elapsed > 0 {
		p.FPS = float64(frame) / elapsed.Seconds()
	}
	if total > 0 {
		p.Percent = float64(frame) / float64(total) * 100
		if p.FPS > 0 && total > frame {
			p.ETA = time.Duration(float64(total-frame) / p.FPS * float64(time.Second))
		}
	}
	return p
}

func (p Progress) String() string {
	if p.Total <= 0 {
		return fmt.Sprintf("Frame %d - %.1f FPS", p.Frame, p.FPS)
	}
	return fmt.Sprintf("Frame %d/%d (%.1f%%) - %.1f FPS - ETA %.0fs", p.Frame, p.Total, p.Percent, p.FPS, p.ETA.Seconds())
}

// FPSCounter reports frames per second over one-second windows, the way the
// live overlays show it.
type FPSCounter struct {
	frames int
	last   time.Time
	fps    float64
	now    func() time.Time
}

// NewFPSCounter returns a counter whose window starts now.
func NewFPSCounter() *FPSCounter {
	c := &FPSCounter{now: time.Now}
	c.last = c.now()
	return c
}

// Tick records a frame and returns the latest rate.
func (c *FPSCounter) Tick() float64 {
	c.frames++
	now := c.now()
	if d := now.Sub(c.last); d >= time.Second {
		c.fps = float64(c.frames) / d.Seconds()
		c.frames = 0
		c.last = now
	}
	return c.fps
}

// FPS returns the rate of the last full window.
func (c *FPSCounter) FPS() float64 { return c.fps }
