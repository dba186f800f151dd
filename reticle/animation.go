package reticle

import (
	"math"
	"time"
)

// animation is a time-bounded flag. There is no timer behind it: callers
// compute progress from the clock each frame, and restarting simply
// overwrites the start time.
type animation struct {
	start    time.Time
	duration time.Duration
	active   bool
}

func (a *animation) begin(now time.Time, d time.Duration) {
	a.start = now
	a.duration = d
	a.active = true
}

func (a *animation) stop() {
	a.active = false
}

// progress is the linear fraction completed, 1 when idle
func (a *animation) progress(now time.Time) float64 {
	if !a.active || a.duration <= 0 {
		return 1
	}
	return clamp01(float64(now.Sub(a.start)) / float64(a.duration))
}

// advance clears the flag once the duration has elapsed
func (a *animation) advance(now time.Time) {
	if a.active && now.Sub(a.start) >= a.duration {
		a.active = false
	}
}

// easeOut decelerates toward the end of the animation
func easeOut(t float64) float64 {
	t = clamp01(t)
	return 1 - (1-t)*(1-t)
}

// pulse rises from 0 to 1 at the midpoint and falls back to 0
func pulse(t float64) float64 {
	return math.Sin(math.Pi * clamp01(t))
}
