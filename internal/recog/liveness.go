// Package recog implements the camera-side recognition logic: the liveness
// heuristic that rejects photo/screen presentations and the nearest-neighbor
// match over roster descriptors.
package recog

import (
	"math"

	"facetrack/internal/facegate"
)

const (
	// blinkEARThreshold: average eye aspect ratio below this counts as a blink.
	blinkEARThreshold = 0.25
	// movementThreshold: max per-axis box drift in pixels to count a frame as still.
	movementThreshold = 0.8
	// Frames of stillness and missing blinks before a presentation is flagged.
	stillFramesToFlag   = 1
	noBlinkFramesToFlag = 3
)

// Gate accumulates per-session liveness state across sampled frames.
// It is not safe for concurrent use; the session loop owns it.
type Gate struct {
	prevBox       *facegate.Box
	stillFrames   int
	noBlinkFrames int
}

// NewGate returns a gate with fresh state. A new camera session gets a new gate.
func NewGate() *Gate {
	return &Gate{}
}

// EyeAspectRatio computes EAR over the six landmark points of one eye:
// (‖p2−p6‖ + ‖p3−p5‖) / (2·‖p1−p4‖). Closed eyes flatten the vertical
// distances and drive the ratio toward zero.
func EyeAspectRatio(eye []facegate.Point) float64 {
	if len(eye) < 6 {
		return 0
	}
	a := dist(eye[1], eye[5])
	b := dist(eye[2], eye[4])
	c := dist(eye[0], eye[3])
	if c == 0 {
		return 0
	}
	return (a + b) / (2 * c)
}

func dist(p, q facegate.Point) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

// Blinking reports whether the averaged left/right EAR indicates closed eyes.
func Blinking(f facegate.Face) bool {
	ear := (EyeAspectRatio(f.LeftEye) + EyeAspectRatio(f.RightEye)) / 2
	return ear < blinkEARThreshold
}

// Observe feeds one detected face into the gate and reports whether the
// presentation looks spoofed (still box and no blinking for long enough).
// Counters survive a rejection so offending frames keep re-triggering it.
// Callers skip Observe entirely on zero-face frames; prior state persists.
func (g *Gate) Observe(f facegate.Face) bool {
	if g.prevBox != nil {
		dx := math.Abs(f.Box.X - g.prevBox.X)
		dy := math.Abs(f.Box.Y - g.prevBox.Y)
		if dx < movementThreshold && dy < movementThreshold {
			g.stillFrames++
		} else {
			g.stillFrames = 0
		}
	}
	box := f.Box
	g.prevBox = &box

	if Blinking(f) {
		g.noBlinkFrames = 0
	} else {
		g.noBlinkFrames++
	}

	return g.stillFrames >= stillFramesToFlag && g.noBlinkFrames >= noBlinkFramesToFlag
}
