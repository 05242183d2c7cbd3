// Package kiosk runs the capture/recognition session: a fixed-interval
// sampling loop that detects faces, gates them for liveness, matches them
// against the roster, and submits entry/exit records.
package kiosk

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"facetrack/internal/apiclient"
	"facetrack/internal/facegate"
	"facetrack/internal/recog"
)

// Detector extracts faces from a frame, normally the face service.
type Detector interface {
	Detect(ctx context.Context, image io.Reader, filename string) ([]facegate.Face, error)
}

// Recorder submits attendance decisions, normally the attendance API.
type Recorder interface {
	PersonID(ctx context.Context, label string, companyID int64) (int64, error)
	EntryExists(ctx context.Context, personID, companyID int64) (bool, error)
	ExitExists(ctx context.Context, personID, companyID int64) (bool, error)
	SubmitEntry(ctx context.Context, personID, companyID int64, ts time.Time) error
	SubmitExit(ctx context.Context, personID, companyID int64, ts time.Time) error
}

// Config carries the per-session parameters.
type Config struct {
	CompanyID int64
	Interval  time.Duration
	// Matches before the cutoff record entries; at or after it, exits.
	CutoffHour   int
	CutoffMinute int
	// Now overrides the clock in tests. Timestamps sent to the API come from
	// this clock: recorded times stay in the kiosk's local timezone.
	Now func() time.Time
}

// Session drives one camera session. Liveness state lives for exactly the
// session's lifetime; a restarted session starts clean.
type Session struct {
	cfg      Config
	frames   FrameSource
	detector Detector
	matcher  *recog.Matcher
	gate     *recog.Gate
	recorder Recorder
	notify   Notifier

	// inFlight bounds recognition work to one outstanding pass. The sampling
	// ticker keeps firing regardless; busy ticks are skipped, not queued.
	inFlight atomic.Bool
}

// NewSession assembles a session. The matcher should be built from a roster
// cache loaded for cfg.CompanyID.
func NewSession(cfg Config, frames FrameSource, detector Detector, matcher *recog.Matcher, recorder Recorder, notify Notifier) *Session {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if notify == nil {
		notify = LogNotifier{}
	}
	return &Session{
		cfg:      cfg,
		frames:   frames,
		detector: detector,
		matcher:  matcher,
		gate:     recog.NewGate(),
		recorder: recorder,
		notify:   notify,
	}
}

// Run samples frames until the context is canceled. A slow recognition pass
// never blocks the ticker; it only causes intervening ticks to be skipped.
func (s *Session) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if !s.inFlight.CompareAndSwap(false, true) {
				continue
			}
			go func() {
				defer s.inFlight.Store(false)
				s.tick(ctx)
			}()
		}
	}
}

// tick processes one sampled frame end to end.
func (s *Session) tick(ctx context.Context) {
	frame, err := s.frames.Capture(ctx)
	if err != nil {
		s.notify.Error("camera capture failed, retrying on next frame")
		return
	}

	faces, err := s.detector.Detect(ctx, bytes.NewReader(frame), "frame.jpg")
	if err != nil {
		s.notify.Error("face service unreachable, please try again")
		return
	}
	if len(faces) == 0 {
		// No detection this tick; liveness state persists untouched.
		return
	}

	face := faces[0]
	if s.gate.Observe(face) {
		s.notify.Warn("no blink or facial movement detected, possible photo or screen")
		return
	}

	label, _ := s.matcher.Match(face.Descriptor)
	if label == recog.LabelUnknown {
		s.notify.Error("user not recognized")
		return
	}
	s.record(ctx, label)
}

func (s *Session) record(ctx context.Context, label string) {
	personID, err := s.recorder.PersonID(ctx, label, s.cfg.CompanyID)
	if err != nil {
		s.notify.Error(fmt.Sprintf("could not resolve %s: %v", label, err))
		return
	}

	now := s.cfg.Now()
	if s.beforeCutoff(now) {
		s.recordEntry(ctx, label, personID, now)
	} else {
		s.recordExit(ctx, label, personID, now)
	}
}

func (s *Session) beforeCutoff(now time.Time) bool {
	return now.Hour() < s.cfg.CutoffHour ||
		(now.Hour() == s.cfg.CutoffHour && now.Minute() < s.cfg.CutoffMinute)
}

func (s *Session) recordEntry(ctx context.Context, label string, personID int64, now time.Time) {
	// Advisory pre-check for a friendlier message; the server's conditional
	// insert is the actual arbiter.
	if exists, err := s.recorder.EntryExists(ctx, personID, s.cfg.CompanyID); err == nil && exists {
		s.notify.Info("entry already recorded today")
		return
	}
	err := s.recorder.SubmitEntry(ctx, personID, s.cfg.CompanyID, now)
	switch {
	case errors.Is(err, apiclient.ErrConflict):
		s.notify.Info("entry already recorded today")
	case err != nil:
		s.notify.Error("failed to record entry, check the connection")
	default:
		s.notify.Info(fmt.Sprintf("entry recorded for %s", label))
	}
}

func (s *Session) recordExit(ctx context.Context, label string, personID int64, now time.Time) {
	if exists, err := s.recorder.ExitExists(ctx, personID, s.cfg.CompanyID); err == nil && exists {
		s.notify.Info("exit already recorded today")
		return
	}
	if exists, err := s.recorder.EntryExists(ctx, personID, s.cfg.CompanyID); err == nil && !exists {
		s.notify.Info("no entry recorded today, cannot record exit")
		return
	}
	err := s.recorder.SubmitExit(ctx, personID, s.cfg.CompanyID, now)
	switch {
	case errors.Is(err, apiclient.ErrConflict):
		s.notify.Info("no open entry or exit already recorded today")
	case err != nil:
		s.notify.Error("failed to record exit, check the connection")
	default:
		s.notify.Info(fmt.Sprintf("exit recorded for %s", label))
	}
}
