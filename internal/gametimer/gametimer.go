// Package gametimer computes frame-advance scheduling for both roles: the
// server's free-running frame clock, and the client's clock alignment to
// the server's broadcast TimeMessages (§4.6). It deliberately owns no
// thread or channel of its own — ClientCore and ServerCore drive it from
// their own Handler loop, using WaitForNextEventOrTimeout as the tick
// source rather than a second timer actor, since the loop already gives
// every actor a native, deterministic (real or simulated) timeout
// primitive (§4.3, §9).
package gametimer

import (
	"github.com/corelock/lockstep/internal/logging"
	"github.com/corelock/lockstep/internal/rollingavg"
	"github.com/corelock/lockstep/internal/timeval"
	"github.com/corelock/lockstep/internal/wire"
)

// TickLatenessWarnSeconds is the threshold past which a produced tick's
// lateness (actual fire time minus scheduled fire time) is logged as a
// warning.
const TickLatenessWarnSeconds = 0.02

// ClientClockErrorWarn is the threshold past which a client's clock-offset
// correction is logged as a warning rather than silently applied.
const ClientClockErrorWarn = 1.0 // seconds

// Scheduler tracks the mapping between frame index and wall-clock time for
// one session. A server's Scheduler starts ticking the moment the game
// starts; a client's Scheduler instead waits for (and continuously realigns
// to) the server's TimeMessage broadcasts.
type Scheduler struct {
	frameDuration     timeval.TimeDuration
	start             timeval.TimeValue
	started           bool
	currentFrameIndex wire.FrameIndex
	rollingAverage    *rollingavg.Average
}

// New creates a Scheduler. rollingAverageSize should be 1 on the server
// (no smoothing needed — the server's clock IS the reference) and the
// game's configured window on the client.
func New(frameDuration timeval.TimeDuration, rollingAverageSize int) *Scheduler {
	return &Scheduler{
		frameDuration:  frameDuration,
		rollingAverage: rollingavg.New(rollingAverageSize),
	}
}

// StartServerTimer begins ticking from now, with frame 0 occurring at now.
func (s *Scheduler) StartServerTimer(now timeval.TimeValue) {
	s.start = now
	s.started = true
	s.currentFrameIndex = 0
}

// Started reports whether a start time has been established yet.
func (s *Scheduler) Started() bool { return s.started }

// StartTime returns the session's current start-time alignment.
func (s *Scheduler) StartTime() timeval.TimeValue { return s.start }

// CurrentFrameIndex returns the last frame index TryAdvance produced.
func (s *Scheduler) CurrentFrameIndex() wire.FrameIndex { return s.currentFrameIndex }

// frameIndexAt returns the frame index whose scheduled occurrence time is
// at-or-before now, given the current start alignment.
func (s *Scheduler) frameIndexAt(now timeval.TimeValue) wire.FrameIndex {
	elapsed := now.Sub(s.start)
	if elapsed.IsNegative() {
		return 0
	}
	n := elapsed.AsSecsF64() / s.frameDuration.AsSecsF64()
	if n < 0 {
		return 0
	}
	return wire.FrameIndex(n)
}

// occurrenceTime returns the scheduled wall-clock time frame index should
// occur at, given the current start alignment.
func (s *Scheduler) occurrenceTime(index wire.FrameIndex) timeval.TimeValue {
	return s.start.Add(s.frameDuration.MulF64(float64(index)))
}

// TryAdvanceFrameIndex advances the scheduler's current frame index to the
// latest frame whose scheduled time has passed, given the wall-clock time
// now. It never returns the same index twice and never goes backwards; it
// may skip multiple frames at once if the caller was invoked late. Returns
// false if no new frame has occurred yet.
func (s *Scheduler) TryAdvanceFrameIndex(now timeval.TimeValue) (wire.FrameIndex, bool) {
	next := s.frameIndexAt(now)
	if next <= s.currentFrameIndex {
		return s.currentFrameIndex, false
	}
	s.currentFrameIndex = next
	return next, true
}

// NextTickDelay returns the duration the owning Handler loop should block
// for before the next frame tick is due, for use as a
// WaitForNextEventOrTimeout argument.
func (s *Scheduler) NextTickDelay(now timeval.TimeValue) timeval.TimeDuration {
	next := s.occurrenceTime(s.currentFrameIndex + 1)
	d := next.Sub(now)
	if d.IsNegative() {
		return timeval.NewDuration(0, 0)
	}
	return d
}

// BuildTimeMessage constructs the TimeMessage for the current frame (the
// server broadcasts it; both roles hand it to their render channel),
// warning if it has fired later than scheduled.
func (s *Scheduler) BuildTimeMessage(now timeval.TimeValue) wire.TimeMessage {
	scheduled := s.occurrenceTime(s.currentFrameIndex)
	lateness := now.Sub(scheduled)
	if !lateness.IsNegative() && lateness.AsSecsF64() > TickLatenessWarnSeconds {
		logging.L().Warn("frame tick fired late", "frame_index", s.currentFrameIndex, "lateness_seconds", lateness.AsSecsF64())
	}
	return wire.TimeMessage{
		StartTime:     s.start,
		ScheduledTime: scheduled,
		ActualTime:    now,
		FrameDuration: s.frameDuration,
		FrameIndex:    s.currentFrameIndex,
	}
}

// AdjustFromRemote folds a received TimeMessage into the rolling average,
// takes the resulting mean as the scheduler's start time, and advances past
// any frames that would already have elapsed under the new alignment. A
// change of more than ClientClockErrorWarn seconds from the previous
// alignment is logged as a warning.
//
// The server's own start_time is expressed in the server's clock, never
// assumed synchronized with the client's; only now, the client's own clock
// read at the moment msg was processed, is directly comparable across the
// two machines. So the remote start is re-derived in local terms: walk back
// from now by the elapsed time the message claims has passed since start
// (period * frame_index), corrected for how late the server's own tick
// fired relative to its schedule.
func (s *Scheduler) AdjustFromRemote(msg wire.TimeMessage, now timeval.TimeValue) {
	elapsedScheduled := msg.FrameDuration.MulF64(float64(msg.FrameIndex))
	lateness := msg.ActualTime.Sub(msg.ScheduledTime)
	remoteStartLocal := now.Add(elapsedScheduled.Negate()).Add(lateness.Negate())

	s.rollingAverage.Add(remoteStartLocal)
	mean, ok := s.rollingAverage.Mean()
	if !ok {
		return
	}

	if s.started {
		errSecs := s.start.AsSecsF64() - mean.AsSecsF64()
		if errSecs < 0 {
			errSecs = -errSecs
		}
		if errSecs > ClientClockErrorWarn {
			logging.L().Warn("high client clock error", "error_seconds", errSecs)
		}
	} else {
		logging.L().Info("starting client clock from server time signal")
	}

	s.start = mean
	s.started = true
	caughtUp := s.frameIndexAt(now)
	if caughtUp > s.currentFrameIndex {
		s.currentFrameIndex = caughtUp
	}
}
