package stagerun

import (
	"sync/atomic"
	"time"
)

// PulseTimer is a fixed-step accumulator gating how often a stage's process
// phase runs. Elapsed wall-clock time is fed in through Update; whenever a
// full interval has accumulated, one interval is consumed and a tick is
// reported. Leftover time is retained rather than discarded, so a stalled
// stage catches up in tick count over subsequent calls without acquiring
// fractional drift.
//
// A frequency of zero is legal and means the timer never ticks: Update
// accumulates nothing and always reports false. This is the documented
// choice for the otherwise-ambiguous zero-frequency case.
type PulseTimer struct {
	// ticksPerSecond is atomic so the introspection endpoint can read a
	// stage's frequency while the control goroutine retunes it. Every
	// other field belongs to the control goroutine alone.
	ticksPerSecond atomic.Uint32
	interval       time.Duration
	accumulated    time.Duration
	ticks          uint64
	lastDelta      time.Duration
}

// PulseSnapshot is the read-only view of a stage's timer published into the
// resource store immediately before each gated process pass, so operations
// can observe tick timing.
type PulseSnapshot struct {
	TicksPerSecond uint32
	Interval       time.Duration
	Accumulated    time.Duration
	Ticks          uint64
	Delta          time.Duration
}

// NewPulseTimer creates a timer targeting ticksPerSecond logical ticks per
// wall-clock second.
func NewPulseTimer(ticksPerSecond uint32) *PulseTimer {
	t := &PulseTimer{interval: intervalFor(ticksPerSecond)}
	t.ticksPerSecond.Store(ticksPerSecond)
	return t
}

// Update adds delta to the accumulator and reports whether a tick is due.
// At most one tick is reported per call even when several intervals have
// elapsed; the excess stays in the accumulator and drains one tick per
// subsequent call.
func (t *PulseTimer) Update(delta time.Duration) bool {
	t.lastDelta = delta
	if t.ticksPerSecond.Load() == 0 {
		return false
	}
	t.accumulated += delta
	if t.accumulated < t.interval {
		return false
	}
	t.accumulated -= t.interval
	t.ticks++
	return true
}

// TicksPerSecond returns the target tick frequency.
func (t *PulseTimer) TicksPerSecond() uint32 {
	return t.ticksPerSecond.Load()
}

// Interval returns the duration of one tick, or zero when the frequency is
// zero.
func (t *PulseTimer) Interval() time.Duration {
	return t.interval
}

// Accumulated returns the leftover time carried toward the next tick.
func (t *PulseTimer) Accumulated() time.Duration {
	return t.accumulated
}

// Ticks returns how many ticks have been reported since creation or the
// last retune.
func (t *PulseTimer) Ticks() uint64 {
	return t.ticks
}

// SetTicksPerSecond replaces the target frequency and resets the
// accumulator and tick count. Carrying leftover time across a retune would
// only be an optimization; resetting is the simple, documented behavior.
func (t *PulseTimer) SetTicksPerSecond(ticksPerSecond uint32) {
	t.ticksPerSecond.Store(ticksPerSecond)
	t.interval = intervalFor(ticksPerSecond)
	t.accumulated = 0
	t.ticks = 0
}

// Snapshot captures the timer's current state as a value.
func (t *PulseTimer) Snapshot() PulseSnapshot {
	return PulseSnapshot{
		TicksPerSecond: t.ticksPerSecond.Load(),
		Interval:       t.interval,
		Accumulated:    t.accumulated,
		Ticks:          t.ticks,
		Delta:          t.lastDelta,
	}
}

func intervalFor(ticksPerSecond uint32) time.Duration {
	if ticksPerSecond == 0 {
		return 0
	}
	return time.Second / time.Duration(ticksPerSecond)
}
