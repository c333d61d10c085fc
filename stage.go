package stagerun

import "time"

// Stage is a named, independently-clocked bundle of startup, process and
// destroy schedules. The startup and destroy schedules run exactly once,
// during the run loop's init and shutdown passes; the process schedule runs
// once per tick of the stage's pulse timer.
//
// A Stage value is owned by exactly one place at any instant: the busy list
// driven by the run loop, the spare list held by Settings, or the payload
// of an in-flight command. Ownership moves between them only through the
// command queue.
type Stage struct {
	name  string
	timer *PulseTimer

	startup *Schedule
	process *Schedule
	destroy *Schedule
}

func newStage(name string, timer *PulseTimer, startup, process, destroy *Schedule) *Stage {
	return &Stage{
		name:    name,
		timer:   timer,
		startup: startup,
		process: process,
		destroy: destroy,
	}
}

// Name returns the stage's unique name.
func (s *Stage) Name() string {
	return s.name
}

// Frequency returns the stage's target tick rate in ticks per second.
func (s *Stage) Frequency() uint32 {
	return s.timer.TicksPerSecond()
}

// SetFrequency retunes the stage's timer, resetting its accumulator.
// While a stage is busy this must only be called from the apply step;
// Settings.SetFrequency enqueues the appropriate command.
func (s *Stage) SetFrequency(frequency uint32) {
	s.timer.SetTicksPerSecond(frequency)
}

// init executes the startup schedule. Called once per stage by the run
// loop's init pass, in busy-list order.
func (s *Stage) init(w World, r *Resources) error {
	return s.startup.Execute(w, r)
}

// play feeds the iteration's elapsed time to the timer and, when a tick is
// due, publishes the timer snapshot and executes the process schedule.
func (s *Stage) play(w World, r *Resources, delta time.Duration) error {
	if !s.timer.Update(delta) {
		return nil
	}
	r.Insert(s.timer.Snapshot())
	return s.process.Execute(w, r)
}

// free executes the destroy schedule. Called once per busy stage by the
// shutdown pass; stages parked to spare are detached from the lifecycle and
// never receive it.
func (s *Stage) free(w World, r *Resources) error {
	return s.destroy.Execute(w, r)
}
