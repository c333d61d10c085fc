package stagerun

import (
	"fmt"
	"sync"
	"time"
)

// Settings is the resource through which operations observe and reconfigure
// the scheduler while it runs. It is inserted into the resource store
// before the init pass and must stay there for the lifetime of Run.
//
// The busy list itself is owned by the Application; Settings holds only a
// read-only snapshot of it, refreshed at each apply step, plus the
// privately owned spare list and the command queue. All structural
// mutations of the busy list are recorded as commands and applied at the
// single synchronization point between iterations, never in place. The
// spare list has no concurrent reader, so spare-only mutations happen
// immediately.
//
// Every mutating method validates eagerly against current state plus the
// set of names already claimed by queued commands. A second structural
// command targeting a claimed name is rejected at issuance time, which is
// what makes the apply step infallible.
//
// Settings is safe for concurrent use: schedulable operations may run on
// worker goroutines, and the config watcher issues commands from its own.
type Settings struct {
	mu sync.Mutex

	view  []*Stage // snapshot of the busy list, valid for the current iteration
	spare []*Stage

	commands      []command
	pendingInsert map[string]struct{}
	pendingPark   map[string]struct{}
	pendingRetune map[string]int // index into commands, for collapsing
	pendingQuit   bool

	actions []*scheduledAction
}

func newSettings(busy []*Stage) *Settings {
	s := &Settings{
		pendingInsert: make(map[string]struct{}),
		pendingPark:   make(map[string]struct{}),
		pendingRetune: make(map[string]int),
	}
	s.setBusyView(busy)
	return s
}

// BusyStage looks up a running stage by name in the current snapshot.
// The returned stage must be treated as read-only; frequency changes go
// through SetFrequency so they hit the command queue.
func (s *Settings) BusyStage(name string) *Stage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return findStage(s.view, name)
}

// BusyStages returns the current busy-list snapshot, in run order.
func (s *Settings) BusyStages() []*Stage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Stage, len(s.view))
	copy(out, s.view)
	return out
}

// SpareStage looks up a parked stage by name.
func (s *Settings) SpareStage(name string) *Stage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return findStage(s.spare, name)
}

// SpareStages returns the parked stages, in park order.
func (s *Settings) SpareStages() []*Stage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Stage, len(s.spare))
	copy(out, s.spare)
	return out
}

// InBusy reports whether name is in the busy snapshot.
func (s *Settings) InBusy(name string) bool {
	return s.BusyStage(name) != nil
}

// InSpare reports whether name is parked.
func (s *Settings) InSpare(name string) bool {
	return s.SpareStage(name) != nil
}

// PushStage enqueues appending stage to the end of the busy list.
// On failure the stage travels back to the caller inside the error.
func (s *Settings) PushStage(stage *Stage) error {
	if stage == nil {
		return ErrNilStage
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pushLocked(cmdPush, stage, "")
}

// PushStageBefore enqueues inserting stage immediately before the busy
// stage named anchor.
func (s *Settings) PushStageBefore(stage *Stage, anchor string) error {
	if stage == nil {
		return ErrNilStage
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pushLocked(cmdPushBefore, stage, anchor)
}

// PushStageAfter enqueues inserting stage immediately after the busy stage
// named anchor.
func (s *Settings) PushStageAfter(stage *Stage, anchor string) error {
	if stage == nil {
		return ErrNilStage
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pushLocked(cmdPushAfter, stage, anchor)
}

// pushLocked validates and enqueues one busy-insertion command.
// Caller holds s.mu.
func (s *Settings) pushLocked(kind commandKind, stage *Stage, anchor string) error {
	if kind != cmdPush {
		if findStage(s.view, anchor) == nil {
			return &NotFoundError{Name: anchor, List: ListBusy, Stage: stage}
		}
		if _, parked := s.pendingPark[anchor]; parked {
			// The anchor will be gone by apply time.
			return &PendingNameError{Name: anchor, Stage: stage}
		}
	}
	if err := s.validateNewName(stage); err != nil {
		return err
	}
	s.commands = append(s.commands, command{kind: kind, stage: stage, anchor: anchor})
	s.pendingInsert[stage.Name()] = struct{}{}
	return nil
}

// PushSpareStage parks a brand-new stage directly into the spare list.
// The spare list is privately owned, so this takes effect immediately.
func (s *Settings) PushSpareStage(stage *Stage) error {
	if stage == nil {
		return ErrNilStage
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.validateNewName(stage); err != nil {
		return err
	}
	s.spare = append(s.spare, stage)
	return nil
}

// ParkStage enqueues moving a busy stage to the spare list. The stage keeps
// running until the command is applied at the start of the next iteration;
// once parked it is detached from the lifecycle and receives no destroy
// pass unless re-activated first.
func (s *Settings) ParkStage(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.pendingPark[name]; dup {
		return &PendingNameError{Name: name}
	}
	if _, inserting := s.pendingInsert[name]; inserting {
		return &PendingNameError{Name: name}
	}
	if findStage(s.view, name) == nil {
		return &NotFoundError{Name: name, List: ListBusy}
	}
	s.commands = append(s.commands, command{kind: cmdPark, name: name})
	s.pendingPark[name] = struct{}{}
	return nil
}

// ActivateSpareStage removes a parked stage from the spare list immediately
// and enqueues appending it to the busy list.
func (s *Settings) ActivateSpareStage(name string) error {
	return s.activate(cmdPush, name, "")
}

// ActivateSpareStageBefore removes a parked stage from the spare list
// immediately and enqueues inserting it before the busy stage named anchor.
func (s *Settings) ActivateSpareStageBefore(name, anchor string) error {
	return s.activate(cmdPushBefore, name, anchor)
}

// ActivateSpareStageAfter removes a parked stage from the spare list
// immediately and enqueues inserting it after the busy stage named anchor.
func (s *Settings) ActivateSpareStageAfter(name, anchor string) error {
	return s.activate(cmdPushAfter, name, anchor)
}

func (s *Settings) activate(kind commandKind, name, anchor string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := -1
	for i, stage := range s.spare {
		if stage.Name() == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		return &NotFoundError{Name: name, List: ListSpare}
	}
	stage := s.spare[idx]
	s.spare = append(s.spare[:idx], s.spare[idx+1:]...)
	if err := s.pushLocked(kind, stage, anchor); err != nil {
		// Failed validation re-homes the stage to spare so it is not lost.
		s.spare = append(s.spare, stage)
		return err
	}
	return nil
}

// SetFrequency retunes a stage's pulse timer. A spare stage is retuned
// immediately; a busy stage's retune is deferred to the command queue so
// the timer is never mutated while the iteration that owns it is in
// flight. Repeated retunes of the same busy stage collapse to the latest
// value instead of piling up commands.
func (s *Settings) SetFrequency(name string, frequency uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if stage := findStage(s.spare, name); stage != nil {
		stage.SetFrequency(frequency)
		return nil
	}
	if findStage(s.view, name) == nil {
		return fmt.Errorf("%w: %q (busy or spare)", ErrStageNotFound, name)
	}
	if idx, ok := s.pendingRetune[name]; ok {
		s.commands[idx].frequency = frequency
		return nil
	}
	s.pendingRetune[name] = len(s.commands)
	s.commands = append(s.commands, command{kind: cmdSetFrequency, name: name, frequency: frequency})
	return nil
}

// Quit enqueues a quit request. The iteration that applies it completes
// normally; no further iterations run. Quit is idempotent within one
// batch.
func (s *Settings) Quit() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pendingQuit {
		return
	}
	s.commands = append(s.commands, command{kind: cmdQuit})
	s.pendingQuit = true
}

// validateNewName checks that a stage's name is free across busy, spare and
// the names claimed by queued commands. Caller holds s.mu.
func (s *Settings) validateNewName(stage *Stage) error {
	name := stage.Name()
	if findStage(s.view, name) != nil {
		return &DuplicateNameError{Name: name, List: ListBusy, Stage: stage}
	}
	if findStage(s.spare, name) != nil {
		return &DuplicateNameError{Name: name, List: ListSpare, Stage: stage}
	}
	if _, ok := s.pendingInsert[name]; ok {
		return &PendingNameError{Name: name, Stage: stage}
	}
	if _, ok := s.pendingPark[name]; ok {
		return &PendingNameError{Name: name, Stage: stage}
	}
	return nil
}

// drainCommands consumes the queue and clears the pending-name index.
// Called by the apply step only.
func (s *Settings) drainCommands() []command {
	s.mu.Lock()
	defer s.mu.Unlock()
	cmds := s.commands
	s.commands = nil
	s.pendingInsert = make(map[string]struct{})
	s.pendingPark = make(map[string]struct{})
	s.pendingRetune = make(map[string]int)
	s.pendingQuit = false
	return cmds
}

// setBusyView refreshes the snapshot after an apply step.
func (s *Settings) setBusyView(busy []*Stage) {
	view := make([]*Stage, len(busy))
	copy(view, busy)
	s.mu.Lock()
	s.view = view
	s.mu.Unlock()
}

// appendSpare re-homes a parked stage. Called by the apply step only.
func (s *Settings) appendSpare(stage *Stage) {
	s.mu.Lock()
	s.spare = append(s.spare, stage)
	s.mu.Unlock()
}

// dueActions returns the scheduled actions due at now, advancing each one's
// next activation. Called by the apply step before the queue drains.
func (s *Settings) dueActions(now time.Time) []*scheduledAction {
	s.mu.Lock()
	defer s.mu.Unlock()
	var due []*scheduledAction
	for _, a := range s.actions {
		if !a.next.After(now) {
			due = append(due, a)
			a.next = a.schedule.Next(now)
		}
	}
	return due
}

func findStage(stages []*Stage, name string) *Stage {
	for _, stage := range stages {
		if stage.Name() == name {
			return stage
		}
	}
	return nil
}
