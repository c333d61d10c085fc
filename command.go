package stagerun

import "time"

// commandKind tags the deferred mutation a command requests.
type commandKind int

const (
	cmdPushBefore commandKind = iota
	cmdPushAfter
	cmdPush
	cmdPark
	cmdSetFrequency
	cmdQuit
)

// command is one deferred mutation request against the busy/spare stage
// lists or the quit flag. Commands are validated eagerly at issuance time
// and consumed exactly once when the queue drains at the start of an
// iteration; the pending-name index in Settings guarantees the
// preconditions still hold at apply time, so applying never fails.
type command struct {
	kind      commandKind
	stage     *Stage // owned payload for the push variants
	name      string // target for park/retune
	anchor    string // busy-list anchor for the positioned push variants
	frequency uint32
}

// applyCommands drains the settings queue and applies every command, FIFO,
// against the application's busy list as one atomic batch. It reports
// whether the batch contained a quit request. Unlike quit, no command in
// the batch is skipped: a quit does not discard mutations queued around it.
func (app *Application) applyCommands(now time.Time) bool {
	settings := app.mustSettings()

	for _, due := range settings.dueActions(now) {
		if err := due.fn(settings); err != nil {
			app.logger.Error("scheduled action failed", "action", due.name, "error", err)
		}
	}

	cmds := settings.drainCommands()
	quit := false
	for _, cmd := range cmds {
		switch cmd.kind {
		case cmdPushBefore:
			idx := app.busyIndex(cmd.anchor)
			app.insertBusy(idx, cmd.stage)
			app.emitStageEvent(EventTypeStageInserted, cmd.stage)
		case cmdPushAfter:
			idx := app.busyIndex(cmd.anchor)
			app.insertBusy(idx+1, cmd.stage)
			app.emitStageEvent(EventTypeStageInserted, cmd.stage)
		case cmdPush:
			app.insertBusy(len(app.busyStages), cmd.stage)
			app.emitStageEvent(EventTypeStageInserted, cmd.stage)
		case cmdPark:
			idx := app.busyIndex(cmd.name)
			stage := app.busyStages[idx]
			app.busyStages = append(app.busyStages[:idx], app.busyStages[idx+1:]...)
			settings.appendSpare(stage)
			app.emitStageEvent(EventTypeStageParked, stage)
		case cmdSetFrequency:
			app.retuneStage(settings, cmd.name, cmd.frequency)
		case cmdQuit:
			quit = true
		}
	}

	settings.setBusyView(app.busyStages)

	if len(cmds) > 0 {
		app.logger.Debug("applied command batch", "commands", len(cmds), "busy", len(app.busyStages), "quit", quit)
	}
	return quit
}

// busyIndex locates a stage in the busy list. Issuance-time validation
// plus the pending-name index make a miss a scheduler defect, not a user
// error, so a miss panics.
func (app *Application) busyIndex(name string) int {
	for i, stage := range app.busyStages {
		if stage.Name() == name {
			return i
		}
	}
	panic("stagerun: command target vanished from busy list: " + name)
}

func (app *Application) insertBusy(idx int, stage *Stage) {
	app.busyStages = append(app.busyStages, nil)
	copy(app.busyStages[idx+1:], app.busyStages[idx:])
	app.busyStages[idx] = stage
}

// retuneStage applies a deferred frequency change. The target was busy at
// issuance time but an earlier command in the same batch may have parked
// it; the retune follows the stage wherever it ended up.
func (app *Application) retuneStage(settings *Settings, name string, frequency uint32) {
	for _, stage := range app.busyStages {
		if stage.Name() == name {
			stage.SetFrequency(frequency)
			app.emitStageEvent(EventTypeStageFrequencyChanged, stage)
			return
		}
	}
	if stage := settings.SpareStage(name); stage != nil {
		stage.SetFrequency(frequency)
		app.emitStageEvent(EventTypeStageFrequencyChanged, stage)
		return
	}
	panic("stagerun: retune target vanished from both lists: " + name)
}
