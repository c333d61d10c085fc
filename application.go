// Package stagerun is a multi-stage application scheduler. It drives a set
// of independently-clocked stages, each a compiled bundle of startup,
// process and destroy operations over a shared world and resource store,
// and lets stages be inserted, parked, reordered and retuned safely while
// the run loop is mid-flight.
//
// Stages are registered through a Builder, compiled into an Application,
// and reconfigured at runtime through the Settings resource: every
// structural change is recorded as a command and applied at the single
// synchronization point between iterations, so the busy list is never
// mutated while it is being traversed.
//
// Basic usage:
//
//	builder := stagerun.NewBuilder(stagerun.WithLogger(logger))
//	physics, _ := builder.CreateStageBuilder("physics", 60)
//	physics.AddProcessOperation(integrate)
//	render, _ := builder.CreateStageBuilder("render", 30)
//	render.AddExclusiveProcessFn(draw)
//	app, err := builder.Build()
//	if err != nil {
//		log.Fatal(err)
//	}
//	app.Run()
package stagerun

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// ApplicationStatus tracks which lifecycle phase the run loop is in.
type ApplicationStatus string

const (
	// ApplicationStatusPending means Run has not been called yet.
	ApplicationStatusPending ApplicationStatus = "pending"

	// ApplicationStatusInit means the startup passes are executing.
	ApplicationStatusInit ApplicationStatus = "initializing"

	// ApplicationStatusRunning means the iteration loop is active.
	ApplicationStatusRunning ApplicationStatus = "running"

	// ApplicationStatusShutdown means the destroy passes are executing.
	ApplicationStatusShutdown ApplicationStatus = "shutting_down"

	// ApplicationStatusStopped means Run has returned.
	ApplicationStatusStopped ApplicationStatus = "stopped"
)

// Application owns the authoritative busy-stage list, the shared world and
// resource store, and the run loop that drives them. Build one through a
// Builder; it is not safe to share before Run returns except through the
// Settings resource.
type Application struct {
	busyStages []*Stage
	world      World
	resources  *Resources
	settings   *Settings
	logger     Logger
	observers  []ObserverFunc
	status     ApplicationStatus

	configPath     string
	watchConfig    bool
	introspectAddr string
	handleSignals  bool

	// now is the run loop's clock, swappable in tests.
	now func() time.Time

	// runCtx is the loop's lifetime context, set once Run begins.
	runCtx context.Context
}

func newApplication(stages []*Stage, b *Builder, logger Logger) *Application {
	app := &Application{
		busyStages:     stages,
		world:          b.world,
		resources:      NewResources(),
		logger:         logger,
		observers:      b.observers,
		status:         ApplicationStatusPending,
		configPath:     b.configPath,
		watchConfig:    b.watchConfig,
		introspectAddr: b.introspectAddr,
		handleSignals:  b.handleSignals,
		now:            time.Now,
	}
	app.settings = newSettings(app.busyStages)
	return app
}

// Settings returns the settings resource, for issuing commands from
// outside the operation graph (tests, embedding hosts). Operations should
// retrieve it from the resource store instead.
func (app *Application) Settings() *Settings {
	return app.settings
}

// Resources returns the shared resource store.
func (app *Application) Resources() *Resources {
	return app.resources
}

// Status returns the lifecycle phase the run loop is in. Meaningful from
// the control goroutine or after Run has returned.
func (app *Application) Status() ApplicationStatus {
	return app.status
}

// Logger returns the scheduler's logger.
func (app *Application) Logger() Logger {
	return app.logger
}

// Run drives the scheduler to completion: one startup pass over every busy
// stage in list order, the iteration loop, then one destroy pass over the
// stages still busy. Run has no error return: once the loop starts, the
// only exit paths are the quit command and (unless disabled) SIGINT or
// SIGTERM, which issue quit through Settings. Operation errors are logged
// and absorbed.
//
// Each iteration applies all queued commands as one atomic batch before
// any stage executes, so a stage inserted by a command runs in the same
// iteration its insertion is applied. Every stage then gets a play call
// with the iteration's measured delta time and self-throttles on its own
// pulse timer; the loop itself does not sleep.
func (app *Application) Run() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	app.runCtx = ctx

	app.status = ApplicationStatusInit
	app.resources.Insert(app.settings)

	if app.handleSignals {
		stop := app.notifyOnSignals()
		defer stop()
	}
	if stop := app.startConfigWatcher(); stop != nil {
		defer stop()
	}
	if stop := app.startIntrospection(ctx); stop != nil {
		defer stop()
	}

	app.logger.Info("application starting", "stages", len(app.busyStages))
	app.notify(ctx, NewCloudEvent(EventTypeApplicationStarted, nil))

	for _, stage := range app.busyStages {
		if err := stage.init(app.world, app.resources); err != nil {
			app.logger.Error("startup pass failed", "stage", stage.Name(), "error", err)
		}
		app.emitStageEvent(EventTypeStageInitialized, stage)
	}

	app.status = ApplicationStatusRunning
	last := app.now()
	for {
		now := app.now()
		if quit := app.applyCommands(now); quit {
			app.notify(ctx, NewCloudEvent(EventTypeApplicationQuit, nil))
			break
		}
		delta := now.Sub(last)
		last = now
		for _, stage := range app.busyStages {
			if err := stage.play(app.world, app.resources, delta); err != nil {
				app.logger.Error("process pass failed", "stage", stage.Name(), "error", err)
			}
		}
	}

	app.status = ApplicationStatusShutdown
	for _, stage := range app.busyStages {
		if err := stage.free(app.world, app.resources); err != nil {
			app.logger.Error("destroy pass failed", "stage", stage.Name(), "error", err)
		}
		app.emitStageEvent(EventTypeStageFreed, stage)
	}

	app.notify(ctx, NewCloudEvent(EventTypeApplicationStopped, nil))
	app.logger.Info("application stopped")
	app.status = ApplicationStatusStopped
}

// mustSettings re-fetches the Settings resource each apply step. Removing
// or replacing it while the loop runs is fatal misuse, surfaced as a
// panic rather than a recoverable error.
func (app *Application) mustSettings() *Settings {
	settings, ok := GetResource[*Settings](app.resources)
	if !ok || settings != app.settings {
		panic(ErrSettingsMissing)
	}
	return settings
}

func (app *Application) notify(ctx context.Context, event CloudEvent) {
	for _, observer := range app.observers {
		if err := observer(ctx, event); err != nil {
			app.logger.Error("observer failed", "eventType", event.Type(), "error", err)
		}
	}
}

func (app *Application) emitStageEvent(eventType string, stage *Stage) {
	if len(app.observers) == 0 {
		return
	}
	ctx := app.runCtx
	if ctx == nil {
		ctx = context.Background()
	}
	app.notify(ctx, NewCloudEvent(eventType, stageEventData{
		Stage:     stage.Name(),
		Frequency: stage.Frequency(),
	}))
}

// notifyOnSignals translates SIGINT/SIGTERM into a quit command, so an
// interrupted application still drains the current iteration and runs its
// destroy passes.
func (app *Application) notifyOnSignals() func() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	done := make(chan struct{})
	go func() {
		select {
		case sig := <-ch:
			app.logger.Info("signal received, quitting", "signal", sig.String())
			app.settings.Quit()
		case <-done:
		}
	}()
	return func() {
		signal.Stop(ch)
		close(done)
	}
}

func (app *Application) startConfigWatcher() func() {
	if !app.watchConfig || app.configPath == "" {
		return nil
	}
	watcher, err := newConfigWatcher(app.configPath, app.settings, app.logger)
	if err != nil {
		app.logger.Error("config watcher unavailable", "path", app.configPath, "error", err)
		return nil
	}
	watcher.start()
	return watcher.stop
}

func (app *Application) startIntrospection(ctx context.Context) func() {
	if app.introspectAddr == "" {
		return nil
	}
	srv := &http.Server{
		Addr:              app.introspectAddr,
		Handler:           newIntrospectionRouter(app.settings),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.logger.Error("introspection server failed", "addr", app.introspectAddr, "error", err)
		}
	}()
	app.logger.Info("introspection listening", "addr", app.introspectAddr)
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}
}
