package stagerun

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/cucumber/godog"
)

// Static error variables for BDD steps to comply with err113 linting rule
var (
	errSchedulerNotConfigured = errors.New("scheduler was not configured in background")
	errSchedulerDidNotRun     = errors.New("scheduler has not run yet")
	errUnknownStage           = errors.New("scenario references an unknown stage")
	errPlayCountMismatch      = errors.New("stage play count mismatch")
	errUnexpectedStartup      = errors.New("stage received a startup pass")
	errDestroyCountMismatch   = errors.New("stage destroy pass mismatch")
)

// stageCounters tracks one stage's phase executions during a scenario.
type stageCounters struct {
	startups int
	plays    int
	destroys int
}

// runLoopTestContext holds the state shared by the run-loop BDD steps.
type runLoopTestContext struct {
	builder *Builder
	app     *Application
	counts  map[string]*stageCounters
	actions map[int]func(*Settings) error
	tick    int
	ran     bool
}

func (ctx *runLoopTestContext) reset() {
	ctx.builder = nil
	ctx.app = nil
	ctx.counts = make(map[string]*stageCounters)
	ctx.actions = make(map[int]func(*Settings) error)
	ctx.tick = 0
	ctx.ran = false
}

// countedStage builds a stage whose three phases increment the scenario's
// counters for name.
func (ctx *runLoopTestContext) countedStage(name string, frequency uint32) *StageBuilder {
	counters := &stageCounters{}
	ctx.counts[name] = counters
	return NewStageBuilder(name, frequency).
		AddExclusiveStartupFn(func(World, *Resources) error {
			counters.startups++
			return nil
		}).
		AddExclusiveProcessFn(func(World, *Resources) error {
			counters.plays++
			return nil
		}).
		AddExclusiveDestroyFn(func(World, *Resources) error {
			counters.destroys++
			return nil
		})
}

func (ctx *runLoopTestContext) aSchedulerWithADriverStage(frequency int) error {
	ctx.builder = NewBuilder(WithLogger(&testLogger{}), WithoutSignalHandling())
	driver := ctx.countedStage("driver", uint32(frequency))
	driver.AddExclusiveProcessFn(func(_ World, r *Resources) error {
		ctx.tick++
		if fn, ok := ctx.actions[ctx.tick]; ok {
			return fn(MustResource[*Settings](r))
		}
		return nil
	})
	return ctx.builder.AddStageBuilder(driver)
}

func (ctx *runLoopTestContext) aStageAtTicksPerSecond(name string, frequency int) error {
	if ctx.builder == nil {
		return errSchedulerNotConfigured
	}
	return ctx.builder.AddStageBuilder(ctx.countedStage(name, uint32(frequency)))
}

func (ctx *runLoopTestContext) theDriverRequestsQuitOnTick(tick int) error {
	ctx.actions[tick] = func(s *Settings) error {
		s.Quit()
		return nil
	}
	return nil
}

func (ctx *runLoopTestContext) theDriverInsertsAStageOnTick(name string, tick int) error {
	stage := ctx.countedStage(name, 120).Build()
	ctx.actions[tick] = func(s *Settings) error {
		return s.PushStage(stage)
	}
	return nil
}

func (ctx *runLoopTestContext) theDriverParksTheStageOnTick(name string, tick int) error {
	ctx.actions[tick] = func(s *Settings) error {
		return s.ParkStage(name)
	}
	return nil
}

func (ctx *runLoopTestContext) theDriverRetunesTheStageOnTick(name string, frequency, tick int) error {
	ctx.actions[tick] = func(s *Settings) error {
		return s.SetFrequency(name, uint32(frequency))
	}
	return nil
}

func (ctx *runLoopTestContext) theSchedulerRuns() error {
	if ctx.builder == nil {
		return errSchedulerNotConfigured
	}
	app, err := ctx.builder.Build()
	if err != nil {
		return fmt.Errorf("building application: %w", err)
	}
	ctx.app = app
	installTestClock(app)
	app.Run()
	ctx.ran = true
	return nil
}

func (ctx *runLoopTestContext) counters(name string) (*stageCounters, error) {
	if !ctx.ran {
		return nil, errSchedulerDidNotRun
	}
	counters, ok := ctx.counts[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", errUnknownStage, name)
	}
	return counters, nil
}

func (ctx *runLoopTestContext) theStagePlayedExactly(name string, plays int) error {
	counters, err := ctx.counters(name)
	if err != nil {
		return err
	}
	if counters.plays != plays {
		return fmt.Errorf("%w: %q played %d times, expected %d", errPlayCountMismatch, name, counters.plays, plays)
	}
	return nil
}

func (ctx *runLoopTestContext) theStageNeverStartedUp(name string) error {
	counters, err := ctx.counters(name)
	if err != nil {
		return err
	}
	if counters.startups != 0 {
		return fmt.Errorf("%w: %q", errUnexpectedStartup, name)
	}
	return nil
}

func (ctx *runLoopTestContext) theStageWasDestroyed(name string) error {
	counters, err := ctx.counters(name)
	if err != nil {
		return err
	}
	if counters.destroys != 1 {
		return fmt.Errorf("%w: %q destroyed %d times, expected 1", errDestroyCountMismatch, name, counters.destroys)
	}
	return nil
}

func (ctx *runLoopTestContext) theStageWasNotDestroyed(name string) error {
	counters, err := ctx.counters(name)
	if err != nil {
		return err
	}
	if counters.destroys != 0 {
		return fmt.Errorf("%w: %q destroyed %d times, expected 0", errDestroyCountMismatch, name, counters.destroys)
	}
	return nil
}

// InitializeRunLoopScenario wires the run-loop step definitions.
func InitializeRunLoopScenario(sc *godog.ScenarioContext) {
	testCtx := &runLoopTestContext{}

	sc.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
		testCtx.reset()
		return ctx, nil
	})

	sc.Step(`^a scheduler with a driver stage at (\d+) ticks per second$`, testCtx.aSchedulerWithADriverStage)
	sc.Step(`^a "([^"]*)" stage at (\d+) ticks per second$`, testCtx.aStageAtTicksPerSecond)
	sc.Step(`^the driver requests quit on tick (\d+)$`, testCtx.theDriverRequestsQuitOnTick)
	sc.Step(`^the driver inserts a "([^"]*)" stage on tick (\d+)$`, testCtx.theDriverInsertsAStageOnTick)
	sc.Step(`^the driver parks the "([^"]*)" stage on tick (\d+)$`, testCtx.theDriverParksTheStageOnTick)
	sc.Step(`^the driver retunes the "([^"]*)" stage to (\d+) on tick (\d+)$`, testCtx.theDriverRetunesTheStageOnTick)
	sc.Step(`^the scheduler runs$`, testCtx.theSchedulerRuns)
	sc.Step(`^the "([^"]*)" stage played exactly (\d+) times?$`, testCtx.theStagePlayedExactly)
	sc.Step(`^the "([^"]*)" stage never started up$`, testCtx.theStageNeverStartedUp)
	sc.Step(`^the "([^"]*)" stage was destroyed$`, testCtx.theStageWasDestroyed)
	sc.Step(`^the "([^"]*)" stage was not destroyed$`, testCtx.theStageWasNotDestroyed)
}

func TestRunLoopScenarios(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: InitializeRunLoopScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features/run_loop.feature"},
			TestingT: t,
			Strict:   true,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
