package stagerun

// StageBuilder accumulates operations into a stage's three phases and
// compiles them into an immutable Stage. The Add methods are chainable:
//
//	stage := stagerun.NewStageBuilder("physics", 60).
//		AddProcessOperation(integrate).
//		AddExclusiveProcessFn(applyInput).
//		Build()
//
// Schedulable operations may be dispatched onto worker goroutines; the
// exclusive variants run on the control goroutine in registration order,
// interleaved with the surrounding batches per the compiled schedule.
type StageBuilder struct {
	name      string
	frequency uint32

	startup scheduleBuilder
	process scheduleBuilder
	destroy scheduleBuilder

	appBuilder *Builder
	consumed   bool
}

// NewStageBuilder creates a detached stage builder. Builders created
// through Builder.CreateStageBuilder stay linked to their parent and can be
// handed back with AppBuilder.
func NewStageBuilder(name string, frequency uint32) *StageBuilder {
	return &StageBuilder{name: name, frequency: frequency}
}

// Name returns the stage name this builder will compile into.
func (sb *StageBuilder) Name() string {
	return sb.name
}

// Frequency returns the tick rate the compiled stage will start with.
func (sb *StageBuilder) Frequency() uint32 {
	return sb.frequency
}

// SetFrequency overrides the tick rate before compilation. Used by the
// config loader to apply file-provided frequencies at build time.
func (sb *StageBuilder) SetFrequency(frequency uint32) {
	sb.frequency = frequency
}

// AddStartupOperation adds a schedulable operation to the startup phase.
func (sb *StageBuilder) AddStartupOperation(op Operation) *StageBuilder {
	sb.startup.addSchedulable(op)
	return sb
}

// AddProcessOperation adds a schedulable operation to the process phase.
func (sb *StageBuilder) AddProcessOperation(op Operation) *StageBuilder {
	sb.process.addSchedulable(op)
	return sb
}

// AddDestroyOperation adds a schedulable operation to the destroy phase.
func (sb *StageBuilder) AddDestroyOperation(op Operation) *StageBuilder {
	sb.destroy.addSchedulable(op)
	return sb
}

// AddExclusiveStartupOperation adds a control-goroutine operation to the
// startup phase.
func (sb *StageBuilder) AddExclusiveStartupOperation(op Operation) *StageBuilder {
	sb.startup.addExclusive(op)
	return sb
}

// AddExclusiveProcessOperation adds a control-goroutine operation to the
// process phase.
func (sb *StageBuilder) AddExclusiveProcessOperation(op Operation) *StageBuilder {
	sb.process.addExclusive(op)
	return sb
}

// AddExclusiveDestroyOperation adds a control-goroutine operation to the
// destroy phase.
func (sb *StageBuilder) AddExclusiveDestroyOperation(op Operation) *StageBuilder {
	sb.destroy.addExclusive(op)
	return sb
}

// AddExclusiveStartupFn is the closure form of AddExclusiveStartupOperation.
func (sb *StageBuilder) AddExclusiveStartupFn(fn func(w World, r *Resources) error) *StageBuilder {
	sb.startup.addExclusive(NewOperation(sb.name+".startup.fn", fn))
	return sb
}

// AddExclusiveProcessFn is the closure form of AddExclusiveProcessOperation.
func (sb *StageBuilder) AddExclusiveProcessFn(fn func(w World, r *Resources) error) *StageBuilder {
	sb.process.addExclusive(NewOperation(sb.name+".process.fn", fn))
	return sb
}

// AddExclusiveDestroyFn is the closure form of AddExclusiveDestroyOperation.
func (sb *StageBuilder) AddExclusiveDestroyFn(fn func(w World, r *Resources) error) *StageBuilder {
	sb.destroy.addExclusive(NewOperation(sb.name+".destroy.fn", fn))
	return sb
}

// Build compiles the three phases into an immutable Stage and consumes the
// builder. The stage's timer starts at the builder's frequency with an
// empty accumulator.
func (sb *StageBuilder) Build() *Stage {
	sb.consumed = true
	return newStage(
		sb.name,
		NewPulseTimer(sb.frequency),
		sb.startup.build(),
		sb.process.build(),
		sb.destroy.build(),
	)
}

// AppBuilder hands the stage builder back to its parent Builder, so calls
// can keep chaining at the application level. Builders created through
// Builder.CreateStageBuilder are already registered with their parent;
// detached builders are attached to a fresh Builder, which fails only if
// the name collides (impossible on a fresh Builder, so the error is nil in
// that path).
func (sb *StageBuilder) AppBuilder() (*Builder, error) {
	if sb.appBuilder != nil {
		return sb.appBuilder, nil
	}
	b := NewBuilder()
	if err := b.AddStageBuilder(sb); err != nil {
		return nil, err
	}
	return b, nil
}
