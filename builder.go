package stagerun

import (
	"fmt"
	"log/slog"
)

// Option configures the application a Builder produces.
type Option func(*Builder) error

// Builder collects named stage builders and produces the runnable
// Application. Stage registration order is significant: it is the order of
// the init pass, of every play pass, and of the shutdown pass.
type Builder struct {
	stageBuilders []*StageBuilder

	logger         Logger
	world          World
	observers      []ObserverFunc
	configPath     string
	watchConfig    bool
	introspectAddr string
	handleSignals  bool

	optErr error
}

// NewBuilder creates an application builder. Option errors are deferred to
// Build so construction sites can stay declarative.
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{handleSignals: true}
	for _, opt := range opts {
		if err := opt(b); err != nil {
			// Surface the first failing option at Build time.
			if b.optErr == nil {
				b.optErr = err
			}
		}
	}
	return b
}

// CreateStageBuilder registers a fresh stage builder under name, validating
// uniqueness eagerly against every stage builder already registered. The
// returned builder stays linked to this Builder; AppBuilder hands it back.
func (b *Builder) CreateStageBuilder(name string, frequency uint32) (*StageBuilder, error) {
	if b.hasStage(name) {
		return nil, &DuplicateNameError{Name: name, List: ListBusy, Builder: NewStageBuilder(name, frequency)}
	}
	sb := NewStageBuilder(name, frequency)
	sb.appBuilder = b
	b.stageBuilders = append(b.stageBuilders, sb)
	return sb, nil
}

// AddStageBuilder registers a detached stage builder. On a name collision
// it fails with a *DuplicateNameError carrying the rejected builder back to
// the caller, so the builder can be renamed and retried rather than lost.
func (b *Builder) AddStageBuilder(sb *StageBuilder) error {
	if sb == nil {
		return ErrNilStageBuilder
	}
	if sb.consumed {
		return fmt.Errorf("stage %q: %w", sb.Name(), ErrBuilderConsumed)
	}
	if b.hasStage(sb.Name()) {
		return &DuplicateNameError{Name: sb.Name(), List: ListBusy, Builder: sb}
	}
	sb.appBuilder = b
	b.stageBuilders = append(b.stageBuilders, sb)
	return nil
}

// Build compiles every registered stage builder, in registration order,
// into the runnable Application. When a config file was supplied, its
// frequencies override the builders' before compilation.
func (b *Builder) Build() (*Application, error) {
	if b.optErr != nil {
		return nil, b.optErr
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}

	if b.configPath != "" {
		cfg, err := LoadStagesConfig(b.configPath)
		if err != nil {
			return nil, fmt.Errorf("loading stage config: %w", err)
		}
		b.applyConfig(cfg, logger)
	}

	stages := make([]*Stage, 0, len(b.stageBuilders))
	for _, sb := range b.stageBuilders {
		if sb.consumed {
			return nil, fmt.Errorf("stage %q: %w", sb.Name(), ErrBuilderConsumed)
		}
		stages = append(stages, sb.Build())
	}

	return newApplication(stages, b, logger), nil
}

func (b *Builder) hasStage(name string) bool {
	for _, sb := range b.stageBuilders {
		if sb.Name() == name {
			return true
		}
	}
	return false
}

func (b *Builder) applyConfig(cfg *StagesConfig, logger Logger) {
	for _, sc := range cfg.Stages {
		found := false
		for _, sb := range b.stageBuilders {
			if sb.Name() == sc.Name {
				sb.SetFrequency(sc.Frequency)
				found = true
				break
			}
		}
		if !found {
			logger.Warn("config names unknown stage", "stage", sc.Name)
		}
	}
}

// WithLogger sets the scheduler's structured logger. A *slog.Logger
// satisfies the Logger interface directly. Defaults to slog.Default().
func WithLogger(logger Logger) Option {
	return func(b *Builder) error {
		b.logger = logger
		return nil
	}
}

// WithWorld injects the host's entity/component store. The scheduler only
// threads it through phase calls.
func WithWorld(world World) Option {
	return func(b *Builder) error {
		b.world = world
		return nil
	}
}

// WithObserver registers observers for scheduler lifecycle events.
func WithObserver(observers ...ObserverFunc) Option {
	return func(b *Builder) error {
		b.observers = append(b.observers, observers...)
		return nil
	}
}

// WithConfigFile loads stage frequencies from a YAML or TOML file at build
// time, overriding the frequencies the stage builders were created with.
func WithConfigFile(path string) Option {
	return func(b *Builder) error {
		if path == "" {
			return ErrConfigPathEmpty
		}
		b.configPath = path
		return nil
	}
}

// WithConfigWatcher watches the config file for the lifetime of Run and
// applies frequency changes through the command queue. Requires
// WithConfigFile.
func WithConfigWatcher() Option {
	return func(b *Builder) error {
		b.watchConfig = true
		return nil
	}
}

// WithIntrospection serves a read-mostly HTTP inspection endpoint on addr
// for the lifetime of Run.
func WithIntrospection(addr string) Option {
	return func(b *Builder) error {
		b.introspectAddr = addr
		return nil
	}
}

// WithoutSignalHandling disables the default SIGINT/SIGTERM-to-quit
// translation, for hosts that own signal handling themselves.
func WithoutSignalHandling() Option {
	return func(b *Builder) error {
		b.handleSignals = false
		return nil
	}
}
