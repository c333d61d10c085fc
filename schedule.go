package stagerun

import (
	"errors"
	"fmt"
	"sync"
)

// Operation is one unit of work over the shared world and resource store.
// Operations added through the schedulable Add*Operation methods may be
// dispatched onto worker goroutines; operations added through the exclusive
// variants are guaranteed to run on the control goroutine, in registration
// order relative to each other.
type Operation interface {
	// Name identifies the operation in logs.
	Name() string

	// Run executes the operation to completion. Operations must not block
	// waiting on another stage; stages are strictly sequential within one
	// iteration.
	Run(w World, r *Resources) error
}

// OperationFunc adapts a plain function into a named Operation.
type OperationFunc struct {
	name string
	fn   func(w World, r *Resources) error
}

// NewOperation wraps fn as an Operation with the given name.
func NewOperation(name string, fn func(w World, r *Resources) error) Operation {
	return &OperationFunc{name: name, fn: fn}
}

// Name returns the operation name.
func (o *OperationFunc) Name() string { return o.name }

// Run invokes the wrapped function.
func (o *OperationFunc) Run(w World, r *Resources) error { return o.fn(w, r) }

// scheduleStep is either one parallel batch of schedulable operations or a
// single exclusive operation acting as a barrier.
type scheduleStep struct {
	batch     []Operation
	exclusive Operation
}

// Schedule is a compiled executable unit: an ordered sequence of steps over
// the world and resource store. Consecutive schedulable operations form one
// batch executed concurrently; each exclusive operation runs inline on the
// calling goroutine and no later step starts before it returns.
type Schedule struct {
	steps []scheduleStep
}

// Execute runs every step to completion. Operation errors do not abort the
// schedule; they are collected and returned joined so the caller can log
// them. Execute itself runs on the control goroutine and only returns once
// every spawned worker has finished.
func (s *Schedule) Execute(w World, r *Resources) error {
	var errs []error
	for _, step := range s.steps {
		if step.exclusive != nil {
			if err := step.exclusive.Run(w, r); err != nil {
				errs = append(errs, fmt.Errorf("operation %q: %w", step.exclusive.Name(), err))
			}
			continue
		}
		errs = append(errs, s.runBatch(step.batch, w, r)...)
	}
	return errors.Join(errs...)
}

// Len returns the number of operations in the schedule.
func (s *Schedule) Len() int {
	n := 0
	for _, step := range s.steps {
		if step.exclusive != nil {
			n++
		} else {
			n += len(step.batch)
		}
	}
	return n
}

func (s *Schedule) runBatch(batch []Operation, w World, r *Resources) []error {
	if len(batch) == 1 {
		// Nothing to fan out.
		if err := batch[0].Run(w, r); err != nil {
			return []error{fmt.Errorf("operation %q: %w", batch[0].Name(), err)}
		}
		return nil
	}

	results := make([]error, len(batch))
	var wg sync.WaitGroup
	for i, op := range batch {
		wg.Add(1)
		go func(i int, op Operation) {
			defer wg.Done()
			results[i] = op.Run(w, r)
		}(i, op)
	}
	wg.Wait()

	var errs []error
	for i, err := range results {
		if err != nil {
			errs = append(errs, fmt.Errorf("operation %q: %w", batch[i].Name(), err))
		}
	}
	return errs
}

// scheduleBuilder accumulates operations and compiles them into a Schedule.
type scheduleBuilder struct {
	steps []scheduleStep
}

func (b *scheduleBuilder) addSchedulable(op Operation) {
	if n := len(b.steps); n > 0 && b.steps[n-1].exclusive == nil {
		b.steps[n-1].batch = append(b.steps[n-1].batch, op)
		return
	}
	b.steps = append(b.steps, scheduleStep{batch: []Operation{op}})
}

func (b *scheduleBuilder) addExclusive(op Operation) {
	b.steps = append(b.steps, scheduleStep{exclusive: op})
}

func (b *scheduleBuilder) build() *Schedule {
	return &Schedule{steps: b.steps}
}
