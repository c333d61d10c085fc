package stagerun

import (
	"errors"
	"fmt"
)

// Scheduler errors
var (
	// Builder / command issuance errors
	ErrDuplicateName   = errors.New("stage name already in use")
	ErrStageNotFound   = errors.New("stage not found")
	ErrNamePending     = errors.New("stage name already targeted by a pending command")
	ErrNilStage        = errors.New("stage is nil")
	ErrNilStageBuilder = errors.New("stage builder is nil")
	ErrBuilderConsumed = errors.New("stage builder already consumed by Build")

	// Run loop errors
	ErrSettingsMissing = errors.New("settings resource removed from store while running")

	// Configuration errors
	ErrUnsupportedConfigFormat = errors.New("unsupported config file format")
	ErrConfigPathEmpty         = errors.New("config file path is empty")
	ErrInvalidCronExpression   = errors.New("invalid cron expression")

	// Resource store errors
	ErrResourceNotFound = errors.New("resource not found in store")
)

// StageList identifies which stage list a lookup or conflict refers to.
type StageList int

const (
	// ListBusy is the active list driven by the run loop.
	ListBusy StageList = iota
	// ListSpare is the parked list privately owned by Settings.
	ListSpare
	// ListPending covers names claimed by not-yet-applied commands.
	ListPending
)

func (l StageList) String() string {
	switch l {
	case ListBusy:
		return "busy"
	case ListSpare:
		return "spare"
	case ListPending:
		return "pending"
	default:
		return "unknown"
	}
}

// DuplicateNameError reports a name collision at build or push time.
// Exactly one of Stage or Builder carries the rejected value back to the
// caller so nothing is silently dropped.
type DuplicateNameError struct {
	Name    string
	List    StageList
	Stage   *Stage
	Builder *StageBuilder
}

func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("%v: %q (%s)", ErrDuplicateName, e.Name, e.List)
}

func (e *DuplicateNameError) Unwrap() error {
	return ErrDuplicateName
}

// NotFoundError reports a missing stage or anchor at command issuance time.
// Stage carries the value that could not be placed, when there is one.
type NotFoundError struct {
	Name  string
	List  StageList
	Stage *Stage
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%v: %q (%s)", ErrStageNotFound, e.Name, e.List)
}

func (e *NotFoundError) Unwrap() error {
	return ErrStageNotFound
}

// PendingNameError reports a conflict with a command already in the queue.
// Rejecting these eagerly keeps the apply step infallible: by the time the
// queue drains, every command's preconditions still hold.
type PendingNameError struct {
	Name  string
	Stage *Stage
}

func (e *PendingNameError) Error() string {
	return fmt.Sprintf("%v: %q", ErrNamePending, e.Name)
}

func (e *PendingNameError) Unwrap() error {
	return ErrNamePending
}
