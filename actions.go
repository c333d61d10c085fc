package stagerun

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// ActionFunc is a scheduled reconfiguration action. It runs on the control
// goroutine at the start of an apply step, before the command queue drains,
// so any commands it issues land in the same batch and the usual eager
// validation applies.
type ActionFunc func(s *Settings) error

// scheduledAction pairs a parsed cron schedule with the action to fire.
type scheduledAction struct {
	name     string
	schedule cron.Schedule
	next     time.Time
	fn       ActionFunc
}

// ScheduleAction registers fn to fire on a standard five-field cron
// schedule (minute granularity). Actions are the wall-clock counterpart of
// the per-stage pulse timers: a pulse timer paces one stage's process
// phase, while an action reconfigures the scheduler at calendar times:
// park a stage overnight, retune another during business hours.
//
// The expression is parsed eagerly; an unparsable expression is reported
// immediately, wrapped in ErrInvalidCronExpression.
func (s *Settings) ScheduleAction(name, cronExpr string, fn ActionFunc) error {
	schedule, err := cron.ParseStandard(cronExpr)
	if err != nil {
		return fmt.Errorf("%w: %q: %v", ErrInvalidCronExpression, cronExpr, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actions = append(s.actions, &scheduledAction{
		name:     name,
		schedule: schedule,
		next:     schedule.Next(time.Now()),
		fn:       fn,
	})
	return nil
}
