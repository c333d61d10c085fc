package stagerun

import (
	"sync"
	"time"
)

// testLogger records structured log calls for assertions.
type testLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

type logEntry struct {
	level string
	msg   string
	args  []any
}

func (l *testLogger) log(level, msg string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, logEntry{level: level, msg: msg, args: args})
}

func (l *testLogger) Debug(msg string, args ...any) { l.log("debug", msg, args...) }
func (l *testLogger) Info(msg string, args ...any)  { l.log("info", msg, args...) }
func (l *testLogger) Warn(msg string, args ...any)  { l.log("warn", msg, args...) }
func (l *testLogger) Error(msg string, args ...any) { l.log("error", msg, args...) }

func (l *testLogger) messages(level string) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []string
	for _, e := range l.entries {
		if e.level == level {
			out = append(out, e.msg)
		}
	}
	return out
}

// playRecorder collects phase executions across goroutines.
type playRecorder struct {
	mu     sync.Mutex
	events []string
}

func (r *playRecorder) record(event string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *playRecorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	copy(out, r.events)
	return out
}

// testStep is the fake clock step used by run-loop tests: one call to
// app.now advances simulated time by 1/120 s, so a 120 Hz stage ticks on
// every iteration and a 60 Hz stage on every second one.
const testStep = time.Second / 120

// installTestClock replaces the application's clock with a deterministic
// stepping clock starting at the Unix epoch.
func installTestClock(app *Application) {
	var calls int
	base := time.Unix(0, 0)
	app.now = func() time.Time {
		calls++
		return base.Add(time.Duration(calls) * testStep)
	}
}
