package stagerun

import (
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// configWatcher watches the stage config file for the lifetime of Run and
// feeds frequency changes through the Settings command queue, so live
// retunes obey the same validation and synchronization as any other
// reconfiguration. Structural changes (adding stages) are out of its
// scope; it only retunes stages that already exist.
type configWatcher struct {
	path     string
	settings *Settings
	logger   Logger
	fsw      *fsnotify.Watcher
	known    map[string]uint32
	done     chan struct{}
}

func newConfigWatcher(path string, settings *Settings, logger Logger) (*configWatcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// Watch the directory: editors typically replace the file on save,
	// which drops a watch registered on the file itself.
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		fsw.Close()
		return nil, err
	}

	w := &configWatcher{
		path:     path,
		settings: settings,
		logger:   logger,
		fsw:      fsw,
		known:    make(map[string]uint32),
		done:     make(chan struct{}),
	}
	if cfg, err := LoadStagesConfig(path); err == nil {
		w.known = cfg.Frequencies()
	}
	return w, nil
}

func (w *configWatcher) start() {
	go w.loop()
}

func (w *configWatcher) stop() {
	close(w.done)
	w.fsw.Close()
}

func (w *configWatcher) loop() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				w.reload()
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Error("config watcher error", "error", err)
		}
	}
}

// reload re-reads the file and issues SetFrequency for entries whose value
// changed since the last successful read.
func (w *configWatcher) reload() {
	cfg, err := LoadStagesConfig(w.path)
	if err != nil {
		w.logger.Warn("ignoring unreadable config change", "path", w.path, "error", err)
		return
	}

	next := cfg.Frequencies()
	for name, freq := range next {
		if prev, ok := w.known[name]; ok && prev == freq {
			continue
		}
		if err := w.settings.SetFrequency(name, freq); err != nil {
			w.logger.Warn("config names unknown stage", "stage", name, "error", err)
			continue
		}
		w.logger.Info("stage retuned from config", "stage", name, "frequency", freq)
	}
	w.known = next
}
