package theme

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// FileSignal follows an appearance file such as the one maintained by
// darkman hooks. The file holds "dark" or "light"; a missing file or an
// unrecognised value keeps the previous preference.
type FileSignal struct {
	path   string
	logger *log.Logger

	dark atomic.Bool
	subs listeners

	watcher   *fsnotify.Watcher
	done      chan struct{}
	closeOnce sync.Once
}

// NewFileSignal reads the file once and starts watching its directory.
// Watching the directory catches editors and tools that replace the file
// by rename.
func NewFileSignal(path string, logger *log.Logger) (*FileSignal, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("appearance file path is required")
	}
	if logger == nil {
		logger = log.Default()
	}
	s := &FileSignal{path: filepath.Clean(path), logger: logger, done: make(chan struct{})}
	if dark, ok := readAppearanceFile(s.path); ok {
		s.dark.Store(dark)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("appearance watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(s.path), err)
	}
	s.watcher = watcher
	go s.loop()
	return s, nil
}

func (s *FileSignal) PrefersDark() bool { return s.dark.Load() }

func (s *FileSignal) Subscribe(fn func(bool)) func() { return s.subs.add(fn) }

// Close stops the watcher and waits for the event loop to exit.
func (s *FileSignal) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.watcher.Close()
		<-s.done
	})
	return err
}

func (s *FileSignal) loop() {
	defer close(s.done)
	for {
		select {
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != s.path {
				continue
			}
			if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) {
				continue
			}
			dark, ok := readAppearanceFile(s.path)
			if !ok {
				continue
			}
			s.dark.Store(dark)
			s.logger.Debug("appearance changed", "event", "theme_signal", "source", "file", "dark", dark)
			s.subs.notify(dark)
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.logger.Warn("appearance watcher error", "event", "theme_signal_error", "path", s.path, "err", err)
		}
	}
}

func readAppearanceFile(path string) (dark bool, ok bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return false, false
	}
	return parseAppearance(string(data))
}

func parseAppearance(raw string) (dark bool, ok bool) {
	v := strings.ToLower(strings.Trim(strings.TrimSpace(raw), `'"`))
	switch {
	case strings.Contains(v, "dark"):
		return true, true
	case strings.Contains(v, "light"), v == "default":
		return false, true
	default:
		return false, false
	}
}
