package strategy

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/tkim9/upbit-autotrade/internal/logger"
)

// Meta is the YAML front matter of a strategy file.
type Meta struct {
	Name       string   `yaml:"name"`
	Version    int      `yaml:"version"`
	RiskLevel  string   `yaml:"risk_level"`
	MaxPerTrad float64  `yaml:"max_position_pct"`
	Tags       []string `yaml:"tags"`
}

// Snapshot is one loaded strategy document: parsed front matter plus
// the markdown body that goes into the system prompt verbatim.
type Snapshot struct {
	Meta     Meta
	Body     string
	LoadedAt time.Time
}

// ChangeListener fires after a successful hot reload.
type ChangeListener func(Snapshot)

// Loader reads the trading strategy from a markdown file with YAML
// front matter and optionally hot-reloads on file changes.
type Loader struct {
	path string

	mu        sync.RWMutex
	snapshot  Snapshot
	listeners []ChangeListener

	watcher *fsnotify.Watcher
	done    chan struct{}
}

func NewLoader(path string) (*Loader, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("strategy loader requires path")
	}
	l := &Loader{path: path}
	if err := l.reload(); err != nil {
		return nil, err
	}
	return l, nil
}

// Snapshot returns the current strategy.
func (l *Loader) Snapshot() Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.snapshot
}

// OnChange registers a listener for hot reloads.
func (l *Loader) OnChange(fn ChangeListener) {
	if fn == nil {
		return
	}
	l.mu.Lock()
	l.listeners = append(l.listeners, fn)
	l.mu.Unlock()
}

// Watch starts watching the strategy file for edits. Editors often
// replace the file (rename + create), so the parent directory is
// watched and events are filtered to the strategy path.
func (l *Loader) Watch() error {
	if l.watcher != nil {
		return nil
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(filepath.Dir(l.path)); err != nil {
		w.Close()
		return err
	}
	l.watcher = w
	l.done = make(chan struct{})
	go l.watchLoop()
	return nil
}

// Close stops the watcher if one is running.
func (l *Loader) Close() error {
	if l.watcher == nil {
		return nil
	}
	close(l.done)
	err := l.watcher.Close()
	l.watcher = nil
	return err
}

func (l *Loader) watchLoop() {
	target := filepath.Clean(l.path)
	for {
		select {
		case <-l.done:
			return
		case evt, ok := <-l.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(evt.Name) != target {
				continue
			}
			if !evt.Has(fsnotify.Write) && !evt.Has(fsnotify.Create) && !evt.Has(fsnotify.Rename) {
				continue
			}
			// Editors write in bursts; give the file a moment to settle.
			time.Sleep(200 * time.Millisecond)
			if err := l.reload(); err != nil {
				logger.Errorf("[strategy] reload failed: %v", err)
				continue
			}
			logger.Infof("[strategy] reloaded %s", l.path)
			l.notifyListeners()
		case err, ok := <-l.watcher.Errors:
			if !ok {
				return
			}
			logger.Warnf("[strategy] watch error: %v", err)
		}
	}
}

func (l *Loader) reload() error {
	raw, err := os.ReadFile(l.path)
	if err != nil {
		return fmt.Errorf("reading strategy file failed (%s): %w", l.path, err)
	}
	snap, err := Parse(string(raw))
	if err != nil {
		return fmt.Errorf("parsing strategy file failed (%s): %w", l.path, err)
	}
	l.mu.Lock()
	l.snapshot = snap
	l.mu.Unlock()
	return nil
}

func (l *Loader) notifyListeners() {
	l.mu.RLock()
	listeners := append([]ChangeListener(nil), l.listeners...)
	snap := l.snapshot
	l.mu.RUnlock()
	for _, fn := range listeners {
		fn(snap)
	}
}

// Parse splits an optional "---" delimited YAML front matter from the
// markdown body. A document without front matter is all body.
func Parse(raw string) (Snapshot, error) {
	snap := Snapshot{LoadedAt: time.Now()}
	content := strings.ReplaceAll(raw, "\r\n", "\n")
	if strings.HasPrefix(content, "---\n") {
		rest := content[len("---\n"):]
		end := strings.Index(rest, "\n---")
		if end < 0 {
			return Snapshot{}, fmt.Errorf("unterminated front matter")
		}
		if err := yaml.Unmarshal([]byte(rest[:end]), &snap.Meta); err != nil {
			return Snapshot{}, fmt.Errorf("front matter: %w", err)
		}
		body := rest[end+len("\n---"):]
		body = strings.TrimPrefix(body, "\n")
		snap.Body = strings.TrimSpace(body)
	} else {
		snap.Body = strings.TrimSpace(content)
	}
	if snap.Body == "" {
		return Snapshot{}, fmt.Errorf("strategy body is empty")
	}
	return snap, nil
}
