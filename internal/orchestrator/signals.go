package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// SignalManager watches the .detty/signals directory so an operator
// can stop or pause turn processing out of band: touching a "stop" or
// "pause" file flips the corresponding signal. A stat fallback covers
// events the watcher misses.
type SignalManager struct {
	signalsDir string

	mu     sync.RWMutex
	stop   bool
	paused bool

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewSignalManager creates a signal manager rooted at dir (typically
// ".detty"). The watcher is best effort; without it, signal checks
// fall back to polling the files.
func NewSignalManager(dir string) (*SignalManager, error) {
	signalsDir := filepath.Join(dir, "signals")
	if err := os.MkdirAll(signalsDir, 0755); err != nil {
		return nil, err
	}

	sm := &SignalManager{
		signalsDir: signalsDir,
		done:       make(chan struct{}),
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return sm, nil
	}
	if err := watcher.Add(signalsDir); err != nil {
		watcher.Close()
		return sm, nil
	}
	sm.watcher = watcher
	go sm.watchSignals()

	return sm, nil
}

func (sm *SignalManager) watchSignals() {
	for {
		select {
		case <-sm.done:
			return
		case event, ok := <-sm.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			sm.mu.Lock()
			switch filepath.Base(event.Name) {
			case "stop":
				sm.stop = true
			case "pause":
				sm.paused = true
			}
			sm.mu.Unlock()
		case <-sm.watcher.Errors:
			// Keep watching.
		}
	}
}

// ShouldStop reports whether a stop signal has been received.
func (sm *SignalManager) ShouldStop() bool {
	if _, err := os.Stat(filepath.Join(sm.signalsDir, "stop")); err == nil {
		sm.mu.Lock()
		sm.stop = true
		sm.mu.Unlock()
	}
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.stop
}

// ShouldPause reports whether a pause signal has been received.
func (sm *SignalManager) ShouldPause() bool {
	if _, err := os.Stat(filepath.Join(sm.signalsDir, "pause")); err == nil {
		sm.mu.Lock()
		sm.paused = true
		sm.mu.Unlock()
	}
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.paused
}

// WaitResume blocks while the pause signal is set, polling the signal
// file until it clears or the context ends.
func (sm *SignalManager) WaitResume(ctx context.Context) error {
	for sm.ShouldPause() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
	return nil
}

// SendStop creates the stop signal file.
func (sm *SignalManager) SendStop() error {
	return os.WriteFile(filepath.Join(sm.signalsDir, "stop"), nil, 0644)
}

// SendPause creates the pause signal file.
func (sm *SignalManager) SendPause() error {
	return os.WriteFile(filepath.Join(sm.signalsDir, "pause"), nil, 0644)
}

// Clear removes signal files and resets state.
func (sm *SignalManager) Clear() {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.stop = false
	sm.paused = false
	os.Remove(filepath.Join(sm.signalsDir, "stop"))
	os.Remove(filepath.Join(sm.signalsDir, "pause"))
}

// Close shuts down the watcher.
func (sm *SignalManager) Close() {
	close(sm.done)
	if sm.watcher != nil {
		sm.watcher.Close()
	}
}
