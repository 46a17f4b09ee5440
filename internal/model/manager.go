package model

import (
	"fmt"
	"os"
	"time"

	"skipper/internal/logger"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
)

// Manager owns the current Handle. It loads exactly once at startup and
// replaces the handle only when MaybeRotate observes a strictly newer,
// complete artifact version. Reads never trigger a reload.
//
// All methods are called from the control loop goroutine; the fsnotify
// watcher is only ever drained there too (non-blocking), so no locking is
// needed around the handle.
type Manager struct {
	dir     string
	current *Handle

	watcher   *fsnotify.Watcher
	checked   bool
	pending   bool
	rotatedAt time.Time
	nowFn     func() time.Time
}

type ManagerOptions struct {
	Dir string
	// Watch enables the fsnotify dirty flag; without it every slow tick
	// rescans the directory.
	Watch bool
}

func NewManager(opts ManagerOptions) (*Manager, error) {
	if opts.Dir == "" {
		return nil, fmt.Errorf("model manager requires a directory")
	}
	m := &Manager{dir: opts.Dir, nowFn: time.Now}
	if opts.Watch {
		w, err := fsnotify.NewWatcher()
		if err != nil {
			logger.Warnf("model watcher unavailable, falling back to rescans: %v", err)
		} else if err := w.Add(opts.Dir); err != nil {
			logger.Warnf("model watcher cannot watch %s, falling back to rescans: %v", opts.Dir, err)
			w.Close()
		} else {
			m.watcher = w
		}
	}
	return m, nil
}

func (m *Manager) Close() error {
	if m.watcher != nil {
		return m.watcher.Close()
	}
	return nil
}

// Load loads the newest complete artifact. Called exactly once at startup;
// any failure here is fatal for the process, trading must not start without a
// model.
func (m *Manager) Load() (*Handle, error) {
	if m.current != nil {
		return nil, fmt.Errorf("model already loaded (v%s); reload requires rotation or restart", m.current.Version)
	}
	info, err := m.newestComplete()
	if err != nil {
		return nil, err
	}
	if info == nil {
		return nil, fmt.Errorf("no complete model artifact in %s", m.dir)
	}
	h, err := m.loadArtifact(info)
	if err != nil {
		return nil, err
	}
	m.current = h
	logger.Infof("model v%s loaded (load_id=%s, trained_symbols=%d)", h.Version, h.LoadID, h.TrainedCount())
	return h, nil
}

// Current returns the handle without any I/O.
func (m *Manager) Current() *Handle {
	return m.current
}

// LastRotation returns when the handle was last replaced (zero before any
// rotation).
func (m *Manager) LastRotation() time.Time {
	return m.rotatedAt
}

// MaybeRotate checks for a strictly newer complete artifact and swaps the
// handle only if one exists. With a healthy watcher the directory is
// rescanned only after filesystem events; the first call always scans.
// Returns the current handle and whether a rotation happened. Errors are
// recoverable: the old handle stays in place and the check reruns next slow
// tick.
func (m *Manager) MaybeRotate() (*Handle, bool, error) {
	if m.current == nil {
		return nil, false, fmt.Errorf("model not loaded")
	}
	if !m.dirty() {
		return m.current, false, nil
	}

	info, err := m.newestComplete()
	if err != nil {
		m.pending = true // retry the scan next slow tick
		return m.current, false, err
	}
	m.pending = false
	if info == nil || CompareVersions(info.Version, m.current.Version) <= 0 {
		return m.current, false, nil
	}

	h, err := m.loadArtifact(info)
	if err != nil {
		m.pending = true
		return m.current, false, fmt.Errorf("rotation to v%s failed: %w", info.Version, err)
	}
	old := m.current
	m.current = h
	m.rotatedAt = m.nowFn().UTC()
	logger.Infof("model rotated v%s -> v%s (trained_symbols %d -> %d)",
		old.Version, h.Version, old.TrainedCount(), h.TrainedCount())
	return h, true, nil
}

// dirty reports whether the directory may have changed since the last scan.
// With no watcher every call is dirty. Watcher events are drained without
// blocking; an event channel closure degrades to always-dirty.
func (m *Manager) dirty() bool {
	saw := m.drainEvents()
	if !m.checked {
		m.checked = true
		return true
	}
	if m.pending || m.watcher == nil {
		return true
	}
	return saw
}

func (m *Manager) drainEvents() bool {
	if m.watcher == nil {
		return false
	}
	saw := false
	for {
		select {
		case _, ok := <-m.watcher.Events:
			if !ok {
				m.watcher = nil
				return true
			}
			saw = true
		case err, ok := <-m.watcher.Errors:
			if !ok {
				m.watcher = nil
				return true
			}
			logger.Warnf("model watcher error, forcing rescan: %v", err)
			saw = true
		default:
			return saw
		}
	}
}

func (m *Manager) newestComplete() (*ArtifactInfo, error) {
	artifacts, err := ListArtifacts(m.dir)
	if err != nil {
		return nil, err
	}
	for i := range artifacts {
		if artifacts[i].Complete {
			return &artifacts[i], nil
		}
		logger.Debugf("model v%s incomplete, skipping", artifacts[i].Version)
	}
	return nil, nil
}

func (m *Manager) loadArtifact(info *ArtifactInfo) (*Handle, error) {
	// Weights stay opaque to this process; verify readability so a rotation
	// never installs a handle whose artifact the trainer is still writing.
	f, err := os.Open(info.WeightsPath)
	if err != nil {
		return nil, fmt.Errorf("model weights unreadable: %w", err)
	}
	f.Close()

	h := NewHandle(info.Version, uuid.NewString(), m.nowFn().UTC(), info.TrainedSymbols)
	h.TrainedAt = info.TrainedAt
	h.TrainingDays = info.TrainingDays
	return h, nil
}
