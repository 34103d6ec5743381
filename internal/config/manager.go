package config

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	logx "fbdownloader/pkg/logx"
)

// reloadDebounce absorbs the multiple write events editors fire per save.
const reloadDebounce = 250 * time.Millisecond

// Manager loads the config file and, in daemon mode, watches it for changes.
// A config is defaulted and validated before it is committed or published, so
// a broken edit never replaces a working one.
type Manager struct {
	path string

	mu       sync.RWMutex
	cfg      *Config
	lastHash uint64

	// subMu also guards sends: publish never races a close in Unsubscribe.
	subMu sync.Mutex
	subs  []chan *Config

	// overrides runs on every parsed config before defaults and validation.
	// The CLI installs its flag values here so they survive daemon reloads.
	overrides func(*Config)

	log logx.Logger
}

func NewManager(path string) *Manager {
	return &Manager{path: path}
}

func (m *Manager) SetLogger(log logx.Logger) { m.log = log }

// SetOverrides installs the mutation applied to every parse; flags win over
// file contents.
func (m *Manager) SetOverrides(fn func(*Config)) { m.overrides = fn }

// Parse reads and strictly decodes the config file without committing it.
// A missing file is not an error: a run can work from defaults plus CLI
// overrides alone.
func (m *Manager) Parse() (*Config, error) {
	var cfg Config
	if err := m.decodeFile(&cfg); err != nil {
		return nil, err
	}
	if m.overrides != nil {
		m.overrides(&cfg)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (m *Manager) decodeFile(cfg *Config) error {
	b, err := os.ReadFile(m.path)
	if os.IsNotExist(err) {
		return nil // flags-only run
	}
	if err != nil {
		return err
	}

	jb, err := toJSON(m.path, b)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(jb))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return err
	}
	switch err := dec.Decode(&struct{}{}); err {
	case io.EOF:
		return nil
	case nil:
		return fmt.Errorf("invalid config: trailing data")
	default:
		return err
	}
}

// Load parses and commits the config.
func (m *Manager) Load() (*Config, error) {
	cfg, err := m.Parse()
	if err != nil {
		return nil, err
	}
	m.commit(cfg)
	return cfg, nil
}

func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

func (m *Manager) commit(cfg *Config) {
	m.mu.Lock()
	m.cfg = cfg
	m.lastHash = hashConfig(cfg)
	m.mu.Unlock()
}

// hashConfig fingerprints a config so editors that touch the file without
// changing it don't trigger redundant publishes.
func hashConfig(cfg *Config) uint64 {
	b, err := json.Marshal(cfg)
	if err != nil {
		return 0
	}
	h := fnv.New64a()
	_, _ = h.Write(b)
	return h.Sum64()
}

// Subscribe returns a channel receiving every committed config change.
func (m *Manager) Subscribe(buffer int) chan *Config {
	ch := make(chan *Config, buffer)
	m.subMu.Lock()
	m.subs = append(m.subs, ch)
	m.subMu.Unlock()
	return ch
}

// Unsubscribe removes and closes a subscription channel.
func (m *Manager) Unsubscribe(ch chan *Config) {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	for i, s := range m.subs {
		if s != ch {
			continue
		}
		m.subs[i] = m.subs[len(m.subs)-1]
		m.subs = m.subs[:len(m.subs)-1]
		close(ch)
		return
	}
}

func (m *Manager) publish(cfg *Config) {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	for _, ch := range m.subs {
		// Slow subscribers keep only the newest config: drop one stale
		// entry, then retry the send once.
		select {
		case ch <- cfg:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- cfg:
		default:
		}
	}
}

// Watch blocks until ctx is done, reloading and publishing the config
// whenever the file changes on disk. Daemon mode only.
func (m *Manager) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	// Watch the directory, not the file: editors and config tools replace
	// files by rename, which drops file-level watches.
	dir, name := filepath.Split(m.path)
	if dir == "" {
		dir = "."
	}
	if err := w.Add(dir); err != nil {
		return err
	}

	var pending *time.Timer
	defer func() {
		if pending != nil {
			pending.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !strings.EqualFold(filepath.Base(ev.Name), name) {
				continue
			}
			if pending != nil {
				pending.Stop()
			}
			pending = time.AfterFunc(reloadDebounce, m.reload)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			if err != nil && !m.log.IsZero() {
				m.log.Warn("config watch error", logx.Err(err))
			}
		}
	}
}

// reload re-parses the file and publishes the result when it both validates
// and differs from the committed config.
func (m *Manager) reload() {
	cfg, err := m.Parse()
	if err != nil {
		if !m.log.IsZero() {
			m.log.Warn("config reload rejected", logx.String("path", m.path), logx.Err(err))
		}
		return
	}

	h := hashConfig(cfg)
	m.mu.RLock()
	unchanged := h != 0 && h == m.lastHash
	m.mu.RUnlock()
	if unchanged {
		return
	}

	m.commit(cfg)
	m.publish(cfg)
	if !m.log.IsZero() {
		m.log.Info("config reloaded", logx.String("path", m.path))
	}
}
