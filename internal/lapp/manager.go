package lapp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"laplace/internal/logging"
	"laplace/internal/metrics"
)

// Lapp is one registered application: its identity, on-disk location,
// parsed settings, and — when loaded — a live Instance plus the actor
// dispatching events to it. Exactly one Lapp exists per declared name;
// Manager owns the map.
type Lapp struct {
	mu sync.RWMutex

	Name    string
	RootDir string

	settings Settings
	instance *Instance
	actor    *ServiceActor
	dbHost   *dbHost
	gossip   ServiceGossipSink
}

// Settings returns a copy of the lapp's current settings under a read
// lock.
func (l *Lapp) Settings() Settings {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.settings
}

// Loaded reports whether the lapp currently holds a live instance.
func (l *Lapp) Loaded() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.instance != nil
}

// Manager owns the full set of discovered lapps and arbitrates their
// lifecycle transitions, spec.md §4.5 (C5).
type Manager struct {
	mu       sync.RWMutex
	lapps    map[string]*Lapp
	lappsDir string
	metrics  *metrics.Metrics // nil is fine; every call site is a no-op guard
}

// NewManager constructs an empty Manager rooted at lappsDir.
func NewManager(lappsDir string) *Manager {
	return &Manager{lapps: make(map[string]*Lapp), lappsDir: lappsDir}
}

// SetMetrics wires m so Load/Unload/mailbox depth are observable; optional.
func (m *Manager) SetMetrics(metricsImpl *metrics.Metrics) { m.metrics = metricsImpl }

// LappsDir returns the root directory Discover/InsertLapp resolve lapp
// subdirectories under, so callers extracting a new package (internal/httpapi)
// know where to unpack it.
func (m *Manager) LappsDir() string { return m.lappsDir }

// Discover enumerates lappsDir's subdirectories, parses each config.toml
// (falling back to DefaultSettings when absent), and registers a Lapp
// entry for each — instance left unset. Lapps already registered are left
// untouched.
func (m *Manager) Discover() error {
	entries, err := os.ReadDir(m.lappsDir)
	if err != nil {
		return fmt.Errorf("lapp: discovering %s: %w", m.lappsDir, err)
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		name := entry.Name()
		m.mu.RLock()
		_, exists := m.lapps[name]
		m.mu.RUnlock()
		if exists {
			continue
		}
		if err := m.InsertLapp(name); err != nil {
			logging.WithLapp(name, logging.LevelError, "discover: %v", err)
		}
	}
	return nil
}

// InsertLapp registers a newly extracted lapp directory (e.g. after a
// package upload) under name, parsing its config.toml if present.
func (m *Manager) InsertLapp(name string) error {
	dir := filepath.Join(m.lappsDir, name)
	settings, err := LoadSettings(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("lapp: loading settings for %s: %w", name, err)
		}
		settings = DefaultSettings(name, NewPermissionSet())
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.lapps[name] = &Lapp{Name: name, RootDir: dir, settings: settings}
	return nil
}

// Lapp returns the shared handle for name, or ErrLappNotFound.
func (m *Manager) Lapp(name string) (*Lapp, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.lapps[name]
	if !ok {
		return nil, ErrLappNotFound
	}
	return l, nil
}

// List returns every registered lapp's name in discovery order; callers
// needing settings should follow up with Lapp(name).Settings().
func (m *Manager) List() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.lapps))
	for name := range m.lapps {
		names = append(names, name)
	}
	return names
}

// Load instantiates l's wasm guest; requires l.settings.Enabled. A lapp
// already loaded returns ErrLappAlreadyLoaded.
func (m *Manager) Load(ctx context.Context, l *Lapp) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.settings.Enabled {
		return ErrLappNotEnabled
	}
	if l.instance != nil {
		return ErrLappAlreadyLoaded
	}

	var dbh *dbHost
	if l.settings.HasAllowed(PermissionDatabase) && l.settings.DatabaseEnabled {
		path := l.settings.DatabasePath
		if path == "" {
			path = filepath.Join("data", l.Name+".db")
		}
		h, err := openDBHost(l.Name, l.RootDir, path)
		if err != nil {
			return err
		}
		dbh = h
	}

	imports := buildHostImports(l.Name, l.settings, dbh)
	inst, err := Instantiate(ctx, l.RootDir, l.settings, imports)
	if err != nil {
		dbh.Close()
		return err
	}

	l.instance = inst
	l.dbHost = dbh
	if m.metrics != nil {
		m.metrics.LappLoadTotal.WithLabelValues(l.Name).Inc()
	}
	logging.WithLapp(l.Name, logging.LevelInfo, "loaded")
	return nil
}

// Unload stops l's service actor (if any) and drops its instance and
// database connection. A lapp not currently loaded returns ErrLappNotLoaded.
func (m *Manager) Unload(ctx context.Context, l *Lapp) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.instance == nil {
		return ErrLappNotLoaded
	}
	if l.actor != nil {
		l.actor.Stop()
		l.actor = nil
	}
	if l.gossip != nil {
		if err := l.gossip.Stop(); err != nil {
			logging.WithLapp(l.Name, logging.LevelWarn, "stopping gossip service: %v", err)
		}
		l.gossip = nil
	}
	if err := l.instance.Close(ctx); err != nil {
		logging.WithLapp(l.Name, logging.LevelWarn, "closing instance: %v", err)
	}
	if err := l.dbHost.Close(); err != nil {
		logging.WithLapp(l.Name, logging.LevelWarn, "closing database: %v", err)
	}
	l.instance = nil
	l.dbHost = nil
	if m.metrics != nil {
		m.metrics.LappUnloadTotal.WithLabelValues(l.Name).Inc()
	}
	logging.WithLapp(l.Name, logging.LevelInfo, "unloaded")
	return nil
}

// GossipFactory builds a lapp's gossip service on demand; production code
// wires internal/gossipnet.NewService, while tests substitute a fake to
// avoid standing up a real libp2p swarm.
type GossipFactory func(ctx context.Context, lappName string, cfg GossipConfig, sink InboundGossipSink) (ServiceGossipSink, error)

// GossipConfig is the subset of a lapp's network.gossipsub settings a
// GossipFactory needs.
type GossipConfig struct {
	ListenAddr string
	Topic      string
	DialPorts  []int
}

// InboundGossipSink matches internal/gossipnet.InboundSink without this
// package importing gossipnet (which would otherwise make libp2p a
// dependency of every lapp-package test).
type InboundGossipSink interface {
	GossipSub(data []byte)
}

// ServiceGossipSink is the lapp-facing half of a running gossip service:
// GossipSink (for outbound MessageOut dispatch) plus Stop for teardown.
type ServiceGossipSink interface {
	GossipSink
	Stop() error
}

// RunServiceIfNeeded idempotently spawns l's Lapp Service Actor (C6) the
// first time a long-lived session (WS or gossip) needs one, returning its
// mailbox. When l declares and is granted Tcp and has a gossipsub listen
// address configured, it also starts the lapp's C8 gossip service and
// attaches it as the actor's gossip sink.
func (m *Manager) RunServiceIfNeeded(ctx context.Context, l *Lapp, gossip GossipFactory) (*ServiceActor, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.instance == nil {
		return nil, ErrLappNotLoaded
	}
	if l.actor != nil {
		return l.actor, nil
	}
	actor := newServiceActor(ctx, l.Name, l.instance)
	l.actor = actor
	if m.metrics != nil {
		gauge := m.metrics.MailboxDepth.WithLabelValues(l.Name)
		actor.SetMailboxGauge(func(depth int) { gauge.Set(float64(depth)) })
	}

	if gossip != nil && l.settings.HasAllowed(PermissionTCP) && l.settings.GossipsubListenAddr != "" {
		cfg := GossipConfig{
			ListenAddr: l.settings.GossipsubListenAddr,
			DialPorts:  l.settings.GossipsubDialPorts,
		}
		if len(l.settings.GossipsubTopics) > 0 {
			cfg.Topic = l.settings.GossipsubTopics[0]
		}
		svc, err := gossip(ctx, l.Name, cfg, actor)
		if err != nil {
			logging.WithLapp(l.Name, logging.LevelError, "starting gossip service: %v", err)
		} else {
			l.gossip = svc
			actor.NewGossipSub(svc)
		}
	}
	return actor, nil
}

// CheckEnabledAndAllow validates that l is enabled and holds every
// permission in perms, per spec.md §4.5. Every external handler calls this
// before dispatching into a lapp.
func (m *Manager) CheckEnabledAndAllow(l *Lapp, perms ...Permission) error {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if !l.settings.Enabled {
		return ErrLappNotEnabled
	}
	for _, p := range perms {
		if !l.settings.HasAllowed(p) {
			return &PermissionDeniedError{Lapp: l.Name, Permission: p}
		}
	}
	return nil
}

// Instance returns l's live instance, or ErrLappNotLoaded.
func (l *Lapp) Instance() (*Instance, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.instance == nil {
		return nil, ErrLappNotLoaded
	}
	return l.instance, nil
}

// MutateSettings applies fn to the lapp's settings under its write lock
// and persists the result atomically. Used by the UpdateQuery handler in
// internal/httpapi.
func (m *Manager) MutateSettings(l *Lapp, fn func(*Settings)) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	fn(&l.settings)
	return SaveSettings(l.RootDir, l.settings)
}
