package database

import (
	"container/list"
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/gaborage/go-bricks-data/config"
	"github.com/gaborage/go-bricks-data/database/types"
	"github.com/gaborage/go-bricks-data/logger"
)

// ConfigSource resolves a data source name to its configuration.
// *config.Config satisfies it.
type ConfigSource interface {
	DataSource(name string) (config.DataSourceConfig, error)
}

// Connector opens a connection factory for one data source.
type Connector func(ctx context.Context, name string, cfg *config.DataSourceConfig, log logger.Logger) (types.ConnectionFactory, error)

// ManagerOptions configures a Manager.
type ManagerOptions struct {
	// MaxSize bounds the number of open factories; the least recently used is
	// closed when the bound is reached. Zero means no bound.
	MaxSize int
}

// Manager hands out one connection factory per named data source. Factories
// are opened lazily and concurrent first requests share one open.
type Manager struct {
	logger    logger.Logger
	source    ConfigSource
	connector Connector
	maxSize   int

	mu        sync.Mutex
	factories map[string]*factoryEntry
	lru       *list.List
	closed    bool

	sfg singleflight.Group
}

type factoryEntry struct {
	factory  types.ConnectionFactory
	element  *list.Element
	lastUsed time.Time
}

// NewManager creates a manager. A nil connector selects NewConnectionFactory.
func NewManager(source ConfigSource, log logger.Logger, opts ManagerOptions, connector Connector) *Manager {
	if connector == nil {
		connector = NewConnectionFactory
	}
	return &Manager{
		logger:    log,
		source:    source,
		connector: connector,
		maxSize:   opts.MaxSize,
		factories: make(map[string]*factoryEntry),
		lru:       list.New(),
	}
}

// ErrManagerClosed is returned by Get after Close.
var ErrManagerClosed = errors.New("database: manager closed")

// Get returns the factory for the named data source, opening it on first use.
func (m *Manager) Get(ctx context.Context, name string) (types.ConnectionFactory, error) {
	if f, err := m.existing(name); f != nil || err != nil {
		return f, err
	}

	result, err, _ := m.sfg.Do(name, func() (any, error) {
		if f, err := m.existing(name); f != nil || err != nil {
			return f, err
		}
		return m.open(ctx, name)
	})
	if err != nil {
		return nil, err
	}
	return result.(types.ConnectionFactory), nil
}

func (m *Manager) existing(name string) (types.ConnectionFactory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrManagerClosed
	}
	entry, ok := m.factories[name]
	if !ok {
		return nil, nil
	}
	entry.lastUsed = time.Now()
	m.lru.MoveToFront(entry.element)
	return entry.factory, nil
}

func (m *Manager) open(ctx context.Context, name string) (types.ConnectionFactory, error) {
	cfg, err := m.source.DataSource(name)
	if err != nil {
		return nil, fmt.Errorf("failed to get data source config for %s: %w", name, err)
	}

	factory, err := m.connector(ctx, name, &cfg, m.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open data source %s: %w", name, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		_ = factory.Close()
		return nil, ErrManagerClosed
	}

	m.evictIfNeeded()
	m.factories[name] = &factoryEntry{
		factory:  factory,
		element:  m.lru.PushFront(name),
		lastUsed: time.Now(),
	}

	m.logger.Info().
		Str("datasource", name).
		Str("db_type", cfg.Type).
		Msg("Opened data source")

	return factory, nil
}

// evictIfNeeded closes the least recently used factory when at capacity. Callers hold mu.
func (m *Manager) evictIfNeeded() {
	if m.maxSize <= 0 || len(m.factories) < m.maxSize {
		return
	}
	oldest := m.lru.Back()
	if oldest == nil {
		return
	}
	name := oldest.Value.(string)
	if err := m.factories[name].factory.Close(); err != nil {
		m.logger.Error().Err(err).Str("datasource", name).Msg("Error closing evicted data source")
	}
	delete(m.factories, name)
	m.lru.Remove(oldest)

	m.logger.Debug().Str("datasource", name).Msg("Evicted data source due to size limit")
}

// Names returns the open data source names, sorted.
func (m *Manager) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.factories))
	for name := range m.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Size returns the number of open factories.
func (m *Manager) Size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.factories)
}

// Close closes every open factory. Later calls to Get fail with ErrManagerClosed.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	for name, entry := range m.factories {
		if err := entry.factory.Close(); err != nil {
			errs = append(errs, fmt.Errorf("error closing data source %s: %w", name, err))
		}
	}
	m.factories = make(map[string]*factoryEntry)
	m.lru.Init()
	m.closed = true

	return errors.Join(errs...)
}
