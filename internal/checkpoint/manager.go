package checkpoint

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"

	"github.com/adamsih300u/bastion-sub010/pkg/models"
)

// ConnectFunc opens the durable backend. Overridable in tests.
type ConnectFunc func(ctx context.Context) (Store, error)

// ManagerConfig controls durable-store initialization and health monitoring.
type ManagerConfig struct {
	// ConnectURL is the Postgres connection string. Empty means run on the
	// in-process store without attempting a durable connection.
	ConnectURL string

	// MaxRetries is the number of additional connection attempts after the
	// first failure. Defaults to 3.
	MaxRetries int

	// HealthInterval is how often the active backend is probed.
	// Defaults to 30s.
	HealthInterval time.Duration

	// RetryInterval is the base delay between connection attempts; each
	// retry doubles it. Defaults to 2s.
	RetryInterval time.Duration

	// Connect overrides the backend constructor. Defaults to NewPostgresStore.
	Connect ConnectFunc
}

// Manager owns the active checkpoint Store. It connects to the durable
// backend with retries, degrades to an in-process store when the backend is
// unreachable, and keeps probing so a recovered backend is picked back up.
type Manager struct {
	cfg ManagerConfig

	mu            sync.RWMutex
	active        Store
	usingFallback bool

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewManager initializes the checkpoint layer. It never returns an error:
// when the durable backend cannot be reached the manager starts on the
// in-process store and reports UsingFallback.
func NewManager(ctx context.Context, cfg ManagerConfig) *Manager {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.HealthInterval <= 0 {
		cfg.HealthInterval = 30 * time.Second
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = 2 * time.Second
	}
	if cfg.Connect == nil && cfg.ConnectURL != "" {
		url := cfg.ConnectURL
		cfg.Connect = func(ctx context.Context) (Store, error) {
			return NewPostgresStore(ctx, url)
		}
	}

	m := &Manager{
		cfg:  cfg,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	m.initBackend(ctx)
	go m.monitor()
	return m
}

// initBackend attempts the durable connection with exponential backoff and
// installs the in-process store when every attempt fails.
func (m *Manager) initBackend(ctx context.Context) {
	if m.cfg.Connect == nil {
		log.Info().Msg("checkpoint: no database configured, using in-process store")
		m.install(NewMemoryStore(), true)
		return
	}

	var store Store
	policy := backoff.WithContext(backoff.WithMaxRetries(&backoff.ExponentialBackOff{
		InitialInterval:     m.cfg.RetryInterval,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         backoff.DefaultMaxInterval,
		MaxElapsedTime:      0,
		Stop:                backoff.Stop,
		Clock:               backoff.SystemClock,
	}, uint64(m.cfg.MaxRetries)), ctx)

	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		s, err := m.cfg.Connect(ctx)
		if err != nil {
			log.Warn().Err(err).Int("attempt", attempt).Msg("checkpoint: durable store connect failed")
			return err
		}
		store = s
		return nil
	}, policy)

	if err != nil {
		log.Error().Err(err).Msg("checkpoint: durable store unavailable, using in-process fallback")
		m.install(NewMemoryStore(), true)
		return
	}
	m.install(store, false)
}

func (m *Manager) install(s Store, fallback bool) {
	m.mu.Lock()
	m.active = s
	m.usingFallback = fallback
	m.mu.Unlock()
}

// monitor periodically probes the active backend. An unhealthy durable store
// is torn down and reconnected; while on the fallback it keeps trying the
// durable backend so recovery does not need a restart.
func (m *Manager) monitor() {
	defer close(m.done)
	ticker := time.NewTicker(m.cfg.HealthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.checkHealth()
		}
	}
}

func (m *Manager) checkHealth() {
	if m.cfg.Connect == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	m.mu.RLock()
	active, fallback := m.active, m.usingFallback
	m.mu.RUnlock()

	if fallback {
		s, err := m.cfg.Connect(ctx)
		if err != nil {
			return
		}
		log.Info().Msg("checkpoint: durable store recovered, leaving fallback mode")
		m.install(s, false)
		return
	}

	if active.Healthy(ctx) {
		return
	}

	log.Warn().Msg("checkpoint: durable store unhealthy, reinitializing")
	active.Close()
	s, err := m.cfg.Connect(ctx)
	if err != nil {
		log.Error().Err(err).Msg("checkpoint: reconnect failed, using in-process fallback")
		m.install(NewMemoryStore(), true)
		return
	}
	m.install(s, false)
}

// UsingFallback reports whether checkpoints are currently ephemeral.
func (m *Manager) UsingFallback() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.usingFallback
}

// Healthy reports whether the checkpoint layer can serve requests. The
// fallback store always can, so this is false only when the active durable
// backend fails its probe.
func (m *Manager) Healthy(ctx context.Context) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active.Healthy(ctx)
}

func (m *Manager) Load(ctx context.Context, threadID string) (*models.ConversationState, error) {
	m.mu.RLock()
	s := m.active
	m.mu.RUnlock()
	return s.Load(ctx, threadID)
}

func (m *Manager) Save(ctx context.Context, threadID string, state *models.ConversationState) error {
	m.mu.RLock()
	s := m.active
	m.mu.RUnlock()
	return s.Save(ctx, threadID, state)
}

// Cleanup stops the health monitor and closes the active store. Safe to call
// more than once.
func (m *Manager) Cleanup() {
	m.stopOnce.Do(func() {
		close(m.stop)
		<-m.done
		m.mu.Lock()
		if m.active != nil {
			m.active.Close()
		}
		m.mu.Unlock()
	})
}
