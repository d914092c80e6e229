package sandbox

import (
	"context"
	"fmt"
	"sync"
	"time"

	"autograder/internal/logging"
)

// Manager is a constructed, process-level facade over one LanguagePool
// per configured language. It is not a package-level singleton: the
// caller owns its lifetime and is responsible for ensuring only one
// instance runs per process, the same way any other composition-root
// dependency is.
type Manager struct {
	config  ManagerConfig
	pools   map[string]*LanguagePool
	runtime Runtime
	audit   *AuditLogger

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// SetAuditLogger attaches an audit logger applied to every sandbox
// handed out by GetSandbox from this point on. Off by default; nil
// disables auditing again.
func (m *Manager) SetAuditLogger(logger *AuditLogger) {
	m.audit = logger
}

// NewManager sweeps the container runtime for orphaned containers left
// by a prior process (identified by the app label), constructs one pool
// per configured language, and triggers initial replenishment. The
// background monitor is not started until Start is called.
func NewManager(ctx context.Context, config ManagerConfig, runtime Runtime) (*Manager, error) {
	if err := sweepOrphans(ctx, runtime, config.AppLabel); err != nil {
		logging.S().Warnw("startup orphan sweep failed, proceeding", "error", err)
	}

	pools := make(map[string]*LanguagePool, len(config.Languages))
	for lang, poolCfg := range config.Languages {
		pools[lang] = NewLanguagePool(lang, poolCfg, runtime)
	}

	m := &Manager{
		config:  config,
		pools:   pools,
		runtime: runtime,
		stopCh:  make(chan struct{}),
	}

	for _, pool := range pools {
		pool.Replenish(ctx)
	}

	return m, nil
}

func sweepOrphans(ctx context.Context, runtime Runtime, label string) error {
	ids, err := runtime.ListLabeled(ctx, label)
	if err != nil {
		return fmt.Errorf("list labeled containers: %w", err)
	}
	for _, id := range ids {
		if err := runtime.RemoveByID(ctx, id); err != nil {
			logging.S().Warnw("failed to remove orphan container", "id", id, "error", err)
		}
	}
	return nil
}

// Start launches the background monitor, ticking roughly once per
// second (or ManagerConfig.MonitorTick), calling Monitor on every pool.
func (m *Manager) Start(ctx context.Context) {
	tick := m.config.MonitorTick
	if tick <= 0 {
		tick = time.Second
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(tick)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				for _, pool := range m.pools {
					pool.Monitor(ctx)
				}
			case <-m.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// GetSandbox delegates to the pool for language.
func (m *Manager) GetSandbox(language string) (Sandbox, error) {
	pool, ok := m.pools[language]
	if !ok {
		return nil, fmt.Errorf("sandbox manager: no pool configured for language %q", language)
	}
	sb, err := pool.Acquire()
	if err != nil {
		return nil, err
	}
	return WithAudit(sb, m.audit), nil
}

// ReleaseSandbox delegates to the pool for language.
func (m *Manager) ReleaseSandbox(ctx context.Context, language string, sb Sandbox) error {
	pool, ok := m.pools[language]
	if !ok {
		return fmt.Errorf("sandbox manager: no pool configured for language %q", language)
	}
	return pool.Release(ctx, sb)
}

// Shutdown stops the monitor, then shuts down every pool. Idempotent:
// calling it twice is equivalent to calling it once.
func (m *Manager) Shutdown(ctx context.Context) {
	m.stopOnce.Do(func() {
		close(m.stopCh)
	})
	m.wg.Wait()

	for _, pool := range m.pools {
		pool.Shutdown(ctx)
	}

	if m.runtime != nil {
		if err := m.runtime.Close(); err != nil {
			logging.S().Warnw("error closing sandbox runtime", "error", err)
		}
	}
}
