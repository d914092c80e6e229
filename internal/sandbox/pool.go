package sandbox

import (
	"container/list"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"autograder/internal/grading/model"
	"autograder/internal/logging"
)

// LanguagePool maintains a bounded set of containers for one language.
// Sandboxes are always in exactly one of idle (a FIFO queue) or active (a
// set); acquire moves idle to active, release destroys the sandbox and
// triggers replenishment. All mutation of idle/active happens under the
// pool's lock; container destruction is moved outside the lock to bound
// critical-section length.
type LanguagePool struct {
	language string
	config   LanguagePoolConfig
	runtime  Runtime
	poolID   string

	mu     sync.Mutex
	idle   *list.List // of Sandbox, FIFO: front = oldest
	active map[string]Sandbox

	// replenishLimiter bounds how fast Replenish asks the container
	// runtime for new containers, so a burst of release-triggered
	// replenish calls (e.g. many submissions finishing at once) can't
	// hammer a misbehaving daemon with back-to-back creates.
	replenishLimiter *rate.Limiter
}

// NewLanguagePool constructs an empty pool; call Replenish to populate it.
func NewLanguagePool(language string, config LanguagePoolConfig, runtime Runtime) *LanguagePool {
	return &LanguagePool{
		language:         language,
		config:           config,
		runtime:          runtime,
		poolID:           uuid.New().String(),
		idle:             list.New(),
		active:           make(map[string]Sandbox),
		replenishLimiter: rate.NewLimiter(rate.Limit(5), 5),
	}
}

// Acquire pops the head of idle, marks it busy, and adds it to active.
// If idle is empty but the pool has not reached scale_limit, a fresh
// container is created on demand (borrowed past the pool_size floor,
// still within the hard limit) rather than failing outright. Only once
// scale_limit is reached does Acquire fail with PoolExhausted.
func (p *LanguagePool) Acquire() (Sandbox, error) {
	p.mu.Lock()
	front := p.idle.Front()
	if front != nil {
		p.idle.Remove(front)
		sb := front.Value.(Sandbox)
		p.mu.Unlock()
		sb.pickup()
		p.mu.Lock()
		p.active[sb.ID()] = sb
		p.mu.Unlock()
		return sb, nil
	}

	total := p.idle.Len() + len(p.active)
	if total >= p.config.ScaleLimit {
		p.mu.Unlock()
		return nil, &model.PoolExhausted{Language: model.Language(p.language)}
	}
	p.mu.Unlock()

	sb, err := p.runtime.CreateSandbox(context.Background(), p.language, p.config.Image, p.poolID, p.config.ExposePort)
	if err != nil {
		return nil, &model.SandboxError{Op: "create sandbox", Err: err}
	}
	sb.pickup()

	p.mu.Lock()
	total = p.idle.Len() + len(p.active)
	if total >= p.config.ScaleLimit {
		p.mu.Unlock()
		_ = sb.Destroy(context.Background())
		return nil, &model.PoolExhausted{Language: model.Language(p.language)}
	}
	p.active[sb.ID()] = sb
	p.mu.Unlock()
	return sb, nil
}

// Release removes sb from active, destroys its container outside the
// lock (isolation between submissions is guaranteed by destruction, not
// reuse), then replenishes.
func (p *LanguagePool) Release(ctx context.Context, sb Sandbox) error {
	p.mu.Lock()
	_, ok := p.active[sb.ID()]
	if ok {
		delete(p.active, sb.ID())
	}
	p.mu.Unlock()

	if !ok {
		return fmt.Errorf("sandbox pool: sandbox %s not found in active sandboxes", sb.ID())
	}

	if err := sb.Destroy(ctx); err != nil {
		logging.S().Warnw("error destroying sandbox", "id", sb.ID(), "error", err)
	}

	p.Replenish(ctx)
	return nil
}

// Replenish creates fresh containers while idle is below pool_size and
// idle+active is below scale_limit. Per-container creation errors are
// logged and swallowed; they never fail the caller.
func (p *LanguagePool) Replenish(ctx context.Context) {
	for {
		p.mu.Lock()
		total := p.idle.Len() + len(p.active)
		needMore := p.idle.Len() < p.config.PoolSize && total < p.config.ScaleLimit
		p.mu.Unlock()
		if !needMore {
			return
		}

		if err := p.replenishLimiter.Wait(ctx); err != nil {
			return
		}

		sb, err := p.runtime.CreateSandbox(ctx, p.language, p.config.Image, p.poolID, p.config.ExposePort)
		if err != nil {
			logging.S().Errorw("error creating sandbox", "language", p.language, "error", err)
			return
		}

		p.mu.Lock()
		p.idle.PushBack(sb)
		p.mu.Unlock()
	}
}

// CheckTTLs destroys active sandboxes exceeding running_timeout (a
// watchdog sweep, not an interrupt of in-flight work) and idle sandboxes
// exceeding idle_timeout, never scaling below pool_size.
func (p *LanguagePool) CheckTTLs(ctx context.Context) {
	now := time.Now()

	p.mu.Lock()
	activeSnapshot := make([]Sandbox, 0, len(p.active))
	for _, sb := range p.active {
		activeSnapshot = append(activeSnapshot, sb)
	}
	p.mu.Unlock()

	for _, sb := range activeSnapshot {
		if now.Sub(sb.LastPickedAt()) > p.config.RunningTimeout {
			logging.S().Infow("sandbox exceeded running timeout, reclaiming", "language", p.language, "id", sb.ID())
			_ = p.Release(ctx, sb)
		}
	}

	p.mu.Lock()
	idleCount := p.idle.Len()
	p.mu.Unlock()
	if idleCount <= p.config.PoolSize {
		return
	}

	p.mu.Lock()
	var toRemove []*list.Element
	for e := p.idle.Front(); e != nil; e = e.Next() {
		sb := e.Value.(Sandbox)
		if now.Sub(sb.CreatedAt()) > p.config.IdleTimeout && p.idle.Len()-len(toRemove) > p.config.PoolSize {
			toRemove = append(toRemove, e)
		}
	}
	doomed := make([]Sandbox, 0, len(toRemove))
	for _, e := range toRemove {
		doomed = append(doomed, e.Value.(Sandbox))
		p.idle.Remove(e)
	}
	p.mu.Unlock()

	for _, sb := range doomed {
		if err := sb.Destroy(ctx); err != nil {
			logging.S().Warnw("error destroying idle sandbox", "id", sb.ID(), "error", err)
		}
	}
}

// Monitor is called periodically by the manager: check TTLs, then
// replenish.
func (p *LanguagePool) Monitor(ctx context.Context) {
	p.CheckTTLs(ctx)
	p.Replenish(ctx)
}

// ScopedAcquire acquires a sandbox, runs fn, and guarantees release on
// every control-flow exit (normal return, error, or panic).
func (p *LanguagePool) ScopedAcquire(ctx context.Context, fn func(Sandbox) error) (err error) {
	sb, err := p.Acquire()
	if err != nil {
		return err
	}
	defer func() {
		if rErr := p.Release(ctx, sb); rErr != nil && err == nil {
			err = rErr
		}
	}()
	return fn(sb)
}

// Shutdown drains both idle and active sets, destroying every container.
// Idempotent.
func (p *LanguagePool) Shutdown(ctx context.Context) {
	p.mu.Lock()
	all := make([]Sandbox, 0, p.idle.Len()+len(p.active))
	for e := p.idle.Front(); e != nil; e = e.Next() {
		all = append(all, e.Value.(Sandbox))
	}
	for _, sb := range p.active {
		all = append(all, sb)
	}
	p.idle.Init()
	p.active = make(map[string]Sandbox)
	p.mu.Unlock()

	for _, sb := range all {
		if err := sb.Destroy(ctx); err != nil {
			logging.S().Warnw("error destroying sandbox during shutdown", "language", p.language, "id", sb.ID(), "error", err)
		}
	}
}

// Counts returns (idle, active) for diagnostics and tests.
func (p *LanguagePool) Counts() (idle, active int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.idle.Len(), len(p.active)
}
