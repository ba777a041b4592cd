// Package guard
package guard

import (
	"fmt"
	"sync"
	"time"

	"bluegreen-server/internal/domain"
)

const window = time.Hour

// Guard serialises mutating operations per application and enforces the
// hourly operation budget. A zero budget disables the limit.
type Guard struct {
	mu      sync.Mutex
	running map[string]domain.OperationKind
	started map[string][]time.Time
	limit   int
	now     func() time.Time
}

func New(maxPerHour int) *Guard {
	return &Guard{
		running: make(map[string]domain.OperationKind),
		started: make(map[string][]time.Time),
		limit:   maxPerHour,
		now:     time.Now,
	}
}

// Lease is held for the duration of one operation.
type Lease struct {
	g    *Guard
	app  string
	at   time.Time
	once sync.Once
}

// TryAcquire never blocks. The returned lease must be released once the
// operation finished.
func (g *Guard) TryAcquire(app string, op domain.OperationKind) (*Lease, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if cur, busy := g.running[app]; busy {
		return nil, fmt.Errorf("%w: %s running for %s", domain.ErrOperationInProgress, cur, app)
	}

	now := g.now()
	recent := g.prune(app, now)
	if g.limit > 0 && len(recent) >= g.limit {
		retry := recent[0].Add(window).Sub(now).Round(time.Second)
		return nil, fmt.Errorf("%w: %d operations for %s, retry in %s", domain.ErrRateLimited, len(recent), app, retry)
	}

	g.running[app] = op
	g.started[app] = append(recent, now)

	return &Lease{g: g, app: app, at: now}, nil
}

// Release ends the operation. It is safe to call more than once.
func (l *Lease) Release() {
	l.once.Do(func() {
		l.g.mu.Lock()
		delete(l.g.running, l.app)
		l.g.mu.Unlock()
	})
}

// Cancel ends an operation that was refused before it changed anything and
// returns its slot to the hourly budget.
func (l *Lease) Cancel() {
	l.once.Do(func() {
		l.g.mu.Lock()
		defer l.g.mu.Unlock()

		delete(l.g.running, l.app)

		ts := l.g.started[l.app]
		for i := len(ts) - 1; i >= 0; i-- {
			if ts[i].Equal(l.at) {
				l.g.started[l.app] = append(ts[:i:i], ts[i+1:]...)
				break
			}
		}
	})
}

// Running reports the operation in progress for app, if any.
func (g *Guard) Running(app string) (domain.OperationKind, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	op, ok := g.running[app]
	return op, ok
}

func (g *Guard) prune(app string, now time.Time) []time.Time {
	ts := g.started[app]
	i := 0
	for i < len(ts) && now.Sub(ts[i]) >= window {
		i++
	}
	ts = ts[i:]
	if len(ts) == 0 {
		delete(g.started, app)
		return nil
	}
	g.started[app] = ts
	return ts
}
