// Package orchestrator owns the lifecycle of a set of exchange listeners,
// fans their emitted actions into the store, and exposes the single
// shutdown signal the CLI front-end drives from SIGINT.
package orchestrator

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/nadircryptocurrency/antalla/internal/actions"
	"github.com/nadircryptocurrency/antalla/internal/listener"
	"github.com/nadircryptocurrency/antalla/internal/store"
)

// DefaultCommitInterval is the buffer depth that triggers an intermediate
// flush.
const DefaultCommitInterval = 100

// Orchestrator owns a set of active listeners and commits their emitted
// actions to the store in fixed-size batches.
type Orchestrator struct {
	store          store.Store
	commitInterval int
	listeners      map[string]listener.ExchangeListener

	mu      sync.Mutex
	buffer  []actions.Action
	started bool

	stopOnce sync.Once
	wg       sync.WaitGroup

	log *logrus.Entry
}

// New builds an Orchestrator for the named venues, constructing one
// listener per venue from the registry (the full registry, or an explicit
// subset).
func New(st store.Store, venues []string, configs map[string]listener.Config, commitInterval int) (*Orchestrator, error) {
	if commitInterval <= 0 {
		commitInterval = DefaultCommitInterval
	}
	o := &Orchestrator{
		store:          st,
		commitInterval: commitInterval,
		listeners:      make(map[string]listener.ExchangeListener, len(venues)),
		log:            logrus.WithField("component", "orchestrator"),
	}
	for _, name := range venues {
		cfg, ok := configs[name]
		if !ok {
			return nil, fmt.Errorf("no configuration for exchange %q", name)
		}
		l, ok := listener.New(name, cfg, o.onEvent)
		if !ok {
			return nil, fmt.Errorf("unknown exchange %q", name)
		}
		o.listeners[name] = l
	}
	return o, nil
}

// onEvent is the single sink every listener's actions are routed through.
func (o *Orchestrator) onEvent(_ listener.ExchangeListener, batch []actions.Action) {
	o.mu.Lock()
	o.buffer = append(o.buffer, batch...)
	shouldFlush := len(o.buffer) >= o.commitInterval
	o.mu.Unlock()

	if shouldFlush {
		if err := o.flush(context.Background()); err != nil {
			o.log.WithError(err).Error("commit failed, buffer retained for retry")
		}
	}
}

// flush drains the entire buffer, not just commitInterval's worth, into one
// transaction — reaching commitInterval is the trigger, not the flush size.
func (o *Orchestrator) flush(ctx context.Context) error {
	o.mu.Lock()
	if len(o.buffer) == 0 {
		o.mu.Unlock()
		return nil
	}
	batch := o.buffer
	o.buffer = nil
	o.mu.Unlock()

	tx, err := o.store.Begin(ctx)
	if err != nil {
		o.retain(batch)
		return fmt.Errorf("begin commit: %w", err)
	}

	for _, a := range batch {
		if err := a.Execute(ctx, tx); err != nil {
			o.log.WithError(err).Warn("dropping malformed action")
			continue
		}
	}

	if err := tx.Commit(); err != nil {
		o.retain(batch)
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

// retain puts a batch back at the front of the buffer for the next flush
// attempt, so a store-unavailable error doesn't drop actions.
func (o *Orchestrator) retain(batch []actions.Action) {
	o.mu.Lock()
	o.buffer = append(batch, o.buffer...)
	o.mu.Unlock()
}

// Start runs every configured listener concurrently until all reach Closed,
// then performs the residual flush.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	if o.started {
		o.mu.Unlock()
		return nil
	}
	o.started = true
	o.mu.Unlock()

	for name, l := range o.listeners {
		o.wg.Add(1)
		go func(name string, l listener.ExchangeListener) {
			defer o.wg.Done()
			if err := l.Listen(ctx); err != nil && ctx.Err() == nil {
				o.log.WithField("exchange", name).WithError(err).Error("listener exited")
			}
		}(name, l)
	}
	o.wg.Wait()

	return o.flush(context.Background())
}

// GetMarkets performs the one-shot get_markets fan-out across every
// listener, routes results through the same sink, and flushes.
func (o *Orchestrator) GetMarkets(ctx context.Context) error {
	var wg sync.WaitGroup
	for name, l := range o.listeners {
		wg.Add(1)
		go func(name string, l listener.ExchangeListener) {
			defer wg.Done()
			if err := l.GetMarkets(ctx); err != nil {
				o.log.WithField("exchange", name).WithError(err).Error("get_markets failed")
			}
		}(name, l)
	}
	wg.Wait()
	return o.flush(ctx)
}

// Stop requests termination of every listener. Idempotent; safe to call
// from a signal handler.
func (o *Orchestrator) Stop() {
	o.stopOnce.Do(func() {
		for _, l := range o.listeners {
			l.Close()
		}
	})
}

// BufferLen reports the current buffered-action count, for tests and
// observability.
func (o *Orchestrator) BufferLen() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.buffer)
}
