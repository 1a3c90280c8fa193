package agent

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// heartbeatTicks is how often the loop logs its counters.
const heartbeatTicks = 300

// World steps a set of agents at a fixed rate. All access to agents goes
// through World so the loop and HTTP handlers never race.
type World struct {
	mu     sync.RWMutex
	agents map[string]*Agent
	order  []string

	rate time.Duration // Loop tick period
	log  *slog.Logger

	listeners []func([]Status)

	// Diagnostics
	tickCount uint64
	simTime   float64
}

// NewWorld creates a world ticking every rate.
func NewWorld(rate time.Duration, logger *slog.Logger) *World {
	if logger == nil {
		logger = slog.Default()
	}
	return &World{
		agents: make(map[string]*Agent),
		rate:   rate,
		log:    logger.With("component", "world"),
	}
}

// Rate returns the tick period.
func (w *World) Rate() time.Duration { return w.rate }

// Add registers an agent and returns its ID.
func (w *World) Add(a *Agent) string {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.agents[a.ID] = a
	w.order = append(w.order, a.ID)
	w.log.Info("agent added", "id", a.ID, "name", a.Name)
	return a.ID
}

// Remove drops an agent.
func (w *World) Remove(key string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	a := w.lookup(key)
	if a == nil {
		return fmt.Errorf("%w: %s", ErrAgentNotFound, key)
	}
	delete(w.agents, a.ID)
	for i, id := range w.order {
		if id == a.ID {
			w.order = append(w.order[:i], w.order[i+1:]...)
			break
		}
	}
	return nil
}

// Get returns the agent with the given ID or name. The agent must only be
// used through Do while the world is running.
func (w *World) Get(key string) (*Agent, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if a := w.lookup(key); a != nil {
		return a, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrAgentNotFound, key)
}

// lookup finds an agent by ID, then by name. Callers hold the lock.
func (w *World) lookup(key string) *Agent {
	if a, ok := w.agents[key]; ok {
		return a
	}
	for _, id := range w.order {
		if a := w.agents[id]; a.Name == key {
			return a
		}
	}
	return nil
}

// Do runs fn on an agent under the world lock.
func (w *World) Do(key string, fn func(*Agent) error) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	a := w.lookup(key)
	if a == nil {
		return fmt.Errorf("%w: %s", ErrAgentNotFound, key)
	}
	return fn(a)
}

// Status returns a snapshot of one agent.
func (w *World) Status(key string) (Status, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	a := w.lookup(key)
	if a == nil {
		return Status{}, fmt.Errorf("%w: %s", ErrAgentNotFound, key)
	}
	return a.Status(), nil
}

// List returns snapshots of every agent in insertion order.
func (w *World) List() []Status {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.snapshot()
}

func (w *World) snapshot() []Status {
	out := make([]Status, 0, len(w.order))
	for _, id := range w.order {
		out = append(out, w.agents[id].Status())
	}
	return out
}

// OnStep registers a listener that receives agent snapshots after every
// step. Listeners run on the loop goroutine and must not block.
func (w *World) OnStep(fn func([]Status)) {
	w.mu.Lock()
	w.listeners = append(w.listeners, fn)
	w.mu.Unlock()
}

// TickCount returns the steps taken so far.
func (w *World) TickCount() uint64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.tickCount
}

// Step advances every agent by dt seconds.
func (w *World) Step(dt float64) {
	w.mu.Lock()
	for _, id := range w.order {
		w.agents[id].Tick(dt)
	}
	w.tickCount++
	w.simTime += dt
	listeners := w.listeners
	var states []Status
	if len(listeners) > 0 {
		states = w.snapshot()
	}
	if w.tickCount%heartbeatTicks == 0 {
		w.log.Debug("world heartbeat", "ticks", w.tickCount, "time", w.simTime, "agents", len(w.order))
	}
	w.mu.Unlock()

	for _, fn := range listeners {
		fn(states)
	}
}

// Run steps the world every rate until ctx is done.
func (w *World) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.rate)
	defer ticker.Stop()

	w.log.Info("world loop started", "rate", w.rate)
	dt := w.rate.Seconds()
	for {
		select {
		case <-ctx.Done():
			w.log.Info("world loop stopped", "ticks", w.TickCount())
			return nil
		case <-ticker.C:
			w.Step(dt)
		}
	}
}
