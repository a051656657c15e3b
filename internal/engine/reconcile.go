package engine

import (
	"context"
	"fmt"
)

// Reconciliation replaces a collection wholesale with the service's data.
// Every refetch takes a tick when it starts; a result that arrives after a
// later-started refetch was already applied is dropped as stale.

// refreshMine refetches the caller's groups and installs them as the new
// snapshot. The mutations in discard are dropped in the same step whatever the
// outcome, so a failed refetch still rolls them back.
func (e *Engine) refreshMine(ctx context.Context, discard ...uint64) error {
	e.mu.Lock()
	e.tick++
	start := e.tick
	e.mu.Unlock()

	groups, err := e.client.ListMine(context.WithoutCancel(ctx))

	e.mu.Lock()
	defer e.mu.Unlock()

	for _, seq := range discard {
		if m, ok := e.log.discard(seq); ok {
			e.observeLocked(m)
		}
	}

	switch {
	case err != nil:
		e.metrics.Reconciliations.WithLabelValues("mine", "failed").Inc()
		e.logger.Warn("Failed to refetch groups", "collection", "mine", "error", err)
		e.publishMineLocked()
		return fmt.Errorf("%w: %w", ErrRemote, err)
	case start < e.mineTick:
		e.metrics.Reconciliations.WithLabelValues("mine", "stale").Inc()
		e.logger.Debug("Dropping stale snapshot", "collection", "mine", "started", start, "applied", e.mineTick)
		e.publishMineLocked()
		return nil
	}

	e.mineTick = start
	e.base = groups
	e.log.prune(start)
	e.publishMineLocked()
	e.metrics.Reconciliations.WithLabelValues("mine", "applied").Inc()
	e.logger.Debug("Groups reconciled", "collection", "mine", "groups", len(groups), "pending", len(e.log.entries))
	return nil
}

// refreshDiscoverable refetches the groups open to join.
func (e *Engine) refreshDiscoverable(ctx context.Context) error {
	e.mu.Lock()
	e.tick++
	start := e.tick
	e.mu.Unlock()

	groups, err := e.client.ListDiscoverable(context.WithoutCancel(ctx))

	e.mu.Lock()
	defer e.mu.Unlock()

	switch {
	case err != nil:
		e.metrics.Reconciliations.WithLabelValues("discoverable", "failed").Inc()
		e.logger.Warn("Failed to refetch groups", "collection", "discoverable", "error", err)
		return fmt.Errorf("%w: %w", ErrRemote, err)
	case start < e.discTick:
		e.metrics.Reconciliations.WithLabelValues("discoverable", "stale").Inc()
		return nil
	}

	e.discTick = start
	e.store.ReplaceDiscoverable(groups)
	e.metrics.Reconciliations.WithLabelValues("discoverable", "applied").Inc()
	return nil
}

// publishMineLocked installs snapshot plus live mutations as "mine".
func (e *Engine) publishMineLocked() {
	e.store.ReplaceMine(e.log.replay(e.base, e.mineTick))
	e.metrics.PendingMutation.Set(float64(e.log.tentative()))
}

// scheduleRefreshLocked arranges for mutation seq to be discarded and the
// caller's groups refetched after the reconcile delay. The refetch runs on the
// group's queue.
func (e *Engine) scheduleRefreshLocked(groupID string, seq uint64) {
	e.timers[seq] = e.clock.AfterFunc(e.reconcileDelay, func() {
		e.mu.Lock()
		_, scheduled := e.timers[seq]
		delete(e.timers, seq)
		e.mu.Unlock()
		if !scheduled {
			return
		}

		err := e.queues.do(groupID, func() {
			if err := e.refreshMine(context.Background(), seq); err != nil {
				e.logger.Warn("Delayed reconciliation failed", "group_id", groupID, "error", err)
			}
		})
		if err != nil {
			e.logger.Debug("Delayed reconciliation skipped", "group_id", groupID, "error", err)
		}
	})
}
