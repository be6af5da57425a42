/*
 * Copyright 2026 Uptrail Authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/uptrail/uptrail/pkg/alerts"
	"github.com/uptrail/uptrail/pkg/models"
	"github.com/uptrail/uptrail/pkg/probe"
)

// statusTransition is one committed status change, used to fan out
// notifications after the store commit succeeded.
type statusTransition struct {
	node    *models.Node
	from    models.Status
	to      models.Status
	message string
}

// runCycle executes one full monitoring cycle. Errors at node granularity
// are downgraded to offline results; a store failure aborts the cycle's
// writes and notifications but never the scheduler.
func (e *Engine) runCycle(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("cycle panicked: %v", r)
			e.logger.Error().Interface("panic", r).Msg("Monitoring cycle panicked")
		}
	}()

	cfg := e.snapshotConfig()
	start := e.clock.Now()

	nodes, err := e.db.ListNodesForPolling(ctx)
	if err != nil {
		e.logger.Error().Err(err).Msg("Failed to load nodes for polling")
		return err
	}

	results := e.checkNodes(ctx, nodes, cfg.Concurrency)
	updates, history, transitions := e.diffResults(&cfg, nodes, results, start)

	if len(updates) > 0 || len(history) > 0 {
		if err := e.db.CommitCycle(ctx, updates, history); err != nil {
			e.logger.Error().Err(err).Msg("Failed to commit cycle, skipping notifications")
			return err
		}
	}

	e.notifyTransitions(transitions)
	e.queueBroadcasts(nodes, updates)

	// Internet sub-cycle, failover election and group evaluation run on the
	// full topology, not just the pollable subset.
	allNodes, err := e.db.ListNodes(ctx)
	if err != nil {
		e.logger.Error().Err(err).Msg("Failed to load topology for failover evaluation")
		return err
	}

	statuses := currentStatuses(allNodes, results)

	e.runInternetChecks(ctx, &cfg, allNodes, results)
	e.runElection(ctx, statuses)
	e.evaluateGroups(ctx, statuses)

	e.logger.Info().
		Int("nodes", len(nodes)).
		Int("updates", len(updates)).
		Int("history_rows", len(history)).
		Dur("elapsed", e.clock.Now().Sub(start)).
		Msg("Monitoring cycle completed")

	return nil
}

// checkNodes fans probe checks out in batches no larger than the concurrency
// limit, awaiting each batch fully before starting the next. A panicking
// check is downgraded to an offline result.
func (e *Engine) checkNodes(ctx context.Context, nodes []*models.Node, concurrency int) map[string]probe.Result {
	results := make(map[string]probe.Result, len(nodes))

	var mu sync.Mutex

	for begin := 0; begin < len(nodes); begin += concurrency {
		end := begin + concurrency
		if end > len(nodes) {
			end = len(nodes)
		}

		var wg sync.WaitGroup

		for _, node := range nodes[begin:end] {
			wg.Add(1)

			go func(n *models.Node) {
				defer wg.Done()

				defer func() {
					if r := recover(); r != nil {
						e.logger.Error().Interface("panic", r).Str("node_id", n.ID).Msg("Check panicked")

						mu.Lock()
						results[n.ID] = probe.Result{
							Status:  models.StatusOffline,
							Message: fmt.Sprintf("check panicked: %v", r),
						}
						mu.Unlock()
					}
				}()

				res := e.prober.Check(ctx, n)

				mu.Lock()
				results[n.ID] = res
				mu.Unlock()
			}(node)
		}

		wg.Wait()
	}

	return results
}

// diffResults is the status state machine: a result is applied only when the
// status changed or a fresh latency sample arrived, and a history row is
// produced iff the status changed.
func (e *Engine) diffResults(
	cfg *Config, nodes []*models.Node, results map[string]probe.Result, now time.Time,
) (updates []*models.NodeStatusUpdate, history []*models.StatusHistoryRecord, transitions []statusTransition) {
	for _, node := range nodes {
		res, ok := results[node.ID]
		if !ok {
			continue
		}

		changed := res.Status != node.Status
		latencyFresh := res.Status == models.StatusOnline

		if !changed && !latencyFresh {
			continue
		}

		update := &models.NodeStatusUpdate{NodeID: node.ID, Status: res.Status}

		if latencyFresh {
			latency := res.LatencyMs
			seen := now
			update.LatencyMs = &latency
			update.LastSeen = &seen
		}

		updates = append(updates, update)

		if !changed {
			continue
		}

		transitions = append(transitions, statusTransition{
			node:    node,
			from:    node.Status,
			to:      res.Status,
			message: res.Message,
		})

		if cfg.historyOn() {
			history = append(history, &models.StatusHistoryRecord{
				ID:        uuid.NewString(),
				NodeID:    node.ID,
				Status:    res.Status,
				LatencyMs: update.LatencyMs,
				Message:   res.Message,
				Timestamp: now,
			})
		}
	}

	return updates, history, transitions
}

// notifyTransitions emits webhook events for committed transitions. Nodes
// first discovered online (unknown -> online) are not alert-worthy.
func (e *Engine) notifyTransitions(transitions []statusTransition) {
	if e.alerter == nil {
		return
	}

	for _, tr := range transitions {
		switch {
		case tr.to == models.StatusOffline:
			e.alerter.Enqueue(alerts.NewNodeEvent(tr.node, tr.to, tr.message))
		case tr.to == models.StatusOnline && tr.from == models.StatusOffline:
			e.alerter.Enqueue(alerts.NewNodeEvent(tr.node, tr.to, tr.message))
		}
	}
}

// queueBroadcasts feeds every applied update into the broadcast throttler;
// the throttler collapses them into a single batched message.
func (e *Engine) queueBroadcasts(nodes []*models.Node, updates []*models.NodeStatusUpdate) {
	if e.broadcaster == nil {
		return
	}

	internet := make(map[string]models.Status, len(nodes))
	for _, n := range nodes {
		internet[n.ID] = n.InternetStatus
	}

	for _, u := range updates {
		e.broadcaster.QueueNodeUpdate(&models.NodeStatusPayload{
			NodeID:         u.NodeID,
			Status:         u.Status,
			InternetStatus: internet[u.NodeID],
			LatencyMs:      u.LatencyMs,
		})
	}
}

// currentStatuses merges the stored statuses with this cycle's results.
func currentStatuses(nodes []*models.Node, results map[string]probe.Result) map[string]models.Status {
	statuses := make(map[string]models.Status, len(nodes))

	for _, n := range nodes {
		if res, ok := results[n.ID]; ok {
			statuses[n.ID] = res.Status
		} else {
			statuses[n.ID] = n.Status
		}
	}

	return statuses
}

// sweepStaleHeartbeats force-transitions passive heartbeat nodes to offline
// once their last heartbeat is older than the stale timeout. This is the
// only transition not produced by an active probe result.
func (e *Engine) sweepStaleHeartbeats(ctx context.Context) {
	cfg := e.snapshotConfig()
	now := e.clock.Now()
	timeout := time.Duration(cfg.StaleTimeout)

	nodes, err := e.db.ListNodes(ctx)
	if err != nil {
		e.logger.Error().Err(err).Msg("Failed to load nodes for stale sweep")
		return
	}

	var (
		updates     []*models.NodeStatusUpdate
		history     []*models.StatusHistoryRecord
		transitions []statusTransition
	)

	for _, node := range nodes {
		if node.MonitoringMethod != models.MethodHeartbeat || node.Status != models.StatusOnline {
			continue
		}

		if node.LastSeen == nil || now.Sub(*node.LastSeen) <= timeout {
			continue
		}

		message := fmt.Sprintf("no heartbeat received for %s", now.Sub(*node.LastSeen).Round(time.Second))

		updates = append(updates, &models.NodeStatusUpdate{NodeID: node.ID, Status: models.StatusOffline})
		transitions = append(transitions, statusTransition{
			node:    node,
			from:    node.Status,
			to:      models.StatusOffline,
			message: message,
		})

		if cfg.historyOn() {
			history = append(history, &models.StatusHistoryRecord{
				ID:        uuid.NewString(),
				NodeID:    node.ID,
				Status:    models.StatusOffline,
				Message:   message,
				Timestamp: now,
			})
		}
	}

	if len(updates) == 0 {
		return
	}

	if err := e.db.CommitCycle(ctx, updates, history); err != nil {
		e.logger.Error().Err(err).Msg("Failed to commit stale sweep")
		return
	}

	e.logger.Info().Int("stale_nodes", len(updates)).Msg("Stale heartbeat nodes marked offline")

	e.notifyTransitions(transitions)
	e.queueBroadcasts(nodes, updates)
}

// purgeHistory enforces the retention window.
func (e *Engine) purgeHistory(ctx context.Context) {
	cfg := e.snapshotConfig()
	cutoff := e.clock.Now().AddDate(0, 0, -cfg.HistoryRetentionDays)

	removed, err := e.db.PurgeHistoryBefore(ctx, cutoff)
	if err != nil {
		e.logger.Error().Err(err).Msg("Failed to purge status history")
		return
	}

	if removed > 0 {
		e.logger.Info().Int64("removed", removed).Time("cutoff", cutoff).Msg("Purged status history")
	}
}
