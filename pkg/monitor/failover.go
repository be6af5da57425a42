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
	"net"
	"time"

	"github.com/uptrail/uptrail/pkg/alerts"
	"github.com/uptrail/uptrail/pkg/models"
	"github.com/uptrail/uptrail/pkg/probe"
)

// runInternetChecks determines the internet status of every internet-source
// node. Nodes without an active polling method share a single fallback
// connectivity probe per cycle, so redundant outbound checks are avoided.
func (e *Engine) runInternetChecks(
	ctx context.Context, cfg *Config, nodes []*models.Node, results map[string]probe.Result) {
	now := e.clock.Now()

	var fallback *models.Status

	for _, node := range nodes {
		if !node.IsInternetSource() {
			continue
		}

		var status models.Status

		switch {
		case nodeStatus(node, results) == models.StatusOffline:
			// An offline source cannot provide internet, no probe needed.
			status = models.StatusOffline
		case node.MonitoringMethod.RequiresPolling():
			if res, ok := results[node.ID]; ok {
				status = res.Status
			} else {
				status = e.prober.Check(ctx, node).Status
			}
		default:
			if fallback == nil {
				s := e.sharedConnectivityCheck(ctx, cfg.InternetCheckTargets)
				fallback = &s
			}

			status = *fallback
		}

		if err := e.db.UpdateNodeInternetStatus(ctx, node.ID, status, now); err != nil {
			e.logger.Error().Err(err).Str("node_id", node.ID).Msg("Failed to store internet status")
		}

		if e.broadcaster != nil {
			e.broadcaster.QueueNodeUpdate(&models.NodeStatusPayload{
				NodeID:         node.ID,
				Status:         nodeStatus(node, results),
				InternetStatus: status,
			})
		}

		e.trackInternetStatus(node, status, now, time.Duration(cfg.StabilityWindow))
	}
}

// sharedConnectivityCheck dials the configured well-known targets and
// reports online on the first success.
func (e *Engine) sharedConnectivityCheck(ctx context.Context, targets []string) models.Status {
	var dialer net.Dialer

	for _, target := range targets {
		dialCtx, cancel := context.WithTimeout(ctx, defaultConnectTimeout)
		conn, err := dialer.DialContext(dialCtx, "tcp", target)

		cancel()

		if err != nil {
			continue
		}

		_ = conn.Close()

		return models.StatusOnline
	}

	return models.StatusOffline
}

// trackInternetStatus applies the stability gate: the stored status and the
// broadcast always reflect the latest observation, but a webhook fires only
// once the status has held steady for the stability window. The first
// observation of a node seeds the baseline and is never alerted.
func (e *Engine) trackInternetStatus(node *models.Node, status models.Status, now time.Time, window time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()

	track, ok := e.stability[node.ID]
	if !ok {
		e.stability[node.ID] = &stabilityTrack{status: status, since: now, notified: true}
		return
	}

	if track.status != status {
		track.status = status
		track.since = now
		track.notified = false

		return
	}

	if !track.notified && now.Sub(track.since) >= window {
		track.notified = true

		if e.alerter != nil {
			e.alerter.Enqueue(alerts.NewInternetEvent(node, status))
		}
	}
}

// runElection enforces the single-active-source invariant per target: when
// the active connection's source is no longer online (or none is active),
// the first online candidate in stable order becomes the new active source.
func (e *Engine) runElection(ctx context.Context, statuses map[string]models.Status) {
	conns, err := e.db.ListInternetSourceConnections(ctx)
	if err != nil {
		e.logger.Error().Err(err).Msg("Failed to load connections for election")
		return
	}

	var targets []string

	byTarget := make(map[string][]*models.Connection)

	for _, conn := range conns {
		if _, ok := byTarget[conn.TargetID]; !ok {
			targets = append(targets, conn.TargetID)
		}

		byTarget[conn.TargetID] = append(byTarget[conn.TargetID], conn)
	}

	for _, targetID := range targets {
		e.electForTarget(ctx, targetID, byTarget[targetID], statuses)
	}
}

func (e *Engine) electForTarget(
	ctx context.Context, targetID string, candidates []*models.Connection, statuses map[string]models.Status) {
	var active *models.Connection

	for _, c := range candidates {
		if c.IsActiveSource {
			active = c
			break
		}
	}

	if active != nil && statuses[active.SourceID] == models.StatusOnline {
		return
	}

	var chosen *models.Connection

	for _, c := range candidates {
		if statuses[c.SourceID] == models.StatusOnline {
			chosen = c
			break
		}
	}

	if chosen == nil {
		// No failover available. The target is left without an active
		// source; this is an explicit state, not an error.
		if active != nil {
			if err := e.db.SetActiveSource(ctx, targetID, ""); err != nil {
				e.logger.Error().Err(err).Str("target_id", targetID).Msg("Failed to clear active source")
				return
			}

			e.logger.Warn().Str("target_id", targetID).Msg("No online source available for target")
		}

		return
	}

	if active != nil && chosen.ID == active.ID {
		return
	}

	if err := e.db.SetActiveSource(ctx, targetID, chosen.ID); err != nil {
		e.logger.Error().Err(err).Str("target_id", targetID).Msg("Failed to switch active source")
		return
	}

	e.logger.Info().
		Str("target_id", targetID).
		Str("connection_id", chosen.ID).
		Str("source_id", chosen.SourceID).
		Msg("Active source changed")

	if e.broadcaster != nil {
		e.broadcaster.SendImmediate(models.BroadcastActiveSourceChange, map[string]any{
			"target_id":     targetID,
			"connection_id": chosen.ID,
			"source_id":     chosen.SourceID,
		})
	}
}

// nodeStatus returns the node's status as observed this cycle, falling back
// to the stored value.
func nodeStatus(node *models.Node, results map[string]probe.Result) models.Status {
	if res, ok := results[node.ID]; ok {
		return res.Status
	}

	return node.Status
}
