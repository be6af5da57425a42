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
	"strings"

	"github.com/uptrail/uptrail/pkg/alerts"
	"github.com/uptrail/uptrail/pkg/models"
)

// DetectISPNow resolves the external identity of the current uplink and
// matches it against the configured internet-source nodes. When the matched
// node differs from the previous detection, an ISP_CHANGED alert is emitted
// and the failover election re-runs so the active source follows the uplink.
func (e *Engine) DetectISPNow(ctx context.Context, force bool) (*models.ISPInfo, error) {
	if e.resolver == nil {
		return nil, errResolverRequired
	}

	info, err := e.resolver.Resolve(ctx, force)
	if err != nil {
		e.logger.Error().Err(err).Msg("ISP lookup failed")
		return nil, err
	}

	nodes, err := e.db.ListNodes(ctx)
	if err != nil {
		e.logger.Error().Err(err).Msg("Failed to load nodes for ISP matching")
		return info, err
	}

	matchedID := matchISPNode(nodes, info)

	e.logger.Info().
		Str("public_ip", info.PublicIP).
		Str("isp", info.ISP).
		Str("matched_node_id", matchedID).
		Msg("ISP detected")

	if e.broadcaster != nil {
		e.broadcaster.SendImmediate(models.BroadcastISPDetected, map[string]any{
			"public_ip":       info.PublicIP,
			"isp":             info.ISP,
			"org":             info.Org,
			"matched_node_id": matchedID,
		})
	}

	e.mu.Lock()
	previousID := e.lastISPNodeID
	first := previousID == "" && matchedID != ""
	changed := matchedID != "" && previousID != "" && matchedID != previousID

	if matchedID != "" {
		e.lastISPNodeID = matchedID
	}
	e.mu.Unlock()

	if changed && e.alerter != nil {
		e.alerter.Enqueue(alerts.NewISPChangedEvent(info, matchedID))
	}

	if first || changed {
		e.runElection(ctx, currentStatuses(nodes, nil))
	}

	return info, nil
}

// matchISPNode finds the internet-source node whose configured provider name
// corresponds to the observed one. Matching is case-insensitive: either the
// observed name contains the configured name, or the configured name contains
// the first word of the observed name. The first match in stable node order
// wins.
func matchISPNode(nodes []*models.Node, info *models.ISPInfo) string {
	observed := strings.ToLower(strings.TrimSpace(info.ISP))
	if observed == "" {
		observed = strings.ToLower(strings.TrimSpace(info.Org))
	}

	if observed == "" {
		return ""
	}

	firstToken := observed
	if idx := strings.IndexByte(observed, ' '); idx > 0 {
		firstToken = observed[:idx]
	}

	for _, node := range nodes {
		if !node.IsInternetSource() || node.ISPName == "" {
			continue
		}

		configured := strings.ToLower(strings.TrimSpace(node.ISPName))
		if configured == "" {
			continue
		}

		if strings.Contains(observed, configured) || strings.Contains(configured, firstToken) {
			return node.ID
		}
	}

	return ""
}
