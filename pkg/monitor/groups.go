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

	"github.com/uptrail/uptrail/pkg/alerts"
	"github.com/uptrail/uptrail/pkg/models"
)

// degradedRatio is the offline fraction at which a group counts as degraded.
const degradedRatio = 0.5

// evaluateGroups checks every group's offline ratio against the degradation
// threshold. The alert is edge-triggered: it fires only on the cycle where
// the ratio crosses the threshold from below, not on every cycle it stays
// above it.
func (e *Engine) evaluateGroups(ctx context.Context, statuses map[string]models.Status) {
	groups, err := e.db.ListGroups(ctx)
	if err != nil {
		e.logger.Error().Err(err).Msg("Failed to load groups")
		return
	}

	for _, group := range groups {
		total := len(group.NodeIDs)
		if total == 0 {
			continue
		}

		offline := 0

		for _, nodeID := range group.NodeIDs {
			if statuses[nodeID] == models.StatusOffline {
				offline++
			}
		}

		ratio := float64(offline) / float64(total)

		e.mu.Lock()
		previous := e.groupRatios[group.ID]
		e.groupRatios[group.ID] = ratio
		e.mu.Unlock()

		if ratio >= degradedRatio && previous < degradedRatio {
			e.logger.Warn().
				Str("group_id", group.ID).
				Str("group_name", group.Name).
				Int("offline", offline).
				Int("total", total).
				Msg("Group degraded")

			if e.alerter != nil {
				e.alerter.Enqueue(alerts.NewGroupDegradedEvent(group, offline, total))
			}
		}
	}
}
