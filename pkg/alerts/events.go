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

package alerts

import (
	"time"

	"github.com/uptrail/uptrail/pkg/models"
)

// NewNodeEvent builds a NODE_UP or NODE_DOWN event for a status transition.
func NewNodeEvent(node *models.Node, newStatus models.Status, message string) *models.WebhookEvent {
	eventType := models.EventNodeDown
	if newStatus == models.StatusOnline {
		eventType = models.EventNodeUp
	}

	data := map[string]any{
		"node_id":   node.ID,
		"node_name": node.Name,
		"kind":      node.Kind,
		"status":    newStatus,
	}

	if message != "" {
		data["message"] = message
	}

	return &models.WebhookEvent{
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		NodeID:    node.ID,
		NewStatus: newStatus,
		Data:      data,
	}
}

// NewInternetEvent builds an INTERNET_UP or INTERNET_DOWN event for an
// internet-source node whose settled status changed.
func NewInternetEvent(node *models.Node, newStatus models.Status) *models.WebhookEvent {
	eventType := models.EventInternetDown
	if newStatus == models.StatusOnline {
		eventType = models.EventInternetUp
	}

	return &models.WebhookEvent{
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		NodeID:    node.ID,
		NewStatus: newStatus,
		Data: map[string]any{
			"node_id":         node.ID,
			"node_name":       node.Name,
			"internet_status": newStatus,
		},
	}
}

// NewISPChangedEvent reports a change of the detected upstream provider.
func NewISPChangedEvent(info *models.ISPInfo, matchedNodeID string) *models.WebhookEvent {
	return &models.WebhookEvent{
		Type:      models.EventISPChanged,
		Timestamp: time.Now().UTC(),
		NodeID:    matchedNodeID,
		Data: map[string]any{
			"public_ip": info.PublicIP,
			"isp":       info.ISP,
			"org":       info.Org,
			"node_id":   matchedNodeID,
		},
	}
}

// NewGroupDegradedEvent reports a group crossing the degradation threshold.
func NewGroupDegradedEvent(group *models.Group, offline, total int) *models.WebhookEvent {
	return &models.WebhookEvent{
		Type:      models.EventGroupDegraded,
		Timestamp: time.Now().UTC(),
		NodeID:    group.ID,
		NewStatus: models.StatusDegraded,
		Data: map[string]any{
			"group_id":   group.ID,
			"group_name": group.Name,
			"offline":    offline,
			"total":      total,
		},
	}
}

// NewTestEvent builds a synthetic event for the immediate-delivery path.
func NewTestEvent() *models.WebhookEvent {
	return &models.WebhookEvent{
		Type:      models.EventTest,
		Timestamp: time.Now().UTC(),
		Data: map[string]any{
			"message": "test event",
		},
	}
}
