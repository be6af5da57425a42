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

package models

import "time"

// EventType identifies an outbound webhook event.
type EventType string

const (
	EventNodeDown      EventType = "NODE_DOWN"
	EventNodeUp        EventType = "NODE_UP"
	EventInternetDown  EventType = "INTERNET_DOWN"
	EventInternetUp    EventType = "INTERNET_UP"
	EventISPChanged    EventType = "ISP_CHANGED"
	EventGroupDegraded EventType = "GROUP_DEGRADED"
	EventTest          EventType = "TEST"
)

// WebhookEvent is an ephemeral alert event. It is queued and eventually
// delivered or dropped, never persisted. NodeID and NewStatus form the
// deduplication key together with Type.
type WebhookEvent struct {
	Type      EventType      `json:"event_type"`
	Timestamp time.Time      `json:"timestamp"`
	NodeID    string         `json:"-"`
	NewStatus Status         `json:"-"`
	Data      map[string]any `json:"data"`
}

// BroadcastType identifies a real-time channel message.
type BroadcastType string

const (
	BroadcastNodeStatus         BroadcastType = "NODE_STATUS_UPDATE"
	BroadcastBatchStatus        BroadcastType = "BATCH_STATUS_UPDATE"
	BroadcastActiveSourceChange BroadcastType = "CONNECTION_ACTIVE_SOURCE_CHANGED"
	BroadcastISPDetected        BroadcastType = "ISP_DETECTED"
)

// BroadcastMessage is the envelope pushed to connected observers.
type BroadcastMessage struct {
	Type      BroadcastType `json:"type"`
	Payload   any           `json:"payload"`
	Timestamp time.Time     `json:"timestamp"`
}

// NodeStatusPayload is the per-node payload carried by status broadcasts.
type NodeStatusPayload struct {
	NodeID         string `json:"node_id"`
	Status         Status `json:"status"`
	InternetStatus Status `json:"internet_status,omitempty"`
	LatencyMs      *int64 `json:"latency_ms,omitempty"`
}

// ISPInfo is the cached external identity of the active uplink. It lives for
// the lifetime of the process only.
type ISPInfo struct {
	PublicIP string `json:"public_ip"`
	ISP      string `json:"isp"`
	Org      string `json:"org"`
	ASNumber string `json:"as_number,omitempty"`
	City     string `json:"city,omitempty"`
	Country  string `json:"country,omitempty"`
}
