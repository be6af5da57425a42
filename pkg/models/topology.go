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

// Connection is a directed edge in the topology. Among all connections whose
// source is an internet-source node, at most one may be the active source per
// target; the failover selector enforces that invariant.
type Connection struct {
	ID             string `json:"id"`
	SourceID       string `json:"source_id"`
	TargetID       string `json:"target_id"`
	IsActiveSource bool   `json:"is_active_source"`
}

// Group is a named collection of node references with a derived health ratio.
type Group struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	NodeIDs []string `json:"node_ids"`
}

// StatusHistoryRecord is an immutable append-only fact, created only when a
// node's status actually changed.
type StatusHistoryRecord struct {
	ID             string    `json:"id"`
	NodeID         string    `json:"node_id"`
	Status         Status    `json:"status"`
	InternetStatus Status    `json:"internet_status,omitempty"`
	LatencyMs      *int64    `json:"latency_ms,omitempty"`
	Message        string    `json:"message,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}
