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

// Package models contains the shared data model for the monitoring engine.
package models

import "time"

// Status represents the health state of a monitored node.
type Status string

const (
	StatusOnline   Status = "online"
	StatusOffline  Status = "offline"
	StatusDegraded Status = "degraded"
	StatusUnknown  Status = "unknown"
)

// NodeKind classifies a node within the topology.
type NodeKind string

const (
	KindProbe          NodeKind = "probe"
	KindRouter         NodeKind = "router"
	KindServer         NodeKind = "server"
	KindGateway        NodeKind = "gateway"
	KindSwitch         NodeKind = "switch"
	KindInternetSource NodeKind = "internet_source"
	KindOther          NodeKind = "other"
)

// MonitoringMethod selects how a node is checked.
type MonitoringMethod string

const (
	MethodNone      MonitoringMethod = "none"
	MethodHeartbeat MonitoringMethod = "heartbeat"
	MethodPing      MonitoringMethod = "ping"
	MethodSNMP      MonitoringMethod = "snmp"
	MethodHTTP      MonitoringMethod = "http"
)

// RequiresPolling reports whether the method involves an active outbound check.
func (m MonitoringMethod) RequiresPolling() bool {
	switch m {
	case MethodPing, MethodSNMP, MethodHTTP:
		return true
	default:
		return false
	}
}

// Node is a monitored device or logical internet source. The engine holds a
// read snapshot per cycle and writes back only the mutable fields (status,
// internet status, latency, last seen timestamps).
type Node struct {
	ID               string           `json:"id"`
	Name             string           `json:"name"`
	Kind             NodeKind         `json:"kind"`
	MonitoringMethod MonitoringMethod `json:"monitoring_method"`

	// Protocol-specific parameters.
	Address            string `json:"address,omitempty"`
	SNMPCommunity      string `json:"snmp_community,omitempty"`
	SNMPVersion        string `json:"snmp_version,omitempty"`
	HTTPEndpoint       string `json:"http_endpoint,omitempty"`
	HTTPExpectedStatus int    `json:"http_expected_status,omitempty"`

	// ISPName is matched against the detected upstream provider for
	// internet-source nodes.
	ISPName string `json:"isp_name,omitempty"`

	// Mutable fields, owned by the store.
	Status            Status     `json:"status"`
	InternetStatus    Status     `json:"internet_status,omitempty"`
	LatencyMs         *int64     `json:"latency_ms,omitempty"`
	LastSeen          *time.Time `json:"last_seen,omitempty"`
	LastInternetCheck *time.Time `json:"last_internet_check,omitempty"`
}

// IsInternetSource reports whether the node represents an upstream provider.
func (n *Node) IsInternetSource() bool {
	return n.Kind == KindInternetSource
}

// NodeStatusUpdate carries the mutable fields written back after a cycle.
type NodeStatusUpdate struct {
	NodeID    string     `json:"node_id"`
	Status    Status     `json:"status"`
	LatencyMs *int64     `json:"latency_ms,omitempty"`
	LastSeen  *time.Time `json:"last_seen,omitempty"`
}
