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

// Package db implements the repository contract over PostgreSQL.
package db

import (
	"context"
	"time"

	"github.com/uptrail/uptrail/pkg/models"
)

// Service is the narrow repository contract the monitoring engine consumes.
// Status writes for one cycle are committed in a single transaction so
// partial state is never visible.
type Service interface {
	Close() error

	// Node operations.

	ListNodes(ctx context.Context) ([]*models.Node, error)
	ListNodesForPolling(ctx context.Context) ([]*models.Node, error)
	GetNode(ctx context.Context, id string) (*models.Node, error)

	// CommitCycle atomically applies all status updates and appends all
	// history rows produced by one polling cycle.
	CommitCycle(ctx context.Context, updates []*models.NodeStatusUpdate, history []*models.StatusHistoryRecord) error

	UpdateNodeInternetStatus(ctx context.Context, nodeID string, status models.Status, checkedAt time.Time) error

	// Connection operations.

	// ListInternetSourceConnections returns, in stable id order, every
	// connection whose source is an internet-source node.
	ListInternetSourceConnections(ctx context.Context) ([]*models.Connection, error)

	// SetActiveSource deactivates every connection to the target and, when
	// connectionID is non-empty, activates that one, transactionally.
	SetActiveSource(ctx context.Context, targetID, connectionID string) error

	// Group operations.

	ListGroups(ctx context.Context) ([]*models.Group, error)

	// History retention.

	PurgeHistoryBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
