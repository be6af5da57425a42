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

package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/uptrail/uptrail/pkg/logger"
	"github.com/uptrail/uptrail/pkg/models"
)

const nodeColumns = `id, name, kind, monitoring_method, address, snmp_community, snmp_version,
	http_endpoint, http_expected_status, isp_name, status, internet_status,
	latency_ms, last_seen, last_internet_check`

// Repository implements Service over a pgx connection pool.
type Repository struct {
	pool   *pgxpool.Pool
	logger logger.Logger
}

// NewRepository wraps an established pool.
func NewRepository(pool *pgxpool.Pool, log logger.Logger) *Repository {
	return &Repository{pool: pool, logger: log}
}

func (r *Repository) Close() error {
	r.pool.Close()
	return nil
}

func (r *Repository) ListNodes(ctx context.Context) ([]*models.Node, error) {
	return r.queryNodes(ctx, fmt.Sprintf(`SELECT %s FROM nodes ORDER BY id`, nodeColumns))
}

func (r *Repository) ListNodesForPolling(ctx context.Context) ([]*models.Node, error) {
	return r.queryNodes(ctx, fmt.Sprintf(
		`SELECT %s FROM nodes WHERE monitoring_method IN ('ping', 'snmp', 'http') ORDER BY id`, nodeColumns))
}

func (r *Repository) GetNode(ctx context.Context, id string) (*models.Node, error) {
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`SELECT %s FROM nodes WHERE id = $1`, nodeColumns), id)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFailedToQuery, err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, ErrNodeNotFound
	}

	return scanNode(rows)
}

func (r *Repository) queryNodes(ctx context.Context, query string, args ...interface{}) ([]*models.Node, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFailedToQuery, err)
	}
	defer rows.Close()

	var nodes []*models.Node

	for rows.Next() {
		node, err := scanNode(rows)
		if err != nil {
			return nil, err
		}

		nodes = append(nodes, node)
	}

	return nodes, rows.Err()
}

func scanNode(rows pgx.Rows) (*models.Node, error) {
	var (
		node                                           models.Node
		address, community, version, endpoint, ispName *string
		internetStatus                                 *string
		expectedStatus                                 *int
	)

	err := rows.Scan(&node.ID, &node.Name, &node.Kind, &node.MonitoringMethod,
		&address, &community, &version, &endpoint, &expectedStatus, &ispName,
		&node.Status, &internetStatus, &node.LatencyMs, &node.LastSeen, &node.LastInternetCheck)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFailedToScan, err)
	}

	if address != nil {
		node.Address = *address
	}

	if community != nil {
		node.SNMPCommunity = *community
	}

	if version != nil {
		node.SNMPVersion = *version
	}

	if endpoint != nil {
		node.HTTPEndpoint = *endpoint
	}

	if expectedStatus != nil {
		node.HTTPExpectedStatus = *expectedStatus
	}

	if ispName != nil {
		node.ISPName = *ispName
	}

	if internetStatus != nil {
		node.InternetStatus = models.Status(*internetStatus)
	}

	return &node, nil
}

// CommitCycle applies all node status updates and history inserts from one
// polling cycle in a single transaction.
func (r *Repository) CommitCycle(
	ctx context.Context, updates []*models.NodeStatusUpdate, history []*models.StatusHistoryRecord) error {
	if len(updates) == 0 && len(history) == 0 {
		return nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	batch := &pgx.Batch{}

	for _, u := range updates {
		batch.Queue(`UPDATE nodes SET status = $2, latency_ms = COALESCE($3, latency_ms), last_seen = COALESCE($4, last_seen)
			WHERE id = $1`, u.NodeID, u.Status, u.LatencyMs, u.LastSeen)
	}

	for _, h := range history {
		var internetStatus *string
		if h.InternetStatus != "" {
			s := string(h.InternetStatus)
			internetStatus = &s
		}

		batch.Queue(`INSERT INTO status_history (id, node_id, status, internet_status, latency_ms, message, timestamp)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			h.ID, h.NodeID, h.Status, internetStatus, h.LatencyMs, h.Message, h.Timestamp)
	}

	if err := r.execBatch(ctx, tx, batch, "cycle commit"); err != nil {
		return fmt.Errorf("%w: %w", ErrFailedToInsert, err)
	}

	return tx.Commit(ctx)
}

func (r *Repository) UpdateNodeInternetStatus(
	ctx context.Context, nodeID string, status models.Status, checkedAt time.Time) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE nodes SET internet_status = $2, last_internet_check = $3 WHERE id = $1`,
		nodeID, status, checkedAt)
	if err != nil {
		return fmt.Errorf("failed to update internet status: %w", err)
	}

	return nil
}

func (r *Repository) ListInternetSourceConnections(ctx context.Context) ([]*models.Connection, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT c.id, c.source_id, c.target_id, c.is_active_source
		 FROM connections c
		 JOIN nodes n ON n.id = c.source_id
		 WHERE n.kind = 'internet_source'
		 ORDER BY c.id`)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFailedToQuery, err)
	}
	defer rows.Close()

	var conns []*models.Connection

	for rows.Next() {
		var c models.Connection

		if err := rows.Scan(&c.ID, &c.SourceID, &c.TargetID, &c.IsActiveSource); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrFailedToScan, err)
		}

		conns = append(conns, &c)
	}

	return conns, rows.Err()
}

// SetActiveSource deactivates every connection into the target and activates
// the chosen one, in one transaction so the single-active-source invariant
// holds at every commit point.
func (r *Repository) SetActiveSource(ctx context.Context, targetID, connectionID string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if _, err := tx.Exec(ctx,
		`UPDATE connections SET is_active_source = FALSE WHERE target_id = $1`, targetID); err != nil {
		return fmt.Errorf("failed to deactivate connections: %w", err)
	}

	if connectionID != "" {
		if _, err := tx.Exec(ctx,
			`UPDATE connections SET is_active_source = TRUE WHERE id = $1`, connectionID); err != nil {
			return fmt.Errorf("failed to activate connection: %w", err)
		}
	}

	return tx.Commit(ctx)
}

func (r *Repository) ListGroups(ctx context.Context) ([]*models.Group, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT g.id, g.name, COALESCE(array_agg(m.node_id) FILTER (WHERE m.node_id IS NOT NULL), '{}')
		 FROM node_groups g
		 LEFT JOIN node_group_members m ON m.group_id = g.id
		 GROUP BY g.id, g.name
		 ORDER BY g.id`)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFailedToQuery, err)
	}
	defer rows.Close()

	var groups []*models.Group

	for rows.Next() {
		var g models.Group

		if err := rows.Scan(&g.ID, &g.Name, &g.NodeIDs); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrFailedToScan, err)
		}

		groups = append(groups, &g)
	}

	return groups, rows.Err()
}

func (r *Repository) PurgeHistoryBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM status_history WHERE timestamp < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge history: %w", err)
	}

	return tag.RowsAffected(), nil
}

var _ Service = (*Repository)(nil)
