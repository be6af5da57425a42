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

// Package probe routes monitored nodes to their protocol checkers and
// normalizes the outcome into a uniform result.
package probe

import (
	"context"

	"github.com/uptrail/uptrail/pkg/models"
)

// Result is the normalized outcome of one check. Status is online, offline
// or unknown; degraded is never produced by a probe.
type Result struct {
	Status    models.Status
	LatencyMs int64
	Message   string
}

// Checker performs a single protocol-specific check attempt.
type Checker interface {
	Check(ctx context.Context, node *models.Node) (alive bool, latencyMs int64, err error)
}

// Dispatcher is the capability the engine consumes: one uniform check per
// node, retries and timeouts already applied.
type Dispatcher interface {
	Check(ctx context.Context, node *models.Node) Result
}
