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

// Package monitor contains the cycle orchestrator, the per-node status state
// machine, the internet failover selector and the group degradation monitor.
package monitor

import (
	"context"
	"time"

	"github.com/uptrail/uptrail/pkg/models"
)

// Clock abstracts time-related operations.
type Clock interface {
	Now() time.Time
	Ticker(d time.Duration) Ticker
}

// Ticker abstracts the ticker behavior.
type Ticker interface {
	Chan() <-chan time.Time
	Stop()
}

// realClock backs the engine in production; tests substitute their own Clock.
type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Ticker(d time.Duration) Ticker {
	return sysTicker{t: time.NewTicker(d)}
}

// sysTicker adapts time.Ticker to the Ticker contract.
type sysTicker struct {
	t *time.Ticker
}

func (s sysTicker) Chan() <-chan time.Time { return s.t.C }
func (s sysTicker) Stop()                  { s.t.Stop() }

// AlertSender receives webhook events produced by the engine.
type AlertSender interface {
	Enqueue(event *models.WebhookEvent)
}

// Broadcaster receives real-time notifications produced by the engine.
type Broadcaster interface {
	QueueNodeUpdate(payload *models.NodeStatusPayload)
	SendImmediate(msgType models.BroadcastType, payload any)
}

// IdentityResolver resolves the external identity of the active uplink.
type IdentityResolver interface {
	Resolve(ctx context.Context, force bool) (*models.ISPInfo, error)
}
