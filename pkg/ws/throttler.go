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

package ws

import (
	"sync"
	"time"

	"github.com/uptrail/uptrail/pkg/logger"
	"github.com/uptrail/uptrail/pkg/models"
)

const (
	defaultBatchWindow = 200 * time.Millisecond
	defaultMinSpacing  = 500 * time.Millisecond
)

// Sender receives flushed broadcast messages. *Hub implements it.
type Sender interface {
	Broadcast(msg *models.BroadcastMessage)
}

// Throttler coalesces per-node updates into a pending map (last write wins
// per node) and flushes at most once per spacing interval. It is a small
// idle -> pending -> flushing state machine driven by a single timer.
type Throttler struct {
	sender      Sender
	logger      logger.Logger
	batchWindow time.Duration
	minSpacing  time.Duration

	mu        sync.Mutex
	pending   map[string]*models.NodeStatusPayload
	timer     *time.Timer
	lastFlush time.Time
	stopped   bool
}

// NewThrottler creates a throttler in front of the sender. Non-positive
// windows select the defaults.
func NewThrottler(sender Sender, batchWindow, minSpacing time.Duration, log logger.Logger) *Throttler {
	if batchWindow <= 0 {
		batchWindow = defaultBatchWindow
	}

	if minSpacing <= 0 {
		minSpacing = defaultMinSpacing
	}

	return &Throttler{
		sender:      sender,
		logger:      log,
		batchWindow: batchWindow,
		minSpacing:  minSpacing,
		pending:     make(map[string]*models.NodeStatusPayload),
	}
}

// QueueNodeUpdate records the latest state for the node and arms the flush
// timer when it is not already pending.
func (t *Throttler) QueueNodeUpdate(payload *models.NodeStatusPayload) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopped {
		return
	}

	t.pending[payload.NodeID] = payload

	if t.timer == nil {
		t.timer = time.AfterFunc(t.flushDelayLocked(), t.flush)
	}
}

// flushDelayLocked computes max(batchWindow, minSpacing - timeSinceLast).
func (t *Throttler) flushDelayLocked() time.Duration {
	delay := t.batchWindow

	if !t.lastFlush.IsZero() {
		if remaining := t.minSpacing - time.Since(t.lastFlush); remaining > delay {
			delay = remaining
		}
	}

	return delay
}

// SendImmediate flushes any pending batch first, then sends the urgent
// message unthrottled.
func (t *Throttler) SendImmediate(msgType models.BroadcastType, payload any) {
	t.mu.Lock()

	if t.stopped {
		t.mu.Unlock()
		return
	}

	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}

	batch := t.takeLocked()
	t.mu.Unlock()

	t.broadcast(batch)
	t.sender.Broadcast(&models.BroadcastMessage{
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	})
}

// Stop cancels the pending flush. Pending updates are discarded.
func (t *Throttler) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopped = true

	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}

func (t *Throttler) flush() {
	t.mu.Lock()
	t.timer = nil
	batch := t.takeLocked()
	t.mu.Unlock()

	t.broadcast(batch)
}

// takeLocked swaps out the pending map and stamps the flush time. Caller
// holds mu.
func (t *Throttler) takeLocked() []*models.NodeStatusPayload {
	if len(t.pending) == 0 {
		return nil
	}

	batch := make([]*models.NodeStatusPayload, 0, len(t.pending))
	for _, p := range t.pending {
		batch = append(batch, p)
	}

	t.pending = make(map[string]*models.NodeStatusPayload)
	t.lastFlush = time.Now()

	return batch
}

func (t *Throttler) broadcast(batch []*models.NodeStatusPayload) {
	switch len(batch) {
	case 0:
		return
	case 1:
		t.sender.Broadcast(&models.BroadcastMessage{
			Type:      models.BroadcastNodeStatus,
			Payload:   batch[0],
			Timestamp: time.Now().UTC(),
		})
	default:
		t.sender.Broadcast(&models.BroadcastMessage{
			Type:      models.BroadcastBatchStatus,
			Payload:   batch,
			Timestamp: time.Now().UTC(),
		})
	}
}
