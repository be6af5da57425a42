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

// Package alerts delivers webhook events to a configured endpoint with
// deduplication, debounced batching, signed payloads and retry/backoff.
package alerts

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/uptrail/uptrail/pkg/logger"
	"github.com/uptrail/uptrail/pkg/models"
)

const (
	defaultMaxAttempts    = 3
	defaultInitialBackoff = time.Second
	defaultDedupWindow    = 10 * time.Second
	defaultDebounce       = 2 * time.Second
	defaultTimeout        = 10 * time.Second

	signatureHeader = "X-Webhook-Signature"
	eventTypeHeader = "X-Event-Type"
)

// Config controls delivery behavior. Zero values select the defaults.
type Config struct {
	Enabled        bool            `json:"enabled"`
	URL            string          `json:"url"`
	Secret         string          `json:"secret,omitempty"`
	MaxAttempts    int             `json:"max_attempts,omitempty"`
	InitialBackoff models.Duration `json:"initial_backoff,omitempty"`
	DedupWindow    models.Duration `json:"dedup_window,omitempty"`
	Debounce       models.Duration `json:"debounce,omitempty"`
	Timeout        models.Duration `json:"timeout,omitempty"`
}

func (c *Config) normalize() {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = defaultMaxAttempts
	}

	if time.Duration(c.InitialBackoff) <= 0 {
		c.InitialBackoff = models.Duration(defaultInitialBackoff)
	}

	if time.Duration(c.DedupWindow) <= 0 {
		c.DedupWindow = models.Duration(defaultDedupWindow)
	}

	if time.Duration(c.Debounce) <= 0 {
		c.Debounce = models.Duration(defaultDebounce)
	}

	if time.Duration(c.Timeout) <= 0 {
		c.Timeout = models.Duration(defaultTimeout)
	}
}

type dedupKey struct {
	eventType models.EventType
	nodeID    string
	status    models.Status
}

// Dispatcher owns the event queue. Enqueue may be called from any goroutine;
// a single dispatcher goroutine performs all flushes, so deliveries are
// strictly sequential. The configuration is hot-reloadable through
// UpdateConfig; each delivery snapshots it once.
type Dispatcher struct {
	client *http.Client
	logger logger.Logger

	mu       sync.Mutex // guards cfg, queue and lastSeen
	cfg      Config
	queue    []*models.WebhookEvent
	lastSeen map[dedupKey]time.Time

	kick      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewDispatcher creates and starts a dispatcher. Per-attempt timeouts come
// from the config snapshot, so the client itself carries none.
func NewDispatcher(cfg Config, log logger.Logger) *Dispatcher {
	cfg.normalize()

	d := &Dispatcher{
		cfg:      cfg,
		client:   &http.Client{},
		logger:   log,
		lastSeen: make(map[dedupKey]time.Time),
		kick:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}

	d.wg.Add(1)
	go d.run()

	return d
}

// UpdateConfig swaps the delivery configuration at runtime. Events already
// queued deliver with the new endpoint and secret.
func (d *Dispatcher) UpdateConfig(cfg Config) {
	cfg.normalize()

	d.mu.Lock()
	d.cfg = cfg
	d.mu.Unlock()

	d.logger.Info().Str("url", cfg.URL).Bool("enabled", cfg.Enabled).Msg("Webhook configuration updated")
}

// config returns a copy of the current configuration.
func (d *Dispatcher) config() Config {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.cfg
}

// Stop terminates the dispatcher goroutine. Queued events are abandoned;
// delivery is best-effort by design.
func (d *Dispatcher) Stop() {
	d.closeOnce.Do(func() { close(d.done) })
	d.wg.Wait()
}

// Enqueue queues an event for debounced delivery. Identical (type, node,
// status) tuples observed within the dedup window are dropped silently.
func (d *Dispatcher) Enqueue(event *models.WebhookEvent) {
	now := time.Now()
	key := dedupKey{eventType: event.Type, nodeID: event.NodeID, status: event.NewStatus}

	d.mu.Lock()

	if !d.cfg.Enabled || d.cfg.URL == "" {
		d.mu.Unlock()
		return
	}

	if last, ok := d.lastSeen[key]; ok && now.Sub(last) < time.Duration(d.cfg.DedupWindow) {
		d.mu.Unlock()
		d.logger.Debug().
			Str("event_type", string(event.Type)).
			Str("node_id", event.NodeID).
			Msg("Duplicate event suppressed")

		return
	}

	d.lastSeen[key] = now
	d.pruneLocked(now)
	d.queue = append(d.queue, event)
	d.mu.Unlock()

	select {
	case d.kick <- struct{}{}:
	default:
	}
}

// SendNow delivers immediately, bypassing dedup and debounce. Used for
// synthetic test events.
func (d *Dispatcher) SendNow(ctx context.Context, event *models.WebhookEvent) error {
	cfg := d.config()

	if cfg.URL == "" {
		return errWebhookURLNotSet
	}

	return d.deliver(ctx, event, cfg)
}

// run is the dispatcher loop: every arrival restarts the debounce timer and
// the queue is flushed only once no event has arrived within the window.
func (d *Dispatcher) run() {
	defer d.wg.Done()

	var flushC <-chan time.Time

	for {
		select {
		case <-d.done:
			return
		case <-d.kick:
			flushC = time.After(time.Duration(d.config().Debounce))
		case <-flushC:
			flushC = nil

			d.flush()
		}
	}
}

func (d *Dispatcher) flush() {
	d.mu.Lock()
	batch := d.queue
	d.queue = nil
	cfg := d.cfg
	d.mu.Unlock()

	for _, event := range batch {
		select {
		case <-d.done:
			return
		default:
		}

		if err := d.deliver(context.Background(), event, cfg); err != nil {
			d.logger.Error().
				Err(err).
				Str("event_type", string(event.Type)).
				Str("node_id", event.NodeID).
				Msg("Webhook event dropped")
		}
	}
}

// deliver attempts sequential delivery with exponential backoff and marks
// the event dropped after the attempt budget is spent.
func (d *Dispatcher) deliver(ctx context.Context, event *models.WebhookEvent, cfg Config) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	backoff := time.Duration(cfg.InitialBackoff)

	var lastErr error

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-d.done:
				return errDispatcherStopped
			case <-time.After(backoff):
			}

			backoff *= 2
		}

		if lastErr = d.post(ctx, event, body, cfg); lastErr == nil {
			d.logger.Debug().
				Str("event_type", string(event.Type)).
				Int("attempt", attempt).
				Msg("Webhook delivered")

			return nil
		}

		d.logger.Warn().
			Err(lastErr).
			Str("event_type", string(event.Type)).
			Int("attempt", attempt).
			Msg("Webhook delivery attempt failed")
	}

	return fmt.Errorf("%w after %d attempts: %w", errDeliveryFailed, cfg.MaxAttempts, lastErr)
}

func (d *Dispatcher) post(ctx context.Context, event *models.WebhookEvent, body []byte, cfg Config) error {
	attemptCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.Timeout))
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, cfg.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(eventTypeHeader, string(event.Type))

	if cfg.Secret != "" {
		req.Header.Set(signatureHeader, Sign(body, cfg.Secret))
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}

	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("%w: status %d", errDeliveryFailed, resp.StatusCode)
	}

	return nil
}

// pruneLocked discards dedup entries older than the window. Caller holds mu.
func (d *Dispatcher) pruneLocked(now time.Time) {
	window := time.Duration(d.cfg.DedupWindow)

	for key, seen := range d.lastSeen {
		if now.Sub(seen) >= window {
			delete(d.lastSeen, key)
		}
	}
}

// Sign computes the hex HMAC-SHA256 of body with the shared secret.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)

	return hex.EncodeToString(mac.Sum(nil))
}
