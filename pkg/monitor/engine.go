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

package monitor

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/uptrail/uptrail/pkg/alerts"
	"github.com/uptrail/uptrail/pkg/db"
	"github.com/uptrail/uptrail/pkg/logger"
	"github.com/uptrail/uptrail/pkg/models"
	"github.com/uptrail/uptrail/pkg/probe"
)

// stabilityTrack follows one internet-source node's status stream for the
// stability gate. notified is true once an alert was emitted for the current
// settled status (and for the initial baseline, which is never alerted).
type stabilityTrack struct {
	status   models.Status
	since    time.Time
	notified bool
}

// Engine drives the monitoring cycles and owns all periodic timers. No two
// cycles ever execute concurrently; the in-flight guard skips overlapping
// ticks instead of queueing them.
type Engine struct {
	db          db.Service
	prober      probe.Dispatcher
	alerter     AlertSender
	broadcaster Broadcaster
	resolver    IdentityResolver
	clock       Clock
	logger      logger.Logger

	mu  sync.RWMutex // guards cfg and the tracking maps below
	cfg Config

	stability     map[string]*stabilityTrack
	groupRatios   map[string]float64
	lastISPNodeID string

	inFlight  atomic.Bool
	reloadCh  chan time.Duration
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// New creates an engine. A nil clock selects the real clock.
func New(
	cfg *Config,
	database db.Service,
	prober probe.Dispatcher,
	alerter AlertSender,
	broadcaster Broadcaster,
	resolver IdentityResolver,
	clock Clock,
	log logger.Logger) (*Engine, error) {
	if cfg == nil {
		return nil, errConfigRequired
	}

	if database == nil {
		return nil, errRepositoryRequired
	}

	if prober == nil {
		return nil, errProberRequired
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if clock == nil {
		clock = realClock{}
	}

	return &Engine{
		db:          database,
		prober:      prober,
		alerter:     alerter,
		broadcaster: broadcaster,
		resolver:    resolver,
		clock:       clock,
		logger:      log,
		cfg:         *cfg,
		stability:   make(map[string]*stabilityTrack),
		groupRatios: make(map[string]float64),
		reloadCh:    make(chan time.Duration, 1),
		done:        make(chan struct{}),
	}, nil
}

// UpdateConfig applies updated configuration at runtime. Invalid
// configuration is rejected without touching the running engine; a poll
// interval change restarts the scheduler ticker.
func (e *Engine) UpdateConfig(cfg *Config) error {
	if cfg == nil {
		return nil
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	e.mu.Lock()
	intervalChanged := cfg.PollInterval != e.cfg.PollInterval
	e.cfg = *cfg
	e.mu.Unlock()

	// Collaborators that support runtime reconfiguration pick up their
	// sections of the new config; the rest keep their construction-time one.
	if u, ok := e.alerter.(interface{ UpdateConfig(alerts.Config) }); ok {
		u.UpdateConfig(cfg.Webhook)
	}

	if u, ok := e.prober.(interface{ UpdateConfig(probe.Config) }); ok {
		u.UpdateConfig(cfg.Probe)
	}

	if intervalChanged {
		e.Restart(time.Duration(cfg.PollInterval))
	}

	e.logger.Info().
		Dur("poll_interval", time.Duration(cfg.PollInterval)).
		Bool("interval_changed", intervalChanged).
		Msg("Engine configuration updated")

	return nil
}

// snapshotConfig returns a copy of the current configuration.
func (e *Engine) snapshotConfig() Config {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.cfg
}
