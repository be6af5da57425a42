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

package probe

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/uptrail/uptrail/pkg/logger"
	"github.com/uptrail/uptrail/pkg/models"
)

const (
	defaultTimeout    = 5 * time.Second
	defaultAttempts   = 2
	defaultRetryDelay = 500 * time.Millisecond
)

// Config bounds the behavior of every check.
type Config struct {
	Timeout    models.Duration `json:"timeout,omitempty"`
	Attempts   int             `json:"attempts,omitempty"`
	RetryDelay models.Duration `json:"retry_delay,omitempty"`
}

func (c *Config) normalize() {
	if time.Duration(c.Timeout) <= 0 {
		c.Timeout = models.Duration(defaultTimeout)
	}

	if c.Attempts <= 0 {
		c.Attempts = defaultAttempts
	}

	if time.Duration(c.RetryDelay) <= 0 {
		c.RetryDelay = models.Duration(defaultRetryDelay)
	}
}

// Registry maps each monitoring method to its checker. Selection is a plain
// table lookup; there is no dispatch hierarchy. The retry policy is
// hot-reloadable through UpdateConfig.
type Registry struct {
	mu       sync.RWMutex
	checkers map[models.MonitoringMethod]Checker
	cfg      Config
	logger   logger.Logger
}

// NewRegistry builds the default checker table.
func NewRegistry(cfg Config, log logger.Logger) *Registry {
	cfg.normalize()

	return &Registry{
		checkers: map[models.MonitoringMethod]Checker{
			models.MethodPing: NewICMPChecker(),
			models.MethodSNMP: NewSNMPChecker(time.Duration(cfg.Timeout)),
			models.MethodHTTP: NewHTTPChecker(time.Duration(cfg.Timeout)),
		},
		cfg:    cfg,
		logger: log,
	}
}

// SetChecker overrides the checker for a method. Used to install fakes.
func (r *Registry) SetChecker(method models.MonitoringMethod, c Checker) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.checkers[method] = c
}

// UpdateConfig swaps the retry policy at runtime. Built-in checkers that
// carry the timeout are rebuilt; checkers installed through SetChecker are
// left in place.
func (r *Registry) UpdateConfig(cfg Config) {
	cfg.normalize()

	r.mu.Lock()
	defer r.mu.Unlock()

	r.cfg = cfg

	if _, ok := r.checkers[models.MethodSNMP].(*SNMPChecker); ok {
		r.checkers[models.MethodSNMP] = NewSNMPChecker(time.Duration(cfg.Timeout))
	}

	if _, ok := r.checkers[models.MethodHTTP].(*HTTPChecker); ok {
		r.checkers[models.MethodHTTP] = NewHTTPChecker(time.Duration(cfg.Timeout))
	}
}

// Check runs the configured check for the node with bounded retries and a
// fixed inter-attempt delay. Passive methods return unknown without any
// outbound I/O; missing configuration is unknown with a message, never a
// failure.
func (r *Registry) Check(ctx context.Context, node *models.Node) Result {
	if !node.MonitoringMethod.RequiresPolling() {
		return Result{Status: models.StatusUnknown}
	}

	if msg, ok := r.missingConfig(node); !ok {
		return Result{Status: models.StatusUnknown, Message: msg}
	}

	r.mu.RLock()
	checker, ok := r.checkers[node.MonitoringMethod]
	cfg := r.cfg
	r.mu.RUnlock()

	if !ok {
		return Result{
			Status:  models.StatusUnknown,
			Message: fmt.Sprintf("no checker registered for method %q", node.MonitoringMethod),
		}
	}

	var lastErr error

	for attempt := 0; attempt < cfg.Attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return Result{Status: models.StatusOffline, Message: ctx.Err().Error()}
			case <-time.After(time.Duration(cfg.RetryDelay)):
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.Timeout))
		alive, latency, err := checker.Check(attemptCtx, node)

		cancel()

		if err == nil && alive {
			return Result{Status: models.StatusOnline, LatencyMs: latency}
		}

		lastErr = err

		r.logger.Debug().
			Str("node_id", node.ID).
			Str("method", string(node.MonitoringMethod)).
			Int("attempt", attempt+1).
			Err(err).
			Msg("Check attempt failed")
	}

	res := Result{Status: models.StatusOffline}
	if lastErr != nil {
		res.Message = lastErr.Error()
	}

	return res
}

// missingConfig reports whether the node carries the parameters its method
// needs; the message explains what is absent.
func (*Registry) missingConfig(node *models.Node) (string, bool) {
	switch node.MonitoringMethod {
	case models.MethodPing, models.MethodSNMP:
		if node.Address == "" {
			return "no address configured", false
		}
	case models.MethodHTTP:
		if node.HTTPEndpoint == "" {
			return "no http endpoint configured", false
		}
	}

	return "", true
}
