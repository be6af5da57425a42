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
	"time"

	"github.com/uptrail/uptrail/pkg/alerts"
	"github.com/uptrail/uptrail/pkg/logger"
	"github.com/uptrail/uptrail/pkg/models"
	"github.com/uptrail/uptrail/pkg/probe"
)

const (
	minPollInterval        = 10 * time.Second
	defaultPollInterval    = 60 * time.Second
	defaultConcurrency     = 10
	defaultStaleTimeout    = 120 * time.Second
	defaultSweepInterval   = 30 * time.Second
	defaultCleanupInterval = time.Hour
	defaultStabilityWindow = 20 * time.Second
	defaultRetentionDays   = 30
	defaultConnectTimeout  = 3 * time.Second
	defaultListenAddr      = ":8090"
)

var defaultInternetTargets = []string{"1.1.1.1:53", "8.8.8.8:53", "9.9.9.9:53"}

// Config is the runtime configuration of the engine. It is hot-reloadable
// through Engine.UpdateConfig; an interval change restarts the scheduler.
type Config struct {
	ListenAddr           string                 `json:"listen_addr"`
	PollInterval         models.Duration        `json:"poll_interval"`
	Concurrency          int                    `json:"concurrency"`
	StaleTimeout         models.Duration        `json:"stale_timeout"`
	SweepInterval        models.Duration        `json:"sweep_interval"`
	CleanupInterval      models.Duration        `json:"cleanup_interval"`
	StabilityWindow      models.Duration        `json:"stability_window"`
	HistoryRetentionDays int                    `json:"history_retention_days"`
	HistoryEnabled       *bool                  `json:"history_enabled,omitempty"`
	InternetCheckTargets []string               `json:"internet_check_targets,omitempty"`
	ISPLookupURL         string                 `json:"isp_lookup_url,omitempty"`
	ISPCacheTTL          models.Duration        `json:"isp_cache_ttl,omitempty"`
	Probe                probe.Config           `json:"probe"`
	Webhook              alerts.Config          `json:"webhook"`
	Logging              *logger.Config         `json:"logging,omitempty"`
	Database             *models.DatabaseConfig `json:"database,omitempty"`
}

// Validate implements config.Validator. It applies defaults and enforces the
// poll interval floor; anything invalid is rejected here, before the
// scheduler ever sees it.
func (c *Config) Validate() error {
	if time.Duration(c.PollInterval) == 0 {
		c.PollInterval = models.Duration(defaultPollInterval)
	}

	if time.Duration(c.PollInterval) < minPollInterval {
		return errIntervalTooShort
	}

	if c.Concurrency <= 0 {
		c.Concurrency = defaultConcurrency
	}

	if time.Duration(c.StaleTimeout) <= 0 {
		c.StaleTimeout = models.Duration(defaultStaleTimeout)
	}

	if time.Duration(c.SweepInterval) <= 0 {
		c.SweepInterval = models.Duration(defaultSweepInterval)
	}

	if time.Duration(c.CleanupInterval) <= 0 {
		c.CleanupInterval = models.Duration(defaultCleanupInterval)
	}

	if time.Duration(c.StabilityWindow) <= 0 {
		c.StabilityWindow = models.Duration(defaultStabilityWindow)
	}

	if c.HistoryRetentionDays <= 0 {
		c.HistoryRetentionDays = defaultRetentionDays
	}

	if len(c.InternetCheckTargets) == 0 {
		c.InternetCheckTargets = defaultInternetTargets
	}

	if c.ListenAddr == "" {
		c.ListenAddr = defaultListenAddr
	}

	return nil
}

// historyOn reports whether history collection is enabled (default true).
func (c *Config) historyOn() bool {
	return c.HistoryEnabled == nil || *c.HistoryEnabled
}
