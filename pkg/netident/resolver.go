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

// Package netident resolves the external identity (public IP, ISP, org) of
// the active uplink and caches it with a TTL.
package netident

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/uptrail/uptrail/pkg/logger"
	"github.com/uptrail/uptrail/pkg/models"
)

const (
	defaultLookupURL = "http://ip-api.com/json"
	defaultTTL       = 60 * time.Second
	requestTimeout   = 10 * time.Second
	maxResponseBytes = 1 << 20
)

// Resolver fetches and caches ISP information. The cache is owned by the
// instance and lives for the process lifetime only.
type Resolver struct {
	url    string
	ttl    time.Duration
	client *http.Client
	logger logger.Logger

	mu      sync.Mutex
	cached  *models.ISPInfo
	fetched time.Time
}

// NewResolver creates a resolver against the given lookup endpoint. Empty
// arguments select the defaults.
func NewResolver(url string, ttl time.Duration, log logger.Logger) *Resolver {
	if url == "" {
		url = defaultLookupURL
	}

	if ttl <= 0 {
		ttl = defaultTTL
	}

	return &Resolver{
		url:    url,
		ttl:    ttl,
		client: &http.Client{Timeout: requestTimeout},
		logger: log,
	}
}

// lookupResponse matches the ip-api.com JSON shape.
type lookupResponse struct {
	Status  string `json:"status"`
	Query   string `json:"query"`
	ISP     string `json:"isp"`
	Org     string `json:"org"`
	AS      string `json:"as"`
	City    string `json:"city"`
	Country string `json:"country"`
	Message string `json:"message"`
}

// Resolve returns the cached identity when it is still fresh, otherwise
// fetches a new one. force bypasses the TTL.
func (r *Resolver) Resolve(ctx context.Context, force bool) (*models.ISPInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !force && r.cached != nil && time.Since(r.fetched) < r.ttl {
		return r.cached, nil
	}

	info, err := r.fetch(ctx)
	if err != nil {
		// Serve a stale entry rather than nothing when the lookup fails.
		if r.cached != nil {
			r.logger.Warn().Err(err).Msg("ISP lookup failed, serving cached identity")
			return r.cached, nil
		}

		return nil, err
	}

	r.cached = info
	r.fetched = time.Now()

	r.logger.Debug().
		Str("public_ip", info.PublicIP).
		Str("isp", info.ISP).
		Msg("Resolved external identity")

	return info, nil
}

func (r *Resolver) fetch(ctx context.Context) (*models.ISPInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("invalid lookup url: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("isp lookup failed: %w", err)
	}

	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("isp lookup returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read lookup response: %w", err)
	}

	var lr lookupResponse

	if err := json.Unmarshal(body, &lr); err != nil {
		return nil, fmt.Errorf("failed to decode lookup response: %w", err)
	}

	if lr.Status != "" && lr.Status != "success" {
		return nil, fmt.Errorf("isp lookup rejected: %s", lr.Message)
	}

	return &models.ISPInfo{
		PublicIP: lr.Query,
		ISP:      lr.ISP,
		Org:      lr.Org,
		ASNumber: lr.AS,
		City:     lr.City,
		Country:  lr.Country,
	}, nil
}
