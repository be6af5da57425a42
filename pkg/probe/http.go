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
	"io"
	"net/http"
	"time"

	"github.com/uptrail/uptrail/pkg/models"
)

// HTTPChecker performs a GET against the node's endpoint and compares the
// response code with the expected one (any non-error code when unset).
type HTTPChecker struct {
	client *http.Client
}

func NewHTTPChecker(timeout time.Duration) *HTTPChecker {
	return &HTTPChecker{
		client: &http.Client{Timeout: timeout},
	}
}

func (c *HTTPChecker) Check(ctx context.Context, node *models.Node) (bool, int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, node.HTTPEndpoint, http.NoBody)
	if err != nil {
		return false, 0, fmt.Errorf("invalid http endpoint %q: %w", node.HTTPEndpoint, err)
	}

	start := time.Now()

	resp, err := c.client.Do(req)
	if err != nil {
		return false, 0, fmt.Errorf("http check failed: %w", err)
	}

	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	latency := time.Since(start).Milliseconds()

	if node.HTTPExpectedStatus > 0 {
		if resp.StatusCode != node.HTTPExpectedStatus {
			return false, latency, fmt.Errorf("unexpected status %d, want %d", resp.StatusCode, node.HTTPExpectedStatus)
		}

		return true, latency, nil
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return false, latency, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	return true, latency, nil
}
