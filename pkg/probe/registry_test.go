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
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/uptrail/uptrail/pkg/logger"
	"github.com/uptrail/uptrail/pkg/models"
)

type outcome struct {
	alive   bool
	latency int64
	err     error
}

// fakeChecker scripts per-call outcomes; the last one repeats.
type fakeChecker struct {
	calls    int
	outcomes []outcome
}

func (f *fakeChecker) Check(context.Context, *models.Node) (bool, int64, error) {
	idx := f.calls
	if idx >= len(f.outcomes) {
		idx = len(f.outcomes) - 1
	}

	f.calls++
	out := f.outcomes[idx]

	return out.alive, out.latency, out.err
}

func fastRegistry() *Registry {
	return NewRegistry(Config{
		Timeout:    models.Duration(time.Second),
		Attempts:   2,
		RetryDelay: models.Duration(time.Millisecond),
	}, logger.NewTestLogger())
}

func TestCheckPassiveMethodsReturnUnknown(t *testing.T) {
	r := fastRegistry()

	for _, method := range []models.MonitoringMethod{models.MethodNone, models.MethodHeartbeat} {
		res := r.Check(context.Background(), &models.Node{ID: "n", MonitoringMethod: method})
		assert.Equal(t, models.StatusUnknown, res.Status)
		assert.Empty(t, res.Message)
	}
}

func TestCheckMissingConfiguration(t *testing.T) {
	r := fastRegistry()

	res := r.Check(context.Background(), &models.Node{ID: "n", MonitoringMethod: models.MethodPing})
	assert.Equal(t, models.StatusUnknown, res.Status)
	assert.Equal(t, "no address configured", res.Message)

	res = r.Check(context.Background(), &models.Node{ID: "n", MonitoringMethod: models.MethodHTTP})
	assert.Equal(t, models.StatusUnknown, res.Status)
	assert.Equal(t, "no http endpoint configured", res.Message)
}

func TestCheckSuccessFirstAttempt(t *testing.T) {
	r := fastRegistry()

	checker := &fakeChecker{outcomes: []outcome{{alive: true, latency: 17}}}
	r.SetChecker(models.MethodPing, checker)

	res := r.Check(context.Background(), &models.Node{
		ID: "n", MonitoringMethod: models.MethodPing, Address: "10.0.0.1",
	})

	assert.Equal(t, models.StatusOnline, res.Status)
	assert.Equal(t, int64(17), res.LatencyMs)
	assert.Equal(t, 1, checker.calls)
}

func TestCheckRetriesThenSucceeds(t *testing.T) {
	r := fastRegistry()

	checker := &fakeChecker{outcomes: []outcome{
		{err: errors.New("icmp timeout")},
		{alive: true, latency: 30},
	}}
	r.SetChecker(models.MethodPing, checker)

	res := r.Check(context.Background(), &models.Node{
		ID: "n", MonitoringMethod: models.MethodPing, Address: "10.0.0.1",
	})

	assert.Equal(t, models.StatusOnline, res.Status)
	assert.Equal(t, 2, checker.calls)
}

func TestCheckAllAttemptsFailIsOffline(t *testing.T) {
	r := fastRegistry()

	checker := &fakeChecker{outcomes: []outcome{{err: errors.New("icmp timeout")}}}
	r.SetChecker(models.MethodPing, checker)

	res := r.Check(context.Background(), &models.Node{
		ID: "n", MonitoringMethod: models.MethodPing, Address: "10.0.0.1",
	})

	assert.Equal(t, models.StatusOffline, res.Status)
	assert.Equal(t, "icmp timeout", res.Message)
	assert.Equal(t, 2, checker.calls)
}

func TestUpdateConfigChangesRetryBudget(t *testing.T) {
	r := fastRegistry()

	checker := &fakeChecker{outcomes: []outcome{{err: errors.New("icmp timeout")}}}
	r.SetChecker(models.MethodPing, checker)

	r.UpdateConfig(Config{
		Timeout:    models.Duration(time.Second),
		Attempts:   4,
		RetryDelay: models.Duration(time.Millisecond),
	})

	res := r.Check(context.Background(), &models.Node{
		ID: "n", MonitoringMethod: models.MethodPing, Address: "10.0.0.1",
	})

	// The new attempt budget applies and the installed checker survives the
	// reconfiguration; only built-in checkers are rebuilt.
	assert.Equal(t, models.StatusOffline, res.Status)
	assert.Equal(t, 4, checker.calls)
}

func TestUpdateConfigRebuildsBuiltinCheckers(t *testing.T) {
	r := fastRegistry()

	r.UpdateConfig(Config{Timeout: models.Duration(7 * time.Second)})

	snmp, ok := r.checkers[models.MethodSNMP].(*SNMPChecker)
	assert.True(t, ok)
	assert.Equal(t, 7*time.Second, snmp.timeout)
}

func TestCheckNotAliveWithoutError(t *testing.T) {
	r := fastRegistry()

	checker := &fakeChecker{outcomes: []outcome{{}}}
	r.SetChecker(models.MethodHTTP, checker)

	res := r.Check(context.Background(), &models.Node{
		ID: "n", MonitoringMethod: models.MethodHTTP, HTTPEndpoint: "http://10.0.0.1/health",
	})

	assert.Equal(t, models.StatusOffline, res.Status)
	assert.Empty(t, res.Message)
}
