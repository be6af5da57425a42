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
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uptrail/uptrail/pkg/logger"
	"github.com/uptrail/uptrail/pkg/models"
)

// startedEngine runs Start in a goroutine and returns a poll-notification
// channel that receives once per executed cycle.
func startedEngine(t *testing.T) (*Engine, *fakeClock, chan struct{}) {
	t.Helper()

	polled := make(chan struct{}, 16)

	database := &fakeDB{
		listForPollingFn: func(context.Context) ([]*models.Node, error) {
			polled <- struct{}{}
			return nil, nil
		},
	}

	clock := newFakeClock()

	eng, err := New(&Config{}, database, &fakeProber{}, &fakeAlerter{}, &fakeBroadcaster{},
		nil, clock, logger.NewTestLogger())
	require.NoError(t, err)

	go func() {
		_ = eng.Start(context.Background())
	}()

	t.Cleanup(func() { _ = eng.Stop(context.Background()) })

	return eng, clock, polled
}

func waitForPoll(t *testing.T, polled chan struct{}) {
	t.Helper()

	select {
	case <-polled:
	case <-time.After(2 * time.Second):
		t.Fatal("expected a cycle to run")
	}
}

func TestStartRunsInitialCycle(t *testing.T) {
	_, _, polled := startedEngine(t)

	waitForPoll(t, polled)
}

func TestStartTickTriggersCycle(t *testing.T) {
	_, clock, polled := startedEngine(t)

	waitForPoll(t, polled)

	// Ticker order: cycle, sweep, cleanup.
	cycleTicker := clock.waitForTicker(t, 1)
	cycleTicker.fire()

	waitForPoll(t, polled)
}

func TestRestartSwapsCycleTicker(t *testing.T) {
	eng, clock, polled := startedEngine(t)

	waitForPoll(t, polled)
	clock.waitForTicker(t, 3)

	eng.Restart(30 * time.Second)

	replacement := clock.waitForTicker(t, 4)
	assert.Equal(t, 30*time.Second, replacement.interval)

	replacement.fire()
	waitForPoll(t, polled)
}

func TestRestartAfterStopIsNoOp(t *testing.T) {
	eng, _, _ := testEngine(t, nil, &fakeDB{}, &fakeProber{})

	require.NoError(t, eng.Stop(context.Background()))

	// Must not block or panic.
	eng.Restart(time.Minute)
}

func TestStopIsIdempotent(t *testing.T) {
	eng, _, polled := startedEngine(t)

	waitForPoll(t, polled)

	require.NoError(t, eng.Stop(context.Background()))
	require.NoError(t, eng.Stop(context.Background()))
}

func TestStartStopsOnContextCancel(t *testing.T) {
	database := &fakeDB{}

	eng, err := New(&Config{}, database, &fakeProber{}, nil, nil, nil,
		newFakeClock(), logger.NewTestLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)

	go func() { done <- eng.Start(ctx) }()

	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after cancel")
	}
}
