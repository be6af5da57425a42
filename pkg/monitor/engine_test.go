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
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uptrail/uptrail/pkg/alerts"
	"github.com/uptrail/uptrail/pkg/logger"
	"github.com/uptrail/uptrail/pkg/models"
	"github.com/uptrail/uptrail/pkg/probe"
)

// fakeDB implements db.Service with overridable function fields. Nil fields
// behave as successful no-ops.
type fakeDB struct {
	mu sync.Mutex

	listNodesFn       func(ctx context.Context) ([]*models.Node, error)
	listForPollingFn  func(ctx context.Context) ([]*models.Node, error)
	getNodeFn         func(ctx context.Context, id string) (*models.Node, error)
	commitCycleFn     func(ctx context.Context, updates []*models.NodeStatusUpdate, history []*models.StatusHistoryRecord) error
	updateInternetFn  func(ctx context.Context, nodeID string, status models.Status, checkedAt time.Time) error
	listConnectionsFn func(ctx context.Context) ([]*models.Connection, error)
	setActiveSourceFn func(ctx context.Context, targetID, connectionID string) error
	listGroupsFn      func(ctx context.Context) ([]*models.Group, error)
	purgeFn           func(ctx context.Context, cutoff time.Time) (int64, error)

	committedUpdates [][]*models.NodeStatusUpdate
	committedHistory [][]*models.StatusHistoryRecord
	activeCalls      [][2]string
}

func (f *fakeDB) Close() error { return nil }

func (f *fakeDB) ListNodes(ctx context.Context) ([]*models.Node, error) {
	if f.listNodesFn != nil {
		return f.listNodesFn(ctx)
	}

	return nil, nil
}

func (f *fakeDB) ListNodesForPolling(ctx context.Context) ([]*models.Node, error) {
	if f.listForPollingFn != nil {
		return f.listForPollingFn(ctx)
	}

	return nil, nil
}

func (f *fakeDB) GetNode(ctx context.Context, id string) (*models.Node, error) {
	if f.getNodeFn != nil {
		return f.getNodeFn(ctx, id)
	}

	return nil, nil
}

func (f *fakeDB) CommitCycle(
	ctx context.Context, updates []*models.NodeStatusUpdate, history []*models.StatusHistoryRecord) error {
	f.mu.Lock()
	f.committedUpdates = append(f.committedUpdates, updates)
	f.committedHistory = append(f.committedHistory, history)
	f.mu.Unlock()

	if f.commitCycleFn != nil {
		return f.commitCycleFn(ctx, updates, history)
	}

	return nil
}

func (f *fakeDB) UpdateNodeInternetStatus(
	ctx context.Context, nodeID string, status models.Status, checkedAt time.Time) error {
	if f.updateInternetFn != nil {
		return f.updateInternetFn(ctx, nodeID, status, checkedAt)
	}

	return nil
}

func (f *fakeDB) ListInternetSourceConnections(ctx context.Context) ([]*models.Connection, error) {
	if f.listConnectionsFn != nil {
		return f.listConnectionsFn(ctx)
	}

	return nil, nil
}

func (f *fakeDB) SetActiveSource(ctx context.Context, targetID, connectionID string) error {
	f.mu.Lock()
	f.activeCalls = append(f.activeCalls, [2]string{targetID, connectionID})
	f.mu.Unlock()

	if f.setActiveSourceFn != nil {
		return f.setActiveSourceFn(ctx, targetID, connectionID)
	}

	return nil
}

func (f *fakeDB) ListGroups(ctx context.Context) ([]*models.Group, error) {
	if f.listGroupsFn != nil {
		return f.listGroupsFn(ctx)
	}

	return nil, nil
}

func (f *fakeDB) PurgeHistoryBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	if f.purgeFn != nil {
		return f.purgeFn(ctx, cutoff)
	}

	return 0, nil
}

// fakeProber returns canned results keyed by node ID.
type fakeProber struct {
	mu      sync.Mutex
	results map[string]probe.Result
	checkFn func(ctx context.Context, node *models.Node) probe.Result
	calls   int
}

func (f *fakeProber) Check(ctx context.Context, node *models.Node) probe.Result {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	if f.checkFn != nil {
		return f.checkFn(ctx, node)
	}

	if res, ok := f.results[node.ID]; ok {
		return res
	}

	return probe.Result{Status: models.StatusUnknown}
}

func (f *fakeProber) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.calls
}

// reconfigurableProber also records pushed config updates, mirroring the
// registry's runtime reconfiguration surface.
type reconfigurableProber struct {
	fakeProber

	cfgMu   sync.Mutex
	configs []probe.Config
}

func (f *reconfigurableProber) UpdateConfig(cfg probe.Config) {
	f.cfgMu.Lock()
	defer f.cfgMu.Unlock()

	f.configs = append(f.configs, cfg)
}

func (f *reconfigurableProber) pushedConfigs() []probe.Config {
	f.cfgMu.Lock()
	defer f.cfgMu.Unlock()

	out := make([]probe.Config, len(f.configs))
	copy(out, f.configs)

	return out
}

// fakeAlerter records enqueued events.
type fakeAlerter struct {
	mu     sync.Mutex
	events []*models.WebhookEvent
}

func (f *fakeAlerter) Enqueue(event *models.WebhookEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.events = append(f.events, event)
}

func (f *fakeAlerter) captured() []*models.WebhookEvent {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]*models.WebhookEvent, len(f.events))
	copy(out, f.events)

	return out
}

// reconfigurableAlerter also records pushed config updates.
type reconfigurableAlerter struct {
	fakeAlerter

	cfgMu   sync.Mutex
	configs []alerts.Config
}

func (f *reconfigurableAlerter) UpdateConfig(cfg alerts.Config) {
	f.cfgMu.Lock()
	defer f.cfgMu.Unlock()

	f.configs = append(f.configs, cfg)
}

func (f *reconfigurableAlerter) pushedConfigs() []alerts.Config {
	f.cfgMu.Lock()
	defer f.cfgMu.Unlock()

	out := make([]alerts.Config, len(f.configs))
	copy(out, f.configs)

	return out
}

// fakeBroadcaster records queued and immediate broadcasts.
type fakeBroadcaster struct {
	mu        sync.Mutex
	queued    []*models.NodeStatusPayload
	immediate []models.BroadcastType
}

func (f *fakeBroadcaster) QueueNodeUpdate(payload *models.NodeStatusPayload) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.queued = append(f.queued, payload)
}

func (f *fakeBroadcaster) SendImmediate(msgType models.BroadcastType, _ any) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.immediate = append(f.immediate, msgType)
}

func (f *fakeBroadcaster) immediateTypes() []models.BroadcastType {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]models.BroadcastType, len(f.immediate))
	copy(out, f.immediate)

	return out
}

// fakeClock is a settable clock whose tickers fire only when the test says so.
type fakeClock struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*fakeTicker
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
}

func (c *fakeClock) Ticker(d time.Duration) Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := &fakeTicker{interval: d, ch: make(chan time.Time, 1)}
	c.tickers = append(c.tickers, t)

	return t
}

// waitForTicker blocks until the clock has created at least n tickers and
// returns the n-th one.
func (c *fakeClock) waitForTicker(t *testing.T, n int) *fakeTicker {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)

	for time.Now().Before(deadline) {
		c.mu.Lock()
		if len(c.tickers) >= n {
			ticker := c.tickers[n-1]
			c.mu.Unlock()

			return ticker
		}
		c.mu.Unlock()

		time.Sleep(time.Millisecond)
	}

	t.Fatalf("ticker %d was never created", n)

	return nil
}

type fakeTicker struct {
	interval time.Duration
	ch       chan time.Time
}

func (t *fakeTicker) Chan() <-chan time.Time { return t.ch }
func (t *fakeTicker) Stop()                  {}

func (t *fakeTicker) fire() {
	t.ch <- time.Time{}
}

func testEngine(t *testing.T, cfg *Config, database *fakeDB, prober *fakeProber) (
	*Engine, *fakeAlerter, *fakeBroadcaster) {
	t.Helper()

	if cfg == nil {
		cfg = &Config{}
	}

	alerter := &fakeAlerter{}
	broadcaster := &fakeBroadcaster{}

	eng, err := New(cfg, database, prober, alerter, broadcaster, nil, newFakeClock(), logger.NewTestLogger())
	require.NoError(t, err)

	return eng, alerter, broadcaster
}

func TestNewValidatesDependencies(t *testing.T) {
	log := logger.NewTestLogger()

	_, err := New(nil, &fakeDB{}, &fakeProber{}, nil, nil, nil, nil, log)
	assert.ErrorIs(t, err, errConfigRequired)

	_, err = New(&Config{}, nil, &fakeProber{}, nil, nil, nil, nil, log)
	assert.ErrorIs(t, err, errRepositoryRequired)

	_, err = New(&Config{}, &fakeDB{}, nil, nil, nil, nil, nil, log)
	assert.ErrorIs(t, err, errProberRequired)
}

func TestUpdateConfigRejectsInvalid(t *testing.T) {
	eng, _, _ := testEngine(t, nil, &fakeDB{}, &fakeProber{})

	bad := &Config{PollInterval: models.Duration(time.Second)}
	err := eng.UpdateConfig(bad)
	assert.ErrorIs(t, err, errIntervalTooShort)

	// The running configuration is untouched.
	assert.Equal(t, defaultPollInterval, time.Duration(eng.snapshotConfig().PollInterval))
}

func TestUpdateConfigAppliesNewInterval(t *testing.T) {
	eng, _, _ := testEngine(t, nil, &fakeDB{}, &fakeProber{})

	next := &Config{PollInterval: models.Duration(30 * time.Second)}
	require.NoError(t, eng.UpdateConfig(next))

	assert.Equal(t, 30*time.Second, time.Duration(eng.snapshotConfig().PollInterval))

	// The interval change queues a ticker reload.
	select {
	case interval := <-eng.reloadCh:
		assert.Equal(t, 30*time.Second, interval)
	default:
		t.Fatal("expected a queued ticker reload")
	}
}

func TestUpdateConfigPropagatesToCollaborators(t *testing.T) {
	alerter := &reconfigurableAlerter{}
	prober := &reconfigurableProber{}

	eng, err := New(&Config{}, &fakeDB{}, prober, alerter, &fakeBroadcaster{}, nil,
		newFakeClock(), logger.NewTestLogger())
	require.NoError(t, err)

	next := &Config{
		Webhook: alerts.Config{Enabled: true, URL: "https://hooks.example.com/v2", Secret: "s2"},
		Probe:   probe.Config{Attempts: 5},
	}
	require.NoError(t, eng.UpdateConfig(next))

	webhooks := alerter.pushedConfigs()
	require.Len(t, webhooks, 1)
	assert.Equal(t, "https://hooks.example.com/v2", webhooks[0].URL)
	assert.Equal(t, "s2", webhooks[0].Secret)

	probes := prober.pushedConfigs()
	require.Len(t, probes, 1)
	assert.Equal(t, 5, probes[0].Attempts)
}

func TestUpdateConfigSkipsCollaboratorsWithoutSupport(t *testing.T) {
	// Plain fakes carry no UpdateConfig; the engine must not require one.
	eng, _, _ := testEngine(t, nil, &fakeDB{}, &fakeProber{})

	require.NoError(t, eng.UpdateConfig(&Config{
		Webhook: alerts.Config{Enabled: true, URL: "https://hooks.example.com"},
	}))
}
