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
	"time"
)

// Start runs the scheduler until the context is canceled or Stop is called.
// It owns the cycle ticker, the stale-heartbeat sweep ticker and the history
// cleanup ticker.
func (e *Engine) Start(ctx context.Context) error {
	cfg := e.snapshotConfig()

	ticker := e.clock.Ticker(time.Duration(cfg.PollInterval))
	defer ticker.Stop()

	sweepTicker := e.clock.Ticker(time.Duration(cfg.SweepInterval))
	defer sweepTicker.Stop()

	cleanupTicker := e.clock.Ticker(time.Duration(cfg.CleanupInterval))
	defer cleanupTicker.Stop()

	e.logger.Info().
		Dur("interval", time.Duration(cfg.PollInterval)).
		Int("concurrency", cfg.Concurrency).
		Msg("Starting monitoring engine")

	e.wg.Add(1)
	defer e.wg.Done()

	if err := e.RunOnce(ctx); err != nil {
		e.logger.Error().Err(err).Msg("Error during initial cycle")
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-e.done:
			return nil
		case <-ticker.Chan():
			e.wg.Add(1)

			go func() {
				defer e.wg.Done()

				if err := e.RunOnce(ctx); err != nil {
					e.logger.Error().Err(err).Msg("Error during cycle")
				}
			}()
		case <-sweepTicker.Chan():
			e.sweepStaleHeartbeats(ctx)
		case <-cleanupTicker.Chan():
			e.purgeHistory(ctx)
		case newInterval := <-e.reloadCh:
			ticker.Stop()
			ticker = e.clock.Ticker(newInterval)
			e.logger.Info().Dur("interval", newInterval).Msg("Poll interval hot-reloaded")
		}
	}
}

// Stop cancels pending timers and waits for an in-flight cycle to finish.
// There is no hard kill of a running probe batch.
func (e *Engine) Stop(_ context.Context) error {
	e.closeOnce.Do(func() { close(e.done) })
	e.wg.Wait()

	return nil
}

// Restart swaps the cycle ticker to the new interval. Non-blocking: a stale
// queued reload is replaced by the latest value.
func (e *Engine) Restart(interval time.Duration) {
	select {
	case <-e.done:
		return
	default:
	}

	select {
	case <-e.reloadCh:
	default:
	}

	select {
	case e.reloadCh <- interval:
	default:
	}
}

// RunOnce executes a single cycle, honoring the re-entrancy guard: when a
// cycle is already executing the call is skipped, never queued.
func (e *Engine) RunOnce(ctx context.Context) error {
	if !e.inFlight.CompareAndSwap(false, true) {
		e.logger.Warn().Msg("Previous cycle still running, tick skipped")
		return ErrCycleInFlight
	}

	defer e.inFlight.Store(false)

	return e.runCycle(ctx)
}
