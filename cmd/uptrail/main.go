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

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/uptrail/uptrail/pkg/alerts"
	"github.com/uptrail/uptrail/pkg/config"
	"github.com/uptrail/uptrail/pkg/db"
	"github.com/uptrail/uptrail/pkg/lifecycle"
	"github.com/uptrail/uptrail/pkg/monitor"
	"github.com/uptrail/uptrail/pkg/netident"
	"github.com/uptrail/uptrail/pkg/probe"
	"github.com/uptrail/uptrail/pkg/ws"
)

var errFailedToLoadConfig = fmt.Errorf("failed to load config")

const (
	broadcastBatchWindow = 200 * time.Millisecond
	broadcastMinSpacing  = 500 * time.Millisecond
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	configPath := flag.String("config", "/etc/uptrail/uptrail.json", "Path to config file")
	flag.Parse()

	ctx := context.Background()

	cfgLoader := config.NewConfig(nil)

	var cfg monitor.Config

	if err := cfgLoader.LoadAndValidate(ctx, *configPath, &cfg); err != nil {
		return fmt.Errorf("%w: %w", errFailedToLoadConfig, err)
	}

	mainLogger, err := lifecycle.CreateComponentLogger("uptrail", cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	pool, err := db.NewPool(ctx, cfg.Database, mainLogger)
	if err != nil {
		return err
	}
	defer pool.Close()

	repo := db.NewRepository(pool, mainLogger)

	hub := ws.NewHub(mainLogger)
	defer hub.Close()

	throttler := ws.NewThrottler(hub, broadcastBatchWindow, broadcastMinSpacing, mainLogger)
	defer throttler.Stop()

	dispatcher := alerts.NewDispatcher(cfg.Webhook, mainLogger)
	defer dispatcher.Stop()

	resolver := netident.NewResolver(cfg.ISPLookupURL, time.Duration(cfg.ISPCacheTTL), mainLogger)

	prober := probe.NewRegistry(cfg.Probe, mainLogger)

	engine, err := monitor.New(&cfg, repo, prober, dispatcher, throttler, resolver, nil, mainLogger)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("/ws", hub)

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		mainLogger.Info().Str("addr", cfg.ListenAddr).Msg("Serving realtime status updates")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			mainLogger.Error().Err(err).Msg("Status server failed")
		}
	}()

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		_ = server.Shutdown(shutdownCtx)
	}()

	return lifecycle.Run(ctx, engine, mainLogger)
}
