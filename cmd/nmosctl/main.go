/*
 * Copyright 2026 Yem Networks.
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
	"flag"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/yemnet/nmosctl/pkg/config"
	"github.com/yemnet/nmosctl/pkg/controller"
	"github.com/yemnet/nmosctl/pkg/logger"
)

const liveRefreshInterval = 30 * time.Second

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	configPath := flag.String("config", "/etc/nmosctl/controller.json", "Path to controller config file")
	backupDir := flag.String("backup-dir", "", "Directory for registry model backups (empty disables)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var cfg config.ControllerConfig

	loader := &config.FileConfigLoader{}
	if err := loader.Load(ctx, *configPath, &cfg); err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	lg, err := logger.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}

	ctrl, err := controller.New(ctx, cfg, lg)
	if err != nil {
		return fmt.Errorf("failed to create controller: %w", err)
	}
	defer ctrl.Close()

	if err := ctrl.OpenRegistryConnection(ctx); err != nil {
		return fmt.Errorf("failed to open registry connection: %w", err)
	}

	ticker := time.NewTicker(liveRefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			lg.Info().Msg("shutting down")

			if *backupDir != "" {
				if _, err := ctrl.BackupMirror(context.Background(), *backupDir); err != nil {
					lg.Error().Err(err).Msg("registry backup failed")
				}
			}

			return nil
		case <-ticker.C:
			ctrl.UpdateLiveRegistries()
		}
	}
}
