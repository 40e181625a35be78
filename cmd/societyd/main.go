// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/ManuGH/society/internal/config"
	"github.com/ManuGH/society/internal/daemon"
	"github.com/ManuGH/society/internal/log"
	"github.com/ManuGH/society/internal/version"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "config":
			os.Exit(runConfigCLI(os.Args[2:]))
		case "healthcheck":
			os.Exit(runHealthcheckCLI(os.Args[2:]))
		}
	}

	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		os.Exit(0)
	}

	log.Configure(log.Config{Level: "info", Service: "societyd", Version: version.Version})
	logger := log.WithComponent("main")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	path := strings.TrimSpace(*configPath)
	if path == "" {
		path = resolveDefaultConfigPath()
	}

	cfg, err := config.NewLoader(path, version.Version).Load()
	if err != nil {
		logger.Fatal().
			Err(err).
			Str(log.FieldEvent, "config.load_failed").
			Str("config_path", path).
			Msg("failed to load configuration")
	}

	log.Configure(log.Config{Level: cfg.LogLevel, Service: "societyd", Version: cfg.Version})
	logger = log.WithComponent("main")
	source := "env+defaults"
	if path != "" {
		source = path
	}
	logger.Info().Str(log.FieldEvent, "config.source").Str("source", source).Msg("configuration resolved")
	config.LogSummary(logger, cfg)

	app, err := daemon.New(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Str(log.FieldEvent, "daemon.init_failed").Msg("failed to initialise daemon")
	}
	if err := app.Run(ctx); err != nil {
		logger.Error().Err(err).Str(log.FieldEvent, "daemon.failed").Msg("daemon stopped with error")
		os.Exit(1)
	}
}

// resolveDefaultConfigPath returns ${SOCIETY_DATA}/config.yaml when it exists.
func resolveDefaultConfigPath() string {
	dataDir := strings.TrimSpace(os.Getenv(config.EnvPrefix + "DATA"))
	if dataDir == "" {
		dataDir = config.DefaultDataDir
	}
	p := filepath.Join(dataDir, "config.yaml")
	if _, err := os.Stat(p); err == nil {
		return p
	}
	return ""
}
