// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package health

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ManuGH/society/internal/log"
)

// PerformStartupChecks fails fast on an unusable data directory before any
// component touches it. A missing directory is created.
func PerformStartupChecks(dataDir string) error {
	logger := log.WithComponent("startup-check")

	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	if err := checkWritableDir(dataDir); err != nil {
		return fmt.Errorf("data directory check failed: %w", err)
	}

	logger.Debug().
		Str(log.FieldEvent, "startup.checks_passed").
		Str("data_dir", dataDir).
		Msg("startup checks passed")
	return nil
}

func checkWritableDir(path string) error {
	if path == "" {
		return errors.New("path is empty")
	}
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("not a directory: %s", path)
	}
	f, err := os.CreateTemp(path, ".write-test-*")
	if err != nil {
		return fmt.Errorf("not writable: %s: %w", path, err)
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(filepath.Clean(name))
}
