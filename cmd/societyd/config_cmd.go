// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ManuGH/society/internal/config"
	"github.com/ManuGH/society/internal/version"
)

func runConfigCLI(args []string) int {
	return configCLI(args, os.Stdout, os.Stderr)
}

func configCLI(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		printConfigUsage(stderr)
		return 0
	}

	switch args[0] {
	case "validate":
		return configValidate(args[1:], stdout, stderr)
	case "dump":
		return configDump(args[1:], stdout, stderr)
	default:
		fmt.Fprintf(stderr, "Unknown subcommand: %s\n\n", args[0])
		printConfigUsage(stderr)
		return 2
	}
}

func printConfigUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  societyd config validate [--file|-f config.yaml]")
	fmt.Fprintln(w, "  societyd config dump [--file|-f config.yaml] [--format=yaml|json]")
}

func configFlags(name string, stderr io.Writer) (*flag.FlagSet, *string) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	file := new(string)
	fs.StringVar(file, "file", "", "path to YAML configuration file")
	fs.StringVar(file, "f", "", "path to YAML configuration file (shorthand)")
	return fs, file
}

func loadForCLI(file string, stderr io.Writer) (config.AppConfig, string, bool) {
	path := strings.TrimSpace(file)
	if path == "" {
		path = resolveDefaultConfigPath()
	}
	cfg, err := config.NewLoader(path, version.Version).Load()
	if err != nil {
		where := path
		if where == "" {
			where = "environment"
		}
		fmt.Fprintf(stderr, "Configuration error in %s:\n  %v\n", where, err)
		return config.AppConfig{}, path, false
	}
	return cfg, path, true
}

func configValidate(args []string, stdout, stderr io.Writer) int {
	fs, file := configFlags("societyd config validate", stderr)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	_, path, ok := loadForCLI(*file, stderr)
	if !ok {
		return 1
	}
	if path == "" {
		path = "environment configuration"
	}
	fmt.Fprintf(stdout, "%s is valid\n", path)
	return 0
}

// configDump prints the effective configuration (defaults, file, env) with
// secrets masked.
func configDump(args []string, stdout, stderr io.Writer) int {
	fs, file := configFlags("societyd config dump", stderr)
	format := fs.String("format", "yaml", "output format: yaml or json")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	cfg, _, ok := loadForCLI(*file, stderr)
	if !ok {
		return 1
	}

	out := config.MaskSecrets(cfg)
	switch strings.ToLower(strings.TrimSpace(*format)) {
	case "yaml", "yml":
		enc := yaml.NewEncoder(stdout)
		enc.SetIndent(2)
		if err := enc.Encode(out); err != nil {
			fmt.Fprintf(stderr, "Failed to encode YAML: %v\n", err)
			return 1
		}
		_ = enc.Close()
		return 0
	case "json":
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			fmt.Fprintf(stderr, "Failed to encode JSON: %v\n", err)
			return 1
		}
		return 0
	default:
		fmt.Fprintf(stderr, "Unsupported format: %s (use yaml or json)\n", *format)
		return 2
	}
}
