//
// (C) Copyright 2018-2026 NVIDIA Corporation.
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//

// Package server wires together the process-wide MI root, the
// Discovery Orchestrator, the Bus Projection, and the metrics exporter
// into the single-threaded cooperative reactor of spec.md §5.
package server

import (
	"fmt"
	"os"

	flags "github.com/jessevdk/go-flags"

	"github.com/NVIDIA/nvidia-nvme-manager/logging"
)

// defaultInventoryPath is the fixed location of the physical-inventory
// configuration file, per spec.md §6 ("/usr/share/<package>/drive.json"
// with the package name substituted).
const defaultInventoryPath = "/usr/share/nvmed/drive.json"

const defaultMetricsAddr = "0.0.0.0:9345"

// Config is the process's runtime configuration: CLI flags only, since
// this daemon has no persistent state across restarts (spec.md §1
// non-goal) and therefore no config file beyond the fixed inventory
// JSON.
type Config struct {
	InventoryPath string `short:"i" long:"inventory" default:"/usr/share/nvmed/drive.json" description:"Path to the physical-inventory JSON file"`
	MetricsAddr   string `short:"m" long:"metrics-listen" default:"0.0.0.0:9345" description:"Address the Prometheus exporter listens on"`
	Debug         bool   `short:"d" long:"debug" description:"Enable debug logging"`
	JSONLogs      bool   `long:"json" description:"Accepted but has no effect: log lines are always plain text"`
}

// ParseConfig parses argv into a Config. args excludes the program
// name, matching flags.ParseArgs's convention.
func ParseConfig(args []string) (*Config, error) {
	cfg := &Config{
		InventoryPath: defaultInventoryPath,
		MetricsAddr:   defaultMetricsAddr,
	}
	parser := flags.NewParser(cfg, flags.Default)
	if _, err := parser.ParseArgs(args); err != nil {
		return nil, err
	}
	return cfg, nil
}

// NewLogger builds the process-wide logger per cfg: always stderr, plus
// syslog for a BMC daemon running outside of a systemd journal capture
// context, matching the control plane's own combined-logger convention.
func (c *Config) NewLogger() logging.Logger {
	level := logging.DefaultLogLevel
	if c.Debug {
		level = logging.LogLevelDebug
	}

	ll, err := logging.NewSyslogLogger("nvmed")
	if err != nil {
		fallback := logging.NewCombinedLogger(os.Stderr).WithLogLevel(level)
		fallback.Errorf("failed to attach syslog sink: %s", err)
		return fallback
	}
	return ll.WithLogLevel(level)
}

// String implements fmt.Stringer for log-friendly rendering.
func (c *Config) String() string {
	return fmt.Sprintf("inventory=%s metrics=%s debug=%v", c.InventoryPath, c.MetricsAddr, c.Debug)
}
