//
// (C) Copyright 2018-2026 NVIDIA Corporation.
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//
package server

import "testing"

func TestParseConfig_Defaults(t *testing.T) {
	cfg, err := ParseConfig(nil)
	if err != nil {
		t.Fatalf("ParseConfig() error = %s", err)
	}
	if cfg.InventoryPath != defaultInventoryPath {
		t.Fatalf("InventoryPath = %q, want %q", cfg.InventoryPath, defaultInventoryPath)
	}
	if cfg.MetricsAddr != defaultMetricsAddr {
		t.Fatalf("MetricsAddr = %q, want %q", cfg.MetricsAddr, defaultMetricsAddr)
	}
	if cfg.Debug {
		t.Fatalf("Debug = true, want false by default")
	}
}

func TestParseConfig_OverridesFromArgs(t *testing.T) {
	cfg, err := ParseConfig([]string{"-i", "/tmp/drive.json", "-m", "127.0.0.1:9999", "-d"})
	if err != nil {
		t.Fatalf("ParseConfig() error = %s", err)
	}
	if cfg.InventoryPath != "/tmp/drive.json" {
		t.Fatalf("InventoryPath = %q", cfg.InventoryPath)
	}
	if cfg.MetricsAddr != "127.0.0.1:9999" {
		t.Fatalf("MetricsAddr = %q", cfg.MetricsAddr)
	}
	if !cfg.Debug {
		t.Fatalf("Debug = false, want true")
	}
}

func TestParseConfig_UnknownFlagFails(t *testing.T) {
	if _, err := ParseConfig([]string{"--frobnicate"}); err == nil {
		t.Fatalf("expected error for unknown flag")
	}
}

func TestConfig_String(t *testing.T) {
	cfg := &Config{InventoryPath: "/a/b.json", MetricsAddr: "h:1", Debug: true}
	got := cfg.String()
	want := "inventory=/a/b.json metrics=h:1 debug=true"
	if got != want {
		t.Fatalf("String() = %q, want %q", got, want)
	}
}
