//
// (C) Copyright 2018-2026 NVIDIA Corporation.
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//
package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/NVIDIA/nvidia-nvme-manager/logging"
)

func testLogger() logging.Logger {
	l, _ := logging.NewTestLogger("metrics_test")
	return l
}

func TestRegistry_ObserveQueueDepth(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewRegistry(reg)

	m.ObserveQueueDepth(9, 3)

	got := testutil.ToFloat64(m.QueueDepth.WithLabelValues("9"))
	if got != 3 {
		t.Fatalf("QueueDepth = %v, want 3", got)
	}
}

func TestRegistry_CommandCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewRegistry(reg)

	m.CommandIssued("AdminIdentify")
	m.CommandIssued("AdminIdentify")
	m.CommandFailed("AdminIdentify", "Timeout")

	if got := testutil.ToFloat64(m.CommandsIssued.WithLabelValues("AdminIdentify")); got != 2 {
		t.Fatalf("CommandsIssued = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.CommandsFailed.WithLabelValues("AdminIdentify", "Timeout")); got != 1 {
		t.Fatalf("CommandsFailed = %v, want 1", got)
	}
}

func TestRegistry_ForgetDriveRemovesSeries(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewRegistry(reg)

	m.ObserveQueueDepth(9, 2)
	m.ObserveSanitizeProgress(9, 50)
	m.ForgetDrive(9)

	if got := testutil.ToFloat64(m.QueueDepth.WithLabelValues("9")); got != 0 {
		t.Fatalf("QueueDepth after ForgetDrive = %v, want 0 (fresh series)", got)
	}
}

func TestRegistry_NilIsSafe(t *testing.T) {
	var m *Registry
	m.ObserveQueueDepth(9, 3)
	m.CommandIssued("AdminIdentify")
	m.CommandFailed("AdminIdentify", "Timeout")
	m.PollTick()
	m.ObserveSanitizeProgress(9, 50)
	m.ForgetDrive(9)
}
