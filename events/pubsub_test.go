//
// (C) Copyright 2018-2026 NVIDIA Corporation.
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//
package events

import (
	"sync"
	"testing"
	"time"

	"github.com/NVIDIA/nvidia-nvme-manager/logging"
)

func testLogger() logging.Logger {
	l, _ := logging.NewTestLogger("events_test")
	return l
}

func TestPubSub_DeliversToAllSubscribers(t *testing.T) {
	ps := NewPubSub(testLogger())
	defer ps.Close()

	var mu sync.Mutex
	var got []Record
	done := make(chan struct{}, 2)

	for i := 0; i < 2; i++ {
		ps.Subscribe(func(r Record) {
			mu.Lock()
			got = append(got, r)
			mu.Unlock()
			done <- struct{}{}
		})
	}

	rec := NewResourceError(SeverityCritical, "drive", 9, "Drive Failure", "resolution")
	ps.Publish(rec)

	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for subscriber delivery")
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 2 {
		t.Fatalf("len(got) = %d, want 2", len(got))
	}
}

func TestPubSub_PanickingSubscriberDoesNotStopDelivery(t *testing.T) {
	ps := NewPubSub(testLogger())
	defer ps.Close()

	done := make(chan struct{}, 1)
	ps.Subscribe(func(Record) { panic("boom") })
	ps.Subscribe(func(Record) { done <- struct{}{} })

	ps.Publish(NewResourceError(SeverityWarning, "drive", 1, "msg", ""))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("second subscriber never ran")
	}
}

func TestNewResourceError_FieldShape(t *testing.T) {
	r := NewResourceError(SeverityCritical, "drive", 9, "Drive Failure", "fix it")
	if r.MessageID != MessageIDResourceErrorsDetected {
		t.Fatalf("MessageID = %q", r.MessageID)
	}
	if r.Args[0] != "drive9" {
		t.Fatalf("Args[0] = %q, want %q", r.Args[0], "drive9")
	}
	if r.OriginOfCondition != "/redfish/v1/Systems/System_0/Storage/1/Drives/9" {
		t.Fatalf("OriginOfCondition = %q", r.OriginOfCondition)
	}
	if r.Namespace != "StorageDevice" {
		t.Fatalf("Namespace = %q", r.Namespace)
	}
}
