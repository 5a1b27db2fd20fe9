//
// (C) Copyright 2018-2026 NVIDIA Corporation.
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//
package events

import (
	"github.com/godbus/dbus/v5"

	"github.com/NVIDIA/nvidia-nvme-manager/logging"
)

const (
	loggingBusName    = "xyz.openbmc_project.Logging"
	loggingObjectPath = dbus.ObjectPath("/xyz/openbmc_project/logging")
	loggingCreateMethod = "xyz.openbmc_project.Logging.Create"
)

// LogCreator forwards Records to the logging service's Create method,
// the only write path this daemon has into the event log (spec.md §6).
// The logging service itself is an out-of-scope collaborator; this is
// strictly the client side of that contract.
type LogCreator struct {
	log logging.Logger
	obj dbus.BusObject
}

// NewLogCreator builds a LogCreator bound to conn. conn is owned by the
// caller (server.Server); LogCreator never closes it.
func NewLogCreator(conn *dbus.Conn, log logging.Logger) *LogCreator {
	return &LogCreator{
		log: logging.MustLogger(log),
		obj: conn.Object(loggingBusName, loggingObjectPath),
	}
}

// Create issues the Logging.Create method call for r. Only
// MessageIDResourceErrorsDetected is supported; any other message ID is
// logged and dropped without a remote call, per spec.md §6.
func (lc *LogCreator) Create(r Record) error {
	if r.MessageID != MessageIDResourceErrorsDetected {
		lc.log.Debugf("dropping unsupported event message id %q", r.MessageID)
		return nil
	}

	call := lc.obj.Call(loggingCreateMethod, 0, r.MessageID, string(r.Severity), r.AdditionalData())
	if call.Err != nil {
		lc.log.Errorf("Logging.Create failed for %q: %s", r.MessageID, call.Err)
		return call.Err
	}
	return nil
}

// Handle adapts Create to the Handler signature expected by PubSub.Subscribe.
func (lc *LogCreator) Handle(r Record) {
	if err := lc.Create(r); err != nil {
		lc.log.Errorf("event dropped: %s", err)
	}
}
