//
// (C) Copyright 2018-2026 NVIDIA Corporation.
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//

// Package events carries drive-health event records from the Health
// Evaluator to the object-bus event log, decoupled by a small pub/sub bus
// modeled on the control plane's own event pipeline.
package events

import "fmt"

// Severity mirrors the Redfish severity strings this daemon's events use.
type Severity string

const (
	SeverityOK       Severity = "OK"
	SeverityWarning  Severity = "Warning"
	SeverityCritical Severity = "Critical"
)

// MessageIDResourceErrorsDetected is the only message ID the Event-log
// call contract supports (spec.md §6: "Only ResourceEvent.1.0.ResourceErrorsDetected
// is supported; other message IDs log and return").
const MessageIDResourceErrorsDetected = "ResourceEvent.1.0.ResourceErrorsDetected"

// namespaceStorageDevice is the fixed namespace every Record in this
// daemon carries.
const namespaceStorageDevice = "StorageDevice"

// originOfConditionFmt builds the Redfish origin-of-condition URI for a
// drive index, per spec.md §4.4.
const originOfConditionFmt = "/redfish/v1/Systems/System_0/Storage/1/Drives/%d"

// Record is one de-duplicated health/fault event, ready to be forwarded
// to xyz.openbmc_project.Logging.Create.
type Record struct {
	MessageID         string
	Severity          Severity
	Args              [2]string
	Resolution         string
	OriginOfCondition string
	Namespace         string
}

// NewResourceError builds the Record shape every Health Evaluator event
// uses: args are (drive-name + index, message), origin is the drive's
// Redfish path, namespace is fixed.
func NewResourceError(severity Severity, driveName string, index int, message, resolution string) Record {
	return Record{
		MessageID:         MessageIDResourceErrorsDetected,
		Severity:          severity,
		Args:              [2]string{fmt.Sprintf("%s%d", driveName, index), message},
		Resolution:        resolution,
		OriginOfCondition: fmt.Sprintf(originOfConditionFmt, index),
		Namespace:         namespaceStorageDevice,
	}
}

// AdditionalData renders the Record as the additional-data map the
// Logging.Create method call expects, per spec.md §6.
func (r Record) AdditionalData() map[string]string {
	return map[string]string{
		"REDFISH_MESSAGE_ID":          r.MessageID,
		"REDFISH_ORIGIN_OF_CONDITION": r.OriginOfCondition,
		"REDFISH_MESSAGE_ARGS":        fmt.Sprintf("%s,%s", r.Args[0], r.Args[1]),
		"xyz.openbmc_project.Logging.Entry.Resolution": r.Resolution,
		"namespace": r.Namespace,
	}
}
