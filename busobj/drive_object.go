//
// (C) Copyright 2018-2026 NVIDIA Corporation.
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//

// Package busobj implements the Bus Projection of spec.md §2/§6: it
// publishes each Drive Record as an object bus object with the fixed
// set of property groups, and exports the SecureErase.Erase method that
// forwards into the Drive State Machine.
package busobj

import (
	"fmt"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
	"github.com/godbus/dbus/v5/prop"
	"github.com/pkg/errors"

	"github.com/NVIDIA/nvidia-nvme-manager/drive"
	"github.com/NVIDIA/nvidia-nvme-manager/faults"
	"github.com/NVIDIA/nvidia-nvme-manager/logging"
)

// Interface names, per spec.md §6's property-group table. Item,
// Inventory.Item.Drive, Decorator.Asset, Software.Version,
// State.Decorator.Health, State.Decorator.OperationalStatus,
// Common.Progress, and Association.Definitions are the real
// OpenBMC-wide interfaces; Nvme.Status, Decorator.PortInfo,
// Nvme.Operation, and Item.Drive.SecureErase are this daemon's own,
// named to match the same convention the rest of OpenBMC uses.
const (
	itemInterface              = "xyz.openbmc_project.Inventory.Item"
	driveInterface             = "xyz.openbmc_project.Inventory.Item.Drive"
	assetInterface             = "xyz.openbmc_project.Inventory.Decorator.Asset"
	versionInterface           = "xyz.openbmc_project.Software.Version"
	portInterface              = "xyz.openbmc_project.Inventory.Decorator.PortInfo"
	healthInterface            = "xyz.openbmc_project.State.Decorator.Health"
	operationalStatusInterface = "xyz.openbmc_project.State.Decorator.OperationalStatus"
	nvmeStatusInterface        = "xyz.openbmc_project.Nvme.Status"
	locationInterface          = "xyz.openbmc_project.Inventory.Decorator.Location"
	associationsInterface      = "xyz.openbmc_project.Association.Definitions"
	progressInterface          = "xyz.openbmc_project.Common.Progress"
	secureEraseInterface       = "xyz.openbmc_project.Inventory.Item.Drive.SecureErase"
	operationInterface         = "xyz.openbmc_project.Nvme.Operation"

	introspectInterface = "org.freedesktop.DBus.Introspectable"
	propertiesInterface = "org.freedesktop.DBus.Properties"
)

// DriveObject is one published drive: the fixed property groups plus
// the SecureErase.Erase method, bound to the Drive Record that owns the
// data.
type DriveObject struct {
	log   logging.Logger
	drive *drive.Drive
	path  dbus.ObjectPath
	props *prop.Properties
}

// objectPath returns the fixed object path for EID, per spec.md §6.
func objectPath(eid uint8) dbus.ObjectPath {
	return dbus.ObjectPath(fmt.Sprintf("%s/%d", inventoryRootPath, eid))
}

// newDriveObject exports d's property groups and SecureErase method on
// conn and returns the handle the Manager keeps to republish on every
// poll tick.
func newDriveObject(conn *dbus.Conn, d *drive.Drive, log logging.Logger) (*DriveObject, error) {
	log = logging.MustLogger(log)
	path := objectPath(d.EID)

	do := &DriveObject{log: log, drive: d, path: path}

	p, err := prop.Export(conn, path, do.propSpec())
	if err != nil {
		return nil, errors.Wrapf(err, "export properties for drive EID %d", d.EID)
	}
	do.props = p

	if err := conn.Export(do, path, secureEraseInterface); err != nil {
		return nil, errors.Wrapf(err, "export SecureErase for drive EID %d", d.EID)
	}
	if err := conn.Export(introspect.NewIntrospectable(do.node()), path, introspectInterface); err != nil {
		return nil, errors.Wrapf(err, "export introspection for drive EID %d", d.EID)
	}

	return do, nil
}

// Erase is the SecureErase.Erase method of spec.md §6: "method
// erase(passes: u16, method: EraseMethod) may fail with NotAllowed."
// method is one of "Overwrite", "BlockErase", "CryptoErase".
func (do *DriveObject) Erase(passes uint16, method string) *dbus.Error {
	m, ok := parseSanitizeMethod(method)
	if !ok {
		return dbus.MakeFailedError(errors.Errorf("unknown erase method %q", method))
	}
	if err := do.drive.RequestErase(passes, m); err != nil {
		if faults.ErrNotAllowed.Equals(err) {
			return dbus.NewError("xyz.openbmc_project.Common.Error.NotAllowed", []interface{}{err.Error()})
		}
		return dbus.MakeFailedError(err)
	}
	return nil
}

func parseSanitizeMethod(s string) (drive.SanitizeMethod, bool) {
	switch s {
	case "Overwrite":
		return drive.MethodOverwrite, true
	case "BlockErase":
		return drive.MethodBlockErase, true
	case "CryptoErase":
		return drive.MethodCryptoErase, true
	default:
		return 0, false
	}
}

// sanitizeCapabilityNames renders the drive's erase capability set as
// the ordered string slice the SecureErase property publishes.
func sanitizeCapabilityNames(c drive.SanitizeCapabilities) []string {
	var names []string
	for _, m := range []drive.SanitizeMethod{drive.MethodOverwrite, drive.MethodBlockErase, drive.MethodCryptoErase} {
		if c.Has(m) {
			names = append(names, m.String())
		}
	}
	return names
}

// associationVariants renders a Drive Record's associations as the
// tuple slice the Association.Definitions property expects.
func associationVariants(assoc []drive.Association) [][]string {
	out := make([][]string, 0, len(assoc))
	for _, a := range assoc {
		out = append(out, []string{a.Forward, a.Reverse, a.Target})
	}
	return out
}

// Refresh republishes every property group from the current Drive
// Record state. Called once per poll tick after the Drive Record's
// fields have been updated, per spec.md §4.3/§4.4's mutate-then-publish
// discipline.
func (do *DriveObject) Refresh() {
	d := do.drive
	set := do.props.SetMust

	set(itemInterface, "Present", d.Present)

	set(driveInterface, "Type", drive.DriveType)
	set(driveInterface, "Protocol", drive.DriveProtocol)
	set(driveInterface, "Capacity", d.CapacityBytes)
	set(driveInterface, "PredictedMediaLifeLeftPercent", d.PredictedMediaLifeLeftPercent())
	set(driveInterface, "FormFactor", d.FormFactor.String())

	set(assetInterface, "Manufacturer", d.Manufacturer)
	set(assetInterface, "Model", d.Model)
	set(assetInterface, "SerialNumber", d.Serial)

	set(versionInterface, "Version", d.FirmwareRevision)

	set(portInterface, "MaxSpeed", d.MaxSpeedGbps)
	set(portInterface, "CurrentSpeed", d.CurrentSpeedGbps)

	set(healthInterface, "Health", d.Health.String())

	set(operationalStatusInterface, "Functional", d.Functional)
	set(operationalStatusInterface, "State", d.OperationState.String())

	set(nvmeStatusInterface, "DriveLifeUsed", fmt.Sprintf("%d", d.DriveLifeUsedPercent))
	set(nvmeStatusInterface, "SmartWarnings", fmt.Sprintf("%d", d.SmartWarning))
	set(nvmeStatusInterface, "BackupDeviceFault", d.Faults.BackupDevice)
	set(nvmeStatusInterface, "TemperatureFault", d.Faults.Temperature)
	set(nvmeStatusInterface, "DegradedFault", d.Faults.Degraded)
	set(nvmeStatusInterface, "MediaFault", d.Faults.Media)
	set(nvmeStatusInterface, "CapacityFault", d.Faults.Capacity)

	set(locationInterface, "LocationCode", d.LocationCode)
	set(locationInterface, "LocationType", d.LocationType.String())

	set(associationsInterface, "Associations", associationVariants(d.Associations))

	set(progressInterface, "Progress", d.Progress)
	set(progressInterface, "Status", d.OperationStatus.String())

	set(secureEraseInterface, "SanitizeCapability", sanitizeCapabilityNames(d.SanitizeCapability))

	set(operationInterface, "Operation", d.Operation.String())
}

// externalFaultCallback adapts one NVMe Status boolean property's
// Properties.Set callback to Drive.SetExternalFault, per spec.md §9
// "Latched externals": the five booleans are writable from the object
// bus and OR'd into the SMART byte on each tick.
func (do *DriveObject) externalFaultCallback(kind drive.ExternalFaultKind) func(*prop.Change) *dbus.Error {
	return func(c *prop.Change) *dbus.Error {
		v, ok := c.Value.(bool)
		if !ok {
			return dbus.MakeFailedError(errors.New("external fault property must be boolean"))
		}
		do.drive.SetExternalFault(kind, v)
		return nil
	}
}

func (do *DriveObject) propSpec() map[string]map[string]*prop.Prop {
	readOnly := func(v interface{}) *prop.Prop {
		return &prop.Prop{Value: v, Writable: false, Emit: prop.EmitTrue}
	}
	writableFault := func(kind drive.ExternalFaultKind) *prop.Prop {
		return &prop.Prop{Value: false, Writable: true, Emit: prop.EmitTrue, Callback: do.externalFaultCallback(kind)}
	}

	return map[string]map[string]*prop.Prop{
		itemInterface: {
			"Present": readOnly(do.drive.Present),
		},
		driveInterface: {
			"Type":                          readOnly(drive.DriveType),
			"Protocol":                      readOnly(drive.DriveProtocol),
			"Capacity":                      readOnly(uint64(0)),
			"PredictedMediaLifeLeftPercent": readOnly(uint8(0)),
			"FormFactor":                    readOnly(""),
		},
		assetInterface: {
			"Manufacturer": readOnly(""),
			"Model":        readOnly(""),
			"SerialNumber": readOnly(""),
		},
		versionInterface: {
			"Version": readOnly(""),
		},
		portInterface: {
			"MaxSpeed":     readOnly(uint32(0)),
			"CurrentSpeed": readOnly(uint32(0)),
		},
		healthInterface: {
			"Health": readOnly(drive.HealthOK.String()),
		},
		operationalStatusInterface: {
			"Functional": readOnly(false),
			"State":      readOnly(drive.OperationalNone.String()),
		},
		nvmeStatusInterface: {
			"DriveLifeUsed":     readOnly(""),
			"SmartWarnings":     readOnly(""),
			"BackupDeviceFault": writableFault(drive.ExternalFaultBackupDevice),
			"TemperatureFault":  writableFault(drive.ExternalFaultTemperature),
			"DegradedFault":     writableFault(drive.ExternalFaultDegraded),
			"MediaFault":        writableFault(drive.ExternalFaultMedia),
			"CapacityFault":     writableFault(drive.ExternalFaultCapacity),
		},
		locationInterface: {
			"LocationCode": readOnly(""),
			"LocationType": readOnly(drive.LocationUnknown.String()),
		},
		associationsInterface: {
			"Associations": readOnly([][]string{}),
		},
		progressInterface: {
			"Progress": readOnly(uint8(0)),
			"Status":   readOnly(drive.OperationStatusNone.String()),
		},
		secureEraseInterface: {
			"SanitizeCapability": readOnly([]string{}),
		},
		operationInterface: {
			"Operation": readOnly(drive.OperationNone.String()),
		},
	}
}

// node builds the introspection tree for this drive's object path.
func (do *DriveObject) node() *introspect.Node {
	ifaces := []introspect.Interface{introspect.IntrospectData, prop.IntrospectData}
	ifaces = append(ifaces, introspect.Interface{
		Name: secureEraseInterface,
		Methods: []introspect.Method{{
			Name: "Erase",
			Args: []introspect.Arg{
				{Name: "passes", Type: "q", Direction: "in"},
				{Name: "method", Type: "s", Direction: "in"},
			},
		}},
	})
	return &introspect.Node{Name: string(do.path), Interfaces: ifaces}
}
