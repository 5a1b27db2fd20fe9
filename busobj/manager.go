//
// (C) Copyright 2018-2026 NVIDIA Corporation.
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//
package busobj

import (
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
	"github.com/pkg/errors"

	"github.com/NVIDIA/nvidia-nvme-manager/drive"
	"github.com/NVIDIA/nvidia-nvme-manager/logging"
)

// busName and inventoryRootPath are fixed by spec.md §6: "Bus name
// xyz.openbmc_project.NVMeDevice. Object manager registered at
// /xyz/openbmc_project/inventory/drive."
const (
	busName           = "xyz.openbmc_project.NVMeDevice"
	inventoryRootPath = dbus.ObjectPath("/xyz/openbmc_project/inventory/drive")

	objectManagerInterface = "org.freedesktop.DBus.ObjectManager"
)

// Manager owns the object manager at inventoryRootPath and every
// published DriveObject beneath it. Like Drive itself, it is meant to
// be driven from exactly one goroutine (the server's reactor loop).
type Manager struct {
	log  logging.Logger
	conn *dbus.Conn

	mu     sync.Mutex
	drives map[uint8]*DriveObject
}

// NewManager claims busName on conn and exports the object manager
// interface at inventoryRootPath. conn is owned by the caller.
func NewManager(conn *dbus.Conn, log logging.Logger) (*Manager, error) {
	log = logging.MustLogger(log)
	m := &Manager{log: log, conn: conn, drives: make(map[uint8]*DriveObject)}

	if err := conn.Export(m, inventoryRootPath, objectManagerInterface); err != nil {
		return nil, errors.Wrap(err, "export object manager")
	}
	if err := conn.Export(introspect.NewIntrospectable(m.node()), inventoryRootPath, introspectInterface); err != nil {
		return nil, errors.Wrap(err, "export object manager introspection")
	}

	reply, err := conn.RequestName(busName, dbus.NameFlagDoNotQueue)
	if err != nil {
		return nil, errors.Wrapf(err, "request bus name %s", busName)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		return nil, errors.Errorf("bus name %s already owned by another process", busName)
	}

	return m, nil
}

// GetManagedObjects implements org.freedesktop.DBus.ObjectManager for
// every currently published drive.
func (m *Manager) GetManagedObjects() (map[dbus.ObjectPath]map[string]map[string]dbus.Variant, *dbus.Error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[dbus.ObjectPath]map[string]map[string]dbus.Variant, len(m.drives))
	for eid, do := range m.drives {
		out[objectPath(eid)] = snapshotProperties(do)
	}
	return out, nil
}

// AddDrive publishes d's property groups and SecureErase method, and
// announces the new object via InterfacesAdded.
func (m *Manager) AddDrive(d *drive.Drive) (*DriveObject, error) {
	do, err := newDriveObject(m.conn, d, m.log)
	if err != nil {
		return nil, err
	}
	do.Refresh()

	m.mu.Lock()
	m.drives[d.EID] = do
	m.mu.Unlock()

	m.emitInterfacesAdded(do)
	return do, nil
}

// RemoveDrive retires the published object for eid and announces the
// removal via InterfacesRemoved. The object's D-Bus export is left in
// place (godbus has no general unexport call); GetManagedObjects and
// the removal signal are what callers actually observe, and this
// daemon's object paths are never reused for a different EID within
// one process lifetime.
func (m *Manager) RemoveDrive(eid uint8) {
	m.mu.Lock()
	do, ok := m.drives[eid]
	delete(m.drives, eid)
	m.mu.Unlock()

	if !ok {
		return
	}
	m.emitInterfacesRemoved(do.path)
}

// EIDs returns the endpoint IDs of every currently published drive.
func (m *Manager) EIDs() []uint8 {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]uint8, 0, len(m.drives))
	for eid := range m.drives {
		out = append(out, eid)
	}
	return out
}

// Refresh republishes every currently tracked drive's property groups,
// called once per poll tick after the drive map has been updated.
func (m *Manager) Refresh() {
	m.mu.Lock()
	drives := make([]*DriveObject, 0, len(m.drives))
	for _, do := range m.drives {
		drives = append(drives, do)
	}
	m.mu.Unlock()

	for _, do := range drives {
		do.Refresh()
	}
}

func (m *Manager) emitInterfacesAdded(do *DriveObject) {
	if err := m.conn.Emit(inventoryRootPath, objectManagerInterface+".InterfacesAdded",
		do.path, snapshotProperties(do)); err != nil {
		m.log.Errorf("emit InterfacesAdded for %s: %s", do.path, err)
	}
}

func (m *Manager) emitInterfacesRemoved(path dbus.ObjectPath) {
	ifaces := []string{
		itemInterface, driveInterface, assetInterface, versionInterface, portInterface,
		healthInterface, operationalStatusInterface, nvmeStatusInterface, locationInterface,
		associationsInterface, progressInterface, secureEraseInterface, operationInterface,
	}
	if err := m.conn.Emit(inventoryRootPath, objectManagerInterface+".InterfacesRemoved",
		path, ifaces); err != nil {
		m.log.Errorf("emit InterfacesRemoved for %s: %s", path, err)
	}
}

// snapshotProperties reads back every exported property's current
// value for GetManagedObjects/InterfacesAdded, keyed by interface name.
func snapshotProperties(do *DriveObject) map[string]map[string]dbus.Variant {
	out := make(map[string]map[string]dbus.Variant)
	for iface, props := range do.propSpec() {
		vals := make(map[string]dbus.Variant, len(props))
		for name := range props {
			if v, err := do.props.Get(iface, name); err == nil {
				vals[name] = v
			}
		}
		out[iface] = vals
	}
	return out
}

func (m *Manager) node() *introspect.Node {
	return &introspect.Node{
		Name:       string(inventoryRootPath),
		Interfaces: []introspect.Interface{introspect.IntrospectData, {
			Name: objectManagerInterface,
			Methods: []introspect.Method{{
				Name: "GetManagedObjects",
				Args: []introspect.Arg{{Name: "objpath_interfaces_and_properties", Type: "a{oa{sa{sv}}}", Direction: "out"}},
			}},
		}},
	}
}
