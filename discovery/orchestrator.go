//
// (C) Copyright 2018-2026 NVIDIA Corporation.
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//

// Package discovery implements the Discovery Orchestrator of spec.md
// §4.5: it correlates MCTP endpoint announcements with physical
// inventory to instantiate, update, and retire Drive Records.
package discovery

import (
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/NVIDIA/nvidia-nvme-manager/drive"
	"github.com/NVIDIA/nvidia-nvme-manager/events"
	"github.com/NVIDIA/nvidia-nvme-manager/logging"
	"github.com/NVIDIA/nvidia-nvme-manager/nvmemi"
)

const (
	mctpBusName  = "xyz.openbmc_project.MCTP"
	mctpRootPath = dbus.ObjectPath("/xyz/openbmc_project/mctp")

	mctpEndpointInterface = "xyz.openbmc_project.MCTP.Endpoint"
	unixSocketInterface   = "xyz.openbmc_project.Common.UnixSocket"
	i2cDeviceInterface    = "xyz.openbmc_project.Inventory.Decorator.I2CDevice"

	inventoryBusName  = "xyz.openbmc_project.Inventory.Manager"
	inventoryRootPath = dbus.ObjectPath("/xyz/openbmc_project/inventory")

	itemNVMeInterface     = "xyz.openbmc_project.Inventory.Item.NVMe"
	itemDriveInterface    = "xyz.openbmc_project.Inventory.Item.Drive"
	locationInterface     = "xyz.openbmc_project.Inventory.Decorator.Location"

	objectManagerInterface = "org.freedesktop.DBus.ObjectManager"
	interfacesAddedSignal  = "org.freedesktop.DBus.ObjectManager.InterfacesAdded"
	interfacesRemovedSignal = "org.freedesktop.DBus.ObjectManager.InterfacesRemoved"

	// nvmeMIMsgType is NVME_MI_MSGTYPE_NVME & 0x7F, per spec.md §6.
	nvmeMIMsgType = 0x04

	// initializeDelay is the step-5 settle time: "sleep 2 seconds to allow
	// the MI worker to be ready, then call initialize on all Drive Records."
	initializeDelay = 2 * time.Second
)

// Orchestrator owns the drive map and runs the rescan algorithm of
// spec.md §4.5. It is driven entirely from the caller's single reactor
// loop (server.Server.Run): HandleSignal, the debounce channel, and the
// pending-initialize channel are all meant to live inside one select
// statement so the drive map is mutated from exactly one goroutine.
type Orchestrator struct {
	log     logging.Logger
	conn    *dbus.Conn
	root    *nvmemi.Root
	ps      *events.PubSub
	lib     nvmemi.MILibrary
	metrics drive.Metrics
	inventoryConfig InventoryConfig

	drives  map[uint8]*drive.Drive
	pathEID map[dbus.ObjectPath]uint8

	debounce    *debouncer
	pendingInit *time.Timer

	sigCh chan *dbus.Signal
}

// NewOrchestrator builds an Orchestrator and subscribes to the MCTP and
// inventory object managers' signals on conn. lib is the NVMe-MI library
// binding new Drive Records' endpoints are constructed with; pass
// nvmemi.UnimplementedLibrary() when no real binding is wired.
func NewOrchestrator(conn *dbus.Conn, root *nvmemi.Root, ps *events.PubSub, lib nvmemi.MILibrary, m drive.Metrics, inv InventoryConfig, log logging.Logger) *Orchestrator {
	log = logging.MustLogger(log)

	o := &Orchestrator{
		log:             log,
		conn:            conn,
		root:            root,
		ps:              ps,
		lib:             lib,
		metrics:         m,
		inventoryConfig: inv,
		drives:          make(map[uint8]*drive.Drive),
		pathEID:         make(map[dbus.ObjectPath]uint8),
		debounce:        newDebouncer(),
		sigCh:           make(chan *dbus.Signal, 32),
	}

	for _, path := range []dbus.ObjectPath{mctpRootPath, inventoryRootPath} {
		if err := conn.AddMatchSignal(
			dbus.WithMatchObjectPath(path),
			dbus.WithMatchInterface(objectManagerInterface),
		); err != nil {
			log.Errorf("subscribe to %s object manager signals: %s", path, err)
		}
	}
	conn.Signal(o.sigCh)

	// Trigger (a): startup.
	o.debounce.Arm()
	return o
}

// Signals exposes the raw D-Bus signal channel for the caller's select
// loop to range over.
func (o *Orchestrator) Signals() <-chan *dbus.Signal { return o.sigCh }

// DebounceChannel fires once, debounceDelay after the most recent Arm.
func (o *Orchestrator) DebounceChannel() <-chan time.Time { return o.debounce.Channel() }

// PendingInitChannel fires initializeDelay after the most recent Rescan,
// or never (nil) if no rescan is outstanding. Selecting on a nil channel
// blocks forever, which is exactly the "nothing pending" behavior wanted
// here.
func (o *Orchestrator) PendingInitChannel() <-chan time.Time {
	if o.pendingInit == nil {
		return nil
	}
	return o.pendingInit.C
}

// Drives returns the live drive map, for the caller's poll ticker to
// range over. The caller must not mutate it.
func (o *Orchestrator) Drives() map[uint8]*drive.Drive { return o.drives }

// HandleSignal processes one ObjectManager signal: additions debounce
// into a rescan; removals take effect immediately, per spec.md §4.5
// "Removal".
func (o *Orchestrator) HandleSignal(sig *dbus.Signal) {
	switch sig.Name {
	case interfacesAddedSignal:
		o.debounce.Arm()
	case interfacesRemovedSignal:
		// The signal is emitted from the object manager's root path; the
		// removed object's path is the first body argument.
		if len(sig.Body) > 0 {
			if path, ok := sig.Body[0].(dbus.ObjectPath); ok {
				o.removeByPath(path)
			}
		}
		o.debounce.Arm()
	}
}

func (o *Orchestrator) removeByPath(path dbus.ObjectPath) {
	eid, ok := o.pathEID[path]
	if !ok {
		return
	}
	d, ok := o.drives[eid]
	if !ok {
		return
	}
	o.log.Noticef("drive EID %d removed", eid)
	d.Close()
	delete(o.drives, eid)
	delete(o.pathEID, path)
}

// Rescan performs steps 1-4 of the rescan algorithm synchronously, then
// arms the step-5 settle timer; the caller completes the cycle by
// calling CompleteRescan once PendingInitChannel fires.
func (o *Orchestrator) Rescan() {
	o.scanEndpoints()
	o.scanInventory()

	if o.pendingInit != nil {
		o.pendingInit.Stop()
	}
	o.pendingInit = time.NewTimer(initializeDelay)
}

// CompleteRescan runs step 5: initialize on every known Drive Record.
func (o *Orchestrator) CompleteRescan() {
	for _, d := range o.drives {
		d.Initialize()
	}
	o.pendingInit = nil
}

// scanEndpoints implements rescan steps 1-3.
func (o *Orchestrator) scanEndpoints() {
	objs, err := getManagedObjects(o.conn, mctpBusName, mctpRootPath)
	if err != nil {
		o.log.Errorf("enumerate MCTP endpoints: %s", err)
		return
	}

	for path, ifaces := range objs {
		epProps, ok := ifaces[mctpEndpointInterface]
		if !ok {
			continue
		}
		eid, ok := variantUint8(epProps["EID"])
		if !ok {
			o.log.Debugf("MCTP endpoint %s missing EID property, skipping", path)
			continue
		}
		msgTypes, _ := variantByteSlice(epProps["SupportedMessageTypes"])

		id := nvmemi.Identity{EID: eid, SupportedMsgTypes: toMsgTypeSet(msgTypes)}
		if !id.SupportsNVMeMI() {
			continue
		}

		o.pathEID[path] = eid
		if _, exists := o.drives[eid]; exists {
			continue
		}

		var addr []byte
		if sockProps, ok := ifaces[unixSocketInterface]; ok {
			addr, _ = variantByteSlice(sockProps["Address"])
		}
		// Step 3: "append a null byte to the address."
		id.TransportAddress = append(append([]byte{}, addr...), 0)

		ep := nvmemi.NewEndpoint(o.root, id, o.lib, o.log)
		d := drive.New(eid, ep, o.ps, o.metrics, o.log)
		if bus, ok := variantInt(ifaces, i2cDeviceInterface, "Bus"); ok {
			d.UpdateI2CBus(bus)
		}
		o.drives[eid] = d
		o.log.Infof("discovered drive EID %d at %s", eid, path)
	}
}

// scanInventory implements rescan step 4: match physical inventory to
// already-discovered Drive Records by I2C bus number.
func (o *Orchestrator) scanInventory() {
	byBus := make(map[int]*drive.Drive, len(o.drives))
	for _, d := range o.drives {
		byBus[d.I2CBus] = d
	}

	objs, err := getManagedObjects(o.conn, inventoryBusName, inventoryRootPath)
	if err != nil {
		o.log.Errorf("enumerate inventory objects: %s", err)
	}
	for path, ifaces := range objs {
		if _, ok := ifaces[itemNVMeInterface]; !ok {
			continue
		}
		if _, ok := ifaces[itemDriveInterface]; !ok {
			continue
		}
		if _, ok := ifaces[i2cDeviceInterface]; !ok {
			continue
		}
		bus, ok := variantInt(ifaces, i2cDeviceInterface, "Bus")
		if !ok {
			continue
		}
		d, ok := byBus[bus]
		if !ok {
			continue
		}

		if locProps, ok := ifaces[locationInterface]; ok {
			if code, ok := variantString(locProps["LocationCode"]); ok {
				d.UpdateLocation(code, drive.LocationSlot)
			}
		}
		if driveProps, ok := ifaces[itemDriveInterface]; ok {
			if ff, ok := variantString(driveProps["FormFactor"]); ok {
				d.UpdateFormFactor(drive.ParseFormFactor(ff))
			}
		}
		o.log.Debugf("matched inventory object %s to drive EID %d (bus %d)", path, d.EID, bus)
	}

	o.applyInventoryConfig()
}

// applyInventoryConfig fills in location/form-factor from the static
// drive.json fallback for any drive the object-bus inventory pass left
// unmatched, per spec.md §6.
func (o *Orchestrator) applyInventoryConfig() {
	for _, entry := range o.inventoryConfig.Drive {
		d, ok := o.drives[entry.EID]
		if !ok {
			continue
		}
		if d.LocationCode == "" && entry.Location != "" {
			d.UpdateLocation(entry.Location, drive.LocationUnknown)
		}
		if d.FormFactor == drive.FormFactorUnknown && entry.FormFactor != "" {
			d.UpdateFormFactor(drive.ParseFormFactor(entry.FormFactor))
		}
	}
}

func getManagedObjects(conn *dbus.Conn, busName string, path dbus.ObjectPath) (map[dbus.ObjectPath]map[string]map[string]dbus.Variant, error) {
	var result map[dbus.ObjectPath]map[string]map[string]dbus.Variant
	err := conn.Object(busName, path).Call(objectManagerInterface+".GetManagedObjects", 0).Store(&result)
	return result, err
}

func toMsgTypeSet(types []byte) map[uint8]struct{} {
	set := make(map[uint8]struct{}, len(types))
	for _, t := range types {
		set[t] = struct{}{}
	}
	return set
}

func variantUint8(v dbus.Variant) (uint8, bool) {
	u, ok := v.Value().(uint8)
	return u, ok
}

func variantString(v dbus.Variant) (string, bool) {
	s, ok := v.Value().(string)
	return s, ok
}

func variantByteSlice(v dbus.Variant) ([]byte, bool) {
	b, ok := v.Value().([]byte)
	return b, ok
}

// variantInt reads a property that may be marshaled as any of the
// integer widths D-Bus allows, from the named interface's property map.
func variantInt(ifaces map[string]map[string]dbus.Variant, iface, prop string) (int, bool) {
	props, ok := ifaces[iface]
	if !ok {
		return 0, false
	}
	v, ok := props[prop]
	if !ok {
		return 0, false
	}
	switch n := v.Value().(type) {
	case int64:
		return int(n), true
	case uint64:
		return int(n), true
	case int32:
		return int(n), true
	case uint32:
		return int(n), true
	case int:
		return n, true
	default:
		return 0, false
	}
}

// Close unsubscribes from D-Bus signals and closes every remaining Drive
// Record's endpoint.
func (o *Orchestrator) Close() {
	o.conn.RemoveSignal(o.sigCh)
	for eid, d := range o.drives {
		d.Close()
		delete(o.drives, eid)
	}
}
