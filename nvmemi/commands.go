//
// (C) Copyright 2018-2026 NVIDIA Corporation.
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//
package nvmemi

import (
	"encoding/binary"
	"time"

	"github.com/NVIDIA/nvidia-nvme-manager/faults"
)

// Command Surface: one method per NVMe-MI command this daemon issues,
// each taking command-specific parameters plus a Completion. Every
// completion is delivered on the caller's reactor through Worker.Completions,
// never invoked directly on the worker goroutine (spec.md §4.2).

// lib returns the injected MILibrary, defaulting to the unimplemented stub
// when the Endpoint was built without one (production wiring always sets
// one; tests supply a fake).
func (e *Endpoint) lib() MILibrary {
	if e.library != nil {
		return e.library
	}
	return unimplementedLibrary{}
}

// ScanControllers enumerates controller handles behind the endpoint. The
// last handle returned becomes the endpoint's primary controller
// (spec.md §4.3 "Initialize"); an empty, successful result means the
// endpoint answered but reports no controllers.
func (e *Endpoint) ScanControllers(complete Completion) error {
	addr := e.Identity.TransportAddress
	eid := e.Identity.EID
	return e.submit("ScanControllers", func() (interface{}, error) {
		handles, ret, errno := e.lib().ScanControllers(eid, addr)
		if err := translateReturn(ret, errno); err != nil {
			e.setPresent(false)
			return nil, err
		}
		e.setPresent(true)
		if len(handles) > 0 {
			e.mu.Lock()
			e.primaryCtrl = handles[len(handles)-1]
			e.mu.Unlock()
		}
		return handles, nil
	}, complete)
}

// SubsystemHealth is the parsed result of a Subsystem Health Poll, the
// input to the Health Evaluator's SMART/critical-warning fusion.
type SubsystemHealth struct {
	NSS               uint8
	CompositeTempC    int16
	SmartWarnings     uint8
	PercentDriveLife  uint8
	CompositeCtrlSts  uint32
}

// Functional reports the Subsystem Status "drive functional" bit (NSS bit
// 5), per spec.md §4.4.
func (h SubsystemHealth) Functional() bool { return h.NSS&0x20 != 0 }

// SubsystemHealthPoll fetches the fixed-size health record the Health
// Evaluator polls every 5 seconds for a present drive (spec.md §4.4).
func (e *Endpoint) SubsystemHealthPoll(complete Completion) error {
	addr := e.Identity.TransportAddress
	eid := e.Identity.EID
	ctrl := e.PrimaryController()
	return e.submit("SubsystemHealthPoll", func() (interface{}, error) {
		raw, ret, errno := e.lib().SubsystemHealthPoll(eid, addr, ctrl)
		if err := translateReturn(ret, errno); err != nil {
			return nil, err
		}
		return SubsystemHealth{
			NSS:              raw.NSS,
			CompositeTempC:   raw.CompositeTemp,
			SmartWarnings:    raw.SmartWarnings,
			PercentDriveLife: raw.PDLU,
			CompositeCtrlSts: raw.CCS,
		}, nil
	}, complete)
}

// portTypePCIe is the NVMe-MI Port Information "Port Type" value for a
// PCIe port (spec.md §4.3 "PCIe Port Info").
const portTypePCIe = 0x1

// PortInfo is the Drive Record's link-speed/lane-width snapshot, derived
// from the first PCIe-type port reported by PCIe Port Info.
type PortInfo struct {
	MaxLinkSpeedGBs float64
	MaxLaneWidth    uint8
	CurLinkSpeedGBs float64
	CurLaneWidth    uint8
}

// maxPorts bounds how many port table entries Port Info walks looking for
// the first PCIe-type port.
const maxPorts = 8

// PCIePortInfo walks the endpoint's port table and returns the first port
// of type PCIe, per spec.md §4.3. faults.ErrNotAllowed if none is found.
func (e *Endpoint) PCIePortInfo(complete Completion) error {
	addr := e.Identity.TransportAddress
	eid := e.Identity.EID
	ctrl := e.PrimaryController()
	return e.submit("PCIePortInfo", func() (interface{}, error) {
		for port := 0; port < maxPorts; port++ {
			raw, ret, errno := e.lib().PortInfo(eid, addr, ctrl, port)
			if err := translateReturn(ret, errno); err != nil {
				return nil, err
			}
			if raw.PortType != portTypePCIe {
				continue
			}
			return PortInfo{
				MaxLinkSpeedGBs: raw.MaxSpeedGbs,
				MaxLaneWidth:    raw.MaxLaneWidth,
				CurLinkSpeedGBs: raw.CurSpeedGbs,
				CurLaneWidth:    raw.CurLaneWidth,
			}, nil
		}
		return nil, faults.ErrNotAllowed
	}, complete)
}

// CNS (Controller or Namespace Structure) values for the two Admin
// Identify variants this daemon issues.
const (
	cnsIdentifyController          = 0x01
	cnsIdentifySecondaryCtrlList   = 0x15
)

// identifyControllerLength is the fixed 4096-byte Identify Controller data
// structure size from the base NVMe specification.
const identifyControllerLength = 4096

// IdentifyController is the subset of the Identify Controller data
// structure this daemon projects onto the Drive Record and bus (spec.md
// §3, §4.3).
type IdentifyController struct {
	VendorID         uint16
	SerialNumber     string
	ModelNumber      string
	FirmwareRevision string
	TotalCapacity    uint64
	SANICAP          uint32
}

// AdminIdentify issues CNS=Identify Controller and parses the fixed fields
// the Drive Record needs out of the 4096-byte structure (spec.md §4.3,
// §9 "Identify field layout").
func (e *Endpoint) AdminIdentify(complete Completion) error {
	addr := e.Identity.TransportAddress
	eid := e.Identity.EID
	ctrl := e.PrimaryController()
	return e.submit("AdminIdentify", func() (interface{}, error) {
		data, ret, errno := e.lib().AdminIdentify(eid, addr, ctrl, cnsIdentifyController, 0, identifyControllerLength, 0)
		if err := translateReturn(ret, errno); err != nil {
			return nil, err
		}
		if len(data) < identifyControllerLength {
			return nil, faults.BadMessage(0, "short Identify Controller response")
		}
		return parseIdentifyController(data), nil
	}, complete)
}

func parseIdentifyController(data []byte) IdentifyController {
	return IdentifyController{
		VendorID:         binary.LittleEndian.Uint16(data[0:2]),
		SerialNumber:     asciiField(data[4:24]),
		ModelNumber:      asciiField(data[24:64]),
		FirmwareRevision: asciiField(data[64:72]),
		TotalCapacity:    binary.LittleEndian.Uint64(data[280:288]),
		SANICAP:          binary.LittleEndian.Uint32(data[328:332]),
	}
}

// asciiField trims an NVMe fixed-width, space-padded ASCII field.
func asciiField(b []byte) string {
	end := len(b)
	for end > 0 && (b[end-1] == ' ' || b[end-1] == 0) {
		end--
	}
	return string(b[:end])
}

// sanicapNODMMASShift/Mask locate the two-bit "No-Deallocate Modifies
// Media After Sanitize" field inside SANICAP, per spec.md §4.3/§9.
const (
	sanicapCryptoErase = 1 << 0
	sanicapBlockErase  = 1 << 1
	sanicapOverwrite   = 1 << 2
	sanicapNODMMASShift = 30
	sanicapNODMMASMask  = 0x3
)

// SanitizeCapabilities decodes SANICAP into the methods a drive supports
// and whether a no-deallocate sanitize still modifies user data
// afterward, feeding spec.md §4.3/§8's NODMMAS-driven field selection.
type SanitizeCapabilities struct {
	CryptoErase bool
	BlockErase  bool
	Overwrite   bool
	NODMMAS     uint8
}

// ParseSANICAP decodes the Identify Controller SANICAP field.
func ParseSANICAP(v uint32) SanitizeCapabilities {
	return SanitizeCapabilities{
		CryptoErase: v&sanicapCryptoErase != 0,
		BlockErase:  v&sanicapBlockErase != 0,
		Overwrite:   v&sanicapOverwrite != 0,
		NODMMAS:     uint8((v >> sanicapNODMMASShift) & sanicapNODMMASMask),
	}
}

// AdminIdentifySecondaryControllers issues CNS=Secondary Controller List.
// Neither discovery nor the drive lifecycle calls it.
func (e *Endpoint) AdminIdentifySecondaryControllers(complete Completion) error {
	addr := e.Identity.TransportAddress
	eid := e.Identity.EID
	ctrl := e.PrimaryController()
	return e.submit("AdminIdentifySecondaryControllers", func() (interface{}, error) {
		data, ret, errno := e.lib().AdminIdentify(eid, addr, ctrl, cnsIdentifySecondaryCtrlList, 0, identifyControllerLength, 0)
		if err := translateReturn(ret, errno); err != nil {
			return nil, err
		}
		return data, nil
	}, complete)
}

// Log Page Identifiers this daemon reads, from the base NVMe spec.
const (
	LIDError                   = 0x01
	LIDSMART                   = 0x02
	LIDFWSlot                  = 0x03
	LIDChangedNamespaces       = 0x04
	LIDCommandEffects          = 0x05
	LIDDeviceSelfTest          = 0x06
	LIDTelemetryHost           = 0x07
	LIDTelemetryController     = 0x08
	LIDReservationNotification = 0x80
	LIDSanitizeStatus          = 0x81
)

// LSP bits Telemetry Host Get Log Page uses to create or retain a
// telemetry data block, per spec.md §4.3/§10.
const (
	lspTelemetryCreate = 0x01
	lspTelemetryRetain = 0x02
)

var knownLIDs = map[uint8]struct{}{
	LIDError: {}, LIDSMART: {}, LIDFWSlot: {}, LIDChangedNamespaces: {},
	LIDCommandEffects: {}, LIDDeviceSelfTest: {}, LIDTelemetryHost: {},
	LIDTelemetryController: {}, LIDReservationNotification: {}, LIDSanitizeStatus: {},
}

// telemetryHeaderLength is the fixed portion of a Telemetry log page that
// carries the data block size (dalb3) before the variable payload.
const telemetryHeaderLength = 512

// telemetryBlockSize is the fixed unit dalb3 counts in, per the base NVMe
// specification's Telemetry Log Page.
const telemetryBlockSize = 512

// AdminGetLogPage fetches an Admin Get Log Page. Telemetry Host pages
// require lsp to be Create(0x01) or Retain(0x02); any other value is
// rejected as invalid, per spec.md:93. Create issues a single call and
// returns only the header the create command produces, with no second
// fetch; Retain (and Telemetry Controller, which has no create step)
// use the two-step size-then-fetch sequence: first read the fixed
// header to learn dalb3, then re-read with the full computed size.
// Unknown LIDs are rejected without ever reaching the worker, per
// spec.md §7.
func (e *Endpoint) AdminGetLogPage(lid, lsp uint8, nsid uint32, complete Completion) error {
	if _, ok := knownLIDs[lid]; !ok {
		return faults.InvalidArgument("unsupported log page identifier")
	}
	addr := e.Identity.TransportAddress
	eid := e.Identity.EID
	ctrl := e.PrimaryController()

	if lid == LIDTelemetryHost || lid == LIDTelemetryController {
		effectiveLSP := lsp
		if lid == LIDTelemetryController {
			// Controller telemetry has no create step; always retain.
			effectiveLSP = lspTelemetryRetain
		} else if lsp != lspTelemetryCreate && lsp != lspTelemetryRetain {
			return faults.InvalidArgument("invalid lsp for telemetry host log")
		}
		createOnly := effectiveLSP == lspTelemetryCreate

		return e.submit("AdminGetLogPage", func() (interface{}, error) {
			header, ret, errno := e.lib().AdminGetLogPage(eid, addr, ctrl, lid, effectiveLSP, nsid, telemetryHeaderLength, 0)
			if err := translateReturn(ret, errno); err != nil {
				return nil, err
			}
			if createOnly {
				return header, nil
			}
			if len(header) < 16 {
				return nil, faults.BadMessage(0, "short telemetry header")
			}
			dalb3 := header[15]
			full := (int(dalb3) + 1) * telemetryBlockSize

			data, ret, errno := e.lib().AdminGetLogPage(eid, addr, ctrl, lid, effectiveLSP, nsid, full, 0)
			if err := translateReturn(ret, errno); err != nil {
				return nil, err
			}
			return data, nil
		}, complete)
	}

	length := logPageLength(lid)
	return e.submit("AdminGetLogPage", func() (interface{}, error) {
		data, ret, errno := e.lib().AdminGetLogPage(eid, addr, ctrl, lid, lsp, nsid, length, 0)
		if err := translateReturn(ret, errno); err != nil {
			return nil, err
		}
		return data, nil
	}, complete)
}

// logPageLength returns the fixed transfer length for the non-telemetry
// log pages this daemon reads.
func logPageLength(lid uint8) int {
	switch lid {
	case LIDSMART:
		return 512
	case LIDFWSlot:
		return 512
	case LIDSanitizeStatus:
		return 512
	case LIDError:
		return 4096
	default:
		return 512
	}
}

// SanitizeStatus is the parsed Sanitize Status log page the sanitize
// sub-state machine polls while a sanitize operation is active (spec.md
// §4.3 "sanitize sub-state"), laid out per the base NVMe specification:
// SPROG at bytes 0-1, SSTAT at 2-3, then the six estimated-time fields.
type SanitizeStatus struct {
	SPROG  uint16
	SSTAT  uint16
	ETO    uint32 // estimated time, overwrite
	ETBE   uint32 // estimated time, block erase
	ETCE   uint32 // estimated time, crypto erase
	ETOND  uint32 // ETO, no-deallocate media modification after sanitize
	ETBEND uint32 // ETBE, no-deallocate media modification after sanitize
	ETCEND uint32 // ETCE, no-deallocate media modification after sanitize
}

// Sanitize Status log page SSTAT status field values (bits 2:0).
const (
	sanitizeStatusNeverSanitized           = 0x0
	sanitizeStatusCompleteSuccess          = 0x1
	sanitizeStatusInProgress               = 0x2
	sanitizeStatusCompletedFailed          = 0x3
	sanitizeStatusNoDeallocCompleteSuccess = 0x4

	sanitizeSstatStatusMask = 0x7
)

// Status returns the 3-bit sanitize status field from SSTAT.
func (s SanitizeStatus) Status() uint8 {
	return uint8(s.SSTAT) & sanitizeSstatStatusMask
}

// InProgress reports whether SSTAT indicates an active sanitize.
func (s SanitizeStatus) InProgress() bool {
	return s.Status() == sanitizeStatusInProgress
}

// Terminal reports whether SSTAT indicates the sanitize operation has
// finished, successfully or not.
func (s SanitizeStatus) Terminal() bool {
	switch s.Status() {
	case sanitizeStatusCompleteSuccess, sanitizeStatusNoDeallocCompleteSuccess, sanitizeStatusCompletedFailed:
		return true
	default:
		return false
	}
}

// Successful reports whether a terminal SSTAT indicates success.
func (s SanitizeStatus) Successful() bool {
	switch s.Status() {
	case sanitizeStatusCompleteSuccess, sanitizeStatusNoDeallocCompleteSuccess:
		return true
	default:
		return false
	}
}

// ParseSanitizeStatus decodes the fields of the Sanitize Status log page
// this daemon reads during the monitoring sub-state.
func ParseSanitizeStatus(data []byte) (SanitizeStatus, error) {
	if len(data) < 32 {
		return SanitizeStatus{}, faults.BadMessage(0, "short sanitize status log page")
	}
	return SanitizeStatus{
		SPROG:  binary.LittleEndian.Uint16(data[0:2]),
		SSTAT:  binary.LittleEndian.Uint16(data[2:4]),
		ETO:    binary.LittleEndian.Uint32(data[8:12]),
		ETBE:   binary.LittleEndian.Uint32(data[12:16]),
		ETCE:   binary.LittleEndian.Uint32(data[16:20]),
		ETOND:  binary.LittleEndian.Uint32(data[20:24]),
		ETBEND: binary.LittleEndian.Uint32(data[24:28]),
		ETCEND: binary.LittleEndian.Uint32(data[28:32]),
	}, nil
}

// SanitizeAction selects the sanitize method, one of the three this
// daemon exposes through the SecureErase D-Bus interface (spec.md §6).
type SanitizeAction uint8

const (
	SanitizeActionOverwrite   SanitizeAction = 0x3
	SanitizeActionBlockErase  SanitizeAction = 0x2
	SanitizeActionCryptoErase SanitizeAction = 0x4
)

// AdminSanitize starts a sanitize operation. NODAS is always set, per
// spec.md §4.3: this daemon never asks the drive to deallocate blocks as
// part of the operation, deferring entirely to NODMMAS for whether the
// result still exposes prior user data.
func (e *Endpoint) AdminSanitize(action SanitizeAction, overwritePasses uint16, overwritePattern uint32, complete Completion) error {
	addr := e.Identity.TransportAddress
	eid := e.Identity.EID
	ctrl := e.PrimaryController()
	return e.submit("AdminSanitize", func() (interface{}, error) {
		ret, errno := e.lib().AdminSanitize(eid, addr, ctrl, uint8(action), true, overwritePasses, overwritePattern)
		if err := translateReturn(ret, errno); err != nil {
			return nil, err
		}
		return nil, nil
	}, complete)
}

// FW Commit actions from the base NVMe specification that this daemon
// issues.
const (
	FWCommitActionReplaceActivateImmediate = 0x2
	FWCommitActionReplaceActivateOnReset   = 0x3
)

// AdminFWCommit commits a previously downloaded firmware image into the
// given slot, mapping the command-specific success set via
// translateFWCommitReturn (spec.md §4.2).
func (e *Endpoint) AdminFWCommit(action, slot uint8, bpid bool, complete Completion) error {
	addr := e.Identity.TransportAddress
	eid := e.Identity.EID
	ctrl := e.PrimaryController()
	return e.submit("AdminFWCommit", func() (interface{}, error) {
		ret, errno := e.lib().AdminFWCommit(eid, addr, ctrl, action, slot, bpid)
		if err := translateFWCommitReturn(ret, errno); err != nil {
			return nil, err
		}
		return nil, nil
	}, complete)
}

// maxSecurityTransferLength bounds Security Send/Receive payloads, per
// spec.md §4.2 ("transfer length greater than 4096 is rejected").
const maxSecurityTransferLength = 4096

// AdminSecuritySend forwards a security protocol payload to the drive.
func (e *Endpoint) AdminSecuritySend(proto uint8, spsp uint16, data []byte, complete Completion) error {
	if len(data) > maxSecurityTransferLength {
		return faults.InvalidArgument("security send transfer too large")
	}
	addr := e.Identity.TransportAddress
	eid := e.Identity.EID
	ctrl := e.PrimaryController()
	return e.submit("AdminSecuritySend", func() (interface{}, error) {
		ret, errno := e.lib().AdminSecuritySend(eid, addr, ctrl, proto, spsp, data)
		if err := translateReturn(ret, errno); err != nil {
			return nil, err
		}
		return nil, nil
	}, complete)
}

// AdminSecurityReceive reads back a security protocol response.
func (e *Endpoint) AdminSecurityReceive(proto uint8, spsp uint16, length uint32, complete Completion) error {
	if length > maxSecurityTransferLength {
		return faults.InvalidArgument("security receive transfer too large")
	}
	addr := e.Identity.TransportAddress
	eid := e.Identity.EID
	ctrl := e.PrimaryController()
	return e.submit("AdminSecurityReceive", func() (interface{}, error) {
		data, ret, errno := e.lib().AdminSecurityReceive(eid, addr, ctrl, proto, spsp, length)
		if err := translateReturn(ret, errno); err != nil {
			return nil, err
		}
		return data, nil
	}, complete)
}

// RawAdminXfer issues a caller-constructed Admin command frame verbatim,
// for diagnostics the typed surface doesn't cover (spec.md §4.2,
// §10 "Basic/MI transport sum type seam"). If timeout is non-zero it
// overrides the endpoint's default for the duration of this one call,
// restored afterward even on error.
func (e *Endpoint) RawAdminXfer(req []byte, timeout time.Duration, complete Completion) error {
	addr := e.Identity.TransportAddress
	eid := e.Identity.EID
	if timeout <= 0 {
		timeout = e.defaultTimeout
	}
	return e.submit("RawAdminXfer", func() (interface{}, error) {
		return e.withTimeout(timeout, func() (interface{}, error) {
			data, ret, errno := e.lib().RawAdminXfer(eid, addr, req, timeout)
			if err := translateReturn(ret, errno); err != nil {
				return nil, err
			}
			return data, nil
		})
	}, complete)
}
