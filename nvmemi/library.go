//
// (C) Copyright 2018-2026 NVIDIA Corporation.
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//
package nvmemi

import (
	"syscall"
	"time"
)

// MILibrary is the contract this package needs from the NVMe-MI library
// wrapping the MCTP socket transport (spec.md §1, out of scope collaborator:
// "The MCTP socket transport itself, wrapped by the NVMe-MI library"). It is
// modeled directly on the teacher's lib/spdk ENV/NVME split: a thin,
// injectable seam between this package's typed command surface and the
// C library that actually talks to hardware, so the command surface can be
// exercised in tests without real silicon.
//
// Every method returns (ret int, errno syscall.Errno) following the same
// discipline as the real library: ret < 0 means "OS error, see errno";
// ret > 0 means "NVMe-MI protocol status, see Status(ret)"; ret == 0 means
// success.
type MILibrary interface {
	ScanControllers(eid uint8, addr []byte) (handles []uint16, ret int, errno syscall.Errno)
	SubsystemHealthPoll(eid uint8, addr []byte, ctrl uint16) (raw SubsystemHealthRaw, ret int, errno syscall.Errno)
	PortInfo(eid uint8, addr []byte, ctrl uint16, port int) (raw PortInfoRaw, ret int, errno syscall.Errno)
	AdminIdentify(eid uint8, addr []byte, ctrl uint16, cns uint8, cntid uint16, length, offset int) (data []byte, ret int, errno syscall.Errno)
	AdminGetLogPage(eid uint8, addr []byte, ctrl uint16, lid, lsp uint8, nsid uint32, length, offset int) (data []byte, ret int, errno syscall.Errno)
	AdminSanitize(eid uint8, addr []byte, ctrl uint16, action uint8, nodas bool, passes uint16, pattern uint32) (ret int, errno syscall.Errno)
	AdminFWCommit(eid uint8, addr []byte, ctrl uint16, action, slot uint8, bpid bool) (ret int, errno syscall.Errno)
	AdminSecuritySend(eid uint8, addr []byte, ctrl uint16, proto uint8, spsp uint16, data []byte) (ret int, errno syscall.Errno)
	AdminSecurityReceive(eid uint8, addr []byte, ctrl uint16, proto uint8, spsp uint16, length uint32) (data []byte, ret int, errno syscall.Errno)
	RawAdminXfer(eid uint8, addr []byte, req []byte, timeout time.Duration) (resp []byte, ret int, errno syscall.Errno)
}

// SubsystemHealthRaw is the fixed-size record returned by Subsystem Health
// Poll, before it is turned into the SubsystemHealth result type.
type SubsystemHealthRaw struct {
	NSS               uint8
	CompositeTemp     int16
	SmartWarnings     uint8
	PDLU              uint8
	CCS               uint32
}

// PortInfoRaw is one entry of the port table returned by PCIe Port Info.
type PortInfoRaw struct {
	PortType      uint8
	MaxSpeedGbs   float64
	MaxLaneWidth  uint8
	CurSpeedGbs   float64
	CurLaneWidth  uint8
}

// unimplementedLibrary is the default MILibrary: the real binding to
// libnvme-mi lives outside this repository's scope (spec.md §1); this
// stub documents the seam and fails loudly rather than pretending to talk
// to hardware that isn't there.
type unimplementedLibrary struct{}

func (unimplementedLibrary) ScanControllers(uint8, []byte) ([]uint16, int, syscall.Errno) {
	return nil, -int(syscall.ENOSYS), syscall.ENOSYS
}
func (unimplementedLibrary) SubsystemHealthPoll(uint8, []byte, uint16) (SubsystemHealthRaw, int, syscall.Errno) {
	return SubsystemHealthRaw{}, -int(syscall.ENOSYS), syscall.ENOSYS
}
func (unimplementedLibrary) PortInfo(uint8, []byte, uint16, int) (PortInfoRaw, int, syscall.Errno) {
	return PortInfoRaw{}, -int(syscall.ENOSYS), syscall.ENOSYS
}
func (unimplementedLibrary) AdminIdentify(uint8, []byte, uint16, uint8, uint16, int, int) ([]byte, int, syscall.Errno) {
	return nil, -int(syscall.ENOSYS), syscall.ENOSYS
}
func (unimplementedLibrary) AdminGetLogPage(uint8, []byte, uint16, uint8, uint8, uint32, int, int) ([]byte, int, syscall.Errno) {
	return nil, -int(syscall.ENOSYS), syscall.ENOSYS
}
func (unimplementedLibrary) AdminSanitize(uint8, []byte, uint16, uint8, bool, uint16, uint32) (int, syscall.Errno) {
	return -int(syscall.ENOSYS), syscall.ENOSYS
}
func (unimplementedLibrary) AdminFWCommit(uint8, []byte, uint16, uint8, uint8, bool) (int, syscall.Errno) {
	return -int(syscall.ENOSYS), syscall.ENOSYS
}
func (unimplementedLibrary) AdminSecuritySend(uint8, []byte, uint16, uint8, uint16, []byte) (int, syscall.Errno) {
	return -int(syscall.ENOSYS), syscall.ENOSYS
}
func (unimplementedLibrary) AdminSecurityReceive(uint8, []byte, uint16, uint8, uint16, uint32) ([]byte, int, syscall.Errno) {
	return nil, -int(syscall.ENOSYS), syscall.ENOSYS
}
func (unimplementedLibrary) RawAdminXfer(uint8, []byte, []byte, time.Duration) ([]byte, int, syscall.Errno) {
	return nil, -int(syscall.ENOSYS), syscall.ENOSYS
}

var _ MILibrary = unimplementedLibrary{}

// UnimplementedLibrary returns the default MILibrary used when no real
// libnvme-mi binding has been wired in (production callers that have one
// pass it to nvmemi.NewEndpoint directly instead).
func UnimplementedLibrary() MILibrary { return unimplementedLibrary{} }
