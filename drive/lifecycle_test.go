//
// (C) Copyright 2018-2026 NVIDIA Corporation.
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//
package drive

import (
	"encoding/binary"
	"syscall"
	"testing"
	"time"

	"github.com/NVIDIA/nvidia-nvme-manager/events"
	"github.com/NVIDIA/nvidia-nvme-manager/nvmemi"
)

// fakeLifecycleLibrary is a scriptable nvmemi.MILibrary fake, grounded on
// the same style of injected fake nvmemi/commands_test.go uses for its own
// command-level tests. Only the three calls Initialize's pipeline issues
// (Scan Controllers, Admin Identify, PCIe Port Info) are configurable;
// everything else returns zero values, which no test here exercises.
type fakeLifecycleLibrary struct {
	scanHandles []uint16
	scanRet     int

	identifyData  []byte
	identifyRet   int
	identifyCalls int

	ports   []nvmemi.PortInfoRaw
	portRet int
}

func (f *fakeLifecycleLibrary) ScanControllers(uint8, []byte) ([]uint16, int, syscall.Errno) {
	return f.scanHandles, f.scanRet, 0
}

func (f *fakeLifecycleLibrary) SubsystemHealthPoll(uint8, []byte, uint16) (nvmemi.SubsystemHealthRaw, int, syscall.Errno) {
	return nvmemi.SubsystemHealthRaw{}, 0, 0
}

func (f *fakeLifecycleLibrary) PortInfo(_ uint8, _ []byte, _ uint16, port int) (nvmemi.PortInfoRaw, int, syscall.Errno) {
	if port >= len(f.ports) {
		return nvmemi.PortInfoRaw{}, 0, 0
	}
	return f.ports[port], f.portRet, 0
}

func (f *fakeLifecycleLibrary) AdminIdentify(uint8, []byte, uint16, uint8, uint16, int, int) ([]byte, int, syscall.Errno) {
	f.identifyCalls++
	if f.identifyRet != 0 {
		return nil, f.identifyRet, 0
	}
	return f.identifyData, 0, 0
}

func (f *fakeLifecycleLibrary) AdminGetLogPage(uint8, []byte, uint16, uint8, uint8, uint32, int, int) ([]byte, int, syscall.Errno) {
	return nil, 0, 0
}

func (f *fakeLifecycleLibrary) AdminSanitize(uint8, []byte, uint16, uint8, bool, uint16, uint32) (int, syscall.Errno) {
	return 0, 0
}

func (f *fakeLifecycleLibrary) AdminFWCommit(uint8, []byte, uint16, uint8, uint8, bool) (int, syscall.Errno) {
	return 0, 0
}

func (f *fakeLifecycleLibrary) AdminSecuritySend(uint8, []byte, uint16, uint8, uint16, []byte) (int, syscall.Errno) {
	return 0, 0
}

func (f *fakeLifecycleLibrary) AdminSecurityReceive(uint8, []byte, uint16, uint8, uint16, uint32) ([]byte, int, syscall.Errno) {
	return nil, 0, 0
}

func (f *fakeLifecycleLibrary) RawAdminXfer(uint8, []byte, []byte, time.Duration) ([]byte, int, syscall.Errno) {
	return nil, 0, 0
}

var _ nvmemi.MILibrary = (*fakeLifecycleLibrary)(nil)

// identifyFixture builds a 4096-byte Identify Controller structure with
// the fixed fields Initialize's pipeline parses out, laid out the same
// way nvmemi/commands.go's parseIdentifyController reads them.
func identifyFixture() []byte {
	const identifyControllerLength = 4096
	data := make([]byte, identifyControllerLength)
	binary.LittleEndian.PutUint16(data[0:2], 0x144D)
	copy(data[4:24], []byte("SN12345             "))
	copy(data[24:64], []byte("MODEL-X                                 "))
	copy(data[64:72], []byte("FW0100  "))
	binary.LittleEndian.PutUint64(data[280:288], 4000787030016)
	binary.LittleEndian.PutUint32(data[328:332], 0x80000007)
	return data
}

// newLifecycleDrive wires a Drive to a fresh Root/Worker and fake library,
// the same collaborator shape discovery.Orchestrator builds for a newly
// discovered endpoint.
func newLifecycleDrive(lib nvmemi.MILibrary) (*Drive, *nvmemi.Worker, func()) {
	root := nvmemi.NewRoot(testLogger(), nil)
	worker := root.Acquire()
	ep := nvmemi.NewEndpoint(root, nvmemi.Identity{EID: 9}, lib, testLogger())
	ps := events.NewPubSub(testLogger())
	d := New(9, ep, ps, nil, testLogger())
	cleanup := func() {
		ep.Close()
		root.Release()
		ps.Close()
	}
	return d, worker, cleanup
}

// drainN delivers n completions from w's Completions channel in order,
// the same drain-and-deliver shape server.Run's reactor loop uses.
func drainN(t *testing.T, w *nvmemi.Worker, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		pc := <-w.Completions()
		nvmemi.Deliver(pc)
	}
}

func TestInitialize_HappyPathReachesPresent(t *testing.T) {
	lib := &fakeLifecycleLibrary{
		scanHandles:  []uint16{1, 2, 5},
		identifyData: identifyFixture(),
		ports: []nvmemi.PortInfoRaw{
			{PortType: 0x1, MaxSpeedGbs: 16, MaxLaneWidth: 4, CurSpeedGbs: 8, CurLaneWidth: 4},
		},
	}
	d, worker, cleanup := newLifecycleDrive(lib)
	defer cleanup()

	d.Initialize()
	// Scan Controllers -> Admin Identify -> PCIe Port Info: one
	// completion each on the happy path.
	drainN(t, worker, 3)

	if d.State != StatePresent {
		t.Fatalf("State = %s, want StatePresent", d.State)
	}
	if !d.Present {
		t.Fatal("Present = false, want true")
	}
	if d.PrimaryController != 5 {
		t.Fatalf("PrimaryController = %d, want 5 (last scan handle)", d.PrimaryController)
	}
	if d.Serial != "SN12345" {
		t.Fatalf("Serial = %q, want %q", d.Serial, "SN12345")
	}
	if d.Activity != ActivityPolling {
		t.Fatalf("Activity = %s, want ActivityPolling", d.Activity)
	}
	if lib.identifyCalls != 1 {
		t.Fatalf("identifyCalls = %d, want 1", lib.identifyCalls)
	}
}

func TestInitialize_IdentifyRetriesCapAtMaxAttempts(t *testing.T) {
	lib := &fakeLifecycleLibrary{
		scanHandles: []uint16{5},
		identifyRet: 1, // every Admin Identify call fails
		ports: []nvmemi.PortInfoRaw{
			{PortType: 0x1, MaxSpeedGbs: 16, MaxLaneWidth: 4, CurSpeedGbs: 8, CurLaneWidth: 4},
		},
	}
	d, worker, cleanup := newLifecycleDrive(lib)
	defer cleanup()

	d.Initialize()
	// Scan Controllers (1) + Admin Identify retried maxIdentifyAttempts
	// times (3) + PCIe Port Info (1) once identify gives up.
	drainN(t, worker, 1+maxIdentifyAttempts+1)

	if lib.identifyCalls != maxIdentifyAttempts {
		t.Fatalf("identifyCalls = %d, want %d", lib.identifyCalls, maxIdentifyAttempts)
	}
	if d.identifyAttempt != 0 {
		t.Fatalf("identifyAttempt = %d, want 0 (reset by finishIdentify)", d.identifyAttempt)
	}
	// Identify never succeeded, so the pipeline continues with link info
	// only rather than getting stuck.
	if d.State != StatePresent {
		t.Fatalf("State = %s, want StatePresent (continues despite identify failure)", d.State)
	}
	if d.Serial != "" {
		t.Fatalf("Serial = %q, want empty (identify never succeeded)", d.Serial)
	}
}
