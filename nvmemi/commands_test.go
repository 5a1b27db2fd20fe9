//
// (C) Copyright 2018-2026 NVIDIA Corporation.
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//
package nvmemi

import (
	"encoding/binary"
	"syscall"
	"testing"
	"time"

	"github.com/NVIDIA/nvidia-nvme-manager/faults"
	"github.com/google/go-cmp/cmp"
)

// fakeLibrary is a scriptable MILibrary fake, grounded on the same style
// of injected fake the teacher uses for lib/spdk.ENV/NVME in its storage
// tests: every method just returns whatever the test configured.
type fakeLibrary struct {
	scanHandles []uint16
	scanRet     int
	scanErrno   syscall.Errno

	health    SubsystemHealthRaw
	healthRet int

	ports   []PortInfoRaw
	portRet int

	identifyData []byte
	identifyRet  int

	logPages map[uint8][]byte
	logRet   int
	logCalls int
	lastLSP  uint8

	sanitizeRet    int
	sanitizeCalled bool
	lastNODAS      bool

	fwCommitRet int

	secSendRet   int
	secRecvData  []byte
	secRecvRet   int

	rawResp []byte
	rawRet  int
}

func (f *fakeLibrary) ScanControllers(uint8, []byte) ([]uint16, int, syscall.Errno) {
	return f.scanHandles, f.scanRet, f.scanErrno
}

func (f *fakeLibrary) SubsystemHealthPoll(uint8, []byte, uint16) (SubsystemHealthRaw, int, syscall.Errno) {
	return f.health, f.healthRet, 0
}

func (f *fakeLibrary) PortInfo(_ uint8, _ []byte, _ uint16, port int) (PortInfoRaw, int, syscall.Errno) {
	if port >= len(f.ports) {
		return PortInfoRaw{}, 0, 0
	}
	return f.ports[port], f.portRet, 0
}

func (f *fakeLibrary) AdminIdentify(_ uint8, _ []byte, _ uint16, _ uint8, _ uint16, length, _ int) ([]byte, int, syscall.Errno) {
	if f.identifyRet != 0 {
		return nil, f.identifyRet, 0
	}
	if length < len(f.identifyData) {
		return f.identifyData[:length], 0, 0
	}
	return f.identifyData, 0, 0
}

func (f *fakeLibrary) AdminGetLogPage(_ uint8, _ []byte, _ uint16, lid, lsp uint8, _ uint32, length, _ int) ([]byte, int, syscall.Errno) {
	f.logCalls++
	f.lastLSP = lsp
	if f.logRet != 0 {
		return nil, f.logRet, 0
	}
	data := f.logPages[lid]
	if length < len(data) {
		return data[:length], 0, 0
	}
	return data, 0, 0
}

func (f *fakeLibrary) AdminSanitize(_ uint8, _ []byte, _ uint16, _ uint8, nodas bool, _ uint16, _ uint32) (int, syscall.Errno) {
	f.sanitizeCalled = true
	f.lastNODAS = nodas
	return f.sanitizeRet, 0
}

func (f *fakeLibrary) AdminFWCommit(uint8, []byte, uint16, uint8, uint8, bool) (int, syscall.Errno) {
	return f.fwCommitRet, 0
}

func (f *fakeLibrary) AdminSecuritySend(uint8, []byte, uint16, uint8, uint16, []byte) (int, syscall.Errno) {
	return f.secSendRet, 0
}

func (f *fakeLibrary) AdminSecurityReceive(uint8, []byte, uint16, uint8, uint16, uint32) ([]byte, int, syscall.Errno) {
	return f.secRecvData, f.secRecvRet, 0
}

func (f *fakeLibrary) RawAdminXfer(uint8, []byte, []byte, time.Duration) ([]byte, int, syscall.Errno) {
	return f.rawResp, f.rawRet, 0
}

var _ MILibrary = (*fakeLibrary)(nil)

func newTestEndpoint(lib MILibrary) (*Endpoint, *Root) {
	root := NewRoot(testLogger(), nil)
	ep := NewEndpoint(root, Identity{EID: 9}, lib, testLogger())
	return ep, root
}

func call(t *testing.T, w *Worker, submit func(Completion) error) (interface{}, error) {
	t.Helper()
	var gotRes interface{}
	var gotErr error
	done := make(chan struct{})
	if err := submit(func(err error, res interface{}) {
		gotErr, gotRes = err, res
		close(done)
	}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	pc := <-w.Completions()
	Deliver(pc)
	<-done
	return gotRes, gotErr
}

func TestScanControllers_SetsPresentAndPrimary(t *testing.T) {
	lib := &fakeLibrary{scanHandles: []uint16{1, 2, 3}}
	ep, root := newTestEndpoint(lib)
	defer root.Release()

	got, err := call(t, ep.worker, ep.ScanControllers)
	if err != nil {
		t.Fatalf("ScanControllers: %v", err)
	}
	if diff := cmp.Diff([]uint16{1, 2, 3}, got); diff != "" {
		t.Fatalf("handles (-want +got):\n%s", diff)
	}
	if !ep.Present() {
		t.Fatal("expected endpoint marked present")
	}
	if ep.PrimaryController() != 3 {
		t.Fatalf("primary controller = %d, want 3", ep.PrimaryController())
	}
}

func TestScanControllers_OsErrorMarksAbsent(t *testing.T) {
	lib := &fakeLibrary{scanRet: -int(syscall.ENXIO), scanErrno: syscall.ENXIO}
	ep, root := newTestEndpoint(lib)
	defer root.Release()
	ep.setPresent(true)

	_, err := call(t, ep.worker, ep.ScanControllers)
	if err == nil {
		t.Fatal("expected error")
	}
	if ep.Present() {
		t.Fatal("expected endpoint marked absent after scan failure")
	}
}

func TestSubsystemHealthPoll_Functional(t *testing.T) {
	lib := &fakeLibrary{health: SubsystemHealthRaw{NSS: 0x20, SmartWarnings: 0x1, PDLU: 42}}
	ep, root := newTestEndpoint(lib)
	defer root.Release()

	got, err := call(t, ep.worker, ep.SubsystemHealthPoll)
	if err != nil {
		t.Fatalf("SubsystemHealthPoll: %v", err)
	}
	health := got.(SubsystemHealth)
	if !health.Functional() {
		t.Fatal("expected Functional() true for NSS bit 5 set")
	}
	if health.PercentDriveLife != 42 {
		t.Fatalf("PercentDriveLife = %d, want 42", health.PercentDriveLife)
	}
}

func TestPCIePortInfo_SelectsFirstPCIePort(t *testing.T) {
	lib := &fakeLibrary{ports: []PortInfoRaw{
		{PortType: 0x2},
		{PortType: portTypePCIe, MaxSpeedGbs: 16, MaxLaneWidth: 4, CurSpeedGbs: 8, CurLaneWidth: 4},
	}}
	ep, root := newTestEndpoint(lib)
	defer root.Release()

	got, err := call(t, ep.worker, ep.PCIePortInfo)
	if err != nil {
		t.Fatalf("PCIePortInfo: %v", err)
	}
	want := PortInfo{MaxLinkSpeedGBs: 16, MaxLaneWidth: 4, CurLinkSpeedGBs: 8, CurLaneWidth: 4}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("PortInfo (-want +got):\n%s", diff)
	}
}

func TestPCIePortInfo_NoneFound(t *testing.T) {
	lib := &fakeLibrary{ports: []PortInfoRaw{{PortType: 0x2}}}
	ep, root := newTestEndpoint(lib)
	defer root.Release()

	_, err := call(t, ep.worker, ep.PCIePortInfo)
	if !faults.ErrNotAllowed.Equals(err) {
		t.Fatalf("got %v, want ErrNotAllowed", err)
	}
}

func identifyFixture() []byte {
	data := make([]byte, identifyControllerLength)
	binary.LittleEndian.PutUint16(data[0:2], 0x144D)
	copy(data[4:24], []byte("SN12345             "))
	copy(data[24:64], []byte("MODEL-X                                 "))
	copy(data[64:72], []byte("FW0100  "))
	binary.LittleEndian.PutUint64(data[280:288], 4000787030016)
	binary.LittleEndian.PutUint32(data[328:332], 0x80000007)
	return data
}

func TestAdminIdentify_ParsesFixedFields(t *testing.T) {
	lib := &fakeLibrary{identifyData: identifyFixture()}
	ep, root := newTestEndpoint(lib)
	defer root.Release()

	got, err := call(t, ep.worker, ep.AdminIdentify)
	if err != nil {
		t.Fatalf("AdminIdentify: %v", err)
	}
	ic := got.(IdentifyController)
	if ic.VendorID != 0x144D {
		t.Fatalf("VendorID = 0x%x, want 0x144D", ic.VendorID)
	}
	if ic.SerialNumber != "SN12345" {
		t.Fatalf("SerialNumber = %q, want %q", ic.SerialNumber, "SN12345")
	}
	if ic.ModelNumber != "MODEL-X" {
		t.Fatalf("ModelNumber = %q, want %q", ic.ModelNumber, "MODEL-X")
	}
	if ic.TotalCapacity != 4000787030016 {
		t.Fatalf("TotalCapacity = %d", ic.TotalCapacity)
	}

	caps := ParseSANICAP(ic.SANICAP)
	want := SanitizeCapabilities{CryptoErase: true, BlockErase: true, Overwrite: true, NODMMAS: 2}
	if diff := cmp.Diff(want, caps); diff != "" {
		t.Fatalf("SanitizeCapabilities (-want +got):\n%s", diff)
	}
}

func TestAdminGetLogPage_RejectsUnknownLID(t *testing.T) {
	ep, root := newTestEndpoint(&fakeLibrary{})
	defer root.Release()

	err := ep.AdminGetLogPage(0xEE, 0, 0, func(error, interface{}) {})
	if !faults.InvalidArgument("x").Equals(err) {
		t.Fatalf("got %v, want InvalidArgument", err)
	}
}

func TestAdminGetLogPage_TelemetryTwoStepFetch(t *testing.T) {
	header := make([]byte, telemetryHeaderLength)
	header[15] = 1 // dalb3 = 1 -> (1+1)*512 = 1024 bytes
	full := make([]byte, 1024)
	for i := range full {
		full[i] = byte(i)
	}

	lib := &fakeLibrary{logPages: map[uint8][]byte{
		LIDTelemetryHost: full,
	}}
	// First call (header-sized) must also come from the same fixture, so
	// make the fake library length-sensitive by slicing in AdminGetLogPage
	// (done above: requests shorter than the stored page get truncated).
	lib.logPages[LIDTelemetryHost] = full
	copy(full[:16], header[:16])

	ep, root := newTestEndpoint(lib)
	defer root.Release()

	got, err := call(t, ep.worker, func(c Completion) error {
		return ep.AdminGetLogPage(LIDTelemetryHost, lspTelemetryRetain, 0, c)
	})
	if err != nil {
		t.Fatalf("AdminGetLogPage: %v", err)
	}
	data := got.([]byte)
	if len(data) != 1024 {
		t.Fatalf("len(data) = %d, want 1024", len(data))
	}
	if lib.logCalls != 2 {
		t.Fatalf("logCalls = %d, want 2 (header then full fetch)", lib.logCalls)
	}
}

func TestAdminGetLogPage_TelemetryHostRejectsInvalidLSP(t *testing.T) {
	lib := &fakeLibrary{}
	ep, root := newTestEndpoint(lib)
	defer root.Release()

	err := ep.AdminGetLogPage(LIDTelemetryHost, 0x03, 0, func(error, interface{}) {})
	if !faults.InvalidArgument("x").Equals(err) {
		t.Fatalf("got %v, want InvalidArgument", err)
	}
	if lib.logCalls != 0 {
		t.Fatalf("logCalls = %d, want 0 (rejected before reaching the worker)", lib.logCalls)
	}
}

func TestAdminGetLogPage_TelemetryHostCreateIssuesSingleCall(t *testing.T) {
	header := make([]byte, telemetryHeaderLength)
	header[15] = 9 // would mean a large full fetch if ever read
	lib := &fakeLibrary{logPages: map[uint8][]byte{LIDTelemetryHost: header}}
	ep, root := newTestEndpoint(lib)
	defer root.Release()

	got, err := call(t, ep.worker, func(c Completion) error {
		return ep.AdminGetLogPage(LIDTelemetryHost, lspTelemetryCreate, 0, c)
	})
	if err != nil {
		t.Fatalf("AdminGetLogPage: %v", err)
	}
	if len(got.([]byte)) != telemetryHeaderLength {
		t.Fatalf("len(data) = %d, want %d", len(got.([]byte)), telemetryHeaderLength)
	}
	if lib.logCalls != 1 {
		t.Fatalf("logCalls = %d, want 1 (create issues no second fetch)", lib.logCalls)
	}
	if lib.lastLSP != lspTelemetryCreate {
		t.Fatalf("lastLSP = %d, want lspTelemetryCreate", lib.lastLSP)
	}
}

func TestAdminGetLogPage_TelemetryControllerIgnoresLSP(t *testing.T) {
	header := make([]byte, telemetryHeaderLength)
	header[15] = 0 // (0+1)*512 = 512 bytes
	lib := &fakeLibrary{logPages: map[uint8][]byte{LIDTelemetryController: header}}
	ep, root := newTestEndpoint(lib)
	defer root.Release()

	got, err := call(t, ep.worker, func(c Completion) error {
		return ep.AdminGetLogPage(LIDTelemetryController, 0, 0, c)
	})
	if err != nil {
		t.Fatalf("AdminGetLogPage: %v", err)
	}
	if len(got.([]byte)) != telemetryBlockSize {
		t.Fatalf("len(data) = %d, want %d", len(got.([]byte)), telemetryBlockSize)
	}
	if lib.lastLSP != lspTelemetryRetain {
		t.Fatalf("lastLSP = %d, want lspTelemetryRetain", lib.lastLSP)
	}
}

func TestAdminSanitize_AlwaysSetsNODAS(t *testing.T) {
	lib := &fakeLibrary{}
	ep, root := newTestEndpoint(lib)
	defer root.Release()

	_, err := call(t, ep.worker, func(c Completion) error {
		return ep.AdminSanitize(SanitizeActionCryptoErase, 0, 0, c)
	})
	if err != nil {
		t.Fatalf("AdminSanitize: %v", err)
	}
	if !lib.sanitizeCalled || !lib.lastNODAS {
		t.Fatal("expected AdminSanitize to call library with NODAS=true")
	}
}

func TestAdminFWCommit_RecognizesAlternateSuccessCodes(t *testing.T) {
	lib := &fakeLibrary{fwCommitRet: 0x81}
	ep, root := newTestEndpoint(lib)
	defer root.Release()

	_, err := call(t, ep.worker, func(c Completion) error {
		return ep.AdminFWCommit(FWCommitActionReplaceActivateImmediate, 0, false, c)
	})
	if err != nil {
		t.Fatalf("AdminFWCommit: %v", err)
	}
}

func TestAdminSecurityReceive_RejectsOversizedTransfer(t *testing.T) {
	ep, root := newTestEndpoint(&fakeLibrary{})
	defer root.Release()

	err := ep.AdminSecurityReceive(1, 0, maxSecurityTransferLength+1, func(error, interface{}) {})
	if !faults.InvalidArgument("x").Equals(err) {
		t.Fatalf("got %v, want InvalidArgument", err)
	}
}

func TestParseSanitizeStatus_InProgress(t *testing.T) {
	data := make([]byte, 32)
	binary.LittleEndian.PutUint16(data[2:4], sanitizeStatusInProgress)
	binary.LittleEndian.PutUint32(data[8:12], 100)
	status, err := ParseSanitizeStatus(data)
	if err != nil {
		t.Fatalf("ParseSanitizeStatus: %v", err)
	}
	if !status.InProgress() {
		t.Fatal("expected InProgress true")
	}
	if status.ETO != 100 {
		t.Fatalf("ETO = %d, want 100", status.ETO)
	}
}
