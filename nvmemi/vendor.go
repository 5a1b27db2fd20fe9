//
// (C) Copyright 2018-2026 NVIDIA Corporation.
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//
package nvmemi

import "fmt"

// vendorNames is a fixed lookup table from PCI vendor ID to manufacturer
// name, used by Admin Identify to derive the "manufacturer" Drive Record
// field from Identify Controller's VID, per spec.md §4.3/§9. It is static
// reference data, not a library concern: the values are the registered
// PCI-SIG vendor IDs for manufacturers that ship NVMe-MI capable drives.
var vendorNames = map[uint16]string{
	0x144D: "Samsung",
	0x1C5C: "SK hynix",
	0x1179: "Toshiba",
	0x1E0F: "KIOXIA",
	0x1D0F: "Amazon",
	0x8086: "Intel",
	0x15B7: "SanDisk",
	0x1987: "Phison",
	0x1CC1: "ADATA",
	0x1CC4: "Unknown (1CC4)",
	0x10DE: "NVIDIA",
	0x1028: "Dell",
	0x1590: "HPE",
	0x19E5: "Huawei",
	0x1524: "Lenovo",
}

// ManufacturerFor returns the manufacturer name for a PCI vendor ID, or a
// generic placeholder carrying the raw ID when the table has no entry.
func ManufacturerFor(vid uint16) string {
	if name, ok := vendorNames[vid]; ok {
		return name
	}
	return fmt.Sprintf("Unknown (0x%04X)", vid)
}
