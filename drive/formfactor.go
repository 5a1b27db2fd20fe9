//
// (C) Copyright 2018-2026 NVIDIA Corporation.
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//
package drive

// FormFactor is the closed set of physical drive form factors this
// daemon can publish, per spec.md §3.
type FormFactor int

const (
	FormFactorUnknown FormFactor = iota
	FormFactorDrive3_5
	FormFactorDrive2_5
	FormFactorEDSFF1ULong
	FormFactorEDSFF1UShort
	FormFactorEDSFFE3Short
	FormFactorEDSFFE3Long
	FormFactorM2_2230
	FormFactorM2_2242
	FormFactorM2_2260
	FormFactorM2_2280
	FormFactorM2_22110
	FormFactorU2
	FormFactorPCIeSlotFullLength
	FormFactorPCIeSlotLowProfile
	FormFactorPCIeHalfLength
	FormFactorOEM
)

var formFactorNames = map[FormFactor]string{
	FormFactorUnknown:            "Unknown",
	FormFactorDrive3_5:           "Drive3_5",
	FormFactorDrive2_5:           "Drive2_5",
	FormFactorEDSFF1ULong:        "EDSFF_1U_Long",
	FormFactorEDSFF1UShort:       "EDSFF_1U_Short",
	FormFactorEDSFFE3Short:       "EDSFF_E3_Short",
	FormFactorEDSFFE3Long:        "EDSFF_E3_Long",
	FormFactorM2_2230:            "M2_2230",
	FormFactorM2_2242:            "M2_2242",
	FormFactorM2_2260:            "M2_2260",
	FormFactorM2_2280:            "M2_2280",
	FormFactorM2_22110:           "M2_22110",
	FormFactorU2:                 "U2",
	FormFactorPCIeSlotFullLength: "PCIeSlotFullLength",
	FormFactorPCIeSlotLowProfile: "PCIeSlotLowProfile",
	FormFactorPCIeHalfLength:     "PCIeHalfLength",
	FormFactorOEM:                "OEM",
}

func (f FormFactor) String() string {
	if name, ok := formFactorNames[f]; ok {
		return name
	}
	return "Unknown"
}

var formFactorsByName = func() map[string]FormFactor {
	m := make(map[string]FormFactor, len(formFactorNames))
	for ff, name := range formFactorNames {
		m[name] = ff
	}
	return m
}()

// ParseFormFactor maps the drive.json "form_factor" string to a
// FormFactor, defaulting to FormFactorUnknown for anything it doesn't
// recognize rather than failing the whole inventory load.
func ParseFormFactor(s string) FormFactor {
	if ff, ok := formFactorsByName[s]; ok {
		return ff
	}
	return FormFactorUnknown
}

// LocationType is the closed set of location-code kinds this daemon
// distinguishes, per spec.md §3/§6.
type LocationType int

const (
	LocationUnknown LocationType = iota
	LocationSlot
)

func (l LocationType) String() string {
	if l == LocationSlot {
		return "Slot"
	}
	return "Unknown"
}
