//
// (C) Copyright 2018-2026 NVIDIA Corporation.
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//

// Package faults is a central repository for the closed set of error kinds
// this daemon can raise, per the error handling design: NoSuchDevice,
// BadMessage, Os, InvalidArgument, NotAllowed, and Timeout.
package faults

import "strconv"

// Code represents a stable fault code. New codes are always added at the
// bottom of their block so that values remain stable across releases.
type Code int

const (
	// CodeUnknown is the zero-value, invalid fault code.
	CodeUnknown Code = iota
)

const (
	// transport fault codes
	CodeNoSuchDevice Code = iota + 100
	CodeTimeout
)

const (
	// command surface fault codes
	CodeBadMessage Code = iota + 200
	CodeOs
	CodeInvalidArgument
)

const (
	// drive lifecycle fault codes
	CodeNotAllowed Code = iota + 300
)

// String renders the numeric code, stable across releases, suitable as a
// low-cardinality metrics label.
func (c Code) String() string {
	return strconv.Itoa(int(c))
}
