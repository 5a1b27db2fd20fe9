//
// (C) Copyright 2018-2026 NVIDIA Corporation.
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//
package main

import (
	"fmt"
	"os"

	"github.com/NVIDIA/nvidia-nvme-manager/server"
)

func main() {
	if err := server.Main(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %s\n", err)
		os.Exit(1)
	}
}
