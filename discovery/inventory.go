//
// (C) Copyright 2018-2026 NVIDIA Corporation.
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//
package discovery

import (
	"encoding/json"
	"os"

	"github.com/NVIDIA/nvidia-nvme-manager/logging"
)

// InventoryEntry is one drive.json record, per spec.md §6.
type InventoryEntry struct {
	EID        uint8  `json:"eid"`
	Location   string `json:"location"`
	FormFactor string `json:"form_factor"`
}

// InventoryConfig is the decoded drive.json document.
type InventoryConfig struct {
	Drive []InventoryEntry `json:"drive"`
}

// LoadInventoryConfig reads the physical-inventory configuration file, per
// spec.md §6. A missing file or a parse error is logged and treated as an
// empty inventory rather than failing discovery: the file loader is an
// out-of-scope collaborator in spec.md §1, and the object-bus inventory
// pass (step 4 of the rescan algorithm) remains the primary source of
// location and form-factor data even when this file is absent.
func LoadInventoryConfig(path string, log logging.Logger) InventoryConfig {
	log = logging.MustLogger(log)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Debugf("inventory config %q not present, continuing without it", path)
		} else {
			log.Errorf("read inventory config %q: %s", path, err)
		}
		return InventoryConfig{}
	}

	var cfg InventoryConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		log.Errorf("parse inventory config %q: %s", path, err)
		return InventoryConfig{}
	}
	return cfg
}
