// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package maas

// Machine status names as reported in the "status_name" attribute.
const (
	StatusNew              = "New"
	StatusCommissioning    = "Commissioning"
	StatusFailedCommission = "Failed commissioning"
	StatusReady            = "Ready"
	StatusAllocated        = "Allocated"
	StatusDeploying        = "Deploying"
	StatusDeployed         = "Deployed"
	StatusReleasing        = "Releasing"
	StatusBroken           = "Broken"
)

// Storage layouts understood by set_storage_layout.
const (
	LayoutFlat  = "flat"
	LayoutLVM   = "lvm"
	LayoutBlank = "blank"
)
