// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package states

import (
	"context"
	"fmt"

	"github.com/juju/errors"

	"github.com/juju/maasng/internal/maas"
)

// VLANSpec describes the desired attributes of an existing VLAN.
type VLANSpec struct {
	Fabric      string
	VID         int
	Name        string
	Description string
	PrimaryRack string
	DHCPOn      bool
}

// VLANPresent updates a VLAN on a fabric. MAAS treats the update as
// idempotent, so it is always issued outside dry-run mode.
func (a *Applier) VLANPresent(ctx context.Context, spec VLANSpec) Result {
	res := newResult(spec.Fabric, fmt.Sprintf("Vlan %d updated for %s", spec.VID, spec.Fabric))
	if spec.Fabric == "" || spec.VID < 0 || spec.VID > 4094 {
		return res.fail(errors.NotValidf("fabric %q vid %d", spec.Fabric, spec.VID),
			fmt.Sprintf("State execution failed for fabric %s", spec.Fabric))
	}
	if a.dryRun {
		return res.pending(fmt.Sprintf("Vlan %d will be updated for %s", spec.VID, spec.Fabric))
	}
	vlan, err := a.backend.UpdateVLAN(ctx, maas.UpdateVLANArgs{
		Fabric:      spec.Fabric,
		VID:         spec.VID,
		Name:        spec.Name,
		Description: spec.Description,
		PrimaryRack: spec.PrimaryRack,
		DHCPOn:      spec.DHCPOn,
	})
	if err != nil {
		return res.fail(err, fmt.Sprintf("State execution failed for fabric %s", spec.Fabric))
	}
	res.Changes = Changes{
		"id":           vlan.ID,
		"vid":          vlan.VID,
		"name":         vlan.Name,
		"description":  vlan.Description,
		"dhcp_on":      vlan.DHCPOn,
		"primary_rack": nullable(vlan.PrimaryRack),
	}
	return res
}
