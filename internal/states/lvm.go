// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package states

import (
	"context"
	"fmt"

	"github.com/juju/errors"

	"github.com/juju/maasng/internal/maas"
	"github.com/juju/maasng/internal/units"
)

// VolumeGroupPresent ensures an LVM volume group called name exists.
// An existing group is not checked against devices and partitions.
func (a *Applier) VolumeGroupPresent(ctx context.Context, hostname, name string, devices, partitions []string) Result {
	res := newResult(hostname, fmt.Sprintf("LVM group %s presented on %s", name, hostname))
	if name == "" || len(devices)+len(partitions) == 0 {
		return res.fail(errors.NotValidf("volume group without name or members"),
			fmt.Sprintf("Invalid LVM group %s for %s", name, hostname))
	}
	res, ok := a.checkMachine(ctx, hostname, res)
	if !ok {
		return res
	}
	groups, err := a.backend.VolumeGroups(ctx, hostname)
	if err != nil {
		return res.fail(err, fmt.Sprintf("Cannot list LVM groups on %s", hostname))
	}
	if findVolumeGroup(groups, name) != nil {
		return res
	}
	if a.dryRun {
		return res.pending(fmt.Sprintf("LVM group %s will be updated on %s", name, hostname))
	}
	group, err := a.backend.CreateVolumeGroup(ctx, hostname, maas.CreateVolumeGroupArgs{
		Name:       name,
		Devices:    devices,
		Partitions: partitions,
	})
	if err != nil {
		return res.fail(err, fmt.Sprintf("Cannot create LVM group %s on %s", name, hostname))
	}
	res.Changes = Changes{"volume_group": map[string]interface{}{
		"id":   group.ID,
		"name": group.Name,
	}}
	return res
}

func findVolumeGroup(groups []maas.VolumeGroup, name string) *maas.VolumeGroup {
	for i := range groups {
		if groups[i].Name == name {
			return &groups[i]
		}
	}
	return nil
}

// VolumeSpec describes a logical volume.
type VolumeSpec struct {
	Name        string
	VolumeGroup string
	Size        string
	FSType      string
	MountPoint  string
}

// VolumePresent ensures a logical volume exists in its volume group,
// formatted and mounted as requested. An existing volume is left alone.
func (a *Applier) VolumePresent(ctx context.Context, hostname string, spec VolumeSpec) Result {
	res := newResult(hostname, fmt.Sprintf("LVM volume %s presented on %s", spec.Name, hostname))
	size, err := units.ParseSize(spec.Size)
	if err != nil {
		return res.fail(err, fmt.Sprintf("Invalid LVM volume %s for %s", spec.Name, hostname))
	}
	if spec.MountPoint != "" && spec.FSType == "" {
		return res.fail(errors.NotValidf("mount point %q without filesystem type", spec.MountPoint),
			fmt.Sprintf("Invalid LVM volume %s for %s", spec.Name, hostname))
	}
	res, ok := a.checkMachine(ctx, hostname, res)
	if !ok {
		return res
	}
	groups, err := a.backend.VolumeGroups(ctx, hostname)
	if err != nil {
		return res.fail(err, fmt.Sprintf("Cannot list LVM groups on %s", hostname))
	}
	group := findVolumeGroup(groups, spec.VolumeGroup)
	if group == nil && !a.dryRun {
		return res.fail(errors.NotFoundf("volume group %q", spec.VolumeGroup),
			fmt.Sprintf("LVM group %s does not exist on %s", spec.VolumeGroup, hostname))
	}
	if group != nil {
		// MAAS names the volume's block device "<group>-<name>".
		for _, volume := range group.LogicalVolumes {
			if volume.Name == spec.Name || volume.Name == group.Name+"-"+spec.Name {
				return res
			}
		}
	}
	if a.dryRun {
		return res.pending(fmt.Sprintf("LVM volume %s will be updated on %s", spec.Name, hostname))
	}
	device, err := a.backend.CreateVolume(ctx, hostname, maas.CreateVolumeArgs{
		Name:        spec.Name,
		VolumeGroup: spec.VolumeGroup,
		Size:        size,
		FSType:      spec.FSType,
		MountPoint:  spec.MountPoint,
	})
	if err != nil {
		return res.fail(err, fmt.Sprintf("Cannot create LVM volume %s on %s", spec.Name, hostname))
	}
	res.Changes = Changes{"volume": map[string]interface{}{
		"id":           device.ID,
		"name":         device.Name,
		"size":         spec.Size,
		"volume_group": spec.VolumeGroup,
		"type":         nullable(spec.FSType),
		"mount":        nullable(spec.MountPoint),
	}}
	return res
}
