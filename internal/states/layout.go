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

// Layout types accepted by DiskLayoutPresent.
const (
	LayoutFlat   = "flat"
	LayoutLVM    = "lvm"
	LayoutCustom = "custom"
)

// LayoutSpec selects one of MAAS's storage layouts. Sizes use the same
// notation as partition sizes; empty means "let MAAS decide".
type LayoutSpec struct {
	Type       string
	RootSize   string
	RootDevice string
	// LVM only.
	VolumeGroup string
	VolumeName  string
	VolumeSize  string
}

func optionalSize(what, spec string) (uint64, error) {
	if spec == "" {
		return 0, nil
	}
	size, err := units.ParseSize(spec)
	return size, errors.Annotate(err, what)
}

// args validates the LayoutSpec and converts it to set_storage_layout
// arguments. The custom layout clears the machine's storage so that
// partitions, RAIDs and volume groups can be declared from scratch.
func (spec LayoutSpec) args() (maas.StorageLayoutArgs, error) {
	var args maas.StorageLayoutArgs
	switch spec.Type {
	case LayoutFlat:
		args.Layout = maas.LayoutFlat
	case LayoutLVM:
		args.Layout = maas.LayoutLVM
		args.VolumeGroup = spec.VolumeGroup
		args.VolumeName = spec.VolumeName
		size, err := optionalSize("volume size", spec.VolumeSize)
		if err != nil {
			return args, errors.Trace(err)
		}
		args.VolumeSize = size
	case LayoutCustom:
		args.Layout = maas.LayoutBlank
		return args, nil
	default:
		return args, errors.NotSupportedf("layout %q", spec.Type)
	}
	if spec.Type != LayoutLVM && (spec.VolumeGroup != "" || spec.VolumeName != "" || spec.VolumeSize != "") {
		return args, errors.NotValidf("volume settings for %s layout", spec.Type)
	}
	size, err := optionalSize("root size", spec.RootSize)
	if err != nil {
		return args, errors.Trace(err)
	}
	args.RootSize = size
	args.RootDevice = spec.RootDevice
	return args, nil
}

// DiskLayoutPresent applies a storage layout to the machine. This
// replaces the machine's whole storage configuration.
func (a *Applier) DiskLayoutPresent(ctx context.Context, hostname string, spec LayoutSpec) Result {
	res := newResult(hostname, fmt.Sprintf("Disk layout %q updated", hostname))
	args, err := spec.args()
	if errors.IsNotSupported(err) {
		return res.fail(err, "Not supported layout provided. Choose flat, lvm or custom")
	} else if err != nil {
		return res.fail(err, fmt.Sprintf("Invalid %s layout for %s", spec.Type, hostname))
	}
	res, ok := a.checkMachine(ctx, hostname, res)
	if !ok {
		return res
	}
	if a.dryRun {
		return res.pending(fmt.Sprintf(
			"Disk layout will be updated on %s, this action will delete current layout.", hostname))
	}
	if err := a.backend.SetStorageLayout(ctx, hostname, args); err != nil {
		return res.fail(err, fmt.Sprintf("Cannot set %s layout on %s", spec.Type, hostname))
	}
	res.Changes = Changes{"layout": spec.Type}
	if spec.RootDevice != "" {
		res.Changes["root_device"] = spec.RootDevice
	}
	if spec.RootSize != "" {
		res.Changes["root_size"] = spec.RootSize
	}
	if spec.Type == LayoutLVM {
		res.Changes["volume_group"] = nullable(spec.VolumeGroup)
		res.Changes["volume_name"] = nullable(spec.VolumeName)
		res.Changes["volume_size"] = nullable(spec.VolumeSize)
	}
	return res
}

// SelectBootDisk makes disk the machine's boot disk.
func (a *Applier) SelectBootDisk(ctx context.Context, hostname, disk string) Result {
	res := newResult(hostname, fmt.Sprintf("Boot disk %s selected on %s", disk, hostname))
	res, ok := a.checkMachine(ctx, hostname, res)
	if !ok {
		return res
	}
	if a.dryRun {
		return res.pending(fmt.Sprintf("Boot disk %s will be selected on %s", disk, hostname))
	}
	if err := a.backend.SetBootDisk(ctx, hostname, disk); err != nil {
		return res.fail(err, fmt.Sprintf("Cannot select boot disk %s on %s", disk, hostname))
	}
	res.Changes = Changes{"boot_disk": disk}
	return res
}
