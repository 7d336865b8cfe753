// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package maas

import (
	"context"
	"strconv"

	"github.com/juju/collections/set"
	"github.com/juju/errors"
	"github.com/juju/gomaasapi/v2"
)

// maybeAddUint64 adds the (name, value) pair iff value is not zero.
func maybeAddUint64(p *gomaasapi.URLParams, name string, value uint64) {
	if value != 0 {
		p.Values.Add(name, strconv.FormatUint(value, 10))
	}
}

// maybeAddInts adds the (name, value) pair for each non-zero value.
func maybeAddInts(p *gomaasapi.URLParams, name string, values []int) {
	for _, value := range values {
		p.MaybeAddInt(name, value)
	}
}

// CreatePartitionArgs describes a partition to add to a block device.
// Empty FSType leaves the partition unformatted, empty MountPoint
// leaves it unmounted.
type CreatePartitionArgs struct {
	Size       uint64
	FSType     string
	MountPoint string
}

// Validate checks the args.
func (a CreatePartitionArgs) Validate() error {
	if a.Size == 0 {
		return errors.NotValidf("zero Size")
	}
	if a.MountPoint != "" && a.FSType == "" {
		return errors.NotValidf("MountPoint %q without FSType", a.MountPoint)
	}
	return nil
}

// StorageLayoutArgs are passed to set_storage_layout. Sizes are in bytes;
// zero means "let MAAS decide".
type StorageLayoutArgs struct {
	Layout     string
	RootSize   uint64
	RootDevice string
	// LVM layout only.
	VolumeGroup string
	VolumeName  string
	VolumeSize  uint64
}

// CreateRAIDArgs describes a software RAID. Devices and Partitions are
// names, resolved to IDs by the client.
type CreateRAIDArgs struct {
	Name       string
	Level      string
	Devices    []string
	Partitions []string
}

// CreateVolumeGroupArgs describes an LVM volume group. Devices and
// Partitions are names, resolved to IDs by the client.
type CreateVolumeGroupArgs struct {
	Name       string
	Devices    []string
	Partitions []string
}

// CreateVolumeArgs describes a logical volume to create in VolumeGroup.
type CreateVolumeArgs struct {
	Name        string
	VolumeGroup string
	Size        uint64
	FSType      string
	MountPoint  string
}

func (c *Client) systemID(ctx context.Context, hostname string) (string, error) {
	machine, err := c.Machine(ctx, hostname)
	if err != nil {
		return "", errors.Trace(err)
	}
	return machine.SystemID, nil
}

func (c *Client) blockDevices(ctx context.Context, systemID string) ([]BlockDevice, error) {
	source, err := c.get(ctx, "listing block devices", "", nil, "nodes/%s/blockdevices", systemID)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return readList("block device", source, readBlockDevice)
}

// blockDevice resolves a block device by name.
func (c *Client) blockDevice(ctx context.Context, systemID, name string) (BlockDevice, error) {
	devices, err := c.blockDevices(ctx, systemID)
	if err != nil {
		return BlockDevice{}, errors.Trace(err)
	}
	for _, device := range devices {
		if device.Name == name {
			return device, nil
		}
	}
	return BlockDevice{}, errors.NotFoundf("block device %q on %s", name, systemID)
}

// Partitions returns the partitions on disk keyed by partition name.
func (c *Client) Partitions(ctx context.Context, hostname, disk string) (map[string]Partition, error) {
	systemID, err := c.systemID(ctx, hostname)
	if err != nil {
		return nil, errors.Trace(err)
	}
	device, err := c.blockDevice(ctx, systemID, disk)
	if err != nil {
		return nil, errors.Trace(err)
	}
	source, err := c.get(ctx, "listing partitions", "", nil,
		"nodes/%s/blockdevices/%d/partitions", systemID, device.ID)
	if err != nil {
		return nil, errors.Trace(err)
	}
	partitions, err := readList("partition", source, readPartition)
	if err != nil {
		return nil, errors.Trace(err)
	}
	result := make(map[string]Partition, len(partitions))
	for _, partition := range partitions {
		result[partition.Name] = partition
	}
	return result, nil
}

// DeletePartition removes the partition with the given ID from disk.
func (c *Client) DeletePartition(ctx context.Context, hostname, disk string, id int) error {
	systemID, err := c.systemID(ctx, hostname)
	if err != nil {
		return errors.Trace(err)
	}
	device, err := c.blockDevice(ctx, systemID, disk)
	if err != nil {
		return errors.Trace(err)
	}
	logger.Infof("deleting partition %d of %s on %s", id, disk, hostname)
	err = c.delete(ctx, "deleting partition",
		"nodes/%s/blockdevices/%d/partition/%d", systemID, device.ID, id)
	return errors.Annotatef(err, "partition %d", id)
}

// CreatePartition adds a partition to disk, then formats and mounts it
// as requested.
func (c *Client) CreatePartition(ctx context.Context, hostname, disk string, args CreatePartitionArgs) (Partition, error) {
	if err := args.Validate(); err != nil {
		return Partition{}, errors.Trace(err)
	}
	systemID, err := c.systemID(ctx, hostname)
	if err != nil {
		return Partition{}, errors.Trace(err)
	}
	device, err := c.blockDevice(ctx, systemID, disk)
	if err != nil {
		return Partition{}, errors.Trace(err)
	}
	params := gomaasapi.NewURLParams()
	maybeAddUint64(params, "size", args.Size)
	logger.Infof("creating %d byte partition on %s of %s", args.Size, disk, hostname)
	source, err := c.post(ctx, "creating partition", "", params.Values,
		"nodes/%s/blockdevices/%d/partitions", systemID, device.ID)
	if err != nil {
		return Partition{}, errors.Trace(err)
	}
	partition, err := readPartition(source)
	if err != nil {
		return Partition{}, errors.Trace(err)
	}
	resource := "nodes/%s/blockdevices/%d/partition/%d"
	if args.FSType != "" {
		params := gomaasapi.NewURLParams()
		params.MaybeAdd("fstype", args.FSType)
		if _, err := c.post(ctx, "formatting partition", "format", params.Values,
			resource, systemID, device.ID, partition.ID); err != nil {
			return partition, errors.Trace(err)
		}
		partition.FSType = args.FSType
	}
	if args.MountPoint != "" {
		params := gomaasapi.NewURLParams()
		params.MaybeAdd("mount_point", args.MountPoint)
		if _, err := c.post(ctx, "mounting partition", "mount", params.Values,
			resource, systemID, device.ID, partition.ID); err != nil {
			return partition, errors.Trace(err)
		}
		partition.MountPoint = args.MountPoint
	}
	return partition, nil
}

// SetStorageLayout replaces the machine's storage configuration with
// one of MAAS's canned layouts.
func (c *Client) SetStorageLayout(ctx context.Context, hostname string, args StorageLayoutArgs) error {
	systemID, err := c.systemID(ctx, hostname)
	if err != nil {
		return errors.Trace(err)
	}
	params := gomaasapi.NewURLParams()
	params.MaybeAdd("storage_layout", args.Layout)
	maybeAddUint64(params, "root_size", args.RootSize)
	params.MaybeAdd("root_device", args.RootDevice)
	params.MaybeAdd("vg_name", args.VolumeGroup)
	params.MaybeAdd("lv_name", args.VolumeName)
	maybeAddUint64(params, "lv_size", args.VolumeSize)
	logger.Infof("setting %s storage layout on %s", args.Layout, hostname)
	_, err = c.post(ctx, "setting storage layout", "set_storage_layout", params.Values,
		"machines/%s", systemID)
	return errors.Trace(err)
}

// SetBootDisk marks disk as the one the machine boots from.
func (c *Client) SetBootDisk(ctx context.Context, hostname, disk string) error {
	systemID, err := c.systemID(ctx, hostname)
	if err != nil {
		return errors.Trace(err)
	}
	device, err := c.blockDevice(ctx, systemID, disk)
	if err != nil {
		return errors.Trace(err)
	}
	logger.Infof("setting boot disk of %s to %s", hostname, disk)
	_, err = c.post(ctx, "setting boot disk", "set_boot_disk", nil,
		"nodes/%s/blockdevices/%d", systemID, device.ID)
	return errors.Trace(err)
}

// resolveStorage maps block device and partition names to IDs.
func (c *Client) resolveStorage(ctx context.Context, systemID string, devices, partitions []string) (deviceIDs, partitionIDs []int, _ error) {
	all, err := c.blockDevices(ctx, systemID)
	if err != nil {
		return nil, nil, errors.Trace(err)
	}
	deviceByName := make(map[string]int)
	partitionByName := make(map[string]int)
	for _, device := range all {
		deviceByName[device.Name] = device.ID
		for _, partition := range device.Partitions {
			partitionByName[partition.Name] = partition.ID
		}
	}
	missing := set.NewStrings()
	for _, name := range devices {
		id, ok := deviceByName[name]
		if !ok {
			missing.Add(name)
			continue
		}
		deviceIDs = append(deviceIDs, id)
	}
	for _, name := range partitions {
		id, ok := partitionByName[name]
		if !ok {
			missing.Add(name)
			continue
		}
		partitionIDs = append(partitionIDs, id)
	}
	if !missing.IsEmpty() {
		return nil, nil, errors.NotFoundf("block devices or partitions %v on %s", missing.SortedValues(), systemID)
	}
	return deviceIDs, partitionIDs, nil
}

// RAIDs returns the software RAID devices of the machine.
func (c *Client) RAIDs(ctx context.Context, hostname string) ([]RAID, error) {
	systemID, err := c.systemID(ctx, hostname)
	if err != nil {
		return nil, errors.Trace(err)
	}
	source, err := c.get(ctx, "listing raids", "", nil, "nodes/%s/raids", systemID)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return readList("raid", source, readRAID)
}

// CreateRAID assembles a RAID from the named devices and partitions.
func (c *Client) CreateRAID(ctx context.Context, hostname string, args CreateRAIDArgs) (RAID, error) {
	systemID, err := c.systemID(ctx, hostname)
	if err != nil {
		return RAID{}, errors.Trace(err)
	}
	deviceIDs, partitionIDs, err := c.resolveStorage(ctx, systemID, args.Devices, args.Partitions)
	if err != nil {
		return RAID{}, errors.Trace(err)
	}
	params := gomaasapi.NewURLParams()
	params.MaybeAdd("name", args.Name)
	params.MaybeAdd("level", args.Level)
	maybeAddInts(params, "block_devices", deviceIDs)
	maybeAddInts(params, "partitions", partitionIDs)
	logger.Infof("creating %s %q on %s", args.Level, args.Name, hostname)
	source, err := c.post(ctx, "creating raid", "", params.Values, "nodes/%s/raids", systemID)
	if err != nil {
		return RAID{}, errors.Trace(err)
	}
	return readRAID(source)
}

// VolumeGroups returns the LVM volume groups of the machine.
func (c *Client) VolumeGroups(ctx context.Context, hostname string) ([]VolumeGroup, error) {
	systemID, err := c.systemID(ctx, hostname)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return c.volumeGroups(ctx, systemID)
}

func (c *Client) volumeGroups(ctx context.Context, systemID string) ([]VolumeGroup, error) {
	source, err := c.get(ctx, "listing volume groups", "", nil, "nodes/%s/volume-groups", systemID)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return readList("volume group", source, readVolumeGroup)
}

// CreateVolumeGroup creates an LVM volume group over the named devices
// and partitions.
func (c *Client) CreateVolumeGroup(ctx context.Context, hostname string, args CreateVolumeGroupArgs) (VolumeGroup, error) {
	systemID, err := c.systemID(ctx, hostname)
	if err != nil {
		return VolumeGroup{}, errors.Trace(err)
	}
	deviceIDs, partitionIDs, err := c.resolveStorage(ctx, systemID, args.Devices, args.Partitions)
	if err != nil {
		return VolumeGroup{}, errors.Trace(err)
	}
	params := gomaasapi.NewURLParams()
	params.MaybeAdd("name", args.Name)
	maybeAddInts(params, "block_devices", deviceIDs)
	maybeAddInts(params, "partitions", partitionIDs)
	logger.Infof("creating volume group %q on %s", args.Name, hostname)
	source, err := c.post(ctx, "creating volume group", "", params.Values, "nodes/%s/volume-groups", systemID)
	if err != nil {
		return VolumeGroup{}, errors.Trace(err)
	}
	return readVolumeGroup(source)
}

// CreateVolume creates a logical volume, then formats and mounts the
// resulting block device as requested.
func (c *Client) CreateVolume(ctx context.Context, hostname string, args CreateVolumeArgs) (BlockDevice, error) {
	systemID, err := c.systemID(ctx, hostname)
	if err != nil {
		return BlockDevice{}, errors.Trace(err)
	}
	groups, err := c.volumeGroups(ctx, systemID)
	if err != nil {
		return BlockDevice{}, errors.Trace(err)
	}
	groupID := -1
	for _, group := range groups {
		if group.Name == args.VolumeGroup {
			groupID = group.ID
			break
		}
	}
	if groupID < 0 {
		return BlockDevice{}, errors.NotFoundf("volume group %q on %s", args.VolumeGroup, hostname)
	}
	params := gomaasapi.NewURLParams()
	params.MaybeAdd("name", args.Name)
	maybeAddUint64(params, "size", args.Size)
	logger.Infof("creating logical volume %q in %q on %s", args.Name, args.VolumeGroup, hostname)
	source, err := c.post(ctx, "creating logical volume", "create_logical_volume", params.Values,
		"nodes/%s/volume-group/%d", systemID, groupID)
	if err != nil {
		return BlockDevice{}, errors.Trace(err)
	}
	device, err := readBlockDevice(source)
	if err != nil {
		return BlockDevice{}, errors.Trace(err)
	}
	resource := "nodes/%s/blockdevices/%d"
	if args.FSType != "" {
		params := gomaasapi.NewURLParams()
		params.MaybeAdd("fstype", args.FSType)
		if _, err := c.post(ctx, "formatting logical volume", "format", params.Values,
			resource, systemID, device.ID); err != nil {
			return device, errors.Trace(err)
		}
		device.FSType = args.FSType
	}
	if args.MountPoint != "" {
		params := gomaasapi.NewURLParams()
		params.MaybeAdd("mount_point", args.MountPoint)
		if _, err := c.post(ctx, "mounting logical volume", "mount", params.Values,
			resource, systemID, device.ID); err != nil {
			return device, errors.Trace(err)
		}
		device.MountPoint = args.MountPoint
	}
	return device, nil
}
