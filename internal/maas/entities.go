// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package maas

import (
	"path"

	"github.com/juju/errors"
	"github.com/juju/schema"
)

// Machine is the subset of a MAAS machine that storage operations need.
type Machine struct {
	SystemID   string
	Hostname   string
	StatusName string
}

// Ready reports whether the machine may have its storage reconfigured.
func (m Machine) Ready() bool {
	return m.StatusName == StatusReady
}

// BlockDevice is a physical or virtual (RAID, logical volume) disk.
type BlockDevice struct {
	ID         int
	Name       string
	Type       string
	Path       string
	Size       uint64
	FSType     string
	MountPoint string
	Partitions []Partition
}

// Partition is a partition of a block device.
type Partition struct {
	ID int
	// Name is the by-dname basename, "<disk>-partN".
	Name       string
	Path       string
	Size       uint64
	FSType     string
	MountPoint string
}

// RAID is a software RAID device assembled on a machine.
type RAID struct {
	ID    int
	Name  string
	Level string
	Size  uint64
}

// LogicalVolume is a volume carved out of a volume group.
type LogicalVolume struct {
	ID   int
	Name string
	Size uint64
}

// VolumeGroup is an LVM volume group on a machine.
type VolumeGroup struct {
	ID             int
	Name           string
	Size           uint64
	LogicalVolumes []LogicalVolume
}

// Fabric groups VLANs.
type Fabric struct {
	ID   int
	Name string
}

// VLAN is a VLAN on a fabric.
type VLAN struct {
	ID          int
	VID         int
	Name        string
	Description string
	DHCPOn      bool
	PrimaryRack string
}

// RackController is only needed to resolve a rack hostname to its system ID.
type RackController struct {
	SystemID string
	Hostname string
}

// BootSource is a simplestreams location MAAS imports images from.
type BootSource struct {
	ID              int
	URL             string
	KeyringFilename string
	KeyringData     string
}

// BootSourceSelection chooses which images to import from a BootSource.
type BootSourceSelection struct {
	ID        int
	OS        string
	Release   string
	Arches    []string
	Subarches []string
	Labels    []string
}

var (
	nullableString = schema.OneOf(schema.Nil(""), schema.String())
	nullableMap    = schema.OneOf(schema.Nil(""), schema.StringMap(schema.Any()))
	listOfMaps     = schema.List(schema.StringMap(schema.Any()))
)

// coerce checks source against a field map that ignores unknown keys.
func coerce(what string, source interface{}, fields schema.Fields, defaults schema.Defaults) (map[string]interface{}, error) {
	checker := schema.FieldMap(fields, defaults)
	coerced, err := checker.Coerce(source, nil)
	if err != nil {
		return nil, errors.Annotatef(err, "%s schema check failed", what)
	}
	return coerced.(map[string]interface{}), nil
}

// readList applies read to every element of a JSON array.
func readList[T any](what string, source interface{}, read func(interface{}) (T, error)) ([]T, error) {
	coerced, err := listOfMaps.Coerce(source, nil)
	if err != nil {
		return nil, errors.Annotatef(err, "%s base schema check failed", what)
	}
	valid := coerced.([]interface{})
	result := make([]T, 0, len(valid))
	for i, value := range valid {
		item, err := read(value)
		if err != nil {
			return nil, errors.Annotatef(err, "%s %d", what, i)
		}
		result = append(result, item)
	}
	return result, nil
}

func stringOrEmpty(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func listOfStrings(v interface{}) []string {
	items, _ := v.([]interface{})
	if len(items) == 0 {
		return nil
	}
	result := make([]string, len(items))
	for i, item := range items {
		result[i] = item.(string)
	}
	return result
}

func readMachine(source interface{}) (Machine, error) {
	valid, err := coerce("machine", source, schema.Fields{
		"system_id":   schema.String(),
		"hostname":    schema.String(),
		"status_name": schema.String(),
	}, nil)
	if err != nil {
		return Machine{}, err
	}
	return Machine{
		SystemID:   valid["system_id"].(string),
		Hostname:   valid["hostname"].(string),
		StatusName: valid["status_name"].(string),
	}, nil
}

// readFilesystem extracts the fstype and mount point from the nullable
// "filesystem" attribute of partitions and block devices.
func readFilesystem(source interface{}) (fsType, mountPoint string, err error) {
	if source == nil {
		return "", "", nil
	}
	valid, err := coerce("filesystem", source, schema.Fields{
		"fstype":      nullableString,
		"mount_point": nullableString,
	}, schema.Defaults{
		"fstype":      nil,
		"mount_point": nil,
	})
	if err != nil {
		return "", "", err
	}
	return stringOrEmpty(valid["fstype"]), stringOrEmpty(valid["mount_point"]), nil
}

func readPartition(source interface{}) (Partition, error) {
	valid, err := coerce("partition", source, schema.Fields{
		"id":         schema.ForceInt(),
		"path":       schema.String(),
		"size":       schema.ForceUint(),
		"filesystem": nullableMap,
	}, schema.Defaults{
		"filesystem": nil,
	})
	if err != nil {
		return Partition{}, err
	}
	fsType, mountPoint, err := readFilesystem(valid["filesystem"])
	if err != nil {
		return Partition{}, errors.Trace(err)
	}
	devicePath := valid["path"].(string)
	return Partition{
		ID:         valid["id"].(int),
		Name:       path.Base(devicePath),
		Path:       devicePath,
		Size:       valid["size"].(uint64),
		FSType:     fsType,
		MountPoint: mountPoint,
	}, nil
}

func readBlockDevice(source interface{}) (BlockDevice, error) {
	valid, err := coerce("block device", source, schema.Fields{
		"id":         schema.ForceInt(),
		"name":       schema.String(),
		"type":       schema.String(),
		"path":       schema.String(),
		"size":       schema.ForceUint(),
		"filesystem": nullableMap,
		"partitions": listOfMaps,
	}, schema.Defaults{
		"type":       "",
		"path":       "",
		"filesystem": nil,
		"partitions": schema.Omit,
	})
	if err != nil {
		return BlockDevice{}, err
	}
	fsType, mountPoint, err := readFilesystem(valid["filesystem"])
	if err != nil {
		return BlockDevice{}, errors.Trace(err)
	}
	var partitions []Partition
	if source, ok := valid["partitions"]; ok {
		if partitions, err = readList("partition", source, readPartition); err != nil {
			return BlockDevice{}, errors.Trace(err)
		}
	}
	return BlockDevice{
		ID:         valid["id"].(int),
		Name:       valid["name"].(string),
		Type:       valid["type"].(string),
		Path:       valid["path"].(string),
		Size:       valid["size"].(uint64),
		FSType:     fsType,
		MountPoint: mountPoint,
		Partitions: partitions,
	}, nil
}

func readRAID(source interface{}) (RAID, error) {
	valid, err := coerce("raid", source, schema.Fields{
		"id":    schema.ForceInt(),
		"name":  schema.String(),
		"level": schema.String(),
		"size":  schema.ForceUint(),
	}, schema.Defaults{
		"size": uint64(0),
	})
	if err != nil {
		return RAID{}, err
	}
	return RAID{
		ID:    valid["id"].(int),
		Name:  valid["name"].(string),
		Level: valid["level"].(string),
		Size:  valid["size"].(uint64),
	}, nil
}

func readLogicalVolume(source interface{}) (LogicalVolume, error) {
	valid, err := coerce("logical volume", source, schema.Fields{
		"id":   schema.ForceInt(),
		"name": schema.String(),
		"size": schema.ForceUint(),
	}, schema.Defaults{
		"size": uint64(0),
	})
	if err != nil {
		return LogicalVolume{}, err
	}
	return LogicalVolume{
		ID:   valid["id"].(int),
		Name: valid["name"].(string),
		Size: valid["size"].(uint64),
	}, nil
}

func readVolumeGroup(source interface{}) (VolumeGroup, error) {
	valid, err := coerce("volume group", source, schema.Fields{
		"id":              schema.ForceInt(),
		"name":            schema.String(),
		"size":            schema.ForceUint(),
		"logical_volumes": listOfMaps,
	}, schema.Defaults{
		"size":            uint64(0),
		"logical_volumes": schema.Omit,
	})
	if err != nil {
		return VolumeGroup{}, err
	}
	var volumes []LogicalVolume
	if source, ok := valid["logical_volumes"]; ok {
		if volumes, err = readList("logical volume", source, readLogicalVolume); err != nil {
			return VolumeGroup{}, errors.Trace(err)
		}
	}
	return VolumeGroup{
		ID:             valid["id"].(int),
		Name:           valid["name"].(string),
		Size:           valid["size"].(uint64),
		LogicalVolumes: volumes,
	}, nil
}

func readFabric(source interface{}) (Fabric, error) {
	valid, err := coerce("fabric", source, schema.Fields{
		"id":   schema.ForceInt(),
		"name": schema.String(),
	}, nil)
	if err != nil {
		return Fabric{}, err
	}
	return Fabric{
		ID:   valid["id"].(int),
		Name: valid["name"].(string),
	}, nil
}

func readVLAN(source interface{}) (VLAN, error) {
	valid, err := coerce("vlan", source, schema.Fields{
		"id":           schema.ForceInt(),
		"vid":          schema.ForceInt(),
		"name":         nullableString,
		"description":  nullableString,
		"dhcp_on":      schema.Bool(),
		"primary_rack": nullableString,
	}, schema.Defaults{
		"name":         nil,
		"description":  nil,
		"dhcp_on":      false,
		"primary_rack": nil,
	})
	if err != nil {
		return VLAN{}, err
	}
	return VLAN{
		ID:          valid["id"].(int),
		VID:         valid["vid"].(int),
		Name:        stringOrEmpty(valid["name"]),
		Description: stringOrEmpty(valid["description"]),
		DHCPOn:      valid["dhcp_on"].(bool),
		PrimaryRack: stringOrEmpty(valid["primary_rack"]),
	}, nil
}

func readRackController(source interface{}) (RackController, error) {
	valid, err := coerce("rack controller", source, schema.Fields{
		"system_id": schema.String(),
		"hostname":  schema.String(),
	}, nil)
	if err != nil {
		return RackController{}, err
	}
	return RackController{
		SystemID: valid["system_id"].(string),
		Hostname: valid["hostname"].(string),
	}, nil
}

func readBootSource(source interface{}) (BootSource, error) {
	valid, err := coerce("boot source", source, schema.Fields{
		"id":               schema.ForceInt(),
		"url":              schema.String(),
		"keyring_filename": nullableString,
		"keyring_data":     nullableString,
	}, schema.Defaults{
		"keyring_filename": nil,
		"keyring_data":     nil,
	})
	if err != nil {
		return BootSource{}, err
	}
	return BootSource{
		ID:              valid["id"].(int),
		URL:             valid["url"].(string),
		KeyringFilename: stringOrEmpty(valid["keyring_filename"]),
		KeyringData:     stringOrEmpty(valid["keyring_data"]),
	}, nil
}

func readBootSourceSelection(source interface{}) (BootSourceSelection, error) {
	strings := schema.List(schema.String())
	valid, err := coerce("boot source selection", source, schema.Fields{
		"id":        schema.ForceInt(),
		"os":        schema.String(),
		"release":   schema.String(),
		"arches":    strings,
		"subarches": strings,
		"labels":    strings,
	}, schema.Defaults{
		"arches":    schema.Omit,
		"subarches": schema.Omit,
		"labels":    schema.Omit,
	})
	if err != nil {
		return BootSourceSelection{}, err
	}
	return BootSourceSelection{
		ID:        valid["id"].(int),
		OS:        valid["os"].(string),
		Release:   valid["release"].(string),
		Arches:    listOfStrings(valid["arches"]),
		Subarches: listOfStrings(valid["subarches"]),
		Labels:    listOfStrings(valid["labels"]),
	}, nil
}
