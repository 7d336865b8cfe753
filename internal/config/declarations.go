// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package config

import (
	"context"
	"fmt"
	"sort"

	"github.com/juju/errors"
	"github.com/juju/schema"
	"gopkg.in/yaml.v3"

	"github.com/juju/maasng/internal/states"
)

// State kinds accepted in the states list.
const (
	KindDiskLayoutPresent            = "disk-layout-present"
	KindRAIDPresent                  = "raid-present"
	KindDiskPartitionPresent         = "disk-partition-present"
	KindVolumeGroupPresent           = "volume-group-present"
	KindVolumePresent                = "volume-present"
	KindSelectBootDisk               = "select-boot-disk"
	KindUpdateVLAN                   = "update-vlan"
	KindBootSourcePresent            = "boot-source-present"
	KindBootSourcesSelectionsPresent = "boot-sources-selections-present"
)

// State is a declared state with its arguments bound.
type State interface {
	Apply(ctx context.Context, applier *states.Applier) states.Result
}

// Declaration is one entry of the states list.
type Declaration struct {
	// ID names the declaration in reports. It defaults to the kind
	// followed by the 1-based position in the list.
	ID    string
	Kind  string
	State State
}

type parseFunc func(path string, args *yaml.Node) (State, error)

var parsers = map[string]parseFunc{
	KindDiskLayoutPresent:            parseDiskLayout,
	KindRAIDPresent:                  parseRAID,
	KindDiskPartitionPresent:         parseDiskPartition,
	KindVolumeGroupPresent:           parseVolumeGroup,
	KindVolumePresent:                parseVolume,
	KindSelectBootDisk:               parseBootDisk,
	KindUpdateVLAN:                   parseVLAN,
	KindBootSourcePresent:            parseBootSource,
	KindBootSourcesSelectionsPresent: parseSelection,
}

// Kinds returns the accepted state kinds in sorted order.
func Kinds() []string {
	kinds := make([]string, 0, len(parsers))
	for kind := range parsers {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}

func parseDeclaration(index int, node *yaml.Node) (Declaration, error) {
	if node.Kind != yaml.MappingNode {
		return Declaration{}, errors.NotValidf("states[%d] (line %d): expected mapping", index, node.Line)
	}
	var (
		decl Declaration
		args *yaml.Node
	)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], node.Content[i+1]
		if key.Value == "id" {
			decl.ID = value.Value
			continue
		}
		if decl.Kind != "" {
			return Declaration{}, errors.NotValidf("states[%d]: both %q and %q", index, decl.Kind, key.Value)
		}
		decl.Kind = key.Value
		args = value
	}
	if decl.Kind == "" {
		return Declaration{}, errors.NotValidf("states[%d]: no state kind", index)
	}
	parse, ok := parsers[decl.Kind]
	if !ok {
		return Declaration{}, errors.NotSupportedf("states[%d]: state kind %q", index, decl.Kind)
	}
	if decl.ID == "" {
		decl.ID = fmt.Sprintf("%s#%d", decl.Kind, index+1)
	}
	state, err := parse(fmt.Sprintf("states[%d].%s", index, decl.Kind), args)
	if err != nil {
		return Declaration{}, errors.Trace(err)
	}
	decl.State = state
	return decl, nil
}

// coerceArgs checks the arguments of a state. Unknown keys are
// rejected.
func coerceArgs(path string, node *yaml.Node, fields schema.Fields, defaults schema.Defaults) (map[string]interface{}, error) {
	raw := map[string]interface{}{}
	switch {
	case node == nil, node.Kind == yaml.ScalarNode && node.Tag == "!!null":
	case node.Kind == yaml.MappingNode:
		if err := node.Decode(&raw); err != nil {
			return nil, errors.Annotate(err, path)
		}
	default:
		return nil, errors.NotValidf("%s (line %d): expected mapping", path, node.Line)
	}
	coerced, err := schema.StrictFieldMap(fields, defaults).Coerce(raw, []string{path})
	if err != nil {
		return nil, errors.Trace(err)
	}
	return coerced.(map[string]interface{}), nil
}

// valueNode returns the value of key in a mapping node, or nil.
func valueNode(node *yaml.Node, key string) *yaml.Node {
	if node == nil || node.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return node.Content[i+1]
		}
	}
	return nil
}

var partitionFields = schema.Fields{
	"size":  schema.String(),
	"type":  schema.String(),
	"mount": schema.String(),
}

var partitionDefaults = schema.Defaults{
	"type":  "",
	"mount": "",
}

// partitionSchema reads a partition-schema mapping, keeping the order
// in which partitions appear in the document.
func partitionSchema(path string, node *yaml.Node) (states.Schema, error) {
	if node == nil {
		return nil, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, errors.NotValidf("%s (line %d): expected mapping", path, node.Line)
	}
	var result states.Schema
	for i := 0; i+1 < len(node.Content); i += 2 {
		name := node.Content[i].Value
		attrs, err := coerceArgs(path+"."+name, node.Content[i+1], partitionFields, partitionDefaults)
		if err != nil {
			return nil, errors.Trace(err)
		}
		result = append(result, states.PartitionSpec{
			Name:       name,
			Size:       attrs["size"].(string),
			FSType:     attrs["type"].(string),
			MountPoint: attrs["mount"].(string),
		})
	}
	if err := result.Validate(); err != nil {
		return nil, errors.Annotate(err, path)
	}
	return result, nil
}

// stringsOrOne accepts either a list of strings or a single string.
var stringsOrOne = schema.OneOf(schema.List(schema.String()), schema.String())

func toStrings(v interface{}) []string {
	switch v := v.(type) {
	case string:
		return []string{v}
	case []interface{}:
		result := make([]string, len(v))
		for i, s := range v {
			result[i] = s.(string)
		}
		return result
	}
	return nil
}

// DiskLayout applies a MAAS storage layout to a machine.
type DiskLayout struct {
	Hostname string
	Spec     states.LayoutSpec
}

func (s DiskLayout) Apply(ctx context.Context, applier *states.Applier) states.Result {
	return applier.DiskLayoutPresent(ctx, s.Hostname, s.Spec)
}

func parseDiskLayout(path string, node *yaml.Node) (State, error) {
	attrs, err := coerceArgs(path, node, schema.Fields{
		"hostname":     schema.String(),
		"layout-type":  schema.String(),
		"root-size":    schema.String(),
		"root-device":  schema.String(),
		"volume-group": schema.String(),
		"volume-name":  schema.String(),
		"volume-size":  schema.String(),
	}, schema.Defaults{
		"root-size":    "",
		"root-device":  "",
		"volume-group": "",
		"volume-name":  "",
		"volume-size":  "",
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	return DiskLayout{
		Hostname: attrs["hostname"].(string),
		Spec: states.LayoutSpec{
			Type:        attrs["layout-type"].(string),
			RootSize:    attrs["root-size"].(string),
			RootDevice:  attrs["root-device"].(string),
			VolumeGroup: attrs["volume-group"].(string),
			VolumeName:  attrs["volume-name"].(string),
			VolumeSize:  attrs["volume-size"].(string),
		},
	}, nil
}

// RAID declares a software RAID and, optionally, its partitions.
type RAID struct {
	Hostname string
	Spec     states.RAIDSpec
}

func (s RAID) Apply(ctx context.Context, applier *states.Applier) states.Result {
	return applier.RAIDPresent(ctx, s.Hostname, s.Spec)
}

func parseRAID(path string, node *yaml.Node) (State, error) {
	attrs, err := coerceArgs(path, node, schema.Fields{
		"hostname":         schema.String(),
		"name":             schema.String(),
		"level":            schema.ForceInt(),
		"devices":          schema.List(schema.String()),
		"partitions":       schema.List(schema.String()),
		"partition-schema": schema.Any(),
	}, schema.Defaults{
		"devices":          schema.Omit,
		"partitions":       schema.Omit,
		"partition-schema": schema.Omit,
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	partitions, err := partitionSchema(path+".partition-schema", valueNode(node, "partition-schema"))
	if err != nil {
		return nil, errors.Trace(err)
	}
	return RAID{
		Hostname: attrs["hostname"].(string),
		Spec: states.RAIDSpec{
			Name:       attrs["name"].(string),
			Level:      attrs["level"].(int),
			Devices:    toStrings(attrs["devices"]),
			Partitions: toStrings(attrs["partitions"]),
			Schema:     partitions,
		},
	}, nil
}

// DiskPartition declares the partitions of one disk. Schema keeps the
// order of the document's partition-schema mapping.
type DiskPartition struct {
	Hostname string
	Disk     string
	Schema   states.Schema
}

func (s DiskPartition) Apply(ctx context.Context, applier *states.Applier) states.Result {
	return applier.DiskPartitionPresent(ctx, s.Hostname, s.Disk, s.Schema)
}

func parseDiskPartition(path string, node *yaml.Node) (State, error) {
	attrs, err := coerceArgs(path, node, schema.Fields{
		"hostname":         schema.String(),
		"disk":             schema.String(),
		"partition-schema": schema.Any(),
	}, schema.Defaults{
		"partition-schema": schema.Omit,
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	partitions, err := partitionSchema(path+".partition-schema", valueNode(node, "partition-schema"))
	if err != nil {
		return nil, errors.Trace(err)
	}
	return DiskPartition{
		Hostname: attrs["hostname"].(string),
		Disk:     attrs["disk"].(string),
		Schema:   partitions,
	}, nil
}

// VolumeGroup declares an LVM volume group.
type VolumeGroup struct {
	Hostname   string
	Name       string
	Devices    []string
	Partitions []string
}

func (s VolumeGroup) Apply(ctx context.Context, applier *states.Applier) states.Result {
	return applier.VolumeGroupPresent(ctx, s.Hostname, s.Name, s.Devices, s.Partitions)
}

func parseVolumeGroup(path string, node *yaml.Node) (State, error) {
	attrs, err := coerceArgs(path, node, schema.Fields{
		"hostname":   schema.String(),
		"name":       schema.String(),
		"devices":    schema.List(schema.String()),
		"partitions": schema.List(schema.String()),
	}, schema.Defaults{
		"devices":    schema.Omit,
		"partitions": schema.Omit,
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	return VolumeGroup{
		Hostname:   attrs["hostname"].(string),
		Name:       attrs["name"].(string),
		Devices:    toStrings(attrs["devices"]),
		Partitions: toStrings(attrs["partitions"]),
	}, nil
}

// Volume declares an LVM logical volume.
type Volume struct {
	Hostname string
	Spec     states.VolumeSpec
}

func (s Volume) Apply(ctx context.Context, applier *states.Applier) states.Result {
	return applier.VolumePresent(ctx, s.Hostname, s.Spec)
}

func parseVolume(path string, node *yaml.Node) (State, error) {
	attrs, err := coerceArgs(path, node, schema.Fields{
		"hostname":          schema.String(),
		"name":              schema.String(),
		"volume-group-name": schema.String(),
		"size":              schema.String(),
		"type":              schema.String(),
		"mount":             schema.String(),
	}, schema.Defaults{
		"type":  "",
		"mount": "",
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	return Volume{
		Hostname: attrs["hostname"].(string),
		Spec: states.VolumeSpec{
			Name:        attrs["name"].(string),
			VolumeGroup: attrs["volume-group-name"].(string),
			Size:        attrs["size"].(string),
			FSType:      attrs["type"].(string),
			MountPoint:  attrs["mount"].(string),
		},
	}, nil
}

// BootDisk selects the boot disk of a machine.
type BootDisk struct {
	Hostname string
	Disk     string
}

func (s BootDisk) Apply(ctx context.Context, applier *states.Applier) states.Result {
	return applier.SelectBootDisk(ctx, s.Hostname, s.Disk)
}

func parseBootDisk(path string, node *yaml.Node) (State, error) {
	attrs, err := coerceArgs(path, node, schema.Fields{
		"hostname": schema.String(),
		"name":     schema.String(),
	}, nil)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return BootDisk{
		Hostname: attrs["hostname"].(string),
		Disk:     attrs["name"].(string),
	}, nil
}

// VLAN declares the attributes of a VLAN on a fabric.
type VLAN struct {
	Spec states.VLANSpec
}

func (s VLAN) Apply(ctx context.Context, applier *states.Applier) states.Result {
	return applier.VLANPresent(ctx, s.Spec)
}

func parseVLAN(path string, node *yaml.Node) (State, error) {
	attrs, err := coerceArgs(path, node, schema.Fields{
		"name":         schema.String(),
		"fabric":       schema.String(),
		"vid":          schema.ForceInt(),
		"description":  schema.String(),
		"primary-rack": schema.String(),
		"dhcp-on":      schema.Bool(),
	}, schema.Defaults{
		"name":         "",
		"description":  "",
		"primary-rack": "",
		"dhcp-on":      false,
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	return VLAN{Spec: states.VLANSpec{
		Fabric:      attrs["fabric"].(string),
		VID:         attrs["vid"].(int),
		Name:        attrs["name"].(string),
		Description: attrs["description"].(string),
		PrimaryRack: attrs["primary-rack"].(string),
		DHCPOn:      attrs["dhcp-on"].(bool),
	}}, nil
}

// BootSource declares a boot image source.
type BootSource struct {
	URL         string
	KeyringFile string
	KeyringData string
}

func (s BootSource) Apply(ctx context.Context, applier *states.Applier) states.Result {
	return applier.BootSourcePresent(ctx, s.URL, s.KeyringFile, s.KeyringData)
}

func parseBootSource(path string, node *yaml.Node) (State, error) {
	attrs, err := coerceArgs(path, node, schema.Fields{
		"url":          schema.String(),
		"keyring-file": schema.String(),
		"keyring-data": schema.String(),
	}, schema.Defaults{
		"keyring-file": "",
		"keyring-data": "",
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	return BootSource{
		URL:         attrs["url"].(string),
		KeyringFile: attrs["keyring-file"].(string),
		KeyringData: attrs["keyring-data"].(string),
	}, nil
}

// Selection declares the images to import from a boot source.
type Selection struct {
	Spec states.SelectionSpec
}

func (s Selection) Apply(ctx context.Context, applier *states.Applier) states.Result {
	return applier.BootSourceSelectionsPresent(ctx, s.Spec)
}

func parseSelection(path string, node *yaml.Node) (State, error) {
	attrs, err := coerceArgs(path, node, schema.Fields{
		"bs-url":    schema.String(),
		"os":        schema.String(),
		"release":   schema.String(),
		"arches":    stringsOrOne,
		"subarches": stringsOrOne,
		"labels":    stringsOrOne,
		"wait":      schema.Bool(),
	}, schema.Defaults{
		"arches":    "*",
		"subarches": "*",
		"labels":    "*",
		"wait":      true,
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	return Selection{Spec: states.SelectionSpec{
		URL:       attrs["bs-url"].(string),
		OS:        attrs["os"].(string),
		Release:   attrs["release"].(string),
		Arches:    toStrings(attrs["arches"]),
		Subarches: toStrings(attrs["subarches"]),
		Labels:    toStrings(attrs["labels"]),
		Wait:      attrs["wait"].(bool),
	}}, nil
}
