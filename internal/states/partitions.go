// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package states

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/juju/collections/set"
	"github.com/juju/errors"

	"github.com/juju/maasng/internal/maas"
	"github.com/juju/maasng/internal/units"
)

// PartitionSpec is one partition of a desired disk layout.
type PartitionSpec struct {
	// Name is the logical name of the partition. Its last hyphen
	// separated token identifies the MAAS partition: "root-part1" on
	// disk sda is matched against sda-part1.
	Name string
	// Size is an integer followed by M, G or T (decimal units).
	Size string
	// FSType is the filesystem to format with. Empty leaves the
	// partition unformatted.
	FSType string
	// MountPoint is where to mount the filesystem. Empty leaves it
	// unmounted; it requires FSType.
	MountPoint string
}

// Schema is a desired partition layout. Partitions are created in
// order when the disk is rebuilt.
type Schema []PartitionSpec

// desiredPartition is a PartitionSpec with its size in bytes.
type desiredPartition struct {
	PartitionSpec
	bytes uint64
}

// normalize validates the schema and converts every size to bytes.
func (s Schema) normalize() ([]desiredPartition, error) {
	seen := set.NewStrings()
	keys := make(map[string]string)
	result := make([]desiredPartition, 0, len(s))
	for _, spec := range s {
		if spec.Name == "" {
			return nil, errors.NotValidf("partition with empty name")
		}
		if seen.Contains(spec.Name) {
			return nil, errors.NotValidf("duplicate partition %q", spec.Name)
		}
		seen.Add(spec.Name)
		key := matchKey(spec.Name)
		if other, ok := keys[key]; ok {
			return nil, errors.NotValidf("partitions %q and %q both match %q", other, spec.Name, key)
		}
		keys[key] = spec.Name
		if spec.MountPoint != "" && spec.FSType == "" {
			return nil, errors.NotValidf("partition %q mount point %q without filesystem type", spec.Name, spec.MountPoint)
		}
		bytes, err := units.ParseSize(spec.Size)
		if err != nil {
			return nil, errors.Annotatef(err, "partition %q", spec.Name)
		}
		if bytes == 0 {
			return nil, errors.NotValidf("partition %q with zero size", spec.Name)
		}
		result = append(result, desiredPartition{PartitionSpec: spec, bytes: bytes})
	}
	return result, nil
}

// Validate checks every name, mount point and size in the schema.
func (s Schema) Validate() error {
	_, err := s.normalize()
	return errors.Trace(err)
}

// matchKey is the last hyphen separated token of a partition name.
func matchKey(name string) string {
	tokens := strings.Split(name, "-")
	return tokens[len(tokens)-1]
}

// observedName is the name MAAS gives the partition matching the
// logical partition name on disk.
func observedName(disk, name string) string {
	return disk + "-" + matchKey(name)
}

// satisfied reports whether the observed partitions already match the
// desired ones: same count, and every desired partition has a
// correspondingly named observed partition of exactly the same size.
func satisfied(disk string, desired []desiredPartition, observed map[string]maas.Partition) bool {
	if len(observed) != len(desired) {
		logger.Debugf("%s has %d partitions, want %d", disk, len(observed), len(desired))
		return false
	}
	for _, want := range desired {
		name := observedName(disk, want.Name)
		got, ok := observed[name]
		if !ok {
			logger.Debugf("%s: no partition %s for %q", disk, name, want.Name)
			return false
		}
		if got.Size != want.bytes {
			logger.Debugf("%s: %s is %d bytes, want %d", disk, name, got.Size, want.bytes)
			return false
		}
	}
	return true
}

// DiskPartitionPresent ensures that disk on the machine is partitioned
// according to schema. If the partition count or any partition size
// differs, every existing partition is deleted and the whole schema is
// recreated; the layout is never patched in place.
//
// The rebuild is not transactional. If creation fails after the
// deletes succeeded, the disk is left with fewer partitions than
// wanted and running the state again rebuilds it from scratch.
func (a *Applier) DiskPartitionPresent(ctx context.Context, hostname, disk string, schema Schema) Result {
	res := newResult(hostname, fmt.Sprintf("Disk layout %s presented", disk))
	desired, err := schema.normalize()
	if err != nil {
		return res.fail(err, fmt.Sprintf("Invalid partition schema for %s", disk))
	}
	res, ok := a.checkMachine(ctx, hostname, res)
	if !ok {
		return res
	}
	if a.dryRun {
		return res.pending(fmt.Sprintf(
			"Partition schema will be changed on %s, this action will delete current layout.", disk))
	}
	return a.reconcilePartitions(ctx, hostname, disk, desired, res)
}

// reconcilePartitions compares and, if needed, rebuilds. The machine
// checks and the dry-run gate must already have passed.
func (a *Applier) reconcilePartitions(ctx context.Context, hostname, disk string, desired []desiredPartition, res Result) Result {
	observed, err := a.backend.Partitions(ctx, hostname, disk)
	if err != nil {
		return res.fail(err, fmt.Sprintf("Cannot list partitions of %s on %s", disk, hostname))
	}
	if satisfied(disk, desired, observed) {
		logger.Debugf("partitions of %s on %s already match", disk, hostname)
		return res
	}

	logger.Infof("rebuilding partitions of %s on %s", disk, hostname)
	var (
		deleted  []string
		created  []map[string]interface{}
		failures []string
	)
	// Map order is random; delete in name order so runs are repeatable.
	names := make([]string, 0, len(observed))
	for name := range observed {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		partition := observed[name]
		if err := a.backend.DeletePartition(ctx, hostname, disk, partition.ID); err != nil {
			logger.Warningf("deleting %s on %s: %v", name, hostname, err)
			failures = append(failures, fmt.Sprintf("delete %s: %v", name, err))
			continue
		}
		deleted = append(deleted, name)
	}

	for _, want := range desired {
		args := maas.CreatePartitionArgs{
			Size:       want.bytes,
			FSType:     want.FSType,
			MountPoint: want.MountPoint,
		}
		partition, err := a.backend.CreatePartition(ctx, hostname, disk, args)
		if err != nil {
			logger.Warningf("creating %q (%s) on %s of %s: %v", want.Name, units.FormatSize(want.bytes), disk, hostname, err)
			failures = append(failures, fmt.Sprintf("create %s: %v", want.Name, err))
			continue
		}
		created = append(created, map[string]interface{}{
			"name":      want.Name,
			"partition": partition.Name,
			"size":      want.Size,
			"type":      nullable(want.FSType),
			"mount":     nullable(want.MountPoint),
		})
	}

	res.Changes = Changes{
		"deleted": deleted,
		"created": created,
	}
	if len(failures) > 0 {
		res.Changes["errors"] = failures
		res.Result = Failed
		res.Comment = fmt.Sprintf("Partition schema rebuild on %s failed: %s", disk, strings.Join(failures, "; "))
		if len(deleted) == len(observed) && len(created) < len(desired) {
			logger.Warningf("%s on %s is left with %d of %d partitions; apply the state again to recover",
				disk, hostname, len(created), len(desired))
		}
		return res
	}
	res.Comment = fmt.Sprintf("Partition schema on %s rebuilt: %d deleted, %d created", disk, len(deleted), len(created))
	return res
}

// nullable renders unset optional attributes as null.
func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
