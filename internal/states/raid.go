// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package states

import (
	"context"
	"fmt"

	"github.com/juju/errors"

	"github.com/juju/maasng/internal/maas"
)

var raidLevels = map[int]string{
	0:  "raid-0",
	1:  "raid-1",
	5:  "raid-5",
	10: "raid-10",
}

// RAIDSpec describes a software RAID and, optionally, its partitions.
type RAIDSpec struct {
	Name       string
	Level      int
	Devices    []string
	Partitions []string
	// Schema, if not empty, is applied to the RAID device as with
	// DiskPartitionPresent.
	Schema Schema
}

// RAIDPresent ensures a RAID called spec.Name exists on the machine,
// then partitions it according to spec.Schema. An existing RAID is not
// checked against the requested level or members.
func (a *Applier) RAIDPresent(ctx context.Context, hostname string, spec RAIDSpec) Result {
	res := newResult(spec.Name, fmt.Sprintf("Raid %s presented on %s", spec.Name, hostname))
	level, ok := raidLevels[spec.Level]
	if !ok {
		return res.fail(errors.NotSupportedf("raid level %d", spec.Level),
			fmt.Sprintf("Invalid raid %s for %s", spec.Name, hostname))
	}
	if spec.Name == "" || len(spec.Devices)+len(spec.Partitions) == 0 {
		return res.fail(errors.NotValidf("raid without name or members"),
			fmt.Sprintf("Invalid raid %s for %s", spec.Name, hostname))
	}
	desired, err := spec.Schema.normalize()
	if err != nil {
		return res.fail(err, fmt.Sprintf("Invalid partition schema for %s", spec.Name))
	}
	res, ok = a.checkMachine(ctx, hostname, res)
	if !ok {
		return res
	}
	if a.dryRun {
		return res.pending(fmt.Sprintf("Raid %s will be updated on %s", spec.Name, hostname))
	}

	raids, err := a.backend.RAIDs(ctx, hostname)
	if err != nil {
		return res.fail(err, fmt.Sprintf("Cannot list raids on %s", hostname))
	}
	exists := false
	for _, raid := range raids {
		if raid.Name == spec.Name {
			exists = true
			break
		}
	}
	changes := Changes{}
	if !exists {
		raid, err := a.backend.CreateRAID(ctx, hostname, maas.CreateRAIDArgs{
			Name:       spec.Name,
			Level:      level,
			Devices:    spec.Devices,
			Partitions: spec.Partitions,
		})
		if err != nil {
			return res.fail(err, fmt.Sprintf("Cannot create raid %s on %s", spec.Name, hostname))
		}
		changes["raid"] = map[string]interface{}{
			"id":    raid.ID,
			"name":  raid.Name,
			"level": raid.Level,
		}
	}

	if len(desired) > 0 {
		partitioned := a.reconcilePartitions(ctx, hostname, spec.Name, desired, newResult(hostname, ""))
		for k, v := range partitioned.Changes {
			changes[k] = v
		}
		if partitioned.Failed() {
			res.Result = Failed
			res.Comment = partitioned.Comment
		}
	}
	res.Changes = changes
	return res
}
