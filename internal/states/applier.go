// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package states converges MAAS machine storage, VLANs and boot sources
// towards declared configuration. Every operation follows the same
// pattern: read the current state, do nothing if it already holds,
// otherwise make the calls needed to get there. Nothing is mutated in
// dry-run mode.
package states

import (
	"context"
	"fmt"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/loggo/v2"

	"github.com/juju/maasng/internal/maas"
)

var logger = loggo.GetLogger("maasng.states")

// Backend is the MAAS API surface the states need. *maas.Client
// implements it.
type Backend interface {
	Machine(ctx context.Context, hostname string) (maas.Machine, error)

	Partitions(ctx context.Context, hostname, disk string) (map[string]maas.Partition, error)
	DeletePartition(ctx context.Context, hostname, disk string, id int) error
	CreatePartition(ctx context.Context, hostname, disk string, args maas.CreatePartitionArgs) (maas.Partition, error)
	SetStorageLayout(ctx context.Context, hostname string, args maas.StorageLayoutArgs) error
	SetBootDisk(ctx context.Context, hostname, disk string) error

	RAIDs(ctx context.Context, hostname string) ([]maas.RAID, error)
	CreateRAID(ctx context.Context, hostname string, args maas.CreateRAIDArgs) (maas.RAID, error)

	VolumeGroups(ctx context.Context, hostname string) ([]maas.VolumeGroup, error)
	CreateVolumeGroup(ctx context.Context, hostname string, args maas.CreateVolumeGroupArgs) (maas.VolumeGroup, error)
	CreateVolume(ctx context.Context, hostname string, args maas.CreateVolumeArgs) (maas.BlockDevice, error)

	UpdateVLAN(ctx context.Context, args maas.UpdateVLANArgs) (maas.VLAN, error)

	BootSources(ctx context.Context) ([]maas.BootSource, error)
	CreateBootSource(ctx context.Context, args maas.CreateBootSourceArgs) (maas.BootSource, error)
	BootSourceSelections(ctx context.Context, sourceID int) ([]maas.BootSourceSelection, error)
	CreateBootSourceSelection(ctx context.Context, sourceID int, args maas.CreateSelectionArgs) (maas.BootSourceSelection, error)
	ImportBootResources(ctx context.Context) error
	IsImportingBootResources(ctx context.Context) (bool, error)
}

var _ Backend = (*maas.Client)(nil)

const (
	defaultImportTimeout      = 30 * time.Minute
	defaultImportPollInterval = 10 * time.Second
)

// ApplierConfig holds the dependencies of an Applier.
type ApplierConfig struct {
	Backend Backend
	// DryRun reports what would change without changing it.
	DryRun bool
	Clock  clock.Clock

	// ImportTimeout bounds how long BootSourceSelectionsPresent waits
	// for an image import. Defaults to 30 minutes.
	ImportTimeout time.Duration
	// ImportPollInterval defaults to 10 seconds.
	ImportPollInterval time.Duration
}

// Validate checks the config.
func (cfg ApplierConfig) Validate() error {
	if cfg.Backend == nil {
		return errors.NotValidf("nil Backend")
	}
	if cfg.Clock == nil {
		return errors.NotValidf("nil Clock")
	}
	if cfg.ImportTimeout < 0 {
		return errors.NotValidf("negative ImportTimeout")
	}
	if cfg.ImportPollInterval < 0 {
		return errors.NotValidf("negative ImportPollInterval")
	}
	return nil
}

// Applier applies states against a single MAAS. It holds no state
// between calls and issues backend calls strictly one at a time.
type Applier struct {
	backend            Backend
	dryRun             bool
	clock              clock.Clock
	importTimeout      time.Duration
	importPollInterval time.Duration
}

// NewApplier returns an Applier using the given config.
func NewApplier(cfg ApplierConfig) (*Applier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	a := &Applier{
		backend:            cfg.Backend,
		dryRun:             cfg.DryRun,
		clock:              cfg.Clock,
		importTimeout:      cfg.ImportTimeout,
		importPollInterval: cfg.ImportPollInterval,
	}
	if a.importTimeout == 0 {
		a.importTimeout = defaultImportTimeout
	}
	if a.importPollInterval == 0 {
		a.importPollInterval = defaultImportPollInterval
	}
	return a, nil
}

// DryRun reports whether the applier only previews changes.
func (a *Applier) DryRun() bool {
	return a.dryRun
}

// checkMachine looks the machine up and requires it to be Ready. When
// the returned bool is false, res holds the terminal result: Failed if
// the lookup failed, Succeeded (a no-op) if the machine is not Ready.
func (a *Applier) checkMachine(ctx context.Context, hostname string, res Result) (Result, bool) {
	machine, err := a.backend.Machine(ctx, hostname)
	if err != nil {
		logger.Errorf("cannot get machine %q: %v", hostname, err)
		return res.fail(err, fmt.Sprintf("State execution failed for machine %s", hostname)), false
	}
	if !machine.Ready() {
		logger.Infof("machine %q is %s, skipping", hostname, machine.StatusName)
		res.Comment = fmt.Sprintf("Machine %s is not in Ready state.", hostname)
		return res, false
	}
	return res, true
}
