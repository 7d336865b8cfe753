// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package main

import (
	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/gnuflag"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/juju/maasng/internal/config"
	"github.com/juju/maasng/internal/maas"
	"github.com/juju/maasng/internal/runner"
	"github.com/juju/maasng/internal/states"
)

const applyDoc = `
Applies every state declared in <file>, in order, against the MAAS
named in the file's maas section. MAAS_SERVER and MAAS_API_KEY
override the file. A failed state does not stop the ones after it.

One report per state is printed. The command exits 1 if any state
failed.
`

const checkDoc = `
Reports what applying <file> would change, without changing anything.
Machine and boot source lookups are still made.
`

// applyCommand implements both "apply" and "check"; the latter always
// runs in dry-run mode.
type applyCommand struct {
	check bool
	clock clock.Clock

	out         Output
	dryRun      bool
	metricsFile string
	file        string
}

func newApplyCommand(check bool) *applyCommand {
	return &applyCommand{check: check, clock: clock.WallClock}
}

func (c *applyCommand) Info() *Info {
	if c.check {
		return &Info{
			Name:    "check",
			Args:    "<file>",
			Purpose: "preview the changes declared states would make",
			Doc:     checkDoc,
		}
	}
	return &Info{
		Name:    "apply",
		Args:    "<file>",
		Purpose: "apply declared states to MAAS",
		Doc:     applyDoc,
	}
}

func (c *applyCommand) SetFlags(f *gnuflag.FlagSet) {
	c.out.AddFlags(f, "yaml", defaultFormatters)
	if !c.check {
		f.BoolVar(&c.dryRun, "dry-run", false, "report changes without making them")
	}
	f.StringVar(&c.metricsFile, "metrics-file", "", "write Prometheus metrics to this file")
}

func (c *applyCommand) Init(args []string) error {
	if len(args) == 0 {
		return errors.New("no state file specified")
	}
	c.file, args = args[0], args[1:]
	return checkEmpty(args)
}

func (c *applyCommand) Run(ctx *Context) error {
	cfg, err := config.Read(ctx.AbsPath(c.file))
	if err != nil {
		return errors.Trace(err)
	}
	if err := cfg.Validate(); err != nil {
		return errors.Annotate(err, "MAAS settings")
	}
	client, err := maas.NewClient(cfg.MAAS)
	if err != nil {
		return errors.Trace(err)
	}
	dryRun := c.check || c.dryRun || cfg.DryRun
	applier, err := states.NewApplier(states.ApplierConfig{
		Backend:       client,
		DryRun:        dryRun,
		Clock:         c.clock,
		ImportTimeout: cfg.ImportTimeout,
	})
	if err != nil {
		return errors.Trace(err)
	}

	registry := prometheus.NewRegistry()
	metrics := runner.NewMetricsCollector()
	if err := registry.Register(metrics); err != nil {
		return errors.Trace(err)
	}
	r, err := runner.New(runner.Config{
		Applier: applier,
		Clock:   c.clock,
		Metrics: metrics,
	})
	if err != nil {
		return errors.Trace(err)
	}

	logger.Infof("applying %d states to %s (dry run: %v)", len(cfg.Declarations), cfg.MAAS.Server, applier.DryRun())
	summary := r.Apply(ctx, cfg.Declarations)
	reports := summary.Reports
	if reports == nil {
		reports = []runner.Report{}
	}
	if err := c.out.Write(ctx, reports); err != nil {
		return errors.Trace(err)
	}
	if c.metricsFile != "" {
		if err := prometheus.WriteToTextfile(ctx.AbsPath(c.metricsFile), registry); err != nil {
			return errors.Annotate(err, "writing metrics")
		}
	}
	if summary.HasFailures() {
		return errSilent
	}
	return nil
}
