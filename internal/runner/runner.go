// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package runner applies declared states one after another and reports
// on each of them.
package runner

import (
	"context"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/loggo/v2"

	"github.com/juju/maasng/internal/config"
	"github.com/juju/maasng/internal/states"
)

var logger = loggo.GetLogger("maasng.runner")

// Config holds the dependencies of a Runner.
type Config struct {
	Applier *states.Applier
	Clock   clock.Clock
	// Metrics is optional.
	Metrics *Collector
}

// Validate checks the config.
func (cfg Config) Validate() error {
	if cfg.Applier == nil {
		return errors.NotValidf("nil Applier")
	}
	if cfg.Clock == nil {
		return errors.NotValidf("nil Clock")
	}
	return nil
}

// Runner applies declarations in order.
type Runner struct {
	config Config
}

// New returns a Runner using the given config.
func New(cfg Config) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	return &Runner{config: cfg}, nil
}

// Report is the result of one declaration.
type Report struct {
	ID            string `yaml:"id" json:"id"`
	Kind          string `yaml:"state" json:"state"`
	states.Result `yaml:",inline"`
}

// Summary holds the reports of a run, in declaration order.
type Summary struct {
	Reports []Report
}

// Count returns the number of reports with the given outcome.
func (s Summary) Count(outcome states.Outcome) int {
	n := 0
	for _, report := range s.Reports {
		if report.Result.Result == outcome {
			n++
		}
	}
	return n
}

// HasFailures reports whether any declaration failed.
func (s Summary) HasFailures() bool {
	return s.Count(states.Failed) > 0
}

// Apply applies every declaration in turn. A failed declaration does
// not stop the ones after it.
func (r *Runner) Apply(ctx context.Context, decls []config.Declaration) Summary {
	var summary Summary
	for _, decl := range decls {
		logger.Debugf("applying %s (%s)", decl.ID, decl.Kind)
		start := r.config.Clock.Now()
		res := decl.State.Apply(ctx, r.config.Applier)
		elapsed := r.config.Clock.Now().Sub(start)

		switch res.Result {
		case states.Failed:
			logger.Errorf("%s: %s", decl.ID, res.Comment)
		case states.Pending:
			logger.Infof("%s: %s", decl.ID, res.Comment)
		default:
			logger.Debugf("%s: %s (%v)", decl.ID, res.Comment, elapsed)
		}
		if r.config.Metrics != nil {
			r.config.Metrics.observe(decl.Kind, res.Result.String(), elapsed.Seconds())
		}
		summary.Reports = append(summary.Reports, Report{
			ID:     decl.ID,
			Kind:   decl.Kind,
			Result: res,
		})
	}
	logger.Infof("applied %d states: %d succeeded, %d failed, %d pending",
		len(summary.Reports), summary.Count(states.Succeeded), summary.Count(states.Failed), summary.Count(states.Pending))
	return summary
}
