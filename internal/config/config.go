// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package config reads the desired-state document: where the MAAS is,
// whether to run in dry-run mode, and the ordered list of states to
// apply.
package config

import (
	"bytes"
	"io"
	"os"
	"time"

	"github.com/juju/collections/set"
	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
	"github.com/juju/schema"
	"gopkg.in/yaml.v3"

	"github.com/juju/maasng/internal/maas"
)

var logger = loggo.GetLogger("maasng.config")

// Environment variables that take precedence over the document.
const (
	EnvServer = "MAAS_SERVER"
	EnvAPIKey = "MAAS_API_KEY"
)

// Config is a parsed desired-state document.
type Config struct {
	MAAS   maas.ClientConfig
	DryRun bool
	// ImportTimeout is zero when the document does not set it.
	ImportTimeout time.Duration
	Declarations  []Declaration
}

// document is the top level of the YAML file. States are kept as
// nodes so that mapping order survives decoding.
type document struct {
	MAAS struct {
		Server string `yaml:"server"`
		APIKey string `yaml:"api-key"`
	} `yaml:"maas"`
	DryRun        bool        `yaml:"dry-run"`
	ImportTimeout string      `yaml:"import-timeout"`
	States        []yaml.Node `yaml:"states"`
}

// Read parses the document at path and applies the environment
// overrides.
func Read(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Trace(err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, errors.Annotatef(err, "reading %s", path)
	}
	cfg.OverrideFromEnv(os.LookupEnv)
	return cfg, nil
}

// Parse parses a desired-state document. Every declaration is
// validated, but MAAS credentials are not required here since they may
// come from the environment; call Validate once overrides are applied.
func Parse(data []byte) (*Config, error) {
	var doc document
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&doc); err != nil && err != io.EOF {
		return nil, errors.Annotate(err, "cannot parse document")
	}

	cfg := &Config{
		MAAS: maas.ClientConfig{
			Server: doc.MAAS.Server,
			APIKey: doc.MAAS.APIKey,
		},
		DryRun: doc.DryRun,
	}
	if doc.ImportTimeout != "" {
		v, err := schema.TimeDurationString().Coerce(doc.ImportTimeout, []string{"import-timeout"})
		if err != nil {
			return nil, errors.Trace(err)
		}
		cfg.ImportTimeout = v.(time.Duration)
		if cfg.ImportTimeout < 0 {
			return nil, errors.NotValidf("negative import-timeout %v", cfg.ImportTimeout)
		}
	}

	ids := set.NewStrings()
	for i := range doc.States {
		decl, err := parseDeclaration(i, &doc.States[i])
		if err != nil {
			return nil, errors.Trace(err)
		}
		if ids.Contains(decl.ID) {
			return nil, errors.NotValidf("duplicate state id %q", decl.ID)
		}
		ids.Add(decl.ID)
		cfg.Declarations = append(cfg.Declarations, decl)
	}
	logger.Debugf("parsed %d declarations", len(cfg.Declarations))
	return cfg, nil
}

// OverrideFromEnv replaces the MAAS endpoint and credentials with the
// values of MAAS_SERVER and MAAS_API_KEY, when set.
func (cfg *Config) OverrideFromEnv(lookup func(string) (string, bool)) {
	if server, ok := lookup(EnvServer); ok && server != "" {
		logger.Debugf("using MAAS server from %s", EnvServer)
		cfg.MAAS.Server = server
	}
	if key, ok := lookup(EnvAPIKey); ok && key != "" {
		logger.Debugf("using MAAS API key from %s", EnvAPIKey)
		cfg.MAAS.APIKey = key
	}
}

// Validate checks that the config can be applied.
func (cfg *Config) Validate() error {
	return errors.Trace(cfg.MAAS.Validate())
}
