// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package maas

import (
	"context"

	"github.com/juju/errors"
	"github.com/juju/gomaasapi/v2"
)

// CreateBootSourceArgs describes a new boot source.
type CreateBootSourceArgs struct {
	URL             string
	KeyringFilename string
	// KeyringData is the base64 encoded GPG keyring.
	KeyringData string
}

// CreateSelectionArgs selects images to import from a boot source.
type CreateSelectionArgs struct {
	OS        string
	Release   string
	Arches    []string
	Subarches []string
	Labels    []string
}

// BootSources returns the configured boot sources.
func (c *Client) BootSources(ctx context.Context) ([]BootSource, error) {
	source, err := c.get(ctx, "listing boot sources", "", nil, "boot-sources")
	if err != nil {
		return nil, errors.Trace(err)
	}
	return readList("boot source", source, readBootSource)
}

// CreateBootSource registers a new boot source.
func (c *Client) CreateBootSource(ctx context.Context, args CreateBootSourceArgs) (BootSource, error) {
	if args.URL == "" {
		return BootSource{}, errors.NotValidf("empty URL")
	}
	params := gomaasapi.NewURLParams()
	params.MaybeAdd("url", args.URL)
	params.MaybeAdd("keyring_filename", args.KeyringFilename)
	params.MaybeAdd("keyring_data", args.KeyringData)
	logger.Infof("creating boot source %q", args.URL)
	source, err := c.post(ctx, "creating boot source", "", params.Values, "boot-sources")
	if err != nil {
		return BootSource{}, errors.Trace(err)
	}
	return readBootSource(source)
}

// BootSourceSelections returns the selections of a boot source.
func (c *Client) BootSourceSelections(ctx context.Context, sourceID int) ([]BootSourceSelection, error) {
	source, err := c.get(ctx, "listing boot source selections", "", nil,
		"boot-sources/%d/selections", sourceID)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return readList("boot source selection", source, readBootSourceSelection)
}

// CreateBootSourceSelection adds a selection to a boot source.
func (c *Client) CreateBootSourceSelection(ctx context.Context, sourceID int, args CreateSelectionArgs) (BootSourceSelection, error) {
	params := gomaasapi.NewURLParams()
	params.MaybeAdd("os", args.OS)
	params.MaybeAdd("release", args.Release)
	params.MaybeAddMany("arches", args.Arches)
	params.MaybeAddMany("subarches", args.Subarches)
	params.MaybeAddMany("labels", args.Labels)
	logger.Infof("selecting %s/%s from boot source %d", args.OS, args.Release, sourceID)
	source, err := c.post(ctx, "creating boot source selection", "", params.Values,
		"boot-sources/%d/selections", sourceID)
	if err != nil {
		return BootSourceSelection{}, errors.Trace(err)
	}
	return readBootSourceSelection(source)
}

// ImportBootResources starts importing images from all boot sources.
func (c *Client) ImportBootResources(ctx context.Context) error {
	logger.Infof("starting boot resource import")
	_, err := c.post(ctx, "importing boot resources", "import", nil, "boot-resources")
	return errors.Trace(err)
}

// IsImportingBootResources reports whether an import is in progress.
func (c *Client) IsImportingBootResources(ctx context.Context) (bool, error) {
	source, err := c.get(ctx, "checking boot resource import", "is_importing", nil, "boot-resources")
	if err != nil {
		return false, errors.Trace(err)
	}
	importing, ok := source.(bool)
	if !ok {
		return false, errors.Errorf("unexpected is_importing response %T", source)
	}
	return importing, nil
}
