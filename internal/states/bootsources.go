// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package states

import (
	"context"
	"fmt"

	"github.com/juju/errors"
	"github.com/juju/retry"

	"github.com/juju/maasng/internal/maas"
)

// BootSourcePresent ensures a boot source with the given URL exists.
// The keyring of an existing source is not compared.
func (a *Applier) BootSourcePresent(ctx context.Context, url, keyringFile, keyringData string) Result {
	res := newResult(url, fmt.Sprintf("boot-source %s presented", url))
	if url == "" {
		return res.fail(errors.NotValidf("empty boot source url"), "Invalid boot-source")
	}
	sources, err := a.backend.BootSources(ctx)
	if err != nil {
		return res.fail(err, "Cannot list boot-sources")
	}
	if findBootSource(sources, url) != nil {
		res.Comment = fmt.Sprintf("boot-source %s already exists", url)
		return res
	}
	if a.dryRun {
		return res.pending(fmt.Sprintf("boot-source %s will be updated", url))
	}
	source, err := a.backend.CreateBootSource(ctx, maas.CreateBootSourceArgs{
		URL:             url,
		KeyringFilename: keyringFile,
		KeyringData:     keyringData,
	})
	if err != nil {
		return res.fail(err, fmt.Sprintf("Cannot create boot-source %s", url))
	}
	res.Changes = Changes{"boot_source": map[string]interface{}{
		"id":               source.ID,
		"url":              source.URL,
		"keyring_filename": nullable(source.KeyringFilename),
	}}
	return res
}

func findBootSource(sources []maas.BootSource, url string) *maas.BootSource {
	for i := range sources {
		if sources[i].URL == url {
			return &sources[i]
		}
	}
	return nil
}

// SelectionSpec selects images to import from the boot source at URL.
type SelectionSpec struct {
	URL       string
	OS        string
	Release   string
	Arches    []string
	Subarches []string
	Labels    []string
	// Wait starts an image import and waits for it to finish.
	Wait bool
}

func orAll(values []string) []string {
	if len(values) == 0 {
		return []string{"*"}
	}
	return values
}

// BootSourceSelectionsPresent ensures the boot source at spec.URL has a
// selection for spec.OS and spec.Release. A selection for the same OS
// and release is taken to satisfy the state whatever its arches.
func (a *Applier) BootSourceSelectionsPresent(ctx context.Context, spec SelectionSpec) Result {
	res := newResult(spec.URL, fmt.Sprintf("boot-source %s selection present", spec.URL))
	if spec.OS == "" || spec.Release == "" {
		return res.fail(errors.NotValidf("selection without os or release"),
			fmt.Sprintf("Invalid selection for boot-source %s", spec.URL))
	}
	sources, err := a.backend.BootSources(ctx)
	if err != nil {
		return res.fail(err, "Cannot list boot-sources")
	}
	source := findBootSource(sources, spec.URL)
	if source == nil {
		res.Result = Failed
		res.Comment = fmt.Sprintf(
			"Requested boot-source %s does not exist, unable to proceed with selection for it", spec.URL)
		return res
	}
	selections, err := a.backend.BootSourceSelections(ctx, source.ID)
	if err != nil {
		return res.fail(err, fmt.Sprintf("Cannot list selections of boot-source %s", spec.URL))
	}
	for _, selection := range selections {
		if selection.OS == spec.OS && selection.Release == spec.Release {
			return res
		}
	}
	if a.dryRun {
		return res.pending(fmt.Sprintf("boot-source %s selection will be updated", spec.URL))
	}
	selection, err := a.backend.CreateBootSourceSelection(ctx, source.ID, maas.CreateSelectionArgs{
		OS:        spec.OS,
		Release:   spec.Release,
		Arches:    orAll(spec.Arches),
		Subarches: orAll(spec.Subarches),
		Labels:    orAll(spec.Labels),
	})
	if err != nil {
		return res.fail(err, fmt.Sprintf("Cannot create selection for boot-source %s", spec.URL))
	}
	res.Changes = Changes{"selection": map[string]interface{}{
		"id":        selection.ID,
		"os":        selection.OS,
		"release":   selection.Release,
		"arches":    selection.Arches,
		"subarches": selection.Subarches,
		"labels":    selection.Labels,
	}}
	if !spec.Wait {
		return res
	}
	if err := a.importBootResources(ctx); err != nil {
		res.Result = Failed
		res.Changes["error"] = err.Error()
		res.Comment = fmt.Sprintf("Selection created for boot-source %s but image import failed", spec.URL)
		return res
	}
	res.Changes["imported"] = true
	return res
}

const errStillImporting = errors.ConstError("boot resources still importing")

// importBootResources starts an import and polls until MAAS reports it
// finished, the import timeout passes or ctx is done.
func (a *Applier) importBootResources(ctx context.Context) error {
	if err := a.backend.ImportBootResources(ctx); err != nil {
		return errors.Trace(err)
	}
	err := retry.Call(retry.CallArgs{
		Func: func() error {
			importing, err := a.backend.IsImportingBootResources(ctx)
			if err != nil {
				return errors.Trace(err)
			}
			if importing {
				return errStillImporting
			}
			return nil
		},
		IsFatalError: func(err error) bool {
			return !errors.Is(err, errStillImporting)
		},
		NotifyFunc: func(_ error, attempt int) {
			logger.Debugf("boot resources still importing (check %d)", attempt)
		},
		Delay:       a.importPollInterval,
		MaxDuration: a.importTimeout,
		Clock:       a.clock,
		Stop:        ctx.Done(),
	})
	if retry.IsDurationExceeded(err) {
		return errors.Errorf("boot resources still importing after %v", a.importTimeout)
	}
	if retry.IsRetryStopped(err) {
		return errors.Annotate(ctx.Err(), "waiting for boot resource import")
	}
	return errors.Trace(err)
}
