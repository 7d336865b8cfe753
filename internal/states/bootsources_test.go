// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package states_test

import (
	"context"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	jc "github.com/juju/testing/checkers"
	"go.uber.org/mock/gomock"
	gc "gopkg.in/check.v1"

	"github.com/juju/maasng/internal/maas"
	"github.com/juju/maasng/internal/states"
)

type bootSourceSuite struct {
	baseSuite
}

var _ = gc.Suite(&bootSourceSuite{})

const imagesURL = "http://images.maas.io/ephemeral-v3/stable/"

var jammy = states.SelectionSpec{
	URL:     imagesURL,
	OS:      "ubuntu",
	Release: "jammy",
	Arches:  []string{"amd64"},
}

func (s *bootSourceSuite) TestBootSourceCreated(c *gc.C) {
	defer s.setupMocks(c).Finish()
	s.backend.EXPECT().BootSources(gomock.Any()).Return([]maas.BootSource{{ID: 1, URL: "http://mirror/"}}, nil)
	s.backend.EXPECT().CreateBootSource(gomock.Any(), maas.CreateBootSourceArgs{
		URL:             imagesURL,
		KeyringFilename: "/usr/share/keyrings/ubuntu-cloudimage-keyring.gpg",
	}).Return(maas.BootSource{
		ID:              2,
		URL:             imagesURL,
		KeyringFilename: "/usr/share/keyrings/ubuntu-cloudimage-keyring.gpg",
	}, nil)

	res := s.applier(c, false).BootSourcePresent(context.Background(), imagesURL,
		"/usr/share/keyrings/ubuntu-cloudimage-keyring.gpg", "")
	c.Check(res, jc.DeepEquals, states.Result{
		Name: imagesURL,
		Changes: states.Changes{"boot_source": map[string]interface{}{
			"id":               2,
			"url":              imagesURL,
			"keyring_filename": "/usr/share/keyrings/ubuntu-cloudimage-keyring.gpg",
		}},
		Result:  states.Succeeded,
		Comment: "boot-source " + imagesURL + " presented",
	})
}

func (s *bootSourceSuite) TestBootSourceExists(c *gc.C) {
	defer s.setupMocks(c).Finish()
	s.backend.EXPECT().BootSources(gomock.Any()).Return([]maas.BootSource{{ID: 1, URL: imagesURL}}, nil)

	res := s.applier(c, true).BootSourcePresent(context.Background(), imagesURL, "", "")
	c.Check(res, jc.DeepEquals, states.Result{
		Name:    imagesURL,
		Changes: states.Changes{},
		Result:  states.Succeeded,
		Comment: "boot-source " + imagesURL + " already exists",
	})
}

func (s *bootSourceSuite) TestBootSourceDryRun(c *gc.C) {
	defer s.setupMocks(c).Finish()
	s.backend.EXPECT().BootSources(gomock.Any()).Return(nil, nil)

	res := s.applier(c, true).BootSourcePresent(context.Background(), imagesURL, "", "")
	c.Check(res.Result, gc.Equals, states.Pending)
	c.Check(res.Comment, gc.Equals, "boot-source "+imagesURL+" will be updated")
}

func (s *bootSourceSuite) TestBootSourceListFails(c *gc.C) {
	defer s.setupMocks(c).Finish()
	s.backend.EXPECT().BootSources(gomock.Any()).Return(nil, errors.Unauthorizedf("bad credentials"))

	res := s.applier(c, false).BootSourcePresent(context.Background(), imagesURL, "", "")
	c.Check(res.Result, gc.Equals, states.Failed)
	c.Check(res.Comment, gc.Equals, "Cannot list boot-sources")
}

func (s *bootSourceSuite) TestSelectionCreatedWithDefaults(c *gc.C) {
	defer s.setupMocks(c).Finish()
	s.backend.EXPECT().BootSources(gomock.Any()).Return([]maas.BootSource{{ID: 1, URL: imagesURL}}, nil)
	s.backend.EXPECT().BootSourceSelections(gomock.Any(), 1).Return([]maas.BootSourceSelection{
		{ID: 1, OS: "ubuntu", Release: "focal"},
	}, nil)
	s.backend.EXPECT().CreateBootSourceSelection(gomock.Any(), 1, maas.CreateSelectionArgs{
		OS:        "ubuntu",
		Release:   "jammy",
		Arches:    []string{"amd64"},
		Subarches: []string{"*"},
		Labels:    []string{"*"},
	}).Return(maas.BootSourceSelection{
		ID:        2,
		OS:        "ubuntu",
		Release:   "jammy",
		Arches:    []string{"amd64"},
		Subarches: []string{"*"},
		Labels:    []string{"*"},
	}, nil)

	res := s.applier(c, false).BootSourceSelectionsPresent(context.Background(), jammy)
	c.Check(res, jc.DeepEquals, states.Result{
		Name: imagesURL,
		Changes: states.Changes{"selection": map[string]interface{}{
			"id":        2,
			"os":        "ubuntu",
			"release":   "jammy",
			"arches":    []string{"amd64"},
			"subarches": []string{"*"},
			"labels":    []string{"*"},
		}},
		Result:  states.Succeeded,
		Comment: "boot-source " + imagesURL + " selection present",
	})
}

func (s *bootSourceSuite) TestSelectionExists(c *gc.C) {
	defer s.setupMocks(c).Finish()
	s.backend.EXPECT().BootSources(gomock.Any()).Return([]maas.BootSource{{ID: 1, URL: imagesURL}}, nil)
	s.backend.EXPECT().BootSourceSelections(gomock.Any(), 1).Return([]maas.BootSourceSelection{
		{ID: 3, OS: "ubuntu", Release: "jammy", Arches: []string{"arm64"}},
	}, nil)

	res := s.applier(c, false).BootSourceSelectionsPresent(context.Background(), jammy)
	c.Check(res.Result, gc.Equals, states.Succeeded)
	c.Check(res.Changes, gc.HasLen, 0)
}

func (s *bootSourceSuite) TestSelectionMissingSource(c *gc.C) {
	defer s.setupMocks(c).Finish()
	s.backend.EXPECT().BootSources(gomock.Any()).Return(nil, nil)

	res := s.applier(c, false).BootSourceSelectionsPresent(context.Background(), jammy)
	c.Check(res, jc.DeepEquals, states.Result{
		Name:    imagesURL,
		Changes: states.Changes{},
		Result:  states.Failed,
		Comment: "Requested boot-source " + imagesURL + " does not exist, unable to proceed with selection for it",
	})
}

func (s *bootSourceSuite) TestSelectionDryRun(c *gc.C) {
	defer s.setupMocks(c).Finish()
	s.backend.EXPECT().BootSources(gomock.Any()).Return([]maas.BootSource{{ID: 1, URL: imagesURL}}, nil)
	s.backend.EXPECT().BootSourceSelections(gomock.Any(), 1).Return(nil, nil)

	spec := jammy
	spec.Wait = true
	res := s.applier(c, true).BootSourceSelectionsPresent(context.Background(), spec)
	c.Check(res.Result, gc.Equals, states.Pending)
	c.Check(res.Comment, gc.Equals, "boot-source "+imagesURL+" selection will be updated")
}

func (s *bootSourceSuite) TestSelectionInvalid(c *gc.C) {
	defer s.setupMocks(c).Finish()

	spec := jammy
	spec.Release = ""
	res := s.applier(c, false).BootSourceSelectionsPresent(context.Background(), spec)
	c.Check(res.Result, gc.Equals, states.Failed)
	c.Check(res.Changes, jc.DeepEquals, states.Changes{"error": "selection without os or release not valid"})
}

func (s *bootSourceSuite) expectNewSelection() {
	s.backend.EXPECT().BootSources(gomock.Any()).Return([]maas.BootSource{{ID: 1, URL: imagesURL}}, nil)
	s.backend.EXPECT().BootSourceSelections(gomock.Any(), 1).Return(nil, nil)
	s.backend.EXPECT().CreateBootSourceSelection(gomock.Any(), 1, gomock.Any()).
		Return(maas.BootSourceSelection{ID: 2, OS: "ubuntu", Release: "jammy"}, nil)
	s.backend.EXPECT().ImportBootResources(gomock.Any()).Return(nil)
}

func (s *bootSourceSuite) TestSelectionWaitsForImport(c *gc.C) {
	defer s.setupMocks(c).Finish()
	s.expectNewSelection()
	gomock.InOrder(
		s.backend.EXPECT().IsImportingBootResources(gomock.Any()).Return(true, nil),
		s.backend.EXPECT().IsImportingBootResources(gomock.Any()).Return(false, nil),
	)

	spec := jammy
	spec.Wait = true
	applier := s.applier(c, false)
	done := make(chan states.Result, 1)
	go func() {
		done <- applier.BootSourceSelectionsPresent(context.Background(), spec)
	}()

	err := s.clock.WaitAdvance(10*time.Second, longWait, 1)
	c.Assert(err, jc.ErrorIsNil)
	select {
	case res := <-done:
		c.Check(res.Result, gc.Equals, states.Succeeded)
		c.Check(res.Changes["imported"], jc.IsTrue)
	case <-time.After(longWait):
		c.Fatalf("timed out waiting for import")
	}
}

func (s *bootSourceSuite) TestSelectionImportTimesOut(c *gc.C) {
	ctrl := s.setupMocks(c)
	defer ctrl.Finish()
	s.expectNewSelection()
	s.backend.EXPECT().IsImportingBootResources(gomock.Any()).Return(true, nil).MinTimes(1)

	applier, err := states.NewApplier(states.ApplierConfig{
		Backend:            s.backend,
		Clock:              clock.WallClock,
		ImportTimeout:      20 * time.Millisecond,
		ImportPollInterval: time.Millisecond,
	})
	c.Assert(err, jc.ErrorIsNil)

	spec := jammy
	spec.Wait = true
	res := applier.BootSourceSelectionsPresent(context.Background(), spec)
	c.Check(res.Result, gc.Equals, states.Failed)
	c.Check(res.Comment, gc.Equals, "Selection created for boot-source "+imagesURL+" but image import failed")
	c.Check(res.Changes["error"], gc.Equals, "boot resources still importing after 20ms")
	// The created selection is still reported.
	c.Check(res.Changes["selection"], gc.NotNil)
}

func (s *bootSourceSuite) TestSelectionImportCancelled(c *gc.C) {
	defer s.setupMocks(c).Finish()
	s.expectNewSelection()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.backend.EXPECT().IsImportingBootResources(gomock.Any()).DoAndReturn(
		func(context.Context) (bool, error) {
			cancel()
			return true, nil
		})

	spec := jammy
	spec.Wait = true
	res := s.applier(c, false).BootSourceSelectionsPresent(ctx, spec)
	c.Check(res.Result, gc.Equals, states.Failed)
	c.Check(res.Changes["error"], gc.Equals, "waiting for boot resource import: context canceled")
}

func (s *bootSourceSuite) TestSelectionImportStartFails(c *gc.C) {
	defer s.setupMocks(c).Finish()
	s.backend.EXPECT().BootSources(gomock.Any()).Return([]maas.BootSource{{ID: 1, URL: imagesURL}}, nil)
	s.backend.EXPECT().BootSourceSelections(gomock.Any(), 1).Return(nil, nil)
	s.backend.EXPECT().CreateBootSourceSelection(gomock.Any(), 1, gomock.Any()).
		Return(maas.BootSourceSelection{ID: 2, OS: "ubuntu", Release: "jammy"}, nil)
	s.backend.EXPECT().ImportBootResources(gomock.Any()).Return(errors.New("rack offline"))

	spec := jammy
	spec.Wait = true
	res := s.applier(c, false).BootSourceSelectionsPresent(context.Background(), spec)
	c.Check(res.Result, gc.Equals, states.Failed)
	c.Check(res.Changes["error"], gc.Equals, "rack offline")
}
