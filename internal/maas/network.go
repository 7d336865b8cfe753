// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package maas

import (
	"context"
	"strconv"

	"github.com/juju/errors"
	"github.com/juju/gomaasapi/v2"
)

// UpdateVLANArgs describes the desired attributes of a VLAN. Fabric and
// PrimaryRack may be given by name.
type UpdateVLANArgs struct {
	Fabric      string
	VID         int
	Name        string
	Description string
	PrimaryRack string
	DHCPOn      bool
}

// Fabrics returns every fabric known to MAAS.
func (c *Client) Fabrics(ctx context.Context) ([]Fabric, error) {
	source, err := c.get(ctx, "listing fabrics", "", nil, "fabrics")
	if err != nil {
		return nil, errors.Trace(err)
	}
	return readList("fabric", source, readFabric)
}

// fabricID accepts either a fabric name or its numeric ID.
func (c *Client) fabricID(ctx context.Context, fabric string) (int, error) {
	fabrics, err := c.Fabrics(ctx)
	if err != nil {
		return 0, errors.Trace(err)
	}
	for _, f := range fabrics {
		if f.Name == fabric || strconv.Itoa(f.ID) == fabric {
			return f.ID, nil
		}
	}
	return 0, errors.NotFoundf("fabric %q", fabric)
}

// rackSystemID resolves a rack controller hostname. Anything that is not
// a known hostname is passed through as a system ID.
func (c *Client) rackSystemID(ctx context.Context, rack string) (string, error) {
	source, err := c.get(ctx, "listing rack controllers", "", nil, "rackcontrollers")
	if err != nil {
		return "", errors.Trace(err)
	}
	racks, err := readList("rack controller", source, readRackController)
	if err != nil {
		return "", errors.Trace(err)
	}
	for _, r := range racks {
		if r.Hostname == rack {
			return r.SystemID, nil
		}
	}
	return rack, nil
}

// UpdateVLAN sets the attributes of an existing VLAN.
func (c *Client) UpdateVLAN(ctx context.Context, args UpdateVLANArgs) (VLAN, error) {
	fabricID, err := c.fabricID(ctx, args.Fabric)
	if err != nil {
		return VLAN{}, errors.Trace(err)
	}
	params := gomaasapi.NewURLParams()
	params.MaybeAdd("name", args.Name)
	params.MaybeAdd("description", args.Description)
	if args.PrimaryRack != "" {
		rack, err := c.rackSystemID(ctx, args.PrimaryRack)
		if err != nil {
			return VLAN{}, errors.Trace(err)
		}
		params.MaybeAdd("primary_rack", rack)
	}
	// dhcp_on is always sent so that it can be switched off.
	params.Values.Set("dhcp_on", strconv.FormatBool(args.DHCPOn))
	logger.Infof("updating vlan %d on fabric %q", args.VID, args.Fabric)
	if err := c.put(ctx, "updating vlan", params.Values,
		"fabrics/%d/vlans/%d", fabricID, args.VID); err != nil {
		return VLAN{}, errors.Trace(err)
	}
	source, err := c.get(ctx, "reading vlan", "", nil, "fabrics/%d/vlans/%d", fabricID, args.VID)
	if err != nil {
		return VLAN{}, errors.Trace(err)
	}
	return readVLAN(source)
}
