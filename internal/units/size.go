// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package units converts the size strings used in storage declarations
// ("10G", "512M", "2T") into byte counts.
package units

import (
	"math"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/juju/errors"
)

// ErrInvalidSizeFormat is returned (annotated) by ParseSize for any
// string that is not an unsigned integer followed by a known unit.
const ErrInvalidSizeFormat = errors.ConstError("invalid size format")

// multipliers are decimal SI, not IEC: "1G" is 10^9 bytes.
var multipliers = map[byte]uint64{
	'M': 1000 * 1000,
	'G': 1000 * 1000 * 1000,
	'T': 1000 * 1000 * 1000 * 1000,
}

// ParseSize returns the number of bytes described by spec, which must be
// a decimal integer followed by one of the unit suffixes M, G or T.
func ParseSize(spec string) (uint64, error) {
	if len(spec) < 2 {
		return 0, errors.Annotatef(ErrInvalidSizeFormat, "size %q", spec)
	}
	digits, unit := spec[:len(spec)-1], spec[len(spec)-1]
	multiplier, ok := multipliers[unit]
	if !ok {
		return 0, errors.Annotatef(ErrInvalidSizeFormat, "size %q: unknown unit %q", spec, string(unit))
	}
	// ParseUint accepts neither signs nor fractions.
	n, err := strconv.ParseUint(digits, 10, 64)
	if err != nil {
		return 0, errors.Annotatef(ErrInvalidSizeFormat, "size %q: %q is not an integer", spec, digits)
	}
	if n > math.MaxUint64/multiplier {
		return 0, errors.Annotatef(ErrInvalidSizeFormat, "size %q overflows", spec)
	}
	return n * multiplier, nil
}

// FormatSize renders a byte count for humans, e.g. "10 GB".
func FormatSize(bytes uint64) string {
	return humanize.Bytes(bytes)
}
