// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Command maasng converges MAAS machine storage, VLANs and boot
// sources towards the states declared in a YAML file.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(Main(ctx, os.Args[1:]))
}

// Main runs maasng with the given arguments and returns its exit code.
func Main(ctx context.Context, args []string) int {
	dir, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR %v\n", err)
		return exitInvalid
	}
	return newSuperCommand(
		newApplyCommand(false),
		newApplyCommand(true),
	).Main(&Context{
		Context: ctx,
		Dir:     dir,
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
	}, args)
}
