// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/juju/errors"
	"github.com/juju/gnuflag"
	"github.com/juju/loggo/v2"
)

var logger = loggo.GetLogger("maasng.cmd")

// Exit codes.
const (
	exitOK      = 0
	exitFailed  = 1
	exitInvalid = 2
)

// errSilent is returned by commands that have already reported their
// outcome and only need a non-zero exit code.
const errSilent = errors.ConstError("silent error")

// Info holds everything necessary to describe a Command's intent and usage.
type Info struct {
	// Name is the Command's name.
	Name string

	// Args describes the command's expected arguments.
	Args string

	// Purpose is a short explanation of the Command's purpose.
	Purpose string

	// Doc is the long documentation for the Command.
	Doc string
}

// Usage combines Name and Args to describe the Command's intended usage.
func (i *Info) Usage() string {
	return strings.TrimSpace(fmt.Sprintf("maasng %s [options] %s", i.Name, i.Args))
}

// Context is the execution environment of a Command.
type Context struct {
	context.Context
	Dir    string
	Stdout io.Writer
	Stderr io.Writer
}

// AbsPath returns an absolute representation of path, relative to the
// context's working directory.
func (ctx *Context) AbsPath(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(ctx.Dir, path)
}

// Command is a maasng subcommand.
type Command interface {
	// Info returns information about the command.
	Info() *Info

	// SetFlags adds the command's options to f.
	SetFlags(f *gnuflag.FlagSet)

	// Init is called with the positional arguments left after parsing
	// the flags.
	Init(args []string) error

	// Run executes the command.
	Run(ctx *Context) error
}

// superCommand dispatches to subcommands after handling the global
// logging options.
type superCommand struct {
	commands map[string]Command

	debug         bool
	loggingConfig string
}

func newSuperCommand(commands ...Command) *superCommand {
	s := &superCommand{commands: make(map[string]Command)}
	for _, c := range commands {
		s.commands[c.Info().Name] = c
	}
	return s
}

func (s *superCommand) setFlags(f *gnuflag.FlagSet) {
	f.BoolVar(&s.debug, "debug", false, "log debug messages")
	f.StringVar(&s.loggingConfig, "logging-config", "", "loggo configuration, e.g. <root>=INFO;maasng.maas=TRACE")
}

func (s *superCommand) printUsage(w io.Writer) {
	fmt.Fprintf(w, "usage: maasng [options] <command> ...\n")
	fmt.Fprintf(w, "\ncommands:\n")
	names := make([]string, 0, len(s.commands))
	for name := range s.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "    %-8s %s\n", name, s.commands[name].Info().Purpose)
	}
	fmt.Fprintf(w, "\noptions:\n")
	f := gnuflag.NewFlagSet("maasng", gnuflag.ContinueOnError)
	f.SetOutput(w)
	s.setFlags(f)
	f.PrintDefaults()
}

func printCommandUsage(w io.Writer, c Command) {
	info := c.Info()
	fmt.Fprintf(w, "usage: %s\n", info.Usage())
	fmt.Fprintf(w, "purpose: %s\n", info.Purpose)
	fmt.Fprintf(w, "\noptions:\n")
	f := gnuflag.NewFlagSet(info.Name, gnuflag.ContinueOnError)
	f.SetOutput(w)
	c.SetFlags(f)
	f.PrintDefaults()
	if info.Doc != "" {
		fmt.Fprintf(w, "\n%s\n", strings.TrimSpace(info.Doc))
	}
}

// Main parses args, runs the selected command and returns the exit
// code.
func (s *superCommand) Main(ctx *Context, args []string) int {
	f := gnuflag.NewFlagSet("maasng", gnuflag.ContinueOnError)
	f.SetOutput(io.Discard)
	s.setFlags(f)
	if err := f.Parse(false, args); err == gnuflag.ErrHelp {
		s.printUsage(ctx.Stdout)
		return exitOK
	} else if err != nil {
		fmt.Fprintf(ctx.Stderr, "ERROR %v\n", err)
		s.printUsage(ctx.Stderr)
		return exitInvalid
	}
	args = f.Args()
	if len(args) == 0 {
		s.printUsage(ctx.Stderr)
		return exitInvalid
	}
	if args[0] == "help" {
		if len(args) > 1 {
			if c, ok := s.commands[args[1]]; ok {
				printCommandUsage(ctx.Stdout, c)
				return exitOK
			}
		}
		s.printUsage(ctx.Stdout)
		return exitOK
	}
	c, ok := s.commands[args[0]]
	if !ok {
		fmt.Fprintf(ctx.Stderr, "ERROR unrecognized command: maasng %s\n", args[0])
		return exitInvalid
	}

	if err := setupLogging(ctx.Stderr, s.debug, s.loggingConfig); err != nil {
		fmt.Fprintf(ctx.Stderr, "ERROR %v\n", err)
		return exitInvalid
	}

	cf := gnuflag.NewFlagSet(c.Info().Name, gnuflag.ContinueOnError)
	cf.SetOutput(io.Discard)
	c.SetFlags(cf)
	if err := cf.Parse(true, args[1:]); err == gnuflag.ErrHelp {
		printCommandUsage(ctx.Stdout, c)
		return exitOK
	} else if err != nil {
		fmt.Fprintf(ctx.Stderr, "ERROR %v\n", err)
		printCommandUsage(ctx.Stderr, c)
		return exitInvalid
	}
	if err := c.Init(cf.Args()); err != nil {
		fmt.Fprintf(ctx.Stderr, "ERROR %v\n", err)
		printCommandUsage(ctx.Stderr, c)
		return exitInvalid
	}

	err := c.Run(ctx)
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errSilent):
		return exitFailed
	}
	logger.Debugf("%s command failed: %s", c.Info().Name, errors.ErrorStack(err))
	fmt.Fprintf(ctx.Stderr, "ERROR %v\n", err)
	return exitInvalid
}

// checkEmpty returns an error if args is not empty.
func checkEmpty(args []string) error {
	if len(args) != 0 {
		return errors.Errorf("unrecognized args: %q", args)
	}
	return nil
}

func setupLogging(w io.Writer, debug bool, config string) error {
	if _, err := loggo.ReplaceDefaultWriter(loggo.NewSimpleWriter(w, loggo.DefaultFormatter)); err != nil {
		return errors.Trace(err)
	}
	level := loggo.INFO
	if debug {
		level = loggo.DEBUG
	}
	if err := loggo.ConfigureLoggers(fmt.Sprintf("<root>=%s", level)); err != nil {
		return errors.Trace(err)
	}
	if config == "" {
		return nil
	}
	return errors.Annotate(loggo.ConfigureLoggers(config), "logging config")
}
