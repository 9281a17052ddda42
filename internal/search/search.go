// Package search invokes the external mail-search binary (the "mu"
// tool) as a subprocess, writing its results into a staging directory
// as maildir-style symlinks.
package search

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/tomhrr/fsmu/internal/ferrors"
)

// successExitCodes are the exit codes mu uses for "ran fine,
// possibly with zero results". 1024 is empirical behaviour some mu
// builds exhibit and is gated behind Compat1024.
var successExitCodes = map[int]bool{0: true, 2: true}

const compat1024Code = 1024

// Options configures the invoker.
type Options struct {
	// MuPath is the path to the external search binary.
	MuPath string
	// MuHome, if non-empty, is passed through via --muhome.
	MuHome string
	// EnableIndexing runs "<mu> index [--muhome=...]" before every
	// find, so a stale mu index doesn't silently under-report results.
	EnableIndexing bool
	// Compat1024 treats mu's exit code 1024 as success, for mu builds
	// that exhibit that behaviour unconditionally.
	Compat1024 bool
}

// Invoker runs the search tool on behalf of the refresh engine.
type Invoker struct {
	opts Options
}

// New returns an Invoker configured with opts.
func New(opts Options) *Invoker {
	if opts.MuPath == "" {
		opts.MuPath = "mu"
	}
	return &Invoker{opts: opts}
}

func (inv *Invoker) isSuccess(code int) bool {
	if successExitCodes[code] {
		return true
	}
	if code == compat1024Code && inv.opts.Compat1024 {
		return true
	}
	return false
}

func (inv *Invoker) muHomeArgs() []string {
	if inv.opts.MuHome == "" {
		return nil
	}
	return []string{"--muhome=" + inv.opts.MuHome}
}

// runIndex shells out to "<mu> index [--muhome=...]" so that
// newly-delivered mail is indexed before being searched. Only invoked
// when EnableIndexing is set.
func (inv *Invoker) runIndex(ctx context.Context) error {
	args := append([]string{"index"}, inv.muHomeArgs()...)
	cmd := exec.CommandContext(ctx, inv.opts.MuPath, args...)
	if err := cmd.Run(); err != nil {
		exitErr, ok := err.(*exec.ExitError)
		if !ok {
			return ferrors.New(ferrors.KindIOError, "search.index", inv.opts.MuPath, err)
		}
		code := exitErr.ExitCode()
		if !inv.isSuccess(code) {
			return ferrors.New(ferrors.KindSearchFailed, "search.index", inv.opts.MuPath,
				fmt.Errorf("mu index exited %d", code))
		}
	}
	return nil
}

// Run invokes the search tool for query, asking it to write its
// result set into stagingDir as a maildir (cur/ and new/ populated
// with symlinks to real message paths). Exit codes 0, 2, and
// (if Compat1024 is set) 1024 are treated as success — zero results is
// not an error. Any other nonzero code is SearchFailed.
//
// Run does not parse the tool's output; its only defensive act beyond
// invoking the binary is ensuring stagingDir/{cur,new} exist
// afterward, in case the tool produced zero results without creating
// them.
func (inv *Invoker) Run(ctx context.Context, query, stagingDir string) error {
	if inv.opts.EnableIndexing {
		if err := inv.runIndex(ctx); err != nil {
			return err
		}
	}

	args := []string{"find"}
	args = append(args, inv.muHomeArgs()...)
	args = append(args, "--clearlinks", "--format=links", "--linksdir="+stagingDir, query)

	cmd := exec.CommandContext(ctx, inv.opts.MuPath, args...)
	err := cmd.Run()
	if err != nil {
		exitErr, ok := err.(*exec.ExitError)
		if !ok {
			return ferrors.New(ferrors.KindIOError, "search.Run", inv.opts.MuPath, err)
		}
		code := exitErr.ExitCode()
		if !inv.isSuccess(code) {
			return ferrors.New(ferrors.KindSearchFailed, "search.Run", inv.opts.MuPath,
				fmt.Errorf("mu find exited %d", code))
		}
	}

	for _, sub := range []string{"cur", "new"} {
		if err := os.MkdirAll(stagingDir+"/"+sub, 0755); err != nil {
			return ferrors.New(ferrors.KindIOError, "search.Run", stagingDir, err)
		}
	}
	return nil
}
