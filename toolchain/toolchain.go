// Package toolchain runs the external HLS and simulation tools.
package toolchain

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/pkg/errors"

	"github.com/cs217/hlsweep/log"
)

// Command is one external invocation. Script is run through `sh -c`;
// otherwise Args is executed directly.
type Command struct {
	Script string
	Args   []string
	Dir    string
	Label  string
}

func (c Command) String() string {
	if c.Label != "" {
		return c.Label
	}
	if c.Script != "" {
		return c.Script
	}
	return strings.Join(c.Args, " ")
}

// Result is the captured outcome of a Command.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Failed reports whether the command exited with a nonzero status.
func (r Result) Failed() bool {
	return r.ExitCode != 0
}

// Combined returns stdout followed by stderr.
func (r Result) Combined() string {
	return r.Stdout + r.Stderr
}

// Runner executes commands one at a time and waits for them to finish.
type Runner interface {
	Run(ctx context.Context, cmd Command) (Result, error)
}

// Shell runs commands as child processes of this one. A nonzero exit status
// is reported in the Result and is not an error; an error is only returned
// when the process could not be started or the context was cancelled.
type Shell struct {
	// Env is appended to the inherited environment of every command.
	Env []string
	// Spinner shows log.Spinner while a command is running.
	Spinner bool
}

// Run executes cmd. There is no timeout: a hung tool blocks until ctx is cancelled.
func (s *Shell) Run(ctx context.Context, cmd Command) (Result, error) {
	var c *exec.Cmd
	switch {
	case cmd.Script != "":
		c = exec.CommandContext(ctx, "sh", "-c", cmd.Script)
	case len(cmd.Args) > 0:
		c = exec.CommandContext(ctx, cmd.Args[0], cmd.Args[1:]...)
	default:
		return Result{}, fmt.Errorf("empty command")
	}
	c.Dir = cmd.Dir
	c.Env = append(os.Environ(), s.Env...)

	// The tool and everything it spawns live in their own process group so
	// that cancelling kills make and the simulator together.
	c.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	c.Cancel = func() error {
		return syscall.Kill(-c.Process.Pid, syscall.SIGKILL)
	}
	c.WaitDelay = time.Second

	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr

	log.Debug("Running '%s' in '%s'.\n", cmd.String(), cmd.Dir)
	if s.Spinner {
		log.Spinner.Suffix = " " + cmd.String()
		log.Spinner.Start()
	}
	err := c.Start()
	if err == nil {
		groups.add(c.Process.Pid)
		err = c.Wait()
		groups.remove(c.Process.Pid)
	}
	if s.Spinner {
		log.Spinner.Stop()
	}

	result := Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if c.ProcessState != nil {
		result.ExitCode = c.ProcessState.ExitCode()
	}
	if ctx.Err() != nil {
		return result, errors.Wrapf(ctx.Err(), "'%s' was interrupted", cmd.String())
	}
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return result, errors.Wrapf(err, "failed to run '%s'", cmd.String())
		}
	}
	log.Debug("'%s' exited with status %d.\n", cmd.String(), result.ExitCode)
	return result, nil
}

// processGroups tracks the process groups of running tools.
type processGroups struct {
	mu   sync.Mutex
	pids map[int]struct{}
}

var groups = &processGroups{pids: map[int]struct{}{}}

func (g *processGroups) add(pid int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.pids[pid] = struct{}{}
}

func (g *processGroups) remove(pid int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.pids, pid)
}

// kill sends SIGKILL to every tracked process group and returns how many
// groups were signalled.
func (g *processGroups) kill() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	killed := 0
	for pid := range g.pids {
		if err := syscall.Kill(-pid, syscall.SIGKILL); err == nil {
			killed++
		}
	}
	return killed
}

// Housekeep runs an auxiliary command whose failure must abort the whole
// sweep: a nonzero exit status is turned into an error.
func Housekeep(ctx context.Context, runner Runner, cmd Command) error {
	result, err := runner.Run(ctx, cmd)
	if err != nil {
		return err
	}
	if result.Failed() {
		return errors.Errorf("'%s' exited with status %d: %s", cmd.String(), result.ExitCode, strings.TrimSpace(result.Stderr))
	}
	return nil
}
