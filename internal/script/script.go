// Copyright (C) 2024-2026, Gymlink Authors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package script launches external trainer processes and builds their
// command lines.
package script

import (
	"fmt"
	"log"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
)

// ArgBuilder accumulates CLI arguments and flags.
type ArgBuilder struct {
	args []string
}

func (b *ArgBuilder) AddString(name, value string) *ArgBuilder {
	b.args = append(b.args, "--"+name, value)
	return b
}

func (b *ArgBuilder) AddInt(name string, value int) *ArgBuilder {
	return b.AddString(name, strconv.Itoa(value))
}

func (b *ArgBuilder) AddFloat(name string, value float64) *ArgBuilder {
	return b.AddString(name, strconv.FormatFloat(value, 'g', -1, 64))
}

// AddFlag appends a bare flag when cond holds.
func (b *ArgBuilder) AddFlag(name string, cond bool) *ArgBuilder {
	if cond {
		b.args = append(b.args, "--"+name)
	}
	return b
}

// AddConditionalString appends the argument only when cond holds.
func (b *ArgBuilder) AddConditionalString(name, value string, cond bool) *ArgBuilder {
	if cond {
		return b.AddString(name, value)
	}
	return b
}

func (b *ArgBuilder) AddIntSlice(name string, values []int) *ArgBuilder {
	b.args = append(b.args, "--"+name)
	for _, v := range values {
		b.args = append(b.args, strconv.Itoa(v))
	}
	return b
}

// AddPositional appends an argument without a flag prefix.
func (b *ArgBuilder) AddPositional(arg string) *ArgBuilder {
	b.args = append(b.args, arg)
	return b
}

// Build returns the accumulated argument list.
func (b *ArgBuilder) Build() []string {
	out := make([]string, len(b.args))
	copy(out, b.args)
	return out
}

// String renders the arguments space-joined, for logging.
func (b *ArgBuilder) String() string { return strings.Join(b.args, " ") }

// Script is an external process launched alongside the server,
// typically the trainer itself.
type Script struct {
	Path string
	Args []string

	mu   sync.Mutex
	cmd  *exec.Cmd
	done chan error
}

// New builds a script from a path and initial arguments.
func New(path string, args ...string) *Script {
	return &Script{Path: path, Args: args}
}

// AppendArgs adds arguments after the ones already set.
func (s *Script) AppendArgs(args ...string) {
	s.Args = append(s.Args, args...)
}

// Launch starts the process. The script's stdout and stderr pass
// through to the parent process.
func (s *Script) Launch() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cmd != nil {
		return fmt.Errorf("script: %s already running", s.Path)
	}
	cmd := exec.Command(s.Path, s.Args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("script: launching %s: %w", s.Path, err)
	}
	log.Printf("[script] launched %s %s (pid %d)", s.Path, strings.Join(s.Args, " "), cmd.Process.Pid)
	s.cmd = cmd
	s.done = make(chan error, 1)
	go func() { s.done <- cmd.Wait() }()
	return nil
}

// Running reports whether the process has been launched and has not
// yet been observed to exit.
func (s *Script) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cmd == nil {
		return false
	}
	select {
	case err := <-s.done:
		s.done <- err
		return false
	default:
		return true
	}
}

// Wait blocks until the process exits.
func (s *Script) Wait() error {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done == nil {
		return fmt.Errorf("script: %s not launched", s.Path)
	}
	err := <-done
	done <- err
	return err
}

// Kill terminates the process if it is still running.
func (s *Script) Kill() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cmd == nil || s.cmd.Process == nil {
		return nil
	}
	select {
	case err := <-s.done:
		s.done <- err
		return nil
	default:
	}
	log.Printf("[script] killing %s (pid %d)", s.Path, s.cmd.Process.Pid)
	return s.cmd.Process.Kill()
}
