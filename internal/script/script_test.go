// Copyright (C) 2024-2026, Gymlink Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package script

import (
	"os/exec"
	"testing"
)

func TestArgBuilder(t *testing.T) {
	var b ArgBuilder
	args := b.
		AddString("address", "127.0.0.1").
		AddInt("port", 8000).
		AddFlag("headless", true).
		AddFlag("verbose", false).
		AddConditionalString("checkpoint", "ck.pt", false).
		AddIntSlice("layers", []int{64, 64}).
		AddPositional("train.py").
		Build()

	want := []string{"--address", "127.0.0.1", "--port", "8000", "--headless", "--layers", "64", "64", "train.py"}
	if len(args) != len(want) {
		t.Fatalf("args: got %v, want %v", args, want)
	}
	for i := range want {
		if args[i] != want[i] {
			t.Fatalf("arg %d: got %q, want %q", i, args[i], want[i])
		}
	}

	// Build copies; later additions must not leak into earlier
	// snapshots.
	b.AddFlag("late", true)
	if len(args) != len(want) {
		t.Error("Build result aliased the builder")
	}

	if b.String() == "" {
		t.Error("String empty")
	}
}

func TestArgBuilderFloat(t *testing.T) {
	var b ArgBuilder
	args := b.AddFloat("lr", 0.001).Build()
	if len(args) != 2 || args[1] != "0.001" {
		t.Errorf("float arg: %v", args)
	}
}

func TestScriptNotLaunched(t *testing.T) {
	s := New("/does/not/exist")
	if s.Running() {
		t.Error("unlaunched script reported running")
	}
	if err := s.Wait(); err == nil {
		t.Error("Wait on unlaunched script succeeded")
	}
	if err := s.Kill(); err != nil {
		t.Errorf("Kill on unlaunched script: %v", err)
	}
}

func TestScriptLaunchFailure(t *testing.T) {
	s := New("/does/not/exist")
	if err := s.Launch(); err == nil {
		t.Fatal("Launch of a missing binary succeeded")
	}
}

func TestScriptLaunchAndWait(t *testing.T) {
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("no sh on PATH")
	}
	s := New(sh, "-c", "exit 0")
	if err := s.Launch(); err != nil {
		t.Fatalf("Launch: %v", err)
	}
	if err := s.Launch(); err == nil {
		t.Error("double Launch succeeded")
	}
	if err := s.Wait(); err != nil {
		t.Errorf("Wait: %v", err)
	}
	if s.Running() {
		t.Error("exited script reported running")
	}
	// Kill after exit is a no-op.
	if err := s.Kill(); err != nil {
		t.Errorf("Kill after exit: %v", err)
	}
}
