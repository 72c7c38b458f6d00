// Copyright (C) 2024-2026, Gymlink Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package config

import (
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	if err := Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if got := GetInt("port"); got <= 0 {
		t.Errorf("port default: %d", got)
	}
	if got := GetString("transport"); got == "" {
		t.Error("transport default empty")
	}
	if got := GetDuration("start-poll-interval"); got <= 0 || got > time.Minute {
		t.Errorf("start-poll-interval default: %v", got)
	}
}

func TestSetOverrides(t *testing.T) {
	if err := Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	Set("port", 9999)
	if got := GetInt("port"); got != 9999 {
		t.Errorf("port after Set: %d", got)
	}
	Set("script-args", []string{"--headless"})
	if got := GetStringSlice("script-args"); len(got) != 1 || got[0] != "--headless" {
		t.Errorf("script-args after Set: %v", got)
	}
}
