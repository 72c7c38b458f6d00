// Copyright (C) 2024-2026, Gymlink Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"strconv"

	"github.com/gymlink/gymlink/connector"
	"github.com/gymlink/gymlink/spaces"
)

const (
	walkerBound    = 10.0
	walkerMaxSteps = 200
)

// walkerEnv is a one-dimensional random walk. The agent moves left or
// right along a line and is rewarded for staying near the origin. It
// exists so a trainer can be pointed at a live server without any
// simulation attached.
type walkerEnv struct {
	pos   float32
	steps int
}

func walkerDefinition() (*connector.TrainingDefinition, *walkerEnv) {
	def := &connector.TrainingDefinition{
		Environments: []connector.EnvironmentDefinition{{
			Agents: []connector.AgentDefinition{{
				Name:         "walker",
				Observations: spaces.BoxSpace(-walkerBound, walkerBound, 1),
				Actions:      spaces.DiscreteSpace(3),
			}},
		}},
	}
	return def, &walkerEnv{}
}

func (e *walkerEnv) Reset() map[string]connector.InitialAgentState {
	e.pos = 0
	e.steps = 0
	return map[string]connector.InitialAgentState{
		"walker": {Observations: spaces.BoxPoint(e.pos)},
	}
}

func (e *walkerEnv) Step(actions map[string]spaces.Point) map[string]connector.AgentState {
	switch actions["walker"].Discrete {
	case 0:
		e.pos--
	case 2:
		e.pos++
	}
	e.steps++

	reward := -abs32(e.pos) / walkerBound
	terminated := abs32(e.pos) >= walkerBound
	truncated := e.steps >= walkerMaxSteps
	return map[string]connector.AgentState{
		"walker": {
			Observations: spaces.BoxPoint(e.pos),
			Reward:       reward,
			Terminated:   terminated,
			Truncated:    truncated,
			Info:         map[string]string{"steps": strconv.Itoa(e.steps)},
		},
	}
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
