// Copyright (C) 2024-2026, Gymlink Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package connector

import "github.com/gymlink/gymlink/spaces"

// AutoResetMode selects how completed environments restart.
type AutoResetMode string

const (
	// AutoResetDisabled leaves completed environments inactive until
	// the trainer resets them.
	AutoResetDisabled AutoResetMode = "disabled"
	// AutoResetSameStep resets in the same step the episode ends and
	// reports the fresh observation alongside the terminal one.
	AutoResetSameStep AutoResetMode = "same_step"
	// AutoResetNextStep resets at the start of the following step.
	AutoResetNextStep AutoResetMode = "next_step"
)

// StartRequest begins a training session. Sent once by the trainer
// before any state exchange.
type StartRequest struct {
	TrainerVersion string        `json:"trainer_version,omitempty"`
	AutoReset      AutoResetMode `json:"auto_reset,omitempty"`
}

func (m *StartRequest) Reset() { *m = StartRequest{} }

// StartResponse acknowledges a StartRequest.
type StartResponse struct{}

func (m *StartResponse) Reset() { *m = StartResponse{} }

// DefinitionRequest asks for the training definition.
type DefinitionRequest struct{}

func (m *DefinitionRequest) Reset() { *m = DefinitionRequest{} }

// AgentDefinition describes one agent's observation and action shapes.
type AgentDefinition struct {
	Name         string       `json:"name"`
	Observations spaces.Space `json:"observations"`
	Actions      spaces.Space `json:"actions"`
}

// EnvironmentDefinition groups the agents of one environment.
type EnvironmentDefinition struct {
	Agents []AgentDefinition `json:"agents"`
}

// TrainingDefinition is the static description of every environment,
// published once per connection.
type TrainingDefinition struct {
	Environments []EnvironmentDefinition `json:"environments"`
}

func (m *TrainingDefinition) Reset() { *m = TrainingDefinition{} }

// UpdateKind marks control updates carried alongside actions.
type UpdateKind string

const (
	UpdateStep  UpdateKind = "step"
	UpdateClose UpdateKind = "close"
	UpdateError UpdateKind = "error"
)

// EnvironmentStep carries the actions for one environment, keyed by
// agent name.
type EnvironmentStep struct {
	Actions map[string]spaces.Point `json:"actions"`
}

// StateUpdate is a decision from the trainer: either one step of
// actions for every environment, or a control signal.
type StateUpdate struct {
	Kind         UpdateKind        `json:"kind"`
	Environments []EnvironmentStep `json:"environments,omitempty"`
	Error        string            `json:"error,omitempty"`
}

func (m *StateUpdate) Reset() { *m = StateUpdate{} }

// IsClose reports whether the trainer is ending the session.
func (m *StateUpdate) IsClose() bool { return m.Kind == UpdateClose }

// IsError reports whether the trainer hit a failure.
func (m *StateUpdate) IsError() bool { return m.Kind == UpdateError }

// AgentState is one agent's view after a step.
type AgentState struct {
	Observations spaces.Point      `json:"observations"`
	Reward       float32           `json:"reward"`
	Terminated   bool              `json:"terminated,omitempty"`
	Truncated    bool              `json:"truncated,omitempty"`
	Info         map[string]string `json:"info,omitempty"`
}

// EnvironmentState holds per-agent states plus whether the
// environment has finished its episode.
type EnvironmentState struct {
	Agents    map[string]AgentState `json:"agents"`
	Completed bool                  `json:"completed,omitempty"`
}

// TrainingState is the post-step state of every environment.
type TrainingState struct {
	Environments []EnvironmentState `json:"environments"`
}

// InitialAgentState is an agent's view right after a reset. No reward
// or termination flags exist yet.
type InitialAgentState struct {
	Observations spaces.Point      `json:"observations"`
	Info         map[string]string `json:"info,omitempty"`
}

// InitialEnvironmentState holds the fresh agent states of one reset
// environment.
type InitialEnvironmentState struct {
	Agents map[string]InitialAgentState `json:"agents"`
}

// InitialState maps environment index to its post-reset state. Only
// environments that actually reset appear.
type InitialState struct {
	Environments map[int]InitialEnvironmentState `json:"environments"`
}

// State is the reply to a StateUpdate. Either or both parts may be
// set depending on the auto-reset mode; a reply with neither is the
// bare acknowledgement sent when a session is torn down.
type State struct {
	Update  *TrainingState `json:"update,omitempty"`
	Initial *InitialState  `json:"initial,omitempty"`
}

func (m *State) Reset() { *m = State{} }
