// Copyright (C) 2024-2026, Gymlink Authors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package connector exposes simulation environments to an external
// trainer over the gymlink engine. It wires three backends onto one
// service: a producer publishing the training definition, a consumer
// polling for start requests, and an exchange carrying the
// decision/state loop.
package connector

import (
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"golang.org/x/mod/semver"

	"github.com/gymlink/gymlink"
	"github.com/gymlink/gymlink/internal/script"
	"github.com/gymlink/gymlink/spaces"
)

// Service and method names of the trainer-facing API.
const (
	ServiceName                 = "gymlink.GymService"
	MethodUpdateState           = "UpdateState"
	MethodGetTrainingDefinition = "GetTrainingDefinition"
	MethodStartConnector        = "StartConnector"
)

// Status is the connector lifecycle state.
type Status int32

const (
	StatusNotStarted Status = iota
	StatusRunning
	StatusClosed
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusNotStarted:
		return "not started"
	case StatusRunning:
		return "running"
	case StatusClosed:
		return "closed"
	case StatusError:
		return "error"
	default:
		return fmt.Sprintf("status(%d)", int32(s))
	}
}

// Environment is one simulation instance driven by the trainer. Step
// applies per-agent actions and returns the resulting agent states;
// Reset starts a fresh episode.
type Environment interface {
	Reset() map[string]InitialAgentState
	Step(actions map[string]spaces.Point) map[string]AgentState
}

// Option configures a Connector.
type Option func(*Connector)

// WithMinTrainerVersion rejects start requests from trainers older
// than the given semantic version.
func WithMinTrainerVersion(v string) Option {
	return func(c *Connector) { c.minVersion = canonVersion(v) }
}

// WithScript launches the given process when the connector starts,
// typically the trainer itself.
func WithScript(s *script.Script) Option {
	return func(c *Connector) { c.script = s }
}

// WithManagerOptions forwards options to the underlying engine
// manager, such as the transport choice.
func WithManagerOptions(opts ...gymlink.Option) Option {
	return func(c *Connector) { c.managerOpts = append(c.managerOpts, opts...) }
}

// Connector owns the engine manager and the three trainer-facing
// backends, and tracks the connection lifecycle across trainer
// sessions.
type Connector struct {
	manager     *gymlink.Manager
	decisions   *gymlink.Exchange[*StateUpdate, *State]
	definitions *gymlink.Producer[*TrainingDefinition]
	starts      *gymlink.Consumer[*StartRequest]

	script      *script.Script
	minVersion  string
	managerOpts []gymlink.Option

	status atomic.Int32

	mu        sync.Mutex
	def       *TrainingDefinition
	envs      []Environment
	state     TrainingState
	autoReset AutoResetMode
	onStarted []func()
	onClosed  []func()
	onError   []func()
}

// Open builds the connector and registers its backends on a manager
// bound to the given port and address. The server does not listen
// until Start.
func Open(port int, address string, opts ...Option) (*Connector, error) {
	c := &Connector{}
	for _, opt := range opts {
		opt(c)
	}

	c.manager = gymlink.NewManager(c.managerOpts...)
	if err := c.manager.Initialize(port, address); err != nil {
		return nil, fmt.Errorf("connector: initializing manager: %w", err)
	}

	var err error
	c.decisions, err = gymlink.CreateExchangeBackend[StateUpdate, State](c.manager, ServiceName, MethodUpdateState)
	if err != nil {
		return nil, fmt.Errorf("connector: creating decision backend: %w", err)
	}
	c.definitions, err = gymlink.CreateProducerBackend[DefinitionRequest, TrainingDefinition](c.manager, ServiceName, MethodGetTrainingDefinition)
	if err != nil {
		return nil, fmt.Errorf("connector: creating definition backend: %w", err)
	}
	c.starts, err = gymlink.CreatePollingBackend[StartRequest, StartResponse](c.manager, ServiceName, MethodStartConnector)
	if err != nil {
		return nil, fmt.Errorf("connector: creating start backend: %w", err)
	}

	// A closed session leaves a stale exchange and a consumed
	// definition behind. Clear both so the next trainer connection
	// starts clean.
	c.OnClosed(func() {
		log.Printf("[connector] session closed, resetting for next connection")
		c.decisions.Reset()
		c.mu.Lock()
		def := c.def
		c.mu.Unlock()
		if def != nil {
			if err := c.definitions.Publish(def); err != nil {
				log.Printf("[connector] republishing definition: %v", err)
			}
		}
	})
	return c, nil
}

// OnStarted registers a hook run when a trainer session begins.
func (c *Connector) OnStarted(f func()) { c.addHook(&c.onStarted, f) }

// OnClosed registers a hook run when the trainer ends the session.
func (c *Connector) OnClosed(f func()) { c.addHook(&c.onClosed, f) }

// OnError registers a hook run when the trainer reports a failure.
func (c *Connector) OnError(f func()) { c.addHook(&c.onError, f) }

func (c *Connector) addHook(hooks *[]func(), f func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	*hooks = append(*hooks, f)
}

// Start publishes the training definition, starts the server, and
// launches the configured script if any.
func (c *Connector) Start(def *TrainingDefinition, envs ...Environment) error {
	c.mu.Lock()
	c.def = def
	c.envs = envs
	c.state = TrainingState{Environments: make([]EnvironmentState, len(envs))}
	c.mu.Unlock()

	if err := c.manager.StartBackends(); err != nil {
		return fmt.Errorf("connector: starting backends: %w", err)
	}
	if c.script != nil {
		if err := c.script.Launch(); err != nil {
			return err
		}
	}
	if err := c.definitions.Publish(def); err != nil {
		return fmt.Errorf("connector: publishing definition: %w", err)
	}
	return nil
}

// CheckForStart polls for a trainer start request. It returns true
// once a session is running. A trainer below the minimum version is
// rejected and moves the connector to StatusError.
func (c *Connector) CheckForStart() (bool, error) {
	if req, ok := c.starts.Poll(); ok {
		if c.minVersion != "" {
			v := canonVersion(req.TrainerVersion)
			if !semver.IsValid(v) || semver.Compare(v, c.minVersion) < 0 {
				c.setStatus(StatusError)
				return false, fmt.Errorf("connector: trainer version %q below minimum %q", req.TrainerVersion, c.minVersion)
			}
		}
		c.mu.Lock()
		c.autoReset = req.AutoReset
		c.mu.Unlock()
		c.setStatus(StatusRunning)
	}
	return c.Status() == StatusRunning, nil
}

// RequestDecision asks the trainer for the next state update. The
// returned future resolves when the trainer's request arrives.
func (c *Connector) RequestDecision() (*gymlink.Future[*StateUpdate], error) {
	return c.decisions.Receive()
}

// SubmitState answers the pending decision with the post-step state.
func (c *Connector) SubmitState(ts *TrainingState) error {
	return c.decisions.Respond(&State{Update: ts})
}

// SubmitInitialState answers the pending decision with post-reset
// observations only.
func (c *Connector) SubmitInitialState(is *InitialState) error {
	return c.decisions.Respond(&State{Initial: is})
}

// SubmitStateWithInitialState answers the pending decision with the
// post-step state plus fresh observations for environments that reset
// in the same step.
func (c *Connector) SubmitStateWithInitialState(ts *TrainingState, is *InitialState) error {
	return c.decisions.Respond(&State{Update: ts, Initial: is})
}

// UpdateStatus inspects a received update for control signals and
// moves the connector lifecycle accordingly.
func (c *Connector) UpdateStatus(u *StateUpdate) {
	switch {
	case u.IsError():
		log.Printf("[connector] trainer reported error: %s", u.Error)
		c.setStatus(StatusError)
	case u.IsClose():
		log.Printf("[connector] trainer closed the session")
		c.setStatus(StatusClosed)
	}
}

// HandleStep applies one decision to every environment and submits
// the resulting state, honoring the session's auto-reset mode.
func (c *Connector) HandleStep(u *StateUpdate) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(u.Environments) != len(c.envs) {
		return fmt.Errorf("connector: update has %d environments, connector has %d", len(u.Environments), len(c.envs))
	}

	switch c.autoReset {
	case AutoResetSameStep:
		initial := InitialState{Environments: map[int]InitialEnvironmentState{}}
		for i, step := range u.Environments {
			env := &c.state.Environments[i]
			env.Agents = c.envs[i].Step(step.Actions)
			env.Completed = allAgentsCompleted(env.Agents)
			if env.Completed {
				initial.Environments[i] = InitialEnvironmentState{Agents: c.envs[i].Reset()}
				env.Completed = false
			}
		}
		return c.decisions.Respond(&State{Update: &c.state, Initial: &initial})

	case AutoResetNextStep:
		for i, step := range u.Environments {
			env := &c.state.Environments[i]
			if env.Completed {
				fresh := c.envs[i].Reset()
				env.Agents = make(map[string]AgentState, len(fresh))
				for name, init := range fresh {
					env.Agents[name] = AgentState{Observations: init.Observations, Info: init.Info}
				}
				env.Completed = false
				continue
			}
			env.Agents = c.envs[i].Step(step.Actions)
			env.Completed = allAgentsCompleted(env.Agents)
		}
		return c.decisions.Respond(&State{Update: &c.state})

	default: // AutoResetDisabled
		for i, step := range u.Environments {
			env := &c.state.Environments[i]
			if env.Completed {
				continue
			}
			env.Agents = c.envs[i].Step(step.Actions)
			env.Completed = allAgentsCompleted(env.Agents)
		}
		return c.decisions.Respond(&State{Update: &c.state})
	}
}

// ResetEnvironments resets every environment and returns the initial
// observations, used when a session begins.
func (c *Connector) ResetEnvironments() *InitialState {
	c.mu.Lock()
	defer c.mu.Unlock()
	is := InitialState{Environments: map[int]InitialEnvironmentState{}}
	for i, env := range c.envs {
		is.Environments[i] = InitialEnvironmentState{Agents: env.Reset()}
		c.state.Environments[i] = EnvironmentState{}
	}
	return &is
}

// Status returns the connector lifecycle state.
func (c *Connector) Status() Status { return Status(c.status.Load()) }

// AutoReset returns the mode requested by the current session.
func (c *Connector) AutoReset() AutoResetMode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.autoReset
}

// Manager exposes the underlying engine manager.
func (c *Connector) Manager() *gymlink.Manager { return c.manager }

// Close shuts the server down and kills the launched script if any.
func (c *Connector) Close() error {
	c.setStatus(StatusClosed)
	c.manager.ShutdownServer()
	if c.script != nil {
		return c.script.Kill()
	}
	return nil
}

func (c *Connector) setStatus(s Status) {
	prev := c.status.Swap(int32(s))
	if Status(prev) == s {
		return
	}
	var hooks []func()
	c.mu.Lock()
	switch s {
	case StatusRunning:
		hooks = append(hooks, c.onStarted...)
	case StatusClosed:
		hooks = append(hooks, c.onClosed...)
	case StatusError:
		hooks = append(hooks, c.onError...)
	}
	c.mu.Unlock()
	for _, f := range hooks {
		f()
	}
}

func allAgentsCompleted(agents map[string]AgentState) bool {
	if len(agents) == 0 {
		return false
	}
	for _, a := range agents {
		if !a.Terminated && !a.Truncated {
			return false
		}
	}
	return true
}

// canonVersion normalizes to the v-prefixed form semver expects.
func canonVersion(v string) string {
	if v == "" {
		return ""
	}
	if v[0] != 'v' {
		v = "v" + v
	}
	return v
}
