// Copyright (C) 2024-2026, Gymlink Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package connector

import (
	"context"
	"testing"
	"time"

	"github.com/gymlink/gymlink"
	"github.com/gymlink/gymlink/spaces"
)

// countEnv walks a counter up one per step and terminates at a preset
// count.
type countEnv struct {
	steps       int
	terminateAt int
}

func (e *countEnv) Reset() map[string]InitialAgentState {
	e.steps = 0
	return map[string]InitialAgentState{
		"bot": {Observations: spaces.BoxPoint(0)},
	}
}

func (e *countEnv) Step(actions map[string]spaces.Point) map[string]AgentState {
	e.steps++
	return map[string]AgentState{
		"bot": {
			Observations: spaces.BoxPoint(float32(e.steps)),
			Reward:       1,
			Terminated:   e.terminateAt > 0 && e.steps >= e.terminateAt,
		},
	}
}

func testDefinition() *TrainingDefinition {
	return &TrainingDefinition{
		Environments: []EnvironmentDefinition{{
			Agents: []AgentDefinition{{
				Name:         "bot",
				Observations: spaces.BoxSpace(-100, 100, 1),
				Actions:      spaces.DiscreteSpace(2),
			}},
		}},
	}
}

func openInproc(t *testing.T, opts ...Option) (*Connector, *gymlink.InprocTransport) {
	t.Helper()
	opts = append(opts, WithManagerOptions(gymlink.WithTransport(gymlink.TransportInproc)))
	conn, err := Open(0, "inproc", opts...)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	tr, ok := conn.Manager().Transport().(*gymlink.InprocTransport)
	if !ok {
		t.Fatalf("transport is %T", conn.Manager().Transport())
	}
	return conn, tr
}

func startTrainer(t *testing.T, ctx context.Context, tr *gymlink.InprocTransport, req *StartRequest) {
	t.Helper()
	resp, err := tr.Invoke(ctx, "/"+ServiceName+"/"+MethodStartConnector, req)
	if err != nil {
		t.Fatalf("start invoke: %v", err)
	}
	if _, ok := resp.(*StartResponse); !ok {
		t.Fatalf("start response: got %#v", resp)
	}
}

func fetchDefinition(t *testing.T, ctx context.Context, tr *gymlink.InprocTransport) *TrainingDefinition {
	t.Helper()
	resp, err := tr.Invoke(ctx, "/"+ServiceName+"/"+MethodGetTrainingDefinition, &DefinitionRequest{})
	if err != nil {
		t.Fatalf("definition invoke: %v", err)
	}
	def, ok := resp.(*TrainingDefinition)
	if !ok {
		t.Fatalf("definition response: got %#v", resp)
	}
	return def
}

// decide runs one trainer decision against the connector: the update
// goes over the wire, the host handles it, and the trainer's reply is
// returned.
func decide(t *testing.T, ctx context.Context, conn *Connector, tr *gymlink.InprocTransport, upd *StateUpdate) *State {
	t.Helper()
	fut, err := conn.RequestDecision()
	if err != nil {
		t.Fatalf("RequestDecision: %v", err)
	}
	type result struct {
		resp gymlink.Payload
		err  error
	}
	got := make(chan result, 1)
	go func() {
		resp, err := tr.Invoke(ctx, "/"+ServiceName+"/"+MethodUpdateState, upd)
		got <- result{resp, err}
	}()

	received, err := fut.Wait(ctx)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	conn.UpdateStatus(received)
	if conn.Status() == StatusRunning {
		if err := conn.HandleStep(received); err != nil {
			t.Fatalf("HandleStep: %v", err)
		}
	}

	res := <-got
	if res.err != nil {
		t.Fatalf("update invoke: %v", res.err)
	}
	state, ok := res.resp.(*State)
	if !ok {
		t.Fatalf("update response: got %#v", res.resp)
	}
	return state
}

func stepUpdate(action int) *StateUpdate {
	return &StateUpdate{
		Kind: UpdateStep,
		Environments: []EnvironmentStep{{
			Actions: map[string]spaces.Point{"bot": spaces.DiscretePoint(action)},
		}},
	}
}

func TestConnectorSession(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn, tr := openInproc(t)
	defer conn.Close()

	env := &countEnv{}
	if err := conn.Start(testDefinition(), env); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if started, err := conn.CheckForStart(); err != nil || started {
		t.Fatalf("CheckForStart before request: %v %v", started, err)
	}

	def := fetchDefinition(t, ctx, tr)
	if len(def.Environments) != 1 || def.Environments[0].Agents[0].Name != "bot" {
		t.Fatalf("definition: %+v", def)
	}

	startTrainer(t, ctx, tr, &StartRequest{TrainerVersion: "2.1.0", AutoReset: AutoResetNextStep})
	started, err := conn.CheckForStart()
	if err != nil || !started {
		t.Fatalf("CheckForStart: %v %v", started, err)
	}
	if conn.AutoReset() != AutoResetNextStep {
		t.Errorf("AutoReset: got %q", conn.AutoReset())
	}
	conn.ResetEnvironments()

	state := decide(t, ctx, conn, tr, stepUpdate(1))
	if state.Update == nil {
		t.Fatal("step reply missing state update")
	}
	bot := state.Update.Environments[0].Agents["bot"]
	if bot.Reward != 1 || bot.Observations.Box[0] != 1 {
		t.Errorf("agent state after step: %+v", bot)
	}
}

func TestConnectorVersionGate(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn, tr := openInproc(t, WithMinTrainerVersion("2.0.0"))
	defer conn.Close()
	if err := conn.Start(testDefinition(), &countEnv{}); err != nil {
		t.Fatalf("Start: %v", err)
	}

	startTrainer(t, ctx, tr, &StartRequest{TrainerVersion: "1.9.0"})
	if _, err := conn.CheckForStart(); err == nil {
		t.Fatal("stale trainer version accepted")
	}
	if conn.Status() != StatusError {
		t.Errorf("status after rejection: %v", conn.Status())
	}
}

func TestConnectorVersionAccepted(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn, tr := openInproc(t, WithMinTrainerVersion("2.0.0"))
	defer conn.Close()
	if err := conn.Start(testDefinition(), &countEnv{}); err != nil {
		t.Fatalf("Start: %v", err)
	}

	startTrainer(t, ctx, tr, &StartRequest{TrainerVersion: "2.0.0"})
	started, err := conn.CheckForStart()
	if err != nil || !started {
		t.Fatalf("CheckForStart: %v %v", started, err)
	}
}

func TestConnectorAutoResetSameStep(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn, tr := openInproc(t)
	defer conn.Close()
	env := &countEnv{terminateAt: 1}
	if err := conn.Start(testDefinition(), env); err != nil {
		t.Fatalf("Start: %v", err)
	}

	startTrainer(t, ctx, tr, &StartRequest{AutoReset: AutoResetSameStep})
	if _, err := conn.CheckForStart(); err != nil {
		t.Fatalf("CheckForStart: %v", err)
	}
	conn.ResetEnvironments()

	// The episode ends on the first step; the reply carries both the
	// terminal state and the fresh post-reset observation.
	state := decide(t, ctx, conn, tr, stepUpdate(0))
	if state.Update == nil || state.Initial == nil {
		t.Fatalf("same-step reply: %+v", state)
	}
	if !state.Update.Environments[0].Agents["bot"].Terminated {
		t.Error("terminal state not reported")
	}
	fresh, ok := state.Initial.Environments[0]
	if !ok || fresh.Agents["bot"].Observations.Box[0] != 0 {
		t.Errorf("initial state: %+v", state.Initial)
	}
	if env.steps != 0 {
		t.Errorf("environment not reset: steps=%d", env.steps)
	}
}

func TestConnectorAutoResetNextStep(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn, tr := openInproc(t)
	defer conn.Close()
	env := &countEnv{terminateAt: 1}
	if err := conn.Start(testDefinition(), env); err != nil {
		t.Fatalf("Start: %v", err)
	}

	startTrainer(t, ctx, tr, &StartRequest{AutoReset: AutoResetNextStep})
	if _, err := conn.CheckForStart(); err != nil {
		t.Fatalf("CheckForStart: %v", err)
	}
	conn.ResetEnvironments()

	state := decide(t, ctx, conn, tr, stepUpdate(0))
	if !state.Update.Environments[0].Agents["bot"].Terminated {
		t.Fatal("episode did not terminate")
	}

	// The next step resets instead of stepping the completed
	// environment.
	state = decide(t, ctx, conn, tr, stepUpdate(0))
	bot := state.Update.Environments[0].Agents["bot"]
	if bot.Terminated || bot.Reward != 0 || bot.Observations.Box[0] != 0 {
		t.Errorf("post-reset state: %+v", bot)
	}
	if env.steps != 0 {
		t.Errorf("environment counter after reset: %d", env.steps)
	}
}

func TestConnectorSessionCloseAndReconnect(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn, tr := openInproc(t)
	defer conn.Close()
	if err := conn.Start(testDefinition(), &countEnv{}); err != nil {
		t.Fatalf("Start: %v", err)
	}

	startTrainer(t, ctx, tr, &StartRequest{})
	if _, err := conn.CheckForStart(); err != nil {
		t.Fatalf("CheckForStart: %v", err)
	}
	// First session consumes the published definition.
	fetchDefinition(t, ctx, tr)

	// The trainer closes; the parked call is answered with a bare
	// state and the definition is republished for the next session.
	state := decide(t, ctx, conn, tr, &StateUpdate{Kind: UpdateClose})
	if state.Update != nil || state.Initial != nil {
		t.Errorf("close reply not bare: %+v", state)
	}
	if conn.Status() != StatusClosed {
		t.Fatalf("status after close: %v", conn.Status())
	}

	def := fetchDefinition(t, ctx, tr)
	if len(def.Environments) != 1 {
		t.Fatalf("republished definition: %+v", def)
	}

	startTrainer(t, ctx, tr, &StartRequest{})
	started, err := conn.CheckForStart()
	if err != nil || !started {
		t.Fatalf("second session CheckForStart: %v %v", started, err)
	}
}
