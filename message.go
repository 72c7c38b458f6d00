// Copyright (C) 2024-2026, Gymlink Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package gymlink

// Payload is the contract every wire message must satisfy: pointer to
// a clearable value. Generated protobuf messages satisfy it out of the
// box; plain structs only need a Reset method. The engine treats
// payloads as opaque beyond this.
type Payload interface {
	Reset()
}

// Message constrains a payload pointer type to its element type so the
// engine can allocate fresh instances without reflection at the call
// sites that know the concrete types.
type Message[T any] interface {
	*T
	Payload
}

// factory produces a fresh payload for one side of a method.
type factory func() Payload

func payloadFactory[T any, P Message[T]]() factory {
	return func() Payload { return P(new(T)) }
}

// Method identifies one RPC method and carries the payload factories
// the transport and the call state machine allocate from.
type Method struct {
	Service string
	Name    string

	newRequest  factory
	newResponse factory
}

// NewMethod describes the method service/name with its request and
// response payload types. In and Out are the message element types,
// e.g. NewMethod[StateUpdate, State]("sim.GymService", "UpdateState").
func NewMethod[In, Out any, PIn Message[In], POut Message[Out]](service, name string) *Method {
	return &Method{
		Service:     service,
		Name:        name,
		newRequest:  payloadFactory[In, PIn](),
		newResponse: payloadFactory[Out, POut](),
	}
}

// NewRequest allocates a fresh request payload.
func (m *Method) NewRequest() Payload { return m.newRequest() }

// NewResponse allocates a fresh response payload.
func (m *Method) NewResponse() Payload { return m.newResponse() }

// FullName returns the wire name of the method, e.g.
// "/sim.GymService/UpdateState".
func (m *Method) FullName() string {
	return "/" + m.Service + "/" + m.Name
}
