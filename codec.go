// Copyright (C) 2024-2026, Gymlink Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package gymlink

import (
	"encoding/json"

	"google.golang.org/protobuf/proto"
)

// CodecName is the grpc content-subtype the engine's codec is wired
// under. Clients must force the same codec on their calls.
const CodecName = "gymlink"

// PayloadCodec marshals engine payloads for the gRPC transport:
// protobuf for generated messages, JSON for everything else. The wire
// schema itself is externally defined; the engine just passes payloads
// through.
type PayloadCodec struct{}

func (PayloadCodec) Marshal(v any) ([]byte, error) {
	if pm, ok := v.(proto.Message); ok {
		return proto.Marshal(pm)
	}
	return json.Marshal(v)
}

func (PayloadCodec) Unmarshal(data []byte, v any) error {
	if pm, ok := v.(proto.Message); ok {
		return proto.Unmarshal(data, pm)
	}
	return json.Unmarshal(data, v)
}

func (PayloadCodec) Name() string { return CodecName }
