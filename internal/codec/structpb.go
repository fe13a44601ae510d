package codec

import (
	"encoding/json"
	"fmt"

	"github.com/mitchellh/mapstructure"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// Protobuf is an alternate MessageCodec that encodes structured messages
// as a binary protobuf `google.protobuf.Struct` instead of JSON text. It
// needs no generated .pb.go types for our own message shapes — every
// message first becomes a loosely-typed map via encoding/json, then a
// structpb.Struct, then binary protobuf bytes — the "no codegen
// required" use of google.golang.org/protobuf. Any MessageCodec consumer
// (the monitoring emitter, the command handler) can take it; the
// Interchange's own wiring passes JSON to both.
//
// Decode reverses the process and uses mapstructure (rather than a
// second JSON round-trip) to populate the destination struct, since a
// structpb.Struct's natural Go form is already map[string]interface{}.
type Protobuf struct{}

func (Protobuf) Encode(v any) ([]byte, error) {
	asMap, err := toMap(v)
	if err != nil {
		return nil, fmt.Errorf("protobuf codec: %w", err)
	}

	s, err := structpb.NewStruct(asMap)
	if err != nil {
		return nil, fmt.Errorf("protobuf codec: building struct: %w", err)
	}

	return proto.Marshal(s)
}

func (Protobuf) Decode(data []byte, v any) error {
	var s structpb.Struct
	if err := proto.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("protobuf codec: %w", err)
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           v,
		WeaklyTypedInput: true,
		TagName:          "json",
	})
	if err != nil {
		return fmt.Errorf("protobuf codec: building decoder: %w", err)
	}
	return dec.Decode(s.AsMap())
}

// toMap round-trips v through JSON to get a map[string]interface{} that
// structpb.NewStruct accepts, honoring v's own `json` tags.
func toMap(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}

var _ MessageCodec = Protobuf{}
