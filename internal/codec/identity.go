package codec

import (
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
)

// Identity is a pass-through MessageCodec/BatchCodec for tests: Encode
// stashes v and hands back a token instead of a wire representation;
// Decode looks the value back up and assigns it into the destination
// pointer via reflection. Nothing is marshaled, so tests can assert on
// Go values directly and codecs never need a schema registered ahead of
// time. Spec §9 calls out exactly this use case for the injected
// structured-message and batch serializer collaborators.
type Identity struct {
	values  sync.Map // token -> any
	counter atomic.Uint64
}

func (c *Identity) put(v any) []byte {
	tok := c.counter.Add(1)
	c.values.Store(tok, v)
	return []byte(fmt.Sprintf("identity:%d", tok))
}

func (c *Identity) take(data []byte) (any, bool) {
	var tok uint64
	if _, err := fmt.Sscanf(string(data), "identity:%d", &tok); err != nil {
		return nil, false
	}
	v, ok := c.values.LoadAndDelete(tok)
	return v, ok
}

func (c *Identity) Encode(v any) ([]byte, error) {
	return c.put(v), nil
}

func (c *Identity) Decode(data []byte, v any) error {
	stored, ok := c.take(data)
	if !ok {
		return fmt.Errorf("identity codec: no value for token %q", data)
	}
	dst := reflect.ValueOf(v)
	if dst.Kind() != reflect.Ptr || dst.IsNil() {
		return fmt.Errorf("identity codec: Decode requires a non-nil pointer, got %T", v)
	}
	src := reflect.ValueOf(stored)
	if !src.Type().AssignableTo(dst.Elem().Type()) {
		return fmt.Errorf("identity codec: stored %T is not assignable to %s", stored, dst.Elem().Type())
	}
	dst.Elem().Set(src)
	return nil
}

func (c *Identity) EncodeTaskBatch(batch []TaskFrame) ([]byte, error) {
	return c.put(batch), nil
}

func (c *Identity) DecodeResultFrame(data []byte) (ResultFrame, error) {
	stored, ok := c.take(data)
	if !ok {
		return ResultFrame{}, fmt.Errorf("identity codec: no value for token %q", data)
	}
	frame, ok := stored.(ResultFrame)
	if !ok {
		return ResultFrame{}, fmt.Errorf("identity codec: stored value is %T, not ResultFrame", stored)
	}
	return frame, nil
}

func (c *Identity) EncodeResultBatch(batch []ResultFrame) ([]byte, error) {
	return c.put(batch), nil
}

// NewIdentity constructs a ready-to-use Identity codec.
func NewIdentity() *Identity { return &Identity{} }

var (
	_ MessageCodec = (*Identity)(nil)
	_ BatchCodec   = (*Identity)(nil)
)
