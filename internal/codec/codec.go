// Package codec provides the two distinct serializers spec §9 calls for
// at the Interchange's boundary: a MessageCodec for structured control
// messages (registration meta, heartbeats, command replies, monitoring
// events) and a BatchCodec for the task/result envelopes whose payloads
// the Interchange must carry without ever interpreting.
package codec

// MessageCodec encodes and decodes structured messages. Implementations
// are injected collaborators (spec §9) precisely so tests can swap in an
// Identity codec and assert on messages directly, without round-tripping
// through a wire format.
type MessageCodec interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte, v any) error
}

// BatchCodec encodes the outbound task-dispatch frame and decodes the
// inbound result sub-messages. It never inspects an individual task's or
// result's payload bytes — spec §1 Non-goals explicitly exclude "payload
// serialization format" from this system's concerns.
//
// The manager_router wire format makes the outbound task batch a single
// frame but the inbound result batch multi-frame: spec §4.7 step 4 reads
// "for each sub-message (frame after the header)", so DecodeResultFrame
// decodes exactly one wire frame into one ResultFrame; callers iterate
// every frame after the header themselves.
type BatchCodec interface {
	EncodeTaskBatch(batch []TaskFrame) ([]byte, error)
	DecodeResultFrame(data []byte) (ResultFrame, error)
	EncodeResultBatch(batch []ResultFrame) ([]byte, error)
}

// TaskFrame is one task as it appears on the manager_router outbound
// batch (spec §4.7 step 7): an id the Interchange tracks, plus an opaque
// payload it never looks inside.
type TaskFrame struct {
	TaskID  int64
	Payload []byte
}

// ResultFrame is one sub-message of an inbound result batch (spec §4.7
// step 4): a kind discriminator ("result" or "monitoring"), the task_id
// it refers to (zero for monitoring sub-messages), and its opaque body.
type ResultFrame struct {
	Kind    string
	TaskID  int64
	Payload []byte
}
