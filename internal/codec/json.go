package codec

import "encoding/json"

// JSON is the default MessageCodec, grounded on the teacher's own
// command-handler wire format (internal/command/uds_server.go uses
// json.Encoder/json.NewDecoder for its JSON-RPC frames). It is also used
// as the BatchCodec for task/result envelopes: the envelope itself is a
// small JSON array, while each element's Payload field stays an opaque
// base64-encoded byte string courtesy of encoding/json's []byte handling.
type JSON struct{}

func (JSON) Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (JSON) Decode(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (JSON) EncodeTaskBatch(batch []TaskFrame) ([]byte, error) {
	return json.Marshal(batch)
}

func (JSON) DecodeResultFrame(data []byte) (ResultFrame, error) {
	var frame ResultFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return ResultFrame{}, err
	}
	return frame, nil
}

func (JSON) EncodeResultBatch(batch []ResultFrame) ([]byte, error) {
	return json.Marshal(batch)
}

var (
	_ MessageCodec = JSON{}
	_ BatchCodec   = JSON{}
)
