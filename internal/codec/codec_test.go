package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type heartbeatMsg struct {
	ManagerID string `json:"manager_id"`
	Epoch     int64  `json:"epoch"`
}

func TestJSONMessageCodecRoundTrips(t *testing.T) {
	var c JSON
	in := heartbeatMsg{ManagerID: "mgr-1", Epoch: 7}

	data, err := c.Encode(in)
	require.NoError(t, err)

	var out heartbeatMsg
	require.NoError(t, c.Decode(data, &out))
	assert.Equal(t, in, out)
}

func TestJSONBatchCodecRoundTrips(t *testing.T) {
	var c JSON
	batch := []TaskFrame{{TaskID: 1, Payload: []byte("a")}, {TaskID: 2, Payload: []byte("b")}}

	data, err := c.EncodeTaskBatch(batch)
	require.NoError(t, err)

	var decoded []TaskFrame
	require.NoError(t, c.Decode(data, &decoded))
	assert.Equal(t, batch, decoded)
}

func TestIdentityCodecRoundTripsWithoutSerializing(t *testing.T) {
	c := NewIdentity()
	in := heartbeatMsg{ManagerID: "mgr-1", Epoch: 7}

	tok, err := c.Encode(in)
	require.NoError(t, err)

	var out heartbeatMsg
	require.NoError(t, c.Decode(tok, &out))
	assert.Equal(t, in, out)
}

func TestIdentityCodecTokenIsSingleUse(t *testing.T) {
	c := NewIdentity()
	tok, err := c.Encode(heartbeatMsg{ManagerID: "mgr-1"})
	require.NoError(t, err)

	var out heartbeatMsg
	require.NoError(t, c.Decode(tok, &out))

	err = c.Decode(tok, &out)
	assert.Error(t, err, "a token must not decode twice")
}

func TestIdentityResultFrameRoundTrips(t *testing.T) {
	c := NewIdentity()
	frame := ResultFrame{Kind: "result", TaskID: 5, Payload: []byte("ok")}

	tok, err := c.EncodeTaskBatch(nil)
	require.NoError(t, err)
	_, err = c.DecodeResultFrame(tok)
	assert.Error(t, err, "a task-batch token must not decode as a result frame")

	tok2, err := c.Encode(frame)
	require.NoError(t, err)
	decoded, err := c.DecodeResultFrame(tok2)
	require.NoError(t, err)
	assert.Equal(t, frame, decoded)
}

func TestProtobufMessageCodecRoundTrips(t *testing.T) {
	var c Protobuf
	in := heartbeatMsg{ManagerID: "mgr-9", Epoch: 42}

	data, err := c.Encode(in)
	require.NoError(t, err)

	var out heartbeatMsg
	require.NoError(t, c.Decode(data, &out))
	assert.Equal(t, in, out)
}
