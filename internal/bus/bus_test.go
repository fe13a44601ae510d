package bus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBus() (*Bus, *Memory, *Memory, *Memory, *Memory) {
	taskIn := NewMemory(nil)
	resultsOut := NewMemory(nil)
	command := NewMemory(nil)
	managerRouter := NewMemory(nil)
	return New(taskIn, resultsOut, command, managerRouter), taskIn, resultsOut, command, managerRouter
}

func TestPollReturnsNilOnTimeoutWithNothingReady(t *testing.T) {
	b, _, _, _, _ := newTestBus()
	start := time.Now()
	ready := b.Poll(20 * time.Millisecond)
	assert.Empty(t, ready)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestPollReportsOnlyTheReadyEndpoint(t *testing.T) {
	b, taskIn, _, _, _ := newTestBus()
	taskIn.Inject(Frame{[]byte("payload")})

	ready := b.Poll(time.Second)
	require.Equal(t, []Endpoint{TaskIn}, ready)

	f, ok := taskIn.TryRecv()
	require.True(t, ok)
	assert.Equal(t, Frame{[]byte("payload")}, f)
}

func TestPollReportsAllReadyEndpoints(t *testing.T) {
	b, taskIn, resultsOut, command, managerRouter := newTestBus()
	taskIn.Inject(Frame{[]byte("t")})
	resultsOut.Inject(Frame{[]byte("r")})
	command.Inject(Frame{[]byte("c")})
	managerRouter.Inject(Frame{[]byte("mgr-1"), []byte("m")})

	ready := b.Poll(time.Second)
	assert.ElementsMatch(t, []Endpoint{TaskIn, ResultsOut, Command, ManagerRouter}, ready)
}

func TestPollRotatesStartingEndpointAcrossCalls(t *testing.T) {
	b, taskIn, resultsOut, _, _ := newTestBus()
	taskIn.Inject(Frame{[]byte("t1")})
	resultsOut.Inject(Frame{[]byte("r1")})

	firstOrder := b.Poll(time.Second)

	taskIn.Inject(Frame{[]byte("t2")})
	resultsOut.Inject(Frame{[]byte("r2")})
	secondOrder := b.Poll(time.Second)

	assert.NotEqual(t, firstOrder[0], secondOrder[0], "rotating the poll order should change which endpoint leads across calls")
}

func TestEndpointSendRoutesThroughProvidedFunc(t *testing.T) {
	var captured Frame
	ep := NewMemory(func(f Frame) error {
		captured = f
		return nil
	})
	require.NoError(t, ep.Send(Frame{[]byte("hello")}))
	assert.Equal(t, Frame{[]byte("hello")}, captured)
}

func TestFrameWireRoundTrips(t *testing.T) {
	var buf fakeConn
	in := Frame{[]byte("manager-7"), nil, []byte("payload-bytes")}

	require.NoError(t, writeFrame(&buf, in))
	out, err := readFrame(&buf)
	require.NoError(t, err)

	require.Len(t, out, len(in))
	assert.Equal(t, in[0], out[0])
	assert.Equal(t, []byte{}, out[1])
	assert.Equal(t, in[2], out[2])
}
