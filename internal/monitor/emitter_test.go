package monitor

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"icx.sh/interchange/internal/codec"
	"icx.sh/interchange/internal/registry"
)

type captureSink struct {
	mu   sync.Mutex
	sent [][]byte
}

func (s *captureSink) Send(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, data)
	return nil
}

func (s *captureSink) Close() error { return nil }

func (s *captureSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestDisabledEmitterNeverSends(t *testing.T) {
	sink := &captureSink{}
	e := New(false, "run-1", codec.JSON{}, sink, 4)
	e.Start()
	defer e.Close()

	e.Emit(registry.Record{ID: "mgr-1"}, time.Now())
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, sink.count())
	assert.False(t, e.Enabled())
}

func TestEnabledEmitterSendsEncodedEvent(t *testing.T) {
	sink := &captureSink{}
	e := New(true, "run-1", codec.JSON{}, sink, 4)
	e.Start()
	defer e.Close()

	rec := registry.Record{ID: "mgr-1", BlockID: "block-0", LastHeartbeat: time.Unix(10, 0)}
	now := time.Unix(100, 0)
	e.Emit(rec, now)

	waitFor(t, func() bool { return sink.count() == 1 })

	var got Event
	require.NoError(t, codec.JSON{}.Decode(sink.sent[0], &got))
	assert.Equal(t, "run-1", got.RunID)
	assert.True(t, got.Timestamp.Equal(now))
	assert.True(t, got.ReportedLastHeartbeat.Equal(time.Unix(10, 0)), "reported_last_heartbeat must preserve the manager's real last heartbeat")
	assert.True(t, got.Record.LastHeartbeat.Equal(now), "record.last_heartbeat must be rewritten to the emission instant")
}

func TestEmitDoesNotMutateCallersRecord(t *testing.T) {
	sink := &captureSink{}
	e := New(true, "run-1", codec.JSON{}, sink, 4)
	e.Start()
	defer e.Close()

	original := time.Unix(5, 0)
	rec := registry.Record{ID: "mgr-1", LastHeartbeat: original}
	e.Emit(rec, time.Unix(50, 0))

	assert.True(t, rec.LastHeartbeat.Equal(original), "Emit takes rec by value and must not rewrite the caller's copy")
}

func TestEmitDropsWhenQueueFull(t *testing.T) {
	blocker := make(chan struct{})
	sink := &blockingSink{unblock: blocker}
	e := New(true, "run-1", codec.JSON{}, sink, 1)
	e.Start()
	defer func() {
		close(blocker)
		e.Close()
	}()

	rec := registry.Record{ID: "mgr-1"}
	for i := 0; i < 10; i++ {
		e.Emit(rec, time.Now())
	}
	// No panic, no deadlock: excess events are simply dropped.
}

type blockingSink struct {
	unblock chan struct{}
}

func (s *blockingSink) Send([]byte) error {
	<-s.unblock
	return nil
}

func (s *blockingSink) Close() error { return nil }
