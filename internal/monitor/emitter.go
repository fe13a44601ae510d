// Package monitor implements the MonitoringEmitter of spec §4.6: an
// optional, fire-and-forget NODE_INFO event stream describing Manager
// lifecycle transitions.
package monitor

import (
	"log/slog"
	"time"

	"icx.sh/interchange/internal/codec"
	"icx.sh/interchange/internal/registry"
)

// Event is one NODE_INFO snapshot (spec §4.6): the full Manager record
// plus a send timestamp and the run this Interchange belongs to.
// ReportedLastHeartbeat preserves the Manager's actual last-heartbeat
// instant (SPEC_FULL §C.4) separately from Record.LastHeartbeat, which
// this package rewrites to the absolute emission instant per spec §4.6
// ("last_heartbeat rewritten as absolute instant") before encoding.
type Event struct {
	Record                registry.Record `json:"record"`
	Timestamp             time.Time       `json:"timestamp"`
	ReportedLastHeartbeat time.Time       `json:"reported_last_heartbeat"`
	RunID                 string          `json:"run_id"`
}

// Emitter sends Events to a Sink from a background goroutine, per spec
// §5: "MAY run on background worker if unbounded-but-lossy-on-shutdown".
// Emit always receives a value copy of the record (registry.Record is
// never a pointer here) so the emitter can never observe or retain a
// live reference into registry state.
type Emitter struct {
	enabled bool
	runID   string
	codec   codec.MessageCodec
	sink    Sink

	queue chan Event
	done  chan struct{}
}

// New constructs an Emitter. enabled mirrors spec §6's monitoring
// precondition (hub_address and hub_zmq_port both non-null); when false,
// Emit is a no-op and Start does not spin up a goroutine.
func New(enabled bool, runID string, c codec.MessageCodec, sink Sink, queueSize int) *Emitter {
	if sink == nil {
		sink = NopSink{}
	}
	if queueSize <= 0 {
		queueSize = 256
	}
	return &Emitter{
		enabled: enabled,
		runID:   runID,
		codec:   c,
		sink:    sink,
		queue:   make(chan Event, queueSize),
		done:    make(chan struct{}),
	}
}

// Enabled reports whether monitoring is active. The event loop consults
// this for spec §9's Open Question: when disabled, inbound "monitoring"
// result sub-messages are logged and dropped rather than treated as an
// error.
func (e *Emitter) Enabled() bool { return e.enabled }

// Start launches the background sender. A no-op when monitoring is
// disabled.
func (e *Emitter) Start() {
	if !e.enabled {
		return
	}
	go e.run()
}

func (e *Emitter) run() {
	for {
		select {
		case ev, ok := <-e.queue:
			if !ok {
				return
			}
			e.send(ev)
		case <-e.done:
			return
		}
	}
}

func (e *Emitter) send(ev Event) {
	data, err := e.codec.Encode(ev)
	if err != nil {
		slog.Error("monitor: failed to encode event", "manager_id", ev.Record.ID.Display(), "error", err)
		return
	}
	// Spec §4.6: "fire-and-forget, failures never affect loop" — swallow.
	if err := e.sink.Send(data); err != nil {
		slog.Debug("monitor: send failed, discarding event", "manager_id", ev.Record.ID.Display(), "error", err)
	}
}

// Emit enqueues a NODE_INFO event for rec as of now. Non-blocking: if the
// queue is full the event is dropped and logged, matching the
// "unbounded-but-lossy" contract from spec §5 (unbounded in practice,
// lossy only under sustained backpressure or at shutdown).
func (e *Emitter) Emit(rec registry.Record, now time.Time) {
	if !e.enabled {
		return
	}
	ev := Event{
		Record:                rec,
		Timestamp:             now,
		ReportedLastHeartbeat: rec.LastHeartbeat,
		RunID:                 e.runID,
	}
	ev.Record.LastHeartbeat = now

	select {
	case e.queue <- ev:
	default:
		slog.Warn("monitor: event queue full, dropping event", "manager_id", rec.ID.Display())
	}
}

// Close stops the background sender. Per spec §5 this is intentionally
// lossy: any events still queued are discarded, not flushed.
func (e *Emitter) Close() error {
	close(e.done)
	if e.enabled {
		return e.sink.Close()
	}
	return nil
}
