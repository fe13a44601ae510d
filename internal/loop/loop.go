// Package loop implements the single-threaded cooperative EventLoop of
// spec §4.7: the fixed six-step iteration order that is the only place
// task, result, and control-plane state actually changes.
package loop

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"time"

	"icx.sh/interchange/internal/bus"
	"icx.sh/interchange/internal/codec"
	"icx.sh/interchange/internal/command"
	"icx.sh/interchange/internal/metrics"
	"icx.sh/interchange/internal/monitor"
	"icx.sh/interchange/internal/queue"
	"icx.sh/interchange/internal/registry"
	"icx.sh/interchange/internal/selector"
)

// managerMeta is the envelope wrapping every manager_router inbound
// frame's second part: a type discriminator plus its type-specific body
// (spec §4.7 step 3: registration | heartbeat | drain | result).
type managerMeta struct {
	Type string `json:"type"`
}

// Loop owns every collaborator the event loop drives and runs the
// six-step iteration of spec §4.7. It has no goroutines of its own
// besides the one its caller runs Run on; the monitoring emitter is the
// only background goroutine that receives Manager state (spec §5), and
// it only ever gets value copies.
type Loop struct {
	Queue    *queue.TaskQueue
	Registry *registry.Registry
	Selector selector.Selector
	Bus      *bus.Bus
	Command  *command.Handler
	Monitor  *monitor.Emitter

	MessageCodec codec.MessageCodec
	BatchCodec   codec.BatchCodec

	HeartbeatThreshold time.Duration
	PollPeriod         time.Duration

	// Clock is injectable so tests can control expiry without sleeping.
	Clock func() time.Time

	// interesting is the subset of registry IDs the dispatch step
	// considers this iteration — spec §3's "interesting set ⊂ registry
	// keys": pruned whenever a Manager can't usefully receive work right
	// now, repopulated whenever it registers or reports activity.
	interesting map[registry.ID]struct{}

	// killed is set on an unrecoverable protocol violation (today: a
	// Manager version mismatch). The loop finishes the current iteration
	// and then Run returns, per spec §4.3/§7.
	killed bool

	lastStallWarning time.Time
}

// New constructs a Loop ready to Run. Clock is set to time.Now; tests
// may replace it afterward with a non-nil function.
func New(q *queue.TaskQueue, reg *registry.Registry, sel selector.Selector, b *bus.Bus,
	cmd *command.Handler, mon *monitor.Emitter, msgCodec codec.MessageCodec, batchCodec codec.BatchCodec,
	heartbeatThreshold, pollPeriod time.Duration) *Loop {
	return &Loop{
		Queue:              q,
		Registry:           reg,
		Selector:           sel,
		Bus:                b,
		Command:            cmd,
		Monitor:            mon,
		MessageCodec:       msgCodec,
		BatchCodec:         batchCodec,
		HeartbeatThreshold: heartbeatThreshold,
		PollPeriod:         pollPeriod,
		Clock:              time.Now,
		interesting:        make(map[registry.ID]struct{}),
	}
}

// Run drives the event loop until ctx is cancelled or the loop kills
// itself on an unrecoverable protocol violation. Each iteration polls
// the bus once (the loop's one blocking call, spec §5), then runs every
// step whose endpoint had something ready, then unconditionally runs
// expiry and dispatch — those don't depend on a frame having arrived.
func (l *Loop) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		pollStart := l.Clock()
		ready := l.Bus.Poll(l.PollPeriod)
		now := l.Clock()
		metrics.PollLatencySeconds.Observe(now.Sub(pollStart).Seconds())
		metrics.QueueSize.Set(float64(l.Queue.Size()))
		metrics.ManagersConnected.Set(float64(l.Registry.Len()))

		readySet := make(map[bus.Endpoint]bool, len(ready))
		for _, e := range ready {
			readySet[e] = true
		}

		if readySet[bus.Command] {
			l.serveCommand(now)
		}
		if readySet[bus.TaskIn] {
			l.intakeTasks()
		}
		if readySet[bus.ManagerRouter] {
			l.serviceManagers(now)
		}

		l.expireBadManagers(now)
		l.expireDrainedManagers(now)
		l.dispatch(now)

		if l.killed {
			return nil
		}
	}
}

// serveCommand answers every command request currently queued. Spec
// §4.7 step 2: synchronous request/reply, one per iteration is the
// common case but nothing stops several piling up between polls.
func (l *Loop) serveCommand(now time.Time) {
	for {
		f, ok := l.Bus.Command.TryRecv()
		if !ok {
			return
		}
		if len(f) == 0 {
			slog.Error("loop: empty command frame")
			continue
		}
		reply := l.Command.Handle(string(f[0]), now)
		if err := l.Bus.Command.Send(bus.Frame{reply}); err != nil {
			slog.Error("loop: failed to send command reply", "error", err)
		}
	}
}

// intakeTasks drains task_in into the priority queue (spec §4.7 step
//1). Each frame is [task_id(8 bytes BE), priority(8 bytes BE bits),
// payload].
func (l *Loop) intakeTasks() {
	for {
		f, ok := l.Bus.TaskIn.TryRecv()
		if !ok {
			return
		}
		t, err := decodeTaskFrame(f)
		if err != nil {
			slog.Error("loop: malformed task_in frame, dropping", "error", err)
			continue
		}
		l.Queue.Enqueue(t)
	}
}

func decodeTaskFrame(f bus.Frame) (queue.Task, error) {
	if len(f) < 2 || len(f[0]) != 8 || len(f[1]) != 8 {
		return queue.Task{}, fmt.Errorf("expected [task_id, priority, payload...], got %d parts", len(f))
	}
	id := int64(binary.BigEndian.Uint64(f[0]))
	priority := math.Float64frombits(binary.BigEndian.Uint64(f[1]))
	var payload []byte
	if len(f) > 2 {
		payload = f[2]
	}
	return queue.Task{ID: id, Priority: priority, Payload: payload}, nil
}

// serviceManagers drains manager_router and dispatches each frame by
// its meta.type (spec §4.7 step 3). An unregistered Manager sending
// anything but a registration, or a frame this loop can't parse, is
// logged and dropped — neither is fatal (spec §7).
func (l *Loop) serviceManagers(now time.Time) {
	for {
		f, ok := l.Bus.ManagerRouter.TryRecv()
		if !ok {
			return
		}
		if len(f) < 2 {
			slog.Error("loop: malformed manager_router frame, dropping", "parts", len(f))
			continue
		}
		id := registry.ID(f[0])

		var meta managerMeta
		if err := l.MessageCodec.Decode(f[1], &meta); err != nil {
			slog.Error("loop: malformed manager message, dropping", "manager_id", id.Display(), "error", err)
			continue
		}

		if meta.Type != "registration" {
			if _, ok := l.Registry.Get(id); !ok {
				slog.Warn("loop: message from unregistered manager, dropping",
					"manager_id", id.Display(), "type", meta.Type)
				continue
			}
		}

		switch meta.Type {
		case "registration":
			l.handleRegistration(id, f[1], now)
		case "heartbeat":
			l.handleHeartbeat(id, now)
		case "drain":
			l.Registry.MarkDrain(id)
		case "result":
			l.handleResult(id, f[2:], now)
		default:
			slog.Error("loop: unknown manager message type, dropping", "manager_id", id.Display(), "type", meta.Type)
		}
	}
}

func (l *Loop) handleRegistration(id registry.ID, raw []byte, now time.Time) {
	meta, err := decodeRegistration(raw)
	if err != nil {
		slog.Error("loop: malformed registration, dropping", "manager_id", id.Display(), "error", err)
		return
	}

	rec, err := l.Registry.Register(id, meta, now)
	if err != nil {
		slog.Error("loop: manager version mismatch, stopping loop", "manager_id", id.Display(), "error", err)
		metrics.VersionMismatchTotal.Inc()
		l.sendFatalResult(id, -1, fmt.Sprintf("VersionMismatch: manager %s", id.Display()))
		l.killed = true
		return
	}

	l.interesting[id] = struct{}{}
	l.emitMonitoring(*rec)
}

func (l *Loop) handleHeartbeat(id registry.ID, now time.Time) {
	l.Registry.MarkHeartbeat(id, now)
	if err := l.Bus.ManagerRouter.Send(bus.Frame{[]byte(id), HeartbeatCode}); err != nil {
		slog.Error("loop: failed to send heartbeat reply", "manager_id", id.Display(), "error", err)
	}
}

// handleResult processes an inbound result message: every wire frame
// after the [manager_id, meta] header is its own sub-message (spec §4.7
// step 4, "for each sub-message (frame after the header)"), decoded and
// dispatched independently rather than as one combined blob.
func (l *Loop) handleResult(id registry.ID, payloads [][]byte, now time.Time) {
	var collected int
	var forward []codec.ResultFrame
	for _, payload := range payloads {
		fr, err := l.BatchCodec.DecodeResultFrame(payload)
		if err != nil {
			slog.Error("loop: malformed result sub-message, dropping", "manager_id", id.Display(), "error", err)
			continue
		}

		switch fr.Kind {
		case "result":
			if err := l.Registry.RecordResult(id, fr.TaskID, now); err != nil {
				slog.Warn("loop: result for task not outstanding, forwarding anyway",
					"manager_id", id.Display(), "task_id", fr.TaskID)
			}
			forward = append(forward, fr)
			collected++
		case "monitoring":
			if l.Monitor.Enabled() {
				l.forwardRawMonitoring(fr.Payload)
			} else {
				slog.Debug("loop: monitoring sub-message dropped, monitoring disabled", "manager_id", id.Display())
			}
			collected++
		default:
			slog.Error("loop: unknown result sub-message kind, dropping", "manager_id", id.Display(), "kind", fr.Kind)
		}
	}

	if len(forward) > 0 {
		l.sendResults(forward)
		metrics.ResultsForwardedTotal.WithLabelValues(id.Display()).Add(float64(len(forward)))
	}

	// Only re-add to the interesting set and re-emit monitoring if any
	// sub-message was actually collected (spec §4.7 step 4, original:
	// `if b_messages_to_send:`), not merely because a result message
	// arrived — an entirely malformed batch shouldn't touch either.
	if collected == 0 {
		return
	}
	l.interesting[id] = struct{}{}
	if rec, ok := l.Registry.SnapshotOne(id); ok {
		l.emitMonitoring(rec)
	}
}

// forwardRawMonitoring handles a Manager-originated monitoring
// sub-message: it parses the payload as a JSON object and logs its field
// count at debug level. The payload is not sent to the monitoring sink
// or anywhere else.
func (l *Loop) forwardRawMonitoring(payload []byte) {
	var generic map[string]any
	if err := json.Unmarshal(payload, &generic); err != nil {
		slog.Debug("loop: could not parse forwarded monitoring payload", "error", err)
		return
	}
	slog.Debug("loop: forwarding manager monitoring sub-message", "fields", len(generic))
}

// expireBadManagers implements spec §4.7 step 5: any Manager whose
// last_heartbeat is older than HeartbeatThreshold is declared lost. Its
// outstanding tasks are failed with a synthetic ManagerLost result
// before the record is removed.
func (l *Loop) expireBadManagers(now time.Time) {
	for _, id := range l.Registry.IDs() {
		rec, ok := l.Registry.Get(id)
		if !ok {
			continue
		}
		if now.Sub(rec.LastHeartbeat) <= l.HeartbeatThreshold {
			continue
		}

		l.Registry.MarkInactive(id)
		if snap, ok := l.Registry.SnapshotOne(id); ok {
			l.emitMonitoring(snap)
		}

		if len(rec.Tasks) > 0 {
			reason := fmt.Sprintf("ManagerLost: manager %s (%s) missed heartbeat deadline", id.Display(), rec.Hostname)
			var forward []codec.ResultFrame
			for _, taskID := range rec.Tasks {
				forward = append(forward, codec.ResultFrame{Kind: "result", TaskID: taskID, Payload: []byte(reason)})
			}
			l.sendResults(forward)
		}

		l.Registry.Remove(id)
		delete(l.interesting, id)
		metrics.ManagerLostTotal.Inc()
		slog.Warn("loop: manager expired on heartbeat timeout", "manager_id", id.Display())
	}
}

// expireDrainedManagers implements spec §4.7 step 6: a draining Manager
// with no outstanding tasks is told DRAINED_CODE and removed. The
// monitoring snapshot is taken before removal but its Active field is
// set false after, reconciling "remove, then mark inactive, then emit"
// with the fact the live record is gone by the time the mark happens.
func (l *Loop) expireDrainedManagers(now time.Time) {
	for id := range l.interesting {
		rec, ok := l.Registry.Get(id)
		if !ok {
			delete(l.interesting, id)
			continue
		}
		if !rec.Draining || len(rec.Tasks) != 0 {
			continue
		}

		snap, _ := l.Registry.SnapshotOne(id)

		if err := l.Bus.ManagerRouter.Send(bus.Frame{[]byte(id), DrainedCode}); err != nil {
			slog.Error("loop: failed to send drained notice", "manager_id", id.Display(), "error", err)
		}

		delete(l.interesting, id)
		l.Registry.Remove(id)

		snap.Active = false
		l.emitMonitoring(snap)
		metrics.ManagerDrainedTotal.Inc()
	}
}

// dispatch implements spec §4.7 step 7: hand out as much of the task
// queue as the currently interesting Managers have real capacity for.
func (l *Loop) dispatch(now time.Time) {
	if l.Queue.Size() == 0 {
		return
	}
	if len(l.interesting) == 0 {
		l.warnDispatchStall(now)
		return
	}

	ids := make([]registry.ID, 0, len(l.interesting))
	for id := range l.interesting {
		ids = append(ids, id)
	}
	stack := l.Selector.Order(l.Registry, ids)

	for len(stack) > 0 && l.Queue.Size() > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		rec, ok := l.Registry.Get(id)
		if !ok {
			delete(l.interesting, id)
			continue
		}
		if !rec.Active || rec.Draining {
			delete(l.interesting, id)
			continue
		}
		cap := rec.RealCapacity()
		if cap <= 0 {
			delete(l.interesting, id)
			continue
		}

		batch := l.Queue.PopBatch(cap)
		if len(batch) == 0 {
			continue
		}

		frames := make([]codec.TaskFrame, 0, len(batch))
		taskIDs := make([]int64, 0, len(batch))
		for _, t := range batch {
			frames = append(frames, codec.TaskFrame{TaskID: t.ID, Payload: t.Payload})
			taskIDs = append(taskIDs, t.ID)
		}

		data, err := l.BatchCodec.EncodeTaskBatch(frames)
		if err != nil {
			slog.Error("loop: failed to encode task batch, re-enqueuing", "manager_id", id.Display(), "error", err)
			for _, t := range batch {
				l.Queue.Enqueue(t)
			}
			continue
		}
		if err := l.Bus.ManagerRouter.Send(bus.Frame{[]byte(id), data}); err != nil {
			slog.Error("loop: failed to send task batch, re-enqueuing", "manager_id", id.Display(), "error", err)
			for _, t := range batch {
				l.Queue.Enqueue(t)
			}
			continue
		}

		l.Registry.Dispatch(id, taskIDs)
		metrics.TasksDispatchedTotal.WithLabelValues(id.Display()).Add(float64(len(taskIDs)))

		if updated, ok := l.Registry.Get(id); ok {
			if updated.RealCapacity() <= 0 {
				delete(l.interesting, id)
			}
			if snap, ok := l.Registry.SnapshotOne(id); ok {
				l.emitMonitoring(snap)
			}
		}
	}
}

// warnDispatchStall logs at most once per HeartbeatThreshold while tasks
// are queued but no Manager is available to take them (SPEC_FULL §C.2).
func (l *Loop) warnDispatchStall(now time.Time) {
	if now.Sub(l.lastStallWarning) < l.HeartbeatThreshold {
		return
	}
	l.lastStallWarning = now
	slog.Warn("loop: tasks pending with no manager available", "queue_size", l.Queue.Size())
}

func (l *Loop) emitMonitoring(rec registry.Record) {
	l.Monitor.Emit(rec, l.Clock())
}

// sendFatalResult forwards a single synthetic failure result ahead of
// killing the loop, e.g. a VersionMismatch at registration time (spec
// §4.3, §7: "task_id=-1" sentinel for loop-wide failures).
func (l *Loop) sendFatalResult(id registry.ID, taskID int64, reason string) {
	l.sendResults([]codec.ResultFrame{{Kind: "result", TaskID: taskID, Payload: []byte(reason)}})
}

func (l *Loop) sendResults(frames []codec.ResultFrame) {
	if len(frames) == 0 {
		return
	}
	data, err := l.BatchCodec.EncodeResultBatch(frames)
	if err != nil {
		slog.Error("loop: failed to encode result batch", "error", err)
		return
	}
	if err := l.Bus.ResultsOut.Send(bus.Frame{data}); err != nil {
		slog.Error("loop: failed to send result batch", "error", err)
	}
}
