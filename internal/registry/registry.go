package registry

import (
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// ErrVersionMismatch is returned by Register when a Manager's framework
// or runtime version disagrees with the Interchange's own, per spec §3
// invariant 7 and §4.3. No record is inserted when this is returned;
// the caller (the event loop) treats it as fatal (spec §4.7, §7).
var ErrVersionMismatch = errors.New("registry: manager version mismatch")

// minorVersion drops the last dot-separated component of v, e.g.
// "3.11.4" → "3.11". Used to compare Python runtime versions at the
// minor-version granularity rather than exact patch match (spec §4.3:
// "framework version AND runtime minor version... must match").
func minorVersion(v string) string {
	i := strings.LastIndex(v, ".")
	if i < 0 {
		return v
	}
	return v[:i]
}

// Registry is the Manager registry of spec §4.3: a mutable table of
// connected Managers plus the append-only connected_block_history. Safe
// for concurrent use; the event loop is its only writer in practice, but
// command replies and the monitoring emitter read it from elsewhere.
type Registry struct {
	mu       sync.RWMutex
	managers map[ID]*Record

	blockHistory []string

	ownParslVersion  string
	ownPythonVersion string
}

// New creates an empty registry. ownParslVersion and ownPythonVersion are
// the Interchange's own versions, used to validate Manager registrations.
func New(ownParslVersion, ownPythonVersion string) *Registry {
	return &Registry{
		managers:         make(map[ID]*Record),
		ownParslVersion:  ownParslVersion,
		ownPythonVersion: ownPythonVersion,
	}
}

// Register validates and inserts a new Manager record. On a version
// mismatch it returns ErrVersionMismatch and leaves the registry
// unchanged. A Manager that re-registers under the same ID gets a
// brand-new Record — spec §3's "no resurrection, re-registered identity
// is a new record".
func (r *Registry) Register(id ID, meta RegistrationMeta, now time.Time) (*Record, error) {
	if meta.ParslVersion != r.ownParslVersion {
		return nil, ErrVersionMismatch
	}
	if minorVersion(meta.PythonVersion) != minorVersion(r.ownPythonVersion) {
		return nil, ErrVersionMismatch
	}

	rec := &Record{
		ID:            id,
		BlockID:       meta.BlockID,
		StartTime:     meta.StartTime,
		Tasks:         nil,
		WorkerCount:   meta.WorkerCount,
		MaxCapacity:   meta.MaxCapacity,
		Active:        true,
		Draining:      false,
		LastHeartbeat: now,
		IdleSince:     &now,
		ParslVersion:  meta.ParslVersion,
		PythonVersion: meta.PythonVersion,
		Hostname:      meta.Hostname,
		Packages:      meta.Packages,
		Extra:         meta.Extra,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.managers[id] = rec
	r.blockHistory = append(r.blockHistory, meta.BlockID)
	return rec, nil
}

// Get returns the record for id, or nil, false if unknown.
func (r *Registry) Get(id ID) (*Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.managers[id]
	return rec, ok
}

// Remove deletes id from the registry. A no-op if id is unknown.
func (r *Registry) Remove(id ID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.managers, id)
}

// Len returns the number of registered Managers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.managers)
}

// IDs returns every currently registered Manager ID, in no particular
// order.
func (r *Registry) IDs() []ID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]ID, 0, len(r.managers))
	for id := range r.managers {
		ids = append(ids, id)
	}
	return ids
}

// MarkHeartbeat updates last_heartbeat for id. Per spec §3 and the Open
// Question preserved in §9, after Register sets its initial value this is
// the ONLY place last_heartbeat moves — it is never bumped by any other
// message type.
func (r *Registry) MarkHeartbeat(id ID, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.managers[id]; ok {
		rec.LastHeartbeat = now
	}
}

// MarkDrain sets draining=true for id. A no-op if id is unknown.
func (r *Registry) MarkDrain(id ID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.managers[id]; ok {
		rec.Draining = true
	}
}

// MarkHold sets active=false for id but leaves it in the registry (spec
// §4.5, HOLD_WORKER command). Reports whether id was known.
func (r *Registry) MarkHold(id ID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.managers[id]
	if !ok {
		return false
	}
	rec.Active = false
	return true
}

// MarkInactive sets active=false for id. Used by bad-Manager expiry
// (spec §4.7 step 5) before the record is forwarded to monitoring and
// removed; drained-Manager expiry clears Active on its monitoring
// snapshot instead.
func (r *Registry) MarkInactive(id ID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.managers[id]; ok {
		rec.Active = false
	}
}

// ErrUnknownTask is returned by RecordResult when the task_id is not
// present on the record (or the Manager is unknown); callers log it and
// keep going — spec §7: "missing task_id on result: log, keep forwarding
// others".
var ErrUnknownTask = errors.New("registry: task not outstanding on manager")

// RecordResult removes one occurrence of taskID from id's outstanding
// task list. If taskID isn't present, it logs and returns ErrUnknownTask;
// the caller must not treat that as fatal. If the task list becomes
// empty, idle_since is set to now per spec §3 invariant 1.
func (r *Registry) RecordResult(id ID, taskID int64, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.managers[id]
	if !ok {
		return ErrUnknownTask
	}

	idx := -1
	for i, t := range rec.Tasks {
		if t == taskID {
			idx = i
			break
		}
	}
	if idx < 0 {
		slog.Warn("result for task not outstanding on manager",
			"manager_id", id.Display(), "task_id", taskID)
		return ErrUnknownTask
	}

	rec.Tasks = append(rec.Tasks[:idx], rec.Tasks[idx+1:]...)
	if len(rec.Tasks) == 0 {
		t := now
		rec.IdleSince = &t
	}
	return nil
}

// Dispatch appends taskIDs to id's outstanding task list and clears
// idle_since, per spec §4.7 step 7. The caller is responsible for having
// checked RealCapacity beforehand.
func (r *Registry) Dispatch(id ID, taskIDs []int64) {
	if len(taskIDs) == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.managers[id]
	if !ok {
		return
	}
	rec.Tasks = append(rec.Tasks, taskIDs...)
	rec.IdleSince = nil
}

// ConnectedBlockHistory returns the append-only list of block IDs in
// registration order, spec §4.3. May contain duplicates; entries are
// never removed.
func (r *Registry) ConnectedBlockHistory() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.blockHistory))
	copy(out, r.blockHistory)
	return out
}

// TotalWorkers sums worker_count across every registered Manager, spec
// §4.5's WORKERS command.
func (r *Registry) TotalWorkers() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	total := 0
	for _, rec := range r.managers {
		total += rec.WorkerCount
	}
	return total
}

// OutstandingCount sums len(tasks) across every registered Manager
// (SPEC_FULL §C.5, OUTSTANDING_COUNT command).
func (r *Registry) OutstandingCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	total := 0
	for _, rec := range r.managers {
		total += len(rec.Tasks)
	}
	return total
}

// Snapshot returns a value copy of every registered record — the shape
// spec §4.5's MANAGERS command needs, and what is safe to hand to a
// background monitoring consumer per spec §5.
func (r *Registry) Snapshot() []Record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Record, 0, len(r.managers))
	for _, rec := range r.managers {
		out = append(out, rec.clone())
	}
	return out
}

// SnapshotOne returns a value copy of id's record, for single-Manager
// monitoring events (spec §4.6).
func (r *Registry) SnapshotOne(id ID) (Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.managers[id]
	if !ok {
		return Record{}, false
	}
	return rec.clone(), true
}

// PackagesByManager returns id.Display() → packages for every Manager,
// spec §4.5's MANAGERS_PACKAGES command.
func (r *Registry) PackagesByManager() map[string]map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]map[string]string, len(r.managers))
	for id, rec := range r.managers {
		pkgs := make(map[string]string, len(rec.Packages))
		for k, v := range rec.Packages {
			pkgs[k] = v
		}
		out[id.Display()] = pkgs
	}
	return out
}
