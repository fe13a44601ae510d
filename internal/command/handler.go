// Package command implements the synchronous command request/reply
// service of spec §4.5: the CONNECTED_BLOCKS / WORKERS / MANAGERS /
// MANAGERS_PACKAGES / HOLD_WORKER / WORKER_BINDS grammar, plus the
// OUTSTANDING_COUNT addition from SPEC_FULL §C.5.
package command

import (
	"log/slog"
	"strings"
	"time"

	"icx.sh/interchange/internal/codec"
	"icx.sh/interchange/internal/registry"
)

// ManagerInfo is one entry of the MANAGERS command reply (spec §4.5).
type ManagerInfo struct {
	Manager       string        `json:"manager"`
	BlockID       string        `json:"block_id"`
	WorkerCount   int           `json:"worker_count"`
	Tasks         int           `json:"tasks"`
	IdleDuration  time.Duration `json:"idle_duration"`
	Active        bool          `json:"active"`
	ParslVersion  string        `json:"parsl_version"`
	PythonVersion string        `json:"python_version"`
	Draining      bool          `json:"draining"`
}

// Handler serves command requests against a live registry. It is
// synchronous by construction: Handle is called once per event-loop
// iteration's command step (spec §4.7 step 2) and returns before the
// loop moves on.
type Handler struct {
	reg            *registry.Registry
	codec          codec.MessageCodec
	workerBindPort int
}

// New constructs a Handler. workerBindPort is the bound port WORKER_BINDS
// reports (spec §6: worker_port, resolved at bind time if configured as
// "random in range").
func New(reg *registry.Registry, c codec.MessageCodec, workerBindPort int) *Handler {
	return &Handler{reg: reg, codec: c, workerBindPort: workerBindPort}
}

// Handle dispatches request per spec §4.5's grammar table and returns
// the codec-encoded reply. It never returns an error for a malformed or
// unknown request — per spec §7, that case replies null and logs.
func (h *Handler) Handle(request string, now time.Time) []byte {
	reply := h.dispatch(request, now)
	data, err := h.codec.Encode(reply)
	if err != nil {
		slog.Error("command: failed to encode reply", "request", request, "error", err)
		data, _ = h.codec.Encode(nil)
	}
	return data
}

func (h *Handler) dispatch(request string, now time.Time) any {
	switch {
	case request == "CONNECTED_BLOCKS":
		return h.reg.ConnectedBlockHistory()

	case request == "WORKERS":
		return h.reg.TotalWorkers()

	case request == "OUTSTANDING_COUNT":
		return h.reg.OutstandingCount()

	case request == "MANAGERS":
		return h.managers(now)

	case request == "MANAGERS_PACKAGES":
		return h.reg.PackagesByManager()

	case strings.HasPrefix(request, "HOLD_WORKER;"):
		mgr := strings.TrimPrefix(request, "HOLD_WORKER;")
		if !h.reg.MarkHold(registry.ID(mgr)) {
			slog.Warn("command: HOLD_WORKER for unknown manager", "manager_id", mgr)
		}
		return nil

	case request == "WORKER_BINDS":
		return h.workerBindPort

	default:
		slog.Error("command: unknown request", "request", request)
		return nil
	}
}

func (h *Handler) managers(now time.Time) []ManagerInfo {
	snap := h.reg.Snapshot()
	out := make([]ManagerInfo, 0, len(snap))
	for _, rec := range snap {
		out = append(out, ManagerInfo{
			Manager:       rec.ID.Display(),
			BlockID:       rec.BlockID,
			WorkerCount:   rec.WorkerCount,
			Tasks:         len(rec.Tasks),
			IdleDuration:  rec.IdleDuration(now),
			Active:        rec.Active,
			ParslVersion:  rec.ParslVersion,
			PythonVersion: rec.PythonVersion,
			Draining:      rec.Draining,
		})
	}
	return out
}
