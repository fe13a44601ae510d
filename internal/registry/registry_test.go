package registry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseMeta() RegistrationMeta {
	return RegistrationMeta{
		StartTime:     time.Unix(0, 0),
		ParslVersion:  "2024.01.01",
		PythonVersion: "3.11.4",
		BlockID:       "block-0",
		MaxCapacity:   4,
		WorkerCount:   4,
		Hostname:      "node-a",
		Packages:      map[string]string{"numpy": "1.26.0"},
	}
}

func TestRegisterAcceptsMatchingVersions(t *testing.T) {
	r := New("2024.01.01", "3.11.9")
	now := time.Unix(100, 0)

	rec, err := r.Register(ID("mgr-1"), baseMeta(), now)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "block-0", rec.BlockID)
	assert.True(t, rec.Active)
	assert.False(t, rec.Draining)
	assert.NotNil(t, rec.IdleSince)
	assert.Equal(t, []string{"block-0"}, r.ConnectedBlockHistory())
}

func TestRegisterRejectsFrameworkVersionMismatch(t *testing.T) {
	r := New("2024.02.01", "3.11.9")
	meta := baseMeta()

	rec, err := r.Register(ID("mgr-1"), meta, time.Unix(0, 0))
	assert.ErrorIs(t, err, ErrVersionMismatch)
	assert.Nil(t, rec)
	assert.Equal(t, 0, r.Len())
	assert.Empty(t, r.ConnectedBlockHistory())
}

func TestRegisterRejectsRuntimeMinorVersionMismatch(t *testing.T) {
	r := New("2024.01.01", "3.12.0")
	meta := baseMeta() // python 3.11.4

	_, err := r.Register(ID("mgr-1"), meta, time.Unix(0, 0))
	assert.ErrorIs(t, err, ErrVersionMismatch)
	assert.Equal(t, 0, r.Len())
}

func TestRegisterIgnoresRuntimePatchMismatch(t *testing.T) {
	r := New("2024.01.01", "3.11.0")
	meta := baseMeta() // python 3.11.4, same minor

	_, err := r.Register(ID("mgr-1"), meta, time.Unix(0, 0))
	assert.NoError(t, err)
}

func TestReregistrationReplacesRecord(t *testing.T) {
	r := New("2024.01.01", "3.11.0")
	first, err := r.Register(ID("mgr-1"), baseMeta(), time.Unix(0, 0))
	require.NoError(t, err)
	first.Tasks = append(first.Tasks, 99)

	second, err := r.Register(ID("mgr-1"), baseMeta(), time.Unix(1, 0))
	require.NoError(t, err)

	assert.Empty(t, second.Tasks, "re-registration must start a fresh record, not resurrect the old one")
	assert.Len(t, r.ConnectedBlockHistory(), 2, "history is append-only across re-registrations")
}

func TestDispatchAndRecordResultMaintainIdleInvariant(t *testing.T) {
	r := New("v", "3.11.0")
	id := ID("mgr-1")
	meta := baseMeta()
	meta.PythonVersion = "3.11.0"
	r.Register(id, meta, time.Unix(0, 0))

	r.Dispatch(id, []int64{1, 2, 3})
	rec, _ := r.Get(id)
	assert.Nil(t, rec.IdleSince, "idle_since must be nil while tasks are outstanding")
	assert.Equal(t, []int64{1, 2, 3}, rec.Tasks)

	now := time.Unix(50, 0)
	require.NoError(t, r.RecordResult(id, 2, now))
	rec, _ = r.Get(id)
	assert.Equal(t, []int64{1, 3}, rec.Tasks)
	assert.Nil(t, rec.IdleSince)

	require.NoError(t, r.RecordResult(id, 1, now))
	require.NoError(t, r.RecordResult(id, 3, now))
	rec, _ = r.Get(id)
	assert.Empty(t, rec.Tasks)
	require.NotNil(t, rec.IdleSince)
	assert.True(t, rec.IdleSince.Equal(now))
}

func TestRecordResultUnknownTaskIsNonFatal(t *testing.T) {
	r := New("v", "3.11.0")
	id := ID("mgr-1")
	meta := baseMeta()
	meta.PythonVersion = "3.11.0"
	r.Register(id, meta, time.Unix(0, 0))
	r.Dispatch(id, []int64{1})

	err := r.RecordResult(id, 404, time.Unix(1, 0))
	assert.ErrorIs(t, err, ErrUnknownTask)

	rec, _ := r.Get(id)
	assert.Equal(t, []int64{1}, rec.Tasks, "an unknown task_id must not disturb the outstanding list")
}

func TestSnapshotIsIndependentCopy(t *testing.T) {
	r := New("v", "3.11.0")
	id := ID("mgr-1")
	meta := baseMeta()
	meta.PythonVersion = "3.11.0"
	r.Register(id, meta, time.Unix(0, 0))
	r.Dispatch(id, []int64{7})

	snap := r.Snapshot()
	require.Len(t, snap, 1)
	snap[0].Tasks[0] = 9999

	rec, _ := r.Get(id)
	assert.Equal(t, []int64{7}, rec.Tasks, "mutating a snapshot must never affect live registry state")
}

func TestDisplayReplacesInvalidUTF8(t *testing.T) {
	id := ID([]byte{0xff, 0xfe, 'a'})
	assert.Equal(t, "��a", id.Display())
}

func TestMarkHoldUnknownManagerReportsFalse(t *testing.T) {
	r := New("v", "3.11.0")
	assert.False(t, r.MarkHold(ID("ghost")))
}

func TestTotalWorkersAndOutstandingCount(t *testing.T) {
	r := New("v", "3.11.0")
	metaA := baseMeta()
	metaA.PythonVersion = "3.11.0"
	metaA.WorkerCount = 4
	metaB := baseMeta()
	metaB.PythonVersion = "3.11.0"
	metaB.WorkerCount = 2
	metaB.BlockID = "block-1"

	r.Register(ID("a"), metaA, time.Unix(0, 0))
	r.Register(ID("b"), metaB, time.Unix(0, 0))
	r.Dispatch(ID("a"), []int64{1, 2})
	r.Dispatch(ID("b"), []int64{3})

	assert.Equal(t, 6, r.TotalWorkers())
	assert.Equal(t, 3, r.OutstandingCount())
}
