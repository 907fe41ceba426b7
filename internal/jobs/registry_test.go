package jobs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryCreate_UniqueJobIDs(t *testing.T) {
	reg := NewRegistry(100)
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		rec := reg.Create("install")
		assert.False(t, seen[rec.JobID], "duplicate job id %s", rec.JobID)
		seen[rec.JobID] = true
	}
}

func TestRecordLifecycle(t *testing.T) {
	reg := NewRegistry(100)
	rec := reg.Create("install")
	assert.Equal(t, StatusPending, rec.Snapshot().Status)

	reg.Start(rec)
	assert.Equal(t, StatusRunning, rec.Snapshot().Status)
	require.NotNil(t, rec.Snapshot().StartedAt)

	reg.Complete(rec, AggregateResult{Success: 1})
	snap := rec.Snapshot()
	assert.Equal(t, StatusCompleted, snap.Status)
	require.NotNil(t, snap.CompletedAt)
	assert.Equal(t, AggregateResult{Success: 1}, snap.Result)
}

func TestRecordLifecycle_Fail(t *testing.T) {
	reg := NewRegistry(100)
	rec := reg.Create("update")
	reg.Start(rec)
	reg.Fail(rec, "boom")

	snap := rec.Snapshot()
	assert.Equal(t, StatusFailed, snap.Status)
	assert.Equal(t, "boom", snap.Error)
}

func TestRegistryPrune_KeepsNonTerminalJobs(t *testing.T) {
	reg := NewRegistry(2)

	pending := reg.Create("install")
	terminal := reg.Create("update")
	reg.Complete(terminal, nil)

	// Creating a third job should evict the terminal one, not the pending one.
	reg.Create("purge")

	assert.NotNil(t, reg.Get(pending.JobID))
	assert.Nil(t, reg.Get(terminal.JobID))
	assert.Len(t, reg.List(), 2)
}

func TestRegistryPrune_FIFOOrder(t *testing.T) {
	reg := NewRegistry(2)

	a := reg.Create("install")
	reg.Complete(a, nil)
	b := reg.Create("update")
	reg.Complete(b, nil)

	// Capacity 2 is exactly filled by two terminal jobs; no eviction yet.
	assert.NotNil(t, reg.Get(a.JobID))
	assert.NotNil(t, reg.Get(b.JobID))

	c := reg.Create("purge")
	// Exceeding capacity evicts the oldest terminal job, "a", before "b".
	assert.Nil(t, reg.Get(a.JobID))
	assert.NotNil(t, reg.Get(b.JobID))
	assert.NotNil(t, reg.Get(c.JobID))
}

func TestRegistryGet_UnknownReturnsNil(t *testing.T) {
	reg := NewRegistry(10)
	assert.Nil(t, reg.Get("nonexistent"))
}

func TestProgressSink(t *testing.T) {
	reg := NewRegistry(10)
	rec := reg.Create("download_models")
	sink := rec.ProgressSink()
	sink(3, 10, "downloading...")

	snap := rec.Snapshot()
	assert.Equal(t, Progress{Current: 3, Total: 10, Message: "downloading..."}, snap.Progress)
}
