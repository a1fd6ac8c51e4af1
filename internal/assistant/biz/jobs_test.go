package biz

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobTrackerLifecycle(t *testing.T) {
	tracker := NewJobTracker()

	id := tracker.Create("notes.pdf")
	require.NotEmpty(t, id)

	job, ok := tracker.Get(id)
	require.True(t, ok)
	assert.Equal(t, JobPending, job.State)
	assert.Equal(t, "notes.pdf", job.Filename)
	assert.False(t, job.CreatedAt.IsZero())

	tracker.Complete(id, 12)
	job, ok = tracker.Get(id)
	require.True(t, ok)
	assert.Equal(t, JobCompleted, job.State)
	assert.Equal(t, 12, job.Chunks)
	assert.False(t, job.FinishedAt.IsZero())
}

func TestJobTrackerFail(t *testing.T) {
	tracker := NewJobTracker()
	id := tracker.Create("empty.docx")

	tracker.Fail(id, "no extractable text")
	job, ok := tracker.Get(id)
	require.True(t, ok)
	assert.Equal(t, JobFailed, job.State)
	assert.Equal(t, "no extractable text", job.Error)
}

func TestJobTrackerUnknownID(t *testing.T) {
	tracker := NewJobTracker()
	_, ok := tracker.Get("01JXXXXXXXXXXXXXXXXXXXXXXX")
	assert.False(t, ok)

	// Updates to unknown IDs are ignored.
	tracker.Complete("nope", 1)
	tracker.Fail("nope", "x")
}

func TestJobTrackerCount(t *testing.T) {
	tracker := NewJobTracker()
	a := tracker.Create("a.pdf")
	b := tracker.Create("b.pdf")
	tracker.Create("c.pdf")

	tracker.Complete(a, 3)
	tracker.Fail(b, "boom")

	pending, completed, failed := tracker.Count()
	assert.Equal(t, 1, pending)
	assert.Equal(t, 1, completed)
	assert.Equal(t, 1, failed)
}

func TestJobTrackerIDsAreUnique(t *testing.T) {
	tracker := NewJobTracker()
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id := tracker.Create("f.pdf")
		assert.False(t, seen[id])
		seen[id] = true
	}
}
