package jobs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minsuoh/hipass-capture/internal/capture"
)

func TestRegistry(t *testing.T) {
	t.Run("create and get", func(t *testing.T) {
		r := NewRegistry()
		id := r.Create(7)
		require.NotEmpty(t, id)

		job, ok := r.Get(id)
		require.True(t, ok)
		assert.Equal(t, id, job.ID)
		assert.Equal(t, 7, job.Total)
		assert.Equal(t, 0, job.Done)
		assert.False(t, job.Finished)
	})

	t.Run("unknown id", func(t *testing.T) {
		r := NewRegistry()
		_, ok := r.Get("nope")
		assert.False(t, ok)
	})

	t.Run("progress and finish", func(t *testing.T) {
		r := NewRegistry()
		id := r.Create(3)

		r.Progress(id, 2, 3, "2026-08-29")
		job, _ := r.Get(id)
		assert.Equal(t, 2, job.Done)
		assert.Equal(t, "2026-08-29", job.CurrentDate)

		r.Finish(id)
		job, _ = r.Get(id)
		assert.True(t, job.Finished)
	})

	t.Run("get returns a snapshot, not shared state", func(t *testing.T) {
		r := NewRegistry()
		id := r.Create(1)

		job, _ := r.Get(id)
		job.Done = 42

		fresh, _ := r.Get(id)
		assert.Equal(t, 0, fresh.Done)
	})

	t.Run("outcomes are replaced per batch", func(t *testing.T) {
		r := NewRegistry()
		assert.Empty(t, r.Outcomes())

		first := []capture.Outcome{{Date: "2026-08-29", Status: capture.StatusSuccess, Timestamp: time.Now()}}
		r.SetOutcomes(first)
		require.Len(t, r.Outcomes(), 1)

		second := []capture.Outcome{
			{Date: "2026-08-30", Status: capture.StatusEmpty},
			{Date: "2026-08-29", Status: capture.StatusSkipped},
		}
		r.SetOutcomes(second)

		got := r.Outcomes()
		require.Len(t, got, 2)
		assert.Equal(t, "2026-08-30", got[0].Date)
	})
}
