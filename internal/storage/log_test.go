package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendAssignsSequenceAndID(t *testing.T) {
	t.Parallel()

	log := NewLog(10)
	first := log.Append(Entry{Outcome: OutcomeClassified, Label: "STAR"})
	second := log.Append(Entry{Outcome: OutcomeFailed, Error: "Failed to get prediction."})

	assert.Equal(t, int64(1), first.Seq)
	assert.Equal(t, int64(2), second.Seq)
	assert.NotEmpty(t, first.ID)
	assert.NotEqual(t, first.ID, second.ID)

	entries := log.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "STAR", entries[0].Label)
	assert.Equal(t, OutcomeFailed, entries[1].Outcome)
}

func TestEntriesIsACopy(t *testing.T) {
	t.Parallel()

	log := NewLog(10)
	log.Append(Entry{Label: "QSO"})
	entries := log.Entries()
	entries[0].Label = "mutated"

	assert.Equal(t, "QSO", log.Entries()[0].Label)
}

func TestCapacityEvictsOldest(t *testing.T) {
	t.Parallel()

	log := NewLog(2)
	log.Append(Entry{Label: "a"})
	log.Append(Entry{Label: "b"})
	log.Append(Entry{Label: "c"})

	entries := log.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "b", entries[0].Label)
	assert.Equal(t, "c", entries[1].Label)

	summary := log.Summary()
	assert.Equal(t, 3, summary.Submissions)
	assert.Equal(t, 1, summary.Dropped)
}

func TestUnboundedLogKeepsFirstEntry(t *testing.T) {
	t.Parallel()

	log := NewLog(0)
	assert.Zero(t, log.Capacity())
	for i := 0; i < 201; i++ {
		log.Append(Entry{Outcome: OutcomeClassified})
	}

	entries := log.Entries()
	require.Len(t, entries, 201)
	assert.Equal(t, int64(1), entries[0].Seq)
	assert.Zero(t, log.Summary().Dropped)
	assert.Zero(t, NewLog(-5).Capacity())
}

func TestSummaryAggregates(t *testing.T) {
	t.Parallel()

	log := NewLog(0)

	empty := log.Summary()
	assert.Zero(t, empty.MeanConfidence)
	assert.Zero(t, empty.MedianConfidence)

	log.Append(Entry{Outcome: OutcomeClassified, AverageConfidence: 0.9})
	log.Append(Entry{Outcome: OutcomeAnomaly, AverageConfidence: 0.4})
	log.Append(Entry{Outcome: OutcomeClassified, AverageConfidence: 0.8})
	log.Append(Entry{Outcome: OutcomeFailed})
	log.Append(Entry{Outcome: OutcomeSuperseded})

	summary := log.Summary()
	assert.Equal(t, 5, summary.Submissions)
	assert.Equal(t, 2, summary.Classified)
	assert.Equal(t, 1, summary.Anomalies)
	assert.Equal(t, 1, summary.Failures)
	assert.Equal(t, 1, summary.Superseded)
	assert.InDelta(t, 0.7, summary.MeanConfidence, 1e-9)
	assert.InDelta(t, 0.8, summary.MedianConfidence, 1e-9)
}

func TestExporterWritesSnapshot(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	log := NewLog(5)
	log.Append(Entry{Outcome: OutcomeClassified, Label: "GALAXY", AverageConfidence: 0.77})

	exporter := NewExporter(dir)
	now := time.Date(2026, 10, 17, 12, 30, 0, 0, time.UTC)
	path, err := exporter.Save(Snapshot{APIBaseURL: "http://127.0.0.1:8000", Summary: log.Summary(), Entries: log.Entries()}, now)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "exports"), filepath.Dir(path))

	blob, err := os.ReadFile(path)
	require.NoError(t, err)
	var snapshot Snapshot
	require.NoError(t, json.Unmarshal(blob, &snapshot))
	assert.Equal(t, "2026-10-17T12:30:00Z", snapshot.ExportedAt)
	require.Len(t, snapshot.Entries, 1)
	assert.Equal(t, "GALAXY", snapshot.Entries[0].Label)
	assert.Equal(t, 1, snapshot.Summary.Classified)
}
