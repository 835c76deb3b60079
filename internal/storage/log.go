package storage

import (
	"time"

	"github.com/google/uuid"
	"github.com/montanaflynn/stats"

	"nebulalens-tui/internal/service"
)

type Outcome string

const (
	OutcomeClassified Outcome = "classified"
	OutcomeAnomaly    Outcome = "anomaly"
	OutcomeFailed     Outcome = "failed"
	// OutcomeSuperseded marks a submission that settled after a newer one
	// was issued; its response was not shown.
	OutcomeSuperseded Outcome = "superseded"
)

// Entry is one past submission. Entries are never mutated once appended.
type Entry struct {
	ID                string                `json:"id"`
	Seq               int64                 `json:"seq"`
	SubmittedAt       time.Time             `json:"submitted_at"`
	SettledAt         time.Time             `json:"settled_at"`
	Features          service.FeatureVector `json:"features"`
	Outcome           Outcome               `json:"outcome"`
	Label             string                `json:"label,omitempty"`
	AgreementCount    int                   `json:"agreement_count,omitempty"`
	AgreementTotal    int                   `json:"agreement_total,omitempty"`
	AverageConfidence float64               `json:"average_confidence,omitempty"`
	Error             string                `json:"error,omitempty"`
}

// Log is the append-only record of this session's submissions. It is owned
// by the UI loop and is not safe for concurrent use.
type Log struct {
	capacity int
	seq      int64
	dropped  int
	entries  []Entry
}

// NewLog returns an empty log. A capacity of zero or less keeps every entry
// for the life of the session; a positive capacity is an explicit opt-in to
// evicting the oldest entries.
func NewLog(capacity int) *Log {
	if capacity < 0 {
		capacity = 0
	}
	return &Log{capacity: capacity}
}

// Append stamps e with an ID and sequence number and stores it. With a
// positive capacity the oldest entry is evicted once it is reached.
func (l *Log) Append(e Entry) Entry {
	l.seq++
	e.Seq = l.seq
	e.ID = uuid.NewString()
	l.entries = append(l.entries, e)
	if l.capacity > 0 && len(l.entries) > l.capacity {
		over := len(l.entries) - l.capacity
		l.entries = append([]Entry(nil), l.entries[over:]...)
		l.dropped += over
	}
	return e
}

// Entries returns a copy in submission order.
func (l *Log) Entries() []Entry {
	return append([]Entry(nil), l.entries...)
}

func (l *Log) Len() int {
	return len(l.entries)
}

// Capacity is zero for an unbounded log.
func (l *Log) Capacity() int {
	return l.capacity
}

type Summary struct {
	Submissions    int     `json:"submissions"`
	Dropped        int     `json:"dropped"`
	Classified     int     `json:"classified"`
	Anomalies      int     `json:"anomalies"`
	Failures       int     `json:"failures"`
	Superseded     int     `json:"superseded"`
	MeanConfidence float64 `json:"mean_confidence"`
	// MedianConfidence is zero when no submission succeeded.
	MedianConfidence float64 `json:"median_confidence"`
}

func (l *Log) Summary() Summary {
	summary := Summary{Submissions: int(l.seq), Dropped: l.dropped}
	confidences := make(stats.Float64Data, 0, len(l.entries))
	for _, entry := range l.entries {
		switch entry.Outcome {
		case OutcomeClassified:
			summary.Classified++
			confidences = append(confidences, entry.AverageConfidence)
		case OutcomeAnomaly:
			summary.Anomalies++
			confidences = append(confidences, entry.AverageConfidence)
		case OutcomeFailed:
			summary.Failures++
		case OutcomeSuperseded:
			summary.Superseded++
		}
	}
	if mean, err := stats.Mean(confidences); err == nil {
		summary.MeanConfidence = mean
	}
	if median, err := stats.Median(confidences); err == nil {
		summary.MedianConfidence = median
	}
	return summary
}
