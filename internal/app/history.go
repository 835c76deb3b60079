package app

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"nebulalens-tui/internal/storage"
)

type logExportedMsg struct {
	path string
	err  error
}

// logRows is the log newest first, the order the panel shows it in.
func logRows(log *storage.Log) []storage.Entry {
	if log == nil {
		return nil
	}
	entries := log.Entries()
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries
}

func formatLogEntry(entry storage.Entry) string {
	stamp := entry.SettledAt.Format("15:04:05")
	switch entry.Outcome {
	case storage.OutcomeFailed:
		return fmt.Sprintf("#%d %s failed: %s", entry.Seq, stamp, entry.Error)
	case storage.OutcomeSuperseded:
		return fmt.Sprintf("#%d %s superseded", entry.Seq, stamp)
	case storage.OutcomeAnomaly:
		return fmt.Sprintf("#%d %s anomaly (%s?) %.1f%%", entry.Seq, stamp, orDash(entry.Label), entry.AverageConfidence*100)
	default:
		return fmt.Sprintf("#%d %s %s %d/%d %.1f%%", entry.Seq, stamp, entry.Label,
			entry.AgreementCount, entry.AgreementTotal, entry.AverageConfidence*100)
	}
}

func formatLogSummary(summary storage.Summary) string {
	line := fmt.Sprintf("%d submitted | %d failed | %d anomalies", summary.Submissions, summary.Failures, summary.Anomalies)
	if summary.Classified+summary.Anomalies > 0 {
		line += fmt.Sprintf(" | conf mean %.1f%% median %.1f%%", summary.MeanConfidence*100, summary.MedianConfidence*100)
	}
	if summary.Dropped > 0 {
		line += fmt.Sprintf(" | %d rotated out", summary.Dropped)
	}
	return line
}

func (m *Model) refreshHistoryView() {
	rows := logRows(m.state.Log)
	if len(rows) == 0 {
		m.history.SetContent("No predictions yet.\nSubmitted features are logged here.")
		m.history.SetYOffset(0)
		m.historyCursor = 0
		m.historyCursorTopLine = 0
		m.historyCursorBottomLine = 0
		m.historyRenderedLines = 0
		return
	}

	m.historyCursor = clampInt(m.historyCursor, 0, len(rows)-1)

	contentWidth := maxInt(1, m.history.Width)
	lines := make([]string, 0, len(rows))
	m.historyCursorTopLine = 0
	m.historyCursorBottomLine = 0
	for idx, entry := range rows {
		cursor := " "
		if idx == m.historyCursor {
			cursor = "▶"
		}
		wrapped := wrapLineToWidth(cursor+" "+formatLogEntry(entry), contentWidth)
		lineTop := len(lines)
		for _, segment := range wrapped {
			switch {
			case idx == m.historyCursor:
				segment = selectedLineStyle.Render(segment)
			case entry.Outcome == storage.OutcomeFailed:
				segment = errorStyle.Render(segment)
			case entry.Outcome == storage.OutcomeAnomaly:
				segment = anomalyStyle.Render(segment)
			case entry.Outcome == storage.OutcomeSuperseded:
				segment = mutedTextStyle(segment)
			}
			lines = append(lines, segment)
		}
		if idx == m.historyCursor {
			m.historyCursorTopLine = lineTop
			m.historyCursorBottomLine = len(lines) - 1
		}
	}
	m.history.SetContent(strings.Join(lines, "\n"))
	m.historyRenderedLines = len(lines)
	m.ensureHistoryCursorVisible()
}

func (m *Model) ensureHistoryCursorVisible() {
	if m.historyRenderedLines == 0 {
		m.history.SetYOffset(0)
		return
	}
	visibleRows := maxInt(1, m.history.Height)
	cursorTop := clampInt(m.historyCursorTopLine, 0, m.historyRenderedLines-1)
	cursorBottom := clampInt(m.historyCursorBottomLine, cursorTop, m.historyRenderedLines-1)
	top := clampInt(m.history.YOffset, 0, m.historyRenderedLines-1)
	bottom := top + visibleRows - 1
	scrollMargin := clampInt(visibleRows/4, 1, 2)
	if cursorTop < top+scrollMargin {
		m.history.SetYOffset(cursorTop - scrollMargin)
		return
	}
	if cursorBottom > bottom-scrollMargin {
		m.history.SetYOffset(cursorBottom - (visibleRows - 1 - scrollMargin))
		return
	}
	m.history.SetYOffset(top)
}

// selectedLogEntry is the entry under the log cursor.
func (m Model) selectedLogEntry() (storage.Entry, bool) {
	rows := logRows(m.state.Log)
	if len(rows) == 0 {
		return storage.Entry{}, false
	}
	return rows[clampInt(m.historyCursor, 0, len(rows)-1)], true
}

func wrapLineToWidth(line string, width int) []string {
	width = maxInt(1, width)
	runes := []rune(line)
	if len(runes) == 0 {
		return []string{""}
	}
	if len(runes) <= width {
		return []string{line}
	}
	segments := make([]string, 0, (len(runes)/width)+1)
	for start := 0; start < len(runes); start += width {
		end := minInt(start+width, len(runes))
		segments = append(segments, string(runes[start:end]))
	}
	return segments
}

func exportLogCmd(exporter *storage.Exporter, snapshot storage.Snapshot, now time.Time) tea.Cmd {
	return func() tea.Msg {
		if exporter == nil {
			return logExportedMsg{err: fmt.Errorf("log export is not configured")}
		}
		path, err := exporter.Save(snapshot, now)
		return logExportedMsg{path: path, err: err}
	}
}
