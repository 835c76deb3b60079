package app

import (
	"fmt"
	"strings"

	"nebulalens-tui/internal/service"
)

func formatAverageConfidence(avg float64) string {
	return fmt.Sprintf("%.1f%%", avg*100)
}

// renderAnomaly draws the anomalous-result branch: the agreement summary and
// the manually triggered hypothesis slot.
func renderAnomaly(s *resultSession, width int, spin string) string {
	result := s.result
	lines := []string{
		anomalyStyle.Render("⚠ Anomaly detected"),
		"",
		wrapJoin(fmt.Sprintf("The models could not agree with confidence on this object. Best guess: %s (%d of %d models).",
			orDash(result.ModelAgreement.Prediction), result.ModelAgreement.Count, result.ModelAgreement.Total), width),
		"Average confidence: " + labelStyle.Render(formatAverageConfidence(result.AverageConfidence)),
		"",
		sectionStyle.Render("Hypothesis"),
	}
	lines = append(lines, renderSlot(s.slot(slotAnomaly), width, spin, "[a] Ask the AI to Analyze"))
	return strings.Join(lines, "\n")
}

// renderSlot draws one enrichment slot according to its fetch state. trigger
// is the button shown while idle; an empty trigger means the slot fires on
// its own.
func renderSlot(e *enrichment, width int, spin, trigger string) string {
	if e == nil {
		return ""
	}
	switch e.fetcher.Status() {
	case FetchLoading:
		return spin + " " + mutedTextStyle("Thinking...")
	case FetchLoaded:
		text := e.writer.DisplayedText()
		if e.writer.IsTyping() {
			text += "▌"
		}
		return wrapJoin(text, width)
	case FetchFailed:
		return errorStyle.Render(wrapJoin(e.fetcher.ErrText(), width)) + "\n" + helpStyle.Render("press r to retry")
	default:
		if trigger == "" {
			return mutedTextStyle("Waiting...")
		}
		return buttonStyle.Render(trigger)
	}
}

func wrapJoin(text string, width int) string {
	return strings.Join(wrapText(text, width), "\n")
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

// renderEmpty is the placeholder branch. An error result surfaces its text.
func renderEmpty(result *service.PredictionResult, width int) string {
	if result != nil && strings.TrimSpace(result.Error) != "" {
		return errorStyle.Render(wrapJoin(result.Error, width))
	}
	return mutedTextStyle("Enter parameters to see results.")
}
