package app

import (
	"fmt"
	"sort"
	"strings"

	"nebulalens-tui/internal/service"
)

// sortedProbabilities orders class probabilities by value, highest first.
// Equal values keep their order from the API response.
func sortedProbabilities(probs service.OrderedMap[float64]) []service.Entry[float64] {
	out := append([]service.Entry[float64](nil), probs...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Value > out[j].Value
	})
	return out
}

// renderDefault draws the confident-result branch, top to bottom: consensus,
// the per-prediction explanation, the "what is" explainer and the per-model
// breakdown.
func renderDefault(s *resultSession, width int, spin string) string {
	result := s.result
	label := orDash(s.label())

	lines := []string{
		sectionStyle.Render("Consensus"),
		fmt.Sprintf("%d out of %d models agree: %s",
			result.ModelAgreement.Count, result.ModelAgreement.Total, labelStyle.Render(label)),
		"",
		sectionStyle.Render("Why " + label + "?"),
		renderSlot(s.slot(slotDynamic), width, spin, ""),
		"",
		sectionStyle.Render("What is a " + label + "?"),
		renderSlot(s.slot(slotObject), width, spin, "[e] Explain "+label),
		"",
		sectionStyle.Render("Per-model breakdown"),
	}
	lines = append(lines, renderBreakdown(result.Predictions, width)...)
	return strings.Join(lines, "\n")
}

func renderBreakdown(predictions service.OrderedMap[service.ModelPrediction], width int) []string {
	if len(predictions) == 0 {
		return []string{mutedTextStyle("No per-model predictions.")}
	}
	classW := 0
	for _, model := range predictions {
		for _, p := range model.Value.Probabilities {
			classW = maxInt(classW, len([]rune(p.Key)))
		}
	}
	barW := clampInt(width-classW-12, 6, 40)

	var lines []string
	for _, model := range predictions {
		name := strings.ToUpper(model.Key)
		pred := model.Value
		confidence := mutedTextStyle(fmt.Sprintf("%.1f%%", pred.Confidence*100))
		if pred.Failed() {
			lines = append(lines, fmt.Sprintf("%-4s %s  %s", name, errorStyle.Render("✗ "+orDash(pred.Prediction)), confidence))
			continue
		}
		lines = append(lines, fmt.Sprintf("%-4s %s  %s", name, labelStyle.Render(pred.Prediction), confidence))
		for idx, p := range sortedProbabilities(pred.Probabilities) {
			color := barPalette[idx%len(barPalette)]
			lines = append(lines, fmt.Sprintf("  %-*s %s %5.1f%%", classW, p.Key, renderBar(p.Value, barW, color), p.Value*100))
		}
	}
	return lines
}
