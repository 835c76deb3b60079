package app

import (
	"fmt"
	"strings"

	"nebulalens-tui/internal/service"
)

// defaultPerformance is shown before any result arrives.
var defaultPerformance = service.OrderedMap[service.ModelPerformance]{
	{Key: "rf"},
	{Key: "mlp"},
	{Key: "svm"},
	{Key: "knn"},
}

func renderMetrics(loading bool, result *service.PredictionResult, width int) string {
	if loading {
		return mutedTextStyle("Loading...")
	}
	data := defaultPerformance
	if !result.Failed() && len(result.Performance) > 0 {
		data = result.Performance
	}
	barW := clampInt(width-24, 4, 30)
	lines := make([]string, 0, len(data)*2)
	for idx, entry := range data {
		color := barPalette[idx%len(barPalette)]
		lines = append(lines,
			fmt.Sprintf("%-4s acc %s %6s", strings.ToUpper(entry.Key),
				renderBar(entry.Value.Accuracy, barW, color),
				fmt.Sprintf("%.1f%%", entry.Value.Accuracy*100)),
			fmt.Sprintf("     F1  %s %6s",
				renderBar(entry.Value.F1Score, barW, color),
				fmt.Sprintf("%.3f", entry.Value.F1Score)),
		)
	}
	return strings.Join(lines, "\n")
}

type catalogueEntry struct {
	key         string
	name        string
	description string
}

var modelCatalogue = []catalogueEntry{
	{
		key:         "rf",
		name:        "Random Forest (RF)",
		description: "An ensemble of decision trees built at training time. The predicted class is the one most trees vote for.",
	},
	{
		key:         "svm",
		name:        "Support Vector Machine (SVM)",
		description: "Finds an optimal separating hyperplane in a kernel-transformed space. Effective in high-dimensional feature spaces.",
	},
	{
		key:         "mlp",
		name:        "Multi-Layer Perceptron (MLP)",
		description: "A feedforward neural network with at least one hidden layer between the input and output layers.",
	},
	{
		key:         "knn",
		name:        "K-Nearest Neighbors (KNN)",
		description: "Instance-based: a point takes the majority class of its K closest training examples.",
	},
}

func renderCatalogue(width int) string {
	lines := []string{}
	for idx, entry := range modelCatalogue {
		if idx > 0 {
			lines = append(lines, "")
		}
		lines = append(lines, labelStyle.Render(entry.name))
		lines = append(lines, wrapText(entry.description, width)...)
	}
	return strings.Join(lines, "\n")
}
