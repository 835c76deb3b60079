package app

import (
	"strings"
	"testing"

	"nebulalens-tui/internal/service"
)

func TestDispatchPriority(t *testing.T) {
	t.Parallel()

	normal := &service.PredictionResult{ModelAgreement: service.ModelAgreement{Prediction: "GALAXY", Count: 3, Total: 4}}
	anomalous := &service.PredictionResult{IsAnomaly: true}
	failed := &service.PredictionResult{IsAnomaly: true, Error: "Failed to get prediction."}

	cases := []struct {
		name    string
		loading bool
		result  *service.PredictionResult
		want    ResultBranch
	}{
		{name: "loading without result", loading: true, want: BranchAnalyzing},
		{name: "loading hides stale result", loading: true, result: normal, want: BranchAnalyzing},
		{name: "loading hides stale error", loading: true, result: failed, want: BranchAnalyzing},
		{name: "absent", want: BranchEmpty},
		{name: "error wins over anomaly flag", result: failed, want: BranchEmpty},
		{name: "anomaly", result: anomalous, want: BranchAnomaly},
		{name: "default", result: normal, want: BranchDefault},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := Dispatch(tc.loading, tc.result)
			if got != tc.want {
				t.Fatalf("Dispatch = %s, want %s", got, tc.want)
			}
			if again := Dispatch(tc.loading, tc.result); again != got {
				t.Fatalf("Dispatch is not deterministic: %s then %s", got, again)
			}
		})
	}
}

func TestAnomalyAndDefaultBranchesAreExclusive(t *testing.T) {
	t.Parallel()

	for _, anomaly := range []bool{true, false} {
		result := &service.PredictionResult{
			IsAnomaly:         anomaly,
			AverageConfidence: 0.41,
			ModelAgreement:    service.ModelAgreement{Prediction: "QSO", Count: 2, Total: 4},
		}
		s := newResultSession(result, 0)
		_, hasAnomalySlot := s.slots[slotAnomaly]
		_, hasObjectSlot := s.slots[slotObject]
		if hasAnomalySlot != anomaly || hasObjectSlot == anomaly {
			t.Fatalf("anomaly=%v produced slots %v", anomaly, s.slots)
		}
		var view string
		if anomaly {
			view = renderAnomaly(s, 60, "")
		} else {
			view = renderDefault(s, 60, "")
		}
		if strings.Contains(view, "Ask the AI to Analyze") != anomaly {
			t.Fatalf("anomaly=%v rendered wrong panel:\n%s", anomaly, view)
		}
		if strings.Contains(view, "Per-model breakdown") == anomaly {
			t.Fatalf("anomaly=%v rendered wrong panel:\n%s", anomaly, view)
		}
	}
}

func TestSortedProbabilitiesIsStableDescending(t *testing.T) {
	t.Parallel()

	probs := service.OrderedMap[float64]{
		{Key: "STAR", Value: 0.2},
		{Key: "GALAXY", Value: 0.4},
		{Key: "QSO", Value: 0.2},
		{Key: "UNKNOWN", Value: 0.4},
		{Key: "NOISE", Value: 0},
	}
	got := sortedProbabilities(probs)
	want := []string{"GALAXY", "UNKNOWN", "STAR", "QSO", "NOISE"}
	for idx, entry := range got {
		if entry.Key != want[idx] {
			t.Fatalf("position %d: got %s want %s (all: %v)", idx, entry.Key, want[idx], got)
		}
		if idx > 0 && entry.Value > got[idx-1].Value {
			t.Fatalf("order is not non-increasing: %v", got)
		}
	}
	if probs[0].Key != "STAR" {
		t.Fatalf("input mapping must not be reordered")
	}
}

func TestBreakdownMarksFailedModels(t *testing.T) {
	t.Parallel()

	lines := renderBreakdown(service.OrderedMap[service.ModelPrediction]{
		{Key: "svm", Value: service.ModelPrediction{Prediction: "Error: kernel exploded"}},
		{Key: "rf", Value: service.ModelPrediction{
			Prediction:    "STAR",
			Confidence:    0.875,
			Probabilities: service.OrderedMap[float64]{{Key: "QSO", Value: 0.025}, {Key: "STAR", Value: 0.875}},
		}},
	}, 60)
	view := strings.Join(lines, "\n")
	if !strings.Contains(view, "✗ Error: kernel exploded") {
		t.Fatalf("missing error marker:\n%s", view)
	}
	failedLine := strings.SplitN(view, "\n", 2)[0]
	if !strings.Contains(failedLine, "0.0%") {
		t.Fatalf("failed model should still show its confidence: %q", failedLine)
	}
	if !strings.Contains(view, "87.5%") {
		t.Fatalf("missing confidence percentage:\n%s", view)
	}
	star, qso := strings.Index(view, "\n  STAR"), strings.Index(view, "\n  QSO")
	if star < 0 || qso < 0 || star > qso {
		t.Fatalf("expected STAR bar before QSO bar:\n%s", view)
	}
}

func TestMetricsDefaultTableAndLoading(t *testing.T) {
	t.Parallel()

	if got := renderMetrics(true, nil, 60); !strings.Contains(got, "Loading...") {
		t.Fatalf("expected loading text, got %q", got)
	}
	view := renderMetrics(false, nil, 60)
	for _, model := range []string{"RF", "MLP", "SVM", "KNN"} {
		if !strings.Contains(view, model) {
			t.Fatalf("default table missing %s:\n%s", model, view)
		}
	}
	if !strings.Contains(view, "0.0%") || !strings.Contains(view, "0.000") {
		t.Fatalf("default table should be zero-valued:\n%s", view)
	}

	view = renderMetrics(false, &service.PredictionResult{Performance: service.OrderedMap[service.ModelPerformance]{
		{Key: "rf", Value: service.ModelPerformance{Accuracy: 0.9712, F1Score: 0.9712}},
	}}, 60)
	if !strings.Contains(view, "97.1%") || !strings.Contains(view, "0.971") {
		t.Fatalf("unexpected formatting:\n%s", view)
	}
}
