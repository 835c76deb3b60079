package app

import "nebulalens-tui/internal/service"

// ResultBranch is the one state the result pane renders.
type ResultBranch int

const (
	BranchAnalyzing ResultBranch = iota
	BranchEmpty
	BranchAnomaly
	BranchDefault
)

func (b ResultBranch) String() string {
	switch b {
	case BranchAnalyzing:
		return "analyzing"
	case BranchEmpty:
		return "empty"
	case BranchAnomaly:
		return "anomaly"
	case BranchDefault:
		return "default"
	default:
		return "unknown"
	}
}

// Dispatch picks the result pane branch. Loading wins over any stale
// result, an absent or failed result renders the placeholder, and only then
// is the anomaly flag consulted.
func Dispatch(loading bool, result *service.PredictionResult) ResultBranch {
	switch {
	case loading:
		return BranchAnalyzing
	case result.Failed():
		return BranchEmpty
	case result.IsAnomaly:
		return BranchAnomaly
	default:
		return BranchDefault
	}
}
