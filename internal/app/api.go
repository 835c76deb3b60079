package app

import (
	"context"

	"nebulalens-tui/internal/service"
)

// API is the slice of service.Client the model depends on.
type API interface {
	Predict(ctx context.Context, features service.FeatureVector) (*service.PredictionResult, error)
	Explain(ctx context.Context, kind service.ExplanationKind, payload any) (string, error)
	Health(ctx context.Context) error
}

var _ API = (*service.Client)(nil)
