package service

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// FeatureVector is the six-band photometry plus redshift submitted to /predict.
type FeatureVector struct {
	U        float64 `json:"u"`
	G        float64 `json:"g"`
	R        float64 `json:"r"`
	I        float64 `json:"i"`
	Z        float64 `json:"z"`
	Redshift float64 `json:"redshift"`
}

// Entry is one key/value pair of an OrderedMap.
type Entry[T any] struct {
	Key   string
	Value T
}

// OrderedMap is a JSON object decoded in document order. The API returns
// mappings (model -> prediction, class -> probability) whose order is
// meaningful for display and for breaking ties, which a Go map would lose.
type OrderedMap[T any] []Entry[T]

func (m OrderedMap[T]) Get(key string) (T, bool) {
	for _, entry := range m {
		if entry.Key == key {
			return entry.Value, true
		}
	}
	var zero T
	return zero, false
}

func (m OrderedMap[T]) Keys() []string {
	keys := make([]string, 0, len(m))
	for _, entry := range m {
		keys = append(keys, entry.Key)
	}
	return keys
}

func (m *OrderedMap[T]) UnmarshalJSON(blob []byte) error {
	trimmed := bytes.TrimSpace(blob)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*m = nil
		return nil
	}
	if !gjson.ValidBytes(trimmed) {
		return fmt.Errorf("invalid JSON object")
	}
	parsed := gjson.ParseBytes(trimmed)
	if !parsed.IsObject() {
		return fmt.Errorf("expected JSON object, got %s", parsed.Type)
	}

	out := make(OrderedMap[T], 0, 4)
	var decodeErr error
	parsed.ForEach(func(key, value gjson.Result) bool {
		var item T
		if err := json.Unmarshal([]byte(value.Raw), &item); err != nil {
			decodeErr = fmt.Errorf("decode %q: %w", key.String(), err)
			return false
		}
		out = append(out, Entry[T]{Key: key.String(), Value: item})
		return true
	})
	if decodeErr != nil {
		return decodeErr
	}
	*m = out
	return nil
}

func (m OrderedMap[T]) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for idx, entry := range m {
		if idx > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(entry.Key)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(entry.Value)
		if err != nil {
			return nil, fmt.Errorf("encode %q: %w", entry.Key, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// ModelPrediction is one model's verdict. Prediction is a class label, or
// "Error" (optionally "Error: detail") when the model failed.
type ModelPrediction struct {
	Prediction    string              `json:"prediction"`
	Confidence    float64             `json:"confidence"`
	Probabilities OrderedMap[float64] `json:"probabilities"`
}

func (p ModelPrediction) Failed() bool {
	label := strings.TrimSpace(p.Prediction)
	return label == "" || label == "Error" || strings.HasPrefix(label, "Error:")
}

type ModelAgreement struct {
	Prediction string `json:"prediction"`
	Count      int    `json:"count"`
	Total      int    `json:"total"`
}

type ModelPerformance struct {
	Accuracy float64 `json:"accuracy"`
	F1Score  float64 `json:"f1_score"`
}

// PredictionResult is the /predict response. When Error is set the other
// fields are unreliable and must not be rendered.
type PredictionResult struct {
	Predictions       OrderedMap[ModelPrediction]  `json:"predictions,omitempty"`
	ModelAgreement    ModelAgreement               `json:"modelAgreement"`
	Performance       OrderedMap[ModelPerformance] `json:"performance,omitempty"`
	InputFeatures     FeatureVector                `json:"inputFeatures"`
	AverageConfidence float64                      `json:"average_confidence"`
	IsAnomaly         bool                         `json:"is_anomaly"`
	Error             string                       `json:"error,omitempty"`
}

func (r *PredictionResult) Failed() bool {
	return r == nil || strings.TrimSpace(r.Error) != ""
}

// ClassProbabilities collects every model's per-class probabilities, the
// payload shape of /analyze-anomaly.
func (r *PredictionResult) ClassProbabilities() OrderedMap[OrderedMap[float64]] {
	if r == nil {
		return nil
	}
	out := make(OrderedMap[OrderedMap[float64]], 0, len(r.Predictions))
	for _, entry := range r.Predictions {
		probs := entry.Value.Probabilities
		if probs == nil {
			probs = OrderedMap[float64]{}
		}
		out = append(out, Entry[OrderedMap[float64]]{Key: entry.Key, Value: probs})
	}
	return out
}

// ExplanationKind selects one of the three enrichment endpoints.
type ExplanationKind int

const (
	ExplainObject ExplanationKind = iota
	ExplainDynamic
	ExplainAnomaly
)

func (k ExplanationKind) Path() string {
	switch k {
	case ExplainObject:
		return "/get-explanation"
	case ExplainDynamic:
		return "/dynamic-explanation"
	case ExplainAnomaly:
		return "/analyze-anomaly"
	default:
		return ""
	}
}

func (k ExplanationKind) String() string {
	switch k {
	case ExplainObject:
		return "object"
	case ExplainDynamic:
		return "dynamic"
	case ExplainAnomaly:
		return "anomaly"
	default:
		return "unknown"
	}
}

type ObjectExplanationRequest struct {
	ObjectName string `json:"object_name"`
}

type DynamicExplanationRequest struct {
	Inputs     FeatureVector `json:"inputs"`
	Prediction string        `json:"prediction"`
}

type AnomalyAnalysisRequest struct {
	Inputs        FeatureVector                   `json:"inputs"`
	Probabilities OrderedMap[OrderedMap[float64]] `json:"probabilities"`
}

type ExplanationResponse struct {
	Explanation string `json:"explanation,omitempty"`
	Error       string `json:"error,omitempty"`
}
