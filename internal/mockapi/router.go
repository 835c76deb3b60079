// Package mockapi serves a deterministic stand-in for the classification and
// explanation API so the dashboard can be demoed and tested offline.
package mockapi

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"nebulalens-tui/internal/service"
)

type Options struct {
	// Latency is added before every POST response.
	Latency time.Duration
	// Logger receives one line per request when set.
	Logger middleware.LogFormatter
}

var classLabels = []string{"GALAXY", "QSO", "STAR"}

var modelOrder = []struct {
	name  string
	bias  float64
	flips bool
}{
	{name: "rf", bias: 1.00},
	{name: "mlp", bias: 0.96},
	{name: "svm", bias: 0.90},
	{name: "knn", bias: 0.84, flips: true},
}

// Performance is the fixed held-out test-set table reported with every prediction.
var Performance = service.OrderedMap[service.ModelPerformance]{
	{Key: "svm", Value: service.ModelPerformance{Accuracy: 0.92, F1Score: 0.91}},
	{Key: "mlp", Value: service.ModelPerformance{Accuracy: 0.95, F1Score: 0.94}},
	{Key: "knn", Value: service.ModelPerformance{Accuracy: 0.89, F1Score: 0.88}},
	{Key: "rf", Value: service.ModelPerformance{Accuracy: 0.97, F1Score: 0.97}},
}

// AnomalyThreshold is the average confidence under which a result is flagged.
const AnomalyThreshold = 0.6

func NewRouter(opts Options) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	if opts.Logger != nil {
		r.Use(middleware.RequestLogger(opts.Logger))
	}
	if opts.Latency > 0 {
		r.Use(delay(opts.Latency))
	}

	r.Get("/", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"message": "Welcome to the Nebula Lens API!"})
	})
	r.Post("/predict", handlePredict)
	r.Post("/get-explanation", handleObjectExplanation)
	r.Post("/dynamic-explanation", handleDynamicExplanation)
	r.Post("/analyze-anomaly", handleAnomaly)
	return r
}

func delay(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if req.Method == http.MethodPost {
				select {
				case <-req.Context().Done():
					return
				case <-time.After(d):
				}
			}
			next.ServeHTTP(w, req)
		})
	}
}

func handlePredict(w http.ResponseWriter, req *http.Request) {
	var features map[string]*float64
	if err := json.NewDecoder(req.Body).Decode(&features); err != nil {
		writeJSON(w, http.StatusBadRequest, service.ExplanationResponse{Error: "request body must be a JSON object"})
		return
	}
	fv, missing := featureVectorFrom(features)
	if len(missing) > 0 {
		writeJSON(w, http.StatusUnprocessableEntity, service.ExplanationResponse{
			Error: "missing features: " + strings.Join(missing, ", "),
		})
		return
	}
	writeJSON(w, http.StatusOK, Classify(fv))
}

func featureVectorFrom(raw map[string]*float64) (service.FeatureVector, []string) {
	var fv service.FeatureVector
	var missing []string
	fields := []struct {
		name string
		dst  *float64
	}{
		{"u", &fv.U}, {"g", &fv.G}, {"r", &fv.R}, {"i", &fv.I}, {"z", &fv.Z}, {"redshift", &fv.Redshift},
	}
	for _, field := range fields {
		value, ok := raw[field.name]
		if !ok || value == nil {
			missing = append(missing, field.name)
			continue
		}
		*field.dst = *value
	}
	return fv, missing
}

// Classify produces the canned four-model verdict for fv. It is a lookup on
// redshift and colour, not a model.
func Classify(fv service.FeatureVector) service.PredictionResult {
	base, ambiguous := baseProbabilities(fv)

	predictions := make(service.OrderedMap[service.ModelPrediction], 0, len(modelOrder))
	votes := map[string]int{}
	confidenceSum := 0.0
	for _, model := range modelOrder {
		probs := skew(base, model.bias, ambiguous && model.flips)
		label, confidence := argmax(probs)
		votes[label]++
		confidenceSum += confidence
		predictions = append(predictions, service.Entry[service.ModelPrediction]{
			Key: model.name,
			Value: service.ModelPrediction{
				Prediction:    label,
				Confidence:    confidence,
				Probabilities: probs,
			},
		})
	}

	consensus, count := "", 0
	for _, label := range classLabels {
		if votes[label] > count {
			consensus, count = label, votes[label]
		}
	}
	average := round4(confidenceSum / float64(len(modelOrder)))
	return service.PredictionResult{
		Predictions: predictions,
		ModelAgreement: service.ModelAgreement{
			Prediction: consensus,
			Count:      count,
			Total:      len(modelOrder),
		},
		Performance:       Performance,
		InputFeatures:     fv,
		AverageConfidence: average,
		IsAnomaly:         average < AnomalyThreshold,
	}
}

func baseProbabilities(fv service.FeatureVector) ([]float64, bool) {
	colour := fv.U - fv.G
	switch {
	case fv.Redshift < 0 || colour > 3.5 || fv.U > 35 || fv.U < 5:
		return []float64{0.38, 0.34, 0.28}, true
	case fv.Redshift < 0.002:
		return []float64{0.10, 0.04, 0.86}, false
	case fv.Redshift < 0.7:
		return []float64{0.78, 0.15, 0.07}, false
	default:
		return []float64{0.14, 0.81, 0.05}, false
	}
}

func skew(base []float64, bias float64, flip bool) service.OrderedMap[float64] {
	weights := append([]float64(nil), base...)
	top := 0
	for idx := range weights {
		if weights[idx] > weights[top] {
			top = idx
		}
	}
	if flip {
		second := (top + 1) % len(weights)
		weights[top], weights[second] = weights[second], weights[top]
	} else {
		weights[top] *= bias
	}
	total := 0.0
	for _, w := range weights {
		total += w
	}
	out := make(service.OrderedMap[float64], 0, len(classLabels))
	for idx, label := range classLabels {
		out = append(out, service.Entry[float64]{Key: label, Value: round4(weights[idx] / total)})
	}
	return out
}

func argmax(probs service.OrderedMap[float64]) (string, float64) {
	label, best := "", -1.0
	for _, entry := range probs {
		if entry.Value > best {
			label, best = entry.Key, entry.Value
		}
	}
	return label, best
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

func handleObjectExplanation(w http.ResponseWriter, req *http.Request) {
	var body service.ObjectExplanationRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, service.ExplanationResponse{Error: "request body must be a JSON object"})
		return
	}
	label := strings.ToUpper(strings.TrimSpace(body.ObjectName))
	text, ok := objectExplanations[label]
	if !ok {
		writeJSON(w, http.StatusOK, service.ExplanationResponse{Error: fmt.Sprintf("No explanation available for %q.", body.ObjectName)})
		return
	}
	writeJSON(w, http.StatusOK, service.ExplanationResponse{Explanation: text})
}

func handleDynamicExplanation(w http.ResponseWriter, req *http.Request) {
	var body service.DynamicExplanationRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, service.ExplanationResponse{Error: "request body must be a JSON object"})
		return
	}
	if strings.TrimSpace(body.Prediction) == "" {
		writeJSON(w, http.StatusOK, service.ExplanationResponse{Error: "prediction is required"})
		return
	}
	in := body.Inputs
	text := fmt.Sprintf(
		"The models read this object as a **%s**. A redshift of %.4g combined with a u-g colour of %.2f and g-r of %.2f is typical of that class.",
		strings.ToUpper(body.Prediction), in.Redshift, in.U-in.G, in.G-in.R,
	)
	writeJSON(w, http.StatusOK, service.ExplanationResponse{Explanation: text})
}

func handleAnomaly(w http.ResponseWriter, req *http.Request) {
	var body service.AnomalyAnalysisRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, service.ExplanationResponse{Error: "request body must be a JSON object"})
		return
	}
	if len(body.Probabilities) == 0 {
		writeJSON(w, http.StatusOK, service.ExplanationResponse{Error: "probabilities are required"})
		return
	}
	split := make([]string, 0, len(body.Probabilities))
	for _, model := range body.Probabilities {
		label, p := argmax(model.Value)
		split = append(split, fmt.Sprintf("%s favours %s (%.0f%%)", strings.ToUpper(model.Key), label, p*100))
	}
	text := "The models disagree: " + strings.Join(split, "; ") + ".\n\n" +
		"Possible causes:\n\n" +
		"- photometry outside the training range (check for saturated or missing bands)\n" +
		"- a blended source or a rare class such as a white dwarf\n" +
		"- a redshift estimate that conflicts with the colours"
	writeJSON(w, http.StatusOK, service.ExplanationResponse{Explanation: text})
}

var objectExplanations = map[string]string{
	"GALAXY": "A **galaxy** is a gravitationally bound system of stars, gas and dark matter. Seen through the survey filters it is extended and usually redder than a quasar at the same redshift.",
	"QSO":    "A **quasar** (QSO) is an active galactic nucleus so bright it outshines its host galaxy. Quasars are point-like, strongly blue in u-g and typically sit at high redshift.",
	"STAR":   "A **star** in this survey is a point source inside the Milky Way, so its redshift is essentially zero. Its colours follow the stellar locus.",
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}
