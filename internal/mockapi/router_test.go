package mockapi

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nebulalens-tui/internal/service"
)

func TestClassifyByRedshift(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		redshift float64
		want     string
	}{
		{"star", 0.0001, "STAR"},
		{"galaxy", 0.12, "GALAXY"},
		{"quasar", 1.8, "QSO"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			result := Classify(service.FeatureVector{U: 19.5, G: 18.9, R: 18.3, I: 18.1, Z: 17.9, Redshift: tc.redshift})
			assert.Equal(t, tc.want, result.ModelAgreement.Prediction)
			assert.Equal(t, 4, result.ModelAgreement.Count)
			assert.False(t, result.IsAnomaly)
			for _, model := range result.Predictions {
				total := 0.0
				for _, p := range model.Value.Probabilities {
					total += p.Value
				}
				assert.InDelta(t, 1.0, total, 0.001, model.Key)
			}
		})
	}
}

func TestPredictRejectsMissingFeatures(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/predict", strings.NewReader(`{"u":1,"g":2}`))
	NewRouter(Options{}).ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "missing features: r, i, z, redshift")
}

func TestUnknownObjectIsApplicationError(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/get-explanation", strings.NewReader(`{"object_name":"comet"}`))
	NewRouter(Options{}).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"error"`)
}

func TestRootGreeting(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	NewRouter(Options{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Nebula Lens")
}
