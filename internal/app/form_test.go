package app

import (
	"errors"
	"strings"
	"testing"
	"time"

	"nebulalens-tui/internal/service"
	"nebulalens-tui/internal/storage"
)

func TestFormValuesReportsMissingAndInvalid(t *testing.T) {
	t.Parallel()

	f := NewForm()
	f.SetField("u", "19.5")
	f.SetField("g", "abc")
	f.SetField("r", "NaN")
	f.SetField("i", "18.1")
	f.SetField("z", " 17.9 ")

	_, err := f.Values()
	var formErr *FormError
	if !errors.As(err, &formErr) {
		t.Fatalf("expected FormError, got %v", err)
	}
	if strings.Join(formErr.Missing, ",") != "redshift" {
		t.Fatalf("unexpected missing fields %v", formErr.Missing)
	}
	if strings.Join(formErr.Invalid, ",") != "g,r" {
		t.Fatalf("unexpected invalid fields %v", formErr.Invalid)
	}
	if !strings.Contains(err.Error(), "missing redshift") || !strings.Contains(err.Error(), "not a number: g, r") {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestFormSetFeaturesRoundTrip(t *testing.T) {
	t.Parallel()

	f := NewForm()
	want := service.FeatureVector{U: 1e-3, G: -2.5, R: 18.3, I: 0, Z: 17.9, Redshift: 3.1415926535}
	f.SetFeatures(want)
	got, err := f.Values()
	if err != nil || got != want {
		t.Fatalf("round trip mismatch: got %+v err=%v", got, err)
	}
	f.Clear()
	if _, err := f.Values(); err == nil {
		t.Fatalf("cleared form should not validate")
	}
}

func TestFormFocusWalksFields(t *testing.T) {
	t.Parallel()

	f := NewForm()
	f.FocusFirst()
	steps := 0
	for f.Next() {
		steps++
	}
	if steps != len(formFields)-1 {
		t.Fatalf("expected %d steps, got %d", len(formFields)-1, steps)
	}
	if f.Prev() != true || f.focus != len(formFields)-2 {
		t.Fatalf("prev should move back one field")
	}
}

func TestSettlePredictionWithoutLogCreatesOne(t *testing.T) {
	t.Parallel()

	state := &PageState{}
	f := NewForm()
	f.SetFeatures(scenarioFeatures)
	if _, err := f.Submit(state, nil, time.Second, time.Now()); err != nil {
		t.Fatalf("submit: %v", err)
	}
	entry, applied := settlePrediction(state, predictionSettledMsg{
		gen:      state.Generation(),
		features: scenarioFeatures,
		err:      errors.New("boom"),
	}, time.Now())
	if !applied || entry.Outcome != storage.OutcomeFailed || entry.Error != predictionFailedMessage {
		t.Fatalf("unexpected entry %+v applied=%v", entry, applied)
	}
	if state.Log == nil || state.Log.Len() != 1 {
		t.Fatalf("expected a log to be created")
	}
}
