package app

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"nebulalens-tui/internal/service"
	"nebulalens-tui/internal/storage"
)

const predictionFailedMessage = "Failed to get prediction."

type formField struct {
	name        string
	placeholder string
}

var formFields = []formField{
	{name: "u", placeholder: "u (Ultraviolet filter)"},
	{name: "g", placeholder: "g (Green filter)"},
	{name: "r", placeholder: "r (Red filter)"},
	{name: "i", placeholder: "i (Near-Infrared filter)"},
	{name: "z", placeholder: "z (Infrared filter)"},
	{name: "redshift", placeholder: "Redshift"},
}

// FormError is a client-side validation failure. It never reaches the API.
type FormError struct {
	Missing []string
	Invalid []string
}

func (e *FormError) Error() string {
	parts := make([]string, 0, 2)
	if len(e.Missing) > 0 {
		parts = append(parts, "missing "+strings.Join(e.Missing, ", "))
	}
	if len(e.Invalid) > 0 {
		parts = append(parts, "not a number: "+strings.Join(e.Invalid, ", "))
	}
	return "Enter all 6 features to predict (" + strings.Join(parts, "; ") + ")."
}

// PageState is what Home owns and lends to the form and the result pane:
// the loading flag, the current result and the session log.
type PageState struct {
	Loading bool
	Result  *service.PredictionResult
	Log     *storage.Log

	generation int64
}

// Generation is the number of the latest submission.
func (s *PageState) Generation() int64 {
	return s.generation
}

type predictionSettledMsg struct {
	gen         int64
	features    service.FeatureVector
	submittedAt time.Time
	result      *service.PredictionResult
	err         error
}

// Form collects the six features.
type Form struct {
	inputs []textinput.Model
	focus  int
	active bool
}

func NewForm() Form {
	inputs := make([]textinput.Model, len(formFields))
	for idx, field := range formFields {
		in := textinput.New()
		in.Prompt = ""
		in.Placeholder = field.placeholder
		in.CharLimit = 32
		in.Width = 24
		inputs[idx] = in
	}
	return Form{inputs: inputs}
}

// Values parses the six fields. Empty fields and anything that is not a
// finite number are reported together in a FormError.
func (f Form) Values() (service.FeatureVector, error) {
	values := make([]float64, len(formFields))
	formErr := &FormError{}
	for idx, field := range formFields {
		raw := strings.TrimSpace(f.inputs[idx].Value())
		if raw == "" {
			formErr.Missing = append(formErr.Missing, field.name)
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			formErr.Invalid = append(formErr.Invalid, field.name)
			continue
		}
		values[idx] = v
	}
	if len(formErr.Missing) > 0 || len(formErr.Invalid) > 0 {
		return service.FeatureVector{}, formErr
	}
	return service.FeatureVector{
		U:        values[0],
		G:        values[1],
		R:        values[2],
		I:        values[3],
		Z:        values[4],
		Redshift: values[5],
	}, nil
}

// SetFeatures fills every field from fv.
func (f *Form) SetFeatures(fv service.FeatureVector) {
	for idx, v := range []float64{fv.U, fv.G, fv.R, fv.I, fv.Z, fv.Redshift} {
		f.inputs[idx].SetValue(strconv.FormatFloat(v, 'g', -1, 64))
		f.inputs[idx].CursorEnd()
	}
}

func (f *Form) SetField(name, value string) bool {
	for idx, field := range formFields {
		if field.name == name {
			f.inputs[idx].SetValue(value)
			return true
		}
	}
	return false
}

func (f *Form) Clear() {
	for idx := range f.inputs {
		f.inputs[idx].SetValue("")
	}
	f.focus = 0
	f.applyFocus()
}

func (f *Form) Focus() {
	f.active = true
	f.applyFocus()
}

func (f *Form) Blur() {
	f.active = false
	f.applyFocus()
}

// Next moves to the following field and reports false when it leaves the
// last one.
func (f *Form) Next() bool {
	if f.focus >= len(f.inputs)-1 {
		return false
	}
	f.focus++
	f.applyFocus()
	return true
}

// Prev mirrors Next.
func (f *Form) Prev() bool {
	if f.focus <= 0 {
		return false
	}
	f.focus--
	f.applyFocus()
	return true
}

func (f *Form) FocusFirst() {
	f.focus = 0
	f.Focus()
}

func (f *Form) FocusLast() {
	f.focus = len(f.inputs) - 1
	f.Focus()
}

func (f *Form) applyFocus() {
	for idx := range f.inputs {
		if f.active && idx == f.focus {
			f.inputs[idx].Focus()
		} else {
			f.inputs[idx].Blur()
		}
	}
}

func (f Form) Update(msg tea.Msg) (Form, tea.Cmd) {
	if !f.active {
		return f, nil
	}
	var cmd tea.Cmd
	f.inputs[f.focus], cmd = f.inputs[f.focus].Update(msg)
	return f, cmd
}

func (f Form) View(width int) string {
	labelW := 0
	for _, field := range formFields {
		labelW = maxInt(labelW, len(field.name))
	}
	lines := make([]string, 0, len(formFields)+2)
	for idx, field := range formFields {
		in := f.inputs[idx]
		in.Width = maxInt(8, width-labelW-4)
		label := fmt.Sprintf("%-*s", labelW, field.name)
		if f.active && idx == f.focus {
			label = labelStyle.Render(label)
		} else {
			label = mutedTextStyle(label)
		}
		lines = append(lines, label+"  "+in.View())
	}
	lines = append(lines, "", lipgloss.JoinHorizontal(lipgloss.Center,
		buttonStyle.Render("Predict"), " ", helpStyle.Render("enter")))
	return strings.Join(lines, "\n")
}

// Submit validates the fields and, when they are complete, starts a new
// submission generation: loading is raised, the previous result is cleared
// and the request command is returned. A FormError leaves state untouched.
func (f Form) Submit(state *PageState, api API, timeout time.Duration, now time.Time) (tea.Cmd, error) {
	features, err := f.Values()
	if err != nil {
		return nil, err
	}
	state.generation++
	state.Loading = true
	state.Result = nil
	return predictCmd(api, state.generation, features, now, timeout), nil
}

func predictCmd(api API, gen int64, features service.FeatureVector, submittedAt time.Time, timeout time.Duration) tea.Cmd {
	return func() tea.Msg {
		msg := predictionSettledMsg{gen: gen, features: features, submittedAt: submittedAt}
		if api == nil {
			msg.err = fmt.Errorf("prediction service is not configured")
			return msg
		}
		ctx, cancel := requestContext(timeout)
		defer cancel()
		msg.result, msg.err = api.Predict(ctx, features)
		return msg
	}
}

// settlePrediction applies a /predict settlement to state and appends its
// log entry. Only the latest generation may touch Loading and Result; an
// older one is logged as superseded. It reports whether the result was
// published.
func settlePrediction(state *PageState, msg predictionSettledMsg, now time.Time) (storage.Entry, bool) {
	entry := storage.Entry{
		SubmittedAt: msg.submittedAt,
		SettledAt:   now,
		Features:    msg.features,
	}
	if msg.gen != state.generation {
		entry.Outcome = storage.OutcomeSuperseded
		if msg.err != nil {
			entry.Error = service.UserMessage(msg.err, predictionFailedMessage)
		} else if msg.result != nil {
			entry.Label = msg.result.ModelAgreement.Prediction
		}
		return state.appendLog(entry), false
	}

	state.Loading = false
	result := publishedResult(msg.result, msg.err)
	state.Result = result

	switch {
	case result.Failed():
		entry.Outcome = storage.OutcomeFailed
		entry.Error = result.Error
	default:
		entry.Outcome = storage.OutcomeClassified
		if result.IsAnomaly {
			entry.Outcome = storage.OutcomeAnomaly
		}
		entry.Label = result.ModelAgreement.Prediction
		entry.AgreementCount = result.ModelAgreement.Count
		entry.AgreementTotal = result.ModelAgreement.Total
		entry.AverageConfidence = result.AverageConfidence
	}
	return state.appendLog(entry), true
}

// publishedResult is what becomes the page result for a settlement. A
// transport failure is replaced by a synthesized error result; an
// application error keeps the body the API sent.
func publishedResult(result *service.PredictionResult, err error) *service.PredictionResult {
	if err == nil && result != nil {
		return result
	}
	message := service.UserMessage(err, predictionFailedMessage)
	if err == nil {
		message = predictionFailedMessage
	}
	if result != nil && service.UserMessage(err, "") != "" {
		out := *result
		out.Error = message
		return &out
	}
	return &service.PredictionResult{Error: message}
}

func (s *PageState) appendLog(entry storage.Entry) storage.Entry {
	if s.Log == nil {
		s.Log = storage.NewLog(0)
	}
	return s.Log.Append(entry)
}
