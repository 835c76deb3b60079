package app

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"

	"nebulalens-tui/internal/service"
	"nebulalens-tui/internal/textfmt"
)

type enrichment struct {
	fetcher Fetcher
	writer  Typewriter
}

// resultSession is everything derived from one PredictionResult. It is
// created when the result arrives and dropped, with all its slots, when the
// result is replaced.
type resultSession struct {
	id     string
	result *service.PredictionResult
	branch ResultBranch
	slots  map[slotKind]*enrichment
}

func newResultSession(result *service.PredictionResult, interval time.Duration) *resultSession {
	s := &resultSession{
		id:     uuid.NewString(),
		result: result,
		branch: Dispatch(false, result),
		slots:  map[slotKind]*enrichment{},
	}
	switch s.branch {
	case BranchAnomaly:
		s.addSlot(slotAnomaly, service.ExplainAnomaly, interval)
	case BranchDefault:
		s.addSlot(slotDynamic, service.ExplainDynamic, interval)
		s.addSlot(slotObject, service.ExplainObject, interval)
	}
	return s
}

func (s *resultSession) addSlot(kind slotKind, explain service.ExplanationKind, interval time.Duration) {
	ref := slotRef{session: s.id, slot: kind}
	s.slots[kind] = &enrichment{
		fetcher: NewFetcher(ref, explain),
		writer:  NewTypewriter(ref, interval),
	}
}

func (s *resultSession) slot(kind slotKind) *enrichment {
	if s == nil {
		return nil
	}
	return s.slots[kind]
}

func (s *resultSession) label() string {
	return s.result.ModelAgreement.Prediction
}

// syncDynamic fires the per-prediction explainer whenever the
// (inputs, prediction) pair differs from the one it last fetched for.
func (s *resultSession) syncDynamic(api API, timeout time.Duration) tea.Cmd {
	e := s.slot(slotDynamic)
	if e == nil {
		return nil
	}
	inputs := s.result.InputFeatures
	key := fmt.Sprintf("%s|%v", s.label(), inputs)
	if !e.fetcher.Rekey(key) && e.fetcher.Status() != FetchIdle {
		return nil
	}
	e.writer.Stop()
	return e.fetcher.Trigger(api, service.DynamicExplanationRequest{Inputs: inputs, Prediction: s.label()}, timeout)
}

// askObject is the "what is a {label}?" button. It only fires from an idle
// or failed slot.
func (s *resultSession) askObject(api API, timeout time.Duration) tea.Cmd {
	e := s.slot(slotObject)
	if e == nil {
		return nil
	}
	if e.fetcher.Rekey(s.label()) {
		e.writer.Stop()
	}
	return s.trigger(e, api, service.ObjectExplanationRequest{ObjectName: s.label()}, timeout)
}

// askAnomaly is the "Ask the AI to Analyze" button of an anomalous result.
func (s *resultSession) askAnomaly(api API, timeout time.Duration) tea.Cmd {
	e := s.slot(slotAnomaly)
	if e == nil {
		return nil
	}
	return s.trigger(e, api, service.AnomalyAnalysisRequest{
		Inputs:        s.result.InputFeatures,
		Probabilities: s.result.ClassProbabilities(),
	}, timeout)
}

func (s *resultSession) trigger(e *enrichment, api API, payload any, timeout time.Duration) tea.Cmd {
	switch e.fetcher.Status() {
	case FetchIdle, FetchFailed:
	default:
		return nil
	}
	cmd := e.fetcher.Trigger(api, payload, timeout)
	if cmd != nil {
		e.writer.Stop()
	}
	return cmd
}

func (s *resultSession) retryFailed(api API, timeout time.Duration) tea.Cmd {
	var cmds []tea.Cmd
	for _, kind := range []slotKind{slotAnomaly, slotDynamic, slotObject} {
		e := s.slot(kind)
		if e == nil || e.fetcher.Status() != FetchFailed {
			continue
		}
		if cmd := e.fetcher.Retry(api, timeout); cmd != nil {
			e.writer.Stop()
			cmds = append(cmds, cmd)
		}
	}
	return tea.Batch(cmds...)
}

func (s *resultSession) hasFailedSlot() bool {
	if s == nil {
		return false
	}
	for _, e := range s.slots {
		if e.fetcher.Status() == FetchFailed {
			return true
		}
	}
	return false
}

// settle applies an explanation response and starts the reveal on success.
func (s *resultSession) settle(msg explanationFetchedMsg) (tea.Cmd, bool) {
	e := s.slot(msg.ref.slot)
	if e == nil || !e.fetcher.Settle(msg) {
		return nil, false
	}
	if e.fetcher.Status() != FetchLoaded {
		e.writer.Stop()
		return nil, true
	}
	return e.writer.SetTarget(textfmt.Plain(e.fetcher.Text())), true
}

func (s *resultSession) tick(msg typewriterTickMsg) tea.Cmd {
	e := s.slot(msg.ref.slot)
	if e == nil {
		return nil
	}
	return e.writer.Update(msg)
}

func (s *resultSession) loading() bool {
	if s == nil {
		return false
	}
	for _, e := range s.slots {
		if e.fetcher.Status() == FetchLoading {
			return true
		}
	}
	return false
}

// close cancels every pending reveal.
func (s *resultSession) close() {
	if s == nil {
		return
	}
	for _, e := range s.slots {
		e.writer.Stop()
	}
}
