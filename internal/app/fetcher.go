package app

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"nebulalens-tui/internal/service"
)

const explanationTransportMessage = "Could not reach the explanation service."

type FetchStatus int

const (
	FetchIdle FetchStatus = iota
	FetchLoading
	FetchLoaded
	FetchFailed
)

func (s FetchStatus) String() string {
	switch s {
	case FetchIdle:
		return "idle"
	case FetchLoading:
		return "loading"
	case FetchLoaded:
		return "loaded"
	case FetchFailed:
		return "failed"
	default:
		return "unknown"
	}
}

type explanationFetchedMsg struct {
	ref  slotRef
	gen  int64
	text string
	err  error
}

// Fetcher owns the async state of one enrichment slot: at most one request
// in flight, no automatic retry, and settlements from an older request
// generation are discarded.
type Fetcher struct {
	ref     slotRef
	kind    service.ExplanationKind
	key     string
	payload any

	status   FetchStatus
	text     string
	errText  string
	gen      int64
	attempts int
}

func NewFetcher(ref slotRef, kind service.ExplanationKind) Fetcher {
	return Fetcher{ref: ref, kind: kind}
}

// Trigger issues one request with payload. It returns nil without touching
// state while a request is already in flight.
func (f *Fetcher) Trigger(api API, payload any, timeout time.Duration) tea.Cmd {
	if f.status == FetchLoading || api == nil {
		return nil
	}
	f.gen++
	f.attempts++
	f.status = FetchLoading
	f.text = ""
	f.errText = ""
	f.payload = payload
	return explainCmd(api, f.ref, f.gen, f.kind, payload, timeout)
}

// Retry re-issues the last payload of a failed slot.
func (f *Fetcher) Retry(api API, timeout time.Duration) tea.Cmd {
	if f.status != FetchFailed {
		return nil
	}
	return f.Trigger(api, f.payload, timeout)
}

// Rekey resets the slot when key changes and reports whether it did. It is
// how a fetcher bound to a label or an input pair notices it is stale.
func (f *Fetcher) Rekey(key string) bool {
	if f.key == key {
		return false
	}
	f.key = key
	f.gen++
	f.status = FetchIdle
	f.text = ""
	f.errText = ""
	f.payload = nil
	return true
}

// Settle applies msg if it answers the current request.
func (f *Fetcher) Settle(msg explanationFetchedMsg) bool {
	if msg.ref != f.ref || msg.gen != f.gen || f.status != FetchLoading {
		return false
	}
	if msg.err != nil {
		f.status = FetchFailed
		f.errText = service.UserMessage(msg.err, explanationTransportMessage)
		return true
	}
	f.status = FetchLoaded
	f.text = msg.text
	return true
}

func (f Fetcher) Status() FetchStatus { return f.status }
func (f Fetcher) Text() string        { return f.text }
func (f Fetcher) ErrText() string     { return f.errText }
func (f Fetcher) Attempts() int       { return f.attempts }

func explainCmd(api API, ref slotRef, gen int64, kind service.ExplanationKind, payload any, timeout time.Duration) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := requestContext(timeout)
		defer cancel()
		text, err := api.Explain(ctx, kind, payload)
		return explanationFetchedMsg{ref: ref, gen: gen, text: text, err: err}
	}
}

func requestContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(context.Background())
	}
	return context.WithTimeout(context.Background(), timeout)
}
