package app

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

const defaultTypewriterInterval = 20 * time.Millisecond

// slotKind names one enrichment slot of a result.
type slotKind int

const (
	slotAnomaly slotKind = iota
	slotObject
	slotDynamic
)

func (k slotKind) String() string {
	switch k {
	case slotAnomaly:
		return "anomaly"
	case slotObject:
		return "object"
	case slotDynamic:
		return "dynamic"
	default:
		return "unknown"
	}
}

// slotRef addresses a slot inside a specific result session. Messages carry
// it so that anything addressed to a replaced session is dropped.
type slotRef struct {
	session string
	slot    slotKind
}

type typewriterTickMsg struct {
	ref slotRef
	gen int64
}

// Typewriter reveals a target string one rune per tick. Each retarget or
// Stop bumps gen; ticks from an older gen are ignored, so at most one reveal
// is ever live.
type Typewriter struct {
	ref      slotRef
	interval time.Duration
	gen      int64
	target   []rune
	shown    int
}

func NewTypewriter(ref slotRef, interval time.Duration) Typewriter {
	if interval <= 0 {
		interval = defaultTypewriterInterval
	}
	return Typewriter{ref: ref, interval: interval}
}

// SetTarget restarts the reveal from an empty prefix when text differs from
// the current target. Setting the same target again is a no-op.
func (t *Typewriter) SetTarget(text string) tea.Cmd {
	if text == string(t.target) {
		return nil
	}
	t.gen++
	t.target = []rune(text)
	t.shown = 0
	if len(t.target) == 0 {
		return nil
	}
	return t.tick()
}

// Stop cancels any pending reveal steps and clears the text.
func (t *Typewriter) Stop() {
	t.gen++
	t.target = nil
	t.shown = 0
}

func (t *Typewriter) Update(msg typewriterTickMsg) tea.Cmd {
	if msg.ref != t.ref || msg.gen != t.gen {
		return nil
	}
	if t.shown >= len(t.target) {
		return nil
	}
	t.shown++
	if t.shown < len(t.target) {
		return t.tick()
	}
	return nil
}

func (t Typewriter) tick() tea.Cmd {
	ref, gen := t.ref, t.gen
	return tea.Tick(t.interval, func(time.Time) tea.Msg {
		return typewriterTickMsg{ref: ref, gen: gen}
	})
}

func (t Typewriter) DisplayedText() string {
	return string(t.target[:t.shown])
}

func (t Typewriter) IsTyping() bool {
	return t.shown < len(t.target)
}

func (t Typewriter) Target() string {
	return string(t.target)
}
