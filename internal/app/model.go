package app

import (
	"context"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/labstack/gommon/log"

	"nebulalens-tui/internal/service"
	"nebulalens-tui/internal/storage"
)

type healthCheckedMsg struct {
	err error
}

type focusPane int

const (
	paneForm focusPane = iota
	paneResults
	paneHistory
)

const (
	defaultRequestTimeout = 45 * time.Second
	healthCheckTimeout    = 5 * time.Second
	formPanelBodyLines    = 8
)

type ModelOptions struct {
	APIBaseURL         string
	RequestTimeout     time.Duration
	TypewriterInterval time.Duration
	// InitialFeatures pre-fills the form, typically from features_file.
	InitialFeatures     FeatureValues
	InitialFeaturesPath string
	Logger              *log.Logger
	Exporter            *storage.Exporter
	Now                 func() time.Time
}

// Model is the Home page: it owns the page state and routes every message
// to the form, the result pane and the log.
type Model struct {
	api      API
	state    *PageState
	logger   *log.Logger
	exporter *storage.Exporter
	now      func() time.Time

	apiBaseURL         string
	requestTimeout     time.Duration
	typewriterInterval time.Duration

	ready  bool
	width  int
	height int

	form      Form
	pathInput textinput.Model
	results   viewport.Model
	history   viewport.Model
	spinner   spinner.Model
	spinning  bool

	focusPane focusPane
	showHelp  bool

	statusText       string
	errorText        string
	showPathPrompt   bool
	lastFeaturesPath string
	pathChoices      []featuresFileChoice
	pathChoiceCursor int

	// sessions holds the enrichment state of the current result. It is
	// emptied whenever the result is replaced.
	sessions       map[string]*resultSession
	currentSession string

	historyCursor           int
	historyCursorTopLine    int
	historyCursorBottomLine int
	historyRenderedLines    int

	formPanelW    int
	formPanelH    int
	metricsPanelW int
	resultsW      int
	resultsH      int
	historyW      int
	historyH      int
}

func NewModel(api API, sessionLog *storage.Log) Model {
	return NewModelWithOptions(api, sessionLog, ModelOptions{})
}

func NewModelWithOptions(api API, sessionLog *storage.Log, opts ModelOptions) Model {
	if sessionLog == nil {
		sessionLog = storage.NewLog(0)
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New("nebulalens")
		logger.SetOutput(io.Discard)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	results := viewport.New(50, 14)
	history := viewport.New(40, 14)

	spin := spinner.New()
	spin.Spinner = spinner.MiniDot
	spin.Style = lipgloss.NewStyle().Foreground(accentSecondary)

	pathInput := textinput.New()
	pathInput.Prompt = "> "
	pathInput.Placeholder = "./features.json"
	pathInput.CharLimit = 2048
	pathInput.Width = 70

	form := NewForm()
	form.FocusFirst()

	model := Model{
		api:                api,
		state:              &PageState{Log: sessionLog},
		logger:             logger,
		exporter:           opts.Exporter,
		now:                now,
		apiBaseURL:         strings.TrimSpace(opts.APIBaseURL),
		requestTimeout:     timeout,
		typewriterInterval: opts.TypewriterInterval,
		form:               form,
		pathInput:          pathInput,
		results:            results,
		history:            history,
		spinner:            spin,
		focusPane:          paneForm,
		statusText:         "Checking API...",
		sessions:           map[string]*resultSession{},
		formPanelW:         44,
		formPanelH:         formPanelBodyLines + 1,
		metricsPanelW:      40,
		resultsW:           54,
		resultsH:           16,
		historyW:           44,
		historyH:           16,
	}
	if len(opts.InitialFeatures) > 0 {
		applied := opts.InitialFeatures.Apply(&model.form)
		model.lastFeaturesPath = strings.TrimSpace(opts.InitialFeaturesPath)
		if model.lastFeaturesPath != "" {
			model.statusText = fmt.Sprintf("Loaded %d features from %s", applied, filepathBase(model.lastFeaturesPath))
		}
	}
	model.refreshResultsView()
	model.refreshHistoryView()
	return model
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, healthCheckCmd(m.api))
}

func healthCheckCmd(api API) tea.Cmd {
	return func() tea.Msg {
		if api == nil {
			return healthCheckedMsg{err: fmt.Errorf("no API configured")}
		}
		ctx, cancel := context.WithTimeout(context.Background(), healthCheckTimeout)
		defer cancel()
		return healthCheckedMsg{err: api.Health(ctx)}
	}
}

// State exposes the page state for inspection.
func (m Model) State() PageState {
	return *m.state
}

func (m Model) session() *resultSession {
	return m.sessions[m.currentSession]
}

// replaceResult drops every session derived from the previous result and,
// for a usable new result, opens a fresh one. The per-prediction explainer
// starts right away.
func (m *Model) replaceResult(result *service.PredictionResult) tea.Cmd {
	for id, s := range m.sessions {
		s.close()
		delete(m.sessions, id)
	}
	m.currentSession = ""
	if result.Failed() {
		return nil
	}
	s := newResultSession(result, m.typewriterInterval)
	m.sessions[s.id] = s
	m.currentSession = s.id
	return m.withSpinner(s.syncDynamic(m.api, m.requestTimeout))
}

// withSpinner starts the spinner alongside cmd when something is pending.
func (m *Model) withSpinner(cmd tea.Cmd) tea.Cmd {
	if cmd == nil || m.spinning {
		return cmd
	}
	m.spinning = true
	return tea.Batch(cmd, m.spinner.Tick)
}

func (m Model) busy() bool {
	return m.state.Loading || m.session().loading()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	next, cmd := m.update(msg)
	next.refreshResultsView()
	return next, cmd
}

func (m Model) update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.resizePanels()
		m.applyFocusState()
		return m, nil

	case spinner.TickMsg:
		if !m.busy() {
			m.spinning = false
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case healthCheckedMsg:
		if msg.err != nil {
			m.logger.Warnf("health check failed: %v", msg.err)
			m.statusText = "API unreachable: " + msg.err.Error()
			return m, nil
		}
		m.statusText = "API reachable. Enter all 6 features and press enter."
		return m, nil

	case predictionSettledMsg:
		entry, applied := settlePrediction(m.state, msg, m.now())
		m.refreshHistoryView()
		if !applied {
			m.logger.Debugf("dropped superseded prediction gen=%d latest=%d", msg.gen, m.state.Generation())
			return m, nil
		}
		if entry.Outcome == storage.OutcomeFailed {
			m.logger.Warnf("prediction failed: %v", msg.err)
			m.statusText = "Prediction failed."
		} else {
			m.logger.Infof("prediction %s label=%s agree=%d/%d avg=%.3f",
				entry.Outcome, entry.Label, entry.AgreementCount, entry.AgreementTotal, entry.AverageConfidence)
			m.statusText = fmt.Sprintf("Prediction #%d: %s", entry.Seq, formatLogEntry(entry))
		}
		return m, m.replaceResult(m.state.Result)

	case explanationFetchedMsg:
		s, ok := m.sessions[msg.ref.session]
		if !ok || msg.ref.session != m.currentSession {
			m.logger.Debugf("dropped %s explanation for replaced result", msg.ref.slot)
			return m, nil
		}
		cmd, applied := s.settle(msg)
		if !applied {
			m.logger.Debugf("dropped stale %s explanation gen=%d", msg.ref.slot, msg.gen)
			return m, nil
		}
		if msg.err != nil {
			m.logger.Warnf("%s explanation failed: %v", msg.ref.slot, msg.err)
		} else {
			m.logger.Infof("%s explanation settled (%d chars)", msg.ref.slot, len(msg.text))
		}
		return m, cmd

	case typewriterTickMsg:
		if msg.ref.session != m.currentSession {
			return m, nil
		}
		return m, m.session().tick(msg)

	case featuresFileLoadedMsg:
		m.closeFeaturesPrompt()
		if msg.err != nil {
			m.errorText = "Features file load failed: " + msg.err.Error()
			return m, tea.ClearScreen
		}
		applied := msg.values.Apply(&m.form)
		m.lastFeaturesPath = strings.TrimSpace(msg.path)
		m.errorText = ""
		m.statusText = fmt.Sprintf("Loaded %d features from %s", applied, filepathBase(m.lastFeaturesPath))
		return m, tea.ClearScreen

	case logExportedMsg:
		if msg.err != nil {
			m.errorText = "Log export failed: " + msg.err.Error()
			return m, nil
		}
		m.logger.Infof("exported log to %s", msg.path)
		m.errorText = ""
		m.statusText = "Exported log: " + filepathBase(msg.path)
		return m, nil

	case tea.KeyMsg:
		if m.showPathPrompt {
			return m.updatePathPrompt(msg)
		}
		return m.updateKeys(msg)

	case tea.MouseMsg:
		var cmd tea.Cmd
		switch m.focusPane {
		case paneResults:
			m.results, cmd = m.results.Update(msg)
		case paneHistory:
			m.history, cmd = m.history.Update(msg)
		}
		return m, cmd
	}

	var cmd tea.Cmd
	m.form, cmd = m.form.Update(msg)
	return m, cmd
}

func (m Model) updateKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "esc":
		if m.showHelp {
			m.showHelp = false
			return m, nil
		}
		return m, tea.Quit
	case "?":
		m.showHelp = !m.showHelp
		return m, nil
	case "tab":
		if m.focusPane == paneForm && m.form.Next() {
			return m, nil
		}
		m.setFocus(nextFocusPane(m.focusPane), true)
		return m, nil
	case "shift+tab", "backtab":
		if m.focusPane == paneForm && m.form.Prev() {
			return m, nil
		}
		m.setFocus(prevFocusPane(m.focusPane), false)
		return m, nil
	case "ctrl+o":
		m.openFeaturesPrompt()
		return m, nil
	case "ctrl+s":
		m.statusText = "Exporting log..."
		return m, exportLogCmd(m.exporter, storage.Snapshot{
			APIBaseURL: m.apiBaseURL,
			Summary:    m.state.Log.Summary(),
			Entries:    m.state.Log.Entries(),
		}, m.now())
	case "ctrl+l":
		m.form.Clear()
		m.setFocus(paneForm, true)
		m.errorText = ""
		m.statusText = "Form cleared"
		return m, nil
	}

	switch m.focusPane {
	case paneForm:
		if msg.String() == "enter" {
			return m.submit()
		}
		var cmd tea.Cmd
		m.form, cmd = m.form.Update(msg)
		return m, cmd

	case paneResults:
		s := m.session()
		switch msg.String() {
		case "a":
			return m, m.trigger(s.askAnomaly(m.api, m.requestTimeout), "Asking for an anomaly hypothesis...")
		case "e":
			return m, m.trigger(s.askObject(m.api, m.requestTimeout), "Asking what a "+s.labelOrEmpty()+" is...")
		case "r":
			if !s.hasFailedSlot() {
				m.statusText = "Nothing to retry."
				return m, nil
			}
			return m, m.trigger(s.retryFailed(m.api, m.requestTimeout), "Retrying...")
		}
		var cmd tea.Cmd
		m.results, cmd = m.results.Update(msg)
		return m, cmd

	case paneHistory:
		rows := m.state.Log.Len()
		switch msg.String() {
		case "up", "k":
			if rows > 0 {
				m.historyCursor = clampInt(m.historyCursor-1, 0, rows-1)
				m.refreshHistoryView()
			}
			return m, nil
		case "down", "j":
			if rows > 0 {
				m.historyCursor = clampInt(m.historyCursor+1, 0, rows-1)
				m.refreshHistoryView()
			}
			return m, nil
		case "enter":
			entry, ok := m.selectedLogEntry()
			if !ok {
				return m, nil
			}
			m.form.SetFeatures(entry.Features)
			m.setFocus(paneForm, true)
			m.statusText = fmt.Sprintf("Form filled from log entry #%d", entry.Seq)
			return m, nil
		}
		var cmd tea.Cmd
		m.history, cmd = m.history.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) submit() (Model, tea.Cmd) {
	cmd, err := m.form.Submit(m.state, m.api, m.requestTimeout, m.now())
	if err != nil {
		m.errorText = err.Error()
		return m, nil
	}
	m.errorText = ""
	m.statusText = "Analyzing..."
	m.logger.Debugf("submitted prediction gen=%d", m.state.Generation())
	m.replaceResult(nil)
	return m, m.withSpinner(cmd)
}

func (m *Model) trigger(cmd tea.Cmd, status string) tea.Cmd {
	if cmd == nil {
		return nil
	}
	m.errorText = ""
	m.statusText = status
	return m.withSpinner(cmd)
}

func (s *resultSession) labelOrEmpty() string {
	if s == nil {
		return ""
	}
	return s.label()
}

func (m *Model) setFocus(pane focusPane, forward bool) {
	m.focusPane = pane
	if pane == paneForm {
		if forward {
			m.form.FocusFirst()
		} else {
			m.form.FocusLast()
		}
	}
	m.applyFocusState()
	m.statusText = "Focus: " + focusPaneLabel(pane)
}

func (m *Model) applyFocusState() {
	if m.showPathPrompt {
		m.form.Blur()
		m.pathInput.Focus()
		return
	}
	m.pathInput.Blur()
	if m.focusPane == paneForm {
		m.form.Focus()
		return
	}
	m.form.Blur()
}

func nextFocusPane(current focusPane) focusPane {
	switch current {
	case paneForm:
		return paneResults
	case paneResults:
		return paneHistory
	default:
		return paneForm
	}
}

func prevFocusPane(current focusPane) focusPane {
	switch current {
	case paneForm:
		return paneHistory
	case paneResults:
		return paneForm
	default:
		return paneResults
	}
}

func focusPaneLabel(pane focusPane) string {
	switch pane {
	case paneForm:
		return "parameters"
	case paneResults:
		return "result"
	case paneHistory:
		return "log"
	default:
		return "unknown"
	}
}

// renderResult renders whichever branch Dispatch picks for the current
// page state.
func (m Model) renderResult(width int) string {
	branch := Dispatch(m.state.Loading, m.state.Result)
	s := m.session()
	switch branch {
	case BranchAnalyzing:
		return m.spinner.View() + " Analyzing..."
	case BranchAnomaly:
		if s != nil {
			return renderAnomaly(s, width, m.spinner.View())
		}
	case BranchDefault:
		if s != nil {
			return renderDefault(s, width, m.spinner.View())
		}
	}
	return renderEmpty(m.state.Result, width)
}

func (m *Model) refreshResultsView() {
	m.results.SetContent(m.renderResult(maxInt(20, m.results.Width)))
}

func (m Model) View() string {
	if !m.ready {
		return "Booting nebulalens-tui..."
	}

	innerWidth := maxInt(40, m.width-2)
	innerHeight := maxInt(12, m.height-2)

	header := headerStyle.Render("NebulaLens") + subHeaderStyle.Render(" decoding the universe with four classifiers | "+orDash(m.apiBaseURL))

	statusPrefix := "*"
	if m.busy() {
		statusPrefix = m.spinner.View()
	}
	statusBody := strings.TrimSpace(m.statusText)
	if statusBody == "" {
		statusBody = "Ready"
	}
	statusLine := statusStyle.Render(statusPrefix + " " + statusBody)
	if strings.TrimSpace(m.errorText) != "" {
		statusLine = errorStyle.Render(m.errorText)
	}

	parts := []string{header, statusLine}
	if m.showPathPrompt {
		promptWidth := clampInt(innerWidth-4, 42, 90)
		listRows := m.pathListVisibleRows()
		promptHeight := clampInt(9+listRows, 12, maxInt(12, innerHeight-2))
		promptBody := strings.Join([]string{
			"Path to a local JSON features file:",
			m.pathInput.View(),
			"",
			"Features files in current directory:",
			m.renderPathChoices(listRows),
			"",
			"up/down select | enter load | esc cancel",
		}, "\n")
		parts = append(parts, renderPanel("Load Features File", promptBody, promptWidth, promptHeight, true))
	}

	if m.showHelp {
		catalogueW := clampInt(innerWidth-4, 40, 100)
		parts = append(parts, renderPanel("Models", renderCatalogue(catalogueW-4), catalogueW, maxInt(8, innerHeight-6), true))
		parts = append(parts, helpStyle.Render("? or esc close"))
	} else {
		topRow := lipgloss.JoinHorizontal(lipgloss.Top,
			renderPanel("Enter Object Parameters", m.form.View(m.formPanelW-4), m.formPanelW, m.formPanelH, m.focusPane == paneForm),
			renderPanel("Model Performance (on Test Set)", renderMetrics(m.state.Loading, m.state.Result, m.metricsPanelW-4), m.metricsPanelW, m.formPanelH, false),
		)
		historyBody := m.history.View() + "\n" + mutedTextStyle(truncateText(formatLogSummary(m.state.Log.Summary()), maxInt(4, m.historyW-4)))
		bottomRow := lipgloss.JoinHorizontal(lipgloss.Top,
			renderPanel("Prediction Result", m.results.View(), m.resultsW, m.resultsH, m.focusPane == paneResults),
			renderPanel("Prediction Log", historyBody, m.historyW, m.historyH, m.focusPane == paneHistory),
		)
		parts = append(parts, topRow, bottomRow)
		parts = append(parts, helpStyle.Render("enter predict | tab focus | a analyze | e explain | r retry | ctrl+o load | ctrl+s export | ? models | esc quit"))
	}

	body := strings.Join(parts, "\n")
	body = fitTextHeight(body, innerHeight)
	return lipgloss.NewStyle().
		Background(chromeBG).
		Foreground(lipgloss.Color("#E8F0F2")).
		Width(innerWidth).
		Height(innerHeight).
		Padding(0, 1).
		Render(body)
}

func (m *Model) resizePanels() {
	if m.width <= 0 || m.height <= 0 {
		return
	}

	usableW := maxInt(40, m.width-6)
	innerH := maxInt(12, m.height-2)
	verticalOverhead := 3
	topActual := formPanelBodyLines + 1 + 2
	bottomActual := maxInt(5, innerH-verticalOverhead-topActual)

	formW := int(math.Round(float64(usableW) * 0.5))
	formW = clampInt(formW, 30, usableW-20)
	m.formPanelW = formW
	m.formPanelH = formPanelBodyLines + 1
	m.metricsPanelW = maxInt(20, usableW-formW-4)

	resultsW := int(math.Round(float64(usableW) * 0.62))
	resultsW = clampInt(resultsW, 28, usableW-16)
	historyW := usableW - resultsW

	resultsInnerW := maxInt(22, resultsW-6)
	resultsViewH := maxInt(1, bottomActual-3)
	m.results.Width = resultsInnerW
	m.results.Height = resultsViewH
	m.resultsW = resultsInnerW + 4
	m.resultsH = resultsViewH + 1

	historyInnerW := maxInt(16, historyW-6)
	historyViewH := maxInt(1, bottomActual-4)
	m.history.Width = historyInnerW
	m.history.Height = historyViewH
	m.historyW = historyInnerW + 4
	m.historyH = historyViewH + 2
	m.pathInput.Width = clampInt(usableW-22, 20, 78)

	m.refreshHistoryView()
}
