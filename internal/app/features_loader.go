package app

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/tidwall/gjson"
)

// FeatureValues holds the fields read from a features file, keyed by form
// field name. Fields the file does not mention are absent.
type FeatureValues map[string]float64

type featuresFileLoadedMsg struct {
	path   string
	values FeatureValues
	err    error
}

// LoadFeaturesFile reads a local JSON object of feature values. Keys that are
// not form fields are ignored; a known key holding anything but a number is
// an error.
func LoadFeaturesFile(path string) (FeatureValues, string, error) {
	rawPath := strings.TrimSpace(path)
	if rawPath == "" {
		return nil, "", fmt.Errorf("features file path is required")
	}
	if strings.Contains(rawPath, "://") {
		return nil, "", fmt.Errorf("only local filesystem paths are supported")
	}

	resolvedPath, err := filepath.Abs(rawPath)
	if err != nil {
		return nil, "", fmt.Errorf("resolve features path %q: %w", rawPath, err)
	}

	blob, err := os.ReadFile(resolvedPath)
	if err != nil {
		return nil, resolvedPath, fmt.Errorf("read features file %q: %w", resolvedPath, err)
	}

	var parsed any
	if err := json.Unmarshal(blob, &parsed); err != nil {
		return nil, resolvedPath, fmt.Errorf("parse features JSON %q: %w", resolvedPath, err)
	}
	obj, ok := parsed.(map[string]any)
	if !ok {
		return nil, resolvedPath, fmt.Errorf("features JSON must be a top-level object")
	}

	values := FeatureValues{}
	var bad []string
	for _, field := range formFields {
		raw, present := obj[field.name]
		if !present {
			continue
		}
		v, ok := raw.(float64)
		if !ok {
			bad = append(bad, field.name)
			continue
		}
		values[field.name] = v
	}
	if len(bad) > 0 {
		return nil, resolvedPath, fmt.Errorf("features must be numbers: %s", strings.Join(bad, ", "))
	}
	if len(values) == 0 {
		return nil, resolvedPath, fmt.Errorf("features JSON has none of u, g, r, i, z, redshift")
	}
	return values, resolvedPath, nil
}

// Apply writes the values into form fields and returns how many it set.
func (v FeatureValues) Apply(form *Form) int {
	applied := 0
	for _, field := range formFields {
		value, ok := v[field.name]
		if !ok {
			continue
		}
		if form.SetField(field.name, strconv.FormatFloat(value, 'g', -1, 64)) {
			applied++
		}
	}
	return applied
}

func loadFeaturesFileCmd(path string) tea.Cmd {
	requestedPath := strings.TrimSpace(path)
	return func() tea.Msg {
		values, resolvedPath, err := LoadFeaturesFile(requestedPath)
		if err != nil {
			if resolvedPath == "" {
				resolvedPath = requestedPath
			}
			return featuresFileLoadedMsg{path: resolvedPath, err: err}
		}
		return featuresFileLoadedMsg{path: resolvedPath, values: values}
	}
}

// maxFeaturesFileSize bounds what the picker reads when scanning a directory.
const maxFeaturesFileSize = 1 << 20

// featuresFileChoice is one JSON file the picker offers and the form fields
// it would fill.
type featuresFileChoice struct {
	name   string
	fields []string
}

func (c featuresFileChoice) complete() bool {
	return len(c.fields) == len(formFields)
}

// scanFeaturesFiles lists the .json files in dir that hold at least one
// numeric form field at the top level. Complete files sort first.
func scanFeaturesFiles(dir string) ([]featuresFileChoice, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var choices []featuresFileChoice
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(name), ".json") {
			continue
		}
		if info, err := entry.Info(); err != nil || info.Size() > maxFeaturesFileSize {
			continue
		}
		blob, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil || !gjson.ValidBytes(blob) {
			continue
		}
		doc := gjson.ParseBytes(blob)
		if !doc.IsObject() {
			continue
		}
		var fields []string
		for _, field := range formFields {
			if doc.Get(field.name).Type == gjson.Number {
				fields = append(fields, field.name)
			}
		}
		if len(fields) > 0 {
			choices = append(choices, featuresFileChoice{name: name, fields: fields})
		}
	}

	sort.SliceStable(choices, func(i, j int) bool {
		if choices[i].complete() != choices[j].complete() {
			return choices[i].complete()
		}
		return strings.ToLower(choices[i].name) < strings.ToLower(choices[j].name)
	})
	return choices, nil
}

func (m *Model) pathListVisibleRows() int {
	if m.height <= 0 {
		return 6
	}
	return clampInt(m.height/6, 4, 10)
}

// pathChoiceIndex finds the choice matching a typed path, by name or base
// name. It returns -1 when nothing matches.
func (m Model) pathChoiceIndex(path string) int {
	path = strings.TrimSpace(path)
	if path == "" {
		return -1
	}
	base := filepathBase(path)
	for idx, choice := range m.pathChoices {
		if choice.name == path || choice.name == base {
			return idx
		}
	}
	return -1
}

// movePathCursor selects a choice and copies its name into the input.
func (m *Model) movePathCursor(cursor int) {
	if len(m.pathChoices) == 0 {
		m.pathChoiceCursor = 0
		return
	}
	m.pathChoiceCursor = clampInt(cursor, 0, len(m.pathChoices)-1)
	m.pathInput.SetValue(m.pathChoices[m.pathChoiceCursor].name)
	m.pathInput.CursorEnd()
}

func (m *Model) refreshPathChoices() error {
	m.pathChoices, m.pathChoiceCursor = nil, 0
	choices, err := scanFeaturesFiles(".")
	if err != nil {
		return err
	}
	m.pathChoices = choices

	want := m.pathInput.Value()
	if strings.TrimSpace(want) == "" {
		want = m.lastFeaturesPath
	}
	if idx := m.pathChoiceIndex(want); idx >= 0 {
		m.pathChoiceCursor = idx
	}
	if strings.TrimSpace(m.pathInput.Value()) == "" && len(choices) > 0 {
		m.movePathCursor(m.pathChoiceCursor)
	}
	return nil
}

// renderPathChoices shows a window of rows that always contains the cursor,
// each file annotated with the fields it fills.
func (m Model) renderPathChoices(rows int) string {
	if len(m.pathChoices) == 0 {
		return mutedTextStyle("No features files (.json with u, g, r, i, z or redshift) here.")
	}
	rows = maxInt(1, rows)
	start := clampInt(m.pathChoiceCursor-rows+1, 0, maxInt(0, len(m.pathChoices)-rows))
	end := minInt(len(m.pathChoices), start+rows)

	nameW := 0
	for _, choice := range m.pathChoices[start:end] {
		nameW = maxInt(nameW, len([]rune(choice.name)))
	}
	lines := make([]string, 0, end-start+1)
	for idx := start; idx < end; idx++ {
		choice := m.pathChoices[idx]
		note := "all fields"
		if !choice.complete() {
			note = fmt.Sprintf("%d/%d: %s", len(choice.fields), len(formFields), strings.Join(choice.fields, " "))
		}
		line := fmt.Sprintf("%-*s  %s", nameW, choice.name, mutedTextStyle(note))
		if idx == m.pathChoiceCursor {
			lines = append(lines, selectedLineStyle.Render("▶ ")+line)
		} else {
			lines = append(lines, "  "+line)
		}
	}
	lines = append(lines, mutedTextStyle(fmt.Sprintf("%d-%d of %d", start+1, end, len(m.pathChoices))))
	return strings.Join(lines, "\n")
}

// openFeaturesPrompt shows the ctrl+o file picker.
func (m *Model) openFeaturesPrompt() {
	m.showPathPrompt = true
	m.pathInput.SetValue(m.lastFeaturesPath)
	m.pathInput.CursorEnd()
	if err := m.refreshPathChoices(); err != nil {
		m.errorText = "Could not scan current directory for features files: " + err.Error()
	} else {
		m.errorText = ""
	}
	m.statusText = "Choose a features file with up/down or type a path, then press Enter."
	m.applyFocusState()
}

func (m *Model) closeFeaturesPrompt() {
	m.showPathPrompt = false
	m.pathInput.Blur()
	m.applyFocusState()
}

func (m Model) updatePathPrompt(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "up", "down", "pgup", "pgdown":
		step := 1
		switch msg.String() {
		case "up":
			step = -1
		case "pgup":
			step = -m.pathListVisibleRows()
		case "pgdown":
			step = m.pathListVisibleRows()
		}
		m.movePathCursor(m.pathChoiceCursor + step)
		return m, nil
	case "esc":
		m.closeFeaturesPrompt()
		m.statusText = "Features file load cancelled."
		return m, tea.ClearScreen
	case "enter":
		path := strings.TrimSpace(m.pathInput.Value())
		if path == "" && len(m.pathChoices) > 0 {
			path = m.pathChoices[m.pathChoiceCursor].name
		}
		m.closeFeaturesPrompt()
		if path == "" {
			m.errorText = "Features file path is required."
			return m, tea.ClearScreen
		}
		m.lastFeaturesPath = path
		m.errorText = ""
		m.statusText = "Loading features file..."
		return m, loadFeaturesFileCmd(path)
	}
	var cmd tea.Cmd
	before := m.pathInput.Value()
	m.pathInput, cmd = m.pathInput.Update(msg)
	if m.pathInput.Value() != before {
		if idx := m.pathChoiceIndex(m.pathInput.Value()); idx >= 0 {
			m.pathChoiceCursor = idx
		}
	}
	return m, cmd
}
