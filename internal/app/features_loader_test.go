package app

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
)

func TestLoadFeaturesFileSuccess(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "features.json")
	if err := os.WriteFile(path, []byte(`{"u":19.5,"g":18.9,"redshift":0.12,"note":"ignored"}`), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	values, resolved, err := LoadFeaturesFile(path)
	if err != nil {
		t.Fatalf("LoadFeaturesFile returned error: %v", err)
	}

	wantResolved, err := filepath.Abs(path)
	if err != nil {
		t.Fatalf("filepath.Abs: %v", err)
	}
	if resolved != wantResolved {
		t.Fatalf("resolved path mismatch: got %q want %q", resolved, wantResolved)
	}
	if len(values) != 3 || values["u"] != 19.5 || values["redshift"] != 0.12 {
		t.Fatalf("unexpected values: %#v", values)
	}
	if _, ok := values["note"]; ok {
		t.Fatalf("unknown keys should be ignored")
	}
}

func TestLoadFeaturesFileRejectsNonObjectJSON(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "features.json")
	if err := os.WriteFile(path, []byte(`[19.5, 18.9]`), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	_, _, err := LoadFeaturesFile(path)
	if err == nil {
		t.Fatalf("expected error for non-object JSON")
	}
	if !strings.Contains(err.Error(), "top-level object") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoadFeaturesFileRejectsNonNumericValues(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "features.json")
	if err := os.WriteFile(path, []byte(`{"u":"bright","g":18.9,"z":null}`), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	_, _, err := LoadFeaturesFile(path)
	if err == nil {
		t.Fatalf("expected error for non-numeric values")
	}
	if !strings.Contains(err.Error(), "u, z") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoadFeaturesFileRejectsURL(t *testing.T) {
	t.Parallel()

	_, _, err := LoadFeaturesFile("https://example.com/features.json")
	if err == nil {
		t.Fatalf("expected URL rejection error")
	}
	if !strings.Contains(err.Error(), "local filesystem paths") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCtrlOPromptFlowFillsForm(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "features.json")
	blob := `{"u":19.5,"g":18.9,"r":18.3,"i":18.1,"z":17.9,"redshift":0.12}`
	if err := os.WriteFile(path, []byte(blob), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	m := NewModel(nil, nil)

	openedModel, _ := m.Update(tea.KeyMsg{Type: tea.KeyCtrlO})
	opened := openedModel.(Model)
	if !opened.showPathPrompt {
		t.Fatalf("expected features path prompt to open")
	}

	opened.pathInput.SetValue(path)
	submittedModel, cmd := opened.Update(tea.KeyMsg{Type: tea.KeyEnter})
	submitted := submittedModel.(Model)
	if cmd == nil {
		t.Fatalf("expected load command on enter")
	}
	if submitted.showPathPrompt {
		t.Fatalf("expected prompt to close after enter")
	}
	if submitted.State().Loading {
		t.Fatalf("enter in the prompt must not submit a prediction")
	}

	loadedModel, _ := submitted.Update(cmd())
	loaded := loadedModel.(Model)
	if strings.TrimSpace(loaded.errorText) != "" {
		t.Fatalf("unexpected error text: %q", loaded.errorText)
	}
	fv, err := loaded.form.Values()
	if err != nil {
		t.Fatalf("form should be complete after load: %v", err)
	}
	if fv.U != 19.5 || fv.Redshift != 0.12 {
		t.Fatalf("unexpected form values: %+v", fv)
	}
	if !strings.Contains(loaded.statusText, "Loaded 6 features from features.json") {
		t.Fatalf("unexpected status text: %q", loaded.statusText)
	}
}

func TestScanFeaturesFilesKeepsOnlyFeatureFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	files := map[string]string{
		"b.JSON":       `{"u":19.5,"g":18.9,"r":18.3,"i":18.1,"z":17.9,"redshift":0.12}`,
		"a.json":       `{"u":19.5,"redshift":"high","note":1}`,
		"package.json": `{"name":"web","version":"1.0.0"}`,
		"list.json":    `[{"u":1}]`,
		"broken.json":  `{"u":`,
		"notes.txt":    `{"u":1}`,
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "sub.json"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	choices, err := scanFeaturesFiles(dir)
	if err != nil {
		t.Fatalf("scanFeaturesFiles returned error: %v", err)
	}
	if len(choices) != 2 {
		t.Fatalf("expected 2 features files, got %d (%v)", len(choices), choices)
	}
	if choices[0].name != "b.JSON" || !choices[0].complete() {
		t.Fatalf("complete file should sort first, got %+v", choices[0])
	}
	if choices[1].name != "a.json" || strings.Join(choices[1].fields, ",") != "u" {
		t.Fatalf("partial file should list only numeric fields, got %+v", choices[1])
	}
}

func TestPathChoicesShowFieldCoverage(t *testing.T) {
	t.Parallel()

	m := NewModel(nil, nil)
	m.pathChoices = []featuresFileChoice{
		{name: "full.json", fields: []string{"u", "g", "r", "i", "z", "redshift"}},
		{name: "part.json", fields: []string{"u", "z"}},
	}
	view := m.renderPathChoices(5)
	if !strings.Contains(view, "all fields") || !strings.Contains(view, "2/6: u z") {
		t.Fatalf("expected field coverage notes:\n%s", view)
	}

	m.pathChoices = append(m.pathChoices, featuresFileChoice{name: "c.json", fields: []string{"u"}})
	m.pathChoiceCursor = 2
	view = m.renderPathChoices(2)
	if strings.Contains(view, "full.json") || !strings.Contains(view, "c.json") {
		t.Fatalf("window should scroll to keep the cursor visible:\n%s", view)
	}
}

func TestPathPromptArrowSelectionUpdatesInput(t *testing.T) {
	t.Parallel()

	m := NewModel(nil, nil)
	m.showPathPrompt = true
	m.pathChoices = []featuresFileChoice{{name: "a.json"}, {name: "b.json"}, {name: "c.json"}}
	m.pathChoiceCursor = 0
	m.pathInput.SetValue("")

	nextModel, _ := m.Update(tea.KeyMsg{Type: tea.KeyDown})
	next := nextModel.(Model)

	if next.pathChoiceCursor != 1 {
		t.Fatalf("expected cursor 1 after down, got %d", next.pathChoiceCursor)
	}
	if strings.TrimSpace(next.pathInput.Value()) != "b.json" {
		t.Fatalf("expected input to follow selected file, got %q", next.pathInput.Value())
	}
}

func TestPathPromptEnterLoadsSelectedWhenInputEmpty(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "picked.json")
	if err := os.WriteFile(path, []byte(`{"u":20}`), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	m := NewModel(nil, nil)
	m.showPathPrompt = true
	m.pathChoices = []featuresFileChoice{{name: path, fields: []string{"u"}}}
	m.pathChoiceCursor = 0
	m.pathInput.SetValue("")

	nextModel, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	next := nextModel.(Model)
	if cmd == nil {
		t.Fatalf("expected load command from enter")
	}
	if next.showPathPrompt {
		t.Fatalf("expected prompt to close after enter")
	}

	loaded, ok := cmd().(featuresFileLoadedMsg)
	if !ok {
		t.Fatalf("expected featuresFileLoadedMsg")
	}
	if loaded.err != nil {
		t.Fatalf("expected selected file to load successfully, got err=%v", loaded.err)
	}
	if loaded.path != path {
		t.Fatalf("expected loaded path %q, got %q", path, loaded.path)
	}
}

func TestPathPromptEnterEmptyPathShowsError(t *testing.T) {
	t.Parallel()

	m := NewModel(nil, nil)
	m.showPathPrompt = true
	m.pathChoices = nil
	m.pathInput.SetValue("")

	nextModel, _ := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	next := nextModel.(Model)
	if next.showPathPrompt {
		t.Fatalf("expected prompt closed after enter")
	}
	if next.errorText != "Features file path is required." {
		t.Fatalf("unexpected error text: %q", next.errorText)
	}
}

func TestFeaturesFileLoadedMsgClosesPromptOnError(t *testing.T) {
	t.Parallel()

	m := NewModel(nil, nil)
	openedModel, _ := m.Update(tea.KeyMsg{Type: tea.KeyCtrlO})
	opened := openedModel.(Model)

	nextModel, _ := opened.Update(featuresFileLoadedMsg{
		path: "/tmp/features.json",
		err:  errors.New("kaboom"),
	})
	next := nextModel.(Model)

	if next.showPathPrompt {
		t.Fatalf("expected prompt closed after featuresFileLoadedMsg error")
	}
	if !strings.Contains(next.errorText, "Features file load failed: kaboom") {
		t.Fatalf("unexpected error text: %q", next.errorText)
	}
}

func TestViewStaysWithinWindowHeightWhenPromptVisible(t *testing.T) {
	t.Parallel()

	const width = 120
	const height = 30

	m := NewModel(nil, nil)
	sizedModel, _ := m.Update(tea.WindowSizeMsg{Width: width, Height: height})
	sized := sizedModel.(Model)
	openedModel, _ := sized.Update(tea.KeyMsg{Type: tea.KeyCtrlO})
	opened := openedModel.(Model)
	if !opened.showPathPrompt {
		t.Fatalf("expected features path prompt to open")
	}

	view := opened.View()
	lineCount := strings.Count(view, "\n") + 1
	if lineCount > height {
		t.Fatalf("expected view line count <= window height (%d), got %d", height, lineCount)
	}
	if !strings.Contains(view, "Load Features File") {
		t.Fatalf("expected load-features panel title in view")
	}
	if !strings.Contains(view, "enter load | esc cancel") {
		t.Fatalf("expected prompt controls in view")
	}
}
