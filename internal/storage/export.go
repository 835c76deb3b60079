package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Exporter writes snapshots of a session log for the user to keep. Nothing
// here is read back by the dashboard.
type Exporter struct {
	exportsDir string
}

type Snapshot struct {
	ExportedAt string  `json:"exported_at"`
	APIBaseURL string  `json:"api_base_url,omitempty"`
	Summary    Summary `json:"summary"`
	Entries    []Entry `json:"entries"`
}

func NewExporter(rootDir string) *Exporter {
	return &Exporter{exportsDir: filepath.Join(rootDir, "exports")}
}

// Save writes snapshot under exports/ and returns the file path.
func (e *Exporter) Save(snapshot Snapshot, now time.Time) (string, error) {
	if err := os.MkdirAll(e.exportsDir, 0o755); err != nil {
		return "", fmt.Errorf("create exports dir: %w", err)
	}
	now = now.UTC()
	if snapshot.ExportedAt == "" {
		snapshot.ExportedAt = now.Format(time.RFC3339)
	}
	if snapshot.Entries == nil {
		snapshot.Entries = []Entry{}
	}

	name := fmt.Sprintf("%s-nebulalens-log.json", now.Format("20060102-150405.000"))
	path := filepath.Join(e.exportsDir, name)
	if err := writeJSON(path, snapshot); err != nil {
		return "", err
	}
	return path, nil
}

func writeJSON(path string, value any) error {
	blob, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json for %s: %w", path, err)
	}
	if err := os.WriteFile(path, blob, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
