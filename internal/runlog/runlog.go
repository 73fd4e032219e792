// Package runlog persists per-run CLI artifacts: a manifest describing the
// run and a JSONL metrics line per interaction.
package runlog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"ragchat-router/internal/models"
)

const (
	manifestFileName     = "manifest.json"
	interactionsFileName = "interactions.jsonl"

	// LogMessagesEnvVar toggles persisting message content alongside the
	// metrics. Off by default so prompts never land on disk accidentally.
	LogMessagesEnvVar = "LOG_MESSAGES"
)

// NewRunID returns a sortable run identifier: a UTC timestamp joined with a
// short random suffix.
func NewRunID(now time.Time) string {
	return now.UTC().Format("2006-01-02T15-04-05Z") + "_" + uuid.NewString()[:8]
}

// Manifest captures run-level metadata written once per CLI invocation.
type Manifest struct {
	RunID         string   `json:"run_id"`
	Service       string   `json:"service"`
	StartedAt     string   `json:"started_at"`
	AliasesLoaded []string `json:"aliases_loaded"`
}

// Interaction is one metrics record in the JSONL log. Messages and
// OutputText are filled only when message logging is enabled.
type Interaction struct {
	TS            string           `json:"ts"`
	RunID         string           `json:"run_id"`
	RequestID     string           `json:"request_id"`
	Provider      string           `json:"provider,omitempty"`
	Model         string           `json:"model,omitempty"`
	Params        map[string]any   `json:"params,omitempty"`
	Usage         *models.Usage    `json:"usage,omitempty"`
	LatencyMS     int64            `json:"latency_ms,omitempty"`
	Status        string           `json:"status"`
	CostEstimated *float64         `json:"cost_estimated"`
	Messages      []models.Message `json:"messages,omitempty"`
	OutputText    *string          `json:"output_text,omitempty"`
}

// Writer persists artifacts under <baseDir>/<runID>/.
type Writer struct {
	runID string
	dir   string
}

// NewWriter creates the run directory and returns a writer for it.
func NewWriter(baseDir, runID string) (*Writer, error) {
	dir := filepath.Join(baseDir, runID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create run directory %q: %w", dir, err)
	}
	return &Writer{runID: runID, dir: dir}, nil
}

// RunID returns the run identifier this writer logs under.
func (w *Writer) RunID() string {
	return w.runID
}

// Dir returns the run directory path.
func (w *Writer) Dir() string {
	return w.dir
}

// SaveManifest writes the run manifest, replacing any previous one.
func (w *Writer) SaveManifest(m Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	path := filepath.Join(w.dir, manifestFileName)
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write manifest %q: %w", path, err)
	}
	return nil
}

// AppendInteraction appends one metrics record to the JSONL log.
func (w *Writer) AppendInteraction(rec Interaction) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal interaction: %w", err)
	}

	path := filepath.Join(w.dir, interactionsFileName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open interactions log %q: %w", path, err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("append interaction: %w", err)
	}
	return nil
}

// MessageLoggingEnabled reports whether the environment toggle allows
// persisting message content.
func MessageLoggingEnabled() bool {
	return os.Getenv(LogMessagesEnvVar) == "true"
}
