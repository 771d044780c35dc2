package llmexport

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/emotion-eeg/eeg-report/sessionlog"
)

// ExportReport writes an LLM prompt bundle for every participant in r.
// Output files:
//   - prompts.jsonl
//   - manifest.json
func ExportReport(r sessionlog.Report, outputDir string, opts ExportOptions) (*ExportResult, error) {
	if strings.TrimSpace(outputDir) == "" {
		return nil, fmt.Errorf("output directory is required")
	}
	if len(r) == 0 {
		return nil, fmt.Errorf("report has no participants")
	}

	if err := ensureOutputDir(outputDir, opts.Overwrite); err != nil {
		return nil, err
	}

	records := BuildRecords(r, opts.Labels)
	promptsPath := filepath.Join(outputDir, "prompts.jsonl")
	if err := writeJSONL(promptsPath, records); err != nil {
		return nil, fmt.Errorf("write prompts.jsonl: %w", err)
	}

	manifest := NewManifest(records, len(r))
	if opts.SourceFile != "" {
		manifest.Sources = []SourceInfo{{Path: opts.SourceFile}}
	}
	manifestPath := filepath.Join(outputDir, "manifest.json")
	if err := writeJSON(manifestPath, manifest); err != nil {
		return nil, fmt.Errorf("write manifest.json: %w", err)
	}

	return &ExportResult{
		OutputDir:     outputDir,
		ManifestPath:  manifestPath,
		PromptsPath:   promptsPath,
		RecordCount:   len(records),
		TrainingCount: manifest.TrainingCount,
	}, nil
}

// NewManifest fills the counts and schema for a set of records.
func NewManifest(records []Record, participants int) Manifest {
	return Manifest{
		FormatVersion:     ExportFormatVersion,
		GeneratedAt:       time.Now().UTC(),
		PromptsPath:       "prompts.jsonl",
		RecordCount:       len(records),
		TrainingCount:     CountTraining(records),
		ParticipantCount:  participants,
		SchemaDescription: defaultSchema(),
	}
}

func ensureOutputDir(path string, overwrite bool) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return fmt.Errorf("read output directory: %w", err)
	}
	if len(entries) > 0 && !overwrite {
		return fmt.Errorf("output directory is not empty: %s (set overwrite=true to allow)", path)
	}
	return nil
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeJSONL(path string, records []Record) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	buf := bufio.NewWriterSize(f, 1<<20)
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	for _, record := range records {
		if err := enc.Encode(record); err != nil {
			return err
		}
	}
	return buf.Flush()
}
