package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	eegreport "github.com/emotion-eeg/eeg-report"
	"github.com/emotion-eeg/eeg-report/augment"
	"github.com/emotion-eeg/eeg-report/llmexport"
	"github.com/emotion-eeg/eeg-report/sessionlog"
)

// ConvertOptions controls ConvertFile.
type ConvertOptions struct {
	Encoding  string
	Strict    bool
	Overwrite bool
}

// ConvertFile parses one log and writes its single-participant report to outPath.
func ConvertFile(inPath, outPath string, opts ConvertOptions) (sessionlog.Report, sessionlog.Diagnostics, error) {
	if strings.TrimSpace(outPath) == "" {
		return nil, sessionlog.Diagnostics{}, fmt.Errorf("output path is required")
	}
	if _, err := os.Stat(outPath); err == nil && !opts.Overwrite {
		return nil, sessionlog.Diagnostics{}, fmt.Errorf("output file exists: %s (set overwrite=true to allow)", outPath)
	}

	parser := sessionlog.NewParser(sessionlog.DefaultLayout(), sessionlog.ParseOptions{Strict: opts.Strict})
	pl, err := parseSource(source{path: inPath, explicit: true}, parser, opts.Encoding)
	if err != nil {
		return nil, sessionlog.Diagnostics{}, err
	}
	report := sessionlog.Report{pl.id: pl.participant}
	doc, err := report.Marshal()
	if err != nil {
		return nil, pl.diag, fmt.Errorf("encode report: %w", err)
	}
	if err := writeFileAtomic(outPath, doc); err != nil {
		return nil, pl.diag, fmt.Errorf("write %s: %w", outPath, err)
	}
	return report, pl.diag, nil
}

// LoadReport reads a Report_Data.json document. A report without any
// participant is an error.
func LoadReport(path string) (sessionlog.Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read report: %w", err)
	}
	r, err := sessionlog.DecodeReport(data)
	if err != nil {
		return nil, err
	}
	if len(r) == 0 {
		return nil, fmt.Errorf("%s: report has no participants", path)
	}
	return r, nil
}

// WriteIndices writes the participant x stage index table. The format is
// taken from the extension when empty.
func WriteIndices(path string, r sessionlog.Report, format string) error {
	if format == "" {
		format = strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	}
	format, err := normalizeFormat(format)
	if err != nil {
		return err
	}
	rows := BuildIndexRows(r)

	if format == "parquet" {
		tmp := path + ".tmp"
		if err := writeIndicesParquetFile(tmp, rows); err != nil {
			_ = os.Remove(tmp)
			return fmt.Errorf("write indices parquet: %w", err)
		}
		if err := os.Rename(tmp, path); err != nil {
			_ = os.Remove(tmp)
			return fmt.Errorf("write indices parquet: %w", err)
		}
		return nil
	}

	data, err := marshalIndicesCSV(rows)
	if err != nil {
		return fmt.Errorf("render indices csv: %w", err)
	}
	if err := writeFileAtomic(path, data); err != nil {
		return fmt.Errorf("write indices csv: %w", err)
	}
	return nil
}

// WriteKeywords writes the keyword tags of every participant as JSON.
func WriteKeywords(path string, r sessionlog.Report) ([]eegreport.KeywordSet, error) {
	sets := eegreport.ReportKeywords(r)
	data, err := llmexport.MarshalJSON(sets)
	if err != nil {
		return nil, fmt.Errorf("encode keywords: %w", err)
	}
	if err := writeFileAtomic(path, data); err != nil {
		return nil, fmt.Errorf("write keywords: %w", err)
	}
	return sets, nil
}

// AugmentReport loads the report at inPath, appends synthetic variants of
// baseID (the first participant when empty) and writes the result to outPath.
// It returns the ids that were added.
func AugmentReport(inPath, outPath, baseID string, opts augment.Options) ([]string, error) {
	r, err := LoadReport(inPath)
	if err != nil {
		return nil, err
	}
	if baseID == "" {
		baseID = r.IDs()[0]
	}
	base, ok := r[baseID]
	if !ok {
		return nil, fmt.Errorf("participant %s not found in %s", baseID, inPath)
	}
	added := augment.Into(r, augment.Generate(base, opts))
	doc, err := r.Marshal()
	if err != nil {
		return nil, fmt.Errorf("encode report: %w", err)
	}
	if err := writeFileAtomic(outPath, doc); err != nil {
		return nil, fmt.Errorf("write %s: %w", outPath, err)
	}
	return added, nil
}
